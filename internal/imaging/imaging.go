// Package imaging renders the DICOM files backing ImagingStudy record
// entries. Each study becomes one small single-frame grayscale instance
// whose pixel content is derived from the study ID, so the same run always
// produces the same bytes of noise.
package imaging

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"math"
	randv2 "math/rand/v2"
	"os"
	"path/filepath"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/domlytics/synthmed/internal/record"
)

const (
	imageSize  = 128
	bitsStored = 12
)

// sopClassFor maps a modality code to its storage SOP class UID.
// Unknown modalities fall back to secondary capture.
func sopClassFor(modality string) string {
	switch modality {
	case "CT":
		return "1.2.840.10008.5.1.4.1.1.2"
	case "MR":
		return "1.2.840.10008.5.1.4.1.1.4"
	case "CR":
		return "1.2.840.10008.5.1.4.1.1.1"
	case "DX":
		return "1.2.840.10008.5.1.4.1.1.1.1"
	case "US":
		return "1.2.840.10008.5.1.4.1.1.6.1"
	case "MG":
		return "1.2.840.10008.5.1.4.1.1.1.2"
	}
	return "1.2.840.10008.5.1.4.1.1.7"
}

// Writer renders studies under dir.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// WriteStudy renders one DICOM instance and returns its path.
func (w *Writer) WriteStudy(p *record.Patient, study record.ImagingStudy) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create dicom dir: %w", err)
	}

	studyUID := deterministicUID(study.ID + "_study")
	seriesUID := deterministicUID(study.ID + "_series")
	sopUID := deterministicUID(study.ID + "_sop")

	nativeFrame := synthesizeFrame(study.ID)
	overlay := study.Modality
	if study.BodyPart != "" {
		overlay = study.Modality + " " + study.BodyPart
	}
	drawOverlay(nativeFrame, imageSize, imageSize, overlay)

	pixelData := dicom.PixelDataInfo{
		Frames: []*frame.Frame{{
			Encapsulated: false,
			NativeData:   nativeFrame,
		}},
	}

	description := study.Display
	if description == "" {
		description = study.BodyPart
	}

	elements := []*dicom.Element{
		mustNewElement(tag.TransferSyntaxUID, []string{"1.2.840.10008.1.2.1"}),
		mustNewElement(tag.PatientName, []string{p.LastName + "^" + p.FirstName}),
		mustNewElement(tag.PatientID, []string{p.ID}),
		mustNewElement(tag.PatientBirthDate, []string{p.BirthDate.Format("20060102")}),
		mustNewElement(tag.PatientSex, []string{p.Gender}),
		mustNewElement(tag.StudyInstanceUID, []string{studyUID}),
		mustNewElement(tag.StudyDate, []string{study.Started.Format("20060102")}),
		mustNewElement(tag.StudyTime, []string{study.Started.Format("150405")}),
		mustNewElement(tag.StudyDescription, []string{description}),
		mustNewElement(tag.SeriesInstanceUID, []string{seriesUID}),
		mustNewElement(tag.SeriesNumber, []string{"1"}),
		mustNewElement(tag.Modality, []string{study.Modality}),
		mustNewElement(tag.BodyPartExamined, []string{study.BodyPart}),
		mustNewElement(tag.SOPClassUID, []string{sopClassFor(study.Modality)}),
		mustNewElement(tag.SOPInstanceUID, []string{sopUID}),
		mustNewElement(tag.InstanceNumber, []string{"1"}),
		mustNewElement(tag.Rows, []int{imageSize}),
		mustNewElement(tag.Columns, []int{imageSize}),
		mustNewElement(tag.BitsAllocated, []int{16}),
		mustNewElement(tag.BitsStored, []int{bitsStored}),
		mustNewElement(tag.HighBit, []int{bitsStored - 1}),
		mustNewElement(tag.PixelRepresentation, []int{0}),
		mustNewElement(tag.SamplesPerPixel, []int{1}),
		mustNewElement(tag.PhotometricInterpretation, []string{"MONOCHROME2"}),
		mustNewElement(tag.PixelData, pixelData),
	}

	path := filepath.Join(w.dir, study.ID+".dcm")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := dicom.Write(f, dicom.Dataset{Elements: elements}); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// synthesizeFrame builds a radial gradient with layered noise, seeded from
// the study ID.
func synthesizeFrame(studyID string) *frame.NativeFrame[uint16] {
	h := fnv.New64a()
	_, _ = h.Write([]byte(studyID))
	seed := h.Sum64()
	rng := randv2.New(randv2.NewPCG(seed, seed))

	nf := frame.NewNativeFrame[uint16](16, imageSize, imageSize, imageSize*imageSize, 1)

	maxVal := float64((1 << bitsStored) - 1)
	center := float64(imageSize) / 2
	maxDist := math.Sqrt(2 * center * center)

	for y := 0; y < imageSize; y++ {
		for x := 0; x < imageSize; x++ {
			dx := float64(x) - center
			dy := float64(y) - center
			dist := math.Sqrt(dx*dx+dy*dy) / maxDist

			intensity := (1.0-dist)*maxVal*0.6 + (rng.Float64()-0.5)*maxVal*0.3
			nf.RawData[y*imageSize+x] = uint16(math.Max(0, math.Min(maxVal, intensity)))
		}
	}
	return nf
}

// drawOverlay burns the study label into the frame, scaled to roughly a
// third of the image width.
func drawOverlay(nf *frame.NativeFrame[uint16], width, height int, text string) {
	face := basicfont.Face7x13
	baseWidth := font.MeasureString(face, text).Ceil()
	baseHeight := 13

	textImg := image.NewRGBA(image.Rect(0, 0, baseWidth, baseHeight))
	drawer := &font.Drawer{
		Dst:  textImg,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.Point26_6{Y: fixed.I(baseHeight)},
	}
	drawer.DrawString(text)

	scale := float64(width) * 0.3 / float64(baseWidth)
	if scale < 1.0 {
		scale = 1.0
	}
	scaledWidth := int(float64(baseWidth) * scale)
	scaledHeight := int(float64(baseHeight) * scale)
	scaled := image.NewRGBA(image.Rect(0, 0, scaledWidth, scaledHeight))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), textImg, textImg.Bounds(), draw.Over, nil)

	offX := (width - scaledWidth) / 2
	offY := (height - scaledHeight) / 2
	maxVal := uint16((1 << bitsStored) - 1)

	for sy := 0; sy < scaledHeight; sy++ {
		for sx := 0; sx < scaledWidth; sx++ {
			_, _, _, a := scaled.At(sx, sy).RGBA()
			if a == 0 {
				continue
			}
			x := offX + sx
			y := offY + sy
			if x >= 0 && x < width && y >= 0 && y < height {
				nf.RawData[y*width+x] = maxVal
			}
		}
	}
}

// deterministicUID derives a UID under the UUID-derived root from an
// arbitrary seed string.
func deterministicUID(seed string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(seed))
	return fmt.Sprintf("2.25.%d", h.Sum64())
}

func mustNewElement(t tag.Tag, value interface{}) *dicom.Element {
	elem, err := dicom.NewElement(t, value)
	if err != nil {
		panic(fmt.Sprintf("failed to create element %v: %v", t, err))
	}
	return elem
}
