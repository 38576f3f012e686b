package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/domlytics/synthmed/internal/config"
	"github.com/domlytics/synthmed/internal/demographics"
	"github.com/domlytics/synthmed/internal/module"
	"github.com/domlytics/synthmed/internal/providers"
	"github.com/domlytics/synthmed/internal/record"
	"github.com/domlytics/synthmed/internal/rng"
)

// maxLivingAttempts bounds the re-simulation loop when only living
// patients are requested.
const maxLivingAttempts = 10

// Generator simulates individual patients. It is read-only after
// construction, so a single Generator is shared by all workers.
type Generator struct {
	seed      uint64
	minAge    int
	maxAge    int
	stepDays  int
	onlyAlive bool
	catalog   *module.Catalog
	directory *providers.Directory
	today     time.Time
	logger    zerolog.Logger
}

// NewGenerator builds a patient generator. The today anchor is captured by
// the caller once per run so every patient shares the same present.
func NewGenerator(seed uint64, cfg config.Config, catalog *module.Catalog, dir *providers.Directory, today time.Time, logger zerolog.Logger) *Generator {
	return &Generator{
		seed:      seed,
		minAge:    cfg.MinAge,
		maxAge:    cfg.MaxAge,
		stepDays:  cfg.StepDays,
		onlyAlive: cfg.OnlyAlive,
		catalog:   catalog,
		directory: dir,
		today:     today,
		logger:    logger,
	}
}

// Patient simulates the patient at the given ordinal. With only-living mode
// on, deceased outcomes are discarded and the patient is re-simulated on a
// fresh attempt stream, up to maxLivingAttempts times.
func (g *Generator) Patient(ordinal int) (*record.Patient, error) {
	attempts := 1
	if g.onlyAlive {
		attempts = maxLivingAttempts
	}
	for attempt := 0; attempt < attempts; attempt++ {
		stream := rng.Derive(g.seed, ordinal, attempt)
		p := g.simulate(ordinal, stream)
		if !g.onlyAlive || p.Alive {
			return p, nil
		}
	}
	return nil, &PatientGenerationError{
		Ordinal: ordinal,
		Err:     fmt.Errorf("no living outcome in %d attempts", maxLivingAttempts),
	}
}

// simulate runs one full lifetime on one stream.
func (g *Generator) simulate(ordinal int, stream *rng.Stream) *record.Patient {
	p := g.newPatient(ordinal, stream)
	ctx := NewContext(p, stream, g.directory)

	clock := p.BirthDate
	for !clock.After(g.today) && p.Alive {
		for _, mod := range g.catalog.All() {
			if !mod.Applicable(p) {
				continue
			}
			outcome, err := Evaluate(mod, ctx, clock)
			if err != nil {
				var use *UnknownStateError
				if errors.As(err, &use) {
					g.logger.Warn().
						Int("ordinal", ordinal).
						Str("module", use.Module).
						Str("state", use.State).
						Msg("module excluded after unknown state")
				}
				continue
			}
			if outcome == OutcomeDied {
				break
			}
		}
		clock = clock.AddDate(0, 0, g.stepDays)
	}
	return p
}

// newPatient draws the demographic profile for an ordinal. Every draw comes
// from the patient stream in a fixed order.
func (g *Generator) newPatient(ordinal int, stream *rng.Stream) *record.Patient {
	id, err := uuid.NewRandomFromReader(stream)
	if err != nil {
		panic(err)
	}

	gender := demographics.SampleGender(stream)
	race := demographics.SampleRace(stream)
	first := demographics.SampleFirstName(gender, stream)
	last := demographics.SampleLastName(stream)
	loc := demographics.SampleLocation(stream)
	address := demographics.SampleStreetAddress(stream)
	income := demographics.SampleIncome(stream)

	age := stream.IntBetween(g.minAge, g.maxAge)
	month := stream.IntBetween(1, 12)
	day := stream.IntBetween(1, 28)
	birth := time.Date(g.today.Year()-age, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if birth.After(g.today) {
		birth = birth.AddDate(-1, 0, 0)
	}

	return &record.Patient{
		ID:        id.String(),
		Ordinal:   ordinal,
		FirstName: first,
		LastName:  last,
		Gender:    gender,
		Race:      race,
		Ethnicity: demographics.Ethnicity(race),
		BirthDate: birth,
		Alive:     true,
		Address:   address,
		City:      loc.City,
		State:     loc.State,
		ZipCode:   loc.Zip,
		Income:    income,
	}
}
