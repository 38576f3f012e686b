// Package demographics samples patient demographic attributes.
//
// All sampling runs on the caller's patient stream; the package holds no
// mutable state and is safe to use from any number of workers.
package demographics

import (
	"fmt"

	"github.com/domlytics/synthmed/internal/record"
	"github.com/domlytics/synthmed/internal/rng"
)

// Gender ratio of the simulated population.
const maleRatio = 0.49

// raceDistribution mirrors a rough US census breakdown. Order matters:
// sampling walks the slice cumulatively, so it must stay stable.
var raceDistribution = []struct {
	race   string
	weight float64
}{
	{record.RaceWhite, 0.60},
	{record.RaceBlack, 0.13},
	{record.RaceAsian, 0.06},
	{record.RaceNative, 0.02},
	{record.RaceHispanic, 0.18},
	{record.RaceOther, 0.01},
}

// ethnicity maps race codes to the coarse FHIR ethnicity codes.
var ethnicity = map[string]string{
	record.RaceWhite:    "non-hispanic",
	record.RaceBlack:    "non-hispanic",
	record.RaceAsian:    "non-hispanic",
	record.RaceNative:   "non-hispanic",
	record.RaceHispanic: "hispanic",
	record.RaceOther:    "non-hispanic",
}

var (
	// MaleFirstNames is the list of male first names.
	MaleFirstNames = []string{
		"James", "John", "Robert", "Michael", "William", "David", "Richard", "Joseph",
		"Thomas", "Charles", "Christopher", "Daniel", "Matthew", "Anthony", "Mark",
		"Donald", "Steven", "Paul", "Andrew", "Joshua", "Kenneth", "Kevin", "Brian",
		"George", "Timothy", "Ronald", "Edward", "Jason", "Jeffrey", "Ryan",
		"Jacob", "Gary", "Nicholas", "Eric", "Jonathan", "Stephen", "Larry", "Justin",
		"Scott", "Brandon", "Benjamin", "Samuel", "Raymond", "Gregory", "Frank", "Alexander",
	}

	// FemaleFirstNames is the list of female first names.
	FemaleFirstNames = []string{
		"Mary", "Patricia", "Jennifer", "Linda", "Barbara", "Elizabeth", "Susan", "Jessica",
		"Sarah", "Karen", "Lisa", "Nancy", "Betty", "Margaret", "Sandra", "Ashley",
		"Kimberly", "Emily", "Donna", "Michelle", "Dorothy", "Carol", "Amanda", "Melissa",
		"Deborah", "Stephanie", "Rebecca", "Sharon", "Laura", "Cynthia", "Kathleen", "Amy",
		"Angela", "Shirley", "Anna", "Brenda", "Pamela", "Emma", "Nicole", "Helen",
	}

	// LastNames is the list of family names.
	LastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis",
		"Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez", "Wilson", "Anderson", "Thomas",
		"Taylor", "Moore", "Jackson", "Martin", "Lee", "Perez", "Thompson", "White",
		"Harris", "Sanchez", "Clark", "Ramirez", "Lewis", "Robinson", "Walker", "Young",
		"Allen", "King", "Wright", "Scott", "Torres", "Nguyen", "Hill", "Flores",
	}
)

// Location is one sampled geography tuple.
type Location struct {
	State string
	City  string
	Zip   string
}

var locations = []Location{
	{"Massachusetts", "Boston", "02108"},
	{"New York", "New York", "10001"},
	{"California", "Los Angeles", "90001"},
	{"Texas", "Houston", "77001"},
	{"Florida", "Miami", "33101"},
	{"Illinois", "Chicago", "60601"},
	{"Washington", "Seattle", "98101"},
	{"Colorado", "Denver", "80201"},
}

// SampleGender draws a gender code from the configured ratio.
func SampleGender(s *rng.Stream) string {
	if s.Uniform() < maleRatio {
		return record.GenderMale
	}
	return record.GenderFemale
}

// SampleRace draws a race code from the population distribution.
func SampleRace(s *rng.Stream) string {
	weights := make([]float64, len(raceDistribution))
	for i, d := range raceDistribution {
		weights[i] = d.weight
	}
	return raceDistribution[s.Choice(weights)].race
}

// Ethnicity returns the ethnicity code for a race.
func Ethnicity(race string) string {
	if e, ok := ethnicity[race]; ok {
		return e
	}
	return "non-hispanic"
}

// SampleFirstName draws a first name appropriate for the gender code.
// Unknown codes fall back to the female list.
func SampleFirstName(gender string, s *rng.Stream) string {
	if gender == record.GenderMale {
		return MaleFirstNames[s.IntBetween(0, len(MaleFirstNames)-1)]
	}
	return FemaleFirstNames[s.IntBetween(0, len(FemaleFirstNames)-1)]
}

// SampleLastName draws a family name.
func SampleLastName(s *rng.Stream) string {
	return LastNames[s.IntBetween(0, len(LastNames)-1)]
}

// SampleLocation draws a (state, city, zip) tuple.
func SampleLocation(s *rng.Stream) Location {
	return locations[s.IntBetween(0, len(locations)-1)]
}

// SampleStreetAddress draws a street address line.
func SampleStreetAddress(s *rng.Stream) string {
	streets := []string{"Main St", "Oak Ave", "Maple Dr", "Washington Blvd", "Park Rd"}
	return fmt.Sprintf("%d %s", s.IntBetween(100, 9999), streets[s.IntBetween(0, len(streets)-1)])
}

// SampleIncome draws a simplified annual income figure.
func SampleIncome(s *rng.Stream) int {
	return s.IntBetween(0, 100000)
}
