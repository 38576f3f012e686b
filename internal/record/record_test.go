package record

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAgeAt(t *testing.T) {
	p := &Patient{BirthDate: date(1980, time.June, 15)}

	cases := []struct {
		at   time.Time
		want int
	}{
		{date(1980, time.June, 15), 0},
		{date(1981, time.June, 14), 0},
		{date(1981, time.June, 15), 1},
		{date(2020, time.January, 1), 39},
		{date(2020, time.December, 1), 40},
		{date(1979, time.January, 1), 0}, // pre-birth clamps to zero
	}
	for _, c := range cases {
		if got := p.AgeAt(c.at); got != c.want {
			t.Errorf("AgeAt(%v) = %d, want %d", c.at, got, c.want)
		}
	}
}

func TestHasActiveCondition(t *testing.T) {
	ended := date(2010, time.March, 1)
	p := &Patient{
		Conditions: []Condition{
			{Code: "44054006", Onset: date(2005, time.May, 2)},
			{Code: "195967001", Onset: date(2000, time.May, 2), Ended: &ended},
		},
	}

	if !p.HasActiveCondition("44054006") {
		t.Error("expected active condition 44054006")
	}
	if p.HasActiveCondition("195967001") {
		t.Error("ended condition 195967001 reported active")
	}
	if p.HasActiveCondition("nope") {
		t.Error("unknown code reported active")
	}
}

func TestEntryCount(t *testing.T) {
	p := &Patient{
		Conditions:   []Condition{{}, {}},
		Encounters:   []Encounter{{}},
		Observations: []Observation{{}, {}, {}},
	}
	if got := p.EntryCount(); got != 6 {
		t.Errorf("EntryCount() = %d, want 6", got)
	}
}
