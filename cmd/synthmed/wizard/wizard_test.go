package wizard

import (
	"testing"

	"github.com/domlytics/synthmed/internal/config"
)

func TestStateRoundTrip(t *testing.T) {
	seed := int64(42)
	cfg := config.Default()
	cfg.Population = 250
	cfg.MinAge = 10
	cfg.MaxAge = 80
	cfg.Seed = &seed
	cfg.OnlyAlive = true
	cfg.ModulesDir = "modules"
	cfg.Format = config.FormatCSV

	out, err := NewState(cfg).ToConfig()
	if err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if out.Population != 250 || out.MinAge != 10 || out.MaxAge != 80 {
		t.Fatalf("numbers lost: %+v", out)
	}
	if out.Seed == nil || *out.Seed != 42 {
		t.Fatalf("seed lost: %v", out.Seed)
	}
	if !out.OnlyAlive || out.Format != config.FormatCSV {
		t.Fatalf("flags lost: %+v", out)
	}
}

func TestToConfigRejectsBadNumbers(t *testing.T) {
	cfg := config.Default()
	cfg.ModulesDir = "modules"
	s := NewState(cfg)
	s.Population = "many"
	if _, err := s.ToConfig(); err == nil {
		t.Fatal("expected error for non-numeric population")
	}
}

func TestToConfigValidates(t *testing.T) {
	cfg := config.Default()
	cfg.ModulesDir = "modules"
	s := NewState(cfg)
	s.MinAge = "90"
	s.MaxAge = "10"
	if _, err := s.ToConfig(); err == nil {
		t.Fatal("expected validation error for inverted age range")
	}
}

func TestEmptySeedMeansRandom(t *testing.T) {
	cfg := config.Default()
	cfg.ModulesDir = "modules"
	out, err := NewState(cfg).ToConfig()
	if err != nil {
		t.Fatal(err)
	}
	if out.Seed != nil {
		t.Fatalf("expected nil seed, got %v", *out.Seed)
	}
}

func TestValidateInt(t *testing.T) {
	if err := validateInt(""); err != nil {
		t.Fatalf("empty should be allowed: %v", err)
	}
	if err := validateInt("123"); err != nil {
		t.Fatalf("numeric rejected: %v", err)
	}
	if err := validateInt("abc"); err == nil {
		t.Fatal("non-numeric accepted")
	}
}
