package config

import (
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Formation.Strategy != FormationNash {
		t.Errorf("default formation = %q, want nash", cfg.Formation.Strategy)
	}
	if cfg.Formation.Payoff != PayoffShapley {
		t.Errorf("default payoff = %q, want shapley", cfg.Formation.Payoff)
	}
	if cfg.Sim.CILevel != 0.95 || cfg.Sim.CIRelPrecision != 0.04 {
		t.Errorf("default CI settings = %v/%v", cfg.Sim.CILevel, cfg.Sim.CIRelPrecision)
	}
	if cfg.Sim.RngSeed != 5489 {
		t.Errorf("default seed = %d, want 5489", cfg.Sim.RngSeed)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Scenario = "scenario.txt"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	missing := Default()
	if err := missing.Validate(); err == nil {
		t.Error("missing scenario must be rejected")
	}

	badFormation := cfg
	badFormation.Formation.Strategy = "greedy"
	if err := badFormation.Validate(); err == nil {
		t.Error("unknown formation category must be rejected")
	}

	badLevel := cfg
	badLevel.Sim.CILevel = 1.5
	if err := badLevel.Validate(); err == nil {
		t.Error("out-of-range CI level must be rejected")
	}

	clamped := cfg
	clamped.Verbosity = 42
	if err := clamped.Validate(); err != nil {
		t.Fatal(err)
	}
	if clamped.Verbosity != 9 {
		t.Errorf("verbosity clamped to %d, want 9", clamped.Verbosity)
	}
}

func TestString(t *testing.T) {
	cfg := Default()
	cfg.Scenario = "scen.txt"
	s := cfg.String()
	if !strings.Contains(s, "scenario: scen.txt") || !strings.Contains(s, "rng-seed: 5489") {
		t.Errorf("String() misses fields: %s", s)
	}
}
