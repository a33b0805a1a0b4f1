package domain

import "testing"

func TestCategorizeRisk(t *testing.T) {
	tests := []struct {
		name string
		p    float64
		want RiskLevel
	}{
		{"low - 0.0", 0.0, RiskLow},
		{"low - 0.19", 0.19, RiskLow},
		{"moderate boundary - 0.2", 0.2, RiskModerate},
		{"moderate - 0.49", 0.49, RiskModerate},
		{"high boundary - 0.5", 0.5, RiskHigh},
		{"high - 0.79", 0.79, RiskHigh},
		{"critical boundary - 0.8", 0.8, RiskCritical},
		{"critical - 1.0", 1.0, RiskCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CategorizeRisk(tt.p)
			if got != tt.want {
				t.Errorf("CategorizeRisk(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestRecommendation(t *testing.T) {
	seen := make(map[string]bool)
	for _, r := range []RiskLevel{RiskLow, RiskModerate, RiskHigh, RiskCritical} {
		rec := r.Recommendation()
		if rec == "" || seen[rec] {
			t.Errorf("risk %s should have its own recommendation, got %q", r, rec)
		}
		seen[rec] = true
	}
	if got := RiskLevel("UNKNOWN").Recommendation(); got != "Unable to generate recommendation." {
		t.Errorf("unexpected fallback recommendation %q", got)
	}
}

func TestConfidenceFor(t *testing.T) {
	tests := []struct {
		observations int
		want         Confidence
	}{
		{0, ConfidenceLow},
		{1, ConfidenceLow},
		{2, ConfidenceMedium},
		{3, ConfidenceMedium},
		{4, ConfidenceHigh},
		{5, ConfidenceHigh},
	}
	for _, tt := range tests {
		if got := ConfidenceFor(tt.observations); got != tt.want {
			t.Errorf("ConfidenceFor(%d) = %v, want %v", tt.observations, got, tt.want)
		}
	}
}

func TestPumpRecommendation(t *testing.T) {
	tests := []struct {
		failure float64
		want    string
		level   RiskLevel
	}{
		{0.02, "GOOD: Continue routine monitoring", RiskLow},
		{0.10, "GOOD: Continue routine monitoring", RiskLow},
		{0.11, "IMPORTANT: Plan maintenance within next 2 weeks", RiskModerate},
		{0.20, "IMPORTANT: Plan maintenance within next 2 weeks", RiskModerate},
		{0.30, "URGENT: Schedule immediate inspection and maintenance", RiskHigh},
	}
	for _, tt := range tests {
		if got := PumpRecommendation(tt.failure); got != tt.want {
			t.Errorf("PumpRecommendation(%v) = %q, want %q", tt.failure, got, tt.want)
		}
		if got := PumpRiskLevel(tt.failure); got != tt.level {
			t.Errorf("PumpRiskLevel(%v) = %v, want %v", tt.failure, got, tt.level)
		}
	}
}

func TestPumpAgeCategory(t *testing.T) {
	if got := PumpAgeCategory(2); got != "Old (>5 years)" {
		t.Errorf("PumpAgeCategory(2) = %q", got)
	}
	if got := PumpAgeCategory(3); got != "Unknown" {
		t.Errorf("PumpAgeCategory(3) = %q", got)
	}
}

func TestObservation_ContaminationEvidence(t *testing.T) {
	two, one := 2, 1
	obs := Observation{Rainfall: &two, LatrineDistance: &one, PumpAge: &two}

	ev := obs.ContaminationEvidence()
	if len(ev) != 2 {
		t.Fatalf("expected 2 observations, got %v", ev)
	}
	if ev[VarRainfall] != 2 || ev[VarLatrineDist] != 1 {
		t.Errorf("unexpected evidence %v", ev)
	}
	if _, ok := ev[VarPumpAge]; ok {
		t.Error("pump age must not count as contamination evidence")
	}
}
