package domain

import (
	"time"

	"github.com/google/uuid"
)

// Variable names of the borehole network that observations map onto.
const (
	VarRainfall      = "Rainfall"
	VarTurbidity     = "Turbidity"
	VarSurfaceRunoff = "Surface_Runoff"
	VarLatrineDist   = "Latrine_Dist"
	VarPumpAge       = "Pump_Age"
	VarPumpFailure   = "Pump_Failure"
	VarContamination = "Contamination"
)

type AssessmentKind string

const (
	AssessmentContamination AssessmentKind = "contamination"
	AssessmentPump          AssessmentKind = "pump"
)

// Observation is one field report from a school borehole. Nil fields were
// not observed.
type Observation struct {
	Rainfall        *int `json:"rainfall,omitempty"`
	Turbidity       *int `json:"turbidity,omitempty"`
	SurfaceRunoff   *int `json:"surface_runoff,omitempty"`
	LatrineDistance *int `json:"latrine_distance,omitempty"`
	PumpAge         *int `json:"pump_age,omitempty"`

	SchoolName   string `json:"school_name,omitempty"`
	Location     string `json:"location,omitempty"`
	ReporterName string `json:"reporter_name,omitempty"`
}

// ContaminationEvidence returns the observations that bear on contamination,
// keyed by network variable name. Pump age is not one of them.
func (o Observation) ContaminationEvidence() map[string]int {
	ev := make(map[string]int)
	set := func(name string, v *int) {
		if v != nil {
			ev[name] = *v
		}
	}
	set(VarRainfall, o.Rainfall)
	set(VarTurbidity, o.Turbidity)
	set(VarSurfaceRunoff, o.SurfaceRunoff)
	set(VarLatrineDist, o.LatrineDistance)
	return ev
}

// Assessment is a persisted risk evaluation.
type Assessment struct {
	ID             uuid.UUID      `json:"id"`
	Kind           AssessmentKind `json:"kind"`
	Probability    float64        `json:"probability"`
	RiskLevel      RiskLevel      `json:"risk_level"`
	Recommendation string         `json:"recommendation"`
	Confidence     Confidence     `json:"confidence,omitempty"`
	Evidence       map[string]int `json:"evidence_used"`
	SchoolName     string         `json:"school_name,omitempty"`
	Location       string         `json:"location,omitempty"`
	ReporterName   string         `json:"reporter_name,omitempty"`
	ModelChecksum  string         `json:"model_checksum,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ContaminationResult is the response to a contamination assessment.
type ContaminationResult struct {
	Assessment
	SafeProbability          float64 `json:"safe_probability"`
	ContaminationProbability float64 `json:"contamination_probability"`
}

// PumpStatus is the response to a pump failure assessment.
type PumpStatus struct {
	Assessment
	WorkingProbability float64 `json:"working_probability"`
	FailureProbability float64 `json:"failure_probability"`
	MaintenanceNeeded  bool    `json:"maintenance_needed"`
	PumpAgeCategory    string  `json:"pump_age_category"`
}
