package domain

// RiskLevel bands a contamination probability.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// CategorizeRisk maps p to LOW below 0.2, MODERATE below 0.5, HIGH below 0.8
// and CRITICAL otherwise.
func CategorizeRisk(p float64) RiskLevel {
	switch {
	case p < 0.2:
		return RiskLow
	case p < 0.5:
		return RiskModerate
	case p < 0.8:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// Recommendation is the action advised to the school for r.
func (r RiskLevel) Recommendation() string {
	switch r {
	case RiskLow:
		return "Water appears safe. Continue routine monitoring."
	case RiskModerate:
		return "CAUTION: Consider boiling water or using water purification tablets. Monitor closely."
	case RiskHigh:
		return "WARNING: Do NOT drink without treatment. Boil water for at least 3 minutes or use chlorine treatment."
	case RiskCritical:
		return "DANGER: Water likely contaminated. DO NOT USE for drinking or cooking. Contact health authorities immediately."
	}
	return "Unable to generate recommendation."
}

// Confidence grades an assessment by how much was observed.
type Confidence string

const (
	ConfidenceLow    Confidence = "LOW"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceHigh   Confidence = "HIGH"
)

func ConfidenceFor(observations int) Confidence {
	switch {
	case observations >= 4:
		return ConfidenceHigh
	case observations >= 2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// MaintenanceThreshold is the failure probability above which a pump is
// flagged for maintenance.
const MaintenanceThreshold = 0.15

// PumpRecommendation advises on maintenance for a failure probability.
func PumpRecommendation(failure float64) string {
	switch {
	case failure > 0.2:
		return "URGENT: Schedule immediate inspection and maintenance"
	case failure > 0.1:
		return "IMPORTANT: Plan maintenance within next 2 weeks"
	default:
		return "GOOD: Continue routine monitoring"
	}
}

var pumpAgeCategories = []string{"New (<2 years)", "Medium (2-5 years)", "Old (>5 years)"}

// PumpAgeCategory names a pump age state, or "Unknown".
func PumpAgeCategory(age int) string {
	if age < 0 || age >= len(pumpAgeCategories) {
		return "Unknown"
	}
	return pumpAgeCategories[age]
}

// PumpRiskLevel bands a failure probability using the maintenance thresholds.
func PumpRiskLevel(failure float64) RiskLevel {
	switch {
	case failure > 0.2:
		return RiskHigh
	case failure > 0.1:
		return RiskModerate
	default:
		return RiskLow
	}
}
