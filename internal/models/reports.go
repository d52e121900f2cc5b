package models

import "time"

// RiskLevel classifies compatibility risk. Levels are ordered.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	}
	return "unknown"
}

// MarshalText renders the level by name.
func (r RiskLevel) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// AtLeast returns the higher of r and floor.
func (r RiskLevel) AtLeast(floor RiskLevel) RiskLevel {
	if floor > r {
		return floor
	}
	return r
}

// CompatibilityReport is produced once per operation before any data moves.
type CompatibilityReport struct {
	SourceVersion      string            `json:"source_version"`
	DestinationVersion string            `json:"destination_version"`
	CanProceed         bool              `json:"can_proceed"`
	Warnings           []string          `json:"warnings"`
	Blockers           []string          `json:"blockers"`
	RecommendedOptions *MigrationOptions `json:"recommended_options,omitempty"`
	EstimatedDuration  time.Duration     `json:"estimated_duration"`
	RiskLevel          RiskLevel         `json:"risk_level"`
}

// Finalize derives CanProceed from the blockers and forces critical risk when
// anything blocks.
func (c *CompatibilityReport) Finalize() {
	c.CanProceed = len(c.Blockers) == 0
	if !c.CanProceed {
		c.RiskLevel = RiskCritical
	}
}

// SafetyLevel is the overall pre-flight safety classification.
type SafetyLevel int

const (
	SafetySafe SafetyLevel = iota
	SafetyLow
	SafetyMedium
	SafetyHigh
	SafetyCritical
)

func (s SafetyLevel) String() string {
	switch s {
	case SafetySafe:
		return "safe"
	case SafetyLow:
		return "low"
	case SafetyMedium:
		return "medium"
	case SafetyHigh:
		return "high"
	case SafetyCritical:
		return "critical"
	}
	return "unknown"
}

// MarshalText renders the level by name.
func (s SafetyLevel) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Score is the per-risk weight used for the numeric risk score.
func (s SafetyLevel) Score() float64 {
	switch s {
	case SafetyLow:
		return 0.2
	case SafetyMedium:
		return 0.5
	case SafetyHigh:
		return 0.8
	case SafetyCritical:
		return 1.0
	}
	return 0
}

// RiskCategory groups safety risks.
type RiskCategory string

const (
	CategoryCompatibility   RiskCategory = "compatibility"
	CategoryDataSize        RiskCategory = "dataSize"
	CategoryServerStability RiskCategory = "serverStability"
	CategoryAuthentication  RiskCategory = "authentication"
	CategoryNetwork         RiskCategory = "network"
	CategoryTiming          RiskCategory = "timing"
)

// Risk is a single identified pre-flight risk.
type Risk struct {
	Level       SafetyLevel  `json:"level"`
	Category    RiskCategory `json:"category"`
	Description string       `json:"description"`
	Mitigation  string       `json:"mitigation"`
}

// SafetyReport is the pre-flight go/no-go assessment.
type SafetyReport struct {
	OverallLevel       SafetyLevel `json:"overall_level"`
	CanProceed         bool        `json:"can_proceed"`
	Risks              []Risk      `json:"risks"`
	Blockers           []string    `json:"blockers"`
	Recommendations    []string    `json:"recommendations"`
	EstimatedRiskScore float64     `json:"estimated_risk_score"`
	CheckedAt          time.Time   `json:"checked_at"`
}

// AddRisk records a risk and refreshes the derived fields.
func (s *SafetyReport) AddRisk(r Risk) {
	s.Risks = append(s.Risks, r)
	s.Finalize()
}

// AddBlocker records a blocker and refreshes the derived fields.
func (s *SafetyReport) AddBlocker(b string) {
	s.Blockers = append(s.Blockers, b)
	s.Finalize()
}

// Finalize derives OverallLevel, CanProceed and EstimatedRiskScore.
func (s *SafetyReport) Finalize() {
	s.CanProceed = len(s.Blockers) == 0

	var high, medium int
	var sum float64
	for _, r := range s.Risks {
		sum += r.Level.Score()
		switch r.Level {
		case SafetyHigh, SafetyCritical:
			high++
		case SafetyMedium:
			medium++
		}
	}
	s.EstimatedRiskScore = min(sum/10, 1.0)

	switch {
	case !s.CanProceed:
		s.OverallLevel = SafetyCritical
	case high > 0:
		s.OverallLevel = SafetyHigh
	case medium >= 2:
		s.OverallLevel = SafetyMedium
	case medium == 1:
		s.OverallLevel = SafetyLow
	default:
		s.OverallLevel = SafetySafe
	}
}

// Severity grades a verification failure.
type Severity int

const (
	SeverityMinor Severity = iota
	SeverityMajor
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityMinor:
		return "minor"
	case SeverityMajor:
		return "major"
	case SeverityCritical:
		return "critical"
	}
	return "unknown"
}

// MarshalText renders the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// VerificationFailure is a single mismatch between source and destination.
type VerificationFailure struct {
	Item     string   `json:"item"`
	Expected string   `json:"expected"`
	Actual   string   `json:"actual"`
	Severity Severity `json:"severity"`
}

// VerificationReport is produced after import when verification is enabled.
type VerificationReport struct {
	OverallSuccess  bool                  `json:"overall_success"`
	SuccessRate     float64               `json:"success_rate"`
	ItemsVerified   int                   `json:"items_verified"`
	ItemsSuccessful int                   `json:"items_successful"`
	ItemsFailed     int                   `json:"items_failed"`
	Failures        []VerificationFailure `json:"failures"`
	Warnings        []string              `json:"warnings"`
	VerifiedAt      time.Time             `json:"verified_at"`
}

// Finalize derives OverallSuccess and SuccessRate from the counts.
func (v *VerificationReport) Finalize() {
	v.OverallSuccess = true
	for _, f := range v.Failures {
		if f.Severity >= SeverityMajor {
			v.OverallSuccess = false
			break
		}
	}
	if v.ItemsVerified == 0 {
		v.SuccessRate = 0
		return
	}
	v.SuccessRate = float64(v.ItemsSuccessful) / float64(v.ItemsVerified)
}
