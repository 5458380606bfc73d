package anemia

import "time"

// Stage is the categorical anemia severity classification.
type Stage string

const (
	StageNormal   Stage = "NORMAL"
	StageMild     Stage = "MILD"
	StageModerate Stage = "MODERATE"
	StageSevere   Stage = "SEVERE"
	StageUnknown  Stage = "UNKNOWN"
	StageInvalid  Stage = "INVALID" // photos are not of a human face/tongue/eye/hand
)

// Stages lists every valid stage label, in display severity order.
var Stages = []Stage{StageNormal, StageMild, StageModerate, StageSevere, StageUnknown, StageInvalid}

// Label returns the human-readable stage name.
func (s Stage) Label() string {
	switch s {
	case StageNormal:
		return "Normal"
	case StageMild:
		return "Mild Anemia"
	case StageModerate:
		return "Moderate Anemia"
	case StageSevere:
		return "Severe Anemia"
	case StageInvalid:
		return "Invalid Images"
	default:
		return "Unknown"
	}
}

// Description returns the WHO-band description shown alongside a result.
func (s Stage) Description() string {
	switch s {
	case StageNormal:
		return "Hemoglobin >= 12 g/dL - no anemia detected"
	case StageMild:
		return "Hemoglobin 11-11.9 g/dL - mild iron deficiency"
	case StageModerate:
		return "Hemoglobin 8-10.9 g/dL - seek medical attention"
	case StageSevere:
		return "Hemoglobin < 8 g/dL - urgent medical care needed"
	case StageInvalid:
		return "Photos do not appear to be of a human face/eye/hands"
	default:
		return "Unable to determine - please consult a doctor"
	}
}

// ImageSites are the expected body-site keys, in upload order.
var ImageSites = []string{"face", "tongue", "conjunctiva", "palm", "nails"}

// InsightKeys are the Ayurvedic insight categories a reply may carry.
var InsightKeys = []string{
	"dosha_assessment",
	"dietary_recommendations",
	"herbal_remedies",
	"lifestyle_tips",
	"home_remedies",
}

// PatientDetails carries optional demographic and medical context. Every
// field may be blank; the values only enrich the prompt and are never
// validated strictly.
type PatientDetails struct {
	Name               string  `json:"name,omitempty" yaml:"name,omitempty"`
	Age                int     `json:"age,omitempty" yaml:"age,omitempty"`
	Gender             string  `json:"gender,omitempty" yaml:"gender,omitempty"`       // Male, Female, Other
	Ethnicity          string  `json:"ethnicity,omitempty" yaml:"ethnicity,omitempty"` // South Asian, African, ...
	Region             string  `json:"region,omitempty" yaml:"region,omitempty"`
	Weight             float64 `json:"weight,omitempty" yaml:"weight,omitempty"` // kg
	DietType           string  `json:"diet_type,omitempty" yaml:"diet_type,omitempty"`
	KnownConditions    string  `json:"known_conditions,omitempty" yaml:"known_conditions,omitempty"`
	CurrentSymptoms    string  `json:"current_symptoms,omitempty" yaml:"current_symptoms,omitempty"`
	MenstrualHistory   string  `json:"menstrual_history,omitempty" yaml:"menstrual_history,omitempty"`
	PreviousAnemia     bool    `json:"previous_anemia,omitempty" yaml:"previous_anemia,omitempty"`
	CurrentMedications string  `json:"current_medications,omitempty" yaml:"current_medications,omitempty"`
}

// Result is the structured outcome of one screening call. It is built
// once by the parser (or the orchestrator's terminal failure path) and is
// immutable afterwards; the maps are never nil.
type Result struct {
	ID                 string            `json:"id"`
	HemoglobinEstimate float64           `json:"hemoglobin_estimate"` // g/dL, 0 when not extracted
	Stage              Stage             `json:"stage"`
	Confidence         float64           `json:"confidence"` // 0.0 - 1.0
	Explanation        string            `json:"explanation"`
	PerImageFindings   map[string]string `json:"per_image_findings"`
	AyurvedicInsights  map[string]string `json:"ayurvedic_insights"`
	ProviderUsed       string            `json:"provider_used"` // "none" when every provider failed
	Timestamp          time.Time         `json:"timestamp"`
}
