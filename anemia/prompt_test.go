package anemia

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPromptDeterministic(t *testing.T) {
	details := &PatientDetails{Name: "Asha", Age: 29, Gender: "Female"}
	assert.Equal(t, BuildPrompt(details), BuildPrompt(details))
	assert.Equal(t, BuildPrompt(nil), BuildPrompt(nil))
}

func TestBuildPromptWithoutDetails(t *testing.T) {
	prompt := BuildPrompt(nil)

	assert.Contains(t, prompt, "anemia screening")
	assert.Contains(t, prompt, "WHO Anemia Classification")
	assert.Contains(t, prompt, `"ayurvedic_insights"`)
	assert.Contains(t, prompt, "INVALID")
	assert.NotContains(t, prompt, "PATIENT INFORMATION")
}

func TestBuildPromptPatientContext(t *testing.T) {
	details := &PatientDetails{
		Name:            "Asha",
		Age:             29,
		Gender:          "Female",
		Ethnicity:       "South Asian",
		Weight:          54.5,
		DietType:        "Vegetarian",
		CurrentSymptoms: "fatigue, dizziness",
		PreviousAnemia:  true,
	}
	prompt := BuildPrompt(details)

	assert.Contains(t, prompt, "PATIENT INFORMATION")
	assert.Contains(t, prompt, "- Name: Asha")
	assert.Contains(t, prompt, "- Age: 29 years")
	assert.Contains(t, prompt, "- Gender: Female")
	assert.Contains(t, prompt, "- Weight: 54.5 kg")
	assert.Contains(t, prompt, "- Diet: Vegetarian")
	assert.Contains(t, prompt, "- Current Symptoms: fatigue, dizziness")
	assert.Contains(t, prompt, "- Previous Anemia Diagnosis: Yes")

	// Blank fields never appear.
	assert.NotContains(t, prompt, "- Region:")
	assert.NotContains(t, prompt, "- Current Medications:")
}

func TestBuildPromptMenstrualHistoryGenderGated(t *testing.T) {
	female := &PatientDetails{Gender: "Female", MenstrualHistory: "Heavy periods"}
	assert.Contains(t, BuildPrompt(female), "- Menstrual Status: Heavy periods")

	male := &PatientDetails{Gender: "Male", MenstrualHistory: "Heavy periods"}
	assert.NotContains(t, BuildPrompt(male), "Menstrual Status")
}

func TestBuildPromptContextPlacement(t *testing.T) {
	prompt := BuildPrompt(&PatientDetails{Age: 40})

	// Patient context sits between the header and the task block so the
	// model reads it before the instructions that reference it.
	ctxIdx := strings.Index(prompt, "PATIENT INFORMATION")
	taskIdx := strings.Index(prompt, "**Your task:**")
	assert.Greater(t, taskIdx, ctxIdx)
	assert.Greater(t, ctxIdx, 0)
}
