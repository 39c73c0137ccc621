package service

import (
	"strings"
	"testing"

	"lifetrack/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	standard := buildPrompt(ModeStandard, nil, nil)
	assert.Equal(t, 1000, standard.maxTokens)
	assert.InDelta(t, 0.3, standard.temperature, 1e-9)
	assert.Contains(t, standard.text, "patient-friendly explanation")

	withContext := buildPrompt(ModeContext, &PatientContext{Age: "54", MedicalHistory: "Asthma"}, nil)
	assert.Equal(t, 1500, withContext.maxTokens)
	assert.InDelta(t, 0.2, withContext.temperature, 1e-9)
	assert.Contains(t, withContext.text, "- Patient Age: 54\n")
	assert.Contains(t, withContext.text, "- Patient Gender: Not specified\n")
	assert.Contains(t, withContext.text, "- Relevant Medical History: Asthma\n")

	extract := buildPrompt(ModeExtract, nil, nil)
	assert.Equal(t, 1000, extract.maxTokens)
	assert.InDelta(t, 0.1, extract.temperature, 1e-9)
	assert.Contains(t, extract.text, "vitals, medications, diagnoses, recommendations.")

	custom := buildPrompt(ModeExtract, nil, []string{"allergies"})
	assert.Contains(t, custom.text, "from this medical report: allergies.")
}

func TestContextPrompt_NilContext(t *testing.T) {
	t.Parallel()

	p := contextPrompt(nil)
	assert.Equal(t, 3, strings.Count(p, "Not specified"))
}

func TestPatientContext_IsEmpty(t *testing.T) {
	t.Parallel()

	var nilContext *PatientContext
	assert.True(t, nilContext.IsEmpty())
	assert.True(t, (&PatientContext{}).IsEmpty())
	assert.False(t, (&PatientContext{Gender: "female"}).IsEmpty())
}

func TestAssistantInstruction(t *testing.T) {
	t.Parallel()

	assert.Contains(t, assistantInstruction(models.RolePatient), "talking to a patient")
	assert.Contains(t, assistantInstruction(models.RoleCaregiver), "talking to a caregiver")
	assert.Contains(t, assistantInstruction(models.RoleAdmin), "administrator")
}

func TestAssistantPrompt(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Is 120/80 normal?", assistantPrompt("Is 120/80 normal?", nil))

	got := assistantPrompt("Should I worry?", map[string]string{"medications": "Metformin", "age": "54"})
	assert.Equal(t, "Context about the user:\n- age: 54\n- medications: Metformin\n\nQuestion: Should I worry?", got)
}

func TestSplitTags(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b", "c"}, splitTags(" a, b,,c ,"))
	assert.Equal(t, []string{}, splitTags(""))
}

func TestSanitizeUTF8(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "héllo", sanitizeUTF8("héllo"))
	assert.Equal(t, "ab", sanitizeUTF8("a\xffb"))
}
