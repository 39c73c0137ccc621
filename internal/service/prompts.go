package service

import (
	"fmt"
	"slices"
	"strings"

	"lifetrack/internal/models"
)

type AnalysisMode string

const (
	ModeStandard AnalysisMode = "standard"
	ModeContext  AnalysisMode = "context"
	ModeExtract  AnalysisMode = "extract"
)

func (m AnalysisMode) Valid() bool {
	switch m {
	case ModeStandard, ModeContext, ModeExtract:
		return true
	}
	return false
}

// PatientContext personalizes an analysis. Empty fields print as "Not specified".
type PatientContext struct {
	Age            string `json:"age,omitempty"`
	Gender         string `json:"gender,omitempty"`
	MedicalHistory string `json:"medical_history,omitempty"`
}

func (p *PatientContext) IsEmpty() bool {
	return p == nil || (p.Age == "" && p.Gender == "" && p.MedicalHistory == "")
}

type promptSpec struct {
	text        string
	maxTokens   int
	temperature float64
}

var defaultInformationTypes = []string{"vitals", "medications", "diagnoses", "recommendations"}

const standardPrompt = `Read this medical report carefully and provide a clear, patient-friendly explanation.

Please include:
1. A summary of the main findings
2. What each result means in simple terms
3. Any important values that are outside normal ranges
4. Recommendations or next steps if mentioned
5. Any medical terms explained in plain language

Make the explanation easy to understand for someone without medical training, while keeping it accurate.`

func buildPrompt(mode AnalysisMode, pc *PatientContext, informationTypes []string) promptSpec {
	switch mode {
	case ModeContext:
		return promptSpec{text: contextPrompt(pc), maxTokens: 1500, temperature: 0.2}
	case ModeExtract:
		return promptSpec{text: extractionPrompt(informationTypes), maxTokens: 1000, temperature: 0.1}
	default:
		return promptSpec{text: standardPrompt, maxTokens: 1000, temperature: 0.3}
	}
}

func orUnspecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not specified"
	}
	return s
}

func contextPrompt(pc *PatientContext) string {
	if pc == nil {
		pc = &PatientContext{}
	}

	var b strings.Builder
	b.WriteString("Analyze this medical report for the patient described below and explain it in a clear, patient-friendly way.\n\n")
	b.WriteString("Patient Information:\n")
	fmt.Fprintf(&b, "- Patient Age: %s\n", orUnspecified(pc.Age))
	fmt.Fprintf(&b, "- Patient Gender: %s\n", orUnspecified(pc.Gender))
	fmt.Fprintf(&b, "- Relevant Medical History: %s\n\n", orUnspecified(pc.MedicalHistory))
	b.WriteString(`Structure your answer with these sections:
1. **Summary**: A brief overview of the report
2. **Detailed Explanation**: What each finding means for this patient
3. **Normal vs Abnormal**: Which values are within range and which are not
4. **Medical Terms**: Plain-language definitions of the terms used
5. **Recommendations**: Next steps mentioned in the report or commonly advised
6. **Questions to Ask**: Questions the patient may want to raise with their doctor

Take the patient's age, gender and history into account when interpreting the results.`)
	return b.String()
}

func extractionPrompt(informationTypes []string) string {
	if len(informationTypes) == 0 {
		informationTypes = defaultInformationTypes
	}
	return fmt.Sprintf(`Extract the following information from this medical report: %s.

Return a JSON object with this structure:
{
  "vitals": {
    "blood_pressure": "",
    "heart_rate": "",
    "temperature": "",
    "weight": ""
  },
  "medications": [],
  "diagnoses": [],
  "recommendations": [],
  "abnormal_values": [],
  "summary": ""
}

Leave a field empty if the report does not contain it.
Only include the JSON response, no additional text.`, strings.Join(informationTypes, ", "))
}

// assistantInstruction is the system instruction for free-form health questions.
func assistantInstruction(role models.Role) string {
	base := `You are LifeTrack's health assistant. Give accurate, balanced general health information in plain language.
You do not diagnose conditions or prescribe treatment. Recommend contacting a healthcare professional when symptoms are severe, persistent or unclear, and emergency services for urgent warning signs.`

	switch role {
	case models.RoleCaregiver:
		return base + "\nYou are talking to a caregiver who looks after patients. Focus on monitoring, care routines, warning signs worth escalating and how to support the patient."
	case models.RoleAdmin:
		return base + "\nYou are talking to a platform administrator. Answer concisely."
	default:
		return base + "\nYou are talking to a patient. Be supportive, avoid jargon and explain any medical term you use."
	}
}

func assistantPrompt(question string, userContext map[string]string) string {
	if len(userContext) == 0 {
		return question
	}

	keys := make([]string, 0, len(userContext))
	for k := range userContext {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	b.WriteString("Context about the user:\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, userContext[k])
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
