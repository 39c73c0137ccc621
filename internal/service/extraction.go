package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

type ExtractedVitals struct {
	BloodPressure string `json:"blood_pressure"`
	HeartRate     string `json:"heart_rate"`
	Temperature   string `json:"temperature"`
	Weight        string `json:"weight"`
}

// MedicalExtraction is the structured answer of the extract mode.
type MedicalExtraction struct {
	Vitals          ExtractedVitals `json:"vitals"`
	Medications     []string        `json:"medications"`
	Diagnoses       []string        `json:"diagnoses"`
	Recommendations []string        `json:"recommendations"`
	AbnormalValues  []string        `json:"abnormal_values"`
	Summary         string          `json:"summary"`
}

// flexString accepts a JSON string, number or bool.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch v.(type) {
	case float64, bool:
		*f = flexString(strings.TrimSpace(string(b)))
		return nil
	}
	return errors.New("expected a scalar value")
}

// flexList accepts a list whose items are strings or objects; objects are
// flattened to their compact JSON form.
type flexList []string

func (l *flexList) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*l = []string{}
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, item); err != nil {
			return err
		}
		out = append(out, compact.String())
	}
	*l = out
	return nil
}

type rawExtraction struct {
	Vitals *struct {
		BloodPressure flexString `json:"blood_pressure"`
		HeartRate     flexString `json:"heart_rate"`
		Temperature   flexString `json:"temperature"`
		Weight        flexString `json:"weight"`
	} `json:"vitals"`
	Medications     flexList   `json:"medications"`
	Diagnoses       flexList   `json:"diagnoses"`
	Recommendations flexList   `json:"recommendations"`
	AbnormalValues  flexList   `json:"abnormal_values"`
	Summary         flexString `json:"summary"`
}

// ParseExtraction decodes the model's extraction answer. A Markdown code
// fence around the object is tolerated; anything else that is not a single
// JSON object yields a MalformedResponseError.
func ParseExtraction(content string) (*MedicalExtraction, error) {
	body := stripCodeFence(strings.TrimSpace(content))
	if !strings.HasPrefix(body, "{") {
		return nil, &MalformedResponseError{Content: content, Err: errors.New("response is not a JSON object")}
	}

	dec := json.NewDecoder(strings.NewReader(body))
	var raw rawExtraction
	if err := dec.Decode(&raw); err != nil {
		return nil, &MalformedResponseError{Content: content, Err: err}
	}
	if dec.More() {
		return nil, &MalformedResponseError{Content: content, Err: errors.New("trailing content after JSON object")}
	}

	out := &MedicalExtraction{
		Medications:     nonNil(raw.Medications),
		Diagnoses:       nonNil(raw.Diagnoses),
		Recommendations: nonNil(raw.Recommendations),
		AbnormalValues:  nonNil(raw.AbnormalValues),
		Summary:         string(raw.Summary),
	}
	if raw.Vitals != nil {
		out.Vitals = ExtractedVitals{
			BloodPressure: string(raw.Vitals.BloodPressure),
			HeartRate:     string(raw.Vitals.HeartRate),
			Temperature:   string(raw.Vitals.Temperature),
			Weight:        string(raw.Vitals.Weight),
		}
	}
	return out, nil
}

func nonNil(l flexList) []string {
	if l == nil {
		return []string{}
	}
	return l
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
