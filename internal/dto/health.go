package dto

import "lifetrack/internal/models"

type HealthDataResponse struct {
	ID         string               `json:"id"`
	PatientID  string               `json:"patientId"`
	RecordedBy *string              `json:"recordedBy,omitempty"`
	Metrics    models.HealthMetrics `json:"metrics"`
	RecordedAt string               `json:"recordedAt"`
	CreatedAt  string               `json:"createdAt"`
}

func NewHealthDataResponse(h *models.HealthData) HealthDataResponse {
	return HealthDataResponse{
		ID:         h.ID.String(),
		PatientID:  h.PatientID.String(),
		RecordedBy: idString(h.RecordedBy),
		Metrics:    h.Metrics,
		RecordedAt: formatTime(h.RecordedAt),
		CreatedAt:  formatTime(h.CreatedAt),
	}
}

func NewHealthDataResponses(items []*models.HealthData) []HealthDataResponse {
	out := make([]HealthDataResponse, 0, len(items))
	for _, h := range items {
		out = append(out, NewHealthDataResponse(h))
	}
	return out
}

type PatientStatusResponse struct {
	ID               string                    `json:"id"`
	PatientID        string                    `json:"patientId"`
	UpdatedBy        *string                   `json:"updatedBy,omitempty"`
	VitalSigns       models.VitalSigns         `json:"vitalSigns"`
	HealthScore      int                       `json:"healthScore"`
	Symptoms         []models.Symptom          `json:"symptoms"`
	MedicationStatus []models.MedicationStatus `json:"medicationStatus"`
	Notes            string                    `json:"notes"`
	Status           string                    `json:"status"`
	RecordedAt       string                    `json:"recordedAt"`
	CreatedAt        string                    `json:"createdAt"`
}

func NewPatientStatusResponse(s *models.PatientStatus) PatientStatusResponse {
	symptoms := s.Symptoms
	if symptoms == nil {
		symptoms = []models.Symptom{}
	}
	meds := s.MedicationStatus
	if meds == nil {
		meds = []models.MedicationStatus{}
	}
	return PatientStatusResponse{
		ID:               s.ID.String(),
		PatientID:        s.PatientID.String(),
		UpdatedBy:        idString(s.UpdatedBy),
		VitalSigns:       s.VitalSigns,
		HealthScore:      s.HealthScore,
		Symptoms:         symptoms,
		MedicationStatus: meds,
		Notes:            s.Notes,
		Status:           string(s.Status),
		RecordedAt:       formatTime(s.RecordedAt),
		CreatedAt:        formatTime(s.CreatedAt),
	}
}

func NewPatientStatusResponses(items []*models.PatientStatus) []PatientStatusResponse {
	out := make([]PatientStatusResponse, 0, len(items))
	for _, s := range items {
		out = append(out, NewPatientStatusResponse(s))
	}
	return out
}

// PatientSummary is the patient part of the caregiver overview lists.
type PatientSummary struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

func NewPatientSummary(u *models.User) PatientSummary {
	return PatientSummary{
		ID:        u.ID.String(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Phone:     u.Phone,
	}
}
