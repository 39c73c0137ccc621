package models

import (
	"time"

	"github.com/google/uuid"
)

type PatientCondition string

const (
	ConditionStable    PatientCondition = "stable"
	ConditionImproving PatientCondition = "improving"
	ConditionDeclining PatientCondition = "declining"
	ConditionCritical  PatientCondition = "critical"
)

type PatientStatus struct {
	ID               uuid.UUID          `db:"id"`
	PatientID        uuid.UUID          `db:"patient_id"`
	UpdatedBy        *uuid.UUID         `db:"updated_by"`
	VitalSigns       VitalSigns         `db:"vital_signs"`
	HealthScore      int                `db:"health_score"`
	Symptoms         []Symptom          `db:"symptoms"`
	MedicationStatus []MedicationStatus `db:"medication_status"`
	Notes            string             `db:"notes"`
	Status           PatientCondition   `db:"status"`
	RecordedAt       time.Time          `db:"recorded_at"`
	CreatedAt        time.Time          `db:"created_at"`
}

type Measurement struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type BloodPressureReading struct {
	Systolic  int    `json:"systolic"`
	Diastolic int    `json:"diastolic"`
	Unit      string `json:"unit"`
}

type VitalSigns struct {
	BloodPressure BloodPressureReading `json:"blood_pressure"`
	HeartRate     Measurement          `json:"heart_rate"`
	Temperature   Measurement          `json:"temperature"`
	Weight        Measurement          `json:"weight"`
	BloodSugar    Measurement          `json:"blood_sugar"`
}

type Symptom struct {
	Name     string `json:"name"`
	Severity string `json:"severity"`
}

type MedicationStatus struct {
	Name    string     `json:"name"`
	Taken   bool       `json:"taken"`
	TakenAt *time.Time `json:"taken_at,omitempty"`
	Dosage  string     `json:"dosage"`
}
