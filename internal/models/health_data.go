package models

import (
	"time"

	"github.com/google/uuid"
)

type HealthData struct {
	ID         uuid.UUID     `db:"id"`
	PatientID  uuid.UUID     `db:"patient_id"`
	RecordedBy *uuid.UUID    `db:"recorded_by"`
	Metrics    HealthMetrics `db:"metrics"`
	RecordedAt time.Time     `db:"recorded_at"`
	CreatedAt  time.Time     `db:"created_at"`
}

// HealthMetrics is persisted as a single JSON document.
type HealthMetrics struct {
	BodyMeasurements  BodyMeasurements  `json:"body_measurements"`
	Vitals            Vitals            `json:"vitals"`
	BloodPressure     BloodPressure     `json:"blood_pressure"`
	Activity          Activity          `json:"activity"`
	Sleep             Sleep             `json:"sleep"`
	Mindfulness       Mindfulness       `json:"mindfulness"`
	MenstrualCycle    *MenstrualCycle   `json:"menstrual_cycle,omitempty"`
	Environmental     Environmental     `json:"environmental"`
	Electrocardiogram Electrocardiogram `json:"electrocardiogram"`
}

type BodyMeasurements struct {
	HeightCm          float64 `json:"height_cm"`
	WeightKg          float64 `json:"weight_kg"`
	BMI               float64 `json:"bmi"`
	BodyFatPercentage float64 `json:"body_fat_percentage"`
	LeanBodyMassKg    float64 `json:"lean_body_mass_kg"`
	WaistCm           float64 `json:"waist_circumference_cm"`
}

type Vitals struct {
	HeartRate            int     `json:"heart_rate"`
	RestingHeartRate     int     `json:"resting_heart_rate"`
	HeartRateVariability int     `json:"heart_rate_variability"`
	RespiratoryRate      int     `json:"respiratory_rate"`
	OxygenSaturation     float64 `json:"oxygen_saturation"`
	BodyTemperatureC     float64 `json:"body_temperature_c"`
}

type BloodPressure struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
}

type Activity struct {
	Steps          int     `json:"steps"`
	DistanceKm     float64 `json:"distance_km"`
	FlightsClimbed int     `json:"flights_climbed"`
	ActiveEnergy   int     `json:"active_energy_kcal"`
	ExerciseMin    int     `json:"exercise_minutes"`
	StandHours     int     `json:"stand_hours"`
}

type Sleep struct {
	DurationHours float64 `json:"duration_hours"`
	DeepHours     float64 `json:"deep_hours"`
	REMHours      float64 `json:"rem_hours"`
	LightHours    float64 `json:"light_hours"`
	AwakeMinutes  int     `json:"awake_minutes"`
	Quality       string  `json:"quality"`
}

type Mindfulness struct {
	Minutes     int    `json:"minutes"`
	StressLevel int    `json:"stress_level"`
	Mood        string `json:"mood"`
}

type MenstrualCycle struct {
	CycleDay    int    `json:"cycle_day"`
	CycleLength int    `json:"cycle_length"`
	Phase       string `json:"phase"`
}

type Environmental struct {
	NoiseExposureDb int `json:"noise_exposure_db"`
	UVIndex         int `json:"uv_index"`
	DaylightMinutes int `json:"daylight_minutes"`
}

type Electrocardiogram struct {
	Classification string `json:"classification"`
	AverageBPM     int    `json:"average_bpm"`
}
