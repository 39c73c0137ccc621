package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"time"

	"lifetrack/internal/models"
	"lifetrack/internal/repository"

	"github.com/google/uuid"
	"github.com/jszwec/csvutil"
	"go.uber.org/zap"
)

// PatientOverview pairs a patient with their newest reading. Generated is
// set when the reading is a demo value that was not stored.
type PatientOverview[T any] struct {
	Patient   *models.User
	Latest    T
	Generated bool
}

// canViewPatient allows staff and the patient themselves.
func canViewPatient(actor Actor, patientID uuid.UUID) bool {
	return actor.IsStaff() || actor.ID == patientID
}

// assignedPatients lists the patients visible in a staff overview.
func assignedPatients(ctx context.Context, users UserRepository, actor Actor) ([]*models.User, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	role := models.RolePatient
	filter := repository.UserFilter{Role: &role, Page: repository.Page{Limit: repository.MaxLimit}}
	if actor.Role == models.RoleCaregiver {
		filter.CaregiverID = &actor.ID
	}
	patients, _, err := users.List(ctx, filter)
	return patients, err
}

func patientIDs(patients []*models.User) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(patients))
	for _, p := range patients {
		ids = append(ids, p.ID)
	}
	return ids
}

func between(lo, hi int) int {
	return lo + rand.IntN(hi-lo+1)
}

func betweenFloat(lo, hi float64) float64 {
	return math.Round((lo+rand.Float64()*(hi-lo))*10) / 10
}

func pick[T any](items []T) T {
	return items[rand.IntN(len(items))]
}

type HealthDataService struct {
	healthData HealthDataRepository
	users      UserRepository
	now        func() time.Time
	logger     *zap.Logger
}

func NewHealthDataService(healthData HealthDataRepository, users UserRepository, logger *zap.Logger) *HealthDataService {
	return &HealthDataService{
		healthData: healthData,
		users:      users,
		now:        time.Now,
		logger:     logger,
	}
}

// GenerateHealthMetrics produces a plausible wearable snapshot.
func GenerateHealthMetrics() models.HealthMetrics {
	height := float64(between(160, 190))
	weight := betweenFloat(60, 90)

	sleepHours := betweenFloat(6, 8)
	deep := betweenFloat(1, 2)
	rem := betweenFloat(0.7, 1.6)

	return models.HealthMetrics{
		BodyMeasurements: models.BodyMeasurements{
			HeightCm:          height,
			WeightKg:          weight,
			BMI:               math.Round(weight/((height/100)*(height/100))*10) / 10,
			BodyFatPercentage: betweenFloat(10, 25),
			LeanBodyMassKg:    betweenFloat(50, 70),
			WaistCm:           float64(between(75, 95)),
		},
		Vitals: models.Vitals{
			HeartRate:            between(60, 90),
			RestingHeartRate:     between(55, 75),
			HeartRateVariability: between(30, 80),
			RespiratoryRate:      between(12, 20),
			OxygenSaturation:     float64(between(95, 100)),
			BodyTemperatureC:     betweenFloat(36, 38),
		},
		BloodPressure: models.BloodPressure{
			Systolic:  between(110, 150),
			Diastolic: between(70, 90),
		},
		Activity: models.Activity{
			Steps:          between(5000, 13000),
			DistanceKm:     betweenFloat(5, 10),
			FlightsClimbed: between(5, 25),
			ActiveEnergy:   between(300, 700),
			ExerciseMin:    between(30, 90),
			StandHours:     between(8, 14),
		},
		Sleep: models.Sleep{
			DurationHours: sleepHours,
			DeepHours:     deep,
			REMHours:      rem,
			LightHours:    math.Max(0, math.Round((sleepHours-deep-rem)*10)/10),
			AwakeMinutes:  between(15, 45),
			Quality:       pick([]string{"poor", "fair", "good", "excellent"}),
		},
		Mindfulness: models.Mindfulness{
			Minutes:     between(5, 25),
			StressLevel: between(1, 10),
			Mood:        pick([]string{"calm", "neutral", "anxious", "happy"}),
		},
		MenstrualCycle: &models.MenstrualCycle{
			CycleDay:    between(1, 28),
			CycleLength: 28,
			Phase:       pick([]string{"menstrual", "follicular", "ovulation", "luteal"}),
		},
		Environmental: models.Environmental{
			NoiseExposureDb: between(55, 75),
			UVIndex:         between(0, 11),
			DaylightMinutes: between(30, 240),
		},
		Electrocardiogram: models.Electrocardiogram{
			Classification: pick([]string{"sinus_rhythm", "normal"}),
			AverageBPM:     between(60, 90),
		},
	}
}

func (s *HealthDataService) newRecord(patientID uuid.UUID, recordedBy *uuid.UUID) *models.HealthData {
	now := s.now()
	return &models.HealthData{
		ID:         uuid.New(),
		PatientID:  patientID,
		RecordedBy: recordedBy,
		Metrics:    GenerateHealthMetrics(),
		RecordedAt: now,
		CreatedAt:  now,
	}
}

// Record stores a freshly generated reading for the patient.
func (s *HealthDataService) Record(ctx context.Context, actor Actor, patientID uuid.UUID) (*models.HealthData, error) {
	if !canViewPatient(actor, patientID) {
		return nil, ErrForbidden
	}

	record := s.newRecord(patientID, &actor.ID)
	if err := s.healthData.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save health data: %w", err)
	}
	return record, nil
}

// Latest returns the newest reading, creating one when the patient has none.
func (s *HealthDataService) Latest(ctx context.Context, actor Actor, patientID uuid.UUID) (*models.HealthData, error) {
	if !canViewPatient(actor, patientID) {
		return nil, ErrForbidden
	}

	latest, err := s.healthData.Latest(ctx, patientID)
	if err == nil {
		return latest, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	record := s.newRecord(patientID, nil)
	if err := s.healthData.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save health data: %w", err)
	}
	return record, nil
}

func (s *HealthDataService) History(ctx context.Context, actor Actor, patientID uuid.UUID, page repository.Page) ([]*models.HealthData, int, error) {
	if !canViewPatient(actor, patientID) {
		return nil, 0, ErrForbidden
	}
	return s.healthData.History(ctx, patientID, page)
}

func (s *HealthDataService) AllPatients(ctx context.Context, actor Actor) ([]PatientOverview[*models.HealthData], error) {
	patients, err := assignedPatients(ctx, s.users, actor)
	if err != nil {
		return nil, err
	}

	latest, err := s.healthData.LatestForPatients(ctx, patientIDs(patients))
	if err != nil {
		return nil, err
	}
	byPatient := make(map[uuid.UUID]*models.HealthData, len(latest))
	for _, d := range latest {
		byPatient[d.PatientID] = d
	}

	out := make([]PatientOverview[*models.HealthData], 0, len(patients))
	for _, p := range patients {
		item := PatientOverview[*models.HealthData]{Patient: p, Latest: byPatient[p.ID]}
		if item.Latest == nil {
			item.Latest = s.newRecord(p.ID, nil)
			item.Generated = true
		}
		out = append(out, item)
	}
	return out, nil
}

type healthDataRow struct {
	RecordedAt        time.Time `csv:"recorded_at"`
	HeightCm          float64   `csv:"height_cm"`
	WeightKg          float64   `csv:"weight_kg"`
	BMI               float64   `csv:"bmi"`
	HeartRate         int       `csv:"heart_rate"`
	RestingHeartRate  int       `csv:"resting_heart_rate"`
	OxygenSaturation  float64   `csv:"oxygen_saturation"`
	BodyTemperatureC  float64   `csv:"body_temperature_c"`
	Systolic          int       `csv:"systolic"`
	Diastolic         int       `csv:"diastolic"`
	Steps             int       `csv:"steps"`
	DistanceKm        float64   `csv:"distance_km"`
	ActiveEnergyKcal  int       `csv:"active_energy_kcal"`
	SleepHours        float64   `csv:"sleep_hours"`
	SleepQuality      string    `csv:"sleep_quality"`
	StressLevel       int       `csv:"stress_level"`
	ECGClassification string    `csv:"ecg_classification"`
}

func newHealthDataRow(d *models.HealthData) healthDataRow {
	m := d.Metrics
	return healthDataRow{
		RecordedAt:        d.RecordedAt.UTC(),
		HeightCm:          m.BodyMeasurements.HeightCm,
		WeightKg:          m.BodyMeasurements.WeightKg,
		BMI:               m.BodyMeasurements.BMI,
		HeartRate:         m.Vitals.HeartRate,
		RestingHeartRate:  m.Vitals.RestingHeartRate,
		OxygenSaturation:  m.Vitals.OxygenSaturation,
		BodyTemperatureC:  m.Vitals.BodyTemperatureC,
		Systolic:          m.BloodPressure.Systolic,
		Diastolic:         m.BloodPressure.Diastolic,
		Steps:             m.Activity.Steps,
		DistanceKm:        m.Activity.DistanceKm,
		ActiveEnergyKcal:  m.Activity.ActiveEnergy,
		SleepHours:        m.Sleep.DurationHours,
		SleepQuality:      m.Sleep.Quality,
		StressLevel:       m.Mindfulness.StressLevel,
		ECGClassification: m.Electrocardiogram.Classification,
	}
}

// ExportCSV writes the whole history of a patient, newest first.
func (s *HealthDataService) ExportCSV(ctx context.Context, actor Actor, patientID uuid.UUID, w io.Writer) (int, error) {
	if !canViewPatient(actor, patientID) {
		return 0, ErrForbidden
	}

	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	written := 0
	for page := uint64(1); ; page++ {
		items, total, err := s.healthData.History(ctx, patientID, repository.Page{Page: page, Limit: repository.MaxLimit})
		if err != nil {
			return written, err
		}
		for _, d := range items {
			if err := enc.Encode(newHealthDataRow(d)); err != nil {
				return written, fmt.Errorf("failed to encode health data row: %w", err)
			}
			written++
		}
		if len(items) == 0 || written >= total {
			break
		}
	}

	if written == 0 {
		if err := enc.EncodeHeader(healthDataRow{}); err != nil {
			return 0, fmt.Errorf("failed to encode csv header: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return written, fmt.Errorf("failed to write csv: %w", err)
	}

	s.logger.Debug("Health data exported", zap.String("patient_id", patientID.String()), zap.Int("rows", written))
	return written, nil
}

type PatientStatusService struct {
	statuses PatientStatusRepository
	users    UserRepository
	now      func() time.Time
	logger   *zap.Logger
}

func NewPatientStatusService(statuses PatientStatusRepository, users UserRepository, logger *zap.Logger) *PatientStatusService {
	return &PatientStatusService{
		statuses: statuses,
		users:    users,
		now:      time.Now,
		logger:   logger,
	}
}

var demoSymptoms = []models.Symptom{
	{Name: "Fatigue", Severity: "mild"},
	{Name: "Headache", Severity: "moderate"},
	{Name: "Nausea", Severity: "mild"},
	{Name: "Dizziness", Severity: "moderate"},
}

// GenerateStatus produces a demo status snapshot taken at now.
func GenerateStatus(now time.Time) models.PatientStatus {
	vitals := models.VitalSigns{
		BloodPressure: models.BloodPressureReading{
			Systolic:  between(110, 150),
			Diastolic: between(70, 90),
			Unit:      "mmHg",
		},
		HeartRate:   models.Measurement{Value: float64(between(60, 90)), Unit: "bpm"},
		Temperature: models.Measurement{Value: betweenFloat(97.5, 99.5), Unit: "°F"},
		Weight:      models.Measurement{Value: float64(between(150, 170)), Unit: "lbs"},
		BloodSugar:  models.Measurement{Value: float64(between(80, 180)), Unit: "mg/dL"},
	}

	symptoms := append([]models.Symptom(nil), demoSymptoms[:between(1, 3)]...)

	medication := func(name, dosage string, takenChance float64) models.MedicationStatus {
		m := models.MedicationStatus{Name: name, Dosage: dosage, Taken: rand.Float64() < takenChance}
		if m.Taken {
			at := now
			m.TakenAt = &at
		}
		return m
	}
	meds := []models.MedicationStatus{
		medication("Metformin", "500mg", 0.7),
		medication("Lisinopril", "10mg", 0.8),
	}

	notes := ""
	if rand.IntN(2) == 0 {
		notes = "Patient feeling better today"
	}

	condition := pick([]models.PatientCondition{
		models.ConditionStable, models.ConditionImproving, models.ConditionDeclining, models.ConditionCritical,
	})

	return models.PatientStatus{
		VitalSigns:       vitals,
		HealthScore:      between(70, 100),
		Symptoms:         symptoms,
		MedicationStatus: meds,
		Notes:            notes,
		Status:           condition,
		RecordedAt:       now,
		CreatedAt:        now,
	}
}

func (s *PatientStatusService) newStatus(patientID uuid.UUID, updatedBy *uuid.UUID) *models.PatientStatus {
	status := GenerateStatus(s.now())
	status.ID = uuid.New()
	status.PatientID = patientID
	status.UpdatedBy = updatedBy
	return &status
}

// Update stores a freshly generated status for the patient.
func (s *PatientStatusService) Update(ctx context.Context, actor Actor, patientID uuid.UUID) (*models.PatientStatus, error) {
	if !canViewPatient(actor, patientID) {
		return nil, ErrForbidden
	}

	status := s.newStatus(patientID, &actor.ID)
	if err := s.statuses.Create(ctx, status); err != nil {
		return nil, fmt.Errorf("failed to save patient status: %w", err)
	}
	return status, nil
}

// Latest returns the newest status, creating one when the patient has none.
func (s *PatientStatusService) Latest(ctx context.Context, actor Actor, patientID uuid.UUID) (*models.PatientStatus, error) {
	if !canViewPatient(actor, patientID) {
		return nil, ErrForbidden
	}

	latest, err := s.statuses.Latest(ctx, patientID)
	if err == nil {
		return latest, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	status := s.newStatus(patientID, nil)
	if err := s.statuses.Create(ctx, status); err != nil {
		return nil, fmt.Errorf("failed to save patient status: %w", err)
	}
	return status, nil
}

func (s *PatientStatusService) History(ctx context.Context, actor Actor, patientID uuid.UUID, page repository.Page) ([]*models.PatientStatus, int, error) {
	if !canViewPatient(actor, patientID) {
		return nil, 0, ErrForbidden
	}
	return s.statuses.History(ctx, patientID, page)
}

func (s *PatientStatusService) AllPatients(ctx context.Context, actor Actor) ([]PatientOverview[*models.PatientStatus], error) {
	patients, err := assignedPatients(ctx, s.users, actor)
	if err != nil {
		return nil, err
	}

	latest, err := s.statuses.LatestForPatients(ctx, patientIDs(patients))
	if err != nil {
		return nil, err
	}
	byPatient := make(map[uuid.UUID]*models.PatientStatus, len(latest))
	for _, st := range latest {
		byPatient[st.PatientID] = st
	}

	out := make([]PatientOverview[*models.PatientStatus], 0, len(patients))
	for _, p := range patients {
		item := PatientOverview[*models.PatientStatus]{Patient: p, Latest: byPatient[p.ID]}
		if item.Latest == nil {
			item.Latest = s.newStatus(p.ID, nil)
			item.Generated = true
		}
		out = append(out, item)
	}
	return out, nil
}
