package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"lifetrack/internal/models"
	"lifetrack/internal/repository"
	"lifetrack/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// steppingClock advances by a minute on every call so records never tie.
func steppingClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
}

func TestGenerateHealthMetrics_Ranges(t *testing.T) {
	t.Parallel()

	for range 50 {
		m := GenerateHealthMetrics()

		assert.GreaterOrEqual(t, m.BloodPressure.Systolic, 110)
		assert.LessOrEqual(t, m.BloodPressure.Systolic, 150)
		assert.GreaterOrEqual(t, m.BloodPressure.Diastolic, 70)
		assert.LessOrEqual(t, m.BloodPressure.Diastolic, 90)
		assert.GreaterOrEqual(t, m.Vitals.HeartRate, 60)
		assert.LessOrEqual(t, m.Vitals.HeartRate, 90)
		assert.GreaterOrEqual(t, m.Vitals.OxygenSaturation, 95.0)
		assert.LessOrEqual(t, m.Vitals.OxygenSaturation, 100.0)
		assert.GreaterOrEqual(t, m.Sleep.LightHours, 0.0)
		assert.Contains(t, []string{"poor", "fair", "good", "excellent"}, m.Sleep.Quality)
		assert.Positive(t, m.BodyMeasurements.BMI)
	}
}

func TestGenerateStatus_Ranges(t *testing.T) {
	t.Parallel()

	now := time.Now()
	for range 50 {
		s := GenerateStatus(now)

		assert.Equal(t, "mmHg", s.VitalSigns.BloodPressure.Unit)
		assert.GreaterOrEqual(t, s.VitalSigns.Temperature.Value, 97.5)
		assert.LessOrEqual(t, s.VitalSigns.Temperature.Value, 99.5)
		assert.GreaterOrEqual(t, s.HealthScore, 70)
		assert.LessOrEqual(t, s.HealthScore, 100)
		assert.NotEmpty(t, s.Symptoms)
		assert.LessOrEqual(t, len(s.Symptoms), 3)
		require.Len(t, s.MedicationStatus, 2)
		for _, m := range s.MedicationStatus {
			assert.Equal(t, m.Taken, m.TakenAt != nil)
		}
		assert.Equal(t, now, s.RecordedAt)
	}
}

type healthEnv struct {
	users  *memory.UserRepository
	health *HealthDataService
	status *PatientStatusService
}

func newHealthEnv(t *testing.T) *healthEnv {
	t.Helper()

	users := memory.NewUserRepository()
	env := &healthEnv{
		users:  users,
		health: NewHealthDataService(memory.NewHealthDataRepository(), users, zap.NewNop()),
		status: NewPatientStatusService(memory.NewPatientStatusRepository(), users, zap.NewNop()),
	}
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	env.health.now = steppingClock(start)
	env.status.now = steppingClock(start)
	return env
}

func (e *healthEnv) addUser(t *testing.T, role models.Role, caregiver *Actor) Actor {
	t.Helper()

	te := &testEnv{users: e.users}
	if caregiver == nil {
		return te.addUser(t, role, nil)
	}
	return te.addUser(t, role, &caregiver.ID)
}

func TestHealthDataService_LatestCreatesOnce(t *testing.T) {
	t.Parallel()

	env := newHealthEnv(t)
	patient := env.addUser(t, models.RolePatient, nil)
	ctx := context.Background()

	first, err := env.health.Latest(ctx, patient, patient.ID)
	require.NoError(t, err)
	assert.Nil(t, first.RecordedBy)

	again, err := env.health.Latest(ctx, patient, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	recorded, err := env.health.Record(ctx, patient, patient.ID)
	require.NoError(t, err)
	require.NotNil(t, recorded.RecordedBy)
	assert.Equal(t, patient.ID, *recorded.RecordedBy)

	latest, err := env.health.Latest(ctx, patient, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, recorded.ID, latest.ID)

	history, total, err := env.health.History(ctx, patient, patient.ID, repository.Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, recorded.ID, history[0].ID, "newest first")
}

func TestHealthDataService_Access(t *testing.T) {
	t.Parallel()

	env := newHealthEnv(t)
	patient := env.addUser(t, models.RolePatient, nil)
	other := env.addUser(t, models.RolePatient, nil)
	caregiver := env.addUser(t, models.RoleCaregiver, nil)
	ctx := context.Background()

	_, err := env.health.Latest(ctx, other, patient.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = env.health.Record(ctx, other, patient.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = env.health.AllPatients(ctx, patient)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.health.Record(ctx, caregiver, patient.ID)
	assert.NoError(t, err)
}

func TestHealthDataService_AllPatients(t *testing.T) {
	t.Parallel()

	env := newHealthEnv(t)
	caregiver := env.addUser(t, models.RoleCaregiver, nil)
	withData := env.addUser(t, models.RolePatient, &caregiver)
	withoutData := env.addUser(t, models.RolePatient, &caregiver)
	env.addUser(t, models.RolePatient, nil)
	admin := env.addUser(t, models.RoleAdmin, nil)
	ctx := context.Background()

	stored, err := env.health.Record(ctx, caregiver, withData.ID)
	require.NoError(t, err)

	overview, err := env.health.AllPatients(ctx, caregiver)
	require.NoError(t, err)
	require.Len(t, overview, 2)

	for _, item := range overview {
		switch item.Patient.ID {
		case withData.ID:
			assert.False(t, item.Generated)
			assert.Equal(t, stored.ID, item.Latest.ID)
		case withoutData.ID:
			assert.True(t, item.Generated)
			assert.Equal(t, withoutData.ID, item.Latest.PatientID)
		default:
			t.Errorf("unexpected patient %s", item.Patient.ID)
		}
	}

	// generated readings are not stored
	_, total, err := env.health.History(ctx, admin, withoutData.ID, repository.Page{})
	require.NoError(t, err)
	assert.Zero(t, total)

	all, err := env.health.AllPatients(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 3, "admins see unassigned patients too")
}

func TestHealthDataService_ExportCSV(t *testing.T) {
	t.Parallel()

	env := newHealthEnv(t)
	patient := env.addUser(t, models.RolePatient, nil)
	ctx := context.Background()

	var empty bytes.Buffer
	n, err := env.health.ExportCSV(ctx, patient, patient.ID, &empty)
	require.NoError(t, err)
	assert.Zero(t, n)
	rows, err := csv.NewReader(&empty).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")
	assert.Equal(t, "recorded_at", rows[0][0])
	assert.Equal(t, "ecg_classification", rows[0][len(rows[0])-1])

	const readings = 105
	for range readings {
		_, err := env.health.Record(ctx, patient, patient.ID)
		require.NoError(t, err)
	}

	var out bytes.Buffer
	n, err = env.health.ExportCSV(ctx, patient, patient.ID, &out)
	require.NoError(t, err)
	assert.Equal(t, readings, n)

	rows, err = csv.NewReader(&out).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, readings+1)
	assert.Equal(t, "recorded_at", rows[0][0])

	newest, err := time.Parse(time.RFC3339, rows[1][0])
	require.NoError(t, err)
	oldest, err := time.Parse(time.RFC3339, rows[readings][0])
	require.NoError(t, err)
	assert.True(t, newest.After(oldest))

	other := env.addUser(t, models.RolePatient, nil)
	_, err = env.health.ExportCSV(ctx, other, patient.ID, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPatientStatusService_UpdateAndLatest(t *testing.T) {
	t.Parallel()

	env := newHealthEnv(t)
	caregiver := env.addUser(t, models.RoleCaregiver, nil)
	patient := env.addUser(t, models.RolePatient, &caregiver)
	ctx := context.Background()

	created, err := env.status.Latest(ctx, patient, patient.ID)
	require.NoError(t, err)
	assert.Nil(t, created.UpdatedBy)

	updated, err := env.status.Update(ctx, caregiver, patient.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.UpdatedBy)
	assert.Equal(t, caregiver.ID, *updated.UpdatedBy)

	latest, err := env.status.Latest(ctx, patient, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.ID, latest.ID)

	_, total, err := env.status.History(ctx, caregiver, patient.ID, repository.Page{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	stranger := env.addUser(t, models.RolePatient, nil)
	_, err = env.status.Update(ctx, stranger, patient.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPatientStatusService_AllPatients(t *testing.T) {
	t.Parallel()

	env := newHealthEnv(t)
	caregiver := env.addUser(t, models.RoleCaregiver, nil)
	patient := env.addUser(t, models.RolePatient, &caregiver)
	ctx := context.Background()

	overview, err := env.status.AllPatients(ctx, caregiver)
	require.NoError(t, err)
	require.Len(t, overview, 1)
	assert.True(t, overview[0].Generated)
	assert.Equal(t, patient.ID, overview[0].Latest.PatientID)

	_, err = env.status.AllPatients(ctx, patient)
	assert.ErrorIs(t, err, ErrForbidden)
}
