package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"lifetrack/internal/models"
	"lifetrack/internal/repository"

	"github.com/google/uuid"
)

type HealthDataRepository struct {
	mu      sync.RWMutex
	records []models.HealthData
}

func NewHealthDataRepository() *HealthDataRepository {
	return &HealthDataRepository{}
}

func (r *HealthDataRepository) Create(_ context.Context, data *models.HealthData) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, *data)
	return nil
}

func (r *HealthDataRepository) Latest(ctx context.Context, patientID uuid.UUID) (*models.HealthData, error) {
	history, _, err := r.History(ctx, patientID, repository.Page{Page: 1, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, repository.ErrNotFound
	}
	return history[0], nil
}

func (r *HealthDataRepository) History(_ context.Context, patientID uuid.UUID, page repository.Page) ([]*models.HealthData, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*models.HealthData
	for _, d := range r.records {
		if d.PatientID == patientID {
			matched = append(matched, &d)
		}
	}
	newestFirst(matched, func(d *models.HealthData) time.Time { return d.RecordedAt })

	return paginate(matched, page), len(matched), nil
}

func (r *HealthDataRepository) LatestForPatients(ctx context.Context, patientIDs []uuid.UUID) ([]*models.HealthData, error) {
	latest := []*models.HealthData{}
	for _, id := range patientIDs {
		d, err := r.Latest(ctx, id)
		if err == repository.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		latest = append(latest, d)
	}
	return latest, nil
}

type PatientStatusRepository struct {
	mu      sync.RWMutex
	records []models.PatientStatus
}

func NewPatientStatusRepository() *PatientStatusRepository {
	return &PatientStatusRepository{}
}

func (r *PatientStatusRepository) Create(_ context.Context, s *models.PatientStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *s
	stored.Symptoms = slices.Clone(s.Symptoms)
	stored.MedicationStatus = slices.Clone(s.MedicationStatus)
	r.records = append(r.records, stored)
	return nil
}

func (r *PatientStatusRepository) Latest(ctx context.Context, patientID uuid.UUID) (*models.PatientStatus, error) {
	history, _, err := r.History(ctx, patientID, repository.Page{Page: 1, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, repository.ErrNotFound
	}
	return history[0], nil
}

func (r *PatientStatusRepository) History(_ context.Context, patientID uuid.UUID, page repository.Page) ([]*models.PatientStatus, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*models.PatientStatus
	for _, s := range r.records {
		if s.PatientID == patientID {
			matched = append(matched, &s)
		}
	}
	newestFirst(matched, func(s *models.PatientStatus) time.Time { return s.RecordedAt })

	return paginate(matched, page), len(matched), nil
}

func (r *PatientStatusRepository) LatestForPatients(ctx context.Context, patientIDs []uuid.UUID) ([]*models.PatientStatus, error) {
	latest := []*models.PatientStatus{}
	for _, id := range patientIDs {
		s, err := r.Latest(ctx, id)
		if err == repository.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		latest = append(latest, s)
	}
	return latest, nil
}
