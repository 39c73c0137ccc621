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

type ReportRepository struct {
	mu      sync.RWMutex
	reports map[uuid.UUID]models.Report
}

func NewReportRepository() *ReportRepository {
	return &ReportRepository{reports: make(map[uuid.UUID]models.Report)}
}

func cloneReport(r models.Report) *models.Report {
	r.Tags = slices.Clone(r.Tags)
	return &r
}

func (r *ReportRepository) Create(_ context.Context, report *models.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reports[report.ID]; ok {
		return repository.ErrDuplicate
	}
	r.reports[report.ID] = *cloneReport(*report)
	return nil
}

func (r *ReportRepository) GetByID(_ context.Context, id uuid.UUID) (*models.Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	report, ok := r.reports[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneReport(report), nil
}

func (r *ReportRepository) List(_ context.Context, filter repository.ReportFilter) ([]*models.Report, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*models.Report
	for _, report := range r.reports {
		if filter.PatientID != nil && report.PatientID != *filter.PatientID {
			continue
		}
		if filter.PatientIDs != nil && !containsID(filter.PatientIDs, report.PatientID) {
			continue
		}
		if filter.ReportType != nil && report.ReportType != *filter.ReportType {
			continue
		}
		if filter.Status != nil && report.Status != *filter.Status {
			continue
		}
		matched = append(matched, cloneReport(report))
	}
	newestFirst(matched, func(r *models.Report) time.Time { return r.CreatedAt })

	return paginate(matched, filter.Page), len(matched), nil
}

func (r *ReportRepository) UpdateReview(_ context.Context, report *models.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.reports[report.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Status = report.Status
	stored.ReviewedBy = report.ReviewedBy
	stored.ReviewNotes = report.ReviewNotes
	stored.ReviewDate = report.ReviewDate
	stored.UpdatedAt = report.UpdatedAt
	r.reports[report.ID] = stored
	return nil
}

func (r *ReportRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reports[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.reports, id)
	return nil
}

func (r *ReportRepository) TransitionAI(_ context.Context, id uuid.UUID, t repository.AITransition) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	report, ok := r.reports[id]
	if !ok || !applyAI(&report.AIAnalysis, t) {
		return false, nil
	}
	report.UpdatedAt = time.Now()
	r.reports[id] = report
	return true, nil
}

func (r *ReportRepository) ResetStaleAnalyses(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, report := range r.reports {
		if resetStale(&report.AIAnalysis, before) {
			r.reports[id] = report
			n++
		}
	}
	return n, nil
}

func (r *ReportRepository) IDsByAIStatus(_ context.Context, status models.AIStatus, limit uint64) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*models.Report
	for _, report := range r.reports {
		if report.AIStatus == status {
			matched = append(matched, &report)
		}
	}
	slices.SortFunc(matched, func(a, b *models.Report) int { return a.CreatedAt.Compare(b.CreatedAt) })

	ids := []uuid.UUID{}
	for _, report := range matched {
		if uint64(len(ids)) >= limit {
			break
		}
		ids = append(ids, report.ID)
	}
	return ids, nil
}
