package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"lifetrack/internal/models"
	"lifetrack/internal/repository"

	"github.com/google/uuid"
)

type UploadRepository struct {
	mu      sync.RWMutex
	uploads map[uuid.UUID]models.ReportUpload
}

func NewUploadRepository() *UploadRepository {
	return &UploadRepository{uploads: make(map[uuid.UUID]models.ReportUpload)}
}

func cloneUpload(u models.ReportUpload) *models.ReportUpload {
	u.Tags = slices.Clone(u.Tags)
	return &u
}

func (r *UploadRepository) Create(_ context.Context, u *models.ReportUpload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.uploads[u.ID]; ok {
		return repository.ErrDuplicate
	}
	r.uploads[u.ID] = *cloneUpload(*u)
	return nil
}

func (r *UploadRepository) GetByID(_ context.Context, id uuid.UUID) (*models.ReportUpload, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.uploads[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUpload(u), nil
}

func (r *UploadRepository) Update(_ context.Context, u *models.ReportUpload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.uploads[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != u.Version {
		return repository.ErrConflict
	}

	next := *cloneUpload(*u)
	next.AIAnalysis = stored.AIAnalysis
	next.Version++
	r.uploads[u.ID] = next

	u.Version++
	return nil
}

func (r *UploadRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.uploads[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.uploads, id)
	return nil
}

func (r *UploadRepository) List(_ context.Context, filter repository.UploadFilter) ([]*models.ReportUpload, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := r.filter(filter)
	newestFirst(matched, func(u *models.ReportUpload) time.Time { return u.CreatedAt })

	return paginate(matched, filter.Page), len(matched), nil
}

func (r *UploadRepository) Stats(_ context.Context, filter repository.UploadFilter) ([]repository.UploadStatusStat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byStatus := map[models.UploadStatus]*repository.UploadStatusStat{}
	for _, u := range r.filter(filter) {
		stat, ok := byStatus[u.Status]
		if !ok {
			stat = &repository.UploadStatusStat{Status: u.Status}
			byStatus[u.Status] = stat
		}
		stat.Count++
		stat.TotalSize += u.FileSize
	}

	stats := []repository.UploadStatusStat{}
	for _, stat := range byStatus {
		stats = append(stats, *stat)
	}
	slices.SortFunc(stats, func(a, b repository.UploadStatusStat) int {
		return cmp.Compare(a.Status, b.Status)
	})
	return stats, nil
}

func (r *UploadRepository) TransitionAI(_ context.Context, id uuid.UUID, t repository.AITransition) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.uploads[id]
	if !ok || !applyAI(&u.AIAnalysis, t) {
		return false, nil
	}
	u.UpdatedAt = time.Now()
	r.uploads[id] = u
	return true, nil
}

func (r *UploadRepository) ResetStaleAnalyses(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, u := range r.uploads {
		if resetStale(&u.AIAnalysis, before) {
			r.uploads[id] = u
			n++
		}
	}
	return n, nil
}

func (r *UploadRepository) IDsByAIStatus(_ context.Context, status models.AIStatus, limit uint64) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*models.ReportUpload
	for _, u := range r.uploads {
		if u.AIStatus == status {
			matched = append(matched, &u)
		}
	}
	slices.SortFunc(matched, func(a, b *models.ReportUpload) int { return a.CreatedAt.Compare(b.CreatedAt) })

	ids := []uuid.UUID{}
	for _, u := range matched {
		if uint64(len(ids)) >= limit {
			break
		}
		ids = append(ids, u.ID)
	}
	return ids, nil
}

func (r *UploadRepository) filter(filter repository.UploadFilter) []*models.ReportUpload {
	var matched []*models.ReportUpload
	for _, u := range r.uploads {
		if filter.UploadedBy != nil && u.UploadedBy != *filter.UploadedBy {
			continue
		}
		if filter.PatientID != nil && u.PatientID != *filter.PatientID {
			continue
		}
		if filter.Status != nil && u.Status != *filter.Status {
			continue
		}
		matched = append(matched, cloneUpload(u))
	}
	return matched
}
