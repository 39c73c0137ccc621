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

type ContactRepository struct {
	mu       sync.RWMutex
	contacts map[uuid.UUID]models.Contact
}

func NewContactRepository() *ContactRepository {
	return &ContactRepository{contacts: make(map[uuid.UUID]models.Contact)}
}

func cloneContact(c models.Contact) *models.Contact {
	c.Notes = slices.Clone(c.Notes)
	return &c
}

func (r *ContactRepository) Create(_ context.Context, c *models.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.contacts[c.ID] = *cloneContact(*c)
	return nil
}

func (r *ContactRepository) GetByID(_ context.Context, id uuid.UUID) (*models.Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.contacts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneContact(c), nil
}

func (r *ContactRepository) List(_ context.Context, filter repository.ContactFilter) ([]*models.Contact, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*models.Contact
	for _, c := range r.contacts {
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		if filter.Category != nil && c.Category != *filter.Category {
			continue
		}
		if filter.Priority != nil && c.Priority != *filter.Priority {
			continue
		}
		matched = append(matched, cloneContact(c))
	}
	newestFirst(matched, func(c *models.Contact) time.Time { return c.CreatedAt })

	return paginate(matched, filter.Page), len(matched), nil
}

func (r *ContactRepository) Update(_ context.Context, c *models.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.contacts[c.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Status = c.Status
	stored.Priority = c.Priority
	stored.AssignedTo = c.AssignedTo
	stored.Notes = slices.Clone(c.Notes)
	stored.UpdatedAt = c.UpdatedAt
	r.contacts[c.ID] = stored
	return nil
}

func (r *ContactRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.contacts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.contacts, id)
	return nil
}

func (r *ContactRepository) Stats(_ context.Context) (*repository.ContactStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &repository.ContactStats{
		ByStatus:   map[string]int{},
		ByCategory: map[string]int{},
		ByPriority: map[string]int{},
	}
	for _, c := range r.contacts {
		stats.Total++
		stats.ByStatus[string(c.Status)]++
		stats.ByCategory[string(c.Category)]++
		stats.ByPriority[string(c.Priority)]++
	}
	return stats, nil
}

type TaskRepository struct {
	mu    sync.RWMutex
	tasks []models.Task
}

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{}
}

func (r *TaskRepository) Create(_ context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks = append(r.tasks, *task)
	return nil
}

func (r *TaskRepository) ListByCreator(_ context.Context, createdBy uuid.UUID) ([]*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := []*models.Task{}
	for _, t := range r.tasks {
		if t.CreatedBy == createdBy {
			tasks = append(tasks, &t)
		}
	}
	slices.SortStableFunc(tasks, func(a, b *models.Task) int { return a.Date.Compare(b.Date) })
	return tasks, nil
}
