package service

import (
	"context"
	"strings"
	"time"

	"lifetrack/internal/models"
	"lifetrack/internal/queue"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// taskDateLayouts are the accepted calendar date formats.
var taskDateLayouts = []string{time.RFC3339, "2006-01-02T15:04", time.DateOnly}

func parseTaskDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range taskDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, invalidInput("date must be an ISO 8601 date")
}

// TaskService manages calendar tasks and exposes background queue status.
type TaskService struct {
	tasks  TaskRepository
	queue  TaskQueue
	logger *zap.Logger
}

func NewTaskService(tasks TaskRepository, q TaskQueue, logger *zap.Logger) *TaskService {
	return &TaskService{
		tasks:  tasks,
		queue:  q,
		logger: logger,
	}
}

func (s *TaskService) Create(ctx context.Context, actor Actor, title, date string) (*models.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(date) == "" {
		return nil, invalidInput("Title and date are required")
	}

	at, err := parseTaskDate(date)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		ID:        uuid.New(),
		Title:     title,
		Date:      at,
		CreatedBy: actor.ID,
		CreatedAt: time.Now(),
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *TaskService) List(ctx context.Context, actor Actor) ([]*models.Task, error) {
	return s.tasks.ListByCreator(ctx, actor.ID)
}

// QueueStatus reports the state of a background task.
func (s *TaskService) QueueStatus(id string) (queue.Info, error) {
	info, ok := s.queue.Status(id)
	if !ok {
		return queue.Info{}, ErrNotFound
	}
	return info, nil
}
