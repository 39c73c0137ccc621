package service

import (
	"context"
	"testing"
	"time"

	"lifetrack/internal/models"
	"lifetrack/internal/queue"
	"lifetrack/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseTaskDate(t *testing.T) {
	t.Parallel()

	cases := map[string]time.Time{
		"2026-05-01":                 time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		"2026-05-01T09:30":           time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC),
		"2026-05-01T09:30:00Z":       time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC),
		" 2026-05-01T09:30:00+00:00": time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC),
	}
	for in, want := range cases {
		got, err := parseTaskDate(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}

	_, err := parseTaskDate("next tuesday")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestTaskService_CreateAndList(t *testing.T) {
	t.Parallel()

	q := queue.New(queue.Config{}, zap.NewNop())
	svc := NewTaskService(memory.NewTaskRepository(), q, zap.NewNop())
	me := Actor{ID: uuid.New(), Role: models.RolePatient}
	other := Actor{ID: uuid.New(), Role: models.RolePatient}
	ctx := context.Background()

	_, err := svc.Create(ctx, me, "  ", "2026-05-01")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Create(ctx, me, "Blood test", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	later, err := svc.Create(ctx, me, "Cardiology follow-up", "2026-06-10")
	require.NoError(t, err)
	sooner, err := svc.Create(ctx, me, " Blood test ", "2026-05-01T08:00")
	require.NoError(t, err)
	assert.Equal(t, "Blood test", sooner.Title)
	_, err = svc.Create(ctx, other, "Not mine", "2026-05-02")
	require.NoError(t, err)

	tasks, err := svc.List(ctx, me)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, sooner.ID, tasks[0].ID, "ordered by date")
	assert.Equal(t, later.ID, tasks[1].ID)
}

func TestTaskService_QueueStatus(t *testing.T) {
	t.Parallel()

	q := queue.New(queue.Config{}, zap.NewNop())
	q.Register("noop", func(context.Context, any) error { return nil })
	svc := NewTaskService(memory.NewTaskRepository(), q, zap.NewNop())

	id, err := q.Submit(queue.Task{Kind: "noop"})
	require.NoError(t, err)

	info, err := svc.QueueStatus(id)
	require.NoError(t, err)
	assert.Equal(t, queue.StateQueued, info.State)
	assert.Equal(t, "noop", info.Kind)

	_, err = svc.QueueStatus("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
