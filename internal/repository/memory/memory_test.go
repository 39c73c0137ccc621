package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lifetrack/internal/models"
	"lifetrack/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadRepository_UpdateChecksVersion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewUploadRepository()

	u := models.NewReportUpload(uuid.New(), uuid.New(), time.Now())
	require.NoError(t, repo.Create(ctx, u))

	first, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)

	require.NoError(t, first.SetProgress(50))
	require.NoError(t, repo.Update(ctx, first))
	assert.Equal(t, 1, first.Version)

	second.MarkFailed("stale writer", time.Now())
	assert.ErrorIs(t, repo.Update(ctx, second), repository.ErrConflict)

	stored, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, stored.Progress)
	assert.Equal(t, models.UploadStatusUploading, stored.Status)

	missing := models.NewReportUpload(uuid.New(), uuid.New(), time.Now())
	assert.ErrorIs(t, repo.Update(ctx, missing), repository.ErrNotFound)
}

func TestUploadRepository_UpdateKeepsAnalysis(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewUploadRepository()

	u := models.NewReportUpload(uuid.New(), uuid.New(), time.Now())
	require.NoError(t, repo.Create(ctx, u))

	text := "all good"
	ok, err := repo.TransitionAI(ctx, u.ID, repository.AITransition{
		From:        []models.AIStatus{models.AIStatusPending},
		To:          models.AIStatusCompleted,
		Description: &text,
	})
	require.NoError(t, err)
	require.True(t, ok)

	u.MarkCompleted(time.Now())
	require.NoError(t, repo.Update(ctx, u))

	stored, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AIStatusCompleted, stored.AIStatus)
	require.NotNil(t, stored.AIDescription)
	assert.Equal(t, "all good", *stored.AIDescription)
}

func TestReportRepository_TransitionAIIsAtomic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewReportRepository()

	report := &models.Report{ID: uuid.New(), AIAnalysis: models.AIAnalysis{AIStatus: models.AIStatusFailed}}
	require.NoError(t, repo.Create(ctx, report))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.TransitionAI(ctx, report.ID, repository.AITransition{
				From: []models.AIStatus{models.AIStatusFailed},
				To:   models.AIStatusPending,
			})
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())

	ok, err := repo.TransitionAI(ctx, uuid.New(), repository.AITransition{
		From: []models.AIStatus{models.AIStatusFailed},
		To:   models.AIStatusPending,
	})
	require.NoError(t, err)
	assert.False(t, ok, "missing record is an update miss")
}

func TestReportRepository_ResetStaleAnalyses(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewReportRepository()

	old := time.Now().Add(-40 * 24 * time.Hour)
	recent := time.Now()
	text := "done"

	stale := &models.Report{ID: uuid.New(), AIAnalysis: models.AIAnalysis{AIStatus: models.AIStatusCompleted, AIDescription: &text, AIAnalyzedAt: &old}}
	fresh := &models.Report{ID: uuid.New(), AIAnalysis: models.AIAnalysis{AIStatus: models.AIStatusCompleted, AIDescription: &text, AIAnalyzedAt: &recent}}
	running := &models.Report{ID: uuid.New(), AIAnalysis: models.AIAnalysis{AIStatus: models.AIStatusProcessing, AIAnalyzedAt: &old}}
	for _, r := range []*models.Report{stale, fresh, running} {
		require.NoError(t, repo.Create(ctx, r))
	}

	n, err := repo.ResetStaleAnalyses(ctx, time.Now().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AIStatusPending, got.AIStatus)
	assert.Nil(t, got.AIDescription)

	got, err = repo.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AIStatusCompleted, got.AIStatus)
}

func TestUploadRepository_ListAndStats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewUploadRepository()
	owner := uuid.New()
	base := time.Now()

	for i := range 5 {
		u := models.NewReportUpload(owner, owner, base.Add(time.Duration(i)*time.Second))
		u.FileSize = 100
		if i%2 == 0 {
			u.MarkFailed("x", base)
		}
		require.NoError(t, repo.Create(ctx, u))
	}
	require.NoError(t, repo.Create(ctx, models.NewReportUpload(uuid.New(), uuid.New(), base)))

	page, total, err := repo.List(ctx, repository.UploadFilter{UploadedBy: &owner, Page: repository.Page{Page: 1, Limit: 2}})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	stats, err := repo.Stats(ctx, repository.UploadFilter{UploadedBy: &owner})
	require.NoError(t, err)
	assert.Equal(t, []repository.UploadStatusStat{
		{Status: models.UploadStatusFailed, Count: 3, TotalSize: 300},
		{Status: models.UploadStatusUploading, Count: 2, TotalSize: 200},
	}, stats)
}

func TestUserRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewUserRepository()
	caregiver := uuid.New()

	u := &models.User{ID: uuid.New(), Email: "p@x.io", Role: models.RolePatient, CaregiverID: &caregiver}
	require.NoError(t, repo.Create(ctx, u))
	assert.ErrorIs(t, repo.Create(ctx, &models.User{ID: uuid.New(), Email: "p@x.io"}), repository.ErrDuplicate)

	got, err := repo.GetByEmail(ctx, "p@x.io")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = repo.GetByEmail(ctx, "missing@x.io")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	ids, err := repo.PatientIDs(ctx, caregiver)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{u.ID}, ids)

	ids, err = repo.PatientIDs(ctx, uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}
