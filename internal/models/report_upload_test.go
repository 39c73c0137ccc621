package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUpload(t *testing.T) (*ReportUpload, time.Time) {
	t.Helper()
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return NewReportUpload(uuid.New(), uuid.New(), start), start
}

func TestNewReportUpload(t *testing.T) {
	t.Parallel()

	u, start := newUpload(t)

	assert.Equal(t, UploadStatusUploading, u.Status)
	assert.Zero(t, u.Progress)
	assert.Equal(t, DefaultMaxRetries, u.MaxRetries)
	assert.Equal(t, AIStatusPending, u.AIStatus)
	assert.Equal(t, start, u.ProcessingStartedAt)
	assert.Nil(t, u.ProcessingCompletedAt)
}

func TestReportUpload_SetProgress(t *testing.T) {
	t.Parallel()

	u, _ := newUpload(t)

	require.NoError(t, u.SetProgress(50))
	require.NoError(t, u.SetProgress(50))
	assert.ErrorIs(t, u.SetProgress(10), ErrProgressRegression)
	assert.Equal(t, 50, u.Progress)

	assert.ErrorIs(t, u.SetProgress(101), ErrInvalidProgress)
	assert.ErrorIs(t, u.SetProgress(-1), ErrInvalidProgress)

	u.MarkFailed("boom", time.Now())
	assert.ErrorIs(t, u.SetProgress(60), ErrUploadNotInProgress)
	assert.Equal(t, 50, u.Progress)
}

func TestReportUpload_MarkCompleted(t *testing.T) {
	t.Parallel()

	u, start := newUpload(t)
	require.NoError(t, u.SetProgress(50))

	done := start.Add(2500 * time.Millisecond)
	u.MarkCompleted(done)

	assert.Equal(t, UploadStatusCompleted, u.Status)
	assert.Equal(t, 100, u.Progress)
	require.NotNil(t, u.ProcessingCompletedAt)
	assert.Equal(t, done, *u.ProcessingCompletedAt)
	require.NotNil(t, u.ProcessingDurationMs)
	assert.Equal(t, int64(2500), *u.ProcessingDurationMs)
}

func TestReportUpload_MarkFailedFreezesProgress(t *testing.T) {
	t.Parallel()

	u, start := newUpload(t)
	require.NoError(t, u.SetProgress(50))

	u.MarkFailed("Invalid file type", start.Add(time.Second))

	assert.Equal(t, UploadStatusFailed, u.Status)
	assert.Equal(t, 50, u.Progress)
	assert.Equal(t, "Invalid file type", u.ErrorMessage)
	assert.NotNil(t, u.ProcessingCompletedAt)
}

func TestReportUpload_Retry(t *testing.T) {
	t.Parallel()

	u, start := newUpload(t)

	assert.ErrorIs(t, u.Retry(start), ErrNotRetryable, "uploading record cannot be retried")

	for i := 1; i <= DefaultMaxRetries; i++ {
		u.FilePath = "/uploads/scan.pdf"
		u.FileName = "scan.pdf"
		u.IsValidFile = true
		u.MarkFailed("File size too large", start)
		require.True(t, u.CanRetry())

		retryAt := start.Add(time.Duration(i) * time.Minute)
		require.NoError(t, u.Retry(retryAt))

		assert.Equal(t, i, u.RetryCount)
		assert.Equal(t, UploadStatusUploading, u.Status)
		assert.Zero(t, u.Progress)
		assert.Empty(t, u.ErrorMessage)
		assert.Equal(t, retryAt, u.ProcessingStartedAt)
		assert.Nil(t, u.ProcessingCompletedAt)
		assert.False(t, u.IsValidFile, "a retried attempt needs a new file")
		assert.Empty(t, u.FilePath)
		assert.Empty(t, u.FileName)
	}

	u.MarkFailed("File size too large", start)
	before := *u

	assert.False(t, u.CanRetry())
	assert.ErrorIs(t, u.Retry(start), ErrMaxRetriesExceeded)
	assert.Equal(t, before, *u, "record must be unchanged after rejected retry")
	assert.LessOrEqual(t, u.RetryCount, u.MaxRetries)
}

func TestReportUpload_CompletedCannotRetry(t *testing.T) {
	t.Parallel()

	u, start := newUpload(t)
	u.MarkCompleted(start)

	assert.ErrorIs(t, u.Retry(start), ErrNotRetryable)
}
