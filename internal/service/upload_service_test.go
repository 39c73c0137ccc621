package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"lifetrack/internal/models"
	"lifetrack/internal/queue"
	"lifetrack/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadService_Initialize(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	caregiver := env.addUser(t, models.RoleCaregiver, nil)
	patient := env.addUser(t, models.RolePatient, &caregiver.ID)

	u, err := env.upload.Initialize(context.Background(), patient, InitializeUploadInput{
		Title: "Blood Panel",
		Tags:  "blood, annual ,,",
	})
	require.NoError(t, err)

	assert.Equal(t, models.UploadStatusUploading, u.Status)
	assert.Zero(t, u.Progress)
	assert.Equal(t, models.ReportTypeOther, u.ReportType)
	assert.Equal(t, models.CategoryMedical, u.Category)
	assert.Equal(t, []string{"blood", "annual"}, u.Tags)
	require.NotNil(t, u.CaregiverID)
	assert.Equal(t, caregiver.ID, *u.CaregiverID)

	_, err = env.upload.Initialize(context.Background(), patient, InitializeUploadInput{ReportType: "x-ray"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.upload.Initialize(context.Background(), patient, InitializeUploadInput{Category: "secret"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUploadService_Lifecycle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("All values are normal."))
	env.start(t)
	patient := env.addUser(t, models.RolePatient, nil)
	ctx := context.Background()

	u, err := env.upload.Initialize(ctx, patient, InitializeUploadInput{Title: "Blood Panel", ReportType: "lab_report"})
	require.NoError(t, err)

	res, err := env.upload.AttachFile(ctx, patient, u.ID, textFile("panel.txt", "Hemoglobin 14.1 g/dL"))
	require.NoError(t, err)
	assert.Equal(t, 50, res.Upload.Progress)
	assert.Equal(t, models.UploadStatusUploading, res.Upload.Status)
	assert.True(t, res.Upload.IsValidFile)
	assert.NotEmpty(t, res.TaskID)
	assert.True(t, env.files.Exists(res.Upload.FilePath))

	require.Eventually(t, func() bool {
		got := env.uploadRecord(t, u.ID)
		return got.Status == models.UploadStatusCompleted && got.AIStatus == models.AIStatusCompleted
	}, waitFor, 10*time.Millisecond)

	got := env.uploadRecord(t, u.ID)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.ProcessingDurationMs)
	assert.GreaterOrEqual(t, *got.ProcessingDurationMs, int64(0))
	require.NotNil(t, got.AIDescription)
	assert.Equal(t, "All values are normal.", *got.AIDescription)

	_, err = env.upload.AttachFile(ctx, patient, u.ID, textFile("again.txt", "x"))
	assert.ErrorIs(t, err, ErrInvalidState, "completed uploads take no new file")
}

func TestUploadService_RejectsInvalidFileType(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	patient := env.addUser(t, models.RolePatient, nil)
	ctx := context.Background()

	u, err := env.upload.Initialize(ctx, patient, InitializeUploadInput{Title: "Scan"})
	require.NoError(t, err)

	_, err = env.upload.AttachFile(ctx, patient, u.ID, IncomingFile{
		Name: "setup.exe", MIMEType: "application/x-msdownload", Size: 10, Content: strings.NewReader("MZ"),
	})
	assert.ErrorIs(t, err, ErrInvalidFileType)

	got := env.uploadRecord(t, u.ID)
	assert.Equal(t, models.UploadStatusFailed, got.Status)
	assert.Equal(t, "Invalid file type", got.ErrorMessage)
	assert.Zero(t, got.Progress)
}

func TestUploadService_RejectsOversizedFile(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	patient := env.addUser(t, models.RolePatient, nil)
	ctx := context.Background()

	u, err := env.upload.Initialize(ctx, patient, InitializeUploadInput{Title: "Scan"})
	require.NoError(t, err)

	// the declared size is small but the body exceeds the limit
	body := strings.Repeat("a", 2<<20)
	_, err = env.upload.AttachFile(ctx, patient, u.ID, IncomingFile{
		Name: "big.txt", MIMEType: "text/plain", Size: 10, Content: strings.NewReader(body),
	})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	got := env.uploadRecord(t, u.ID)
	assert.Equal(t, models.UploadStatusFailed, got.Status)
	assert.Equal(t, "File size too large", got.ErrorMessage)
}

func TestUploadService_RejectOversized(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	patient := env.addUser(t, models.RolePatient, nil)
	stranger := env.addUser(t, models.RolePatient, nil)
	ctx := context.Background()

	u, err := env.upload.Initialize(ctx, patient, InitializeUploadInput{Title: "Scan"})
	require.NoError(t, err)

	assert.ErrorIs(t, env.upload.RejectOversized(ctx, stranger, u.ID), ErrForbidden)
	assert.Equal(t, models.UploadStatusUploading, env.uploadRecord(t, u.ID).Status)

	err = env.upload.RejectOversized(ctx, patient, u.ID)
	require.ErrorIs(t, err, ErrFileTooLarge)
	var limit *SizeLimitError
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, int64(1<<20), limit.Limit)

	got := env.uploadRecord(t, u.ID)
	assert.Equal(t, models.UploadStatusFailed, got.Status)
	assert.Equal(t, "File size too large", got.ErrorMessage)

	assert.ErrorIs(t, env.upload.RejectOversized(ctx, patient, u.ID), ErrInvalidState, "a failed upload is not rejected twice")
}

func TestUploadService_RetryIsBounded(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	patient := env.addUser(t, models.RolePatient, nil)
	ctx := context.Background()

	u, err := env.upload.Initialize(ctx, patient, InitializeUploadInput{Title: "Scan"})
	require.NoError(t, err)

	_, err = env.upload.Retry(ctx, patient, u.ID)
	assert.ErrorIs(t, err, ErrNotRetryable, "an upload in progress is not retried")

	bad := func() IncomingFile {
		return IncomingFile{Name: "a.exe", MIMEType: "application/x-msdownload", Size: 1, Content: strings.NewReader("x")}
	}

	for i := 1; i <= models.DefaultMaxRetries; i++ {
		_, err = env.upload.AttachFile(ctx, patient, u.ID, bad())
		require.ErrorIs(t, err, ErrInvalidFileType)

		retried, err := env.upload.Retry(ctx, patient, u.ID)
		require.NoError(t, err)
		assert.Equal(t, i, retried.RetryCount)
		assert.Equal(t, models.UploadStatusUploading, retried.Status)
		assert.Zero(t, retried.Progress)
	}

	_, err = env.upload.AttachFile(ctx, patient, u.ID, bad())
	require.ErrorIs(t, err, ErrInvalidFileType)

	_, err = env.upload.Retry(ctx, patient, u.ID)
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)

	got := env.uploadRecord(t, u.ID)
	assert.Equal(t, models.UploadStatusFailed, got.Status)
	assert.Equal(t, models.DefaultMaxRetries, got.RetryCount)
}

func TestUploadService_StaleFinalizeAfterRetryIsNoop(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	// long enough for the reject and retry to land before the first finalize
	env.upload.cfg.ProcessingDelay = 200 * time.Millisecond
	env.start(t)
	patient := env.addUser(t, models.RolePatient, nil)
	ctx := context.Background()

	u, err := env.upload.Initialize(ctx, patient, InitializeUploadInput{Title: "Scan"})
	require.NoError(t, err)

	first, err := env.upload.AttachFile(ctx, patient, u.ID, textFile("a.txt", "first attempt"))
	require.NoError(t, err)
	firstPath := first.Upload.FilePath

	_, err = env.upload.AttachFile(ctx, patient, u.ID, IncomingFile{
		Name: "x.exe", MIMEType: "application/x-msdownload", Size: 2, Content: strings.NewReader("MZ"),
	})
	require.ErrorIs(t, err, ErrInvalidFileType)

	retried, err := env.upload.Retry(ctx, patient, u.ID)
	require.NoError(t, err)
	assert.False(t, retried.IsValidFile)
	assert.Empty(t, retried.FilePath)
	assert.False(t, env.files.Exists(firstPath), "the failed attempt's file is dropped")

	require.Eventually(t, func() bool {
		info, ok := env.queue.Status(first.TaskID)
		return ok && info.State == queue.StateSucceeded
	}, waitFor, 5*time.Millisecond)

	got := env.uploadRecord(t, u.ID)
	assert.Equal(t, models.UploadStatusUploading, got.Status, "no file was attached after the retry")
	assert.Zero(t, got.Progress)
	assert.Equal(t, models.AIStatusPending, got.AIStatus)
	assert.Empty(t, env.model.calls())

	second, err := env.upload.AttachFile(ctx, patient, u.ID, textFile("b.txt", "second attempt"))
	require.NoError(t, err)
	assert.NotEqual(t, first.TaskID, second.TaskID)

	require.Eventually(t, func() bool {
		return env.uploadRecord(t, u.ID).Status == models.UploadStatusCompleted
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, second.Upload.FilePath, env.uploadRecord(t, u.ID).FilePath)
}

func TestUploadService_FinalizeRequiresAttachedFile(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	patient := env.addUser(t, models.RolePatient, nil)
	ctx := context.Background()

	u, err := env.upload.Initialize(ctx, patient, InitializeUploadInput{Title: "Scan"})
	require.NoError(t, err)

	require.NoError(t, env.upload.finalize(ctx, finalizeJob{UploadID: u.ID}))
	assert.Equal(t, models.UploadStatusUploading, env.uploadRecord(t, u.ID).Status)
}

func TestUploadService_Access(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	owner := env.addUser(t, models.RolePatient, nil)
	stranger := env.addUser(t, models.RolePatient, nil)
	caregiver := env.addUser(t, models.RoleCaregiver, nil)
	ctx := context.Background()

	u, err := env.upload.Initialize(ctx, owner, InitializeUploadInput{Title: "Scan"})
	require.NoError(t, err)

	_, err = env.upload.Progress(ctx, stranger, u.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.upload.Progress(ctx, caregiver, u.ID)
	assert.NoError(t, err)

	_, err = env.upload.Progress(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = env.upload.ListAll(ctx, owner, UploadQuery{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUploadService_ListAndStats(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	alice := env.addUser(t, models.RolePatient, nil)
	bob := env.addUser(t, models.RolePatient, nil)
	admin := env.addUser(t, models.RoleAdmin, nil)
	ctx := context.Background()

	for range 3 {
		_, err := env.upload.Initialize(ctx, alice, InitializeUploadInput{Title: "A"})
		require.NoError(t, err)
	}
	b, err := env.upload.Initialize(ctx, bob, InitializeUploadInput{Title: "B"})
	require.NoError(t, err)
	_, err = env.upload.AttachFile(ctx, bob, b.ID, IncomingFile{Name: "x.exe", MIMEType: "application/x-msdownload", Size: 1, Content: strings.NewReader("x")})
	require.ErrorIs(t, err, ErrInvalidFileType)

	mine, total, err := env.upload.ListMine(ctx, alice, UploadQuery{Page: repository.Page{Page: 1, Limit: 2}})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, mine, 2)

	failed, total, err := env.upload.ListAll(ctx, admin, UploadQuery{Status: "failed"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, failed, 1)
	assert.Equal(t, b.ID, failed[0].ID)

	_, _, err = env.upload.ListAll(ctx, admin, UploadQuery{Status: "lost"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	own, err := env.upload.Stats(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 3, own.TotalUploads)

	all, err := env.upload.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 4, all.TotalUploads)
}

func TestUploadService_DeleteRemovesFile(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	patient := env.addUser(t, models.RolePatient, nil)
	ctx := context.Background()

	u, err := env.upload.Initialize(ctx, patient, InitializeUploadInput{Title: "Scan"})
	require.NoError(t, err)
	res, err := env.upload.AttachFile(ctx, patient, u.ID, textFile("panel.txt", "content"))
	require.NoError(t, err)
	require.True(t, env.files.Exists(res.Upload.FilePath))

	require.NoError(t, env.upload.Delete(ctx, patient, u.ID))

	assert.False(t, env.files.Exists(res.Upload.FilePath))
	_, err = env.upload.Progress(ctx, patient, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUploadService_FinalizeAfterDeleteIsNoop(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	assert.NoError(t, env.upload.finalize(context.Background(), finalizeJob{UploadID: uuid.New()}))
	assert.Empty(t, env.model.calls())
}

func TestUploadService_RetryAI(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, failing(ErrQuotaExceeded))
	patient := env.addUser(t, models.RolePatient, nil)
	ctx := context.Background()

	u, err := env.upload.Initialize(ctx, patient, InitializeUploadInput{Title: "Scan"})
	require.NoError(t, err)

	_, err = env.upload.RetryAI(ctx, patient, u.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidState, "no file and no failed analysis yet")

	res, err := env.upload.AttachFile(ctx, patient, u.ID, textFile("panel.txt", "content"))
	require.NoError(t, err)
	require.NoError(t, env.upload.finalize(ctx, finalizeJob{UploadID: u.ID}))
	require.NoError(t, env.analysis.Process(ctx, AnalysisJob{Kind: RecordUpload, RecordID: u.ID, FilePath: res.Upload.FilePath}))

	status, err := env.upload.AIStatus(ctx, patient, u.ID)
	require.NoError(t, err)
	require.Equal(t, models.AIStatusFailed, status.AIStatus)

	taskID, err := env.upload.RetryAI(ctx, patient, u.ID, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, taskID)
	assert.Equal(t, models.AIStatusPending, env.uploadRecord(t, u.ID).AIStatus)
}
