package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"lifetrack/internal/models"
	"lifetrack/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAnalysisService_ProcessCompletes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("Your hemoglobin is within the normal range."))
	patient := env.addUser(t, models.RolePatient, nil)
	path := env.writeFile(t, "panel.txt", "Hemoglobin 14.1 g/dL")
	report := env.addReport(t, patient, path, models.AIStatusPending, nil)

	err := env.analysis.Process(context.Background(), AnalysisJob{
		Kind: RecordReport, RecordID: report.ID, FilePath: path, Mode: ModeStandard,
	})
	require.NoError(t, err)

	ai := env.reportAI(t, report.ID)
	assert.Equal(t, models.AIStatusCompleted, ai.AIStatus)
	require.NotNil(t, ai.AIDescription)
	assert.Equal(t, "Your hemoglobin is within the normal range.", *ai.AIDescription)
	assert.NotNil(t, ai.AIAnalyzedAt)

	calls := env.model.calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "Hemoglobin 14.1 g/dL")
	assert.Equal(t, 1000, calls[0].MaxTokens)
}

func TestAnalysisService_ProcessRecordsModelFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, failing(ErrQuotaExceeded))
	patient := env.addUser(t, models.RolePatient, nil)
	path := env.writeFile(t, "panel.txt", "Glucose 180 mg/dL")
	report := env.addReport(t, patient, path, models.AIStatusPending, nil)

	err := env.analysis.Process(context.Background(), AnalysisJob{Kind: RecordReport, RecordID: report.ID, FilePath: path})
	require.NoError(t, err, "model failures are recorded, not returned")

	ai := env.reportAI(t, report.ID)
	assert.Equal(t, models.AIStatusFailed, ai.AIStatus)
	assert.Nil(t, ai.AIDescription)
}

func TestAnalysisService_ProcessMissingFileFails(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("unused"))
	patient := env.addUser(t, models.RolePatient, nil)
	report := env.addReport(t, patient, env.files.Dir()+"/gone.pdf", models.AIStatusPending, nil)

	require.NoError(t, env.analysis.Process(context.Background(), AnalysisJob{Kind: RecordReport, RecordID: report.ID, FilePath: report.FilePath}))

	assert.Equal(t, models.AIStatusFailed, env.reportAI(t, report.ID).AIStatus)
	assert.Empty(t, env.model.calls())
}

func TestAnalysisService_ProcessSkipsFinishedRecord(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("fresh"))
	patient := env.addUser(t, models.RolePatient, nil)
	path := env.writeFile(t, "panel.txt", "x")
	done := time.Now()
	report := env.addReport(t, patient, path, models.AIStatusCompleted, &done)

	require.NoError(t, env.analysis.Process(context.Background(), AnalysisJob{Kind: RecordReport, RecordID: report.ID, FilePath: path}))

	assert.Empty(t, env.model.calls())
	assert.Equal(t, models.AIStatusCompleted, env.reportAI(t, report.ID).AIStatus)
}

func TestAnalysisService_ProcessDeletedRecord(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("fresh"))
	patient := env.addUser(t, models.RolePatient, nil)
	report := env.addReport(t, patient, env.writeFile(t, "panel.txt", "x"), models.AIStatusPending, nil)
	require.NoError(t, env.reports.Delete(context.Background(), report.ID))

	assert.NoError(t, env.analysis.Process(context.Background(), AnalysisJob{Kind: RecordReport, RecordID: report.ID, FilePath: report.FilePath}))
	assert.Empty(t, env.model.calls())
}

func TestAnalysisService_ProcessExtractMode(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("```json\n{\"vitals\":{\"heart_rate\":72},\"medications\":[\"Metformin\"],\"summary\":\"Stable\"}\n```"))
	patient := env.addUser(t, models.RolePatient, nil)
	path := env.writeFile(t, "panel.txt", "HR 72")
	report := env.addReport(t, patient, path, models.AIStatusPending, nil)

	require.NoError(t, env.analysis.Process(context.Background(), AnalysisJob{
		Kind: RecordReport, RecordID: report.ID, FilePath: path, Mode: ModeExtract,
	}))

	ai := env.reportAI(t, report.ID)
	require.Equal(t, models.AIStatusCompleted, ai.AIStatus)
	require.NotNil(t, ai.AIDescription)

	var stored MedicalExtraction
	require.NoError(t, json.Unmarshal([]byte(*ai.AIDescription), &stored))
	assert.Equal(t, "72", stored.Vitals.HeartRate)
	assert.Equal(t, []string{"Metformin"}, stored.Medications)
	assert.Equal(t, "Stable", stored.Summary)
}

func TestAnalysisService_ProcessMalformedExtractionFails(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("Sorry, I cannot read this report."))
	patient := env.addUser(t, models.RolePatient, nil)
	path := env.writeFile(t, "panel.txt", "HR 72")
	report := env.addReport(t, patient, path, models.AIStatusPending, nil)

	require.NoError(t, env.analysis.Process(context.Background(), AnalysisJob{
		Kind: RecordReport, RecordID: report.ID, FilePath: path, Mode: ModeExtract,
	}))

	ai := env.reportAI(t, report.ID)
	assert.Equal(t, models.AIStatusFailed, ai.AIStatus)
	assert.Nil(t, ai.AIDescription)
}

func TestAnalysisService_EnqueuePicksContextMode(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	patient := env.addUser(t, models.RolePatient, nil)
	path := env.writeFile(t, "panel.txt", "x")
	report := env.addReport(t, patient, path, models.AIStatusPending, nil)
	env.start(t)

	id, err := env.analysis.Enqueue(AnalysisJob{
		Kind: RecordReport, RecordID: report.ID, FilePath: path,
		Context: &PatientContext{Age: "54", MedicalHistory: "Type 2 diabetes"},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		info, ok := env.queue.Status(id)
		return ok && info.State == queue.StateSucceeded
	}, waitFor, 5*time.Millisecond)

	calls := env.model.calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "Patient Age: 54")
	assert.Contains(t, calls[0].Prompt, "Patient Gender: Not specified")
	assert.Equal(t, 1500, calls[0].MaxTokens)
}

func TestAnalysisService_ConcurrentRetryHasOneWinner(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	patient := env.addUser(t, models.RolePatient, nil)
	path := env.writeFile(t, "panel.txt", "x")
	failedAt := time.Now()
	report := env.addReport(t, patient, path, models.AIStatusFailed, &failedAt)

	const callers = 16
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.analysis.Retry(context.Background(), AnalysisJob{Kind: RecordReport, RecordID: report.ID, FilePath: path})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, ErrInvalidState):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, callers-1, rejected)
	assert.Equal(t, models.AIStatusPending, env.reportAI(t, report.ID).AIStatus)
}

func TestAnalysisService_RetryRequiresFailed(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	patient := env.addUser(t, models.RolePatient, nil)
	report := env.addReport(t, patient, env.writeFile(t, "panel.txt", "x"), models.AIStatusProcessing, nil)

	_, err := env.analysis.Retry(context.Background(), AnalysisJob{Kind: RecordReport, RecordID: report.ID})
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, models.AIStatusProcessing, env.reportAI(t, report.ID).AIStatus)
}

func TestAnalysisService_RetryRevertsWhenQueueIsFull(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	env.queue = queue.New(queue.Config{BufferSize: 1}, zap.NewNop())
	env.queue.Register("filler", func(context.Context, any) error { return nil })
	env.analysis.queue = env.queue
	env.queue.Register(TaskKindAnalysis, env.analysis.handle)

	_, err := env.queue.Submit(queue.Task{Kind: "filler"})
	require.NoError(t, err)

	patient := env.addUser(t, models.RolePatient, nil)
	report := env.addReport(t, patient, env.writeFile(t, "panel.txt", "x"), models.AIStatusFailed, nil)

	_, err = env.analysis.Retry(context.Background(), AnalysisJob{Kind: RecordReport, RecordID: report.ID})
	assert.ErrorIs(t, err, queue.ErrFull)
	assert.Equal(t, models.AIStatusFailed, env.reportAI(t, report.ID).AIStatus, "status must be restored for a later retry")
}

func TestAnalysisService_CleanupStale(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	patient := env.addUser(t, models.RolePatient, nil)
	path := env.writeFile(t, "panel.txt", "x")

	old := time.Now().Add(-45 * 24 * time.Hour)
	recent := time.Now().Add(-time.Hour)
	stale := env.addReport(t, patient, path, models.AIStatusCompleted, &old)
	fresh := env.addReport(t, patient, path, models.AIStatusCompleted, &recent)

	result, err := env.analysis.CleanupStale(context.Background(), 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Reports)
	assert.Zero(t, result.Uploads)

	assert.Equal(t, models.AIStatusPending, env.reportAI(t, stale.ID).AIStatus)
	assert.Equal(t, models.AIStatusCompleted, env.reportAI(t, fresh.ID).AIStatus)

	_, err = env.analysis.CleanupStale(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAnalysisService_BatchProcess(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	patient := env.addUser(t, models.RolePatient, nil)
	path := env.writeFile(t, "panel.txt", "x")

	env.addReport(t, patient, path, models.AIStatusPending, nil)
	interrupted := env.addReport(t, patient, path, models.AIStatusProcessing, nil)
	done := time.Now()
	env.addReport(t, patient, path, models.AIStatusCompleted, &done)

	// an upload still waiting for its file is not analyzed
	_, err := env.upload.Initialize(context.Background(), patient, InitializeUploadInput{Title: "Pending"})
	require.NoError(t, err)

	result, err := env.analysis.BatchProcess(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Queued)
	assert.Zero(t, result.Failed)
	assert.Len(t, result.Tasks, 2)
	assert.Equal(t, models.AIStatusPending, env.reportAI(t, interrupted.ID).AIStatus, "interrupted analysis is reset before requeue")
}

func TestAnalysisService_ProcessSkipsRunningRecord(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	patient := env.addUser(t, models.RolePatient, nil)
	path := env.writeFile(t, "panel.txt", "x")
	report := env.addReport(t, patient, path, models.AIStatusProcessing, nil)

	require.NoError(t, env.analysis.Process(context.Background(), AnalysisJob{Kind: RecordReport, RecordID: report.ID, FilePath: path}))

	assert.Empty(t, env.model.calls())
	assert.Equal(t, models.AIStatusProcessing, env.reportAI(t, report.ID).AIStatus)
}

func TestAnalysisService_BatchDuringAnalysisKeepsOneCall(t *testing.T) {
	t.Parallel()

	started := make(chan struct{}, 4)
	release := make(chan struct{})
	var (
		mu       sync.Mutex
		inFlight int
		peak     int
	)
	model := newFakeModel(func(VisionRequest) (*Completion, error) {
		mu.Lock()
		inFlight++
		peak = max(peak, inFlight)
		mu.Unlock()

		started <- struct{}{}
		<-release

		mu.Lock()
		inFlight--
		mu.Unlock()
		return &Completion{Content: "Stable."}, nil
	})

	env := newTestEnv(t, model)
	env.start(t)
	patient := env.addUser(t, models.RolePatient, nil)
	path := env.writeFile(t, "panel.txt", "x")
	report := env.addReport(t, patient, path, models.AIStatusPending, nil)
	ctx := context.Background()

	first, err := env.analysis.BatchProcess(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, 1, first.Queued)

	select {
	case <-started:
	case <-time.After(waitFor):
		t.Fatal("analysis did not start")
	}
	require.Equal(t, models.AIStatusProcessing, env.reportAI(t, report.ID).AIStatus)

	second, err := env.analysis.BatchProcess(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, second.Queued, "a running analysis is not queued again")

	retried, err := env.analysis.Enqueue(AnalysisJob{Kind: RecordReport, RecordID: report.ID, FilePath: path})
	require.NoError(t, err)
	assert.Equal(t, first.Tasks[0], retried)

	close(release)
	require.Eventually(t, func() bool {
		return env.reportAI(t, report.ID).AIStatus == models.AIStatusCompleted
	}, waitFor, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, peak)
	assert.Len(t, env.model.calls(), 1)
}
