package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"lifetrack/internal/models"
	"lifetrack/internal/queue"
	"lifetrack/internal/repository/memory"
	"lifetrack/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const waitFor = 3 * time.Second

// fakeModel records requests and answers with respond.
type fakeModel struct {
	mu         sync.Mutex
	requests   []VisionRequest
	respond    func(req VisionRequest) (*Completion, error)
	acceptsPDF bool
}

func newFakeModel(respond func(req VisionRequest) (*Completion, error)) *fakeModel {
	return &fakeModel{respond: respond}
}

func answering(content string) *fakeModel {
	return newFakeModel(func(VisionRequest) (*Completion, error) {
		return &Completion{Content: content, Model: "fake-vision", Usage: Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}}, nil
	})
}

func failing(err error) *fakeModel {
	return newFakeModel(func(VisionRequest) (*Completion, error) { return nil, err })
}

func (m *fakeModel) Complete(_ context.Context, req VisionRequest) (*Completion, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	respond := m.respond
	m.mu.Unlock()
	return respond(req)
}

func (m *fakeModel) AcceptsPDF() bool { return m.acceptsPDF }

func (m *fakeModel) Name() string { return "fake" }

func (m *fakeModel) calls() []VisionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]VisionRequest(nil), m.requests...)
}

type testEnv struct {
	users    *memory.UserRepository
	reports  *memory.ReportRepository
	uploads  *memory.UploadRepository
	files    *storage.LocalStore
	queue    *queue.Queue
	model    *fakeModel
	analysis *AnalysisService
	upload   *UploadService
	report   *ReportService
	ai       *AIService
}

func newTestEnv(t *testing.T, model *fakeModel) *testEnv {
	t.Helper()

	files, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	logger := zap.NewNop()
	env := &testEnv{
		users:   memory.NewUserRepository(),
		reports: memory.NewReportRepository(),
		uploads: memory.NewUploadRepository(),
		files:   files,
		queue: queue.New(queue.Config{
			Workers:      2,
			MaxAttempts:  3,
			RetryBackoff: 5 * time.Millisecond,
		}, logger),
		model: model,
	}

	analyzer := NewAnalyzer(model, NewDocumentPreparer(64, 2), time.Second, logger)
	env.analysis = NewAnalysisService(analyzer, env.reports, env.uploads, env.queue, memory.Transactor{}, logger)
	env.upload = NewUploadService(env.uploads, env.users, files, env.queue, env.analysis, UploadConfig{
		MaxFileSize:     1 << 20,
		ProcessingDelay: 10 * time.Millisecond,
	}, logger)
	env.report = NewReportService(env.reports, env.users, files, env.analysis, 1<<20, logger)
	env.ai = NewAIService(analyzer, env.reports, files, 1<<20, logger)

	return env
}

// start runs the queue workers until the test ends.
func (e *testEnv) start(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.queue.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(waitFor):
			t.Error("queue did not stop")
		}
	})
}

func (e *testEnv) addUser(t *testing.T, role models.Role, caregiverID *uuid.UUID) Actor {
	t.Helper()

	now := time.Now()
	u := &models.User{
		ID:          uuid.New(),
		FirstName:   "Test",
		LastName:    string(role),
		Email:       uuid.NewString() + "@example.com",
		Role:        role,
		CaregiverID: caregiverID,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	return Actor{ID: u.ID, Role: role}
}

// writeFile stores content inside the upload directory and returns its path.
func (e *testEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(e.files.Dir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// addReport creates a report owned by patient with the given analysis state.
func (e *testEnv) addReport(t *testing.T, patient Actor, path string, status models.AIStatus, analyzedAt *time.Time) *models.Report {
	t.Helper()

	now := time.Now()
	r := &models.Report{
		ID:         uuid.New(),
		PatientID:  patient.ID,
		UploadedBy: patient.ID,
		Title:      "Blood Panel",
		ReportType: models.ReportTypeLab,
		FilePath:   path,
		FileName:   filepath.Base(path),
		FileType:   MIMETypeFor(path),
		Tags:       []string{},
		Status:     models.ReviewStatusPending,
		AIAnalysis: models.AIAnalysis{AIStatus: status, AIAnalyzedAt: analyzedAt},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, e.reports.Create(context.Background(), r))
	return r
}

func textFile(name, content string) IncomingFile {
	return IncomingFile{
		Name:     name,
		MIMEType: "text/plain",
		Size:     int64(len(content)),
		Content:  strings.NewReader(content),
	}
}

func (e *testEnv) reportAI(t *testing.T, id uuid.UUID) models.AIAnalysis {
	t.Helper()

	r, err := e.reports.GetByID(context.Background(), id)
	require.NoError(t, err)
	return r.AIAnalysis
}

func (e *testEnv) uploadRecord(t *testing.T, id uuid.UUID) *models.ReportUpload {
	t.Helper()

	u, err := e.uploads.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}
