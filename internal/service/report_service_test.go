package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"lifetrack/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportService_Upload(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	caregiver := env.addUser(t, models.RoleCaregiver, nil)
	patient := env.addUser(t, models.RolePatient, &caregiver.ID)

	report, taskID, err := env.report.Upload(context.Background(), patient, UploadReportInput{
		Title:      "Chest X-Ray",
		ReportType: "imaging",
		Tags:       "xray,chest",
	}, textFile("xray.txt", "no abnormalities"))
	require.NoError(t, err)

	assert.NotEmpty(t, taskID)
	assert.True(t, strings.HasPrefix(report.FileURL, "/uploads/"))
	assert.Equal(t, "xray.txt", report.FileName)
	assert.Equal(t, models.ReportTypeImaging, report.ReportType)
	assert.Equal(t, models.ReviewStatusPending, report.Status)
	assert.Equal(t, models.AIStatusPending, report.AIStatus)
	assert.Equal(t, []string{"xray", "chest"}, report.Tags)
	require.NotNil(t, report.CaregiverID)
	assert.Equal(t, caregiver.ID, *report.CaregiverID)
	assert.True(t, env.files.Exists(report.FilePath))
}

func TestReportService_UploadValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	patient := env.addUser(t, models.RolePatient, nil)
	ctx := context.Background()

	_, _, err := env.report.Upload(ctx, patient, UploadReportInput{}, textFile("a.txt", "x"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = env.report.Upload(ctx, patient, UploadReportInput{Title: "A", ReportType: "horoscope"}, textFile("a.txt", "x"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = env.report.Upload(ctx, patient, UploadReportInput{Title: "A"}, IncomingFile{
		Name: "run.sh", MIMEType: "application/x-sh", Size: 1, Content: strings.NewReader("x"),
	})
	assert.ErrorIs(t, err, ErrInvalidFileType)

	_, _, err = env.report.Upload(ctx, patient, UploadReportInput{Title: "A"}, IncomingFile{
		Name: "big.txt", MIMEType: "text/plain", Size: 2 << 20, Content: strings.NewReader("x"),
	})
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestReportService_Listing(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	caregiver := env.addUser(t, models.RoleCaregiver, nil)
	mine := env.addUser(t, models.RolePatient, &caregiver.ID)
	other := env.addUser(t, models.RolePatient, nil)
	path := env.writeFile(t, "panel.txt", "x")
	ctx := context.Background()

	env.addReport(t, mine, path, models.AIStatusPending, nil)
	env.addReport(t, mine, path, models.AIStatusPending, nil)
	env.addReport(t, other, path, models.AIStatusPending, nil)

	own, total, err := env.report.ListMine(ctx, other, ReportQuery{PatientID: mine.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, 1, total, "the patient filter is ignored for own reports")
	assert.Equal(t, other.ID, own[0].PatientID)

	assigned, total, err := env.report.ListCaregiverPatients(ctx, caregiver, ReportQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, r := range assigned {
		assert.Equal(t, mine.ID, r.PatientID)
	}

	lonely := env.addUser(t, models.RoleCaregiver, nil)
	_, total, err = env.report.ListCaregiverPatients(ctx, lonely, ReportQuery{})
	require.NoError(t, err)
	assert.Zero(t, total, "a caregiver without patients sees nothing")

	_, total, err = env.report.ListAll(ctx, caregiver, ReportQuery{ReportType: "lab_report"})
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	_, _, err = env.report.ListAll(ctx, mine, ReportQuery{})
	assert.ErrorIs(t, err, ErrForbidden)

	_, _, err = env.report.ListAll(ctx, caregiver, ReportQuery{Status: "archived"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestReportService_UpdateStatus(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	patient := env.addUser(t, models.RolePatient, nil)
	caregiver := env.addUser(t, models.RoleCaregiver, nil)
	report := env.addReport(t, patient, env.writeFile(t, "panel.txt", "x"), models.AIStatusPending, nil)
	ctx := context.Background()

	_, err := env.report.UpdateStatus(ctx, patient, report.ID, ReviewInput{Status: "approved"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.report.UpdateStatus(ctx, caregiver, report.ID, ReviewInput{Status: "lost"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	updated, err := env.report.UpdateStatus(ctx, caregiver, report.ID, ReviewInput{Status: "reviewed", ReviewNotes: "Looks fine"})
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusReviewed, updated.Status)
	require.NotNil(t, updated.ReviewedBy)
	assert.Equal(t, caregiver.ID, *updated.ReviewedBy)

	stored, err := env.report.Get(ctx, patient, report.ID)
	require.NoError(t, err)
	assert.Equal(t, "Looks fine", stored.ReviewNotes)
	assert.NotNil(t, stored.ReviewDate)
}

func TestReportService_GetAccess(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	owner := env.addUser(t, models.RolePatient, nil)
	stranger := env.addUser(t, models.RolePatient, nil)
	report := env.addReport(t, owner, env.writeFile(t, "panel.txt", "x"), models.AIStatusPending, nil)
	ctx := context.Background()

	_, err := env.report.Get(ctx, stranger, report.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = env.report.Get(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, env.report.Delete(ctx, stranger, report.ID), ErrForbidden)
}

func TestReportService_OpenFile(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	patient := env.addUser(t, models.RolePatient, nil)
	content := []byte("Hemoglobin 14.1 g/dL\nGlucose 92 mg/dL\n")
	report, _, err := env.report.Upload(context.Background(), patient, UploadReportInput{Title: "Panel"},
		IncomingFile{Name: "panel.txt", MIMEType: "text/plain", Size: int64(len(content)), Content: bytes.NewReader(content)})
	require.NoError(t, err)

	f, got, err := env.report.OpenFile(context.Background(), patient, report.ID)
	require.NoError(t, err)
	defer f.Close()

	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, content, body)
	assert.Equal(t, report.ID, got.ID)
}

func TestReportService_OpenFileMissing(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	patient := env.addUser(t, models.RolePatient, nil)
	path := env.writeFile(t, "panel.txt", "x")
	report := env.addReport(t, patient, path, models.AIStatusPending, nil)
	require.NoError(t, env.files.Remove(path))

	_, _, err := env.report.OpenFile(context.Background(), patient, report.ID)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestReportService_DeleteRemovesFile(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	patient := env.addUser(t, models.RolePatient, nil)
	path := env.writeFile(t, "panel.txt", "x")
	report := env.addReport(t, patient, path, models.AIStatusPending, nil)

	require.NoError(t, env.report.Delete(context.Background(), patient, report.ID))
	assert.False(t, env.files.Exists(path))

	_, err := env.report.Get(context.Background(), patient, report.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReportService_RetryAI(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("ok"))
	patient := env.addUser(t, models.RolePatient, nil)
	path := env.writeFile(t, "panel.txt", "x")
	ctx := context.Background()

	done := time.Now()
	completed := env.addReport(t, patient, path, models.AIStatusCompleted, &done)
	_, err := env.report.RetryAI(ctx, patient, completed.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidState)

	failed := env.addReport(t, patient, path, models.AIStatusFailed, &done)
	taskID, err := env.report.RetryAI(ctx, patient, failed.ID, &PatientContext{Age: "40"})
	require.NoError(t, err)
	assert.NotEmpty(t, taskID)

	status, err := env.report.AIStatus(ctx, patient, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AIStatusPending, status.AIStatus)
}

func TestReportService_SummaryPDF(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, answering("## Summary\n**Hemoglobin** is normal.\n\nNo follow-up needed."))
	patient := env.addUser(t, models.RolePatient, nil)
	path := env.writeFile(t, "panel.txt", "Hemoglobin 14.1 g/dL")
	report := env.addReport(t, patient, path, models.AIStatusPending, nil)
	ctx := context.Background()

	_, err := env.report.SummaryPDF(ctx, patient, report.ID)
	assert.ErrorIs(t, err, ErrInvalidState, "no analysis yet")

	require.NoError(t, env.analysis.Process(ctx, AnalysisJob{Kind: RecordReport, RecordID: report.ID, FilePath: path}))

	doc, err := env.report.SummaryPDF(ctx, patient, report.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
}
