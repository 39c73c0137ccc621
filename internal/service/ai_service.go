package service

import (
	"context"
	"path/filepath"
	"slices"
	"strings"

	"lifetrack/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	inlineExtensions = []string{".jpeg", ".jpg", ".png", ".gif", ".bmp", ".tiff", ".webp", ".pdf"}
	inlineMIMETypes  = []string{
		"image/jpeg", "image/jpg", "image/png", "image/gif", "image/bmp",
		"image/tiff", "image/webp", "application/pdf",
	}
)

type AnalyzeInput struct {
	Mode             AnalysisMode
	Context          *PatientContext
	InformationTypes []string
}

type AssistantAnswer struct {
	Answer string
	Role   models.Role
	Model  string
	Usage  Usage
}

// AIService answers synchronous analysis requests without creating records.
type AIService struct {
	analyzer      *Analyzer
	reports       ReportRepository
	files         FileStore
	maxInlineSize int64
	logger        *zap.Logger
}

func NewAIService(analyzer *Analyzer, reports ReportRepository, files FileStore, maxInlineSize int64, logger *zap.Logger) *AIService {
	return &AIService{
		analyzer:      analyzer,
		reports:       reports,
		files:         files,
		maxInlineSize: maxInlineSize,
		logger:        logger,
	}
}

func validateInlineFile(f IncomingFile, maxSize int64) error {
	ext := strings.ToLower(filepath.Ext(f.Name))
	if !slices.Contains(inlineExtensions, ext) || !slices.Contains(inlineMIMETypes, f.MIMEType) {
		return ErrInvalidFileType
	}
	if f.Size > maxSize {
		return &SizeLimitError{Limit: maxSize}
	}
	return nil
}

// AnalyzeFile analyzes an uploaded file and deletes it afterwards.
func (s *AIService) AnalyzeFile(ctx context.Context, f IncomingFile, in AnalyzeInput) (*AnalysisResult, error) {
	if err := validateInlineFile(f, s.maxInlineSize); err != nil {
		return nil, err
	}

	stored, err := saveFile(s.files, "report", f, s.maxInlineSize)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := s.files.Remove(stored.Path); err != nil {
			s.logger.Warn("Failed to remove analyzed file", zap.String("path", stored.Path), zap.Error(err))
		}
	}()

	mode := in.Mode
	if !mode.Valid() {
		mode = ModeStandard
	}
	return s.analyzer.Analyze(ctx, stored.Path, mode, in.Context, in.InformationTypes)
}

// AnalyzeReport analyzes a stored report the caller may access.
func (s *AIService) AnalyzeReport(ctx context.Context, actor Actor, reportID uuid.UUID, pc *PatientContext) (*AnalysisResult, error) {
	report, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, repoError(err)
	}
	if !actor.CanAccess(report.PatientID, report.UploadedBy) {
		return nil, ErrForbidden
	}

	mode := ModeStandard
	if pc != nil {
		mode = ModeContext
	}
	return s.analyzer.Analyze(ctx, report.FilePath, mode, pc, nil)
}

func (s *AIService) HealthAssistance(ctx context.Context, actor Actor, question string, userContext map[string]string) (*AssistantAnswer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, invalidInput("Question is required")
	}

	role := actor.Role
	if !role.Valid() {
		role = models.RolePatient
	}

	completion, err := s.analyzer.Ask(ctx, assistantInstruction(role), assistantPrompt(question, userContext))
	if err != nil {
		return nil, err
	}

	return &AssistantAnswer{
		Answer: completion.Content,
		Role:   role,
		Model:  completion.Model,
		Usage:  completion.Usage,
	}, nil
}
