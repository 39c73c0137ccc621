package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

type AnalysisResult struct {
	Mode        AnalysisMode
	Explanation string
	Extracted   *MedicalExtraction
	Model       string
	Usage       Usage
}

// Analyzer runs one model call per analysis.
type Analyzer struct {
	model    VisionModel
	preparer *DocumentPreparer
	timeout  time.Duration
	logger   *zap.Logger
}

func NewAnalyzer(model VisionModel, preparer *DocumentPreparer, timeout time.Duration, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		model:    model,
		preparer: preparer,
		timeout:  timeout,
		logger:   logger,
	}
}

// Analyze sends the report at path to the model. informationTypes only
// applies to the extract mode.
func (a *Analyzer) Analyze(ctx context.Context, path string, mode AnalysisMode, pc *PatientContext, informationTypes []string) (*AnalysisResult, error) {
	doc, err := a.preparer.Prepare(path, a.model.AcceptsPDF())
	if err != nil {
		return nil, err
	}

	spec := buildPrompt(mode, pc, informationTypes)
	prompt := spec.text
	if doc.Text != "" {
		prompt += "\n\nReport content:\n" + doc.Text
	}

	completion, err := a.complete(ctx, VisionRequest{
		Prompt:      prompt,
		Attachments: doc.Attachments,
		MaxTokens:   spec.maxTokens,
		Temperature: spec.temperature,
	})
	if err != nil {
		return nil, err
	}

	result := &AnalysisResult{
		Mode:        mode,
		Explanation: sanitizeUTF8(completion.Content),
		Model:       completion.Model,
		Usage:       completion.Usage,
	}

	if mode == ModeExtract {
		extracted, err := ParseExtraction(completion.Content)
		if err != nil {
			return nil, err
		}
		result.Extracted = extracted
	}

	a.logger.Debug("Report analyzed",
		zap.String("mode", string(mode)),
		zap.String("provider", a.model.Name()),
		zap.Int("attachments", len(doc.Attachments)),
		zap.Int("total_tokens", completion.Usage.TotalTokens),
	)

	return result, nil
}

// Ask answers a text-only prompt.
func (a *Analyzer) Ask(ctx context.Context, systemInstruction, prompt string) (*Completion, error) {
	completion, err := a.complete(ctx, VisionRequest{
		SystemInstruction: systemInstruction,
		Prompt:            prompt,
		MaxTokens:         1000,
		Temperature:       0.5,
	})
	if err != nil {
		return nil, err
	}
	completion.Content = sanitizeUTF8(completion.Content)
	return completion, nil
}

func (a *Analyzer) complete(ctx context.Context, req VisionRequest) (*Completion, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	completion, err := a.model.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(completion.Content) == "" {
		return nil, &UpstreamError{Provider: a.model.Name(), Message: "empty response"}
	}
	return completion, nil
}
