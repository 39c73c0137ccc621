package service

import (
	"context"
	"fmt"
	"strings"

	"lifetrack/internal/models"

	"github.com/google/uuid"
	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	marotoconfig "github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// SummaryPDF renders the completed analysis of a report as a printable PDF.
func (s *ReportService) SummaryPDF(ctx context.Context, actor Actor, id uuid.UUID) ([]byte, error) {
	report, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if report.AIStatus != models.AIStatusCompleted || !report.HasDescription() {
		return nil, ErrInvalidState
	}

	cfg := marotoconfig.NewBuilder().
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		Build()
	m := maroto.New(cfg)

	m.AddRows(text.NewRow(12, "AI Report Summary", props.Text{Size: 16, Style: fontstyle.Bold}))
	m.AddRows(text.NewRow(8, report.Title, props.Text{Size: 12, Style: fontstyle.Bold}))

	meta := fmt.Sprintf("Type: %s   Uploaded: %s", report.ReportType, report.CreatedAt.Format("2006-01-02"))
	if report.AIAnalyzedAt != nil {
		meta += "   Analyzed: " + report.AIAnalyzedAt.Format("2006-01-02 15:04")
	}
	m.AddRows(text.NewRow(8, meta, props.Text{Size: 9, Style: fontstyle.Italic}))

	for _, paragraph := range strings.Split(*report.AIDescription, "\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		style := fontstyle.Normal
		if strings.HasPrefix(paragraph, "**") || strings.HasPrefix(paragraph, "#") {
			style = fontstyle.Bold
		}
		paragraph = strings.TrimLeft(paragraph, "# ")
		paragraph = strings.ReplaceAll(paragraph, "**", "")
		m.AddAutoRow(text.NewCol(12, paragraph, props.Text{Size: 10, Style: style, Top: 2}))
	}

	m.AddRows(text.NewRow(10, "This summary was generated automatically and is not a medical diagnosis.",
		props.Text{Size: 8, Style: fontstyle.Italic, Top: 4}))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate pdf: %w", err)
	}
	return doc.GetBytes(), nil
}
