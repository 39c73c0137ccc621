package dto

import "lifetrack/internal/models"

type ReviewRequest struct {
	Status      string `json:"status" validate:"required,oneof=pending reviewed approved rejected"`
	ReviewNotes string `json:"reviewNotes" validate:"max=2000"`
}

// AIRetryRequest optionally carries patient context for the re-run.
type AIRetryRequest struct {
	Age            string `json:"age"`
	Gender         string `json:"gender"`
	MedicalHistory string `json:"medicalHistory"`
}

type AIStatusResponse struct {
	Status         string  `json:"status"`
	Date           *string `json:"date"`
	HasDescription bool    `json:"has_description"`
	Description    *string `json:"description,omitempty"`
}

func NewAIStatusResponse(a *models.AIAnalysis) AIStatusResponse {
	return AIStatusResponse{
		Status:         string(a.AIStatus),
		Date:           formatTimePtr(a.AIAnalyzedAt),
		HasDescription: a.HasDescription(),
		Description:    a.AIDescription,
	}
}

type ReportResponse struct {
	ID               string   `json:"id"`
	PatientID        string   `json:"patientId"`
	CaregiverID      *string  `json:"caregiverId,omitempty"`
	UploadedBy       string   `json:"uploadedBy"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	ReportType       string   `json:"reportType"`
	FileURL          string   `json:"fileUrl"`
	FileName         string   `json:"fileName"`
	FileSize         int64    `json:"fileSize"`
	FileType         string   `json:"fileType"`
	IsPublic         bool     `json:"isPublic"`
	Tags             []string `json:"tags"`
	Status           string   `json:"status"`
	ReviewedBy       *string  `json:"reviewedBy,omitempty"`
	ReviewNotes      string   `json:"reviewNotes,omitempty"`
	ReviewDate       *string  `json:"reviewDate,omitempty"`
	AIAnalysisStatus string   `json:"ai_analysis_status"`
	AIDescribe       *string  `json:"ai_describe"`
	AIAnalysisDate   *string  `json:"ai_analysis_date"`
	CreatedAt        string   `json:"createdAt"`
	UpdatedAt        string   `json:"updatedAt"`
}

func NewReportResponse(r *models.Report) ReportResponse {
	return ReportResponse{
		ID:               r.ID.String(),
		PatientID:        r.PatientID.String(),
		CaregiverID:      idString(r.CaregiverID),
		UploadedBy:       r.UploadedBy.String(),
		Title:            r.Title,
		Description:      r.Description,
		ReportType:       string(r.ReportType),
		FileURL:          r.FileURL,
		FileName:         r.FileName,
		FileSize:         r.FileSize,
		FileType:         r.FileType,
		IsPublic:         r.IsPublic,
		Tags:             nonNilStrings(r.Tags),
		Status:           string(r.Status),
		ReviewedBy:       idString(r.ReviewedBy),
		ReviewNotes:      r.ReviewNotes,
		ReviewDate:       formatTimePtr(r.ReviewDate),
		AIAnalysisStatus: string(r.AIStatus),
		AIDescribe:       r.AIDescription,
		AIAnalysisDate:   formatTimePtr(r.AIAnalyzedAt),
		CreatedAt:        formatTime(r.CreatedAt),
		UpdatedAt:        formatTime(r.UpdatedAt),
	}
}

func NewReportResponses(reports []*models.Report) []ReportResponse {
	out := make([]ReportResponse, 0, len(reports))
	for _, r := range reports {
		out = append(out, NewReportResponse(r))
	}
	return out
}
