package dto

import "lifetrack/internal/models"

type InitializeUploadRequest struct {
	Title       string `json:"title" form:"title" validate:"max=200"`
	Description string `json:"description" form:"description" validate:"max=2000"`
	ReportType  string `json:"reportType" form:"reportType"`
	Tags        string `json:"tags" form:"tags"`
	Category    string `json:"category" form:"category"`
}

type UploadResponse struct {
	ID                    string   `json:"id"`
	PatientID             string   `json:"patientId"`
	UploadedBy            string   `json:"uploadedBy"`
	CaregiverID           *string  `json:"caregiverId,omitempty"`
	OriginalName          string   `json:"originalName"`
	FileName              string   `json:"filename"`
	FileSize              int64    `json:"fileSize"`
	MimeType              string   `json:"mimeType"`
	Title                 string   `json:"title"`
	Description           string   `json:"description"`
	ReportType            string   `json:"reportType"`
	Category              string   `json:"category"`
	Tags                  []string `json:"tags"`
	UploadStatus          string   `json:"uploadStatus"`
	UploadProgress        int      `json:"uploadProgress"`
	IsValidFile           bool     `json:"isValidFile"`
	ErrorMessage          string   `json:"errorMessage,omitempty"`
	RetryCount            int      `json:"retryCount"`
	MaxRetries            int      `json:"maxRetries"`
	ProcessingStartedAt   string   `json:"processingStartedAt"`
	ProcessingCompletedAt *string  `json:"processingCompletedAt,omitempty"`
	ProcessingDurationMs  *int64   `json:"processingDuration,omitempty"`
	AIAnalysisStatus      string   `json:"ai_analysis_status"`
	AIDescribe            *string  `json:"ai_describe"`
	AIAnalysisDate        *string  `json:"ai_analysis_date"`
	CreatedAt             string   `json:"createdAt"`
	UpdatedAt             string   `json:"updatedAt"`
}

func NewUploadResponse(u *models.ReportUpload) UploadResponse {
	return UploadResponse{
		ID:                    u.ID.String(),
		PatientID:             u.PatientID.String(),
		UploadedBy:            u.UploadedBy.String(),
		CaregiverID:           idString(u.CaregiverID),
		OriginalName:          u.OriginalName,
		FileName:              u.FileName,
		FileSize:              u.FileSize,
		MimeType:              u.MimeType,
		Title:                 u.Title,
		Description:           u.Description,
		ReportType:            string(u.ReportType),
		Category:              string(u.Category),
		Tags:                  nonNilStrings(u.Tags),
		UploadStatus:          string(u.Status),
		UploadProgress:        u.Progress,
		IsValidFile:           u.IsValidFile,
		ErrorMessage:          u.ErrorMessage,
		RetryCount:            u.RetryCount,
		MaxRetries:            u.MaxRetries,
		ProcessingStartedAt:   formatTime(u.ProcessingStartedAt),
		ProcessingCompletedAt: formatTimePtr(u.ProcessingCompletedAt),
		ProcessingDurationMs:  u.ProcessingDurationMs,
		AIAnalysisStatus:      string(u.AIStatus),
		AIDescribe:            u.AIDescription,
		AIAnalysisDate:        formatTimePtr(u.AIAnalyzedAt),
		CreatedAt:             formatTime(u.CreatedAt),
		UpdatedAt:             formatTime(u.UpdatedAt),
	}
}

func NewUploadResponses(uploads []*models.ReportUpload) []UploadResponse {
	out := make([]UploadResponse, 0, len(uploads))
	for _, u := range uploads {
		out = append(out, NewUploadResponse(u))
	}
	return out
}
