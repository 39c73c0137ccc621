package dto

type AnalyzeExistingRequest struct {
	ReportID       string `json:"report_id" validate:"required,uuid"`
	IncludeContext bool   `json:"include_context"`
	Age            string `json:"age"`
	Gender         string `json:"gender"`
	MedicalHistory string `json:"medical_history"`
}

type HealthAssistanceRequest struct {
	Question    string            `json:"question"`
	UserContext map[string]string `json:"user_context"`
}

type AnalysisResponse struct {
	Success       bool   `json:"success"`
	Explanation   string `json:"explanation,omitempty"`
	ExtractedData any    `json:"extractedData,omitempty"`
	Model         string `json:"model"`
	Usage         any    `json:"usage"`
}

type HealthAssistanceResponse struct {
	Answer   string `json:"answer"`
	UserRole string `json:"userRole"`
	Model    string `json:"model"`
	Usage    any    `json:"usage"`
}
