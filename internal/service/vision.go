package service

import "context"

type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

type VisionRequest struct {
	SystemInstruction string
	Prompt            string
	Attachments       []Attachment
	MaxTokens         int
	Temperature       float64
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Completion struct {
	Content string
	Model   string
	Usage   Usage
}

// VisionModel answers a prompt about attached documents.
type VisionModel interface {
	Complete(ctx context.Context, req VisionRequest) (*Completion, error)
	// AcceptsPDF reports whether PDFs can be attached as-is; otherwise
	// pages are rendered to images first.
	AcceptsPDF() bool
	Name() string
}

// unavailableModel is used when AI_PROVIDER=none.
type unavailableModel struct{}

func NewUnavailableModel() VisionModel {
	return unavailableModel{}
}

func (unavailableModel) Complete(context.Context, VisionRequest) (*Completion, error) {
	return nil, ErrAIUnavailable
}

func (unavailableModel) AcceptsPDF() bool { return false }

func (unavailableModel) Name() string { return "none" }
