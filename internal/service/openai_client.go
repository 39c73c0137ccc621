package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"lifetrack/pkg/config"

	"go.uber.org/zap"
)

const providerOpenAI = "openai"

// OpenAIModel talks to an OpenAI compatible chat completions endpoint,
// attaching documents as base64 data URLs.
type OpenAIModel struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewOpenAIModel(cfg *config.OpenAIConfig, httpClient *http.Client, logger *zap.Logger) *OpenAIModel {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &OpenAIModel{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (m *OpenAIModel) Name() string { return providerOpenAI }

func (m *OpenAIModel) AcceptsPDF() bool { return false }

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

type openAIErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (m *OpenAIModel) Complete(ctx context.Context, req VisionRequest) (*Completion, error) {
	parts := []openAIContentPart{{Type: "text", Text: req.Prompt}}
	for _, a := range req.Attachments {
		parts = append(parts, openAIContentPart{
			Type: "image_url",
			ImageURL: &openAIImageURL{
				URL:    "data:" + a.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(a.Data),
				Detail: "high",
			},
		})
	}

	var messages []openAIMessage
	if req.SystemInstruction != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.SystemInstruction})
	}
	if len(req.Attachments) == 0 {
		messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})
	} else {
		messages = append(messages, openAIMessage{Role: "user", Content: parts})
	}

	body, err := json.Marshal(openAIRequest{
		Model:       m.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, &UpstreamError{Provider: providerOpenAI, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Provider: providerOpenAI, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, m.statusError(resp.StatusCode, raw)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &UpstreamError{Provider: providerOpenAI, Message: "undecodable response", Err: err}
	}
	if len(parsed.Choices) == 0 {
		return nil, &UpstreamError{Provider: providerOpenAI, Message: "no choices in response"}
	}

	m.logger.Debug("OpenAI completion received",
		zap.String("model", parsed.Model),
		zap.Int("total_tokens", parsed.Usage.TotalTokens),
	)

	return &Completion{
		Content: parsed.Choices[0].Message.Content,
		Model:   parsed.Model,
		Usage:   parsed.Usage,
	}, nil
}

func (m *OpenAIModel) statusError(status int, raw []byte) error {
	var body openAIErrorBody
	_ = json.Unmarshal(raw, &body)

	switch {
	case status == http.StatusTooManyRequests || body.Error.Code == "insufficient_quota":
		return fmt.Errorf("%w: %s", ErrQuotaExceeded, body.Error.Message)
	case status == http.StatusUnauthorized || status == http.StatusForbidden || body.Error.Code == "invalid_api_key":
		return fmt.Errorf("%w: %s", ErrProviderAuth, body.Error.Message)
	}

	msg := body.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}
	return &UpstreamError{Provider: providerOpenAI, StatusCode: status, Message: msg}
}
