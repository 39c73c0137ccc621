package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"

	"lifetrack/pkg/config"

	"github.com/Role1776/gigago"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	providerGigaChat = "gigachat"

	gigaChatOAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"
	gigaChatBaseURL  = "https://gigachat.devices.sberbank.ru/api/v1"

	// gigago exposes a single temperature per model; text answers use this one.
	gigaChatTextTemperature = 0.3
)

// GigaChatModel sends text prompts through gigago and document prompts
// through the REST files API, since gigago has no attachment support.
type GigaChatModel struct {
	client     *gigago.Client
	cfg        *config.GigaChatConfig
	httpClient *http.Client
	logger     *zap.Logger
	oauthURL   string
	baseURL    string

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func NewGigaChatModel(ctx context.Context, cfg *config.GigaChatConfig, logger *zap.Logger) (*GigaChatModel, error) {
	opts := []gigago.Option{
		gigago.WithCustomScope(cfg.Scope),
	}
	if cfg.InsecureSkipVerify {
		opts = append(opts, gigago.WithCustomInsecureSkipVerify(true))
		logger.Warn("GigaChat TLS certificate verification is disabled")
	}

	client, err := gigago.NewClient(ctx, cfg.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GigaChat client: %w", err)
	}

	httpClient := &http.Client{}
	if cfg.InsecureSkipVerify {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &GigaChatModel{
		client:     client,
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
		oauthURL:   gigaChatOAuthURL,
		baseURL:    gigaChatBaseURL,
	}, nil
}

func (m *GigaChatModel) Name() string { return providerGigaChat }

func (m *GigaChatModel) AcceptsPDF() bool { return true }

func (m *GigaChatModel) Complete(ctx context.Context, req VisionRequest) (*Completion, error) {
	if len(req.Attachments) == 0 && m.client != nil {
		return m.completeText(ctx, req)
	}
	return m.completeWithFiles(ctx, req)
}

func (m *GigaChatModel) completeText(ctx context.Context, req VisionRequest) (*Completion, error) {
	model := m.client.GenerativeModel(m.cfg.Model)
	model.SystemInstruction = req.SystemInstruction
	model.Temperature = gigaChatTextTemperature

	resp, err := model.Generate(ctx, []gigago.Message{
		{Role: gigago.RoleUser, Content: req.Prompt},
	})
	if err != nil {
		return nil, &UpstreamError{Provider: providerGigaChat, Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &UpstreamError{Provider: providerGigaChat, Message: "no response from model"}
	}

	return &Completion{Content: resp.Choices[0].Message.Content, Model: m.cfg.Model}, nil
}

type gigaChatMessage struct {
	Role        string   `json:"role"`
	Content     string   `json:"content"`
	Attachments []string `json:"attachments,omitempty"`
}

type gigaChatRequest struct {
	Model       string            `json:"model"`
	Messages    []gigaChatMessage `json:"messages"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Stream      bool              `json:"stream"`
}

type gigaChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

func (m *GigaChatModel) completeWithFiles(ctx context.Context, req VisionRequest) (*Completion, error) {
	fileIDs := make([]string, 0, len(req.Attachments))
	defer func() {
		for _, id := range fileIDs {
			m.deleteFile(context.WithoutCancel(ctx), id)
		}
	}()

	for _, a := range req.Attachments {
		id, err := m.uploadFile(ctx, a)
		if err != nil {
			return nil, err
		}
		fileIDs = append(fileIDs, id)
	}

	var messages []gigaChatMessage
	if req.SystemInstruction != "" {
		messages = append(messages, gigaChatMessage{Role: "system", Content: req.SystemInstruction})
	}
	messages = append(messages, gigaChatMessage{Role: "user", Content: req.Prompt, Attachments: fileIDs})

	body, err := json.Marshal(gigaChatRequest{
		Model:       m.cfg.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	raw, err := m.do(ctx, func() (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		return r, nil
	})
	if err != nil {
		return nil, err
	}

	var parsed gigaChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &UpstreamError{Provider: providerGigaChat, Message: "undecodable response", Err: err}
	}
	if len(parsed.Choices) == 0 {
		return nil, &UpstreamError{Provider: providerGigaChat, Message: "no response from model"}
	}

	return &Completion{
		Content: strings.TrimSpace(parsed.Choices[0].Message.Content),
		Model:   parsed.Model,
		Usage:   parsed.Usage,
	}, nil
}

func (m *GigaChatModel) uploadFile(ctx context.Context, a Attachment) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	// "general" lets the file be referenced from chat completions
	if err := writer.WriteField("purpose", "general"); err != nil {
		return "", fmt.Errorf("failed to write purpose field: %w", err)
	}

	header := textproto.MIMEHeader{}
	header.Set("Content-Type", a.MIMEType)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, a.Name))
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(a.Data); err != nil {
		return "", fmt.Errorf("failed to write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}

	payload := body.Bytes()
	contentType := writer.FormDataContentType()

	raw, err := m.do(ctx, func() (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/files", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", contentType)
		return r, nil
	})
	if err != nil {
		return "", err
	}

	var uploaded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &uploaded); err != nil || uploaded.ID == "" {
		return "", &UpstreamError{Provider: providerGigaChat, Message: "file upload returned no id", Err: err}
	}

	m.logger.Debug("File uploaded to GigaChat", zap.String("file_id", uploaded.ID))
	return uploaded.ID, nil
}

func (m *GigaChatModel) deleteFile(ctx context.Context, id string) {
	_, err := m.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/files/"+url.PathEscape(id)+"/delete", nil)
	})
	if err != nil {
		m.logger.Warn("Failed to delete GigaChat file", zap.String("file_id", id), zap.Error(err))
	}
}

// do sends an authorized request, refreshing the token once on 401.
func (m *GigaChatModel) do(ctx context.Context, build func() (*http.Request, error)) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		token, err := m.token(ctx, attempt > 0)
		if err != nil {
			return nil, err
		}

		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := m.httpClient.Do(req)
		if err != nil {
			return nil, &UpstreamError{Provider: providerGigaChat, Err: err}
		}
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, &UpstreamError{Provider: providerGigaChat, Err: err}
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized && attempt == 0:
			continue
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("%w: %s", ErrProviderAuth, strings.TrimSpace(string(raw)))
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, fmt.Errorf("%w: %s", ErrQuotaExceeded, strings.TrimSpace(string(raw)))
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, &UpstreamError{Provider: providerGigaChat, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		}
		return raw, nil
	}
}

// token returns a cached OAuth token, fetching a new one when expired or forced.
func (m *GigaChatModel) token(ctx context.Context, force bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !force && m.accessToken != "" && time.Now().Before(m.expiresAt) {
		return m.accessToken, nil
	}

	form := url.Values{}
	form.Set("scope", m.cfg.Scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.oauthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create OAuth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", uuid.NewString())
	// the key is issued already base64 encoded
	req.Header.Set("Authorization", "Basic "+m.cfg.APIKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", &UpstreamError{Provider: providerGigaChat, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		m.logger.Error("GigaChat OAuth request failed",
			zap.Int("status", resp.StatusCode),
			zap.String("response", string(raw)),
		)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", fmt.Errorf("%w: oauth returned %d", ErrProviderAuth, resp.StatusCode)
		}
		return "", &UpstreamError{Provider: providerGigaChat, StatusCode: resp.StatusCode, Message: string(raw)}
	}

	var oauth struct {
		AccessToken string `json:"access_token"`
		ExpiresAt   int64  `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&oauth); err != nil {
		return "", &UpstreamError{Provider: providerGigaChat, Message: "undecodable oauth response", Err: err}
	}
	if oauth.AccessToken == "" {
		return "", &UpstreamError{Provider: providerGigaChat, Message: "empty access token"}
	}

	m.accessToken = oauth.AccessToken
	m.expiresAt = time.Now().Add(25 * time.Minute)
	if oauth.ExpiresAt > 0 {
		// expires_at is unix millis; refresh a minute early
		m.expiresAt = time.UnixMilli(oauth.ExpiresAt).Add(-time.Minute)
	}

	return m.accessToken, nil
}

func (m *GigaChatModel) Close() error {
	if m.client != nil {
		m.client.Close()
	}
	return nil
}
