package service

import (
	"errors"
	"fmt"

	"lifetrack/internal/models"
	"lifetrack/internal/repository"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("not authorized")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidFileType    = errors.New("invalid file type")
	ErrFileTooLarge       = errors.New("file too large")
	ErrFileNotFound       = errors.New("file not found")
	ErrEncoding           = errors.New("failed to encode file")
	ErrInvalidState       = errors.New("invalid state for this operation")
	ErrConflict           = errors.New("record was modified concurrently")
	ErrQuotaExceeded      = errors.New("ai provider quota exceeded")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrAccountDisabled    = errors.New("account is deactivated")
	ErrAIUnavailable      = errors.New("ai provider is not configured")
	ErrProviderAuth       = errors.New("ai provider rejected credentials")

	ErrMaxRetriesExceeded = models.ErrMaxRetriesExceeded
	ErrNotRetryable       = models.ErrNotRetryable
)

// UpstreamError is a failed call to the model provider.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: upstream returned %d: %s", e.Provider, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: upstream request failed: %v", e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// SizeLimitError is a file over Limit bytes. It matches ErrFileTooLarge.
type SizeLimitError struct {
	Limit int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("file too large: limit is %d bytes", e.Limit)
}

func (e *SizeLimitError) Is(target error) bool {
	return target == ErrFileTooLarge
}

// MalformedResponseError means the model answered but not in the requested format.
type MalformedResponseError struct {
	Content string
	Err     error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed model response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// repoError translates repository sentinels into service ones.
func repoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrConflict):
		return ErrConflict
	}
	return err
}
