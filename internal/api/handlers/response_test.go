package handlers

import (
	"errors"
	"fmt"
	"testing"

	"lifetrack/internal/service"

	"github.com/stretchr/testify/assert"
)

func TestFileTooLargeMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "megabytes", err: &service.SizeLimitError{Limit: 100 << 20}, want: "File size too large. Maximum size is 100MB."},
		{name: "inline limit", err: fmt.Errorf("analyze: %w", &service.SizeLimitError{Limit: 10 << 20}), want: "File size too large. Maximum size is 10MB."},
		{name: "kilobytes", err: &service.SizeLimitError{Limit: 512 << 10}, want: "File size too large. Maximum size is 512KB."},
		{name: "bytes", err: &service.SizeLimitError{Limit: 1500}, want: "File size too large. Maximum size is 1500 bytes."},
		{name: "no limit known", err: service.ErrFileTooLarge, want: "File size too large."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, fileTooLargeMessage(tt.err))
		})
	}
}

func TestSizeLimitErrorMatchesSentinel(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("upload: %w", &service.SizeLimitError{Limit: 1 << 20})
	assert.True(t, errors.Is(err, service.ErrFileTooLarge))
}
