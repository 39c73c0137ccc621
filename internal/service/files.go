package service

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"lifetrack/internal/storage"
)

// IncomingFile is a file received in a multipart request.
type IncomingFile struct {
	Name     string
	MIMEType string
	Size     int64
	Content  io.Reader
}

var reportMIMETypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/png",
	"image/gif",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"text/plain",
}

// validateReportFile checks the declared type and size of a report upload.
func validateReportFile(f IncomingFile, maxSize int64) error {
	if !slices.Contains(reportMIMETypes, f.MIMEType) {
		return ErrInvalidFileType
	}
	if f.Size > maxSize {
		return &SizeLimitError{Limit: maxSize}
	}
	return nil
}

func saveFile(store FileStore, field string, f IncomingFile, maxSize int64) (*storage.StoredFile, error) {
	stored, err := store.Save(field, f.Name, f.Content, maxSize)
	if errors.Is(err, storage.ErrFileTooLarge) {
		return nil, &SizeLimitError{Limit: maxSize}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}
	return stored, nil
}
