package dto

import (
	"time"

	"github.com/google/uuid"
)

const timeLayout = time.RFC3339

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type Pagination struct {
	CurrentPage  uint64 `json:"currentPage"`
	TotalPages   uint64 `json:"totalPages"`
	TotalItems   int    `json:"totalItems"`
	ItemsPerPage uint64 `json:"itemsPerPage"`
}

func NewPagination(page, limit uint64, total int) Pagination {
	p := Pagination{CurrentPage: page, TotalItems: total, ItemsPerPage: limit}
	if limit > 0 {
		p.TotalPages = (uint64(total) + limit - 1) / limit
	}
	return p
}

func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(timeLayout)
	return &s
}

func idString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
