// Package memory holds map-backed repositories with the same semantics as
// the postgres ones. They back STORAGE_BACKEND=memory and the service tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"lifetrack/internal/models"
	"lifetrack/internal/repository"

	"github.com/google/uuid"
)

type Transactor struct{}

func (Transactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func paginate[T any](items []T, page repository.Page) []T {
	start, end := page.Window(len(items))
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}

func newestFirst[T any](items []T, at func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return at(items[i]).After(at(items[j]))
	})
}

func applyAI(a *models.AIAnalysis, t repository.AITransition) bool {
	if !slices.Contains(t.From, a.AIStatus) {
		return false
	}
	a.AIStatus = t.To
	switch {
	case t.Description != nil:
		d := *t.Description
		a.AIDescription = &d
	case t.ClearDescription:
		a.AIDescription = nil
	}
	if t.At != nil {
		at := *t.At
		a.AIAnalyzedAt = &at
	}
	return true
}

func resetStale(a *models.AIAnalysis, before time.Time) bool {
	if a.AIStatus != models.AIStatusCompleted && a.AIStatus != models.AIStatusFailed {
		return false
	}
	if a.AIAnalyzedAt == nil || !a.AIAnalyzedAt.Before(before) {
		return false
	}
	a.AIStatus = models.AIStatusPending
	a.AIDescription = nil
	return true
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	return slices.Contains(ids, id)
}
