package service

import (
	"context"
	"testing"

	"lifetrack/internal/dto"
	"lifetrack/internal/models"
	"lifetrack/internal/repository"
	"lifetrack/internal/repository/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newContactTestService(t *testing.T) (*ContactService, *testEnv) {
	t.Helper()

	env := &testEnv{users: memory.NewUserRepository()}
	return NewContactService(memory.NewContactRepository(), env.users, zap.NewNop()), env
}

func contactRequest() *dto.CreateContactRequest {
	return &dto.CreateContactRequest{
		Name:    "  Jane Doe ",
		Email:   "Jane@Example.com",
		Subject: "Question about reports",
		Message: "How do I share a report with my caregiver?",
	}
}

func TestContactService_Submit(t *testing.T) {
	t.Parallel()

	svc, _ := newContactTestService(t)

	contact, err := svc.Submit(context.Background(), contactRequest(), ClientInfo{IPAddress: "10.0.0.1", UserAgent: "curl/8"})
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", contact.Name)
	assert.Equal(t, "jane@example.com", contact.Email)
	assert.Equal(t, models.ContactCategoryGeneral, contact.Category)
	assert.Equal(t, models.ContactStatusPending, contact.Status)
	assert.Equal(t, models.PriorityMedium, contact.Priority)
	assert.Equal(t, []models.ContactNote{}, contact.Notes)
	assert.Equal(t, "10.0.0.1", contact.IPAddress)

	req := contactRequest()
	req.Category = "gossip"
	_, err = svc.Submit(context.Background(), req, ClientInfo{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestContactService_AdminOnly(t *testing.T) {
	t.Parallel()

	svc, env := newContactTestService(t)
	caregiver := env.addUser(t, models.RoleCaregiver, nil)
	ctx := context.Background()

	contact, err := svc.Submit(ctx, contactRequest(), ClientInfo{})
	require.NoError(t, err)

	_, _, err = svc.List(ctx, caregiver, repository.ContactFilter{})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Stats(ctx, caregiver)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Get(ctx, caregiver, contact.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Update(ctx, caregiver, contact.ID, &dto.UpdateContactRequest{Status: "read"})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, caregiver, contact.ID), ErrForbidden)
}

func TestContactService_Update(t *testing.T) {
	t.Parallel()

	svc, env := newContactTestService(t)
	admin := env.addUser(t, models.RoleAdmin, nil)
	ctx := context.Background()

	contact, err := svc.Submit(ctx, contactRequest(), ClientInfo{})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, admin, contact.ID, &dto.UpdateContactRequest{
		Status:     "replied",
		Priority:   "high",
		AssignedTo: admin.ID.String(),
		Notes:      &dto.ContactNoteRequest{Content: "Answered by email"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ContactStatusReplied, updated.Status)
	assert.Equal(t, models.PriorityHigh, updated.Priority)
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, admin.ID, *updated.AssignedTo)
	require.Len(t, updated.Notes, 1)
	assert.Equal(t, "Answered by email", updated.Notes[0].Note)
	assert.Equal(t, admin.ID, updated.Notes[0].AddedBy)

	stored, err := svc.Get(ctx, admin, contact.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Notes, 1)

	_, err = svc.Update(ctx, admin, contact.ID, &dto.UpdateContactRequest{AssignedTo: uuid.NewString()})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Update(ctx, admin, contact.ID, &dto.UpdateContactRequest{Priority: "whenever"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Update(ctx, admin, uuid.New(), &dto.UpdateContactRequest{Status: "read"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContactService_ListStatsDelete(t *testing.T) {
	t.Parallel()

	svc, env := newContactTestService(t)
	admin := env.addUser(t, models.RoleAdmin, nil)
	ctx := context.Background()

	var ids []uuid.UUID
	for _, category := range []string{"support", "support", "feedback"} {
		req := contactRequest()
		req.Category = category
		c, err := svc.Submit(ctx, req, ClientInfo{})
		require.NoError(t, err)
		ids = append(ids, c.ID)
	}

	support := models.ContactCategorySupport
	items, total, err := svc.List(ctx, admin, repository.ContactFilter{Category: &support})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, items, 2)

	stats, err := svc.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByCategory["support"])
	assert.Equal(t, 3, stats.ByStatus["pending"])
	assert.Equal(t, 3, stats.ByPriority["medium"])

	require.NoError(t, svc.Delete(ctx, admin, ids[0]))
	assert.ErrorIs(t, svc.Delete(ctx, admin, ids[0]), ErrNotFound)
}
