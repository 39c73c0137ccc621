package dto

import "lifetrack/internal/models"

type CreateTaskRequest struct {
	Title string `json:"title" validate:"required,max=200"`
	Date  string `json:"date" validate:"required"`
}

type TaskResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	CreatedBy string `json:"createdBy"`
	CreatedAt string `json:"createdAt"`
}

func NewTaskResponse(t *models.Task) TaskResponse {
	return TaskResponse{
		ID:        t.ID.String(),
		Title:     t.Title,
		Date:      formatTime(t.Date),
		CreatedBy: t.CreatedBy.String(),
		CreatedAt: formatTime(t.CreatedAt),
	}
}

func NewTaskResponses(items []*models.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, NewTaskResponse(t))
	}
	return out
}

