package handlers

import (
	"errors"

	"lifetrack/internal/dto"
	"lifetrack/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type TaskHandler struct {
	taskService *service.TaskService
	logger      *zap.Logger
}

func NewTaskHandler(taskService *service.TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger,
	}
}

// List godoc
// @Summary List the caller's tasks
// @Tags tasks
// @Produce json
// @Security Bearer
// @Success 200 {array} dto.TaskResponse
// @Router /api/tasks [get]
func (h *TaskHandler) List(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	tasks, err := h.taskService.List(c.Context(), actor)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to list tasks")
	}

	return respond(c, fiber.StatusOK, "", dto.NewTaskResponses(tasks))
}

// Create godoc
// @Summary Create a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body dto.CreateTaskRequest true "Task"
// @Security Bearer
// @Success 201 {object} dto.TaskResponse
// @Failure 400 {object} dto.Response
// @Router /api/tasks [post]
func (h *TaskHandler) Create(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req dto.CreateTaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	task, err := h.taskService.Create(c.Context(), actor, req.Title, req.Date)
	if err != nil {
		return handleError(c, h.logger, err, "Failed to create task")
	}

	return respond(c, fiber.StatusCreated, "Task created successfully", dto.NewTaskResponse(task))
}

// QueueStatus godoc
// @Summary State of a background task
// @Tags tasks
// @Produce json
// @Param taskId path string true "Task ID"
// @Security Bearer
// @Success 200 {object} queue.Info
// @Failure 404 {object} dto.Response
// @Router /api/tasks/queue/{taskId} [get]
func (h *TaskHandler) QueueStatus(c *fiber.Ctx) error {
	info, err := h.taskService.QueueStatus(c.Params("taskId"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return fail(c, fiber.StatusNotFound, "Task not found")
		}
		return handleError(c, h.logger, err, "Failed to get task status")
	}

	return respond(c, fiber.StatusOK, "", info)
}
