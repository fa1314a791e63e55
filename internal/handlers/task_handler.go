package handlers

import (
	"context"

	"akun/internal/notify"
	"akun/internal/response"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// TaskFetcher looks up delivery task records.
type TaskFetcher interface {
	Fetch(ctx context.Context, taskID string) (*notify.TaskInfo, error)
}

// TaskHandler reports the status of email delivery tasks.
type TaskHandler struct {
	tasks TaskFetcher
	log   *zap.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(tasks TaskFetcher, log *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, log: log}
}

// RegisterRoutes registers GET /task/:id.
func (h *TaskHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/task/:id", h.HandleGetTask)
}

// HandleGetTask returns task_id, task_status and task_result for a task.
func (h *TaskHandler) HandleGetTask(c *fiber.Ctx) error {
	info, err := h.tasks.Fetch(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.OK(c, info, 0)
}
