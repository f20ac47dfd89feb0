package handler

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"taskhub/internal/model"
	"taskhub/internal/service"
)

// TaskHandler handles task, subtask, watcher and comment endpoints.
type TaskHandler struct {
	tasks service.TaskService
}

// NewTaskHandler creates a task handler.
func NewTaskHandler(tasks service.TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// CreateTaskRequest is the payload for a new task.
type CreateTaskRequest struct {
	Title       string      `json:"title" validate:"required,max=255"`
	Description string      `json:"description"`
	Status      string      `json:"status"`
	Priority    string      `json:"priority"`
	DueDate     *string     `json:"dueDate"`
	Assignees   []uuid.UUID `json:"assignees"`
}

// UpdateTaskRequest holds the optional task fields to change. An empty dueDate
// removes the due date; a present assignees list replaces the assignees.
type UpdateTaskRequest struct {
	Title       *string      `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string      `json:"description"`
	Status      *string      `json:"status"`
	Priority    *string      `json:"priority"`
	DueDate     *string      `json:"dueDate"`
	Assignees   *[]uuid.UUID `json:"assignees"`
}

// SubtaskRequest is the payload for a new subtask.
type SubtaskRequest struct {
	Title string `json:"title" validate:"required,max=255"`
}

// UpdateSubtaskRequest holds the optional subtask fields to change.
type UpdateSubtaskRequest struct {
	Title     *string `json:"title" validate:"omitempty,min=1,max=255"`
	Completed *bool   `json:"completed"`
}

// CommentRequest is the payload for a new comment.
type CommentRequest struct {
	Text string `json:"text" validate:"required,max=5000"`
}

// ToggleResponse reports the state after a toggle.
type ToggleResponse struct {
	Message string `json:"message"`
	State   bool   `json:"state"`
}

// Get godoc
// @Summary Get a task
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Success 200 {object} model.Task
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id} [get]
func (h *TaskHandler) Get(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	task, err := h.tasks.Get(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

// Update godoc
// @Summary Update a task
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Param request body UpdateTaskRequest true "Fields"
// @Success 200 {object} model.Task
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /tasks/{id} [put]
func (h *TaskHandler) Update(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateTaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	in := service.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Assignees:   req.Assignees,
	}
	if req.Status != nil {
		status := model.TaskStatus(*req.Status)
		in.Status = &status
	}
	if req.Priority != nil {
		priority := model.TaskPriority(*req.Priority)
		in.Priority = &priority
	}
	if req.DueDate != nil {
		if strings.TrimSpace(*req.DueDate) == "" {
			in.ClearDueDate = true
		} else if in.DueDate, err = parseDate("dueDate", *req.DueDate); err != nil {
			return err
		}
	}

	task, err := h.tasks.Update(c.Request().Context(), p, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

// Delete godoc
// @Summary Delete a task
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Success 200 {object} MessageResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id} [delete]
func (h *TaskHandler) Delete(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.tasks.Delete(c.Request().Context(), p, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Task deleted"})
}

// AddSubtask godoc
// @Summary Add a subtask
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Param request body SubtaskRequest true "Subtask"
// @Success 201 {object} model.Subtask
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /tasks/{id}/subtasks [post]
func (h *TaskHandler) AddSubtask(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req SubtaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	subtask, err := h.tasks.AddSubtask(c.Request().Context(), p, id, req.Title)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, subtask)
}

// UpdateSubtask godoc
// @Summary Update a subtask
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Param subtaskId path string true "Subtask ID"
// @Param request body UpdateSubtaskRequest true "Fields"
// @Success 200 {object} model.Subtask
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id}/subtasks/{subtaskId} [put]
func (h *TaskHandler) UpdateSubtask(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	subtaskID, err := pathID(c, "subtaskId")
	if err != nil {
		return err
	}
	var req UpdateSubtaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	subtask, err := h.tasks.UpdateSubtask(c.Request().Context(), p, id, subtaskID, service.UpdateSubtaskInput{
		Title:     req.Title,
		Completed: req.Completed,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, subtask)
}

// ToggleWatch godoc
// @Summary Watch or unwatch a task
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Success 200 {object} ToggleResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /tasks/{id}/watch [post]
func (h *TaskHandler) ToggleWatch(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	watching, err := h.tasks.ToggleWatch(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	msg := "Stopped watching task"
	if watching {
		msg = "Watching task"
	}
	return c.JSON(http.StatusOK, ToggleResponse{Message: msg, State: watching})
}

// ToggleArchive godoc
// @Summary Archive or unarchive a task
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Success 200 {object} ToggleResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /tasks/{id}/archive [post]
func (h *TaskHandler) ToggleArchive(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	archived, err := h.tasks.ToggleArchive(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	msg := "Task unarchived"
	if archived {
		msg = "Task archived"
	}
	return c.JSON(http.StatusOK, ToggleResponse{Message: msg, State: archived})
}

// Comments godoc
// @Summary List task comments
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Success 200 {array} model.Comment
// @Failure 403 {object} errors.ErrorResponse
// @Router /tasks/{id}/comments [get]
func (h *TaskHandler) Comments(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	comments, err := h.tasks.Comments(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, comments)
}

// AddComment godoc
// @Summary Comment on a task
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Param request body CommentRequest true "Comment"
// @Success 201 {object} model.Comment
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /tasks/{id}/comments [post]
func (h *TaskHandler) AddComment(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req CommentRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	comment, err := h.tasks.AddComment(c.Request().Context(), p, id, req.Text)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, comment)
}

// DeleteComment godoc
// @Summary Delete a comment
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param commentId path string true "Comment ID"
// @Success 200 {object} MessageResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/comments/{commentId} [delete]
func (h *TaskHandler) DeleteComment(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	commentID, err := pathID(c, "commentId")
	if err != nil {
		return err
	}
	if err := h.tasks.DeleteComment(c.Request().Context(), p, commentID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Comment deleted"})
}

// Activity godoc
// @Summary Task activity feed
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task ID"
// @Param limit query int false "Maximum entries"
// @Success 200 {array} model.ActivityLog
// @Failure 403 {object} errors.ErrorResponse
// @Router /tasks/{id}/activity [get]
func (h *TaskHandler) Activity(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	feed, err := h.tasks.Activity(c.Request().Context(), p, id, limitParam(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, feed)
}
