package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"taskhub/internal/model"
	"taskhub/internal/service"
)

// ProjectHandler handles project, project membership and project task endpoints.
type ProjectHandler struct {
	projects service.ProjectService
	tasks    service.TaskService
}

// NewProjectHandler creates a project handler.
func NewProjectHandler(projects service.ProjectService, tasks service.TaskService) *ProjectHandler {
	return &ProjectHandler{projects: projects, tasks: tasks}
}

// ProjectMemberRequest names a user and their project role.
type ProjectMemberRequest struct {
	UserID uuid.UUID `json:"userId" validate:"required"`
	Role   string    `json:"role" validate:"omitempty,oneof=manager contributor viewer"`
}

func (r ProjectMemberRequest) input() service.MemberInput {
	return service.MemberInput{UserID: r.UserID, Role: model.ProjectRole(r.Role)}
}

// CreateProjectRequest is the payload for a new project.
type CreateProjectRequest struct {
	Title       string                 `json:"title" validate:"required,max=255"`
	Description string                 `json:"description"`
	Status      string                 `json:"status"`
	StartDate   *string                `json:"startDate"`
	DueDate     *string                `json:"dueDate"`
	Members     []ProjectMemberRequest `json:"members" validate:"dive"`
}

func (r CreateProjectRequest) input() (service.CreateProjectInput, error) {
	start, err := optionalDate("startDate", r.StartDate)
	if err != nil {
		return service.CreateProjectInput{}, err
	}
	due, err := optionalDate("dueDate", r.DueDate)
	if err != nil {
		return service.CreateProjectInput{}, err
	}
	members := make([]service.MemberInput, 0, len(r.Members))
	for _, m := range r.Members {
		members = append(members, m.input())
	}
	return service.CreateProjectInput{
		Title:       r.Title,
		Description: r.Description,
		Status:      model.ProjectStatus(r.Status),
		StartDate:   start,
		DueDate:     due,
		Members:     members,
	}, nil
}

// UpdateProjectRequest changes status and schedule.
type UpdateProjectRequest struct {
	Status    *string `json:"status"`
	StartDate *string `json:"startDate"`
	DueDate   *string `json:"dueDate"`
}

// UpdateProjectDetailsRequest changes title and description.
type UpdateProjectDetailsRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description"`
}

// ProjectRoleRequest changes a project member's role.
type ProjectRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=manager contributor viewer"`
}

// Get godoc
// @Summary Get a project
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} model.Project
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /projects/{id} [get]
func (h *ProjectHandler) Get(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	project, err := h.projects.Get(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, project)
}

// Update godoc
// @Summary Update project status and dates
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param request body UpdateProjectRequest true "Fields"
// @Success 200 {object} model.Project
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /projects/{id} [put]
func (h *ProjectHandler) Update(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateProjectRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	var in service.UpdateProjectInput
	if req.Status != nil {
		status := model.ProjectStatus(*req.Status)
		in.Status = &status
	}
	if in.StartDate, err = optionalDate("startDate", req.StartDate); err != nil {
		return err
	}
	if in.DueDate, err = optionalDate("dueDate", req.DueDate); err != nil {
		return err
	}

	project, err := h.projects.Update(c.Request().Context(), p, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, project)
}

// UpdateDetails godoc
// @Summary Update project title and description
// @Description Restricted to workspace managers and the master admin.
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param request body UpdateProjectDetailsRequest true "Fields"
// @Success 200 {object} model.Project
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /projects/{id}/details [put]
func (h *ProjectHandler) UpdateDetails(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateProjectDetailsRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	project, err := h.projects.UpdateDetails(c.Request().Context(), p, id, service.UpdateProjectDetailsInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, project)
}

// Delete godoc
// @Summary Delete a project with its tasks
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} MessageResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /projects/{id} [delete]
func (h *ProjectHandler) Delete(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.projects.Delete(c.Request().Context(), p, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Project deleted"})
}

// AddMember godoc
// @Summary Add a project member
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param request body ProjectMemberRequest true "Member"
// @Success 201 {object} model.ProjectMember
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /projects/{id}/members [post]
func (h *ProjectHandler) AddMember(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req ProjectMemberRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	member, err := h.projects.AddMember(c.Request().Context(), p, id, req.input())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, member)
}

// UpdateMemberRole godoc
// @Summary Change a project member's role
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param userId path string true "User ID"
// @Param request body ProjectRoleRequest true "Role"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /projects/{id}/members/{userId} [put]
func (h *ProjectHandler) UpdateMemberRole(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	var req ProjectRoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	in := service.MemberInput{UserID: userID, Role: model.ProjectRole(req.Role)}
	if err := h.projects.UpdateMemberRole(c.Request().Context(), p, id, in); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Member role updated"})
}

// RemoveMember godoc
// @Summary Remove a project member
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param userId path string true "User ID"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /projects/{id}/members/{userId} [delete]
func (h *ProjectHandler) RemoveMember(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	if err := h.projects.RemoveMember(c.Request().Context(), p, id, userID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Member removed"})
}

// Tasks godoc
// @Summary List tasks of a project
// @Tags tasks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param archived query bool false "Include archived tasks"
// @Success 200 {array} model.Task
// @Failure 403 {object} errors.ErrorResponse
// @Router /projects/{id}/tasks [get]
func (h *ProjectHandler) Tasks(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	includeArchived := c.QueryParam("archived") == "true"
	tasks, err := h.tasks.ListByProject(c.Request().Context(), p, id, includeArchived)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tasks)
}

// CreateTask godoc
// @Summary Create a task in a project
// @Tags tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param request body CreateTaskRequest true "Task"
// @Success 201 {object} model.Task
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /projects/{id}/tasks [post]
func (h *ProjectHandler) CreateTask(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req CreateTaskRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	due, err := optionalDate("dueDate", req.DueDate)
	if err != nil {
		return err
	}
	task, err := h.tasks.Create(c.Request().Context(), p, id, service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      model.TaskStatus(req.Status),
		Priority:    model.TaskPriority(req.Priority),
		DueDate:     due,
		Assignees:   req.Assignees,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, task)
}

// Activity godoc
// @Summary Project activity feed
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param limit query int false "Maximum entries"
// @Success 200 {array} model.ActivityLog
// @Failure 403 {object} errors.ErrorResponse
// @Router /projects/{id}/activity [get]
func (h *ProjectHandler) Activity(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	feed, err := h.projects.Activity(c.Request().Context(), p, id, limitParam(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, feed)
}
