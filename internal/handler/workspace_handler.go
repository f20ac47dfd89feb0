package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"taskhub/internal/model"
	"taskhub/internal/service"
)

// WorkspaceHandler handles workspace, membership and manager endpoints.
type WorkspaceHandler struct {
	workspaces service.WorkspaceService
	projects   service.ProjectService
}

// NewWorkspaceHandler creates a workspace handler.
func NewWorkspaceHandler(workspaces service.WorkspaceService, projects service.ProjectService) *WorkspaceHandler {
	return &WorkspaceHandler{workspaces: workspaces, projects: projects}
}

// CreateWorkspaceRequest is the payload for a new workspace.
type CreateWorkspaceRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
	Color       string `json:"color" validate:"omitempty,hexcolor"`
}

// UpdateWorkspaceRequest holds the optional workspace fields to change.
type UpdateWorkspaceRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description *string `json:"description"`
	Color       *string `json:"color" validate:"omitempty,hexcolor"`
}

// InviteRequest invites a registered user by email.
type InviteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"omitempty,oneof=member admin viewer"`
}

// AcceptInviteRequest carries the invite token from the email link.
type AcceptInviteRequest struct {
	Token string `json:"token" validate:"required"`
}

// WorkspaceMemberRequest adds a user to a workspace.
type WorkspaceMemberRequest struct {
	UserID uuid.UUID `json:"userId" validate:"required"`
	Role   string    `json:"role" validate:"omitempty,oneof=member admin viewer"`
}

// WorkspaceRoleRequest changes a member's role.
type WorkspaceRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=member admin viewer"`
}

// ManagerRequest names the user to promote to workspace manager.
type ManagerRequest struct {
	UserID uuid.UUID `json:"userId" validate:"required"`
}

// InviteResponse reports the pending invite.
type InviteResponse struct {
	Message   string                 `json:"message"`
	Invite    *model.WorkspaceInvite `json:"invite"`
	EmailSent bool                   `json:"emailSent"`
}

// List godoc
// @Summary List workspaces visible to the caller
// @Tags workspaces
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Workspace
// @Failure 401 {object} errors.ErrorResponse
// @Router /workspaces [get]
// @Router /admin/workspaces [get]
func (h *WorkspaceHandler) List(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	list, err := h.workspaces.List(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

// Create godoc
// @Summary Create a workspace
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateWorkspaceRequest true "Workspace"
// @Success 201 {object} model.Workspace
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /admin/workspaces [post]
func (h *WorkspaceHandler) Create(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req CreateWorkspaceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ws, err := h.workspaces.Create(c.Request().Context(), p, service.CreateWorkspaceInput{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ws)
}

// Get godoc
// @Summary Get a workspace
// @Tags workspaces
// @Produce json
// @Security BearerAuth
// @Param id path string true "Workspace ID"
// @Success 200 {object} model.Workspace
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /workspaces/{id} [get]
func (h *WorkspaceHandler) Get(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ws, err := h.workspaces.Get(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ws)
}

// Update godoc
// @Summary Update a workspace
// @Tags workspaces
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Workspace ID"
// @Param request body UpdateWorkspaceRequest true "Fields"
// @Success 200 {object} model.Workspace
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /workspaces/{id} [put]
func (h *WorkspaceHandler) Update(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateWorkspaceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ws, err := h.workspaces.Update(c.Request().Context(), p, id, service.UpdateWorkspaceInput{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ws)
}

// Delete godoc
// @Summary Delete a workspace with its projects and tasks
// @Tags workspaces
// @Produce json
// @Security BearerAuth
// @Param id path string true "Workspace ID"
// @Success 200 {object} MessageResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /workspaces/{id} [delete]
func (h *WorkspaceHandler) Delete(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.workspaces.Delete(c.Request().Context(), p, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Workspace deleted"})
}

// Invite godoc
// @Summary Invite a registered user to a workspace
// @Tags workspaces
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Workspace ID"
// @Param request body InviteRequest true "Invite"
// @Success 201 {object} InviteResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /workspaces/{id}/invites [post]
func (h *WorkspaceHandler) Invite(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req InviteRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.workspaces.Invite(c.Request().Context(), p, id, req.Email, model.WorkspaceRole(req.Role))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, InviteResponse{
		Message:   "Invitation sent",
		Invite:    res.Invite,
		EmailSent: res.EmailSent,
	})
}

// AcceptInvite godoc
// @Summary Accept a workspace invite
// @Description The first non-admin member to join a workspace becomes its manager.
// @Tags workspaces
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body AcceptInviteRequest true "Invite token"
// @Success 200 {object} model.Workspace
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /workspaces/invites/accept [post]
func (h *WorkspaceHandler) AcceptInvite(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req AcceptInviteRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ws, err := h.workspaces.AcceptInvite(c.Request().Context(), p, req.Token)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ws)
}

// Members godoc
// @Summary List workspace members
// @Tags workspaces
// @Produce json
// @Security BearerAuth
// @Param id path string true "Workspace ID"
// @Success 200 {array} model.WorkspaceMember
// @Failure 403 {object} errors.ErrorResponse
// @Router /workspaces/{id}/members [get]
func (h *WorkspaceHandler) Members(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	members, err := h.workspaces.Members(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, members)
}

// AddMember godoc
// @Summary Add a user to a workspace
// @Tags workspaces
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Workspace ID"
// @Param request body WorkspaceMemberRequest true "Member"
// @Success 201 {object} model.WorkspaceMember
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /workspaces/{id}/members [post]
// @Router /admin/workspaces/{id}/members [post]
func (h *WorkspaceHandler) AddMember(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req WorkspaceMemberRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	member, err := h.workspaces.AddMember(c.Request().Context(), p, id, req.UserID, model.WorkspaceRole(req.Role))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, member)
}

// UpdateMemberRole godoc
// @Summary Change a workspace member's role
// @Tags workspaces
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Workspace ID"
// @Param userId path string true "User ID"
// @Param request body WorkspaceRoleRequest true "Role"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /workspaces/{id}/members/{userId} [put]
func (h *WorkspaceHandler) UpdateMemberRole(c echo.Context) error {
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
	var req WorkspaceRoleRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.workspaces.UpdateMemberRole(c.Request().Context(), p, id, userID, model.WorkspaceRole(req.Role)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Member role updated"})
}

// RemoveMember godoc
// @Summary Remove a user from a workspace
// @Tags workspaces
// @Produce json
// @Security BearerAuth
// @Param id path string true "Workspace ID"
// @Param userId path string true "User ID"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /workspaces/{id}/members/{userId} [delete]
func (h *WorkspaceHandler) RemoveMember(c echo.Context) error {
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
	if err := h.workspaces.RemoveMember(c.Request().Context(), p, id, userID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Member removed"})
}

// Managers godoc
// @Summary List workspace managers
// @Tags workspaces
// @Produce json
// @Security BearerAuth
// @Param id path string true "Workspace ID"
// @Success 200 {array} model.User
// @Failure 403 {object} errors.ErrorResponse
// @Router /workspaces/{id}/managers [get]
func (h *WorkspaceHandler) Managers(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	managers, err := h.workspaces.Managers(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, managers)
}

// AssignManager godoc
// @Summary Make a user a workspace manager
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Workspace ID"
// @Param request body ManagerRequest true "User"
// @Success 200 {object} MessageResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/workspaces/{id}/managers [put]
func (h *WorkspaceHandler) AssignManager(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req ManagerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := h.workspaces.AssignManager(c.Request().Context(), p, id, req.UserID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Workspace manager assigned"})
}

// RemoveManager godoc
// @Summary Revoke a workspace manager
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Workspace ID"
// @Param userId path string true "User ID"
// @Success 200 {object} MessageResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/workspaces/{id}/managers/{userId} [delete]
func (h *WorkspaceHandler) RemoveManager(c echo.Context) error {
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
	if err := h.workspaces.RemoveManager(c.Request().Context(), p, id, userID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, MessageResponse{Message: "Workspace manager removed"})
}

// Projects godoc
// @Summary List projects of a workspace
// @Tags projects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Workspace ID"
// @Success 200 {array} model.Project
// @Failure 403 {object} errors.ErrorResponse
// @Router /workspaces/{id}/projects [get]
func (h *WorkspaceHandler) Projects(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	projects, err := h.projects.ListByWorkspace(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, projects)
}

// CreateProject godoc
// @Summary Create a project in a workspace
// @Tags projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Workspace ID"
// @Param request body CreateProjectRequest true "Project"
// @Success 201 {object} model.Project
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /workspaces/{id}/projects [post]
func (h *WorkspaceHandler) CreateProject(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req CreateProjectRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	in, err := req.input()
	if err != nil {
		return err
	}
	project, err := h.projects.Create(c.Request().Context(), p, id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, project)
}
