// Package policy decides whether a principal may perform an action on a workspace,
// project, task or comment. Evaluation is pure: callers load the target first and
// pass it in, and no I/O happens here.
package policy

import (
	"net/http"

	"github.com/google/uuid"

	apperrors "taskhub/internal/errors"
	"taskhub/internal/model"
)

// Principal is the authenticated actor making a request.
type Principal struct {
	UserID            uuid.UUID
	IsAdmin           bool
	ManagedWorkspaces []uuid.UUID
}

// UserPrincipal builds a principal from a user with ManagedWorkspaces loaded.
func UserPrincipal(u *model.User) Principal {
	return Principal{
		UserID:            u.ID,
		ManagedWorkspaces: u.ManagedWorkspaceIDs(),
	}
}

// AdminPrincipal builds the synthetic master admin principal. It has no memberships.
func AdminPrincipal(adminID uuid.UUID) Principal {
	return Principal{UserID: adminID, IsAdmin: true}
}

// Manages reports whether the principal is a manager of workspaceID.
func (p Principal) Manages(workspaceID uuid.UUID) bool {
	for _, id := range p.ManagedWorkspaces {
		if id == workspaceID {
			return true
		}
	}
	return false
}

// Target is the already-loaded resource an action applies to. Project-scoped actions
// need Project (with Members); workspace-scoped actions need Workspace (with Members);
// comment deletion additionally needs Comment.
type Target struct {
	Workspace *model.Workspace
	Project   *model.Project
	Comment   *model.Comment
}

func (t Target) workspaceID() uuid.UUID {
	if t.Workspace != nil {
		return t.Workspace.ID
	}
	if t.Project != nil {
		return t.Project.WorkspaceID
	}
	return uuid.Nil
}

// Reason explains why a decision was reached.
type Reason string

const (
	ReasonAdmin            Reason = "admin"
	ReasonWorkspaceManager Reason = "workspace_manager"
	ReasonWorkspaceOwner   Reason = "workspace_owner"
	ReasonWorkspaceRole    Reason = "workspace_role"
	ReasonWorkspaceMember  Reason = "workspace_member"
	ReasonProjectRole      Reason = "project_role"
	ReasonProjectMember    Reason = "project_member"
	ReasonCommentAuthor    Reason = "comment_author"
	ReasonNoPermission     Reason = "no_permission"
	ReasonMissingTarget    Reason = "missing_target"
	ReasonUnknownAction    Reason = "unknown_action"
)

// Decision is the outcome of evaluating one action.
type Decision struct {
	Action  Action
	Allowed bool
	Reason  Reason
}

func allow(a Action, r Reason) Decision { return Decision{Action: a, Allowed: true, Reason: r} }
func deny(a Action, r Reason) Decision  { return Decision{Action: a, Reason: r} }

// Evaluate decides whether p may perform a on t.
func Evaluate(p Principal, a Action, t Target) Decision {
	info, ok := actions[a]
	if !ok {
		return deny(a, ReasonUnknownAction)
	}

	if p.IsAdmin {
		return allow(a, ReasonAdmin)
	}

	workspaceID := t.workspaceID()
	if workspaceID == uuid.Nil {
		return deny(a, ReasonMissingTarget)
	}
	manager := p.Manages(workspaceID)

	switch info.rule {
	case ruleWorkspaceView:
		if manager {
			return allow(a, ReasonWorkspaceManager)
		}
		if t.Workspace == nil {
			return deny(a, ReasonMissingTarget)
		}
		if _, ok := t.Workspace.Member(p.UserID); ok {
			return allow(a, ReasonWorkspaceMember)
		}

	case ruleWorkspaceMutation, ruleWorkspaceDelete:
		if manager {
			return allow(a, ReasonWorkspaceManager)
		}
		if t.Workspace == nil {
			return deny(a, ReasonMissingTarget)
		}
		if info.rule == ruleWorkspaceDelete && t.Workspace.OwnerID != nil && *t.Workspace.OwnerID == p.UserID {
			return allow(a, ReasonWorkspaceOwner)
		}
		if m, ok := t.Workspace.Member(p.UserID); ok && isWorkspaceAdminRole(m.Role) {
			return allow(a, ReasonWorkspaceRole)
		}

	case ruleScopedView:
		if manager {
			return allow(a, ReasonWorkspaceManager)
		}
		if t.Workspace != nil {
			if _, ok := t.Workspace.Member(p.UserID); ok {
				return allow(a, ReasonWorkspaceMember)
			}
		}
		if t.Project != nil {
			if _, ok := t.Project.Member(p.UserID); ok {
				return allow(a, ReasonProjectMember)
			}
		}

	case ruleWorkspaceManagerOnly:
		if manager {
			return allow(a, ReasonWorkspaceManager)
		}

	case ruleProjectManager:
		if manager {
			return allow(a, ReasonWorkspaceManager)
		}
		if t.Project == nil {
			return deny(a, ReasonMissingTarget)
		}
		if m, ok := t.Project.Member(p.UserID); ok && m.Role == model.ProjectRoleManager {
			return allow(a, ReasonProjectRole)
		}

	case ruleTaskEditor:
		if manager {
			return allow(a, ReasonWorkspaceManager)
		}
		if t.Project == nil {
			return deny(a, ReasonMissingTarget)
		}
		if m, ok := t.Project.Member(p.UserID); ok && isTaskEditorRole(m.Role) {
			return allow(a, ReasonProjectRole)
		}

	case ruleProjectMember:
		if t.Project == nil {
			return deny(a, ReasonMissingTarget)
		}
		if _, ok := t.Project.Member(p.UserID); ok {
			return allow(a, ReasonProjectMember)
		}

	case ruleCommentDelete:
		if t.Comment == nil || t.Project == nil {
			return deny(a, ReasonMissingTarget)
		}
		if t.Comment.AuthorID == p.UserID {
			return allow(a, ReasonCommentAuthor)
		}
		if manager {
			return allow(a, ReasonWorkspaceManager)
		}
		if m, ok := t.Project.Member(p.UserID); ok && m.Role == model.ProjectRoleManager {
			return allow(a, ReasonProjectRole)
		}
	}

	return deny(a, ReasonNoPermission)
}

// Can reports whether p may perform a on t.
func Can(p Principal, a Action, t Target) bool {
	return Evaluate(p, a, t).Allowed
}

// Authorize returns a *DeniedError when p may not perform a on t.
func Authorize(p Principal, a Action, t Target) error {
	d := Evaluate(p, a, t)
	if d.Allowed {
		return nil
	}
	return &DeniedError{Decision: d}
}

// admin and the never-assigned owner value both grant workspace mutation.
func isWorkspaceAdminRole(r model.WorkspaceRole) bool {
	return r == model.WorkspaceRoleAdmin || r == model.WorkspaceRoleOwner
}

// admin and owner cannot be assigned to project members; kept so stored legacy values keep working.
func isTaskEditorRole(r model.ProjectRole) bool {
	switch r {
	case model.ProjectRoleManager, model.ProjectRoleAdmin, model.ProjectRoleOwner:
		return true
	}
	return false
}

// DeniedError is returned by Authorize. It maps to HTTP 403.
type DeniedError struct {
	Decision Decision
}

func (e *DeniedError) Error() string { return e.Decision.Action.Message() }

// HTTPStatus implements errors.Coded.
func (e *DeniedError) HTTPStatus() int { return http.StatusForbidden }

// ErrorCode implements errors.Coded.
func (e *DeniedError) ErrorCode() string { return "FORBIDDEN" }

// Is makes errors.Is(err, ErrForbidden) hold for denials.
func (e *DeniedError) Is(target error) bool { return target == apperrors.ErrForbidden }
