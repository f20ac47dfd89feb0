package policy

// Action is an operation a principal attempts on a workspace, project, task or comment.
type Action int

const (
	ActionWorkspaceView Action = iota + 1
	ActionWorkspaceUpdate
	ActionWorkspaceDelete
	ActionWorkspaceInvite
	ActionWorkspaceManageMembers

	ActionProjectCreate
	ActionProjectView
	ActionProjectUpdate
	ActionProjectUpdateDetails
	ActionProjectDelete
	ActionProjectManageMembers

	ActionTaskCreate
	ActionTaskView
	ActionTaskUpdate
	ActionTaskDelete
	ActionTaskAddSubtask
	ActionTaskUpdateSubtask
	ActionTaskWatch
	ActionTaskArchive

	ActionCommentCreate
	ActionCommentDelete
)

// rule is how an action is decided once the admin bypass has not applied.
type rule int

const (
	// ruleWorkspaceView: workspace manager or any workspace member.
	ruleWorkspaceView rule = iota + 1
	// ruleWorkspaceMutation: workspace manager or workspace admin/owner role.
	ruleWorkspaceMutation
	// ruleWorkspaceDelete: ruleWorkspaceMutation plus the workspace owner field.
	ruleWorkspaceDelete
	// ruleScopedView: workspace manager, workspace member or project member.
	ruleScopedView
	// ruleProjectManager: workspace manager or project manager role.
	ruleProjectManager
	// ruleWorkspaceManagerOnly: workspace manager.
	ruleWorkspaceManagerOnly
	// ruleTaskEditor: workspace manager or an elevated project role.
	ruleTaskEditor
	// ruleProjectMember: any project member regardless of role. No workspace manager bypass.
	ruleProjectMember
	// ruleCommentDelete: comment author, workspace manager or project manager role.
	ruleCommentDelete
)

type actionInfo struct {
	name    string
	rule    rule
	message string
}

var actions = map[Action]actionInfo{
	ActionWorkspaceView:          {"workspace:view", ruleWorkspaceView, "You do not have access to this workspace"},
	ActionWorkspaceUpdate:        {"workspace:update", ruleWorkspaceMutation, "You are not authorized to update this workspace"},
	ActionWorkspaceDelete:        {"workspace:delete", ruleWorkspaceDelete, "You are not authorized to delete this workspace"},
	ActionWorkspaceInvite:        {"workspace:invite", ruleWorkspaceMutation, "You are not authorized to invite members to this workspace"},
	ActionWorkspaceManageMembers: {"workspace:manage-members", ruleWorkspaceMutation, "You are not authorized to manage members of this workspace"},

	ActionProjectCreate:        {"project:create", ruleWorkspaceMutation, "You are not authorized to create projects in this workspace"},
	ActionProjectView:          {"project:view", ruleScopedView, "You do not have access to this project"},
	ActionProjectUpdate:        {"project:update", ruleProjectManager, "You are not authorized to update this project"},
	ActionProjectUpdateDetails: {"project:update-details", ruleWorkspaceManagerOnly, "Only admins and workspace managers can edit project title and description"},
	ActionProjectDelete:        {"project:delete", ruleProjectManager, "You are not authorized to delete this project"},
	ActionProjectManageMembers: {"project:manage-members", ruleProjectManager, "You are not authorized to manage members of this project"},

	ActionTaskCreate:        {"task:create", ruleProjectMember, "You must be a member of this project to create tasks"},
	ActionTaskView:          {"task:view", ruleScopedView, "You do not have access to this task"},
	ActionTaskUpdate:        {"task:update", ruleTaskEditor, "You are not authorized to update this task"},
	ActionTaskDelete:        {"task:delete", ruleTaskEditor, "You are not authorized to delete this task"},
	ActionTaskAddSubtask:    {"task:add-subtask", ruleProjectMember, "You must be a member of this project to add subtasks"},
	ActionTaskUpdateSubtask: {"task:update-subtask", ruleProjectMember, "You must be a member of this project to update subtasks"},
	ActionTaskWatch:         {"task:watch", ruleProjectMember, "You must be a member of this project to watch tasks"},
	ActionTaskArchive:       {"task:archive", ruleProjectMember, "You must be a member of this project to archive tasks"},

	ActionCommentCreate: {"comment:create", ruleProjectMember, "You must be a member of this project to comment"},
	ActionCommentDelete: {"comment:delete", ruleCommentDelete, "You are not authorized to delete this comment"},
}

// String returns the action's stable name, used in logs and metrics labels.
func (a Action) String() string {
	if info, ok := actions[a]; ok {
		return info.name
	}
	return "unknown"
}

// Message is the static message returned to the client when the action is denied.
func (a Action) Message() string {
	if info, ok := actions[a]; ok {
		return info.message
	}
	return "You are not authorized to perform this action"
}
