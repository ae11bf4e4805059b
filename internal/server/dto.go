package server

import (
	"taskboard/internal/domain"
)

// Request payloads

type CreateProjectRequest struct {
	ID       string             `json:"id,omitempty"`
	OrgID    string             `json:"orgId,omitempty"`
	Name     string             `json:"name"`
	Assignee domain.AssigneeSet `json:"assignee,omitempty"`
}

type UpdateProjectRequest struct {
	Name     *string             `json:"name,omitempty"`
	Assignee *domain.AssigneeSet `json:"assignee,omitempty"`
}

type CreateSectionRequest struct {
	Name string `json:"name"`
}

type UpdateSectionRequest struct {
	Name  *string `json:"name,omitempty"`
	Order *int    `json:"order,omitempty"`
}

type CreateTaskRequest struct {
	ID          string              `json:"id,omitempty"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	SectionID   *string             `json:"sectionId,omitempty" nullable:"true"`
	Assignee    domain.AssigneeSet  `json:"assignee,omitempty"`
	Status      string              `json:"status,omitempty"`
	Priority    string              `json:"priority,omitempty"`
	DueDate     *string             `json:"dueDate,omitempty" nullable:"true"`
	Attachments []domain.Attachment `json:"attachments,omitempty"`
	Subtasks    []domain.Subtask    `json:"subtasks,omitempty"`
}

// UpdateTaskRequest carries the task id in the body. Absent fields are left
// untouched.
type UpdateTaskRequest struct {
	TaskID      string               `json:"taskId"`
	Title       *string              `json:"title,omitempty"`
	Description *string              `json:"description,omitempty"`
	Assignee    *domain.AssigneeSet  `json:"assignee,omitempty"`
	Status      *string              `json:"status,omitempty"`
	Priority    *string              `json:"priority,omitempty"`
	DueDate     *string              `json:"dueDate,omitempty" nullable:"true"`
	Attachments *[]domain.Attachment `json:"attachments,omitempty"`
	Subtasks    *[]domain.Subtask    `json:"subtasks,omitempty"`
}

// MoveTaskRequest targets a section and slot. A missing or null sectionId
// keeps the task in its current section.
type MoveTaskRequest struct {
	SectionID *string `json:"sectionId,omitempty" nullable:"true"`
	Order     int     `json:"order"`
	ProjectID string  `json:"projectId,omitempty"`
}

type UpsertUserRequest struct {
	ID        string `json:"id,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	PhotoURL  string `json:"photoUrl,omitempty"`
	Role      string `json:"role,omitempty"`
}

type DevLoginRequest struct {
	UserID string `json:"userId"`
	OrgID  string `json:"orgId,omitempty"`
	Role   string `json:"role,omitempty"`
}

// Response payloads

type ProjectResponse struct {
	Project domain.Project `json:"project"`
}

type ProjectsResponse struct {
	Projects []domain.Project `json:"projects"`
}

type SectionResponse struct {
	Section domain.Section `json:"section"`
}

type SectionsResponse struct {
	Sections []domain.Section `json:"sections"`
}

type TaskResponse struct {
	Task domain.TaskCard `json:"task"`
}

type HistoryResponse struct {
	TaskID  string                      `json:"taskId"`
	History []domain.StatusHistoryEntry `json:"history"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type UserResponse struct {
	User domain.User `json:"user"`
}

type UsersResponse struct {
	Users []domain.User `json:"users"`
}

type paginatedEvents struct {
	Events     []domain.Event `json:"events"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}
