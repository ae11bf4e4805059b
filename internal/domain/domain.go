package domain

type Project struct {
	ID        string      `json:"id"`
	OrgID     string      `json:"orgId,omitempty"`
	Name      string      `json:"name"`
	Assignee  AssigneeSet `json:"assignee"`
	CreatedBy string      `json:"createdBy,omitempty"`
	CreatedAt string      `json:"createdAt" format:"date-time"`
	UpdatedAt string      `json:"updatedAt" format:"date-time"`
}

type Section struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Order     int    `json:"order"`
	IsDefault bool   `json:"isDefault"`
	CreatedAt string `json:"createdAt" format:"date-time"`
	UpdatedAt string `json:"updatedAt" format:"date-time"`
}

// StatusHistoryEntry is immutable once appended.
type StatusHistoryEntry struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp" format:"date-time"`
	ChangedBy string `json:"changedBy"`
}

type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Subtask struct {
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// Task is a board card. A nil SectionID marks an orphan, which the board folds
// into the first section.
type Task struct {
	ID            string               `json:"id"`
	ProjectID     string               `json:"projectId"`
	SectionID     *string              `json:"sectionId"`
	Title         string               `json:"title"`
	Description   string               `json:"description,omitempty"`
	Assignee      AssigneeSet          `json:"assignee"`
	Status        string               `json:"status"`
	StatusHistory []StatusHistoryEntry `json:"statusHistory"`
	Order         int                  `json:"order"`
	Priority      string               `json:"priority,omitempty"`
	DueDate       *string              `json:"dueDate,omitempty"`
	Attachments   []Attachment         `json:"attachments"`
	Subtasks      []Subtask            `json:"subtasks"`
	CreatedBy     string               `json:"createdBy,omitempty"`
	CreatedAt     string               `json:"createdAt" format:"date-time"`
	UpdatedAt     string               `json:"updatedAt" format:"date-time"`
}

// UserInfo is the display projection of a user used to resolve assignees.
type UserInfo struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	PhotoURL  string `json:"photoUrl,omitempty"`
}

type User struct {
	UserInfo
	Role      string `json:"role,omitempty"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}

// TaskCard is a task enriched with resolved assignee identities.
type TaskCard struct {
	Task
	AssigneeInfo []UserInfo `json:"assigneeInfo"`
}

type BoardSection struct {
	Section
	Tasks []TaskCard `json:"tasks"`
}

type Board struct {
	ProjectID string         `json:"projectId"`
	Sections  []BoardSection `json:"sections"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"projectId,omitempty"`
	EntityKind string `json:"entityKind"`
	EntityID   string `json:"entityId,omitempty"`
	ActorID    string `json:"actorId"`
	Payload    string `json:"payload"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Role      string `json:"role,omitempty"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"keyHash"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}
