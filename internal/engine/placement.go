package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"taskboard/internal/domain"
	"taskboard/internal/engine/auth"
	"taskboard/internal/events"
	"taskboard/internal/repo"
)

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ID          string
	ProjectID   string
	SectionID   string
	Title       string
	Description string
	Assignee    domain.AssigneeSet
	Status      string
	Priority    string
	DueDate     *string
	Attachments []domain.Attachment
	Subtasks    []domain.Subtask
}

// CreateTask appends a task to the end of its target section. Without a
// section the task lands in the project's first section. Unknown or empty
// statuses fall back to the default status.
func (e Engine) CreateTask(ctx context.Context, actor auth.Principal, opts TaskCreateOptions) (card domain.TaskCard, err error) {
	ctx, span := startSpan(ctx, "engine.CreateTask", attribute.String("project.id", opts.ProjectID))
	defer func() { endSpan(span, err) }()

	title := strings.TrimSpace(opts.Title)
	if title == "" {
		return domain.TaskCard{}, domain.ValidationError{Field: "title", Reason: "is required"}
	}
	assignee := domain.NewAssigneeSet(opts.Assignee...)

	tx, err := e.begin(ctx)
	if err != nil {
		return domain.TaskCard{}, err
	}
	defer tx.Rollback()

	if _, err := e.projectFor(ctx, tx, actor, opts.ProjectID); err != nil {
		return domain.TaskCard{}, err
	}
	if err := e.requireUsers(ctx, tx, assignee); err != nil {
		return domain.TaskCard{}, err
	}

	var sectionID string
	if sid := strings.TrimSpace(opts.SectionID); sid != "" {
		sec, err := e.Repo.GetSection(ctx, tx, sid)
		if err != nil {
			return domain.TaskCard{}, notFound(err, "section", sid)
		}
		if sec.ProjectID != opts.ProjectID {
			return domain.TaskCard{}, domain.NotFoundError{Entity: "section", ID: sid}
		}
		sectionID = sec.ID
	} else {
		sections, err := e.bootstrapTx(ctx, tx, actor, opts.ProjectID)
		if err != nil {
			return domain.TaskCard{}, err
		}
		if len(sections) == 0 {
			return domain.TaskCard{}, domain.InvalidOperationError{Reason: "project has no sections"}
		}
		sectionID = sections[0].ID
	}

	last, err := e.Repo.MaxPositionInScope(ctx, tx, repo.SectionScope(opts.ProjectID, sectionID))
	if err != nil {
		return domain.TaskCard{}, err
	}
	status, ok := e.Statuses.Normalize(opts.Status)
	if !ok {
		status = e.Statuses.Default()
	}

	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := e.stamp()
	entry := domain.StatusHistoryEntry{Status: status, Timestamp: now, ChangedBy: actor.UserID}
	t := domain.Task{
		ID:            id,
		ProjectID:     opts.ProjectID,
		SectionID:     &sectionID,
		Title:         title,
		Description:   opts.Description,
		Assignee:      assignee,
		Status:        status,
		StatusHistory: []domain.StatusHistoryEntry{entry},
		Order:         last + 1,
		Priority:      opts.Priority,
		DueDate:       opts.DueDate,
		Attachments:   nonNil(opts.Attachments),
		Subtasks:      nonNil(opts.Subtasks),
		CreatedBy:     actor.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.TaskCard{}, err
	}
	if err := e.Repo.AppendStatusHistory(ctx, tx, t.ID, entry); err != nil {
		return domain.TaskCard{}, err
	}
	if err := e.record(ctx, tx, events.TaskCreated, t.ProjectID, "task", t.ID, actor, events.EventPayload{
		"title":      t.Title,
		"section_id": sectionID,
		"order":      t.Order,
		"status":     t.Status,
	}); err != nil {
		return domain.TaskCard{}, err
	}
	card, err = e.card(ctx, tx, t)
	if err != nil {
		return domain.TaskCard{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TaskCard{}, err
	}
	e.evict(ctx, t.ProjectID)
	return card, nil
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
