package engine

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"taskboard/internal/domain"
	"taskboard/internal/engine/auth"
	"taskboard/internal/events"
	"taskboard/internal/repo"
)

// TaskUpdateOptions encapsulates allowed updates. Nil fields are left
// untouched; an empty DueDate clears it.
type TaskUpdateOptions struct {
	ProjectID   string
	TaskID      string
	Title       *string
	Description *string
	Assignee    *domain.AssigneeSet
	Status      *string
	Priority    *string
	DueDate     *string
	Attachments *[]domain.Attachment
	Subtasks    *[]domain.Subtask
}

// UpdateTask applies field updates. A status change to a different value
// appends one history entry; earlier entries are never touched.
func (e Engine) UpdateTask(ctx context.Context, actor auth.Principal, opts TaskUpdateOptions) (card domain.TaskCard, err error) {
	ctx, span := startSpan(ctx, "engine.UpdateTask", attribute.String("task.id", opts.TaskID))
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(opts.TaskID) == "" {
		return domain.TaskCard{}, domain.ValidationError{Field: "taskId", Reason: "is required"}
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.TaskCard{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTask(ctx, tx, opts.TaskID)
	if err != nil {
		return domain.TaskCard{}, notFound(err, "task", opts.TaskID)
	}
	if opts.ProjectID != "" && t.ProjectID != opts.ProjectID {
		return domain.TaskCard{}, domain.NotFoundError{Entity: "task", ID: opts.TaskID}
	}
	if _, err := e.projectFor(ctx, tx, actor, t.ProjectID); err != nil {
		return domain.TaskCard{}, err
	}

	changed := []string{}
	if opts.Title != nil {
		title := strings.TrimSpace(*opts.Title)
		if title == "" {
			return domain.TaskCard{}, domain.ValidationError{Field: "title", Reason: "must not be empty"}
		}
		t.Title = title
		changed = append(changed, "title")
	}
	if opts.Description != nil {
		t.Description = *opts.Description
		changed = append(changed, "description")
	}
	if opts.Assignee != nil {
		set := domain.NewAssigneeSet((*opts.Assignee)...)
		if err := e.requireUsers(ctx, tx, set); err != nil {
			return domain.TaskCard{}, err
		}
		t.Assignee = set
		changed = append(changed, "assignee")
	}
	if opts.Priority != nil {
		t.Priority = *opts.Priority
		changed = append(changed, "priority")
	}
	if opts.DueDate != nil {
		if *opts.DueDate == "" {
			t.DueDate = nil
		} else {
			v := *opts.DueDate
			t.DueDate = &v
		}
		changed = append(changed, "dueDate")
	}
	if opts.Attachments != nil {
		t.Attachments = nonNil(*opts.Attachments)
		changed = append(changed, "attachments")
	}
	if opts.Subtasks != nil {
		t.Subtasks = nonNil(*opts.Subtasks)
		changed = append(changed, "subtasks")
	}

	now := e.stamp()
	var statusFrom string
	if opts.Status != nil {
		next := strings.TrimSpace(*opts.Status)
		if next != "" && next != t.Status {
			if !e.Statuses.Valid(next) {
				return domain.TaskCard{}, domain.InvalidOperationError{
					Reason:  "invalid status " + next,
					Details: map[string]any{"valid": e.Statuses.Keys(), "labels": e.Statuses.Labels()},
				}
			}
			statusFrom = t.Status
			t.Status = next
			if err := e.Repo.AppendStatusHistory(ctx, tx, t.ID, domain.StatusHistoryEntry{Status: next, Timestamp: now, ChangedBy: actor.UserID}); err != nil {
				return domain.TaskCard{}, err
			}
			changed = append(changed, "status")
		}
	}

	t.UpdatedAt = now
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.TaskCard{}, notFound(err, "task", t.ID)
	}
	if err := e.record(ctx, tx, events.TaskUpdated, t.ProjectID, "task", t.ID, actor, events.EventPayload{"fields": changed}); err != nil {
		return domain.TaskCard{}, err
	}
	if statusFrom != "" {
		if err := e.record(ctx, tx, events.TaskStatusMoved, t.ProjectID, "task", t.ID, actor, events.EventPayload{"from": statusFrom, "to": t.Status}); err != nil {
			return domain.TaskCard{}, err
		}
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

func (e Engine) GetTask(ctx context.Context, actor auth.Principal, taskID string) (domain.TaskCard, error) {
	t, err := e.Repo.GetTask(ctx, nil, taskID)
	if err != nil {
		return domain.TaskCard{}, notFound(err, "task", taskID)
	}
	if _, err := e.projectFor(ctx, nil, actor, t.ProjectID); err != nil {
		return domain.TaskCard{}, err
	}
	return e.card(ctx, nil, t)
}

// TaskHistory returns the task's status history in append order.
func (e Engine) TaskHistory(ctx context.Context, actor auth.Principal, taskID string) ([]domain.StatusHistoryEntry, error) {
	t, err := e.Repo.GetTask(ctx, nil, taskID)
	if err != nil {
		return nil, notFound(err, "task", taskID)
	}
	if _, err := e.projectFor(ctx, nil, actor, t.ProjectID); err != nil {
		return nil, err
	}
	return e.Repo.ListStatusHistory(ctx, nil, taskID)
}

// DeleteTask removes a task and closes the gap it leaves in its section.
func (e Engine) DeleteTask(ctx context.Context, actor auth.Principal, taskID string) (err error) {
	ctx, span := startSpan(ctx, "engine.DeleteTask", attribute.String("task.id", taskID))
	defer func() { endSpan(span, err) }()

	tx, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTask(ctx, tx, taskID)
	if err != nil {
		return notFound(err, "task", taskID)
	}
	if _, err := e.projectFor(ctx, tx, actor, t.ProjectID); err != nil {
		return err
	}
	if err := e.Repo.DeleteTask(ctx, tx, taskID); err != nil {
		return notFound(err, "task", taskID)
	}
	scope := repo.Scope{ProjectID: t.ProjectID, SectionID: t.SectionID}
	if err := e.Repo.ShiftFrom(ctx, tx, scope, t.Order+1, -1, t.ID); err != nil {
		return err
	}
	if err := e.record(ctx, tx, events.TaskDeleted, t.ProjectID, "task", t.ID, actor, events.EventPayload{"title": t.Title}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.evict(ctx, t.ProjectID)
	return nil
}
