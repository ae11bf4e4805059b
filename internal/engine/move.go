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

// MoveOptions describes a move. A nil SectionID keeps the task in its current
// section. ProjectID is an optional hint the target section must match.
type MoveOptions struct {
	TaskID    string
	SectionID *string
	Order     int
	ProjectID string
}

// MoveTask places a task at Order in the target section and shifts siblings
// so orders in both the source and destination stay 0..n-1. The shifts and
// the task's own write commit together. Orders past the end are clamped to
// the last slot.
func (e Engine) MoveTask(ctx context.Context, actor auth.Principal, opts MoveOptions) (card domain.TaskCard, err error) {
	ctx, span := startSpan(ctx, "engine.MoveTask", attribute.String("task.id", opts.TaskID), attribute.Int("target.order", opts.Order))
	defer func() { endSpan(span, err) }()

	if opts.Order < 0 {
		return domain.TaskCard{}, domain.ValidationError{Field: "order", Reason: "must be >= 0"}
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
	if _, err := e.projectFor(ctx, tx, actor, t.ProjectID); err != nil {
		return domain.TaskCard{}, err
	}

	dest := t.SectionID
	if opts.SectionID != nil && strings.TrimSpace(*opts.SectionID) != "" {
		sid := strings.TrimSpace(*opts.SectionID)
		sec, err := e.Repo.GetSection(ctx, tx, sid)
		if err != nil {
			return domain.TaskCard{}, notFound(err, "section", sid)
		}
		if opts.ProjectID != "" && sec.ProjectID != opts.ProjectID {
			return domain.TaskCard{}, domain.InvalidOperationError{
				Reason:  "section does not belong to project " + opts.ProjectID,
				Details: map[string]any{"section_id": sid, "project_id": opts.ProjectID},
			}
		}
		if sec.ProjectID != t.ProjectID {
			return domain.TaskCard{}, domain.InvalidOperationError{
				Reason:  "section belongs to a different project than the task",
				Details: map[string]any{"section_id": sid, "task_id": t.ID},
			}
		}
		dest = &sec.ID
	}

	src := repo.Scope{ProjectID: t.ProjectID, SectionID: t.SectionID}
	dst := repo.Scope{ProjectID: t.ProjectID, SectionID: dest}
	from := t.Order
	target := opts.Order

	if sameSection(t.SectionID, dest) {
		count, err := e.Repo.CountInScope(ctx, tx, src)
		if err != nil {
			return domain.TaskCard{}, err
		}
		if target > count-1 {
			target = count - 1
		}
		switch {
		case target > from:
			err = e.Repo.ShiftRange(ctx, tx, src, from+1, target, -1, t.ID)
		case target < from:
			err = e.Repo.ShiftRange(ctx, tx, src, target, from-1, 1, t.ID)
		}
		if err != nil {
			return domain.TaskCard{}, err
		}
	} else {
		if err := e.Repo.ShiftFrom(ctx, tx, src, from+1, -1, t.ID); err != nil {
			return domain.TaskCard{}, err
		}
		count, err := e.Repo.CountInScope(ctx, tx, dst)
		if err != nil {
			return domain.TaskCard{}, err
		}
		if target > count {
			target = count
		}
		if err := e.Repo.ShiftFrom(ctx, tx, dst, target, 1, t.ID); err != nil {
			return domain.TaskCard{}, err
		}
	}

	t.SectionID = dest
	t.Order = target
	t.UpdatedAt = e.stamp()
	if err := e.Repo.UpdatePlacement(ctx, tx, t.ID, t.SectionID, t.Order, t.UpdatedAt); err != nil {
		return domain.TaskCard{}, notFound(err, "task", t.ID)
	}
	if err := e.record(ctx, tx, events.TaskMoved, t.ProjectID, "task", t.ID, actor, events.EventPayload{
		"from_section": deref(src.SectionID),
		"from_order":   from,
		"to_section":   deref(dest),
		"to_order":     target,
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

func sameSection(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
