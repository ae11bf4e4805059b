package engine

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	log "github.com/sirupsen/logrus"

	"taskboard/internal/domain"
	"taskboard/internal/engine/auth"
	"taskboard/internal/events"
)

// ListSections returns the project's sections by ascending order, creating
// the default set on first access.
func (e Engine) ListSections(ctx context.Context, actor auth.Principal, projectID string) (sections []domain.Section, err error) {
	ctx, span := startSpan(ctx, "engine.ListSections", attribute.String("project.id", projectID))
	defer func() { endSpan(span, err) }()

	if _, err := e.projectFor(ctx, nil, actor, projectID); err != nil {
		return nil, err
	}
	return e.ensureSections(ctx, actor, projectID)
}

// ensureSections reads sections and bootstraps them when none exist. The
// common case never opens a write transaction.
func (e Engine) ensureSections(ctx context.Context, actor auth.Principal, projectID string) ([]domain.Section, error) {
	sections, err := e.Repo.ListSections(ctx, nil, projectID)
	if err != nil {
		return nil, err
	}
	if len(sections) > 0 {
		return sections, nil
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	sections, err = e.bootstrapTx(ctx, tx, actor, projectID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return sections, nil
}

// bootstrapTx inserts the default sections if the project has none. Each
// default occupies a unique slot, so a concurrent bootstrap inserts nothing
// and both callers read back the same set.
func (e Engine) bootstrapTx(ctx context.Context, tx *sql.Tx, actor auth.Principal, projectID string) ([]domain.Section, error) {
	n, err := e.Repo.CountSections(ctx, tx, projectID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		now := e.stamp()
		inserted := 0
		for i, name := range e.Config.Board.DefaultSections {
			ok, err := e.Repo.InsertDefaultSection(ctx, tx, domain.Section{
				ID:        uuid.NewString(),
				ProjectID: projectID,
				Name:      name,
				Order:     i,
				IsDefault: true,
				CreatedAt: now,
				UpdatedAt: now,
			}, i)
			if err != nil {
				return nil, err
			}
			if ok {
				inserted++
			}
		}
		if inserted > 0 {
			if err := e.record(ctx, tx, events.SectionsSeeded, projectID, "project", projectID, actor, events.EventPayload{"count": inserted}); err != nil {
				return nil, err
			}
			log.WithFields(log.Fields{"project_id": projectID, "sections": inserted}).Info("bootstrapped default sections")
		}
	}
	return e.Repo.ListSections(ctx, tx, projectID)
}

// CreateSection appends a non-default section after the current last one.
func (e Engine) CreateSection(ctx context.Context, actor auth.Principal, projectID, name string) (sec domain.Section, err error) {
	ctx, span := startSpan(ctx, "engine.CreateSection", attribute.String("project.id", projectID))
	defer func() { endSpan(span, err) }()

	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Section{}, domain.ValidationError{Field: "name", Reason: "is required"}
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Section{}, err
	}
	defer tx.Rollback()

	if _, err := e.projectFor(ctx, tx, actor, projectID); err != nil {
		return domain.Section{}, err
	}
	if _, err := e.bootstrapTx(ctx, tx, actor, projectID); err != nil {
		return domain.Section{}, err
	}
	last, err := e.Repo.MaxSectionPosition(ctx, tx, projectID)
	if err != nil {
		return domain.Section{}, err
	}
	now := e.stamp()
	sec = domain.Section{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Name:      name,
		Order:     last + 1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Repo.InsertSection(ctx, tx, sec); err != nil {
		return domain.Section{}, err
	}
	if err := e.record(ctx, tx, events.SectionCreated, projectID, "section", sec.ID, actor, events.EventPayload{"name": sec.Name, "order": sec.Order}); err != nil {
		return domain.Section{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Section{}, err
	}
	e.evict(ctx, projectID)
	return sec, nil
}

// SectionUpdate carries the optional fields of a rename/reorder.
type SectionUpdate struct {
	Name  *string
	Order *int
}

// UpdateSection renames or repositions a section. The order is written as
// given; siblings are not shifted.
func (e Engine) UpdateSection(ctx context.Context, actor auth.Principal, sectionID string, in SectionUpdate) (sec domain.Section, err error) {
	ctx, span := startSpan(ctx, "engine.UpdateSection", attribute.String("section.id", sectionID))
	defer func() { endSpan(span, err) }()

	if err := e.Policy.RequireAdmin(actor, "updating a section"); err != nil {
		return domain.Section{}, err
	}
	var name string
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
		if name == "" {
			return domain.Section{}, domain.ValidationError{Field: "name", Reason: "must not be empty"}
		}
	}
	if in.Order != nil && *in.Order < 0 {
		return domain.Section{}, domain.ValidationError{Field: "order", Reason: "must be >= 0"}
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Section{}, err
	}
	defer tx.Rollback()

	sec, err = e.Repo.GetSection(ctx, tx, sectionID)
	if err != nil {
		return domain.Section{}, notFound(err, "section", sectionID)
	}
	if _, err := e.projectFor(ctx, tx, actor, sec.ProjectID); err != nil {
		return domain.Section{}, err
	}
	payload := events.EventPayload{}
	if in.Name != nil && name != sec.Name {
		payload["name"] = map[string]string{"from": sec.Name, "to": name}
		sec.Name = name
	}
	if in.Order != nil && *in.Order != sec.Order {
		payload["order"] = map[string]int{"from": sec.Order, "to": *in.Order}
		sec.Order = *in.Order
	}
	sec.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateSection(ctx, tx, sec); err != nil {
		return domain.Section{}, notFound(err, "section", sectionID)
	}
	if err := e.record(ctx, tx, events.SectionUpdated, sec.ProjectID, "section", sec.ID, actor, payload); err != nil {
		return domain.Section{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Section{}, err
	}
	e.evict(ctx, sec.ProjectID)
	return sec, nil
}

// DeleteSection removes a non-default section that no task references.
func (e Engine) DeleteSection(ctx context.Context, actor auth.Principal, sectionID string) (err error) {
	ctx, span := startSpan(ctx, "engine.DeleteSection", attribute.String("section.id", sectionID))
	defer func() { endSpan(span, err) }()

	tx, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	sec, err := e.Repo.GetSection(ctx, tx, sectionID)
	if err != nil {
		return notFound(err, "section", sectionID)
	}
	if _, err := e.projectFor(ctx, tx, actor, sec.ProjectID); err != nil {
		return err
	}
	if sec.IsDefault {
		return domain.InvalidOperationError{Reason: "default sections cannot be deleted"}
	}
	count, err := e.Repo.CountTasksInSection(ctx, tx, sectionID)
	if err != nil {
		return err
	}
	if count > 0 {
		return domain.ConflictError{Reason: "section still has tasks", Count: count}
	}
	if err := e.Repo.DeleteSection(ctx, tx, sectionID); err != nil {
		return notFound(err, "section", sectionID)
	}
	if err := e.record(ctx, tx, events.SectionDeleted, sec.ProjectID, "section", sec.ID, actor, events.EventPayload{"name": sec.Name}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.evict(ctx, sec.ProjectID)
	return nil
}
