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

type ProjectCreateOptions struct {
	ID       string
	OrgID    string
	Name     string
	Assignee domain.AssigneeSet
}

// CreateProject registers a project. Sections are created on first read.
func (e Engine) CreateProject(ctx context.Context, actor auth.Principal, opts ProjectCreateOptions) (p domain.Project, err error) {
	ctx, span := startSpan(ctx, "engine.CreateProject")
	defer func() { endSpan(span, err) }()

	if err := e.Policy.RequireAdmin(actor, "creating a project"); err != nil {
		return domain.Project{}, err
	}
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return domain.Project{}, domain.ValidationError{Field: "name", Reason: "is required"}
	}
	orgID := strings.TrimSpace(opts.OrgID)
	if orgID == "" {
		orgID = actor.OrgID
	}
	if actor.OrgID != "" && orgID != actor.OrgID {
		return domain.Project{}, domain.ForbiddenError{Reason: "cannot create projects outside your organization"}
	}
	id := strings.TrimSpace(opts.ID)
	if id == "" {
		id = uuid.NewString()
	}
	now := e.stamp()
	p = domain.Project{
		ID:        id,
		OrgID:     orgID,
		Name:      name,
		Assignee:  domain.NewAssigneeSet(opts.Assignee...),
		CreatedBy: actor.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.GetProject(ctx, tx, id); err == nil {
		return domain.Project{}, domain.InvalidOperationError{Reason: "project " + id + " already exists"}
	}
	if err := e.requireUsers(ctx, tx, p.Assignee); err != nil {
		return domain.Project{}, err
	}
	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, err
	}
	if err := e.record(ctx, tx, events.ProjectCreated, p.ID, "project", p.ID, actor, events.EventPayload{"name": p.Name}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func (e Engine) GetProject(ctx context.Context, actor auth.Principal, projectID string) (domain.Project, error) {
	return e.projectFor(ctx, nil, actor, projectID)
}

// ListProjects returns the projects visible to the principal.
func (e Engine) ListProjects(ctx context.Context, actor auth.Principal) ([]domain.Project, error) {
	all, err := e.Repo.ListProjects(ctx, actor.OrgID)
	if err != nil {
		return nil, err
	}
	res := make([]domain.Project, 0, len(all))
	for _, p := range all {
		if e.Policy.CanAccessProject(actor, p) == nil {
			res = append(res, p)
		}
	}
	return res, nil
}

type ProjectUpdateOptions struct {
	Name     *string
	Assignee *domain.AssigneeSet
}

func (e Engine) UpdateProject(ctx context.Context, actor auth.Principal, projectID string, opts ProjectUpdateOptions) (p domain.Project, err error) {
	ctx, span := startSpan(ctx, "engine.UpdateProject", attribute.String("project.id", projectID))
	defer func() { endSpan(span, err) }()

	if err := e.Policy.RequireAdmin(actor, "updating a project"); err != nil {
		return domain.Project{}, err
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	p, err = e.projectFor(ctx, tx, actor, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if opts.Name != nil {
		name := strings.TrimSpace(*opts.Name)
		if name == "" {
			return domain.Project{}, domain.ValidationError{Field: "name", Reason: "must not be empty"}
		}
		p.Name = name
	}
	if opts.Assignee != nil {
		set := domain.NewAssigneeSet((*opts.Assignee)...)
		if err := e.requireUsers(ctx, tx, set); err != nil {
			return domain.Project{}, err
		}
		p.Assignee = set
	}
	p.UpdatedAt = e.stamp()
	if err := e.Repo.UpdateProject(ctx, tx, p); err != nil {
		return domain.Project{}, notFound(err, "project", projectID)
	}
	if err := e.record(ctx, tx, events.ProjectUpdated, p.ID, "project", p.ID, actor, events.EventPayload{"name": p.Name, "assignee": p.Assignee}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	e.evict(ctx, p.ID)
	return p, nil
}

// DeleteProject removes the project with its sections, tasks and history.
func (e Engine) DeleteProject(ctx context.Context, actor auth.Principal, projectID string) (err error) {
	ctx, span := startSpan(ctx, "engine.DeleteProject", attribute.String("project.id", projectID))
	defer func() { endSpan(span, err) }()

	if err := e.Policy.RequireAdmin(actor, "deleting a project"); err != nil {
		return err
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := e.projectFor(ctx, tx, actor, projectID); err != nil {
		return err
	}
	if err := e.Repo.DeleteProject(ctx, tx, projectID); err != nil {
		return notFound(err, "project", projectID)
	}
	if err := e.record(ctx, tx, events.ProjectDeleted, projectID, "project", projectID, actor, nil); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.evict(ctx, projectID)
	return nil
}

// ListEvents pages the project's event log newest first.
func (e Engine) ListEvents(ctx context.Context, actor auth.Principal, f repo.EventFilter) ([]domain.Event, error) {
	if _, err := e.projectFor(ctx, nil, actor, f.ProjectID); err != nil {
		return nil, err
	}
	return e.Repo.LatestEvents(ctx, f)
}
