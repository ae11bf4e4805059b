package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	log "github.com/sirupsen/logrus"

	"taskboard/internal/config"
	"taskboard/internal/domain"
	"taskboard/internal/engine/auth"
	"taskboard/internal/events"
	"taskboard/internal/repo"
)

const tracerName = "taskboard/engine"

// BoardLoader builds a board from the store.
type BoardLoader func(ctx context.Context, projectID string) (domain.Board, error)

// Cache fronts board reads. Implementations must fall back to load on any
// backend failure.
type Cache interface {
	Get(ctx context.Context, projectID string, load BoardLoader) (domain.Board, error)
	Evict(ctx context.Context, projectID string)
	EvictUsers(ctx context.Context)
}

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Config   *config.Config
	Statuses config.StatusSet
	Policy   auth.Policy
	Cache    Cache
	Now      func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Events:   events.Writer{},
		Config:   cfg,
		Statuses: cfg.StatusSet(),
		Policy:   auth.Policy{AdminRoles: cfg.AdminRoles()},
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// record appends to the event log using the engine clock.
func (e Engine) record(ctx context.Context, tx *sql.Tx, evtType, projectID, entityKind, entityID string, actor auth.Principal, payload events.EventPayload) error {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w.Append(ctx, tx, evtType, projectID, entityKind, entityID, actor.UserID, payload)
}

func (e Engine) begin(ctx context.Context) (*sql.Tx, error) {
	return e.DB.BeginTx(ctx, nil)
}

// evict drops the cached board after a committed write. Failures are logged
// by the cache itself.
func (e Engine) evict(ctx context.Context, projectID string) {
	if e.Cache == nil || projectID == "" {
		return
	}
	e.Cache.Evict(ctx, projectID)
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// notFound translates a repo miss into a typed error for the entity.
func notFound(err error, entity, id string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return domain.NotFoundError{Entity: entity, ID: id}
	}
	return err
}

// projectFor loads a project and checks the principal may see it.
func (e Engine) projectFor(ctx context.Context, tx *sql.Tx, actor auth.Principal, projectID string) (domain.Project, error) {
	if projectID == "" {
		return domain.Project{}, domain.ValidationError{Field: "projectId", Reason: "is required"}
	}
	p, err := e.Repo.GetProject(ctx, tx, projectID)
	if err != nil {
		return domain.Project{}, notFound(err, "project", projectID)
	}
	if err := e.Policy.CanAccessProject(actor, p); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// requireUsers rejects assignee ids that are not in the user directory.
func (e Engine) requireUsers(ctx context.Context, tx *sql.Tx, ids domain.AssigneeSet) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := e.Repo.UsersByIDs(ctx, tx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return domain.NotFoundError{Entity: "user", ID: id}
		}
	}
	return nil
}

// card resolves a task's history and assignees into its response shape.
// Assignee lookup failures leave assigneeInfo empty.
func (e Engine) card(ctx context.Context, tx *sql.Tx, t domain.Task) (domain.TaskCard, error) {
	history, err := e.Repo.ListStatusHistory(ctx, tx, t.ID)
	if err != nil {
		return domain.TaskCard{}, err
	}
	t.StatusHistory = history
	users, err := e.Repo.UsersByIDs(ctx, tx, t.Assignee)
	if err != nil {
		log.WithError(err).WithField("task_id", t.ID).Warn("assignee lookup failed")
		users = nil
	}
	return toCard(t, users), nil
}

func toCard(t domain.Task, users map[string]domain.UserInfo) domain.TaskCard {
	info := make([]domain.UserInfo, 0, len(t.Assignee))
	for _, id := range t.Assignee {
		if u, ok := users[id]; ok {
			info = append(info, u)
		}
	}
	if t.StatusHistory == nil {
		t.StatusHistory = []domain.StatusHistoryEntry{}
	}
	return domain.TaskCard{Task: t, AssigneeInfo: info}
}
