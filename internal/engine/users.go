package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"taskboard/internal/domain"
	"taskboard/internal/engine/auth"
	"taskboard/internal/events"
	"taskboard/internal/repo"
)

// UpsertUser adds or refreshes an entry in the user directory used for
// assignee resolution.
func (e Engine) UpsertUser(ctx context.Context, actor auth.Principal, u domain.User) (domain.User, error) {
	if err := e.Policy.RequireAdmin(actor, "managing users"); err != nil {
		return domain.User{}, err
	}
	u.ID = strings.TrimSpace(u.ID)
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = strings.TrimSpace(u.Email)
	if u.Email == "" && u.FirstName == "" && u.LastName == "" {
		return domain.User{}, domain.ValidationError{Field: "email", Reason: "or a name is required"}
	}
	tx, err := e.begin(ctx)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	existing, err := e.Repo.GetUser(ctx, tx, u.ID)
	switch {
	case err == nil:
		u.CreatedAt = existing.CreatedAt
	case err == repo.ErrNotFound:
		u.CreatedAt = e.stamp()
	default:
		return domain.User{}, err
	}
	if err := e.Repo.UpsertUser(ctx, tx, u); err != nil {
		return domain.User{}, err
	}
	if err := e.record(ctx, tx, events.UserUpserted, "", "user", u.ID, actor, events.EventPayload{"email": u.Email}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	if e.Cache != nil {
		e.Cache.EvictUsers(ctx)
	}
	return u, nil
}

func (e Engine) ListUsers(ctx context.Context) ([]domain.User, error) {
	return e.Repo.ListUsers(ctx)
}
