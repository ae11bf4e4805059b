package repo

import (
	"context"
	"database/sql"
	"strings"

	"taskboard/internal/domain"
)

const userColumns = `id,first_name,last_name,email,COALESCE(photo_url,''),role,created_at`

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PhotoURL, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

// UpsertUser inserts or refreshes a directory entry. created_at is kept from
// the first insert.
func (r Repo) UpsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO users(id,first_name,last_name,email,photo_url,role,created_at) VALUES (?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET first_name=excluded.first_name, last_name=excluded.last_name, email=excluded.email, photo_url=excluded.photo_url, role=excluded.role`,
		u.ID, u.FirstName, u.LastName, u.Email, nullable(u.PhotoURL), u.Role, u.CreatedAt)
	return err
}

func (r Repo) GetUser(ctx context.Context, tx *sql.Tx, id string) (domain.User, error) {
	return scanUser(r.q(tx).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY last_name, first_name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// usersBatchSize keeps each IN list well under SQLite's bound-variable limit.
const usersBatchSize = 500

// UsersByIDs resolves a set of ids in batches of usersBatchSize. Unknown ids
// are absent from the result.
func (r Repo) UsersByIDs(ctx context.Context, tx *sql.Tx, ids []string) (map[string]domain.UserInfo, error) {
	res := make(map[string]domain.UserInfo, len(ids))
	for start := 0; start < len(ids); start += usersBatchSize {
		end := min(start+usersBatchSize, len(ids))
		if err := r.usersBatch(ctx, tx, ids[start:end], res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r Repo) usersBatch(ctx context.Context, tx *sql.Tx, ids []string, into map[string]domain.UserInfo) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := r.q(tx).QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return err
		}
		into[u.ID] = u.UserInfo
	}
	return rows.Err()
}
