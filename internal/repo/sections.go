package repo

import (
	"context"
	"database/sql"

	"taskboard/internal/domain"
)

const sectionColumns = `id,project_id,name,position,is_default,created_at,updated_at`

func scanSection(row rowScanner) (domain.Section, error) {
	var s domain.Section
	var isDefault int
	err := row.Scan(&s.ID, &s.ProjectID, &s.Name, &s.Order, &isDefault, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	s.IsDefault = isDefault != 0
	return s, err
}

// ListSections returns a project's sections by ascending order. Ties keep
// creation order.
func (r Repo) ListSections(ctx context.Context, tx *sql.Tx, projectID string) ([]domain.Section, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT `+sectionColumns+` FROM sections WHERE project_id=? ORDER BY position ASC, created_at ASC, id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Section
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) GetSection(ctx context.Context, tx *sql.Tx, id string) (domain.Section, error) {
	return scanSection(r.q(tx).QueryRowContext(ctx, `SELECT `+sectionColumns+` FROM sections WHERE id=?`, id))
}

func (r Repo) InsertSection(ctx context.Context, tx *sql.Tx, s domain.Section) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO sections(id,project_id,name,position,is_default,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		s.ID, s.ProjectID, s.Name, s.Order, boolInt(s.IsDefault), s.CreatedAt, s.UpdatedAt)
	return err
}

// InsertDefaultSection inserts a bootstrap section into its slot. It reports
// false when the slot is already taken, which happens when another caller
// bootstrapped the project first.
func (r Repo) InsertDefaultSection(ctx context.Context, tx *sql.Tx, s domain.Section, slot int) (bool, error) {
	res, err := r.q(tx).ExecContext(ctx, `INSERT OR IGNORE INTO sections(id,project_id,name,position,is_default,bootstrap_slot,created_at,updated_at) VALUES (?,?,?,?,1,?,?,?)`,
		s.ID, s.ProjectID, s.Name, s.Order, slot, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r Repo) CountSections(ctx context.Context, tx *sql.Tx, projectID string) (int, error) {
	var n int
	err := r.q(tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM sections WHERE project_id=?`, projectID).Scan(&n)
	return n, err
}

// MaxSectionPosition returns -1 when the project has no sections.
func (r Repo) MaxSectionPosition(ctx context.Context, tx *sql.Tx, projectID string) (int, error) {
	var n int
	err := r.q(tx).QueryRowContext(ctx, `SELECT COALESCE(MAX(position),-1) FROM sections WHERE project_id=?`, projectID).Scan(&n)
	return n, err
}

func (r Repo) UpdateSection(ctx context.Context, tx *sql.Tx, s domain.Section) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE sections SET name=?, position=?, updated_at=? WHERE id=?`, s.Name, s.Order, s.UpdatedAt, s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteSection(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM sections WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) CountTasksInSection(ctx context.Context, tx *sql.Tx, sectionID string) (int, error) {
	var n int
	err := r.q(tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE section_id=?`, sectionID).Scan(&n)
	return n, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
