package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"taskboard/internal/domain"
)

// Scope names an order space: one section, or the orphan tasks of a project
// when SectionID is nil.
type Scope struct {
	ProjectID string
	SectionID *string
}

func SectionScope(projectID, sectionID string) Scope {
	return Scope{ProjectID: projectID, SectionID: &sectionID}
}

func (s Scope) where() (string, []any) {
	if s.SectionID == nil {
		return `section_id IS NULL AND project_id=?`, []any{s.ProjectID}
	}
	return `section_id=?`, []any{*s.SectionID}
}

const taskColumns = `id,project_id,section_id,title,COALESCE(description,''),assignee_json,status,position,COALESCE(priority,''),due_date,attachments_json,subtasks_json,COALESCE(created_by,''),created_at,updated_at`

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var sectionID, dueDate sql.NullString
	var assignee, attachments, subtasks string
	err := row.Scan(&t.ID, &t.ProjectID, &sectionID, &t.Title, &t.Description, &assignee, &t.Status, &t.Order,
		&t.Priority, &dueDate, &attachments, &subtasks, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if sectionID.Valid {
		v := sectionID.String
		t.SectionID = &v
	}
	if dueDate.Valid {
		v := dueDate.String
		t.DueDate = &v
	}
	t.Assignee = domain.ParseAssigneeColumn(assignee)
	t.Attachments = []domain.Attachment{}
	t.Subtasks = []domain.Subtask{}
	if attachments != "" {
		if err := json.Unmarshal([]byte(attachments), &t.Attachments); err != nil {
			return t, fmt.Errorf("task %s attachments: %w", t.ID, err)
		}
	}
	if subtasks != "" {
		if err := json.Unmarshal([]byte(subtasks), &t.Subtasks); err != nil {
			return t, fmt.Errorf("task %s subtasks: %w", t.ID, err)
		}
	}
	t.StatusHistory = []domain.StatusHistoryEntry{}
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	assignee, err := encodeJSON(t.Assignee)
	if err != nil {
		return err
	}
	attachments, err := encodeJSON(nonNilAttachments(t.Attachments))
	if err != nil {
		return err
	}
	subtasks, err := encodeJSON(nonNilSubtasks(t.Subtasks))
	if err != nil {
		return err
	}
	_, err = r.q(tx).ExecContext(ctx, `INSERT INTO tasks(id,project_id,section_id,title,description,assignee_json,status,position,priority,due_date,attachments_json,subtasks_json,created_by,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.ProjectID, nullableStringPtr(t.SectionID), t.Title, nullable(t.Description), assignee, t.Status, t.Order,
		nullable(t.Priority), nullableStringPtr(t.DueDate), attachments, subtasks, nullable(t.CreatedBy), t.CreatedAt, t.UpdatedAt)
	return err
}

// UpdateTask rewrites the task's content fields. Placement is changed only
// through UpdatePlacement.
func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	assignee, err := encodeJSON(t.Assignee)
	if err != nil {
		return err
	}
	attachments, err := encodeJSON(nonNilAttachments(t.Attachments))
	if err != nil {
		return err
	}
	subtasks, err := encodeJSON(nonNilSubtasks(t.Subtasks))
	if err != nil {
		return err
	}
	res, err := r.q(tx).ExecContext(ctx, `UPDATE tasks SET title=?, description=?, assignee_json=?, status=?, priority=?, due_date=?, attachments_json=?, subtasks_json=?, updated_at=? WHERE id=?`,
		t.Title, nullable(t.Description), assignee, t.Status, nullable(t.Priority), nullableStringPtr(t.DueDate), attachments, subtasks, t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetTask(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	return scanTask(r.q(tx).QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

// ListTasksByProject returns every task of a project, sorted by order then
// newest first, which is the within-section display order.
func (r Repo) ListTasksByProject(ctx context.Context, tx *sql.Tx, projectID string) ([]domain.Task, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE project_id=? ORDER BY position ASC, created_at DESC, id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// CountInScope returns the number of tasks in the order space.
func (r Repo) CountInScope(ctx context.Context, tx *sql.Tx, s Scope) (int, error) {
	where, args := s.where()
	var n int
	err := r.q(tx).QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE `+where, args...).Scan(&n)
	return n, err
}

// MaxPositionInScope returns -1 for an empty order space.
func (r Repo) MaxPositionInScope(ctx context.Context, tx *sql.Tx, s Scope) (int, error) {
	where, args := s.where()
	var n int
	err := r.q(tx).QueryRowContext(ctx, `SELECT COALESCE(MAX(position),-1) FROM tasks WHERE `+where, args...).Scan(&n)
	return n, err
}

// ShiftRange adds delta to the order of every task in the scope whose order
// lies in [from, to], excluding the task being moved.
func (r Repo) ShiftRange(ctx context.Context, tx *sql.Tx, s Scope, from, to, delta int, excludeID string) error {
	where, args := s.where()
	args = append([]any{delta}, args...)
	args = append(args, from, to, excludeID)
	_, err := r.q(tx).ExecContext(ctx, `UPDATE tasks SET position=position+? WHERE `+where+` AND position>=? AND position<=? AND id<>?`, args...)
	return err
}

// ShiftFrom adds delta to every task in the scope at or beyond from.
func (r Repo) ShiftFrom(ctx context.Context, tx *sql.Tx, s Scope, from, delta int, excludeID string) error {
	where, args := s.where()
	args = append([]any{delta}, args...)
	args = append(args, from, excludeID)
	_, err := r.q(tx).ExecContext(ctx, `UPDATE tasks SET position=position+? WHERE `+where+` AND position>=? AND id<>?`, args...)
	return err
}

// UpdatePlacement writes a task's section and order.
func (r Repo) UpdatePlacement(ctx context.Context, tx *sql.Tx, taskID string, sectionID *string, order int, updatedAt string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE tasks SET section_id=?, position=?, updated_at=? WHERE id=?`,
		nullableStringPtr(sectionID), order, updatedAt, taskID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) AppendStatusHistory(ctx context.Context, tx *sql.Tx, taskID string, e domain.StatusHistoryEntry) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO task_status_history(task_id,status,changed_by,changed_at) VALUES (?,?,?,?)`,
		taskID, e.Status, e.ChangedBy, e.Timestamp)
	return err
}

// ListStatusHistory returns entries in append order.
func (r Repo) ListStatusHistory(ctx context.Context, tx *sql.Tx, taskID string) ([]domain.StatusHistoryEntry, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT status,changed_by,changed_at FROM task_status_history WHERE task_id=? ORDER BY id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.StatusHistoryEntry{}
	for rows.Next() {
		var e domain.StatusHistoryEntry
		if err := rows.Scan(&e.Status, &e.ChangedBy, &e.Timestamp); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// StatusHistoryByProject loads the history of every task in a project keyed
// by task id, so the board can be built without one query per task.
func (r Repo) StatusHistoryByProject(ctx context.Context, tx *sql.Tx, projectID string) (map[string][]domain.StatusHistoryEntry, error) {
	rows, err := r.q(tx).QueryContext(ctx, `SELECT h.task_id,h.status,h.changed_by,h.changed_at FROM task_status_history h JOIN tasks t ON t.id=h.task_id WHERE t.project_id=? ORDER BY h.id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string][]domain.StatusHistoryEntry{}
	for rows.Next() {
		var taskID string
		var e domain.StatusHistoryEntry
		if err := rows.Scan(&taskID, &e.Status, &e.ChangedBy, &e.Timestamp); err != nil {
			return nil, err
		}
		res[taskID] = append(res[taskID], e)
	}
	return res, rows.Err()
}

func nonNilAttachments(v []domain.Attachment) []domain.Attachment {
	if v == nil {
		return []domain.Attachment{}
	}
	return v
}

func nonNilSubtasks(v []domain.Subtask) []domain.Subtask {
	if v == nil {
		return []domain.Subtask{}
	}
	return v
}
