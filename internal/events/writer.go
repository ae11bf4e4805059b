package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types recorded in the audit log.
const (
	ProjectCreated  = "project.created"
	ProjectUpdated  = "project.updated"
	ProjectDeleted  = "project.deleted"
	SectionsSeeded  = "sections.bootstrapped"
	SectionCreated  = "section.created"
	SectionUpdated  = "section.updated"
	SectionDeleted  = "section.deleted"
	TaskCreated     = "task.created"
	TaskUpdated     = "task.updated"
	TaskMoved       = "task.moved"
	TaskStatusMoved = "task.status.changed"
	TaskDeleted     = "task.deleted"
	UserUpserted    = "user.upserted"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append records an event inside the caller's transaction, so the log entry
// commits or rolls back with the change it describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, projectID, entityKind, entityID, actorID string, payload EventPayload) error {
	if tx == nil {
		return fmt.Errorf("append %s: transaction required", evtType)
	}
	now := w.Now
	if now == nil {
		now = time.Now
	}
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,project_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339), evtType, nullable(projectID), entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
