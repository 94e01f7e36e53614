package store

import (
	"database/sql"
	"fmt"
	"time"
)

// maxDetailSize caps the JSON detail stored with an event.
const maxDetailSize = 4 * 1024

// Event kinds.
const (
	EventGenerationChanged = "generation_changed"
	EventClaim             = "claim"
	EventTransfer          = "transfer"
	EventMint              = "mint"
	EventBurn              = "burn"
	EventBirth             = "birth"
	EventDeath             = "death"
	EventApproval          = "approval"
)

// Event is one entry of the committed operation log.
type Event struct {
	ID        int64
	OpID      string
	Kind      string
	Epoch     uint32
	From      string
	To        string
	Amount    uint64
	Detail    string
	CreatedAt int64
}

// AppendEvent records an event inside the operation's transaction, so a
// rolled-back operation leaves no trace.
func (t *Tx) AppendEvent(e Event) error {
	if len(e.Detail) > maxDetailSize {
		e.Detail = e.Detail[:maxDetailSize]
	}

	now := time.Now().UnixMilli()
	_, err := t.tx.Exec(`
		INSERT INTO events (op_id, kind, epoch, from_addr, to_addr, amount, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.OpID, e.Kind, e.Epoch, nullString(e.From), nullString(e.To), int64(e.Amount), nullString(e.Detail), now)
	if err != nil {
		return fmt.Errorf("append event %s: %w", e.Kind, err)
	}
	return nil
}

// GetRecentEvents returns the most recent events, newest first.
func (db *DB) GetRecentEvents(limit int) ([]Event, error) {
	rows, err := db.Query(`
		SELECT id, op_id, kind, epoch, from_addr, to_addr, amount, detail, created_at
		FROM events ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent events: %w", err)
	}
	return scanEvents(rows)
}

// GetOperationEvents returns every event written by one operation, in order.
func (db *DB) GetOperationEvents(opID string) ([]Event, error) {
	rows, err := db.Query(`
		SELECT id, op_id, kind, epoch, from_addr, to_addr, amount, detail, created_at
		FROM events WHERE op_id = ? ORDER BY id
	`, opID)
	if err != nil {
		return nil, fmt.Errorf("get operation events: %w", err)
	}
	return scanEvents(rows)
}

// CountEvents returns the number of events of the given kind.
func (db *DB) CountEvents(kind string) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM events WHERE kind = ?`, kind).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var from, to, detail sql.NullString
		var amount int64
		if err := rows.Scan(&e.ID, &e.OpID, &e.Kind, &e.Epoch, &from, &to, &amount, &detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.From, e.To, e.Detail = from.String, to.String, detail.String
		e.Amount = uint64(amount)
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
