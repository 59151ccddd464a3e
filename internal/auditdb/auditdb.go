// Package auditdb keeps a SQLite trail of command send attempts. The store
// is optional: the sender works without one, and recording failures are
// logged, never surfaced to the command path.
package auditdb

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/groundline/gse/internal/command"
	"github.com/groundline/gse/internal/monitoring"
)

//go:embed schema.sql
var schemaSQL string

// AuditDB records command traffic for one operator session.
type AuditDB struct {
	*sql.DB
	sessionID string
}

// Open opens (creating if needed) the audit database at path and starts a
// new session tagged with notes.
func Open(path, notes string) (*AuditDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("auditdb: apply schema: %w", err)
	}

	sessionID := uuid.NewString()
	_, err = db.Exec(`INSERT INTO sessions (id, notes) VALUES (?, ?)`, sessionID, notes)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("auditdb: start session: %w", err)
	}

	return &AuditDB{DB: db, sessionID: sessionID}, nil
}

// SessionID returns the current session's identifier.
func (a *AuditDB) SessionID() string { return a.sessionID }

// RecordCommand stores one send attempt. Implements command.Recorder.
func (a *AuditDB) RecordCommand(rec command.Record) {
	_, err := a.Exec(`
		INSERT INTO commands (session_id, sent_at, name, destination, byte_count, validated, sent, messages)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.sessionID, rec.Time, rec.Name, rec.Destination, rec.Bytes,
		boolInt(rec.Validated), boolInt(rec.Sent), strings.Join(rec.Messages, "\n"))
	if err != nil {
		monitoring.Logf("Error recording command %s: %v", rec.Name, err)
	}
}

// CommandCount returns the number of recorded attempts for this session.
func (a *AuditDB) CommandCount() (int, error) {
	var n int
	err := a.QueryRow(`SELECT COUNT(*) FROM commands WHERE session_id = ?`, a.sessionID).Scan(&n)
	return n, err
}

// Close marks the session finished and closes the database.
func (a *AuditDB) Close() error {
	if _, err := a.Exec(`UPDATE sessions SET ended_at = CURRENT_TIMESTAMP WHERE id = ?`, a.sessionID); err != nil {
		monitoring.Logf("Error closing audit session: %v", err)
	}
	return a.DB.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
