// Package sessioncache is a local, non-authoritative SQLite mirror of chat
// session metadata and history, written through after every successful
// server response so the chat gateway can paint a "last known" value while
// a network round trip is in flight. It is never the source of truth and
// never a cache of the Merkle tree.
package sessioncache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/insien-dev/sync-core/internal/chatgateway"
)

// Store is a SQLite-backed write-through mirror satisfying
// chatgateway.SessionCache.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the cache database at path. ":memory:" is
// valid for tests and single-process ephemeral use.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id    TEXT PRIMARY KEY,
		project_id    TEXT NOT NULL,
		title         TEXT,
		message_count INTEGER NOT NULL DEFAULT 0,
		updated_at    INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_project_id ON sessions(project_id);

	CREATE TABLE IF NOT EXISTS messages (
		session_id TEXT NOT NULL,
		seq        INTEGER NOT NULL,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		metadata   TEXT,
		PRIMARY KEY (session_id, seq)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// LastKnownSessions returns the last sessions stored for projectID, or nil
// if nothing has ever been cached for it.
func (s *Store) LastKnownSessions(projectID string) []chatgateway.ChatSession {
	ctx := context.Background()
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, project_id, title, message_count FROM sessions WHERE project_id = ? ORDER BY updated_at DESC`,
		projectID,
	)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var sessions []chatgateway.ChatSession
	for rows.Next() {
		var sess chatgateway.ChatSession
		var title sql.NullString
		if err := rows.Scan(&sess.SessionID, &sess.ProjectID, &title, &sess.MessageCount); err != nil {
			return nil
		}
		sess.Title = title.String
		sessions = append(sessions, sess)
	}
	return sessions
}

// LastKnownHistory returns the last message history stored for sessionID.
func (s *Store) LastKnownHistory(sessionID string) []chatgateway.ChatMessage {
	ctx := context.Background()
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, metadata FROM messages WHERE session_id = ? ORDER BY seq ASC`,
		sessionID,
	)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var messages []chatgateway.ChatMessage
	for rows.Next() {
		var msg chatgateway.ChatMessage
		var metadataJSON sql.NullString
		if err := rows.Scan(&msg.Role, &msg.Content, &metadataJSON); err != nil {
			return nil
		}
		if metadataJSON.Valid {
			_ = json.Unmarshal([]byte(metadataJSON.String), &msg.Metadata)
		}
		messages = append(messages, msg)
	}
	return messages
}

// StoreSessions replaces the cached session rows for projectID with sessions.
func (s *Store) StoreSessions(projectID string, sessions []chatgateway.ChatSession) {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE project_id = ?`, projectID); err != nil {
		return
	}

	now := time.Now().Unix()
	for _, sess := range sessions {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (session_id, project_id, title, message_count, updated_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT(session_id) DO UPDATE SET
			 title = excluded.title, message_count = excluded.message_count, updated_at = excluded.updated_at`,
			sess.SessionID, projectID, sess.Title, sess.MessageCount, now,
		)
		if err != nil {
			return
		}
	}
	_ = tx.Commit()
}

// StoreHistory replaces the cached message rows for sessionID with messages.
func (s *Store) StoreHistory(sessionID string, messages []chatgateway.ChatMessage) {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return
	}

	for i, msg := range messages {
		var metadataJSON []byte
		if msg.Metadata != nil {
			metadataJSON, _ = json.Marshal(msg.Metadata)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (session_id, seq, role, content, metadata) VALUES (?, ?, ?, ?, ?)`,
			sessionID, i, msg.Role, msg.Content, metadataJSON,
		)
		if err != nil {
			return
		}
	}
	_ = tx.Commit()
}

// ForgetSession removes all cached rows for sessionID.
func (s *Store) ForgetSession(sessionID string) {
	ctx := context.Background()
	_, _ = s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID)
	_, _ = s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
}
