// Package storage provides the persistent stores of the governance engine:
// the moderation ledger, the verification records and the per-room message
// archive with its aggregate queries. All stores share one engine.SQL and use
// the engine's locker to serialize access where the dialect needs it.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/umputun/chat-guard/app/storage/engine"
	"github.com/umputun/chat-guard/lib/modcheck"
)

// ErrAlreadyRestored returned on an attempt to restore a ledger entry twice.
var ErrAlreadyRestored = errors.New("entry already restored")

// modlog-related command constants
const (
	CmdCreateModLogTable engine.DBCmd = iota + 100
	CmdCreateModLogIndexes
	CmdAddModLogEntry
)

var modLogQueries = engine.NewQueryMap().
	Add(CmdCreateModLogTable, engine.Query{
		Sqlite: `CREATE TABLE IF NOT EXISTS moderation_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			gid TEXT NOT NULL DEFAULT '',
			room TEXT,
			sender TEXT,
			sender_hash TEXT,
			display_name TEXT,
			body TEXT,
			kind TEXT,
			action TEXT,
			scores TEXT,
			message_ref TEXT,
			restored BOOLEAN DEFAULT 0,
			admin_response TEXT DEFAULT '',
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		Postgres: `CREATE TABLE IF NOT EXISTS moderation_logs (
			id SERIAL PRIMARY KEY,
			gid TEXT NOT NULL DEFAULT '',
			room TEXT,
			sender TEXT,
			sender_hash TEXT,
			display_name TEXT,
			body TEXT,
			kind TEXT,
			action TEXT,
			scores TEXT,
			message_ref TEXT,
			restored BOOLEAN DEFAULT false,
			admin_response TEXT DEFAULT '',
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}).
	AddSame(CmdCreateModLogIndexes, `CREATE INDEX IF NOT EXISTS idx_modlog_gid_room ON moderation_logs(gid, room);
		CREATE INDEX IF NOT EXISTS idx_modlog_timestamp ON moderation_logs(timestamp)`).
	Add(CmdAddModLogEntry, engine.Query{
		Sqlite: `INSERT INTO moderation_logs (gid, room, sender, sender_hash, display_name, body, kind, action, scores, message_ref, timestamp)
			VALUES (:gid, :room, :sender, :sender_hash, :display_name, :body, :kind, :action, :scores, :message_ref, :timestamp)`,
		Postgres: `INSERT INTO moderation_logs (gid, room, sender, sender_hash, display_name, body, kind, action, scores, message_ref, timestamp)
			VALUES (:gid, :room, :sender, :sender_hash, :display_name, :body, :kind, :action, :scores, :message_ref, :timestamp)`,
	})

// ModLog is the moderation ledger, append-only except for the admin disposition
// and the monotonic restored flag.
type ModLog struct {
	db   *engine.SQL
	lock engine.RWLocker
}

// ModLogEntry represents one ledger record.
type ModLogEntry struct {
	ID            int64              `db:"id" json:"id"`
	GID           string             `db:"gid" json:"-"`
	Room          string             `db:"room" json:"room"`
	Sender        string             `db:"sender" json:"sender"`
	SenderHash    string             `db:"sender_hash" json:"sender_hash"`
	DisplayName   string             `db:"display_name" json:"display_name"`
	Body          string             `db:"body" json:"body"`
	Kind          string             `db:"kind" json:"kind"`
	Action        string             `db:"action" json:"action"`
	ScoresJSON    string             `db:"scores" json:"-"`
	Scores        map[string]float64 `db:"-" json:"scores,omitempty"`
	MessageRef    string             `db:"message_ref" json:"message_ref"`
	Restored      bool               `db:"restored" json:"restored"`
	AdminResponse string             `db:"admin_response" json:"admin_response"`
	Timestamp     time.Time          `db:"timestamp" json:"timestamp"`
}

// NewModLog creates the ledger store and initializes its schema.
func NewModLog(ctx context.Context, db *engine.SQL) (*ModLog, error) {
	res := &ModLog{db: db, lock: db.MakeLock()}

	schema, err := modLogQueries.Pick(db.Type(), CmdCreateModLogTable)
	if err != nil {
		return nil, fmt.Errorf("failed to get modlog schema: %w", err)
	}
	if err := engine.InitTable(ctx, db, "moderation_logs", schema); err != nil {
		return nil, fmt.Errorf("failed to init moderation_logs: %w", err)
	}
	idx, err := modLogQueries.Pick(db.Type(), CmdCreateModLogIndexes)
	if err != nil {
		return nil, fmt.Errorf("failed to get modlog indexes: %w", err)
	}
	if _, err := db.ExecContext(ctx, idx); err != nil {
		return nil, fmt.Errorf("failed to create modlog indexes: %w", err)
	}
	return res, nil
}

// Create appends a verdict record and returns its id.
func (m *ModLog) Create(ctx context.Context, entry ModLogEntry, verdict *modcheck.Verdict) (int64, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	scoresJSON, err := json.Marshal(verdict.Scores)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal scores: %w", err)
	}

	entry.GID = m.db.GID()
	entry.SenderHash = HashIdentity(entry.Sender)
	entry.Kind = string(verdict.Kind)
	entry.Body = verdict.LoggedBody(entry.Body)
	entry.ScoresJSON = string(scoresJSON)
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	query, err := modLogQueries.Pick(m.db.Type(), CmdAddModLogEntry)
	if err != nil {
		return 0, fmt.Errorf("failed to get add query: %w", err)
	}

	if m.db.Type() == engine.Postgres {
		// postgres can't return the serial id from a named exec
		query += " RETURNING id"
		rows, err := m.db.NamedQueryContext(ctx, query, entry)
		if err != nil {
			return 0, fmt.Errorf("failed to insert ledger entry: %w", err)
		}
		defer rows.Close()
		var id int64
		if rows.Next() {
			if err := rows.Scan(&id); err != nil {
				return 0, fmt.Errorf("failed to scan ledger id: %w", err)
			}
		}
		return id, rows.Err()
	}

	res, err := m.db.NamedExecContext(ctx, query, entry)
	if err != nil {
		return 0, fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get ledger entry id: %w", err)
	}
	log.Printf("[INFO] ledger entry %d added, room:%s, kind:%s, sender:%s", id, entry.Room, entry.Kind, entry.SenderHash)
	return id, nil
}

// Get returns a single ledger entry by id.
func (m *ModLog) Get(ctx context.Context, id int64) (ModLogEntry, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	var entry ModLogEntry
	query := m.adopt("SELECT * FROM moderation_logs WHERE id = ? AND gid = ?")
	if err := m.db.GetContext(ctx, &entry, query, id, m.db.GID()); err != nil {
		return ModLogEntry{}, fmt.Errorf("failed to get ledger entry %d: %w", id, err)
	}
	m.unpackScores(&entry)
	return entry, nil
}

// Recent returns the last limit ledger entries, newest first.
func (m *ModLog) Recent(ctx context.Context, limit int) ([]ModLogEntry, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	var entries []ModLogEntry
	query := m.adopt("SELECT * FROM moderation_logs WHERE gid = ? ORDER BY timestamp DESC, id DESC LIMIT ?")
	if err := m.db.SelectContext(ctx, &entries, query, m.db.GID(), limit); err != nil {
		return nil, fmt.Errorf("failed to get recent ledger entries: %w", err)
	}
	for i := range entries {
		m.unpackScores(&entries[i])
	}
	return entries, nil
}

// MarkRestored flips the restored flag, false to true only. The flag is monotonic:
// the second attempt returns ErrAlreadyRestored and the flag stays true.
func (m *ModLog) MarkRestored(ctx context.Context, id int64) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	query := m.adopt("UPDATE moderation_logs SET restored = ? WHERE id = ? AND gid = ? AND restored = ?")
	res, err := m.db.ExecContext(ctx, query, true, id, m.db.GID(), false)
	if err != nil {
		return fmt.Errorf("failed to mark entry %d restored: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		// either missing or already restored, distinguish for the caller
		var exists int
		check := m.adopt("SELECT COUNT(*) FROM moderation_logs WHERE id = ? AND gid = ?")
		if err := m.db.GetContext(ctx, &exists, check, id, m.db.GID()); err != nil {
			return fmt.Errorf("failed to check entry %d: %w", id, err)
		}
		if exists == 0 {
			return fmt.Errorf("ledger entry %d not found", id)
		}
		return ErrAlreadyRestored
	}
	return nil
}

// SetAdminResponse attaches an admin disposition string to the entry.
func (m *ModLog) SetAdminResponse(ctx context.Context, id int64, response string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	query := m.adopt("UPDATE moderation_logs SET admin_response = ? WHERE id = ? AND gid = ?")
	res, err := m.db.ExecContext(ctx, query, response, id, m.db.GID())
	if err != nil {
		return fmt.Errorf("failed to set admin response for %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("ledger entry %d not found", id)
	}
	return nil
}

// ClearAll wipes all ledger entries for the gid, administrative operation.
func (m *ModLog) ClearAll(ctx context.Context) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	query := m.adopt("DELETE FROM moderation_logs WHERE gid = ?")
	if _, err := m.db.ExecContext(ctx, query, m.db.GID()); err != nil {
		return fmt.Errorf("failed to clear ledger: %w", err)
	}
	log.Printf("[WARN] moderation ledger cleared for gid %q", m.db.GID())
	return nil
}

func (m *ModLog) adopt(query string) string {
	if m.db.Type() == engine.Postgres {
		return m.db.Rebind(query)
	}
	return query
}

func (m *ModLog) unpackScores(entry *ModLogEntry) {
	if entry.ScoresJSON == "" || entry.ScoresJSON == "null" {
		return
	}
	if err := json.Unmarshal([]byte(entry.ScoresJSON), &entry.Scores); err != nil {
		log.Printf("[WARN] can't unmarshal scores for ledger entry %d: %v", entry.ID, err)
	}
}

// HashIdentity returns a stable hash of a sender identity for privacy-preserving storage.
func HashIdentity(id string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(id)))
}
