package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/umputun/chat-guard/app/storage/engine"
)

// messages-related command constants
const (
	CmdCreateMessagesTable engine.DBCmd = iota + 300
	CmdCreateMessagesIndexes
	CmdAddMessage
)

var messageQueries = engine.NewQueryMap().
	Add(CmdCreateMessagesTable, engine.Query{
		Sqlite: `CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			gid TEXT NOT NULL DEFAULT '',
			room TEXT NOT NULL,
			sender_hash TEXT NOT NULL,
			body TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		Postgres: `CREATE TABLE IF NOT EXISTS messages (
			id SERIAL PRIMARY KEY,
			gid TEXT NOT NULL DEFAULT '',
			room TEXT NOT NULL,
			sender_hash TEXT NOT NULL,
			body TEXT,
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}).
	AddSame(CmdCreateMessagesIndexes, `CREATE INDEX IF NOT EXISTS idx_messages_gid_room_ts ON messages(gid, room, timestamp);
		CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_hash)`).
	AddSame(CmdAddMessage, `INSERT INTO messages (gid, room, sender_hash, body, timestamp)
		VALUES (:gid, :room, :sender_hash, :body, :timestamp)`)

// Messages is the per-room message archive, the source for the aggregate queries
// used by the dashboard layer.
type Messages struct {
	db   *engine.SQL
	lock engine.RWLocker
}

// MessageRecord is a single archived message.
type MessageRecord struct {
	ID         int64     `db:"id"`
	GID        string    `db:"gid"`
	Room       string    `db:"room"`
	SenderHash string    `db:"sender_hash"`
	Body       string    `db:"body"`
	Timestamp  time.Time `db:"timestamp"`
}

// DayCount is one bucket of the active-day histogram.
type DayCount struct {
	Day   string `db:"day" json:"day"`
	Count int    `db:"count" json:"count"`
}

// RoomStats is the aggregate view for a room over a day window.
type RoomStats struct {
	Room          string     `json:"room"`
	Days          int        `json:"days"`
	MessageCount  int        `json:"message_count"`
	UniqueSenders int        `json:"unique_senders"`
	ActiveDays    []DayCount `json:"active_days"`
}

// NewMessages creates the archive store and initializes its schema.
func NewMessages(ctx context.Context, db *engine.SQL) (*Messages, error) {
	res := &Messages{db: db, lock: db.MakeLock()}

	schema, err := messageQueries.Pick(db.Type(), CmdCreateMessagesTable)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages schema: %w", err)
	}
	if err := engine.InitTable(ctx, db, "messages", schema); err != nil {
		return nil, fmt.Errorf("failed to init messages: %w", err)
	}
	idx, err := messageQueries.Pick(db.Type(), CmdCreateMessagesIndexes)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages indexes: %w", err)
	}
	if _, err := db.ExecContext(ctx, idx); err != nil {
		return nil, fmt.Errorf("failed to create messages indexes: %w", err)
	}
	return res, nil
}

// Add archives a message, sender identity hashed before storage.
func (m *Messages) Add(ctx context.Context, room, sender, body string, ts time.Time) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if ts.IsZero() {
		ts = time.Now()
	}
	rec := MessageRecord{GID: m.db.GID(), Room: room, SenderHash: HashIdentity(sender), Body: body, Timestamp: ts}
	query, err := messageQueries.Pick(m.db.Type(), CmdAddMessage)
	if err != nil {
		return fmt.Errorf("failed to get add query: %w", err)
	}
	if _, err := m.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("failed to archive message: %w", err)
	}
	return nil
}

// Stats returns the aggregates for a room over the last days.
func (m *Messages) Stats(ctx context.Context, room string, days int) (RoomStats, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	if days <= 0 {
		days = 7
	}
	since := time.Now().AddDate(0, 0, -days)
	res := RoomStats{Room: room, Days: days}

	countQ := m.adopt("SELECT COUNT(*) FROM messages WHERE gid = ? AND room = ? AND timestamp >= ?")
	if err := m.db.GetContext(ctx, &res.MessageCount, countQ, m.db.GID(), room, since); err != nil {
		return RoomStats{}, fmt.Errorf("failed to count messages: %w", err)
	}

	sendersQ := m.adopt("SELECT COUNT(DISTINCT sender_hash) FROM messages WHERE gid = ? AND room = ? AND timestamp >= ?")
	if err := m.db.GetContext(ctx, &res.UniqueSenders, sendersQ, m.db.GID(), room, since); err != nil {
		return RoomStats{}, fmt.Errorf("failed to count unique senders: %w", err)
	}

	histQ := "SELECT strftime('%Y-%m-%d', timestamp) AS day, COUNT(*) AS count FROM messages " +
		"WHERE gid = ? AND room = ? AND timestamp >= ? GROUP BY day ORDER BY day"
	if m.db.Type() == engine.Postgres {
		histQ = "SELECT to_char(timestamp, 'YYYY-MM-DD') AS day, COUNT(*) AS count FROM messages " +
			"WHERE gid = $1 AND room = $2 AND timestamp >= $3 GROUP BY day ORDER BY day"
	}
	if err := m.db.SelectContext(ctx, &res.ActiveDays, histQ, m.db.GID(), room, since); err != nil {
		return RoomStats{}, fmt.Errorf("failed to build day histogram: %w", err)
	}
	return res, nil
}

func (m *Messages) adopt(query string) string {
	if m.db.Type() == engine.Postgres {
		return m.db.Rebind(query)
	}
	return query
}
