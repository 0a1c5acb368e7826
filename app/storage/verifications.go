package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/umputun/chat-guard/app/storage/engine"
)

// verification-related command constants
const (
	CmdCreatePendingTable engine.DBCmd = iota + 200
	CmdCreateVerifiedTable
	CmdUpsertPending
)

var verificationQueries = engine.NewQueryMap().
	Add(CmdCreatePendingTable, engine.Query{
		Sqlite: `CREATE TABLE IF NOT EXISTS pending_verifications (
			phone TEXT NOT NULL,
			room TEXT NOT NULL,
			gid TEXT NOT NULL DEFAULT '',
			code TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			PRIMARY KEY (gid, phone, room)
		)`,
		Postgres: `CREATE TABLE IF NOT EXISTS pending_verifications (
			phone TEXT NOT NULL,
			room TEXT NOT NULL,
			gid TEXT NOT NULL DEFAULT '',
			code TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			PRIMARY KEY (gid, phone, room)
		)`,
	}).
	Add(CmdCreateVerifiedTable, engine.Query{
		Sqlite: `CREATE TABLE IF NOT EXISTS verified_users (
			phone TEXT NOT NULL,
			room TEXT NOT NULL,
			gid TEXT NOT NULL DEFAULT '',
			verified_at DATETIME NOT NULL,
			PRIMARY KEY (gid, phone, room)
		)`,
		Postgres: `CREATE TABLE IF NOT EXISTS verified_users (
			phone TEXT NOT NULL,
			room TEXT NOT NULL,
			gid TEXT NOT NULL DEFAULT '',
			verified_at TIMESTAMP NOT NULL,
			PRIMARY KEY (gid, phone, room)
		)`,
	}).
	Add(CmdUpsertPending, engine.Query{
		Sqlite: `INSERT OR REPLACE INTO pending_verifications (phone, room, gid, code, created_at, expires_at)
			VALUES (:phone, :room, :gid, :code, :created_at, :expires_at)`,
		Postgres: `INSERT INTO pending_verifications (phone, room, gid, code, created_at, expires_at)
			VALUES (:phone, :room, :gid, :code, :created_at, :expires_at)
			ON CONFLICT (gid, phone, room) DO UPDATE SET code = :code, created_at = :created_at, expires_at = :expires_at`,
	})

// Verifications is the store behind the verification state machine. A (phone, room)
// key is in state PENDING when a pending_verifications row exists, VERIFIED when a
// verified_users row exists, NONE otherwise. The "verify" and "expire" transitions
// are guarded by conditional deletes so only one of them can land per record.
type Verifications struct {
	db   *engine.SQL
	lock engine.RWLocker
}

// PendingVerification is a single pending challenge record.
type PendingVerification struct {
	Phone     string    `db:"phone"`
	Room      string    `db:"room"`
	GID       string    `db:"gid"`
	Code      string    `db:"code"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

// VerifiedUser is a completed verification record, never expires.
type VerifiedUser struct {
	Phone      string    `db:"phone"`
	Room       string    `db:"room"`
	GID        string    `db:"gid"`
	VerifiedAt time.Time `db:"verified_at"`
}

// NewVerifications creates the store and initializes both tables.
func NewVerifications(ctx context.Context, db *engine.SQL) (*Verifications, error) {
	res := &Verifications{db: db, lock: db.MakeLock()}
	for _, tbl := range []struct {
		name string
		cmd  engine.DBCmd
	}{
		{"pending_verifications", CmdCreatePendingTable},
		{"verified_users", CmdCreateVerifiedTable},
	} {
		schema, err := verificationQueries.Pick(db.Type(), tbl.cmd)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s schema: %w", tbl.name, err)
		}
		if err := engine.InitTable(ctx, db, tbl.name, schema); err != nil {
			return nil, fmt.Errorf("failed to init %s: %w", tbl.name, err)
		}
	}
	return res, nil
}

// CreatePending issues or re-issues a challenge for the key, replacing any prior
// pending record (idempotent re-issue, at most one pending per key).
func (v *Verifications) CreatePending(ctx context.Context, rec PendingVerification) error {
	v.lock.Lock()
	defer v.lock.Unlock()

	rec.GID = v.db.GID()
	query, err := verificationQueries.Pick(v.db.Type(), CmdUpsertPending)
	if err != nil {
		return fmt.Errorf("failed to get upsert query: %w", err)
	}
	if _, err := v.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("failed to upsert pending verification: %w", err)
	}
	return nil
}

// Pending returns the pending record for the key, or false if the key is not PENDING.
func (v *Verifications) Pending(ctx context.Context, phone, room string) (PendingVerification, bool, error) {
	v.lock.RLock()
	defer v.lock.RUnlock()

	var rec PendingVerification
	query := v.adopt("SELECT * FROM pending_verifications WHERE phone = ? AND room = ? AND gid = ?")
	err := v.db.GetContext(ctx, &rec, query, phone, room, v.db.GID())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PendingVerification{}, false, nil
		}
		return PendingVerification{}, false, fmt.Errorf("failed to get pending verification: %w", err)
	}
	return rec, true, nil
}

// Complete attempts the PENDING -> VERIFIED transition for the key. The pending
// row is deleted only if it still exists and carries the given code, so a
// concurrent sweep can't expire an already-verified record. Returns false when the
// transition didn't apply (no pending record, or it was already resolved).
func (v *Verifications) Complete(ctx context.Context, phone, room, code string, now time.Time) (bool, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	del := v.adopt("DELETE FROM pending_verifications WHERE phone = ? AND room = ? AND gid = ? AND code = ?")
	res, err := v.db.ExecContext(ctx, del, phone, room, v.db.GID(), code)
	if err != nil {
		return false, fmt.Errorf("failed to complete verification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return false, nil // lost the race or no such challenge
	}

	ins := v.adopt("INSERT INTO verified_users (phone, room, gid, verified_at) VALUES (?, ?, ?, ?)")
	if v.db.Type() == engine.Sqlite {
		ins = "INSERT OR REPLACE INTO verified_users (phone, room, gid, verified_at) VALUES (?, ?, ?, ?)"
	} else {
		ins += " ON CONFLICT (gid, phone, room) DO NOTHING"
	}
	if _, err := v.db.ExecContext(ctx, ins, phone, room, v.db.GID(), now); err != nil {
		return false, fmt.Errorf("failed to insert verified user: %w", err)
	}
	log.Printf("[INFO] verification completed for %s in room %s", HashIdentity(phone), room)
	return true, nil
}

// IsVerified reports if the key is in state VERIFIED.
func (v *Verifications) IsVerified(ctx context.Context, phone, room string) (bool, error) {
	v.lock.RLock()
	defer v.lock.RUnlock()

	var count int
	query := v.adopt("SELECT COUNT(*) FROM verified_users WHERE phone = ? AND room = ? AND gid = ?")
	if err := v.db.GetContext(ctx, &count, query, phone, room, v.db.GID()); err != nil {
		return false, fmt.Errorf("failed to check verified user: %w", err)
	}
	return count > 0, nil
}

// Expired returns all pending records with expiry at or before now.
func (v *Verifications) Expired(ctx context.Context, now time.Time) ([]PendingVerification, error) {
	v.lock.RLock()
	defer v.lock.RUnlock()

	var recs []PendingVerification
	query := v.adopt("SELECT * FROM pending_verifications WHERE gid = ? AND expires_at <= ?")
	if err := v.db.SelectContext(ctx, &recs, query, v.db.GID(), now); err != nil {
		return nil, fmt.Errorf("failed to list expired verifications: %w", err)
	}
	return recs, nil
}

// ClaimExpired attempts the PENDING -> REMOVED transition for a single key. The
// pending row is deleted only if it is still expired at now, the mirror of the
// conditional delete in Complete. A correct answer landing first consumes the row,
// the claim then affects nothing and the caller must not act on the record.
func (v *Verifications) ClaimExpired(ctx context.Context, phone, room string, now time.Time) (bool, error) {
	v.lock.Lock()
	defer v.lock.Unlock()

	query := v.adopt("DELETE FROM pending_verifications WHERE phone = ? AND room = ? AND gid = ? AND expires_at <= ?")
	res, err := v.db.ExecContext(ctx, query, phone, room, v.db.GID(), now)
	if err != nil {
		return false, fmt.Errorf("failed to claim expired verification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected > 0, nil
}

func (v *Verifications) adopt(query string) string {
	if v.db.Type() == engine.Postgres {
		return v.db.Rebind(query)
	}
	return query
}
