package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore persists sessions in the host application's session table
// (sid/sess/expire, the layout the Node session middleware uses), so the
// plugin and the host can share one session database.
type PostgresStore struct {
	db    *sql.DB
	codec Codec
	ttl   time.Duration
	now   func() time.Time
}

// NewPostgresStore connects to the session database.  connStr is a
// lib/pq-style connection string or URL.
func NewPostgresStore(connStr string, ttl time.Duration) (*PostgresStore, error) {
	const op = "session.NewPostgresStore"
	if connStr == "" {
		return nil, fmt.Errorf("%s: empty connection string: %w", op, ErrInvalidParameter)
	}
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return NewPostgresStoreWithDB(db, ttl), nil
}

// NewPostgresStoreWithDB wraps an already-open database handle.
func NewPostgresStoreWithDB(db *sql.DB, ttl time.Duration) *PostgresStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PostgresStore{
		db:    db,
		codec: JSONCodec{},
		ttl:   ttl,
		now:   time.Now,
	}
}

// EnsureTable creates the session table when it does not exist yet.
func (s *PostgresStore) EnsureTable(ctx context.Context) error {
	const op = "PostgresStore.EnsureTable"
	const ddl = `CREATE TABLE IF NOT EXISTS "session" (
	"sid" varchar NOT NULL PRIMARY KEY,
	"sess" json NOT NULL,
	"expire" timestamp(6) NOT NULL
)`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	const idx = `CREATE INDEX IF NOT EXISTS "IDX_session_expire" ON "session" ("expire")`
	if _, err := s.db.ExecContext(ctx, idx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, sid string) (*Data, error) {
	const op = "PostgresStore.Get"
	const query = `SELECT "sess" FROM "session" WHERE "sid" = $1 AND "expire" >= $2`
	var payload []byte
	err := s.db.QueryRowContext(ctx, query, sid, s.now()).Scan(&payload)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	data, err := s.codec.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return data, nil
}

func (s *PostgresStore) Save(ctx context.Context, sid string, data *Data) error {
	const op = "PostgresStore.Save"
	payload, err := s.codec.Encode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	const query = `INSERT INTO "session" ("sid", "sess", "expire") VALUES ($1, $2, $3)
ON CONFLICT ("sid") DO UPDATE SET "sess" = $2, "expire" = $3`
	if _, err := s.db.ExecContext(ctx, query, sid, payload, s.now().Add(s.ttl)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *PostgresStore) Destroy(ctx context.Context, sid string) error {
	const op = "PostgresStore.Destroy"
	const query = `DELETE FROM "session" WHERE "sid" = $1`
	if _, err := s.db.ExecContext(ctx, query, sid); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// PruneExpired removes sessions past their expiry and reports how many rows
// were deleted.
func (s *PostgresStore) PruneExpired(ctx context.Context) (int64, error) {
	const op = "PostgresStore.PruneExpired"
	const query = `DELETE FROM "session" WHERE "expire" < $1`
	res, err := s.db.ExecContext(ctx, query, s.now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
