package history

import (
	"context"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS aibridge_messages (
	id         BIGSERIAL PRIMARY KEY,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PGStore keeps the transcript in PostgreSQL. Like MemoryStore it keeps
// at most Limit entries when Limit > 0.
type PGStore struct {
	Pool  *pgxpool.Pool
	Limit int
}

var _ Store = (*PGStore)(nil)

// OpenPG connects, verifies the connection and creates the table.
func OpenPG(ctx context.Context, dsn string, limit int, dial DialFunc) (*PGStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse history dsn")
	}
	if dial != nil {
		poolCfg.ConnConfig.DialFunc = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dial(ctx, network, addr)
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, "pgx connect")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "pgx ping")
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "create history table")
	}

	return &PGStore{Pool: pool, Limit: limit}, nil
}

func (s *PGStore) Append(ctx context.Context, e Entry) (Entry, error) {
	err := pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO aibridge_messages (role, content, status)
			 VALUES ($1, $2, $3)
			 RETURNING id, created_at`,
			e.Role, e.Content, e.Status,
		).Scan(&e.ID, &e.CreatedAt)
		if err != nil || s.Limit <= 0 {
			return err
		}
		_, err = tx.Exec(ctx,
			`DELETE FROM aibridge_messages WHERE id NOT IN (
				SELECT id FROM aibridge_messages ORDER BY id DESC LIMIT $1
			 )`, s.Limit)
		return err
	})
	if err != nil {
		return Entry{}, errors.Wrap(err, "append history")
	}
	return e, nil
}

func (s *PGStore) UpdateStatus(ctx context.Context, id int64, status string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE aibridge_messages SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return errors.Wrap(err, "update history status")
	}
	if tag.RowsAffected() == 0 {
		return errors.Errorf("history entry %d not found", id)
	}
	return nil
}

func (s *PGStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	// LIMIT NULL returns every row.
	var n any
	if limit > 0 {
		n = limit
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT id, role, content, status, created_at FROM (
			SELECT id, role, content, status, created_at
			FROM aibridge_messages
			ORDER BY id DESC
			LIMIT $1
		 ) recent ORDER BY id ASC`, n)
	if err != nil {
		return nil, errors.Wrap(err, "query history")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Role, &e.Content, &e.Status, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan history")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PGStore) Clear(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, `TRUNCATE aibridge_messages`)
	return errors.Wrap(err, "clear history")
}

// Close shuts down the pool.
func (s *PGStore) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}
