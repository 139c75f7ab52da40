package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"

	"github.com/scythe504/drawpool-backend/internal/store/migrations"
)

// PostgresStore keeps hashes, strings and expiries in three tables. Expired
// keys are invisible to reads and removed by PurgeExpired.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to connString, applies migrations and returns
// the store. A non-empty token replaces the password in connString.
func NewPostgresStore(ctx context.Context, connString, token string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse store url: %w", err)
	}
	if token != "" {
		cfg.ConnConfig.Password = token
	}

	db := stdlib.OpenDB(*cfg.ConnConfig.Copy())
	err = migrations.Up(db)
	closeErr := db.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		log.Warn().Err(closeErr).Msg("[NewPostgresStore] closing migration connection")
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store pool: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

const notExpired = `NOT EXISTS (SELECT 1 FROM kv_expiry e WHERE e.key = %s AND e.expires_at <= now())`

func liveFilter(column string) string {
	return fmt.Sprintf(notExpired, column)
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}

func (s *PostgresStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	names := make([]string, 0, len(fields))
	values := make([]string, 0, len(fields))
	for f, v := range fields {
		names = append(names, f)
		values = append(values, v)
	}

	return mapError(pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// Fields of an expired hash must not survive into the new one.
		if err := dropIfExpired(ctx, tx, key); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO kv_hash (key, field, value)
			SELECT $1, f, v FROM unnest($2::text[], $3::text[]) AS t(f, v)
			ON CONFLICT (key, field) DO UPDATE SET value = EXCLUDED.value`,
			key, names, values)
		return err
	}))
}

// dropIfExpired removes every row of key when its expiry has passed.
func dropIfExpired(ctx context.Context, tx pgx.Tx, key string) error {
	tag, err := tx.Exec(ctx, `DELETE FROM kv_expiry WHERE key = $1 AND expires_at <= now()`, key)
	if err != nil || tag.RowsAffected() == 0 {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM kv_hash WHERE key = $1`, key); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `DELETE FROM kv_string WHERE key = $1`, key)
	return err
}

func (s *PostgresStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT field, value FROM kv_hash h WHERE h.key = $1 AND `+liveFilter("h.key"), key)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, mapError(err)
		}
		out[field] = value
	}
	return out, mapError(rows.Err())
}

func (s *PostgresStore) Set(ctx context.Context, key, value string) error {
	return mapError(pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO kv_string (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM kv_expiry WHERE key = $1`, key)
		return err
	}))
}

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM kv_string s WHERE s.key = $1 AND `+liveFilter("s.key"), key).Scan(&value)
	if err != nil {
		return "", mapError(err)
	}
	return value, nil
}

func (s *PostgresStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	written := false
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// An expired holder does not block the write.
		if _, err := tx.Exec(ctx, `
			DELETE FROM kv_string s USING kv_expiry e
			WHERE s.key = $1 AND e.key = $1 AND e.expires_at <= now()`, key); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO kv_string (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO NOTHING`, key, value)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		written = true
		if ttl <= 0 {
			_, err = tx.Exec(ctx, `DELETE FROM kv_expiry WHERE key = $1`, key)
			return err
		}
		return upsertExpiry(ctx, tx, key, ttl)
	})
	if err != nil {
		return false, mapError(err)
	}
	return written, nil
}

func (s *PostgresStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return mapError(pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, q := range []string{
			`DELETE FROM kv_hash WHERE key = ANY($1)`,
			`DELETE FROM kv_string WHERE key = ANY($1)`,
			`DELETE FROM kv_expiry WHERE key = ANY($1)`,
		} {
			if _, err := tx.Exec(ctx, q, keys); err != nil {
				return err
			}
		}
		return nil
	}))
}

func escapeLike(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

func (s *PostgresStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	pattern := escapeLike(prefix)
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT h.key FROM kv_hash h WHERE h.key LIKE $1 AND `+liveFilter("h.key")+`
		UNION
		SELECT s.key FROM kv_string s WHERE s.key LIKE $1 AND `+liveFilter("s.key")+`
		ORDER BY 1`, pattern)
	if err != nil {
		return nil, mapError(err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, mapError(err)
	}
	return keys, nil
}

func (s *PostgresStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		_, err := s.pool.Exec(ctx, `DELETE FROM kv_expiry WHERE key = $1`, key)
		return mapError(err)
	}
	return mapError(pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return upsertExpiry(ctx, tx, key, ttl)
	}))
}

func upsertExpiry(ctx context.Context, tx pgx.Tx, key string, ttl time.Duration) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO kv_expiry (key, expires_at) VALUES ($1, now() + $2::bigint * interval '1 millisecond')
		ON CONFLICT (key) DO UPDATE SET expires_at = EXCLUDED.expires_at`,
		key, ttl.Milliseconds())
	return err
}

// PurgeExpired removes every expired key and returns how many were dropped.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	var purged int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, q := range []string{
			`DELETE FROM kv_hash h USING kv_expiry e WHERE h.key = e.key AND e.expires_at <= now()`,
			`DELETE FROM kv_string s USING kv_expiry e WHERE s.key = e.key AND e.expires_at <= now()`,
		} {
			if _, err := tx.Exec(ctx, q); err != nil {
				return err
			}
		}
		tag, err := tx.Exec(ctx, `DELETE FROM kv_expiry WHERE expires_at <= now()`)
		if err != nil {
			return err
		}
		purged = tag.RowsAffected()
		return nil
	})
	return purged, mapError(err)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return mapError(s.pool.Ping(ctx))
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
