package session

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"passage/cmd/identity/ids"
)

// Integration tests are opt-in and require PASSAGE_TEST_DATABASE_URL.

func TestPostgresStore_Contract(t *testing.T) {
	pool := mustOpenTestPool(t)

	runStoreContract(t, func(t *testing.T) Store {
		st, err := NewPostgresStore(pool, mustCreateTestSchema(t, pool))
		require.NoError(t, err)
		return st
	})
}

func TestNewPostgresStore_RejectsBadSchema(t *testing.T) {
	_, err := NewPostgresStore(&pgxpool.Pool{}, "bad;schema")
	require.Error(t, err)
}

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv("PASSAGE_TEST_DATABASE_URL"))
	if raw == "" {
		t.Skip("integration test skipped: PASSAGE_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, raw)
	require.NoError(t, err)
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("integration test skipped: Postgres unreachable: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func mustCreateTestSchema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	id, err := ids.NewULID(time.Now())
	require.NoError(t, err)
	schema := "passage_it_" + strings.ToLower(id)
	quoted := pgx.Identifier{schema}.Sanitize()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = pool.Exec(ctx, fmt.Sprintf(`
CREATE SCHEMA %[1]s;
CREATE TABLE %[1]s.refresh_tokens (
    id            text PRIMARY KEY,
    user_id       text NOT NULL,
    refresh_token text NOT NULL,
    created_at    timestamptz NOT NULL,
    expires_at    timestamptz NOT NULL,
    devices       jsonb NOT NULL DEFAULT '[]'::jsonb,
    login_history jsonb NOT NULL DEFAULT '[]'::jsonb,
    CONSTRAINT uq_refresh_tokens_user_id UNIQUE (user_id),
    CONSTRAINT uq_refresh_tokens_token UNIQUE (refresh_token)
);`, quoted))
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+quoted+` CASCADE`)
	})
	return schema
}
