package identity

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passage/cmd/identity/ids"
)

// Integration tests are opt-in and require PASSAGE_TEST_DATABASE_URL.

func TestPostgresStore_CreateAndGet(t *testing.T) {
	pool := mustOpenTestPool(t)
	schema := mustCreateTestSchema(t, pool)

	st, err := NewPostgresStore(pool, WithSchema(schema))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	u, err := Register(ctx, st, testPasswordConfig(), CreateUserInput{
		Username:  "Dana",
		FirstName: "Dana",
		LastName:  "Scully",
		Password:  "correct horse battery",
		Role:      RoleTeacher,
		Now:       time.Now().UTC().Truncate(time.Microsecond),
	})
	require.NoError(t, err)

	got, err := st.GetByUsername(ctx, "DANA")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, RoleTeacher, got.Role)
	assert.True(t, u.CreatedAt.Equal(got.CreatedAt))

	_, err = Register(ctx, st, testPasswordConfig(), CreateUserInput{Username: "dana", Password: "correct horse battery"})
	assert.True(t, IsConflict(err))

	_, err = st.GetByID(ctx, "missing")
	assert.True(t, IsNotFound(err))
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
CREATE TABLE %[1]s.users (
    id            text PRIMARY KEY,
    username      text NOT NULL,
    first_name    text NOT NULL DEFAULT '',
    last_name     text NOT NULL DEFAULT '',
    password_hash text NOT NULL,
    role          text NOT NULL,
    created_at    timestamptz NOT NULL,
    CONSTRAINT uq_users_username UNIQUE (username)
);`, quoted))
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+quoted+` CASCADE`)
	})
	return schema
}
