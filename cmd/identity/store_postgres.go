package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
// The pgx pool is owned by the caller; this store must not close it.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

const pgUniqueViolation = "23505"

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema (default "passage").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier %q", schema)
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "passage"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

const userColumns = `id, username, first_name, last_name, password_hash, role, created_at`

// userRow mirrors one row of passage.users.
type userRow struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
}

func (s *PostgresStore) GetByUsername(ctx context.Context, username string) (User, error) {
	return s.getOne(ctx, "identity.GetByUsername", "username", NormalizeUsername(username))
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (User, error) {
	return s.getOne(ctx, "identity.GetByID", "id", id)
}

func (s *PostgresStore) getOne(ctx context.Context, op, column, value string) (User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM `+s.users()+` WHERE `+column+` = $1`,
		value,
	)
	if err != nil {
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[userRow])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, notFound(op)
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}

	role, err := ParseRole(row.Role)
	if err != nil {
		return User{}, invalid(op, "stored role is invalid")
	}
	return User{
		ID:           row.ID,
		Username:     row.Username,
		FirstName:    row.FirstName,
		LastName:     row.LastName,
		PasswordHash: row.PasswordHash,
		Role:         role,
		CreatedAt:    row.CreatedAt.UTC(),
	}, nil
}

func (s *PostgresStore) Create(ctx context.Context, u User) (User, error) {
	const op = "identity.Create"

	if u.ID == "" || u.PasswordHash == "" {
		return User{}, invalid(op, "id and password hash are required")
	}
	u.Username = NormalizeUsername(u.Username)

	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.users()+` (`+userColumns+`) VALUES (@id, @username, @first_name, @last_name, @password_hash, @role, @created_at)`,
		pgx.NamedArgs{
			"id":            u.ID,
			"username":      u.Username,
			"first_name":    u.FirstName,
			"last_name":     u.LastName,
			"password_hash": u.PasswordHash,
			"role":          u.Role.String(),
			"created_at":    u.CreatedAt,
		},
	)
	if err != nil {
		if field, ok := uniqueViolationField(err); ok {
			return User{}, conflict(op, field)
		}
		return User{}, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

func (s *PostgresStore) users() string {
	return pgx.Identifier{s.schema, "users"}.Sanitize()
}

// uniqueViolationField maps a unique_violation to the logical field it
// guards, using the constraint names from the migrations.
func uniqueViolationField(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return "", false
	}
	switch pgErr.ConstraintName {
	case "uq_users_username":
		return "username", true
	case "users_pkey":
		return "id", true
	}
	return "unique", true
}
