package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store using PostgreSQL (<schema>.refresh_tokens).
// Devices and login history are JSONB arrays on the record row, so every
// single-statement update is atomic for the user.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// NewPostgresStore creates a Postgres-backed store. An empty schema means "passage".
func NewPostgresStore(pool *pgxpool.Pool, schema string) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("session: nil pool")
	}
	if schema == "" {
		schema = "passage"
	}
	if !pgIdentRe.MatchString(schema) {
		return nil, fmt.Errorf("session: invalid schema identifier %q", schema)
	}
	return &PostgresStore{
		pool:  pool,
		table: pgx.Identifier{schema, "refresh_tokens"}.Sanitize(),
	}, nil
}

const recordColumns = `id, user_id, refresh_token, created_at, expires_at, devices, login_history`

func (s *PostgresStore) FindActiveByUser(ctx context.Context, userID string, now time.Time) (Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM `+s.table+`
		WHERE user_id = $1 AND expires_at > $2
	`, userID, now)
	return scanRecord(row)
}

func (s *PostgresStore) Insert(ctx context.Context, rec Record) (Record, error) {
	devices, err := marshalJSONArray(rec.Devices)
	if err != nil {
		return Record{}, err
	}
	history, err := marshalJSONArray(rec.LoginHistory)
	if err != nil {
		return Record{}, err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO `+s.table+` (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb)
	`, rec.ID, rec.UserID, rec.Token, rec.CreatedAt, rec.ExpiresAt, devices, history)
	if err != nil {
		if pgIsUniqueViolation(err) {
			return Record{}, ErrConflict
		}
		return Record{}, err
	}
	return rec, nil
}

func (s *PostgresStore) TokenExists(ctx context.Context, token string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+s.table+` WHERE refresh_token = $1)`,
		token,
	).Scan(&ok)
	return ok, err
}

func (s *PostgresStore) DeleteOne(ctx context.Context, f RecordFilter) (bool, error) {
	where, args, err := filterSQL(f)
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM `+s.table+`
		WHERE id = (SELECT id FROM `+s.table+` WHERE `+where+` LIMIT 1)
	`, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) DeleteMany(ctx context.Context, f RecordFilter) (int64, error) {
	where, args, err := filterSQL(f)
	if err != nil {
		return 0, err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE `+where, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) AppendLoginHistory(ctx context.Context, userID string, e LoginEntry) error {
	entry, err := json.Marshal(e)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE `+s.table+`
		SET login_history = login_history || jsonb_build_array($2::jsonb)
		WHERE user_id = $1
	`, userID, entry)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *PostgresStore) FindDevice(ctx context.Context, userID string, m DeviceMatcher) (Device, error) {
	if !m.valid() {
		return Device{}, ErrDeviceNotFound
	}

	var (
		cond string
		arg  any
	)
	if m.ID != "" {
		cond, arg = `d.elem->>'id' = $2`, m.ID
	} else {
		doc, err := json.Marshal(m.Traits.document())
		if err != nil {
			return Device{}, err
		}
		cond, arg = `d.elem @> $2::jsonb`, doc
	}

	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT d.elem
		FROM `+s.table+` t,
		     jsonb_array_elements(t.devices) WITH ORDINALITY AS d(elem, ord)
		WHERE t.user_id = $1 AND `+cond+`
		ORDER BY d.ord
		LIMIT 1
	`, userID, arg).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Device{}, ErrDeviceNotFound
	}
	if err != nil {
		return Device{}, err
	}

	var d Device
	if err := json.Unmarshal(raw, &d); err != nil {
		return Device{}, fmt.Errorf("decode device: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) PushDevice(ctx context.Context, userID string, d Device) error {
	doc, err := json.Marshal(d)
	if err != nil {
		return err
	}

	var found, pushed bool
	err = s.pool.QueryRow(ctx, `
		WITH target AS (
			SELECT id FROM `+s.table+` WHERE user_id = $1
		), pushed AS (
			UPDATE `+s.table+` t
			SET devices = t.devices || jsonb_build_array($2::jsonb)
			FROM target
			WHERE t.id = target.id
			  AND NOT EXISTS (
			      SELECT 1 FROM jsonb_array_elements(t.devices) e WHERE e->>'id' = $3
			  )
			RETURNING t.id
		)
		SELECT EXISTS (SELECT 1 FROM target), EXISTS (SELECT 1 FROM pushed)
	`, userID, doc, d.ID).Scan(&found, &pushed)
	if err != nil {
		return err
	}
	if !found {
		return ErrRecordNotFound
	}
	return nil
}

func (s *PostgresStore) PullDevice(ctx context.Context, userID, deviceID string) (Record, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE `+s.table+`
		SET devices = `+pullDeviceExpr+`
		WHERE user_id = $1
		RETURNING `+recordColumns, userID, deviceID)
	return scanRecord(row)
}

// RemoveDevice locks the user's row for the pull, the conditional delete,
// and the LOGOUT append.
func (s *PostgresStore) RemoveDevice(ctx context.Context, userID, deviceID string, e LoginEntry) (RemoveResult, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return RemoveResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rec, err := s.getByUserForUpdateTx(ctx, tx, userID)
	if err != nil {
		return RemoveResult{}, err
	}

	remaining := make([]Device, 0, len(rec.Devices))
	for _, d := range rec.Devices {
		if d.ID != deviceID {
			remaining = append(remaining, d)
		}
	}
	res := RemoveResult{Removed: len(remaining) < len(rec.Devices), Remaining: len(remaining)}
	if !res.Removed {
		return res, nil
	}

	if len(remaining) == 0 {
		if err := s.deleteByIDTx(ctx, tx, rec.ID); err != nil {
			return RemoveResult{}, err
		}
		res.Deleted = true
	} else if err := s.replaceDevicesAppendEntryTx(ctx, tx, rec.ID, remaining, e); err != nil {
		return RemoveResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return RemoveResult{}, err
	}
	return res, nil
}

const pullDeviceExpr = `COALESCE(
	(SELECT jsonb_agg(x.elem ORDER BY x.ord)
	 FROM jsonb_array_elements(devices) WITH ORDINALITY AS x(elem, ord)
	 WHERE x.elem->>'id' <> $2),
	'[]'::jsonb)`

func filterSQL(f RecordFilter) (string, []any, error) {
	if f.IsEmpty() {
		return "", nil, ErrEmptyFilter
	}

	var (
		conds []string
		args  []any
	)
	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, strings.ReplaceAll(expr, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.UserID != "" {
		add("user_id = ?", f.UserID)
	}
	if f.Token != "" {
		add("refresh_token = ?", f.Token)
	}
	if !f.ExpiredAt.IsZero() {
		add("expires_at <= ?", f.ExpiredAt)
	}
	if !f.CreatedBefore.IsZero() {
		add("created_at < ?", f.CreatedBefore)
	}
	return strings.Join(conds, " AND "), args, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec             Record
		devices, events []byte
	)
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Token, &rec.CreatedAt, &rec.ExpiresAt, &devices, &events)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, err
	}

	if err := json.Unmarshal(devices, &rec.Devices); err != nil {
		return Record{}, fmt.Errorf("decode devices: %w", err)
	}
	if err := json.Unmarshal(events, &rec.LoginHistory); err != nil {
		return Record{}, fmt.Errorf("decode login history: %w", err)
	}
	return rec, nil
}

// marshalJSONArray encodes nil slices as [] rather than null.
func marshalJSONArray[T any](v []T) ([]byte, error) {
	if v == nil {
		v = []T{}
	}
	return json.Marshal(v)
}

func pgIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" // unique_violation
}
