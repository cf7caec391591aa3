package session

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
)

func (s *PostgresStore) getByUserForUpdateTx(ctx context.Context, tx pgx.Tx, userID string) (Record, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM `+s.table+`
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
	return scanRecord(row)
}

func (s *PostgresStore) deleteByIDTx(ctx context.Context, tx pgx.Tx, id string) error {
	_, err := tx.Exec(ctx, `DELETE FROM `+s.table+` WHERE id = $1`, id)
	return err
}

func (s *PostgresStore) replaceDevicesAppendEntryTx(ctx context.Context, tx pgx.Tx, id string, devices []Device, e LoginEntry) error {
	devs, err := marshalJSONArray(devices)
	if err != nil {
		return err
	}
	entry, err := json.Marshal(e)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE `+s.table+`
		SET devices = $2::jsonb,
		    login_history = login_history || jsonb_build_array($3::jsonb)
		WHERE id = $1
	`, id, devs, entry)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}
