package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/goccy/go-json"
)

// The unlock ledger persists as one serialized map per namespace:
// package id to expiry in epoch millis.
func (r *Repository) SaveLedgerSnapshot(ctx context.Context, namespace string, entries map[string]int64) error {
	payload, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	query, args, err := squirrel.
		Insert("kv_store").
		Columns("namespace", "payload", "updated_at").
		Values(namespace, payload, squirrel.Expr("now()")).
		Suffix(`ON CONFLICT (namespace) DO UPDATE
			SET payload = EXCLUDED.payload,
			    updated_at = now()`).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *Repository) LoadLedgerSnapshot(ctx context.Context, namespace string) (map[string]int64, error) {
	var payload []byte
	query, args, err := squirrel.
		Select("payload").
		From("kv_store").
		Where(squirrel.Eq{"namespace": namespace}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &payload, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLedgerNotFound
		}
		return nil, err
	}

	entries := make(map[string]int64)
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
