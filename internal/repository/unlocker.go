package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"questlock/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

type blockedUnlockerRow struct {
	UnlockerID   string         `db:"unlocker_id"`
	BlockedUntil time.Time      `db:"blocked_until"`
	Sources      pq.StringArray `db:"sources"`
}

func (r *Repository) GetBlockedUnlocker(ctx context.Context, unlockerID string) (*model.BlockedUnlocker, error) {
	var row blockedUnlockerRow
	query, args, err := squirrel.
		Select("unlocker_id", "blocked_until", "sources").
		From("blocked_unlockers").
		Where(squirrel.Eq{"unlocker_id": unlockerID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &model.BlockedUnlocker{
		UnlockerID:   row.UnlockerID,
		BlockedUntil: row.BlockedUntil,
		Sources:      row.Sources,
	}, nil
}

func (r *Repository) UpsertBlockedUnlocker(ctx context.Context, ban *model.BlockedUnlocker) error {
	query, args, err := squirrel.
		Insert("blocked_unlockers").
		Columns("unlocker_id", "blocked_until", "sources").
		Values(ban.UnlockerID, ban.BlockedUntil, pq.StringArray(ban.Sources)).
		Suffix(`ON CONFLICT (unlocker_id) DO UPDATE
			SET blocked_until = EXCLUDED.blocked_until,
			    sources = EXCLUDED.sources`).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *Repository) ListBlockedUnlockers(ctx context.Context, now time.Time) ([]*model.BlockedUnlocker, error) {
	query, args, err := squirrel.
		Select("unlocker_id", "blocked_until", "sources").
		From("blocked_unlockers").
		Where(squirrel.Gt{"blocked_until": now}).
		OrderBy("blocked_until").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []blockedUnlockerRow
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}

	out := make([]*model.BlockedUnlocker, len(rows))
	for i, row := range rows {
		out[i] = &model.BlockedUnlocker{
			UnlockerID:   row.UnlockerID,
			BlockedUntil: row.BlockedUntil,
			Sources:      row.Sources,
		}
	}
	return out, nil
}
