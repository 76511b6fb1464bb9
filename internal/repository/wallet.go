package repository

import (
	"context"
	"time"

	"questlock/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

var ErrInsufficientBalance = errors.New("insufficient balance")

func (r *Repository) Balance(ctx context.Context) (int, error) {
	var coins int
	query, args, err := squirrel.
		Select("coins").
		From("wallet").
		Where(squirrel.Eq{"id": 1}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, err
	}

	err = r.db.GetContext(ctx, &coins, query, args...)
	if err != nil {
		return 0, err
	}
	return coins, nil
}

func (r *Repository) AddCoins(ctx context.Context, amount int) error {
	query, args, err := squirrel.
		Update("wallet").
		Set("coins", squirrel.Expr("coins + ?", amount)).
		Where(squirrel.Eq{"id": 1}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

// Deduct removes amount from the wallet, refusing to push it negative.
func (r *Repository) Deduct(ctx context.Context, amount int) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		var coins int
		query, args, err := squirrel.
			Select("coins").
			From("wallet").
			Where(squirrel.Eq{"id": 1}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &coins, query, args...); err != nil {
			return err
		}
		if coins < amount {
			return ErrInsufficientBalance
		}

		updateQuery, updateArgs, err := squirrel.
			Update("wallet").
			Set("coins", squirrel.Expr("coins - ?", amount)).
			Where(squirrel.Eq{"id": 1}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, updateQuery, updateArgs...)
		return err
	})
}

type penaltyLogRow struct {
	ID            uuid.UUID  `db:"id"`
	OccurredAt    time.Time  `db:"occurred_at"`
	Amount        int        `db:"amount"`
	BalanceBefore int        `db:"balance_before"`
	Source        string     `db:"source"`
	QuestID       *uuid.UUID `db:"quest_id"`
}

func (r *Repository) InsertPenaltyLog(ctx context.Context, entry *model.PenaltyLog) error {
	query, args, err := squirrel.
		Insert("penalty_log").
		SetMap(map[string]interface{}{
			"id":             entry.ID,
			"occurred_at":    entry.OccurredAt,
			"amount":         entry.Amount,
			"balance_before": entry.BalanceBefore,
			"source":         entry.Source,
			"quest_id":       entry.QuestID,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *Repository) ListPenaltyLogs(ctx context.Context, limit int) ([]*model.PenaltyLog, error) {
	query, args, err := squirrel.
		Select("id", "occurred_at", "amount", "balance_before", "source", "quest_id").
		From("penalty_log").
		OrderBy("occurred_at DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []penaltyLogRow
	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}

	out := make([]*model.PenaltyLog, len(rows))
	for i, rec := range rows {
		out[i] = &model.PenaltyLog{
			ID:            rec.ID,
			OccurredAt:    rec.OccurredAt,
			Amount:        rec.Amount,
			BalanceBefore: rec.BalanceBefore,
			Source:        rec.Source,
			QuestID:       rec.QuestID,
		}
	}
	return out, nil
}
