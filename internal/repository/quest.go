package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"questlock/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Quest struct {
	ID                         uuid.UUID      `db:"id"`
	Title                      string         `db:"title"`
	RewardMin                  int            `db:"reward_min"`
	RewardMax                  int            `db:"reward_max"`
	SelectedDays               pq.Int64Array  `db:"selected_days"`
	TimeRangeStart             int            `db:"time_range_start"`
	TimeRangeEnd               int            `db:"time_range_end"`
	DeadlineMinutes            int            `db:"deadline_minutes"`
	QuestDurationMinutes       int            `db:"quest_duration_minutes"`
	BreakDurationMinutes       int            `db:"break_duration_minutes"`
	QuestStartedAt             *time.Time     `db:"quest_started_at"`
	LastCompletedAt            *time.Time     `db:"last_completed_at"`
	LastCompletedOn            string         `db:"last_completed_on"`
	LastLiquidatedAt           *time.Time     `db:"last_liquidated_at"`
	LastPhoneBlockInvokedAt    *time.Time     `db:"last_phone_block_invoked_at"`
	SanctionBanDays            int            `db:"sanction_ban_days"`
	SanctionBanUnlockerIDs     pq.StringArray `db:"sanction_ban_unlocker_ids"`
	SanctionLiquidationPercent int            `db:"sanction_liquidation_percent"`
	SanctionPhoneBlock         bool           `db:"sanction_phone_block"`
	SanctionPhoneAPI           string         `db:"sanction_phone_api"`
	CreatedAt                  time.Time      `db:"created_at"`
}

func (q *Quest) toModel() *model.Quest {
	days := make([]time.Weekday, len(q.SelectedDays))
	for i, d := range q.SelectedDays {
		days[i] = time.Weekday(d)
	}

	return &model.Quest{
		ID:           q.ID,
		Title:        q.Title,
		RewardMin:    q.RewardMin,
		RewardMax:    q.RewardMax,
		SelectedDays: days,
		TimeRange: model.TimeRange{
			StartMinutes: q.TimeRangeStart,
			EndMinutes:   q.TimeRangeEnd,
		},
		DeadlineMinutes:            q.DeadlineMinutes,
		QuestDurationMinutes:       q.QuestDurationMinutes,
		BreakDurationMinutes:       q.BreakDurationMinutes,
		QuestStartedAt:             q.QuestStartedAt,
		LastCompletedAt:            q.LastCompletedAt,
		LastCompletedOn:            q.LastCompletedOn,
		LastLiquidatedAt:           q.LastLiquidatedAt,
		LastPhoneBlockInvokedAt:    q.LastPhoneBlockInvokedAt,
		SanctionBanDays:            q.SanctionBanDays,
		SanctionBanUnlockerIDs:     q.SanctionBanUnlockerIDs,
		SanctionLiquidationPercent: q.SanctionLiquidationPercent,
		SanctionPhoneBlock:         q.SanctionPhoneBlock,
		SanctionPhoneAPI:           q.SanctionPhoneAPI,
		CreatedAt:                  q.CreatedAt,
	}
}

func questColumns(quest *model.Quest) map[string]interface{} {
	days := make(pq.Int64Array, len(quest.SelectedDays))
	for i, d := range quest.SelectedDays {
		days[i] = int64(d)
	}

	return map[string]interface{}{
		"title":                        quest.Title,
		"reward_min":                   quest.RewardMin,
		"reward_max":                   quest.RewardMax,
		"selected_days":                days,
		"time_range_start":             quest.TimeRange.StartMinutes,
		"time_range_end":               quest.TimeRange.EndMinutes,
		"deadline_minutes":             quest.DeadlineMinutes,
		"quest_duration_minutes":       quest.QuestDurationMinutes,
		"break_duration_minutes":       quest.BreakDurationMinutes,
		"sanction_ban_days":            quest.SanctionBanDays,
		"sanction_ban_unlocker_ids":    pq.StringArray(quest.SanctionBanUnlockerIDs),
		"sanction_liquidation_percent": quest.SanctionLiquidationPercent,
		"sanction_phone_block":         quest.SanctionPhoneBlock,
		"sanction_phone_api":           quest.SanctionPhoneAPI,
	}
}

func (r *Repository) CreateQuest(ctx context.Context, quest *model.Quest) error {
	cols := questColumns(quest)
	cols["id"] = quest.ID
	cols["created_at"] = quest.CreatedAt

	query, args, err := squirrel.
		Insert("quests").
		SetMap(cols).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *Repository) GetQuestByID(ctx context.Context, id uuid.UUID) (*model.Quest, error) {
	var quest Quest
	query, args, err := squirrel.
		Select("*").
		From("quests").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &quest, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuestNotFound
		}
		return nil, err
	}

	return quest.toModel(), nil
}

func (r *Repository) GetAllQuests(ctx context.Context) ([]*model.Quest, error) {
	var quests []Quest
	query, args, err := squirrel.
		Select("*").
		From("quests").
		OrderBy("id").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.SelectContext(ctx, &quests, query, args...)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Quest, len(quests))
	for i := range quests {
		out[i] = quests[i].toModel()
	}
	return out, nil
}

func (r *Repository) UpdateQuest(ctx context.Context, quest *model.Quest) error {
	query, args, err := squirrel.
		Update("quests").
		SetMap(questColumns(quest)).
		Where(squirrel.Eq{"id": quest.ID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (r *Repository) DeleteQuest(ctx context.Context, id uuid.UUID) error {
	query, args, err := squirrel.
		Delete("quests").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (r *Repository) StartQuest(ctx context.Context, id uuid.UUID, at time.Time) error {
	query, args, err := squirrel.
		Update("quests").
		Set("quest_started_at", at).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// CompleteQuest records completion and credits the reward in one
// transaction so a crash cannot leave a finished quest unpaid.
func (r *Repository) CompleteQuest(ctx context.Context, id uuid.UUID, at time.Time, day string, reward int) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		query, args, err := squirrel.
			Update("quests").
			SetMap(map[string]interface{}{
				"quest_started_at":  nil,
				"last_completed_at": at,
				"last_completed_on": day,
			}).
			Where(squirrel.Eq{"id": id}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if err := requireRow(result); err != nil {
			return err
		}

		coinQuery, coinArgs, err := squirrel.
			Update("wallet").
			Set("coins", squirrel.Expr("coins + ?", reward)).
			Where(squirrel.Eq{"id": 1}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, coinQuery, coinArgs...)
		return err
	})
}

func (r *Repository) SetLiquidatedAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.setQuestTimestamp(ctx, id, "last_liquidated_at", at)
}

func (r *Repository) SetPhoneBlockInvokedAt(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.setQuestTimestamp(ctx, id, "last_phone_block_invoked_at", at)
}

func (r *Repository) setQuestTimestamp(ctx context.Context, id uuid.UUID, column string, at time.Time) error {
	query, args, err := squirrel.
		Update("quests").
		Set(column, at).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrQuestNotFound
	}
	return nil
}
