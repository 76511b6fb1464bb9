package repository

import (
	"context"
	"fmt"
)

// Migrations are embedded and applied in order. Each entry runs once,
// tracked in schema_migrations by version.
var migrations = []struct {
	version string
	stmt    string
}{
	{
		version: "001_quests",
		stmt: `CREATE TABLE IF NOT EXISTS quests (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			reward_min INT NOT NULL DEFAULT 0,
			reward_max INT NOT NULL DEFAULT 0,
			selected_days SMALLINT[] NOT NULL DEFAULT '{}',
			time_range_start INT NOT NULL DEFAULT 0,
			time_range_end INT NOT NULL DEFAULT 1440,
			deadline_minutes INT NOT NULL DEFAULT -1,
			quest_duration_minutes INT NOT NULL DEFAULT 0,
			break_duration_minutes INT NOT NULL DEFAULT 0,
			quest_started_at TIMESTAMPTZ,
			last_completed_at TIMESTAMPTZ,
			last_completed_on TEXT NOT NULL DEFAULT '',
			last_liquidated_at TIMESTAMPTZ,
			last_phone_block_invoked_at TIMESTAMPTZ,
			sanction_ban_days INT NOT NULL DEFAULT 0,
			sanction_ban_unlocker_ids TEXT[] NOT NULL DEFAULT '{}',
			sanction_liquidation_percent INT NOT NULL DEFAULT 0,
			sanction_phone_block BOOLEAN NOT NULL DEFAULT FALSE,
			sanction_phone_api TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},
	{
		version: "002_wallet",
		stmt: `CREATE TABLE IF NOT EXISTS wallet (
			id SMALLINT PRIMARY KEY CHECK (id = 1),
			coins INT NOT NULL DEFAULT 0
		)`,
	},
	{
		version: "003_wallet_seed",
		stmt:    `INSERT INTO wallet (id, coins) VALUES (1, 0) ON CONFLICT (id) DO NOTHING`,
	},
	{
		version: "004_penalty_log",
		stmt: `CREATE TABLE IF NOT EXISTS penalty_log (
			id UUID PRIMARY KEY,
			occurred_at TIMESTAMPTZ NOT NULL,
			amount INT NOT NULL,
			balance_before INT NOT NULL,
			source TEXT NOT NULL,
			quest_id UUID
		)`,
	},
	{
		version: "005_blocked_unlockers",
		stmt: `CREATE TABLE IF NOT EXISTS blocked_unlockers (
			unlocker_id TEXT PRIMARY KEY,
			blocked_until TIMESTAMPTZ NOT NULL,
			sources TEXT[] NOT NULL DEFAULT '{}'
		)`,
	},
	{
		version: "006_kv_store",
		stmt: `CREATE TABLE IF NOT EXISTS kv_store (
			namespace TEXT PRIMARY KEY,
			payload JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},
}

func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var exists bool
		err := r.db.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, m.version)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", m.version, err)
		}
		if exists {
			continue
		}

		if _, err := r.db.ExecContext(ctx, m.stmt); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.version, err)
		}
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1)`, m.version); err != nil {
			return fmt.Errorf("record migration %s: %w", m.version, err)
		}
	}

	return nil
}
