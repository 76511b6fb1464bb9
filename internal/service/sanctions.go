package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"questlock/internal/metrics"
	"questlock/internal/model"
	"questlock/internal/repository"
	"questlock/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SanctionsEnforcer converts missed deadlines into consequences, exactly
// once per quest per day per penalty type. Idempotency comes from the
// per-quest guard timestamps, not from locking: two concurrent sweeps
// computing the same action converge on the same outcome.
type SanctionsEnforcer struct {
	quests    QuestStore
	unlockers UnlockerStore
	wallet    Wallet
	penalties PenaltyLogStore
	lockdown  LockdownClient
	metrics   *metrics.Metrics

	interval time.Duration
	now      func() time.Time
	log      *zap.Logger
}

func NewSanctionsEnforcer(
	quests QuestStore,
	unlockers UnlockerStore,
	wallet Wallet,
	penalties PenaltyLogStore,
	lockdown LockdownClient,
	m *metrics.Metrics,
	interval time.Duration,
) *SanctionsEnforcer {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SanctionsEnforcer{
		quests:    quests,
		unlockers: unlockers,
		wallet:    wallet,
		penalties: penalties,
		lockdown:  lockdown,
		metrics:   m,
		interval:  interval,
		now:       time.Now,
		log:       logger.Logger(),
	}
}

func (e *SanctionsEnforcer) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.log.Info("sanctions enforcer started", zap.Duration("interval", e.interval))

	for {
		select {
		case <-ctx.Done():
			e.log.Info("sanctions enforcer stopped")
			return
		case <-ticker.C:
			if err := e.Sweep(ctx); err != nil {
				e.log.Warn("sanctions sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs the three checks over every quest. Each quest is an
// independent unit: one bad record cannot block sanctions for the rest.
func (e *SanctionsEnforcer) Sweep(ctx context.Context) error {
	quests, err := e.quests.GetAllQuests(ctx)
	if err != nil {
		return fmt.Errorf("failed to read quests for sweep: %w", err)
	}

	now := e.now()
	for _, q := range quests {
		e.sweepQuest(ctx, q, now)
	}
	return nil
}

func (e *SanctionsEnforcer) sweepQuest(ctx context.Context, q *model.Quest, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("panic while sanctioning quest",
				zap.String("quest_id", q.ID.String()), zap.Any("panic", r))
		}
	}()

	if !missedDeadline(q, now) {
		return
	}

	if err := e.applyBan(ctx, q, now); err != nil {
		e.log.Warn("unlocker ban failed", zap.String("quest", q.Title), zap.Error(err))
	}
	if err := e.applyLiquidation(ctx, q, now); err != nil {
		e.log.Warn("liquidation failed", zap.String("quest", q.Title), zap.Error(err))
	}
	if err := e.applyPhoneBlock(ctx, q, now); err != nil {
		e.log.Warn("phone block failed", zap.String("quest", q.Title), zap.Error(err))
	}
}

// missedDeadline is true when the quest's deadline for today has passed
// without a completion today.
func missedDeadline(q *model.Quest, now time.Time) bool {
	if q.DeadlineMinutes < 0 {
		return false
	}
	if !now.After(deadlineOfDay(now, q.DeadlineMinutes)) {
		return false
	}
	if q.LastCompletedAt != nil && !q.LastCompletedAt.Before(startOfDay(now)) {
		return false
	}
	return true
}

// applyBan extends the ban on each configured unlocker. An active ban is
// never shortened or restarted: a fresh expiry is computed only when no
// ban exists or the previous one already lapsed. The quest's title joins
// the record's source set either way.
func (e *SanctionsEnforcer) applyBan(ctx context.Context, q *model.Quest, now time.Time) error {
	if q.SanctionBanDays <= 0 || len(q.SanctionBanUnlockerIDs) == 0 {
		return nil
	}

	applied := false
	for _, unlockerID := range q.SanctionBanUnlockerIDs {
		existing, err := e.unlockers.GetBlockedUnlocker(ctx, unlockerID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			existing = nil
		}

		until := now.AddDate(0, 0, q.SanctionBanDays)
		active := false
		var sources []string
		if existing != nil {
			if existing.ActiveAt(now) {
				until = existing.BlockedUntil
				active = true
			}
			sources = existing.Sources
		}

		merged := mergeSource(sources, q.Title)
		// An active ban already carrying this quest's title has nothing
		// left to write; repeating the upsert every sweep would also
		// inflate the sanction counter.
		if active && len(merged) == len(sources) {
			continue
		}

		ban := &model.BlockedUnlocker{
			UnlockerID:   unlockerID,
			BlockedUntil: until,
			Sources:      merged,
		}
		if err := e.unlockers.UpsertBlockedUnlocker(ctx, ban); err != nil {
			return err
		}
		applied = true
	}

	if applied && e.metrics != nil {
		e.metrics.SanctionsApplied.WithLabelValues("ban").Inc()
	}
	return nil
}

// applyLiquidation deducts a percentage of the coin balance once per day.
// The guard is written even when the deduction rounds to zero so the same
// missed day is not re-evaluated on every sweep.
func (e *SanctionsEnforcer) applyLiquidation(ctx context.Context, q *model.Quest, now time.Time) error {
	if q.SanctionLiquidationPercent <= 0 {
		return nil
	}
	if q.LastLiquidatedAt != nil && !q.LastLiquidatedAt.Before(startOfDay(now)) {
		return nil
	}

	balance, err := e.wallet.Balance(ctx)
	if err != nil {
		return err
	}

	amount := balance * q.SanctionLiquidationPercent / 100
	if amount > 0 {
		if err := e.wallet.Deduct(ctx, amount); err != nil {
			return err
		}
		entry := &model.PenaltyLog{
			ID:            uuid.New(),
			OccurredAt:    now,
			Amount:        amount,
			BalanceBefore: balance,
			Source:        q.Title,
			QuestID:       &q.ID,
		}
		if err := e.penalties.InsertPenaltyLog(ctx, entry); err != nil {
			return err
		}
	}

	if err := e.quests.SetLiquidatedAt(ctx, q.ID, now); err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.SanctionsApplied.WithLabelValues("liquidation").Inc()
	}
	e.log.Info("liquidation applied",
		zap.String("quest", q.Title), zap.Int("amount", amount), zap.Int("balance_before", balance))
	return nil
}

// applyPhoneBlock invokes the external lock-down endpoint. The guard is
// written whether the call succeeds or fails, so an unreliable endpoint
// cannot cause a retry storm within the same day.
func (e *SanctionsEnforcer) applyPhoneBlock(ctx context.Context, q *model.Quest, now time.Time) error {
	if !q.SanctionPhoneBlock || q.SanctionPhoneAPI == "" {
		return nil
	}
	if q.LastPhoneBlockInvokedAt != nil && !q.LastPhoneBlockInvokedAt.Before(startOfDay(now)) {
		return nil
	}

	var invokeErr error
	defer func() {
		if err := e.quests.SetPhoneBlockInvokedAt(ctx, q.ID, now); err != nil {
			e.log.Error("failed to persist phone block guard",
				zap.String("quest", q.Title), zap.Error(err))
		}
	}()

	invokeErr = e.lockdown.Invoke(ctx, q.SanctionPhoneAPI)
	if invokeErr != nil {
		e.log.Warn("lock-down invocation failed",
			zap.String("quest", q.Title), zap.Error(invokeErr))
	}

	if e.metrics != nil {
		e.metrics.SanctionsApplied.WithLabelValues("phone_block").Inc()
	}
	return nil
}

func mergeSource(sources []string, title string) []string {
	for _, s := range sources {
		if s == title {
			return sources
		}
	}
	return append(sources, title)
}

