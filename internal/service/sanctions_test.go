package service

import (
	"context"
	"testing"
	"time"

	"questlock/internal/model"
	"questlock/internal/repository"
	"questlock/internal/service/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type sanctionsFixture struct {
	quests    *mocks.MockQuestStore
	unlockers *mocks.MockUnlockerStore
	wallet    *mocks.MockWallet
	penalties *mocks.MockPenaltyLogStore
	lockdown  *mocks.MockLockdownClient
	enforcer  *SanctionsEnforcer
}

func newSanctionsFixture(now time.Time) *sanctionsFixture {
	f := &sanctionsFixture{
		quests:    &mocks.MockQuestStore{},
		unlockers: &mocks.MockUnlockerStore{},
		wallet:    &mocks.MockWallet{},
		penalties: &mocks.MockPenaltyLogStore{},
		lockdown:  &mocks.MockLockdownClient{},
	}
	f.enforcer = NewSanctionsEnforcer(f.quests, f.unlockers, f.wallet, f.penalties, f.lockdown, nil, time.Minute)
	f.enforcer.now = func() time.Time { return now }
	return f
}

func (f *sanctionsFixture) assertAll(t *testing.T) {
	f.quests.AssertExpectations(t)
	f.unlockers.AssertExpectations(t)
	f.wallet.AssertExpectations(t)
	f.penalties.AssertExpectations(t)
	f.lockdown.AssertExpectations(t)
}

func TestMissedDeadline(t *testing.T) {
	now := time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC)
	earlier := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	yesterday := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		quest    *model.Quest
		expected bool
	}{
		{
			name:     "no deadline configured",
			quest:    &model.Quest{DeadlineMinutes: -1},
			expected: false,
		},
		{
			name:     "deadline still ahead",
			quest:    &model.Quest{DeadlineMinutes: 20 * 60},
			expected: false,
		},
		{
			name:     "deadline passed, never completed",
			quest:    &model.Quest{DeadlineMinutes: 17 * 60},
			expected: true,
		},
		{
			name: "deadline passed but completed today",
			quest: &model.Quest{
				DeadlineMinutes: 17 * 60,
				LastCompletedAt: &earlier,
			},
			expected: false,
		},
		{
			name: "completed yesterday does not count",
			quest: &model.Quest{
				DeadlineMinutes: 17 * 60,
				LastCompletedAt: &yesterday,
			},
			expected: true,
		},
		{
			name:     "deadline exactly now has not passed yet",
			quest:    &model.Quest{DeadlineMinutes: 18 * 60},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, missedDeadline(tt.quest, now))
		})
	}
}

func TestSanctionsEnforcer_Liquidation(t *testing.T) {
	now := time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC)
	questID := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	quest := &model.Quest{
		ID:                         questID,
		Title:                      "Morning run",
		DeadlineMinutes:            17 * 60,
		SanctionLiquidationPercent: 10,
	}

	f := newSanctionsFixture(now)
	f.quests.On("GetAllQuests", mock.Anything).Return([]*model.Quest{quest}, nil)
	f.wallet.On("Balance", mock.Anything).Return(200, nil)
	f.wallet.On("Deduct", mock.Anything, 20).Return(nil)
	f.penalties.On("InsertPenaltyLog", mock.Anything, mock.MatchedBy(func(e *model.PenaltyLog) bool {
		return e.Amount == 20 &&
			e.BalanceBefore == 200 &&
			e.Source == "Morning run" &&
			e.QuestID != nil && *e.QuestID == questID
	})).Return(nil)
	f.quests.On("SetLiquidatedAt", mock.Anything, questID, now).Return(nil)

	assert.NoError(t, f.enforcer.Sweep(context.Background()))
	f.assertAll(t)
}

func TestSanctionsEnforcer_LiquidationGuardedByTimestamp(t *testing.T) {
	now := time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC)
	appliedAt := time.Date(2025, 6, 2, 17, 30, 0, 0, time.UTC)

	quest := &model.Quest{
		ID:                         uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Title:                      "Morning run",
		DeadlineMinutes:            17 * 60,
		SanctionLiquidationPercent: 10,
		LastLiquidatedAt:           &appliedAt,
	}

	f := newSanctionsFixture(now)
	f.quests.On("GetAllQuests", mock.Anything).Return([]*model.Quest{quest}, nil)

	// Already applied today: no wallet or penalty-log calls at all.
	assert.NoError(t, f.enforcer.Sweep(context.Background()))
	f.assertAll(t)
}

func TestSanctionsEnforcer_ZeroDeductionStillWritesGuard(t *testing.T) {
	now := time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC)
	questID := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	quest := &model.Quest{
		ID:                         questID,
		Title:                      "Morning run",
		DeadlineMinutes:            17 * 60,
		SanctionLiquidationPercent: 10,
	}

	f := newSanctionsFixture(now)
	f.quests.On("GetAllQuests", mock.Anything).Return([]*model.Quest{quest}, nil)
	f.wallet.On("Balance", mock.Anything).Return(5, nil)
	f.quests.On("SetLiquidatedAt", mock.Anything, questID, now).Return(nil)

	// 10% of 5 rounds to zero: nothing deducted, nothing logged, but the
	// guard advances so the sweep does not re-evaluate all day.
	assert.NoError(t, f.enforcer.Sweep(context.Background()))
	f.assertAll(t)
}

func TestSanctionsEnforcer_BanExtendsOnlyLapsed(t *testing.T) {
	now := time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC)
	activeUntil := now.Add(48 * time.Hour)

	quest := &model.Quest{
		ID:                     uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Title:                  "Morning run",
		DeadlineMinutes:        17 * 60,
		SanctionBanDays:        3,
		SanctionBanUnlockerIDs: []string{"unlock-30m", "unlock-60m"},
	}

	f := newSanctionsFixture(now)
	f.quests.On("GetAllQuests", mock.Anything).Return([]*model.Quest{quest}, nil)

	// unlock-30m carries an active ban from another quest: its expiry must
	// survive, with this quest's title joining the sources.
	f.unlockers.On("GetBlockedUnlocker", mock.Anything, "unlock-30m").
		Return(&model.BlockedUnlocker{
			UnlockerID:   "unlock-30m",
			BlockedUntil: activeUntil,
			Sources:      []string{"Evening review"},
		}, nil)
	f.unlockers.On("UpsertBlockedUnlocker", mock.Anything, mock.MatchedBy(func(b *model.BlockedUnlocker) bool {
		return b.UnlockerID == "unlock-30m" &&
			b.BlockedUntil.Equal(activeUntil) &&
			assert.ObjectsAreEqual([]string{"Evening review", "Morning run"}, b.Sources)
	})).Return(nil)

	// unlock-60m has no record: a fresh three-day ban.
	f.unlockers.On("GetBlockedUnlocker", mock.Anything, "unlock-60m").
		Return(nil, repository.ErrNotFound)
	f.unlockers.On("UpsertBlockedUnlocker", mock.Anything, mock.MatchedBy(func(b *model.BlockedUnlocker) bool {
		return b.UnlockerID == "unlock-60m" &&
			b.BlockedUntil.Equal(now.AddDate(0, 0, 3)) &&
			assert.ObjectsAreEqual([]string{"Morning run"}, b.Sources)
	})).Return(nil)

	assert.NoError(t, f.enforcer.Sweep(context.Background()))
	f.assertAll(t)
}

func TestSanctionsEnforcer_BanAlreadyCoveredWritesNothing(t *testing.T) {
	now := time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC)
	activeUntil := now.Add(24 * time.Hour)

	quest := &model.Quest{
		ID:                     uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Title:                  "Morning run",
		DeadlineMinutes:        17 * 60,
		SanctionBanDays:        3,
		SanctionBanUnlockerIDs: []string{"unlock-30m"},
	}

	f := newSanctionsFixture(now)
	f.quests.On("GetAllQuests", mock.Anything).Return([]*model.Quest{quest}, nil)
	f.unlockers.On("GetBlockedUnlocker", mock.Anything, "unlock-30m").
		Return(&model.BlockedUnlocker{
			UnlockerID:   "unlock-30m",
			BlockedUntil: activeUntil,
			Sources:      []string{"Morning run"},
		}, nil)

	// An active ban already listing this quest carries nothing new; the
	// minute sweep must not rewrite it for the rest of the day.
	assert.NoError(t, f.enforcer.Sweep(context.Background()))
	f.unlockers.AssertNotCalled(t, "UpsertBlockedUnlocker")

	assert.NoError(t, f.enforcer.Sweep(context.Background()))
	f.unlockers.AssertNotCalled(t, "UpsertBlockedUnlocker")
	f.assertAll(t)
}

func TestSanctionsEnforcer_PhoneBlockGuardWrittenOnFailure(t *testing.T) {
	now := time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC)
	questID := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	quest := &model.Quest{
		ID:                 questID,
		Title:              "Morning run",
		DeadlineMinutes:    17 * 60,
		SanctionPhoneBlock: true,
		SanctionPhoneAPI:   "https://lockdown.example/api/block",
	}

	f := newSanctionsFixture(now)
	f.quests.On("GetAllQuests", mock.Anything).Return([]*model.Quest{quest}, nil)
	f.lockdown.On("Invoke", mock.Anything, "https://lockdown.example/api/block").
		Return(assert.AnError)
	f.quests.On("SetPhoneBlockInvokedAt", mock.Anything, questID, now).Return(nil)

	// The invocation failing does not leave the quest eligible for another
	// attempt today.
	assert.NoError(t, f.enforcer.Sweep(context.Background()))
	f.assertAll(t)
}

func TestSanctionsEnforcer_OneBadQuestDoesNotBlockOthers(t *testing.T) {
	now := time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC)
	badID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	goodID := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	bad := &model.Quest{
		ID:                         badID,
		Title:                      "Broken",
		DeadlineMinutes:            17 * 60,
		SanctionLiquidationPercent: 10,
	}
	good := &model.Quest{
		ID:                 goodID,
		Title:              "Healthy",
		DeadlineMinutes:    17 * 60,
		SanctionPhoneBlock: true,
		SanctionPhoneAPI:   "https://lockdown.example/api/block",
	}

	f := newSanctionsFixture(now)
	f.quests.On("GetAllQuests", mock.Anything).Return([]*model.Quest{bad, good}, nil)

	// The first quest's wallet read fails; the second still gets its
	// phone block.
	f.wallet.On("Balance", mock.Anything).Return(0, assert.AnError)
	f.lockdown.On("Invoke", mock.Anything, "https://lockdown.example/api/block").Return(nil)
	f.quests.On("SetPhoneBlockInvokedAt", mock.Anything, goodID, now).Return(nil)

	assert.NoError(t, f.enforcer.Sweep(context.Background()))
	f.assertAll(t)
}
