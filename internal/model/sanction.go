package model

import (
	"time"

	"github.com/google/uuid"
)

// BlockedUnlocker is a temporary ban on a purchasable unlocker. A ban is
// active while now < BlockedUntil. Sources accumulates the titles of the
// quests that contributed to the ban and is merged, never overwritten.
type BlockedUnlocker struct {
	UnlockerID   string
	BlockedUntil time.Time
	Sources      []string
}

func (b *BlockedUnlocker) ActiveAt(now time.Time) bool {
	return b.BlockedUntil.After(now)
}

// PenaltyLog is an append-only record of a coin deduction. Created once
// per sanction application; never mutated.
type PenaltyLog struct {
	ID            uuid.UUID
	OccurredAt    time.Time
	Amount        int
	BalanceBefore int
	Source        string
	QuestID       *uuid.UUID
}
