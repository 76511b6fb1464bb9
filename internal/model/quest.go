package model

import (
	"time"

	"github.com/google/uuid"
)

// TimeRange is the hour window within which a quest may be worked,
// expressed as minutes from local midnight.
type TimeRange struct {
	StartMinutes int
	EndMinutes   int
}

func (r TimeRange) Contains(minuteOfDay int) bool {
	return minuteOfDay >= r.StartMinutes && minuteOfDay < r.EndMinutes
}

type Quest struct {
	ID           uuid.UUID
	Title        string
	RewardMin    int
	RewardMax    int
	SelectedDays []time.Weekday
	TimeRange    TimeRange

	// DeadlineMinutes is minutes from local midnight; -1 means no deadline.
	DeadlineMinutes      int
	QuestDurationMinutes int
	BreakDurationMinutes int

	QuestStartedAt  *time.Time
	LastCompletedAt *time.Time
	LastCompletedOn string

	// Per-day idempotency guards, one per penalty type.
	LastLiquidatedAt        *time.Time
	LastPhoneBlockInvokedAt *time.Time

	SanctionBanDays            int
	SanctionBanUnlockerIDs     []string
	SanctionLiquidationPercent int
	SanctionPhoneBlock         bool
	SanctionPhoneAPI           string

	CreatedAt time.Time
}

// DateString is the local calendar day format used by LastCompletedOn.
const DateString = "2006-01-02"

func (q *Quest) CompletedOn(day string) bool {
	return q.LastCompletedOn == day
}

func (q *Quest) ScheduledOn(weekday time.Weekday) bool {
	for _, d := range q.SelectedDays {
		if d == weekday {
			return true
		}
	}
	return false
}
