package model

import (
	"time"

	"github.com/google/uuid"
)

type TimerMode string

const (
	TimerInactive       TimerMode = "INACTIVE"
	TimerQuestCountdown TimerMode = "QUEST_COUNTDOWN"
	TimerBreak          TimerMode = "BREAK"
	TimerOvertime       TimerMode = "OVERTIME"
	TimerUnplannedBreak TimerMode = "UNPLANNED_BREAK"
)

// TimerState is recomputed from the quest store on every tick and never
// persisted; it carries no history of its own.
type TimerState struct {
	Mode       TimerMode
	QuestID    uuid.UUID
	QuestTitle string
	Remaining  time.Duration
	Elapsed    time.Duration
	ComputedAt time.Time
}
