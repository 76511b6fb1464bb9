package model

import (
	"time"

	"github.com/google/uuid"
)

type AlarmKind string

const (
	AlarmQuestComplete          AlarmKind = "QUEST_COMPLETE"
	AlarmBreakComplete          AlarmKind = "BREAK_COMPLETE"
	AlarmQuestOverdue           AlarmKind = "QUEST_OVERDUE"
	AlarmBreakOverdue           AlarmKind = "BREAK_OVERDUE"
	AlarmOverduePeriodic        AlarmKind = "OVERDUE_PERIODIC"
	AlarmUnplannedBreakPeriodic AlarmKind = "UNPLANNED_BREAK_PERIODIC"
)

// AlarmPayload travels with the scheduled callback. Kind is carried
// explicitly so delivery handling never has to reconstruct it from
// notification text.
type AlarmPayload struct {
	Kind    AlarmKind  `json:"kind"`
	QuestID uuid.UUID  `json:"quest_id"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	EndTime *time.Time `json:"end_time,omitempty"`
}
