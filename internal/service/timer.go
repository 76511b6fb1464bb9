package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"questlock/internal/metrics"
	"questlock/internal/model"
	"questlock/pkg/logger"

	"go.uber.org/zap"
)

const overtimeRepeatMinutes = 5

var timerModes = []model.TimerMode{
	model.TimerInactive,
	model.TimerQuestCountdown,
	model.TimerBreak,
	model.TimerOvertime,
	model.TimerUnplannedBreak,
}

// SessionTimer derives the current focus state from the quest store on
// every tick. It owns no state of its own: everything is recomputed from
// persisted quest records and wall-clock time.
type SessionTimer struct {
	quests   QuestStore
	notifier Notifier
	metrics  *metrics.Metrics

	mu      sync.RWMutex
	current model.TimerState
	publish func(model.TimerState)

	prevMode           model.TimerMode
	lastNotifiedMinute int

	now func() time.Time
	log *zap.Logger
}

func NewSessionTimer(quests QuestStore, notifier Notifier, m *metrics.Metrics) *SessionTimer {
	return &SessionTimer{
		quests:             quests,
		notifier:           notifier,
		metrics:            m,
		prevMode:           model.TimerInactive,
		lastNotifiedMinute: -1,
		now:                time.Now,
		log:                logger.Logger(),
	}
}

// SetPublisher registers the observer callback (the websocket hub).
func (t *SessionTimer) SetPublisher(fn func(model.TimerState)) {
	t.publish = fn
}

// Current returns the latest computed state.
func (t *SessionTimer) Current() model.TimerState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Run ticks at 1 Hz aligned to the wall-clock second boundary so ticks
// land on second edges instead of drifting.
func (t *SessionTimer) Run(ctx context.Context) {
	t.log.Info("session timer started")
	for {
		delay := time.Duration(1000-t.now().UnixMilli()%1000) * time.Millisecond
		select {
		case <-ctx.Done():
			t.log.Info("session timer stopped")
			return
		case <-time.After(delay):
			t.tick(ctx)
		}
	}
}

func (t *SessionTimer) tick(ctx context.Context) {
	quests, err := t.quests.GetAllQuests(ctx)
	if err != nil {
		t.log.Warn("failed to read quests for timer tick", zap.Error(err))
		return
	}

	now := t.now()
	state := computeTimerState(quests, now)
	t.emitEdges(ctx, state)

	t.mu.Lock()
	t.current = state
	t.mu.Unlock()

	if t.metrics != nil {
		for _, mode := range timerModes {
			v := 0.0
			if mode == state.Mode {
				v = 1.0
			}
			t.metrics.TimerMode.WithLabelValues(string(mode)).Set(v)
		}
	}

	if t.publish != nil {
		t.publish(state)
	}
}

// emitEdges fires the one-shot notifications. Transitions are
// edge-triggered on the previous tick's mode, never level-triggered, so a
// state held across ticks cannot repeat its notification.
func (t *SessionTimer) emitEdges(ctx context.Context, state model.TimerState) {
	switch {
	case state.Mode == model.TimerOvertime && t.prevMode != model.TimerOvertime:
		t.notify(ctx, "Quest complete", fmt.Sprintf("%s: planned time is up", state.QuestTitle))
		t.lastNotifiedMinute = 0

	case state.Mode == model.TimerOvertime:
		minutes := int(state.Elapsed.Minutes())
		if minutes > 0 && minutes%overtimeRepeatMinutes == 0 && minutes != t.lastNotifiedMinute {
			t.notify(ctx, "Still in overtime",
				fmt.Sprintf("%s: %d minutes over planned time", state.QuestTitle, minutes))
			t.lastNotifiedMinute = minutes
		}

	case t.prevMode == model.TimerBreak && state.Mode != model.TimerBreak:
		t.notify(ctx, "Break over", "Time to get back to it")
	}

	if state.Mode != model.TimerOvertime {
		t.lastNotifiedMinute = -1
	}
	t.prevMode = state.Mode
}

func (t *SessionTimer) notify(ctx context.Context, title, message string) {
	if err := t.notifier.Show(ctx, title, message, ChannelSession); err != nil {
		t.log.Warn("failed to show session notification", zap.Error(err))
	}
}

// computeTimerState is the pure derivation. The active-quest invariant
// (at most one started and uncompleted today) is assumed; if violated the
// lexicographically smallest quest id wins, which keeps ties deterministic.
func computeTimerState(quests []*model.Quest, now time.Time) model.TimerState {
	sorted := make([]*model.Quest, len(quests))
	copy(sorted, quests)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	day := localDate(now)

	for _, q := range sorted {
		if q.QuestStartedAt == nil || q.CompletedOn(day) || q.QuestDurationMinutes <= 0 {
			continue
		}

		end := q.QuestStartedAt.Add(time.Duration(q.QuestDurationMinutes) * time.Minute)
		if now.Before(end) {
			return model.TimerState{
				Mode:       model.TimerQuestCountdown,
				QuestID:    q.ID,
				QuestTitle: q.Title,
				Remaining:  end.Sub(now),
				ComputedAt: now,
			}
		}
		// A session ending exactly on the tick boundary is overtime.
		return model.TimerState{
			Mode:       model.TimerOvertime,
			QuestID:    q.ID,
			QuestTitle: q.Title,
			Elapsed:    now.Sub(end),
			ComputedAt: now,
		}
	}

	var rested *model.Quest
	for _, q := range sorted {
		if !q.CompletedOn(day) || q.BreakDurationMinutes <= 0 || q.LastCompletedAt == nil {
			continue
		}
		if rested == nil || q.LastCompletedAt.After(*rested.LastCompletedAt) {
			rested = q
		}
	}

	if rested != nil {
		breakEnd := rested.LastCompletedAt.Add(time.Duration(rested.BreakDurationMinutes) * time.Minute)
		if now.Before(breakEnd) {
			return model.TimerState{
				Mode:       model.TimerBreak,
				QuestID:    rested.ID,
				QuestTitle: rested.Title,
				Remaining:  breakEnd.Sub(now),
				ComputedAt: now,
			}
		}
		if anyEligibleUnfinished(sorted, now, day) {
			return model.TimerState{
				Mode:       model.TimerUnplannedBreak,
				QuestID:    rested.ID,
				QuestTitle: rested.Title,
				Elapsed:    now.Sub(breakEnd),
				ComputedAt: now,
			}
		}
	}

	return model.TimerState{Mode: model.TimerInactive, ComputedAt: now}
}

// anyEligibleUnfinished reports whether some quest is scheduled for today,
// inside its hour window, and still undone.
func anyEligibleUnfinished(quests []*model.Quest, now time.Time, day string) bool {
	minuteOfDay := now.Hour()*60 + now.Minute()
	for _, q := range quests {
		if q.CompletedOn(day) {
			continue
		}
		if !q.ScheduledOn(now.Weekday()) {
			continue
		}
		if !q.TimeRange.Contains(minuteOfDay) {
			continue
		}
		return true
	}
	return false
}
