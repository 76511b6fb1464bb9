package service

import (
	"context"
	"testing"
	"time"

	"questlock/internal/model"
	"questlock/internal/service/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestRequestID_DistinctPerKind(t *testing.T) {
	questID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	otherID := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	seen := map[int]model.AlarmKind{}
	for kind := range kindOffsets {
		id := RequestID(questID, kind)
		prev, dup := seen[id]
		assert.False(t, dup, "kinds %s and %s collided on id %d", prev, kind, id)
		seen[id] = kind

		// Stable across calls.
		assert.Equal(t, id, RequestID(questID, kind))
	}

	assert.NotEqual(t,
		RequestID(questID, model.AlarmQuestComplete),
		RequestID(otherID, model.AlarmQuestComplete))
}

func TestAlarmScheduler_FallsBackToInexact(t *testing.T) {
	transport := &mocks.MockAlarmTransport{}
	scheduler := NewAlarmScheduler(transport, NopNotifier{}, nil)

	fireAt := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	payload := model.AlarmPayload{
		Kind:    model.AlarmQuestComplete,
		QuestID: uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Title:   "Quest complete",
	}
	id := RequestID(payload.QuestID, payload.Kind)

	transport.On("Schedule", mock.Anything, fireAt, id, payload).
		Return(ErrExactAlarmDenied)
	transport.On("ScheduleInexact", mock.Anything, fireAt, id, payload).
		Return(nil)

	assert.NoError(t, scheduler.Schedule(context.Background(), fireAt, payload))
	transport.AssertExpectations(t)
}

func TestAlarmScheduler_ScheduleQuestEnd(t *testing.T) {
	transport := &mocks.MockAlarmTransport{}
	scheduler := NewAlarmScheduler(transport, NopNotifier{}, nil)

	started := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	quest := &model.Quest{
		ID:                   uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Title:                "Deep work",
		QuestStartedAt:       &started,
		QuestDurationMinutes: 25,
	}
	end := started.Add(25 * time.Minute)

	transport.On("Schedule", mock.Anything, end, RequestID(quest.ID, model.AlarmQuestComplete),
		mock.MatchedBy(func(p model.AlarmPayload) bool {
			return p.Kind == model.AlarmQuestComplete
		})).Return(nil)
	transport.On("Schedule", mock.Anything, end.Add(5*time.Minute), RequestID(quest.ID, model.AlarmQuestOverdue),
		mock.MatchedBy(func(p model.AlarmPayload) bool {
			return p.Kind == model.AlarmQuestOverdue &&
				p.EndTime != nil && p.EndTime.Equal(end)
		})).Return(nil)
	transport.On("Schedule", mock.Anything, end.Add(3*time.Minute), RequestID(quest.ID, model.AlarmOverduePeriodic),
		mock.MatchedBy(func(p model.AlarmPayload) bool {
			return p.Kind == model.AlarmOverduePeriodic
		})).Return(nil)

	assert.NoError(t, scheduler.ScheduleQuestEnd(context.Background(), quest))
	transport.AssertExpectations(t)
	transport.AssertNumberOfCalls(t, "Schedule", 3)
}

func TestAlarmScheduler_ScheduleBreakEnd(t *testing.T) {
	transport := &mocks.MockAlarmTransport{}
	scheduler := NewAlarmScheduler(transport, NopNotifier{}, nil)

	completed := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	quest := &model.Quest{
		ID:                   uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Title:                "Deep work",
		LastCompletedAt:      &completed,
		BreakDurationMinutes: 10,
	}
	end := completed.Add(10 * time.Minute)

	transport.On("Schedule", mock.Anything, end, RequestID(quest.ID, model.AlarmBreakComplete),
		mock.MatchedBy(func(p model.AlarmPayload) bool {
			return p.Kind == model.AlarmBreakComplete
		})).Return(nil)
	transport.On("Schedule", mock.Anything, end.Add(5*time.Minute), RequestID(quest.ID, model.AlarmBreakOverdue),
		mock.MatchedBy(func(p model.AlarmPayload) bool {
			return p.Kind == model.AlarmBreakOverdue &&
				p.EndTime != nil && p.EndTime.Equal(end)
		})).Return(nil)
	transport.On("Schedule", mock.Anything, end.Add(5*time.Minute), RequestID(quest.ID, model.AlarmUnplannedBreakPeriodic),
		mock.MatchedBy(func(p model.AlarmPayload) bool {
			return p.Kind == model.AlarmUnplannedBreakPeriodic
		})).Return(nil)

	assert.NoError(t, scheduler.ScheduleBreakEnd(context.Background(), quest))
	transport.AssertExpectations(t)
	transport.AssertNumberOfCalls(t, "Schedule", 3)
}

func TestAlarmScheduler_ScheduleQuestEndRequiresStart(t *testing.T) {
	scheduler := NewAlarmScheduler(&mocks.MockAlarmTransport{}, NopNotifier{}, nil)
	err := scheduler.ScheduleQuestEnd(context.Background(), &model.Quest{Title: "Idle"})
	assert.ErrorIs(t, err, ErrQuestNotStarted)
}

func TestAlarmScheduler_OverdueDeliveryReschedules(t *testing.T) {
	transport := &mocks.MockAlarmTransport{}
	notifier := &mocks.MockNotifier{}
	scheduler := NewAlarmScheduler(transport, notifier, nil)

	end := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	questID := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	// Delivery lands late: 12 minutes past the session end, meaning the
	// 5 and 10 minute buckets already elapsed. The next shot snaps to the
	// 15-minute boundary rather than drifting to now+5.
	now := end.Add(12 * time.Minute)
	scheduler.now = func() time.Time { return now }

	payload := model.AlarmPayload{
		Kind:    model.AlarmQuestOverdue,
		QuestID: questID,
		Title:   "Deep work",
		Message: "Deep work is 5 minutes over its planned time",
		EndTime: &end,
	}

	notifier.On("Show", mock.Anything, "Deep work", payload.Message, ChannelAlarm).Return(nil)
	transport.On("Schedule", mock.Anything, end.Add(15*time.Minute), RequestID(questID, model.AlarmQuestOverdue),
		mock.MatchedBy(func(p model.AlarmPayload) bool {
			return p.Message == "Deep work is 15 minutes over its planned time"
		})).Return(nil)

	assert.NoError(t, scheduler.HandleDelivery(context.Background(), payload))
	transport.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestAlarmScheduler_PeriodicDeliveryRearms(t *testing.T) {
	transport := &mocks.MockAlarmTransport{}
	notifier := &mocks.MockNotifier{}
	scheduler := NewAlarmScheduler(transport, notifier, nil)

	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	scheduler.now = func() time.Time { return now }

	questID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	payload := model.AlarmPayload{
		Kind:    model.AlarmUnplannedBreakPeriodic,
		QuestID: questID,
		Title:   "Back to it",
		Message: "The break is over and a quest is waiting",
	}

	notifier.On("Show", mock.Anything, payload.Title, payload.Message, ChannelAlarm).Return(nil)
	transport.On("Schedule", mock.Anything, now.Add(5*time.Minute),
		RequestID(questID, model.AlarmUnplannedBreakPeriodic), payload).Return(nil)

	assert.NoError(t, scheduler.HandleDelivery(context.Background(), payload))
	transport.AssertExpectations(t)
}

func TestAlarmScheduler_TerminalDeliveryDoesNotRearm(t *testing.T) {
	transport := &mocks.MockAlarmTransport{}
	notifier := &mocks.MockNotifier{}
	scheduler := NewAlarmScheduler(transport, notifier, nil)

	payload := model.AlarmPayload{
		Kind:    model.AlarmQuestComplete,
		QuestID: uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Title:   "Quest complete",
		Message: "Deep work: planned time is up",
	}

	notifier.On("Show", mock.Anything, payload.Title, payload.Message, ChannelAlarm).Return(nil)

	assert.NoError(t, scheduler.HandleDelivery(context.Background(), payload))
	transport.AssertNotCalled(t, "Schedule")
	notifier.AssertExpectations(t)
}

func TestAlarmScheduler_NotifierFailureDoesNotBlockRearm(t *testing.T) {
	transport := &mocks.MockAlarmTransport{}
	notifier := &mocks.MockNotifier{}
	scheduler := NewAlarmScheduler(transport, notifier, nil)

	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	scheduler.now = func() time.Time { return now }

	questID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	payload := model.AlarmPayload{
		Kind:    model.AlarmOverduePeriodic,
		QuestID: questID,
		Title:   "Still overdue",
		Message: "Deep work is waiting",
	}

	notifier.On("Show", mock.Anything, payload.Title, payload.Message, ChannelAlarm).
		Return(assert.AnError)
	transport.On("Schedule", mock.Anything, now.Add(3*time.Minute),
		RequestID(questID, model.AlarmOverduePeriodic), payload).Return(nil)

	assert.NoError(t, scheduler.HandleDelivery(context.Background(), payload))
	transport.AssertExpectations(t)
}

func TestAlarmScheduler_CancelAllBestEffort(t *testing.T) {
	transport := &mocks.MockAlarmTransport{}
	scheduler := NewAlarmScheduler(transport, NopNotifier{}, nil)

	questID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	transport.On("Cancel", mock.Anything, mock.AnythingOfType("int")).
		Return(assert.AnError)

	// Errors are swallowed; every kind still gets its cancel attempt.
	scheduler.CancelAll(context.Background(), questID)
	transport.AssertNumberOfCalls(t, "Cancel", len(kindOffsets))
}
