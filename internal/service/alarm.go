package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"questlock/internal/metrics"
	"questlock/internal/model"
	"questlock/pkg/logger"

	"github.com/google/uuid"

	"go.uber.org/zap"
)

const (
	overdueBucket           = 5 * time.Minute
	overduePeriodicInterval = 3 * time.Minute
	unplannedBreakInterval  = 5 * time.Minute
)

// Distinct request codes per kind keep escalation families for the same
// quest from clobbering each other's pending alarm.
var kindOffsets = map[model.AlarmKind]int{
	model.AlarmQuestComplete:          0,
	model.AlarmBreakComplete:          1,
	model.AlarmQuestOverdue:           2,
	model.AlarmBreakOverdue:           3,
	model.AlarmOverduePeriodic:        4,
	model.AlarmUnplannedBreakPeriodic: 5,
}

// RequestID derives a stable callback id from the quest id and kind.
func RequestID(questID uuid.UUID, kind model.AlarmKind) int {
	h := fnv.New32a()
	h.Write(questID[:])
	return int(h.Sum32()%100_000_000)*10 + kindOffsets[kind]
}

// AlarmScheduler requests OS exact-time callbacks and handles their
// delivery. Deliveries arrive through the shell even while the engine was
// not the one polling, so HandleDelivery depends on nothing but the
// transport and the notifier.
type AlarmScheduler struct {
	transport AlarmTransport
	notifier  Notifier
	metrics   *metrics.Metrics
	now       func() time.Time
	log       *zap.Logger
}

func NewAlarmScheduler(transport AlarmTransport, notifier Notifier, m *metrics.Metrics) *AlarmScheduler {
	return &AlarmScheduler{
		transport: transport,
		notifier:  notifier,
		metrics:   m,
		now:       time.Now,
		log:       logger.Logger(),
	}
}

// Schedule requests an exact callback, degrading to inexact when the OS
// denies exact-alarm capability. Denial is never surfaced to the user.
func (s *AlarmScheduler) Schedule(ctx context.Context, fireAt time.Time, p model.AlarmPayload) error {
	id := RequestID(p.QuestID, p.Kind)

	err := s.transport.Schedule(ctx, fireAt, id, p)
	if errors.Is(err, ErrExactAlarmDenied) {
		s.log.Info("exact alarm denied, falling back to inexact",
			zap.String("kind", string(p.Kind)), zap.Int("request_id", id))
		err = s.transport.ScheduleInexact(ctx, fireAt, id, p)
	}
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.AlarmsScheduled.WithLabelValues(string(p.Kind)).Inc()
	}
	return nil
}

// Cancel is best-effort; a missing alarm for the id is not an error.
func (s *AlarmScheduler) Cancel(ctx context.Context, questID uuid.UUID, kind model.AlarmKind) {
	if err := s.transport.Cancel(ctx, RequestID(questID, kind)); err != nil {
		s.log.Debug("alarm cancel failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func (s *AlarmScheduler) CancelAll(ctx context.Context, questID uuid.UUID) {
	for kind := range kindOffsets {
		s.Cancel(ctx, questID, kind)
	}
}

// ScheduleQuestEnd arms the completion alarm at the session's planned
// end, the self-perpetuating overdue alarm one bucket later, and the
// fixed-interval periodic nag. Both escalation families keep firing until
// completion cancels them.
func (s *AlarmScheduler) ScheduleQuestEnd(ctx context.Context, q *model.Quest) error {
	if q.QuestStartedAt == nil {
		return ErrQuestNotStarted
	}
	end := q.QuestStartedAt.Add(time.Duration(q.QuestDurationMinutes) * time.Minute)

	err := s.Schedule(ctx, end, model.AlarmPayload{
		Kind:    model.AlarmQuestComplete,
		QuestID: q.ID,
		Title:   "Quest complete",
		Message: fmt.Sprintf("%s: planned time is up", q.Title),
	})
	if err != nil {
		return err
	}

	err = s.Schedule(ctx, end.Add(overdueBucket), model.AlarmPayload{
		Kind:    model.AlarmQuestOverdue,
		QuestID: q.ID,
		Title:   q.Title,
		Message: overdueMessage(model.AlarmQuestOverdue, q.Title, 5),
		EndTime: &end,
	})
	if err != nil {
		return err
	}

	return s.Schedule(ctx, end.Add(overduePeriodicInterval), model.AlarmPayload{
		Kind:    model.AlarmOverduePeriodic,
		QuestID: q.ID,
		Title:   "Still working?",
		Message: fmt.Sprintf("%s has passed its planned time", q.Title),
	})
}

// ScheduleBreakEnd mirrors ScheduleQuestEnd for the break that follows a
// completion.
func (s *AlarmScheduler) ScheduleBreakEnd(ctx context.Context, q *model.Quest) error {
	if q.LastCompletedAt == nil {
		return ErrQuestNotStarted
	}
	end := q.LastCompletedAt.Add(time.Duration(q.BreakDurationMinutes) * time.Minute)

	err := s.Schedule(ctx, end, model.AlarmPayload{
		Kind:    model.AlarmBreakComplete,
		QuestID: q.ID,
		Title:   "Break over",
		Message: "Time to get back to it",
	})
	if err != nil {
		return err
	}

	err = s.Schedule(ctx, end.Add(overdueBucket), model.AlarmPayload{
		Kind:    model.AlarmBreakOverdue,
		QuestID: q.ID,
		Title:   q.Title,
		Message: overdueMessage(model.AlarmBreakOverdue, q.Title, 5),
		EndTime: &end,
	})
	if err != nil {
		return err
	}

	return s.Schedule(ctx, end.Add(unplannedBreakInterval), model.AlarmPayload{
		Kind:    model.AlarmUnplannedBreakPeriodic,
		QuestID: q.ID,
		Title:   "Break ran out",
		Message: fmt.Sprintf("The break after %s is over", q.Title),
	})
}

// HandleDelivery shows the notification and re-arms self-perpetuating
// kinds. Overdue alarms snap to the next 5-minute boundary relative to
// EndTime; the periodic family re-arms at fixed intervals. Either keeps
// firing until an external action cancels it.
func (s *AlarmScheduler) HandleDelivery(ctx context.Context, p model.AlarmPayload) error {
	if err := s.notifier.Show(ctx, p.Title, p.Message, ChannelAlarm); err != nil {
		s.log.Warn("failed to show alarm notification", zap.Error(err))
	}

	switch p.Kind {
	case model.AlarmQuestOverdue, model.AlarmBreakOverdue:
		if p.EndTime == nil {
			return nil
		}
		buckets := int(s.now().Sub(*p.EndTime) / overdueBucket)
		if buckets < 0 {
			buckets = 0
		}
		next := p.EndTime.Add(time.Duration(buckets+1) * overdueBucket)

		rearmed := p
		rearmed.Message = overdueMessage(p.Kind, p.Title, (buckets+1)*5)
		return s.Schedule(ctx, next, rearmed)

	case model.AlarmOverduePeriodic:
		return s.Schedule(ctx, s.now().Add(overduePeriodicInterval), p)

	case model.AlarmUnplannedBreakPeriodic:
		return s.Schedule(ctx, s.now().Add(unplannedBreakInterval), p)
	}

	return nil
}

func overdueMessage(kind model.AlarmKind, title string, minutes int) string {
	if kind == model.AlarmBreakOverdue {
		return fmt.Sprintf("Break after %s ran over by %d minutes", title, minutes)
	}
	return fmt.Sprintf("%s is %d minutes over its planned time", title, minutes)
}
