package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"questlock/internal/model"
	"questlock/internal/repository"
	"questlock/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QuestService is the quest-completion write path. Start and Complete
// keep the alarm scheduler in step with the quest records the timer and
// the sanctions enforcer read.
type QuestService struct {
	repo   QuestStore
	alarms *AlarmScheduler
	now    func() time.Time
	log    *zap.Logger
}

func NewQuestService(repo QuestStore, alarms *AlarmScheduler) *QuestService {
	return &QuestService{
		repo:   repo,
		alarms: alarms,
		now:    time.Now,
		log:    logger.Logger(),
	}
}

func (s *QuestService) List(ctx context.Context) ([]*model.Quest, error) {
	quests, err := s.repo.GetAllQuests(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list quests: %w", err)
	}
	return quests, nil
}

func (s *QuestService) Get(ctx context.Context, id uuid.UUID) (*model.Quest, error) {
	quest, err := s.repo.GetQuestByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrQuestNotFound) {
			return nil, ErrQuestNotFound
		}
		return nil, err
	}
	return quest, nil
}

func (s *QuestService) Create(ctx context.Context, quest *model.Quest) error {
	if quest.Title == "" {
		return fmt.Errorf("quest title is required")
	}
	if quest.RewardMax < quest.RewardMin {
		return fmt.Errorf("reward_max must not be below reward_min")
	}
	if quest.DeadlineMinutes < -1 || quest.DeadlineMinutes >= 24*60 {
		return fmt.Errorf("deadline_minutes out of range")
	}
	if quest.ID == uuid.Nil {
		quest.ID = uuid.New()
	}
	if quest.CreatedAt.IsZero() {
		quest.CreatedAt = s.now()
	}

	if err := s.repo.CreateQuest(ctx, quest); err != nil {
		return fmt.Errorf("failed to create quest: %w", err)
	}
	return nil
}

func (s *QuestService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteQuest(ctx, id); err != nil {
		if errors.Is(err, repository.ErrQuestNotFound) {
			return ErrQuestNotFound
		}
		return err
	}
	s.alarms.CancelAll(ctx, id)
	return nil
}

// Start begins a timed session. At most one quest may be active at a
// time; a second start is rejected rather than silently queued.
func (s *QuestService) Start(ctx context.Context, id uuid.UUID) error {
	quests, err := s.repo.GetAllQuests(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	day := localDate(now)

	var target *model.Quest
	for _, q := range quests {
		if q.QuestStartedAt != nil && !q.CompletedOn(day) {
			return ErrQuestAlreadyStarted
		}
		if q.ID == id {
			target = q
		}
	}
	if target == nil {
		return ErrQuestNotFound
	}
	if target.CompletedOn(day) {
		return ErrQuestAlreadyDone
	}

	if err := s.repo.StartQuest(ctx, id, now); err != nil {
		return err
	}

	if target.QuestDurationMinutes > 0 {
		target.QuestStartedAt = &now
		if err := s.alarms.ScheduleQuestEnd(ctx, target); err != nil {
			s.log.Warn("failed to schedule session alarms",
				zap.String("quest", target.Title), zap.Error(err))
		}
	}
	return nil
}

// Complete records completion, credits a reward rolled between the
// quest's bounds, cancels the session's alarms, and arms the break.
func (s *QuestService) Complete(ctx context.Context, id uuid.UUID) (int, error) {
	quest, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if quest.QuestStartedAt == nil {
		return 0, ErrQuestNotStarted
	}

	now := s.now()
	day := localDate(now)
	if quest.CompletedOn(day) {
		return 0, ErrQuestAlreadyDone
	}

	reward := rollReward(quest.RewardMin, quest.RewardMax)
	if err := s.repo.CompleteQuest(ctx, id, now, day, reward); err != nil {
		return 0, err
	}

	s.alarms.CancelAll(ctx, id)

	if quest.BreakDurationMinutes > 0 {
		quest.LastCompletedAt = &now
		if err := s.alarms.ScheduleBreakEnd(ctx, quest); err != nil {
			s.log.Warn("failed to schedule break alarms",
				zap.String("quest", quest.Title), zap.Error(err))
		}
	}
	return reward, nil
}

func rollReward(min, max int) int {
	if max <= min {
		return min
	}
	return min + rand.Intn(max-min+1)
}
