package api

import (
	"errors"
	"net/http"
	"time"

	"questlock/internal/model"
	"questlock/internal/service"
	"questlock/pkg/auth"
	"questlock/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type questRoutes struct {
	qs *service.QuestService
	a  *auth.TelegramAuth
}

func NewQuestRoutes(handler *gin.RouterGroup, qs *service.QuestService, a *auth.TelegramAuth) {
	r := &questRoutes{qs: qs, a: a}
	h := handler.Group("/quests")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.GET("", r.ListQuests)
		h.POST("", r.CreateQuest)
		h.DELETE("/:quest_id", r.DeleteQuest)
		h.POST("/:quest_id/start", r.StartQuest)
		h.POST("/:quest_id/complete", r.CompleteQuest)
	}
}

type TimeRangeRequest struct {
	StartMinutes int `json:"start_minutes"`
	EndMinutes   int `json:"end_minutes"`
}

type QuestRequest struct {
	Title                      string           `json:"title" binding:"required"`
	RewardMin                  int              `json:"reward_min"`
	RewardMax                  int              `json:"reward_max"`
	SelectedDays               []int            `json:"selected_days"`
	TimeRange                  TimeRangeRequest `json:"time_range"`
	DeadlineMinutes            int              `json:"deadline_minutes"`
	QuestDurationMinutes       int              `json:"quest_duration_minutes"`
	BreakDurationMinutes       int              `json:"break_duration_minutes"`
	SanctionBanDays            int              `json:"sanction_ban_days"`
	SanctionBanUnlockerIDs     []string         `json:"sanction_ban_unlocker_ids"`
	SanctionLiquidationPercent int              `json:"sanction_liquidation_percent"`
	SanctionPhoneBlock         bool             `json:"sanction_phone_block"`
	SanctionPhoneAPI           string           `json:"sanction_phone_api"`
}

type QuestResponse struct {
	ID                   uuid.UUID  `json:"id"`
	Title                string     `json:"title"`
	RewardMin            int        `json:"reward_min"`
	RewardMax            int        `json:"reward_max"`
	SelectedDays         []int      `json:"selected_days"`
	DeadlineMinutes      int        `json:"deadline_minutes"`
	QuestDurationMinutes int        `json:"quest_duration_minutes"`
	BreakDurationMinutes int        `json:"break_duration_minutes"`
	QuestStartedAt       *time.Time `json:"quest_started_at,omitempty"`
	LastCompletedAt      *time.Time `json:"last_completed_at,omitempty"`
	LastCompletedOn      string     `json:"last_completed_on,omitempty"`
}

func questToResponse(q *model.Quest) QuestResponse {
	days := make([]int, len(q.SelectedDays))
	for i, d := range q.SelectedDays {
		days[i] = int(d)
	}
	return QuestResponse{
		ID:                   q.ID,
		Title:                q.Title,
		RewardMin:            q.RewardMin,
		RewardMax:            q.RewardMax,
		SelectedDays:         days,
		DeadlineMinutes:      q.DeadlineMinutes,
		QuestDurationMinutes: q.QuestDurationMinutes,
		BreakDurationMinutes: q.BreakDurationMinutes,
		QuestStartedAt:       q.QuestStartedAt,
		LastCompletedAt:      q.LastCompletedAt,
		LastCompletedOn:      q.LastCompletedOn,
	}
}

func (r *questRoutes) ListQuests(c *gin.Context) {
	log := logger.Logger()

	quests, err := r.qs.List(c.Request.Context())
	if err != nil {
		log.Error("failed to list quests", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list quests"})
		return
	}

	out := make([]QuestResponse, len(quests))
	for i, q := range quests {
		out[i] = questToResponse(q)
	}
	c.JSON(http.StatusOK, out)
}

func (r *questRoutes) CreateQuest(c *gin.Context) {
	log := logger.Logger()

	var req QuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind quest request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	days := make([]time.Weekday, len(req.SelectedDays))
	for i, d := range req.SelectedDays {
		days[i] = time.Weekday(d)
	}

	quest := &model.Quest{
		Title:        req.Title,
		RewardMin:    req.RewardMin,
		RewardMax:    req.RewardMax,
		SelectedDays: days,
		TimeRange: model.TimeRange{
			StartMinutes: req.TimeRange.StartMinutes,
			EndMinutes:   req.TimeRange.EndMinutes,
		},
		DeadlineMinutes:            req.DeadlineMinutes,
		QuestDurationMinutes:       req.QuestDurationMinutes,
		BreakDurationMinutes:       req.BreakDurationMinutes,
		SanctionBanDays:            req.SanctionBanDays,
		SanctionBanUnlockerIDs:     req.SanctionBanUnlockerIDs,
		SanctionLiquidationPercent: req.SanctionLiquidationPercent,
		SanctionPhoneBlock:         req.SanctionPhoneBlock,
		SanctionPhoneAPI:           req.SanctionPhoneAPI,
	}

	if err := r.qs.Create(c.Request.Context(), quest); err != nil {
		log.Error("failed to create quest", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, questToResponse(quest))
}

func (r *questRoutes) DeleteQuest(c *gin.Context) {
	log := logger.Logger()

	id, err := uuid.Parse(c.Param("quest_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest_id"})
		return
	}

	if err := r.qs.Delete(c.Request.Context(), id); err != nil {
		log.Error("failed to delete quest", zap.Error(err))
		if errors.Is(err, service.ErrQuestNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "quest not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete quest"})
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

func (r *questRoutes) StartQuest(c *gin.Context) {
	log := logger.Logger()

	id, err := uuid.Parse(c.Param("quest_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest_id"})
		return
	}

	if err := r.qs.Start(c.Request.Context(), id); err != nil {
		log.Error("failed to start quest", zap.Error(err))
		switch {
		case errors.Is(err, service.ErrQuestNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "quest not found"})
		case errors.Is(err, service.ErrQuestAlreadyStarted):
			c.JSON(http.StatusConflict, gin.H{"error": "another quest is already in progress"})
		case errors.Is(err, service.ErrQuestAlreadyDone):
			c.JSON(http.StatusConflict, gin.H{"error": "quest already completed today"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start quest"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

func (r *questRoutes) CompleteQuest(c *gin.Context) {
	log := logger.Logger()

	id, err := uuid.Parse(c.Param("quest_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest_id"})
		return
	}

	reward, err := r.qs.Complete(c.Request.Context(), id)
	if err != nil {
		log.Error("failed to complete quest", zap.Error(err))
		switch {
		case errors.Is(err, service.ErrQuestNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "quest not found"})
		case errors.Is(err, service.ErrQuestNotStarted):
			c.JSON(http.StatusConflict, gin.H{"error": "quest not started"})
		case errors.Is(err, service.ErrQuestAlreadyDone):
			c.JSON(http.StatusConflict, gin.H{"error": "quest already completed today"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to complete quest"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"reward": reward})
}
