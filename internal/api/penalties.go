package api

import (
	"net/http"
	"time"

	"questlock/internal/service"
	"questlock/pkg/auth"
	"questlock/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type penaltyRoutes struct {
	penalties service.PenaltyLogStore
	unlockers service.UnlockerStore
	a         *auth.TelegramAuth
}

func NewPenaltyRoutes(handler *gin.RouterGroup, penalties service.PenaltyLogStore, unlockers service.UnlockerStore, a *auth.TelegramAuth) {
	r := &penaltyRoutes{penalties: penalties, unlockers: unlockers, a: a}
	h := handler.Group("/penalties")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.GET("", r.ListPenalties)
		h.GET("/unlockers", r.ListBlockedUnlockers)
	}
}

type PenaltyLogResponse struct {
	ID            uuid.UUID  `json:"id"`
	OccurredAt    time.Time  `json:"occurred_at"`
	Amount        int        `json:"amount"`
	BalanceBefore int        `json:"balance_before"`
	Source        string     `json:"source"`
	QuestID       *uuid.UUID `json:"quest_id,omitempty"`
}

type BlockedUnlockerResponse struct {
	UnlockerID   string    `json:"unlocker_id"`
	BlockedUntil time.Time `json:"blocked_until"`
	Sources      []string  `json:"sources"`
}

func (r *penaltyRoutes) ListPenalties(c *gin.Context) {
	log := logger.Logger()

	entries, err := r.penalties.ListPenaltyLogs(c.Request.Context(), 100)
	if err != nil {
		log.Error("failed to list penalties", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list penalties"})
		return
	}

	out := make([]PenaltyLogResponse, len(entries))
	for i, e := range entries {
		out[i] = PenaltyLogResponse{
			ID:            e.ID,
			OccurredAt:    e.OccurredAt,
			Amount:        e.Amount,
			BalanceBefore: e.BalanceBefore,
			Source:        e.Source,
			QuestID:       e.QuestID,
		}
	}
	c.JSON(http.StatusOK, out)
}

func (r *penaltyRoutes) ListBlockedUnlockers(c *gin.Context) {
	log := logger.Logger()

	bans, err := r.unlockers.ListBlockedUnlockers(c.Request.Context(), time.Now())
	if err != nil {
		log.Error("failed to list blocked unlockers", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list blocked unlockers"})
		return
	}

	out := make([]BlockedUnlockerResponse, len(bans))
	for i, b := range bans {
		out[i] = BlockedUnlockerResponse{
			UnlockerID:   b.UnlockerID,
			BlockedUntil: b.BlockedUntil,
			Sources:      b.Sources,
		}
	}
	c.JSON(http.StatusOK, out)
}
