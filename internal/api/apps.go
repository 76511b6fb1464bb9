package api

import (
	"net/http"
	"time"

	"questlock/internal/metrics"
	"questlock/internal/service"
	"questlock/pkg/auth"
	"questlock/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type appLockRoutes struct {
	ledger  *service.UnlockLedger
	metrics *metrics.Metrics
	a       *auth.TelegramAuth
}

func NewAppLockRoutes(handler *gin.RouterGroup, ledger *service.UnlockLedger, m *metrics.Metrics, a *auth.TelegramAuth) {
	r := &appLockRoutes{ledger: ledger, metrics: m, a: a}
	h := handler.Group("/apps")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.GET("/:package", r.GetLockStatus)
		h.POST("/:package/cooldown", r.GrantCooldown)
		h.DELETE("/:package/cooldown", r.RevokeCooldown)
	}
}

type LockStatusResponse struct {
	Package        string     `json:"package"`
	Blocked        bool       `json:"blocked"`
	CooldownEndsAt *time.Time `json:"cooldown_ends_at,omitempty"`
}

type CooldownRequest struct {
	Minutes int `json:"minutes" binding:"required,gt=0"`
}

func (r *appLockRoutes) GetLockStatus(c *gin.Context) {
	pkg := c.Param("package")

	blocked, endsAt := r.ledger.IsBlocked(pkg)
	c.JSON(http.StatusOK, LockStatusResponse{
		Package:        pkg,
		Blocked:        blocked,
		CooldownEndsAt: endsAt,
	})
}

func (r *appLockRoutes) GrantCooldown(c *gin.Context) {
	log := logger.Logger()
	pkg := c.Param("package")

	var req CooldownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Error("failed to bind cooldown request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	until := time.Now().Add(time.Duration(req.Minutes) * time.Minute)
	if err := r.ledger.GrantCooldown(c.Request.Context(), pkg, until); err != nil {
		log.Error("failed to grant cooldown", zap.String("package", pkg), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to grant cooldown"})
		return
	}

	if r.metrics != nil {
		r.metrics.CooldownsGranted.Inc()
	}

	c.JSON(http.StatusOK, LockStatusResponse{
		Package:        pkg,
		Blocked:        false,
		CooldownEndsAt: &until,
	})
}

func (r *appLockRoutes) RevokeCooldown(c *gin.Context) {
	log := logger.Logger()
	pkg := c.Param("package")

	if err := r.ledger.Revoke(c.Request.Context(), pkg); err != nil {
		log.Error("failed to revoke cooldown", zap.String("package", pkg), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke cooldown"})
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}
