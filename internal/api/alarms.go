package api

import (
	"net/http"

	"questlock/internal/model"
	"questlock/internal/service"
	"questlock/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type alarmRoutes struct {
	scheduler *service.AlarmScheduler
}

// NewAlarmRoutes wires the delivery callback the device agent posts to
// when an OS alarm fires. The agent lives on the loopback interface and
// carries no launcher credentials, so this group skips the telegram
// middleware.
func NewAlarmRoutes(handler *gin.RouterGroup, scheduler *service.AlarmScheduler) {
	r := &alarmRoutes{scheduler: scheduler}
	h := handler.Group("/bridge")

	h.POST("/alarms/deliver", r.DeliverAlarm)
}

func (r *alarmRoutes) DeliverAlarm(c *gin.Context) {
	log := logger.Logger()

	var payload model.AlarmPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Error("failed to bind alarm payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alarm payload"})
		return
	}

	if err := r.scheduler.HandleDelivery(c.Request.Context(), payload); err != nil {
		log.Error("failed to handle alarm delivery", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to handle alarm"})
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}
