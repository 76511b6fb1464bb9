package api

import (
	"net/http"
	"sync"
	"time"

	"questlock/internal/model"
	"questlock/internal/service"
	"questlock/pkg/auth"
	"questlock/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type timerRoutes struct {
	timer *service.SessionTimer
	hub   *TimerHub
	a     *auth.TelegramAuth
}

func NewTimerRoutes(handler *gin.RouterGroup, timer *service.SessionTimer, hub *TimerHub, a *auth.TelegramAuth) {
	r := &timerRoutes{timer: timer, hub: hub, a: a}
	h := handler.Group("/timer")
	h.Use(a.TelegramAuthMiddleware())
	{
		h.GET("", r.GetTimerState)
		h.GET("/ws", r.handleWebSocket)
	}
}

type TimerStateResponse struct {
	Mode             string `json:"mode"`
	QuestID          string `json:"quest_id,omitempty"`
	QuestTitle       string `json:"quest_title,omitempty"`
	RemainingSeconds int    `json:"remaining_seconds"`
	ElapsedSeconds   int    `json:"elapsed_seconds"`
	ComputedAt       int64  `json:"computed_at_ms"`
}

func timerStateToResponse(state model.TimerState) TimerStateResponse {
	out := TimerStateResponse{
		Mode:             string(state.Mode),
		QuestTitle:       state.QuestTitle,
		RemainingSeconds: int(state.Remaining.Seconds()),
		ElapsedSeconds:   int(state.Elapsed.Seconds()),
		ComputedAt:       state.ComputedAt.UnixMilli(),
	}
	if state.Mode != model.TimerInactive {
		out.QuestID = state.QuestID.String()
	}
	return out
}

func (r *timerRoutes) GetTimerState(c *gin.Context) {
	c.JSON(http.StatusOK, timerStateToResponse(r.timer.Current()))
}

func (r *timerRoutes) handleWebSocket(c *gin.Context) {
	log := logger.Logger()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	r.hub.Add(conn)
}

// TimerHub fans the latest timer state out to connected observers. A
// write failure drops the connection; observers reconnect on their own.
type TimerHub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewTimerHub() *TimerHub {
	return &TimerHub{conns: make(map[*websocket.Conn]struct{})}
}

func (h *TimerHub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

func (h *TimerHub) Publish(state model.TimerState) {
	payload, err := json.Marshal(timerStateToResponse(state))
	if err != nil {
		logger.Logger().Error("failed to marshal timer state", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(h.conns, conn)
		}
	}
}
