package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/weiawesome/live-canvas/internal/config"
	"github.com/weiawesome/live-canvas/internal/domain"
	"github.com/weiawesome/live-canvas/internal/hub"
	"github.com/weiawesome/live-canvas/internal/registry"
	"github.com/weiawesome/live-canvas/internal/service"
	"github.com/weiawesome/live-canvas/pkg/log"
	"github.com/weiawesome/live-canvas/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	service  service.RelayService
	registry registry.Registry // nil without a bus
	wsCfg    config.WebSocketConfig
}

func NewWSHandler(svc service.RelayService, reg registry.Registry, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		service:  svc,
		registry: reg,
		wsCfg:    wsCfg,
	}
}

// RegisterRoutes registers all routes.
func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.HandleWebSocket)
	r.GET("/canvas/ws", h.HandleWebSocket)
	r.GET("/health", h.Health)
	r.GET("/peers", h.Peers)
}

// HandleWebSocket upgrades the request and starts the session pumps.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), conn, h.wsCfg)
	c.Set(log.FieldSessionID, client.ID())

	// The session outlives the HTTP request; keep its logger, drop its cancellation.
	ctx := log.WithSession(context.WithoutCancel(c.Request.Context()), client.ID())

	if err := h.service.OnSessionOpen(ctx, client); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Msg("failed to open session")
		conn.Close()
		return
	}

	limiter := h.newLimiter()

	go client.WritePump()
	go client.ReadPump(
		func(cl *hub.Client, message []byte) {
			h.handleMessage(ctx, cl, limiter, message)
		},
		func(cl *hub.Client) {
			h.service.OnSessionClose(ctx, cl)
		},
	)
}

// newLimiter returns nil when inbound events are not rate limited.
func (h *WSHandler) newLimiter() *rate.Limiter {
	if h.wsCfg.EventsPerSecond <= 0 {
		return nil
	}
	burst := h.wsCfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(h.wsCfg.EventsPerSecond), burst)
}

func (h *WSHandler) handleMessage(ctx context.Context, client *hub.Client, limiter *rate.Limiter, message []byte) {
	l := log.Ctx(ctx)

	frame, err := domain.DecodeFrame(message)
	if err != nil {
		l.Debug().Err(err).Msg("dropping malformed event")
		return
	}

	switch frame.Type {
	case domain.MsgTypeDraw:
		if limiter != nil && !limiter.Allow() {
			l.Debug().Str(log.FieldEventType, frame.Type).Msg("rate limited, dropping event")
			return
		}
		if err := h.service.OnSegment(ctx, client, frame.Segment); err != nil {
			l.Warn().Err(err).Msg("segment relay failed")
		}

	case domain.MsgTypeClear:
		if limiter != nil && !limiter.Allow() {
			l.Debug().Str(log.FieldEventType, frame.Type).Msg("rate limited, dropping event")
			return
		}
		if err := h.service.OnClear(ctx, client); err != nil {
			l.Warn().Err(err).Msg("clear relay failed")
		}

	case domain.MsgTypePing:
		if err := client.Send(domain.EncodeType(domain.MsgTypePong)); err != nil {
			l.Debug().Err(err).Msg("pong not sent")
		}

	default:
		l.Debug().Str(log.FieldEventType, frame.Type).Msg("dropping event not accepted from clients")
	}
}

// Health reports liveness and the local session count.
func (h *WSHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": h.service.SessionCount(),
		"instance": h.service.InstanceID(),
	})
}

// Peers lists the relay instances sharing the bus.
func (h *WSHandler) Peers(c *gin.Context) {
	if h.registry == nil {
		response.ServiceUnavailable(c, "instance registry is not enabled")
		return
	}

	peers, err := h.registry.Peers(c.Request.Context())
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg("failed to list peers")
		response.InternalError(c, "failed to list peers")
		return
	}
	response.Success(c, peers)
}
