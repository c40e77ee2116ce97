package api

import (
	"context"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/hsedesk/internal/middleware"
	"github.com/lalith-99/hsedesk/internal/realtime"
	"go.uber.org/zap"
)

type Subscriber interface {
	Subscribe(ctx context.Context, tenantID uuid.UUID, table string) (<-chan realtime.Event, error)
}

type RealtimeHandler struct {
	hub      Subscriber
	upgrader websocket.Upgrader
}

// NewRealtimeHandler accepts upgrades from the given origins. An empty list
// or "*" allows any origin.
func NewRealtimeHandler(hub Subscriber, allowedOrigins []string) *RealtimeHandler {
	return &RealtimeHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
					return true
				}
				return slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// Subscribe handles GET /v1/realtime?table=messages. The subscription is
// taken before the upgrade so an unknown table is still a plain 400.
func (h *RealtimeHandler) Subscribe(c *gin.Context) {
	scope := middleware.GetScope(c)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, err := h.hub.Subscribe(ctx, scope.TenantID(), c.Query("table"))
	if err != nil {
		respondError(c, err, "subscribe")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		middleware.LoggerFrom(c).Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if err := realtime.Stream(ctx, conn, events); err != nil {
		middleware.LoggerFrom(c).Debug("realtime stream ended", zap.Error(err))
	}
}
