package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskplanner/api/transport"
	"github.com/fastygo/taskplanner/internal/infrastructure/monitor"
	"github.com/fastygo/taskplanner/pkg/httpcontext"
)

// StatusReporter exposes the latest dependency probe results.
type StatusReporter interface {
	GetStatus() monitor.Status
}

type HealthHandler struct {
	baseHandler
	monitor StatusReporter
}

func NewHealthHandler(mon StatusReporter, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	payload := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"services":  status.Components,
		"outbox": map[string]interface{}{
			"size": status.OutboxSize,
		},
		"last_check": status.LastCheck,
	}

	if status.Online {
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	env := transport.NewError("DEGRADED", "dependencies unhealthy", nil)
	env.Data = payload
	h.respondJSON(ctx, http.StatusServiceUnavailable, env)
}
