package api

import (
	"errors"

	"github.com/labstack/echo/v4"

	"TradePulse/internal/engine"
	xhttp "TradePulse/pkg/http"
	xlogger "TradePulse/pkg/logger"
)

// EngineEchoHandler exposes the read-only control plane over Echo.
type EngineEchoHandler struct {
	logger *xlogger.Logger
	engine *engine.Engine
}

func NewEngineEchoHandler(logger *xlogger.Logger, eng *engine.Engine) *EngineEchoHandler {
	return &EngineEchoHandler{logger: logger, engine: eng}
}

func (h *EngineEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/status", h.Status)
	g.GET("/positions", h.Positions)
	g.GET("/indicators/:symbol", h.Indicators)
}

// Status reports engine-wide state. Symbols busy in a trading cycle are
// marked busy with no live fields, so this never blocks on one.
func (h *EngineEchoHandler) Status(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.StatusReport())
}

// Positions reports only the non-idle machines.
func (h *EngineEchoHandler) Positions(c echo.Context) error {
	st := h.engine.StatusReport()
	views := st.Positions
	if views == nil {
		views = []engine.PositionView{}
	}
	return xhttp.SuccessResponse(c, views)
}

// Indicators returns the latest indicator snapshot for one symbol. A
// contended store maps to 503 so callers back off instead of queueing.
func (h *EngineEchoHandler) Indicators(c echo.Context) error {
	symbol := c.Param("symbol")
	if symbol == "" {
		return xhttp.BadRequestResponse(c, "symbol required")
	}

	si, err := h.engine.Indicators(symbol)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrBusy):
			return xhttp.AppErrorResponse(c, xhttp.BusyError("indicator store busy, retry later"))
		case errors.Is(err, engine.ErrNotTracked):
			return xhttp.AppErrorResponse(c, xhttp.NotFoundError("symbol not tracked"))
		default:
			h.logger.Error("indicators lookup", xlogger.String("symbol", symbol), xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
	}
	return xhttp.SuccessResponse(c, si)
}
