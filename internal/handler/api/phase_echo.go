package api

import (
	"context"
	"errors"
	"net/http"

	"TFTracker/internal/domain/models"
	domrepo "TFTracker/internal/domain/repository"
	"TFTracker/internal/usecase"
	xhttp "TFTracker/pkg/http"
	xlogger "TFTracker/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PhaseReader is the read side used by the handler.
type PhaseReader interface {
	List(ctx context.Context) ([]models.PhaseView, error)
	Get(ctx context.Context, ticker string) (models.PhaseView, error)
	History(ctx context.Context, p usecase.HistoryParams) ([]models.PhaseHistoryView, error)
	Views(ctx context.Context, states []models.PhaseState) ([]models.PhaseView, error)
}

// PhaseRefresher re-evaluates assets on demand.
type PhaseRefresher interface {
	UpdateAssetsByTickers(ctx context.Context, tickers []string) ([]models.PhaseState, error)
	UpdateAll(ctx context.Context) ([]models.PhaseState, error)
}

// HealthCheck is one named dependency check for /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type PhaseEchoHandler struct {
	logger    *xlogger.Logger
	reader    PhaseReader
	refresher PhaseRefresher
	aliases   map[string]string
	checks    []HealthCheck
}

func NewPhaseEchoHandler(logger *xlogger.Logger, reader PhaseReader, refresher PhaseRefresher, aliases map[string]string, checks ...HealthCheck) *PhaseEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &PhaseEchoHandler{logger: logger, reader: reader, refresher: refresher, aliases: aliases, checks: checks}
}

func (h *PhaseEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/phase", h.List)
	g.POST("/phase/refresh", h.Refresh)
	g.GET("/phase/:ticker", h.Get)
	g.GET("/phase/:ticker/history", h.History)
}

func (h *PhaseEchoHandler) List(c echo.Context) error {
	res, err := h.reader.List(c.Request().Context())
	if err != nil {
		h.logger.Error("phase list error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("Failed to list phases").WithError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *PhaseEchoHandler) Get(c echo.Context) error {
	req := &models.PhaseTickerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.reader.Get(c.Request().Context(), req.Ticker)
	if err != nil {
		return h.fail(c, "phase get", req.Ticker, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *PhaseEchoHandler) History(c echo.Context) error {
	req := &models.PhaseHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.reader.History(c.Request().Context(), usecase.HistoryParams{
		Ticker:       req.Ticker,
		Limit:        req.Limit,
		SinceMinutes: req.SinceMinutes,
	})
	if err != nil {
		return h.fail(c, "phase history", req.Ticker, err)
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *PhaseEchoHandler) Refresh(c echo.Context) error {
	req := &models.PhaseRefreshRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	var (
		states []models.PhaseState
		err    error
	)
	if len(req.Tickers) == 0 {
		states, err = h.refresher.UpdateAll(ctx)
	} else {
		tickers := make([]string, len(req.Tickers))
		for i, t := range req.Tickers {
			tickers[i], _ = models.ResolveTicker(t, h.aliases)
		}
		states, err = h.refresher.UpdateAssetsByTickers(ctx, tickers)
	}
	if err != nil {
		return h.fail(c, "phase refresh", "", err)
	}

	views, err := h.reader.Views(ctx, states)
	if err != nil {
		return h.fail(c, "phase refresh views", "", err)
	}
	return xhttp.ListResponse(c, views, int64(len(views)))
}

func (h *PhaseEchoHandler) Health(c echo.Context) error {
	status := map[string]string{}
	healthy := true
	for _, chk := range h.checks {
		if err := chk.Check(c.Request().Context()); err != nil {
			healthy = false
			status[chk.Name] = err.Error()
			continue
		}
		status[chk.Name] = "ok"
	}
	if !healthy {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, status)
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *PhaseEchoHandler) fail(c echo.Context, op, ticker string, err error) error {
	shown := models.NormalizeTicker(ticker)
	switch {
	case errors.Is(err, usecase.ErrAssetNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("Asset with ticker %s not found", shown))
	case errors.Is(err, usecase.ErrPhaseNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("Phase state not available for %s", shown))
	case errors.Is(err, domrepo.ErrLockTimeout):
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError("ERR_BUSY", "", "Asset update in progress, retry later", http.StatusServiceUnavailable))
	case errors.Is(err, context.Canceled):
		return xhttp.AppErrorResponse(c,
			xhttp.NewAppError("ERR_CANCELED", "", "Request canceled", 499))
	}
	h.logger.Error(op+" error", xlogger.String("ticker", shown), xlogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.InternalError("Something went wrong").WithError(err))
}
