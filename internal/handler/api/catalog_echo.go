package api

import (
	"context"
	"errors"

	"TFTracker/internal/domain/models"
	"TFTracker/internal/usecase"
	xhttp "TFTracker/pkg/http"
	xlogger "TFTracker/pkg/logger"

	"github.com/labstack/echo/v4"
)

// maxLatestTickers bounds the tickers filter of the latest snapshot endpoints.
const maxLatestTickers = 100

// SnapshotReader serves the newest snapshot per asset.
type SnapshotReader interface {
	LatestMarket(ctx context.Context, tickers []string) ([]models.MarketSnapshotView, error)
	LatestIndicators(ctx context.Context, tickers []string) ([]models.IndicatorSnapshotView, error)
}

// AssetCatalog lists and registers tracked assets.
type AssetCatalog interface {
	List(ctx context.Context) ([]models.Asset, error)
	Create(ctx context.Context, p usecase.NewAssetParams) (models.Asset, error)
}

type CatalogEchoHandler struct {
	logger    *xlogger.Logger
	snapshots SnapshotReader
	assets    AssetCatalog
}

func NewCatalogEchoHandler(logger *xlogger.Logger, snapshots SnapshotReader, assets AssetCatalog) *CatalogEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &CatalogEchoHandler{logger: logger, snapshots: snapshots, assets: assets}
}

func (h *CatalogEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/assets", h.ListAssets)
	g.POST("/assets", h.CreateAsset)
	g.GET("/snapshots/latest", h.LatestSnapshots)
	g.GET("/indicators/latest", h.LatestIndicators)
}

func (h *CatalogEchoHandler) ListAssets(c echo.Context) error {
	res, err := h.assets.List(c.Request().Context())
	if err != nil {
		h.logger.Error("asset list error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("Failed to list assets").WithError(err))
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *CatalogEchoHandler) CreateAsset(c echo.Context) error {
	req := &models.AssetCreateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	a, err := h.assets.Create(c.Request().Context(), usecase.NewAssetParams{
		Ticker:   req.Ticker,
		Name:     req.Name,
		Type:     req.Type,
		Exchange: req.Exchange,
	})
	if err != nil {
		if errors.Is(err, usecase.ErrAssetExists) {
			return xhttp.AppErrorResponse(c,
				xhttp.ConflictErrorf("Asset %s already exists", models.NormalizeTicker(req.Ticker)).WithParam("ticker", models.NormalizeTicker(req.Ticker)))
		}
		h.logger.Error("asset create error", xlogger.String("ticker", req.Ticker), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("Failed to create asset %s", models.NormalizeTicker(req.Ticker)).WithError(err))
	}
	return xhttp.CreatedResponse(c, a)
}

func (h *CatalogEchoHandler) LatestSnapshots(c echo.Context) error {
	return latest(c, h, "market snapshots", h.snapshots.LatestMarket)
}

func (h *CatalogEchoHandler) LatestIndicators(c echo.Context) error {
	return latest(c, h, "indicator snapshots", h.snapshots.LatestIndicators)
}

func latest[T any](c echo.Context, h *CatalogEchoHandler, kind string, load func(context.Context, []string) ([]T, error)) error {
	req := &models.LatestSnapshotsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tickers := usecase.SplitTickers(req.Tickers)
	if len(tickers) > maxLatestTickers {
		return xhttp.AppErrorResponse(c,
			xhttp.BadRequestErrorf("At most %d tickers per request", maxLatestTickers).WithParams(map[string]interface{}{
				"max":   maxLatestTickers,
				"count": len(tickers),
			}))
	}

	res, err := load(c.Request().Context(), tickers)
	if err != nil {
		h.logger.Error("latest "+kind+" error", xlogger.Strings("tickers", tickers), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("Failed to load latest %s", kind).WithError(err))
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}
