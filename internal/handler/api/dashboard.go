package api

import (
	"context"
	"time"

	"SignalGate/internal/domain/models"
	"SignalGate/internal/services/strategy"
	xhttp "SignalGate/pkg/http"
	xlogger "SignalGate/pkg/logger"
	xutil "SignalGate/pkg/util"

	"github.com/labstack/echo/v4"
)

// RejectionReader is the in-memory side of the rejection ledger.
type RejectionReader interface {
	Recent(f models.RejectionFilter) []models.RejectionRecord
	Analytics() models.RejectionAnalytics
}

// RejectionHistory queries the durable rejection mirror.
type RejectionHistory interface {
	QueryRejections(ctx context.Context, f models.RejectionFilter) ([]models.RejectionRecord, error)
}

type RiskController interface {
	Status() models.RiskStatus
	Parameters() models.RiskParameters
	UpdateParameters(params models.RiskParameters) error
}

type WeightReader interface {
	Snapshot() *strategy.WeightSnapshot
}

type weightsView struct {
	Version uint64                  `json:"version"`
	Weights []models.StrategyWeight `json:"weights"`
}

// DashboardHandler serves the rejection ledger, the risk gate and the strategy weights.
type DashboardHandler struct {
	logger  *xlogger.Logger
	ledger  RejectionReader
	history RejectionHistory
	risk    RiskController
	weights WeightReader
	now     func() time.Time
}

func NewDashboardHandler(logger *xlogger.Logger, ledger RejectionReader, risk RiskController, weights WeightReader) *DashboardHandler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &DashboardHandler{
		logger:  logger.Component("dashboard_api"),
		ledger:  ledger,
		risk:    risk,
		weights: weights,
		now:     time.Now,
	}
}

// SetHistory enables ?history=true on /api/rejections.
func (h *DashboardHandler) SetHistory(r RejectionHistory) { h.history = r }

func (h *DashboardHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/analytics", h.Analytics)
	g.GET("/rejections", h.Rejections)
	g.GET("/risk", h.Risk)
	g.PUT("/risk/parameters", h.UpdateRiskParameters)
	g.GET("/weights", h.Weights)
}

func (h *DashboardHandler) Analytics(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=5")
	return xhttp.SuccessResponse(c, h.ledger.Analytics())
}

func (h *DashboardHandler) Rejections(c echo.Context) error {
	req := &models.RejectionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	f := models.RejectionFilter{
		Symbol:     req.Symbol,
		StrategyID: req.Strategy,
		Category:   models.RejectionCategory(req.Category),
		Limit:      req.Limit,
	}
	if req.Since != "" {
		since, ok := xutil.ParseSince(req.Since, h.now())
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("since", "since must be RFC3339, unix seconds or a duration"))
		}
		f.Since = since
	}

	if !req.History {
		rows := h.ledger.Recent(f)
		return xhttp.ListResponse(c, rows, int64(len(rows)))
	}
	if h.history == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableErrorf("rejection history is not configured"))
	}
	rows, err := h.history.QueryRejections(c.Request().Context(), f)
	if err != nil {
		h.logger.Error("rejection history query failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableErrorf("rejection history unavailable").WithError(err))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *DashboardHandler) Risk(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.risk.Status())
}

// UpdateRiskParameters replaces the limits wholesale; omitted fields keep their current value.
func (h *DashboardHandler) UpdateRiskParameters(c echo.Context) error {
	params := h.risk.Parameters()
	if err := c.Bind(&params); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("", "invalid body"))
	}
	if err := h.risk.UpdateParameters(params); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.UnprocessableErrorf("%v", err))
	}
	return xhttp.SuccessResponse(c, h.risk.Parameters())
}

func (h *DashboardHandler) Weights(c echo.Context) error {
	snap := h.weights.Snapshot()
	return xhttp.SuccessResponse(c, weightsView{Version: snap.Version, Weights: snap.All()})
}

var _ xhttp.Handler = (*DashboardHandler)(nil)
