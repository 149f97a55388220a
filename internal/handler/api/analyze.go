package api

import (
	"context"
	"errors"
	"net/http"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
	"SignalGate/internal/usecase"
	xhttp "SignalGate/pkg/http"
	xlogger "SignalGate/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type SymbolAnalyst interface {
	Analyze(ctx context.Context, symbol string, tf domrepo.Timeframe, n int) (usecase.AnalysisReport, error)
}

type OutcomeApplier interface {
	Apply(ctx context.Context, o models.TradeOutcome) error
}

// AnalyzeHandler exposes the one-shot analysis and a manual outcome intake.
type AnalyzeHandler struct {
	logger   *xlogger.Logger
	analyst  SymbolAnalyst
	outcomes OutcomeApplier
	validate *validator.Validate
}

func NewAnalyzeHandler(logger *xlogger.Logger, analyst SymbolAnalyst, outcomes OutcomeApplier) *AnalyzeHandler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &AnalyzeHandler{
		logger:   logger.Component("analyze_api"),
		analyst:  analyst,
		outcomes: outcomes,
		validate: validator.New(),
	}
}

func (h *AnalyzeHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/analyze", h.Analyze)
	if h.outcomes != nil {
		g.POST("/outcomes", h.Outcome)
	}
}

func (h *AnalyzeHandler) Analyze(c echo.Context) error {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	res, err := h.analyst.Analyze(c.Request().Context(), req.Symbol, tf, req.N)
	if err != nil {
		if errors.Is(err, models.ErrDataUnavailable) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no %s data for %s", tf, req.Symbol).WithError(err))
		}
		h.logger.Error("analyze usecase error", xlogger.Symbol(req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

// Outcome books a closed trade reported over HTTP instead of Kafka.
func (h *AnalyzeHandler) Outcome(c echo.Context) error {
	var o models.TradeOutcome
	if err := c.Bind(&o); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("", "invalid body"))
	}
	if err := h.validate.StructCtx(c.Request().Context(), o); err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("symbol", "symbol is required"))
	}
	if len(o.StrategyIDs()) == 0 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("strategies", "at least one strategy is required"))
	}
	if err := h.outcomes.Apply(c.Request().Context(), o); err != nil {
		h.logger.Error("apply outcome failed", xlogger.Symbol(o.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.DataResponse(c, http.StatusAccepted, o)
}

var _ xhttp.Handler = (*AnalyzeHandler)(nil)
