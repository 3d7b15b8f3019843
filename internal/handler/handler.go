package handler

import (
	"ticker-pulse/internal/config"
	"ticker-pulse/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	tracer      trace.Tracer
	cfg         *config.Config
	viewService *service.ViewService
}

func New(tracer trace.Tracer, cfg *config.Config, viewService *service.ViewService) *Handler {
	return &Handler{
		tracer:      tracer,
		cfg:         cfg,
		viewService: viewService,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api", APIKeyAuth(h.cfg.APIKey))
	api.GET("/tickers", h.GetTickers)
	api.GET("/view/:ticker", h.GetAggregatedView)
	api.GET("/headlines/:ticker", h.GetHeadlines)
	api.GET("/prices/:ticker", h.GetPrices)
}
