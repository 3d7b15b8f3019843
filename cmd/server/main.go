package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticker-pulse/internal/cache"
	"ticker-pulse/internal/classify"
	"ticker-pulse/internal/config"
	"ticker-pulse/internal/db"
	"ticker-pulse/internal/domain"
	"ticker-pulse/internal/handler"
	"ticker-pulse/internal/job"
	"ticker-pulse/internal/provider"
	"ticker-pulse/internal/repository"
	"ticker-pulse/internal/service"
	"ticker-pulse/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "ticker-pulse/docs"
)

var (
	loadEnvFunc         = godotenv.Load
	loadConfigFunc      = config.Load
	initPostgresFunc    = db.InitPostgres
	initRedisFunc       = cache.InitRedis
	initTracerFunc      = tracing.InitTracer
	newHeadlineRepoFunc = repository.NewHeadlineRepository
	newPriceRepoFunc    = repository.NewPriceRepository
	newRSSProviderFunc  = func(tracer trace.Tracer, maxItems int) service.HeadlineSource {
		return provider.NewRSSProvider(tracer, maxItems)
	}
	newChartProviderFunc = func(tracer trace.Tracer, baseURL, interval, lookback string) service.PriceSource {
		return provider.NewChartProvider(tracer, baseURL, interval, lookback)
	}
	newViewServiceFunc     = service.NewViewService
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// newClassifier prefers the OpenAI classifier and falls back to the keyword
// lexicon when no API key is configured.
func newClassifier(cfg *config.Config) classify.Classifier {
	if c := classify.NewOpenAIClassifier(cfg.OpenAIAPIKey, cfg.OpenAIModel); c != nil {
		return c
	}
	return classify.NewKeywordClassifier()
}

// @title           Ticker Pulse API
// @version         1.0
// @description     Headline sentiment and intraday price ingestion with hourly aggregated views.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Create repositories and run migrations
	headlineRepo := newHeadlineRepoFunc(db.Pool, tracer)
	priceRepo := newPriceRepoFunc(db.Pool, tracer)
	if db.Pool != nil {
		if err := headlineRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run headline migrations: %v", err)
		}
		if err := priceRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run price migrations: %v", err)
		}
	}

	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour

	// Headline ingestion cycle
	rssProvider := newRSSProviderFunc(tracer, cfg.FeedMaxItems)
	bridge := classify.NewBridge(tracer, newClassifier(cfg), cfg.ClassifierBatchSize)
	headlinePipeline := service.NewHeadlinePipeline(tracer, rssProvider, headlineRepo, bridge, cfg.Tickers, retention)
	headlineRunner := job.NewCycleRunner[[]domain.Headline, []domain.ClassifiedHeadline](
		tracer, headlinePipeline, time.Duration(cfg.HeadlinePollSecs)*time.Second)

	// Price ingestion cycle
	chartProvider := newChartProviderFunc(tracer, cfg.PriceAPIBase, cfg.PriceInterval, cfg.PriceLookback)
	pricePipeline := service.NewPricePipeline(tracer, chartProvider, priceRepo, cfg.Tickers, retention)
	priceRunner := job.NewCycleRunner[[]domain.PriceBar, []domain.PriceBar](
		tracer, pricePipeline, time.Duration(cfg.PricePollSecs)*time.Second)

	// Background cycles, stopped by ctx cancel
	go headlineRunner.Start(ctx)
	go priceRunner.Start(ctx)

	// Create handlers and routes
	var redisClient service.RedisClient
	if cache.Client != nil {
		redisClient = cache.Client
	}
	viewService := newViewServiceFunc(tracer, headlineRepo, priceRepo, redisClient,
		retention, time.Duration(cfg.ViewCacheTTLSecs)*time.Second)
	h := newHandlerFunc(tracer, cfg, viewService)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("ticker-pulse"))

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
