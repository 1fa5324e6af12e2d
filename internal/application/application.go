package application

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/psds-microservice/helpdesk-service/internal/auth"
	"github.com/psds-microservice/helpdesk-service/internal/config"
	"github.com/psds-microservice/helpdesk-service/internal/database"
	"github.com/psds-microservice/helpdesk-service/internal/handler"
	"github.com/psds-microservice/helpdesk-service/internal/kafka"
	"github.com/psds-microservice/helpdesk-service/internal/ratelimit"
	"github.com/psds-microservice/helpdesk-service/internal/realtime"
	"github.com/psds-microservice/helpdesk-service/internal/router"
	"github.com/psds-microservice/helpdesk-service/internal/service"
	"github.com/psds-microservice/helpdesk-service/internal/tasks"
)

// API is the HTTP + websocket process (api mode).
type API struct {
	cfg      *config.Config
	log      *slog.Logger
	httpSrv  *http.Server
	hub      *realtime.Registry
	bg       *handler.Background
	producer *kafka.Producer
	rdb      *redis.Client
	sqlDB    *sql.DB
}

func NewAPI(cfg *config.Config, log *slog.Logger) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := database.MigrateUp(cfg.DatabaseURL(), log); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.DSN(), cfg.LogLevel == "debug")
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		rdb, err = openRedis(cfg.Redis.URL)
		if err != nil {
			log.Warn("redis unavailable, tasks are dropped and limits are per process", slog.Any("error", err))
			rdb = nil
		}
	} else {
		log.Info("REDIS_URL not set, tasks are dropped and limits are per process")
	}

	var dispatcher tasks.Dispatcher = tasks.NewDiscard(log)
	var limiter ratelimit.Limiter = ratelimit.NewMemory(cfg.TicketCreatePerMinute, time.Minute)
	if rdb != nil {
		dispatcher = tasks.NewRedisQueue(rdb, cfg.Redis.TaskStream)
		limiter = ratelimit.NewRedis(rdb, cfg.Redis.LimitPrefix+":tickets", cfg.TicketCreatePerMinute, time.Minute)
	}

	hub := realtime.New(log, realtime.Options{
		QueueSize:    cfg.WS.QueueSize,
		WriteTimeout: cfg.WS.WriteTimeout,
	})
	producer := kafka.NewProducer(kafka.ParseBrokers(cfg.Kafka.Brokers), cfg.Kafka.TopicTicket, log)
	bg := handler.NewBackground(5*time.Second, log)

	deps := handler.Deps{
		Users:          service.NewUserService(db),
		Tickets:        service.NewTicketService(db),
		Tokens:         auth.NewTokens(cfg.Auth.SecretKey, cfg.TokenTTL()),
		Hub:            hub,
		Tasks:          dispatcher,
		Events:         producer,
		Limiter:        limiter,
		Log:            log,
		AllowedOrigins: cfg.WS.AllowedOrigins,
	}
	ready := func(c *gin.Context) error {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	// no Read/WriteTimeout: websocket subscriptions are long-lived
	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.New(deps, bg, ready),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &API{
		cfg:      cfg,
		log:      log,
		httpSrv:  httpSrv,
		hub:      hub,
		bg:       bg,
		producer: producer,
		rdb:      rdb,
		sqlDB:    sqlDB,
	}, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *API) Run(ctx context.Context) error {
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	a.log.Info("HTTP server listening",
		slog.String("addr", a.httpSrv.Addr),
		slog.String("swagger", base+"/swagger"),
		slog.String("health", base+"/health"),
		slog.String("websocket", "ws://"+host+":"+a.cfg.HTTPPort+"/ws/tickets/{id}?token="),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			a.close()
			return fmt.Errorf("http: %w", err)
		}
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := a.httpSrv.Shutdown(shutdownCtx)
	a.close()
	if err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (a *API) close() {
	// hijacked websocket connections are not tracked by Shutdown
	a.hub.Close()
	a.bg.Wait()
	if err := a.producer.Close(); err != nil {
		a.log.Warn("kafka close", slog.Any("error", err))
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	_ = a.sqlDB.Close()
}
