package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/helpflowai/helpflow/internal/chat"
	"github.com/helpflowai/helpflow/internal/config"
	"github.com/helpflowai/helpflow/internal/conversation"
	"github.com/helpflowai/helpflow/internal/db"
	"github.com/helpflowai/helpflow/internal/deadletter"
	"github.com/helpflowai/helpflow/internal/dedupe"
	"github.com/helpflowai/helpflow/internal/handlers"
	"github.com/helpflowai/helpflow/internal/healthcheck"
	"github.com/helpflowai/helpflow/internal/ingest"
	"github.com/helpflowai/helpflow/internal/logger"
	"github.com/helpflowai/helpflow/internal/message"
	"github.com/helpflowai/helpflow/internal/notify"
	"github.com/helpflowai/helpflow/internal/processor"
	"github.com/helpflowai/helpflow/internal/queue"
	"github.com/helpflowai/helpflow/internal/server"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideConn,
			provideGate,
			provideQueue,
			queue.NewMetrics,
			notify.NewHub,
			conversation.NewService,
			message.NewService,
			provideChat,
			provideDeadLetters,
			provideIngest,
			providePipeline,
			provideWorkers,
			provideChecks,
			provideServerHandler(providePingHandler),
			provideServerHandler(provideWebhookHandler),
			provideServerHandler(provideHealthHandler),
			provideServerHandler(provideQueueAdminHandler),
			provideServerHandler(provideDeadLetterHandler),
			provideServerHandler(provideWSHandler),
			provideServer,
		),
		fx.Invoke(
			startWorkers,
			startCleaner,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Registrar)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	return logger.New(cfg.Log)
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := db.Connect(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { pool.Close(); return nil }})
	return pool, nil
}

func provideConn(pool *pgxpool.Pool) db.Conn {
	return pool
}

func provideGate(log *slog.Logger) *dedupe.Gate {
	return dedupe.NewGate(log, dedupe.NewCacheLockStore())
}

func provideQueue(log *slog.Logger, cfg config.Config) *queue.PriorityQueue {
	return queue.New(log, cfg.Queue.WaitingAlert, cfg.Queue.FailedAlert)
}

func provideChat(log *slog.Logger, cfg config.Config) (*chat.FallbackChat, error) {
	primary, err := buildProvider(cfg.Providers.Primary)
	if err != nil {
		return nil, fmt.Errorf("primary provider: %w", err)
	}
	var fallback chat.Provider
	if cfg.Providers.Fallback.Type != "" {
		fallback, err = buildProvider(cfg.Providers.Fallback)
		if err != nil {
			return nil, fmt.Errorf("fallback provider: %w", err)
		}
	}
	return chat.NewFallbackChat(log, primary, fallback, chat.NewCircuitBreaker()), nil
}

func buildProvider(cfg config.ProviderConfig) (chat.Provider, error) {
	return chat.NewProvider(chat.ProviderType(cfg.Type), chat.Config{
		BaseURL:         cfg.BaseURL,
		APIKey:          cfg.APIKey,
		SecondaryAPIKey: cfg.SecondaryAPIKey,
		Model:           cfg.Model,
		TimeoutSeconds:  cfg.TimeoutSeconds,
	})
}

func provideDeadLetters(log *slog.Logger, conn db.Conn, q *queue.PriorityQueue) *deadletter.Service {
	return deadletter.NewService(log, deadletter.NewPGStore(conn), q)
}

func provideIngest(
	log *slog.Logger,
	cfg config.Config,
	gate *dedupe.Gate,
	conversations *conversation.Service,
	messages *message.Service,
	q *queue.PriorityQueue,
	hub *notify.Hub,
) *ingest.Service {
	svc := ingest.NewService(log, gate, conversations, messages, q, hub, nil)
	svc.SetMaxAttempts(cfg.Queue.MaxAttempts)
	return svc
}

func providePipeline(
	log *slog.Logger,
	cfg config.Config,
	messages *message.Service,
	chatter *chat.FallbackChat,
	hub *notify.Hub,
) *processor.Pipeline {
	return processor.NewPipeline(
		log,
		processor.StaticAssistantResolver{Profile: processor.AssistantProfile{
			Model: cfg.Providers.Primary.Model,
		}},
		processor.PromptContextBuilder{},
		chatter,
		processor.BasicValidator{},
		messages,
		processor.NewHTTPSender(cfg.Messaging.BaseURL, cfg.Messaging.Token),
		hub,
	)
}

func provideWorkers(
	log *slog.Logger,
	cfg config.Config,
	q *queue.PriorityQueue,
	metrics *queue.Metrics,
	deadLetters *deadletter.Service,
	pipeline *processor.Pipeline,
) *queue.Workers {
	return queue.NewWorkers(log, q, metrics, deadLetters, pipeline.Process, cfg.Queue.Workers)
}

func provideChecks(log *slog.Logger, q *queue.PriorityQueue, chatter *chat.FallbackChat, ingestor *ingest.Service) *healthcheck.Registry {
	return healthcheck.NewRegistry(
		healthcheck.NewQueueChecker(log, q),
		healthcheck.NewProviderChecker(chatter),
		healthcheck.NewWebhookChecker(ingestor.Liveness()),
	)
}

func providePingHandler(log *slog.Logger) *handlers.PingHandler {
	return handlers.NewPingHandler(log)
}

func provideWebhookHandler(log *slog.Logger, ingestor *ingest.Service, messages *message.Service) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, ingestor, messages)
}

func provideHealthHandler(log *slog.Logger, metrics *queue.Metrics, q *queue.PriorityQueue, chatter *chat.FallbackChat, ingestor *ingest.Service, checks *healthcheck.Registry) *handlers.HealthHandler {
	return handlers.NewHealthHandler(log, metrics, q, chatter, ingestor.Liveness(), checks)
}

func provideQueueAdminHandler(log *slog.Logger, cfg config.Config, q *queue.PriorityQueue, metrics *queue.Metrics) *handlers.QueueAdminHandler {
	grace := time.Duration(cfg.Queue.CleanGraceMins) * time.Minute
	return handlers.NewQueueAdminHandler(log, q, metrics, grace)
}

func provideDeadLetterHandler(log *slog.Logger, deadLetters *deadletter.Service) *handlers.DeadLetterHandler {
	return handlers.NewDeadLetterHandler(log, deadLetters)
}

func provideWSHandler(log *slog.Logger, hub *notify.Hub) *handlers.WSHandler {
	return handlers.NewWSHandler(log, hub)
}

type serverParams struct {
	fx.In
	Config     config.Config
	Registrars []server.Registrar `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Config.Server.Addr, params.Registrars...)
}

func startWorkers(lc fx.Lifecycle, q *queue.PriorityQueue, workers *queue.Workers) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			workers.Start(ctx)
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancel()
			q.Close()
			workers.Stop()
			return nil
		},
	})
}

// startCleaner prunes finished-job records hourly so the done list
// does not grow without bound.
func startCleaner(lc fx.Lifecycle, logger *slog.Logger, cfg config.Config, q *queue.PriorityQueue) {
	grace := time.Duration(cfg.Queue.CleanGraceMins) * time.Minute
	c := cron.New()
	_, err := c.AddFunc("@hourly", func() {
		removed := q.Clean(grace)
		if removed > 0 {
			logger.Info("pruned finished job records", slog.Int("removed", removed))
		}
	})
	if err != nil {
		logger.Error("register queue cleaner failed", slog.Any("error", err))
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error { c.Start(); return nil },
		OnStop: func(ctx context.Context) error {
			stopped := c.Stop()
			select {
			case <-stopped.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, hub *notify.Hub, shutdowner fx.Shutdowner, cfg config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				logger.Info("http server starting", slog.String("addr", cfg.Server.Addr))
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			hub.Shutdown()
			return srv.Shutdown(ctx)
		},
	})
}
