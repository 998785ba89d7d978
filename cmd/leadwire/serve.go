package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/leadwireai/leadwire/internal/analytics"
	"github.com/leadwireai/leadwire/internal/booking"
	"github.com/leadwireai/leadwire/internal/channel"
	"github.com/leadwireai/leadwire/internal/channel/adapters/web"
	"github.com/leadwireai/leadwire/internal/channel/adapters/whatsapp"
	"github.com/leadwireai/leadwire/internal/channel/inbound"
	"github.com/leadwireai/leadwire/internal/completion"
	"github.com/leadwireai/leadwire/internal/config"
	"github.com/leadwireai/leadwire/internal/conversation"
	"github.com/leadwireai/leadwire/internal/db"
	"github.com/leadwireai/leadwire/internal/dispatch"
	"github.com/leadwireai/leadwire/internal/handlers"
	"github.com/leadwireai/leadwire/internal/identity"
	"github.com/leadwireai/leadwire/internal/knowledge"
	"github.com/leadwireai/leadwire/internal/logger"
	"github.com/leadwireai/leadwire/internal/respond"
	"github.com/leadwireai/leadwire/internal/server"
	"github.com/leadwireai/leadwire/internal/session"
	"github.com/leadwireai/leadwire/internal/transcript"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server, channel webhooks and background workers",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func runServe() {
	fx.New(
		fx.Provide(
			loadConfig,
			provideLogger,
			provideDBConn,
			provideCompletionClient,
			provideKnowledgeStore,
			provideIdentityService,
			provideSessionService,
			provideTranscriptService,
			provideBookingService,
			provideBuilder,
			provideGenerator,
			provideRegistry,
			provideErrorLog,
			provideRecorder,
			provideExporter,
			provideProcessor,
			provideDispatcher,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideMessageHandler),
			provideServerHandler(provideDiagnosticsHandler),
			provideServerHandler(provideWebhookHandler),
			provideServer,
		),
		fx.Invoke(
			runMigrations,
			startExportSchedule,
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
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { pool.Close(); return nil }})
	return pool, nil
}

func provideCompletionClient(log *slog.Logger, cfg config.Config) (*completion.Client, error) {
	return completion.NewClient(log, cfg.Completion)
}

func provideKnowledgeStore(log *slog.Logger, cfg config.Config) (*knowledge.Store, error) {
	return knowledge.NewStore(log, cfg.Knowledge.Path)
}

func provideIdentityService(log *slog.Logger, pool *pgxpool.Pool) *identity.Service {
	return identity.NewService(log, pool)
}

func provideSessionService(log *slog.Logger, pool *pgxpool.Pool) *session.Service {
	return session.NewService(log, pool)
}

func provideTranscriptService(log *slog.Logger, pool *pgxpool.Pool) *transcript.DBService {
	return transcript.NewService(log, pool)
}

func provideBookingService() booking.Service { return booking.NewMemoryService() }

func provideBuilder(log *slog.Logger, identities *identity.Service, sessions *session.Service, entries *transcript.DBService, bookings booking.Service) *conversation.Builder {
	return conversation.NewBuilder(log, identities, sessions, entries, bookings)
}

func provideGenerator(log *slog.Logger, client *completion.Client, store *knowledge.Store, cfg config.Config) *respond.Generator {
	return respond.NewGenerator(log, client, store, cfg.BusinessName)
}

func provideRegistry(log *slog.Logger, cfg config.Config) (*channel.Registry, error) {
	registry := channel.NewRegistry()
	if err := registry.RegisterRenderer(channel.Web, web.NewRenderer()); err != nil {
		return nil, err
	}
	if err := registry.RegisterRenderer(channel.WhatsApp, whatsapp.NewFormatter()); err != nil {
		return nil, err
	}
	if cfg.WhatsApp.SendConfigured() {
		sender, err := whatsapp.NewSender(log, cfg.WhatsApp)
		if err != nil {
			return nil, err
		}
		if err := registry.RegisterSender(channel.WhatsApp, sender); err != nil {
			return nil, err
		}
	} else {
		log.Warn("whatsapp credentials missing, outbound delivery disabled")
	}
	return registry, nil
}

func provideErrorLog() *analytics.ErrorLog {
	return analytics.NewErrorLog(analytics.DefaultErrorLogSize)
}

func provideRecorder(log *slog.Logger, pool *pgxpool.Pool, entries *transcript.DBService) *analytics.Recorder {
	return analytics.NewRecorder(log, pool, entries)
}

func provideExporter(log *slog.Logger, entries *transcript.DBService) *analytics.Exporter {
	return analytics.NewExporter(log, entries)
}

func provideProcessor(
	log *slog.Logger,
	builder *conversation.Builder,
	generator *respond.Generator,
	sessions *session.Service,
	entries *transcript.DBService,
	bookings booking.Service,
	registry *channel.Registry,
	recorder *analytics.Recorder,
	errorLog *analytics.ErrorLog,
) *inbound.Processor {
	p := inbound.NewProcessor(log, builder, generator, sessions, entries, bookings, registry)
	p.SetRecorder(recorder)
	p.SetErrorLog(errorLog)
	return p
}

func provideDispatcher(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, processor *inbound.Processor) (dispatch.Dispatcher, error) {
	if cfg.Dispatch.Mode == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Dispatch.Redis.Addr,
			Password: cfg.Dispatch.Redis.Password,
			DB:       cfg.Dispatch.Redis.DB,
		})
		d, err := dispatch.NewRedisDispatcher(context.Background(), log, rdb, processor.HandleTask, dispatch.RedisOptions{
			Stream:   cfg.Dispatch.Redis.Stream,
			Group:    cfg.Dispatch.Redis.Group,
			Consumer: cfg.Dispatch.Redis.Consumer,
		})
		if err != nil {
			return nil, fmt.Errorf("redis dispatcher: %w", err)
		}
		lc.Append(fx.Hook{OnStop: func(ctx context.Context) error {
			if err := d.Close(ctx); err != nil {
				return err
			}
			return rdb.Close()
		}})
		return d, nil
	}

	workers := dispatch.NewWorkers(log, processor.HandleTask, cfg.Dispatch.Workers, cfg.Dispatch.QueueSize)
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return workers.Close(ctx) }})
	return workers, nil
}

func provideMessageHandler(log *slog.Logger, processor *inbound.Processor) *handlers.MessageHandler {
	return handlers.NewMessageHandler(log, processor)
}

func provideDiagnosticsHandler(log *slog.Logger, cfg config.Config, pool *pgxpool.Pool, errorLog *analytics.ErrorLog) *handlers.DiagnosticsHandler {
	return handlers.NewDiagnosticsHandler(log, cfg, pool, errorLog)
}

func provideWebhookHandler(log *slog.Logger, cfg config.Config, dispatcher dispatch.Dispatcher) *whatsapp.Webhook {
	return whatsapp.NewWebhook(log, cfg.WhatsApp, dispatcher)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.ServerHandlers...)
}

func runMigrations(log *slog.Logger, cfg config.Config) error {
	if err := db.Migrate(cfg.Postgres); err != nil {
		return err
	}
	log.Info("schema up to date")
	return nil
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}

func startExportSchedule(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, exporter *analytics.Exporter) error {
	if cfg.Export.Cron == "" {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(cfg.Export.Cron, func() {
		if err := writeExportFile(log, cfg.Export.OutputDir, exporter); err != nil {
			log.Error("scheduled export failed", slog.Any("error", err))
		}
	}); err != nil {
		return fmt.Errorf("export schedule %q: %w", cfg.Export.Cron, err)
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			c.Start()
			log.Info("export schedule started", slog.String("cron", cfg.Export.Cron))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopped := c.Stop()
			select {
			case <-stopped.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
	return nil
}

func writeExportFile(log *slog.Logger, dir string, exporter *analytics.Exporter) error {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("pairs-%s.jsonl", time.Now().UTC().Format("20060102T150405")))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := exporter.Export(ctx, f, "", time.Time{})
	if err != nil {
		return err
	}
	log.Info("training pairs exported", slog.String("path", path), slog.Int("pairs", n))
	return nil
}
