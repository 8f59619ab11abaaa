package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/crm360hq/crm360/internal/agent"
	"github.com/crm360hq/crm360/internal/assignment"
	"github.com/crm360hq/crm360/internal/businesshours"
	"github.com/crm360hq/crm360/internal/channel"
	"github.com/crm360hq/crm360/internal/channel/adapters/msg91"
	"github.com/crm360hq/crm360/internal/channel/adapters/resend"
	"github.com/crm360hq/crm360/internal/channel/adapters/telecmi"
	"github.com/crm360hq/crm360/internal/config"
	"github.com/crm360hq/crm360/internal/contact"
	"github.com/crm360hq/crm360/internal/conversation"
	"github.com/crm360hq/crm360/internal/db"
	"github.com/crm360hq/crm360/internal/handlers"
	"github.com/crm360hq/crm360/internal/inbox"
	"github.com/crm360hq/crm360/internal/logger"
	"github.com/crm360hq/crm360/internal/message"
	"github.com/crm360hq/crm360/internal/notify"
	"github.com/crm360hq/crm360/internal/presence"
	"github.com/crm360hq/crm360/internal/server"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideChannelRegistry,
			channel.NewStore,
			contact.NewStore,
			conversation.NewStore,
			message.NewStore,
			assignment.NewStore,
			presence.NewStore,
			businesshours.NewStore,
			agent.NewStore,
			provideAgentService,
			provideContactService,
			provideConversationService,
			provideMessageService,
			provideRuleService,
			providePresenceService,
			provideHoursOracle,
			notify.NewHub,
			providePublisher,
			provideNotifier,
			provideReconciler,
			provideEngine,
			providePipeline,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideAuthHandler),
			provideServerHandler(provideWebhookHandler),
			provideServerHandler(provideConversationsHandler),
			provideServerHandler(handlers.NewRulesHandler),
			provideServerHandler(handlers.NewPresenceHandler),
			provideServerHandler(handlers.NewChannelsHandler),
			provideServerHandler(handlers.NewStreamHandler),
			provideServer,
		),
		fx.Invoke(
			runMigrations,
			seedAdmin,
			startPresenceSweep,
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

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideChannelRegistry() *channel.Registry {
	registry := channel.NewRegistry()
	registry.MustRegister(msg91.NewWhatsApp())
	registry.MustRegister(msg91.NewSMS())
	registry.MustRegister(telecmi.NewVoice())
	registry.MustRegister(resend.NewEmail())
	return registry
}

func provideAgentService(log *slog.Logger, store *agent.Store) *agent.Service {
	return agent.NewService(log, store)
}

func provideContactService(log *slog.Logger, store *contact.Store) *contact.Service {
	return contact.NewService(log, store)
}

func provideConversationService(log *slog.Logger, store *conversation.Store) *conversation.Service {
	return conversation.NewService(log, store)
}

func provideMessageService(log *slog.Logger, store *message.Store) *message.Service {
	return message.NewService(log, store)
}

func provideRuleService(log *slog.Logger, store *assignment.Store) *assignment.Service {
	return assignment.NewService(log, store)
}

func providePresenceService(log *slog.Logger, cfg config.Config, store *presence.Store) *presence.Service {
	return presence.NewService(log, store, cfg.Presence.StalenessDuration())
}

func provideHoursOracle(log *slog.Logger, store *businesshours.Store) *businesshours.Oracle {
	return businesshours.NewOracle(log, store)
}

func providePublisher(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) notify.Publisher {
	if cfg.AMQP.URL == "" {
		return nil
	}
	publisher, err := notify.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, log)
	if err != nil {
		// Notifications are fire-and-forget end to end, so a broker outage at
		// startup degrades to websocket-only delivery.
		log.Warn("amqp publisher unavailable", slog.String("error", err.Error()))
		return nil
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return publisher.Close() }})
	return publisher
}

func provideNotifier(log *slog.Logger, hub *notify.Hub, publisher notify.Publisher) *notify.Service {
	return notify.NewService(log, hub, publisher)
}

func provideReconciler(log *slog.Logger, store *message.Store, notifier *notify.Service) *message.Reconciler {
	return message.NewReconciler(log, store, notifier)
}

func provideEngine(log *slog.Logger, rules *assignment.Store, conversations *conversation.Store,
	presenceSvc *presence.Service, hours *businesshours.Oracle, notifier *notify.Service) *assignment.Engine {
	return assignment.NewEngine(log, rules, conversations, presenceSvc, hours, notifier)
}

func providePipeline(log *slog.Logger, registry *channel.Registry, accounts *channel.Store,
	contacts *contact.Service, conversations *conversation.Service, messages *message.Service,
	reconciler *message.Reconciler, engine *assignment.Engine, notifier *notify.Service) *inbox.Pipeline {
	return inbox.NewPipeline(log, registry, accounts, contacts, conversations, messages,
		reconciler, engine, notifier)
}

func provideAuthHandler(log *slog.Logger, cfg config.Config, agents *agent.Service) *handlers.AuthHandler {
	return handlers.NewAuthHandler(log, agents, cfg.Auth.JWTSecret, cfg.Auth.ExpiresInDuration())
}

func provideWebhookHandler(log *slog.Logger, pipeline *inbox.Pipeline) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, pipeline)
}

func provideConversationsHandler(log *slog.Logger, conversations *conversation.Service,
	messages *message.Service, engine *assignment.Engine) *handlers.ConversationsHandler {
	return handlers.NewConversationsHandler(log, conversations, messages, engine)
}

type serverParams struct {
	fx.In

	Config         config.Config
	Logger         *slog.Logger
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.New(params.Config.Server.Addr, params.Config.Auth.JWTSecret,
		params.Logger, params.ServerHandlers)
}

func runMigrations(cfg config.Config, log *slog.Logger) error {
	if err := db.Migrate(cfg.Postgres); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("database schema up to date")
	return nil
}

func seedAdmin(lc fx.Lifecycle, cfg config.Config, agents *agent.Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return agents.SeedAdmin(ctx, cfg.Admin.Tenant, cfg.Admin.Email, cfg.Admin.Password)
		},
	})
}

func startPresenceSweep(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, presenceSvc *presence.Service) {
	scheduler := cron.New()
	spec := fmt.Sprintf("@every %s", cfg.Presence.SweepDuration())
	if _, err := scheduler.AddFunc(spec, func() {
		presenceSvc.SweepStale(context.Background())
	}); err != nil {
		log.Error("presence sweep schedule invalid", slog.String("error", err.Error()))
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			scheduler.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			scheduler.Stop()
			return nil
		},
	})
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
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
