// Package container wires the application with Uber FX.
package container

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redisclient "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	chatapp "github.com/nutrisnap/v2/internal/application/chat"
	mealapp "github.com/nutrisnap/v2/internal/application/meal"
	"github.com/nutrisnap/v2/internal/application/notification"
	"github.com/nutrisnap/v2/internal/application/nutrition"
	suggestionapp "github.com/nutrisnap/v2/internal/application/suggestion"
	userapp "github.com/nutrisnap/v2/internal/application/user"
	"github.com/nutrisnap/v2/internal/bus"
	"github.com/nutrisnap/v2/internal/infrastructure/ai/openai"
	"github.com/nutrisnap/v2/internal/infrastructure/cache"
	"github.com/nutrisnap/v2/internal/infrastructure/config"
	httpserver "github.com/nutrisnap/v2/internal/infrastructure/http"
	"github.com/nutrisnap/v2/internal/infrastructure/metrics"
	gormrepo "github.com/nutrisnap/v2/internal/infrastructure/persistence/gorm"
	"github.com/nutrisnap/v2/internal/infrastructure/push"
	"github.com/nutrisnap/v2/internal/infrastructure/storage"
	"github.com/nutrisnap/v2/internal/infrastructure/vector"
	"github.com/nutrisnap/v2/internal/ports/outbound"
	"github.com/nutrisnap/v2/pkg/logger"
)

// Module is the full application wiring.
var Module = fx.Options(
	ConfigModule,
	LoggerModule,
	InfrastructureModule,
	RepositoryModule,
	ServiceModule,
	HTTPModule,
	LifecycleModule,
)

// ConfigModule loads configuration from file and environment.
var ConfigModule = fx.Provide(
	func() (*config.Config, error) {
		return config.Load("")
	},
)

// LoggerModule builds the zap logger from the app section.
var LoggerModule = fx.Provide(
	func(cfg *config.Config) (*zap.Logger, error) {
		return logger.New(logger.Config{
			Level:       cfg.App.LogLevel,
			Format:      cfg.App.LogFormat,
			Development: cfg.App.Debug,
		})
	},
)

// InfrastructureModule provides the external adapters.
var InfrastructureModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
		db, err := gormrepo.NewDatabase(cfg.Database, log)
		if err != nil {
			return nil, err
		}
		return db, gormrepo.Migrate(db)
	},
	func(cfg *config.Config, log *zap.Logger) (*redisclient.Client, error) {
		return cache.NewRedisClient(cfg.Redis, log)
	},
	func(client *redisclient.Client, log *zap.Logger) outbound.CacheStore {
		return cache.NewStore(client, log)
	},
	func(client *redisclient.Client, clock outbound.Clock, log *zap.Logger) outbound.SuggestionSessionStore {
		return cache.NewSessionStore(client, clock, log)
	},
	func(cfg *config.Config, log *zap.Logger) *openai.Client {
		return openai.NewClient(cfg.AI, log)
	},
	func(c *openai.Client) outbound.VisionModel { return c },
	func(c *openai.Client) outbound.ChatModel { return c },
	func(c *openai.Client) outbound.EmbeddingModel { return c },
	func(c *openai.Client) outbound.SuggestionModel { return c },
	func(cfg *config.Config, log *zap.Logger) outbound.NutritionIndex {
		return vector.NewClient(cfg.Vector, log)
	},
	func(cfg *config.Config, log *zap.Logger) outbound.PushSender {
		return push.NewSender(cfg.Push, log)
	},
	func(cfg *config.Config, log *zap.Logger) (outbound.ImageStore, error) {
		return storage.NewImageStore(cfg.Storage, log)
	},
	func() outbound.Clock { return outbound.SystemClock{} },
	func() outbound.IDGenerator { return outbound.UUIDGenerator{} },
	func() outbound.Metrics { return metrics.NewRecorder(prometheus.DefaultRegisterer) },
)

// RepositoryModule provides the pool-scoped repositories used by
// queries; commands get transaction-scoped ones through the unit of
// work.
var RepositoryModule = fx.Provide(
	func(db *gorm.DB) bus.TxRunner { return gormrepo.NewTxRunner(db) },
	func(db *gorm.DB) outbound.MealRepository { return gormrepo.NewMealRepository(db) },
	func(db *gorm.DB) outbound.UserRepository { return gormrepo.NewUserRepository(db) },
	func(db *gorm.DB) outbound.NotificationRepository { return gormrepo.NewNotificationRepository(db) },
	func(db *gorm.DB) outbound.ChatThreadRepository { return gormrepo.NewChatThreadRepository(db) },
)

// ServiceModule provides the bus, the application services and the
// background workers.
var ServiceModule = fx.Provide(
	func(cfg *config.Config, log *zap.Logger) *bus.Publisher {
		return bus.NewPublisher(log, cfg.Pipeline.EventWorkers, cfg.Pipeline.EventQueueSize, cfg.Pipeline.SubscriberTimeout)
	},
	func(runner bus.TxRunner, publisher *bus.Publisher, log *zap.Logger, m outbound.Metrics) *bus.Bus {
		return bus.New(runner, publisher, log, m)
	},
	func(embedder outbound.EmbeddingModel, index outbound.NutritionIndex, store outbound.CacheStore, log *zap.Logger) *nutrition.Service {
		return nutrition.NewService(embedder, index, store, log)
	},
	func(p serviceParams) *mealapp.Service {
		return mealapp.NewService(
			p.Meals, p.Users, p.Images, p.Vision, p.Lookup,
			p.Cache, p.Events, p.Metrics, p.IDs, p.Clock, p.Log,
		)
	},
	func(store outbound.SuggestionSessionStore, model outbound.SuggestionModel, users outbound.UserRepository,
		meals *mealapp.Service, m outbound.Metrics, ids outbound.IDGenerator, clock outbound.Clock, log *zap.Logger,
	) *suggestionapp.Service {
		return suggestionapp.NewService(store, model, users, meals, m, ids, clock, log)
	},
	func(users outbound.UserRepository, prefs outbound.NotificationRepository, store outbound.CacheStore,
		clock outbound.Clock, log *zap.Logger,
	) *userapp.Service {
		return userapp.NewService(users, prefs, store, clock, log)
	},
	chatapp.NewConnectionHub,
	func(cfg *config.Config, threads outbound.ChatThreadRepository, model outbound.ChatModel, hub *chatapp.ConnectionHub,
		m outbound.Metrics, ids outbound.IDGenerator, clock outbound.Clock, log *zap.Logger,
	) *chatapp.Service {
		return chatapp.NewService(threads, model, hub, m, ids, clock, cfg.Chat.WindowSize, log)
	},
	func(cfg *config.Config, prefs outbound.NotificationRepository, store outbound.CacheStore,
		sender outbound.PushSender, m outbound.Metrics, clock outbound.Clock, log *zap.Logger,
	) *notification.Dispatcher {
		return notification.NewDispatcher(prefs, store, sender, m, clock, log, notification.Config{
			TickInterval: cfg.Notifications.TickInterval,
			Workers:      cfg.Notifications.Workers,
			QueueSize:    cfg.Notifications.QueueSize,
			PushTimeout:  cfg.Notifications.PushTimeout,
			SendsPerSec:  cfg.Notifications.SendsPerSec,
		})
	},
)

// serviceParams groups the meal service dependencies.
type serviceParams struct {
	fx.In

	Meals   outbound.MealRepository
	Users   outbound.UserRepository
	Images  outbound.ImageStore
	Vision  outbound.VisionModel
	Lookup  *nutrition.Service
	Cache   outbound.CacheStore
	Events  *bus.Publisher
	Metrics outbound.Metrics
	IDs     outbound.IDGenerator
	Clock   outbound.Clock
	Log     *zap.Logger
}

// HTTPModule provides the facade server.
var HTTPModule = fx.Provide(
	func(cfg *config.Config, b *bus.Bus, hub *chatapp.ConnectionHub, log *zap.Logger) *httpserver.Server {
		return httpserver.NewServer(cfg, b, hub, log)
	},
)

// LifecycleModule registers every service on the bus, freezes the
// routing tables and ties the workers to the FX lifecycle.
var LifecycleModule = fx.Invoke(registerAndRun)

func registerAndRun(
	lc fx.Lifecycle,
	cfg *config.Config,
	b *bus.Bus,
	publisher *bus.Publisher,
	meals *mealapp.Service,
	suggestions *suggestionapp.Service,
	users *userapp.Service,
	chats *chatapp.Service,
	dispatcher *notification.Dispatcher,
	server *httpserver.Server,
	log *zap.Logger,
) {
	meals.Register(b)
	suggestions.Register(b)
	users.Register(b)
	chats.Register(b)
	b.Freeze()

	dispatcherCtx, stopDispatcher := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := dispatcher.Run(dispatcherCtx); err != nil {
					log.Error("notification dispatcher stopped", zap.Error(err))
				}
			}()
			go func() {
				if err := server.Start(); err != nil {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			if cfg.Metrics.Enabled {
				go serveMetrics(cfg.Metrics.Port, log)
			}
			log.Info("application started",
				zap.String("environment", cfg.App.Environment),
				zap.String("version", cfg.App.Version))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopDispatcher()
			dispatcher.Close()
			publisher.Close()
			return server.Shutdown(ctx)
		},
	})
}

func serveMetrics(port int, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	log.Info("metrics listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server stopped", zap.Error(err))
	}
}
