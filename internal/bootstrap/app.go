package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"medword/internal/app"
	"medword/internal/backend"
	"medword/internal/cache"
	"medword/internal/config"
	"medword/internal/document"
	mysqlClient "medword/internal/platform/mysql"
	rabbitmqClient "medword/internal/platform/rabbitmq"
	redisClient "medword/internal/platform/redis"
	"medword/internal/repository"
	"medword/internal/syncer"
	"medword/internal/upload"
	"medword/internal/worker"
)

// App holds the engine stores and the optional persistence backends. MySQL,
// Redis and MQConn stay nil when the matching feature is switched off.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	Backend  *backend.Client
	Bridge   *document.Bridge
	Chat     *app.SessionStore
	Sources  *syncer.SourceStore
	Prompts  *syncer.PromptStore
	Text     *app.TextService
	Datasets *app.DatasetService

	MySQL         *gorm.DB
	Redis         *redis.Client
	MQConn        *amqp.Connection
	Publisher     *rabbitmqClient.JournalPublisher
	JournalWorker *worker.JournalWorker

	StartedAt time.Time

	cancel context.CancelFunc
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		Config:    cfg,
		Logger:    logger,
		StartedAt: time.Now(),
	}

	a.Backend = backend.New(
		backend.WithBaseURL(cfg.Backend.BaseURL),
		backend.WithAPIKey(cfg.Backend.APIKey),
		backend.WithTimeouts(cfg.RequestTimeout(), cfg.ListTimeout(), cfg.UploadTimeout()),
		backend.WithLogger(logger),
	)
	a.Bridge = document.NewBridge(logger)

	var snapshots syncer.SnapshotCache
	if cfg.Redis.SourceCacheEnabled {
		client, err := redisClient.New(ctx, cfg.Redis)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.Redis = client
		snapshots = cache.NewSourceCache(client, cfg.App.Name, cfg.SourceCacheTTL())
	}

	var publisher app.JournalPublisher
	var sessions *repository.SessionRepository
	if cfg.Chat.Persist {
		if err := a.openJournal(ctx); err != nil {
			_ = a.Close()
			return nil, err
		}
		publisher = a.Publisher
		sessions = repository.NewSessionRepository(a.MySQL)
	}

	a.Chat = app.NewSessionStore(a.Backend, a.Bridge, publisher, app.SessionStoreConfig{
		MinDocumentChars: cfg.Chat.MinDocumentChars,
	}, logger)
	if sessions != nil {
		if _, err := a.Chat.Restore(ctx, sessions); err != nil {
			logger.Warn("restore chat sessions failed", zap.Error(err))
		}
	}

	a.Sources = syncer.NewSourceStore(a.Backend, a.Bridge, snapshots, upload.NewValidator(cfg.Sync.MaxUploadBytes), syncer.SourceStoreConfig{
		PollInterval: cfg.SourcePollInterval(),
		ListTimeout:  cfg.ListTimeout(),
	}, logger)
	a.Prompts = syncer.NewPromptStore(a.Backend, syncer.PromptStoreConfig{
		PollInterval: cfg.PromptPollInterval(),
		ListTimeout:  cfg.ListTimeout(),
		CacheTTL:     cfg.PromptCacheTTL(),
	}, logger)
	a.Text = app.NewTextService(a.Backend, a.Bridge, logger)
	a.Datasets = app.NewDatasetService(a.Backend, a.Bridge, logger)
	return a, nil
}

func (a *App) openJournal(ctx context.Context) error {
	db, err := mysqlClient.New(ctx, a.Config.MySQLDSN(), !a.Config.IsProduction())
	if err != nil {
		return err
	}
	a.MySQL = db

	conn, err := rabbitmqClient.New(ctx, a.Config.RabbitMQ.URL, a.Config.RabbitMQ.JournalQueue)
	if err != nil {
		return err
	}
	a.MQConn = conn
	a.Publisher = rabbitmqClient.NewJournalPublisher(conn, a.Config.RabbitMQ.JournalQueue)

	a.JournalWorker = worker.NewJournalWorker(
		conn,
		repository.NewSessionRepository(db),
		repository.NewMessageRepository(db),
		a.Config.RabbitMQ.JournalQueue,
		a.Logger,
	)
	return nil
}

// Start runs the initial loads and starts polling. A failed initial load is
// logged only; the stores recover on the next successful poll.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.JournalWorker != nil {
		if err := a.JournalWorker.Start(runCtx); err != nil {
			return fmt.Errorf("start journal worker failed: %w", err)
		}
	}
	if err := a.Sources.Start(runCtx); err != nil {
		a.Logger.Warn("initial source load failed", zap.Error(err))
	}
	if err := a.Prompts.Start(runCtx); err != nil {
		a.Logger.Warn("initial prompt load failed", zap.Error(err))
	}
	a.Text.WatchSelection(runCtx, app.DefaultSelectionSettle)
	return nil
}

func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.Sources != nil {
		a.Sources.Close()
	}
	if a.Prompts != nil {
		a.Prompts.Close()
	}
	if a.Chat != nil {
		a.Chat.Close()
	}

	var errs []error
	if a.JournalWorker != nil {
		a.JournalWorker.Close()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.MySQL != nil {
		if err := mysqlClient.Close(a.MySQL); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
