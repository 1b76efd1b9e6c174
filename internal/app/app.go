package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bookrec/internal/achievements"
	"bookrec/internal/activity"
	"bookrec/internal/bot"
	"bookrec/internal/config"
	"bookrec/internal/httpapi"
	"bookrec/internal/logger"
	"bookrec/internal/recommend"
	"bookrec/internal/storage"
	"bookrec/internal/storage/ch"
	"bookrec/internal/storage/sqldb"
	"bookrec/internal/storage/stubs"
	"bookrec/internal/trending"
)

// App represents the application
type App struct {
	config *config.Config
	logger *zap.Logger
	db     storage.Storage

	engine    *recommend.Engine
	scorer    *trending.Scorer
	evaluator *achievements.Evaluator
	tracker   *activity.Tracker

	bot    *bot.Bot
	api    *httpapi.Server
	server *http.Server
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	envErr := godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	if envErr != nil {
		log.Info("No .env file found, using system environment variables")
	}

	return newApp(cfg, log)
}

func newApp(cfg *config.Config, log *zap.Logger) (*App, error) {
	app := &App{config: cfg, logger: log}

	log.Info("Starting bookrec", zap.String("storage", cfg.StorageBackend))

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	app.initServices()
	if err := app.initBot(); err != nil {
		app.db.Close()
		return nil, err
	}
	app.initHTTPServer()

	return app, nil
}

// initDatabase opens the configured store
func (a *App) initDatabase() error {
	db, err := openStore(a.config, a.logger)
	if err != nil {
		return err
	}

	if err := db.Initialize(context.Background()); err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.logger.Info("Database initialized")

	a.db = db
	return nil
}

func openStore(cfg *config.Config, log *zap.Logger) (storage.Storage, error) {
	switch cfg.StorageBackend {
	case config.BackendMock:
		log.Info("Using mock database")
		return stubs.NewMockDB(), nil
	case config.BackendClickHouse:
		log.Info("Connecting to ClickHouse",
			zap.String("host", cfg.ClickHouseHost),
			zap.Int("port", cfg.ClickHousePort),
			zap.String("database", cfg.ClickHouseDatabase),
			zap.String("user", cfg.ClickHouseUser),
			zap.Bool("tls", cfg.ClickHouseUseTLS),
		)
		db, err := ch.NewClickHouseDB(
			cfg.ClickHouseHost,
			cfg.ClickHousePort,
			cfg.ClickHouseDatabase,
			cfg.ClickHouseUser,
			cfg.ClickHousePassword,
			cfg.ClickHouseUseTLS,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		return db, nil
	case config.BackendPostgres, config.BackendSQLite:
		dialect, dsn := sqldb.DialectPostgres, cfg.PostgresDSN
		if cfg.StorageBackend == config.BackendSQLite {
			dialect, dsn = sqldb.DialectSQLite, cfg.SQLitePath
		}
		log.Info("Opening SQL database", zap.String("dialect", dialect))
		db, err := sqldb.Open(dialect, dsn, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// initServices builds the recommender, scorer, evaluator and tracker
func (a *App) initServices() {
	a.engine = recommend.NewEngine(a.db, recommend.Config{
		MaxCandidates:  a.config.MaxCandidates,
		PageSize:       a.config.PageSize,
		FetchWorkers:   a.config.FetchWorkers,
		NeighbourLimit: a.config.NeighbourLimit,
		TrendingWindow: a.config.TrendingWindow,
	}, a.logger.Named("recommend"))
	a.scorer = trending.NewScorer(a.db, a.logger.Named("trending"))
	a.evaluator = achievements.NewEvaluator(a.db, achievements.DefaultCatalog(), a.logger.Named("achievements"))
	a.tracker = activity.NewTracker(a.db, a.scorer, a.evaluator, a.logger.Named("activity"), a.config.AchievementWorkers)
}

// initBot initializes the Telegram bot when a token is configured
func (a *App) initBot() error {
	if a.config.TelegramToken == "" {
		a.logger.Info("TELEGRAM_BOT_TOKEN not set, bot disabled")
		return nil
	}

	telegramBot, err := bot.NewBot(a.config.TelegramToken, bot.Services{
		DB:        a.db,
		Engine:    a.engine,
		Scorer:    a.scorer,
		Evaluator: a.evaluator,
		Tracker:   a.tracker,
	}, a.config.AllowedUserIDs, a.logger.Named("bot"))
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	a.logger.Info("Bot created", zap.Int64s("allowed_users", a.config.AllowedUserIDs))

	a.bot = telegramBot
	return nil
}

// initHTTPServer builds the API and webhook server
func (a *App) initHTTPServer() {
	a.api = httpapi.NewServer(a.engine, a.scorer, a.evaluator, a.tracker, a.logger.Named("http"))
	if a.bot != nil && a.config.WebhookMode {
		a.api.HandleTelegramUpdates(a.bot.HandleWebhookUpdate)
	}

	a.server = &http.Server{
		Addr:         ":" + a.config.HTTPPort,
		Handler:      a.api.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Starting HTTP server", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.runCleanup(ctx)
		return nil
	})

	if a.bot != nil {
		if a.config.WebhookMode {
			a.logger.Info("Starting bot in webhook mode", zap.String("url", a.config.WebhookURL))
			if err := a.bot.StartWebhook(a.config.WebhookURL); err != nil {
				stop()
				_ = a.Shutdown()
				return fmt.Errorf("failed to setup webhook: %w", err)
			}
		} else {
			go func() {
				if err := a.bot.Start(); err != nil {
					a.logger.Error("Bot polling stopped", zap.Error(err))
				}
			}()
		}
	}

	// Wait for a signal or a failed server
	<-ctx.Done()
	a.logger.Info("Shutting down")
	shutdownErr := a.Shutdown()

	if err := g.Wait(); err != nil {
		return err
	}
	return shutdownErr
}

// runCleanup decays stale popularity records until ctx is done
func (a *App) runCleanup(ctx context.Context) {
	if a.config.CleanupInterval <= 0 {
		return
	}

	ticker := time.NewTicker(a.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.cleanupOnce(ctx)
		}
	}
}

func (a *App) cleanupOnce(ctx context.Context) {
	cleaned, err := a.scorer.CleanupStale(ctx)
	if err != nil {
		a.logger.Error("Popularity cleanup failed", zap.Error(err))
		return
	}
	a.logger.Info("Popularity cleanup finished", zap.Int("records", cleaned))
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	if a.bot != nil {
		a.bot.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	// Drain webhook updates, then the achievement checks they scheduled,
	// before closing the store
	a.api.Wait()
	a.tracker.Wait()

	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database", zap.Error(err))
		return err
	}

	a.logger.Info("Shutdown complete")
	_ = a.logger.Sync()
	return nil
}
