package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/cryptoearn/cryptoearn/internal/auth"
	"github.com/cryptoearn/cryptoearn/internal/clock"
	"github.com/cryptoearn/cryptoearn/internal/config"
	"github.com/cryptoearn/cryptoearn/internal/identity"
	"github.com/cryptoearn/cryptoearn/internal/ledger"
	"github.com/cryptoearn/cryptoearn/internal/logging"
	"github.com/cryptoearn/cryptoearn/internal/metrics"
	"github.com/cryptoearn/cryptoearn/internal/middleware"
	"github.com/cryptoearn/cryptoearn/internal/notification"
	"github.com/cryptoearn/cryptoearn/internal/prices"
	"github.com/cryptoearn/cryptoearn/internal/rewards"
	"github.com/cryptoearn/cryptoearn/internal/stats"
	"github.com/cryptoearn/cryptoearn/internal/withdrawals"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
	// Clock defaults to wall time.
	Clock clock.Clock
	// Gateway defaults to a payout simulator that approves everything.
	Gateway withdrawals.Gateway
	// Notifier defaults to structured logging.
	Notifier notification.Notifier
}

// Services exposes the long-lived components main needs to start and stop.
type Services struct {
	Prices      *prices.Feed
	Withdrawals *withdrawals.Service
}

// Setup builds every service, configures middlewares and registers all routes.
func Setup(app *fiber.App, d Deps) (*Services, error) {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}

	catalog, err := rewards.LoadCatalog(d.Cfg.RewardMethodsFile)
	if err != nil {
		return nil, err
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))
	app.Use(metrics.Middleware())

	RegisterHealthRoutes(app, d)

	// Stores
	var (
		identityRepo   identity.Repository
		rewardRepo     rewards.Repository
		withdrawalRepo withdrawals.Repository
		cooldowns      rewards.CooldownStore
	)
	if d.DB != nil {
		identityRepo = identity.NewPostgresRepository(d.DB)
		rewardRepo = rewards.NewPostgresRepository(d.DB)
		withdrawalRepo = withdrawals.NewPostgresRepository(d.DB)
	} else {
		identityRepo = identity.NewMemoryRepository()
		rewardRepo = rewards.NewMemoryRepository()
		withdrawalRepo = withdrawals.NewMemoryRepository()
	}
	if d.Cache != nil {
		cooldowns = rewards.NewRedisCooldowns(d.Cache, d.Clock.Now)
	} else {
		cooldowns = rewards.NewMemoryCooldowns()
	}

	// Services and handlers
	ledgerBackend := ledger.NewInMemory(stats.BalanceLoader(rewardRepo, withdrawalRepo))
	identitySvc := identity.NewService(identityRepo, identity.WithClock(d.Clock))
	tokens := auth.NewTokenIssuer(d.Cfg.JWTSecret, d.Cfg.JWTIssuer, d.Cfg.TokenTTL, d.Clock)
	authSvc := auth.NewService(identitySvc, ledgerBackend, tokens, d.Logger)

	rewardSvc := rewards.NewService(ledgerBackend, rewardRepo, cooldowns, catalog, d.Clock, d.Logger, rewards.Config{
		EnforceCooldown:     d.Cfg.CooldownEnforced,
		EnforceMethodBounds: d.Cfg.EnforceMethodBounds,
	})
	notifier := d.Notifier
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}
	withdrawalSvc := withdrawals.NewService(ledgerBackend, withdrawalRepo, d.Gateway, notifier, d.Clock, d.Logger, withdrawals.Config{
		SettlementDelay: d.Cfg.SettlementDelay,
	})
	statsSvc := stats.NewService(identitySvc, ledgerBackend, rewardRepo, withdrawalRepo)
	feed := prices.NewFeed(d.Cfg.PriceTickInterval, d.Logger)

	resumeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if n, err := withdrawalSvc.Resume(resumeCtx); err != nil {
		return nil, err
	} else if n > 0 {
		d.Logger.Info("resumed pending withdrawals", slog.Int("count", n))
	}

	// API routes
	api := app.Group("/api")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  d.Clock.Now().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterAuthRoutes(api, auth.NewHandler(authSvc), middleware.LoginRateLimit(d.Cache, d.Cfg.LoginPerMinute, d.Logger))
	RegisterMarketRoutes(api, feed)

	// Protected routes
	protected := api.Group("", middleware.BearerAuth(authSvc))
	idem := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	RegisterProfileRoutes(protected, auth.NewHandler(authSvc), stats.NewHandler(statsSvc))
	RegisterRewardRoutes(protected, rewards.NewHandler(rewardSvc), idem)
	RegisterWithdrawalRoutes(protected, withdrawals.NewHandler(withdrawalSvc), idem)

	return &Services{Prices: feed, Withdrawals: withdrawalSvc}, nil
}
