package main

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-service/internal/api/http"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/assignment"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/cache"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/internal/worker"
)

func main() {
	app := &cli.App{
		Name:  "helpdesk",
		Usage: "Helpdesk ticket service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "admin-email",
				Usage:   "Bootstrap a super-admin with this email if it does not exist",
				EnvVars: []string{"BOOTSTRAP_ADMIN_EMAIL"},
			},
			&cli.StringFlag{
				Name:    "admin-password",
				Usage:   "Password for the bootstrapped super-admin",
				EnvVars: []string{"BOOTSTRAP_ADMIN_PASSWORD"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server",
				Action: runServe,
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations and exit",
				Action: runMigrate,
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("helpdesk: %v", err)
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func runMigrate(c *cli.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Postgres.DSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required for migrate")
	}
	pg, err := persistence.NewPostgres(c.Context, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	return persistence.RunMigrations(c.Context, pg.PoolHandle(), logger)
}

func runServe(c *cli.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var (
		ticketRepo repository.TicketRepository
		userRepo   repository.UserRepository
	)
	if pool := pg.PoolHandle(); pool != nil {
		ticketRepo = repository.NewTicketRepository(pool)
		userRepo = repository.NewUserRepository(pool)
	} else {
		logger.Warn("using in-memory store; data is lost on restart")
		ticketRepo = repository.NewMemoryTicketStore()
		userRepo = repository.NewMemoryUserStore()
	}

	directory := cache.NewDirectoryCache(userRepo, redis.ClientHandle(), cfg.Redis.DirectoryCacheTTL(), logger)
	var picker assignment.Picker
	if cfg.Assignment.Seed != 0 {
		picker = rand.New(rand.NewPCG(cfg.Assignment.Seed, cfg.Assignment.Seed))
	}
	router := assignment.NewRouter(directory, picker, logger)

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartActivityWorker(service.NewActivityService(dispatcher, logger))

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(*cfg, userRepo, tokens, logger)
	userService := service.NewUserService(userRepo, directory, logger)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		UserRepo:   userRepo,
		Assigner:   router,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	if email := c.String("admin-email"); email != "" {
		if _, err := authService.EnsureSuperAdmin(ctx, email, c.String("admin-password")); err != nil {
			return fmt.Errorf("bootstrap super-admin: %w", err)
		}
	}

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, userRepo),
		Throttle:       auth.NewThrottle(cfg.Auth.LoginRatePerMinute, cfg.Auth.LoginBurst),
	})

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("fiber listen: %w", err)
	case sig := <-shutdownSignal():
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func shutdownSignal() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}
