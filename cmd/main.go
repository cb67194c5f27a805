package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/tombola/broadcast"
	"github.com/Dosada05/tombola/config"
	"github.com/Dosada05/tombola/db"
	"github.com/Dosada05/tombola/handlers"
	"github.com/Dosada05/tombola/models"
	"github.com/Dosada05/tombola/repositories"
	api "github.com/Dosada05/tombola/routes"
	"github.com/Dosada05/tombola/services"
	"github.com/Dosada05/tombola/storage"
	"github.com/Dosada05/tombola/tombola"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	seed := flag.Bool("seed", false, "apply the schema, create sample users and a game, then exit")
	seedPassword := flag.String("seed-password", "changeme123", "password given to seeded users")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, db.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	}, cfg.DBConnectTimeout, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var images storage.ImageStore
	if cfg.R2.Enabled() {
		images, err = storage.NewCloudflareR2Store(ctx, storage.CloudflareR2Config{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			BucketName:      cfg.R2.Bucket,
			PublicBaseURL:   cfg.R2.PublicBaseURL,
		}, logger)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 store", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 store initialized", slog.String("bucket", cfg.R2.Bucket))
	}

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	gameRepo := repositories.NewPostgresGameRepository(dbConn)
	cardRepo := repositories.NewPostgresCardRepository(dbConn)
	prizeRepo := repositories.NewPostgresPrizeRepository(dbConn)
	tx := repositories.NewTransactor(dbConn, logger)

	hub := broadcast.NewHub(logger)

	var (
		rdb       *redis.Client
		publisher broadcast.Publisher = hub
	)
	if cfg.RedisURL != "" {
		rdb, err = broadcast.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer rdb.Close()
		publisher = broadcast.NewRedisPublisher(rdb, cfg.RedisChannel)
		logger.Info("redis relay enabled", slog.String("channel", cfg.RedisChannel))
	}

	generator := tombola.NewTimeSeededGenerator()
	locks := services.NewGameLocks()

	authService := services.NewAuthService(userRepo, cfg.JWTSecretKey, cfg.TokenTTL)
	userService := services.NewUserService(userRepo)
	prizeService := services.NewPrizeService(prizeRepo, images, logger)
	cardService := services.NewCardService(tx, gameRepo, cardRepo, generator, locks, logger)
	gameService := services.NewGameService(services.GameServiceDeps{
		Tx:       tx,
		Games:    gameRepo,
		Cards:    cardRepo,
		Users:    userRepo,
		Prizes:   prizeRepo,
		Images:   images,
		Source:   generator,
		Notifier: broadcast.NewNotifier(publisher, logger),
		Locks:    locks,
		Logger:   logger,
	}, services.GameServiceConfig{
		DefaultOwnerID:    cfg.DefaultGameOwnerID,
		DetectionAttempts: cfg.DetectionAttempts,
	})
	logger.Info("services initialized")

	if *seed {
		if err := seedDatabase(ctx, dbConn, authService, gameService, *seedPassword, logger); err != nil {
			logger.Error("seeding failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	router := chi.NewRouter()
	api.SetupRoutes(router, api.Options{
		JWTSecret:          cfg.JWTSecretKey,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:             logger,
	}, api.Handlers{
		Auth:      handlers.NewAuthHandler(authService),
		Variant:   handlers.NewVariantHandler(),
		Game:      handlers.NewGameHandler(gameService),
		Card:      handlers.NewCardHandler(cardService),
		Prize:     handlers.NewPrizeHandler(prizeService),
		User:      handlers.NewUserHandler(userService),
		AdminUser: handlers.NewAdminUserHandler(userService),
		WebSocket: handlers.NewWebSocketHandler(hub, gameService, cfg.CORSAllowedOrigins, logger),
		Health:    handlers.NewHealthHandler(dbConn, rdb, logger),
	})
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	if rdb != nil {
		relay := broadcast.NewRedisRelay(rdb, cfg.RedisChannel, hub, logger)
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}
	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			return server.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("application exited")
}

func seedDatabase(
	ctx context.Context,
	dbConn *sql.DB,
	authService services.AuthService,
	gameService services.GameService,
	password string,
	logger *slog.Logger,
) error {
	if err := db.ApplySchema(ctx, dbConn); err != nil {
		return err
	}

	admin, err := authService.Register(ctx, services.RegisterInput{
		Username: "admin",
		Name:     "Administrator",
		Email:    "admin@example.com",
		Password: password,
	}, models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("seeding admin: %w", err)
	}

	var players []int
	for i := 1; i <= 2; i++ {
		u, err := authService.Register(ctx, services.RegisterInput{
			Username: fmt.Sprintf("user%d", i),
			Name:     fmt.Sprintf("Player %d", i),
			Email:    fmt.Sprintf("user%d@example.com", i),
			Password: password,
		}, models.RoleUser)
		if err != nil {
			return fmt.Errorf("seeding user%d: %w", i, err)
		}
		players = append(players, u.ID)
	}

	actor := models.Principal{UserID: admin.ID, Role: models.RoleAdmin}
	game, err := gameService.CreateGame(ctx, actor, services.CreateGameInput{
		Name:           "Sample game",
		Variant:        tombola.DefaultVariant,
		MaxCards:       3,
		OwnerID:        &admin.ID,
		AllowedUserIDs: players,
	})
	if err != nil {
		return fmt.Errorf("seeding game: %w", err)
	}

	logger.Info("database seeded",
		slog.Int("admin_id", admin.ID),
		slog.Any("player_ids", players),
		slog.Int("game_id", game.ID),
	)
	return nil
}
