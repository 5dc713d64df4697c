package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"

	"github.com/inkwell-notes/inkwell/internal/api"
	"github.com/inkwell-notes/inkwell/internal/auth"
	"github.com/inkwell-notes/inkwell/internal/config"
	"github.com/inkwell-notes/inkwell/internal/database"
	"github.com/inkwell-notes/inkwell/internal/middleware"
	"github.com/inkwell-notes/inkwell/internal/notes"
	"github.com/inkwell-notes/inkwell/internal/notify"
	"github.com/inkwell-notes/inkwell/internal/polish"
	iredis "github.com/inkwell-notes/inkwell/internal/redis"
	"github.com/inkwell-notes/inkwell/internal/server"
	"github.com/inkwell-notes/inkwell/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.DB.MigrationsPath != "" {
		if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
			slog.Error("running migrations", "error", err)
			os.Exit(1)
		}
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Usage-alert channel: NATS when configured, application log otherwise
	var notifier notify.Notifier = notify.LogNotifier{}
	var notifierHealthy func() bool
	if cfg.NATS.URL != "" {
		natsNotifier, err := notify.NewNATSNotifier(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to nats", "error", err)
			os.Exit(1)
		}
		defer natsNotifier.Close()
		notifier = natsNotifier
		notifierHealthy = natsNotifier.Healthy
	}

	// Auth
	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authSvc := auth.NewService(jwtManager, redisClient)
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo)
	authHandler := auth.NewHandler(authSvc, userSvc)

	// Notes
	noteRepo := notes.NewRepository(pool)
	noteSvc := notes.NewService(noteRepo)
	noteHandler := notes.NewHandler(noteSvc)

	// Polish
	polishStore := polish.NewRepository(pool)
	polishClient := polish.NewClient(cfg.AI)
	polishSvc := polish.NewService(polishStore, polishClient, notifier)
	polishHandler := polish.NewHandler(polishSvc, cfg.IsProduction())

	// Rate limits: login attempts per client address, polish calls per user
	authLimiter := middleware.NewRateLimiter(redisClient, 20, 60, clientAddr)
	polishLimiter := middleware.NewRateLimiter(redisClient, 10, 60, callerKey)

	// Router
	router := api.NewRouter(pool, api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		AuthRateLimiter:    authLimiter.Middleware,
		PolishRateLimiter:  polishLimiter.Middleware,
		NotifierHealthy:    notifierHealthy,
	}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Guest:    authHandler.Guest,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		CreateNote:          noteHandler.Create,
		ListNotes:           noteHandler.List,
		GetNote:             noteHandler.Get,
		UpdateNote:          noteHandler.Update,
		DeleteNote:          noteHandler.Delete,
		GetSharedNote:       noteHandler.GetShared,
		OwnershipMiddleware: noteHandler.OwnershipMiddleware,

		Polish:   polishHandler.Polish,
		GetQuota: polishHandler.Quota,
		TopUp:    polishHandler.TopUp,

		AuthMiddleware: auth.Middleware(authSvc),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func callerKey(r *http.Request) string {
	claims := auth.GetUserClaims(r.Context())
	if claims == nil {
		return ""
	}
	return claims.UserID
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
