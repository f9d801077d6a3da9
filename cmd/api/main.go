package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blog-platform/internal/config"
	"blog-platform/internal/db"
	"blog-platform/internal/email"
	apihttp "blog-platform/internal/http"
	"blog-platform/internal/realtime"
	"blog-platform/internal/repository"
	"blog-platform/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	var logger *zap.Logger
	if cfg.IsDevelopment() {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if cfg.DBRunMigrations {
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
	}

	userRepo := repository.NewPgUserRepository(pool)
	postRepo := repository.NewPgPostRepository(pool)
	commentRepo := repository.NewPgCommentRepository(pool)

	var emailSender email.Sender = email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}
	if !emailSender.Enabled() {
		logger.Warn("email delivery disabled")
	}

	resetLimiter := service.NewRequestLimiter(cfg.ForgotPasswordWindow, cfg.ForgotPasswordMax)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory limiter", zap.Error(err))
		} else {
			resetLimiter = service.NewRedisRequestLimiter(redisClient, logger, "auth:forgot:", cfg.ForgotPasswordWindow, cfg.ForgotPasswordMax)
		}
		cancel()
	}

	tokenSvc := service.NewTokenService(service.TokenConfig{
		AccessSecret:         cfg.JWTAccessSecret,
		RefreshSecret:        cfg.JWTRefreshSecret,
		Issuer:               cfg.JWTIssuer,
		AccessTTL:            cfg.JWTAccessTTL,
		RefreshTTL:           cfg.JWTRefreshTTL,
		EmailVerificationTTL: cfg.EmailVerificationTTL,
		PasswordResetTTL:     cfg.PasswordResetTTL,
	})
	if cfg.JWTAccessTTL > 24*time.Hour {
		logger.Warn("access token ttl is long for a bearer token", zap.Duration("ttl", cfg.JWTAccessTTL))
	}

	authSvc := service.NewAuthService(logger, userRepo, tokenSvc, emailSender, resetLimiter, service.AuthConfig{
		Lockout: service.LockoutPolicy{
			MaxAttempts:  cfg.MaxLoginAttempts,
			LockDuration: cfg.LockDuration,
		},
		MaxSessions:    cfg.MaxSessions,
		StrictRotation: cfg.StrictRotation,
		AppBaseURL:     cfg.AppBaseURL,
	})

	hub := realtime.NewHub(logger)
	postSvc := service.NewPostService(logger, postRepo, commentRepo, realtime.NewCommentEvents(hub))
	wsServer := realtime.NewServer(logger, realtime.NewGate(logger, authSvc), hub, cfg.WSAllowedOrigins)

	gate := apihttp.NewAuthGate(logger, authSvc)
	authHandler := apihttp.NewAuthHandler(logger, authSvc)
	postHandler := apihttp.NewPostHandler(logger, postSvc)
	router := apihttp.NewRouter(logger, gate, authHandler, postHandler, wsServer)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
}
