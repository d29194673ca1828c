package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"synergysphere/internal/config"
	"synergysphere/internal/db"
	"synergysphere/internal/email"
	apihttp "synergysphere/internal/http"
	"synergysphere/internal/repository"
	"synergysphere/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const memoryDatabaseURL = "memory://"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	var (
		userRepo    repository.UserRepository
		profileRepo repository.ProfileRepository
		projectRepo repository.ProjectRepository
	)
	if cfg.DatabaseURL == memoryDatabaseURL {
		logger.Warn("using in-memory store, data is lost on restart")
		store := repository.NewMemoryStore()
		userRepo, profileRepo, projectRepo = store.Users(), store.Profiles(), store.Projects()
	} else {
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		if cfg.AutoMigrate {
			if err := db.Migrate(ctx, pool); err != nil {
				logger.Fatal("db migrate", zap.Error(err))
			}
		}
		userRepo = repository.NewPgUserRepository(pool)
		profileRepo = repository.NewPgProfileRepository(pool)
		projectRepo = repository.NewPgProjectRepository(pool)
	}

	loginWindow := time.Duration(cfg.LoginRateWindowMinutes) * time.Minute
	var (
		loginLimiter = service.NewLoginRateLimiter(loginWindow, cfg.LoginRateMax)
		tokenStore   = service.NewMemoryRefreshTokenStore()
		redisClient  *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-process stores", zap.Error(err))
		} else {
			loginLimiter = service.NewRedisLoginRateLimiter(redisClient, loginWindow, cfg.LoginRateMax)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
		}
		cancel()
	}
	jwtSvc := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}
	if cfg.PublicAPIKey == "" {
		logger.Warn("public api key not configured, apikey header is not checked")
	}

	authSvc := service.NewAuthService(logger, userRepo, profileRepo, jwtSvc, loginLimiter)
	inviter := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			inviter = sender
		}
	}
	projectSvc := service.NewProjectService(logger, projectRepo, userRepo).WithInviter(inviter)
	var routerOpts []apihttp.RouterOption
	if cfg.MetricsEnabled {
		routerOpts = append(routerOpts, apihttp.WithMetrics())
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		routerOpts = append(routerOpts, apihttp.WithCORS(cfg.CORSAllowedOrigins...))
	}
	if cfg.RateLimitRPS > 0 {
		routerOpts = append(routerOpts, apihttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}
	router := apihttp.NewRouter(logger, cfg.PublicAPIKey, jwtSvc,
		apihttp.NewAuthHandler(logger, authSvc),
		apihttp.NewProjectHandler(logger, projectSvc),
		routerOpts...,
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
