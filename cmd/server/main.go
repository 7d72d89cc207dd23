package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/crealith/authcore/docs"
	"github.com/crealith/authcore/internal/app/auth"
	authredis "github.com/crealith/authcore/internal/app/auth/repo/redis"
	authhttp "github.com/crealith/authcore/internal/app/auth/transport/http"
	authusecase "github.com/crealith/authcore/internal/app/auth/usecase"
	"github.com/crealith/authcore/internal/app/session"
	sessionredis "github.com/crealith/authcore/internal/app/session/repo/redis"
	sessionhttp "github.com/crealith/authcore/internal/app/session/transport/http"
	"github.com/crealith/authcore/internal/app/user"
	userrepo "github.com/crealith/authcore/internal/app/user/repo/gorm"
	"github.com/crealith/authcore/internal/infrastructure/httpx"
	"github.com/crealith/authcore/internal/infrastructure/logger"
	"github.com/crealith/authcore/internal/infrastructure/mail"
	"github.com/crealith/authcore/internal/infrastructure/ratelimit"
	"github.com/crealith/authcore/internal/infrastructure/redisx"
	"github.com/crealith/authcore/internal/infrastructure/secure"
	"github.com/crealith/authcore/internal/infrastructure/system"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	httpSwagger "github.com/swaggo/http-swagger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// @title           Crealith Auth API
// @version         1.0
// @description     Token lifecycle and session management for the Crealith marketplace.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := loadConfig()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(cfg.LogLevel.zeroLog())
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Overload(".env"); err != nil {
		log.Debug().Err(err).Msg("failed to load .env file, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- postgres
	dsn := fmt.Sprintf("%s password=%s", cfg.DatabaseDSN, os.Getenv("DB_PASSWORD"))
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get sql.DB handle")
	}
	if err = goose.SetDialect("postgres"); err != nil {
		log.Fatal().Err(err).Msg("failed to set goose dialect")
	}
	if err = goose.Up(sqlDB, "migrations"); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	// --- redis
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	redisClient, err := redisx.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer func() { _ = redisClient.Close() }()

	// --- generators and codec
	idGen := &system.UUIDv7Generator{}
	rndGen := &system.RNDGenerator{}
	timeGen := &system.TimeGenerator{}
	passwordHasher := secure.NewPasswordHasher()

	cfg.Codec.AccessSecret = []byte(os.Getenv("JWT_ACCESS_SECRET"))
	cfg.Codec.RefreshSecret = []byte(os.Getenv("JWT_REFRESH_SECRET"))
	codec, err := auth.NewTokenCodec(cfg.Codec, idGen, timeGen)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token codec")
	}

	// --- user
	userRepo := userrepo.NewRepository(db)
	userCore, err := user.NewCore(userRepo, idGen, passwordHasher, cfg.User)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create user core")
	}

	// --- auth
	authRepo, err := authredis.NewRepository(redisClient, timeGen, authredis.Config{Lockout: cfg.Lockout})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create auth repository")
	}
	authCore, err := auth.NewCore(authRepo, codec, rndGen, timeGen, cfg.Auth)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create auth core")
	}

	// --- sessions
	sessionRepo, err := sessionredis.NewRepository(redisClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create session repository")
	}
	sessionManager, err := session.NewManager(sessionRepo, rndGen, timeGen, cfg.Session)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create session manager")
	}

	// --- mail
	cfg.Mail.Password = os.Getenv("SMTP_PASSWORD")
	mailer, err := mail.NewMailer(cfg.Mail)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create mailer")
	}

	authService := authusecase.NewService(authCore, userCore, mailer, passwordHasher)
	authHandler := authhttp.NewHandler(authService, sessionManager, cfg.Cookie)
	sessionHandler := sessionhttp.NewHandler(sessionManager)

	credentialLimiter := ratelimit.NewLimiter(cfg.RateLimit)
	defer credentialLimiter.Close()

	// --- set up chi router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(logger.Logger)
	r.Use(httpx.MaxBodyBytes(cfg.MaxBodySize))
	r.Use(sessionhttp.SessionMiddleware(sessionManager))

	// credential endpoints, rate limited per client IP
	r.Group(func(r chi.Router) {
		r.Use(credentialLimiter.Middleware)
		r.Post("/auth/register", authHandler.Register)               // POST /auth/register
		r.Post("/auth/login", authHandler.Login)                     // POST /auth/login
		r.Post("/auth/forgot-password", authHandler.ForgotPassword)  // POST /auth/forgot-password
		r.Post("/auth/reset-password", authHandler.ResetPassword)    // POST /auth/reset-password
	})

	// token endpoints, the refresh token itself is the credential
	r.Group(func(r chi.Router) {
		r.Post("/auth/refresh", authHandler.Refresh) // POST /auth/refresh
		r.Post("/auth/logout", authHandler.Logout)   // POST /auth/logout
	})

	// with bearer token
	r.Group(func(r chi.Router) {
		r.Use(authhttp.AuthMiddleware(codec))

		r.Post("/auth/logout-all", authHandler.LogoutAll)            // POST /auth/logout-all
		r.Get("/auth/me", authHandler.Me)                            // GET  /auth/me
		r.Post("/auth/change-password", authHandler.ChangePassword)  // POST /auth/change-password

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", sessionHandler.ListSessions)      // GET    /sessions
			r.Delete("/", sessionHandler.DeleteAllSessions) // DELETE /sessions

			r.Route(fmt.Sprintf("/{%s}", sessionhttp.URLParamSessionID), func(r chi.Router) {
				r.Delete("/", sessionHandler.DeleteSession) // DELETE /sessions/{session_id}
			})
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := redisx.HealthCheck(req.Context(), redisClient); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
		if err := sqlDB.PingContext(req.Context()); err != nil {
			http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/swagger/*", httpSwagger.WrapHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Msg(fmt.Sprintf("starting server on :%s", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info().Msg("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
