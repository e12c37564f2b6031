package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"photofolio/internal/auth"
	"photofolio/internal/category"
	"photofolio/internal/db"
	"photofolio/internal/maintenance"
	"photofolio/internal/media"
	"photofolio/internal/observability"
	"photofolio/internal/photo"
	"photofolio/internal/security"
	"photofolio/internal/settings"
	"photofolio/internal/user"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
	StartSweeper  bool
}

type Runtime struct {
	Handler http.Handler
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger()

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	cloudinaryURL, err := mustEnv("CLOUDINARY_URL")
	if err != nil {
		return nil, err
	}

	secrets, err := loadSecrets()
	if err != nil {
		return nil, err
	}
	policy := loadPolicy()

	sentryCfg := observability.SentryConfig{
		DSN:         os.Getenv("SENTRY_DSN"),
		Environment: envOrDefault("APP_ENV", "development"),
		Release:     os.Getenv("APP_RELEASE"),
	}
	if err := observability.InitSentry(sentryCfg); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(envIntOrDefault("DB_MAX_OPEN_CONNS", 10))
	database.SetMaxIdleConns(envIntOrDefault("DB_MAX_IDLE_CONNS", 5))
	database.SetConnMaxLifetime(envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30))
	database.SetConnMaxIdleTime(envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10))

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	clock := security.SystemClock()
	tokens := security.NewTokenService(secrets, policy, clock)
	tracker := security.NewFailedLoginTracker(nil, policy, clock)
	limiter := security.NewRateLimiter(nil, policy, clock)
	signer := security.NewRequestSigner(secrets.Signing, nil, policy, clock)
	guard := security.NewMiddleware(tokens, signer, limiter)

	sweeper := security.NewSweeper(policy.SweepInterval,
		security.SweepTarget{Name: "lockouts", Sweep: tracker.SweepExpired},
		security.SweepTarget{Name: "rate_windows", Sweep: limiter.SweepStale},
		security.SweepTarget{Name: "nonces", Sweep: signer.SweepNonces},
	)
	if options.StartSweeper {
		sweeper.Start()
	}

	authRepo := auth.NewRepository(database)
	authService := auth.NewService(authRepo, tokens, tracker)
	secureCookies := envOrDefault("APP_ENV", "development") == "production"
	authHandler := auth.NewHandler(authService, policy, secureCookies)

	if adminUsername, adminPassword := os.Getenv("ADMIN_USERNAME"), os.Getenv("ADMIN_PASSWORD"); adminUsername != "" && adminPassword != "" {
		username := strings.TrimSpace(strings.ToLower(adminUsername))
		if err := authRepo.BootstrapAdmin(context.Background(), username, strings.TrimSpace(adminPassword)); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	cloudinaryClient, err := media.NewCloudinary(cloudinaryURL)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}

	photoHandler := photo.NewHandler(photo.NewRepository(database), cloudinaryClient)
	categoryHandler := category.NewHandler(category.NewRepository(database))
	userHandler := user.NewHandler(user.NewRepository(database))
	settingsHandler := settings.NewHandler(settings.NewRepository(database))
	mediaUploadHandler := media.NewUploadHandler(cloudinaryClient)
	sweepHandler := maintenance.NewSweepHandler(sweeper, logger, os.Getenv("CRON_SECRET"))

	loginLimit := guard.RateLimit("/auth/login", envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10), envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60))
	refreshLimit := guard.RateLimit("/auth/refresh", envIntOrDefault("REFRESH_RATE_LIMIT_MAX", 30), envSecondsOrDefault("REFRESH_RATE_LIMIT_WINDOW_SECONDS", 60))

	admin := func(h http.HandlerFunc) http.Handler {
		return guard.Authenticate(h)
	}
	adminSigned := func(h http.HandlerFunc) http.Handler {
		return guard.Authenticate(guard.RequireSigned(h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /auth/login", loginLimit(http.HandlerFunc(authHandler.Login)))
	mux.Handle("POST /auth/refresh", refreshLimit(http.HandlerFunc(authHandler.Refresh)))
	mux.HandleFunc("POST /auth/logout", authHandler.Logout)
	mux.Handle("GET /auth/me", admin(authHandler.Me))

	mux.HandleFunc("GET /health", healthHandler(database))

	mux.HandleFunc("GET /photos", photoHandler.ListPhotos)
	mux.HandleFunc("GET /photos/{id}", photoHandler.GetPhoto)
	mux.Handle("POST /photos", admin(photoHandler.CreatePhoto))
	mux.Handle("PUT /photos/{id}", admin(photoHandler.UpdatePhoto))
	mux.Handle("DELETE /photos/{id}", admin(photoHandler.DeletePhoto))

	mux.HandleFunc("GET /categories", categoryHandler.ListCategories)
	mux.Handle("POST /categories", admin(categoryHandler.CreateCategory))
	mux.Handle("PUT /categories/{id}", admin(categoryHandler.UpdateCategory))
	mux.Handle("DELETE /categories/{id}", admin(categoryHandler.DeleteCategory))

	mux.Handle("GET /users", admin(userHandler.ListUsers))
	mux.Handle("POST /users", admin(userHandler.CreateUser))
	mux.Handle("PUT /users/{id}", admin(userHandler.UpdateUser))
	mux.Handle("DELETE /users/{id}", adminSigned(userHandler.DeleteUser))

	mux.HandleFunc("GET /settings", settingsHandler.GetSettings)
	mux.Handle("PUT /settings", adminSigned(settingsHandler.UpdateSettings))

	mux.Handle("POST /media/upload", admin(mediaUploadHandler.Upload))

	mux.HandleFunc("GET /internal/maintenance/sweep", sweepHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/sweep", sweepHandler.Handle)

	handler := observability.RecoverMiddleware(logger, observability.RequestLoggingMiddleware(logger, mux))

	return &Runtime{
		Handler: handler,
		Close: func() error {
			sweeper.Stop()
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

func loadSecrets() (security.Secrets, error) {
	access, err := mustEnv("ACCESS_TOKEN_SECRET")
	if err != nil {
		return security.Secrets{}, err
	}
	refresh, err := mustEnv("REFRESH_TOKEN_SECRET")
	if err != nil {
		return security.Secrets{}, err
	}
	csrf, err := mustEnv("CSRF_SECRET")
	if err != nil {
		return security.Secrets{}, err
	}
	signing, err := mustEnv("API_SIGNING_SECRET")
	if err != nil {
		return security.Secrets{}, err
	}
	return security.NewSecrets(access, refresh, csrf, signing)
}

func loadPolicy() security.Policy {
	return security.Policy{
		AccessTTL:        envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 15),
		RefreshTTL:       envHoursOrDefault("REFRESH_TOKEN_TTL_HOURS", 168),
		MaxLoginAttempts: envIntOrDefault("LOGIN_MAX_ATTEMPTS", 3),
		AttemptWindow:    envMinutesOrDefault("LOGIN_ATTEMPT_WINDOW_MINUTES", 30),
		LockoutDuration:  envMinutesOrDefault("LOGIN_LOCK_MINUTES", 5),
		SignatureMaxAge:  envMinutesOrDefault("SIGNATURE_MAX_AGE_MINUTES", 5),
		SweepInterval:    envMinutesOrDefault("SECURITY_SWEEP_INTERVAL_MINUTES", 5),
		RateStaleAfter:   envMinutesOrDefault("RATE_WINDOW_STALE_MINUTES", 10),
	}.Normalize()
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := database.PingContext(ctx); err != nil {
			security.WriteResponse(w, security.TypeServerError, "degraded", nil)
			return
		}
		security.WriteResponse(w, security.TypeSuccess, "", map[string]string{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envHoursOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Hour
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
