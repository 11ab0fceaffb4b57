package app

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/redis/go-redis/v9"

	httpapi "github.com/proefritapp/identity/internal/identity/http"
	"github.com/proefritapp/identity/internal/identity/service"
	"github.com/proefritapp/identity/internal/identity/store"
	"github.com/proefritapp/identity/internal/identity/store/drivers/sqlite"
	"github.com/proefritapp/identity/pkg/cryptox"
	"github.com/proefritapp/identity/pkg/jwtx"
	"github.com/proefritapp/identity/pkg/limitx"
	"github.com/proefritapp/identity/pkg/mailx"
	"github.com/proefritapp/identity/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the identity service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      store.Store
	limiter *limitx.Limiter
	signer  *jwtx.Signer
	mail    mailx.EmailSender

	accountService   *service.AccountService
	tokenService     *service.TokenService
	twoFactorService *service.TwoFactorService
	feedbackService  *service.FeedbackService
	tenantService    *service.TenantService
	housekeeping     *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "proefrit-identity",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initSigner(); err != nil {
		return nil, err
	}
	if err := app.initMail(); err != nil {
		return nil, err
	}
	app.initLimiter()
	app.initServices()
	app.initHTTP()

	if err := app.bootstrapSuperAdmin(); err != nil {
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeeping.Start()

	app.logger.Info("identity service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down identity service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeping.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("identity service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initSigner loads the session signing key, generating an ephemeral one when
// no key file is configured. Ephemeral keys invalidate sessions on restart,
// which is acceptable with 15 minute session lifetimes.
func (app *Application) initSigner() error {
	if app.cfg.SigningKeyFile != "" {
		pemKey, err := os.ReadFile(app.cfg.SigningKeyFile)
		if err != nil {
			return fmt.Errorf("failed to read signing key: %w", err)
		}
		signer, err := jwtx.NewSigner("primary", pemKey)
		if err != nil {
			return fmt.Errorf("failed to load signing key: %w", err)
		}
		app.signer = signer
		app.logger.Info("session signing key loaded", "kid", signer.KID())
		return nil
	}

	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate signing key: %w", err)
	}
	signer, err := jwtx.NewSignerFromKey("ephemeral", priv)
	if err != nil {
		return err
	}
	app.signer = signer
	app.logger.Info("ephemeral session signing key generated")
	return nil
}

// initLimiter picks the counter store: Redis when configured so several
// instances share budgets, in-process memory otherwise.
func (app *Application) initLimiter() {
	if app.cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     app.cfg.RedisAddr,
			Password: app.cfg.RedisPassword,
		})
		app.limiter = limitx.New(limitx.NewRedisStore(client), limitx.DefaultPolicies())
		app.logger.Info("rate limiter using redis counters", "addr", app.cfg.RedisAddr)
		return
	}

	app.limiter = limitx.New(limitx.NewMemoryStore(), limitx.DefaultPolicies())
	app.logger.Info("rate limiter using in-memory counters (single instance only)")
}

func (app *Application) initMail() error {
	switch strings.ToLower(app.cfg.MailProvider) {
	case "ses":
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(app.cfg.AWSRegion),
		)
		if err != nil {
			return fmt.Errorf("failed to load AWS config: %w", err)
		}
		app.mail = mailx.NewSESSender(ses.NewFromConfig(awsCfg), app.cfg.MailFrom)
		app.logger.Info("email via SES", "from", app.cfg.MailFrom, "region", app.cfg.AWSRegion)
	default:
		app.mail = &mailx.ConsoleSender{Logger: app.logger}
		app.logger.Info("email via console transport (dev)")
	}
	return nil
}

func (app *Application) initServices() {
	app.tokenService = &service.TokenService{Store: app.db}

	app.accountService = &service.AccountService{
		Store:      app.db,
		Limiter:    app.limiter,
		Tokens:     app.tokenService,
		Mail:       app.mail,
		Signer:     app.signer,
		Issuer:     app.cfg.Issuer,
		BaseURL:    app.cfg.BaseURL,
		SessionTTL: app.cfg.SessionTTL,
	}

	app.twoFactorService = &service.TwoFactorService{
		Store:   app.db,
		Limiter: app.limiter,
		Issuer:  app.cfg.Issuer,
	}

	app.feedbackService = &service.FeedbackService{
		Store:   app.db,
		Limiter: app.limiter,
		Tokens:  app.tokenService,
		Mail:    app.mail,
		BaseURL: app.cfg.BaseURL,
	}

	app.tenantService = &service.TenantService{Store: app.db}

	app.housekeeping = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		jwtx.NewVerifier(app.signer.Public(), app.cfg.Issuer),
		BuildVersion,
		app.db,
		app.limiter,
		app.logger,
	)

	router.Accounts = app.accountService
	router.Tokens = app.tokenService
	router.TwoFactor = app.twoFactorService
	router.Feedback = app.feedbackService
	router.Tenants = app.tenantService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

func (app *Application) bootstrapSuperAdmin() error {
	if app.cfg.SuperAdminEmail == "" || app.cfg.SuperAdminPassword == "" {
		return nil
	}

	ctx := slogx.WithContext(context.Background(), app.logger)
	if _, err := app.accountService.EnsureSuperAdmin(ctx, app.cfg.SuperAdminEmail, app.cfg.SuperAdminPassword); err != nil {
		return fmt.Errorf("failed to bootstrap super admin: %w", err)
	}
	return nil
}
