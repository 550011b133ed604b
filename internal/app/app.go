package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"api_pos/api"
	"api_pos/internal/auth"
	"api_pos/internal/catalog"
	"api_pos/internal/codegen"
	"api_pos/internal/config"
	"api_pos/internal/dashboard"
	"api_pos/internal/database"
	"api_pos/internal/payment"
	"api_pos/internal/realtime"
	"api_pos/internal/sales"
	"api_pos/internal/staff"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// App owns the long-lived resources of a running API.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	db      *gorm.DB
	redis   *redis.Client
	gateway *payment.Gateway

	Auth   *auth.Service
	engine *gin.Engine
}

// NewLogger builds the zap logger for the configured environment.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Open connects to the database only, for commands that do not serve HTTP.
func Open(cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.Open(cfg.DB, logger)
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, logger: logger, db: db}
	a.Auth = auth.NewService(auth.NewGormStorage(db), auth.NewTokens(cfg.JWT.Secret, cfg.JWT.Expires), logger)
	return a, nil
}

// New wires every service and the HTTP router.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	a, err := Open(cfg, logger)
	if err != nil {
		return nil, err
	}

	locker, err := a.locker()
	if err != nil {
		a.Close()
		return nil, err
	}
	codes := codegen.New(locker)

	hub := realtime.NewHub(logger, allowedOrigin(cfg.CORS))
	a.gateway = payment.NewGateway(payment.Config{
		BaseURL:         cfg.Mpesa.BaseURL,
		ConsumerKey:     cfg.Mpesa.ConsumerKey,
		ConsumerSecret:  cfg.Mpesa.ConsumerSecret,
		ShortCode:       cfg.Mpesa.ShortCode,
		PassKey:         cfg.Mpesa.PassKey,
		CallbackURL:     cfg.Mpesa.CallbackURL,
		PartyB:          cfg.Mpesa.PartyB,
		TransactionType: payment.TransactionTypePayBill,
		Timeout:         cfg.Mpesa.Timeout,
	}, logger)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	a.engine = gin.Default()
	api.InitRoutes(a.engine, api.Dependencies{
		Sales:   sales.NewService(sales.NewGormStorage(a.db), codes, logger),
		Catalog: catalog.NewService(catalog.NewGormStorage(a.db), codes, logger),
		Auth:    a.Auth,
		Payments: payment.NewService(payment.NewGormStorage(a.db), a.gateway, logger,
			payment.WithPublisher(hub),
			payment.WithCountryCode(cfg.Mpesa.CountryCode),
		),
		Dashboard:   dashboard.NewService(a.db, logger),
		Staff:       staff.NewService(staff.NewGormStorage(a.db), codes, logger),
		Hub:         hub,
		Logger:      logger,
		CORSOrigins: cfg.CORS,
		TaxRate:     cfg.TaxRate,
	})
	return a, nil
}

// locker shares code generation locks through Redis when configured.
func (a *App) locker() (codegen.Locker, error) {
	if a.cfg.Redis.Addr == "" {
		return codegen.NewLocalLocker(), nil
	}
	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", a.cfg.Redis.Addr, err)
	}
	a.logger.Info("redis connected", zap.String("addr", a.cfg.Redis.Addr))
	return codegen.NewRedisLocker(a.redis, 10*time.Second, a.logger), nil
}

func (a *App) Migrate() error {
	if err := database.Migrate(a.db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	a.logger.Info("database migrated")
	return nil
}

func (a *App) Handler() http.Handler {
	return a.engine
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (a *App) Close() {
	if a.gateway != nil {
		_ = a.gateway.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.logger.Sync()
}

func allowedOrigin(origins []string) func(r *http.Request) bool {
	allowed := map[string]bool{}
	for _, o := range origins {
		if o == "*" {
			return nil
		}
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return allowed[u.Scheme+"://"+u.Host]
	}
}
