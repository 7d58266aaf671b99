package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"kassabook.org/internal/adminauth"
	"kassabook.org/internal/audit"
	"kassabook.org/internal/config"
	"kassabook.org/internal/dataquality"
	"kassabook.org/internal/httpapi"
	"kassabook.org/internal/obs"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	_ = godotenv.Load()

	obs.Init()
	obs.InitBuildInfo(version, commit)
	log := obs.Logger()
	defer obs.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	var db *sql.DB
	if cfg.PGDSN != "" {
		db, err = sql.Open("pgx", cfg.PGDSN)
		if err != nil {
			log.Fatal("open db", zap.Error(err))
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	} else {
		log.Fatal("KASSABOOK_PG_DSN is required")
	}

	tokens, err := adminauth.NewTokenService(cfg.SigningKey,
		adminauth.WithAccessTTL(cfg.AccessTTL),
		adminauth.WithRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		log.Fatal("token service", zap.Error(err))
	}

	entryStore := audit.NewPGEntryStore(db)
	recorder, err := audit.NewRecorder(entryStore)
	if err != nil {
		log.Fatal("audit recorder", zap.Error(err))
	}

	var blacklist adminauth.TokenBlacklist = adminauth.NoopBlacklist{}
	var redisList *adminauth.RedisBlacklist
	if cfg.RedisAddr != "" {
		redisList = adminauth.NewRedisBlacklist(cfg.RedisAddr, cfg.RedisPassword)
		blacklist = redisList
		log.Info("token revocation backed by redis", zap.String("addr", cfg.RedisAddr))
	} else {
		log.Warn("no redis configured, logout will not revoke tokens early")
	}

	store := adminauth.NewPGStore(db)
	auth, err := adminauth.NewService(store, tokens,
		adminauth.WithBlacklist(blacklist),
		adminauth.WithRecorder(recorder),
		adminauth.WithLockoutPolicy(cfg.LockoutThreshold, cfg.LockoutWindow),
		adminauth.WithPasswordComplexity(cfg.PasswordComplexity),
	)
	if err != nil {
		log.Fatal("auth service", zap.Error(err))
	}

	quality, err := dataquality.NewService(dataquality.NewPGStore(db),
		dataquality.WithRecorder(recorder))
	if err != nil {
		log.Fatal("data quality service", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := auth.EnsureBuiltins(ctx); err != nil {
		cancel()
		log.Fatal("seed builtin roles", zap.Error(err))
	}
	if username := os.Getenv("KASSABOOK_ADMIN_BOOTSTRAP_USERNAME"); username != "" {
		op, err := auth.BootstrapSuperadmin(ctx,
			username,
			os.Getenv("KASSABOOK_ADMIN_BOOTSTRAP_EMAIL"),
			os.Getenv("KASSABOOK_ADMIN_BOOTSTRAP_PASSWORD"),
		)
		if err != nil {
			cancel()
			log.Fatal("bootstrap superadmin", zap.Error(err))
		}
		if op != nil {
			log.Info("bootstrapped first superadmin", zap.String("username", op.Username))
		}
	}
	cancel()

	api := httpapi.New(httpapi.Deps{
		DB:       db,
		Auth:     auth,
		Quality:  quality,
		Logs:     entryStore,
		Recorder: recorder,
		Logger:   log,
		Version:  version,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("starting kassabook-admin", zap.String("version", version), zap.String("addr", srv.Addr))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	if redisList != nil {
		_ = redisList.Close()
	}
	_ = db.Close()
	log.Info("stopped")
}
