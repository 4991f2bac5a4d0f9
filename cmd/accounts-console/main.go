package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-print"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/config"
	"github.com/goliatone/go-accounts/httpapi"
	"github.com/goliatone/go-accounts/provider/local"
	"github.com/goliatone/go-accounts/store/bunstore"
)

func main() {
	cfg := config.FromEnv()

	base := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithName("accounts"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)
	logger := base.GetLogger("accounts-console")

	if !cfg.IsProd() {
		logger.Debug("configuration", "config", print.MaybePrettyJSON(redacted(cfg)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal("create data dir", "error", err)
		}
	}

	db, err := bunstore.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal("open database", "error", err)
	}
	defer db.Close()

	// Stores
	store := bunstore.New(db)
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal("migrate directory", "error", err)
	}
	identities := local.New(db,
		local.WithBcryptCost(cfg.BcryptCost),
		local.WithLogger(base.GetLogger("accounts.provider")),
	)
	if err := identities.Migrate(ctx); err != nil {
		logger.Fatal("migrate credentials", "error", err)
	}

	// Services
	directory := accounts.NewDirectory(store)
	trail := accounts.NewAuditTrail(directory, accounts.WithAuditLoggerProvider(base))
	manager := accounts.NewManager(directory, identities,
		accounts.WithManagerConfig(cfg.Accounts()),
		accounts.WithManagerAuditSink(trail),
		accounts.WithManagerLoggerProvider(base),
	)

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:        base.GetLogger("accounts.http"),
		Addr:          cfg.HTTPAddr,
		Manager:       manager,
		Trail:         accounts.NewTrailReader(directory),
		Authenticator: identities,
		Tokens:        local.NewTokenIssuer([]byte(cfg.SigningKey), cfg.Issuer, cfg.TokenTTL),
		TokenLookup:   cfg.TokenLookup,
		SecureCookies: cfg.IsProd(),
	})

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", "error", err)
	}
	trail.Wait()
}

func redacted(cfg config.Config) config.Config {
	if cfg.SigningKey != "" {
		cfg.SigningKey = "***"
	}
	return cfg
}
