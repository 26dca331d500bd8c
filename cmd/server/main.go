// notewise server entry point.
//
// Runs the notes REST API. With -backup it snapshots every user's notes to
// S3, prunes old snapshots and exits; with -restore <key> it restores one
// snapshot and exits.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kuitang/notewise/internal/api"
	"github.com/kuitang/notewise/internal/auth"
	"github.com/kuitang/notewise/internal/backup"
	"github.com/kuitang/notewise/internal/config"
	"github.com/kuitang/notewise/internal/crypto"
	"github.com/kuitang/notewise/internal/db"
	"github.com/kuitang/notewise/internal/notes"
	"github.com/kuitang/notewise/internal/obs"
	"github.com/kuitang/notewise/internal/ratelimit"
	"github.com/kuitang/notewise/internal/s3client"
)

const (
	shutdownTimeout = 15 * time.Second
	authRealm       = "notewise"
)

func main() {
	obs.Init()

	flags, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	cfg, err := config.LoadConfig(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server_exit", "error", err)
		os.Exit(1)
	}
}

// run builds the application and either serves until ctx is cancelled or
// runs one backup or restore.
func run(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	switch {
	case cfg.BackupOnly:
		return a.backupOnce(ctx, cfg.BackupKeep)
	case cfg.RestoreKey != "":
		_, err := a.restore(ctx, cfg.RestoreKey)
		return err
	}

	cfg.PrintStartupSummary()
	return serve(ctx, cfg.ListenAddr, a.handler)
}

// app holds the long-lived dependencies of a running server.
type app struct {
	db      *db.DB
	limiter *ratelimit.RateLimiter
	backups *backup.Manager
	handler http.Handler
	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	masterKey, err := crypto.DecodeMasterKey(cfg.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}

	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	a.db, err = db.Open(cfg.DatabasePath, crypto.DeriveKey(masterKey, crypto.PurposeDatabase))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := a.db.Close(); err != nil {
			slog.Error("database_close_failed", "error", err)
		}
	})

	objects, closeObjects, err := newObjectStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeObjects)
	if a.backups, err = backup.NewManager(a.db.Notes(), a.db.Users(), objects, masterKey); err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokens(cfg.TokenIssuer, crypto.DeriveKey(masterKey, crypto.PurposeTokenSigning), cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	a.limiter = ratelimit.NewRateLimiter(cfg.RateLimitConfig)
	a.closers = append(a.closers, a.limiter.Stop)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a.handler = api.NewRouter(api.Deps{
		Notes:      notes.NewService(a.db.Notes()),
		Users:      auth.NewUserService(a.db.Users(), auth.Argon2Hasher{}, tokens),
		Middleware: auth.NewMiddleware(tokens, authRealm),
		Limiter:    a.limiter,
		Metrics:    obs.NewMetrics(reg),
		Store:      a.db,
	})

	ok = true
	return a, nil
}

// backupOnce snapshots every user and then prunes each user's snapshots down
// to keep.
func (a *app) backupOnce(ctx context.Context, keep int) error {
	keys, snapErr := a.backups.SnapshotAll(ctx)
	removed, pruneErr := a.backups.PruneAll(ctx, keep)
	slog.Info("backup_complete", "snapshots", len(keys), "pruned", removed, "keep", keep)
	return errors.Join(snapErr, pruneErr)
}

// restore replaces one user's notes with the snapshot stored at key.
func (a *app) restore(ctx context.Context, key string) (*backup.RestoreResult, error) {
	result, err := a.backups.Restore(ctx, key, a.db.Notes())
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", key, err)
	}
	slog.Info("restore_complete", "owner_id", result.OwnerID, "restored", result.Restored,
		"removed", result.Removed, "safety_key", result.SafetyKey)
	return result, nil
}

// newObjectStore connects to the configured bucket, or to an in-memory S3
// server when -no-s3 is set.
func newObjectStore(ctx context.Context, cfg *config.Config) (*s3client.Client, func(), error) {
	if cfg.NoS3 {
		client, closeFn, err := s3client.NewInMemory(ctx, cfg.AWSBucketName)
		if err != nil {
			return nil, nil, fmt.Errorf("in-memory s3: %w", err)
		}
		slog.Warn("using_in_memory_s3", "bucket", cfg.AWSBucketName)
		return client, closeFn, nil
	}

	client, err := s3client.New(ctx, s3client.Config{
		Endpoint:        cfg.AWSEndpointS3,
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		BucketName:      cfg.AWSBucketName,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("s3 client: %w", err)
	}
	return client, func() {}, nil
}

// Close releases everything newApp acquired, in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests.
func serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("server_shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
