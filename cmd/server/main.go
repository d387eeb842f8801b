// CodeConsole Server
//
// Features:
// - Prometheus metrics & structured logging (zap)
// - Sandboxed source file read/write with atomic version backups
// - Local or S3 backup storage, optional Postgres audit index
// - Build & deploy orchestration with live status
// - Gemini-backed AI assist actions
// - SSE change feed
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emberworks/codeconsole/internal/api"
	"github.com/emberworks/codeconsole/internal/assist"
	"github.com/emberworks/codeconsole/internal/auth"
	"github.com/emberworks/codeconsole/internal/backup"
	"github.com/emberworks/codeconsole/internal/backup/local"
	s3backup "github.com/emberworks/codeconsole/internal/backup/s3"
	"github.com/emberworks/codeconsole/internal/config"
	"github.com/emberworks/codeconsole/internal/deploy"
	"github.com/emberworks/codeconsole/internal/events"
	"github.com/emberworks/codeconsole/internal/index"
	"github.com/emberworks/codeconsole/internal/logging"
	"github.com/emberworks/codeconsole/internal/metrics"
	"github.com/emberworks/codeconsole/internal/store"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	// Initialize structured logging
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("CodeConsole Server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("sandbox", cfg.SandboxRoot))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize backup backend
	var backend backup.Backend
	switch cfg.BackupBackend {
	case "s3":
		backend, err = s3backup.New(ctx, s3backup.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	default:
		backend, err = local.New(cfg.BackupDir)
	}
	if err != nil {
		logging.Fatal("backup backend init failed", zap.Error(err))
	}
	defer backend.Close()
	logging.Info("backup backend initialized", zap.String("type", backend.Type()))

	// Optional Postgres audit index
	var auditIndex *backup.Index
	if cfg.DatabaseURL != "" {
		auditIndex, err = backup.OpenIndex(cfg.DatabaseURL)
		if err != nil {
			logging.Fatal("backup index connection failed", zap.Error(err))
		}
		defer auditIndex.Close()
		logging.Info("backup audit index connected")
	}

	backups := backup.NewService(backend, auditIndex, cfg.BackupRetention)

	// Content store and directory index over the sandbox
	contentStore := store.New(cfg.SandboxRoot, backups)
	dirIndex := index.New(cfg.SandboxRoot)

	// Build & deploy orchestrator
	orchestrator := deploy.New(deploy.Config{
		WorkDir:       cfg.BuildWorkDir,
		BuildCmd:      cfg.BuildCmd,
		DeployCmd:     cfg.DeployCmd,
		BuildTimeout:  cfg.BuildTimeout,
		DeployTimeout: cfg.DeployTimeout,
	}, contentStore)

	// AI assist pipeline (optional)
	var pipeline *assist.Pipeline
	if cfg.GeminiAPIKey != "" {
		gemini, err := assist.NewGemini(ctx, cfg.GeminiAPIKey, cfg.AIModel)
		if err != nil {
			logging.Fatal("gemini client init failed", zap.Error(err))
		}
		pipeline = assist.NewPipeline(gemini)
		logging.Info("assist pipeline initialized", zap.String("model", cfg.AIModel))
	} else {
		logging.Warn("GEMINI_API_KEY not set, assist endpoint disabled")
	}

	// Auth with the single operator account
	authHandler, err := auth.New(cfg.JWTSecret, cfg.AdminUsername, cfg.AdminPassword, cfg.TokenTTL)
	if err != nil {
		logging.Fatal("auth init failed", zap.Error(err))
	}

	// SSE broadcaster
	broadcaster := events.NewBroadcaster()

	// Create API server
	srv := api.NewServer(
		dirIndex, contentStore, backups, orchestrator,
		pipeline, authHandler, broadcaster, cfg,
	)

	// Start metrics server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
		metricsServer.Close()
	}()

	// Periodic backup retention sweep
	if cfg.BackupRetention > 0 {
		go func() {
			ticker := time.NewTicker(6 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					purged, err := backups.PurgeExpired(ctx)
					if err != nil {
						logging.Error("backup purge failed", zap.Error(err))
						continue
					}
					if purged > 0 {
						logging.Info("backup purge completed", zap.Int("purged", purged))
					}
				}
			}
		}()
	}

	logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
}
