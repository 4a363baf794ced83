package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xiaot623/agentkit/internal/adapter/agentclient"
	"github.com/xiaot623/agentkit/internal/config"
	"github.com/xiaot623/agentkit/internal/directory"
	"github.com/xiaot623/agentkit/internal/logging"
	"github.com/xiaot623/agentkit/internal/notify"
	"github.com/xiaot623/agentkit/internal/repository"
	"github.com/xiaot623/agentkit/internal/service"
	"github.com/xiaot623/agentkit/internal/tasks"
	"github.com/xiaot623/agentkit/internal/tools"
	transporthttp "github.com/xiaot623/agentkit/internal/transport/http"
	"github.com/xiaot623/agentkit/policy"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logging.SetLevel(cfg.LogLevel)

	log.Printf("Starting agentkit...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Webhook notifications enabled: %t", cfg.WebhookEnabled())
	log.Printf("State ingestion enabled: %t", cfg.StateIngestionEnabled())
	log.Printf("Log level: %s", cfg.LogLevel)

	ctx := context.Background()

	// Initialize agent directory
	var dir directory.Directory
	if cfg.RedisAddr != "" {
		rdir := directory.NewRedisDirectory(cfg.RedisAddr)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdir.Ping(pingCtx)
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to redis at %s: %v", cfg.RedisAddr, err)
		}
		defer rdir.Close()
		dir = rdir
		log.Printf("Agent directory: redis %s", cfg.RedisAddr)
	} else {
		dir = directory.NewMemoryDirectory()
		log.Printf("Agent directory: in-memory")
	}

	// Initialize tool registry
	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry); err != nil {
		log.Fatalf("Failed to register builtin tools: %v", err)
	}
	if cfg.ToolsFile != "" {
		n, err := tools.LoadManifest(registry, cfg.ToolsFile, cfg.ToolTimeout)
		if err != nil {
			log.Fatalf("Failed to load tool manifest: %v", err)
		}
		log.Printf("Loaded %d remote tools from %s", n, cfg.ToolsFile)
	}

	// Initialize policy engine
	policyEngine, err := policy.LoadEngine(ctx, cfg.PolicyFile)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Background work
	executor := tasks.NewExecutor(cfg.WorkerConcurrency)

	notifier := notify.New(notify.Options{
		URL:         cfg.WebhookURL,
		Secret:      cfg.WebhookSecret,
		Timeout:     cfg.WebhookTimeout,
		MaxAttempts: cfg.WebhookMaxAttempts,
	}, executor, db)

	agentClient := agentclient.NewClient(cfg.ForwardTimeout)

	// Initialize service
	svc := service.New(dir, registry, executor, agentClient, notifier, db, cfg, policyEngine)

	server := transporthttp.NewServer(svc, cfg)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down agentkit...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}
	// Give in-flight forwards and webhooks the rest of the window.
	if err := executor.Shutdown(shutdownCtx); err != nil {
		log.Printf("Background tasks did not finish: %v", err)
	}

	log.Println("agentkit stopped")
}
