// File path: cmd/copilot/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Azure-Samples/infra-support-copilot/internal/api"
	"github.com/Azure-Samples/infra-support-copilot/internal/catalog"
	"github.com/Azure-Samples/infra-support-copilot/internal/classifier"
	"github.com/Azure-Samples/infra-support-copilot/internal/common"
	"github.com/Azure-Samples/infra-support-copilot/internal/config"
	"github.com/Azure-Samples/infra-support-copilot/internal/llm"
	"github.com/Azure-Samples/infra-support-copilot/internal/retriever"
	"github.com/Azure-Samples/infra-support-copilot/internal/sqlquery"
	"github.com/Azure-Samples/infra-support-copilot/internal/store"
)

func main() {
	logger := common.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil {
		logger.Warn("copilot: .env file not loaded", "error", err)
	} else {
		logger.Info("copilot: environment loaded from .env")
	}

	addr := flag.String("addr", "", "listen address (overrides PORT)")
	storePath := flag.String("store", "", "path to the SQLite inventory database")
	seedPath := flag.String("seed", "", "path to a JSON seed file loaded at startup")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("copilot: config load failed", "error", err)
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	cfg = cfg.Merge(config.Config{
		Addr:      strings.TrimSpace(*addr),
		StorePath: strings.TrimSpace(*storePath),
		SeedPath:  strings.TrimSpace(*seedPath),
	})
	logger.Info("copilot: startup initiated", "addr", cfg.Addr, "store", cfg.StorePath)

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		logger.Error("copilot: store open failed", "error", err)
		fmt.Println("store error:", err)
		os.Exit(1)
	}
	defer st.Close()

	if cfg.SeedPath != "" {
		if err := st.Seed(ctx, cfg.SeedPath); err != nil {
			logger.Error("copilot: seed load failed", "path", cfg.SeedPath, "error", err)
			fmt.Println("seed error:", err)
			os.Exit(1)
		}
		logger.Info("copilot: seed loaded", "path", cfg.SeedPath)
	}

	cat, err := catalog.Load(ctx, st, cfg.AllowedTables)
	if err != nil {
		logger.Error("copilot: catalog load failed", "error", err)
		fmt.Println("catalog error:", err)
		os.Exit(1)
	}
	logger.Info("copilot: catalog ready", "tables", len(cat.Tables()))

	provider := llm.NewProvider()
	logger.Info("copilot: llm provider ready", "provider", provider.Name())

	guard := sqlquery.NewGuard(cat, cfg.MaxRows)
	executor := sqlquery.NewExecutor(st.DB(), cfg.QueryTimeout, cfg.MaxRows)
	planner := sqlquery.NewLLMPlanner(provider, cat)
	flowEngine := sqlquery.NewFlow(cat, guard, executor, planner)

	retr, err := retriever.New(ctx, st)
	if err != nil {
		logger.Error("copilot: retriever build failed", "error", err)
		fmt.Println("retriever error:", err)
		os.Exit(1)
	}

	server, err := api.NewServer(provider, flowEngine, classifier.New(provider), retr, cat, cfg.SystemPrompt)
	if err != nil {
		logger.Error("copilot: server construction failed", "error", err)
		fmt.Println("server error:", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("copilot: server listening", "addr", cfg.Addr, "health", "/healthz")
		fmt.Printf("Serving on %s\n", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case sig := <-stop:
		logger.Info("copilot: shutdown requested", "signal", sig.String())
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("copilot: shutdown failed", "error", err)
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("copilot: server stopped", "error", err)
			fmt.Println("server stopped:", err)
			os.Exit(1)
		}
	}
}
