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

	"github.com/zanehq/meta-ads-mcp/internal/accounts"
	"github.com/zanehq/meta-ads-mcp/internal/ads"
	"github.com/zanehq/meta-ads-mcp/internal/config"
	"github.com/zanehq/meta-ads-mcp/internal/logging"
	"github.com/zanehq/meta-ads-mcp/internal/mcp"
	"github.com/zanehq/meta-ads-mcp/internal/oauth"
	"github.com/zanehq/meta-ads-mcp/internal/token"
	"github.com/zanehq/meta-ads-mcp/internal/transport"
)

const shutdownTimeout = 10 * time.Second

func cmdServe(args []string) {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			printServeUsage()
			return
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log := logging.Default()
	tokens := token.NewService([]byte(cfg.JWTSecret))

	store, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening account store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	gateway := buildGateway(cfg)
	handler := mcp.NewHandler(store, gateway, log)
	auth := oauth.NewServer(cfg.BaseURL, tokens, cfg.DefaultSubject, log)
	front := transport.NewServer(cfg.BaseURL, handler, auth, tokens, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           front.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", "error", err)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"base_url", cfg.BaseURL,
		"data_source", cfg.DataSource,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
	// Let the shutdown goroutine drain in-flight requests.
	<-ctx.Done()
}

// openStore picks SQLite when a database path is configured, otherwise
// an in-memory store pre-linked with the demo account.
func openStore(cfg *config.Config) (accounts.Store, error) {
	if cfg.DatabaseURL != "" {
		return accounts.OpenSQLite(cfg.DatabaseURL)
	}
	return accounts.NewDemoStore(cfg.DefaultSubject), nil
}

func buildGateway(cfg *config.Config) ads.Gateway {
	if cfg.DataSource == config.DataSourceGraph {
		return ads.NewGraphGateway(cfg.MetaAPIVersion, cfg.GraphTimeout,
			ads.WithAppSecret(cfg.FacebookAppSecret))
	}
	return ads.NewMockGateway()
}

func printServeUsage() {
	fmt.Print(`meta-ads-mcp serve - Start the MCP server

Usage:
  meta-ads-mcp serve

The server reads its configuration from the environment (see
'meta-ads-mcp help'). It exposes the MCP JSON-RPC endpoint on POST /,
an SSE stream on GET /sse, and the OAuth endpoints under /oauth/.

Examples:
  JWT_SECRET=dev-secret meta-ads-mcp serve
  JWT_SECRET=dev-secret DATA_SOURCE=graph FACEBOOK_APP_SECRET=... meta-ads-mcp serve
`)
}
