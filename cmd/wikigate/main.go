// Command wikigate runs the wiki protocol gateway: a streamable HTTP
// endpoint that exposes a Confluence-style wiki as a set of callable tools.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/wikigate/wikigate/internal/config"
	"github.com/wikigate/wikigate/internal/dispatch"
	"github.com/wikigate/wikigate/internal/logctx"
	"github.com/wikigate/wikigate/mcp"
	"github.com/wikigate/wikigate/sessions"
	"github.com/wikigate/wikigate/sessions/memorystore"
	"github.com/wikigate/wikigate/sessions/redisstore"
	"github.com/wikigate/wikigate/streaminghttp"
	"github.com/wikigate/wikigate/toolkit"
	"github.com/wikigate/wikigate/upstream"
	"github.com/wikigate/wikigate/wikitools"
)

// version is stamped by the build; "dev" outside release builds.
var version = "dev"

const serverInstructions = "Tools for reading and writing a wiki: list spaces, " +
	"search pages, fetch a page with its body, create pages, and list page comments. " +
	"Listing tools follow pagination automatically; pass max_results to cap output " +
	"or auto_paginate=false to walk pages yourself with the returned cursor."

func main() {
	root := &cobra.Command{
		Use:           "wikigate",
		Short:         "Streamable HTTP gateway exposing a wiki as callable tools",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := newLogger(cfg)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := newSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	manager := sessions.NewManager(store)

	client, err := upstream.New(cfg.UpstreamURL,
		upstream.WithToken(cfg.UpstreamToken),
		upstream.WithHTTPClient(&http.Client{Timeout: cfg.UpstreamTimeout}),
		upstream.WithLogger(log),
	)
	if err != nil {
		return err
	}

	registry := toolkit.NewRegistry()
	if err := wikitools.Register(registry, wikitools.Config{
		Client:        client,
		PageSize:      cfg.PageSize,
		MaxPages:      cfg.MaxPages,
		DefaultBudget: cfg.ResultBudget,
		Logger:        log,
	}); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	dispatcher := dispatch.New(registry,
		mcp.ImplementationInfo{Name: "wikigate", Version: version},
		dispatch.WithLogger(log),
		dispatch.WithInstructions(serverInstructions),
	)

	gateway, err := streaminghttp.New(dispatcher, manager,
		streaminghttp.WithBasePath(cfg.BasePath),
		streaminghttp.WithLogger(log),
		streaminghttp.WithKeepAliveInterval(cfg.KeepAliveInterval),
	)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.BasePath, gateway)
	mux.Handle(cfg.BasePath+"/", gateway)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server.start", slog.String("addr", cfg.ListenAddr), slog.String("path", cfg.BasePath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("server.shutdown.begin")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("server.shutdown.ok")
	return <-errCh
}

// newSessionStore builds the configured session backend. The memory store
// gets a background sweeper tied to ctx.
func newSessionStore(ctx context.Context, cfg *config.Config) (sessions.Store, func(), error) {
	switch cfg.SessionStore {
	case "redis":
		store, err := redisstore.New(redisstore.Config{
			RedisAddr: cfg.RedisAddr,
			TTL:       cfg.SessionTTL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("redis session store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		store := memorystore.New(memorystore.WithTTL(cfg.SessionTTL))
		go store.Run(ctx, time.Minute)
		return store, func() {}, nil
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := parseLogLevel(cfg.LogLevel)
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stderr, &tint.Options{Level: level, TimeFormat: time.Kitchen})
	}
	return slog.New(logctx.Handler{Handler: handler})
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
