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

	"github.com/lysyi3m/kingsfeeds/app/api"
	"github.com/lysyi3m/kingsfeeds/app/cfg"
	"github.com/lysyi3m/kingsfeeds/app/feed"
	"github.com/lysyi3m/kingsfeeds/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	setupLogger(appCfg.Debug)

	slog.Info("Starting KingsFeeds", "version", appCfg.Version, "env", appCfg.Env)

	source, err := feed.ResolveSource(appCfg.SourceFile, feed.Source{
		FeedURL:       appCfg.FeedURL,
		AggregatorURL: appCfg.AggregatorURL,
		Settings: feed.SourceSettings{
			RefreshInterval: appCfg.RefreshInterval,
			Timeout:         appCfg.UpstreamTimeout,
		},
	})
	if err != nil {
		slog.Error("Failed to load feed source", "error", err)
		os.Exit(1)
	}
	slog.Info("Feed source configured", "source", source.Name, "feed_url", source.FeedURL, "aggregator_url", source.AggregatorURL)

	httpClient := &http.Client{}

	fetcher, err := feed.NewFetcher(httpClient, source.AggregatorURL, source.FeedURL, appCfg.UserAgent, source.Timeout())
	if err != nil {
		slog.Error("Failed to create fetcher", "error", err)
		os.Exit(1)
	}

	// The proxy endpoint and the interactive consumer run separate variants
	// of the same pipeline.
	proxyPipeline := feed.NewPipeline(fetcher, feed.NewNormalizer())
	clientPipeline := feed.NewPipeline(fetcher, feed.NewNormalizer(feed.WithEnclosureThumbnails()))

	refresher := tasks.NewRefresher(clientPipeline, source.RefreshEvery())
	refresher.Start()
	defer refresher.Stop()

	addr := net.JoinHostPort(appCfg.Host, appCfg.Port)
	generator := feed.NewGenerator(selfLink(appCfg), appCfg.Version)

	apiHandler := api.NewHandler(proxyPipeline, generator, refresher, appCfg.Version)
	server := api.NewServer(apiHandler, api.ServerOptions{
		Development: appCfg.IsDevelopment(),
		StaticDir:   appCfg.StaticDir,
	})

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig)
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("KingsFeeds shutdown complete")
}

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func selfLink(appCfg *cfg.Cfg) string {
	if appCfg.BaseUrl != "" {
		return strings.TrimSuffix(appCfg.BaseUrl, "/") + "/api/rss.xml"
	}
	return fmt.Sprintf("http://localhost:%s/api/rss.xml", appCfg.Port)
}
