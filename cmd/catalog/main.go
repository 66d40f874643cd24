// Package main wires together the catalog service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/btiflix/catalog/internal/api"
	"github.com/btiflix/catalog/internal/config"
	"github.com/btiflix/catalog/internal/crawler"
	"github.com/btiflix/catalog/internal/extract"
	"github.com/btiflix/catalog/internal/fetcher"
	"github.com/btiflix/catalog/internal/logging"
	"github.com/btiflix/catalog/internal/payments"
	"github.com/btiflix/catalog/internal/sitemap"
	"github.com/btiflix/catalog/internal/store/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, postgres.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: int32(cfg.DB.MaxConns),
	})
	if err != nil {
		logger.Fatal("connect postgres failed", zap.Error(err))
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate schema failed", zap.Error(err))
	}

	movies := postgres.NewMovieStore(pool)
	progress := postgres.NewProgressStore(pool)

	fetch := fetcher.New(fetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	extractor := extract.New(fetch, extract.Config{EpisodesURL: cfg.Crawler.EpisodesURL})
	source := sitemap.DirSource{
		Dir:     cfg.Crawler.SitemapDir,
		Pattern: cfg.Crawler.SitemapPattern,
	}
	coordinator := crawler.New(
		crawler.Config{
			SitemapStart:      cfg.Crawler.SitemapStart,
			SitemapEnd:        cfg.Crawler.SitemapEnd,
			Delay:             cfg.CrawlDelay(),
			AcceptDegradedIDs: cfg.Crawler.AcceptDegradedIDs,
		},
		source,
		fetch,
		extractor,
		movies,
		progress,
		logger.Named("crawler"),
	)

	gateway := payments.NewClient(payments.Config{
		BaseURL: cfg.Payments.BaseURL,
		APIKey:  cfg.Payments.APIKey,
		Timeout: cfg.PaymentsTimeout(),
	})

	apiServer := api.NewServer(movies, progress, coordinator, gateway, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
