// Package main wires together the extraction service binary.
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

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/quarterline/sportscrape/internal/api"
	"github.com/quarterline/sportscrape/internal/clock/system"
	"github.com/quarterline/sportscrape/internal/config"
	"github.com/quarterline/sportscrape/internal/dedup"
	"github.com/quarterline/sportscrape/internal/extract"
	collyfetcher "github.com/quarterline/sportscrape/internal/fetcher/colly"
	"github.com/quarterline/sportscrape/internal/fetcher/detector"
	headlessfetcher "github.com/quarterline/sportscrape/internal/fetcher/headless"
	"github.com/quarterline/sportscrape/internal/id/uuid"
	"github.com/quarterline/sportscrape/internal/logging"
	"github.com/quarterline/sportscrape/internal/metrics"
	"github.com/quarterline/sportscrape/internal/pipeline"
	"github.com/quarterline/sportscrape/internal/policy/ratelimit"
	"github.com/quarterline/sportscrape/internal/pool"
	"github.com/quarterline/sportscrape/internal/progress"
	"github.com/quarterline/sportscrape/internal/progress/sinks"
	pubsubpublisher "github.com/quarterline/sportscrape/internal/publisher/pubsub"
	"github.com/quarterline/sportscrape/internal/runner"
	"github.com/quarterline/sportscrape/internal/storage/gcs"
	"github.com/quarterline/sportscrape/internal/storage/jsonl"
	"github.com/quarterline/sportscrape/internal/storage/multi"
	"github.com/quarterline/sportscrape/internal/storage/postgres"
	"github.com/quarterline/sportscrape/internal/weather"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	output := flag.String("output", "", "Override the output dataset path")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	if *output != "" {
		cfg.Storage.OutputPath = *output
	}

	logger, err := logging.New(cfg.Logging.Development)
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

	metrics.Init()

	if err := run(ctx, cfg, logger, stop); err != nil {
		logger.Error("run failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, stop func()) error {
	clock := system.New()
	idGen := uuid.New()
	seen := dedup.New(logger.Named("dedup"))

	limiter := ratelimit.New(ratelimit.Config{
		Interval: cfg.RequestDelay(),
	}, logger.Named("ratelimit"))

	probe := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Scrape.UserAgent,
		RespectRobots: cfg.Scrape.RespectRobots,
		Timeout:       cfg.FetchTimeout(),
		Debug:         cfg.Scrape.DebugMode,
	})
	var headless extract.Fetcher
	if cfg.Headless.Enabled {
		headlessFetcher, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Scrape.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			logger.Warn("headless fetcher init failed", zap.Error(err))
		} else {
			headless = headlessFetcher
			defer headlessFetcher.Close()
		}
	}

	var blobs extract.BlobStore
	if cfg.Storage.GCSBucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			logger.Warn("gcs client init failed", zap.Error(err))
		} else {
			defer client.Close()
			store, err := gcs.New(client, gcs.Config{
				Bucket: cfg.Storage.GCSBucket,
				Prefix: cfg.Storage.Prefix,
			})
			if err != nil {
				logger.Warn("snapshot store init failed", zap.Error(err))
			} else {
				blobs = store
			}
		}
	}

	fetchPool := pool.New(
		probe,
		headless,
		detector.NewHeuristic(cfg.Headless.BodyThreshold),
		limiter,
		blobs,
		clock,
		pool.Config{
			Concurrency:    cfg.Scrape.ParallelRequests,
			FetchTimeout:   cfg.FetchTimeout(),
			SnapshotPrefix: cfg.Storage.Prefix,
			ContentType:    cfg.Storage.ContentType,
		},
		logger.Named("pool"),
	)

	var weatherSvc extract.WeatherService
	if cfg.Scrape.IncludeWeather {
		weatherSvc = weather.NewClient(weather.Config{
			BaseURL: cfg.Weather.BaseURL,
			APIKey:  cfg.Weather.APIKey,
		})
	}

	retry := extract.NewRetryPolicy(cfg.Scrape.MaxRetries, 0, 0)
	pipe := pipeline.New(
		fetchPool,
		weatherSvc,
		seen,
		retry,
		clock,
		pipeline.Options{
			IncludeOdds:    cfg.Scrape.IncludeOdds,
			IncludeLineups: cfg.Scrape.IncludeLineups,
			IncludeEvents:  cfg.Scrape.IncludeEvents,
			IncludeStats:   cfg.Scrape.IncludeStats,
			IncludeWeather: cfg.Scrape.IncludeWeather,
		},
		cfg.Scrape.Source,
		logger.Named("pipeline"),
	)

	fileSink, err := jsonl.NewSink(cfg.Storage.OutputPath)
	if err != nil {
		return fmt.Errorf("open dataset sink: %w", err)
	}
	var dbSink extract.DatasetSink
	if cfg.DB.DSN != "" {
		store, err := postgres.NewRecordStore(ctx, postgres.RecordStoreConfig{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			logger.Warn("postgres record store init failed", zap.Error(err))
		} else {
			dbSink = store
		}
	}
	sink := multi.New(fileSink, dbSink)

	hubSinks := []progress.Sink{sinks.NewLogSink(logger.Named("progress"))}
	if promSink, err := sinks.NewPrometheusSink(nil); err != nil {
		logger.Warn("progress prometheus sink init failed", zap.Error(err))
	} else {
		hubSinks = append(hubSinks, promSink)
	}
	hub := progress.NewHub(progress.Config{Logger: logger.Named("hub")}, hubSinks...)

	var publisher extract.Publisher
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Warn("pubsub client init failed", zap.Error(err))
		} else {
			defer client.Close()
			pub, err := pubsubpublisher.New(client)
			if err != nil {
				logger.Warn("record publisher init failed", zap.Error(err))
			} else {
				publisher = pub
			}
		}
	}

	dateFrom, dateTo, err := cfg.DateWindow()
	if err != nil {
		return err
	}
	coordinator := runner.New(
		runner.Config{
			Sports:             cfg.Scrape.Sports,
			Competitions:       cfg.Scrape.Competitions,
			Countries:          cfg.Scrape.Countries,
			DateFrom:           dateFrom,
			DateTo:             dateTo,
			MaxMatchesPerSport: cfg.Scrape.MaxMatchesPerSport,
			ParallelMatches:    cfg.Scrape.ParallelRequests,
			ErrorRateThreshold: cfg.Scrape.ErrorRateThreshold,
			ListingURLTemplate: cfg.Scrape.ListingURLTemplate,
			PublishTopic:       cfg.PubSub.TopicName,
			IncludePreMatch:    cfg.Scrape.IncludePreMatch,
			IncludePostMatch:   cfg.Scrape.IncludePostMatch,
		},
		fetchPool,
		pipe,
		sink,
		publisher,
		hub,
		seen,
		clock,
		idGen,
		logger.Named("runner"),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(coordinator, logger.Named("api")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	report, runErr := coordinator.Run(ctx)
	logReport(logger, report)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Warn("progress hub close error", zap.Error(err))
	}
	if err := sink.Close(shutdownCtx); err != nil {
		logger.Error("dataset sink close error", zap.Error(err))
	}
	return runErr
}

func logReport(logger *zap.Logger, report runner.RunReport) {
	fields := []zap.Field{
		zap.String("run_id", report.RunID),
		zap.Duration("duration", report.Duration),
		zap.Int("listed", report.TotalListed),
		zap.Int("attempted", report.Attempted),
		zap.Int("complete", report.Complete),
		zap.Int("degraded", report.Degraded),
		zap.Int("failed", report.Failed),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("emitted", report.Emitted),
		zap.Int("fetch_attempts", report.FetchAttempts),
		zap.Int("fetches_succeeded", report.FetchesSucceeded),
		zap.Int("fetches_failed", report.FetchesFailed),
		zap.Duration("avg_fetch_duration", report.AvgFetchDuration),
		zap.Int64("dedup_anomalies", report.DedupAnomalies),
		zap.Strings("top_failures", report.TopFailureReasons()),
	}
	if report.Aborted {
		fields = append(fields, zap.String("abort_reason", report.AbortReason))
		logger.Error("run aborted", fields...)
		return
	}
	logger.Info("run finished", fields...)
}
