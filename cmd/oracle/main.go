package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gyaneshwarpardhi/disaster-oracle/internal/api"
	"github.com/gyaneshwarpardhi/disaster-oracle/internal/config"
	"github.com/gyaneshwarpardhi/disaster-oracle/internal/engine"
	"github.com/gyaneshwarpardhi/disaster-oracle/internal/feature"
	"github.com/gyaneshwarpardhi/disaster-oracle/internal/oracle"
	"github.com/gyaneshwarpardhi/disaster-oracle/internal/provider"
	"github.com/gyaneshwarpardhi/disaster-oracle/internal/transport/kafka"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	cfgPath := flag.String("config", "configs/oracle.yaml", "Path to YAML config (empty = environment only)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}

	// ── Oracle feature ────────────────────────────────────────────────────────
	o, err := oracle.New(oracleConfig(cfg))
	if err != nil {
		slog.Error("failed to build oracle", "err", err)
		os.Exit(1)
	}
	reg := feature.NewRegistry()
	reg.Register(o)
	slog.Info("feature registered", "id", o.ID(), "name", o.Name(), "contract", cfg.Oracle.ContractAddress)

	// ── Engine ────────────────────────────────────────────────────────────────
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var opts []engine.Option
	var replies *kafka.ReplyWriter
	if cfg.Kafka.Enabled {
		replies = kafka.NewReplyWriter(cfg.Kafka)
		opts = append(opts, engine.WithSink(replies))
	}
	poolCtx, stopPool := context.WithCancel(context.Background())
	defer stopPool()
	eng := engine.New(poolCtx, reg, cfg.Engine, opts...)

	// ── Config watcher ────────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.Config) {
		if err := config.Validate(newCfg); err != nil {
			slog.Warn("edited config is invalid", "err", err)
			return
		}
		slog.Warn("config file changed; restart to apply", "path", *cfgPath)
	})
	if stopWatch, err := loader.Watch(); err != nil {
		slog.Warn("config watcher unavailable", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server and Kafka bridge ─────────────────────────────────────────
	srv := &http.Server{
		Addr:         *addr,
		Handler:      api.New(eng),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: time.Duration(cfg.Engine.MessageTimeoutMs)*time.Millisecond + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka, eng, replies)
		g.Go(func() error {
			defer consumer.Close()
			slog.Info("kafka bridge starting", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.InboundTopic)
			return consumer.Run(gctx)
		})
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down…")
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutCancel()
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "err", err)
	}
	eng.Shutdown()
	stopPool()
	if replies != nil {
		if err := replies.Close(); err != nil {
			slog.Warn("closing reply writer", "err", err)
		}
	}
	slog.Info("goodbye")
}

func oracleConfig(cfg *config.Config) oracle.Config {
	return oracle.Config{
		ContractAddress: cfg.Oracle.ContractAddress,
		FeatureID:       cfg.Oracle.FeatureID,
		DedupRetention:  cfg.Dedup.Retention(),
		Provider: provider.Config{
			BaseURL:       cfg.Provider.BaseURL,
			APIKey:        cfg.Provider.APIKey,
			Timeout:       cfg.Provider.Timeout(),
			MaxConcurrent: cfg.Provider.MaxConcurrent,
			RatePerSec:    cfg.Provider.RatePerSec,
			Burst:         cfg.Provider.Burst,
		},
	}
}
