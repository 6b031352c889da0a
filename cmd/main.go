package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/realtime-ai/counseling-interpreter/pkg/config"
	"github.com/realtime-ai/counseling-interpreter/pkg/interpreter"
	"github.com/realtime-ai/counseling-interpreter/pkg/logging"
	"github.com/realtime-ai/counseling-interpreter/pkg/metrics"
	"github.com/realtime-ai/counseling-interpreter/pkg/server"
	"github.com/realtime-ai/counseling-interpreter/pkg/trace"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "counseling-interpreter: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	traceCfg := trace.DefaultConfig()
	traceCfg.Environment = cfg.Env
	traceCfg.ExporterType = cfg.Trace.Exporter
	traceCfg.OTLPEndpoint = cfg.Trace.OTLPEndpoint
	if err := trace.Initialize(ctx, traceCfg, logger); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg, logger)

	providers, err := buildProviders(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build providers", zap.Error(err))
		return err
	}
	defer providers.Close()

	hub := interpreter.NewHub(
		interpreter.NewDirectionTable(providers.EnToZh, providers.ZhToEn),
		interpreter.Capabilities{
			Recognizer:  providers.Recognizer,
			Translator:  providers.Translator,
			NoPeerAudio: interpreter.NoPeerPolicy(cfg.NoPeerAudio),
			Metrics:     collector,
			Logger:      logger,
		},
	)

	srvCfg := server.DefaultConfig()
	srvCfg.Addr = cfg.Addr()
	srvCfg.Env = cfg.Env
	srvCfg.AllowedOrigins = cfg.CORSOrigins
	srvCfg.AudioFramesPerSecond = cfg.AudioFramesPerSecond
	srvCfg.AudioFrameBurst = cfg.AudioFrameBurst
	srv := server.New(srvCfg, hub, collector, logger)

	logger.Info("starting counseling interpreter",
		zap.String("env", cfg.Env),
		zap.String("addr", srvCfg.Addr),
		zap.String("stt", providers.Recognizer.Name()),
		zap.String("translation", providers.Translator.Name()),
		zap.String("en_to_zh_voice", providers.EnToZh.Name()),
		zap.String("zh_to_en_voice", providers.ZhToEn.Name()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
		hub.Shutdown()
		if err := trace.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
