package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nvr-ai/go-layout/config"
	"github.com/nvr-ai/go-layout/logger"
	"github.com/nvr-ai/go-layout/render"
	"github.com/nvr-ai/go-layout/server"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Flags override the environment.
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP listen port")
	flag.StringVar(&cfg.DataYAML, "data", cfg.DataYAML, "Path to the dataset YAML with class names (empty uses the built-in classes)")
	flag.StringVar(&cfg.ThresholdsJSON, "thresholds", cfg.ThresholdsJSON, "Path to the per-class thresholds JSON")
	backend := flag.String("backend", string(cfg.Backend), "Detector backend: onnx or http")
	flag.StringVar(&cfg.ModelPath, "model", cfg.ModelPath, "Path to the YOLOv8 ONNX weights")
	flag.StringVar(&cfg.InferenceURL, "inference-url", cfg.InferenceURL, "Prediction endpoint for the http backend")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	flag.Parse()
	cfg.Backend = config.DetectorBackend(*backend)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("❌ server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	pipeline, err := cfg.LoadPipeline()
	if err != nil {
		return err
	}
	log.Info("📋 classes loaded",
		zap.String("data", cfg.DataYAML),
		zap.Strings("classes", pipeline.Vocabulary().Names()),
	)
	log.Info("🎯 thresholds loaded",
		zap.String("file", cfg.ThresholdsJSON),
		zap.Float64("default_conf", pipeline.Config().DefaultConfidence),
		zap.Any("class_thresholds", pipeline.Config().PerClass),
		zap.Strings("exclude_classes", pipeline.Thresholds().ExcludedNames()),
	)

	detector, err := cfg.NewDetector(pipeline.Vocabulary().Len(), log)
	if err != nil {
		return err
	}
	defer detector.Close()
	log.Info("✅ detector ready", zap.String("backend", string(cfg.Backend)), zap.String("source", detector.Source()))

	srv := server.New(detector, pipeline, server.Options{
		Defaults:       cfg.Defaults,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Style:          render.DefaultStyle(),
	}, log)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("🚀 server starting", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("🔒 shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
