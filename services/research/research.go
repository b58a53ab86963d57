// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package research provides the research graph service.
//
// The service keeps one event-sourced research graph per session, lays
// it out for rendering, pushes live snapshots over websockets, and
// persists session snapshots through a pluggable store (BadgerDB by
// default).
//
// # Enterprise Integration
//
// Dependency injection via extensions.ServiceOptions lets deployments
// swap in custom implementations of:
//   - SnapshotStore: alternative snapshot backends
//   - StepInterceptor: quota enforcement and intake auditing
//
// # Usage
//
// Open source (uses no-op defaults):
//
//	cfg := research.Config{Port: 12230}
//	svc, err := research.New(cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc.Run()
package research

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/AleutianResearch/pkg/extensions"
	"github.com/AleutianAI/AleutianResearch/services/research/layout"
	"github.com/AleutianAI/AleutianResearch/services/research/observability"
	"github.com/AleutianAI/AleutianResearch/services/research/routes"
	"github.com/AleutianAI/AleutianResearch/services/research/session"
	"github.com/AleutianAI/AleutianResearch/services/research/storage/badger"
)

// Service defines the contract for the research graph service.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing. Callers
	// must not modify the router.
	Router() *gin.Engine
}

// service implements Service for production use.
//
// All fields are read-only after New() returns; the hot-reloadable
// limits go through atomics and the cache's own setters.
type service struct {
	config   Config
	opts     extensions.ServiceOptions
	router   *gin.Engine
	manager  *session.Manager
	cache    *layout.Cache
	worker   *layout.Worker
	metrics  *observability.GraphMetrics
	registry *prometheus.Registry

	// archiveCeiling is the hot-reloadable retention ceiling applied
	// to archive requests. Zero disables clamping.
	archiveCeiling atomic.Int64

	// ownsSnapshots marks a store opened by New (closed on cleanup);
	// injected stores belong to the caller.
	ownsSnapshots bool

	tracerCleanup func(context.Context)
	watcher       *fsnotify.Watcher
}

var _ Service = (*service)(nil)

// New creates a research Service with the given configuration.
//
// # Description
//
// New initializes all service components:
//  1. Applies default configuration and the optional YAML overlay
//  2. Initializes OpenTelemetry tracing (when an endpoint is set)
//  3. Creates the Prometheus registry and metrics
//  4. Opens the snapshot store (BadgerDB when DataDir is set)
//  5. Creates the session manager and layout worker pool
//  6. Sets up HTTP routes and the config hot-reload watcher
//
// If opts is nil or leaves a collaborator unset, config-aware defaults
// are used: an in-memory snapshot store unless DataDir points at a
// BadgerDB directory, and a pass-through step interceptor.
//
// # Outputs
//
//   - Service: Ready-to-run research service
//   - error: Non-nil if initialization fails
func New(cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{}
	if opts != nil {
		s.opts = *opts
	}

	cfg = applyConfigDefaults(cfg)
	if cfg.ConfigFile != "" {
		merged, err := loadConfigFile(cfg, cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = applyConfigDefaults(merged)
	}
	s.config = cfg
	s.archiveCeiling.Store(int64(cfg.ArchiveMaxNodes))

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	if cfg.OTelEndpoint != "" {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	s.registry = prometheus.NewRegistry()
	s.metrics = observability.NewGraphMetrics(s.registry)

	if err := s.initSnapshots(); err != nil {
		return nil, err
	}
	if s.opts.StepInterceptor == nil {
		s.opts.StepInterceptor = &extensions.NopStepInterceptor{}
	}

	s.manager = session.NewManager(session.Config{}, s.opts.SnapshotStore)

	s.cache = layout.NewCache(nil,
		layout.WithMaxEntries(cfg.LayoutCacheMaxEntries),
		layout.WithMaxBytes(cfg.LayoutCacheMaxBytes))
	s.worker = layout.NewWorker(s.cache,
		layout.WithWorkers(cfg.LayoutWorkers),
		layout.WithQueueSize(cfg.LayoutQueueSize))
	s.worker.Start()

	s.initRouter()

	if cfg.ConfigFile != "" {
		if err := s.watchConfig(); err != nil {
			slog.Warn("Config watcher initialization failed, hot-reload disabled",
				"error", err)
		}
	}

	return s, nil
}

// Run starts the HTTP server and blocks until it stops. Cleanup is
// automatic on return.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting research server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// initSnapshots resolves the snapshot store: injected store if
// provided, BadgerDB when DataDir is set, in-memory otherwise.
func (s *service) initSnapshots() error {
	if s.opts.SnapshotStore != nil {
		return nil
	}
	if s.config.DataDir == "" {
		s.opts.SnapshotStore = extensions.NewNopSnapshotStore()
		slog.Info("Snapshot persistence disabled, sessions are in-memory only")
		return nil
	}

	store, err := badger.NewSnapshotStore(badger.DefaultConfig(s.config.DataDir))
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}
	s.opts.SnapshotStore = store
	s.ownsSnapshots = true
	slog.Info("Snapshot store opened", "path", s.config.DataDir)
	return nil
}

// initTracer initializes OpenTelemetry distributed tracing over an
// insecure gRPC connection, appropriate for internal networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("research-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("research-service"))

	ceiling := func() int { return int(s.archiveCeiling.Load()) }
	routes.SetupRoutes(s.router, s.manager, s.worker, s.opts.StepInterceptor,
		s.metrics, s.registry, ceiling)
}

// watchConfig watches the config file and re-applies the
// hot-reloadable limits on change: the archive retention ceiling and
// the layout cache ceilings.
func (s *service) watchConfig() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.config.ConfigFile); err != nil {
		watcher.Close()
		return err
	}
	s.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				s.reloadLimits()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("Config watcher error", "error", err)
			}
		}
	}()

	slog.Info("Watching config file for limit changes", "path", s.config.ConfigFile)
	return nil
}

// reloadLimits re-reads the config file and applies the tunable limits.
// Structural settings (port, data dir, pool sizes) need a restart and
// are left untouched.
func (s *service) reloadLimits() {
	merged, err := loadConfigFile(s.config, s.config.ConfigFile)
	if err != nil {
		slog.Warn("Config reload failed, keeping current limits", "error", err)
		return
	}
	merged = applyConfigDefaults(merged)

	s.archiveCeiling.Store(int64(merged.ArchiveMaxNodes))
	s.cache.SetLimits(merged.LayoutCacheMaxEntries, merged.LayoutCacheMaxBytes)
	slog.Info("Reloaded limits from config",
		"archive_max_nodes", merged.ArchiveMaxNodes,
		"layout_cache_max_entries", merged.LayoutCacheMaxEntries,
		"layout_cache_max_bytes", merged.LayoutCacheMaxBytes)
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			slog.Warn("Config watcher close error", "error", err)
		}
	}

	s.worker.Stop()

	if s.ownsSnapshots {
		if err := s.opts.SnapshotStore.Close(); err != nil {
			slog.Warn("Snapshot store close error", "error", err)
		}
	}

	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}
