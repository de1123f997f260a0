package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"ragd/internal/infra/chatws"
	"ragd/internal/infra/config"
	"ragd/internal/infra/discovery"
	"ragd/internal/infra/llm"
	"ragd/internal/infra/pipeline"
	"ragd/internal/infra/provider"
	"ragd/internal/infra/session"
	"ragd/internal/infra/telemetry"
)

// Serve wires the full runtime and blocks until the context is canceled:
// session store, provider gateway, capability discovery, the question
// pipeline, and the websocket chat surface.
func (a *App) Serve(ctx context.Context, cfg ServeConfig) error {
	loader := config.NewLoader(a.logger)
	conf, err := loader.Load(cfg.ConfigPath)
	if err != nil {
		return err
	}
	a.logger.Info("configuration loaded",
		zap.String("config", cfg.ConfigPath),
		zap.Int("providers", len(conf.Providers)),
	)

	promRegistry := prometheus.NewRegistry()
	metrics := telemetry.NewPrometheusMetrics(promRegistry)

	store, err := session.OpenStore(conf.Store.Path, a.logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	gateway := provider.NewGateway(provider.GatewayOptions{
		Providers: conf.Providers,
		Timeout:   conf.Pipeline.InvokeTimeout(),
		Metrics:   metrics,
		Logger:    a.logger,
	})
	defer gateway.Close()

	snapshotStore, err := discovery.OpenSnapshotStore(conf.Discovery.SnapshotPath)
	if err != nil {
		return err
	}
	defer func() { _ = snapshotStore.Close() }()

	registry := discovery.NewRegistry()
	manager := discovery.NewManager(discovery.ManagerOptions{
		Providers: conf.Providers,
		Lister:    gateway,
		Registry:  registry,
		Store:     snapshotStore,
		Interval:  conf.Discovery.RefreshInterval(),
		Timeout:   conf.Discovery.Timeout(),
		Metrics:   metrics,
		Logger:    a.logger,
	})
	if manager.Restore() {
		a.logger.Info("capability snapshot restored from disk")
	}
	go manager.Run(ctx)

	chatModel, err := llm.NewChatModel(ctx, conf.LLM)
	if err != nil {
		return err
	}

	queryTools := make(map[string]string, len(conf.Providers))
	for _, p := range conf.Providers {
		queryTools[p.ID] = p.QueryTool
	}

	questionPipeline := pipeline.New(pipeline.Options{
		Registry:       registry,
		Collections:    store,
		Invoker:        gateway,
		Contextualizer: llm.NewContextualizer(chatModel, a.logger),
		Generator:      llm.NewGenerator(chatModel, a.logger),
		QueryTools:     queryTools,
		Metrics:        metrics,
		Logger:         a.logger,
	})

	chatServer := chatws.NewServer(chatws.Options{
		Auth:            session.NewManager(store, a.logger),
		History:         store,
		Pipeline:        questionPipeline,
		HistoryWindow:   conf.Pipeline.HistoryWindow,
		QuestionTimeout: conf.Pipeline.QuestionTimeout(),
		Metrics:         metrics,
		Logger:          a.logger,
	})

	if conf.Observability.Enabled {
		go func() {
			err := telemetry.StartHTTPServer(ctx, telemetry.HTTPServerOptions{
				Addr:     conf.Observability.ListenAddress,
				Registry: promRegistry,
			}, a.logger)
			if err != nil {
				a.logger.Error("observability server failed", zap.Error(err))
			}
		}()
	}

	return a.serveHTTP(ctx, conf.ListenAddress, chatServer.Handler())
}

func (a *App) serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:    addr,
		Handler: handler,
		// Connections are long-lived websockets: no read/write timeouts.
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	errChan := make(chan error, 1)
	go func() {
		a.logger.Info("chat server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
			return
		}
		errChan <- nil
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		a.logger.Info("chat server stopped")
		return nil
	}
}

// DiscoverOnce runs a single discovery pass against all configured
// providers and reports the outcome. Useful for verifying connectivity
// before starting the daemon.
func (a *App) DiscoverOnce(ctx context.Context, cfg DiscoverConfig) error {
	loader := config.NewLoader(a.logger)
	conf, err := loader.Load(cfg.ConfigPath)
	if err != nil {
		return err
	}

	metrics := telemetry.NewPrometheusMetrics(prometheus.NewRegistry())
	gateway := provider.NewGateway(provider.GatewayOptions{
		Providers: conf.Providers,
		Timeout:   conf.Discovery.Timeout(),
		Metrics:   metrics,
		Logger:    a.logger,
	})
	defer gateway.Close()

	snapshotStore, err := discovery.OpenSnapshotStore(conf.Discovery.SnapshotPath)
	if err != nil {
		return err
	}
	defer func() { _ = snapshotStore.Close() }()

	manager := discovery.NewManager(discovery.ManagerOptions{
		Providers: conf.Providers,
		Lister:    gateway,
		Registry:  discovery.NewRegistry(),
		Store:     snapshotStore,
		Timeout:   conf.Discovery.Timeout(),
		Metrics:   metrics,
		Logger:    a.logger,
	})

	snapshot, failed := manager.Discover(ctx)
	for id, caps := range snapshot.Providers {
		a.logger.Info("provider discovered",
			zap.String("provider", id),
			zap.Int("tools", len(caps.Tools)),
			zap.Int("resources", len(caps.Resources)),
		)
	}
	if failed > 0 {
		a.logger.Warn("some providers unreachable", zap.Int("failed", failed))
	}
	if len(snapshot.Providers) > 0 {
		if err := snapshotStore.Save(snapshot); err != nil {
			return err
		}
		a.logger.Info("capability snapshot persisted",
			zap.String("path", conf.Discovery.SnapshotPath),
		)
	}
	return nil
}
