package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/angeloszaimis/roundrobin-proxy/config"
	"github.com/angeloszaimis/roundrobin-proxy/internal/backend"
	"github.com/angeloszaimis/roundrobin-proxy/internal/handler"
	"github.com/angeloszaimis/roundrobin-proxy/internal/httpserver"
	"github.com/angeloszaimis/roundrobin-proxy/internal/loadbalancer"
	"github.com/angeloszaimis/roundrobin-proxy/internal/metrics"
	"github.com/angeloszaimis/roundrobin-proxy/pkg/logger"
)

const metricsBufferSize = 1024

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, false, cfg.Server.Environment, os.Stdout)
	access := logger.NewAccess(cfg.Server.Environment, os.Stdout)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log, access); err != nil {
		log.Error("Proxy terminated", slog.Any("err", err))
		os.Exit(1)
	}
}

// run binds both listeners before serving anything. Any bind or
// configuration failure is returned before traffic is accepted. access
// receives one line per proxied request.
func run(ctx context.Context, cfg *config.Config, log, access *slog.Logger) error {
	app, err := newApp(cfg, log, access)
	if err != nil {
		return err
	}

	if err := app.listen(); err != nil {
		return err
	}

	return app.serve(ctx)
}

type app struct {
	log       *slog.Logger
	proxy     *httpserver.Server
	metrics   *httpserver.Server
	collector *metrics.Collector
	counter   *metrics.RequestCounter
}

func newApp(cfg *config.Config, log, access *slog.Logger) (*app, error) {
	backends, err := initializeBackends(cfg, log)
	if err != nil {
		return nil, err
	}

	pool, err := loadbalancer.New(backends)
	if err != nil {
		return nil, err
	}

	registry := metrics.NewRegistry()

	counter, err := metrics.NewRequestCounter(registry)
	if err != nil {
		return nil, err
	}

	backendMetrics, err := metrics.NewMetrics(registry)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector(metricsBufferSize, backendMetrics, log)
	pipeline := handler.NewPipeline(access, pool, counter, collector)

	// The pipeline is mounted directly; a ServeMux would clean and redirect
	// paths before they reach the backend.
	proxySrv, err := httpserver.New(cfg.Proxy.Address, pipeline, httpserver.Options{})
	if err != nil {
		return nil, err
	}

	metricsSrv, err := httpserver.New(cfg.Metrics.Address, metrics.Handler(registry, log), httpserver.Options{})
	if err != nil {
		return nil, err
	}

	return &app{
		log:       log,
		proxy:     proxySrv,
		metrics:   metricsSrv,
		collector: collector,
		counter:   counter,
	}, nil
}

func (a *app) listen() error {
	if err := a.proxy.Listen(); err != nil {
		return err
	}

	if err := a.metrics.Listen(); err != nil {
		a.proxy.Shutdown(context.Background())
		return err
	}

	a.log.Info("Listening",
		slog.String("proxy", a.proxy.Addr()),
		slog.String("metrics", a.metrics.Addr()))

	return nil
}

// serve runs both listeners until ctx is cancelled or one of them fails.
// The metrics collector shares the group's lifetime and is drained before
// serve returns.
func (a *app) serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.collector.Start(gctx)

	g.Go(a.proxy.Serve)
	g.Go(a.metrics.Serve)

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("Shutting down gracefully...")

		return errors.Join(
			a.proxy.Shutdown(context.Background()),
			a.metrics.Shutdown(context.Background()),
		)
	})

	err := g.Wait()
	<-a.collector.Done()

	a.log.Info("Proxy stopped", slog.Uint64("requests", a.counter.Value()))
	return err
}

func initializeBackends(cfg *config.Config, log *slog.Logger) ([]*backend.Backend, error) {
	addresses, err := cfg.UpstreamAddresses()
	if err != nil {
		return nil, err
	}

	log.Info("Upstreams configured", slog.String("upstreams", strings.Join(addresses, ",")))

	transport := backend.NewTransport(cfg.ConnectTimeout(), cfg.ResponseTimeout())

	backends := make([]*backend.Backend, 0, len(addresses))
	for _, addr := range addresses {
		b, err := backend.New(addr, transport, cfg.RequestTimeout(), log)
		if err != nil {
			return nil, err
		}
		backends = append(backends, b)
	}

	return backends, nil
}
