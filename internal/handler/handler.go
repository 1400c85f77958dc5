package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/angeloszaimis/roundrobin-proxy/internal/backend"
	"github.com/angeloszaimis/roundrobin-proxy/internal/metrics"
	"github.com/angeloszaimis/roundrobin-proxy/internal/proxyerr"
)

// Selector hands out the backend for the next request.
type Selector interface {
	Select() (*backend.Backend, error)
}

// Pipeline is shared by all connections. It holds no per-request state.
type Pipeline struct {
	accessLog        *slog.Logger
	selector         Selector
	counter          *metrics.RequestCounter
	metricsCollector *metrics.Collector
	now              func() time.Time
}

// requestContext lives for exactly one request.
type requestContext struct {
	start   time.Time
	backend *backend.Backend
	summary string
	err     error
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := &requestContext{
		start:   p.now(),
		summary: requestSummary(r),
	}
	wrapped := &statusRecorder{ResponseWriter: w}

	defer func() {
		rec := recover()
		if rec != nil {
			// The reverse proxy aborts the connection when copying the
			// upstream body fails after headers were sent.
			rc.err = errors.Join(proxyerr.ErrUpstream, fmt.Errorf("%v", rec))
		}

		p.finish(rc, wrapped.statusCode)

		if rec != nil {
			panic(rec)
		}
	}()

	selected, err := p.selector.Select()
	if err != nil || selected == nil {
		rc.err = errors.Join(proxyerr.ErrUpstreamSelection, err)
		http.Error(wrapped, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}

	rc.backend = selected
	rc.start = p.now()

	p.emitEvent(metrics.MetricEvent{
		Type:      metrics.EventBackendSelected,
		Timestamp: rc.start,
		Backend:   selected.Address(),
	})

	rc.err = selected.Forward(wrapped, r)
}

// finish logs the request and then counts it.
func (p *Pipeline) finish(rc *requestContext, status int) {
	elapsed := p.now().Sub(rc.start)
	if elapsed < 0 {
		elapsed = 0
	}

	attrs := []any{
		slog.Int("status", status),
		slog.Duration("duration", elapsed),
	}
	if rc.backend != nil {
		attrs = append(attrs, slog.String("backend", rc.backend.Address()))
	}

	level := slog.LevelInfo
	if rc.err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.Any("err", rc.err))
	}

	p.accessLog.Log(context.Background(), level,
		fmt.Sprintf("%s %s response code: %d", rc.summary, elapsed, status), attrs...)

	if rc.backend != nil {
		p.emitEvent(metrics.MetricEvent{
			Type:       metrics.EventResponseCompleted,
			Timestamp:  p.now(),
			Backend:    rc.backend.Address(),
			Duration:   elapsed,
			StatusCode: status,
		})
	}

	p.counter.Increment()
}

func requestSummary(r *http.Request) string {
	return fmt.Sprintf("%s %s, Host: %s", r.Method, r.URL.RequestURI(), r.Host)
}

func (p *Pipeline) emitEvent(event metrics.MetricEvent) {
	if p.metricsCollector == nil {
		return
	}

	p.metricsCollector.Emit(event)
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.statusCode == 0 && code >= http.StatusOK {
		r.statusCode = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.statusCode == 0 {
		r.statusCode = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach Flush on the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// NewPipeline builds the pipeline. accessLog receives exactly one record per
// request and should not filter below info. collector may be nil.
func NewPipeline(accessLog *slog.Logger, selector Selector, counter *metrics.RequestCounter, collector *metrics.Collector) *Pipeline {
	return &Pipeline{
		accessLog:        accessLog,
		selector:         selector,
		counter:          counter,
		metricsCollector: collector,
		now:              time.Now,
	}
}
