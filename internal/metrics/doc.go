// Package metrics provides the request counter and the Prometheus registry
// served by the metrics listener.
//
// The request counter (reg_counter) is updated synchronously, exactly once
// per completed request, and read through a CounterFunc at scrape time.
//
// Per-backend series are fed through a channel-based event pipeline so the
// request path never blocks on metric bookkeeping:
//   - proxy_backend_selections_total{backend}
//   - proxy_upstream_responses_total{backend,code}
//   - proxy_request_duration_seconds{backend}
//
// Example usage:
//
//	registry := metrics.NewRegistry()
//	counter, _ := metrics.NewRequestCounter(registry)
//	m, _ := metrics.NewMetrics(registry)
//	collector := metrics.NewCollector(1000, m, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:       metrics.EventResponseCompleted,
//		Backend:    "10.0.0.1:8080",
//		Duration:   150 * time.Millisecond,
//		StatusCode: 200,
//	})
//	counter.Increment()
//
//	http.Handle("/", metrics.Handler(registry, logger))
package metrics
