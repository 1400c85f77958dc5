package metrics_test

import (
	"context"
	"io"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/angeloszaimis/roundrobin-proxy/internal/metrics"
)

var _ = Describe("Collector", func() {
	var (
		reg       *prometheus.Registry
		collector *metrics.Collector
		log       *slog.Logger
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
		ctx, cancel = context.WithCancel(context.Background())

		reg = prometheus.NewRegistry()
		m, err := metrics.NewMetrics(reg)
		Expect(err).NotTo(HaveOccurred())
		collector = metrics.NewCollector(100, m, log)
	})

	AfterEach(func() {
		cancel()
	})

	countOf := func(name string) func() int {
		return func() int {
			n, err := testutil.GatherAndCount(reg, name)
			Expect(err).NotTo(HaveOccurred())
			return n
		}
	}
	seriesCount := countOf("proxy_backend_selections_total")

	Describe("event processing", func() {
		It("should record backend selections", func() {
			collector.Start(ctx)

			Expect(collector.Emit(metrics.MetricEvent{
				Type:      metrics.EventBackendSelected,
				Timestamp: time.Now(),
				Backend:   "10.0.0.1:8080",
			})).To(BeTrue())

			Eventually(seriesCount).Should(Equal(1))
		})

		It("should record completed responses by backend and code", func() {
			collector.Start(ctx)

			for _, code := range []int{200, 200, 502} {
				Expect(collector.Emit(metrics.MetricEvent{
					Type:       metrics.EventResponseCompleted,
					Timestamp:  time.Now(),
					Backend:    "10.0.0.1:8080",
					Duration:   20 * time.Millisecond,
					StatusCode: code,
				})).To(BeTrue())
			}

			Eventually(countOf("proxy_upstream_responses_total")).Should(Equal(2))
			Eventually(countOf("proxy_request_duration_seconds")).Should(Equal(1))
		})

		It("should drain buffered events on shutdown", func() {
			for i := 0; i < 5; i++ {
				Expect(collector.Emit(metrics.MetricEvent{
					Type:    metrics.EventBackendSelected,
					Backend: "10.0.0.2:8080",
				})).To(BeTrue())
			}

			cancel()
			collector.Start(ctx)
			Eventually(collector.Done()).Should(BeClosed())

			Expect(seriesCount()).To(Equal(1))
		})

		It("should ignore unknown event types", func() {
			collector.Start(ctx)
			Expect(collector.Emit(metrics.MetricEvent{Type: "health_changed", Backend: "x:1"})).To(BeTrue())

			Consistently(seriesCount, 50*time.Millisecond).Should(BeZero())
		})
	})

	Describe("Emit", func() {
		It("should drop events when the buffer is full", func() {
			m, err := metrics.NewMetrics(nil)
			Expect(err).NotTo(HaveOccurred())
			small := metrics.NewCollector(1, m, log)

			Expect(small.Emit(metrics.MetricEvent{Type: metrics.EventBackendSelected, Backend: "a:1"})).To(BeTrue())
			Expect(small.Emit(metrics.MetricEvent{Type: metrics.EventBackendSelected, Backend: "a:1"})).To(BeFalse())
		})
	})
})
