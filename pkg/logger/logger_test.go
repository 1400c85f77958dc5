package logger_test

import (
	"context"
	"encoding/json"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"

	"github.com/angeloszaimis/roundrobin-proxy/pkg/logger"
)

var _ = Describe("Logger", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("New", func() {
		It("should default to stdout when no writer is given", func() {
			Expect(logger.New("info", false, "dev", nil)).NotTo(BeNil())
		})

		It("should write text records outside production", func() {
			buf := gbytes.NewBuffer()
			log := logger.New("info", false, "dev", buf)

			log.Info("GET /, Host: example.com 1ms response code: 200")
			Expect(buf).To(gbytes.Say(`level=INFO msg="GET /, Host: example.com 1ms response code: 200" environment=dev`))
		})

		It("should write JSON records in production", func() {
			buf := gbytes.NewBuffer()
			log := logger.New("info", false, "prod", buf)

			log.Info("hello", slog.Int("status", 502))

			var record map[string]any
			Expect(json.Unmarshal(buf.Contents(), &record)).To(Succeed())
			Expect(record).To(HaveKeyWithValue("msg", "hello"))
			Expect(record).To(HaveKeyWithValue("environment", "prod"))
			Expect(record).To(HaveKeyWithValue("status", BeNumerically("==", 502)))
		})

		It("should include the source location when asked", func() {
			buf := gbytes.NewBuffer()
			logger.New("info", true, "dev", buf).Info("x")
			Expect(buf).To(gbytes.Say(`source=`))
		})

		It("should default to info for an invalid level", func() {
			log := logger.New("invalid", false, "dev", gbytes.NewBuffer())
			Expect(log.Enabled(ctx, slog.LevelInfo)).To(BeTrue())
			Expect(log.Enabled(ctx, slog.LevelDebug)).To(BeFalse())
		})

		It("should respect debug level", func() {
			log := logger.New("debug", false, "dev", gbytes.NewBuffer())
			Expect(log.Enabled(ctx, slog.LevelDebug)).To(BeTrue())
		})

		It("should respect warn level", func() {
			log := logger.New("warn", false, "dev", gbytes.NewBuffer())
			Expect(log.Enabled(ctx, slog.LevelInfo)).To(BeFalse())
			Expect(log.Enabled(ctx, slog.LevelWarn)).To(BeTrue())
		})

		It("should respect error level", func() {
			log := logger.New("ERROR", false, "dev", gbytes.NewBuffer())
			Expect(log.Enabled(ctx, slog.LevelWarn)).To(BeFalse())
			Expect(log.Enabled(ctx, slog.LevelError)).To(BeTrue())
		})
	})

	Describe("NewAccess", func() {
		It("should record info lines regardless of the process level", func() {
			buf := gbytes.NewBuffer()
			process := logger.New("error", false, "dev", buf)
			access := logger.NewAccess("dev", buf)

			process.Info("suppressed")
			access.Info("GET /, Host: example.com 1ms response code: 200")

			Expect(buf).To(gbytes.Say(`level=INFO msg="GET /, Host: example.com 1ms response code: 200" environment=dev`))
			Expect(string(buf.Contents())).NotTo(ContainSubstring("suppressed"))
			Expect(access.Enabled(ctx, slog.LevelWarn)).To(BeTrue())
		})
	})

	DescribeTable("ParseLevel",
		func(in string, want slog.Level) {
			Expect(logger.ParseLevel(in)).To(Equal(want))
		},
		Entry("debug", "debug", slog.LevelDebug),
		Entry("info", "info", slog.LevelInfo),
		Entry("warn", "Warn", slog.LevelWarn),
		Entry("error", "error", slog.LevelError),
		Entry("unknown", "trace", slog.LevelInfo),
	)
})
