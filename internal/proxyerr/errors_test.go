package proxyerr_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"syscall"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/roundrobin-proxy/internal/proxyerr"
)

var _ = Describe("Classify", func() {
	var live context.Context

	BeforeEach(func() {
		live = context.Background()
	})

	It("should return nil for nil", func() {
		Expect(proxyerr.Classify(nil, live)).To(BeNil())
	})

	It("should treat transport failures as upstream errors", func() {
		err := proxyerr.Classify(syscall.ECONNREFUSED, live)
		Expect(errors.Is(err, proxyerr.ErrUpstream)).To(BeTrue())
		Expect(errors.Is(err, syscall.ECONNREFUSED)).To(BeTrue())
		Expect(proxyerr.StatusCode(err)).To(Equal(http.StatusBadGateway))
	})

	It("should treat request body failures as client errors", func() {
		err := proxyerr.Classify(&proxyerr.ClientBodyError{Err: io.ErrUnexpectedEOF}, live)
		Expect(errors.Is(err, proxyerr.ErrClient)).To(BeTrue())
		Expect(errors.Is(err, io.ErrUnexpectedEOF)).To(BeTrue())
		Expect(proxyerr.StatusCode(err)).To(Equal(http.StatusBadRequest))
	})

	It("should treat a cancelled caller as a client abort with no response", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := proxyerr.Classify(context.Canceled, ctx)
		Expect(errors.Is(err, proxyerr.ErrClient)).To(BeTrue())
		Expect(proxyerr.StatusCode(err)).To(BeZero())
	})

	It("should treat cancellation with a live caller as an upstream error", func() {
		err := proxyerr.Classify(context.Canceled, live)
		Expect(errors.Is(err, proxyerr.ErrUpstream)).To(BeTrue())
		Expect(proxyerr.StatusCode(err)).To(Equal(http.StatusBadGateway))
	})

	It("should treat an expired request deadline as an upstream error", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 0)
		defer cancel()
		<-ctx.Done()

		err := proxyerr.Classify(context.Canceled, ctx)
		Expect(errors.Is(err, proxyerr.ErrUpstream)).To(BeTrue())
		Expect(proxyerr.StatusCode(err)).To(Equal(http.StatusBadGateway))
	})

	It("should leave already classified errors alone", func() {
		err := proxyerr.Classify(proxyerr.ErrUpstreamSelection, live)
		Expect(err).To(Equal(proxyerr.ErrUpstreamSelection))
		Expect(proxyerr.StatusCode(err)).To(Equal(http.StatusBadGateway))
	})
})

var _ = Describe("ClientBodyError", func() {
	It("should unwrap to the read error", func() {
		err := &proxyerr.ClientBodyError{Err: io.ErrUnexpectedEOF}
		Expect(err.Error()).To(Equal("reading request body: unexpected EOF"))
		Expect(errors.Unwrap(err)).To(Equal(io.ErrUnexpectedEOF))
	})
})
