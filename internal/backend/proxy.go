package backend

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/angeloszaimis/roundrobin-proxy/internal/proxyerr"
)

// Backend is an immutable upstream address together with the reverse proxy
// that forwards to it.
type Backend struct {
	address        string
	url            *url.URL
	proxy          *httputil.ReverseProxy
	requestTimeout time.Duration
}

type forwardResultKey struct{}

type forwardResult struct {
	err error
}

// Address returns the backend's host:port.
func (b *Backend) Address() string {
	return b.address
}

// URL returns the plain HTTP URL derived from the address.
func (b *Backend) URL() *url.URL {
	return b.url
}

// ReverseProxy returns the HTTP reverse proxy for this backend.
func (b *Backend) ReverseProxy() *httputil.ReverseProxy {
	return b.proxy
}

func (b *Backend) String() string {
	return b.address
}

// Forward sends r to the backend and streams the response to w.
// The returned error is already classified with proxyerr.ErrClient or
// proxyerr.ErrUpstream; the matching error response has been written.
// The whole exchange, body included, is bounded by the request timeout.
func (b *Backend) Forward(w http.ResponseWriter, r *http.Request) error {
	result := &forwardResult{}
	ctx := context.WithValue(r.Context(), forwardResultKey{}, result)

	if b.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.requestTimeout)
		defer cancel()
	}

	out := r.WithContext(ctx)

	if r.Body != nil && r.Body != http.NoBody {
		out.Body = &clientBody{ReadCloser: r.Body}
	}

	b.proxy.ServeHTTP(w, out)
	return result.err
}

func (b *Backend) handleError(w http.ResponseWriter, r *http.Request, err error) {
	classified := proxyerr.Classify(err, r.Context())
	if result, ok := r.Context().Value(forwardResultKey{}).(*forwardResult); ok {
		result.err = classified
	}

	if status := proxyerr.StatusCode(classified); status != 0 {
		http.Error(w, http.StatusText(status), status)
	}
}

func (b *Backend) modifyResponse(resp *http.Response) error {
	if resp.Request == nil {
		return nil
	}

	ctx := resp.Request.Context()
	if result, ok := ctx.Value(forwardResultKey{}).(*forwardResult); ok {
		resp.Body = &upstreamBody{ReadCloser: resp.Body, ctx: ctx, result: result}
	}
	return nil
}

// upstreamBody records the first failure while streaming the response, such
// as the request deadline firing mid-body. The status is already on the wire
// by then, so the error is only reported.
type upstreamBody struct {
	io.ReadCloser
	ctx    context.Context
	result *forwardResult
}

func (u *upstreamBody) Read(p []byte) (int, error) {
	n, err := u.ReadCloser.Read(p)
	if err != nil && err != io.EOF && u.result.err == nil {
		u.result.err = proxyerr.Classify(err, u.ctx)
	}
	return n, err
}

// clientBody marks read failures on the inbound body so they can be told
// apart from upstream failures.
type clientBody struct {
	io.ReadCloser
}

func (c *clientBody) Read(p []byte) (int, error) {
	n, err := c.ReadCloser.Read(p)
	if err != nil && err != io.EOF {
		return n, &proxyerr.ClientBodyError{Err: err}
	}
	return n, err
}

// NewTransport returns the transport shared by all backends. Keep-alives are
// disabled so every proxied request dials a new upstream connection.
func NewTransport(connectTimeout, responseTimeout time.Duration) *http.Transport {
	dialer := &net.Dialer{
		Timeout: connectTimeout,
	}

	return &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		DisableKeepAlives:     true,
		ResponseHeaderTimeout: responseTimeout,
	}
}

// Parse validates a host:port address and returns the plain HTTP URL for it.
func Parse(address string) (*url.URL, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("%w: upstream %q must be in host:port format", proxyerr.ErrConfiguration, address)
	}

	if err := validation.Validate(host, validation.Required, is.Host); err != nil {
		return nil, fmt.Errorf("%w: upstream %q has invalid host: %v", proxyerr.ErrConfiguration, address, err)
	}

	if err := validation.Validate(port, validation.Required, is.Port); err != nil {
		return nil, fmt.Errorf("%w: upstream %q has invalid port: %v", proxyerr.ErrConfiguration, address, err)
	}

	return &url.URL{Scheme: "http", Host: net.JoinHostPort(host, port)}, nil
}

// New creates a Backend for address. transport may be shared between
// backends. requestTimeout bounds one forwarded exchange including the
// response body; zero disables the bound. logger receives the reverse
// proxy's internal errors.
func New(address string, transport http.RoundTripper, requestTimeout time.Duration, logger *slog.Logger) (*Backend, error) {
	target, err := Parse(address)
	if err != nil {
		return nil, err
	}

	b := &Backend{
		address:        address,
		url:            target,
		requestTimeout: requestTimeout,
	}

	b.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.Host = pr.In.Host
		},
		Transport:      transport,
		ModifyResponse: b.modifyResponse,
		ErrorHandler:   b.handleError,
	}

	if logger != nil {
		b.proxy.ErrorLog = slog.NewLogLogger(logger.Handler(), slog.LevelDebug)
	}

	return b, nil
}
