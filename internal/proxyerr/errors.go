package proxyerr

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrConfiguration is fatal and only raised during startup.
	ErrConfiguration = errors.New("configuration error")

	// ErrUpstreamSelection means no backend could be selected for a request.
	ErrUpstreamSelection = errors.New("upstream selection failed")

	// ErrUpstream covers refused connections, timeouts and malformed upstream responses.
	ErrUpstream = errors.New("upstream error")

	// ErrClient indicates a malformed or aborted inbound request.
	ErrClient = errors.New("client error")
)

// ClientBodyError wraps a failure to read the caller's request body.
type ClientBodyError struct {
	Err error
}

func (e *ClientBodyError) Error() string {
	return "reading request body: " + e.Err.Error()
}

func (e *ClientBodyError) Unwrap() error {
	return e.Err
}

// Classify tags a forwarding error with ErrClient or ErrUpstream.
// clientCtx is the inbound request's context.
func Classify(err error, clientCtx context.Context) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrClient) || errors.Is(err, ErrUpstream) || errors.Is(err, ErrUpstreamSelection) {
		return err
	}

	var bodyErr *ClientBodyError
	if errors.As(err, &bodyErr) {
		return errors.Join(ErrClient, err)
	}

	if clientCtx != nil && errors.Is(clientCtx.Err(), context.Canceled) && errors.Is(err, context.Canceled) {
		return errors.Join(ErrClient, context.Canceled)
	}

	return errors.Join(ErrUpstream, err)
}

// StatusCode returns the status to write for a classified error.
// Zero means nothing should be written because the caller is gone.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrClient) && errors.Is(err, context.Canceled):
		return 0
	case errors.Is(err, ErrClient):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
