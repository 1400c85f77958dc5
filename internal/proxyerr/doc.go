// Package proxyerr defines the error taxonomy of the proxy and maps
// per-request failures to the HTTP status returned to the caller.
package proxyerr
