// Package httpserver wraps net/http's server with address validation, an
// explicit bind step so bind failures surface before serving, and graceful
// shutdown. Both the proxy and the metrics listener use it.
package httpserver
