// Package backend models one upstream instance of the pool and forwards
// requests to it over plain HTTP with a fresh connection per request.
package backend
