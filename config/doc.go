// Package config loads the proxy configuration from an optional YAML file and
// environment variables. The only required setting is UPSTREAMS, a
// comma-separated list of host:port backend addresses.
package config
