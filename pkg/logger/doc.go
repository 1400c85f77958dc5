// Package logger provides the structured process logger: text for local
// environments, JSON in production, always tagged with the environment.
package logger
