// Package telemetry provides OpenTelemetry integration for the tool-call
// pipeline. It allows tracing and monitoring of tool dispatch — validation,
// handler execution, and response shaping — with customizable spans and
// attributes.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Settings configures telemetry for tool-call tracing.
// Telemetry is disabled by default and must be explicitly enabled.
type Settings struct {
	// IsEnabled controls whether telemetry is active. Defaults to false.
	IsEnabled bool

	// RecordParams is carried on Settings and defaults to true, but no span
	// in this module reads it: the tools/call span opened by package server
	// never records a call's parameters.
	RecordParams bool

	// RecordResult controls whether the tools/call span records a
	// "dispatched" attribute on a successful call; the result body itself is
	// never recorded. Defaults to true.
	RecordResult bool

	// ServerID identifies this server instance in telemetry spans, useful
	// when aggregating traces across several deployed servers.
	ServerID string

	// Metadata contains additional key-value pairs to include in telemetry spans.
	Metadata map[string]attribute.Value

	// Tracer is a custom OpenTelemetry tracer. If nil, the global tracer will be used.
	Tracer trace.Tracer
}

// DefaultSettings returns Settings with sensible defaults.
func DefaultSettings() *Settings {
	return &Settings{
		IsEnabled:    false,
		RecordParams: true,
		RecordResult: true,
		Metadata:     make(map[string]attribute.Value),
	}
}

// WithEnabled returns a copy of Settings with IsEnabled set to the given value.
func (s *Settings) WithEnabled(enabled bool) *Settings {
	copy := *s
	copy.IsEnabled = enabled
	return &copy
}

// WithRecordParams returns a copy of Settings with RecordParams set to the given value.
func (s *Settings) WithRecordParams(record bool) *Settings {
	copy := *s
	copy.RecordParams = record
	return &copy
}

// WithRecordResult returns a copy of Settings with RecordResult set to the given value.
func (s *Settings) WithRecordResult(record bool) *Settings {
	copy := *s
	copy.RecordResult = record
	return &copy
}

// WithServerID returns a copy of Settings with ServerID set to the given value.
func (s *Settings) WithServerID(id string) *Settings {
	copy := *s
	copy.ServerID = id
	return &copy
}

// WithMetadata returns a copy of Settings with the given metadata merged in.
func (s *Settings) WithMetadata(metadata map[string]attribute.Value) *Settings {
	copy := *s
	copy.Metadata = make(map[string]attribute.Value)
	for k, v := range s.Metadata {
		copy.Metadata[k] = v
	}
	for k, v := range metadata {
		copy.Metadata[k] = v
	}
	return &copy
}

// WithTracer returns a copy of Settings with Tracer set to the given value.
func (s *Settings) WithTracer(tracer trace.Tracer) *Settings {
	copy := *s
	copy.Tracer = tracer
	return &copy
}
