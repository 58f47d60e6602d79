// Package tracing wraps OpenTelemetry so that transaction phases can be
// traced without the rest of the module importing the SDK directly. Until
// Init or InitWithExporter is called spans are no-ops.
package tracing
