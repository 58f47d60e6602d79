package patchtx

import (
	"log/slog"

	"github.com/viant/afs"
	"github.com/viant/patchtx/cache"
	"github.com/viant/patchtx/progress"
	"github.com/viant/patchtx/service/oracle"
	"github.com/viant/patchtx/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises a Service.
type Option func(s *Service)

// WithConfig replaces the configuration; options applied later may still adjust it.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithWindow sets the fuzzy match window.
func WithWindow(window int) Option {
	return func(s *Service) { s.config.Window = window }
}

// WithMaxFiles sets the per-transaction file limit.
func WithMaxFiles(maxFiles int) Option {
	return func(s *Service) { s.config.MaxFiles = maxFiles }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithCache memoises match results in c; the caller owns c.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithOracle replaces the default shell verification oracle.
func WithOracle(o oracle.Oracle) Option {
	return func(s *Service) { s.oracle = o }
}

// WithFS sets the afs service used to reach the project root.
func WithFS(fs afs.Service) Option {
	return func(s *Service) { s.fs = fs }
}

// WithProgress registers a callback receiving transaction counters.
func WithProgress(onChange func(progress.Counters)) Option {
	return func(s *Service) { s.onProgress = onChange }
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile is empty the
// stdout exporter is used; otherwise traces are written to the supplied file path. The function is
// safe to call multiple times; the first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom SpanExporter.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
