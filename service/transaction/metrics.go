package transaction

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/viant/patchtx")

var (
	transactionsTotal   metric.Int64Counter
	rollbacksTotal      metric.Int64Counter
	filesModified       metric.Int64Counter
	transactionDuration metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

var metricsEnabled atomic.Bool

func init() {
	metricsEnabled.Store(true)
}

// SetMetricsEnabled turns metric recording on or off.
func SetMetricsEnabled(enabled bool) {
	metricsEnabled.Store(enabled)
}

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error
		if transactionsTotal, err = meter.Int64Counter("patchtx_transactions_total",
			metric.WithDescription("Transactions by outcome")); err != nil {
			metricsErr = err
			return
		}
		if rollbacksTotal, err = meter.Int64Counter("patchtx_rollbacks_total",
			metric.WithDescription("Rollbacks by reason")); err != nil {
			metricsErr = err
			return
		}
		if filesModified, err = meter.Int64Counter("patchtx_files_modified",
			metric.WithDescription("Files written or removed by committed transactions")); err != nil {
			metricsErr = err
			return
		}
		if transactionDuration, err = meter.Float64Histogram("patchtx_transaction_duration_seconds",
			metric.WithDescription("Transaction duration"),
			metric.WithUnit("s")); err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordTransaction(ctx context.Context, outcome string, duration time.Duration, files int) {
	if !metricsEnabled.Load() {
		return
	}
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	transactionsTotal.Add(ctx, 1, attrs)
	transactionDuration.Record(ctx, duration.Seconds(), attrs)
	if files > 0 {
		filesModified.Add(ctx, int64(files))
	}
}

func recordRollback(ctx context.Context, reason string) {
	if !metricsEnabled.Load() {
		return
	}
	if err := initMetrics(); err != nil {
		return
	}
	rollbacksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
