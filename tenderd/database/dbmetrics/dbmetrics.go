// Package dbmetrics records query latencies and transaction outcomes of a
// database.Store in prometheus.
package dbmetrics

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"cdr.dev/slog/v3"

	"github.com/tenderd/tenderd/tenderd/database"
)

const wrapperName = "dbmetrics"

type queryMetricsStore struct {
	s              database.Store
	logger         slog.Logger
	queryLatencies *prometheus.HistogramVec
	txDuration     *prometheus.HistogramVec
	txRetries      *prometheus.CounterVec
}

// NewQueryMetrics wraps s. Wrapping an already wrapped store returns it
// unchanged.
func NewQueryMetrics(s database.Store, logger slog.Logger, reg prometheus.Registerer) database.Store {
	if slices.Contains(s.Wrappers(), wrapperName) {
		return s
	}
	queryLatencies := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tenderd",
		Subsystem: "db",
		Name:      "query_latencies_seconds",
		Help:      "Latency distribution of queries in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"query"})
	txDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tenderd",
		Subsystem: "db",
		Name:      "tx_duration_seconds",
		Help:      "Duration of transactions in seconds, including retries.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"success", "tx_id"})
	txRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tenderd",
		Subsystem: "db",
		Name:      "tx_executions_count",
		Help:      "Transactions that had to run more than once.",
	}, []string{"success", "retries", "tx_id"})
	reg.MustRegister(queryLatencies, txDuration, txRetries)

	return &queryMetricsStore{
		s:              s,
		logger:         logger,
		queryLatencies: queryLatencies,
		txDuration:     txDuration,
		txRetries:      txRetries,
	}
}

func (m *queryMetricsStore) Wrappers() []string {
	return append(m.s.Wrappers(), wrapperName)
}

func (m *queryMetricsStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	duration, err := m.s.Ping(ctx)
	m.queryLatencies.WithLabelValues("Ping").Observe(time.Since(start).Seconds())
	return duration, err
}

func (m *queryMetricsStore) InTx(f func(database.Store) error, options *database.TxOptions) error {
	if options == nil {
		options = database.DefaultTXOptions()
	}
	txID := options.TxIdentifier
	if txID == "" {
		txID = "unlabeled"
	}

	start := time.Now()
	err := m.s.InTx(func(tx database.Store) error {
		inner := *m
		inner.s = tx
		return f(&inner)
	}, options)
	success := strconv.FormatBool(err == nil)
	m.txDuration.WithLabelValues(success, txID).Observe(time.Since(start).Seconds())

	if executions := options.ExecutionCount(); executions > 1 {
		m.txRetries.WithLabelValues(success, strconv.Itoa(executions-1), txID).Inc()
		m.logger.Warn(context.Background(), "database transaction hit serialization error and had to retry",
			slog.F("success", err == nil),
			slog.F("executions", executions),
			slog.F("id", txID),
			slog.Error(err),
		)
	}
	return err
}
