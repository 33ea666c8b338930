// Package metrics содержит метрики Prometheus для ETL хранилища продаж.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "salesdw"

var (
	// RunsTotal количество запусков ETL по статусу
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "etl",
			Name:      "runs_total",
			Help:      "Total number of ETL runs by status",
		},
		[]string{"status"},
	)

	// RunInProgress 1, пока выполняется запуск
	RunInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "etl",
			Name:      "run_in_progress",
			Help:      "Whether an ETL run is currently executing",
		},
	)

	// PhaseDuration длительность фаз ETL
	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "etl",
			Name:      "phase_duration_seconds",
			Help:      "Duration of ETL phases in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"phase"},
	)

	// RowsLoaded строки, добавленные в таблицы хранилища
	RowsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "rows_loaded_total",
			Help:      "Total number of rows appended per warehouse table",
		},
		[]string{"table"},
	)

	// RowsExpired закрытые версии измерений
	RowsExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "rows_expired_total",
			Help:      "Total number of dimension versions expired",
		},
		[]string{"table"},
	)

	// RowsSkipped строки, отсеянные водяным знаком
	RowsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "rows_skipped_total",
			Help:      "Total number of rows skipped by the watermark filter",
		},
		[]string{"table"},
	)

	// UnresolvedKeys неразрешенные внешние ключи фактов
	UnresolvedKeys = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "unresolved_keys_total",
			Help:      "Total number of unresolved fact foreign keys by key column",
		},
		[]string{"key"},
	)

	// DegradedSources источники, замененные пустым набором из-за ошибки чтения
	DegradedSources = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "degraded_sources_total",
			Help:      "Total number of source reads that failed and were replaced with an empty set",
		},
		[]string{"source"},
	)

	// RowsExtracted строки, прочитанные из источников
	RowsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "rows_total",
			Help:      "Total number of rows read per source",
		},
		[]string{"source"},
	)

	// WebsocketClients подключенные наблюдатели хода выполнения
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ops",
			Name:      "websocket_clients",
			Help:      "Number of connected run progress subscribers",
		},
	)
)
