package models

import (
	"context"
	"time"
)

// Статусы запуска ETL
const (
	RunStatusInProgress = "in_progress"
	RunStatusSuccess    = "success"
	RunStatusFailed     = "failed"
)

// ETLRunLog представляет запись о запуске ETL процесса
type ETLRunLog struct {
	ID                   string     `db:"id" json:"id"`
	StartTime            time.Time  `db:"start_time" json:"start_time"`
	EndTime              *time.Time `db:"end_time" json:"end_time,omitempty"`
	Status               string     `db:"status" json:"status"`
	CustomersLoaded      int        `db:"customers_loaded" json:"customers_loaded"`
	CustomersExpired     int        `db:"customers_expired" json:"customers_expired"`
	ProductsLoaded       int        `db:"products_loaded" json:"products_loaded"`
	ProductsExpired      int        `db:"products_expired" json:"products_expired"`
	DatesLoaded          int        `db:"dates_loaded" json:"dates_loaded"`
	SalesLoaded          int        `db:"sales_loaded" json:"sales_loaded"`
	UnresolvedKeys       int        `db:"unresolved_keys" json:"unresolved_keys"`
	DegradedSources      string     `db:"degraded_sources" json:"degraded_sources,omitempty"`
	ErrorMessage         string     `db:"error_message" json:"error_message,omitempty"`
	ExecutionTimeSeconds float64    `db:"execution_time_seconds" json:"execution_time_seconds"`
}

// RunCounters счетчики, накапливаемые в ходе запуска
type RunCounters struct {
	CustomersLoaded  int
	CustomersExpired int
	ProductsLoaded   int
	ProductsExpired  int
	DatesLoaded      int
	SalesLoaded      int
	UnresolvedKeys   int
	DegradedSources  []string
}

// ETLLogRepository представляет репозиторий для работы с логами ETL
type ETLLogRepository interface {
	// CreateETLLogTable создает таблицу журнала, если она не существует
	CreateETLLogTable(ctx context.Context) error

	// CreateLogEntry создает новую запись о запуске ETL и возвращает ее идентификатор
	CreateLogEntry(ctx context.Context, startTime time.Time) (string, error)

	// UpdateLogEntrySuccess обновляет запись при успешном завершении ETL
	UpdateLogEntrySuccess(ctx context.Context, id string, endTime time.Time, counters RunCounters) error

	// UpdateLogEntryFailure обновляет запись при неудачном завершении ETL
	UpdateLogEntryFailure(ctx context.Context, id string, endTime time.Time, counters RunCounters, errorMessage string) error

	// GetLastSuccessfulRun получает информацию о последнем успешном запуске ETL
	GetLastSuccessfulRun(ctx context.Context) (*ETLRunLog, error)

	// GetETLRunStats получает запуски ETL за последние days дней
	GetETLRunStats(ctx context.Context, days int) ([]ETLRunLog, error)

	// GetETLStateMonitor собирает сводку о состоянии ETL процесса
	GetETLStateMonitor(ctx context.Context) (*ETLStateMonitor, error)
}

// ETLStateMonitor предоставляет информацию о текущем состоянии ETL процесса
type ETLStateMonitor struct {
	LastSuccessfulRun       *ETLRunLog `json:"last_successful_run"`
	LastFailedRun           *ETLRunLog `json:"last_failed_run,omitempty"`
	CurrentRun              *ETLRunLog `json:"current_run,omitempty"`
	TotalSuccessfulRuns     int        `json:"total_successful_runs"`
	TotalFailedRuns         int        `json:"total_failed_runs"`
	AvgExecutionTimeSeconds float64    `json:"avg_execution_time_seconds"`
	TotalRowsLoaded         int        `json:"total_rows_loaded"` // строки всех таблиц по успешным запускам
}
