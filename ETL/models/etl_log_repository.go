package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
)

// runLogColumns колонки журнала в порядке выборки
var runLogColumns = []string{
	"id",
	"start_time",
	"end_time",
	"status",
	"customers_loaded",
	"customers_expired",
	"products_loaded",
	"products_expired",
	"dates_loaded",
	"sales_loaded",
	"unresolved_keys",
	"IFNULL(degraded_sources, '') AS degraded_sources",
	"IFNULL(error_message, '') AS error_message",
	"execution_time_seconds",
}

const etlRunLogDDL = `
	CREATE TABLE IF NOT EXISTS etl_run_log (
		id VARCHAR(36) PRIMARY KEY,
		start_time DATETIME NOT NULL,
		end_time DATETIME,
		status VARCHAR(16) NOT NULL DEFAULT 'in_progress',
		customers_loaded INT NOT NULL DEFAULT 0,
		customers_expired INT NOT NULL DEFAULT 0,
		products_loaded INT NOT NULL DEFAULT 0,
		products_expired INT NOT NULL DEFAULT 0,
		dates_loaded INT NOT NULL DEFAULT 0,
		sales_loaded INT NOT NULL DEFAULT 0,
		unresolved_keys INT NOT NULL DEFAULT 0,
		degraded_sources TEXT,
		error_message TEXT,
		execution_time_seconds DOUBLE NOT NULL DEFAULT 0
	)
	`

// SQLETLLogRepository реализация ETLLogRepository поверх sqlx (MySQL или SQLite)
type SQLETLLogRepository struct {
	db     *sqlx.DB
	flavor sqlbuilder.Flavor
	now    func() time.Time
}

// NewSQLETLLogRepository создает новый экземпляр SQLETLLogRepository
func NewSQLETLLogRepository(db *sqlx.DB, flavor sqlbuilder.Flavor) *SQLETLLogRepository {
	return &SQLETLLogRepository{
		db:     db,
		flavor: flavor,
		now:    time.Now,
	}
}

// CreateETLLogTable создает таблицу для логирования ETL процесса, если она не существует
func (r *SQLETLLogRepository) CreateETLLogTable(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, etlRunLogDDL); err != nil {
		return fmt.Errorf("ошибка при создании таблицы etl_run_log: %w", err)
	}
	return nil
}

// CreateLogEntry создает новую запись о запуске ETL
func (r *SQLETLLogRepository) CreateLogEntry(ctx context.Context, startTime time.Time) (string, error) {
	id := uuid.NewString()

	ib := r.flavor.NewInsertBuilder()
	ib.InsertInto(TableETLRunLog)
	ib.Cols("id", "start_time", "status")
	ib.Values(id, startTime.UTC(), RunStatusInProgress)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("ошибка при создании записи о запуске ETL: %w", err)
	}

	return id, nil
}

// UpdateLogEntrySuccess обновляет запись при успешном завершении ETL
func (r *SQLETLLogRepository) UpdateLogEntrySuccess(ctx context.Context, id string, endTime time.Time, counters RunCounters) error {
	return r.finishEntry(ctx, id, endTime, RunStatusSuccess, counters, "")
}

// UpdateLogEntryFailure обновляет запись при неудачном завершении ETL
func (r *SQLETLLogRepository) UpdateLogEntryFailure(ctx context.Context, id string, endTime time.Time, counters RunCounters, errorMessage string) error {
	return r.finishEntry(ctx, id, endTime, RunStatusFailed, counters, errorMessage)
}

func (r *SQLETLLogRepository) finishEntry(ctx context.Context, id string, endTime time.Time, status string, counters RunCounters, errorMessage string) error {
	// Рассчитываем время выполнения в секундах
	sb := r.flavor.NewSelectBuilder()
	sb.Select("start_time").From(TableETLRunLog).Where(sb.Equal("id", id))
	query, args := sb.Build()

	var startTime time.Time
	if err := r.db.GetContext(ctx, &startTime, query, args...); err != nil {
		return fmt.Errorf("ошибка при получении времени начала ETL: %w", err)
	}
	executionTime := endTime.Sub(startTime).Seconds()

	ub := r.flavor.NewUpdateBuilder()
	ub.Update(TableETLRunLog)
	ub.Set(
		ub.Assign("end_time", endTime.UTC()),
		ub.Assign("status", status),
		ub.Assign("customers_loaded", counters.CustomersLoaded),
		ub.Assign("customers_expired", counters.CustomersExpired),
		ub.Assign("products_loaded", counters.ProductsLoaded),
		ub.Assign("products_expired", counters.ProductsExpired),
		ub.Assign("dates_loaded", counters.DatesLoaded),
		ub.Assign("sales_loaded", counters.SalesLoaded),
		ub.Assign("unresolved_keys", counters.UnresolvedKeys),
		ub.Assign("degraded_sources", strings.Join(counters.DegradedSources, ",")),
		ub.Assign("error_message", errorMessage),
		ub.Assign("execution_time_seconds", executionTime),
	)
	ub.Where(ub.Equal("id", id))

	query, args = ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("ошибка при обновлении записи о запуске ETL: %w", err)
	}

	return nil
}

// GetLastSuccessfulRun получает информацию о последнем успешном запуске ETL
func (r *SQLETLLogRepository) GetLastSuccessfulRun(ctx context.Context) (*ETLRunLog, error) {
	run, err := r.lastRunWithStatus(ctx, RunStatusSuccess, "end_time")
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении информации о последнем успешном запуске ETL: %w", err)
	}
	return run, nil
}

// lastRunWithStatus возвращает nil без ошибки, если запусков с таким статусом нет
func (r *SQLETLLogRepository) lastRunWithStatus(ctx context.Context, status, orderBy string) (*ETLRunLog, error) {
	sb := r.flavor.NewSelectBuilder()
	sb.Select(runLogColumns...).
		From(TableETLRunLog).
		Where(sb.Equal("status", status)).
		OrderBy(orderBy).Desc().
		Limit(1)
	query, args := sb.Build()

	var run ETLRunLog
	if err := r.db.GetContext(ctx, &run, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// GetETLRunStats получает статистику о запусках ETL за определенный период
func (r *SQLETLLogRepository) GetETLRunStats(ctx context.Context, days int) ([]ETLRunLog, error) {
	since := r.now().UTC().AddDate(0, 0, -days)

	sb := r.flavor.NewSelectBuilder()
	sb.Select(runLogColumns...).
		From(TableETLRunLog).
		Where(sb.GreaterEqualThan("start_time", since)).
		OrderBy("start_time").Desc()
	query, args := sb.Build()

	logs := []ETLRunLog{}
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("ошибка при получении статистики запусков ETL: %w", err)
	}

	return logs, nil
}

// GetETLStateMonitor получает информацию о текущем состоянии ETL процесса
func (r *SQLETLLogRepository) GetETLStateMonitor(ctx context.Context) (*ETLStateMonitor, error) {
	lastSuccessful, err := r.GetLastSuccessfulRun(ctx)
	if err != nil {
		return nil, err
	}

	lastFailed, err := r.lastRunWithStatus(ctx, RunStatusFailed, "end_time")
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении информации о последнем неудачном запуске ETL: %w", err)
	}

	currentRun, err := r.lastRunWithStatus(ctx, RunStatusInProgress, "start_time")
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении информации о текущем запуске ETL: %w", err)
	}
	if currentRun != nil {
		currentRun.ExecutionTimeSeconds = r.now().Sub(currentRun.StartTime).Seconds()
	}

	var totals struct {
		Success sql.NullInt64   `db:"total_success"`
		Failed  sql.NullInt64   `db:"total_failed"`
		AvgTime sql.NullFloat64 `db:"avg_time"`
		Rows    sql.NullInt64   `db:"total_rows"`
	}
	err = r.db.GetContext(ctx, &totals, `
		SELECT
			SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END) AS total_success,
			SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) AS total_failed,
			AVG(CASE WHEN status = 'success' THEN execution_time_seconds ELSE NULL END) AS avg_time,
			SUM(CASE WHEN status = 'success'
				THEN customers_loaded + products_loaded + dates_loaded + sales_loaded
				ELSE 0 END) AS total_rows
		FROM etl_run_log
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении статистики запусков ETL: %w", err)
	}

	return &ETLStateMonitor{
		LastSuccessfulRun:       lastSuccessful,
		LastFailedRun:           lastFailed,
		CurrentRun:              currentRun,
		TotalSuccessfulRuns:     int(totals.Success.Int64),
		TotalFailedRuns:         int(totals.Failed.Int64),
		AvgExecutionTimeSeconds: totals.AvgTime.Float64,
		TotalRowsLoaded:         int(totals.Rows.Int64),
	}, nil
}
