package models

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runLogRowColumns = []string{
	"id", "start_time", "end_time", "status",
	"customers_loaded", "customers_expired", "products_loaded", "products_expired",
	"dates_loaded", "sales_loaded", "unresolved_keys",
	"degraded_sources", "error_message", "execution_time_seconds",
}

func newMockRepository(t *testing.T, now time.Time) (*SQLETLLogRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewSQLETLLogRepository(sqlx.NewDb(db, "mysql"), sqlbuilder.MySQL)
	repo.now = func() time.Time { return now }
	return repo, mock
}

func TestSQLETLLogRepository_CreateLogEntry(t *testing.T) {
	t.Parallel()

	started := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	repo, mock := newMockRepository(t, started)

	mock.ExpectExec(`INSERT INTO etl_run_log \(id, start_time, status\)`).
		WithArgs(sqlmock.AnyArg(), started, RunStatusInProgress).
		WillReturnResult(sqlmock.NewResult(1, 1))

	id, err := repo.CreateLogEntry(context.Background(), started)
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLETLLogRepository_CreateLogEntryError(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t, time.Now())
	mock.ExpectExec("INSERT INTO etl_run_log").WillReturnError(errors.New("read-only"))

	_, err := repo.CreateLogEntry(context.Background(), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only")
}

func TestSQLETLLogRepository_UpdateLogEntrySuccess(t *testing.T) {
	t.Parallel()

	started := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	ended := started.Add(time.Hour)
	repo, mock := newMockRepository(t, ended)

	mock.ExpectQuery("SELECT start_time FROM etl_run_log WHERE id = ").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"start_time"}).AddRow(started))
	mock.ExpectExec("UPDATE etl_run_log SET").
		WithArgs(ended, RunStatusSuccess, 2, 1, 3, 0, 3, 2, 1, "customers", "", 3600.0, "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	counters := RunCounters{
		CustomersLoaded:  2,
		CustomersExpired: 1,
		ProductsLoaded:   3,
		DatesLoaded:      3,
		SalesLoaded:      2,
		UnresolvedKeys:   1,
		DegradedSources:  []string{"customers"},
	}
	require.NoError(t, repo.UpdateLogEntrySuccess(context.Background(), "run-1", ended, counters))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLETLLogRepository_UpdateLogEntryFailure(t *testing.T) {
	t.Parallel()

	started := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	ended := started.Add(30 * time.Second)
	repo, mock := newMockRepository(t, ended)

	mock.ExpectQuery("SELECT start_time FROM etl_run_log").
		WillReturnRows(sqlmock.NewRows([]string{"start_time"}).AddRow(started))
	mock.ExpectExec("UPDATE etl_run_log SET").
		WithArgs(ended, RunStatusFailed, 0, 0, 0, 0, 0, 0, 0, "", "ошибка в фазе load_facts", 30.0, "run-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateLogEntryFailure(context.Background(), "run-2", ended, RunCounters{}, "ошибка в фазе load_facts")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLETLLogRepository_UpdateUnknownEntry(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t, time.Now())
	mock.ExpectQuery("SELECT start_time FROM etl_run_log").
		WillReturnRows(sqlmock.NewRows([]string{"start_time"}))

	err := repo.UpdateLogEntrySuccess(context.Background(), "missing", time.Now(), RunCounters{})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLETLLogRepository_GetLastSuccessfulRunNone(t *testing.T) {
	t.Parallel()

	repo, mock := newMockRepository(t, time.Now())
	mock.ExpectQuery("SELECT (.+) FROM etl_run_log WHERE status = ").
		WillReturnRows(sqlmock.NewRows(runLogRowColumns))

	run, err := repo.GetLastSuccessfulRun(context.Background())
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestSQLETLLogRepository_GetETLRunStats(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC)
	repo, mock := newMockRepository(t, now)

	started := now.Add(-time.Hour)
	ended := started.Add(90 * time.Second)
	mock.ExpectQuery(`SELECT (.+) FROM etl_run_log WHERE start_time >= \? ORDER BY start_time DESC`).
		WithArgs(now.AddDate(0, 0, -7)).
		WillReturnRows(sqlmock.NewRows(runLogRowColumns).
			AddRow("run-2", started, ended, RunStatusSuccess, 1, 1, 0, 0, 0, 1, 0, "", "", 90.0).
			AddRow("run-1", started.Add(-24*time.Hour), nil, RunStatusInProgress, 0, 0, 0, 0, 0, 0, 0, "", "", 0.0))

	runs, err := repo.GetETLRunStats(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	require.NotNil(t, runs[0].EndTime)
	assert.True(t, ended.Equal(*runs[0].EndTime))
	assert.Equal(t, 90.0, runs[0].ExecutionTimeSeconds)
	assert.Nil(t, runs[1].EndTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLETLLogRepository_GetETLStateMonitor(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 16, 12, 0, 0, 0, time.UTC)
	repo, mock := newMockRepository(t, now)

	lastEnd := now.Add(-time.Hour)
	mock.ExpectQuery("SELECT (.+) FROM etl_run_log WHERE status = (.+) ORDER BY end_time DESC").
		WillReturnRows(sqlmock.NewRows(runLogRowColumns).
			AddRow("run-1", lastEnd.Add(-time.Minute), lastEnd, RunStatusSuccess, 2, 0, 1, 0, 3, 2, 0, "", "", 60.0))
	mock.ExpectQuery("SELECT (.+) FROM etl_run_log WHERE status = (.+) ORDER BY end_time DESC").
		WillReturnRows(sqlmock.NewRows(runLogRowColumns))
	mock.ExpectQuery("SELECT (.+) FROM etl_run_log WHERE status = (.+) ORDER BY start_time DESC").
		WillReturnRows(sqlmock.NewRows(runLogRowColumns).
			AddRow("run-2", now.Add(-10*time.Minute), nil, RunStatusInProgress, 0, 0, 0, 0, 0, 0, 0, "", "", 0.0))
	mock.ExpectQuery("AS total_success").
		WillReturnRows(sqlmock.NewRows([]string{"total_success", "total_failed", "avg_time", "total_rows"}).
			AddRow(int64(4), int64(1), 45.5, int64(20)))

	state, err := repo.GetETLStateMonitor(context.Background())
	require.NoError(t, err)

	require.NotNil(t, state.LastSuccessfulRun)
	assert.Equal(t, "run-1", state.LastSuccessfulRun.ID)
	assert.Nil(t, state.LastFailedRun)
	require.NotNil(t, state.CurrentRun)
	assert.Equal(t, 600.0, state.CurrentRun.ExecutionTimeSeconds)
	assert.Equal(t, 4, state.TotalSuccessfulRuns)
	assert.Equal(t, 1, state.TotalFailedRuns)
	assert.Equal(t, 45.5, state.AvgExecutionTimeSeconds)
	assert.Equal(t, 20, state.TotalRowsLoaded)
	assert.NoError(t, mock.ExpectationsWereMet())
}
