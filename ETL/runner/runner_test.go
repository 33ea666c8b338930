package runner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"sync"
	"testing"
	"time"

	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/load"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/models"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/transform"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	day1 = time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	day2 = time.Date(2024, 3, 16, 9, 30, 0, 0, time.UTC)
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ns(s string) sql.NullString   { return sql.NullString{String: s, Valid: true} }
func nt(t time.Time) sql.NullTime  { return sql.NullTime{Time: t, Valid: true} }
func ni(i int64) sql.NullInt64     { return sql.NullInt64{Int64: i, Valid: true} }
func nf(f float64) sql.NullFloat64 { return sql.NullFloat64{Float64: f, Valid: true} }

// memTable таблица хранилища в памяти
type memTable[T any] struct {
	name      string
	rows      []T
	key       func(T) string
	meta      func(*T) *models.SCD2Metadata
	appendErr error
}

func (m *memTable[T]) Name() string { return m.name }

func (m *memTable[T]) ReadCurrent(context.Context) []T { return append([]T(nil), m.rows...) }

func (m *memTable[T]) ReadColumn(context.Context, string) []string {
	return lo.Map(m.rows, func(row T, _ int) string { return m.key(row) })
}

func (m *memTable[T]) Append(_ context.Context, rows []T) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.rows = append(m.rows, rows...)
	return nil
}

func (m *memTable[T]) UpdateByKey(_ context.Context, _ string, updates map[string]map[string]any) error {
	for i := range m.rows {
		values, ok := updates[m.key(m.rows[i])]
		if !ok {
			continue
		}
		meta := m.meta(&m.rows[i])
		meta.CurrentFlag = values["current_flag"].(string)
		meta.EndDate = sql.NullTime{Time: values["end_date"].(time.Time), Valid: true}
	}
	return nil
}

type passthroughTx struct{}

func (passthroughTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memWatermarks struct {
	saved load.Watermarks
}

func (m *memWatermarks) Load() load.Watermarks { return m.saved.Clone() }

func (m *memWatermarks) Save(marks load.Watermarks) error {
	m.saved = maps.Clone(marks)
	return nil
}

type fakeExtractor struct {
	data    func() *models.ExtractedData
	err     error
	release chan struct{}
	calls   int
}

func (f *fakeExtractor) Extract(ctx context.Context) (*models.ExtractedData, error) {
	f.calls++
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.data(), nil
}

type fakeLogRepo struct {
	mu        sync.Mutex
	createErr error
	entries   map[string]*models.ETLRunLog
	order     []string
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{entries: map[string]*models.ETLRunLog{}}
}

func (f *fakeLogRepo) CreateETLLogTable(context.Context) error { return nil }

func (f *fakeLogRepo) CreateLogEntry(_ context.Context, startTime time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	id := fmt.Sprintf("run-%d", len(f.order)+1)
	f.entries[id] = &models.ETLRunLog{ID: id, StartTime: startTime, Status: models.RunStatusInProgress}
	f.order = append(f.order, id)
	return id, nil
}

func (f *fakeLogRepo) finish(id string, endTime time.Time, status string, c models.RunCounters, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.entries[id]
	e.EndTime = &endTime
	e.Status = status
	e.CustomersLoaded = c.CustomersLoaded
	e.CustomersExpired = c.CustomersExpired
	e.ProductsLoaded = c.ProductsLoaded
	e.ProductsExpired = c.ProductsExpired
	e.DatesLoaded = c.DatesLoaded
	e.SalesLoaded = c.SalesLoaded
	e.UnresolvedKeys = c.UnresolvedKeys
	e.ErrorMessage = msg
	return nil
}

func (f *fakeLogRepo) UpdateLogEntrySuccess(_ context.Context, id string, endTime time.Time, c models.RunCounters) error {
	return f.finish(id, endTime, models.RunStatusSuccess, c, "")
}

func (f *fakeLogRepo) UpdateLogEntryFailure(_ context.Context, id string, endTime time.Time, c models.RunCounters, msg string) error {
	return f.finish(id, endTime, models.RunStatusFailed, c, msg)
}

func (f *fakeLogRepo) GetLastSuccessfulRun(context.Context) (*models.ETLRunLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.order) - 1; i >= 0; i-- {
		if e := f.entries[f.order[i]]; e.Status == models.RunStatusSuccess {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeLogRepo) GetETLRunStats(context.Context, int) ([]models.ETLRunLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return lo.Map(f.order, func(id string, _ int) models.ETLRunLog { return *f.entries[id] }), nil
}

func (f *fakeLogRepo) GetETLStateMonitor(context.Context) (*models.ETLStateMonitor, error) {
	return &models.ETLStateMonitor{}, nil
}

func (f *fakeLogRepo) last() models.ETLRunLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.entries[f.order[len(f.order)-1]]
}

type eventRecorder struct {
	mu     sync.Mutex
	events []models.ProgressEvent
}

func (e *eventRecorder) PublishProgress(event models.ProgressEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *eventRecorder) steps() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return lo.Map(e.events, func(ev models.ProgressEvent, _ int) string { return ev.Phase + ":" + ev.Status })
}

type fixture struct {
	runner     *ETLRunner
	extractor  *fakeExtractor
	logRepo    *fakeLogRepo
	customers  *memTable[models.CustomerDimension]
	products   *memTable[models.ProductDimension]
	dates      *memTable[models.DateDimension]
	sales      *memTable[models.SalesFact]
	watermarks *memWatermarks
	events     *eventRecorder
	now        time.Time
	firstName  string
}

func newFixture(policy transform.UnresolvedKeyPolicy) *fixture {
	f := &fixture{
		logRepo: newFakeLogRepo(),
		customers: &memTable[models.CustomerDimension]{
			name: models.TableCustomerDimension,
			key:  func(c models.CustomerDimension) string { return c.CustomerSK },
			meta: func(c *models.CustomerDimension) *models.SCD2Metadata { return &c.SCD2Metadata },
		},
		products: &memTable[models.ProductDimension]{
			name: models.TableProductDimension,
			key:  func(p models.ProductDimension) string { return p.ProductSK },
			meta: func(p *models.ProductDimension) *models.SCD2Metadata { return &p.SCD2Metadata },
		},
		dates: &memTable[models.DateDimension]{
			name: models.TableDateDimension,
			key:  func(d models.DateDimension) string { return d.DateSK },
		},
		sales: &memTable[models.SalesFact]{
			name: models.TableSalesFact,
			key:  func(s models.SalesFact) string { return s.SalesSK },
		},
		watermarks: &memWatermarks{saved: load.Watermarks{}},
		events:     &eventRecorder{},
		now:        day1,
		firstName:  "Jon",
	}
	f.extractor = &fakeExtractor{data: f.sourceData}

	logger := utils.NewNopLogger()
	tables := load.Tables{Customers: f.customers, Products: f.products, Dates: f.dates, Sales: f.sales}
	loadManager := load.NewLoadManager(passthroughTx{}, tables, f.watermarks, logger)

	settings := transform.DefaultSettings()
	settings.UnresolvedKeyPolicy = policy

	f.runner = NewETLRunner(logger, f.extractor, transform.NewTransformer(logger, settings), loadManager, f.logRepo,
		WithProgressSink(f.events),
		WithClock(func() time.Time { return f.now }),
	)
	return f
}

func (f *fixture) sourceData() *models.ExtractedData {
	return &models.ExtractedData{
		CustomerInfos: []models.CustomerInfo{
			{ID: ni(11000), Key: "AW00011000", FirstName: ns(f.firstName), LastName: ns("Yang"), MaritalStatus: ns("M"), Gender: ns("M"), CreateDate: nt(day(2023, 10, 6))},
			{ID: ni(11001), Key: "AW00011001", FirstName: ns("Eugene"), LastName: ns("Huang"), MaritalStatus: ns("S"), Gender: ns("M"), CreateDate: nt(day(2023, 10, 6))},
		},
		Customers:         []models.CustomerERP{{CID: "AW00011000", BirthDate: nt(day(1971, 10, 6)), Gender: ns("Male")}},
		CustomerLocations: []models.CustomerLocation{{CID: "AW-00011000", Country: ns("Australia")}},
		Products: []models.ProductInfo{
			{ID: ni(210), Key: "CO-RF-FR-R92B-58", Name: ns("HL Road Frame - Black- 58"), Cost: nf(1431.5), Line: ns("R"), StartDate: nt(day(2023, 7, 1))},
		},
		ProductCategories: []models.ProductCategory{{ID: "CO_RF", Category: ns("Components"), Subcategory: ns("Road Frames"), Maintenance: ns("Yes")}},
		Sales: []models.SalesDetail{
			{OrderNumber: "SO43697", ProductKey: "FR-R92B-58", CustomerID: "11000", OrderDate: "20240110", ShipDate: "20240117", DueDate: "20240122", Sales: nf(1431.5), Quantity: ni(1), Price: nf(1431.5)},
			{OrderNumber: "SO43698", ProductKey: "FR-R92B-58", CustomerID: "99999", OrderDate: "20240110", ShipDate: "20240117", DueDate: "20240122", Sales: nf(2863), Quantity: ni(2), Price: nf(1431.5)},
		},
	}
}

func (f *fixture) currentCustomer(key string) models.CustomerDimension {
	row, ok := lo.Find(f.customers.rows, func(c models.CustomerDimension) bool {
		return c.CustomerKey == key && c.IsCurrent()
	})
	if !ok {
		panic("нет действующей версии " + key)
	}
	return row
}

func TestExecuteETL_InitialRunLoadsAllTables(t *testing.T) {
	f := newFixture(transform.PolicyFlag)

	summary, err := f.runner.ExecuteETL(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.RunCounters{
		CustomersLoaded: 2,
		ProductsLoaded:  1,
		DatesLoaded:     3,
		SalesLoaded:     2,
		UnresolvedKeys:  1,
	}, summary.Counters)
	assert.Equal(t, 1, summary.Unresolved.Customer)
	assert.Len(t, summary.Stats, 4)

	require.Len(t, f.sales.rows, 2)
	jon := f.currentCustomer("AW00011000")
	assert.Equal(t, ns(jon.CustomerSK), f.sales.rows[0].CustomerSK)
	assert.False(t, f.sales.rows[1].CustomerSK.Valid, "unresolved customer is flagged with a null key")
	assert.Equal(t, ns(f.products.rows[0].ProductSK), f.sales.rows[0].ProductSK)

	assert.Equal(t, load.Watermarks{
		models.TableCustomerDimension: "2024-03-15",
		models.TableProductDimension:  "2024-03-15",
		models.TableDateDimension:     "2024-01-22",
		models.TableSalesFact:         "2024-03-15",
	}, f.watermarks.saved)

	entry := f.logRepo.last()
	assert.Equal(t, models.RunStatusSuccess, entry.Status)
	assert.Equal(t, summary.RunID, entry.ID)
	assert.Equal(t, 2, entry.SalesLoaded)
	assert.Equal(t, 1, entry.UnresolvedKeys)

	assert.Equal(t, []string{
		"run:started",
		"extract:started", "extract:completed",
		"transform_dimensions:started", "transform_dimensions:completed",
		"load_dimensions:started", "load_dimensions:completed",
		"transform_facts:started", "transform_facts:completed",
		"load_facts:started", "load_facts:completed",
		"run:completed",
	}, f.events.steps())
}

func TestExecuteETL_NextDaySupersedesChangedCustomer(t *testing.T) {
	f := newFixture(transform.PolicyFlag)

	_, err := f.runner.ExecuteETL(context.Background())
	require.NoError(t, err)
	previous := f.currentCustomer("AW00011000")

	f.now = day2
	f.firstName = "Jonathan"
	summary, err := f.runner.ExecuteETL(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Counters.CustomersLoaded)
	assert.Equal(t, 1, summary.Counters.CustomersExpired)
	assert.Equal(t, 0, summary.Counters.ProductsLoaded)
	assert.Equal(t, 0, summary.Counters.DatesLoaded)
	assert.Equal(t, 2, summary.Counters.SalesLoaded)

	require.Len(t, f.customers.rows, 3)
	expired, ok := lo.Find(f.customers.rows, func(c models.CustomerDimension) bool { return c.CustomerSK == previous.CustomerSK })
	require.True(t, ok)
	assert.Equal(t, models.CurrentFlagNo, expired.CurrentFlag)
	assert.Equal(t, nt(day(2024, 3, 16)), expired.EndDate)

	current := f.currentCustomer("AW00011000")
	assert.Equal(t, "Jonathan", current.FirstName.String)
	assert.NotEqual(t, previous.CustomerSK, current.CustomerSK)

	for _, key := range []string{"AW00011000", "AW00011001"} {
		n := lo.CountBy(f.customers.rows, func(c models.CustomerDimension) bool { return c.CustomerKey == key && c.IsCurrent() })
		assert.Equal(t, 1, n, key)
	}

	require.Len(t, f.sales.rows, 4)
	assert.Equal(t, "SALES3", f.sales.rows[2].SalesSK)
	assert.Equal(t, ns(current.CustomerSK), f.sales.rows[2].CustomerSK, "facts resolve to the persisted current version")
	assert.Len(t, f.dates.rows, 3)
}

func TestExecuteETL_FailPolicyAbortsBeforeFacts(t *testing.T) {
	f := newFixture(transform.PolicyFail)

	summary, err := f.runner.ExecuteETL(context.Background())
	require.ErrorIs(t, err, transform.ErrUnresolvedKeys)
	require.NotNil(t, summary)

	assert.Len(t, f.customers.rows, 2, "dimensions are persisted before facts")
	assert.Empty(t, f.dates.rows)
	assert.Empty(t, f.sales.rows)
	assert.NotContains(t, f.watermarks.saved, models.TableSalesFact)

	entry := f.logRepo.last()
	assert.Equal(t, models.RunStatusFailed, entry.Status)
	assert.Equal(t, 1, entry.UnresolvedKeys)
	assert.Equal(t, 2, entry.CustomersLoaded)
	assert.Contains(t, entry.ErrorMessage, PhaseTransformFacts)

	steps := f.events.steps()
	assert.Contains(t, steps, "transform_facts:failed")
	assert.Equal(t, "run:failed", steps[len(steps)-1])
}

func TestExecuteETL_ExtractFailureLeavesWarehouseUntouched(t *testing.T) {
	f := newFixture(transform.PolicyFlag)
	f.extractor.err = errors.New("диск недоступен")

	_, err := f.runner.ExecuteETL(context.Background())
	require.Error(t, err)

	assert.Empty(t, f.customers.rows)
	assert.Empty(t, f.watermarks.saved)
	assert.Equal(t, models.RunStatusFailed, f.logRepo.last().Status)
}

func TestExecuteETL_PersistFailureMarksRunFailed(t *testing.T) {
	f := newFixture(transform.PolicyFlag)
	f.sales.appendErr = errors.New("deadlock")

	_, err := f.runner.ExecuteETL(context.Background())
	require.Error(t, err)

	entry := f.logRepo.last()
	assert.Equal(t, models.RunStatusFailed, entry.Status)
	assert.Contains(t, entry.ErrorMessage, "deadlock")
	assert.Equal(t, 3, entry.DatesLoaded)
	assert.NotContains(t, f.watermarks.saved, models.TableSalesFact)
}

func TestExecuteETL_LogEntryFailureStopsRun(t *testing.T) {
	f := newFixture(transform.PolicyFlag)
	f.logRepo.createErr = errors.New("нет таблицы")

	_, err := f.runner.ExecuteETL(context.Background())
	require.Error(t, err)
	assert.Zero(t, f.extractor.calls)
}

func TestExecuteETL_CancelledContext(t *testing.T) {
	f := newFixture(transform.PolicyFlag)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.runner.ExecuteETL(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.extractor.calls)
	assert.Equal(t, models.RunStatusFailed, f.logRepo.last().Status)
}

func TestTrigger_RejectsConcurrentRuns(t *testing.T) {
	f := newFixture(transform.PolicyFlag)
	f.extractor.release = make(chan struct{})

	require.NoError(t, f.runner.Trigger(context.Background()))

	_, err := f.runner.ExecuteETL(context.Background())
	require.ErrorIs(t, err, ErrRunInProgress)
	require.ErrorIs(t, f.runner.Trigger(context.Background()), ErrRunInProgress)

	close(f.extractor.release)
	f.runner.Wait()

	assert.Equal(t, models.RunStatusSuccess, f.logRepo.last().Status)

	_, err = f.runner.ExecuteETL(context.Background())
	require.NoError(t, err)
}

func TestRunnerQueries(t *testing.T) {
	f := newFixture(transform.PolicyFlag)
	_, err := f.runner.ExecuteETL(context.Background())
	require.NoError(t, err)

	runs, err := f.runner.RunStats(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	marks := f.runner.Watermarks()
	assert.Equal(t, "2024-03-15", marks[models.TableSalesFact])
}

func TestSchedule(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "каждые 1h0m0s", Schedule{Interval: time.Hour}.String())
	assert.Equal(t, "cron 0 2 * * *", Schedule{Interval: time.Hour, Cron: "0 2 * * *"}.String())

	r := newFixture(transform.PolicyFlag).runner

	scheduler, err := r.NewScheduler(context.Background(), Schedule{Interval: time.Hour})
	require.NoError(t, err)
	assert.Len(t, scheduler.Jobs(), 1)

	scheduler, err = r.NewScheduler(context.Background(), Schedule{Cron: "0 2 * * *"})
	require.NoError(t, err)
	assert.Len(t, scheduler.Jobs(), 1)

	_, err = r.NewScheduler(context.Background(), Schedule{Cron: "not a cron"})
	require.Error(t, err)
}
