// Package runner связывает фазы ETL в один запуск и ведет журнал запусков.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/load"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/metrics"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/models"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/transform"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
)

// ErrRunInProgress запуск отклонен, так как предыдущий еще выполняется
var ErrRunInProgress = errors.New("ETL процесс уже выполняется")

// Фазы запуска
const (
	PhaseRun                 = "run"
	PhaseExtract             = "extract"
	PhaseTransformDimensions = "transform_dimensions"
	PhaseLoadDimensions      = "load_dimensions"
	PhaseTransformFacts      = "transform_facts"
	PhaseLoadFacts           = "load_facts"
)

// Статусы событий хода выполнения
const (
	EventStarted   = "started"
	EventCompleted = "completed"
	EventFailed    = "failed"
)

// Extractor источник выгрузок
type Extractor interface {
	Extract(ctx context.Context) (*models.ExtractedData, error)
}

// ProgressSink получатель событий хода выполнения
type ProgressSink interface {
	PublishProgress(event models.ProgressEvent)
}

type nopSink struct{}

func (nopSink) PublishProgress(models.ProgressEvent) {}

// RunSummary итоги одного запуска
type RunSummary struct {
	RunID      string                `json:"run_id"`
	Counters   models.RunCounters    `json:"counters"`
	Unresolved models.UnresolvedKeys `json:"unresolved"`
	Stats      []models.LoadStats    `json:"stats"`
	Duration   time.Duration         `json:"duration"`
}

// Option настройка ETLRunner
type Option func(*ETLRunner)

// WithProgressSink направляет события хода выполнения в sink
func WithProgressSink(sink ProgressSink) Option {
	return func(r *ETLRunner) {
		if sink != nil {
			r.progress = sink
		}
	}
}

// WithClock подменяет источник текущего времени
func WithClock(now func() time.Time) Option {
	return func(r *ETLRunner) {
		r.now = now
	}
}

// ETLRunner выполняет ETL процесс и ведет журнал запусков
type ETLRunner struct {
	logger      *utils.ETLLogger
	extractor   Extractor
	transformer *transform.Transformer
	loadManager *load.LoadManager
	etlLogRepo  models.ETLLogRepository
	progress    ProgressSink
	now         func() time.Time
	closer      func()

	mu      sync.Mutex
	running sync.WaitGroup
}

// NewETLRunner создает новый экземпляр ETLRunner
func NewETLRunner(
	logger *utils.ETLLogger,
	extractor Extractor,
	transformer *transform.Transformer,
	loadManager *load.LoadManager,
	etlLogRepo models.ETLLogRepository,
	opts ...Option,
) *ETLRunner {
	r := &ETLRunner{
		logger:      logger,
		extractor:   extractor,
		transformer: transformer,
		loadManager: loadManager,
		etlLogRepo:  etlLogRepo,
		progress:    nopSink{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close ожидает фоновый запуск и закрывает соединения
func (r *ETLRunner) Close() {
	r.logger.Info("Завершение работы ETL Runner")
	r.running.Wait()
	if r.closer != nil {
		r.closer()
	}
}

// ExecuteETL выполняет полный ETL процесс.
// Возвращает ErrRunInProgress, если запуск уже идет.
func (r *ETLRunner) ExecuteETL(ctx context.Context) (*RunSummary, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	return r.execute(ctx)
}

// Trigger запускает ETL в фоне; запуск не зависит от отмены ctx
func (r *ETLRunner) Trigger(ctx context.Context) error {
	if !r.mu.TryLock() {
		return ErrRunInProgress
	}

	r.running.Add(1)
	go func() {
		defer r.running.Done()
		defer r.mu.Unlock()

		if _, err := r.execute(context.WithoutCancel(ctx)); err != nil {
			r.logger.Error("Ошибка при выполнении ETL по запросу: %v", err)
		}
	}()
	return nil
}

// Wait ожидает завершения запусков, начатых через Trigger
func (r *ETLRunner) Wait() {
	r.running.Wait()
}

// RunStats запуски за последние days дней
func (r *ETLRunner) RunStats(ctx context.Context, days int) ([]models.ETLRunLog, error) {
	return r.etlLogRepo.GetETLRunStats(ctx, days)
}

// State сводка о состоянии ETL процесса
func (r *ETLRunner) State(ctx context.Context) (*models.ETLStateMonitor, error) {
	return r.etlLogRepo.GetETLStateMonitor(ctx)
}

// Watermarks текущие водяные знаки таблиц
func (r *ETLRunner) Watermarks() load.Watermarks {
	return r.loadManager.Watermarks()
}

func (r *ETLRunner) execute(ctx context.Context) (*RunSummary, error) {
	metrics.RunInProgress.Set(1)
	defer metrics.RunInProgress.Set(0)

	startTime := r.now()
	r.logger.Info("Запуск ETL процесса")

	// Создаем запись в журнале ETL
	runID, err := r.etlLogRepo.CreateLogEntry(ctx, startTime)
	if err != nil {
		r.logger.Error("Ошибка при создании записи в журнале ETL: %v", err)
		metrics.RunsTotal.WithLabelValues(models.RunStatusFailed).Inc()
		return nil, fmt.Errorf("ошибка при создании записи в журнале ETL: %w", err)
	}

	summary := &RunSummary{RunID: runID}
	log := r.logger.With("run_id", runID)
	r.publish(runID, PhaseRun, EventStarted, "", 0)

	if lastRun, err := r.etlLogRepo.GetLastSuccessfulRun(ctx); err != nil {
		log.Warn("Не удалось получить информацию о последнем успешном запуске: %v", err)
	} else if lastRun != nil && lastRun.EndTime != nil {
		log.Info("Последний успешный запуск: %v", lastRun.EndTime.Format(time.RFC3339))
	}

	runErr := r.run(ctx, summary, truncateDay(startTime))
	summary.Duration = r.now().Sub(startTime)

	// Журнал обновляется и после отмены контекста запуска
	logCtx := context.WithoutCancel(ctx)
	if runErr != nil {
		log.Error("ETL процесс завершился с ошибкой: %v", runErr)
		if err := r.etlLogRepo.UpdateLogEntryFailure(logCtx, runID, r.now(), summary.Counters, runErr.Error()); err != nil {
			log.Error("Ошибка при обновлении записи в журнале ETL: %v", err)
		}
		metrics.RunsTotal.WithLabelValues(models.RunStatusFailed).Inc()
		r.publish(runID, PhaseRun, EventFailed, runErr.Error(), 0)
		return summary, runErr
	}

	if err := r.etlLogRepo.UpdateLogEntrySuccess(logCtx, runID, r.now(), summary.Counters); err != nil {
		log.Error("Ошибка при обновлении записи в журнале ETL: %v", err)
	}
	metrics.RunsTotal.WithLabelValues(models.RunStatusSuccess).Inc()

	c := summary.Counters
	log.LogETLComplete(startTime, c.CustomersLoaded, c.ProductsLoaded, c.DatesLoaded, c.SalesLoaded)
	r.publish(runID, PhaseRun, EventCompleted, "", c.CustomersLoaded+c.ProductsLoaded+c.DatesLoaded+c.SalesLoaded)
	return summary, nil
}

// run выполняет фазы по порядку; факты строятся после сохранения измерений
func (r *ETLRunner) run(ctx context.Context, summary *RunSummary, today time.Time) error {
	// 1. Фаза извлечения данных (Extract)
	var data *models.ExtractedData
	err := r.phase(ctx, summary.RunID, PhaseExtract, func() (int, error) {
		var err error
		if data, err = r.extractor.Extract(ctx); err != nil {
			return 0, err
		}
		summary.Counters.DegradedSources = data.DegradedSources
		return len(data.CustomerInfos) + len(data.Products) + len(data.Sales), nil
	})
	if err != nil {
		return err
	}

	marks := r.loadManager.Watermarks()

	// 2. Трансформация измерений по снимкам хранилища
	var dims *models.TransformedDimensions
	err = r.phase(ctx, summary.RunID, PhaseTransformDimensions, func() (int, error) {
		var err error
		customers := r.loadManager.ReadCustomers(ctx)
		products := r.loadManager.ReadProducts(ctx)
		if dims, err = r.transformer.TransformDimensions(data, customers, products, today); err != nil {
			return 0, err
		}
		return len(dims.Customers.Changes) + len(dims.Products.Changes), nil
	})
	if err != nil {
		return err
	}

	// 3. Загрузка измерений
	err = r.phase(ctx, summary.RunID, PhaseLoadDimensions, func() (int, error) {
		customers, err := r.loadManager.LoadCustomers(ctx, marks, dims.Customers)
		if err != nil {
			return 0, err
		}
		summary.Stats = append(summary.Stats, customers)
		summary.Counters.CustomersLoaded = customers.Loaded
		summary.Counters.CustomersExpired = customers.Expired

		products, err := r.loadManager.LoadProducts(ctx, marks, dims.Products)
		if err != nil {
			return customers.Loaded, err
		}
		summary.Stats = append(summary.Stats, products)
		summary.Counters.ProductsLoaded = products.Loaded
		summary.Counters.ProductsExpired = products.Expired
		return customers.Loaded + products.Loaded, nil
	})
	if err != nil {
		return err
	}

	// 4. Даты и факты по повторно прочитанным действующим версиям
	var (
		facts         *models.TransformedFacts
		existingDates []models.DateDimension
	)
	err = r.phase(ctx, summary.RunID, PhaseTransformFacts, func() (int, error) {
		customers := r.loadManager.ReadCustomers(ctx)
		products := r.loadManager.ReadProducts(ctx)
		existingDates = r.loadManager.ReadDates(ctx)
		salesKeys := r.loadManager.ReadSalesKeys(ctx)

		var err error
		facts, err = r.transformer.TransformFacts(data, customers, products, existingDates, salesKeys, today)
		if facts != nil {
			summary.Unresolved = facts.Unresolved
			summary.Counters.UnresolvedKeys = facts.Unresolved.Total()
			recordUnresolved(facts.Unresolved)
		}
		if err != nil {
			return 0, err
		}
		return len(facts.Sales), nil
	})
	if err != nil {
		return err
	}

	// 5. Загрузка дат и фактов
	return r.phase(ctx, summary.RunID, PhaseLoadFacts, func() (int, error) {
		dates, err := r.loadManager.LoadDates(ctx, marks, facts.Dates, existingDates)
		if err != nil {
			return 0, err
		}
		summary.Stats = append(summary.Stats, dates)
		summary.Counters.DatesLoaded = dates.Loaded

		sales, err := r.loadManager.LoadSales(ctx, marks, facts.Sales)
		if err != nil {
			return dates.Loaded, err
		}
		summary.Stats = append(summary.Stats, sales)
		summary.Counters.SalesLoaded = sales.Loaded
		return dates.Loaded + sales.Loaded, nil
	})
}

// phase выполняет fn, фиксируя длительность и события начала и завершения
func (r *ETLRunner) phase(ctx context.Context, runID, name string, fn func() (int, error)) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("запуск прерван перед фазой %s: %w", name, err)
	}

	startTime := time.Now()
	r.publish(runID, name, EventStarted, "", 0)

	rows, err := fn()
	metrics.PhaseDuration.WithLabelValues(name).Observe(time.Since(startTime).Seconds())
	if err != nil {
		r.publish(runID, name, EventFailed, err.Error(), rows)
		return fmt.Errorf("ошибка в фазе %s: %w", name, err)
	}

	r.logger.With("run_id", runID, "phase", name).Debug("Фаза завершена, строк: %d, длительность: %v", rows, time.Since(startTime))
	r.publish(runID, name, EventCompleted, "", rows)
	return nil
}

func (r *ETLRunner) publish(runID, phase, status, message string, rows int) {
	r.progress.PublishProgress(models.ProgressEvent{
		RunID:   runID,
		Phase:   phase,
		Status:  status,
		Message: message,
		Rows:    rows,
		Time:    r.now(),
	})
}

func recordUnresolved(u models.UnresolvedKeys) {
	for key, n := range map[string]int{
		"customer":   u.Customer,
		"product":    u.Product,
		"order_date": u.OrderDate,
		"ship_date":  u.ShipDate,
		"due_date":   u.DueDate,
	} {
		if n > 0 {
			metrics.UnresolvedKeys.WithLabelValues(key).Add(float64(n))
		}
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
