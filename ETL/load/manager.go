package load

import (
	"context"
	"fmt"
	"time"

	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/metrics"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/models"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
	"github.com/samber/lo"
)

// LoadManager отвечает за управление процессом загрузки данных в хранилище
type LoadManager struct {
	logger     *utils.ETLLogger
	tx         Transactor
	tables     Tables
	watermarks WatermarkStore
}

// NewLoadManager создает новый экземпляр LoadManager
func NewLoadManager(tx Transactor, tables Tables, watermarks WatermarkStore, logger *utils.ETLLogger) *LoadManager {
	return &LoadManager{
		logger:     logger,
		tx:         tx,
		tables:     tables,
		watermarks: watermarks,
	}
}

// Watermarks загружает водяные знаки; вызывается один раз за запуск
func (m *LoadManager) Watermarks() Watermarks {
	return m.watermarks.Load()
}

// ReadCustomers читает снимок измерения клиентов
func (m *LoadManager) ReadCustomers(ctx context.Context) []models.CustomerDimension {
	return m.tables.Customers.ReadCurrent(ctx)
}

// ReadProducts читает снимок измерения товаров
func (m *LoadManager) ReadProducts(ctx context.Context) []models.ProductDimension {
	return m.tables.Products.ReadCurrent(ctx)
}

// ReadDates читает сохраненное измерение дат
func (m *LoadManager) ReadDates(ctx context.Context) []models.DateDimension {
	return m.tables.Dates.ReadCurrent(ctx)
}

// ReadSalesKeys читает суррогатные ключи сохраненных фактов
func (m *LoadManager) ReadSalesKeys(ctx context.Context) []string {
	return m.tables.Sales.ReadColumn(ctx, "sales_sk")
}

// LoadCustomers загружает изменения измерения клиентов
func (m *LoadManager) LoadCustomers(
	ctx context.Context,
	marks Watermarks,
	result models.DimensionResult[models.CustomerDimension],
) (models.LoadStats, error) {
	return loadDimension(ctx, m, m.tables.Customers, "customer_sk", marks, result,
		func(c models.CustomerDimension) time.Time { return c.EffectiveDate })
}

// LoadProducts загружает изменения измерения товаров
func (m *LoadManager) LoadProducts(
	ctx context.Context,
	marks Watermarks,
	result models.DimensionResult[models.ProductDimension],
) (models.LoadStats, error) {
	return loadDimension(ctx, m, m.tables.Products, "product_sk", marks, result,
		func(p models.ProductDimension) time.Time { return p.EffectiveDate })
}

// LoadDates загружает строки измерения дат с full_date позже границы.
// Даты, ключ которых еще не сохранен, загружаются независимо от границы,
// чтобы факты не ссылались на отсутствующие ключи.
func (m *LoadManager) LoadDates(
	ctx context.Context,
	marks Watermarks,
	rows []models.DateDimension,
	existing []models.DateDimension,
) (models.LoadStats, error) {
	table := m.tables.Dates.Name()
	persisted := lo.SliceToMap(existing, func(d models.DateDimension) (string, struct{}) {
		return d.DateSK, struct{}{}
	})
	fresh := lo.Filter(rows, func(d models.DateDimension, _ int) bool {
		_, ok := persisted[d.DateSK]
		return !ok
	})

	fullDate := func(d models.DateDimension) time.Time { return d.FullDate }
	kept, _ := SelectByDate(fresh, fullDate, marks[table])
	if late := len(fresh) - len(kept); late > 0 {
		m.logger.With("table", table).Warn("%d новых дат не позже водяного знака %s, загружаются для целостности фактов", late, marks[table])
		kept = fresh
	}
	_, watermark := SelectByDate(kept, fullDate, marks[table])

	return appendOnly(ctx, m, m.tables.Dates, marks, kept, len(rows)-len(kept), watermark)
}

// LoadSales загружает факты с created_date позже границы
func (m *LoadManager) LoadSales(ctx context.Context, marks Watermarks, rows []models.SalesFact) (models.LoadStats, error) {
	table := m.tables.Sales.Name()
	kept, watermark := SelectByDate(rows, func(f models.SalesFact) time.Time { return f.CreatedDate }, marks[table])
	return appendOnly(ctx, m, m.tables.Sales, marks, kept, len(rows)-len(kept), watermark)
}

func appendOnly[T any](ctx context.Context, m *LoadManager, table Table[T], marks Watermarks, kept []T, skipped int, watermark string) (models.LoadStats, error) {
	name := table.Name()
	stats := models.LoadStats{Table: name, Skipped: skipped, Watermark: marks[name]}
	metrics.RowsSkipped.WithLabelValues(name).Add(float64(skipped))

	if len(kept) == 0 {
		m.logger.With("table", name, "watermark", marks[name]).Info("Нет новых строк для загрузки, пропущено %d", skipped)
		return stats, nil
	}

	err := m.tx.InTx(ctx, func(ctx context.Context) error {
		return table.Append(ctx, kept)
	})
	if err != nil {
		m.logger.With("table", name).Error("Ошибка при загрузке: %v", err)
		return stats, fmt.Errorf("ошибка при загрузке %s: %w", name, err)
	}

	if err := m.advance(marks, name, watermark); err != nil {
		return stats, err
	}

	stats.Loaded = len(kept)
	stats.Watermark = watermark
	metrics.RowsLoaded.WithLabelValues(name).Add(float64(len(kept)))
	return stats, nil
}

func loadDimension[T any](
	ctx context.Context,
	m *LoadManager,
	table Table[T],
	keyColumn string,
	marks Watermarks,
	result models.DimensionResult[T],
	effective func(T) time.Time,
) (models.LoadStats, error) {
	name := table.Name()
	kept, watermark := SelectDimensionRows(result.Changes, effective, marks[name])
	stats := models.LoadStats{Table: name, Skipped: len(result.Changes) - len(kept), Watermark: marks[name]}
	metrics.RowsSkipped.WithLabelValues(name).Add(float64(stats.Skipped))

	if len(kept) == 0 {
		m.logger.With("table", name, "watermark", marks[name]).Info("Нет изменений для загрузки, пропущено %d", stats.Skipped)
		return stats, nil
	}

	updates := make(map[string]map[string]any, len(result.Expired))
	for _, e := range result.Expired {
		updates[e.SurrogateKey] = map[string]any{
			"end_date":     e.EndDate,
			"current_flag": models.CurrentFlagNo,
		}
	}

	// Закрытие версий и добавление новых строк в одной транзакции
	err := m.tx.InTx(ctx, func(ctx context.Context) error {
		if len(updates) > 0 {
			if err := table.UpdateByKey(ctx, keyColumn, updates); err != nil {
				return err
			}
		}
		return table.Append(ctx, kept)
	})
	if err != nil {
		m.logger.With("table", name).Error("Ошибка при загрузке измерения: %v", err)
		return stats, fmt.Errorf("ошибка при загрузке %s: %w", name, err)
	}

	if err := m.advance(marks, name, watermark); err != nil {
		return stats, err
	}

	stats.Loaded = len(kept)
	stats.Expired = len(updates)
	stats.Watermark = watermark
	metrics.RowsLoaded.WithLabelValues(name).Add(float64(stats.Loaded))
	metrics.RowsExpired.WithLabelValues(name).Add(float64(stats.Expired))

	m.logger.With("table", name, "watermark", watermark).Info(
		"Измерение загружено: добавлено %d, закрыто %d, пропущено %d", stats.Loaded, stats.Expired, stats.Skipped)
	return stats, nil
}

// advance сохраняет новую границу таблицы; при ошибке отображение не меняется
func (m *LoadManager) advance(marks Watermarks, table, watermark string) error {
	previous, had := marks[table]
	marks[table] = watermark
	if err := m.watermarks.Save(marks); err != nil {
		if had {
			marks[table] = previous
		} else {
			delete(marks, table)
		}
		return fmt.Errorf("ошибка при сохранении водяного знака %s: %w", table, err)
	}
	return nil
}
