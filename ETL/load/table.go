package load

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
)

// SQLTable реализация Table поверх sqlx; запросы строятся по тегам db структуры строки
type SQLTable[T any] struct {
	wh    *Warehouse
	name  string
	strct *sqlbuilder.Struct
}

// NewSQLTable создает новый экземпляр SQLTable
func NewSQLTable[T any](wh *Warehouse, name string) *SQLTable[T] {
	return &SQLTable[T]{
		wh:    wh,
		name:  name,
		strct: sqlbuilder.NewStruct(new(T)).For(wh.flavor),
	}
}

// Name возвращает имя таблицы
func (t *SQLTable[T]) Name() string {
	return t.name
}

// ReadCurrent читает все строки таблицы
func (t *SQLTable[T]) ReadCurrent(ctx context.Context) []T {
	query, args := t.strct.SelectFrom(t.name).Build()

	var rows []T
	if err := sqlx.SelectContext(ctx, t.wh.ext(ctx), &rows, query, args...); err != nil {
		t.wh.logger.With("table", t.name).Warn("Не удалось прочитать таблицу, используется пустой снимок: %v", err)
		return nil
	}

	t.wh.logger.With("table", t.name).Debug("Прочитано %d строк", len(rows))
	return rows
}

// ReadColumn читает значения одной колонки
func (t *SQLTable[T]) ReadColumn(ctx context.Context, column string) []string {
	sb := t.wh.flavor.NewSelectBuilder()
	sb.Select(column).From(t.name)
	query, args := sb.Build()

	var values []string
	if err := sqlx.SelectContext(ctx, t.wh.ext(ctx), &values, query, args...); err != nil {
		t.wh.logger.With("table", t.name, "column", column).Warn("Не удалось прочитать колонку: %v", err)
		return nil
	}
	return values
}

// Append добавляет строки пакетами по batchSize
func (t *SQLTable[T]) Append(ctx context.Context, rows []T) error {
	if len(rows) == 0 {
		t.wh.logger.With("table", t.name).Debug("Нет строк для загрузки")
		return nil
	}

	startTime := time.Now()
	loaded := 0
	for _, chunk := range lo.Chunk(rows, t.wh.batchSize) {
		values := make([]any, len(chunk))
		for i, row := range chunk {
			values[i] = row
		}

		query, args := t.strct.InsertInto(t.name, values...).Build()
		if _, err := t.wh.ext(ctx).ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("ошибка при вставке в %s (загружено %d из %d): %w", t.name, loaded, len(rows), err)
		}

		loaded += len(chunk)
		t.wh.logger.With("table", t.name).Debug("Загружено %d из %d строк...", loaded, len(rows))
	}

	t.wh.logger.With("table", t.name).Info("Загрузка завершена. Загружено записей: %d. Длительность: %v", loaded, time.Since(startTime))
	return nil
}

// UpdateByKey изменяет строки по ключу. Вызывается только внутри InTx.
func (t *SQLTable[T]) UpdateByKey(ctx context.Context, keyColumn string, updates map[string]map[string]any) error {
	tx, ok := txFromContext(ctx)
	if !ok {
		return fmt.Errorf("обновление %s: %w", t.name, ErrNoTransaction)
	}

	for _, key := range slices.Sorted(maps.Keys(updates)) {
		columns := updates[key]
		if len(columns) == 0 {
			continue
		}

		ub := t.wh.flavor.NewUpdateBuilder()
		ub.Update(t.name)
		assignments := make([]string, 0, len(columns))
		for _, column := range slices.Sorted(maps.Keys(columns)) {
			assignments = append(assignments, ub.Assign(column, columns[column]))
		}
		ub.Set(assignments...)
		ub.Where(ub.Equal(keyColumn, key))

		query, args := ub.Build()
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("ошибка при обновлении %s для %s=%s: %w", t.name, keyColumn, key, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			t.wh.logger.With("table", t.name, keyColumn, key).Warn("Обновление не затронуло ни одной строки")
		}
	}
	return nil
}
