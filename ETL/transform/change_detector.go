package transform

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CompareStrategy способ нормализации значения отслеживаемой колонки
type CompareStrategy int

const (
	// CompareString обрезка пробелов и приведение к верхнему регистру
	CompareString CompareStrategy = iota
	// CompareNumeric приведение к float64
	CompareNumeric
	// CompareDate разбор в момент времени; неразбираемое значение считается пустым
	CompareDate
)

// dateLayouts форматы, в которых допускаются даты в отслеживаемых колонках
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"20060102",
}

// ResolveStrategy выбирает стратегию по имени колонки:
// колонка с "date" в имени всегда сравнивается как дата.
func ResolveStrategy(name string, fallback CompareStrategy) CompareStrategy {
	if strings.Contains(strings.ToLower(name), "date") {
		return CompareDate
	}
	return fallback
}

// TrackedColumn отслеживаемая колонка измерения
type TrackedColumn[T any] struct {
	Name     string
	Strategy CompareStrategy
	Value    func(T) any
}

// Track описывает отслеживаемую колонку; стратегия фиксируется один раз для схемы
func Track[T any](name string, strategy CompareStrategy, value func(T) any) TrackedColumn[T] {
	return TrackedColumn[T]{
		Name:     name,
		Strategy: ResolveStrategy(name, strategy),
		Value:    value,
	}
}

// ChangeDetector решает, является ли строка изменением относительно действующей версии
type ChangeDetector[T any] struct {
	columns   []TrackedColumn[T]
	isCurrent func(T) bool
}

// NewChangeDetector создает детектор по списку отслеживаемых колонок
func NewChangeDetector[T any](isCurrent func(T) bool, columns ...TrackedColumn[T]) *ChangeDetector[T] {
	return &ChangeDetector[T]{columns: columns, isCurrent: isCurrent}
}

// Columns возвращает имена отслеживаемых колонок
func (d *ChangeDetector[T]) Columns() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// IsChanged сравнивает кандидата с предыдущей версией.
// Отсутствие предыдущей версии означает изменение; историческая (не действующая)
// версия изменением не считается.
func (d *ChangeDetector[T]) IsChanged(candidate T, previous *T) bool {
	if previous == nil {
		return true
	}
	if !d.isCurrent(*previous) {
		return false
	}
	for _, c := range d.columns {
		if !valuesEqual(c.Value(candidate), c.Value(*previous), c.Strategy) {
			return true
		}
	}
	return false
}

// ChangedColumn возвращает имя первой различающейся колонки, либо пустую строку
func (d *ChangeDetector[T]) ChangedColumn(candidate, previous T) string {
	for _, c := range d.columns {
		if !valuesEqual(c.Value(candidate), c.Value(previous), c.Strategy) {
			return c.Name
		}
	}
	return ""
}

func valuesEqual(a, b any, strategy CompareStrategy) bool {
	na, aNull := normalize(a, strategy)
	nb, bNull := normalize(b, strategy)
	switch {
	case aNull && bNull:
		return true
	case aNull != bNull:
		return false
	}

	switch va := na.(type) {
	case time.Time:
		vb, ok := nb.(time.Time)
		return ok && va.Equal(vb)
	default:
		return na == nb
	}
}

// normalize приводит значение к сравнимому виду; второй результат сообщает о пустом значении
func normalize(v any, strategy CompareStrategy) (any, bool) {
	if valuer, ok := v.(driver.Valuer); ok {
		raw, err := valuer.Value()
		if err != nil {
			return nil, true
		}
		v = raw
	}
	if v == nil {
		return nil, true
	}

	switch strategy {
	case CompareDate:
		t, ok := toTime(v)
		if !ok {
			return nil, true
		}
		return t, false
	case CompareNumeric:
		if f, ok := toFloat(v); ok {
			return f, false
		}
	}

	s := strings.ToUpper(strings.TrimSpace(toString(v)))
	if s == "" {
		return nil, true
	}
	return s, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return toTime(*t)
	case string:
		return ParseDate(t)
	case []byte:
		return ParseDate(string(t))
	}
	return time.Time{}, false
}

// ParseDate разбирает дату в одном из допустимых форматов (в UTC)
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(n)), 64)
		return f, err == nil
	}
	return 0, false
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(v)
	}
}
