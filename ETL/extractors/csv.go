package extractors

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ErrMissingColumns в заголовке выгрузки нет обязательных колонок
var ErrMissingColumns = errors.New("в выгрузке отсутствуют обязательные колонки")

var sourceDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"20060102",
}

// record строка выгрузки с доступом к значениям по имени колонки
type record struct {
	header map[string]int
	values []string
	line   int
}

func (r record) get(column string) string {
	i, ok := r.header[column]
	if !ok || i >= len(r.values) {
		return ""
	}
	return strings.TrimSpace(r.values[i])
}

func (r record) nullString(column string) sql.NullString {
	v := r.get(column)
	return sql.NullString{String: v, Valid: v != ""}
}

func (r record) nullInt(column string) sql.NullInt64 {
	v := r.get(column)
	if v == "" {
		return sql.NullInt64{}
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return sql.NullInt64{Int64: n, Valid: true}
	}
	// выгрузки из табличных редакторов пишут целые как "11000.0"
	if f, err := strconv.ParseFloat(v, 64); err == nil && f == float64(int64(f)) {
		return sql.NullInt64{Int64: int64(f), Valid: true}
	}
	return sql.NullInt64{}
}

func (r record) nullFloat(column string) sql.NullFloat64 {
	v := r.get(column)
	if v == "" {
		return sql.NullFloat64{}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func (r record) nullDate(column string) sql.NullTime {
	v := r.get(column)
	if v == "" {
		return sql.NullTime{}
	}
	for _, layout := range sourceDateLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return sql.NullTime{Time: t, Valid: true}
		}
	}
	return sql.NullTime{}
}

// readCSV читает выгрузку с заголовком и вызывает fn для каждой строки.
// Имена колонок сравниваются без учета регистра и окружающих пробелов.
func readCSV(path string, required []string, fn func(r record)) (int, error) {
	src, err := openSource(path)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headerRow, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("%w: пустой файл %s", ErrMissingColumns, path)
		}
		return 0, fmt.Errorf("ошибка чтения заголовка %s: %w", path, err)
	}

	header := make(map[string]int, len(headerRow))
	for i, name := range headerRow {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, column := range required {
		if _, ok := header[column]; !ok {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return 0, fmt.Errorf("%w: %s в %s", ErrMissingColumns, strings.Join(missing, ", "), path)
	}

	rows := 0
	for {
		values, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("ошибка чтения %s: %w", path, err)
		}
		rows++
		fn(record{header: header, values: values, line: rows + 1})
	}
	return rows, nil
}
