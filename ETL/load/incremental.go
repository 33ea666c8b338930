package load

import (
	"strings"
	"time"

	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/models"
)

// WatermarkLayout формат значения водяного знака
const WatermarkLayout = "2006-01-02"

func parseWatermark(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(WatermarkLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// advance возвращает новую границу, которая никогда не смещается назад
func advance(last string, latest time.Time) string {
	if cutoff, ok := parseWatermark(last); ok && cutoff.After(latest) {
		return last
	}
	return latest.UTC().Format(WatermarkLayout)
}

// SelectDimensionRows отбирает строки измерения для загрузки.
// Новые сущности загружаются, только если effective_date позже границы last;
// строки, заменяющие действующую версию, загружаются всегда.
// Второй результат содержит новую границу; без отобранных строк возвращается last.
func SelectDimensionRows[T any](changes []models.DimensionChange[T], effective func(T) time.Time, last string) ([]T, string) {
	cutoff, hasCutoff := parseWatermark(last)

	var kept []T
	var latest time.Time
	for _, c := range changes {
		date := effective(c.Row)
		if c.Kind == models.ChangeNew && hasCutoff && !date.After(cutoff) {
			continue
		}
		kept = append(kept, c.Row)
		if date.After(latest) {
			latest = date
		}
	}

	if len(kept) == 0 {
		return nil, last
	}
	return kept, advance(last, latest)
}

// SelectByDate отбирает строки, дата которых позже границы last (все строки при пустой границе)
func SelectByDate[T any](rows []T, date func(T) time.Time, last string) ([]T, string) {
	cutoff, hasCutoff := parseWatermark(last)

	var kept []T
	var latest time.Time
	for _, row := range rows {
		d := date(row)
		if hasCutoff && !d.After(cutoff) {
			continue
		}
		kept = append(kept, row)
		if d.After(latest) {
			latest = d
		}
	}

	if len(kept) == 0 {
		return nil, last
	}
	return kept, advance(last, latest)
}
