package transform

import (
	"cmp"
	"database/sql"
	"slices"
	"strings"
	"time"
)

// ProcessingDate нормализует момент запуска до календарной даты в UTC
func ProcessingDate(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func trimNull(ns sql.NullString) sql.NullString {
	if !ns.Valid {
		return ns
	}
	s := strings.TrimSpace(ns.String)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func upperNull(ns sql.NullString) sql.NullString {
	ns = trimNull(ns)
	if ns.Valid {
		ns.String = strings.ToUpper(ns.String)
	}
	return ns
}

// clampDate заменяет дату из будущего датой обработки
func clampDate(nt sql.NullTime, today time.Time) sql.NullTime {
	if nt.Valid && nt.Time.After(today) {
		return sql.NullTime{Time: today, Valid: true}
	}
	return nt
}

// dedupLatest оставляет по одной строке на бизнес-ключ с наибольшей датой.
// Строки упорядочиваются по дате (пустые даты первыми), при равенстве побеждает более поздняя строка.
func dedupLatest[T any](rows []T, key func(T) string, date func(T) sql.NullTime) []T {
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return compareNullTime(date(rows[a]), date(rows[b]))
	})

	lastPos := make(map[string]int, len(rows))
	for pos, idx := range order {
		lastPos[key(rows[idx])] = pos
	}

	out := make([]T, 0, len(lastPos))
	for pos, idx := range order {
		if lastPos[key(rows[idx])] == pos {
			out = append(out, rows[idx])
		}
	}
	return out
}

func compareNullTime(a, b sql.NullTime) int {
	switch {
	case !a.Valid && !b.Valid:
		return 0
	case !a.Valid:
		return -1
	case !b.Valid:
		return 1
	}
	return cmp.Compare(a.Time.UnixNano(), b.Time.UnixNano())
}
