package transform

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/models"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
)

// FactDateLayout числовой формат дат в выгрузке продаж
const FactDateLayout = "20060102"

// Массивы для названий месяцев и дней недели
var (
	monthNames = []string{"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December"}
	dayNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}
)

// ParseFactDate разбирает дату продажи в формате YYYYMMDD
func ParseFactDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) != len(FactDateLayout) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(FactDateLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// NewDateRow вычисляет календарные атрибуты даты
func NewDateRow(date time.Time) models.DateDimension {
	month := int(date.Month())
	dayOfWeek := int(date.Weekday()) + 1 // 1=Sunday, 7=Saturday

	return models.DateDimension{
		FullDate:   date,
		Day:        date.Day(),
		Month:      month,
		MonthName:  monthNames[month-1],
		Quarter:    (month-1)/3 + 1,
		Year:       date.Year(),
		DayOfWeek:  dayOfWeek,
		DayName:    dayNames[dayOfWeek-1],
		WeekOfYear: (date.YearDay()-1)/7 + 1,
		IsWeekend:  dayOfWeek == 1 || dayOfWeek == 7,
	}
}

// DateDimensionProcessor строит измерение дат из дат, встречающихся в продажах
type DateDimensionProcessor struct {
	logger *utils.ETLLogger
	prefix string
}

// NewDateDimensionProcessor создает новый экземпляр DateDimensionProcessor
func NewDateDimensionProcessor(logger *utils.ETLLogger, prefix string) *DateDimensionProcessor {
	return &DateDimensionProcessor{
		logger: logger,
		prefix: prefix,
	}
}

// BuildDateDimension возвращает по одной строке на каждую различную дату заказа,
// отгрузки или оплаты в порядке возрастания. Даты, уже присутствующие в existing,
// сохраняют свой ключ; новые даты продолжают последовательность ключей.
// Второй результат содержит количество неразбираемых значений дат.
func (p *DateDimensionProcessor) BuildDateDimension(sales []models.SalesDetail, existing []models.DateDimension) ([]models.DateDimension, int, error) {
	seen := make(map[string]time.Time)
	unparsable := 0
	for _, s := range sales {
		for _, raw := range []string{s.OrderDate, s.ShipDate, s.DueDate} {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			date, ok := ParseFactDate(raw)
			if !ok {
				unparsable++
				continue
			}
			seen[dateKey(date)] = date
		}
	}

	known := make(map[string]string, len(existing))
	existingKeys := make([]string, 0, len(existing))
	for _, d := range existing {
		known[dateKey(d.FullDate)] = d.DateSK
		existingKeys = append(existingKeys, d.DateSK)
	}

	next, err := NextSequence(existingKeys, p.prefix)
	if err != nil {
		return nil, unparsable, fmt.Errorf("генерация ключей %s: %w", models.TableDateDimension, err)
	}

	dates := make([]time.Time, 0, len(seen))
	for _, d := range seen {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, func(a, b time.Time) int { return a.Compare(b) })

	rows := make([]models.DateDimension, 0, len(dates))
	minted := 0
	for _, d := range dates {
		row := NewDateRow(d)
		if sk, ok := known[dateKey(d)]; ok {
			row.DateSK = sk
		} else {
			row.DateSK = FormatKey(p.prefix, next)
			next++
			minted++
		}
		rows = append(rows, row)
	}

	if unparsable > 0 {
		p.logger.Warn("Пропущено %d неразбираемых дат в выгрузке продаж", unparsable)
	}
	p.logger.With("table", models.TableDateDimension).Info(
		"Измерение дат: %d различных дат, из них %d новых ключей", len(rows), minted)

	return rows, unparsable, nil
}
