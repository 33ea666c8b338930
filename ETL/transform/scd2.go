package transform

import (
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/models"
)

// DimensionSchema описывает измерение для SCD2-движка
type DimensionSchema[T any] struct {
	Name            string
	Prefix          string
	BusinessKey     func(T) string
	SurrogateKey    func(T) string
	SetSurrogateKey func(*T, string)
	Metadata        func(*T) *models.SCD2Metadata
	Detector        *ChangeDetector[T]
}

// ApplySCD2 сопоставляет кандидатов со снимком измерения и формирует изменения.
//
// Кандидаты без предыдущей версии становятся новыми строками; кандидаты,
// отличающиеся от действующей версии, заменяют ее, а действующая версия
// закрывается датой today. Неизмененные кандидаты отбрасываются.
// Новые и заменяющие строки получают ключи, продолжающие последовательность снимка.
func ApplySCD2[T any](schema DimensionSchema[T], candidates, snapshot []T, today time.Time) (models.DimensionResult[T], error) {
	result := models.DimensionResult[T]{
		Snapshot: slices.Clone(snapshot),
	}

	// Индекс снимка по бизнес-ключу; ключ может иметь несколько исторических версий
	byKey := make(map[string][]int, len(snapshot))
	for i, row := range snapshot {
		key := schema.BusinessKey(row)
		byKey[key] = append(byKey[key], i)
	}

	var rows []T
	var kinds []models.ChangeKind
	for _, candidate := range candidates {
		stampCurrent(schema.Metadata(&candidate), today)

		matches := byKey[schema.BusinessKey(candidate)]
		if len(matches) == 0 {
			rows = append(rows, candidate)
			kinds = append(kinds, models.ChangeNew)
			continue
		}

		superseded := -1
		for _, idx := range matches {
			previous := snapshot[idx]
			if schema.Detector.IsChanged(candidate, &previous) {
				superseded = idx
				break
			}
		}
		if superseded < 0 {
			continue
		}

		expired := &result.Snapshot[superseded]
		meta := schema.Metadata(expired)
		meta.EndDate = sql.NullTime{Time: today, Valid: true}
		meta.CurrentFlag = models.CurrentFlagNo
		result.Expired = append(result.Expired, models.Expiration{
			SurrogateKey: schema.SurrogateKey(*expired),
			EndDate:      today,
		})

		rows = append(rows, candidate)
		kinds = append(kinds, models.ChangeSupersede)
	}

	existing := make([]string, len(snapshot))
	for i, row := range snapshot {
		existing[i] = schema.SurrogateKey(row)
	}

	keyed, err := GenerateKeys(rows, existing, schema.Prefix, schema.SetSurrogateKey)
	if err != nil {
		return models.DimensionResult[T]{}, fmt.Errorf("генерация ключей %s: %w", schema.Name, err)
	}

	result.Changes = make([]models.DimensionChange[T], len(keyed))
	for i, row := range keyed {
		result.Changes[i] = models.DimensionChange[T]{Row: row, Kind: kinds[i]}
	}
	result.Snapshot = append(result.Snapshot, keyed...)

	return result, nil
}

func stampCurrent(meta *models.SCD2Metadata, today time.Time) {
	meta.EffectiveDate = today
	meta.EndDate = sql.NullTime{}
	meta.CurrentFlag = models.CurrentFlagYes
}
