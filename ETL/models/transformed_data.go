package models

import (
	"time"
)

// ChangeKind вид изменения строки измерения
type ChangeKind int

const (
	// ChangeNew бизнес-ключ ранее не встречался в измерении
	ChangeNew ChangeKind = iota
	// ChangeSupersede строка заменяет действующую версию сущности
	ChangeSupersede
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeNew:
		return "new"
	case ChangeSupersede:
		return "supersede"
	default:
		return "unknown"
	}
}

// DimensionChange строка измерения с присвоенным суррогатным ключом
type DimensionChange[T any] struct {
	Row  T
	Kind ChangeKind
}

// Expiration закрытие действующей версии по суррогатному ключу
type Expiration struct {
	SurrogateKey string
	EndDate      time.Time
}

// DimensionResult результат SCD2-трансформации измерения.
// Snapshot является копией исходного снимка: закрытые строки помечены N,
// новые строки добавлены в конец. Исходный снимок не изменяется.
type DimensionResult[T any] struct {
	Changes  []DimensionChange[T]
	Snapshot []T
	Expired  []Expiration
}

// CountByKind возвращает количество изменений указанного вида
func (r DimensionResult[T]) CountByKind(kind ChangeKind) int {
	n := 0
	for _, c := range r.Changes {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// TransformedDimensions результат фазы трансформации измерений
type TransformedDimensions struct {
	Customers DimensionResult[CustomerDimension]
	Products  DimensionResult[ProductDimension]
}

// UnresolvedKeys счетчики неразрешенных внешних ключей фактов
type UnresolvedKeys struct {
	Customer  int `json:"customer"`
	Product   int `json:"product"`
	OrderDate int `json:"order_date"`
	ShipDate  int `json:"ship_date"`
	DueDate   int `json:"due_date"`
	// DroppedRows строки, исключенные политикой drop
	DroppedRows int `json:"dropped_rows"`
}

// Total общее количество неразрешенных ключей
func (u UnresolvedKeys) Total() int {
	return u.Customer + u.Product + u.OrderDate + u.ShipDate + u.DueDate
}

// TransformedFacts результат фазы трансформации дат и фактов
type TransformedFacts struct {
	Dates           []DateDimension
	Sales           []SalesFact
	Unresolved      UnresolvedKeys
	UnparsableDates int
}

// LoadStats итоги загрузки одной целевой таблицы
type LoadStats struct {
	Table     string `json:"table"`
	Loaded    int    `json:"loaded"`
	Expired   int    `json:"expired"`
	Skipped   int    `json:"skipped"`
	Watermark string `json:"watermark,omitempty"`
}

// ProgressEvent событие хода выполнения ETL для операторов
type ProgressEvent struct {
	RunID   string    `json:"run_id"`
	Phase   string    `json:"phase"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	Rows    int       `json:"rows,omitempty"`
	Time    time.Time `json:"time"`
}
