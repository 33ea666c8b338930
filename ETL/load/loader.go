package load

import (
	"context"
	"errors"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/models"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
)

// DefaultBatchSize размер пакета вставки по умолчанию
const DefaultBatchSize = 500

// ErrNoTransaction операция изменения строк вызвана вне транзакции
var ErrNoTransaction = errors.New("операция требует открытой транзакции")

// Table интерфейс целевой таблицы хранилища
type Table[T any] interface {
	// Name возвращает имя таблицы
	Name() string

	// ReadCurrent читает все строки таблицы, включая историю.
	// Отсутствующая или нечитаемая таблица дает пустой набор.
	ReadCurrent(ctx context.Context) []T

	// ReadColumn читает значения одной колонки; ошибка чтения дает пустой набор
	ReadColumn(ctx context.Context, column string) []string

	// Append добавляет строки
	Append(ctx context.Context, rows []T) error

	// UpdateByKey изменяет колонки строк, адресуя их по значению keyColumn
	UpdateByKey(ctx context.Context, keyColumn string, updates map[string]map[string]any) error
}

// Transactor выполняет функцию в одной транзакции
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Tables целевые таблицы хранилища
type Tables struct {
	Customers Table[models.CustomerDimension]
	Products  Table[models.ProductDimension]
	Dates     Table[models.DateDimension]
	Sales     Table[models.SalesFact]
}

type txContextKey struct{}

// Warehouse подключение к хранилищу (MySQL или SQLite)
type Warehouse struct {
	db        *sqlx.DB
	flavor    sqlbuilder.Flavor
	batchSize int
	logger    *utils.ETLLogger
}

// NewWarehouse создает новый экземпляр Warehouse
func NewWarehouse(db *sqlx.DB, flavor sqlbuilder.Flavor, batchSize int, logger *utils.ETLLogger) *Warehouse {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Warehouse{
		db:        db,
		flavor:    flavor,
		batchSize: batchSize,
		logger:    logger,
	}
}

// DB возвращает подключение к хранилищу
func (w *Warehouse) DB() *sqlx.DB {
	return w.db
}

// Flavor возвращает SQL-диалект хранилища
func (w *Warehouse) Flavor() sqlbuilder.Flavor {
	return w.flavor
}

// Tables возвращает SQL-реализации всех целевых таблиц
func (w *Warehouse) Tables() Tables {
	return Tables{
		Customers: NewSQLTable[models.CustomerDimension](w, models.TableCustomerDimension),
		Products:  NewSQLTable[models.ProductDimension](w, models.TableProductDimension),
		Dates:     NewSQLTable[models.DateDimension](w, models.TableDateDimension),
		Sales:     NewSQLTable[models.SalesFact](w, models.TableSalesFact),
	}
}

// InTx выполняет fn в транзакции. Вложенный вызов использует уже открытую транзакцию.
func (w *Warehouse) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка при начале транзакции: %w", err)
	}

	if err := fn(context.WithValue(ctx, txContextKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			w.logger.Error("Ошибка при откате транзакции: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}
	return nil
}

func txFromContext(ctx context.Context) (*sqlx.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*sqlx.Tx)
	return tx, ok && tx != nil
}

// ext возвращает открытую транзакцию из контекста либо само подключение
func (w *Warehouse) ext(ctx context.Context) sqlx.ExtContext {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return w.db
}
