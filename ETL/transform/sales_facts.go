package transform

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/models"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
	"github.com/samber/lo"
)

// UnresolvedKeyPolicy определяет обработку фактов с неразрешенными внешними ключами
type UnresolvedKeyPolicy string

const (
	// PolicyFlag факт сохраняется с пустым ключом, количество попадает в журнал и метрики
	PolicyFlag UnresolvedKeyPolicy = "flag"
	// PolicyDrop факт исключается из загрузки
	PolicyDrop UnresolvedKeyPolicy = "drop"
	// PolicyFail запуск прерывается
	PolicyFail UnresolvedKeyPolicy = "fail"
)

// ErrUnresolvedKeys в фактах есть неразрешенные внешние ключи при политике fail
var ErrUnresolvedKeys = errors.New("неразрешенные внешние ключи в фактах продаж")

const (
	customerKeyPrefix = "AW"
	customerKeyDigits = 8
	// productKeySegments число ведущих сегментов ключа товара, отсутствующих в ключе продажи
	productKeySegments = 2
)

// NormalizeCustomerKey приводит идентификатор клиента из продаж к формату измерения: "1" -> "AW00000001"
func NormalizeCustomerKey(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, customerKeyPrefix) {
		return id
	}
	if len(id) < customerKeyDigits {
		id = strings.Repeat("0", customerKeyDigits-len(id)) + id
	}
	return customerKeyPrefix + id
}

// ProductFactKey отбрасывает сегменты категории из ключа товара: "CO-RF-FR-R92B-58" -> "FR-R92B-58"
func ProductFactKey(productKey string) string {
	parts := strings.Split(strings.TrimSpace(productKey), "-")
	if len(parts) <= productKeySegments {
		return ""
	}
	return strings.Join(parts[productKeySegments:], "-")
}

// SalesFactsProcessor разрешает ключи продаж по действующим версиям измерений
type SalesFactsProcessor struct {
	logger *utils.ETLLogger
	prefix string
	policy UnresolvedKeyPolicy
}

// NewSalesFactsProcessor создает новый экземпляр SalesFactsProcessor
func NewSalesFactsProcessor(logger *utils.ETLLogger, prefix string, policy UnresolvedKeyPolicy) *SalesFactsProcessor {
	if policy == "" {
		policy = PolicyFlag
	}
	return &SalesFactsProcessor{
		logger: logger,
		prefix: prefix,
		policy: policy,
	}
}

// ProcessSalesFacts формирует по одной строке факта на строку продаж.
// Для разрешения используются только действующие (current_flag = Y) версии измерений.
// Ключи фактов продолжают последовательность existingKeys.
func (p *SalesFactsProcessor) ProcessSalesFacts(
	sales []models.SalesDetail,
	customers []models.CustomerDimension,
	products []models.ProductDimension,
	dates []models.DateDimension,
	existingKeys []string,
	today time.Time,
) ([]models.SalesFact, models.UnresolvedKeys, error) {
	customerSK := currentCustomerKeys(customers)
	productSK := currentProductKeys(products)
	dateSK := make(map[string]string, len(dates))
	for _, d := range dates {
		dateSK[dateKey(d.FullDate)] = d.DateSK
	}

	var unresolved models.UnresolvedKeys
	facts := make([]models.SalesFact, 0, len(sales))
	for _, s := range sales {
		fact := models.SalesFact{
			OrderNumber: strings.TrimSpace(s.OrderNumber),
			CustomerSK:  lookup(customerSK, NormalizeCustomerKey(s.CustomerID)),
			ProductSK:   lookup(productSK, strings.TrimSpace(s.ProductKey)),
			OrderDateSK: lookupDate(dateSK, s.OrderDate),
			ShipDateSK:  lookupDate(dateSK, s.ShipDate),
			DueDateSK:   lookupDate(dateSK, s.DueDate),
			Quantity:    s.Quantity,
			Price:       s.Price,
			SalesAmount: s.Sales,
			CreatedDate: today,
		}

		complete := true
		for _, check := range []struct {
			key     sql.NullString
			counter *int
		}{
			{fact.CustomerSK, &unresolved.Customer},
			{fact.ProductSK, &unresolved.Product},
			{fact.OrderDateSK, &unresolved.OrderDate},
			{fact.ShipDateSK, &unresolved.ShipDate},
			{fact.DueDateSK, &unresolved.DueDate},
		} {
			if !check.key.Valid {
				*check.counter++
				complete = false
			}
		}

		if !complete && p.policy == PolicyDrop {
			unresolved.DroppedRows++
			continue
		}
		facts = append(facts, fact)
	}

	if unresolved.Total() > 0 {
		p.logger.With("table", models.TableSalesFact, "policy", string(p.policy)).Warn(
			"Неразрешенные ключи: клиент=%d, товар=%d, дата заказа=%d, дата отгрузки=%d, дата оплаты=%d, исключено строк=%d",
			unresolved.Customer, unresolved.Product, unresolved.OrderDate, unresolved.ShipDate, unresolved.DueDate, unresolved.DroppedRows)
		if p.policy == PolicyFail {
			return nil, unresolved, fmt.Errorf("%w: %d", ErrUnresolvedKeys, unresolved.Total())
		}
	}

	keyed, err := GenerateKeys(facts, existingKeys, p.prefix, func(f *models.SalesFact, sk string) {
		f.SalesSK = sk
	})
	if err != nil {
		return nil, unresolved, fmt.Errorf("генерация ключей %s: %w", models.TableSalesFact, err)
	}

	p.logger.With("table", models.TableSalesFact).Info("Сформировано %d фактов продаж из %d строк", len(keyed), len(sales))
	return keyed, unresolved, nil
}

func currentCustomerKeys(customers []models.CustomerDimension) map[string]string {
	current := lo.Filter(customers, func(c models.CustomerDimension, _ int) bool {
		return c.IsCurrent()
	})
	keys := make(map[string]string, len(current))
	for _, c := range current {
		keys[strings.TrimSpace(c.CustomerKey)] = c.CustomerSK
	}
	return keys
}

// currentProductKeys сопоставляет ключ продажи товару; при нескольких действующих
// товарах с одинаковым ключом побеждает самая поздняя дата начала
func currentProductKeys(products []models.ProductDimension) map[string]string {
	best := make(map[string]models.ProductDimension)
	for _, p := range products {
		if !p.IsCurrent() {
			continue
		}
		key := ProductFactKey(p.ProductKey)
		if key == "" {
			continue
		}
		if prev, ok := best[key]; ok && compareNullTime(p.StartDate, prev.StartDate) < 0 {
			continue
		}
		best[key] = p
	}
	return lo.MapValues(best, func(p models.ProductDimension, _ string) string {
		return p.ProductSK
	})
}

func lookup(keys map[string]string, natural string) sql.NullString {
	if natural == "" {
		return sql.NullString{}
	}
	sk, ok := keys[natural]
	return sql.NullString{String: sk, Valid: ok}
}

func lookupDate(keys map[string]string, raw string) sql.NullString {
	date, ok := ParseFactDate(raw)
	if !ok {
		return sql.NullString{}
	}
	return lookup(keys, dateKey(date))
}
