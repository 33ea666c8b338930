package transform

import (
	"database/sql"
	"strings"
	"time"

	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/models"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
	"github.com/samber/lo"
)

// CustomerSchema описывает измерение клиентов для SCD2-движка
func CustomerSchema(prefix string) DimensionSchema[models.CustomerDimension] {
	type row = models.CustomerDimension
	return DimensionSchema[row]{
		Name:         models.TableCustomerDimension,
		Prefix:       prefix,
		BusinessKey:  func(r row) string { return r.CustomerKey },
		SurrogateKey: func(r row) string { return r.CustomerSK },
		SetSurrogateKey: func(r *row, sk string) {
			r.CustomerSK = sk
		},
		Metadata: func(r *row) *models.SCD2Metadata { return &r.SCD2Metadata },
		Detector: NewChangeDetector(
			func(r row) bool { return r.IsCurrent() },
			Track("first_name", CompareString, func(r row) any { return r.FirstName }),
			Track("last_name", CompareString, func(r row) any { return r.LastName }),
			Track("gender", CompareString, func(r row) any { return r.Gender }),
			Track("marital_status", CompareString, func(r row) any { return r.MaritalStatus }),
			Track("birth_date", CompareDate, func(r row) any { return r.BirthDate }),
			Track("country", CompareString, func(r row) any { return r.Country }),
		),
	}
}

// CustomerDimensionProcessor отвечает за обработку измерения клиентов
type CustomerDimensionProcessor struct {
	logger *utils.ETLLogger
	schema DimensionSchema[models.CustomerDimension]
}

// NewCustomerDimensionProcessor создает новый экземпляр CustomerDimensionProcessor
func NewCustomerDimensionProcessor(logger *utils.ETLLogger, prefix string) *CustomerDimensionProcessor {
	return &CustomerDimensionProcessor{
		logger: logger,
		schema: CustomerSchema(prefix),
	}
}

// ProcessCustomerDimension объединяет источники клиентов и применяет SCD2 к снимку измерения
func (p *CustomerDimensionProcessor) ProcessCustomerDimension(
	data *models.ExtractedData,
	snapshot []models.CustomerDimension,
	today time.Time,
) (models.DimensionResult[models.CustomerDimension], error) {
	candidates := BuildCustomerCandidates(data.CustomerInfos, data.Customers, data.CustomerLocations, today)
	p.logger.Debug("Подготовлено %d кандидатов измерения клиентов из %d строк CRM", len(candidates), len(data.CustomerInfos))

	result, err := ApplySCD2(p.schema, candidates, snapshot, today)
	if err != nil {
		return result, err
	}

	p.logger.With("table", p.schema.Name).Info(
		"Измерение клиентов: %d новых, %d замененных версий, %d закрыто",
		result.CountByKind(models.ChangeNew), result.CountByKind(models.ChangeSupersede), len(result.Expired))
	return result, nil
}

// BuildCustomerCandidates объединяет CRM, ERP и выгрузку местоположений в строки измерения.
// CRM является ведущей таблицей; отсутствующие сопоставления дают пустые значения.
func BuildCustomerCandidates(
	infos []models.CustomerInfo,
	erp []models.CustomerERP,
	locations []models.CustomerLocation,
	today time.Time,
) []models.CustomerDimension {
	// 1. Нормализация ключей соединения
	erpByCID := lo.KeyBy(erp, func(c models.CustomerERP) string {
		return strings.TrimSpace(c.CID)
	})
	locByCID := lo.KeyBy(locations, func(l models.CustomerLocation) string {
		return strings.TrimSpace(strings.ReplaceAll(l.CID, "-", ""))
	})

	// 2. Левое соединение и стандартизация колонок
	rows := make([]models.CustomerDimension, 0, len(infos))
	for _, info := range infos {
		key := strings.TrimSpace(info.Key)
		if key == "" {
			continue
		}

		row := models.CustomerDimension{
			CustomerID:         info.ID,
			CustomerKey:        key,
			FirstName:          trimNull(info.FirstName),
			LastName:           trimNull(info.LastName),
			Gender:             upperNull(info.Gender),
			MaritalStatus:      upperNull(info.MaritalStatus),
			CustomerCreateDate: clampDate(info.CreateDate, today),
		}
		if c, ok := erpByCID[key]; ok {
			row.BirthDate = c.BirthDate
		}
		if l, ok := locByCID[key]; ok {
			row.Country = trimNull(l.Country)
		}
		rows = append(rows, row)
	}

	// 3. Одна строка на клиента: побеждает самая поздняя дата создания
	return dedupLatest(rows,
		func(r models.CustomerDimension) string { return r.CustomerKey },
		func(r models.CustomerDimension) sql.NullTime { return r.CustomerCreateDate },
	)
}
