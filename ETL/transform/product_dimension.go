package transform

import (
	"database/sql"
	"strings"
	"time"

	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/models"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
	"github.com/samber/lo"
)

// categorySegments число ведущих сегментов ключа товара, образующих код категории
const categorySegments = 2

// ProductSchema описывает измерение товаров для SCD2-движка
func ProductSchema(prefix string) DimensionSchema[models.ProductDimension] {
	type row = models.ProductDimension
	return DimensionSchema[row]{
		Name:         models.TableProductDimension,
		Prefix:       prefix,
		BusinessKey:  func(r row) string { return r.ProductKey },
		SurrogateKey: func(r row) string { return r.ProductSK },
		SetSurrogateKey: func(r *row, sk string) {
			r.ProductSK = sk
		},
		Metadata: func(r *row) *models.SCD2Metadata { return &r.SCD2Metadata },
		Detector: NewChangeDetector(
			func(r row) bool { return r.IsCurrent() },
			Track("product_name", CompareString, func(r row) any { return r.ProductName }),
			Track("product_cost", CompareNumeric, func(r row) any { return r.ProductCost }),
			Track("product_line", CompareString, func(r row) any { return r.ProductLine }),
			Track("category", CompareString, func(r row) any { return r.Category }),
			Track("subcategory", CompareString, func(r row) any { return r.Subcategory }),
			Track("maintenance", CompareString, func(r row) any { return r.Maintenance }),
			Track("start_date", CompareDate, func(r row) any { return r.StartDate }),
		),
	}
}

// ProductDimensionProcessor отвечает за обработку измерения товаров
type ProductDimensionProcessor struct {
	logger *utils.ETLLogger
	schema DimensionSchema[models.ProductDimension]
}

// NewProductDimensionProcessor создает новый экземпляр ProductDimensionProcessor
func NewProductDimensionProcessor(logger *utils.ETLLogger, prefix string) *ProductDimensionProcessor {
	return &ProductDimensionProcessor{
		logger: logger,
		schema: ProductSchema(prefix),
	}
}

// ProcessProductDimension объединяет товары с категориями и применяет SCD2 к снимку измерения
func (p *ProductDimensionProcessor) ProcessProductDimension(
	data *models.ExtractedData,
	snapshot []models.ProductDimension,
	today time.Time,
) (models.DimensionResult[models.ProductDimension], error) {
	candidates := BuildProductCandidates(data.Products, data.ProductCategories, today)
	p.logger.Debug("Подготовлено %d кандидатов измерения товаров из %d строк", len(candidates), len(data.Products))

	result, err := ApplySCD2(p.schema, candidates, snapshot, today)
	if err != nil {
		return result, err
	}

	p.logger.With("table", p.schema.Name).Info(
		"Измерение товаров: %d новых, %d замененных версий, %d закрыто",
		result.CountByKind(models.ChangeNew), result.CountByKind(models.ChangeSupersede), len(result.Expired))
	return result, nil
}

// CategoryID выводит код категории из ключа товара: "CO-RF-FR-R92B-58" -> "CO_RF"
func CategoryID(productKey string) string {
	parts := strings.SplitN(strings.TrimSpace(productKey), "-", categorySegments+1)
	if len(parts) > categorySegments {
		parts = parts[:categorySegments]
	}
	return strings.Join(parts, "_")
}

// BuildProductCandidates соединяет товары со справочником категорий и стандартизирует колонки
func BuildProductCandidates(products []models.ProductInfo, categories []models.ProductCategory, today time.Time) []models.ProductDimension {
	catByID := lo.KeyBy(categories, func(c models.ProductCategory) string {
		return strings.TrimSpace(c.ID)
	})

	rows := make([]models.ProductDimension, 0, len(products))
	for _, p := range products {
		key := strings.TrimSpace(p.Key)
		if key == "" {
			continue
		}

		catID := CategoryID(key)
		row := models.ProductDimension{
			ProductID:   p.ID,
			ProductKey:  key,
			CategoryID:  sql.NullString{String: catID, Valid: catID != ""},
			ProductName: trimNull(p.Name),
			ProductCost: p.Cost,
			ProductLine: upperNull(p.Line),
			StartDate:   clampDate(p.StartDate, today),
		}
		if c, ok := catByID[catID]; ok {
			row.Category = trimNull(c.Category)
			row.Subcategory = trimNull(c.Subcategory)
			row.Maintenance = trimNull(c.Maintenance)
		}
		rows = append(rows, row)
	}

	// Одна действующая версия на ключ товара: побеждает самая поздняя дата начала
	return dedupLatest(rows,
		func(r models.ProductDimension) string { return r.ProductKey },
		func(r models.ProductDimension) sql.NullTime { return r.StartDate },
	)
}
