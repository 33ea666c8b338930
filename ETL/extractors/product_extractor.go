package extractors

import (
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/models"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
)

// ProductExtractor извлекает товары и справочник категорий
type ProductExtractor struct {
	logger *utils.ETLLogger
}

// NewProductExtractor создает новый экземпляр ProductExtractor
func NewProductExtractor(logger *utils.ETLLogger) *ProductExtractor {
	return &ProductExtractor{
		logger: logger,
	}
}

// ExtractProducts читает выгрузку CRM по товарам
func (e *ProductExtractor) ExtractProducts(path string) ([]models.ProductInfo, error) {
	e.logger.Debug("Начало извлечения товаров из %s", path)

	var products []models.ProductInfo
	_, err := readCSV(path, []string{"prd_key"}, func(r record) {
		products = append(products, models.ProductInfo{
			ID:        r.nullInt("prd_id"),
			Key:       r.get("prd_key"),
			Name:      r.nullString("prd_nm"),
			Cost:      r.nullFloat("prd_cost"),
			Line:      r.nullString("prd_line"),
			StartDate: r.nullDate("prd_start_dt"),
			EndDate:   r.nullDate("prd_end_dt"),
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Извлечено %d товаров", len(products))
	return products, nil
}

// ExtractProductCategories читает справочник категорий (ID, CAT, SUBCAT, MAINTENANCE)
func (e *ProductExtractor) ExtractProductCategories(path string) ([]models.ProductCategory, error) {
	e.logger.Debug("Начало извлечения категорий товаров из %s", path)

	var categories []models.ProductCategory
	_, err := readCSV(path, []string{"id"}, func(r record) {
		categories = append(categories, models.ProductCategory{
			ID:          r.get("id"),
			Category:    r.nullString("cat"),
			Subcategory: r.nullString("subcat"),
			Maintenance: r.nullString("maintenance"),
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Извлечено %d категорий", len(categories))
	return categories, nil
}
