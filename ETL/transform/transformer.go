package transform

import (
	"fmt"
	"time"

	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/models"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
)

// Settings параметры трансформации
type Settings struct {
	CustomerPrefix      string
	ProductPrefix       string
	DatePrefix          string
	SalesPrefix         string
	UnresolvedKeyPolicy UnresolvedKeyPolicy
}

// DefaultSettings возвращает префиксы ключей по умолчанию и политику flag
func DefaultSettings() Settings {
	return Settings{
		CustomerPrefix:      CustomerKeyPrefix,
		ProductPrefix:       ProductKeyPrefix,
		DatePrefix:          DateKeyPrefix,
		SalesPrefix:         SalesKeyPrefix,
		UnresolvedKeyPolicy: PolicyFlag,
	}
}

// Transformer координирует преобразование выгрузок в строки хранилища
type Transformer struct {
	logger            *utils.ETLLogger
	customerProcessor *CustomerDimensionProcessor
	productProcessor  *ProductDimensionProcessor
	dateProcessor     *DateDimensionProcessor
	salesProcessor    *SalesFactsProcessor
}

// NewTransformer создает новый экземпляр Transformer
func NewTransformer(logger *utils.ETLLogger, settings Settings) *Transformer {
	return &Transformer{
		logger:            logger,
		customerProcessor: NewCustomerDimensionProcessor(logger, settings.CustomerPrefix),
		productProcessor:  NewProductDimensionProcessor(logger, settings.ProductPrefix),
		dateProcessor:     NewDateDimensionProcessor(logger, settings.DatePrefix),
		salesProcessor:    NewSalesFactsProcessor(logger, settings.SalesPrefix, settings.UnresolvedKeyPolicy),
	}
}

// TransformDimensions применяет SCD2 к измерениям клиентов и товаров.
// Снимки должны быть прочитаны из хранилища до вызова.
func (t *Transformer) TransformDimensions(
	data *models.ExtractedData,
	customers []models.CustomerDimension,
	products []models.ProductDimension,
	today time.Time,
) (*models.TransformedDimensions, error) {
	startTime := time.Now()
	t.logger.Info("Начало фазы Transform для измерений")

	// 1. Измерение клиентов
	customerResult, err := t.customerProcessor.ProcessCustomerDimension(data, customers, today)
	if err != nil {
		t.logger.Error("Ошибка при преобразовании измерения клиентов: %v", err)
		return nil, fmt.Errorf("ошибка при преобразовании измерения клиентов: %w", err)
	}

	// 2. Измерение товаров
	productResult, err := t.productProcessor.ProcessProductDimension(data, products, today)
	if err != nil {
		t.logger.Error("Ошибка при преобразовании измерения товаров: %v", err)
		return nil, fmt.Errorf("ошибка при преобразовании измерения товаров: %w", err)
	}

	t.logger.Info("Трансформация измерений завершена. Длительность: %v", time.Since(startTime))
	return &models.TransformedDimensions{
		Customers: customerResult,
		Products:  productResult,
	}, nil
}

// TransformFacts строит измерение дат и факты продаж по действующим версиям измерений
func (t *Transformer) TransformFacts(
	data *models.ExtractedData,
	customers []models.CustomerDimension,
	products []models.ProductDimension,
	existingDates []models.DateDimension,
	existingSalesKeys []string,
	today time.Time,
) (*models.TransformedFacts, error) {
	startTime := time.Now()
	t.logger.Info("Начало фазы Transform для фактов")

	// 1. Измерение дат
	dates, unparsable, err := t.dateProcessor.BuildDateDimension(data.Sales, existingDates)
	if err != nil {
		t.logger.Error("Ошибка при построении измерения дат: %v", err)
		return nil, fmt.Errorf("ошибка при построении измерения дат: %w", err)
	}

	// 2. Факты продаж
	sales, unresolved, err := t.salesProcessor.ProcessSalesFacts(data.Sales, customers, products, dates, existingSalesKeys, today)
	if err != nil {
		t.logger.Error("Ошибка при преобразовании фактов продаж: %v", err)
		return &models.TransformedFacts{Unresolved: unresolved, UnparsableDates: unparsable},
			fmt.Errorf("ошибка при преобразовании фактов продаж: %w", err)
	}

	t.logger.Info("Трансформация фактов завершена. Длительность: %v", time.Since(startTime))
	return &models.TransformedFacts{
		Dates:           dates,
		Sales:           sales,
		Unresolved:      unresolved,
		UnparsableDates: unparsable,
	}, nil
}
