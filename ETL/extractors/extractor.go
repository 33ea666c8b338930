package extractors

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/metrics"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/models"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
)

// Имена источников
const (
	SourceCustomer          = "customer"
	SourceCustomerLocation  = "customer_location"
	SourceCustomerInfo      = "customer_info"
	SourceProductInfo       = "product_info"
	SourceProductCategories = "product_categories"
	SourceSalesDetails      = "sales_details"
)

// Sources пути к выгрузкам; относительные пути разрешаются от DataDir
type Sources struct {
	DataDir           string
	Customer          string
	CustomerLocation  string
	CustomerInfo      string
	ProductInfo       string
	ProductCategories string
	SalesDetails      string
}

// DefaultSources имена файлов выгрузок по умолчанию
func DefaultSources(dataDir string) Sources {
	return Sources{
		DataDir:           dataDir,
		Customer:          "customer.csv",
		CustomerLocation:  "customer_location.csv",
		CustomerInfo:      "customer_info.csv",
		ProductInfo:       "product_info.csv",
		ProductCategories: "product_categories.csv",
		SalesDetails:      "sales_details.csv",
	}
}

// Path возвращает полный путь к выгрузке
func (s Sources) Path(file string) string {
	if s.DataDir == "" || filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(s.DataDir, file)
}

// Extractor координирует процесс извлечения данных из выгрузок
type Extractor struct {
	logger            *utils.ETLLogger
	sources           Sources
	failOnMissing     bool
	customerExtractor *CustomerExtractor
	productExtractor  *ProductExtractor
	salesExtractor    *SalesExtractor
}

// NewExtractor создает новый экземпляр Extractor.
// При failOnMissing ошибка чтения любого источника прерывает извлечение.
func NewExtractor(logger *utils.ETLLogger, sources Sources, failOnMissing bool) *Extractor {
	return &Extractor{
		logger:            logger,
		sources:           sources,
		failOnMissing:     failOnMissing,
		customerExtractor: NewCustomerExtractor(logger),
		productExtractor:  NewProductExtractor(logger),
		salesExtractor:    NewSalesExtractor(logger),
	}
}

// Extract читает все шесть выгрузок. Недоступный источник заменяется пустым набором
// и попадает в DegradedSources, если не включен failOnMissing.
func (e *Extractor) Extract(ctx context.Context) (*models.ExtractedData, error) {
	startTime := time.Now()
	e.logger.LogExtractStart()

	data := &models.ExtractedData{ExtractedAt: startTime}

	steps := []struct {
		source string
		file   string
		run    func(path string) (int, error)
	}{
		{SourceCustomer, e.sources.Customer, func(path string) (n int, err error) {
			data.Customers, err = e.customerExtractor.ExtractCustomers(path)
			return len(data.Customers), err
		}},
		{SourceCustomerLocation, e.sources.CustomerLocation, func(path string) (n int, err error) {
			data.CustomerLocations, err = e.customerExtractor.ExtractCustomerLocations(path)
			return len(data.CustomerLocations), err
		}},
		{SourceCustomerInfo, e.sources.CustomerInfo, func(path string) (n int, err error) {
			data.CustomerInfos, err = e.customerExtractor.ExtractCustomerInfos(path)
			return len(data.CustomerInfos), err
		}},
		{SourceProductCategories, e.sources.ProductCategories, func(path string) (n int, err error) {
			data.ProductCategories, err = e.productExtractor.ExtractProductCategories(path)
			return len(data.ProductCategories), err
		}},
		{SourceProductInfo, e.sources.ProductInfo, func(path string) (n int, err error) {
			data.Products, err = e.productExtractor.ExtractProducts(path)
			return len(data.Products), err
		}},
		{SourceSalesDetails, e.sources.SalesDetails, func(path string) (n int, err error) {
			data.Sales, err = e.salesExtractor.ExtractSales(path)
			return len(data.Sales), err
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := e.sources.Path(step.file)
		log := e.logger.With("source", step.source, "path", path)

		rows, err := step.run(path)
		if err != nil {
			if e.failOnMissing {
				log.Error("Ошибка при извлечении источника: %v", err)
				return nil, fmt.Errorf("ошибка извлечения %s: %w", step.source, err)
			}
			log.Warn("Источник недоступен, загрузка продолжится с пустым набором: %v", err)
			data.DegradedSources = append(data.DegradedSources, step.source)
			metrics.DegradedSources.WithLabelValues(step.source).Inc()
			continue
		}

		log.Info("Прочитано %d строк", rows)
		metrics.RowsExtracted.WithLabelValues(step.source).Add(float64(rows))
	}

	if len(data.DegradedSources) > 0 {
		e.logger.Warn("Извлечение выполнено с недоступными источниками: %v", data.DegradedSources)
	}

	e.logger.LogExtractComplete(len(data.CustomerInfos), len(data.Products), len(data.Sales), time.Since(startTime))
	return data, nil
}
