package extractors

import (
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/models"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
)

var salesColumns = []string{"sls_ord_num", "sls_prd_key", "sls_cust_id", "sls_order_dt", "sls_ship_dt", "sls_due_dt"}

// SalesExtractor извлекает строки продаж
type SalesExtractor struct {
	logger *utils.ETLLogger
}

// NewSalesExtractor создает новый экземпляр SalesExtractor
func NewSalesExtractor(logger *utils.ETLLogger) *SalesExtractor {
	return &SalesExtractor{
		logger: logger,
	}
}

// ExtractSales читает выгрузку продаж. Даты остаются в исходном виде YYYYMMDD.
func (e *SalesExtractor) ExtractSales(path string) ([]models.SalesDetail, error) {
	e.logger.Debug("Начало извлечения продаж из %s", path)

	var sales []models.SalesDetail
	_, err := readCSV(path, salesColumns, func(r record) {
		sales = append(sales, models.SalesDetail{
			OrderNumber: r.get("sls_ord_num"),
			ProductKey:  r.get("sls_prd_key"),
			CustomerID:  r.get("sls_cust_id"),
			OrderDate:   r.get("sls_order_dt"),
			ShipDate:    r.get("sls_ship_dt"),
			DueDate:     r.get("sls_due_dt"),
			Sales:       r.nullFloat("sls_sales"),
			Quantity:    r.nullInt("sls_quantity"),
			Price:       r.nullFloat("sls_price"),
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Извлечено %d строк продаж", len(sales))
	return sales, nil
}
