package extractors

import (
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/models"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
)

// CustomerExtractor извлекает данные о клиентах из выгрузок CRM и ERP
type CustomerExtractor struct {
	logger *utils.ETLLogger
}

// NewCustomerExtractor создает новый экземпляр CustomerExtractor
func NewCustomerExtractor(logger *utils.ETLLogger) *CustomerExtractor {
	return &CustomerExtractor{
		logger: logger,
	}
}

// ExtractCustomers читает выгрузку ERP (CID, BDATE, GEN)
func (e *CustomerExtractor) ExtractCustomers(path string) ([]models.CustomerERP, error) {
	e.logger.Debug("Начало извлечения клиентов ERP из %s", path)

	var customers []models.CustomerERP
	_, err := readCSV(path, []string{"cid"}, func(r record) {
		customers = append(customers, models.CustomerERP{
			CID:       r.get("cid"),
			BirthDate: r.nullDate("bdate"),
			Gender:    r.nullString("gen"),
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Извлечено %d клиентов ERP", len(customers))
	return customers, nil
}

// ExtractCustomerLocations читает выгрузку местоположений (CID, CNTRY)
func (e *CustomerExtractor) ExtractCustomerLocations(path string) ([]models.CustomerLocation, error) {
	e.logger.Debug("Начало извлечения местоположений клиентов из %s", path)

	var locations []models.CustomerLocation
	_, err := readCSV(path, []string{"cid"}, func(r record) {
		locations = append(locations, models.CustomerLocation{
			CID:     r.get("cid"),
			Country: r.nullString("cntry"),
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Извлечено %d местоположений клиентов", len(locations))
	return locations, nil
}

// ExtractCustomerInfos читает выгрузку CRM по клиентам
func (e *CustomerExtractor) ExtractCustomerInfos(path string) ([]models.CustomerInfo, error) {
	e.logger.Debug("Начало извлечения клиентов CRM из %s", path)

	var infos []models.CustomerInfo
	_, err := readCSV(path, []string{"cst_key"}, func(r record) {
		info := models.CustomerInfo{
			ID:            r.nullInt("cst_id"),
			Key:           r.get("cst_key"),
			FirstName:     r.nullString("cst_firstname"),
			LastName:      r.nullString("cst_lastname"),
			MaritalStatus: r.nullString("cst_marital_status"),
			Gender:        r.nullString("cst_gndr"),
			CreateDate:    r.nullDate("cst_create_date"),
		}
		if info.Key == "" {
			e.logger.Debug("Строка %d без cst_key будет пропущена при трансформации", r.line)
		}
		infos = append(infos, info)
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Извлечено %d клиентов CRM", len(infos))
	return infos, nil
}
