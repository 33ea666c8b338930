package models

import (
	"database/sql"
	"time"
)

// CustomerERP строка выгрузки ERP-системы по клиентам (CID, BDATE, GEN)
type CustomerERP struct {
	CID       string
	BirthDate sql.NullTime
	Gender    sql.NullString
}

// CustomerLocation строка выгрузки местоположения клиентов (CID, CNTRY)
type CustomerLocation struct {
	CID     string
	Country sql.NullString
}

// CustomerInfo строка выгрузки CRM по клиентам
type CustomerInfo struct {
	ID            sql.NullInt64
	Key           string
	FirstName     sql.NullString
	LastName      sql.NullString
	MaritalStatus sql.NullString
	Gender        sql.NullString
	CreateDate    sql.NullTime
}

// ProductInfo строка выгрузки CRM по товарам
type ProductInfo struct {
	ID        sql.NullInt64
	Key       string
	Name      sql.NullString
	Cost      sql.NullFloat64
	Line      sql.NullString
	StartDate sql.NullTime
	EndDate   sql.NullTime
}

// ProductCategory строка справочника категорий (ID, CAT, SUBCAT, MAINTENANCE)
type ProductCategory struct {
	ID          string
	Category    sql.NullString
	Subcategory sql.NullString
	Maintenance sql.NullString
}

// SalesDetail строка выгрузки продаж.
// Даты хранятся в исходном числовом виде YYYYMMDD и разбираются при трансформации.
type SalesDetail struct {
	OrderNumber string
	ProductKey  string
	CustomerID  string
	OrderDate   string
	ShipDate    string
	DueDate     string
	Sales       sql.NullFloat64
	Quantity    sql.NullInt64
	Price       sql.NullFloat64
}

// ExtractedData содержит все данные, извлеченные из источников
type ExtractedData struct {
	Customers         []CustomerERP
	CustomerLocations []CustomerLocation
	CustomerInfos     []CustomerInfo
	Products          []ProductInfo
	ProductCategories []ProductCategory
	Sales             []SalesDetail
	DegradedSources   []string
	ExtractedAt       time.Time
}

// IsEmpty сообщает, что ни один источник не вернул строк
func (d *ExtractedData) IsEmpty() bool {
	return len(d.Customers) == 0 &&
		len(d.CustomerLocations) == 0 &&
		len(d.CustomerInfos) == 0 &&
		len(d.Products) == 0 &&
		len(d.ProductCategories) == 0 &&
		len(d.Sales) == 0
}
