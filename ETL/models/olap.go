package models

import (
	"database/sql"
	"time"
)

// Таблицы хранилища
const (
	TableCustomerDimension = "dim_customer"
	TableProductDimension  = "dim_product"
	TableDateDimension     = "dim_date"
	TableSalesFact         = "fact_sales"
	TableETLRunLog         = "etl_run_log"
)

// Значения current_flag
const (
	CurrentFlagYes = "Y"
	CurrentFlagNo  = "N"
)

// SCD2Metadata поля истории SCD Type 2.
// EndDate заполнена тогда и только тогда, когда CurrentFlag = N.
type SCD2Metadata struct {
	EffectiveDate time.Time    `db:"effective_date" json:"effective_date"`
	EndDate       sql.NullTime `db:"end_date" json:"end_date"`
	CurrentFlag   string       `db:"current_flag" json:"current_flag"`
}

// IsCurrent сообщает, что строка является действующей версией сущности
func (m SCD2Metadata) IsCurrent() bool {
	return m.CurrentFlag == CurrentFlagYes
}

// CustomerDimension представляет измерение клиентов в хранилище
type CustomerDimension struct {
	CustomerSK         string         `db:"customer_sk" json:"customer_sk"`
	CustomerID         sql.NullInt64  `db:"customer_id" json:"customer_id"`
	CustomerKey        string         `db:"customer_key" json:"customer_key"`
	FirstName          sql.NullString `db:"first_name" json:"first_name"`
	LastName           sql.NullString `db:"last_name" json:"last_name"`
	Gender             sql.NullString `db:"gender" json:"gender"`
	MaritalStatus      sql.NullString `db:"marital_status" json:"marital_status"`
	BirthDate          sql.NullTime   `db:"birth_date" json:"birth_date"`
	Country            sql.NullString `db:"country" json:"country"`
	CustomerCreateDate sql.NullTime   `db:"customer_create_date" json:"customer_create_date"`
	SCD2Metadata
}

// ProductDimension представляет измерение товаров в хранилище
type ProductDimension struct {
	ProductSK   string          `db:"product_sk" json:"product_sk"`
	ProductID   sql.NullInt64   `db:"product_id" json:"product_id"`
	ProductKey  string          `db:"product_key" json:"product_key"`
	CategoryID  sql.NullString  `db:"category_id" json:"category_id"`
	ProductName sql.NullString  `db:"product_name" json:"product_name"`
	ProductCost sql.NullFloat64 `db:"product_cost" json:"product_cost"`
	ProductLine sql.NullString  `db:"product_line" json:"product_line"`
	Category    sql.NullString  `db:"category" json:"category"`
	Subcategory sql.NullString  `db:"subcategory" json:"subcategory"`
	Maintenance sql.NullString  `db:"maintenance" json:"maintenance"`
	StartDate   sql.NullTime    `db:"start_date" json:"start_date"`
	SCD2Metadata
}

// DateDimension представляет измерение дат
type DateDimension struct {
	DateSK     string    `db:"date_sk" json:"date_sk"`
	FullDate   time.Time `db:"full_date" json:"full_date"`
	Day        int       `db:"day" json:"day"`
	Month      int       `db:"month" json:"month"`
	MonthName  string    `db:"month_name" json:"month_name"`
	Quarter    int       `db:"quarter" json:"quarter"`
	Year       int       `db:"year" json:"year"`
	DayOfWeek  int       `db:"day_of_week" json:"day_of_week"` // 1=Sunday, 7=Saturday
	DayName    string    `db:"day_name" json:"day_name"`
	WeekOfYear int       `db:"week_of_year" json:"week_of_year"`
	IsWeekend  bool      `db:"is_weekend" json:"is_weekend"`
}

// SalesFact представляет факт продажи.
// Факты только добавляются и никогда не обновляются.
type SalesFact struct {
	SalesSK     string          `db:"sales_sk" json:"sales_sk"`
	OrderNumber string          `db:"order_number" json:"order_number"`
	CustomerSK  sql.NullString  `db:"customer_sk" json:"customer_sk"`
	ProductSK   sql.NullString  `db:"product_sk" json:"product_sk"`
	OrderDateSK sql.NullString  `db:"order_date_sk" json:"order_date_sk"`
	ShipDateSK  sql.NullString  `db:"ship_date_sk" json:"ship_date_sk"`
	DueDateSK   sql.NullString  `db:"due_date_sk" json:"due_date_sk"`
	Quantity    sql.NullInt64   `db:"quantity" json:"quantity"`
	Price       sql.NullFloat64 `db:"price" json:"price"`
	SalesAmount sql.NullFloat64 `db:"sales_amount" json:"sales_amount"`
	CreatedDate time.Time       `db:"created_date" json:"created_date"`
}
