package load

import (
	"context"
	"fmt"
)

// warehouseDDL таблицы хранилища; совместимо с MySQL и SQLite
var warehouseDDL = []struct {
	table string
	ddl   string
}{
	{
		table: "dim_customer",
		ddl: `
	CREATE TABLE IF NOT EXISTS dim_customer (
		customer_sk VARCHAR(32) PRIMARY KEY,
		customer_id BIGINT,
		customer_key VARCHAR(64) NOT NULL,
		first_name VARCHAR(255),
		last_name VARCHAR(255),
		gender VARCHAR(16),
		marital_status VARCHAR(16),
		birth_date DATE,
		country VARCHAR(128),
		customer_create_date DATE,
		effective_date DATE NOT NULL,
		end_date DATE,
		current_flag CHAR(1) NOT NULL
	)`,
	},
	{
		table: "dim_product",
		ddl: `
	CREATE TABLE IF NOT EXISTS dim_product (
		product_sk VARCHAR(32) PRIMARY KEY,
		product_id BIGINT,
		product_key VARCHAR(64) NOT NULL,
		category_id VARCHAR(32),
		product_name VARCHAR(255),
		product_cost DOUBLE,
		product_line VARCHAR(32),
		category VARCHAR(128),
		subcategory VARCHAR(128),
		maintenance VARCHAR(16),
		start_date DATE,
		effective_date DATE NOT NULL,
		end_date DATE,
		current_flag CHAR(1) NOT NULL
	)`,
	},
	{
		table: "dim_date",
		ddl: `
	CREATE TABLE IF NOT EXISTS dim_date (
		date_sk VARCHAR(32) PRIMARY KEY,
		full_date DATE NOT NULL UNIQUE,
		day INT NOT NULL,
		month INT NOT NULL,
		month_name VARCHAR(16) NOT NULL,
		quarter INT NOT NULL,
		year INT NOT NULL,
		day_of_week INT NOT NULL,
		day_name VARCHAR(16) NOT NULL,
		week_of_year INT NOT NULL,
		is_weekend BOOLEAN NOT NULL
	)`,
	},
	{
		table: "fact_sales",
		ddl: `
	CREATE TABLE IF NOT EXISTS fact_sales (
		sales_sk VARCHAR(32) PRIMARY KEY,
		order_number VARCHAR(32) NOT NULL,
		customer_sk VARCHAR(32),
		product_sk VARCHAR(32),
		order_date_sk VARCHAR(32),
		ship_date_sk VARCHAR(32),
		due_date_sk VARCHAR(32),
		quantity BIGINT,
		price DOUBLE,
		sales_amount DOUBLE,
		created_date DATE NOT NULL
	)`,
	},
}

// CreateSchema создает таблицы хранилища, если они не существуют
func (w *Warehouse) CreateSchema(ctx context.Context) error {
	for _, t := range warehouseDDL {
		if _, err := w.db.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("ошибка при создании таблицы %s: %w", t.table, err)
		}
		w.logger.With("table", t.table).Debug("Таблица готова")
	}
	return nil
}
