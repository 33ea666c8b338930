package config

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
	_ "modernc.org/sqlite"
)

// Поддерживаемые драйверы хранилища
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Warehouse подключение к хранилищу и диалект построителя запросов
type Warehouse struct {
	DB     *sqlx.DB
	Flavor sqlbuilder.Flavor
}

// DSN строка подключения для драйвера из конфигурации
func (c DatabaseConfig) DSN() (string, error) {
	switch c.Driver {
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
		mc.DBName = c.DBName
		mc.ParseTime = true
		return mc.FormatDSN(), nil
	case DriverSQLite:
		return c.Path + "?_pragma=busy_timeout(5000)", nil
	default:
		return "", fmt.Errorf("%w: неизвестный драйвер %q", ErrInvalidConfig, c.Driver)
	}
}

// Flavor диалект SQL для драйвера
func (c DatabaseConfig) Flavor() sqlbuilder.Flavor {
	if c.Driver == DriverSQLite {
		return sqlbuilder.SQLite
	}
	return sqlbuilder.MySQL
}

// ConnectWarehouse устанавливает подключение к хранилищу
func ConnectWarehouse(ctx context.Context, cfg DatabaseConfig, logger *utils.ETLLogger) (*Warehouse, error) {
	dsn, err := cfg.DSN()
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к хранилищу: %w", err)
	}

	// Настройка параметров подключения
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось установить соединение с хранилищем: %w", err)
	}

	logger.With("driver", cfg.Driver).Info("Успешное подключение к хранилищу")
	return &Warehouse{DB: db, Flavor: cfg.Flavor()}, nil
}

// Close закрывает подключение к хранилищу
func (w *Warehouse) Close(logger *utils.ETLLogger) {
	if w == nil || w.DB == nil {
		return
	}
	if err := w.DB.Close(); err != nil {
		logger.Error("Ошибка при закрытии соединения с хранилищем: %v", err)
		return
	}
	logger.Info("Соединение с хранилищем закрыто")
}
