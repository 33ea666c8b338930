package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/extractors"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/transform"
	"github.com/spf13/pflag"
)

// EnvPrefix префикс переменных окружения; "__" обозначает вложенность
const EnvPrefix = "SALESDW_"

// DefaultConfigFile файл конфигурации, который ищется в рабочем каталоге
const DefaultConfigFile = "salesdw.yaml"

// ErrInvalidConfig конфигурация не прошла проверку
var ErrInvalidConfig = errors.New("некорректная конфигурация")

var validate = validator.New(validator.WithRequiredStructEnabled())

// ETLConfig содержит конфигурацию для ETL-процесса
type ETLConfig struct {
	// Подключение к хранилищу (целевой БД)
	Warehouse DatabaseConfig `koanf:"warehouse"`

	// Пути к выгрузкам источников
	Sources SourcesConfig `koanf:"sources"`

	// Файл водяных знаков
	TrackerFile string `koanf:"tracker_file" validate:"required"`

	// Интервал запуска ETL; cron, если задан, имеет приоритет
	RunInterval time.Duration `koanf:"run_interval" validate:"gt=0"`
	Cron        string        `koanf:"cron" validate:"omitempty,cron"`

	UnresolvedKeyPolicy string `koanf:"unresolved_key_policy" validate:"oneof=flag drop fail"`
	FailOnMissingSource bool   `koanf:"fail_on_missing_source"`

	// Размер пакета вставки
	BatchSize int `koanf:"batch_size" validate:"gt=0"`

	// Включение/отключение подробного логирования
	EnableDetailedLogging bool   `koanf:"enable_detailed_logging"`
	LogDir                string `koanf:"log_dir"`

	HTTP HTTPConfig `koanf:"http"`
	Keys KeysConfig `koanf:"keys"`
}

// DatabaseConfig содержит настройки подключения к базе данных
type DatabaseConfig struct {
	Driver          string        `koanf:"driver" validate:"oneof=mysql sqlite"`
	Host            string        `koanf:"host" validate:"required_if=Driver mysql"`
	Port            int           `koanf:"port" validate:"gte=0,lte=65535"`
	User            string        `koanf:"user"`
	Password        string        `koanf:"password"`
	DBName          string        `koanf:"dbname" validate:"required_if=Driver mysql"`
	Path            string        `koanf:"path" validate:"required_if=Driver sqlite"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// SourcesConfig пути к выгрузкам; относительные разрешаются от DataDir
type SourcesConfig struct {
	DataDir           string `koanf:"data_dir"`
	Customer          string `koanf:"customer" validate:"required"`
	CustomerLocation  string `koanf:"customer_location" validate:"required"`
	CustomerInfo      string `koanf:"customer_info" validate:"required"`
	ProductInfo       string `koanf:"product_info" validate:"required"`
	ProductCategories string `koanf:"product_categories" validate:"required"`
	SalesDetails      string `koanf:"sales_details" validate:"required"`
}

// HTTPConfig настройки сервера операций
type HTTPConfig struct {
	Addr string `koanf:"addr" validate:"required"`
}

// KeysConfig префиксы суррогатных ключей
type KeysConfig struct {
	CustomerPrefix string `koanf:"customer_prefix" validate:"required,alpha"`
	ProductPrefix  string `koanf:"product_prefix" validate:"required,alpha"`
	DatePrefix     string `koanf:"date_prefix" validate:"required,alpha"`
	SalesPrefix    string `koanf:"sales_prefix" validate:"required,alpha"`
}

// Defaults значения конфигурации по умолчанию
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"warehouse.driver":            "mysql",
		"warehouse.host":              "localhost",
		"warehouse.port":              3306,
		"warehouse.user":              "root",
		"warehouse.password":          "",
		"warehouse.dbname":            "sales_dw",
		"warehouse.path":              "sales_dw.db",
		"warehouse.max_open_conns":    10,
		"warehouse.max_idle_conns":    5,
		"warehouse.conn_max_lifetime": "5m",

		"sources.data_dir":           "data",
		"sources.customer":           "customer.csv",
		"sources.customer_location":  "customer_location.csv",
		"sources.customer_info":      "customer_info.csv",
		"sources.product_info":       "product_info.csv",
		"sources.product_categories": "product_categories.csv",
		"sources.sales_details":      "sales_details.csv",

		"tracker_file":            "etl_tracker.json",
		"run_interval":            "1h",
		"cron":                    "",
		"unresolved_key_policy":   string(transform.PolicyFlag),
		"fail_on_missing_source":  false,
		"batch_size":              500,
		"enable_detailed_logging": false,
		"log_dir":                 "logs",
		"http.addr":               ":8080",

		"keys.customer_prefix": transform.CustomerKeyPrefix,
		"keys.product_prefix":  transform.ProductKeyPrefix,
		"keys.date_prefix":     transform.DateKeyPrefix,
		"keys.sales_prefix":    transform.SalesKeyPrefix,
	}
}

// flagKeys флаги, имя которых не совпадает с ключом конфигурации
var flagKeys = map[string]string{
	"data-dir":  "sources.data_dir",
	"db-driver": "warehouse.driver",
	"db-path":   "warehouse.path",
	"http-addr": "http.addr",
	"policy":    "unresolved_key_policy",
	"verbose":   "enable_detailed_logging",
}

// Load собирает конфигурацию.
// Приоритет (от высшего к низшему): флаги > переменные окружения > файл > значения по умолчанию.
// Пустой cfgFile означает поиск salesdw.yaml в рабочем каталоге.
func Load(cfgFile string, flags *pflag.FlagSet) (*ETLConfig, error) {
	k := koanf.New(".")

	// 1. Значения по умолчанию
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("ошибка загрузки значений по умолчанию: %w", err)
	}

	// 2. Файл конфигурации
	if cfgFile == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			cfgFile = DefaultConfigFile
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации %s: %w", cfgFile, err)
		}
	}

	// 3. Переменные окружения: SALESDW_WAREHOUSE__HOST -> warehouse.host
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("ошибка загрузки переменных окружения: %w", err)
	}

	// 4. Флаги, заданные явно
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("ошибка загрузки флагов: %w", err)
		}
	}

	var cfg ETLConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет значения конфигурации
func (c *ETLConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: правило '%s %s', получено '%v'", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// ExtractorSources пути к выгрузкам для экстрактора
func (c *ETLConfig) ExtractorSources() extractors.Sources {
	return extractors.Sources{
		DataDir:           c.Sources.DataDir,
		Customer:          c.Sources.Customer,
		CustomerLocation:  c.Sources.CustomerLocation,
		CustomerInfo:      c.Sources.CustomerInfo,
		ProductInfo:       c.Sources.ProductInfo,
		ProductCategories: c.Sources.ProductCategories,
		SalesDetails:      c.Sources.SalesDetails,
	}
}

// TransformSettings параметры трансформации
func (c *ETLConfig) TransformSettings() transform.Settings {
	return transform.Settings{
		CustomerPrefix:      c.Keys.CustomerPrefix,
		ProductPrefix:       c.Keys.ProductPrefix,
		DatePrefix:          c.Keys.DatePrefix,
		SalesPrefix:         c.Keys.SalesPrefix,
		UnresolvedKeyPolicy: transform.UnresolvedKeyPolicy(c.UnresolvedKeyPolicy),
	}
}
