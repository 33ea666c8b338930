package runner

import (
	"context"
	"fmt"

	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/config"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/extractors"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/load"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/models"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/transform"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
)

// InitSchema создает таблицы хранилища и журнала запусков, если их нет
func InitSchema(ctx context.Context, store *load.Warehouse, logRepo models.ETLLogRepository) error {
	if err := store.CreateSchema(ctx); err != nil {
		return err
	}
	if err := logRepo.CreateETLLogTable(ctx); err != nil {
		return fmt.Errorf("ошибка при создании таблицы логов ETL: %w", err)
	}
	return nil
}

// NewFromConfig подключается к хранилищу и собирает ETLRunner из конфигурации
func NewFromConfig(ctx context.Context, cfg *config.ETLConfig, logger *utils.ETLLogger, opts ...Option) (*ETLRunner, error) {
	logger.Info("Инициализация ETL Runner")

	wh, err := config.ConnectWarehouse(ctx, cfg.Warehouse, logger)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к хранилищу: %w", err)
	}

	store := load.NewWarehouse(wh.DB, wh.Flavor, cfg.BatchSize, logger)
	etlLogRepo := models.NewSQLETLLogRepository(wh.DB, wh.Flavor)

	if err := InitSchema(ctx, store, etlLogRepo); err != nil {
		wh.Close(logger)
		return nil, err
	}

	loadManager := load.NewLoadManager(store, store.Tables(), load.NewFileWatermarkStore(cfg.TrackerFile, logger), logger)
	extractor := extractors.NewExtractor(logger, cfg.ExtractorSources(), cfg.FailOnMissingSource)
	transformer := transform.NewTransformer(logger, cfg.TransformSettings())

	r := NewETLRunner(logger, extractor, transformer, loadManager, etlLogRepo, opts...)
	r.closer = func() { wh.Close(logger) }
	return r, nil
}
