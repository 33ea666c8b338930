package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/config"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/load"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/models"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/runner"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd создает корневую команду ETL Runner
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "etl-runner",
		Short:         "ETL хранилища продаж: измерения SCD2, даты и факты",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "файл конфигурации (по умолчанию ./salesdw.yaml)")
	flags.String("data-dir", "", "каталог с выгрузками источников")
	flags.String("db-driver", "", "драйвер хранилища: mysql или sqlite")
	flags.String("db-path", "", "файл базы SQLite")
	flags.String("tracker-file", "", "файл водяных знаков")
	flags.String("policy", "", "обработка неразрешенных ключей: flag, drop или fail")
	flags.Bool("fail-on-missing-source", false, "прерывать запуск при недоступном источнике")
	flags.Int("batch-size", 0, "размер пакета вставки")
	flags.String("log-dir", "", "каталог файлов лога")
	flags.BoolP("verbose", "v", false, "подробное логирование")

	rootCmd.AddCommand(newOnceCmd(), newScheduledCmd(), newWatermarksCmd(), newInitSchemaCmd())
	return rootCmd
}

// setup загружает конфигурацию и создает логгер
func setup(cmd *cobra.Command) (*config.ETLConfig, *utils.ETLLogger, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}

	logger, err := utils.NewETLLogger(cfg.EnableDetailedLogging, cfg.LogDir)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Выполнить ETL один раз",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			etlRunner, err := runner.NewFromConfig(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("ошибка при создании ETL Runner: %w", err)
			}
			defer etlRunner.Close()

			summary, err := etlRunner.ExecuteETL(cmd.Context())
			if err != nil {
				return fmt.Errorf("ошибка при выполнении ETL: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
}

func newScheduledCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheduled",
		Short: "Запускать ETL по расписанию до получения сигнала завершения",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			etlRunner, err := runner.NewFromConfig(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("ошибка при создании ETL Runner: %w", err)
			}
			defer etlRunner.Close()

			return etlRunner.StartScheduler(cmd.Context(), runner.Schedule{Interval: cfg.RunInterval, Cron: cfg.Cron})
		},
	}
	cmd.Flags().String("cron", "", "cron-выражение расписания (приоритетнее интервала)")
	cmd.Flags().Duration("run-interval", 0, "интервал запуска")
	return cmd
}

func newWatermarksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watermarks",
		Short: "Показать водяные знаки таблиц",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			marks := load.NewFileWatermarkStore(cfg.TrackerFile, logger).Load()
			for _, table := range []string{
				models.TableCustomerDimension,
				models.TableProductDimension,
				models.TableDateDimension,
				models.TableSalesFact,
			} {
				watermark := marks[table]
				if watermark == "" {
					watermark = "-"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", table, watermark)
			}
			return nil
		},
	}
}

func newInitSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-schema",
		Short: "Создать таблицы хранилища и журнала запусков",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			defer logger.Sync()

			wh, err := config.ConnectWarehouse(cmd.Context(), cfg.Warehouse, logger)
			if err != nil {
				return err
			}
			defer wh.Close(logger)

			store := load.NewWarehouse(wh.DB, wh.Flavor, cfg.BatchSize, logger)
			if err := runner.InitSchema(cmd.Context(), store, models.NewSQLETLLogRepository(wh.DB, wh.Flavor)); err != nil {
				return err
			}

			logger.Info("Схема хранилища создана")
			return nil
		},
	}
}

func main() {
	// Контекст отменяется при получении сигнала завершения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		stop()
		os.Exit(1)
	}
}
