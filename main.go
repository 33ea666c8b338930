// main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/config"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/runner"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
	"github.com/liam29102003/Sales-Data-Datawarehouse/routes"
	"github.com/liam29102003/Sales-Data-Datawarehouse/websocket"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	flags := pflag.NewFlagSet("salesdw-server", pflag.ExitOnError)
	cfgFile := flags.StringP("config", "c", "", "путь к YAML файлу конфигурации")
	flags.String("data-dir", "", "директория с CSV файлами источников")
	flags.String("db-driver", "", "драйвер хранилища (mysql или sqlite)")
	flags.String("db-path", "", "путь к файлу SQLite")
	flags.String("http-addr", "", "адрес сервера операций")
	flags.String("policy", "", "политика для неразрешенных ключей (flag, drop, fail)")
	flags.BoolP("verbose", "v", false, "подробное логирование")
	flags.Parse(os.Args[1:])

	if err := run(*cfgFile, flags); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func run(cfgFile string, flags *pflag.FlagSet) error {
	cfg, err := config.Load(cfgFile, flags)
	if err != nil {
		return err
	}

	logger, err := utils.NewETLLogger(cfg.EnableDetailedLogging, cfg.LogDir)
	if err != nil {
		return fmt.Errorf("ошибка инициализации логгера: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Запуск сервера операций хранилища продаж...")

	wsManager := websocket.NewManager(logger)

	etlRunner, err := runner.NewFromConfig(ctx, cfg, logger, runner.WithProgressSink(wsManager))
	if err != nil {
		return err
	}
	defer etlRunner.Close()

	router := mux.NewRouter()
	routes.SetupRoutes(router, etlRunner, wsManager, logger)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		wsManager.Run(gctx)
		return nil
	})

	g.Go(func() error {
		return etlRunner.StartScheduler(gctx, runner.Schedule{Interval: cfg.RunInterval, Cron: cfg.Cron})
	})

	g.Go(func() error {
		logger.Info("✅ Сервер запущен на %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ошибка запуска сервера: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Warn("⚠️ Получен сигнал завершения, останавливаем сервер...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("👋 Сервер остановлен")
	return nil
}
