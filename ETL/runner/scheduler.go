package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
)

// Schedule расписание запусков; Cron имеет приоритет над Interval
type Schedule struct {
	Interval time.Duration
	Cron     string
}

func (s Schedule) String() string {
	if s.Cron != "" {
		return "cron " + s.Cron
	}
	return "каждые " + s.Interval.String()
}

// NewScheduler создает планировщик с одним заданием ETL.
// Задание не запускается повторно, пока предыдущее не завершилось.
func (r *ETLRunner) NewScheduler(ctx context.Context, schedule Schedule) (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()

	job := func() {
		r.logger.Info("Запланированный запуск ETL процесса")
		if _, err := r.ExecuteETL(ctx); err != nil {
			if errors.Is(err, ErrRunInProgress) {
				r.logger.Warn("Запланированный запуск пропущен: %v", err)
				return
			}
			r.logger.Error("Ошибка при выполнении запланированного ETL: %v", err)
		}
	}

	var err error
	if schedule.Cron != "" {
		_, err = scheduler.Cron(schedule.Cron).Do(job)
	} else {
		_, err = scheduler.Every(schedule.Interval).Do(job)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка при настройке планировщика (%s): %w", schedule, err)
	}

	return scheduler, nil
}

// StartScheduler запускает планировщик и блокируется до отмены ctx
func (r *ETLRunner) StartScheduler(ctx context.Context, schedule Schedule) error {
	scheduler, err := r.NewScheduler(ctx, schedule)
	if err != nil {
		r.logger.Error("Ошибка при настройке планировщика: %v", err)
		return err
	}

	r.logger.Info("Запуск планировщика ETL: %s", schedule)
	scheduler.StartAsync()

	// Ожидаем сигнал остановки из контекста
	<-ctx.Done()

	scheduler.Stop()
	r.logger.Info("Планировщик ETL остановлен")
	return nil
}
