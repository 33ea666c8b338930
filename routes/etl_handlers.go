// routes/etl_handlers.go
package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/models"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/runner"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
)

// DefaultRunDays период истории запусков по умолчанию
const DefaultRunDays = 7

// RunsResponse ответ API для истории запусков
type RunsResponse struct {
	Days int                `json:"days"`
	Runs []models.ETLRunLog `json:"runs"`
}

// GetRunsHandler возвращает запуски ETL за последние days дней
func GetRunsHandler(svc ETLService, logger *utils.ETLLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := DefaultRunDays
		if raw := r.URL.Query().Get("days"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				http.Error(w, "Параметр days должен быть положительным числом", http.StatusBadRequest)
				return
			}
			days = n
		}

		runs, err := svc.RunStats(r.Context(), days)
		if err != nil {
			logger.Error("Ошибка при получении истории запусков: %v", err)
			http.Error(w, "Ошибка при получении истории запусков", http.StatusInternalServerError)
			return
		}

		writeJSON(w, logger, http.StatusOK, RunsResponse{Days: days, Runs: runs})
	}
}

// GetStateHandler возвращает сводку о состоянии ETL
func GetStateHandler(svc ETLService, logger *utils.ETLLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := svc.State(r.Context())
		if err != nil {
			logger.Error("Ошибка при получении состояния ETL: %v", err)
			http.Error(w, "Ошибка при получении состояния ETL", http.StatusInternalServerError)
			return
		}

		writeJSON(w, logger, http.StatusOK, state)
	}
}

// GetWatermarksHandler возвращает водяные знаки таблиц
func GetWatermarksHandler(svc ETLService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, nil, http.StatusOK, svc.Watermarks())
	}
}

// TriggerRunHandler запускает ETL в фоне; 409, если запуск уже идет
func TriggerRunHandler(svc ETLService, logger *utils.ETLLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := svc.Trigger(r.Context())
		switch {
		case errors.Is(err, runner.ErrRunInProgress):
			writeJSON(w, logger, http.StatusConflict, map[string]string{"status": "busy", "error": err.Error()})
		case err != nil:
			logger.Error("Ошибка при запуске ETL: %v", err)
			http.Error(w, "Ошибка при запуске ETL", http.StatusInternalServerError)
		default:
			logger.Info("ETL запущен по запросу с адреса %s", r.RemoteAddr)
			writeJSON(w, logger, http.StatusAccepted, map[string]string{"status": "started"})
		}
	}
}

func writeJSON(w http.ResponseWriter, logger *utils.ETLLogger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil && logger != nil {
		logger.Error("Ошибка при кодировании JSON: %v", err)
	}
}
