// routes/api_routes.go
package routes

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/load"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/models"
	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
	"github.com/liam29102003/Sales-Data-Datawarehouse/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ETLService операции ETL, доступные через API
type ETLService interface {
	RunStats(ctx context.Context, days int) ([]models.ETLRunLog, error)
	State(ctx context.Context) (*models.ETLStateMonitor, error)
	Watermarks() load.Watermarks
	Trigger(ctx context.Context) error
}

// SetupRoutes настраивает все маршруты API и WebSocket
func SetupRoutes(router *mux.Router, svc ETLService, wsManager *websocket.Manager, logger *utils.ETLLogger) {
	router.Use(CORSMiddleware)

	// WebSocket поток событий ETL
	router.HandleFunc("/ws/runs", wsManager.HandleConnections)

	// API запусков ETL
	api := router.PathPrefix("/api/etl").Subrouter()
	api.HandleFunc("/runs", GetRunsHandler(svc, logger)).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/state", GetStateHandler(svc, logger)).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/watermarks", GetWatermarksHandler(svc)).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/run", TriggerRunHandler(svc, logger)).Methods(http.MethodPost, http.MethodOptions)

	// Метрики Prometheus
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// CORSMiddleware разрешает запросы с любого источника
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
