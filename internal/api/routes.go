package api

import (
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradebot/internal/api/handlers"
	"tradebot/internal/api/middleware"
	"tradebot/internal/bot"
	"tradebot/internal/service"
	"tradebot/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	PositionService     service.PositionServiceInterface
	StatsService        service.StatsServiceInterface
	SettingsService     service.SettingsServiceInterface
	NotificationService service.NotificationServiceInterface
	RiskGate            *bot.RiskGate
	Hub                 *websocket.Hub
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── /positions/
//	│   ├── GET / - открытые позиции
//	│   ├── GET /{id} - одна позиция
//	│   ├── POST /{id}/close - закрыть позицию
//	│   └── POST /flatten - закрыть все позиции
//	├── /orders/
//	│   ├── GET / - активные ордера
//	│   └── GET /history - история из БД
//	├── /trades/
//	│   └── GET / - завершенные сделки
//	├── /account/
//	│   └── GET / - состояние счёта
//	├── /stats/
//	│   ├── GET / - агрегированная статистика
//	│   └── GET /top-symbols - топ-5 символов по метрике
//	├── /risk/
//	│   └── GET / - лимиты и состояние риск-гейта
//	├── /notifications/
//	│   ├── GET / - журнал событий
//	│   └── DELETE / - чистка журнала
//	└── /settings/
//	    ├── GET / - настройки
//	    ├── PATCH / - частичное обновление
//	    └── POST /trading - переключатель торговли
//
// /ws/stream - WebSocket для real-time обновлений
// /metrics - Prometheus метрики
// /health - health check
//
// Middleware: Recovery -> Logging -> CORS для всех маршрутов,
// Auth для /api/v1, DebugAuth для /debug.
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Auth)

	// Position routes
	if deps != nil && deps.PositionService != nil {
		h := handlers.NewPositionHandler(deps.PositionService)
		api.HandleFunc("/positions", h.GetPositions).Methods("GET")
		api.HandleFunc("/positions/flatten", h.FlattenAll).Methods("POST")
		api.HandleFunc("/positions/{id}", h.GetPosition).Methods("GET")
		api.HandleFunc("/positions/{id}/close", h.ClosePosition).Methods("POST")
		api.HandleFunc("/orders", h.GetActiveOrders).Methods("GET")
		api.HandleFunc("/orders/history", h.GetOrderHistory).Methods("GET")
		api.HandleFunc("/trades", h.GetTrades).Methods("GET")
		api.HandleFunc("/account", h.GetAccount).Methods("GET")
	}

	// Stats routes
	if deps != nil && deps.StatsService != nil {
		h := handlers.NewStatsHandler(deps.StatsService)
		api.HandleFunc("/stats", h.GetStats).Methods("GET")
		api.HandleFunc("/stats/top-symbols", h.GetTopSymbols).Methods("GET")
	}

	// Risk routes
	if deps != nil && deps.RiskGate != nil {
		h := handlers.NewRiskHandler(deps.RiskGate)
		api.HandleFunc("/risk", h.GetRiskState).Methods("GET")
	}

	// Notification routes
	if deps != nil && deps.NotificationService != nil {
		h := handlers.NewNotificationHandler(deps.NotificationService)
		api.HandleFunc("/notifications", h.GetNotifications).Methods("GET")
		api.HandleFunc("/notifications", h.ClearNotifications).Methods("DELETE")
	}

	// Settings routes
	if deps != nil && deps.SettingsService != nil {
		h := handlers.NewSettingsHandler(deps.SettingsService)
		api.HandleFunc("/settings", h.GetSettings).Methods("GET")
		api.HandleFunc("/settings", h.UpdateSettings).Methods("PATCH")
		api.HandleFunc("/settings/trading", h.SetTrading).Methods("POST")
	}

	// WebSocket для real-time обновлений
	if deps != nil && deps.Hub != nil {
		hub := deps.Hub
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(hub, w, r)
		})
	}

	// Prometheus метрики
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Debug endpoints под Basic Auth
	debugRouter := router.PathPrefix("/debug").Subrouter()
	debugRouter.Use(middleware.DebugAuth)
	debugRouter.HandleFunc("/pprof/", pprof.Index)
	debugRouter.HandleFunc("/pprof/cmdline", pprof.Cmdline)
	debugRouter.HandleFunc("/pprof/profile", pprof.Profile)
	debugRouter.HandleFunc("/pprof/symbol", pprof.Symbol)
	debugRouter.HandleFunc("/pprof/trace", pprof.Trace)
	debugRouter.PathPrefix("/pprof/").HandlerFunc(pprof.Index)

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
