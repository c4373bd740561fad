package handlers

import (
	"net/http"

	"tradebot/internal/models"
	"tradebot/internal/service"
)

// StatsHandler обрабатывает HTTP запросы статистики торговли
//
// Endpoints:
// - GET /api/v1/stats - агрегированная статистика
// - GET /api/v1/stats/top-symbols?metric=trades|profit|loss - топ-5 символов
//
// Статистика включает:
// - Количество завершенных сделок (день/неделя/месяц/всего)
// - PNL за те же периоды
// - Win rate и счетчики срабатываний SL/TP/трейлинга
// - Топ-5 символов по разным метрикам
type StatsHandler struct {
	statsService service.StatsServiceInterface
}

// NewStatsHandler создает новый StatsHandler с внедрением зависимости
func NewStatsHandler(statsService service.StatsServiceInterface) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// GetStats возвращает агрегированную статистику
//
// GET /api/v1/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsService.GetStats()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get stats: "+err.Error())
		return
	}

	// Пустые топы отдаем как [], а не null
	if stats.TopSymbolsByTrades == nil {
		stats.TopSymbolsByTrades = []models.SymbolStat{}
	}
	if stats.TopSymbolsByProfit == nil {
		stats.TopSymbolsByProfit = []models.SymbolStat{}
	}
	if stats.TopSymbolsByLoss == nil {
		stats.TopSymbolsByLoss = []models.SymbolStat{}
	}

	respondWithJSON(w, http.StatusOK, stats)
}

// TopSymbolsResponse представляет топ символов по метрике
type TopSymbolsResponse struct {
	Metric  string             `json:"metric"`
	Symbols []models.SymbolStat `json:"symbols"`
}

// GetTopSymbols возвращает топ-5 символов по выбранной метрике
//
// GET /api/v1/stats/top-symbols?metric=trades|profit|loss
func (h *StatsHandler) GetTopSymbols(w http.ResponseWriter, r *http.Request) {
	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = "trades"
	}

	stats, err := h.statsService.GetStats()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get stats: "+err.Error())
		return
	}

	var symbols []models.SymbolStat
	switch metric {
	case "trades":
		symbols = stats.TopSymbolsByTrades
	case "profit":
		symbols = stats.TopSymbolsByProfit
	case "loss":
		symbols = stats.TopSymbolsByLoss
	default:
		respondWithError(w, http.StatusBadRequest, "unknown metric: "+metric+" (expected trades, profit or loss)")
		return
	}
	if symbols == nil {
		symbols = []models.SymbolStat{}
	}

	respondWithJSON(w, http.StatusOK, TopSymbolsResponse{Metric: metric, Symbols: symbols})
}
