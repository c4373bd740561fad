package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"tradebot/internal/service"
)

// PositionHandler обрабатывает HTTP запросы к торговому движку
//
// Endpoints:
// - GET /api/v1/positions - открытые позиции
// - GET /api/v1/positions/{id} - одна позиция
// - POST /api/v1/positions/{id}/close - закрыть позицию
// - POST /api/v1/positions/flatten - закрыть все позиции
// - GET /api/v1/orders - активные ордера
// - GET /api/v1/orders/history - история ордеров из БД
// - GET /api/v1/trades - завершенные сделки
// - GET /api/v1/account - состояние счёта
type PositionHandler struct {
	positionService service.PositionServiceInterface
}

// NewPositionHandler создает новый PositionHandler с внедрением зависимости
func NewPositionHandler(positionService service.PositionServiceInterface) *PositionHandler {
	return &PositionHandler{positionService: positionService}
}

// GetPositionsResponse представляет список открытых позиций
type GetPositionsResponse struct {
	Positions []service.PositionView `json:"positions"`
	Total     int                    `json:"total"`
}

// GetPositions возвращает снимки всех открытых позиций
//
// GET /api/v1/positions
func (h *PositionHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	positions := h.positionService.GetPositions()
	if positions == nil {
		positions = []service.PositionView{}
	}
	respondWithJSON(w, http.StatusOK, GetPositionsResponse{
		Positions: positions,
		Total:     len(positions),
	})
}

// GetPosition возвращает одну позицию по ID
//
// GET /api/v1/positions/{id}
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	position, err := h.positionService.GetPosition(id)
	if errors.Is(err, service.ErrPositionNotFound) {
		respondWithError(w, http.StatusNotFound, "position not found: "+id)
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, position)
}

// ClosePosition закрывает позицию по команде оператора
//
// POST /api/v1/positions/{id}/close
func (h *PositionHandler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.positionService.ClosePosition(id); err != nil {
		respondWithError(w, http.StatusConflict, err.Error())
		return
	}
	respondWithJSON(w, http.StatusAccepted, SuccessResponse{
		Message: "Закрытие позиции " + id + " инициировано",
	})
}

// FlattenAllResponse представляет результат массового закрытия
type FlattenAllResponse struct {
	Message string `json:"message"`
	Closed  int    `json:"closed"`
}

// FlattenAll закрывает все открытые позиции
//
// POST /api/v1/positions/flatten
func (h *PositionHandler) FlattenAll(w http.ResponseWriter, r *http.Request) {
	closed := h.positionService.FlattenAll()
	respondWithJSON(w, http.StatusAccepted, FlattenAllResponse{
		Message: "Закрытие всех позиций инициировано",
		Closed:  closed,
	})
}

// GetActiveOrdersResponse представляет список активных ордеров
type GetActiveOrdersResponse struct {
	Orders []service.OrderView `json:"orders"`
	Total  int                 `json:"total"`
}

// GetActiveOrders возвращает ордера, еще не достигшие терминального состояния
//
// GET /api/v1/orders
func (h *PositionHandler) GetActiveOrders(w http.ResponseWriter, r *http.Request) {
	orders := h.positionService.GetActiveOrders()
	if orders == nil {
		orders = []service.OrderView{}
	}
	respondWithJSON(w, http.StatusOK, GetActiveOrdersResponse{
		Orders: orders,
		Total:  len(orders),
	})
}

// GetOrderHistory возвращает историю ордеров из БД
//
// GET /api/v1/orders/history?limit=100
func (h *PositionHandler) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	orders, err := h.positionService.GetOrderHistory(parseLimit(r, 100))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get order history: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, SuccessResponse{Data: orders})
}

// GetTrades возвращает последние завершенные сделки
//
// GET /api/v1/trades?limit=100
func (h *PositionHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.positionService.GetTrades(parseLimit(r, 100))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get trades: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, SuccessResponse{Data: trades})
}

// GetAccount возвращает текущее состояние счёта
//
// GET /api/v1/account
func (h *PositionHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.positionService.GetAccount())
}

// parseLimit извлекает limit из query, отбрасывая мусор
func parseLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}

// decodeBody декодирует JSON body, отклоняя неизвестные поля
func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
