package handlers

import (
	"net/http"

	"tradebot/internal/service"
)

// SettingsHandler отвечает за управление runtime-настройками бота
//
// Endpoints:
// - GET /api/v1/settings - текущие настройки
// - PATCH /api/v1/settings - частичное обновление
// - POST /api/v1/settings/trading - переключатель торговли
//
// Переключатель торговли применяется к риск-гейту немедленно:
// новые позиции не открываются, открытые продолжают сопровождаться.
type SettingsHandler struct {
	settingsService service.SettingsServiceInterface
}

// NewSettingsHandler создает новый SettingsHandler с внедрением зависимости
func NewSettingsHandler(settingsService service.SettingsServiceInterface) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// GetSettings возвращает текущие настройки
//
// GET /api/v1/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settingsService.GetSettings()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get settings: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}

// UpdateSettings применяет частичное обновление настроек
//
// PATCH /api/v1/settings
//
// Body: {"trading_enabled": false, "notification_prefs": {...}}
// Отсутствующие поля не изменяются.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateSettingsRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	settings, err := h.settingsService.UpdateSettings(&req)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to update settings: "+err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, settings)
}

// SetTradingRequest представляет запрос переключения торговли
type SetTradingRequest struct {
	Enabled bool `json:"enabled"`
}

// SetTrading включает или выключает открытие новых позиций
//
// POST /api/v1/settings/trading
//
// Body: {"enabled": false}
func (h *SettingsHandler) SetTrading(w http.ResponseWriter, r *http.Request) {
	var req SetTradingRequest
	if err := decodeBody(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.settingsService.SetTradingEnabled(req.Enabled); err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to set trading state: "+err.Error())
		return
	}

	msg := "Торговля выключена"
	if req.Enabled {
		msg = "Торговля включена"
	}
	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: msg})
}
