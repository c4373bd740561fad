package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tradebot/internal/models"
)

func TestGetSettings(t *testing.T) {
	svc := &mockSettingsService{settings: &models.Settings{ID: 1, TradingEnabled: true}}
	h := NewSettingsHandler(svc)

	req := httptest.NewRequest("GET", "/settings", nil)
	rec := httptest.NewRecorder()
	h.GetSettings(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200", rec.Code)
	}

	var settings models.Settings
	if err := json.Unmarshal(rec.Body.Bytes(), &settings); err != nil {
		t.Fatalf("невалидный JSON: %v", err)
	}
	if !settings.TradingEnabled {
		t.Error("trading_enabled должен быть true")
	}
}

func TestUpdateSettings(t *testing.T) {
	svc := &mockSettingsService{settings: &models.Settings{ID: 1, TradingEnabled: true}}
	h := NewSettingsHandler(svc)

	body := strings.NewReader(`{"trading_enabled": false}`)
	req := httptest.NewRequest("PATCH", "/settings", body)
	rec := httptest.NewRecorder()
	h.UpdateSettings(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200: %s", rec.Code, rec.Body.String())
	}
	if svc.settings.TradingEnabled {
		t.Error("trading_enabled должен быть выключен")
	}
}

func TestUpdateSettingsUnknownField(t *testing.T) {
	svc := &mockSettingsService{settings: &models.Settings{ID: 1}}
	h := NewSettingsHandler(svc)

	body := strings.NewReader(`{"no_such_field": 1}`)
	req := httptest.NewRequest("PATCH", "/settings", body)
	rec := httptest.NewRecorder()
	h.UpdateSettings(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("статус = %d, ожидался 400", rec.Code)
	}
}

func TestSetTrading(t *testing.T) {
	svc := &mockSettingsService{settings: &models.Settings{ID: 1}}
	h := NewSettingsHandler(svc)

	body := strings.NewReader(`{"enabled": false}`)
	req := httptest.NewRequest("POST", "/settings/trading", body)
	rec := httptest.NewRecorder()
	h.SetTrading(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200", rec.Code)
	}
	if svc.lastEnabled == nil || *svc.lastEnabled {
		t.Error("сервису должен быть передан enabled=false")
	}
}

func TestSetTradingInvalidBody(t *testing.T) {
	h := NewSettingsHandler(&mockSettingsService{})

	req := httptest.NewRequest("POST", "/settings/trading", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	h.SetTrading(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("статус = %d, ожидался 400", rec.Code)
	}
}
