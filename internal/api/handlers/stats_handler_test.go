package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"tradebot/internal/models"
)

func sampleStats() *models.Stats {
	return &models.Stats{
		TotalTrades: 100,
		TotalPnl:    350.5,
		WinTrades:   60,
		LossTrades:  40,
		WinRate:     60.0,
		TopSymbolsByTrades: []models.SymbolStat{
			{Symbol: "BTCUSDT", Value: 50},
			{Symbol: "ETHUSDT", Value: 30},
		},
		TopSymbolsByProfit: []models.SymbolStat{
			{Symbol: "ETHUSDT", Value: 210.0},
		},
	}
}

func TestGetStats(t *testing.T) {
	h := NewStatsHandler(&mockStatsService{stats: sampleStats()})

	req := httptest.NewRequest("GET", "/stats", nil)
	rec := httptest.NewRecorder()
	h.GetStats(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200", rec.Code)
	}

	var stats models.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("невалидный JSON: %v", err)
	}
	if stats.TotalTrades != 100 {
		t.Errorf("total_trades = %d, ожидалось 100", stats.TotalTrades)
	}
	if stats.WinRate != 60.0 {
		t.Errorf("win_rate = %v, ожидалось 60.0", stats.WinRate)
	}
}

func TestGetStatsNullTops(t *testing.T) {
	// Пустые топы отдаются как [], а не null
	h := NewStatsHandler(&mockStatsService{stats: &models.Stats{}})

	req := httptest.NewRequest("GET", "/stats", nil)
	rec := httptest.NewRecorder()
	h.GetStats(rec, req)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("невалидный JSON: %v", err)
	}
	for _, key := range []string{"top_symbols_by_trades", "top_symbols_by_profit", "top_symbols_by_loss"} {
		if string(raw[key]) != "[]" {
			t.Errorf("%s = %s, ожидался []", key, raw[key])
		}
	}
}

func TestGetStatsError(t *testing.T) {
	h := NewStatsHandler(&mockStatsService{err: errors.New("db down")})

	req := httptest.NewRequest("GET", "/stats", nil)
	rec := httptest.NewRecorder()
	h.GetStats(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("статус = %d, ожидался 500", rec.Code)
	}
}

func TestGetTopSymbols(t *testing.T) {
	h := NewStatsHandler(&mockStatsService{stats: sampleStats()})

	tests := []struct {
		query      string
		wantStatus int
		wantMetric string
		wantCount  int
	}{
		{"", http.StatusOK, "trades", 2},
		{"?metric=trades", http.StatusOK, "trades", 2},
		{"?metric=profit", http.StatusOK, "profit", 1},
		{"?metric=loss", http.StatusOK, "loss", 0},
		{"?metric=volume", http.StatusBadRequest, "", 0},
	}

	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/stats/top-symbols"+tt.query, nil)
		rec := httptest.NewRecorder()
		h.GetTopSymbols(rec, req)

		if rec.Code != tt.wantStatus {
			t.Errorf("query %q: статус = %d, ожидался %d", tt.query, rec.Code, tt.wantStatus)
			continue
		}
		if tt.wantStatus != http.StatusOK {
			continue
		}

		var resp TopSymbolsResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("query %q: невалидный JSON: %v", tt.query, err)
		}
		if resp.Metric != tt.wantMetric {
			t.Errorf("query %q: metric = %s, ожидался %s", tt.query, resp.Metric, tt.wantMetric)
		}
		if len(resp.Symbols) != tt.wantCount {
			t.Errorf("query %q: symbols = %d, ожидалось %d", tt.query, len(resp.Symbols), tt.wantCount)
		}
	}
}
