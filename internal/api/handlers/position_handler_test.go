package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"tradebot/internal/service"
)

func newPositionRouter(svc *mockPositionService) *mux.Router {
	h := NewPositionHandler(svc)
	r := mux.NewRouter()
	r.HandleFunc("/positions", h.GetPositions).Methods("GET")
	r.HandleFunc("/positions/flatten", h.FlattenAll).Methods("POST")
	r.HandleFunc("/positions/{id}", h.GetPosition).Methods("GET")
	r.HandleFunc("/positions/{id}/close", h.ClosePosition).Methods("POST")
	r.HandleFunc("/trades", h.GetTrades).Methods("GET")
	return r
}

func TestGetPositions(t *testing.T) {
	svc := &mockPositionService{
		positions: []service.PositionView{
			{ID: "pos-1", Symbol: "BTCUSDT", Side: "long"},
			{ID: "pos-2", Symbol: "ETHUSDT", Side: "short"},
		},
	}
	router := newPositionRouter(svc)

	req := httptest.NewRequest("GET", "/positions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200", rec.Code)
	}

	var resp GetPositionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("невалидный JSON: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d, ожидалось 2", resp.Total)
	}
	if resp.Positions[0].Symbol != "BTCUSDT" {
		t.Errorf("symbol = %s, ожидался BTCUSDT", resp.Positions[0].Symbol)
	}
}

func TestGetPositionsEmpty(t *testing.T) {
	router := newPositionRouter(&mockPositionService{})

	req := httptest.NewRequest("GET", "/positions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// Пустой список должен сериализоваться как [], а не null
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("невалидный JSON: %v", err)
	}
	if string(raw["positions"]) != "[]" {
		t.Errorf("positions = %s, ожидался []", raw["positions"])
	}
}

func TestGetPositionNotFound(t *testing.T) {
	router := newPositionRouter(&mockPositionService{})

	req := httptest.NewRequest("GET", "/positions/pos-99", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("статус = %d, ожидался 404", rec.Code)
	}
}

func TestClosePosition(t *testing.T) {
	svc := &mockPositionService{}
	router := newPositionRouter(svc)

	req := httptest.NewRequest("POST", "/positions/pos-1/close", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Errorf("статус = %d, ожидался 202", rec.Code)
	}
	if svc.closedID != "pos-1" {
		t.Errorf("закрыта позиция %s, ожидалась pos-1", svc.closedID)
	}
}

func TestClosePositionConflict(t *testing.T) {
	svc := &mockPositionService{closeErr: errors.New("position pos-1 is already closing")}
	router := newPositionRouter(svc)

	req := httptest.NewRequest("POST", "/positions/pos-1/close", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("статус = %d, ожидался 409", rec.Code)
	}
}

func TestFlattenAll(t *testing.T) {
	svc := &mockPositionService{flattened: 3}
	router := newPositionRouter(svc)

	req := httptest.NewRequest("POST", "/positions/flatten", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("статус = %d, ожидался 202", rec.Code)
	}

	var resp FlattenAllResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("невалидный JSON: %v", err)
	}
	if resp.Closed != 3 {
		t.Errorf("closed = %d, ожидалось 3", resp.Closed)
	}
	if svc.flattenHits != 1 {
		t.Errorf("FlattenAll вызван %d раз", svc.flattenHits)
	}
}

func TestGetTradesLimit(t *testing.T) {
	svc := &mockPositionService{}
	router := newPositionRouter(svc)

	tests := []struct {
		query string
		want  int
	}{
		{"", 100},
		{"?limit=25", 25},
		{"?limit=abc", 100},
		{"?limit=-5", 100},
	}

	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/trades"+tt.query, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if svc.lastLimit != tt.want {
			t.Errorf("query %q: limit = %d, ожидалось %d", tt.query, svc.lastLimit, tt.want)
		}
	}
}
