package advisor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"tradebot/internal/models"
)

func TestAdviseParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/predict" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol = %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"BTCUSDT","trend":"UP","confidence":0.82,"model_name":"lstm-v3"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, time.Minute, zap.NewNop())
	advice, err := c.Advise(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatal(err)
	}
	if advice.Trend != models.TrendUp || advice.Confidence != 0.82 {
		t.Errorf("advice = %+v", advice)
	}
	if !advice.Agrees(models.SignalLong) {
		t.Error("UP must agree with LONG")
	}
	if advice.Agrees(models.SignalShort) {
		t.Error("UP must not agree with SHORT")
	}
}

func TestAdviseCaches(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"symbol":"ETHUSDT","trend":"DOWN","confidence":0.7}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, time.Minute, zap.NewNop())
	for i := 0; i < 3; i++ {
		if _, err := c.Advise(context.Background(), "ETHUSDT"); err != nil {
			t.Fatal(err)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("backend called %d times, want 1 (cache)", got)
	}
}

func TestAdviseErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, time.Minute, zap.NewNop())
	if _, err := c.Advise(context.Background(), "BTCUSDT"); err == nil {
		t.Error("5xx must surface as error")
	}

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"trend":"SIDEWAYS"}`))
	}))
	defer bad.Close()

	c = NewClient(bad.URL, time.Second, time.Minute, zap.NewNop())
	if _, err := c.Advise(context.Background(), "BTCUSDT"); err == nil {
		t.Error("unknown trend must surface as error")
	}
}
