package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
)

// fakeExchange - биржа в памяти для тестов движка: запоминает
// отправленные ордера и позволяет вручную подавать отчёты и тики
var _ exchange.Exchange = (*fakeExchange)(nil)

type fakeExchange struct {
	mu       sync.Mutex
	placed   []exchange.OrderRequest
	placeErr error

	tickCb map[string]func(*exchange.PriceTick)
	execCb func(*exchange.ExecutionReport)
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{tickCb: make(map[string]func(*exchange.PriceTick))}
}

func (f *fakeExchange) GetName() string { return "fake" }

func (f *fakeExchange) PlaceOrder(_ context.Context, req *exchange.OrderRequest) (*exchange.OrderAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	f.placed = append(f.placed, *req)
	return &exchange.OrderAck{
		ExchangeID:    fmt.Sprintf("ex-%d", len(f.placed)),
		ClientOrderID: req.ClientOrderID,
		Status:        "NEW",
	}, nil
}

func (f *fakeExchange) CancelOrder(context.Context, string, string) error { return nil }

func (f *fakeExchange) GetOpenOrders(context.Context, string) ([]*exchange.OrderStatus, error) {
	return nil, nil
}

func (f *fakeExchange) GetOrder(context.Context, string, string) (*exchange.OrderStatus, error) {
	return nil, errors.New("not found")
}

func (f *fakeExchange) GetAccount(context.Context) (*exchange.AccountState, error) {
	return &exchange.AccountState{Balance: 10000, AvailableBalance: 10000}, nil
}

func (f *fakeExchange) SubscribeTicker(symbol string, cb func(*exchange.PriceTick)) error {
	f.mu.Lock()
	f.tickCb[symbol] = cb
	f.mu.Unlock()
	return nil
}

func (f *fakeExchange) SubscribeExecutions(cb func(*exchange.ExecutionReport)) error {
	f.mu.Lock()
	f.execCb = cb
	f.mu.Unlock()
	return nil
}

func (f *fakeExchange) Close() error { return nil }

func (f *fakeExchange) placedOrders() []exchange.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]exchange.OrderRequest, len(f.placed))
	copy(out, f.placed)
	return out
}

func (f *fakeExchange) pushReport(r *exchange.ExecutionReport) {
	f.mu.Lock()
	cb := f.execCb
	f.mu.Unlock()
	cb(r)
}

func (f *fakeExchange) pushTick(symbol string, price float64) {
	f.mu.Lock()
	cb := f.tickCb[symbol]
	f.mu.Unlock()
	if cb != nil {
		cb(&exchange.PriceTick{Symbol: symbol, Price: price, Timestamp: time.Now()})
	}
}

func testEngine(t *testing.T) (*Engine, *fakeExchange, context.CancelFunc) {
	t.Helper()

	g, err := NewRiskGate(RiskLimits{
		MaxPositionSize:  1000,
		MaxTotalExposure: 5000,
		MaxOpenPositions: 3,
		MaxDailyLoss:     500,
		RiskPerTradePct:  5,
		StopLossPct:      2,
		TakeProfitPct:    4,
		MaxLeverage:      10,
		ErrorThreshold:   3,
		CooldownDuration: time.Minute,
	})
	if err != nil {
		t.Fatal(err)
	}

	fake := newFakeExchange()
	e := NewEngine(EngineConfig{
		Symbols:           []string{"BTCUSDT"},
		OrderQtyPrecision: 4,
		OrderTimeout:      time.Second,
		StaleOrderTimeout: time.Minute,
		ReconcileInterval: time.Hour, // не мешаем тесту
		AccountInterval:   time.Hour,
	}, fake, g, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)

	// Ждём подписок и первого обновления баланса
	deadline := time.Now().Add(time.Second)
	for {
		fake.mu.Lock()
		ready := fake.execCb != nil && fake.tickCb["BTCUSDT"] != nil
		fake.mu.Unlock()
		if ready && e.accountBalance() > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("engine did not subscribe in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return e, fake, cancel
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func entrySignal() *models.EntrySignal {
	return &models.EntrySignal{
		Symbol:         "BTCUSDT",
		Signal:         models.SignalLong,
		Confidence:     0.9,
		Strategy:       "test",
		ReferencePrice: 50000,
		GeneratedAt:    time.Now(),
	}
}

// Полный цикл: сигнал -> ордер -> fill -> позиция открыта с защитой
func TestEngineEntryFlow(t *testing.T) {
	e, fake, cancel := testEngine(t)
	defer cancel()

	if err := e.SubmitSignal(context.Background(), entrySignal()); err != nil {
		t.Fatal(err)
	}

	placed := fake.placedOrders()
	if len(placed) != 1 {
		t.Fatalf("placed %d orders, want 1", len(placed))
	}
	req := placed[0]
	if req.Side != exchange.SideBuy || req.Symbol != "BTCUSDT" {
		t.Errorf("unexpected order: %+v", req)
	}
	// 5% от 10000 = 500 USDT / 50000 = 0.01
	if !almostEqual(req.Quantity, 0.01) {
		t.Errorf("quantity = %v, want 0.01", req.Quantity)
	}

	fake.pushReport(&exchange.ExecutionReport{
		ClientOrderID: req.ClientOrderID,
		Status:        "FILLED",
		CumFilledQty:  0.01,
		CumQuoteQty:   500,
		LastFillPrice: 50000,
		LastFillQty:   0.01,
		Commission:    5.0,
		TradeID:       1,
		Timestamp:     time.Now(),
	})

	waitFor(t, func() bool { return e.Positions().Count() == 1 }, "position not opened")

	pos, ok := e.Positions().GetBySymbol("BTCUSDT")
	if !ok {
		t.Fatal("no position for BTCUSDT")
	}
	snap := pos.Snapshot()
	if snap.Side != SideLong || !almostEqual(snap.EntryPrice, 50000) {
		t.Errorf("position = %+v", snap)
	}
	// Защита выставлена из дефолтных процентов
	if !almostEqual(snap.StopLoss, 49000) {
		t.Errorf("SL = %v, want 49000", snap.StopLoss)
	}
	if !almostEqual(snap.TakeProfit, 52000) {
		t.Errorf("TP = %v, want 52000", snap.TakeProfit)
	}
	// Комиссия открывающего филла не теряется
	if !almostEqual(snap.Commission, 5.0) {
		t.Errorf("commission = %v, want 5.0", snap.Commission)
	}
}

// Пробой стопа тиком закрывает позицию ровно одним ордером
func TestEngineStopLossClose(t *testing.T) {
	e, fake, cancel := testEngine(t)
	defer cancel()

	if err := e.SubmitSignal(context.Background(), entrySignal()); err != nil {
		t.Fatal(err)
	}
	entryID := fake.placedOrders()[0].ClientOrderID
	fake.pushReport(&exchange.ExecutionReport{
		ClientOrderID: entryID, Status: "FILLED",
		CumFilledQty: 0.01, CumQuoteQty: 500,
		LastFillPrice: 50000, LastFillQty: 0.01, TradeID: 1, Timestamp: time.Now(),
	})
	waitFor(t, func() bool { return e.Positions().Count() == 1 }, "position not opened")

	// Серия тиков ниже SL 49000: закрытие должно уйти один раз
	for i := 0; i < 5; i++ {
		fake.pushTick("BTCUSDT", 48900)
	}
	waitFor(t, func() bool { return len(fake.placedOrders()) == 2 }, "close order not placed")

	time.Sleep(50 * time.Millisecond) // даём шанс дублю проявиться
	placed := fake.placedOrders()
	if len(placed) != 2 {
		t.Fatalf("placed %d orders, want 2 (entry + single close)", len(placed))
	}
	closeReq := placed[1]
	if closeReq.Side != exchange.SideSell || !closeReq.ReduceOnly {
		t.Errorf("close order = %+v", closeReq)
	}

	// Fill закрытия реализует PnL и убирает позицию
	var gotTrade *models.TradeRecord
	var tradeMu sync.Mutex
	e.SetTradeCallback(func(tr *models.TradeRecord) {
		tradeMu.Lock()
		gotTrade = tr
		tradeMu.Unlock()
	})

	fake.pushReport(&exchange.ExecutionReport{
		ClientOrderID: closeReq.ClientOrderID, Status: "FILLED",
		CumFilledQty: 0.01, CumQuoteQty: 489,
		LastFillPrice: 48900, LastFillQty: 0.01, TradeID: 2, Timestamp: time.Now(),
	})
	waitFor(t, func() bool { return e.Positions().Count() == 0 }, "position not closed")

	waitFor(t, func() bool {
		tradeMu.Lock()
		defer tradeMu.Unlock()
		return gotTrade != nil
	}, "trade record not emitted")

	tradeMu.Lock()
	defer tradeMu.Unlock()
	if gotTrade.ExitReason != models.ExitReasonStopLoss {
		t.Errorf("exit reason = %s, want stop_loss", gotTrade.ExitReason)
	}
	if !almostEqual(gotTrade.RealizedPnl, (48900-50000)*0.01) {
		t.Errorf("realized pnl = %v", gotTrade.RealizedPnl)
	}
}

// Ошибки отправки питают circuit breaker; открытый breaker
// блокирует следующий вход
func TestEngineCircuitBreaker(t *testing.T) {
	e, fake, cancel := testEngine(t)
	defer cancel()

	fake.mu.Lock()
	fake.placeErr = errors.New("exchange down")
	fake.mu.Unlock()

	for i := 0; i < 3; i++ {
		if err := e.SubmitSignal(context.Background(), entrySignal()); err == nil {
			t.Fatal("expected submission error")
		}
	}

	fake.mu.Lock()
	fake.placeErr = nil
	fake.mu.Unlock()

	err := e.SubmitSignal(context.Background(), entrySignal())
	var rv *RiskViolation
	if !errors.As(err, &rv) || rv.Check != "circuit_breaker" {
		t.Errorf("expected circuit_breaker rejection, got %v", err)
	}
	if len(fake.placedOrders()) != 0 {
		t.Error("no order may reach the exchange with the breaker open")
	}
}

// Reject входного ордера не оставляет позиций и чистит таблицу
func TestEngineRejectedEntry(t *testing.T) {
	e, fake, cancel := testEngine(t)
	defer cancel()

	if err := e.SubmitSignal(context.Background(), entrySignal()); err != nil {
		t.Fatal(err)
	}
	clientID := fake.placedOrders()[0].ClientOrderID

	fake.pushReport(&exchange.ExecutionReport{
		ClientOrderID: clientID,
		Status:        "REJECTED",
		RejectReason:  "Margin is insufficient",
		Timestamp:     time.Now(),
	})

	waitFor(t, func() bool { return e.Orders().Count() == 0 }, "rejected order not removed")
	if e.Positions().Count() != 0 {
		t.Error("rejected entry must not create a position")
	}
}

// Второй сигнал по открытому символу отклоняется без ордера
func TestEngineOnePositionPerSymbol(t *testing.T) {
	e, fake, cancel := testEngine(t)
	defer cancel()

	if err := e.SubmitSignal(context.Background(), entrySignal()); err != nil {
		t.Fatal(err)
	}
	entryID := fake.placedOrders()[0].ClientOrderID
	fake.pushReport(&exchange.ExecutionReport{
		ClientOrderID: entryID, Status: "FILLED",
		CumFilledQty: 0.01, CumQuoteQty: 500,
		LastFillPrice: 50000, LastFillQty: 0.01, TradeID: 1, Timestamp: time.Now(),
	})
	waitFor(t, func() bool { return e.Positions().Count() == 1 }, "position not opened")

	err := e.SubmitSignal(context.Background(), entrySignal())
	var rv *RiskViolation
	if !errors.As(err, &rv) || rv.Check != "position_exists" {
		t.Errorf("expected position_exists rejection, got %v", err)
	}
	if len(fake.placedOrders()) != 1 {
		t.Error("second entry must not place an order")
	}
}

// ForceFlatten закрывает все позиции, минуя проверки входа
func TestEngineForceFlatten(t *testing.T) {
	e, fake, cancel := testEngine(t)
	defer cancel()

	if err := e.SubmitSignal(context.Background(), entrySignal()); err != nil {
		t.Fatal(err)
	}
	entryID := fake.placedOrders()[0].ClientOrderID
	fake.pushReport(&exchange.ExecutionReport{
		ClientOrderID: entryID, Status: "FILLED",
		CumFilledQty: 0.01, CumQuoteQty: 500,
		LastFillPrice: 50000, LastFillQty: 0.01, TradeID: 1, Timestamp: time.Now(),
	})
	waitFor(t, func() bool { return e.Positions().Count() == 1 }, "position not opened")

	// Открываем breaker - вход заблокирован, но flatten обязан пройти
	for i := 0; i < 3; i++ {
		e.risk.RecordError()
	}

	if n := e.ForceFlatten(models.ExitReasonForceFlatten); n != 1 {
		t.Fatalf("flattened %d positions, want 1", n)
	}
	waitFor(t, func() bool { return len(fake.placedOrders()) == 2 }, "flatten order not placed")
}

// Advisor, расходящийся с сигналом, блокирует вход;
// недоступный advisor - нет
func TestEngineAdvisorGate(t *testing.T) {
	e, fake, cancel := testEngine(t)
	defer cancel()

	disagree := advisorFunc(func(context.Context, string) (*models.TrendAdvice, error) {
		return &models.TrendAdvice{Symbol: "BTCUSDT", Trend: models.TrendDown, Confidence: 0.8}, nil
	})
	e.SetAdvisor(disagree)

	err := e.SubmitSignal(context.Background(), entrySignal())
	var rv *RiskViolation
	if !errors.As(err, &rv) || rv.Check != "advisor" {
		t.Errorf("expected advisor rejection, got %v", err)
	}

	broken := advisorFunc(func(context.Context, string) (*models.TrendAdvice, error) {
		return nil, errors.New("advisor down")
	})
	e.SetAdvisor(broken)

	if err := e.SubmitSignal(context.Background(), entrySignal()); err != nil {
		t.Errorf("advisor outage must not block entry: %v", err)
	}
	if len(fake.placedOrders()) != 1 {
		t.Error("entry order expected despite advisor outage")
	}
}

type advisorFunc func(ctx context.Context, symbol string) (*models.TrendAdvice, error)

func (f advisorFunc) Advise(ctx context.Context, symbol string) (*models.TrendAdvice, error) {
	return f(ctx, symbol)
}
