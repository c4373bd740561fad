package bot

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"tradebot/internal/exchange"
)

// Order - runtime-состояние одного биржевого ордера
//
// Жизненный цикл управляется ИСКЛЮЧИТЕЛЬНО отчётами биржи: ядро создаёт
// ордер в PENDING, дальше состояние двигают ExecutionReport'ы через
// ApplyFill. После терминального состояния ордер не мутирует.
//
// Количества кумулятивные: ExecutedQty пересчитывается из CumFilledQty
// отчёта и никогда не уменьшается, поэтому повторная доставка отчёта
// идемпотентна. Дубликаты трейдов отсеиваются по TradeID.
type Order struct {
	mu sync.Mutex

	ClientOrderID string
	ExchangeID    string // пустой до первого подтверждения
	Symbol        string
	Side          string // buy, sell
	Type          string // market, limit, stop
	PositionID    string // владеющая позиция (может быть пустым для входа)
	IsEntry       bool   // true = ордер увеличивает позицию

	OriginalQty  float64
	Price        float64 // лимитная цена (0 для market)
	StopPrice    float64 // стоп-триггер (0 если нет)
	ExecutedQty  float64
	AvgFillPrice float64
	RejectReason string

	State     OrderState
	Fills     []Fill
	CreatedAt time.Time
	UpdatedAt time.Time

	// Метаданные для позиции/сделки, заполняются движком при создании
	strategy   string
	confidence float64
	exitReason string

	seenTrades map[int64]struct{}
}

// Fill - один трейд исполнения
type Fill struct {
	TradeID         int64     `json:"trade_id"`
	Price           float64   `json:"price"`
	Quantity        float64   `json:"quantity"`
	Commission      float64   `json:"commission"`
	CommissionAsset string    `json:"commission_asset"`
	Time            time.Time `json:"time"`
}

// NewOrder создаёт ордер в состоянии PENDING. Без сетевых запросов.
func NewOrder(clientID, symbol, side, orderType string, qty, price, stopPrice float64, positionID string, isEntry bool) *Order {
	now := time.Now()
	return &Order{
		ClientOrderID: clientID,
		Symbol:        symbol,
		Side:          side,
		Type:          orderType,
		PositionID:    positionID,
		IsEntry:       isEntry,
		OriginalQty:   qty,
		Price:         price,
		StopPrice:     stopPrice,
		State:         OrderPending,
		CreatedAt:     now,
		UpdatedAt:     now,
		seenTrades:    make(map[int64]struct{}),
	}
}

// FillDelta - что изменилось после применения отчёта
type FillDelta struct {
	NewState    OrderState
	StateChange bool
	QtyDelta    float64 // приращение исполненного объёма
	NewFill     *Fill   // не nil если отчёт принёс новый трейд
}

// ApplyFill применяет отчёт биржи к ордеру
//
// Порядок:
// 1. Терминальный ордер не мутирует (поздние/дублирующие отчёты)
// 2. Статус биржи -> внутреннее состояние по фиксированной таблице
// 3. ExecutedQty только вперёд: отчёт с меньшим кумулятивом игнорируется
// 4. Средняя цена = cumQuote/cumQty при cumQty > 0
// 5. Трейд добавляется в Fills если TradeID ещё не видели
//
// Битое поле отчёта (0 там где ожидалось значение) не трогает
// соответствующее поле ордера - одно испорченное поле не должно
// блокировать валидное обновление остальных.
func (o *Order) ApplyFill(report *exchange.ExecutionReport) FillDelta {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.State.IsTerminal() {
		return FillDelta{NewState: o.State}
	}

	delta := FillDelta{}

	if o.ExchangeID == "" && report.ExchangeID != "" {
		o.ExchangeID = report.ExchangeID
	}

	// Кумулятивный объём: только вперёд
	if report.CumFilledQty > o.ExecutedQty {
		delta.QtyDelta = report.CumFilledQty - o.ExecutedQty
		o.ExecutedQty = report.CumFilledQty
	}

	// Средняя цена исполнения из кумулятивов
	if report.CumFilledQty > 0 && report.CumQuoteQty > 0 {
		o.AvgFillPrice = report.CumQuoteQty / report.CumFilledQty
	}

	// Новый трейд: dedup по trade id
	if report.TradeID != 0 && report.LastFillQty > 0 {
		if _, seen := o.seenTrades[report.TradeID]; !seen {
			o.seenTrades[report.TradeID] = struct{}{}
			fill := Fill{
				TradeID:         report.TradeID,
				Price:           report.LastFillPrice,
				Quantity:        report.LastFillQty,
				Commission:      report.Commission,
				CommissionAsset: report.CommissionAsset,
				Time:            report.Timestamp,
			}
			o.Fills = append(o.Fills, fill)
			delta.NewFill = &fill
		}
	}

	// Переход состояния по таблице статусов
	newState := MapExchangeStatus(report.Status)
	if newState != o.State && CanTransition(o.State, newState) {
		o.State = newState
		delta.StateChange = true
	}

	if o.State == OrderRejected && report.RejectReason != "" {
		o.RejectReason = report.RejectReason
	}

	o.UpdatedAt = time.Now()
	delta.NewState = o.State
	return delta
}

// MarkSubmitted фиксирует подтверждение приёма ордера биржей
func (o *Order) MarkSubmitted(ack *exchange.OrderAck) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ExchangeID == "" {
		o.ExchangeID = ack.ExchangeID
	}
	newState := MapExchangeStatus(ack.Status)
	if newState != o.State && CanTransition(o.State, newState) {
		o.State = newState
	}
	o.UpdatedAt = time.Now()
}

// ============================================================
// Производные запросы
// ============================================================

// IsActive возвращает true если ордер ещё может исполняться (NEW/PARTIALLY_FILLED)
func (o *Order) IsActive() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.State.IsActive()
}

// IsTerminal возвращает true для финальных состояний
func (o *Order) IsTerminal() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.State.IsTerminal()
}

// CurrentState возвращает текущее состояние
func (o *Order) CurrentState() OrderState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.State
}

// RemainingQty возвращает неисполненный остаток
func (o *Order) RemainingQty() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.OriginalQty - o.ExecutedQty
}

// FillPercentage возвращает процент исполнения (0 при нулевом объёме)
func (o *Order) FillPercentage() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.OriginalQty == 0 {
		return 0
	}
	return o.ExecutedQty / o.OriginalQty * 100
}

// TotalCommission возвращает суммарную комиссию по всем трейдам
func (o *Order) TotalCommission() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	var total float64
	for _, f := range o.Fills {
		total += f.Commission
	}
	return total
}

// OrderValue возвращает стоимость ордера: по исполнению если оно есть,
// иначе по лимитной цене
func (o *Order) OrderValue() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ExecutedQty > 0 {
		return o.ExecutedQty * o.AvgFillPrice
	}
	return o.OriginalQty * o.Price
}

// Age возвращает возраст ордера (для политики отмены зависших)
func (o *Order) Age() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return time.Since(o.CreatedAt)
}

// Snapshot возвращает копию без блокировки вызывающего
func (o *Order) Snapshot() OrderSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	fills := make([]Fill, len(o.Fills))
	copy(fills, o.Fills)

	return OrderSnapshot{
		ClientOrderID: o.ClientOrderID,
		ExchangeID:    o.ExchangeID,
		Symbol:        o.Symbol,
		Side:          o.Side,
		Type:          o.Type,
		PositionID:    o.PositionID,
		IsEntry:       o.IsEntry,
		OriginalQty:   o.OriginalQty,
		Price:         o.Price,
		StopPrice:     o.StopPrice,
		ExecutedQty:   o.ExecutedQty,
		AvgFillPrice:  o.AvgFillPrice,
		RejectReason:  o.RejectReason,
		State:         o.State,
		Fills:         fills,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

// OrderSnapshot - неизменяемая копия ордера для API/UI
type OrderSnapshot struct {
	ClientOrderID string     `json:"client_order_id"`
	ExchangeID    string     `json:"exchange_id,omitempty"`
	Symbol        string     `json:"symbol"`
	Side          string     `json:"side"`
	Type          string     `json:"type"`
	PositionID    string     `json:"position_id,omitempty"`
	IsEntry       bool       `json:"is_entry"`
	OriginalQty   float64    `json:"original_qty"`
	Price         float64    `json:"price,omitempty"`
	StopPrice     float64    `json:"stop_price,omitempty"`
	ExecutedQty   float64    `json:"executed_qty"`
	AvgFillPrice  float64    `json:"avg_fill_price"`
	RejectReason  string     `json:"reject_reason,omitempty"`
	State         OrderState `json:"state"`
	Fills         []Fill     `json:"fills,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ============================================================
// OrderTable - таблица активных ордеров
// ============================================================

// OrderTable - потокобезопасная таблица client-id -> *Order
//
// sync.Map: записи добавляет путь отправки, мутирует консьюмер
// отчётов (через собственный mutex ордера), читают проверки закрытия.
// Глобального лока нет - каждый ордер синхронизируется сам.
type OrderTable struct {
	orders sync.Map // map[string]*Order
	count  int64
}

// NewOrderTable создаёт пустую таблицу
func NewOrderTable() *OrderTable {
	return &OrderTable{}
}

// Add регистрирует ордер. Повторная регистрация того же client id - ошибка
// (клиентские ID генерируются локально и обязаны быть уникальными).
func (t *OrderTable) Add(o *Order) error {
	if _, loaded := t.orders.LoadOrStore(o.ClientOrderID, o); loaded {
		return fmt.Errorf("duplicate client order id %s", o.ClientOrderID)
	}
	atomic.AddInt64(&t.count, 1)
	return nil
}

// Get возвращает ордер по клиентскому ID
func (t *OrderTable) Get(clientID string) (*Order, bool) {
	v, ok := t.orders.Load(clientID)
	if !ok {
		return nil, false
	}
	return v.(*Order), true
}

// Remove удаляет ордер из таблицы (после архивации терминального)
func (t *OrderTable) Remove(clientID string) {
	if _, ok := t.orders.LoadAndDelete(clientID); ok {
		atomic.AddInt64(&t.count, -1)
	}
}

// Range обходит все ордера; fn возвращает false для остановки
func (t *OrderTable) Range(fn func(*Order) bool) {
	t.orders.Range(func(_, v interface{}) bool {
		return fn(v.(*Order))
	})
}

// Count возвращает число ордеров в таблице
func (t *OrderTable) Count() int64 {
	return atomic.LoadInt64(&t.count)
}

// HasActiveExit возвращает true если для позиции уже есть активный
// закрывающий ордер - защита от повторной отправки закрытия, пока
// предыдущее ещё в полёте.
func (t *OrderTable) HasActiveExit(positionID string) bool {
	found := false
	t.orders.Range(func(_, v interface{}) bool {
		o := v.(*Order)
		if o.PositionID == positionID && !o.IsEntry && !o.IsTerminal() {
			found = true
			return false
		}
		return true
	})
	return found
}
