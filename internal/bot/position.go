package bot

import (
	"fmt"
	"sync"
	"time"

	"tradebot/internal/exchange"
)

// Направление позиции - алиасы биржевых констант, чтобы ядро не
// тащило префикс пакета в каждую проверку стороны.
const (
	SideLong  = exchange.SideLong
	SideShort = exchange.SideShort
)

// ============================================================
// Position - чистое net-экспозиционное состояние по одному символу:
// усреднение входа, PnL и защитные уровни (SL/TP/trailing).
// Никакого I/O - все решения о закрытии принимает движок.
// ============================================================

// Position - открытая позиция
//
// Два неявных состояния: Open (Quantity > 0) и Closed (Quantity == 0).
// Закрытая позиция неизменяема - все мутаторы отказывают.
type Position struct {
	mu sync.RWMutex

	ID         string
	Symbol     string
	Side       string // long, short
	Quantity   float64
	TotalQty   float64 // суммарный объём всех входов (не уменьшается при закрытии)
	EntryPrice float64 // VWAP по всем входным исполнениям
	MarkPrice  float64

	StopLoss   float64 // статический SL (0 = не задан)
	TakeProfit float64 // 0 = не задан

	// Трейлинг: активируется при достижении ActivationPrice,
	// после чего стоп двигается только в выгодную сторону
	TrailingActivation float64
	TrailingPercent    float64
	TrailingPrice      float64 // 0 = ещё не взведён

	UnrealizedPnl float64
	RealizedPnl   float64
	Commission    float64

	Strategy   string
	Confidence float64

	EntryOrderIDs []string
	ExitOrderIDs  []string

	OpenedAt  time.Time
	UpdatedAt time.Time
	ClosedAt  time.Time

	closing bool // флаг "закрытие отправлено" - защита от двойного закрытия
}

// OpenPosition создаёт позицию из первого входного исполнения.
// Комиссия открывающего филла сразу входит в накопленную.
func OpenPosition(id, symbol, side string, qty, entryPrice, commission float64, entryOrderID, strategy string, confidence float64) *Position {
	now := time.Now()
	return &Position{
		ID:            id,
		Symbol:        symbol,
		Side:          side,
		Quantity:      qty,
		TotalQty:      qty,
		EntryPrice:    entryPrice,
		MarkPrice:     entryPrice,
		Commission:    commission,
		Strategy:      strategy,
		Confidence:    confidence,
		EntryOrderIDs: []string{entryOrderID},
		OpenedAt:      now,
		UpdatedAt:     now,
	}
}

// AddFill доусредняет позицию новым входным исполнением
//
// Новая средняя = (старая×старый_объём + цена×объём) / суммарный объём.
// Неположительный итоговый объём - нарушение инварианта, не клампим.
func (p *Position) AddFill(price, qty, commission float64, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Quantity == 0 {
		return fmt.Errorf("position %s is closed", p.ID)
	}
	newQty := p.Quantity + qty
	if newQty <= 0 {
		return fmt.Errorf("add_fill would make quantity non-positive: %.8f + %.8f", p.Quantity, qty)
	}

	p.EntryPrice = (p.EntryPrice*p.Quantity + price*qty) / newQty
	p.Quantity = newQty
	p.TotalQty += qty
	p.Commission += commission
	p.EntryOrderIDs = append(p.EntryOrderIDs, orderID)
	p.recomputeUnrealized()
	p.UpdatedAt = time.Now()
	return nil
}

// PartialClose реализует часть позиции по цене выхода
//
// Возвращает realized PnL закрытого куска (за вычетом комиссии выхода).
// Запрошенный объём больше остатка - закрываем остаток целиком.
func (p *Position) PartialClose(exitPrice, qty, commission float64, orderID string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Quantity == 0 {
		return 0, fmt.Errorf("position %s is closed", p.ID)
	}
	closeQty := qty
	if closeQty > p.Quantity {
		closeQty = p.Quantity
	}
	if closeQty <= 0 {
		return 0, fmt.Errorf("invalid close quantity %.8f", qty)
	}

	var pnl float64
	if p.Side == SideLong {
		pnl = (exitPrice - p.EntryPrice) * closeQty
	} else {
		pnl = (p.EntryPrice - exitPrice) * closeQty
	}
	pnl -= commission

	p.RealizedPnl += pnl
	p.Commission += commission
	p.Quantity -= closeQty
	p.ExitOrderIDs = append(p.ExitOrderIDs, orderID)

	if p.Quantity <= 1e-12 {
		p.Quantity = 0
		p.UnrealizedPnl = 0
		p.ClosedAt = time.Now()
	} else {
		p.recomputeUnrealized()
	}
	p.UpdatedAt = time.Now()
	return pnl, nil
}

// UpdatePrice обновляет mark price, PnL и трейлинг-стоп
func (p *Position) UpdatePrice(markPrice float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Quantity == 0 || markPrice <= 0 {
		return
	}
	p.MarkPrice = markPrice
	p.recomputeUnrealized()
	p.updateTrailing(markPrice)
	p.UpdatedAt = time.Now()
}

func (p *Position) recomputeUnrealized() {
	if p.Side == SideLong {
		p.UnrealizedPnl = (p.MarkPrice - p.EntryPrice) * p.Quantity
	} else {
		p.UnrealizedPnl = (p.EntryPrice - p.MarkPrice) * p.Quantity
	}
}

// updateTrailing двигает трейлинг-стоп. Вызывается под p.mu.
//
// Лонг: при mark >= activation кандидат = mark×(1-pct/100),
// принимается только если строго выше текущего стопа.
// Шорт симметрично вниз. Взведённый стоп никогда не откатывается.
func (p *Position) updateTrailing(mark float64) {
	if p.TrailingActivation == 0 || p.TrailingPercent == 0 {
		return
	}
	if p.Side == SideLong {
		if mark < p.TrailingActivation {
			return
		}
		candidate := mark * (1 - p.TrailingPercent/100)
		if p.TrailingPrice == 0 || candidate > p.TrailingPrice {
			p.TrailingPrice = candidate
		}
	} else {
		if mark > p.TrailingActivation {
			return
		}
		candidate := mark * (1 + p.TrailingPercent/100)
		if p.TrailingPrice == 0 || candidate < p.TrailingPrice {
			p.TrailingPrice = candidate
		}
	}
}

// effectiveStop возвращает действующий стоп: трейлинг в приоритете
func (p *Position) effectiveStop() float64 {
	if p.TrailingPrice != 0 {
		return p.TrailingPrice
	}
	return p.StopLoss
}

// ShouldTriggerStopLoss проверяет срабатывание стопа по текущему mark
func (p *Position) ShouldTriggerStopLoss() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stop := p.effectiveStop()
	if stop == 0 || p.Quantity == 0 {
		return false
	}
	if p.Side == SideLong {
		return p.MarkPrice <= stop
	}
	return p.MarkPrice >= stop
}

// ShouldTriggerTakeProfit проверяет срабатывание тейк-профита
func (p *Position) ShouldTriggerTakeProfit() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.TakeProfit == 0 || p.Quantity == 0 {
		return false
	}
	if p.Side == SideLong {
		return p.MarkPrice >= p.TakeProfit
	}
	return p.MarkPrice <= p.TakeProfit
}

// SetSLTP назначает статические уровни защиты. Нулевой аргумент
// оставляет уровень как есть. Уровни должны быть по правильную
// сторону от цены входа.
func (p *Position) SetSLTP(sl, tp float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Quantity == 0 {
		return fmt.Errorf("position %s is closed", p.ID)
	}
	if sl > 0 {
		if p.Side == SideLong && sl >= p.EntryPrice {
			return fmt.Errorf("long stop-loss %.4f must be below entry %.4f", sl, p.EntryPrice)
		}
		if p.Side == SideShort && sl <= p.EntryPrice {
			return fmt.Errorf("short stop-loss %.4f must be above entry %.4f", sl, p.EntryPrice)
		}
	}
	if tp > 0 {
		if p.Side == SideLong && tp <= p.EntryPrice {
			return fmt.Errorf("long take-profit %.4f must be above entry %.4f", tp, p.EntryPrice)
		}
		if p.Side == SideShort && tp >= p.EntryPrice {
			return fmt.Errorf("short take-profit %.4f must be below entry %.4f", tp, p.EntryPrice)
		}
	}
	if sl > 0 {
		p.StopLoss = sl
	}
	if tp > 0 {
		p.TakeProfit = tp
	}
	p.UpdatedAt = time.Now()
	return nil
}

// SetTrailing конфигурирует трейлинг-стоп
func (p *Position) SetTrailing(activation, percent float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Quantity == 0 {
		return fmt.Errorf("position %s is closed", p.ID)
	}
	if percent <= 0 || percent > 50 {
		return fmt.Errorf("trailing percent %.2f out of range (0, 50]", percent)
	}
	if p.Side == SideLong && activation <= p.EntryPrice {
		return fmt.Errorf("long trailing activation %.4f must be above entry %.4f", activation, p.EntryPrice)
	}
	if p.Side == SideShort && activation >= p.EntryPrice {
		return fmt.Errorf("short trailing activation %.4f must be below entry %.4f", activation, p.EntryPrice)
	}
	p.TrailingActivation = activation
	p.TrailingPercent = percent
	return nil
}

// IsClosed возвращает true если позиция полностью реализована
func (p *Position) IsClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Quantity == 0
}

// TotalPnl возвращает realized + unrealized
func (p *Position) TotalPnl() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.RealizedPnl + p.UnrealizedPnl
}

// PnlPercentage возвращает PnL в процентах от стоимости входа
func (p *Position) PnlPercentage() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	cost := p.EntryPrice * p.Quantity
	if cost == 0 {
		return 0
	}
	return (p.RealizedPnl + p.UnrealizedPnl) / cost * 100
}

// Notional возвращает текущую номинальную стоимость позиции
func (p *Position) Notional() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.MarkPrice * p.Quantity
}

// TrailingStopPrice возвращает текущий трейлинг-стоп (0 = не взведён)
func (p *Position) TrailingStopPrice() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.TrailingPrice
}

// MarkClosing атомарно помечает позицию как "закрытие в полёте".
// Возвращает false если закрытие уже отправлено - второй вызов
// не должен дублировать ордер.
func (p *Position) MarkClosing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closing || p.Quantity == 0 {
		return false
	}
	p.closing = true
	return true
}

// ClearClosing сбрасывает флаг закрытия (ордер отклонён/отменён)
func (p *Position) ClearClosing() {
	p.mu.Lock()
	p.closing = false
	p.mu.Unlock()
}

// Snapshot возвращает копию позиции для API/уведомлений
func (p *Position) Snapshot() PositionSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries := make([]string, len(p.EntryOrderIDs))
	copy(entries, p.EntryOrderIDs)
	exits := make([]string, len(p.ExitOrderIDs))
	copy(exits, p.ExitOrderIDs)

	pct := 0.0
	if cost := p.EntryPrice * p.Quantity; cost != 0 {
		pct = (p.RealizedPnl + p.UnrealizedPnl) / cost * 100
	}

	return PositionSnapshot{
		ID:                 p.ID,
		Symbol:             p.Symbol,
		Side:               p.Side,
		Quantity:           p.Quantity,
		TotalQty:           p.TotalQty,
		EntryPrice:         p.EntryPrice,
		MarkPrice:          p.MarkPrice,
		StopLoss:           p.StopLoss,
		TakeProfit:         p.TakeProfit,
		TrailingActivation: p.TrailingActivation,
		TrailingPercent:    p.TrailingPercent,
		TrailingPrice:      p.TrailingPrice,
		UnrealizedPnl:      p.UnrealizedPnl,
		RealizedPnl:        p.RealizedPnl,
		PnlPercent:         pct,
		Commission:         p.Commission,
		Strategy:           p.Strategy,
		Confidence:         p.Confidence,
		EntryOrderIDs:      entries,
		ExitOrderIDs:       exits,
		OpenedAt:           p.OpenedAt,
		UpdatedAt:          p.UpdatedAt,
		ClosedAt:           p.ClosedAt,
	}
}

// PositionSnapshot - неизменяемая копия для API/UI
type PositionSnapshot struct {
	ID                 string    `json:"id"`
	Symbol             string    `json:"symbol"`
	Side               string    `json:"side"`
	Quantity           float64   `json:"quantity"`
	TotalQty           float64   `json:"total_qty"`
	EntryPrice         float64   `json:"entry_price"`
	MarkPrice          float64   `json:"mark_price"`
	StopLoss           float64   `json:"stop_loss,omitempty"`
	TakeProfit         float64   `json:"take_profit,omitempty"`
	TrailingActivation float64   `json:"trailing_activation,omitempty"`
	TrailingPercent    float64   `json:"trailing_percent,omitempty"`
	TrailingPrice      float64   `json:"trailing_price,omitempty"`
	UnrealizedPnl      float64   `json:"unrealized_pnl"`
	RealizedPnl        float64   `json:"realized_pnl"`
	PnlPercent         float64   `json:"pnl_percent"`
	Commission         float64   `json:"commission"`
	Strategy           string    `json:"strategy,omitempty"`
	Confidence         float64   `json:"confidence,omitempty"`
	EntryOrderIDs      []string  `json:"entry_order_ids,omitempty"`
	ExitOrderIDs       []string  `json:"exit_order_ids,omitempty"`
	OpenedAt           time.Time `json:"opened_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	ClosedAt           time.Time `json:"closed_at,omitempty"`
}

// ============================================================
// PositionRegistry - набор активных позиций
// ============================================================

// PositionRegistry хранит открытые позиции с индексом по символу.
// Каждая позиция синхронизируется собственным мьютексом, поэтому
// тики по разным символам обрабатываются независимо.
type PositionRegistry struct {
	mu        sync.RWMutex
	positions map[string]*Position // id -> position
	bySymbol  sync.Map             // symbol -> *Position (одна позиция на символ)
}

// NewPositionRegistry создаёт пустой реестр
func NewPositionRegistry() *PositionRegistry {
	return &PositionRegistry{
		positions: make(map[string]*Position),
	}
}

// Add регистрирует новую позицию. Вторая позиция по тому же символу - ошибка.
func (r *PositionRegistry) Add(p *Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.positions[p.ID]; exists {
		return fmt.Errorf("duplicate position id %s", p.ID)
	}
	if _, loaded := r.bySymbol.LoadOrStore(p.Symbol, p); loaded {
		return fmt.Errorf("position for %s already open", p.Symbol)
	}
	r.positions[p.ID] = p
	return nil
}

// Get возвращает позицию по ID
func (r *PositionRegistry) Get(id string) (*Position, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.positions[id]
	return p, ok
}

// GetBySymbol возвращает активную позицию по символу
func (r *PositionRegistry) GetBySymbol(symbol string) (*Position, bool) {
	v, ok := r.bySymbol.Load(symbol)
	if !ok {
		return nil, false
	}
	return v.(*Position), true
}

// Remove убирает позицию из реестра (после полного закрытия)
func (r *PositionRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.positions[id]
	if !ok {
		return
	}
	delete(r.positions, id)
	r.bySymbol.Delete(p.Symbol)
}

// All возвращает срез текущих позиций
func (r *PositionRegistry) All() []*Position {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Position, 0, len(r.positions))
	for _, p := range r.positions {
		out = append(out, p)
	}
	return out
}

// Count возвращает число открытых позиций
func (r *PositionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.positions)
}

// TotalExposure возвращает суммарный номинал всех позиций
func (r *PositionRegistry) TotalExposure() float64 {
	var total float64
	for _, p := range r.All() {
		total += p.Notional()
	}
	return total
}

// TotalUnrealized возвращает суммарный нереализованный PnL
func (r *PositionRegistry) TotalUnrealized() float64 {
	var total float64
	for _, p := range r.All() {
		p.mu.RLock()
		total += p.UnrealizedPnl
		p.mu.RUnlock()
	}
	return total
}
