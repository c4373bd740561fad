package exchange

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// PaperExchange - симулятор биржи для бумажной торговли
//
// Поведение:
// - Рыночные ордера исполняются мгновенно по последнему тику ± slippage
// - Лимитные ордера исполняются когда цена пересекает лимит
// - Отчёты об исполнении идут через тот же канал SubscribeExecutions,
//   что и у реальной биржи - ядро не отличает paper от live
// - Баланс и маржа ведутся локально
//
// Источник цен: либо реальный фид (feed != nil, обычно публичные стримы
// Binance без ключей), либо внешние вызовы PushTick (тесты).
type PaperExchange struct {
	log  *zap.Logger
	feed Exchange // источник рыночных данных, может быть nil

	mu           sync.Mutex
	balance      float64
	marginUsed   float64
	lastPrice    map[string]float64
	openOrders   map[string]*paperOrder // clientOrderID -> ордер
	execCallback func(*ExecutionReport)
	tickCallbacks map[string][]func(*PriceTick)

	slippagePct float64 // проскальзывание для market-ордеров, %
	feeRate     float64 // комиссия тейкера, доля (0.0005 = 0.05%)

	tradeSeq int64
	orderSeq int64
}

type paperOrder struct {
	req       *OrderRequest
	createdAt time.Time
}

var _ Exchange = (*PaperExchange)(nil)

// NewPaperExchange создаёт симулятор со стартовым балансом.
// feed - реальная биржа для рыночных данных (nil = только PushTick).
func NewPaperExchange(startBalance, slippagePct float64, feed Exchange, log *zap.Logger) *PaperExchange {
	return &PaperExchange{
		log:           log,
		feed:          feed,
		balance:       startBalance,
		lastPrice:     make(map[string]float64),
		openOrders:    make(map[string]*paperOrder),
		tickCallbacks: make(map[string][]func(*PriceTick)),
		slippagePct:   slippagePct,
		feeRate:       0.0005,
	}
}

// GetName возвращает имя биржи
func (p *PaperExchange) GetName() string {
	return "paper"
}

// PlaceOrder принимает ордер. Market исполняется сразу, limit ждёт цену.
func (p *PaperExchange) PlaceOrder(ctx context.Context, req *OrderRequest) (*OrderAck, error) {
	p.mu.Lock()
	last, haveTick := p.lastPrice[req.Symbol]
	p.mu.Unlock()

	exchID := fmt.Sprintf("paper-%d", atomic.AddInt64(&p.orderSeq, 1))
	ack := &OrderAck{
		ExchangeID:    exchID,
		ClientOrderID: req.ClientOrderID,
		Symbol:        req.Symbol,
		Status:        "NEW",
		Timestamp:     time.Now(),
	}

	switch req.Type {
	case OrderTypeMarket:
		if !haveTick {
			return nil, &ExchangeError{
				Exchange: "paper",
				Message:  fmt.Sprintf("no market data for %s yet", req.Symbol),
			}
		}
		// Исполняем асинхронно: ядро не должно получить fill до ack
		go p.fillMarket(exchID, req, last)
	default:
		p.mu.Lock()
		p.openOrders[req.ClientOrderID] = &paperOrder{req: req, createdAt: time.Now()}
		p.mu.Unlock()
	}

	return ack, nil
}

// fillMarket эмулирует исполнение market-ордера одним трейдом
func (p *PaperExchange) fillMarket(exchID string, req *OrderRequest, refPrice float64) {
	// Проскальзывание против тейкера: покупка дороже, продажа дешевле
	slip := refPrice * p.slippagePct / 100 * rand.Float64()
	fillPrice := refPrice + slip
	if req.Side == SideSell {
		fillPrice = refPrice - slip
	}

	commission := fillPrice * req.Quantity * p.feeRate

	p.mu.Lock()
	p.balance -= commission
	cb := p.execCallback
	p.mu.Unlock()

	if cb == nil {
		return
	}

	cb(&ExecutionReport{
		ExchangeID:      exchID,
		ClientOrderID:   req.ClientOrderID,
		Symbol:          req.Symbol,
		Side:            req.Side,
		Status:          "FILLED",
		CumFilledQty:    req.Quantity,
		CumQuoteQty:     fillPrice * req.Quantity,
		LastFillPrice:   fillPrice,
		LastFillQty:     req.Quantity,
		TradeID:         atomic.AddInt64(&p.tradeSeq, 1),
		Commission:      commission,
		CommissionAsset: "USDT",
		Timestamp:       time.Now(),
	})
}

// CancelOrder отменяет лимитный ордер
func (p *PaperExchange) CancelOrder(ctx context.Context, symbol, clientOrderID string) error {
	p.mu.Lock()
	po, ok := p.openOrders[clientOrderID]
	if ok {
		delete(p.openOrders, clientOrderID)
	}
	cb := p.execCallback
	p.mu.Unlock()

	if !ok {
		return nil // уже исполнен или не существует - не ошибка, как у реальной биржи
	}

	if cb != nil {
		cb(&ExecutionReport{
			ClientOrderID: clientOrderID,
			Symbol:        po.req.Symbol,
			Side:          po.req.Side,
			Status:        "CANCELED",
			Timestamp:     time.Now(),
		})
	}
	return nil
}

// GetOpenOrders возвращает неисполненные лимитные ордера
func (p *PaperExchange) GetOpenOrders(ctx context.Context, symbol string) ([]*OrderStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result []*OrderStatus
	for id, po := range p.openOrders {
		if symbol != "" && po.req.Symbol != symbol {
			continue
		}
		result = append(result, &OrderStatus{
			ClientOrderID: id,
			Symbol:        po.req.Symbol,
			Side:          po.req.Side,
			Status:        "NEW",
			Quantity:      po.req.Quantity,
			UpdatedAt:     po.createdAt,
		})
	}
	return result, nil
}

// GetOrder возвращает ордер по клиентскому ID
func (p *PaperExchange) GetOrder(ctx context.Context, symbol, clientOrderID string) (*OrderStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	po, ok := p.openOrders[clientOrderID]
	if !ok {
		return nil, &ExchangeError{Exchange: "paper", Message: "order not found: " + clientOrderID}
	}
	return &OrderStatus{
		ClientOrderID: clientOrderID,
		Symbol:        po.req.Symbol,
		Side:          po.req.Side,
		Status:        "NEW",
		Quantity:      po.req.Quantity,
		UpdatedAt:     po.createdAt,
	}, nil
}

// GetAccount возвращает симулированное состояние счёта
func (p *PaperExchange) GetAccount(ctx context.Context) (*AccountState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return &AccountState{
		Balance:          p.balance,
		AvailableBalance: p.balance - p.marginUsed,
		MarginUsed:       p.marginUsed,
		UpdatedAt:        time.Now(),
	}, nil
}

// SubscribeTicker подписывается на тики. При наличии реального фида
// проксирует его поток, попутно запоминая последнюю цену для исполнения.
func (p *PaperExchange) SubscribeTicker(symbol string, callback func(*PriceTick)) error {
	p.mu.Lock()
	p.tickCallbacks[symbol] = append(p.tickCallbacks[symbol], callback)
	first := len(p.tickCallbacks[symbol]) == 1
	p.mu.Unlock()

	if p.feed != nil && first {
		return p.feed.SubscribeTicker(symbol, p.PushTick)
	}
	return nil
}

// PushTick подаёт тик в симулятор (из фида или из теста)
func (p *PaperExchange) PushTick(tick *PriceTick) {
	p.mu.Lock()
	p.lastPrice[tick.Symbol] = tick.Price
	callbacks := p.tickCallbacks[tick.Symbol]
	fills := p.crossedLimits(tick)
	p.mu.Unlock()

	for _, f := range fills {
		p.fillMarket(f.exchID, f.req, f.price)
	}
	for _, cb := range callbacks {
		cb(tick)
	}
}

type pendingFill struct {
	exchID string
	req    *OrderRequest
	price  float64
}

// crossedLimits находит лимитные ордера, пересечённые ценой (под mu)
func (p *PaperExchange) crossedLimits(tick *PriceTick) []pendingFill {
	var fills []pendingFill
	for id, po := range p.openOrders {
		if po.req.Symbol != tick.Symbol || po.req.Type != OrderTypeLimit {
			continue
		}
		crossed := (po.req.Side == SideBuy && tick.Price <= po.req.Price) ||
			(po.req.Side == SideSell && tick.Price >= po.req.Price)
		if crossed {
			fills = append(fills, pendingFill{
				exchID: fmt.Sprintf("paper-%d", atomic.AddInt64(&p.orderSeq, 1)),
				req:    po.req,
				price:  po.req.Price, // лимит исполняется по своей цене
			})
			delete(p.openOrders, id)
		}
	}
	return fills
}

// SubscribeExecutions регистрирует получателя отчётов об исполнении
func (p *PaperExchange) SubscribeExecutions(callback func(*ExecutionReport)) error {
	p.mu.Lock()
	p.execCallback = callback
	p.mu.Unlock()
	return nil
}

// Close закрывает фид, если он был
func (p *PaperExchange) Close() error {
	if p.feed != nil {
		return p.feed.Close()
	}
	return nil
}
