package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// BinanceFutures - адаптер Binance USD-M futures поверх go-binance/v2
//
// Ответственность границы:
// - Все числовые строки биржи парсятся ЗДЕСЬ, ядро получает float64
// - Rate limiting REST-запросов (x/time/rate)
// - Поддержание user-data stream (listen key + keepalive каждые 30 мин)
// - Переподключение стримов при обрыве
type BinanceFutures struct {
	client *futures.Client
	log    *zap.Logger

	// REST rate limiter: Binance futures допускает 2400 weight/min,
	// держим заведомо консервативный лимит
	limiter *rate.Limiter

	// Управление стримами
	mu         sync.Mutex
	tickerStop map[string]chan struct{}        // symbol -> stopC
	tickerSubs map[string][]func(*PriceTick)   // symbol -> подписчики
	userStop   chan struct{}
	listenKey  string

	execCallback func(*ExecutionReport)

	closed chan struct{}
}

var _ Exchange = (*BinanceFutures)(nil)

// NewBinanceFutures создаёт адаптер. testnet=true переключает на тестовую сеть.
func NewBinanceFutures(apiKey, secretKey string, testnet bool, log *zap.Logger) (*BinanceFutures, error) {
	if apiKey == "" || secretKey == "" {
		return nil, fmt.Errorf("binance: api key and secret are required")
	}

	// Должно быть установлено ДО создания клиента
	futures.UseTestnet = testnet

	client := futures.NewClient(apiKey, secretKey)

	// Синхронизация времени с сервером (иначе подписи отклоняются)
	if _, err := client.NewSetServerTimeService().Do(context.Background()); err != nil {
		return nil, fmt.Errorf("binance: server time sync failed: %w", err)
	}

	return &BinanceFutures{
		client:     client,
		log:        log,
		limiter:    rate.NewLimiter(rate.Limit(10), 20), // 10 rps, burst 20
		tickerStop: make(map[string]chan struct{}),
		tickerSubs: make(map[string][]func(*PriceTick)),
		closed:     make(chan struct{}),
	}, nil
}

// GetName возвращает имя биржи
func (b *BinanceFutures) GetName() string {
	return "binance"
}

// PlaceOrder размещает ордер
func (b *BinanceFutures) PlaceOrder(ctx context.Context, req *OrderRequest) (*OrderAck, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	svc := b.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(toBinanceSide(req.Side)).
		Quantity(formatQty(req.Quantity)).
		NewClientOrderID(req.ClientOrderID)

	switch req.Type {
	case OrderTypeLimit:
		svc = svc.Type(futures.OrderTypeLimit).
			TimeInForce(futures.TimeInForceTypeGTC).
			Price(formatPrice(req.Price))
	case OrderTypeStop:
		svc = svc.Type(futures.OrderTypeStopMarket).
			StopPrice(formatPrice(req.StopPrice))
	default:
		svc = svc.Type(futures.OrderTypeMarket)
	}

	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return nil, &ExchangeError{Exchange: "binance", Message: "place order failed", Original: err}
	}

	return &OrderAck{
		ExchangeID:    strconv.FormatInt(resp.OrderID, 10),
		ClientOrderID: resp.ClientOrderID,
		Symbol:        resp.Symbol,
		Status:        string(resp.Status),
		Timestamp:     time.Now(),
	}, nil
}

// CancelOrder отменяет ордер по клиентскому ID.
// Ошибка "Unknown order" не считается ошибкой: ордер уже в терминальном
// состоянии, его истинный статус доставит сверка.
func (b *BinanceFutures) CancelOrder(ctx context.Context, symbol, clientOrderID string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := b.client.NewCancelOrderService().
		Symbol(symbol).
		OrigClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		if isUnknownOrder(err) {
			b.log.Debug("cancel: order already gone", zap.String("client_order_id", clientOrderID))
			return nil
		}
		return &ExchangeError{Exchange: "binance", Message: "cancel failed", Original: err}
	}
	return nil
}

// GetOpenOrders возвращает открытые ордера символа
func (b *BinanceFutures) GetOpenOrders(ctx context.Context, symbol string) ([]*OrderStatus, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	orders, err := b.client.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return nil, &ExchangeError{Exchange: "binance", Message: "list open orders failed", Original: err}
	}

	result := make([]*OrderStatus, 0, len(orders))
	for _, o := range orders {
		result = append(result, convertOrder(o))
	}
	return result, nil
}

// GetOrder возвращает ордер по клиентскому ID
func (b *BinanceFutures) GetOrder(ctx context.Context, symbol, clientOrderID string) (*OrderStatus, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	o, err := b.client.NewGetOrderService().
		Symbol(symbol).
		OrigClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		return nil, &ExchangeError{Exchange: "binance", Message: "get order failed", Original: err}
	}
	return convertOrder(o), nil
}

// GetAccount возвращает состояние фьючерсного счёта
func (b *BinanceFutures) GetAccount(ctx context.Context) (*AccountState, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	acc, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, &ExchangeError{Exchange: "binance", Message: "get account failed", Original: err}
	}

	balance, _ := strconv.ParseFloat(acc.TotalWalletBalance, 64)
	available, _ := strconv.ParseFloat(acc.AvailableBalance, 64)
	marginUsed, _ := strconv.ParseFloat(acc.TotalInitialMargin, 64)
	upnl, _ := strconv.ParseFloat(acc.TotalUnrealizedProfit, 64)

	return &AccountState{
		Balance:          balance,
		AvailableBalance: available,
		MarginUsed:       marginUsed,
		UnrealizedPnl:    upnl,
		UpdatedAt:        time.Now(),
	}, nil
}

// SubscribeTicker подписывается на bookTicker стрим символа.
// Цена тика = mid price между лучшим bid и ask.
// Стрим на символ один, тики раздаются всем подписчикам.
func (b *BinanceFutures) SubscribeTicker(symbol string, callback func(*PriceTick)) error {
	b.mu.Lock()
	b.tickerSubs[symbol] = append(b.tickerSubs[symbol], callback)
	if _, running := b.tickerStop[symbol]; running {
		b.mu.Unlock()
		return nil
	}
	stopC := make(chan struct{})
	b.tickerStop[symbol] = stopC
	b.mu.Unlock()

	go b.runTickerStream(symbol, stopC)
	return nil
}

// fanOutTick раздаёт тик подписчикам символа
func (b *BinanceFutures) fanOutTick(tick *PriceTick) {
	b.mu.Lock()
	subs := b.tickerSubs[tick.Symbol]
	b.mu.Unlock()

	for _, cb := range subs {
		cb(tick)
	}
}

// runTickerStream держит стрим живым, переподключаясь при обрыве
func (b *BinanceFutures) runTickerStream(symbol string, stopC chan struct{}) {
	for {
		select {
		case <-stopC:
			return
		case <-b.closed:
			return
		default:
		}

		doneC, wsStopC, err := futures.WsBookTickerServe(symbol, func(ev *futures.WsBookTickerEvent) {
			bid, errB := strconv.ParseFloat(ev.BestBidPrice, 64)
			ask, errA := strconv.ParseFloat(ev.BestAskPrice, 64)
			if errB != nil || errA != nil || bid <= 0 || ask <= 0 {
				return
			}
			b.fanOutTick(&PriceTick{
				Symbol:    ev.Symbol,
				Price:     (bid + ask) / 2,
				Timestamp: time.Now(),
			})
		}, func(err error) {
			b.log.Warn("ticker stream error", zap.String("symbol", symbol), zap.Error(err))
		})
		if err != nil {
			b.log.Error("ticker stream connect failed", zap.String("symbol", symbol), zap.Error(err))
			select {
			case <-stopC:
				return
			case <-time.After(time.Second):
			}
			continue
		}

		select {
		case <-stopC:
			close(wsStopC)
			return
		case <-b.closed:
			close(wsStopC)
			return
		case <-doneC:
			// Обрыв - переподключаемся
			b.log.Warn("ticker stream disconnected, reconnecting", zap.String("symbol", symbol))
		}
	}
}

// SubscribeExecutions подписывается на user-data stream (отчёты об ордерах)
func (b *BinanceFutures) SubscribeExecutions(callback func(*ExecutionReport)) error {
	listenKey, err := b.client.NewStartUserStreamService().Do(context.Background())
	if err != nil {
		return &ExchangeError{Exchange: "binance", Message: "start user stream failed", Original: err}
	}

	b.mu.Lock()
	b.listenKey = listenKey
	b.execCallback = callback
	b.userStop = make(chan struct{})
	stopC := b.userStop
	b.mu.Unlock()

	go b.runUserStream(listenKey, stopC)
	go b.keepAliveLoop(listenKey, stopC)
	return nil
}

// runUserStream обрабатывает события user-data stream с переподключением
func (b *BinanceFutures) runUserStream(listenKey string, stopC chan struct{}) {
	for {
		select {
		case <-stopC:
			return
		case <-b.closed:
			return
		default:
		}

		doneC, wsStopC, err := futures.WsUserDataServe(listenKey, func(ev *futures.WsUserDataEvent) {
			if ev.Event != futures.UserDataEventTypeOrderTradeUpdate {
				return
			}
			b.handleOrderUpdate(&ev.OrderTradeUpdate)
		}, func(err error) {
			b.log.Warn("user stream error", zap.Error(err))
		})
		if err != nil {
			b.log.Error("user stream connect failed", zap.Error(err))
			select {
			case <-stopC:
				return
			case <-time.After(time.Second):
			}
			continue
		}

		select {
		case <-stopC:
			close(wsStopC)
			return
		case <-b.closed:
			close(wsStopC)
			return
		case <-doneC:
			b.log.Warn("user stream disconnected, reconnecting")
		}
	}
}

// handleOrderUpdate конвертирует ORDER_TRADE_UPDATE в ExecutionReport
//
// Битые числовые поля дают 0 в соответствующем поле отчёта - ядро
// трактует 0 как "нет обновления" (счётчики кумулятивные, назад не идут).
func (b *BinanceFutures) handleOrderUpdate(u *futures.WsOrderTradeUpdate) {
	b.mu.Lock()
	cb := b.execCallback
	b.mu.Unlock()
	if cb == nil {
		return
	}

	cumQty, _ := strconv.ParseFloat(u.AccumulatedFilledQty, 64)
	avgPrice, _ := strconv.ParseFloat(u.AveragePrice, 64)
	lastPrice, _ := strconv.ParseFloat(u.LastFilledPrice, 64)
	lastQty, _ := strconv.ParseFloat(u.LastFilledQty, 64)
	commission, _ := strconv.ParseFloat(u.Commission, 64)

	cb(&ExecutionReport{
		ExchangeID:      strconv.FormatInt(u.ID, 10),
		ClientOrderID:   u.ClientOrderID,
		Symbol:          u.Symbol,
		Side:            fromBinanceSide(u.Side),
		Status:          string(u.Status),
		CumFilledQty:    cumQty,
		CumQuoteQty:     avgPrice * cumQty,
		LastFillPrice:   lastPrice,
		LastFillQty:     lastQty,
		TradeID:         u.TradeID,
		Commission:      commission,
		CommissionAsset: u.CommissionAsset,
		Timestamp:       time.UnixMilli(u.TradeTime),
	})
}

// keepAliveLoop продлевает listen key каждые 30 минут (Binance требует < 60)
func (b *BinanceFutures) keepAliveLoop(listenKey string, stopC chan struct{}) {
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stopC:
			return
		case <-b.closed:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := b.client.NewKeepaliveUserStreamService().ListenKey(listenKey).Do(ctx)
			cancel()
			if err != nil {
				b.log.Warn("listen key keepalive failed", zap.Error(err))
			}
		}
	}
}

// Close закрывает все стримы
func (b *BinanceFutures) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.closed:
		return nil // уже закрыт
	default:
		close(b.closed)
	}

	for _, stopC := range b.tickerStop {
		close(stopC)
	}
	b.tickerStop = make(map[string]chan struct{})
	b.tickerSubs = make(map[string][]func(*PriceTick))

	if b.userStop != nil {
		close(b.userStop)
		b.userStop = nil
	}
	return nil
}

// ============================================================
// Конвертация типов биржи
// ============================================================

func convertOrder(o *futures.Order) *OrderStatus {
	qty, _ := strconv.ParseFloat(o.OrigQuantity, 64)
	executed, _ := strconv.ParseFloat(o.ExecutedQuantity, 64)
	cumQuote, _ := strconv.ParseFloat(o.CumQuote, 64)
	avgPrice, _ := strconv.ParseFloat(o.AvgPrice, 64)

	return &OrderStatus{
		ExchangeID:    strconv.FormatInt(o.OrderID, 10),
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          fromBinanceSide(o.Side),
		Status:        string(o.Status),
		Quantity:      qty,
		ExecutedQty:   executed,
		CumQuoteQty:   cumQuote,
		AvgFillPrice:  avgPrice,
		UpdatedAt:     time.UnixMilli(o.UpdateTime),
	}
}

func toBinanceSide(side string) futures.SideType {
	if side == SideSell {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

func fromBinanceSide(side futures.SideType) string {
	if side == futures.SideTypeSell {
		return SideSell
	}
	return SideBuy
}

// formatQty форматирует количество для API (8 знаков, Binance обрежет сам)
func formatQty(qty float64) string {
	return strconv.FormatFloat(qty, 'f', 8, 64)
}

func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', 8, 64)
}

// isUnknownOrder распознаёт код -2011 (ордер не найден при отмене)
func isUnknownOrder(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "-2011") || strings.Contains(msg, "Unknown order")
}
