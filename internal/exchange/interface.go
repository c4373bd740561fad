package exchange

import (
	"context"
	"time"
)

// Exchange определяет узкий контракт, который торговое ядро требует
// от клиента биржи. Детали протокола (подписи, rate limits, переподключение
// WebSocket) - ответственность реализации, ядро их не видит.
type Exchange interface {
	// GetName возвращает имя биржи
	GetName() string

	// PlaceOrder размещает ордер. Возвращает подтверждение приёма,
	// НЕ результат исполнения - fills приходят через SubscribeExecutions.
	PlaceOrder(ctx context.Context, req *OrderRequest) (*OrderAck, error)

	// CancelOrder отменяет ордер по клиентскому ID
	CancelOrder(ctx context.Context, symbol, clientOrderID string) error

	// GetOpenOrders возвращает открытые ордера (для сверки)
	GetOpenOrders(ctx context.Context, symbol string) ([]*OrderStatus, error)

	// GetOrder возвращает ордер по клиентскому ID (для сверки)
	GetOrder(ctx context.Context, symbol, clientOrderID string) (*OrderStatus, error)

	// GetAccount возвращает состояние фьючерсного счёта
	GetAccount(ctx context.Context) (*AccountState, error)

	// SubscribeTicker подписывается на обновления цены символа
	SubscribeTicker(symbol string, callback func(*PriceTick)) error

	// SubscribeExecutions подписывается на отчёты об исполнении ордеров
	SubscribeExecutions(callback func(*ExecutionReport)) error

	// Close закрывает соединения с биржей
	Close() error
}

// PriceTick - обновление цены символа
type PriceTick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderRequest - исходящий запрос на размещение ордера
type OrderRequest struct {
	ClientOrderID string  `json:"client_order_id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"` // buy, sell
	Type          string  `json:"type"` // market, limit, stop
	Quantity      float64 `json:"quantity"`
	Price         float64 `json:"price,omitempty"`      // для limit
	StopPrice     float64 `json:"stop_price,omitempty"` // для stop
	ReduceOnly    bool    `json:"reduce_only"`          // ордер только уменьшает позицию
}

// OrderAck - подтверждение приёма ордера биржей
type OrderAck struct {
	ExchangeID    string    `json:"exchange_id"`
	ClientOrderID string    `json:"client_order_id"`
	Symbol        string    `json:"symbol"`
	Status        string    `json:"status"` // сырой статус биржи (NEW и т.д.)
	Timestamp     time.Time `json:"timestamp"`
}

// ExecutionReport - отчёт биржи об изменении состояния ордера
//
// Количества кумулятивные (не дельты): повторная доставка отчёта
// безопасна, дубликаты трейдов отсеиваются по TradeID.
// Числовые поля уже распарсены на границе - сырые строки биржи
// не проникают в ядро.
type ExecutionReport struct {
	ExchangeID      string    `json:"exchange_id"`
	ClientOrderID   string    `json:"client_order_id"`
	Symbol          string    `json:"symbol"`
	Side            string    `json:"side"`
	Status          string    `json:"status"`            // сырой статус: NEW, PARTIALLY_FILLED, FILLED, ...
	CumFilledQty    float64   `json:"cum_filled_qty"`    // кумулятивно исполнено
	CumQuoteQty     float64   `json:"cum_quote_qty"`     // кумулятивная сумма в quote
	LastFillPrice   float64   `json:"last_fill_price"`   // цена последнего трейда (0 если нет)
	LastFillQty     float64   `json:"last_fill_qty"`     // объём последнего трейда (0 если нет)
	TradeID         int64     `json:"trade_id"`          // 0 = статусное эхо без трейда
	Commission      float64   `json:"commission"`
	CommissionAsset string    `json:"commission_asset"`
	RejectReason    string    `json:"reject_reason,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// OrderStatus - состояние ордера по данным REST (для сверки)
type OrderStatus struct {
	ExchangeID    string    `json:"exchange_id"`
	ClientOrderID string    `json:"client_order_id"`
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	Status        string    `json:"status"`
	Quantity      float64   `json:"quantity"`
	ExecutedQty   float64   `json:"executed_qty"`
	CumQuoteQty   float64   `json:"cum_quote_qty"`
	AvgFillPrice  float64   `json:"avg_fill_price"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AccountState - состояние фьючерсного счёта
type AccountState struct {
	Balance          float64   `json:"balance"`           // баланс кошелька USDT
	AvailableBalance float64   `json:"available_balance"` // свободная маржа
	MarginUsed       float64   `json:"margin_used"`
	UnrealizedPnl    float64   `json:"unrealized_pnl"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ExchangeError представляет ошибку от биржи
type ExchangeError struct {
	Exchange string
	Code     string
	Message  string
	Original error
}

func (e *ExchangeError) Error() string {
	return e.Exchange + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *ExchangeError) Unwrap() error {
	return e.Original
}

// Side constants for orders (используются при размещении ордеров)
const (
	SideBuy  = "buy"  // покупка (открытие long или закрытие short)
	SideSell = "sell" // продажа (открытие short или закрытие long)
)

// Side constants for positions
const (
	SideLong  = "long"  // длинная позиция (ставка на рост)
	SideShort = "short" // короткая позиция (ставка на падение)
)

// Order type constants
const (
	OrderTypeMarket = "market"
	OrderTypeLimit  = "limit"
	OrderTypeStop   = "stop"
)
