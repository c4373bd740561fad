package models

import "time"

// OrderRecord представляет запись об отправленном ордере (аудит в БД)
//
// Runtime-состояние ордера живёт в bot.Order; сюда попадает снимок
// при отправке и после достижения терминального статуса.
type OrderRecord struct {
	ID            int        `json:"id" db:"id"`
	ClientOrderID string     `json:"client_order_id" db:"client_order_id"`
	ExchangeID    string     `json:"exchange_id,omitempty" db:"exchange_id"`
	PositionID    string     `json:"position_id,omitempty" db:"position_id"`
	Symbol        string     `json:"symbol" db:"symbol"`
	Side          string     `json:"side" db:"side"` // buy, sell
	Type          string     `json:"type" db:"type"` // market, limit, stop
	IsEntry       bool       `json:"is_entry" db:"is_entry"`
	Quantity      float64    `json:"quantity" db:"quantity"`
	ExecutedQty   float64    `json:"executed_qty" db:"executed_qty"`
	AvgFillPrice  float64    `json:"avg_fill_price" db:"avg_fill_price"`
	Commission    float64    `json:"commission" db:"commission"`
	Status        string     `json:"status" db:"status"`
	ErrorMessage  string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	FilledAt      *time.Time `json:"filled_at,omitempty" db:"filled_at"`
}

// Статусы ордера в БД
const (
	OrderStatusSubmitted = "submitted"
	OrderStatusFilled    = "filled"
	OrderStatusCancelled = "cancelled"
	OrderStatusRejected  = "rejected"
	OrderStatusExpired   = "expired"
)
