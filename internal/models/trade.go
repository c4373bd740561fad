package models

import "time"

// TradeRecord представляет завершённую сделку (полностью закрытую позицию)
//
// Записывается в БД после закрытия позиции и используется для
// статистики и дневного лимита убытков.
type TradeRecord struct {
	ID          int       `json:"id" db:"id"`
	PositionID  string    `json:"position_id" db:"position_id"`
	Symbol      string    `json:"symbol" db:"symbol"`
	Side        string    `json:"side" db:"side"` // long, short
	Quantity    float64   `json:"quantity" db:"quantity"`
	EntryPrice  float64   `json:"entry_price" db:"entry_price"`
	ExitPrice   float64   `json:"exit_price" db:"exit_price"`
	RealizedPnl float64   `json:"realized_pnl" db:"realized_pnl"`
	Commission  float64   `json:"commission" db:"commission"`
	Strategy    string    `json:"strategy,omitempty" db:"strategy"`
	ExitReason  string    `json:"exit_reason" db:"exit_reason"`
	OpenedAt    time.Time `json:"opened_at" db:"opened_at"`
	ClosedAt    time.Time `json:"closed_at" db:"closed_at"`
}

// Причины выхода из позиции
const (
	ExitReasonStopLoss     = "stop_loss"
	ExitReasonTakeProfit   = "take_profit"
	ExitReasonTrailingStop = "trailing_stop"
	ExitReasonSignal       = "signal"
	ExitReasonManual       = "manual"
	ExitReasonForceFlatten = "force_flatten" // принудительное закрытие circuit breaker'ом
)
