package models

import "time"

// Notification представляет уведомление о событии
type Notification struct {
	ID         int                    `json:"id" db:"id"`
	Timestamp  time.Time              `json:"timestamp" db:"timestamp"`
	Type       string                 `json:"type" db:"type"`         // ENTRY, EXIT, SL, TP, TRAILING, CIRCUIT_OPEN, CIRCUIT_CLOSE, REJECTED, ERROR
	Severity   string                 `json:"severity" db:"severity"` // info, warn, error
	PositionID *string                `json:"position_id,omitempty" db:"position_id"`
	Symbol     string                 `json:"symbol,omitempty" db:"symbol"`
	Message    string                 `json:"message" db:"message"`
	Meta       map[string]interface{} `json:"meta,omitempty" db:"meta"` // дополнительные данные (JSON в БД)
}

// Типы уведомлений
const (
	NotificationTypeEntry        = "ENTRY"         // открытие позиции
	NotificationTypeExit         = "EXIT"          // закрытие позиции
	NotificationTypeSL           = "SL"            // срабатывание Stop Loss
	NotificationTypeTP           = "TP"            // срабатывание Take Profit
	NotificationTypeTrailing     = "TRAILING"      // срабатывание трейлинг-стопа
	NotificationTypeCircuitOpen  = "CIRCUIT_OPEN"  // circuit breaker открыт
	NotificationTypeCircuitClose = "CIRCUIT_CLOSE" // circuit breaker восстановлен
	NotificationTypeRejected     = "REJECTED"      // вход отклонён риск-гейтом
	NotificationTypeError        = "ERROR"         // ошибка API/ордера
)

// Уровни важности
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)
