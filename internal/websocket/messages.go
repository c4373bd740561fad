package websocket

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypePositionUpdate - обновление открытой позиции
	// (цена, нереализованный PNL, трейлинг-стоп)
	MessageTypePositionUpdate MessageType = "positionUpdate"

	// MessageTypeOrderUpdate - изменение состояния ордера
	MessageTypeOrderUpdate MessageType = "orderUpdate"

	// MessageTypeNotification - новое уведомление
	MessageTypeNotification MessageType = "notification"

	// MessageTypeAccountUpdate - обновление состояния счёта
	MessageTypeAccountUpdate MessageType = "accountUpdate"

	// MessageTypeStatsUpdate - обновление статистики после закрытия сделки
	MessageTypeStatsUpdate MessageType = "statsUpdate"
)

// Типизированные конверты: известные типы сериализуются без рефлексии
// по map, payload подставляется снимками из движка

// PositionUpdateMessage - сообщение об обновлении позиции
type PositionUpdateMessage struct {
	Type       MessageType `json:"type"`
	PositionID string      `json:"position_id"`
	Closed     bool        `json:"closed"`
	Data       interface{} `json:"data"`
}

// OrderUpdateMessage - сообщение об изменении ордера
type OrderUpdateMessage struct {
	Type MessageType `json:"type"`
	Data interface{} `json:"data"`
}

// NotificationMessage - сообщение с уведомлением
type NotificationMessage struct {
	Type MessageType `json:"type"`
	Data interface{} `json:"data"`
}

// AccountUpdateMessage - сообщение о состоянии счёта
type AccountUpdateMessage struct {
	Type MessageType `json:"type"`
	Data interface{} `json:"data"`
}

// StatsUpdateMessage - сообщение со статистикой
type StatsUpdateMessage struct {
	Type MessageType `json:"type"`
	Data interface{} `json:"data"`
}
