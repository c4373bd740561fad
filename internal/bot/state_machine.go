package bot

// OrderState - внутреннее состояние ордера
type OrderState string

const (
	OrderPending         OrderState = "PENDING"          // создан локально, биржа ещё не подтвердила
	OrderNew             OrderState = "NEW"              // принят биржей
	OrderPartiallyFilled OrderState = "PARTIALLY_FILLED" // частично исполнен
	OrderFilled          OrderState = "FILLED"           // полностью исполнен (терминальное)
	OrderCancelled       OrderState = "CANCELLED"        // отменён (терминальное)
	OrderRejected        OrderState = "REJECTED"         // отклонён биржей (терминальное)
	OrderExpired         OrderState = "EXPIRED"          // истёк (терминальное)
)

// statusTable - фиксированная таблица маппинга статусов биржи
// на внутренние состояния. Неизвестный статус -> PENDING.
var statusTable = map[string]OrderState{
	"NEW":              OrderNew,
	"PARTIALLY_FILLED": OrderPartiallyFilled,
	"FILLED":           OrderFilled,
	"CANCELED":         OrderCancelled,
	"PENDING_CANCEL":   OrderCancelled,
	"REJECTED":         OrderRejected,
	"EXPIRED":          OrderExpired,
	"EXPIRED_IN_MATCH": OrderExpired,
}

// MapExchangeStatus переводит статусную строку биржи во внутреннее состояние
func MapExchangeStatus(status string) OrderState {
	if s, ok := statusTable[status]; ok {
		return s
	}
	return OrderPending
}

// ValidOrderTransitions определяет допустимые переходы между состояниями
//
// PartiallyFilled -> PartiallyFilled допустим (очередной частичный fill).
// Терминальные состояния не имеют исходящих переходов.
var ValidOrderTransitions = map[OrderState][]OrderState{
	OrderPending: {OrderNew, OrderPartiallyFilled, OrderFilled, OrderCancelled, OrderRejected},
	OrderNew:     {OrderPartiallyFilled, OrderFilled, OrderCancelled, OrderRejected, OrderExpired},
	OrderPartiallyFilled: {OrderPartiallyFilled, OrderFilled, OrderCancelled, OrderExpired},
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to OrderState) bool {
	if from == to && !from.IsTerminal() {
		return true // статусное эхо того же состояния
	}
	for _, s := range ValidOrderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal возвращает true для финальных состояний
func (s OrderState) IsTerminal() bool {
	switch s {
	case OrderFilled, OrderCancelled, OrderRejected, OrderExpired:
		return true
	}
	return false
}

// IsActive возвращает true если ордер ещё может исполняться
func (s OrderState) IsActive() bool {
	return s == OrderNew || s == OrderPartiallyFilled
}

// StateInfo возвращает описание состояния для UI
func StateInfo(s OrderState) string {
	switch s {
	case OrderPending:
		return "Отправлен, ожидание подтверждения биржи"
	case OrderNew:
		return "Принят биржей"
	case OrderPartiallyFilled:
		return "Частично исполнен"
	case OrderFilled:
		return "Исполнен полностью"
	case OrderCancelled:
		return "Отменён"
	case OrderRejected:
		return "Отклонён биржей"
	case OrderExpired:
		return "Истёк"
	default:
		return "Неизвестное состояние"
	}
}
