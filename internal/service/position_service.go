package service

import (
	"sort"

	"go.uber.org/zap"

	"tradebot/internal/bot"
	"tradebot/internal/models"
)

// PositionView и OrderView - снимки runtime-состояния движка,
// отдаваемые наружу через API и WebSocket
type (
	PositionView = bot.PositionSnapshot
	OrderView    = bot.OrderSnapshot
)

// PositionBroadcaster - интерфейс для real-time рассылки состояния
//
// Позволяет избежать циклической зависимости с пакетом websocket
// и подставить mock в тестах.
type PositionBroadcaster interface {
	BroadcastPositionUpdate(positionID string, closed bool, data interface{})
	BroadcastOrderUpdate(data interface{})
	BroadcastStatsUpdate(stats interface{})
}

// PositionService - мост между торговым движком и внешним миром
//
// Объединяет два потока данных:
//   - запросы API читают runtime-состояние движка (позиции, ордера, счёт)
//   - callbacks движка записывают историю в БД и рассылают по WebSocket
type PositionService struct {
	engine    *bot.Engine
	tradeRepo TradeRepositoryInterface
	orderRepo OrderRepositoryInterface
	statsRepo StatsRepositoryInterface
	wsHub     PositionBroadcaster
	log       *zap.Logger
}

// NewPositionService создает новый экземпляр PositionService
func NewPositionService(
	engine *bot.Engine,
	tradeRepo TradeRepositoryInterface,
	orderRepo OrderRepositoryInterface,
	statsRepo StatsRepositoryInterface,
	log *zap.Logger,
) *PositionService {
	return &PositionService{
		engine:    engine,
		tradeRepo: tradeRepo,
		orderRepo: orderRepo,
		statsRepo: statsRepo,
		log:       log,
	}
}

// SetWebSocketHub устанавливает hub для real-time рассылки
func (s *PositionService) SetWebSocketHub(hub PositionBroadcaster) {
	s.wsHub = hub
}

// Wire подписывает сервис на события движка.
// Вызывается один раз в main.go до запуска движка.
func (s *PositionService) Wire() {
	s.engine.SetOrderCallback(s.onOrderUpdate)
	s.engine.SetPositionCallback(s.onPositionEvent)
	s.engine.SetTradeCallback(s.onTradeClosed)
}

// ============================================================
// Чтение runtime-состояния
// ============================================================

// GetPositions возвращает снимки всех открытых позиций
func (s *PositionService) GetPositions() []PositionView {
	positions := s.engine.Positions().All()

	views := make([]PositionView, 0, len(positions))
	for _, pos := range positions {
		views = append(views, pos.Snapshot())
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].OpenedAt.Before(views[j].OpenedAt)
	})
	return views
}

// GetPosition возвращает снимок одной позиции
func (s *PositionService) GetPosition(id string) (*PositionView, error) {
	pos, ok := s.engine.Positions().Get(id)
	if !ok {
		return nil, ErrPositionNotFound
	}
	view := pos.Snapshot()
	return &view, nil
}

// GetActiveOrders возвращает снимки всех активных ордеров
func (s *PositionService) GetActiveOrders() []OrderView {
	var views []OrderView
	s.engine.Orders().Range(func(o *bot.Order) bool {
		views = append(views, o.Snapshot())
		return true
	})
	sort.Slice(views, func(i, j int) bool {
		return views[i].CreatedAt.Before(views[j].CreatedAt)
	})
	return views
}

// GetOrderHistory возвращает историю ордеров из БД
func (s *PositionService) GetOrderHistory(limit int) ([]*models.OrderRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	return s.orderRepo.GetRecent(limit)
}

// GetTrades возвращает последние завершенные сделки
func (s *PositionService) GetTrades(limit int) ([]*models.TradeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	return s.tradeRepo.GetRecent(limit)
}

// GetAccount возвращает текущее состояние счёта
func (s *PositionService) GetAccount() models.AccountSnapshot {
	return s.engine.AccountSnapshot()
}

// ============================================================
// Управляющие операции
// ============================================================

// ClosePosition закрывает позицию по запросу оператора
func (s *PositionService) ClosePosition(id string) error {
	return s.engine.ClosePosition(id, models.ExitReasonManual)
}

// FlattenAll закрывает все открытые позиции, возвращает их количество
func (s *PositionService) FlattenAll() int {
	return s.engine.ForceFlatten(models.ExitReasonManual)
}

// ============================================================
// Callbacks движка
// ============================================================

// onOrderUpdate вызывается движком при каждом изменении ордера
func (s *PositionService) onOrderUpdate(snap OrderView) {
	if s.wsHub != nil {
		s.wsHub.BroadcastOrderUpdate(snap)
	}

	switch snap.State {
	case bot.OrderPending:
		// Ордер еще не подтвержден биржей - не пишем
	case bot.OrderNew, bot.OrderPartiallyFilled:
		if err := s.orderRepo.Create(s.toOrderRecord(snap)); err != nil {
			// Дубликат при повторном событии - не ошибка аудита
			s.log.Debug("Ордер уже записан", zap.String("order", snap.ClientOrderID), zap.Error(err))
		}
	default:
		// Терминальный статус - дописываем итог
		if err := s.orderRepo.MarkTerminal(
			snap.ClientOrderID,
			dbOrderStatus(snap.State),
			snap.ExecutedQty,
			snap.AvgFillPrice,
			totalCommission(snap),
			snap.RejectReason,
		); err != nil {
			// Ордер мог исполниться до записи первого снимка
			rec := s.toOrderRecord(snap)
			rec.Status = dbOrderStatus(snap.State)
			if createErr := s.orderRepo.Create(rec); createErr != nil {
				s.log.Error("Не удалось записать итог ордера",
					zap.String("order", snap.ClientOrderID),
					zap.Error(createErr))
			}
		}
	}
}

// onPositionEvent вызывается движком при изменениях позиции
func (s *PositionService) onPositionEvent(snap PositionView, closed bool) {
	if s.wsHub != nil {
		s.wsHub.BroadcastPositionUpdate(snap.ID, closed, snap)
	}
}

// onTradeClosed вызывается движком после полного закрытия позиции
func (s *PositionService) onTradeClosed(trade *models.TradeRecord) {
	if err := s.tradeRepo.Create(trade); err != nil {
		s.log.Error("Не удалось записать сделку",
			zap.String("position", trade.PositionID),
			zap.Error(err))
	}

	// Статистика изменилась - рассылаем свежую
	if s.wsHub != nil && s.statsRepo != nil {
		if stats, err := s.statsRepo.GetStats(); err == nil {
			s.wsHub.BroadcastStatsUpdate(stats)
		}
	}
}

func (s *PositionService) toOrderRecord(snap OrderView) *models.OrderRecord {
	return &models.OrderRecord{
		ClientOrderID: snap.ClientOrderID,
		ExchangeID:    snap.ExchangeID,
		PositionID:    snap.PositionID,
		Symbol:        snap.Symbol,
		Side:          snap.Side,
		Type:          snap.Type,
		IsEntry:       snap.IsEntry,
		Quantity:      snap.OriginalQty,
		ExecutedQty:   snap.ExecutedQty,
		AvgFillPrice:  snap.AvgFillPrice,
		Commission:    totalCommission(snap),
		Status:        dbOrderStatus(snap.State),
		ErrorMessage:  snap.RejectReason,
		CreatedAt:     snap.CreatedAt,
	}
}

// dbOrderStatus переводит runtime-состояние в статус записи БД
func dbOrderStatus(state bot.OrderState) string {
	switch state {
	case bot.OrderFilled:
		return models.OrderStatusFilled
	case bot.OrderCancelled:
		return models.OrderStatusCancelled
	case bot.OrderRejected:
		return models.OrderStatusRejected
	case bot.OrderExpired:
		return models.OrderStatusExpired
	default:
		return models.OrderStatusSubmitted
	}
}

func totalCommission(snap OrderView) float64 {
	var sum float64
	for _, f := range snap.Fills {
		sum += f.Commission
	}
	return sum
}
