package service

import (
	"time"

	"tradebot/internal/models"
	"tradebot/internal/repository"
)

// ============================================================
// Ручные моки репозиториев для тестов сервисного слоя
// ============================================================

type mockTradeRepo struct {
	created []*models.TradeRecord
	err     error
}

func (m *mockTradeRepo) Create(trade *models.TradeRecord) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, trade)
	return nil
}

func (m *mockTradeRepo) GetByID(id int) (*models.TradeRecord, error) {
	return nil, repository.ErrTradeNotFound
}

func (m *mockTradeRepo) GetRecent(limit int) ([]*models.TradeRecord, error) {
	if limit < len(m.created) {
		return m.created[:limit], nil
	}
	return m.created, nil
}

func (m *mockTradeRepo) GetBySymbol(symbol string, limit int) ([]*models.TradeRecord, error) {
	return nil, nil
}

func (m *mockTradeRepo) GetByPeriod(from, to time.Time) ([]*models.TradeRecord, error) {
	return nil, nil
}

func (m *mockTradeRepo) SumPnlSince(since time.Time) (float64, error) { return 0, nil }

func (m *mockTradeRepo) Count() (int, error) { return len(m.created), nil }

type mockOrderRepo struct {
	created  []*models.OrderRecord
	terminal map[string]string // clientOrderID -> status
	err      error
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{terminal: make(map[string]string)}
}

func (m *mockOrderRepo) Create(order *models.OrderRecord) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, order)
	return nil
}

func (m *mockOrderRepo) GetByClientID(clientOrderID string) (*models.OrderRecord, error) {
	for _, o := range m.created {
		if o.ClientOrderID == clientOrderID {
			return o, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *mockOrderRepo) MarkTerminal(clientOrderID, status string, executedQty, avgFillPrice, commission float64, errorMessage string) error {
	if _, err := m.GetByClientID(clientOrderID); err != nil {
		return err
	}
	m.terminal[clientOrderID] = status
	return nil
}

func (m *mockOrderRepo) GetByPositionID(positionID string) ([]*models.OrderRecord, error) {
	return nil, nil
}

func (m *mockOrderRepo) GetRecent(limit int) ([]*models.OrderRecord, error) {
	return m.created, nil
}

func (m *mockOrderRepo) DeleteOlderThan(cutoff time.Time) (int64, error) { return 0, nil }

type mockNotifRepo struct {
	created []*models.Notification
	deleted int64
	err     error
}

func (m *mockNotifRepo) Create(notif *models.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, notif)
	return nil
}

func (m *mockNotifRepo) GetByID(id int) (*models.Notification, error) {
	return nil, repository.ErrNotificationNotFound
}

func (m *mockNotifRepo) GetRecent(limit int) ([]*models.Notification, error) {
	return m.created, nil
}

func (m *mockNotifRepo) GetByType(notifType string, limit int) ([]*models.Notification, error) {
	var out []*models.Notification
	for _, n := range m.created {
		if n.Type == notifType {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockNotifRepo) DeleteOlderThan(cutoff time.Time) (int64, error) {
	return m.deleted, nil
}

type mockSettingsRepo struct {
	settings *models.Settings
	err      error
}

func (m *mockSettingsRepo) Get() (*models.Settings, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.settings == nil {
		return nil, repository.ErrSettingsNotFound
	}
	return m.settings, nil
}

func (m *mockSettingsRepo) Save(settings *models.Settings) error {
	if m.err != nil {
		return m.err
	}
	m.settings = settings
	return nil
}

func (m *mockSettingsRepo) SetTradingEnabled(enabled bool) error {
	if m.settings == nil {
		return repository.ErrSettingsNotFound
	}
	m.settings.TradingEnabled = enabled
	return nil
}

type mockStatsRepo struct {
	stats *models.Stats
	err   error
}

func (m *mockStatsRepo) GetStats() (*models.Stats, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.stats, nil
}

// mockBroadcaster фиксирует все рассылки
type mockBroadcaster struct {
	positionUpdates []string
	orderUpdates    int
	notifications   []interface{}
	statsUpdates    int
}

func (m *mockBroadcaster) BroadcastPositionUpdate(positionID string, closed bool, data interface{}) {
	m.positionUpdates = append(m.positionUpdates, positionID)
}

func (m *mockBroadcaster) BroadcastOrderUpdate(data interface{}) { m.orderUpdates++ }

func (m *mockBroadcaster) BroadcastNotification(data interface{}) {
	m.notifications = append(m.notifications, data)
}

func (m *mockBroadcaster) BroadcastStatsUpdate(stats interface{}) { m.statsUpdates++ }

// Моки должны реализовывать те же интерфейсы, что и реальные репозитории
var (
	_ TradeRepositoryInterface        = (*mockTradeRepo)(nil)
	_ OrderRepositoryInterface        = (*mockOrderRepo)(nil)
	_ NotificationRepositoryInterface = (*mockNotifRepo)(nil)
	_ SettingsRepositoryInterface     = (*mockSettingsRepo)(nil)
	_ StatsRepositoryInterface        = (*mockStatsRepo)(nil)
)
