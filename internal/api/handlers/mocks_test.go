package handlers

import (
	"time"

	"tradebot/internal/models"
	"tradebot/internal/service"
)

// ============================================================
// Моки сервисов для тестов handlers
// ============================================================

type mockPositionService struct {
	positions []service.PositionView
	position  *service.PositionView
	orders    []service.OrderView
	history   []*models.OrderRecord
	trades    []*models.TradeRecord
	account   models.AccountSnapshot
	closeErr  error
	flattened int

	closedID    string
	lastLimit   int
	flattenHits int
}

func (m *mockPositionService) GetPositions() []service.PositionView { return m.positions }

func (m *mockPositionService) GetPosition(id string) (*service.PositionView, error) {
	if m.position == nil {
		return nil, service.ErrPositionNotFound
	}
	return m.position, nil
}

func (m *mockPositionService) GetActiveOrders() []service.OrderView { return m.orders }

func (m *mockPositionService) GetOrderHistory(limit int) ([]*models.OrderRecord, error) {
	m.lastLimit = limit
	return m.history, nil
}

func (m *mockPositionService) GetTrades(limit int) ([]*models.TradeRecord, error) {
	m.lastLimit = limit
	return m.trades, nil
}

func (m *mockPositionService) GetAccount() models.AccountSnapshot { return m.account }

func (m *mockPositionService) ClosePosition(id string) error {
	m.closedID = id
	return m.closeErr
}

func (m *mockPositionService) FlattenAll() int {
	m.flattenHits++
	return m.flattened
}

type mockNotificationService struct {
	notifications []*models.Notification
	deleted       int64
	err           error

	lastType     string
	lastLimit    int
	lastOlderThan time.Duration
}

func (m *mockNotificationService) CreateNotification(notif *models.Notification) error {
	return m.err
}

func (m *mockNotificationService) GetNotifications(notifType string, limit int) ([]*models.Notification, error) {
	m.lastType = notifType
	m.lastLimit = limit
	return m.notifications, m.err
}

func (m *mockNotificationService) CleanupOld(olderThan time.Duration) (int64, error) {
	m.lastOlderThan = olderThan
	return m.deleted, m.err
}

type mockSettingsService struct {
	settings *models.Settings
	err      error

	lastEnabled *bool
}

func (m *mockSettingsService) GetSettings() (*models.Settings, error) {
	return m.settings, m.err
}

func (m *mockSettingsService) UpdateSettings(req *service.UpdateSettingsRequest) (*models.Settings, error) {
	if m.err != nil {
		return nil, m.err
	}
	if req.TradingEnabled != nil {
		m.settings.TradingEnabled = *req.TradingEnabled
	}
	return m.settings, nil
}

func (m *mockSettingsService) SetTradingEnabled(enabled bool) error {
	m.lastEnabled = &enabled
	return m.err
}

type mockStatsService struct {
	stats *models.Stats
	err   error
}

func (m *mockStatsService) GetStats() (*models.Stats, error) {
	return m.stats, m.err
}

// Моки должны удовлетворять тем же интерфейсам, что и реальные сервисы
var (
	_ service.PositionServiceInterface     = (*mockPositionService)(nil)
	_ service.NotificationServiceInterface = (*mockNotificationService)(nil)
	_ service.SettingsServiceInterface     = (*mockSettingsService)(nil)
	_ service.StatsServiceInterface        = (*mockStatsService)(nil)
)
