package service

import (
	"time"

	"tradebot/internal/models"
	"tradebot/internal/repository"
)

// TradeRepositoryInterface определяет интерфейс репозитория сделок
type TradeRepositoryInterface interface {
	Create(trade *models.TradeRecord) error
	GetByID(id int) (*models.TradeRecord, error)
	GetRecent(limit int) ([]*models.TradeRecord, error)
	GetBySymbol(symbol string, limit int) ([]*models.TradeRecord, error)
	GetByPeriod(from, to time.Time) ([]*models.TradeRecord, error)
	SumPnlSince(since time.Time) (float64, error)
	Count() (int, error)
}

// OrderRepositoryInterface определяет интерфейс репозитория ордеров
type OrderRepositoryInterface interface {
	Create(order *models.OrderRecord) error
	GetByClientID(clientOrderID string) (*models.OrderRecord, error)
	MarkTerminal(clientOrderID, status string, executedQty, avgFillPrice, commission float64, errorMessage string) error
	GetByPositionID(positionID string) ([]*models.OrderRecord, error)
	GetRecent(limit int) ([]*models.OrderRecord, error)
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// NotificationRepositoryInterface определяет интерфейс репозитория уведомлений
type NotificationRepositoryInterface interface {
	Create(notif *models.Notification) error
	GetByID(id int) (*models.Notification, error)
	GetRecent(limit int) ([]*models.Notification, error)
	GetByType(notifType string, limit int) ([]*models.Notification, error)
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// SettingsRepositoryInterface определяет интерфейс репозитория настроек
type SettingsRepositoryInterface interface {
	Get() (*models.Settings, error)
	Save(settings *models.Settings) error
	SetTradingEnabled(enabled bool) error
}

// StatsRepositoryInterface определяет интерфейс репозитория статистики
type StatsRepositoryInterface interface {
	GetStats() (*models.Stats, error)
}

// Проверяем, что реальные репозитории реализуют интерфейсы
var _ TradeRepositoryInterface = (*repository.TradeRepository)(nil)
var _ OrderRepositoryInterface = (*repository.OrderRepository)(nil)
var _ NotificationRepositoryInterface = (*repository.NotificationRepository)(nil)
var _ SettingsRepositoryInterface = (*repository.SettingsRepository)(nil)
var _ StatsRepositoryInterface = (*repository.StatsRepository)(nil)

// ============ Интерфейсы сервисов для Dependency Injection ============

// PositionServiceInterface определяет интерфейс сервиса позиций
type PositionServiceInterface interface {
	GetPositions() []PositionView
	GetPosition(id string) (*PositionView, error)
	GetActiveOrders() []OrderView
	GetOrderHistory(limit int) ([]*models.OrderRecord, error)
	GetTrades(limit int) ([]*models.TradeRecord, error)
	GetAccount() models.AccountSnapshot
	ClosePosition(id string) error
	FlattenAll() int
}

// NotificationServiceInterface определяет интерфейс сервиса уведомлений
type NotificationServiceInterface interface {
	CreateNotification(notif *models.Notification) error
	GetNotifications(notifType string, limit int) ([]*models.Notification, error)
	CleanupOld(olderThan time.Duration) (int64, error)
}

// SettingsServiceInterface определяет интерфейс сервиса настроек
type SettingsServiceInterface interface {
	GetSettings() (*models.Settings, error)
	UpdateSettings(req *UpdateSettingsRequest) (*models.Settings, error)
	SetTradingEnabled(enabled bool) error
}

// StatsServiceInterface определяет интерфейс сервиса статистики
type StatsServiceInterface interface {
	GetStats() (*models.Stats, error)
}

// Проверяем, что реальные сервисы реализуют интерфейсы
var _ PositionServiceInterface = (*PositionService)(nil)
var _ NotificationServiceInterface = (*NotificationService)(nil)
var _ SettingsServiceInterface = (*SettingsService)(nil)
var _ StatsServiceInterface = (*StatsService)(nil)
