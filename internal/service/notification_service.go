package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tradebot/internal/models"
)

// NotificationBroadcaster - интерфейс рассылки уведомлений по WebSocket
type NotificationBroadcaster interface {
	BroadcastNotification(data interface{})
}

// NotificationService обрабатывает поток уведомлений движка:
// фильтрует по пользовательским настройкам, пишет в БД и рассылает.
type NotificationService struct {
	repo         NotificationRepositoryInterface
	settingsRepo SettingsRepositoryInterface
	wsHub        NotificationBroadcaster
	log          *zap.Logger
}

// NewNotificationService создает новый экземпляр NotificationService
func NewNotificationService(
	repo NotificationRepositoryInterface,
	settingsRepo SettingsRepositoryInterface,
	log *zap.Logger,
) *NotificationService {
	return &NotificationService{
		repo:         repo,
		settingsRepo: settingsRepo,
		log:          log,
	}
}

// SetWebSocketHub устанавливает hub для real-time рассылки
func (s *NotificationService) SetWebSocketHub(hub NotificationBroadcaster) {
	s.wsHub = hub
}

// Run потребляет канал уведомлений движка до отмены контекста.
// Канал закрывает движок при остановке.
func (s *NotificationService) Run(ctx context.Context, ch <-chan *models.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case notif, ok := <-ch:
			if !ok {
				return
			}
			if err := s.CreateNotification(notif); err != nil {
				s.log.Error("Не удалось обработать уведомление",
					zap.String("type", notif.Type), zap.Error(err))
			}
		}
	}
}

// CreateNotification сохраняет уведомление и рассылает его подписчикам.
// Отключенные в настройках типы пропускаются целиком.
func (s *NotificationService) CreateNotification(notif *models.Notification) error {
	if !s.isTypeEnabled(notif.Type) {
		return nil
	}
	if notif.Timestamp.IsZero() {
		notif.Timestamp = time.Now()
	}

	if err := s.repo.Create(notif); err != nil {
		return err
	}

	if s.wsHub != nil {
		s.wsHub.BroadcastNotification(notif)
	}
	return nil
}

// GetNotifications возвращает уведомления, опционально фильтруя по типу
func (s *NotificationService) GetNotifications(notifType string, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if notifType != "" {
		return s.repo.GetByType(notifType, limit)
	}
	return s.repo.GetRecent(limit)
}

// CleanupOld удаляет уведомления старше указанного возраста
func (s *NotificationService) CleanupOld(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	deleted, err := s.repo.DeleteOlderThan(cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.log.Info("Удалены старые уведомления", zap.Int64("count", deleted))
	}
	return deleted, nil
}

// isTypeEnabled проверяет настройки пользователя для типа уведомления.
// При недоступности настроек уведомление проходит - лучше лишний
// сигнал, чем пропущенный SL.
func (s *NotificationService) isTypeEnabled(notifType string) bool {
	settings, err := s.settingsRepo.Get()
	if err != nil {
		return true
	}
	prefs := settings.NotificationPrefs

	switch notifType {
	case models.NotificationTypeEntry:
		return prefs.Entry
	case models.NotificationTypeExit:
		return prefs.Exit
	case models.NotificationTypeSL:
		return prefs.StopLoss
	case models.NotificationTypeTP:
		return prefs.TakeProfit
	case models.NotificationTypeTrailing:
		return prefs.Trailing
	case models.NotificationTypeCircuitOpen, models.NotificationTypeCircuitClose:
		return prefs.Circuit
	case models.NotificationTypeRejected:
		return prefs.Rejected
	case models.NotificationTypeError:
		return prefs.APIError
	default:
		return true
	}
}
