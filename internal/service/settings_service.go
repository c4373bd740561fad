package service

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"tradebot/internal/bot"
	"tradebot/internal/models"
	"tradebot/internal/repository"
)

// UpdateSettingsRequest - частичное обновление настроек.
// Nil-поля не изменяются.
type UpdateSettingsRequest struct {
	TradingEnabled    *bool                           `json:"trading_enabled,omitempty"`
	AdvisorEnabled    *bool                           `json:"advisor_enabled,omitempty"`
	NotificationPrefs *models.NotificationPreferences `json:"notification_prefs,omitempty"`
}

// SettingsService управляет runtime-настройками бота.
// Переключатель торговли применяется к риск-гейту немедленно,
// без перезапуска движка.
type SettingsService struct {
	repo     SettingsRepositoryInterface
	riskGate *bot.RiskGate
	log      *zap.Logger
}

// NewSettingsService создает новый экземпляр SettingsService
func NewSettingsService(repo SettingsRepositoryInterface, riskGate *bot.RiskGate, log *zap.Logger) *SettingsService {
	return &SettingsService{
		repo:     repo,
		riskGate: riskGate,
		log:      log,
	}
}

// GetSettings возвращает текущие настройки.
// Пустая БД - не ошибка: отдаем дефолты.
func (s *SettingsService) GetSettings() (*models.Settings, error) {
	settings, err := s.repo.Get()
	if errors.Is(err, repository.ErrSettingsNotFound) {
		return defaultSettings(), nil
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// UpdateSettings применяет частичное обновление и сохраняет результат
func (s *SettingsService) UpdateSettings(req *UpdateSettingsRequest) (*models.Settings, error) {
	settings, err := s.GetSettings()
	if err != nil {
		return nil, err
	}

	if req.TradingEnabled != nil {
		settings.TradingEnabled = *req.TradingEnabled
	}
	if req.AdvisorEnabled != nil {
		settings.AdvisorEnabled = *req.AdvisorEnabled
	}
	if req.NotificationPrefs != nil {
		settings.NotificationPrefs = *req.NotificationPrefs
	}
	settings.UpdatedAt = time.Now()

	if err := s.repo.Save(settings); err != nil {
		return nil, err
	}

	if req.TradingEnabled != nil && s.riskGate != nil {
		s.riskGate.SetTradingEnabled(settings.TradingEnabled)
		s.log.Info("Переключен режим торговли", zap.Bool("enabled", settings.TradingEnabled))
	}
	return settings, nil
}

// SetTradingEnabled включает/выключает открытие новых позиций.
// Открытые позиции продолжают сопровождаться в любом случае.
func (s *SettingsService) SetTradingEnabled(enabled bool) error {
	if err := s.repo.SetTradingEnabled(enabled); err != nil {
		// Строки настроек еще нет - создаем с дефолтами
		if errors.Is(err, repository.ErrSettingsNotFound) {
			settings := defaultSettings()
			settings.TradingEnabled = enabled
			if saveErr := s.repo.Save(settings); saveErr != nil {
				return saveErr
			}
		} else {
			return err
		}
	}

	if s.riskGate != nil {
		s.riskGate.SetTradingEnabled(enabled)
	}
	s.log.Info("Переключен режим торговли", zap.Bool("enabled", enabled))
	return nil
}

// ApplyToRiskGate восстанавливает сохраненное состояние после рестарта
func (s *SettingsService) ApplyToRiskGate() error {
	settings, err := s.GetSettings()
	if err != nil {
		return err
	}
	if s.riskGate != nil {
		s.riskGate.SetTradingEnabled(settings.TradingEnabled)
	}
	return nil
}

func defaultSettings() *models.Settings {
	return &models.Settings{
		ID:             1,
		TradingEnabled: true,
		AdvisorEnabled: false,
		NotificationPrefs: models.NotificationPreferences{
			Entry:      true,
			Exit:       true,
			StopLoss:   true,
			TakeProfit: true,
			Trailing:   true,
			Circuit:    true,
			Rejected:   true,
			APIError:   true,
		},
		UpdatedAt: time.Now(),
	}
}
