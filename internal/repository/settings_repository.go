package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"tradebot/internal/models"
)

// Ошибки репозитория настроек
var ErrSettingsNotFound = errors.New("settings not found")

// SettingsRepository - работа с таблицей settings
//
// Таблица содержит единственную строку с id = 1.
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository создает новый экземпляр репозитория
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get возвращает текущие настройки
func (r *SettingsRepository) Get() (*models.Settings, error) {
	query := `
		SELECT id, trading_enabled, paper_mode, advisor_enabled, notification_prefs, updated_at
		FROM settings
		WHERE id = 1`

	settings := &models.Settings{}
	var prefsJSON []byte

	err := r.db.QueryRow(query).Scan(
		&settings.ID,
		&settings.TradingEnabled,
		&settings.PaperMode,
		&settings.AdvisorEnabled,
		&prefsJSON,
		&settings.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, err
	}

	if len(prefsJSON) > 0 {
		if err := json.Unmarshal(prefsJSON, &settings.NotificationPrefs); err != nil {
			return nil, err
		}
	}

	return settings, nil
}

// Save сохраняет настройки (upsert единственной строки)
func (r *SettingsRepository) Save(settings *models.Settings) error {
	query := `
		INSERT INTO settings (id, trading_enabled, paper_mode, advisor_enabled, notification_prefs, updated_at)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET trading_enabled = $1, paper_mode = $2, advisor_enabled = $3, notification_prefs = $4, updated_at = $5`

	settings.ID = 1
	settings.UpdatedAt = time.Now()

	prefsJSON, err := json.Marshal(settings.NotificationPrefs)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(
		query,
		settings.TradingEnabled,
		settings.PaperMode,
		settings.AdvisorEnabled,
		prefsJSON,
		settings.UpdatedAt,
	)
	return err
}

// SetTradingEnabled переключает торговлю
func (r *SettingsRepository) SetTradingEnabled(enabled bool) error {
	query := `
		UPDATE settings
		SET trading_enabled = $1, updated_at = $2
		WHERE id = 1`

	result, err := r.db.Exec(query, enabled, time.Now())
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrSettingsNotFound
	}

	return nil
}
