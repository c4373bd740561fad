package models

import "time"

// Settings представляет глобальные runtime-настройки бота
//
// Изменяются через API без перезапуска; лимиты риска проходят ту же
// валидацию что и при старте.
type Settings struct {
	ID                int       `json:"id" db:"id"`
	TradingEnabled    bool      `json:"trading_enabled" db:"trading_enabled"`
	PaperMode         bool      `json:"paper_mode" db:"paper_mode"`
	AdvisorEnabled    bool      `json:"advisor_enabled" db:"advisor_enabled"` // использовать ML-сервис тренда
	NotificationPrefs NotificationPreferences `json:"notification_prefs" db:"notification_prefs"` // JSON в БД
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// NotificationPreferences представляет настройки уведомлений
type NotificationPreferences struct {
	Entry       bool `json:"entry"`
	Exit        bool `json:"exit"`
	StopLoss    bool `json:"stop_loss"`
	TakeProfit  bool `json:"take_profit"`
	Trailing    bool `json:"trailing"`
	Circuit     bool `json:"circuit"`
	Rejected    bool `json:"rejected"`
	APIError    bool `json:"api_error"`
}
