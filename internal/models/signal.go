package models

import "time"

// Signal - направление торгового сигнала
type Signal string

const (
	SignalLong    Signal = "LONG"    // открыть/держать длинную позицию
	SignalShort   Signal = "SHORT"   // открыть/держать короткую позицию
	SignalNeutral Signal = "NEUTRAL" // нет направления, не входить
)

// StrategyResult - результат работы одной стратегии
//
// Confidence в диапазоне 0.0-1.0. Strong означает что стратегия
// считает сигнал сильным (несколько индикаторов согласны) - для
// таких сигналов риск-гейт требует меньший порог уверенности.
type StrategyResult struct {
	Strategy   string  `json:"strategy"`
	Signal     Signal  `json:"signal"`
	Confidence float64 `json:"confidence"`
	Strong     bool    `json:"strong"`
}

// EntrySignal - агрегированный сигнал, поступающий на вход риск-гейта
type EntrySignal struct {
	Symbol          string    `json:"symbol"`
	Signal          Signal    `json:"signal"`
	Confidence      float64   `json:"confidence"`
	Strong          bool      `json:"strong"`
	RiskReward      float64   `json:"risk_reward,omitempty"`     // 0 = не задан
	ReferencePrice  float64   `json:"reference_price"`           // последняя цена на момент сигнала
	Strategy        string    `json:"strategy"`                  // имя агрегата или стратегии
	Contributions   []StrategyResult `json:"contributions,omitempty"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// TrendDirection - направление тренда от ML-сервиса
type TrendDirection string

const (
	TrendUp   TrendDirection = "UP"
	TrendDown TrendDirection = "DOWN"
	TrendFlat TrendDirection = "FLAT"
)

// TrendAdvice - ответ внешнего ML-сервиса прогноза тренда
//
// Используется только для гейта/усиления уверенности входа.
// Отсутствие ответа (таймаут, ошибка) не блокирует торговлю.
type TrendAdvice struct {
	Symbol     string         `json:"symbol"`
	Trend      TrendDirection `json:"trend"`
	Confidence float64        `json:"confidence"`
	ModelName  string         `json:"model_name,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Agrees возвращает true если совет ML совпадает с направлением сигнала
func (a *TrendAdvice) Agrees(s Signal) bool {
	switch s {
	case SignalLong:
		return a.Trend == TrendUp
	case SignalShort:
		return a.Trend == TrendDown
	default:
		return false
	}
}
