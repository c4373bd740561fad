package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"tradebot/internal/bot"
)

// Duration - обёртка для разбора "5m"/"30s" из YAML
type Duration time.Duration

// UnmarshalYAML реализует yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// RiskConfig - торговые лимиты из YAML-файла
//
// В отличие от остальной конфигурации лимиты меняются в процессе
// работы: файл перечитывается watcher'ом без перезапуска бота.
type RiskConfig struct {
	MaxPositionSize  float64 `yaml:"max_position_size"`
	MaxTotalExposure float64 `yaml:"max_total_exposure"`
	MaxOpenPositions int     `yaml:"max_open_positions"`
	MaxDailyLoss     float64 `yaml:"max_daily_loss"`
	RiskPerTradePct  float64 `yaml:"risk_per_trade_pct"`
	StopLossPct      float64 `yaml:"stop_loss_pct"`
	TakeProfitPct    float64 `yaml:"take_profit_pct"`
	MaxSlippagePct   float64 `yaml:"max_slippage_pct"`
	MaxLeverage      int     `yaml:"max_leverage"`
	MinRiskReward    float64 `yaml:"min_risk_reward"`

	ErrorThreshold   int      `yaml:"error_threshold"`
	CooldownDuration Duration `yaml:"cooldown_duration"`

	AllowedSymbols    []string `yaml:"allowed_symbols"`
	ForceFlattenOnMax bool     `yaml:"force_flatten_on_max_loss"`
}

// DefaultRiskConfig возвращает консервативные лимиты по умолчанию
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		MaxPositionSize:  1000,
		MaxTotalExposure: 5000,
		MaxOpenPositions: 5,
		MaxDailyLoss:     200,
		RiskPerTradePct:  2.0,
		StopLossPct:      2.0,
		TakeProfitPct:    4.0,
		MaxSlippagePct:   0.5,
		MaxLeverage:      3,
		MinRiskReward:    1.5,
		ErrorThreshold:   5,
		CooldownDuration: Duration(5 * time.Minute),
	}
}

// LoadRiskConfig читает лимиты из YAML-файла
//
// Отсутствующий файл не ошибка: возвращаются дефолтные лимиты,
// чтобы бот мог стартовать до первого configs/risk.yaml.
func LoadRiskConfig(path string) (RiskConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultRiskConfig(), nil
		}
		return RiskConfig{}, fmt.Errorf("read risk config %s: %w", path, err)
	}

	cfg := DefaultRiskConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return RiskConfig{}, fmt.Errorf("parse risk config %s: %w", path, err)
	}
	return cfg, nil
}

// ToLimits конвертирует YAML-представление в лимиты риск-модуля
func (r RiskConfig) ToLimits() bot.RiskLimits {
	return bot.RiskLimits{
		MaxPositionSize:   r.MaxPositionSize,
		MaxTotalExposure:  r.MaxTotalExposure,
		MaxOpenPositions:  r.MaxOpenPositions,
		MaxDailyLoss:      r.MaxDailyLoss,
		RiskPerTradePct:   r.RiskPerTradePct,
		StopLossPct:       r.StopLossPct,
		TakeProfitPct:     r.TakeProfitPct,
		MaxSlippagePct:    r.MaxSlippagePct,
		MaxLeverage:       r.MaxLeverage,
		MinRiskReward:     r.MinRiskReward,
		ErrorThreshold:    r.ErrorThreshold,
		CooldownDuration:  time.Duration(r.CooldownDuration),
		AllowedSymbols:    r.AllowedSymbols,
		ForceFlattenOnMax: r.ForceFlattenOnMax,
	}
}
