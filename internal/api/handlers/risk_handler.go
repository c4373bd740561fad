package handlers

import (
	"net/http"

	"tradebot/internal/bot"
)

// RiskHandler отдает текущее состояние риск-гейта
//
// Endpoints:
// - GET /api/v1/risk - лимиты, circuit breaker, дневная статистика
//
// Лимиты меняются через configs/risk.yaml (hot-reload), поэтому
// endpoint только читает.
type RiskHandler struct {
	riskGate *bot.RiskGate
}

// NewRiskHandler создает новый RiskHandler
func NewRiskHandler(riskGate *bot.RiskGate) *RiskHandler {
	return &RiskHandler{riskGate: riskGate}
}

// RiskLimitsView представляет лимиты в API
type RiskLimitsView struct {
	MaxPositionSize   float64  `json:"max_position_size"`
	MaxTotalExposure  float64  `json:"max_total_exposure"`
	MaxOpenPositions  int      `json:"max_open_positions"`
	MaxDailyLoss      float64  `json:"max_daily_loss"`
	RiskPerTradePct   float64  `json:"risk_per_trade_pct"`
	StopLossPct       float64  `json:"stop_loss_pct"`
	TakeProfitPct     float64  `json:"take_profit_pct"`
	MaxSlippagePct    float64  `json:"max_slippage_pct"`
	MaxLeverage       int      `json:"max_leverage"`
	MinRiskReward     float64  `json:"min_risk_reward"`
	ErrorThreshold    int      `json:"error_threshold"`
	CooldownSeconds   float64  `json:"cooldown_seconds"`
	AllowedSymbols    []string `json:"allowed_symbols"`
	ForceFlattenOnMax bool     `json:"force_flatten_on_max_loss"`
}

// RiskStateResponse представляет состояние риск-контроля
type RiskStateResponse struct {
	Limits         RiskLimitsView `json:"limits"`
	TradingEnabled bool           `json:"trading_enabled"`
	CircuitState   string         `json:"circuit_state"`
	DailyTrades    int            `json:"daily_trades"`
	DailyPnl       float64        `json:"daily_pnl"`
	DailyLossHit   bool           `json:"daily_loss_hit"`
}

// GetRiskState возвращает лимиты и runtime-состояние риск-гейта
//
// GET /api/v1/risk
func (h *RiskHandler) GetRiskState(w http.ResponseWriter, r *http.Request) {
	limits := h.riskGate.Limits()
	trades, pnl, lossHit := h.riskGate.DailyStats()

	allowed := limits.AllowedSymbols
	if allowed == nil {
		allowed = []string{}
	}

	respondWithJSON(w, http.StatusOK, RiskStateResponse{
		Limits: RiskLimitsView{
			MaxPositionSize:   limits.MaxPositionSize,
			MaxTotalExposure:  limits.MaxTotalExposure,
			MaxOpenPositions:  limits.MaxOpenPositions,
			MaxDailyLoss:      limits.MaxDailyLoss,
			RiskPerTradePct:   limits.RiskPerTradePct,
			StopLossPct:       limits.StopLossPct,
			TakeProfitPct:     limits.TakeProfitPct,
			MaxSlippagePct:    limits.MaxSlippagePct,
			MaxLeverage:       limits.MaxLeverage,
			MinRiskReward:     limits.MinRiskReward,
			ErrorThreshold:    limits.ErrorThreshold,
			CooldownSeconds:   limits.CooldownDuration.Seconds(),
			AllowedSymbols:    allowed,
			ForceFlattenOnMax: limits.ForceFlattenOnMax,
		},
		TradingEnabled: h.riskGate.TradingEnabled(),
		CircuitState:   h.riskGate.CircuitState().String(),
		DailyTrades:    trades,
		DailyPnl:       pnl,
		DailyLossHit:   lossHit,
	})
}
