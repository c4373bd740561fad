package bot

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tradebot/internal/models"
)

// ============================================================
// RiskGate - централизованный риск-контроль
//
// Функции:
// - Валидация конфигурации лимитов при старте (все нарушения разом)
// - Предторговые проверки перед каждым открытием позиции
// - Circuit breaker по подряд идущим ошибкам биржи
// - Расчёт размера позиции и дефолтных SL/TP
// - Дневная статистика с сбросом на границе суток
// ============================================================

// CircuitState - состояние circuit breaker'а
type CircuitState int32

const (
	CircuitClosed CircuitState = iota // нормальная работа
	CircuitOpen                       // торговля заблокирована
	CircuitHalfOpen                   // пробный режим после cooldown
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// RiskLimits - торговые лимиты. Валидируются целиком: ошибка
// конструктора перечисляет ВСЕ нарушения, не только первое.
type RiskLimits struct {
	MaxPositionSize   float64       // максимальный номинал одной позиции, USDT
	MaxTotalExposure  float64       // максимальный суммарный номинал
	MaxOpenPositions  int           // максимум одновременных позиций
	MaxDailyLoss      float64       // дневной стоп по убытку, USDT (>0)
	RiskPerTradePct   float64       // доля баланса на сделку, %
	StopLossPct       float64       // дефолтный SL от входа, %
	TakeProfitPct     float64       // дефолтный TP от входа, %
	MaxSlippagePct    float64       // допустимое проскальзывание, %
	MaxLeverage       int           // плечо
	MinRiskReward     float64       // минимальный risk/reward для входа
	ErrorThreshold    int           // ошибок подряд до открытия breaker
	CooldownDuration  time.Duration // пауза breaker'а
	AllowedSymbols    []string      // пустой список = разрешены все
	ForceFlattenOnMax bool          // закрывать всё при достижении дневного лимита
}

// Validate проверяет лимиты и возвращает список всех нарушений
func (l *RiskLimits) Validate() error {
	var violations []string

	if l.MaxPositionSize <= 0 {
		violations = append(violations, fmt.Sprintf("max_position_size must be positive, got %.2f", l.MaxPositionSize))
	}
	if l.MaxTotalExposure < l.MaxPositionSize {
		violations = append(violations, fmt.Sprintf("max_total_exposure %.2f must be >= max_position_size %.2f", l.MaxTotalExposure, l.MaxPositionSize))
	}
	if l.MaxOpenPositions < 1 {
		violations = append(violations, fmt.Sprintf("max_open_positions must be >= 1, got %d", l.MaxOpenPositions))
	}
	if l.RiskPerTradePct <= 0 || l.RiskPerTradePct > 100 {
		violations = append(violations, fmt.Sprintf("risk_per_trade_pct must be in (0, 100], got %.2f", l.RiskPerTradePct))
	}
	if l.StopLossPct <= 0 || l.StopLossPct > 50 {
		violations = append(violations, fmt.Sprintf("stop_loss_pct must be in (0, 50], got %.2f", l.StopLossPct))
	}
	if l.MaxSlippagePct < 0 || l.MaxSlippagePct > 10 {
		violations = append(violations, fmt.Sprintf("max_slippage_pct must be in [0, 10], got %.2f", l.MaxSlippagePct))
	}
	if l.MaxLeverage < 1 || l.MaxLeverage > 125 {
		violations = append(violations, fmt.Sprintf("max_leverage must be in [1, 125], got %d", l.MaxLeverage))
	}
	if l.ErrorThreshold < 1 {
		violations = append(violations, fmt.Sprintf("error_threshold must be >= 1, got %d", l.ErrorThreshold))
	}

	if len(violations) > 0 {
		return fmt.Errorf("invalid risk limits: %s", strings.Join(violations, "; "))
	}
	return nil
}

// symbolAllowed: пустой allow-list разрешает всё
func (l *RiskLimits) symbolAllowed(symbol string) bool {
	if len(l.AllowedSymbols) == 0 {
		return true
	}
	for _, s := range l.AllowedSymbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// ErrRiskRejected - маркер нормального отказа "сделки не будет".
// Не трактуется как сбой: вызывающий логирует причину и живёт дальше.
var ErrRiskRejected = errors.New("risk check rejected")

// RiskViolation - отказ предторговой проверки с причиной
type RiskViolation struct {
	Check  string // какая проверка не прошла
	Reason string
}

func (v *RiskViolation) Error() string {
	return fmt.Sprintf("%s: %s", v.Check, v.Reason)
}

func (v *RiskViolation) Unwrap() error { return ErrRiskRejected }

// EntryCandidate - кандидат на открытие позиции
type EntryCandidate struct {
	Symbol     string
	Side       string
	Notional   float64 // планируемый номинал, USDT
	Confidence float64 // уверенность сигнала [0, 1]
	Strong     bool    // сильный консенсусный сигнал
	RiskReward float64 // 0 = не посчитан, проверка пропускается
	Signal     models.Signal
}

// Пороги уверенности для входа: сильному согласованному сигналу
// достаточно меньшей уверенности, чем одиночному.
const (
	minConfidenceStrong   = 0.70
	minConfidenceOrdinary = 0.80
)

// RiskGate - единая точка предторговых решений
//
// Счётчик ошибок и дневные метрики общие для всех горутин движка:
// кто бы ни поймал сбой биржи, breaker триггерится от одного счётчика.
type RiskGate struct {
	mu     sync.RWMutex
	limits RiskLimits

	tradingEnabled bool

	// Circuit breaker
	consecutiveErrors int
	circuit           CircuitState
	lastFailure       time.Time

	// Дневные метрики
	dayStart      time.Time
	dailyTrades   int
	dailyPnl      float64
	dailyLossHit  bool
}

// NewRiskGate создаёт гейт с валидацией лимитов
func NewRiskGate(limits RiskLimits) (*RiskGate, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	return &RiskGate{
		limits:         limits,
		tradingEnabled: true,
		circuit:        CircuitClosed,
		dayStart:       startOfDay(time.Now()),
	}, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SetTradingEnabled включает/выключает торговлю глобально
func (g *RiskGate) SetTradingEnabled(enabled bool) {
	g.mu.Lock()
	g.tradingEnabled = enabled
	g.mu.Unlock()
}

// TradingEnabled возвращает текущий флаг торговли
func (g *RiskGate) TradingEnabled() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.tradingEnabled
}

// UpdateLimits заменяет лимиты на лету (hot-reload конфига).
// Невалидные лимиты отвергаются, старые остаются в силе.
func (g *RiskGate) UpdateLimits(limits RiskLimits) error {
	if err := limits.Validate(); err != nil {
		return err
	}
	g.mu.Lock()
	g.limits = limits
	g.mu.Unlock()
	return nil
}

// Limits возвращает копию текущих лимитов
func (g *RiskGate) Limits() RiskLimits {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.limits
}

// CanOpenPosition прогоняет кандидата через все предторговые проверки.
// Возвращает *RiskViolation первой непройденной проверки; проверки
// идут от дешёвых к дорогим.
func (g *RiskGate) CanOpenPosition(c EntryCandidate, openPositions int, totalExposure, balance float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollDayLocked(time.Now())

	if !g.tradingEnabled {
		return &RiskViolation{Check: "trading_enabled", Reason: "trading is disabled"}
	}

	if state := g.circuitStateLocked(time.Now()); state == CircuitOpen {
		return &RiskViolation{
			Check:  "circuit_breaker",
			Reason: fmt.Sprintf("circuit open after %d consecutive errors", g.consecutiveErrors),
		}
	}

	if !g.limits.symbolAllowed(c.Symbol) {
		return &RiskViolation{Check: "symbol_allowlist", Reason: fmt.Sprintf("%s is not in the allow-list", c.Symbol)}
	}

	if c.Signal == models.SignalNeutral {
		return &RiskViolation{Check: "signal", Reason: "neutral signal never opens a position"}
	}
	minConf := minConfidenceOrdinary
	if c.Strong {
		minConf = minConfidenceStrong
	}
	if c.Confidence < minConf {
		return &RiskViolation{
			Check:  "confidence",
			Reason: fmt.Sprintf("confidence %.2f below minimum %.2f", c.Confidence, minConf),
		}
	}

	if c.RiskReward > 0 && c.RiskReward < g.limits.MinRiskReward {
		return &RiskViolation{
			Check:  "risk_reward",
			Reason: fmt.Sprintf("risk/reward %.2f below minimum %.2f", c.RiskReward, g.limits.MinRiskReward),
		}
	}

	if g.dailyLossHit {
		return &RiskViolation{Check: "daily_loss", Reason: "daily loss limit reached"}
	}

	if openPositions >= g.limits.MaxOpenPositions {
		return &RiskViolation{
			Check:  "max_positions",
			Reason: fmt.Sprintf("%d positions open, limit %d", openPositions, g.limits.MaxOpenPositions),
		}
	}

	if totalExposure+c.Notional > g.limits.MaxTotalExposure {
		return &RiskViolation{
			Check:  "total_exposure",
			Reason: fmt.Sprintf("projected exposure %.2f exceeds limit %.2f", totalExposure+c.Notional, g.limits.MaxTotalExposure),
		}
	}

	sizeCap := g.positionCapLocked(balance)
	if c.Notional > sizeCap {
		return &RiskViolation{
			Check:  "position_size",
			Reason: fmt.Sprintf("notional %.2f exceeds cap %.2f", c.Notional, sizeCap),
		}
	}

	return nil
}

func (g *RiskGate) positionCapLocked(balance float64) float64 {
	size := balance * g.limits.RiskPerTradePct / 100
	if size > g.limits.MaxPositionSize {
		size = g.limits.MaxPositionSize
	}
	return size
}

// CalculatePositionSize возвращает номинал новой позиции:
// min(балансовая доля, конфигурационный потолок)
func (g *RiskGate) CalculatePositionSize(balance float64) float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.positionCapLocked(balance)
}

// CalculateStopLoss возвращает дефолтный SL от цены входа
func (g *RiskGate) CalculateStopLoss(entry float64, isLong bool) float64 {
	g.mu.RLock()
	pct := g.limits.StopLossPct
	g.mu.RUnlock()

	if isLong {
		return entry * (1 - pct/100)
	}
	return entry * (1 + pct/100)
}

// CalculateTakeProfit возвращает дефолтный TP от цены входа
func (g *RiskGate) CalculateTakeProfit(entry float64, isLong bool) float64 {
	g.mu.RLock()
	pct := g.limits.TakeProfitPct
	g.mu.RUnlock()

	if isLong {
		return entry * (1 + pct/100)
	}
	return entry * (1 - pct/100)
}

// ============================================================
// Circuit breaker
// ============================================================

// RecordError фиксирует сбой биржи. Достигнув порога, breaker
// открывается. В HalfOpen единственный сбой снова открывает breaker.
// Возвращает true если этот вызов открыл breaker.
func (g *RiskGate) RecordError() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	state := g.circuitStateLocked(now)

	if state == CircuitHalfOpen {
		g.circuit = CircuitOpen
		g.lastFailure = now
		return true
	}

	g.consecutiveErrors++
	if state == CircuitClosed && g.consecutiveErrors >= g.limits.ErrorThreshold {
		g.circuit = CircuitOpen
		g.lastFailure = now
		return true
	}
	return false
}

// RecordSuccess фиксирует успешную операцию: сбрасывает счётчик,
// из HalfOpen возвращает breaker в Closed.
// Возвращает true если этот вызов закрыл breaker.
func (g *RiskGate) RecordSuccess() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	closed := false
	if g.circuitStateLocked(time.Now()) == CircuitHalfOpen {
		g.circuit = CircuitClosed
		closed = true
	}
	g.consecutiveErrors = 0
	return closed
}

// CircuitState возвращает текущее состояние breaker'а.
// Переход Open -> HalfOpen происходит лениво при чтении, когда
// истёк cooldown - фоновый таймер не нужен.
func (g *RiskGate) CircuitState() CircuitState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.circuitStateLocked(time.Now())
}

func (g *RiskGate) circuitStateLocked(now time.Time) CircuitState {
	if g.circuit == CircuitOpen && now.Sub(g.lastFailure) > g.limits.CooldownDuration {
		g.circuit = CircuitHalfOpen
	}
	return g.circuit
}

// ============================================================
// Дневные метрики
// ============================================================

// RecordTrade учитывает закрытую сделку в дневной статистике.
// Возвращает true если сделка пробила дневной лимит убытка.
func (g *RiskGate) RecordTrade(realizedPnl float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollDayLocked(time.Now())
	g.dailyTrades++
	g.dailyPnl += realizedPnl

	if !g.dailyLossHit && g.limits.MaxDailyLoss > 0 && g.dailyPnl <= -g.limits.MaxDailyLoss {
		g.dailyLossHit = true
		return true
	}
	return false
}

// RestoreDailyState восстанавливает дневные метрики после рестарта
// из сохранённых сделок. Вызывается один раз до запуска движка.
func (g *RiskGate) RestoreDailyState(trades int, pnl float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollDayLocked(time.Now())
	g.dailyTrades = trades
	g.dailyPnl = pnl
	g.dailyLossHit = g.limits.MaxDailyLoss > 0 && pnl <= -g.limits.MaxDailyLoss
}

// DailyStats возвращает статистику текущего торгового дня
func (g *RiskGate) DailyStats() (trades int, pnl float64, lossHit bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollDayLocked(time.Now())
	return g.dailyTrades, g.dailyPnl, g.dailyLossHit
}

// ForceFlattenPolicy: закрывать ли все позиции при дневном лимите
func (g *RiskGate) ForceFlattenPolicy() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.limits.ForceFlattenOnMax
}

// rollDayLocked сбрасывает дневные метрики на границе суток (UTC)
func (g *RiskGate) rollDayLocked(now time.Time) {
	day := startOfDay(now)
	if day.After(g.dayStart) {
		g.dayStart = day
		g.dailyTrades = 0
		g.dailyPnl = 0
		g.dailyLossHit = false
	}
}
