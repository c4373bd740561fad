package strategy

import (
	"math"

	"tradebot/internal/models"
)

// Strategy - одна торговая стратегия: чистая функция над свечами,
// возвращающая направление и уверенность
type Strategy interface {
	Name() string
	// MinCandles - минимум свечей для оценки
	MinCandles() int
	Evaluate(candles []Candle) models.StrategyResult
}

func neutral(name string) models.StrategyResult {
	return models.StrategyResult{Strategy: name, Signal: models.SignalNeutral}
}

// ============================================================
// RSI: перепроданность/перекупленность
// ============================================================

type RSIStrategy struct {
	Period     int
	Oversold   float64
	Overbought float64
}

func NewRSIStrategy() *RSIStrategy {
	return &RSIStrategy{Period: 14, Oversold: 30, Overbought: 70}
}

func (s *RSIStrategy) Name() string    { return "rsi" }
func (s *RSIStrategy) MinCandles() int { return s.Period * 2 }

func (s *RSIStrategy) Evaluate(candles []Candle) models.StrategyResult {
	rsi := RSI(candles, s.Period)
	if rsi == nil {
		return neutral(s.Name())
	}
	value := last(rsi)

	switch {
	case value <= s.Oversold:
		// Чем глубже перепроданность, тем выше уверенность
		conf := 0.7 + 0.3*math.Min(1, (s.Oversold-value)/s.Oversold)
		return models.StrategyResult{
			Strategy:   s.Name(),
			Signal:     models.SignalLong,
			Confidence: conf,
			Strong:     value <= s.Oversold/2,
		}
	case value >= s.Overbought:
		conf := 0.7 + 0.3*math.Min(1, (value-s.Overbought)/(100-s.Overbought))
		return models.StrategyResult{
			Strategy:   s.Name(),
			Signal:     models.SignalShort,
			Confidence: conf,
			Strong:     value >= (100+s.Overbought)/2,
		}
	}
	return neutral(s.Name())
}

// ============================================================
// MACD: пересечение сигнальной линии
// ============================================================

type MACDStrategy struct {
	Fast, Slow, Signal int
}

func NewMACDStrategy() *MACDStrategy {
	return &MACDStrategy{Fast: 12, Slow: 26, Signal: 9}
}

func (s *MACDStrategy) Name() string    { return "macd" }
func (s *MACDStrategy) MinCandles() int { return s.Slow + s.Signal + 2 }

func (s *MACDStrategy) Evaluate(candles []Candle) models.StrategyResult {
	m := MACD(candles, s.Fast, s.Slow, s.Signal)
	if m == nil || len(m.Histogram) < 2 {
		return neutral(s.Name())
	}

	prev := m.Histogram[len(m.Histogram)-2]
	curr := m.Histogram[len(m.Histogram)-1]

	// Сигнал только на смене знака гистограммы (пересечении)
	switch {
	case prev <= 0 && curr > 0:
		return models.StrategyResult{
			Strategy:   s.Name(),
			Signal:     models.SignalLong,
			Confidence: histConfidence(curr, m.MACD),
			Strong:     last(m.MACD) > 0,
		}
	case prev >= 0 && curr < 0:
		return models.StrategyResult{
			Strategy:   s.Name(),
			Signal:     models.SignalShort,
			Confidence: histConfidence(-curr, m.MACD),
			Strong:     last(m.MACD) < 0,
		}
	}
	return neutral(s.Name())
}

// histConfidence масштабирует величину гистограммы к [0.6, 0.95]
func histConfidence(magnitude float64, macd []float64) float64 {
	var scale float64
	for _, v := range macd {
		scale += math.Abs(v)
	}
	if scale == 0 {
		return 0.6
	}
	scale /= float64(len(macd))
	conf := 0.6 + 0.35*math.Min(1, magnitude/scale)
	return conf
}

// ============================================================
// Bollinger: возврат к средней от края полосы
// ============================================================

type BollingerStrategy struct {
	Period int
	Mult   float64
}

func NewBollingerStrategy() *BollingerStrategy {
	return &BollingerStrategy{Period: 20, Mult: 2.0}
}

func (s *BollingerStrategy) Name() string    { return "bollinger" }
func (s *BollingerStrategy) MinCandles() int { return s.Period + 1 }

func (s *BollingerStrategy) Evaluate(candles []Candle) models.StrategyResult {
	b := Bollinger(candles, s.Period, s.Mult)
	if b == nil {
		return neutral(s.Name())
	}

	price := candles[len(candles)-1].Close
	upper, lower, middle := last(b.Upper), last(b.Lower), last(b.Middle)
	width := upper - lower
	if width == 0 {
		return neutral(s.Name())
	}

	switch {
	case price <= lower:
		depth := math.Min(1, (lower-price)/width+0.5)
		return models.StrategyResult{
			Strategy:   s.Name(),
			Signal:     models.SignalLong,
			Confidence: 0.6 + 0.3*depth,
			Strong:     price < lower-(middle-lower)*0.1,
		}
	case price >= upper:
		depth := math.Min(1, (price-upper)/width+0.5)
		return models.StrategyResult{
			Strategy:   s.Name(),
			Signal:     models.SignalShort,
			Confidence: 0.6 + 0.3*depth,
			Strong:     price > upper+(upper-middle)*0.1,
		}
	}
	return neutral(s.Name())
}

// ============================================================
// Тренд: пересечение быстрой и медленной EMA
// ============================================================

type TrendStrategy struct {
	FastPeriod, SlowPeriod int
}

func NewTrendStrategy() *TrendStrategy {
	return &TrendStrategy{FastPeriod: 9, SlowPeriod: 21}
}

func (s *TrendStrategy) Name() string    { return "ema_trend" }
func (s *TrendStrategy) MinCandles() int { return s.SlowPeriod + 2 }

func (s *TrendStrategy) Evaluate(candles []Candle) models.StrategyResult {
	closes := ClosePrices(candles)
	fast := EMA(closes, s.FastPeriod)
	slow := EMA(closes, s.SlowPeriod)
	if fast == nil || slow == nil || len(slow) < 2 {
		return neutral(s.Name())
	}

	// Ряды разной длины, сравниваем с хвоста
	currDiff := fast[len(fast)-1] - slow[len(slow)-1]
	prevDiff := fast[len(fast)-2] - slow[len(slow)-2]

	price := closes[len(closes)-1]
	if price == 0 {
		return neutral(s.Name())
	}
	spread := math.Abs(currDiff) / price // относительная сила тренда

	switch {
	case prevDiff <= 0 && currDiff > 0:
		return models.StrategyResult{
			Strategy:   s.Name(),
			Signal:     models.SignalLong,
			Confidence: 0.65 + 0.3*math.Min(1, spread*200),
			Strong:     spread > 0.002,
		}
	case prevDiff >= 0 && currDiff < 0:
		return models.StrategyResult{
			Strategy:   s.Name(),
			Signal:     models.SignalShort,
			Confidence: 0.65 + 0.3*math.Min(1, spread*200),
			Strong:     spread > 0.002,
		}
	}
	return neutral(s.Name())
}
