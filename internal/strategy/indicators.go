package strategy

import "math"

// ============================================================
// Технические индикаторы
//
// Все функции чистые: принимают свечи/ряды, возвращают ряды.
// Недостаток данных - nil, вызывающий обязан проверять.
// ============================================================

// Candle - свеча OHLCV
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// ClosePrices извлекает цены закрытия
func ClosePrices(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// SMA - простая скользящая средняя
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	out := make([]float64, len(values)-period+1)
	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[0] = sum / float64(period)
	for i := period; i < len(values); i++ {
		sum += values[i] - values[i-period]
		out[i-period+1] = sum / float64(period)
	}
	return out
}

// EMA - экспоненциальная скользящая средняя.
// Первое значение инициализируется SMA за период.
func EMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, len(values)-period+1)

	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[0] = sum / float64(period)
	for i := period; i < len(values); i++ {
		out[i-period+1] = values[i]*k + out[i-period]*(1-k)
	}
	return out
}

// RSI - индекс относительной силы (сглаживание EMA)
func RSI(candles []Candle, period int) []float64 {
	closes := ClosePrices(candles)
	if len(closes) < period+1 {
		return nil
	}

	gains := make([]float64, len(closes)-1)
	losses := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains[i-1] = change
		} else {
			losses[i-1] = -change
		}
	}

	avgGain := EMA(gains, period)
	avgLoss := EMA(losses, period)
	if avgGain == nil || avgLoss == nil {
		return nil
	}

	out := make([]float64, len(avgGain))
	for i := range avgGain {
		if avgLoss[i] == 0 {
			out[i] = 100
		} else {
			rs := avgGain[i] / avgLoss[i]
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out
}

// MACDResult - линии MACD
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD - схождение/расхождение скользящих средних (12/26/9 классика)
func MACD(candles []Candle, fast, slow, signal int) *MACDResult {
	closes := ClosePrices(candles)
	if len(closes) < slow+signal {
		return nil
	}

	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)
	if emaFast == nil || emaSlow == nil {
		return nil
	}

	// Выравниваем ряды по хвосту
	offset := len(emaFast) - len(emaSlow)
	macd := make([]float64, len(emaSlow))
	for i := range emaSlow {
		macd[i] = emaFast[i+offset] - emaSlow[i]
	}

	signalLine := EMA(macd, signal)
	if signalLine == nil {
		return nil
	}

	histOffset := len(macd) - len(signalLine)
	hist := make([]float64, len(signalLine))
	for i := range signalLine {
		hist[i] = macd[i+histOffset] - signalLine[i]
	}

	return &MACDResult{
		MACD:      macd[histOffset:],
		Signal:    signalLine,
		Histogram: hist,
	}
}

// BollingerResult - полосы Боллинджера
type BollingerResult struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Bollinger - полосы Боллинджера (средняя ± k*stddev)
func Bollinger(candles []Candle, period int, mult float64) *BollingerResult {
	closes := ClosePrices(candles)
	middle := SMA(closes, period)
	if middle == nil {
		return nil
	}

	upper := make([]float64, len(middle))
	lower := make([]float64, len(middle))
	for i := range middle {
		var variance float64
		for j := i; j < i+period; j++ {
			d := closes[j] - middle[i]
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))
		upper[i] = middle[i] + mult*sd
		lower[i] = middle[i] - mult*sd
	}
	return &BollingerResult{Upper: upper, Middle: middle, Lower: lower}
}

// Stochastic - стохастический осциллятор, %K сглаженный в %D
func Stochastic(candles []Candle, kPeriod, dPeriod int) (k, d []float64) {
	if len(candles) < kPeriod+dPeriod-1 {
		return nil, nil
	}

	k = make([]float64, len(candles)-kPeriod+1)
	for i := range k {
		window := candles[i : i+kPeriod]
		high, low := window[0].High, window[0].Low
		for _, c := range window[1:] {
			if c.High > high {
				high = c.High
			}
			if c.Low < low {
				low = c.Low
			}
		}
		if high == low {
			k[i] = 50
		} else {
			k[i] = (window[kPeriod-1].Close - low) / (high - low) * 100
		}
	}

	d = SMA(k, dPeriod)
	return k, d
}

// ATR - средний истинный диапазон (для оценки risk/reward)
func ATR(candles []Candle, period int) []float64 {
	if len(candles) < period+1 {
		return nil
	}
	tr := make([]float64, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		hl := candles[i].High - candles[i].Low
		hc := math.Abs(candles[i].High - candles[i-1].Close)
		lc := math.Abs(candles[i].Low - candles[i-1].Close)
		tr[i-1] = math.Max(hl, math.Max(hc, lc))
	}
	return EMA(tr, period)
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}
