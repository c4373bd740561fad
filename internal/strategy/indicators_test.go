package strategy

import (
	"math"
	"testing"
	"time"
)

func candlesFromCloses(closes ...float64) []Candle {
	out := make([]Candle, len(closes))
	for i, c := range closes {
		out[i] = Candle{Time: int64(i), Open: c, High: c, Low: c, Close: c}
	}
	return out
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}

	got := SMA(values, 3)
	want := []float64{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("sma[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if SMA(values, 10) != nil {
		t.Error("insufficient data must return nil")
	}
	if SMA(values, 0) != nil {
		t.Error("zero period must return nil")
	}
}

func TestEMA(t *testing.T) {
	values := []float64{10, 10, 10, 10, 10}
	got := EMA(values, 3)
	// Постоянный ряд - EMA постоянна
	for i, v := range got {
		if math.Abs(v-10) > 1e-9 {
			t.Errorf("ema[%d] = %v, want 10", i, v)
		}
	}

	// EMA реагирует на рост, оставаясь ниже последней цены
	rising := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	ema := EMA(rising, 3)
	lastVal := ema[len(ema)-1]
	if lastVal <= 5 || lastVal >= 8 {
		t.Errorf("ema tail = %v, want between 5 and 8", lastVal)
	}
}

func TestRSIExtremes(t *testing.T) {
	// Монотонный рост - RSI у 100
	up := candlesFromCloses(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16)
	rsi := RSI(up, 14)
	if rsi == nil {
		t.Fatal("expected RSI values")
	}
	if got := last(rsi); got < 99 {
		t.Errorf("rsi on monotonic rise = %v, want ~100", got)
	}

	// Монотонное падение - RSI у 0
	down := candlesFromCloses(16, 15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1)
	rsi = RSI(down, 14)
	if got := last(rsi); got > 1 {
		t.Errorf("rsi on monotonic fall = %v, want ~0", got)
	}

	if RSI(up[:5], 14) != nil {
		t.Error("insufficient candles must return nil")
	}
}

func TestBollinger(t *testing.T) {
	// Постоянный ряд: нулевая дисперсия, все полосы равны средней
	flat := candlesFromCloses(5, 5, 5, 5, 5, 5)
	b := Bollinger(flat, 5, 2)
	if b == nil {
		t.Fatal("expected bands")
	}
	if last(b.Upper) != 5 || last(b.Lower) != 5 || last(b.Middle) != 5 {
		t.Errorf("flat series bands = %v/%v/%v", last(b.Upper), last(b.Middle), last(b.Lower))
	}

	// Разброс раздвигает полосы симметрично вокруг средней
	noisy := candlesFromCloses(4, 6, 4, 6, 4, 6)
	b = Bollinger(noisy, 5, 2)
	if !(last(b.Upper) > last(b.Middle) && last(b.Lower) < last(b.Middle)) {
		t.Error("bands must straddle the middle")
	}
	up := last(b.Upper) - last(b.Middle)
	dn := last(b.Middle) - last(b.Lower)
	if math.Abs(up-dn) > 1e-9 {
		t.Errorf("bands not symmetric: +%v/-%v", up, dn)
	}
}

func TestMACDSanity(t *testing.T) {
	// Недостаток данных
	if MACD(candlesFromCloses(1, 2, 3), 12, 26, 9) != nil {
		t.Error("short series must return nil")
	}

	// Длинный тренд вверх: MACD положителен
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	m := MACD(candlesFromCloses(closes...), 12, 26, 9)
	if m == nil {
		t.Fatal("expected MACD result")
	}
	if last(m.MACD) <= 0 {
		t.Errorf("macd on uptrend = %v, want > 0", last(m.MACD))
	}
	if len(m.MACD) != len(m.Signal) || len(m.Signal) != len(m.Histogram) {
		t.Error("lines must be aligned")
	}
}

func TestStochastic(t *testing.T) {
	candles := make([]Candle, 20)
	for i := range candles {
		price := 100 + float64(i)
		candles[i] = Candle{High: price + 1, Low: price - 1, Close: price + 0.9}
	}

	k, d := Stochastic(candles, 14, 3)
	if k == nil || d == nil {
		t.Fatal("expected stochastic values")
	}
	// Закрытие у верха диапазона - %K близок к 100
	if got := last(k); got < 85 {
		t.Errorf("%%K = %v, want near 100", got)
	}
	for _, v := range k {
		if v < 0 || v > 100 {
			t.Errorf("%%K out of range: %v", v)
		}
	}
}

func TestCandleBuilder(t *testing.T) {
	b := newCandleBuilder(time.Minute, 100)

	base := time.Unix(1_700_000_000, 0).Truncate(time.Minute)
	push := func(price float64, sec int64) bool {
		return b.push(price, base.Add(time.Duration(sec)*time.Second))
	}

	if push(100, 0) {
		t.Error("first tick must not close a candle")
	}
	push(105, 10)
	push(95, 20)
	push(101, 30)

	// Тик в следующей минуте закрывает свечу
	if !push(102, 70) {
		t.Error("next-minute tick must close the candle")
	}

	if len(b.history) != 1 {
		t.Fatalf("history = %d, want 1", len(b.history))
	}
	c := b.history[0]
	if c.Open != 100 || c.High != 105 || c.Low != 95 || c.Close != 101 {
		t.Errorf("candle OHLC = %v/%v/%v/%v", c.Open, c.High, c.Low, c.Close)
	}
}
