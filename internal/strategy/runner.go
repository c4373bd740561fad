package strategy

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"tradebot/internal/bot"
	"tradebot/internal/exchange"
	"tradebot/internal/models"
)

// SignalSink принимает агрегированные сигналы (движок)
type SignalSink interface {
	SubmitSignal(ctx context.Context, sig *models.EntrySignal) error
}

// candleBuilder агрегирует тики в свечи фиксированного интервала
type candleBuilder struct {
	interval time.Duration
	current  Candle
	started  bool
	history  []Candle
	maxLen   int
}

func newCandleBuilder(interval time.Duration, maxLen int) *candleBuilder {
	return &candleBuilder{interval: interval, maxLen: maxLen}
}

// push добавляет тик; возвращает true если закрылась свеча
func (b *candleBuilder) push(price float64, ts time.Time) bool {
	bucket := ts.Truncate(b.interval).Unix()

	if !b.started {
		b.current = Candle{Time: bucket, Open: price, High: price, Low: price, Close: price}
		b.started = true
		return false
	}

	if bucket != b.current.Time {
		// Свеча закрылась, начинаем следующую
		b.history = append(b.history, b.current)
		if len(b.history) > b.maxLen {
			b.history = b.history[len(b.history)-b.maxLen:]
		}
		b.current = Candle{Time: bucket, Open: price, High: price, Low: price, Close: price}
		return true
	}

	if price > b.current.High {
		b.current.High = price
	}
	if price < b.current.Low {
		b.current.Low = price
	}
	b.current.Close = price
	b.current.Volume++
	return false
}

// Runner ведёт по candleBuilder'у на символ и на каждой закрытой
// свече прогоняет агрегатор. Ненейтральный сигнал уходит в движок;
// отказ риск-гейта - штатный исход, логируется и не прерывает цикл.
type Runner struct {
	agg  *Aggregator
	sink SignalSink
	log  *zap.Logger

	interval time.Duration

	mu       sync.Mutex
	builders map[string]*candleBuilder
}

func NewRunner(agg *Aggregator, sink SignalSink, interval time.Duration, log *zap.Logger) *Runner {
	return &Runner{
		agg:      agg,
		sink:     sink,
		log:      log,
		interval: interval,
		builders: make(map[string]*candleBuilder),
	}
}

// OnTick - callback для подписки на тики биржи
func (r *Runner) OnTick(tick *exchange.PriceTick) {
	r.mu.Lock()
	b, ok := r.builders[tick.Symbol]
	if !ok {
		// История с запасом над минимумом стратегий
		b = newCandleBuilder(r.interval, r.agg.MinCandles()*3)
		r.builders[tick.Symbol] = b
	}
	closed := b.push(tick.Price, tick.Timestamp)
	var candles []Candle
	if closed {
		candles = make([]Candle, len(b.history))
		copy(candles, b.history)
	}
	r.mu.Unlock()

	if !closed || len(candles) < r.agg.MinCandles() {
		return
	}
	r.evaluate(tick.Symbol, candles)
}

func (r *Runner) evaluate(symbol string, candles []Candle) {
	sig := r.agg.Evaluate(symbol, candles)
	if sig == nil {
		return
	}

	r.log.Info("entry signal",
		zap.String("symbol", symbol),
		zap.String("signal", string(sig.Signal)),
		zap.Float64("confidence", sig.Confidence),
		zap.Bool("strong", sig.Strong))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := r.sink.SubmitSignal(ctx, sig); err != nil {
		if errors.Is(err, bot.ErrRiskRejected) {
			r.log.Info("entry rejected", zap.String("symbol", symbol), zap.String("reason", err.Error()))
		} else {
			r.log.Error("entry submission failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}
}

// Seed наполняет историю символа готовыми свечами (восстановление
// после рестарта из REST-истории)
func (r *Runner) Seed(symbol string, candles []Candle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.builders[symbol]
	if !ok {
		b = newCandleBuilder(r.interval, r.agg.MinCandles()*3)
		r.builders[symbol] = b
	}
	b.history = append(b.history, candles...)
	if len(b.history) > b.maxLen {
		b.history = b.history[len(b.history)-b.maxLen:]
	}
}
