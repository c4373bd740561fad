package strategy

import (
	"fmt"
	"time"

	"tradebot/internal/models"
)

// AggregationPolicy - способ сведения результатов стратегий в решение
type AggregationPolicy string

const (
	// PolicyWeightedAverage - взвешенное голосование по уверенности
	PolicyWeightedAverage AggregationPolicy = "weighted_average"
	// PolicyConsensus - входим только при согласии большинства
	PolicyConsensus AggregationPolicy = "consensus"
	// PolicyBestConfidence - берём самый уверенный ненейтральный сигнал
	PolicyBestConfidence AggregationPolicy = "best_confidence"
	// PolicyConservative - входим только при единогласии
	PolicyConservative AggregationPolicy = "conservative"
)

// Aggregator сводит вектор результатов стратегий в EntrySignal
// фиксированной политикой. Замкнутый набор стратегий, без плагинов.
type Aggregator struct {
	policy     AggregationPolicy
	strategies []Strategy
	weights    map[string]float64 // вес стратегии, по умолчанию 1.0
}

// NewAggregator создаёт агрегатор. Неизвестная политика - ошибка.
func NewAggregator(policy AggregationPolicy, strategies ...Strategy) (*Aggregator, error) {
	switch policy {
	case PolicyWeightedAverage, PolicyConsensus, PolicyBestConfidence, PolicyConservative:
	default:
		return nil, fmt.Errorf("unknown aggregation policy %q", policy)
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("aggregator needs at least one strategy")
	}
	return &Aggregator{
		policy:     policy,
		strategies: strategies,
		weights:    make(map[string]float64),
	}, nil
}

// SetWeight задаёт вес стратегии для weighted_average
func (a *Aggregator) SetWeight(strategy string, weight float64) {
	a.weights[strategy] = weight
}

func (a *Aggregator) weight(strategy string) float64 {
	if w, ok := a.weights[strategy]; ok {
		return w
	}
	return 1.0
}

// MinCandles возвращает максимум требований стратегий
func (a *Aggregator) MinCandles() int {
	var m int
	for _, s := range a.strategies {
		if s.MinCandles() > m {
			m = s.MinCandles()
		}
	}
	return m
}

// Evaluate прогоняет все стратегии и сводит результат.
// Нейтральный итог - nil (не сигнал, а его отсутствие).
func (a *Aggregator) Evaluate(symbol string, candles []Candle) *models.EntrySignal {
	results := make([]models.StrategyResult, 0, len(a.strategies))
	for _, s := range a.strategies {
		if len(candles) < s.MinCandles() {
			continue
		}
		results = append(results, s.Evaluate(candles))
	}
	if len(results) == 0 {
		return nil
	}

	var combined models.StrategyResult
	switch a.policy {
	case PolicyWeightedAverage:
		combined = a.weightedAverage(results)
	case PolicyConsensus:
		combined = a.consensus(results)
	case PolicyBestConfidence:
		combined = a.bestConfidence(results)
	case PolicyConservative:
		combined = a.conservative(results)
	}

	if combined.Signal == models.SignalNeutral {
		return nil
	}

	var refPrice float64
	if len(candles) > 0 {
		refPrice = candles[len(candles)-1].Close
	}

	return &models.EntrySignal{
		Symbol:         symbol,
		Signal:         combined.Signal,
		Confidence:     combined.Confidence,
		Strong:         combined.Strong,
		ReferencePrice: refPrice,
		Strategy:       string(a.policy),
		Contributions:  results,
		GeneratedAt:    time.Now(),
	}
}

// weightedAverage: голоса long против short, взвешенные
// уверенностью и весом стратегии
func (a *Aggregator) weightedAverage(results []models.StrategyResult) models.StrategyResult {
	var longScore, shortScore, totalWeight float64
	for _, r := range results {
		w := a.weight(r.Strategy)
		totalWeight += w
		switch r.Signal {
		case models.SignalLong:
			longScore += r.Confidence * w
		case models.SignalShort:
			shortScore += r.Confidence * w
		}
	}
	if totalWeight == 0 {
		return models.StrategyResult{Signal: models.SignalNeutral}
	}

	// Победитель должен перевешивать минимум вдвое, иначе шум
	switch {
	case longScore > shortScore*2 && longScore > 0:
		return models.StrategyResult{
			Signal:     models.SignalLong,
			Confidence: longScore / totalWeight,
			Strong:     countStrong(results, models.SignalLong) >= 2,
		}
	case shortScore > longScore*2 && shortScore > 0:
		return models.StrategyResult{
			Signal:     models.SignalShort,
			Confidence: shortScore / totalWeight,
			Strong:     countStrong(results, models.SignalShort) >= 2,
		}
	}
	return models.StrategyResult{Signal: models.SignalNeutral}
}

// consensus: направление выигрывает при строгом большинстве голосов
func (a *Aggregator) consensus(results []models.StrategyResult) models.StrategyResult {
	var longs, shorts int
	for _, r := range results {
		switch r.Signal {
		case models.SignalLong:
			longs++
		case models.SignalShort:
			shorts++
		}
	}

	majority := len(results)/2 + 1
	var signal models.Signal
	switch {
	case longs >= majority:
		signal = models.SignalLong
	case shorts >= majority:
		signal = models.SignalShort
	default:
		return models.StrategyResult{Signal: models.SignalNeutral}
	}

	// Уверенность - средняя по проголосовавшим за победителя
	var sum float64
	var n int
	for _, r := range results {
		if r.Signal == signal {
			sum += r.Confidence
			n++
		}
	}
	return models.StrategyResult{
		Signal:     signal,
		Confidence: sum / float64(n),
		Strong:     countStrong(results, signal) >= 2,
	}
}

// bestConfidence: самый уверенный ненейтральный результат как есть
func (a *Aggregator) bestConfidence(results []models.StrategyResult) models.StrategyResult {
	best := models.StrategyResult{Signal: models.SignalNeutral}
	for _, r := range results {
		if r.Signal != models.SignalNeutral && r.Confidence > best.Confidence {
			best = r
		}
	}
	return best
}

// conservative: сигнал только при единогласии всех ненейтральных,
// причём нейтральных должно быть меньшинство; уверенность - минимальная
func (a *Aggregator) conservative(results []models.StrategyResult) models.StrategyResult {
	var signal models.Signal = models.SignalNeutral
	minConf := 1.0
	var votes int

	for _, r := range results {
		if r.Signal == models.SignalNeutral {
			continue
		}
		if signal == models.SignalNeutral {
			signal = r.Signal
		} else if r.Signal != signal {
			return models.StrategyResult{Signal: models.SignalNeutral}
		}
		if r.Confidence < minConf {
			minConf = r.Confidence
		}
		votes++
	}

	if signal == models.SignalNeutral || votes <= len(results)/2 {
		return models.StrategyResult{Signal: models.SignalNeutral}
	}
	return models.StrategyResult{
		Signal:     signal,
		Confidence: minConf,
		Strong:     countStrong(results, signal) == votes && votes > 1,
	}
}

func countStrong(results []models.StrategyResult, signal models.Signal) int {
	var n int
	for _, r := range results {
		if r.Signal == signal && r.Strong {
			n++
		}
	}
	return n
}
