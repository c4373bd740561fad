package utils

import "math"

// math.go - числовые утилиты для работы с биржевыми величинами.
// Все функции чистые, без побочных эффектов.

// RoundQtyDown округляет объём ВНИЗ до указанного числа знаков.
//
// Округление вниз гарантирует, что ордер не превысит доступные
// средства и не упрётся в фильтр LOT_SIZE биржи.
func RoundQtyDown(qty float64, precision int) float64 {
	if precision < 0 {
		return qty
	}
	scale := math.Pow(10, float64(precision))
	return math.Floor(qty*scale) / scale
}

// RoundToLotSize округляет значение ВНИЗ до ближайшего кратного lotSize.
// Если lotSize <= 0, возвращает исходное значение.
//
// Примеры:
//   - RoundToLotSize(0.123456, 0.001) = 0.123
//   - RoundToLotSize(1.999, 0.01) = 1.99
func RoundToLotSize(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	return math.Floor(value/lotSize) * lotSize
}

// RoundToTickSize округляет цену до ближайшего кратного tickSize
// (обычное округление, не floor - цена не объём)
func RoundToTickSize(price, tickSize float64) float64 {
	if tickSize <= 0 {
		return price
	}
	return math.Round(price/tickSize) * tickSize
}

// CalculateWeightedAverage возвращает средневзвешенное значение (VWAP).
// При несовпадении длин или нулевой сумме весов возвращает 0.
func CalculateWeightedAverage(values, weights []float64) float64 {
	if len(values) == 0 || len(values) != len(weights) {
		return 0
	}
	var sum, weightSum float64
	for i := range values {
		sum += values[i] * weights[i]
		weightSum += weights[i]
	}
	if weightSum == 0 {
		return 0
	}
	return sum / weightSum
}

// CalculatePNL считает нереализованный PNL позиции.
// side: "long" или "short".
func CalculatePNL(side string, entryPrice, currentPrice, quantity float64) float64 {
	if side == "short" {
		return (entryPrice - currentPrice) * quantity
	}
	return (currentPrice - entryPrice) * quantity
}

// ChangePct возвращает изменение цены в процентах от базовой
func ChangePct(base, current float64) float64 {
	if base == 0 {
		return 0
	}
	return (current - base) / base * 100
}

// Clamp ограничивает значение диапазоном [min, max]
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
