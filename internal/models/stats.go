package models

import "time"

// Stats представляет агрегированную статистику торговли
type Stats struct {
	TotalTrades   int     `json:"total_trades"`
	TotalPnl      float64 `json:"total_pnl"`
	TodayTrades   int     `json:"today_trades"`
	TodayPnl      float64 `json:"today_pnl"`
	WeekTrades    int     `json:"week_trades"`
	WeekPnl       float64 `json:"week_pnl"`
	MonthTrades   int     `json:"month_trades"`
	MonthPnl      float64 `json:"month_pnl"`
	WinTrades     int     `json:"win_trades"`
	LossTrades    int     `json:"loss_trades"`
	WinRate       float64 `json:"win_rate"` // 0-100%
	StopLossHits  int     `json:"stop_loss_hits"`
	TrailingHits  int     `json:"trailing_hits"`
	TakeProfitHits int    `json:"take_profit_hits"`

	TopSymbolsByTrades []SymbolStat `json:"top_symbols_by_trades"` // топ-5
	TopSymbolsByProfit []SymbolStat `json:"top_symbols_by_profit"` // топ-5
	TopSymbolsByLoss   []SymbolStat `json:"top_symbols_by_loss"`   // топ-5
}

// SymbolStat представляет статистику по символу
type SymbolStat struct {
	Symbol string  `json:"symbol"`
	Value  float64 `json:"value"` // количество сделок или PNL
}

// AccountSnapshot - снимок состояния счёта для UI
type AccountSnapshot struct {
	Balance       float64   `json:"balance"`
	Equity        float64   `json:"equity"`
	MarginUsed    float64   `json:"margin_used"`
	FreeMargin    float64   `json:"free_margin"`
	UnrealizedPnl float64   `json:"unrealized_pnl"`
	OpenPositions int       `json:"open_positions"`
	Timestamp     time.Time `json:"timestamp"`
}
