package repository

import (
	"database/sql"

	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

// StatsRepository - агрегация статистики из таблицы trades
//
// Отдельной таблицы статистики нет: все агрегаты считаются запросами,
// периоды день/неделя/месяц отсчитываются от текущего момента.
type StatsRepository struct {
	db *sql.DB
}

// NewStatsRepository создает новый экземпляр репозитория
func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// GetStats возвращает полную агрегированную статистику
func (r *StatsRepository) GetStats() (*models.Stats, error) {
	stats := &models.Stats{}

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(realized_pnl), 0),
			COUNT(*) FILTER (WHERE closed_at >= $1),
			COALESCE(SUM(realized_pnl) FILTER (WHERE closed_at >= $1), 0),
			COUNT(*) FILTER (WHERE closed_at >= $2),
			COALESCE(SUM(realized_pnl) FILTER (WHERE closed_at >= $2), 0),
			COUNT(*) FILTER (WHERE closed_at >= $3),
			COALESCE(SUM(realized_pnl) FILTER (WHERE closed_at >= $3), 0),
			COUNT(*) FILTER (WHERE realized_pnl > 0),
			COUNT(*) FILTER (WHERE realized_pnl < 0),
			COUNT(*) FILTER (WHERE exit_reason = $4),
			COUNT(*) FILTER (WHERE exit_reason = $5),
			COUNT(*) FILTER (WHERE exit_reason = $6)
		FROM trades`

	err := r.db.QueryRow(
		query,
		utils.GetDayStart(),
		utils.GetWeekStart(),
		utils.GetMonthStart(),
		models.ExitReasonStopLoss,
		models.ExitReasonTrailingStop,
		models.ExitReasonTakeProfit,
	).Scan(
		&stats.TotalTrades,
		&stats.TotalPnl,
		&stats.TodayTrades,
		&stats.TodayPnl,
		&stats.WeekTrades,
		&stats.WeekPnl,
		&stats.MonthTrades,
		&stats.MonthPnl,
		&stats.WinTrades,
		&stats.LossTrades,
		&stats.StopLossHits,
		&stats.TrailingHits,
		&stats.TakeProfitHits,
	)
	if err != nil {
		return nil, err
	}

	if closed := stats.WinTrades + stats.LossTrades; closed > 0 {
		stats.WinRate = float64(stats.WinTrades) / float64(closed) * 100
	}

	if stats.TopSymbolsByTrades, err = r.topSymbols(`
		SELECT symbol, COUNT(*)::float8 AS value
		FROM trades
		GROUP BY symbol
		ORDER BY value DESC
		LIMIT 5`); err != nil {
		return nil, err
	}

	if stats.TopSymbolsByProfit, err = r.topSymbols(`
		SELECT symbol, SUM(realized_pnl) AS value
		FROM trades
		GROUP BY symbol
		HAVING SUM(realized_pnl) > 0
		ORDER BY value DESC
		LIMIT 5`); err != nil {
		return nil, err
	}

	if stats.TopSymbolsByLoss, err = r.topSymbols(`
		SELECT symbol, SUM(realized_pnl) AS value
		FROM trades
		GROUP BY symbol
		HAVING SUM(realized_pnl) < 0
		ORDER BY value ASC
		LIMIT 5`); err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *StatsRepository) topSymbols(query string) ([]models.SymbolStat, error) {
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.SymbolStat
	for rows.Next() {
		var s models.SymbolStat
		if err := rows.Scan(&s.Symbol, &s.Value); err != nil {
			return nil, err
		}
		result = append(result, s)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
