package repository

import (
	"database/sql"
	"errors"
	"time"

	"tradebot/internal/models"
)

// Ошибки репозитория сделок
var ErrTradeNotFound = errors.New("trade not found")

// TradeRepository - работа с таблицей trades
//
// В trades попадают только полностью закрытые позиции. Частичные
// закрытия агрегируются в realized_pnl и commission итоговой записи.
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create записывает завершенную сделку
func (r *TradeRepository) Create(trade *models.TradeRecord) error {
	query := `
		INSERT INTO trades (position_id, symbol, side, quantity, entry_price, exit_price, realized_pnl, commission, strategy, exit_reason, opened_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	if trade.ClosedAt.IsZero() {
		trade.ClosedAt = time.Now()
	}

	return r.db.QueryRow(
		query,
		trade.PositionID,
		trade.Symbol,
		trade.Side,
		trade.Quantity,
		trade.EntryPrice,
		trade.ExitPrice,
		trade.RealizedPnl,
		trade.Commission,
		trade.Strategy,
		trade.ExitReason,
		trade.OpenedAt,
		trade.ClosedAt,
	).Scan(&trade.ID)
}

// GetByID возвращает сделку по ID
func (r *TradeRepository) GetByID(id int) (*models.TradeRecord, error) {
	query := `
		SELECT id, position_id, symbol, side, quantity, entry_price, exit_price, realized_pnl, commission, strategy, exit_reason, opened_at, closed_at
		FROM trades
		WHERE id = $1`

	trade := &models.TradeRecord{}
	err := r.db.QueryRow(query, id).Scan(
		&trade.ID,
		&trade.PositionID,
		&trade.Symbol,
		&trade.Side,
		&trade.Quantity,
		&trade.EntryPrice,
		&trade.ExitPrice,
		&trade.RealizedPnl,
		&trade.Commission,
		&trade.Strategy,
		&trade.ExitReason,
		&trade.OpenedAt,
		&trade.ClosedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}

	return trade, nil
}

// GetRecent возвращает последние сделки
func (r *TradeRepository) GetRecent(limit int) ([]*models.TradeRecord, error) {
	query := `
		SELECT id, position_id, symbol, side, quantity, entry_price, exit_price, realized_pnl, commission, strategy, exit_reason, opened_at, closed_at
		FROM trades
		ORDER BY closed_at DESC
		LIMIT $1`

	return r.queryTrades(query, limit)
}

// GetBySymbol возвращает последние сделки по символу
func (r *TradeRepository) GetBySymbol(symbol string, limit int) ([]*models.TradeRecord, error) {
	query := `
		SELECT id, position_id, symbol, side, quantity, entry_price, exit_price, realized_pnl, commission, strategy, exit_reason, opened_at, closed_at
		FROM trades
		WHERE symbol = $1
		ORDER BY closed_at DESC
		LIMIT $2`

	return r.queryTrades(query, symbol, limit)
}

// GetByPeriod возвращает сделки, закрытые в интервале [from, to)
func (r *TradeRepository) GetByPeriod(from, to time.Time) ([]*models.TradeRecord, error) {
	query := `
		SELECT id, position_id, symbol, side, quantity, entry_price, exit_price, realized_pnl, commission, strategy, exit_reason, opened_at, closed_at
		FROM trades
		WHERE closed_at >= $1 AND closed_at < $2
		ORDER BY closed_at DESC`

	return r.queryTrades(query, from, to)
}

// SumPnlSince возвращает суммарный реализованный PNL с указанного
// момента. Используется при старте для восстановления дневного лимита.
func (r *TradeRepository) SumPnlSince(since time.Time) (float64, error) {
	query := `SELECT COALESCE(SUM(realized_pnl), 0) FROM trades WHERE closed_at >= $1`

	var sum float64
	if err := r.db.QueryRow(query, since).Scan(&sum); err != nil {
		return 0, err
	}
	return sum, nil
}

// Count возвращает общее количество сделок
func (r *TradeRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM trades`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *TradeRepository) queryTrades(query string, args ...interface{}) ([]*models.TradeRecord, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*models.TradeRecord
	for rows.Next() {
		trade := &models.TradeRecord{}
		err := rows.Scan(
			&trade.ID,
			&trade.PositionID,
			&trade.Symbol,
			&trade.Side,
			&trade.Quantity,
			&trade.EntryPrice,
			&trade.ExitPrice,
			&trade.RealizedPnl,
			&trade.Commission,
			&trade.Strategy,
			&trade.ExitReason,
			&trade.OpenedAt,
			&trade.ClosedAt,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return trades, nil
}
