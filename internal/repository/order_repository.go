package repository

import (
	"database/sql"
	"errors"
	"time"

	"tradebot/internal/models"
)

// Ошибки репозитория ордеров
var ErrOrderNotFound = errors.New("order not found")

// OrderRepository - аудит ордеров в таблице orders
//
// Запись создается при отправке ордера на биржу и дописывается по
// достижении терминального статуса. Runtime-состояние живет в памяти
// движка, БД служит только для истории и разбора инцидентов.
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository создает новый экземпляр репозитория
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create создает запись об отправленном ордере
func (r *OrderRepository) Create(order *models.OrderRecord) error {
	query := `
		INSERT INTO orders (client_order_id, exchange_id, position_id, symbol, side, type, is_entry, quantity, executed_qty, avg_fill_price, commission, status, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	if order.Status == "" {
		order.Status = models.OrderStatusSubmitted
	}

	return r.db.QueryRow(
		query,
		order.ClientOrderID,
		order.ExchangeID,
		order.PositionID,
		order.Symbol,
		order.Side,
		order.Type,
		order.IsEntry,
		order.Quantity,
		order.ExecutedQty,
		order.AvgFillPrice,
		order.Commission,
		order.Status,
		order.ErrorMessage,
		order.CreatedAt,
	).Scan(&order.ID)
}

// GetByClientID возвращает ордер по клиентскому идентификатору
func (r *OrderRepository) GetByClientID(clientOrderID string) (*models.OrderRecord, error) {
	query := `
		SELECT id, client_order_id, exchange_id, position_id, symbol, side, type, is_entry, quantity, executed_qty, avg_fill_price, commission, status, error_message, created_at, filled_at
		FROM orders
		WHERE client_order_id = $1`

	order := &models.OrderRecord{}
	err := r.db.QueryRow(query, clientOrderID).Scan(
		&order.ID,
		&order.ClientOrderID,
		&order.ExchangeID,
		&order.PositionID,
		&order.Symbol,
		&order.Side,
		&order.Type,
		&order.IsEntry,
		&order.Quantity,
		&order.ExecutedQty,
		&order.AvgFillPrice,
		&order.Commission,
		&order.Status,
		&order.ErrorMessage,
		&order.CreatedAt,
		&order.FilledAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return order, nil
}

// MarkTerminal дописывает итог исполнения ордера
func (r *OrderRepository) MarkTerminal(clientOrderID, status string, executedQty, avgFillPrice, commission float64, errorMessage string) error {
	query := `
		UPDATE orders
		SET status = $1, executed_qty = $2, avg_fill_price = $3, commission = $4, error_message = $5, filled_at = $6
		WHERE client_order_id = $7`

	var filledAt *time.Time
	if status == models.OrderStatusFilled {
		now := time.Now()
		filledAt = &now
	}

	result, err := r.db.Exec(query, status, executedQty, avgFillPrice, commission, errorMessage, filledAt, clientOrderID)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// GetByPositionID возвращает все ордера позиции
func (r *OrderRepository) GetByPositionID(positionID string) ([]*models.OrderRecord, error) {
	query := `
		SELECT id, client_order_id, exchange_id, position_id, symbol, side, type, is_entry, quantity, executed_qty, avg_fill_price, commission, status, error_message, created_at, filled_at
		FROM orders
		WHERE position_id = $1
		ORDER BY created_at`

	return r.queryOrders(query, positionID)
}

// GetRecent возвращает последние ордера
func (r *OrderRepository) GetRecent(limit int) ([]*models.OrderRecord, error) {
	query := `
		SELECT id, client_order_id, exchange_id, position_id, symbol, side, type, is_entry, quantity, executed_qty, avg_fill_price, commission, status, error_message, created_at, filled_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1`

	return r.queryOrders(query, limit)
}

// DeleteOlderThan удаляет записи старше указанного момента,
// возвращает количество удаленных строк
func (r *OrderRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM orders WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *OrderRepository) queryOrders(query string, args ...interface{}) ([]*models.OrderRecord, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.OrderRecord
	for rows.Next() {
		order := &models.OrderRecord{}
		err := rows.Scan(
			&order.ID,
			&order.ClientOrderID,
			&order.ExchangeID,
			&order.PositionID,
			&order.Symbol,
			&order.Side,
			&order.Type,
			&order.IsEntry,
			&order.Quantity,
			&order.ExecutedQty,
			&order.AvgFillPrice,
			&order.Commission,
			&order.Status,
			&order.ErrorMessage,
			&order.CreatedAt,
			&order.FilledAt,
		)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}
