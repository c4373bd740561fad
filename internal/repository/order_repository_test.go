package repository

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"tradebot/internal/models"
)

// ============================================================
// OrderRepository Tests
// ============================================================

func orderColumns() []string {
	return []string{"id", "client_order_id", "exchange_id", "position_id", "symbol", "side", "type", "is_entry", "quantity", "executed_qty", "avg_fill_price", "commission", "status", "error_message", "created_at", "filled_at"}
}

func TestOrderRepositoryCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	order := &models.OrderRecord{
		ClientOrderID: "tb-1700000000000-1",
		ExchangeID:    "12345",
		PositionID:    "pos-BTCUSDT-1",
		Symbol:        "BTCUSDT",
		Side:          "BUY",
		Type:          "MARKET",
		IsEntry:       true,
		Quantity:      0.01,
	}

	mock.ExpectQuery(`INSERT INTO orders`).
		WithArgs("tb-1700000000000-1", "12345", "pos-BTCUSDT-1", "BTCUSDT", "BUY", "MARKET", true, 0.01, 0.0, 0.0, 0.0, models.OrderStatusSubmitted, "", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	repo := NewOrderRepository(db)
	if err := repo.Create(order); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ID != 1 {
		t.Errorf("ID = %d, want 1", order.ID)
	}
	if order.Status != models.OrderStatusSubmitted {
		t.Errorf("Status = %q, want submitted default", order.Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestOrderRepositoryMarkTerminal(t *testing.T) {
	tests := []struct {
		name        string
		status      string
		rowsHit     int64
		expectError error
	}{
		{name: "filled", status: models.OrderStatusFilled, rowsHit: 1},
		{name: "cancelled", status: models.OrderStatusCancelled, rowsHit: 1},
		{name: "unknown order", status: models.OrderStatusFilled, rowsHit: 0, expectError: ErrOrderNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			mock.ExpectExec(`UPDATE orders`).
				WithArgs(tt.status, 0.01, 50000.0, 0.5, "", sqlmock.AnyArg(), "tb-1").
				WillReturnResult(sqlmock.NewResult(0, tt.rowsHit))

			repo := NewOrderRepository(db)
			err = repo.MarkTerminal("tb-1", tt.status, 0.01, 50000, 0.5, "")

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("error = %v, want %v", err, tt.expectError)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestOrderRepositoryGetByClientID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create mock: %v", err)
		}
		defer db.Close()

		now := time.Now()
		rows := sqlmock.NewRows(orderColumns()).
			AddRow(5, "tb-5", "999", "pos-ETHUSDT-2", "ETHUSDT", "SELL", "MARKET", false, 0.5, 0.5, 3000.0, 0.75, models.OrderStatusFilled, "", now, now)

		mock.ExpectQuery(`SELECT (.+) FROM orders`).
			WithArgs("tb-5").
			WillReturnRows(rows)

		repo := NewOrderRepository(db)
		order, err := repo.GetByClientID("tb-5")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.Symbol != "ETHUSDT" || order.IsEntry {
			t.Errorf("unexpected order: %+v", order)
		}
		if order.FilledAt == nil {
			t.Error("FilledAt is nil")
		}
	})

	t.Run("not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create mock: %v", err)
		}
		defer db.Close()

		mock.ExpectQuery(`SELECT (.+) FROM orders`).
			WithArgs("nope").
			WillReturnError(sql.ErrNoRows)

		repo := NewOrderRepository(db)
		if _, err := repo.GetByClientID("nope"); !errors.Is(err, ErrOrderNotFound) {
			t.Errorf("error = %v, want ErrOrderNotFound", err)
		}
	})
}

func TestOrderRepositoryDeleteOlderThan(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	cutoff := time.Now().AddDate(0, -1, 0)
	mock.ExpectExec(`DELETE FROM orders`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 42))

	repo := NewOrderRepository(db)
	n, err := repo.DeleteOlderThan(cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 42 {
		t.Errorf("deleted = %d, want 42", n)
	}
}
