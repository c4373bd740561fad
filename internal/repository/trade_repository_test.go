package repository

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"tradebot/internal/models"
)

// ============================================================
// TradeRepository Tests
// ============================================================

func tradeColumns() []string {
	return []string{"id", "position_id", "symbol", "side", "quantity", "entry_price", "exit_price", "realized_pnl", "commission", "strategy", "exit_reason", "opened_at", "closed_at"}
}

func sampleTradeRow(id int, now time.Time) []driverValue {
	return []driverValue{id, "pos-BTCUSDT-1", "BTCUSDT", "LONG", 0.01, 50000.0, 51000.0, 10.0, 0.5, "rsi", models.ExitReasonTakeProfit, now.Add(-time.Hour), now}
}

type driverValue = driver.Value

func addTradeRow(rows *sqlmock.Rows, vals []driverValue) *sqlmock.Rows {
	return rows.AddRow(vals...)
}

func TestTradeRepositoryCreate(t *testing.T) {
	tests := []struct {
		name        string
		trade       *models.TradeRecord
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name: "success",
			trade: &models.TradeRecord{
				PositionID:  "pos-BTCUSDT-1",
				Symbol:      "BTCUSDT",
				Side:        "LONG",
				Quantity:    0.01,
				EntryPrice:  50000,
				ExitPrice:   51000,
				RealizedPnl: 10,
				Commission:  0.5,
				Strategy:    "rsi",
				ExitReason:  models.ExitReasonTakeProfit,
				OpenedAt:    time.Now().Add(-time.Hour),
				ClosedAt:    time.Now(),
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO trades`).
					WithArgs("pos-BTCUSDT-1", "BTCUSDT", "LONG", 0.01, 50000.0, 51000.0, 10.0, 0.5, "rsi", models.ExitReasonTakeProfit, sqlmock.AnyArg(), sqlmock.AnyArg()).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
			},
			expectError: false,
		},
		{
			name: "database error",
			trade: &models.TradeRecord{
				PositionID: "pos-ETHUSDT-2",
				Symbol:     "ETHUSDT",
				Side:       "SHORT",
				ExitReason: models.ExitReasonStopLoss,
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO trades`).
					WillReturnError(errors.New("database error"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewTradeRepository(db)
			err = repo.Create(tt.trade)

			if tt.expectError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.expectError {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if tt.trade.ID != 7 {
					t.Errorf("ID = %d, want 7", tt.trade.ID)
				}
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestTradeRepositoryGetByID(t *testing.T) {
	now := time.Now()

	t.Run("found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create mock: %v", err)
		}
		defer db.Close()

		rows := addTradeRow(sqlmock.NewRows(tradeColumns()), sampleTradeRow(3, now))
		mock.ExpectQuery(`SELECT (.+) FROM trades`).
			WithArgs(3).
			WillReturnRows(rows)

		repo := NewTradeRepository(db)
		trade, err := repo.GetByID(3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if trade.Symbol != "BTCUSDT" || trade.RealizedPnl != 10.0 {
			t.Errorf("unexpected trade: %+v", trade)
		}
	})

	t.Run("not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("failed to create mock: %v", err)
		}
		defer db.Close()

		mock.ExpectQuery(`SELECT (.+) FROM trades`).
			WithArgs(99).
			WillReturnError(sql.ErrNoRows)

		repo := NewTradeRepository(db)
		_, err = repo.GetByID(99)
		if !errors.Is(err, ErrTradeNotFound) {
			t.Errorf("error = %v, want ErrTradeNotFound", err)
		}
	})
}

func TestTradeRepositoryGetRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(tradeColumns())
	rows = addTradeRow(rows, sampleTradeRow(2, now))
	rows = addTradeRow(rows, sampleTradeRow(1, now.Add(-time.Minute)))

	mock.ExpectQuery(`SELECT (.+) FROM trades ORDER BY closed_at DESC`).
		WithArgs(10).
		WillReturnRows(rows)

	repo := NewTradeRepository(db)
	trades, err := repo.GetRecent(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 2 {
		t.Errorf("len = %d, want 2", len(trades))
	}
}

func TestTradeRepositorySumPnlSince(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	since := time.Now().Truncate(24 * time.Hour)
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(realized_pnl\), 0\) FROM trades`).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(-42.5))

	repo := NewTradeRepository(db)
	sum, err := repo.SumPnlSince(since)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum != -42.5 {
		t.Errorf("sum = %v, want -42.5", sum)
	}
}
