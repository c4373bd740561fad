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
// NotificationRepository Tests
// ============================================================

func TestNotificationRepositoryCreate(t *testing.T) {
	posID := "pos-BTCUSDT-1"

	tests := []struct {
		name        string
		notif       *models.Notification
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name: "success without meta",
			notif: &models.Notification{
				Type:       models.NotificationTypeEntry,
				Severity:   models.SeverityInfo,
				PositionID: &posID,
				Symbol:     "BTCUSDT",
				Message:    "Position opened",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO notifications`).
					WithArgs(sqlmock.AnyArg(), models.NotificationTypeEntry, models.SeverityInfo, &posID, "BTCUSDT", "Position opened", []byte(nil)).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
			},
		},
		{
			name: "success with meta",
			notif: &models.Notification{
				Type:     models.NotificationTypeError,
				Severity: models.SeverityError,
				Symbol:   "ETHUSDT",
				Message:  "API error",
				Meta:     map[string]interface{}{"code": 400},
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO notifications`).
					WithArgs(sqlmock.AnyArg(), models.NotificationTypeError, models.SeverityError, (*string)(nil), "ETHUSDT", "API error", sqlmock.AnyArg()).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
			},
		},
		{
			name: "database error",
			notif: &models.Notification{
				Type:     models.NotificationTypeSL,
				Severity: models.SeverityWarn,
				Message:  "Stop loss triggered",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO notifications`).
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

			repo := NewNotificationRepository(db)
			err = repo.Create(tt.notif)

			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unfulfilled expectations: %v", err)
			}
		})
	}
}

func TestNotificationRepositoryGetRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	posID := "pos-BTCUSDT-1"
	cols := []string{"id", "timestamp", "type", "severity", "position_id", "symbol", "message", "meta"}
	rows := sqlmock.NewRows(cols).
		AddRow(2, now, models.NotificationTypeExit, models.SeverityInfo, &posID, "BTCUSDT", "Closed", []byte(`{"pnl": 10.5}`)).
		AddRow(1, now.Add(-time.Minute), models.NotificationTypeEntry, models.SeverityInfo, &posID, "BTCUSDT", "Opened", nil)

	mock.ExpectQuery(`SELECT (.+) FROM notifications`).
		WithArgs(20).
		WillReturnRows(rows)

	repo := NewNotificationRepository(db)
	notifs, err := repo.GetRecent(20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifs) != 2 {
		t.Fatalf("len = %d, want 2", len(notifs))
	}
	if notifs[0].Meta["pnl"] != 10.5 {
		t.Errorf("meta pnl = %v, want 10.5", notifs[0].Meta["pnl"])
	}
	if notifs[1].Meta != nil {
		t.Errorf("meta = %v, want nil", notifs[1].Meta)
	}
}

func TestNotificationRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`SELECT (.+) FROM notifications`).
		WithArgs(404).
		WillReturnError(sql.ErrNoRows)

	repo := NewNotificationRepository(db)
	if _, err := repo.GetByID(404); !errors.Is(err, ErrNotificationNotFound) {
		t.Errorf("error = %v, want ErrNotificationNotFound", err)
	}
}

func TestNotificationRepositoryDeleteOlderThan(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	cutoff := time.Now().AddDate(0, 0, -30)
	mock.ExpectExec(`DELETE FROM notifications`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 15))

	repo := NewNotificationRepository(db)
	n, err := repo.DeleteOlderThan(cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 15 {
		t.Errorf("deleted = %d, want 15", n)
	}
}
