package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"tradebot/internal/models"
)

// Ошибки репозитория уведомлений
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository - работа с таблицей notifications
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository создает новый экземпляр репозитория
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create сохраняет уведомление. Meta сериализуется в JSON.
func (r *NotificationRepository) Create(notif *models.Notification) error {
	query := `
		INSERT INTO notifications (timestamp, type, severity, position_id, symbol, message, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	if notif.Timestamp.IsZero() {
		notif.Timestamp = time.Now()
	}

	var metaJSON []byte
	if notif.Meta != nil {
		var err error
		metaJSON, err = json.Marshal(notif.Meta)
		if err != nil {
			return err
		}
	}

	return r.db.QueryRow(
		query,
		notif.Timestamp,
		notif.Type,
		notif.Severity,
		notif.PositionID,
		notif.Symbol,
		notif.Message,
		metaJSON,
	).Scan(&notif.ID)
}

// GetByID возвращает уведомление по ID
func (r *NotificationRepository) GetByID(id int) (*models.Notification, error) {
	query := `
		SELECT id, timestamp, type, severity, position_id, symbol, message, meta
		FROM notifications
		WHERE id = $1`

	notif, err := r.scanNotification(r.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return notif, nil
}

// GetRecent возвращает последние уведомления
func (r *NotificationRepository) GetRecent(limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, timestamp, type, severity, position_id, symbol, message, meta
		FROM notifications
		ORDER BY timestamp DESC
		LIMIT $1`

	return r.queryNotifications(query, limit)
}

// GetByType возвращает последние уведомления указанного типа
func (r *NotificationRepository) GetByType(notifType string, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, timestamp, type, severity, position_id, symbol, message, meta
		FROM notifications
		WHERE type = $1
		ORDER BY timestamp DESC
		LIMIT $2`

	return r.queryNotifications(query, notifType, limit)
}

// DeleteOlderThan удаляет уведомления старше указанного момента
func (r *NotificationRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM notifications WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *NotificationRepository) scanNotification(row rowScanner) (*models.Notification, error) {
	notif := &models.Notification{}
	var metaJSON []byte

	err := row.Scan(
		&notif.ID,
		&notif.Timestamp,
		&notif.Type,
		&notif.Severity,
		&notif.PositionID,
		&notif.Symbol,
		&notif.Message,
		&metaJSON,
	)
	if err != nil {
		return nil, err
	}

	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &notif.Meta); err != nil {
			return nil, err
		}
	}

	return notif, nil
}

func (r *NotificationRepository) queryNotifications(query string, args ...interface{}) ([]*models.Notification, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifs []*models.Notification
	for rows.Next() {
		notif, err := r.scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifs = append(notifs, notif)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return notifs, nil
}
