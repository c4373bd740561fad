package handlers

import (
	"net/http"
	"strings"
	"time"

	"tradebot/internal/models"
	"tradebot/internal/service"
)

// NotificationHandler отвечает за журнал событий бота
//
// Endpoints:
// - GET /api/v1/notifications - список уведомлений
// - GET /api/v1/notifications?type=SL&limit=50 - с фильтрацией
// - DELETE /api/v1/notifications?older_than=720h - чистка журнала
//
// Типы уведомлений:
// - ENTRY: открытие позиции
// - EXIT: закрытие позиции
// - SL / TP / TRAILING: срабатывания защитных ордеров
// - CIRCUIT_OPEN / CIRCUIT_CLOSE: circuit breaker
// - REJECTED: вход отклонен риск-гейтом
// - ERROR: ошибка API/ордера
type NotificationHandler struct {
	notificationService service.NotificationServiceInterface
}

// NewNotificationHandler создает новый NotificationHandler с внедрением зависимости
func NewNotificationHandler(notificationService service.NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// GetNotificationsResponse представляет ответ списка уведомлений
type GetNotificationsResponse struct {
	Notifications []*models.Notification `json:"notifications"`
	Total         int                    `json:"total"`
}

// GetNotifications возвращает уведомления с фильтрацией по типу
//
// GET /api/v1/notifications
//
// Query параметры:
// - type (string): один из типов уведомлений (регистр не важен)
// - limit (int): количество записей (по умолчанию 50, максимум 200)
func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	notifType := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("type")))
	limit := parseLimit(r, 50)

	notifications, err := h.notificationService.GetNotifications(notifType, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to get notifications: "+err.Error())
		return
	}
	if notifications == nil {
		notifications = []*models.Notification{}
	}

	respondWithJSON(w, http.StatusOK, GetNotificationsResponse{
		Notifications: notifications,
		Total:         len(notifications),
	})
}

// ClearNotificationsResponse представляет результат чистки журнала
type ClearNotificationsResponse struct {
	Message string `json:"message"`
	Deleted int64  `json:"deleted"`
}

// ClearNotifications удаляет уведомления из журнала
//
// DELETE /api/v1/notifications
//
// Query параметры:
// - older_than (duration): удалить только старше указанного возраста
//   (например 720h); без параметра очищается весь журнал
func (h *NotificationHandler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	var olderThan time.Duration
	if raw := r.URL.Query().Get("older_than"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed < 0 {
			respondWithError(w, http.StatusBadRequest, "invalid older_than: "+raw)
			return
		}
		olderThan = parsed
	}

	deleted, err := h.notificationService.CleanupOld(olderThan)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to clear notifications: "+err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, ClearNotificationsResponse{
		Message: "Журнал уведомлений очищен",
		Deleted: deleted,
	})
}
