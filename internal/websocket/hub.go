package websocket

import (
	"bytes"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Пул JSON-буферов: Broadcast вызывается на каждый тик открытой
// позиции, аллокации на горячем пути недопустимы
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет всеми активными WebSocket соединениями
//
// Центральный менеджер broadcast-рассылки: позиции, ордера,
// уведомления и счёт уходят всем подключенным UI-клиентам без polling.
//
// Использование:
//  1. hub := NewHub(log)
//  2. go hub.Run()
//  3. hub.BroadcastPositionUpdate(...)
type Hub struct {
	log *zap.Logger

	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Broadcast канал для отправки сообщений всем клиентам
	broadcast chan []byte

	// Регистрация нового клиента
	register chan *Client

	// Отмена регистрации клиента
	unregister chan *Client

	mu sync.RWMutex
}

// NewHub создает новый Hub
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run запускает главный цикл Hub
//
// Должен запускаться в отдельной горутине: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("WebSocket клиент подключен", zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("WebSocket клиент отключен", zap.Int("total", total))

		case message := <-h.broadcast:
			// Копируем список клиентов под коротким RLock, отправляем
			// без блокировки, чтобы не тормозить register/unregister
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Клиент не успевает вычитывать - отключаем
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				total := len(h.clients)
				h.mu.Unlock()
				h.log.Warn("Удалены медленные WebSocket клиенты",
					zap.Int("removed", len(toRemove)),
					zap.Int("total", total))
			}
		}
	}
}

// Broadcast сериализует сообщение и рассылает всем клиентам
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		h.log.Error("Ошибка сериализации broadcast сообщения", zap.Error(err))
		jsonBufferPool.Put(buf)
		return
	}

	// Убираем trailing newline от Encode
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	h.broadcast <- msgCopy
}

// BroadcastPositionUpdate отправляет обновление позиции
func (h *Hub) BroadcastPositionUpdate(positionID string, closed bool, data interface{}) {
	h.Broadcast(&PositionUpdateMessage{
		Type:       MessageTypePositionUpdate,
		PositionID: positionID,
		Closed:     closed,
		Data:       data,
	})
}

// BroadcastOrderUpdate отправляет изменение состояния ордера
func (h *Hub) BroadcastOrderUpdate(data interface{}) {
	h.Broadcast(&OrderUpdateMessage{
		Type: MessageTypeOrderUpdate,
		Data: data,
	})
}

// BroadcastNotification отправляет новое уведомление
func (h *Hub) BroadcastNotification(notification interface{}) {
	h.Broadcast(&NotificationMessage{
		Type: MessageTypeNotification,
		Data: notification,
	})
}

// BroadcastAccountUpdate отправляет состояние счёта
func (h *Hub) BroadcastAccountUpdate(data interface{}) {
	h.Broadcast(&AccountUpdateMessage{
		Type: MessageTypeAccountUpdate,
		Data: data,
	})
}

// BroadcastStatsUpdate отправляет обновление статистики
func (h *Hub) BroadcastStatsUpdate(stats interface{}) {
	h.Broadcast(&StatsUpdateMessage{
		Type: MessageTypeStatsUpdate,
		Data: stats,
	})
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
