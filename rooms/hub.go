package rooms

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/Dosada05/tournament-live/models"
)

type subscriber struct {
	sub  models.MatchRoomSubscription
	send chan<- []byte
}

// Hub - реестр комнат живых трансляций. Доставка без гарантий: подписчик с
// полным буфером пропускает сообщение и досинхронизируется по версии.
type Hub struct {
	rooms  map[string]map[*subscriber]bool
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:  make(map[string]map[*subscriber]bool),
		logger: logger,
	}
}

// Subscribe добавляет sink в комнату. После вызова возвращённой функции
// хаб больше не пишет в sink.
func (h *Hub) Subscribe(room string, sub models.MatchRoomSubscription, sink chan<- []byte) func() {
	s := &subscriber{sub: sub, send: sink}

	h.mu.Lock()
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*subscriber]bool)
	}
	h.rooms[room][s] = true
	h.logger.Debug("Client subscribed to room",
		slog.String("room", room), slog.String("connection_id", sub.ConnectionID),
		slog.String("role", string(sub.Role)), slog.Any("team_id", sub.TeamID),
		slog.Int("clients", len(h.rooms[room])))
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.unsubscribe(room, s) })
	}
}

func (h *Hub) unsubscribe(room string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	roomClients, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(roomClients, s)
	if len(roomClients) == 0 {
		delete(h.rooms, room)
		h.logger.Debug("Room closed as it's empty", slog.String("room", room))
	}
}

// Publish рассылает сообщение всем подписчикам комнаты без блокировки.
// Сообщения одной горутины приходят каждому подписчику по порядку.
func (h *Hub) Publish(room string, msg models.LiveMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	roomClients, ok := h.rooms[room]
	if !ok || len(roomClients) == 0 {
		return
	}

	messageBytes, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Error marshalling message for room", slog.String("room", room), slog.String("type", msg.Type), slog.Any("error", err))
		return
	}

	for s := range roomClients {
		select {
		case s.send <- messageBytes:
		default:
			h.logger.Warn("Client send buffer full, message dropped",
				slog.String("room", room), slog.String("connection_id", s.sub.ConnectionID), slog.String("type", msg.Type))
		}
	}
}

// Deliver отправляет одно сообщение одному sink, например состояние после входа.
func (h *Hub) Deliver(sink chan<- []byte, msg models.LiveMessage) bool {
	messageBytes, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Error marshalling direct message", slog.String("type", msg.Type), slog.Any("error", err))
		return false
	}
	select {
	case sink <- messageBytes:
		return true
	default:
		return false
	}
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
