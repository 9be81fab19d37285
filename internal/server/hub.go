package server

import (
	"context"
	"encoding/json"
	"sync"

	"market-maker-simulator/internal/ledger"
	"market-maker-simulator/internal/trader"

	"go.uber.org/zap"
)

// Hub fans cycle reports out to websocket clients. A client that falls behind loses messages
// instead of slowing the bot down.
type Hub struct {
	mutex   sync.Mutex
	clients map[chan []byte]struct{}
	logger  *zap.Logger
}

type reportMessage struct {
	Report *trader.Report `json:"report"`
	Status ledger.Status  `json:"status"`
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{clients: make(map[chan []byte]struct{}), logger: logger}
}

func (h *Hub) HandleReport(ctx context.Context, report *trader.Report, status ledger.Status) {
	payload, err := json.Marshal(reportMessage{Report: report, Status: status})
	if err != nil {
		h.logger.Error("Failed to marshal cycle report: " + err.Error())
		return
	}
	h.broadcast(payload)
}

func (h *Hub) broadcast(payload []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		select {
		case client <- payload:
		default:
			h.logger.Warn("Websocket client too slow, dropping report")
		}
	}
}

func (h *Hub) subscribe() chan []byte {
	client := make(chan []byte, 16)
	h.mutex.Lock()
	h.clients[client] = struct{}{}
	h.mutex.Unlock()
	return client
}

func (h *Hub) unsubscribe(client chan []byte) {
	h.mutex.Lock()
	delete(h.clients, client)
	h.mutex.Unlock()
}

func (h *Hub) clientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}
