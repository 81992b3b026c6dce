package socket

import (
	"context"
	"encoding/json"
	"sync"

	"mdnotes/internal/note/model"
	"mdnotes/pkg/logger"
)

const (
	NoteCreatedType = "NOTE_CREATED" // A note was uploaded and stored

	broadcastBuffer = 64
)

type WSMessage struct {
	Type string            `json:"type"`
	Note model.NoteSummary `json:"note"`
}

// Hub fans out note events to every connected websocket client. Clients only
// receive; the feed carries no per-client state.
type Hub struct {
	clients    map[*Client]bool
	Broadcast  chan WSMessage
	Register   chan *Client
	Unregister chan *Client

	mu    sync.Mutex
	count int
	done  chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		Broadcast:  make(chan WSMessage, broadcastBuffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. It returns when ctx is cancelled, closing
// every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.remove(client)
			}
			return

		case client := <-h.Register:
			h.clients[client] = true
			h.setCount()
			logger.Sugar.Debugf("Feed client %s connected", client.ID)

		case client := <-h.Unregister:
			if h.clients[client] {
				h.remove(client)
				logger.Sugar.Debugf("Feed client %s disconnected", client.ID)
			}

		case msg := <-h.Broadcast:
			payload, err := json.Marshal(msg)
			if err != nil {
				logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
				continue
			}
			for client := range h.clients {
				select {
				case client.Send <- payload:
				default:
					// The client is lagging; drop it rather than block the feed.
					logger.Sugar.Warnf("Client %s's send buffer is full. Unregistering.", client.ID)
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	close(client.Send)
	h.setCount()
}

func (h *Hub) setCount() {
	h.mu.Lock()
	h.count = len(h.clients)
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// NoteCreated queues a NOTE_CREATED event. It never blocks: when the
// broadcast queue is full the event is dropped.
func (h *Hub) NoteCreated(note model.NoteSummary) {
	select {
	case h.Broadcast <- WSMessage{Type: NoteCreatedType, Note: note}:
	default:
		logger.Sugar.Warnf("Broadcast queue full, dropping %s event for note %d", NoteCreatedType, note.ID)
	}
}
