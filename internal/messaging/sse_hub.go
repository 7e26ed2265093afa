package messaging

import (
	"sync"

	"prakriti-service/internal/model"

	"github.com/google/uuid"
)

const (
	clientBuffer    = 10
	broadcastBuffer = 100
)

type SSEClient struct {
	UserID  uuid.UUID
	Channel chan *model.Notification
}

// SSEHub fans notifications out to the live streams of their recipient.
type SSEHub struct {
	clients    map[uuid.UUID][]*SSEClient
	register   chan *SSEClient
	unregister chan *SSEClient
	broadcast  chan *model.Notification
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients:    make(map[uuid.UUID][]*SSEClient),
		register:   make(chan *SSEClient),
		unregister: make(chan *SSEClient),
		broadcast:  make(chan *model.Notification, broadcastBuffer),
		done:       make(chan struct{}),
	}
}

func (h *SSEHub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for id, clients := range h.clients {
				for _, c := range clients {
					close(c.Channel)
				}
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			userClients := h.clients[client.UserID]
			for i, c := range userClients {
				if c == client {
					h.clients[client.UserID] = append(userClients[:i], userClients[i+1:]...)
					close(client.Channel)
					break
				}
			}
			if len(h.clients[client.UserID]) == 0 {
				delete(h.clients, client.UserID)
			}
			h.mu.Unlock()

		case notification := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients[notification.UserID] {
				select {
				case client.Channel <- notification:
				default:
					// slow reader, drop
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Stop ends Run and closes every client channel.
func (h *SSEHub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *SSEHub) RegisterClient(userID uuid.UUID) *SSEClient {
	client := &SSEClient{
		UserID:  userID,
		Channel: make(chan *model.Notification, clientBuffer),
	}
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Channel)
	}
	return client
}

func (h *SSEHub) UnregisterClient(client *SSEClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// SendToUser queues n for delivery. It never blocks; when the hub is
// backed up the live push is skipped and the stored notification remains.
func (h *SSEHub) SendToUser(n *model.Notification) {
	select {
	case h.broadcast <- n:
	default:
	}
}

// ClientCount reports the number of live streams for userID.
func (h *SSEHub) ClientCount(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
