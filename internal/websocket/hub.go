package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/vanishmail/vanishmail-backend/internal/models"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeNewMessage  MessageType = "new_message"
	MessageTypeError       MessageType = "error"
)

// WSMessage represents a WebSocket message. Subscriptions are keyed by
// mailbox address; holding the full address is what authorizes the
// subscription, same as the HTTP API.
type WSMessage struct {
	Type    MessageType `json:"type"`
	Address string      `json:"address,omitempty"`
	Message interface{} `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Hub maintains the set of active clients and routes new-message
// notifications to the clients subscribed to each mailbox.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Mailbox subscriptions: address -> set of clients
	subscriptions map[string]map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Subscribe to a mailbox
	subscribe chan *subscriptionRequest

	// Unsubscribe from a mailbox
	unsubscribeMailbox chan *subscriptionRequest

	// Broadcast to mailbox subscribers
	broadcast chan *broadcastMessage

	mu sync.RWMutex

	logger *slog.Logger
}

type subscriptionRequest struct {
	client  *Client
	address string
}

type broadcastMessage struct {
	address string
	message []byte
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:            make(map[*Client]bool),
		subscriptions:      make(map[string]map[*Client]bool),
		register:           make(chan *Client),
		unregister:         make(chan *Client),
		subscribe:          make(chan *subscriptionRequest),
		unsubscribeMailbox: make(chan *subscriptionRequest),
		broadcast:          make(chan *broadcastMessage, 256),
		logger:             logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client registered")
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				// Remove from all subscriptions
				for address, subscribers := range h.subscriptions {
					delete(subscribers, client)
					if len(subscribers) == 0 {
						delete(h.subscriptions, address)
					}
				}
			}
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client unregistered")
			}

		case req := <-h.subscribe:
			h.mu.Lock()
			if h.subscriptions[req.address] == nil {
				h.subscriptions[req.address] = make(map[*Client]bool)
			}
			h.subscriptions[req.address][req.client] = true
			h.mu.Unlock()
			if h.logger != nil {
				h.logger.Debug("client subscribed to mailbox")
			}

		case req := <-h.unsubscribeMailbox:
			h.mu.Lock()
			if subscribers, ok := h.subscriptions[req.address]; ok {
				delete(subscribers, req.client)
				if len(subscribers) == 0 {
					delete(h.subscriptions, req.address)
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			subscribers := h.subscriptions[msg.address]
			for client := range subscribers {
				select {
				case client.send <- msg.message:
				default:
					// Client buffer full, skip
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe subscribes a client to a mailbox
func (h *Hub) Subscribe(client *Client, address string) {
	h.subscribe <- &subscriptionRequest{client: client, address: address}
}

// Unsubscribe unsubscribes a client from a mailbox
func (h *Hub) Unsubscribe(client *Client, address string) {
	h.unsubscribeMailbox <- &subscriptionRequest{client: client, address: address}
}

// NotifyNewMessage broadcasts a new-message notification to the
// mailbox's subscribers. Satisfies the message service's notifier.
func (h *Hub) NotifyNewMessage(address string, summary models.MessageSummary) {
	msg := WSMessage{
		Type:    MessageTypeNewMessage,
		Address: address,
		Message: summary,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("failed to marshal broadcast message", slog.Any("error", err))
		}
		return
	}

	h.broadcast <- &broadcastMessage{
		address: address,
		message: data,
	}
}
