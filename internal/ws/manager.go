package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-playground/validator/v10"

	"supmap-navigation/internal/events"
	"supmap-navigation/internal/gis/routing"
	"supmap-navigation/internal/navigation"
)

const publishTimeout = 2 * time.Second

type Manager struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
	logger     *slog.Logger

	provider  *routing.Provider
	engine    navigation.Config
	publisher events.Publisher
	validate  *validator.Validate
}

func NewManager(ctx context.Context, logger *slog.Logger, provider *routing.Provider, engine navigation.Config, publisher events.Publisher) *Manager {
	ctx, cancel := context.WithCancel(ctx)
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Manager{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
		provider:   provider,
		engine:     engine,
		publisher:  publisher,
		validate:   validator.New(),
	}
}

func (m *Manager) Start() {
	for {
		select {
		case client := <-m.register:
			m.mu.Lock()
			previous, replaced := m.clients[client.ID]
			m.clients[client.ID] = client
			m.mu.Unlock()
			if replaced && previous != client {
				m.logger.Info("session reconnected, closing previous connection", "clientID", client.ID)
				go previous.Close()
			}
			m.logger.Info("client connected", "clientID", client.ID)
		case client := <-m.unregister:
			m.mu.Lock()
			if current, ok := m.clients[client.ID]; ok && current == client {
				delete(m.clients, client.ID)
				m.logger.Info("client disconnected", "clientID", client.ID)
			}
			m.mu.Unlock()
		case <-m.ctx.Done():
			return
		}
	}
}

// HandleNewConnection attaches a device connection to a new navigation
// session identified by id.
func (m *Manager) HandleNewConnection(id string, conn *websocket.Conn) {
	client := NewClient(id, conn, m)
	client.Start()
}

func (m *Manager) Client(id string) (*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[id]
	return c, ok
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *Manager) registerClient(c *Client) {
	select {
	case m.register <- c:
	case <-m.ctx.Done():
	}
}

func (m *Manager) unregisterClient(c *Client) {
	select {
	case m.unregister <- c:
	case <-m.ctx.Done():
	}
}

func (m *Manager) forceDisconnect(c *Client) {
	c.Close()
}

// publish sends the event without blocking the caller.
func (m *Manager) publish(event events.Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(m.ctx), publishTimeout)
		defer cancel()
		m.publisher.Publish(ctx, event)
	}()
}

func (m *Manager) Shutdown() {
	m.cancel()
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	m.clients = make(map[string]*Client)
	m.mu.Unlock()

	for _, client := range clients {
		client.Close()
	}
}
