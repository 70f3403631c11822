package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"supmap-navigation/internal/events"
	"supmap-navigation/internal/gis/routing"
	"supmap-navigation/internal/navigation"
)

const (
	// sendChannelSize controls the max number
	// of messages that can be queued for a client.
	sendChannelSize = 64
	// positionBufferSize bounds the samples waiting for the engine.
	positionBufferSize = 32
	pingPeriod         = (60 * 9 * time.Second) / 10
)

var _ navigation.Speaker = (*Client)(nil)

// Client is one device connection. It owns the navigation session of the
// device and implements navigation.Speaker by forwarding announcements.
type Client struct {
	ID      string
	Conn    *websocket.Conn
	Manager *Manager
	send    chan Message
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger

	session      *navigation.Session
	feed         *navigation.PositionFeed
	connectivity *routing.ConnectivityFlag
	provider     *routing.Provider
	closeOnce    sync.Once
}

func NewClient(id string, conn *websocket.Conn, manager *Manager) *Client {
	ctx, cancel := context.WithCancel(manager.ctx)
	c := &Client{
		ID:           id,
		Conn:         conn,
		Manager:      manager,
		send:         make(chan Message, sendChannelSize),
		ctx:          ctx,
		cancel:       cancel,
		logger:       manager.logger.With("clientID", id),
		feed:         navigation.NewPositionFeed(positionBufferSize),
		connectivity: &routing.ConnectivityFlag{},
	}
	c.provider = manager.provider.WithConnectivity(c.connectivity)
	c.session = navigation.NewSession(navigation.SessionOptions{
		ID:      id,
		Config:  manager.engine,
		Router:  c.provider,
		Speaker: c,
		Source:  c.feed,
		Callbacks: navigation.Callbacks{
			OnStepChange:    c.onStepChange,
			OnRouteReplaced: c.onRouteReplaced,
			OnRerouteFailed: c.onRerouteFailed,
		},
		Logger: manager.logger,
	})
	return c
}

func (c *Client) Start() {
	c.session.Subscribe(func(snap navigation.Snapshot) {
		c.sendJSON(TypeSnapshot, snap)
	})
	go c.readPump()
	go c.writePump()
	c.Manager.registerClient(c)
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.session.Stop()
		c.feed.Close()
		if err := c.Conn.Close(websocket.StatusNormalClosure, "bye :P"); err != nil {
			c.logger.Debug("failed to close connection", "error", err)
		}
		c.cancel()
	})
}

func (c *Client) Session() *navigation.Session {
	return c.session
}

func (c *Client) Send(msg Message) {
	select {
	case <-c.ctx.Done():
	case c.send <- msg:
	default:
		c.logger.Warn("send queue full, disconnecting client")
		go c.Manager.forceDisconnect(c)
	}
}

func (c *Client) sendJSON(typ string, data any) {
	msg, err := newMessage(typ, data)
	if err != nil {
		c.logger.Error("failed to marshal message", "type", typ, "error", err)
		return
	}
	c.Send(msg)
}

func (c *Client) sendError(code string, err error) {
	c.sendJSON(TypeError, ErrorPayload{Code: code, Message: err.Error()})
}

// Announce sends the announcement text to the device for speech.
func (c *Client) Announce(text string) error {
	msg, err := newMessage(TypeAnnouncement, AnnouncementPayload{Text: text})
	if err != nil {
		return fmt.Errorf("marshalling announcement: %w", err)
	}
	c.Send(msg)
	return nil
}

// Cancel tells the device to stop ongoing speech.
func (c *Client) Cancel() {
	c.Send(Message{Type: TypeAnnouncementCancel, Data: json.RawMessage("{}")})
}

func (c *Client) readPump() {
	defer func() {
		c.Manager.unregisterClient(c)
		c.Close()
	}()

	for {
		var msg Message
		if err := wsjson.Read(c.ctx, c.Conn, &msg); err != nil {
			c.logger.Debug("stopped reading messages", "error", err)
			break
		}
		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case msg := <-c.send:
			if err := wsjson.Write(c.ctx, c.Conn, msg); err != nil {
				c.logger.Warn("failed to write message", "error", err)
				return
			}
			c.logger.Debug("message sent", "type", msg.Type)
		case <-ticker.C:
			if err := c.Conn.Ping(c.ctx); err != nil {
				c.logger.Debug("failed to ping client", "error", err)
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) handleMessage(msg Message) {
	switch msg.Type {
	case TypeStart:
		var req navigation.RouteRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.logger.Warn("failed to unmarshal start message", "error", err)
			c.sendError(CodeInvalidMessage, err)
			return
		}
		c.startNavigation(req)
	case TypePosition:
		var pos navigation.Position
		if err := json.Unmarshal(msg.Data, &pos); err != nil {
			c.logger.Warn("failed to unmarshal position", "error", err)
			c.sendError(CodeInvalidMessage, err)
			return
		}
		if err := c.Manager.validate.Struct(pos); err != nil {
			c.logger.Debug("dropping invalid position", "error", err)
			c.sendError(CodeInvalidMessage, err)
			return
		}
		if !c.feed.Push(pos) {
			c.logger.Debug("position dropped", "lat", pos.Lat, "lon", pos.Lon)
		}
	case TypeStop:
		c.session.Stop()
	case TypeVoice:
		var payload VoicePayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			c.sendError(CodeInvalidMessage, err)
			return
		}
		c.session.SetVoiceGuidance(payload.Enabled)
	case TypeConnectivity:
		var payload ConnectivityPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			c.sendError(CodeInvalidMessage, err)
			return
		}
		c.connectivity.SetOnline(payload.Online)
		c.logger.Debug("connectivity changed", "online", payload.Online)
	default:
		c.logger.Debug("received unknown type message", "type", msg.Type)
	}
}

// startNavigation computes the initial route. On failure the device gets an
// error message and no navigation starts.
func (c *Client) startNavigation(req navigation.RouteRequest) {
	route, err := c.provider.FetchRoute(c.ctx, req)
	if err != nil {
		c.logger.Warn("failed to compute route", "error", err)
		c.sendError(errorCode(err), err)
		c.Manager.publish(events.Event{Type: events.RouteError, SessionID: c.ID, Error: err.Error()})
		return
	}

	if err := c.session.Start(c.ctx, route, *req.Destination); err != nil {
		c.logger.Warn("failed to start navigation", "error", err)
		c.sendError(errorCode(err), err)
	}
}

func (c *Client) onStepChange(index int, step navigation.Step) {
	c.sendJSON(TypeStep, newStepPayload(index, step))
}

func (c *Client) onRouteReplaced(route *navigation.Route) {
	c.sendJSON(TypeRoute, newRoutePayload(route))
	c.Manager.publish(events.Event{
		Type:      events.RouteReplaced,
		SessionID: c.ID,
		Distance:  route.Distance,
		Duration:  route.Duration,
		Steps:     len(route.Steps),
	})
}

func (c *Client) onRerouteFailed(err error) {
	c.sendJSON(TypeRerouteFailed, ErrorPayload{Code: errorCode(err), Message: err.Error()})
	c.Manager.publish(events.Event{Type: events.RerouteFailed, SessionID: c.ID, Error: err.Error()})
}
