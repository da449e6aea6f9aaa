package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

var (
	ErrConnectionClosed = websocket.ErrCloseSent
	ErrAlreadyRunning   = errors.New("a simulation is already running on this connection")
)

// Connection is one websocket client. It runs at most one batch at a time.
type Connection struct {
	conn      *websocket.Conn
	server    *Server
	send      chan *Message
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu      sync.Mutex
	running context.CancelFunc
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, server *Server) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:   conn,
		server: server,
		send:   make(chan *Message, 256),
		logger: server.logger.WithPrefix("conn"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection and cancels any running batch
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for the client
func (c *Connection) SendMessage(msg *Message) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.logger.Warn("Connection send buffer full, closing connection")
		_ = c.Close() // Ignore close errors
		return ErrConnectionClosed
	}
}

func (c *Connection) sendData(messageType MessageType, requestID string, data any) {
	msg, err := NewMessage(messageType, data, c.server.clock.Now())
	if err != nil {
		c.logger.Error("Failed to create message", "type", messageType, "error", err)
		return
	}
	msg.RequestID = requestID
	if err := c.SendMessage(msg); err != nil {
		c.logger.Debug("Dropped message", "type", messageType, "error", err)
	}
}

// offer queues a message only if the send buffer has room. Progress updates
// are superseded by the next one, so a slow client loses them instead of the
// connection.
func (c *Connection) offer(messageType MessageType, requestID string, data any) bool {
	msg, err := NewMessage(messageType, data, c.server.clock.Now())
	if err != nil {
		c.logger.Error("Failed to create message", "type", messageType, "error", err)
		return false
	}
	msg.RequestID = requestID

	select {
	case <-c.ctx.Done():
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.logger.Debug("Send buffer full, dropping message", "type", messageType)
		return false
	}
}

func (c *Connection) sendError(requestID string, err error) {
	c.sendData(MessageTypeError, requestID, ErrorData{Code: errorCode(err), Message: err.Error()})
}

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }() // Ignore close errors during cleanup

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := c.server.clock.NewTicker(pingPeriod, "conn", "ping")
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Ignore close errors during cleanup
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			c.drain()
			_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

// drain flushes queued messages once the connection starts closing.
func (c *Connection) drain() {
	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}
		default:
			return
		}
	}
}

// handleMessage processes incoming messages from the client
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("Received message", "type", msg.Type, "request", msg.RequestID)

	switch msg.Type {
	case MessageTypeSimulate:
		var req SimulateRequest
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				c.sendData(MessageTypeError, msg.RequestID, ErrorData{Code: "invalid_message", Message: "Failed to parse simulate data"})
				return
			}
		}
		c.handleSimulate(msg.RequestID, req)

	case MessageTypeCancel:
		c.mu.Lock()
		if c.running != nil {
			c.running()
		}
		c.mu.Unlock()

	default:
		c.sendData(MessageTypeError, msg.RequestID, ErrorData{Code: "unknown_message_type", Message: "Unknown message type: " + msg.Type.String()})
	}
}

func (c *Connection) handleSimulate(requestID string, req SimulateRequest) {
	c.mu.Lock()
	if c.running != nil {
		c.mu.Unlock()
		c.sendData(MessageTypeError, requestID, ErrorData{Code: "busy", Message: ErrAlreadyRunning.Error()})
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.running = cancel
	c.mu.Unlock()

	throttle := &throttle{clock: c.server.clock, interval: c.server.config.GetProgressInterval()}
	sim, runs, err := c.server.newSimulator(req, func(done, total int) {
		if throttle.allow(done == total) {
			c.offer(MessageTypeProgress, requestID, ProgressData{Done: done, Total: total})
		}
	})
	if err != nil {
		c.finish(cancel)
		c.sendError(requestID, err)
		return
	}

	id, err := c.server.ids.New()
	if err != nil {
		c.finish(cancel)
		c.sendError(requestID, err)
		return
	}

	cfg := sim.Config()
	c.sendData(MessageTypeAccepted, requestID, AcceptedData{RunID: id, Runs: runs, Policy: cfg.Policy, Draws: cfg.Draws, Seed: cfg.Seed})

	go func() {
		defer c.finish(cancel)
		resp, err := c.server.run(ctx, id, sim, runs)
		if err != nil {
			c.logger.Debug("Simulation ended early", "request", requestID, "error", err)
			c.sendError(requestID, err)
			return
		}
		c.sendData(MessageTypeResult, requestID, resp)
	}()
}

func (c *Connection) finish(cancel context.CancelFunc) {
	cancel()
	c.mu.Lock()
	c.running = nil
	c.mu.Unlock()
}

// throttle limits progress messages to one per interval, always letting the
// final one through.
type throttle struct {
	clock    quartz.Clock
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (t *throttle) allow(force bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now("progress")
	if !force && !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}
