package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lox/blackjackd/internal/auth"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var (
	ErrConnectionClosed = websocket.ErrCloseSent
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	conn      *websocket.Conn
	send      chan *Message
	server    *Server
	logger    zerolog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	sendMu    sync.Mutex
	closed    bool
	identity  *auth.Identity
}

// NewConnection wraps conn. The connection ends when parent is cancelled.
func NewConnection(parent context.Context, conn *websocket.Conn, server *Server) *Connection {
	ctx, cancel := context.WithCancel(parent)

	return &Connection{
		conn:   conn,
		send:   make(chan *Message, 256),
		server: server,
		logger: server.logger.With().Str("remote", conn.RemoteAddr().String()).Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		c.sendMu.Lock()
		c.closed = true
		close(c.send)
		c.sendMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for the client
func (c *Connection) SendMessage(msg *Message) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.send <- msg:
		return nil
	default:
		c.logger.Warn().Msg("Connection send buffer full, closing connection")
		go func() { _ = c.Close() }()
		return ErrConnectionClosed
	}
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
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error().Err(err).Msg("WebSocket error")
			}
			return
		}
		c.handleMessage(data)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Ignore close errors during cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error().Err(err).Msg("Failed to write message")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage processes one inbound message. Replies carry the request
// id of the message they answer.
func (c *Connection) handleMessage(data []byte) {
	msg, err := c.server.validator.ValidateMessage(data)
	requestID := ""
	if msg != nil {
		requestID = msg.RequestID
	}
	if err != nil {
		c.sendError(requestID, requestError(err))
		return
	}

	c.logger.Debug().Str("type", msg.Type.String()).Str("request_id", requestID).Msg("Received message")

	switch msg.Type {
	case MessageTypeCreateGame:
		var req CreateGameData
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.sendError(requestID, requestError(err))
			return
		}
		owner, err := claimOwner(c.identity, req.OwnerID)
		if err != nil {
			c.sendError(requestID, err)
			return
		}
		deal, err := c.server.manager.CreateGame(c.ctx, owner)
		if err != nil {
			c.sendError(requestID, err)
			return
		}
		c.reply(requestID, MessageTypeGameCreated, deal)

	case MessageTypeAction:
		var req ActionData
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.sendError(requestID, requestError(err))
			return
		}
		update, err := c.server.act(c.ctx, req.GameID, req.Action)
		if err != nil {
			c.sendError(requestID, err)
			return
		}
		c.reply(requestID, MessageTypeHandUpdate, NewHandUpdate(update))
		if update.Finished() {
			c.reply(requestID, MessageTypeGameResult, update.Result)
		}
	}
}

func (c *Connection) reply(requestID string, messageType MessageType, data interface{}) {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		c.logger.Error().Err(err).Str("type", messageType.String()).Msg("Failed to create message")
		return
	}
	msg.RequestID = requestID
	if err := c.SendMessage(msg); err != nil {
		c.logger.Debug().Err(err).Msg("Dropped message for closed connection")
	}
}

// sendError sends an error message to the client
func (c *Connection) sendError(requestID string, err error) {
	if StatusFor(err) >= 500 {
		c.logger.Error().Err(err).Msg("Request failed")
	}
	c.reply(requestID, MessageTypeError, NewErrorData(err))
}
