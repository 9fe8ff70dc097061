package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/lox/blackjackd/internal/server" // Reuse message types
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 54 * time.Second
)

// Client plays games against a blackjackd server over WebSocket
type Client struct {
	serverURL string
	token     string
	conn      *websocket.Conn
	send      chan *server.Message
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	pending   map[string]chan *server.Message
	nextID    uint64
	closeOnce sync.Once
}

// NewClient creates a new WebSocket client
func NewClient(serverURL string, logger *log.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		serverURL: serverURL,
		send:      make(chan *server.Message, 16),
		logger:    logger.WithPrefix("client"),
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[string]chan *server.Message),
	}
}

// SetToken sets the bearer token presented when connecting
func (c *Client) SetToken(token string) {
	c.token = token
}

// Connect establishes a WebSocket connection to the server
func (c *Client) Connect(ctx context.Context) error {
	c.logger.Info("Connecting to server", "url", c.serverURL)

	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	// Convert http/https to ws/wss
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"

	var header http.Header
	if c.token != "" {
		header = http.Header{"Authorization": []string{"Bearer " + c.token}}
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn

	go c.readPump()
	go c.writePump()

	c.logger.Info("Connected to server")
	return nil
}

// Close closes the connection. Requests still waiting fail.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
		c.logger.Info("Disconnected from server")
	})
	return err
}

// CreateGame starts a new game owned by ownerID
func (c *Client) CreateGame(ctx context.Context, ownerID string) (*server.GameCreatedData, error) {
	reply, err := c.roundTrip(ctx, server.MessageTypeCreateGame, server.CreateGameData{OwnerID: ownerID})
	if err != nil {
		return nil, err
	}
	if reply.Type != server.MessageTypeGameCreated {
		return nil, fmt.Errorf("unexpected reply %s to create_game", reply.Type)
	}

	var deal server.GameCreatedData
	if err := json.Unmarshal(reply.Data, &deal); err != nil {
		return nil, fmt.Errorf("failed to decode game: %w", err)
	}
	return &deal, nil
}

// Act sends an action ("hit", "stand" or "surrender") for a game. The
// returned update carries the result once the game is finished.
func (c *Client) Act(ctx context.Context, gameID, action string) (*server.HandUpdateData, error) {
	reply, err := c.roundTrip(ctx, server.MessageTypeAction, server.ActionData{GameID: gameID, Action: action})
	if err != nil {
		return nil, err
	}
	if reply.Type != server.MessageTypeHandUpdate {
		return nil, fmt.Errorf("unexpected reply %s to action", reply.Type)
	}

	var update server.HandUpdateData
	if err := json.Unmarshal(reply.Data, &update); err != nil {
		return nil, fmt.Errorf("failed to decode update: %w", err)
	}
	return &update, nil
}

// roundTrip sends a request and waits for the first reply carrying its
// request id. Error replies are returned as *ServerError.
func (c *Client) roundTrip(ctx context.Context, msgType server.MessageType, data interface{}) (*server.Message, error) {
	msg, err := server.NewMessage(msgType, data)
	if err != nil {
		return nil, err
	}

	replies := make(chan *server.Message, 1)
	c.mu.Lock()
	c.nextID++
	msg.RequestID = strconv.FormatUint(c.nextID, 10)
	c.pending[msg.RequestID] = replies
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, msg.RequestID)
		c.mu.Unlock()
	}()

	select {
	case c.send <- msg:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, fmt.Errorf("client closed")
	}

	select {
	case reply := <-replies:
		if reply.Type == server.MessageTypeError {
			return nil, decodeError(reply)
		}
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, fmt.Errorf("client closed")
	}
}

// readPump handles incoming messages from the server
func (c *Client) readPump() {
	defer c.cancel()

	for {
		var msg server.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}

		c.logger.Debug("Received message", "type", msg.Type, "request", msg.RequestID)

		c.mu.Lock()
		replies, ok := c.pending[msg.RequestID]
		if ok {
			// Only the first reply to a request is delivered.
			delete(c.pending, msg.RequestID)
		}
		c.mu.Unlock()

		if ok {
			replies <- &msg
		}
	}
}

// writePump handles outgoing messages to the server
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
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
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
