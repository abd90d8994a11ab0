package ws

import (
	"bytes"
	"context"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lefinal/festfinder/errors"
	"go.uber.org/zap"
	"sync"
	"time"
)

const (
	// writeTimeout is the timeout for writing a message to the peer.
	writeTimeout = 10 * time.Second
	// pingInterval is the interval in which pings are sent to the peer. Must be
	// less than pongTimeout.
	pingInterval = (pongTimeout * 9) / 10
	// pongTimeout is the timeout for waiting for the next pong message from the
	// peer. Must be greater than pingInterval.
	pongTimeout = 60 * time.Second
	// maxMessageSize is the maximum message size allowed from peer.
	maxMessageSize = 16384
	// sendBufferSize is the number of outgoing messages that are buffered before
	// messages are dropped.
	sendBufferSize = 256
)

var (
	// newLine is used for separating messages in writer.
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Client holds the websocket connection and is being used by Hub.
type Client struct {
	// ID identifies the client session.
	ID     uuid.UUID
	logger *zap.Logger
	// AcceptLanguage is the Accept-Language header from the upgrade request.
	AcceptLanguage string
	// hub is the actual websocket hub which is used for registering and
	// unregistering.
	hub *Hub
	// connection is the actual websocket connection.
	connection *websocket.Conn
	// Receive receives incoming messages. It is closed when the connection is
	// closed.
	Receive chan []byte
	// send holds outgoing messages for the write pump.
	send chan []byte
	// sendClosed is true after closeSend was called.
	sendClosed bool
	// sendMutex locks send and sendClosed.
	sendMutex sync.Mutex
}

func newClient(logger *zap.Logger, hub *Hub, connection *websocket.Conn) *Client {
	id := uuid.New()
	return &Client{
		ID:         id,
		logger:     logger.With(zap.String("client_id", id.String())),
		hub:        hub,
		connection: connection,
		Receive:    make(chan []byte, sendBufferSize),
		send:       make(chan []byte, sendBufferSize),
	}
}

// Send queues the given message for being written to the peer. If the
// connection is closed or the peer is too slow, an errors.ErrCommunication
// error is returned.
func (c *Client) Send(message []byte) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	if c.sendClosed {
		return errors.Error{
			Code:    errors.ErrCommunication,
			Message: "client connection closed",
		}
	}
	select {
	case c.send <- message:
		return nil
	default:
		return errors.Error{
			Code:    errors.ErrCommunication,
			Message: "send buffer full",
			Details: errors.Details{"buffer_size": sendBufferSize},
		}
	}
}

// closeSend closes the send-channel which leads to stopping the write pump.
func (c *Client) closeSend() {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}

// readPump forwards messages from the websocket connection to Client.Receive.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		close(c.Receive)
		select {
		case <-ctx.Done():
		case c.hub.unregister <- c:
		}
		err := c.connection.Close()
		if err != nil {
			c.logger.Debug("close connection", zap.Error(err))
		}
	}()
	c.connection.SetReadLimit(maxMessageSize)
	_ = c.connection.SetReadDeadline(time.Now().Add(pongTimeout))
	// Handle received pong.
	c.connection.SetPongHandler(func(string) error {
		_ = c.connection.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})
	for {
		// Read next message.
		_, message, err := c.connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("unexpected close", zap.Error(err))
			}
			return
		}
		// Trim.
		message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
		// Forward.
		select {
		case <-ctx.Done():
			c.logger.Warn("dropping message due to ctx done", zap.ByteString("message", message))
			return
		case c.Receive <- message:
		}
	}
}

// writePump forwards outgoing messages to the websocket connection. We do not
// pass a context.Context here because the hub will close the send-channel which
// will lead to termination, anyways.
func (c *Client) writePump() {
	pingTicker := time.NewTicker(pingInterval)
	defer func() {
		// Stop ping ticker in order to avoid ticker leak.
		pingTicker.Stop()
		// Close connection.
		err := c.connection.Close()
		if err != nil {
			c.logger.Debug("close connection", zap.Error(err))
		}
	}()
	for {
		select {
		case message, ok := <-c.send:
			// Set write timeout.
			_ = c.connection.SetWriteDeadline(time.Now().Add(writeTimeout))
			// Check if connection close is requested from hub.
			if !ok {
				err := c.connection.WriteMessage(websocket.CloseMessage, []byte{})
				if err != nil {
					c.logger.Debug("write close message", zap.Error(err))
				}
				return
			}
			// Write message.
			nextWriter, err := c.connection.NextWriter(websocket.TextMessage)
			if err != nil {
				// We expect the read pump to fail as well.
				c.logger.Warn("create writer for text message", zap.Error(err))
				return
			}
			_, err = nextWriter.Write(message)
			if err != nil {
				c.logger.Warn("write text message", zap.Error(err))
			}
			// Close writer.
			if err := nextWriter.Close(); err != nil {
				c.logger.Warn("close next writer", zap.Error(err))
				return
			}
		case <-pingTicker.C:
			// Send ping.
			_ = c.connection.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn("write ping", zap.Error(err))
				return
			}
		}
	}
}
