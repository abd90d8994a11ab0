package ws

import (
	"context"
	"go.uber.org/zap"
)

// ClientListener provides methods for accepting new clients and unregister
// events.
type ClientListener interface {
	// AcceptClient is called when a new Client connects. It is called in its own
	// goroutine.
	AcceptClient(ctx context.Context, client *Client)
	// SayGoodbyeToClient is called when a Client's connection has been closed.
	SayGoodbyeToClient(ctx context.Context, client *Client)
}

// Hub holds all active clients and manages registration.
type Hub struct {
	logger *zap.Logger
	// clientListener is used for notifying of new clients or unregistered ones.
	clientListener ClientListener
	// clients holds all online clients.
	clients map[*Client]struct{}
	// register receives when a Client wants to register itself.
	register chan *Client
	// unregister receives when a Client wants to unregister itself.
	unregister chan *Client
}

// NewHub creates a new Hub. Start it with Hub.Run.
func NewHub(logger *zap.Logger, clientListener ClientListener) *Hub {
	return &Hub{
		logger:         logger,
		clientListener: clientListener,
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		clients:        make(map[*Client]struct{}),
	}
}

// Run starts the Hub. It blocks until the given context.Context is done. Then
// all remaining clients are disconnected.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				c.closeSend()
				delete(h.clients, c)
			}
			return nil
		case c := <-h.register:
			// Register client.
			h.clients[c] = struct{}{}
			h.logger.Debug("client connected", zap.String("client_id", c.ID.String()))
			go h.clientListener.AcceptClient(ctx, c)
		case c := <-h.unregister:
			// Unregister client.
			if _, ok := h.clients[c]; ok {
				h.clientListener.SayGoodbyeToClient(ctx, c)
				delete(h.clients, c)
				h.logger.Debug("client disconnected", zap.String("client_id", c.ID.String()))
				// Close the send-channel which leads to stopping the write-pump.
				c.closeSend()
			}
		}
	}
}
