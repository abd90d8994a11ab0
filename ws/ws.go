package ws

import (
	"context"
	"github.com/gorilla/websocket"
	"github.com/lefinal/festfinder/errors"
	"net/http"
)

// HandleWS handles websocket requests. The passed context is used in order to
// stop all remaining read-pumps.
func HandleWS(ctx context.Context, hub *Hub) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			errors.Log(hub.logger, errors.NewBadRequestErr("upgrade websocket connection", err, nil))
			return
		}
		client := newClient(hub.logger, hub, conn)
		client.AcceptLanguage = r.Header.Get("Accept-Language")
		// Use the client's hub so that the reference from the handler can be dropped.
		select {
		case <-ctx.Done():
			_ = conn.Close()
			return
		case client.hub.register <- client:
		}
		// Power the pumps.
		go client.writePump()
		go client.readPump(ctx)
	}
}
