package handler

import (
	"net/http"
	"time"
	"yorae/internal/logger"
	"yorae/internal/service/session"
	"yorae/internal/service/websocket"

	ws "github.com/gorilla/websocket"
)

const (
	pongWait    = 60 * time.Second
	viewerLimit = 512
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = ws.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler registers a viewer in the hub. The viewer gets the
// current session right away and every change after that.
func ViewWebsocketHandler(hub *websocket.HubService, machine *session.Machine, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(viewerLimit)

		hub.Register(connection)
		defer hub.Unregister(connection)

		hub.Publish(websocket.TypeSession, machine.Snapshot())

		for {
			_, _, err := connection.ReadMessage()
			if err != nil {
				if ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Warning("Viewer disconnected with error: %v", err)
				}
				break
			}
		}
	}
}
