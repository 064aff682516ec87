package handler

import (
	"net/http"
	"time"
	"yorae/internal/logger"
	"yorae/internal/service/camera"

	ws "github.com/gorilla/websocket"
)

// CameraWebsocketHandler receives frames from a device camera. Every binary
// message is one complete JPEG frame; ?id= names the camera.
func CameraWebsocketHandler(source *camera.Source, defaultCamera string, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cameraName := r.URL.Query().Get("id")
		if cameraName == "" {
			cameraName = defaultCamera
		}

		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		defer connection.Close()

		connection.SetReadLimit(MaxUploadSize)
		connection.SetReadDeadline(time.Now().Add(pongWait))
		connection.SetPongHandler(func(string) error {
			connection.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})

		logger.Info("Camera connected: %s", cameraName)

		for {
			msgType, msg, err := connection.ReadMessage()
			if err != nil {
				if ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
					logger.Info("Camera %s disconnected", cameraName)
				} else {
					logger.Warning("Camera %s disconnected with error: %v", cameraName, err)
				}
				return
			}
			connection.SetReadDeadline(time.Now().Add(pongWait))

			if msgType != ws.BinaryMessage {
				continue
			}
			source.Push(cameraName, msg)
		}
	}
}
