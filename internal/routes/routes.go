package routes

import (
	"net/http"
	"os"
	"path/filepath"
	"yorae/internal/config"
	"yorae/internal/handler"
	"yorae/internal/logger"
	"yorae/internal/middleware"
	"yorae/internal/service/camera"
	"yorae/internal/service/chat"
	"yorae/internal/service/session"
	"yorae/internal/service/websocket"

	"github.com/gorilla/mux"
)

// staticHandler serves files from dir and falls back to index.html, so every
// screen of the app loads the same page.
func staticHandler(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))

		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			http.ServeFile(w, r, path)
			return
		}

		index := filepath.Join(dir, "index.html")
		if _, err := os.Stat(index); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, index)
	}
}

// SetupRoutes registers the session, chat, websocket and log endpoints plus
// static file serving, wrapped with the logging middleware.
func SetupRoutes(cfg *config.Config, logger *logger.Logger, machine *session.Machine,
	source *camera.Source, conversation *chat.Conversation, hub *websocket.HubService) http.Handler {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()

	// Session
	api.HandleFunc("/session", handler.GetSessionHandler(machine, logger)).Methods(http.MethodGet)
	api.HandleFunc("/session/image/{kind}", handler.SessionImageHandler(machine)).Methods(http.MethodGet)
	api.HandleFunc("/session/start", handler.TransitionHandler(machine, logger, machine.BeginBeforeCapture)).Methods(http.MethodPost)
	api.HandleFunc("/session/capture", handler.CaptureHandler(machine, source, logger)).Methods(http.MethodPost)
	api.HandleFunc("/session/before", handler.ReplaceBeforeHandler(machine, logger)).Methods(http.MethodPost)
	api.HandleFunc("/session/finish", handler.TransitionHandler(machine, logger, machine.BeginAfterCapture)).Methods(http.MethodPost)
	api.HandleFunc("/session/back", handler.TransitionHandler(machine, logger, machine.Back)).Methods(http.MethodPost)
	api.HandleFunc("/session/reset", handler.TransitionHandler(machine, logger, machine.Reset)).Methods(http.MethodPost)
	api.HandleFunc("/session/cancel", handler.TransitionHandler(machine, logger, machine.RequestCancel)).Methods(http.MethodPost)
	api.HandleFunc("/session/cancel/confirm", handler.TransitionHandler(machine, logger, machine.ConfirmCancel)).Methods(http.MethodPost)
	api.HandleFunc("/session/cancel/dismiss", handler.DismissCancelHandler(machine, logger)).Methods(http.MethodPost)

	// Chat
	api.HandleFunc("/chat/enter", handler.EnterChatHandler(machine, conversation, logger)).Methods(http.MethodPost)
	api.HandleFunc("/chat/messages", handler.GetMessagesHandler(conversation, logger)).Methods(http.MethodGet)
	api.HandleFunc("/chat/messages", handler.SendMessageHandler(machine, conversation, logger)).Methods(http.MethodPost)

	// Websockets
	api.HandleFunc("/view", handler.ViewWebsocketHandler(hub, machine, logger))
	api.HandleFunc("/camera", handler.CameraWebsocketHandler(source, cfg.DefaultCamera, logger))

	// Log endpoints
	router.HandleFunc("/logs/{level}", handler.ShowLogsHandler(logger)).Methods(http.MethodGet)
	router.HandleFunc("/logs/{level}/clear", handler.ClearLogsHandler(logger)).Methods(http.MethodPost)

	// Static files
	router.PathPrefix("/").Handler(staticHandler(cfg.StaticDirectory))

	router.Use(middleware.Recoverer(logger), middleware.RequestLogger(logger))
	return router
}
