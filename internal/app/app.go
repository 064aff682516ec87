package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"yorae/internal/config"
	"yorae/internal/logger"
	"yorae/internal/repository/sqlite"
	"yorae/internal/routes"
	"yorae/internal/service/camera"
	"yorae/internal/service/chat"
	"yorae/internal/service/photo"
	"yorae/internal/service/session"
	"yorae/internal/service/websocket"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config       *config.Config
	logger       *logger.Logger
	db           *sqlite.DB
	machine      *session.Machine
	source       *camera.Source
	conversation *chat.Conversation
	hubService   *websocket.HubService
}

// NewApp wires every service and restores the persisted session.
func NewApp(cfg *config.Config, debug bool) (*App, error) {
	log, err := logger.New(cfg.LogDirectory, debug)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Close()
		return nil, err
	}

	normalizer := photo.NewNormalizer(cfg.NormalizeMaxWidth, cfg.NormalizeQuality, log)
	compositor := photo.NewCompositor(photo.CompositorOptions{
		Target:   cfg.CompositeTarget,
		Quality:  cfg.CompositeQuality,
		Locale:   cfg.LabelLocale,
		Rounded:  cfg.LabelRounded,
		FontPath: cfg.FontPath,
	}, log)

	machine := session.NewMachine(sqlite.NewSessionRepository(db), normalizer, compositor, log, session.Options{
		MinDurationMinutes: cfg.MinDurationMinutes,
	})

	hub := websocket.NewHubService(log)
	machine.OnChange(func(s session.Snapshot) {
		hub.Publish(websocket.TypeSession, s)
	})

	if cfg.GeminiAPIKey == "" {
		log.Warning("GEMINI_API_KEY is not set, chat replies will fall back to the apology")
	}
	conversation := chat.NewConversation(chat.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel), cfg.ChatTimeout, log)

	a := &App{
		config:       cfg,
		logger:       log,
		db:           db,
		machine:      machine,
		source:       camera.NewSource(cfg.DefaultCamera, cfg.MaxFrameAge, hub, log),
		conversation: conversation,
		hubService:   hub,
	}

	machine.Restore()
	return a, nil
}

// Run serves HTTP, the viewer hub and the optional UDP camera ingress until
// ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	router := routes.SetupRoutes(a.config, a.logger, a.machine, a.source, a.conversation, a.hubService)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hubService.Run(ctx)
		return nil
	})

	if a.config.CameraUDPPort > 0 {
		ingress := camera.NewUDPIngress(a.source, a.config.CameraNames, a.logger)
		g.Go(func() error {
			return ingress.ListenAndServe(ctx, a.config.CameraUDPPort)
		})
	}

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	fmt.Printf("🧹 Yorae\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("💾 Database: %s\n", a.config.DatabasePath)
	fmt.Printf("📋 Stage: %s\n", a.machine.Stage())

	err := g.Wait()
	if err != nil {
		a.logger.Error("Server stopped: %v", err)
	} else {
		a.logger.Info("Server stopped")
	}
	return err
}

func (a *App) close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close database: %v", err)
	}
	a.logger.Close()
}
