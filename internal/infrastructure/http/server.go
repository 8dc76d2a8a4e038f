package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	chatapp "github.com/nutrisnap/v2/internal/application/chat"
	"github.com/nutrisnap/v2/internal/bus"
	"github.com/nutrisnap/v2/internal/infrastructure/config"
)

// Server is the HTTP facade.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer builds the engine and the route table.
func NewServer(cfg *config.Config, b *bus.Bus, hub *chatapp.ConnectionHub, logger *zap.Logger) *Server {
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	log := logger.Named("http")
	engine := gin.New()
	engine.Use(Recovery(log), RequestLogger(log))

	h := &handlers{bus: b}
	ws := &chatSocket{bus: b, hub: hub, logger: log}

	v1 := engine.Group("/v1")
	{
		v1.POST("/users", h.createUser)
		v1.GET("/users/me", h.getUser)
		v1.POST("/users/me/onboarding", h.completeOnboarding)
		v1.GET("/users/me/profile", h.getProfile)
		v1.PUT("/users/me/profile", h.updateProfile)
		v1.GET("/users/me/notification-prefs", h.getNotificationPrefs)
		v1.PUT("/users/me/notification-prefs", h.updateNotificationPrefs)
		v1.POST("/users/me/fcm-tokens", h.registerFcmToken)

		v1.POST("/meals/image", h.uploadMealImage)
		v1.POST("/meals", h.createManualMeal)
		v1.GET("/meals", h.listMealsByDate)
		v1.GET("/meals/summary", h.getDailySummary)
		v1.GET("/meals/:id", h.getMeal)
		v1.PATCH("/meals/:id", h.editMeal)
		v1.DELETE("/meals/:id", h.deleteMeal)

		v1.POST("/suggestions", h.generateSuggestions)
		v1.GET("/suggestions/:sessionID", h.getSession)
		v1.GET("/suggestions/:sessionID/history", h.getSessionHistory)
		v1.POST("/suggestions/:sessionID/regenerate", h.regenerateSuggestions)
		v1.POST("/suggestions/:sessionID/accept", h.acceptSuggestion)
		v1.POST("/suggestions/:sessionID/reject", h.rejectSuggestion)
		v1.DELETE("/suggestions/:sessionID", h.discardSession)

		v1.POST("/chat/messages", h.sendChatMessage)
		v1.GET("/chat/threads", h.listThreads)
		v1.GET("/chat/threads/:id", h.getThread)
		v1.POST("/chat/threads/:id/archive", h.archiveThread)
		v1.GET("/chat/ws", ws.serve)
	}

	return &Server{
		srv: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		logger: log,
	}
}

// Start blocks serving requests until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
