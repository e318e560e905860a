package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/entity"
)

// TurnProcessor is the narrow surface the HTTP layer drives turns
// through. Satisfied by *application.Orchestrator — kept as an
// interface here (rather than importing internal/application directly)
// since application already imports this package to build the server.
type TurnProcessor interface {
	Process(ctx context.Context, turn *entity.Turn) (string, error)
}

// Server is the HTTP ingress for channels other than Telegram: a generic
// webhook/REST entry point driving the same turn orchestrator.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// Config HTTP server configuration.
type Config struct {
	Host string
	Port int
	Mode string // debug, production
}

// NewServer builds the gin-based HTTP server wired to proc.
func NewServer(cfg Config, proc TurnProcessor, logger *zap.Logger) *Server {
	if cfg.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logger))

	setupRoutes(router, proc, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		server: &http.Server{Addr: addr, Handler: router},
		logger: logger,
	}
}

// Start runs the server in the background.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting HTTP server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}

type turnRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text" binding:"required"`
}

type turnResponse struct {
	Reply string `json:"reply"`
}

func setupRoutes(router *gin.Engine, proc TurnProcessor, logger *zap.Logger) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Unix()})
	})

	v1 := router.Group("/api/v1")
	{
		// turns lets any webhook-style channel (not just Telegram) drive
		// the same per-user flow gates and agent loop as the bot.
		v1.POST("/turns", func(c *gin.Context) {
			var req turnRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			chatID := req.ChatID
			if chatID == 0 {
				chatID = req.UserID
			}
			turn, err := entity.NewTurn(uuid.NewString(), req.UserID, chatID, entity.OriginText, req.Text, time.Now().UTC(), "")
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			reply, err := proc.Process(c.Request.Context(), turn)
			if err != nil {
				logger.Error("turn processing failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			c.JSON(http.StatusOK, turnResponse{Reply: reply})
		})
	}
}

func ginLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
