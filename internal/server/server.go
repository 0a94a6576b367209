package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"trivia-game/internal/config"
	"trivia-game/internal/hub"
	"trivia-game/internal/services"
)

type Server struct {
	config      *config.Config
	hub         *hub.Hub
	gameService *services.GameService
	router      *gin.Engine
	handler     http.Handler
	upgrader    websocket.Upgrader
	httpServer  *http.Server
}

func NewServer(cfg *config.Config, gameHub *hub.Hub, gameService *services.GameService) *Server {
	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
	})

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	server := &Server{
		config:      cfg,
		hub:         gameHub,
		gameService: gameService,
		router:      router,
		handler:     c.Handler(router),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Non-browser clients send no Origin.
				return r.Header.Get("Origin") == "" || c.OriginAllowed(r)
			},
		},
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.health)

	api := s.router.Group("/api/v1")
	{
		api.GET("/rooms", s.listRooms)
		api.GET("/rooms/:code", s.getRoom)
	}

	s.router.GET("/ws", s.handleWebSocket)
}

// Handler returns the router wrapped with CORS handling.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"rooms":       len(s.gameService.Rooms()),
		"connections": s.hub.ConnectionCount(),
	})
}

func (s *Server) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, s.gameService.Rooms())
}

func (s *Server) getRoom(c *gin.Context) {
	room, err := s.gameService.Room(c.Param("code"))
	if errors.Is(err, services.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load room"})
		return
	}
	c.JSON(http.StatusOK, room)
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              ":" + s.config.Port,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("port", s.config.Port).Msg("starting server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}
