// Package api is the HTTP and websocket surface over the chat, auth,
// media, and synchronization layers.
package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/joeldelcastillo/verndale-chat-app/internal/auth"
	"github.com/joeldelcastillo/verndale-chat-app/internal/chat"
	"github.com/joeldelcastillo/verndale-chat-app/internal/config"
	"github.com/joeldelcastillo/verndale-chat-app/internal/media"
	"github.com/joeldelcastillo/verndale-chat-app/internal/presence"
	"github.com/joeldelcastillo/verndale-chat-app/internal/store"
)

type Server struct {
	cfg      *config.Config
	log      *zap.SugaredLogger
	auth     *auth.Service
	chat     *chat.Service
	media    *media.Service
	cols     *store.Collections
	presence *presence.Tracker
	tokens   *auth.TokenManager
	app      *fiber.App
}

func NewServer(
	cfg *config.Config,
	log *zap.SugaredLogger,
	authSvc *auth.Service,
	chatSvc *chat.Service,
	mediaSvc *media.Service,
	cols *store.Collections,
	tracker *presence.Tracker,
	tokens *auth.TokenManager,
	rdb *redis.Client,
) *Server {
	s := &Server{
		cfg:      cfg,
		log:      log,
		auth:     authSvc,
		chat:     chatSvc,
		media:    mediaSvc,
		cols:     cols,
		presence: tracker,
		tokens:   tokens,
		app:      fiber.New(),
	}

	s.app.Use(logger.New())
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := s.app.Group("/v1")

	authLimiter := NewRateLimiter(rdb, cfg.Redis.Prefix+":ratelimit:auth", 20, time.Minute)
	authGroup := v1.Group("/auth", authLimiter.MiddlewareByKey(func(c *fiber.Ctx) string { return c.IP() }))
	authGroup.Post("/register", s.register)
	authGroup.Post("/login", s.login)

	v1.Get("/ws", websocket.New(s.handleWS))

	protected := v1.Group("", JWTAuth(tokens))
	protected.Post("/auth/logout", s.logout)
	protected.Get("/users", s.listUsers)
	protected.Patch("/users/me", s.updateProfile)
	protected.Get("/conversations", s.listConversations)
	protected.Get("/conversations/:id/messages", s.listMessages)
	protected.Post("/conversations/:id/typing", s.setTyping)
	protected.Post("/messages", s.sendMessage)
	protected.Post("/media/avatar", s.uploadAvatar)

	return s
}

func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

func (s *Server) Shutdown() error { return s.app.Shutdown() }
