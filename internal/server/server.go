package server

import (
	"backend-eventmap/internal/active"
	"backend-eventmap/internal/auth"
	"backend-eventmap/internal/collection"
	"backend-eventmap/internal/config"
	"backend-eventmap/internal/event"
	"backend-eventmap/internal/geocode"
	"backend-eventmap/internal/routing"
	"backend-eventmap/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	// Collection names may contain spaces and other escaped characters.
	app := fiber.New(fiber.Config{UnescapePath: true})
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient),
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	adminMiddleware := auth.AdminOnly(s.Cfg.JWTSecret, s.Cfg.AdminRole)

	geocoder := geocode.NewCached(
		geocode.NewNominatim(s.Cfg.GeocoderURL, s.Cfg.GeocoderUserAgent, s.Cfg.UpstreamTimeout),
		s.Redis,
		s.Cfg.GeocodeCacheTTL,
	)
	router := routing.NewClient(s.Cfg.RouterURL, s.Cfg.UpstreamTimeout)

	activeSvc := active.NewService(s.DB, s.Cfg.DefaultCollection, s.Stream)
	collectionSvc := collection.NewService(s.DB, s.Stream)
	eventSvc := event.NewService(s.DB, geocoder, s.Stream, s.Cfg.ProximityMeters)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB))
	active.RegisterRoutes(s.App.Group("/active"), activeSvc, adminMiddleware)
	event.RegisterPublicRoutes(s.App.Group("/events"), eventSvc, activeSvc, router)

	collections := s.App.Group("/collections")
	collection.RegisterRoutes(collections, collectionSvc, activeSvc, adminMiddleware)
	event.RegisterRoutes(collections, eventSvc, adminMiddleware)

	routing.RegisterRoutes(s.App.Group("/routes"), router)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
