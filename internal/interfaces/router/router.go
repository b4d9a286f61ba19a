package router

import (
	"context"

	authsvc "khpl-backend/internal/application/auth"
	"khpl-backend/internal/application/hierarchy"
	invsvc "khpl-backend/internal/application/invitations"
	statssvc "khpl-backend/internal/application/stats"
	teamsvc "khpl-backend/internal/application/team"
	"khpl-backend/internal/config"
	"khpl-backend/internal/infrastructure/database"
	authhandler "khpl-backend/internal/interfaces/handlers/auth"
	healthhandler "khpl-backend/internal/interfaces/handlers/health"
	invhandler "khpl-backend/internal/interfaces/handlers/invitations"
	teamhandler "khpl-backend/internal/interfaces/handlers/team"
	"khpl-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// CreateApp builds the Fiber app with all global middleware and route
// registration, opening the database and Redis from config.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, nil, err
		}
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		rdb = redis.NewClient(opt)
	}

	app, err := BuildApp(cfg, db, rdb)
	if err != nil {
		return nil, nil, nil, err
	}
	return app, db, rdb, nil
}

// BuildApp wires services, handlers and routes over already-open stores.
// Split from CreateApp so tests can pass an in-memory DB and miniredis.
func BuildApp(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*fiber.App, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler,
	})

	app.Use(middleware.CORS(cfg.CORSOrigins))
	app.Use(middleware.RequestStats(rdb))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	healthHandlers := &healthhandler.Handlers{DB: db, Rdb: rdb}
	app.Get("/health", healthHandlers.Health)
	app.Get("/api/ping", healthHandlers.Ping)

	if db == nil {
		return app, nil
	}

	tree := &hierarchy.Service{DB: db}
	auth := &authsvc.Service{DB: db, JWTSecret: cfg.JWTSecret}
	invitations := &invsvc.Service{DB: db, Hierarchy: tree}
	stats := &statssvc.Service{DB: db, Hierarchy: tree, Rdb: rdb}
	team := &teamsvc.Service{DB: db, Hierarchy: tree, Invitations: invitations, Stats: stats}

	if err := auth.EnsureOwner(context.Background(), cfg); err != nil {
		return nil, err
	}

	requireAuth := middleware.BearerAuth(auth, tree)

	authHandlers := &authhandler.Handlers{Auth: auth, Team: team, Tree: tree}
	app.Post("/api/auth/login", authHandlers.Login)
	app.Post("/api/auth/register", authHandlers.Register)
	app.Get("/api/auth/me", requireAuth, authHandlers.Me)

	invHandlers := &invhandler.Handlers{
		Invitations:   invitations,
		Team:          team,
		InviteBaseURL: cfg.InviteBaseURL,
	}
	app.Get("/api/invitation/:token", invHandlers.LookupToken)
	app.Post("/api/invite", requireAuth, invHandlers.CreateInvite)
	app.Get("/api/invites", requireAuth, invHandlers.ListMine)

	teamHandlers := &teamhandler.Handlers{Stats: stats, Team: team}
	app.Get("/api/stats", requireAuth, teamHandlers.GetStats)
	app.Get("/api/my-team", requireAuth, teamHandlers.MyTeam)
	app.Get("/api/team-tree", requireAuth, teamHandlers.TeamTree)
	app.Put("/api/user/:id/points", requireAuth, middleware.RequireOwner(), teamHandlers.SetPoints)
	app.Delete("/api/user/:id", requireAuth, middleware.RequireOwner(), teamHandlers.RemoveMember)
	app.Get("/api/activity", requireAuth, middleware.RequireOwner(), teamHandlers.Activity)

	return app, nil
}
