package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mindgraph/backend/internal/cache"
	"github.com/mindgraph/backend/internal/config"
	"github.com/mindgraph/backend/internal/database"
	"github.com/mindgraph/backend/internal/handlers"
	"github.com/mindgraph/backend/internal/middleware"
	"github.com/mindgraph/backend/internal/services"
	"github.com/mindgraph/backend/pkg/logger"
	"github.com/mindgraph/backend/pkg/utils"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	var store cache.Store
	redisStore, err := cache.NewRedisStore(context.Background(), cfg.Redis.URL)
	if err != nil {
		logger.Warn("redis_unavailable", map[string]interface{}{
			"error": err.Error(),
		})
		store = cache.NewMemoryStore()
	} else {
		store = redisStore
		defer redisStore.Close()
	}

	activityService := services.NewActivityService(db)
	mindmapService := services.NewMindmapService(db, store, activityService, cfg.Cache.TTL)
	settingsService := services.NewSettingsService(db, store, cfg.Cache.TTL)

	authHandler := handlers.NewAuthHandler(db, activityService)
	usersHandler := handlers.NewUsersHandler(db, mindmapService, activityService)
	mindmapsHandler := handlers.NewMindmapsHandler(mindmapService)
	adminHandler := handlers.NewAdminHandler(db, store, mindmapService, settingsService, activityService)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 10 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.AllowOrigins))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)

	userRoutes := api.Group("/users", authMiddleware.RequireAuth)
	userRoutes.Get("/profile", usersHandler.Profile)
	userRoutes.Put("/profile", usersHandler.UpdateProfile)
	userRoutes.Put("/change-password", usersHandler.ChangePassword)
	userRoutes.Delete("/account", usersHandler.DeleteAccount)

	api.Get("/mindmaps/public", authMiddleware.OptionalAuth, mindmapsHandler.Public)
	api.Get("/mindmaps/shared/:shareToken", mindmapsHandler.GetByShareToken)

	mindmapRoutes := api.Group("/mindmaps", authMiddleware.RequireAuth)
	mindmapRoutes.Post("/", mindmapsHandler.Create)
	mindmapRoutes.Get("/", mindmapsHandler.List)
	mindmapRoutes.Get("/shared-with-me", mindmapsHandler.SharedWithMe)
	mindmapRoutes.Get("/:id", mindmapsHandler.Get)
	mindmapRoutes.Put("/:id", mindmapsHandler.Update)
	mindmapRoutes.Delete("/:id", mindmapsHandler.Delete)
	mindmapRoutes.Post("/:id/favorite", mindmapsHandler.ToggleFavorite)
	mindmapRoutes.Post("/:id/archive", mindmapsHandler.ToggleArchive)
	mindmapRoutes.Post("/:id/share", mindmapsHandler.Share)
	mindmapRoutes.Delete("/:id/share/:shareUserId", mindmapsHandler.RemoveShare)
	mindmapRoutes.Post("/:id/share-link", mindmapsHandler.GenerateShareLink)
	mindmapRoutes.Post("/:id/duplicate", mindmapsHandler.Duplicate)

	adminRoutes := api.Group("/admin", authMiddleware.RequireAuth, middleware.AdminOnly)
	adminRoutes.Get("/dashboard", adminHandler.Dashboard)
	adminRoutes.Get("/settings", adminHandler.GetSettings)
	adminRoutes.Put("/settings", adminHandler.UpdateSettings)
	adminRoutes.Get("/settings/:key", adminHandler.GetSetting)
	adminRoutes.Get("/users", adminHandler.ListUsers)
	adminRoutes.Post("/users", adminHandler.CreateUser)
	adminRoutes.Get("/users/:id", adminHandler.GetUser)
	adminRoutes.Put("/users/:id", adminHandler.UpdateUser)
	adminRoutes.Delete("/users/:id", adminHandler.DeleteUser)
	adminRoutes.Get("/mindmaps", adminHandler.ListMindmaps)
	adminRoutes.Get("/mindmaps/:id", adminHandler.GetMindmap)
	adminRoutes.Put("/mindmaps/:id", adminHandler.UpdateMindmap)
	adminRoutes.Delete("/mindmaps/:id", adminHandler.DeleteMindmap)
	adminRoutes.Get("/logs", adminHandler.Logs)
	adminRoutes.Get("/cache", adminHandler.CacheStats)
	adminRoutes.Post("/cache/clear", adminHandler.ClearCache)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"address": listenAddr,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
