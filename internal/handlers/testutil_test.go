package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mindgraph/backend/internal/cache"
	"github.com/mindgraph/backend/internal/database"
	"github.com/mindgraph/backend/internal/middleware"
	"github.com/mindgraph/backend/internal/models"
	"github.com/mindgraph/backend/internal/services"
	"github.com/mindgraph/backend/pkg/logger"
	"github.com/mindgraph/backend/pkg/utils"
	"gorm.io/gorm"
)

type testEnv struct {
	app   *fiber.App
	db    *gorm.DB
	store *cache.MemoryStore
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
		utils.ConfigureJWT("test-secret", 24)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	store := cache.NewMemoryStore()
	activityService := services.NewActivityService(db)
	mindmapService := services.NewMindmapService(db, store, activityService, 5*time.Minute)
	settingsService := services.NewSettingsService(db, store, 5*time.Minute)

	authHandler := NewAuthHandler(db, activityService)
	usersHandler := NewUsersHandler(db, mindmapService, activityService)
	mindmapsHandler := NewMindmapsHandler(mindmapService)
	adminHandler := NewAdminHandler(db, store, mindmapService, settingsService, activityService)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 10 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS("*"))
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

	return &testEnv{app: app, db: db, store: store}
}

func createTestUser(t *testing.T, db *gorm.DB, email, password string, role models.UserRole) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "User",
		Role:         role,
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}

func dataMap(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %+v", body)
	}
	return data
}

func dataList(t *testing.T, body map[string]any) []any {
	t.Helper()
	data, ok := body["data"].([]any)
	if !ok {
		t.Fatalf("expected data array, got %+v", body)
	}
	return data
}
