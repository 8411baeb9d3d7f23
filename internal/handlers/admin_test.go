package handlers

import (
	"context"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/mindgraph/backend/internal/models"
)

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	env := setupTestEnv(t)
	_, userToken := createTestUser(t, env.db, "user@test.com", "supersecret", models.UserRoleUser)
	_, adminToken := createTestUser(t, env.db, "admin@test.com", "supersecret", models.UserRoleAdmin)

	resp := performJSONRequest(t, env.app, "GET", "/api/admin/dashboard", nil, authHeaders(userToken))
	assertStatus(t, resp, fiber.StatusForbidden)
	assertEnvelopeError(t, decodeJSONMap(t, resp), "admin access required")

	resp = performJSONRequest(t, env.app, "GET", "/api/admin/dashboard", nil, authHeaders(adminToken))
	assertStatus(t, resp, fiber.StatusOK)
}

func TestAdminDashboardCounts(t *testing.T) {
	env := setupTestEnv(t)
	_, adminToken := createTestUser(t, env.db, "admin@test.com", "supersecret", models.UserRoleAdmin)
	_, userToken := createTestUser(t, env.db, "user@test.com", "supersecret", models.UserRoleUser)

	createMindmapViaAPI(t, env, userToken, "Counted Map")

	resp := performJSONRequest(t, env.app, "GET", "/api/admin/dashboard", nil, authHeaders(adminToken))
	assertStatus(t, resp, fiber.StatusOK)
	data := dataMap(t, decodeJSONMap(t, resp))

	users, _ := data["users"].(map[string]any)
	if users == nil || users["total"].(float64) != 2 {
		t.Errorf("expected 2 users, got %v", users)
	}
	mindmaps, _ := data["mindmaps"].(map[string]any)
	if mindmaps == nil || mindmaps["total"].(float64) != 1 {
		t.Errorf("expected 1 mindmap, got %v", mindmaps)
	}
}

func TestAdminUserManagement(t *testing.T) {
	env := setupTestEnv(t)
	admin, adminToken := createTestUser(t, env.db, "admin@test.com", "supersecret", models.UserRoleAdmin)
	user, _ := createTestUser(t, env.db, "managed@test.com", "supersecret", models.UserRoleUser)

	t.Run("admin creates a user directly", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, "POST", "/api/admin/users", map[string]any{
			"email":     "Provisioned@Test.com",
			"password":  "supersecret",
			"firstName": "Provisioned",
			"lastName":  "Account",
			"role":      "ADMIN",
		}, authHeaders(adminToken))
		assertStatus(t, resp, fiber.StatusCreated)
		data := dataMap(t, decodeJSONMap(t, resp))
		if data["email"] != "provisioned@test.com" {
			t.Errorf("expected lowercased email, got %v", data["email"])
		}
		if data["role"] != "ADMIN" {
			t.Errorf("expected ADMIN role, got %v", data["role"])
		}

		resp = performJSONRequest(t, env.app, "POST", "/api/admin/users", map[string]any{
			"email":    "provisioned@test.com",
			"password": "supersecret",
		}, authHeaders(adminToken))
		assertStatus(t, resp, fiber.StatusConflict)
	})

	t.Run("list with search", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, "GET", "/api/admin/users?search=managed", nil, authHeaders(adminToken))
		assertStatus(t, resp, fiber.StatusOK)
		items := dataList(t, decodeJSONMap(t, resp))
		if len(items) != 1 {
			t.Fatalf("expected one match, got %d", len(items))
		}
	})

	t.Run("deactivate user", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, "PUT", "/api/admin/users/"+user.ID.String(), map[string]any{
			"isActive": false,
		}, authHeaders(adminToken))
		assertStatus(t, resp, fiber.StatusOK)

		var reloaded models.User
		env.db.First(&reloaded, "id = ?", user.ID)
		if reloaded.IsActive {
			t.Error("expected user deactivated")
		}
	})

	t.Run("invalid role rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, "PUT", "/api/admin/users/"+user.ID.String(), map[string]any{
			"role": "SUPERUSER",
		}, authHeaders(adminToken))
		assertStatus(t, resp, fiber.StatusBadRequest)
	})

	t.Run("admin cannot delete self", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, "DELETE", "/api/admin/users/"+admin.ID.String(), nil, authHeaders(adminToken))
		assertStatus(t, resp, fiber.StatusBadRequest)
	})

	t.Run("delete user removes their mindmaps", func(t *testing.T) {
		if err := env.db.Create(&models.Mindmap{
			Title:   "Orphan Candidate",
			Data:    map[string]interface{}{},
			OwnerID: user.ID,
		}).Error; err != nil {
			t.Fatal(err)
		}

		resp := performJSONRequest(t, env.app, "DELETE", "/api/admin/users/"+user.ID.String(), nil, authHeaders(adminToken))
		assertStatus(t, resp, fiber.StatusOK)

		var mapCount int64
		env.db.Model(&models.Mindmap{}).Where("owner_id = ?", user.ID).Count(&mapCount)
		if mapCount != 0 {
			t.Errorf("expected user's mindmaps removed, got %d", mapCount)
		}
	})
}

func TestAdminMindmapModeration(t *testing.T) {
	env := setupTestEnv(t)
	_, adminToken := createTestUser(t, env.db, "admin@test.com", "supersecret", models.UserRoleAdmin)
	_, userToken := createTestUser(t, env.db, "user@test.com", "supersecret", models.UserRoleUser)

	created := createMindmapViaAPI(t, env, userToken, "Moderated Map")
	id, _ := created["id"].(string)

	t.Run("admin reads any mindmap", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, "GET", "/api/admin/mindmaps/"+id, nil, authHeaders(adminToken))
		assertStatus(t, resp, fiber.StatusOK)
	})

	t.Run("admin forces visibility", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, "PUT", "/api/admin/mindmaps/"+id, map[string]any{
			"visibility": "PRIVATE",
			"title":      "Retitled by Moderation",
		}, authHeaders(adminToken))
		assertStatus(t, resp, fiber.StatusOK)
		data := dataMap(t, decodeJSONMap(t, resp))
		if data["title"] != "Retitled by Moderation" {
			t.Errorf("unexpected title %v", data["title"])
		}
	})

	t.Run("admin deletes any mindmap", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, "DELETE", "/api/admin/mindmaps/"+id, nil, authHeaders(adminToken))
		assertStatus(t, resp, fiber.StatusOK)

		resp = performJSONRequest(t, env.app, "GET", "/api/mindmaps/"+id, nil, authHeaders(userToken))
		assertStatus(t, resp, fiber.StatusNotFound)
	})
}

func TestAdminSettingsEndpoints(t *testing.T) {
	env := setupTestEnv(t)
	_, adminToken := createTestUser(t, env.db, "admin@test.com", "supersecret", models.UserRoleAdmin)

	resp := performJSONRequest(t, env.app, "PUT", "/api/admin/settings", map[string]any{
		"registration": map[string]any{"enabled": false},
	}, authHeaders(adminToken))
	assertStatus(t, resp, fiber.StatusOK)

	resp = performJSONRequest(t, env.app, "GET", "/api/admin/settings/registration", nil, authHeaders(adminToken))
	assertStatus(t, resp, fiber.StatusOK)
	data := dataMap(t, decodeJSONMap(t, resp))
	value, _ := data["value"].(map[string]any)
	if value == nil || value["enabled"] != false {
		t.Errorf("expected registration disabled, got %v", data)
	}

	resp = performJSONRequest(t, env.app, "GET", "/api/admin/settings/unknown-key", nil, authHeaders(adminToken))
	assertStatus(t, resp, fiber.StatusNotFound)
}

func TestAdminCacheEndpoints(t *testing.T) {
	env := setupTestEnv(t)
	_, adminToken := createTestUser(t, env.db, "admin@test.com", "supersecret", models.UserRoleAdmin)
	_, userToken := createTestUser(t, env.db, "user@test.com", "supersecret", models.UserRoleUser)

	created := createMindmapViaAPI(t, env, userToken, "Cached Map")
	id, _ := created["id"].(string)

	// Warm the cache through a read.
	resp := performJSONRequest(t, env.app, "GET", "/api/mindmaps/"+id, nil, authHeaders(userToken))
	assertStatus(t, resp, fiber.StatusOK)

	t.Run("stats report the live keys", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, "GET", "/api/admin/cache", nil, authHeaders(adminToken))
		assertStatus(t, resp, fiber.StatusOK)
		data := dataMap(t, decodeJSONMap(t, resp))
		if data["totalKeys"].(float64) != 1 {
			t.Errorf("expected one cache key, got %v", data["totalKeys"])
		}
	})

	t.Run("pattern clear removes matching keys", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, "POST", "/api/admin/cache/clear", map[string]any{
			"pattern": "mindmap:*",
		}, authHeaders(adminToken))
		assertStatus(t, resp, fiber.StatusOK)
		data := dataMap(t, decodeJSONMap(t, resp))
		if data["cleared"].(float64) != 1 {
			t.Errorf("expected one cleared key, got %v", data["cleared"])
		}

		keys, _ := env.store.Keys(context.Background(), "*")
		if len(keys) != 0 {
			t.Errorf("expected empty cache, got %v", keys)
		}
	})

	t.Run("clear without pattern flushes everything", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, "GET", "/api/mindmaps/"+id, nil, authHeaders(userToken))
		assertStatus(t, resp, fiber.StatusOK)

		resp = performJSONRequest(t, env.app, "POST", "/api/admin/cache/clear", nil, authHeaders(adminToken))
		assertStatus(t, resp, fiber.StatusOK)

		keys, _ := env.store.Keys(context.Background(), "*")
		if len(keys) != 0 {
			t.Errorf("expected flushed cache, got %v", keys)
		}
	})
}

func TestAdminActivityLogs(t *testing.T) {
	env := setupTestEnv(t)
	_, adminToken := createTestUser(t, env.db, "admin@test.com", "supersecret", models.UserRoleAdmin)
	user, _ := createTestUser(t, env.db, "actor@test.com", "supersecret", models.UserRoleUser)

	// Insert a row directly; the live path is asynchronous.
	if err := env.db.Create(&models.ActivityLog{
		Action: "CREATE_MINDMAP",
		Entity: "Mindmap",
		UserID: &user.ID,
	}).Error; err != nil {
		t.Fatal(err)
	}

	resp := performJSONRequest(t, env.app, "GET", "/api/admin/logs?action=CREATE_MINDMAP", nil, authHeaders(adminToken))
	assertStatus(t, resp, fiber.StatusOK)
	items := dataList(t, decodeJSONMap(t, resp))
	if len(items) != 1 {
		t.Fatalf("expected one log row, got %d", len(items))
	}

	resp = performJSONRequest(t, env.app, "GET", "/api/admin/logs?action=NO_SUCH_ACTION", nil, authHeaders(adminToken))
	items = dataList(t, decodeJSONMap(t, resp))
	if len(items) != 0 {
		t.Errorf("expected no rows, got %d", len(items))
	}
}
