package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mindgraph/backend/internal/cache"
	"github.com/mindgraph/backend/internal/middleware"
	"github.com/mindgraph/backend/internal/models"
	"github.com/mindgraph/backend/internal/services"
	"github.com/mindgraph/backend/pkg/logger"
	"github.com/mindgraph/backend/pkg/utils"
	"gorm.io/gorm"
)

type AdminHandler struct {
	DB       *gorm.DB
	Cache    cache.Store
	Mindmaps *services.MindmapService
	Settings *services.SettingsService
	Activity *services.ActivityService
}

func NewAdminHandler(db *gorm.DB, store cache.Store, mindmaps *services.MindmapService, settings *services.SettingsService, activity *services.ActivityService) *AdminHandler {
	return &AdminHandler{
		DB:       db,
		Cache:    store,
		Mindmaps: mindmaps,
		Settings: settings,
		Activity: activity,
	}
}

func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	var totalUsers, activeUsers, totalMindmaps, publicMindmaps, totalShares int64

	if err := h.DB.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading stats")
	}
	if err := h.DB.Model(&models.User{}).Where("is_active = ?", true).Count(&activeUsers).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading stats")
	}
	if err := h.DB.Model(&models.Mindmap{}).Count(&totalMindmaps).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading stats")
	}
	if err := h.DB.Model(&models.Mindmap{}).Where("visibility = ?", models.VisibilityPublic).Count(&publicMindmaps).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading stats")
	}
	if err := h.DB.Model(&models.MindmapShare{}).Count(&totalShares).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading stats")
	}

	var recentUsers []models.User
	if err := h.DB.Order("created_at DESC").Limit(5).Find(&recentUsers).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading stats")
	}

	var recentLogs []models.ActivityLog
	if err := h.DB.Preload("User").Order("created_at DESC").Limit(10).Find(&recentLogs).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading stats")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"users": fiber.Map{
			"total":  totalUsers,
			"active": activeUsers,
			"recent": recentUsers,
		},
		"mindmaps": fiber.Map{
			"total":  totalMindmaps,
			"public": publicMindmaps,
		},
		"shares": fiber.Map{
			"total": totalShares,
		},
		"recentActivity": recentLogs,
	})
}

func (h *AdminHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.Settings.All(c.Context())
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading settings")
	}
	return utils.Success(c, fiber.StatusOK, settings)
}

func (h *AdminHandler) GetSetting(c *fiber.Ctx) error {
	key := c.Params("key")
	value, err := h.Settings.Get(c.Context(), key)
	if err != nil {
		return serviceError(c, err, "setting not found", "failed loading setting")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"key": key, "value": value})
}

func (h *AdminHandler) UpdateSettings(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	var req map[string]map[string]interface{}
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no settings provided")
	}

	if err := h.Settings.Update(c.Context(), req); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating settings")
	}

	if currentUser != nil {
		h.Activity.Record(services.ActivityEntry{
			Action:    "UPDATE_SETTINGS",
			Entity:    "Setting",
			UserID:    &currentUser.ID,
			IPAddress: c.IP(),
			UserAgent: c.Get("User-Agent"),
		})
	}

	settings, err := h.Settings.All(c.Context())
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading settings")
	}
	return utils.Success(c, fiber.StatusOK, settings)
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	p := utils.ParsePagination(c)

	baseQuery := h.DB.Model(&models.User{})

	if search := c.Query("search"); search != "" {
		pattern := "%" + normalizeEmail(search) + "%"
		baseQuery = baseQuery.Where(
			"LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?",
			pattern, pattern, pattern,
		)
	}
	if role := c.Query("role"); role != "" {
		baseQuery = baseQuery.Where("role = ?", role)
	}
	if raw := c.Query("isActive"); raw != "" {
		baseQuery = baseQuery.Where("is_active = ?", raw == "true")
	}

	var total int64
	if err := baseQuery.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing users")
	}

	var users []models.User
	if err := utils.ApplyPagination(baseQuery.Order("created_at DESC"), p).Find(&users).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing users")
	}

	return utils.Paginated(c, users, p.Page, p.Limit, total)
}

type adminCreateUserRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

func (h *AdminHandler) CreateUser(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	var req adminCreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	email := normalizeEmail(req.Email)
	if email == "" || len(req.Password) < 8 {
		return utils.Error(c, fiber.StatusBadRequest, "email and a password of at least 8 characters are required")
	}

	role := models.UserRoleUser
	if req.Role != "" {
		switch models.UserRole(req.Role) {
		case models.UserRoleAdmin, models.UserRoleUser:
			role = models.UserRole(req.Role)
		default:
			return utils.Error(c, fiber.StatusBadRequest, "invalid role")
		}
	}

	var existing models.User
	err := h.DB.First(&existing, "email = ?", email).Error
	if err == nil {
		return utils.Error(c, fiber.StatusConflict, "email already registered")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking email")
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed hashing password")
	}

	user := models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
		IsActive:     true,
		IsVerified:   true,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating user")
	}

	if currentUser != nil {
		h.Activity.Record(services.ActivityEntry{
			Action:    "ADMIN_CREATE_USER",
			Entity:    "User",
			EntityID:  &user.ID,
			UserID:    &currentUser.ID,
			IPAddress: c.IP(),
			UserAgent: c.Get("User-Agent"),
		})
	}

	return utils.Success(c, fiber.StatusCreated, user)
}

func (h *AdminHandler) GetUser(c *fiber.Ctx) error {
	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading user")
	}

	var mindmapCount, shareCount int64
	h.DB.Model(&models.Mindmap{}).Where("owner_id = ?", id).Count(&mindmapCount)
	h.DB.Model(&models.MindmapShare{}).Where("user_id = ?", id).Count(&shareCount)

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"user":         user,
		"mindmapCount": mindmapCount,
		"shareCount":   shareCount,
	})
}

type adminUpdateUserRequest struct {
	FirstName  *string `json:"firstName"`
	LastName   *string `json:"lastName"`
	Role       *string `json:"role"`
	IsActive   *bool   `json:"isActive"`
	IsVerified *bool   `json:"isVerified"`
	Password   *string `json:"password"`
}

func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var req adminUpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading user")
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Role != nil {
		switch models.UserRole(*req.Role) {
		case models.UserRoleAdmin, models.UserRoleUser:
			user.Role = models.UserRole(*req.Role)
		default:
			return utils.Error(c, fiber.StatusBadRequest, "invalid role")
		}
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.IsVerified != nil {
		user.IsVerified = *req.IsVerified
	}
	if req.Password != nil {
		if len(*req.Password) < 8 {
			return utils.Error(c, fiber.StatusBadRequest, "password must be at least 8 characters")
		}
		hash, err := utils.HashPassword(*req.Password)
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed hashing password")
		}
		user.PasswordHash = hash
	}

	if err := h.DB.Save(&user).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating user")
	}

	if currentUser != nil {
		h.Activity.Record(services.ActivityEntry{
			Action:    "ADMIN_UPDATE_USER",
			Entity:    "User",
			EntityID:  &user.ID,
			UserID:    &currentUser.ID,
			IPAddress: c.IP(),
			UserAgent: c.Get("User-Agent"),
		})
	}

	return utils.Success(c, fiber.StatusOK, user)
}

func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	if currentUser != nil && currentUser.ID == id {
		return utils.Error(c, fiber.StatusBadRequest, "cannot delete your own account here")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading user")
	}

	if err := h.Mindmaps.PurgeOwner(c.Context(), user.ID); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting user mindmaps")
	}
	if err := h.DB.Delete(&models.User{}, "id = ?", user.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting user")
	}

	if currentUser != nil {
		h.Activity.Record(services.ActivityEntry{
			Action:    "ADMIN_DELETE_USER",
			Entity:    "User",
			EntityID:  &user.ID,
			UserID:    &currentUser.ID,
			IPAddress: c.IP(),
			UserAgent: c.Get("User-Agent"),
		})
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "user deleted successfully"})
}

func (h *AdminHandler) ListMindmaps(c *fiber.Ctx) error {
	p := utils.ParsePagination(c)

	query := services.AdminMindmapQuery{Search: c.Query("search")}

	if raw := c.Query("visibility"); raw != "" {
		if !isValidVisibility(raw) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid visibility")
		}
		visibility := models.MindmapVisibility(raw)
		query.Visibility = &visibility
	}
	if raw := c.Query("ownerId"); raw != "" {
		ownerID, err := parseUUID(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid owner id")
		}
		query.OwnerID = &ownerID
	}

	mindmaps, total, err := h.Mindmaps.AdminList(c.Context(), query, p)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing mindmaps")
	}

	return utils.Paginated(c, mindmaps, p.Page, p.Limit, total)
}

func (h *AdminHandler) GetMindmap(c *fiber.Ctx) error {
	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid mindmap id")
	}

	mindmap, err := h.Mindmaps.AdminGet(c.Context(), id)
	if err != nil {
		return serviceError(c, err, "mindmap not found", "failed loading mindmap")
	}

	return utils.Success(c, fiber.StatusOK, mindmap)
}

type adminUpdateMindmapRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Visibility  *string `json:"visibility"`
}

func (h *AdminHandler) UpdateMindmap(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid mindmap id")
	}

	var req adminUpdateMindmapRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	input := services.AdminUpdateMindmapInput{
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Visibility != nil {
		if !isValidVisibility(*req.Visibility) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid visibility")
		}
		visibility := models.MindmapVisibility(*req.Visibility)
		input.Visibility = &visibility
	}

	mindmap, err := h.Mindmaps.AdminUpdate(c.Context(), id, currentUser.ID, input)
	if err != nil {
		return serviceError(c, err, "mindmap not found", "failed updating mindmap")
	}

	return utils.Success(c, fiber.StatusOK, mindmap)
}

func (h *AdminHandler) DeleteMindmap(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid mindmap id")
	}

	if err := h.Mindmaps.AdminDelete(c.Context(), id, currentUser.ID); err != nil {
		return serviceError(c, err, "mindmap not found", "failed deleting mindmap")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "mindmap deleted successfully"})
}

func (h *AdminHandler) Logs(c *fiber.Ctx) error {
	p := utils.ParsePagination(c)

	query := services.LogsQuery{
		Action: c.Query("action"),
		Entity: c.Query("entity"),
	}
	if raw := c.Query("userId"); raw != "" {
		userID, err := parseUUID(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
		}
		query.UserID = &userID
	}
	if raw := c.Query("startDate"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid startDate")
		}
		query.StartDate = &t
	}
	if raw := c.Query("endDate"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid endDate")
		}
		query.EndDate = &t
	}

	logs, total, err := h.Activity.GetLogs(c.Context(), query, p)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading logs")
	}

	return utils.Paginated(c, logs, p.Page, p.Limit, total)
}

// CacheStats reports the live key population. The key listing is capped
// so a large cache cannot blow up the response.
func (h *AdminHandler) CacheStats(c *fiber.Ctx) error {
	keys, err := h.Cache.Keys(c.Context(), "*")
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed reading cache")
	}

	sample := keys
	if len(sample) > 100 {
		sample = sample[:100]
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"totalKeys": len(keys),
		"keys":      sample,
	})
}

type clearCacheRequest struct {
	Pattern string `json:"pattern"`
}

func (h *AdminHandler) ClearCache(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	var req clearCacheRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	var cleared int
	if req.Pattern != "" {
		keys, err := h.Cache.Keys(c.Context(), req.Pattern)
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed reading cache")
		}
		for _, key := range keys {
			if err := h.Cache.Delete(c.Context(), key); err != nil {
				logger.Warn("cache_clear_key_failed", map[string]interface{}{
					"key":   key,
					"error": err.Error(),
				})
				continue
			}
			cleared++
		}
	} else {
		keys, err := h.Cache.Keys(c.Context(), "*")
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed reading cache")
		}
		if err := h.Cache.FlushAll(c.Context()); err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed clearing cache")
		}
		cleared = len(keys)
	}

	if currentUser != nil {
		h.Activity.Record(services.ActivityEntry{
			Action: "CLEAR_CACHE",
			Entity: "Cache",
			UserID: &currentUser.ID,
			Metadata: map[string]interface{}{
				"pattern": req.Pattern,
				"cleared": cleared,
			},
			IPAddress: c.IP(),
			UserAgent: c.Get("User-Agent"),
		})
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"cleared": cleared})
}
