package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mindgraph/backend/internal/middleware"
	"github.com/mindgraph/backend/internal/models"
	"github.com/mindgraph/backend/internal/services"
	"github.com/mindgraph/backend/pkg/logger"
	"github.com/mindgraph/backend/pkg/utils"
	"gorm.io/gorm"
)

type UsersHandler struct {
	DB       *gorm.DB
	Mindmaps *services.MindmapService
	Activity *services.ActivityService
}

func NewUsersHandler(db *gorm.DB, mindmaps *services.MindmapService, activity *services.ActivityService) *UsersHandler {
	return &UsersHandler{DB: db, Mindmaps: mindmaps, Activity: activity}
}

func (h *UsersHandler) Profile(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, currentUser)
}

type updateProfileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Avatar    *string `json:"avatar"`
}

func (h *UsersHandler) UpdateProfile(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.FirstName != nil {
		currentUser.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		currentUser.LastName = *req.LastName
	}
	if req.Avatar != nil {
		currentUser.Avatar = req.Avatar
	}

	if err := h.DB.Save(currentUser).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating profile")
	}

	h.Activity.Record(services.ActivityEntry{
		Action:    "UPDATE_PROFILE",
		Entity:    "User",
		EntityID:  &currentUser.ID,
		UserID:    &currentUser.ID,
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	})

	return utils.Success(c, fiber.StatusOK, currentUser)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *UsersHandler) ChangePassword(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if !utils.CheckPassword(currentUser.PasswordHash, req.CurrentPassword) {
		return utils.Error(c, fiber.StatusBadRequest, "current password is incorrect")
	}

	if len(req.NewPassword) < 8 {
		return utils.Error(c, fiber.StatusBadRequest, "new password must be at least 8 characters")
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed hashing password")
	}

	if err := h.DB.Model(currentUser).Update("password_hash", hash).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating password")
	}

	h.Activity.Record(services.ActivityEntry{
		Action:    "CHANGE_PASSWORD",
		Entity:    "User",
		EntityID:  &currentUser.ID,
		UserID:    &currentUser.ID,
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "password changed successfully"})
}

func (h *UsersHandler) DeleteAccount(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	if err := h.Mindmaps.PurgeOwner(c.Context(), currentUser.ID); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting mindmaps")
	}

	if err := h.DB.Delete(&models.User{}, "id = ?", currentUser.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting account")
	}

	logger.InfoWithUser(currentUser.ID.String(), "account_deleted", nil)
	h.Activity.Record(services.ActivityEntry{
		Action:    "DELETE_ACCOUNT",
		Entity:    "User",
		EntityID:  &currentUser.ID,
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "account deleted successfully"})
}
