package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mindgraph/backend/internal/middleware"
	"github.com/mindgraph/backend/internal/models"
	"github.com/mindgraph/backend/internal/services"
	"github.com/mindgraph/backend/pkg/logger"
	"github.com/mindgraph/backend/pkg/utils"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB       *gorm.DB
	Activity *services.ActivityService
}

func NewAuthHandler(db *gorm.DB, activity *services.ActivityService) *AuthHandler {
	return &AuthHandler{DB: db, Activity: activity}
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	email := normalizeEmail(req.Email)
	if email == "" || len(req.Password) < 8 {
		return utils.Error(c, fiber.StatusBadRequest, "email and a password of at least 8 characters are required")
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
		Role:         models.UserRoleUser,
		IsActive:     true,
	}

	if err := h.DB.Create(&user).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating user")
	}

	token, err := utils.GenerateToken(&user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	logger.InfoWithUser(user.ID.String(), "user_registered", map[string]interface{}{
		"email": user.Email,
	})
	h.Activity.Record(services.ActivityEntry{
		Action:    "REGISTER",
		Entity:    "User",
		EntityID:  &user.ID,
		UserID:    &user.ID,
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	})

	return utils.Success(c, fiber.StatusCreated, fiber.Map{
		"user":  user,
		"token": token,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	var user models.User
	if err := h.DB.First(&user, "email = ?", normalizeEmail(req.Email)).Error; err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		logger.WarnWithUser(user.ID.String(), "login_failed", map[string]interface{}{
			"ip": c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	if !user.IsActive {
		return utils.Error(c, fiber.StatusUnauthorized, "account is deactivated")
	}

	now := time.Now().UTC()
	if err := h.DB.Model(&user).Update("last_login_at", now).Error; err != nil {
		logger.ErrorWithUser(user.ID.String(), "last_login_update_failed", err, nil)
	}

	token, err := utils.GenerateToken(&user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	h.Activity.Record(services.ActivityEntry{
		Action:    "LOGIN",
		Entity:    "User",
		EntityID:  &user.ID,
		UserID:    &user.ID,
		IPAddress: c.IP(),
		UserAgent: c.Get("User-Agent"),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"user":  user,
		"token": token,
	})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, currentUser)
}
