package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mindgraph/backend/internal/middleware"
	"github.com/mindgraph/backend/internal/models"
	"github.com/mindgraph/backend/internal/services"
	"github.com/mindgraph/backend/pkg/utils"
)

type MindmapsHandler struct {
	Service *services.MindmapService
}

func NewMindmapsHandler(service *services.MindmapService) *MindmapsHandler {
	return &MindmapsHandler{Service: service}
}

type createMindmapRequest struct {
	Title       string                 `json:"title"`
	Description *string                `json:"description"`
	Data        map[string]interface{} `json:"data"`
	Visibility  *string                `json:"visibility"`
}

func (h *MindmapsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createMindmapRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return utils.Error(c, fiber.StatusBadRequest, "title is required")
	}

	input := services.CreateMindmapInput{
		Title:       title,
		Description: req.Description,
		Data:        req.Data,
	}
	if req.Visibility != nil {
		if !isValidVisibility(*req.Visibility) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid visibility")
		}
		visibility := models.MindmapVisibility(*req.Visibility)
		input.Visibility = &visibility
	}

	mindmap, err := h.Service.Create(c.Context(), currentUser.ID, input)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating mindmap")
	}

	return utils.Success(c, fiber.StatusCreated, mindmap)
}

func (h *MindmapsHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	p := utils.ParsePagination(c)

	query := services.MindmapQuery{
		Search: c.Query("search"),
		Sort:   c.Query("sort", "updatedAt"),
		Order:  c.Query("order", "desc"),
	}

	if raw := c.Query("visibility"); raw != "" {
		if !isValidVisibility(raw) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid visibility")
		}
		visibility := models.MindmapVisibility(raw)
		query.Visibility = &visibility
	}
	if raw := c.Query("isFavorite"); raw != "" {
		favorite := raw == "true"
		query.IsFavorite = &favorite
	}
	if raw := c.Query("isArchived"); raw != "" {
		archived := raw == "true"
		query.IsArchived = &archived
	}

	mindmaps, total, err := h.Service.FindAll(c.Context(), currentUser.ID, query, p)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing mindmaps")
	}

	return utils.Paginated(c, mindmaps, p.Page, p.Limit, total)
}

func (h *MindmapsHandler) SharedWithMe(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	p := utils.ParsePagination(c)

	items, total, err := h.Service.SharedWithMe(c.Context(), currentUser.ID, p)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing shared mindmaps")
	}

	return utils.Paginated(c, items, p.Page, p.Limit, total)
}

func (h *MindmapsHandler) Public(c *fiber.Ctx) error {
	p := utils.ParsePagination(c)

	mindmaps, total, err := h.Service.Public(c.Context(), c.Query("search"), p)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing public mindmaps")
	}

	return utils.Paginated(c, mindmaps, p.Page, p.Limit, total)
}

func (h *MindmapsHandler) GetByShareToken(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Params("shareToken"))
	if token == "" {
		return utils.Error(c, fiber.StatusBadRequest, "share token is required")
	}

	view, err := h.Service.GetByShareToken(c.Context(), token)
	if err != nil {
		return serviceError(c, err, "mindmap not found or link expired", "failed loading mindmap")
	}

	return utils.Success(c, fiber.StatusOK, view)
}

func (h *MindmapsHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid mindmap id")
	}

	mindmap, err := h.Service.FindOne(c.Context(), id, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "mindmap not found", "failed loading mindmap")
	}

	return utils.Success(c, fiber.StatusOK, mindmap)
}

type updateMindmapRequest struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Data        map[string]interface{} `json:"data"`
	Thumbnail   *string                `json:"thumbnail"`
	Visibility  *string                `json:"visibility"`
	IsFavorite  *bool                  `json:"isFavorite"`
	IsArchived  *bool                  `json:"isArchived"`
}

func (h *MindmapsHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid mindmap id")
	}

	var req updateMindmapRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	input := services.UpdateMindmapInput{
		Title:       req.Title,
		Description: req.Description,
		Data:        req.Data,
		Thumbnail:   req.Thumbnail,
		IsFavorite:  req.IsFavorite,
		IsArchived:  req.IsArchived,
	}
	if req.Visibility != nil {
		if !isValidVisibility(*req.Visibility) {
			return utils.Error(c, fiber.StatusBadRequest, "invalid visibility")
		}
		visibility := models.MindmapVisibility(*req.Visibility)
		input.Visibility = &visibility
	}

	mindmap, err := h.Service.Update(c.Context(), id, currentUser.ID, input)
	if err != nil {
		return serviceError(c, err, "mindmap not found", "failed updating mindmap")
	}

	return utils.Success(c, fiber.StatusOK, mindmap)
}

func (h *MindmapsHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid mindmap id")
	}

	if err := h.Service.Delete(c.Context(), id, currentUser.ID); err != nil {
		return serviceError(c, err, "mindmap not found", "failed deleting mindmap")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "mindmap deleted successfully"})
}

func (h *MindmapsHandler) ToggleFavorite(c *fiber.Ctx) error {
	return h.toggle(c, h.Service.ToggleFavorite)
}

func (h *MindmapsHandler) ToggleArchive(c *fiber.Ctx) error {
	return h.toggle(c, h.Service.ToggleArchive)
}

func (h *MindmapsHandler) toggle(c *fiber.Ctx, op func(ctx context.Context, id, ownerID uuid.UUID) (*models.Mindmap, error)) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid mindmap id")
	}

	mindmap, err := op(c.Context(), id, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "mindmap not found", "failed toggling flag")
	}

	return utils.Success(c, fiber.StatusOK, mindmap)
}

type shareMindmapRequest struct {
	Email   string `json:"email"`
	CanEdit *bool  `json:"canEdit"`
}

func (h *MindmapsHandler) Share(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid mindmap id")
	}

	var req shareMindmapRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if normalizeEmail(req.Email) == "" {
		return utils.Error(c, fiber.StatusBadRequest, "email is required")
	}

	canEdit := false
	if req.CanEdit != nil {
		canEdit = *req.CanEdit
	}

	share, err := h.Service.Share(c.Context(), id, currentUser.ID, req.Email, canEdit)
	if err != nil {
		return serviceError(c, err, "user or mindmap not found", "failed sharing mindmap")
	}

	return utils.Success(c, fiber.StatusCreated, share)
}

func (h *MindmapsHandler) RemoveShare(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid mindmap id")
	}

	granteeID, err := parseUUID(c.Params("shareUserId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	if err := h.Service.RemoveShare(c.Context(), id, currentUser.ID, granteeID); err != nil {
		return serviceError(c, err, "share not found", "failed removing share")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "share removed successfully"})
}

func (h *MindmapsHandler) GenerateShareLink(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid mindmap id")
	}

	token, err := h.Service.GenerateShareLink(c.Context(), id, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "mindmap not found", "failed generating share link")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"shareToken": token})
}

func (h *MindmapsHandler) Duplicate(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid mindmap id")
	}

	duplicate, err := h.Service.Duplicate(c.Context(), id, currentUser.ID)
	if err != nil {
		return serviceError(c, err, "mindmap not found", "failed duplicating mindmap")
	}

	return utils.Success(c, fiber.StatusCreated, duplicate)
}
