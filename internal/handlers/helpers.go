package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mindgraph/backend/internal/services"
	"github.com/mindgraph/backend/pkg/utils"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

func normalizeEmail(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// serviceError maps service sentinels to HTTP statuses. Forbidden and
// NotFound stay distinguishable (403 vs 404); masking probes as 404 is a
// policy switch that would live here.
func serviceError(c *fiber.Ctx, err error, notFoundMessage, failureMessage string) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return utils.Error(c, fiber.StatusNotFound, notFoundMessage)
	case errors.Is(err, services.ErrForbidden):
		return utils.Error(c, fiber.StatusForbidden, "access denied")
	case errors.Is(err, services.ErrSelfShare):
		return utils.Error(c, fiber.StatusBadRequest, "cannot share with yourself")
	default:
		return utils.Error(c, fiber.StatusInternalServerError, failureMessage)
	}
}

func isValidVisibility(value string) bool {
	switch value {
	case "PRIVATE", "PUBLIC", "SHARED":
		return true
	default:
		return false
	}
}
