package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mindgraph/backend/internal/models"
	"github.com/mindgraph/backend/pkg/utils"
	"gorm.io/gorm"
)

// Admin moderation entry points. They bypass the access evaluator (role
// is checked at the middleware boundary) but keep the same cache
// discipline as the owner-facing operations.

type AdminMindmapQuery struct {
	Search     string
	Visibility *models.MindmapVisibility
	OwnerID    *uuid.UUID
}

func (s *MindmapService) AdminList(ctx context.Context, q AdminMindmapQuery, p utils.PaginationParams) ([]models.Mindmap, int64, error) {
	baseQuery := s.DB.WithContext(ctx).Model(&models.Mindmap{})

	baseQuery = applySearch(baseQuery, q.Search)

	if q.Visibility != nil {
		baseQuery = baseQuery.Where("visibility = ?", *q.Visibility)
	}
	if q.OwnerID != nil {
		baseQuery = baseQuery.Where("owner_id = ?", *q.OwnerID)
	}

	var total int64
	if err := baseQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var mindmaps []models.Mindmap
	if err := utils.ApplyPagination(baseQuery.Select(mindmapSummaryColumns).Preload("Owner").Order("created_at DESC"), p).
		Find(&mindmaps).Error; err != nil {
		return nil, 0, err
	}

	return mindmaps, total, nil
}

func (s *MindmapService) AdminGet(ctx context.Context, id uuid.UUID) (*models.Mindmap, error) {
	var mindmap models.Mindmap
	err := s.DB.WithContext(ctx).Preload("Owner").Preload("Shares").Preload("Shares.User").
		First(&mindmap, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &mindmap, nil
}

type AdminUpdateMindmapInput struct {
	Title       *string
	Description *string
	Visibility  *models.MindmapVisibility
}

func (s *MindmapService) AdminUpdate(ctx context.Context, id uuid.UUID, adminID uuid.UUID, input AdminUpdateMindmapInput) (*models.Mindmap, error) {
	var mindmap models.Mindmap
	if err := s.DB.WithContext(ctx).First(&mindmap, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if input.Title != nil {
		mindmap.Title = *input.Title
	}
	if input.Description != nil {
		mindmap.Description = input.Description
	}
	if input.Visibility != nil {
		mindmap.Visibility = *input.Visibility
	}

	if err := s.DB.WithContext(ctx).Save(&mindmap).Error; err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)

	s.Activity.Record(ActivityEntry{
		Action:   "ADMIN_UPDATE_MINDMAP",
		Entity:   "Mindmap",
		EntityID: &id,
		UserID:   &adminID,
	})

	return &mindmap, nil
}

func (s *MindmapService) AdminDelete(ctx context.Context, id uuid.UUID, adminID uuid.UUID) error {
	var mindmap models.Mindmap
	if err := s.DB.WithContext(ctx).First(&mindmap, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.MindmapShare{}, "mindmap_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Mindmap{}, "id = ?", id).Error
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, id)

	s.Activity.Record(ActivityEntry{
		Action:   "ADMIN_DELETE_MINDMAP",
		Entity:   "Mindmap",
		EntityID: &id,
		UserID:   &adminID,
	})

	return nil
}
