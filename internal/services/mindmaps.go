package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mindgraph/backend/internal/cache"
	"github.com/mindgraph/backend/internal/models"
	"github.com/mindgraph/backend/pkg/logger"
	"github.com/mindgraph/backend/pkg/utils"
	"gorm.io/gorm"
)

const mindmapKeyPrefix = "mindmap:"

// mindmapSummaryColumns is the listing projection: everything except the
// document body and the share token.
var mindmapSummaryColumns = []string{
	"id", "title", "description", "thumbnail", "visibility",
	"is_favorite", "is_archived", "owner_id", "created_at", "updated_at",
}

// MindmapService orchestrates the store, the cache and the access
// evaluator for every mindmap operation. It is request-scoped and
// stateless; concurrency comes from the HTTP host.
type MindmapService struct {
	DB       *gorm.DB
	Cache    cache.Store
	Activity *ActivityService
	TTL      time.Duration
}

func NewMindmapService(db *gorm.DB, store cache.Store, activity *ActivityService, ttl time.Duration) *MindmapService {
	return &MindmapService{DB: db, Cache: store, Activity: activity, TTL: ttl}
}

func mindmapKey(id uuid.UUID) string {
	return mindmapKeyPrefix + id.String()
}

// invalidate deletes the cache entry for a mindmap. It runs after the
// store write committed; a failed delete is logged and swallowed, the
// stale entry then ages out with its TTL.
func (s *MindmapService) invalidate(ctx context.Context, id uuid.UUID) {
	if err := s.Cache.Delete(ctx, mindmapKey(id)); err != nil {
		logger.Warn("mindmap_cache_invalidate_failed", map[string]interface{}{
			"mindmap_id": id.String(),
			"error":      err.Error(),
		})
	}
}

type CreateMindmapInput struct {
	Title       string
	Description *string
	Data        map[string]interface{}
	Visibility  *models.MindmapVisibility
}

func (s *MindmapService) Create(ctx context.Context, ownerID uuid.UUID, input CreateMindmapInput) (*models.Mindmap, error) {
	data := input.Data
	if data == nil {
		data = map[string]interface{}{}
	}

	visibility := models.VisibilityPrivate
	if input.Visibility != nil {
		visibility = *input.Visibility
	}

	mindmap := models.Mindmap{
		Title:       input.Title,
		Description: input.Description,
		Data:        data,
		Visibility:  visibility,
		OwnerID:     ownerID,
	}

	if err := s.DB.WithContext(ctx).Create(&mindmap).Error; err != nil {
		return nil, err
	}

	s.Activity.Record(ActivityEntry{
		Action:   "CREATE_MINDMAP",
		Entity:   "Mindmap",
		EntityID: &mindmap.ID,
		UserID:   &ownerID,
	})

	return &mindmap, nil
}

// FindOne returns a mindmap the requester may read.
//
// The cached snapshot can prove ownership and public visibility on its
// own, so those fast-path. It cannot prove grant membership (grant
// changes do not invalidate by grantee), so any other requester falls
// through to a full store-backed evaluation.
func (s *MindmapService) FindOne(ctx context.Context, id uuid.UUID, requesterID uuid.UUID) (*models.Mindmap, error) {
	var cached models.Mindmap
	if cache.GetJSON(ctx, s.Cache, mindmapKey(id), &cached) && cached.ID == id {
		if cached.OwnerID == requesterID || cached.Visibility == models.VisibilityPublic {
			return &cached, nil
		}
	}

	var mindmap models.Mindmap
	err := s.DB.WithContext(ctx).
		Preload("Owner").
		Preload("Shares").
		Preload("Shares.User").
		First(&mindmap, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	level := EvaluateAccess(mindmap.OwnerID, mindmap.Visibility, mindmap.Shares, &requesterID)
	if !level.CanRead() {
		return nil, ErrForbidden
	}

	if err := cache.SetJSON(ctx, s.Cache, mindmapKey(id), &mindmap, s.TTL); err != nil {
		logger.Warn("mindmap_cache_set_failed", map[string]interface{}{
			"mindmap_id": id.String(),
			"error":      err.Error(),
		})
	}

	return &mindmap, nil
}

type UpdateMindmapInput struct {
	Title       *string
	Description *string
	Data        map[string]interface{}
	Thumbnail   *string
	Visibility  *models.MindmapVisibility
	IsFavorite  *bool
	IsArchived  *bool
}

func (s *MindmapService) Update(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, input UpdateMindmapInput) (*models.Mindmap, error) {
	mindmap, err := s.findOwned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		mindmap.Title = *input.Title
	}
	if input.Description != nil {
		mindmap.Description = input.Description
	}
	if input.Data != nil {
		mindmap.Data = input.Data
	}
	if input.Thumbnail != nil {
		mindmap.Thumbnail = input.Thumbnail
	}
	if input.Visibility != nil {
		mindmap.Visibility = *input.Visibility
	}
	if input.IsFavorite != nil {
		mindmap.IsFavorite = *input.IsFavorite
	}
	if input.IsArchived != nil {
		mindmap.IsArchived = *input.IsArchived
	}

	if err := s.DB.WithContext(ctx).Save(mindmap).Error; err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)

	s.Activity.Record(ActivityEntry{
		Action:   "UPDATE_MINDMAP",
		Entity:   "Mindmap",
		EntityID: &id,
		UserID:   &ownerID,
	})

	return mindmap, nil
}

func (s *MindmapService) Delete(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error {
	if _, err := s.findOwned(ctx, id, ownerID); err != nil {
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
		Action:   "DELETE_MINDMAP",
		Entity:   "Mindmap",
		EntityID: &id,
		UserID:   &ownerID,
	})

	return nil
}

// ToggleFavorite flips the favorite flag. The read-then-write is not
// atomic; concurrent toggles are last-write-wins on this one column and
// touch nothing else.
func (s *MindmapService) ToggleFavorite(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Mindmap, error) {
	return s.toggleFlag(ctx, id, ownerID, "is_favorite")
}

func (s *MindmapService) ToggleArchive(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Mindmap, error) {
	return s.toggleFlag(ctx, id, ownerID, "is_archived")
}

func (s *MindmapService) toggleFlag(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, column string) (*models.Mindmap, error) {
	mindmap, err := s.findOwned(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}

	current := mindmap.IsFavorite
	if column == "is_archived" {
		current = mindmap.IsArchived
	}

	if err := s.DB.WithContext(ctx).Model(mindmap).Update(column, !current).Error; err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)

	return mindmap, nil
}

func (s *MindmapService) Share(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, granteeEmail string, canEdit bool) (*models.MindmapShare, error) {
	if _, err := s.findOwned(ctx, id, ownerID); err != nil {
		return nil, err
	}

	var grantee models.User
	err := s.DB.WithContext(ctx).First(&grantee, "email = ?", strings.ToLower(strings.TrimSpace(granteeEmail))).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if grantee.ID == ownerID {
		return nil, ErrSelfShare
	}

	var share models.MindmapShare
	err = s.DB.WithContext(ctx).First(&share, "mindmap_id = ? AND user_id = ?", id, grantee.ID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		share = models.MindmapShare{MindmapID: id, UserID: grantee.ID, CanEdit: canEdit}
		if err := s.DB.WithContext(ctx).Create(&share).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := s.DB.WithContext(ctx).Model(&share).Update("can_edit", canEdit).Error; err != nil {
			return nil, err
		}
		share.CanEdit = canEdit
	}

	// A grant exists now, so the mindmap is SHARED by definition.
	if err := s.DB.WithContext(ctx).Model(&models.Mindmap{}).
		Where("id = ?", id).
		Update("visibility", models.VisibilityShared).Error; err != nil {
		return nil, err
	}

	s.invalidate(ctx, id)

	s.Activity.Record(ActivityEntry{
		Action:   "SHARE_MINDMAP",
		Entity:   "Mindmap",
		EntityID: &id,
		UserID:   &ownerID,
		Metadata: map[string]interface{}{"sharedWith": grantee.Email},
	})

	return &share, nil
}

func (s *MindmapService) RemoveShare(ctx context.Context, id uuid.UUID, ownerID uuid.UUID, granteeID uuid.UUID) error {
	if _, err := s.findOwned(ctx, id, ownerID); err != nil {
		return err
	}

	result := s.DB.WithContext(ctx).Delete(&models.MindmapShare{}, "mindmap_id = ? AND user_id = ?", id, granteeID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	// Re-derive visibility from the grant count at write time rather
	// than assuming it; concurrent share/removeShare then self-heal on
	// the next mutation. At zero grants the map always drops to
	// PRIVATE, even if the owner had promoted it to PUBLIC meanwhile.
	var remaining int64
	if err := s.DB.WithContext(ctx).Model(&models.MindmapShare{}).
		Where("mindmap_id = ?", id).
		Count(&remaining).Error; err != nil {
		return err
	}

	if remaining == 0 {
		if err := s.DB.WithContext(ctx).Model(&models.Mindmap{}).
			Where("id = ?", id).
			Update("visibility", models.VisibilityPrivate).Error; err != nil {
			return err
		}
	}

	s.invalidate(ctx, id)

	return nil
}

// GenerateShareLink lazily mints the permanent share token: 16 random
// bytes, hex encoded. The conditional update makes concurrent first
// calls converge on a single persisted token.
func (s *MindmapService) GenerateShareLink(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (string, error) {
	mindmap, err := s.findOwned(ctx, id, ownerID)
	if err != nil {
		return "", err
	}

	if mindmap.ShareToken == nil {
		raw := make([]byte, 16)
		if _, err := rand.Read(raw); err != nil {
			return "", err
		}
		token := hex.EncodeToString(raw)

		result := s.DB.WithContext(ctx).Model(&models.Mindmap{}).
			Where("id = ? AND share_token IS NULL", id).
			Update("share_token", token)
		if result.Error != nil {
			return "", result.Error
		}

		if result.RowsAffected > 0 {
			mindmap.ShareToken = &token
		} else {
			// Lost the race to a concurrent caller; read their token.
			if err := s.DB.WithContext(ctx).First(mindmap, "id = ?", id).Error; err != nil {
				return "", err
			}
		}
	}

	s.Activity.Record(ActivityEntry{
		Action:   "GENERATE_SHARE_LINK",
		Entity:   "Mindmap",
		EntityID: &id,
		UserID:   &ownerID,
	})

	return *mindmap.ShareToken, nil
}

// SharedMindmapView is the read-only projection served to anonymous
// share-link holders: no visibility, no grants, no owner email.
type SharedMindmapView struct {
	ID          uuid.UUID              `json:"id"`
	Title       string                 `json:"title"`
	Description *string                `json:"description,omitempty"`
	Data        map[string]interface{} `json:"data"`
	Thumbnail   *string                `json:"thumbnail,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
	Owner       models.PublicProfile   `json:"owner"`
}

// GetByShareToken serves anonymous read-only access. Token possession is
// the sole access control; visibility and grants are not consulted. The
// result is never cached.
func (s *MindmapService) GetByShareToken(ctx context.Context, token string) (*SharedMindmapView, error) {
	var mindmap models.Mindmap
	err := s.DB.WithContext(ctx).
		Preload("Owner").
		First(&mindmap, "share_token = ?", token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &SharedMindmapView{
		ID:          mindmap.ID,
		Title:       mindmap.Title,
		Description: mindmap.Description,
		Data:        mindmap.Data,
		Thumbnail:   mindmap.Thumbnail,
		CreatedAt:   mindmap.CreatedAt,
		UpdatedAt:   mindmap.UpdatedAt,
		Owner:       mindmap.Owner.PublicProfile(),
	}, nil
}

// Duplicate copies a mindmap the requester may read into a fresh private
// mindmap owned by the requester. Deliberately broader than owner-only:
// copying a viewable map does not affect the original.
func (s *MindmapService) Duplicate(ctx context.Context, id uuid.UUID, requesterID uuid.UUID) (*models.Mindmap, error) {
	source, err := s.FindOne(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}

	data, err := cloneDocument(source.Data)
	if err != nil {
		return nil, err
	}

	duplicate := models.Mindmap{
		Title:       source.Title + " (Copy)",
		Description: source.Description,
		Data:        data,
		Visibility:  models.VisibilityPrivate,
		OwnerID:     requesterID,
	}

	if err := s.DB.WithContext(ctx).Create(&duplicate).Error; err != nil {
		return nil, err
	}

	s.Activity.Record(ActivityEntry{
		Action:   "DUPLICATE_MINDMAP",
		Entity:   "Mindmap",
		EntityID: &duplicate.ID,
		UserID:   &requesterID,
		Metadata: map[string]interface{}{"originalId": id.String()},
	})

	return &duplicate, nil
}

// cloneDocument deep-copies the opaque document body through a JSON
// round trip; the service never inspects the graph inside.
func cloneDocument(data map[string]interface{}) (map[string]interface{}, error) {
	if data == nil {
		return map[string]interface{}{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	clone := map[string]interface{}{}
	if err := json.Unmarshal(raw, &clone); err != nil {
		return nil, err
	}
	return clone, nil
}

type MindmapQuery struct {
	Search     string
	Visibility *models.MindmapVisibility
	IsFavorite *bool
	IsArchived *bool
	Sort       string
	Order      string
}

var allowedSortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"title":     "title",
}

// FindAll lists the owner's mindmaps. Archived maps are excluded unless
// explicitly requested.
func (s *MindmapService) FindAll(ctx context.Context, ownerID uuid.UUID, q MindmapQuery, p utils.PaginationParams) ([]models.Mindmap, int64, error) {
	archived := false
	if q.IsArchived != nil {
		archived = *q.IsArchived
	}

	baseQuery := s.DB.WithContext(ctx).Model(&models.Mindmap{}).
		Where("owner_id = ?", ownerID).
		Where("is_archived = ?", archived)

	baseQuery = applySearch(baseQuery, q.Search)

	if q.Visibility != nil {
		baseQuery = baseQuery.Where("visibility = ?", *q.Visibility)
	}
	if q.IsFavorite != nil {
		baseQuery = baseQuery.Where("is_favorite = ?", *q.IsFavorite)
	}

	var total int64
	if err := baseQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortColumn, ok := allowedSortColumns[q.Sort]
	if !ok {
		sortColumn = "updated_at"
	}
	direction := "DESC"
	if strings.EqualFold(q.Order, "asc") {
		direction = "ASC"
	}

	var mindmaps []models.Mindmap
	if err := utils.ApplyPagination(baseQuery.Select(mindmapSummaryColumns).Order(sortColumn+" "+direction), p).
		Find(&mindmaps).Error; err != nil {
		return nil, 0, err
	}

	return mindmaps, total, nil
}

// SharedMindmapItem is one row of the shared-with-me listing.
type SharedMindmapItem struct {
	ID          uuid.UUID            `json:"id"`
	Title       string               `json:"title"`
	Description *string              `json:"description,omitempty"`
	Thumbnail   *string              `json:"thumbnail,omitempty"`
	UpdatedAt   time.Time            `json:"updatedAt"`
	Owner       models.PublicProfile `json:"owner"`
	CanEdit     bool                 `json:"canEdit"`
}

func (s *MindmapService) SharedWithMe(ctx context.Context, userID uuid.UUID, p utils.PaginationParams) ([]SharedMindmapItem, int64, error) {
	baseQuery := s.DB.WithContext(ctx).Model(&models.MindmapShare{}).Where("user_id = ?", userID)

	var total int64
	if err := baseQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var shares []models.MindmapShare
	if err := utils.ApplyPagination(baseQuery.Preload("Mindmap").Preload("Mindmap.Owner").Order("created_at DESC"), p).
		Find(&shares).Error; err != nil {
		return nil, 0, err
	}

	items := make([]SharedMindmapItem, 0, len(shares))
	for _, share := range shares {
		items = append(items, SharedMindmapItem{
			ID:          share.Mindmap.ID,
			Title:       share.Mindmap.Title,
			Description: share.Mindmap.Description,
			Thumbnail:   share.Mindmap.Thumbnail,
			UpdatedAt:   share.Mindmap.UpdatedAt,
			Owner:       share.Mindmap.Owner.PublicProfile(),
			CanEdit:     share.CanEdit,
		})
	}

	return items, total, nil
}

// Public lists publicly visible, non-archived mindmaps for the gallery.
// Anonymous callers are allowed.
func (s *MindmapService) Public(ctx context.Context, search string, p utils.PaginationParams) ([]models.Mindmap, int64, error) {
	baseQuery := s.DB.WithContext(ctx).Model(&models.Mindmap{}).
		Where("visibility = ?", models.VisibilityPublic).
		Where("is_archived = ?", false)

	baseQuery = applySearch(baseQuery, search)

	var total int64
	if err := baseQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var mindmaps []models.Mindmap
	if err := utils.ApplyPagination(baseQuery.Select(mindmapSummaryColumns).Preload("Owner").Order("updated_at DESC"), p).
		Find(&mindmaps).Error; err != nil {
		return nil, 0, err
	}

	return mindmaps, total, nil
}

func applySearch(db *gorm.DB, search string) *gorm.DB {
	search = strings.TrimSpace(search)
	if search == "" {
		return db
	}
	value := "%" + strings.ToLower(search) + "%"
	return db.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", value, value)
}

// PurgeOwner removes every mindmap a user owns plus every grant the
// user holds on other maps, invalidating the touched cache entries.
// Called on account deletion before the user row goes away.
func (s *MindmapService) PurgeOwner(ctx context.Context, ownerID uuid.UUID) error {
	var ownedIDs []uuid.UUID
	if err := s.DB.WithContext(ctx).Model(&models.Mindmap{}).
		Where("owner_id = ?", ownerID).
		Pluck("id", &ownedIDs).Error; err != nil {
		return err
	}

	var grantedIDs []uuid.UUID
	if err := s.DB.WithContext(ctx).Model(&models.MindmapShare{}).
		Where("user_id = ?", ownerID).
		Pluck("mindmap_id", &grantedIDs).Error; err != nil {
		return err
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(ownedIDs) > 0 {
			if err := tx.Delete(&models.MindmapShare{}, "mindmap_id IN ?", ownedIDs).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(&models.MindmapShare{}, "user_id = ?", ownerID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Mindmap{}, "owner_id = ?", ownerID).Error
	})
	if err != nil {
		return err
	}

	for _, id := range ownedIDs {
		s.invalidate(ctx, id)
	}
	for _, id := range grantedIDs {
		s.invalidate(ctx, id)
	}

	return nil
}

func (s *MindmapService) findOwned(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Mindmap, error) {
	var mindmap models.Mindmap
	if err := s.DB.WithContext(ctx).First(&mindmap, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if mindmap.OwnerID != ownerID {
		return nil, ErrForbidden
	}

	return &mindmap, nil
}
