package services

import (
	"context"
	"errors"
	"time"

	"github.com/mindgraph/backend/internal/cache"
	"github.com/mindgraph/backend/internal/models"
	"github.com/mindgraph/backend/pkg/logger"
	"gorm.io/gorm"
)

const settingKeyPrefix = "setting:"

// SettingsService reads mutable application settings from the store at
// call time. Reads go through the cache with the same delete-on-write
// invalidation the mindmap cache uses, so no service ever holds a stale
// process-wide snapshot.
type SettingsService struct {
	DB    *gorm.DB
	Cache cache.Store
	TTL   time.Duration
}

func NewSettingsService(db *gorm.DB, store cache.Store, ttl time.Duration) *SettingsService {
	return &SettingsService{DB: db, Cache: store, TTL: ttl}
}

// All returns every setting keyed by name. Uncached: only the admin panel
// reads the full set.
func (s *SettingsService) All(ctx context.Context) (map[string]interface{}, error) {
	var settings []models.Setting
	if err := s.DB.WithContext(ctx).Find(&settings).Error; err != nil {
		return nil, err
	}

	result := make(map[string]interface{}, len(settings))
	for _, setting := range settings {
		result[setting.Key] = setting.Value
	}
	return result, nil
}

// Get returns one setting value, read through the cache.
func (s *SettingsService) Get(ctx context.Context, key string) (map[string]interface{}, error) {
	var cached map[string]interface{}
	if cache.GetJSON(ctx, s.Cache, settingKeyPrefix+key, &cached) {
		return cached, nil
	}

	var setting models.Setting
	if err := s.DB.WithContext(ctx).First(&setting, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := cache.SetJSON(ctx, s.Cache, settingKeyPrefix+key, setting.Value, s.TTL); err != nil {
		logger.Warn("settings_cache_set_failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}

	return setting.Value, nil
}

// Update upserts the given settings and invalidates each touched key.
// Invalidation runs after the store write; a failed delete leaves a stale
// entry that expires with its TTL.
func (s *SettingsService) Update(ctx context.Context, values map[string]map[string]interface{}) error {
	for key, value := range values {
		var setting models.Setting
		err := s.DB.WithContext(ctx).First(&setting, "key = ?", key).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			setting = models.Setting{Key: key, Value: value}
			if err := s.DB.WithContext(ctx).Create(&setting).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := s.DB.WithContext(ctx).Model(&setting).Update("value", value).Error; err != nil {
				return err
			}
		}

		if err := s.Cache.Delete(ctx, settingKeyPrefix+key); err != nil {
			logger.Warn("settings_cache_invalidate_failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}
	return nil
}
