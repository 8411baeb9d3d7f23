package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mindgraph/backend/internal/cache"
	"github.com/mindgraph/backend/internal/models"
	"gorm.io/gorm"
)

func setupSettingsTest(t *testing.T) (*SettingsService, *cache.MemoryStore, *gorm.DB) {
	t.Helper()

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

	if err := db.AutoMigrate(&models.Setting{}); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	store := cache.NewMemoryStore()
	return NewSettingsService(db, store, 5*time.Minute), store, db
}

func TestSettingsReadThroughCache(t *testing.T) {
	service, store, db := setupSettingsTest(t)
	ctx := context.Background()

	row := models.Setting{Key: "registration", Value: map[string]interface{}{"enabled": true}}
	if err := db.Create(&row).Error; err != nil {
		t.Fatal(err)
	}

	value, err := service.Get(ctx, "registration")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if enabled, _ := value["enabled"].(bool); !enabled {
		t.Errorf("unexpected value: %v", value)
	}

	if _, ok, _ := store.Get(ctx, "setting:registration"); !ok {
		t.Fatal("expected cache entry after read")
	}

	// A read with a warm cache must not depend on the row anymore.
	if err := db.Delete(&models.Setting{}, "key = ?", "registration").Error; err != nil {
		t.Fatal(err)
	}
	if _, err := service.Get(ctx, "registration"); err != nil {
		t.Fatalf("cached read failed: %v", err)
	}
}

func TestSettingsUpdateInvalidates(t *testing.T) {
	service, store, _ := setupSettingsTest(t)
	ctx := context.Background()

	if err := service.Update(ctx, map[string]map[string]interface{}{
		"limits": {"maxMindmapsPerUser": 10},
	}); err != nil {
		t.Fatalf("initial update failed: %v", err)
	}

	value, err := service.Get(ctx, "limits")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got, _ := value["maxMindmapsPerUser"].(float64); got != 10 {
		t.Errorf("expected 10, got %v", value["maxMindmapsPerUser"])
	}

	if err := service.Update(ctx, map[string]map[string]interface{}{
		"limits": {"maxMindmapsPerUser": 25},
	}); err != nil {
		t.Fatalf("second update failed: %v", err)
	}

	if _, ok, _ := store.Get(ctx, "setting:limits"); ok {
		t.Fatal("cache entry must be deleted after update")
	}

	value, err = service.Get(ctx, "limits")
	if err != nil {
		t.Fatalf("get after update failed: %v", err)
	}
	if got, _ := value["maxMindmapsPerUser"].(float64); got != 25 {
		t.Errorf("expected fresh value 25, got %v", value["maxMindmapsPerUser"])
	}
}

func TestSettingsUnknownKey(t *testing.T) {
	service, _, _ := setupSettingsTest(t)
	if _, err := service.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
