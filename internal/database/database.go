package database

import (
	"fmt"

	"github.com/mindgraph/backend/internal/config"
	"github.com/mindgraph/backend/internal/models"
	"github.com/mindgraph/backend/pkg/utils"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := seedAdminUser(db); err != nil {
		return nil, err
	}

	if err := seedDefaultSettings(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate is exported so the test harness can run it against an
// in-memory database.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Mindmap{},
		&models.MindmapShare{},
		&models.Setting{},
		&models.ActivityLog{},
	)
}

func seedAdminUser(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return nil
	}

	hash, err := utils.HashPassword("admin123")
	if err != nil {
		return err
	}

	admin := models.User{
		Email:        "admin@mindgraph.local",
		PasswordHash: hash,
		FirstName:    "System",
		LastName:     "Admin",
		Role:         models.UserRoleAdmin,
		IsActive:     true,
		IsVerified:   true,
	}

	return db.Create(&admin).Error
}

func seedDefaultSettings(db *gorm.DB) error {
	defaults := []models.Setting{
		{
			Key:         "registration",
			Value:       map[string]interface{}{"enabled": true},
			Description: "Whether new user signups are accepted",
		},
		{
			Key:         "limits",
			Value:       map[string]interface{}{"maxMindmapsPerUser": 100, "maxNodesPerMindmap": 5000},
			Description: "Per-user resource limits",
		},
		{
			Key:         "features",
			Value:       map[string]interface{}{"publicGallery": true, "shareLinks": true},
			Description: "Feature toggles",
		},
	}

	for _, setting := range defaults {
		var count int64
		if err := db.Model(&models.Setting{}).Where("key = ?", setting.Key).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		if err := db.Create(&setting).Error; err != nil {
			return err
		}
	}
	return nil
}
