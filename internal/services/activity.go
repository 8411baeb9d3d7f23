package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mindgraph/backend/internal/models"
	"github.com/mindgraph/backend/pkg/logger"
	"github.com/mindgraph/backend/pkg/utils"
	"gorm.io/gorm"
)

type ActivityEntry struct {
	Action    string
	Entity    string
	EntityID  *uuid.UUID
	UserID    *uuid.UUID
	Metadata  map[string]interface{}
	IPAddress string
	UserAgent string
}

// ActivityService writes the append-only activity log. Records are
// queued and inserted by a background goroutine; a full queue drops the
// record rather than blocking or failing the caller.
type ActivityService struct {
	DB    *gorm.DB
	queue chan models.ActivityLog
}

func NewActivityService(db *gorm.DB) *ActivityService {
	s := &ActivityService{
		DB:    db,
		queue: make(chan models.ActivityLog, 1000),
	}
	go s.processQueue()
	return s
}

func (s *ActivityService) Record(entry ActivityEntry) {
	row := models.ActivityLog{
		Action:    entry.Action,
		Entity:    entry.Entity,
		EntityID:  entry.EntityID,
		UserID:    entry.UserID,
		Metadata:  entry.Metadata,
		IPAddress: entry.IPAddress,
		UserAgent: entry.UserAgent,
		CreatedAt: time.Now().UTC(),
	}

	select {
	case s.queue <- row:
	default:
		logger.Warn("activity_queue_full", map[string]interface{}{
			"action":  entry.Action,
			"dropped": true,
		})
	}
}

func (s *ActivityService) processQueue() {
	for row := range s.queue {
		if err := s.DB.Create(&row).Error; err != nil {
			logger.Error("activity_log_insert_failed", err, map[string]interface{}{
				"action": row.Action,
			})
		}
	}
}

type LogsQuery struct {
	UserID    *uuid.UUID
	Action    string
	Entity    string
	StartDate *time.Time
	EndDate   *time.Time
}

// GetLogs is the admin-facing query side of the log.
func (s *ActivityService) GetLogs(ctx context.Context, q LogsQuery, p utils.PaginationParams) ([]models.ActivityLog, int64, error) {
	baseQuery := s.DB.WithContext(ctx).Model(&models.ActivityLog{})

	if q.UserID != nil {
		baseQuery = baseQuery.Where("user_id = ?", *q.UserID)
	}
	if q.Action != "" {
		baseQuery = baseQuery.Where("action = ?", q.Action)
	}
	if q.Entity != "" {
		baseQuery = baseQuery.Where("entity = ?", q.Entity)
	}
	if q.StartDate != nil {
		baseQuery = baseQuery.Where("created_at >= ?", *q.StartDate)
	}
	if q.EndDate != nil {
		baseQuery = baseQuery.Where("created_at <= ?", *q.EndDate)
	}

	var total int64
	if err := baseQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.ActivityLog
	if err := utils.ApplyPagination(baseQuery.Preload("User").Order("created_at DESC"), p).
		Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
