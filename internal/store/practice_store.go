package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"voice_eval/internal/models"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// PracticeStore 基于gorm的练习记录存储
type PracticeStore struct {
	db *gorm.DB
}

// NewPracticeStore 创建练习记录存储
func NewPracticeStore(db *gorm.DB) *PracticeStore {
	return &PracticeStore{db: db}
}

func (s *PracticeStore) Create(ctx context.Context, p *models.Practice) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *PracticeStore) List(ctx context.Context, userID string, filter models.PracticeFilter) ([]models.Practice, int64, error) {
	filter = normalizeFilter(filter)

	q := s.db.WithContext(ctx).Model(&models.Practice{}).Where("user_id = ?", userID)
	if filter.Type.Valid() {
		q = q.Where("type = ?", filter.Type)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []models.Practice
	err := q.Order("created_at DESC").Limit(filter.Limit).Offset(filter.Offset).Find(&list).Error
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *PracticeStore) ListAll(ctx context.Context, userID string) ([]models.Practice, error) {
	var list []models.Practice
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&list).Error
	return list, err
}

func normalizeFilter(f models.PracticeFilter) models.PracticeFilter {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
