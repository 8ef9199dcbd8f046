// Package store 提供用户和练习记录的持久化
package store

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"voice_eval/internal/config"
	"voice_eval/internal/models"
)

// Stores 按配置选择的存储实现
type Stores struct {
	Users     models.UserStore
	Practices models.PracticeStore
	Driver    string
	db        *gorm.DB
}

// Persistent 是否使用数据库
func (s *Stores) Persistent() bool {
	return s.db != nil
}

// Close 关闭数据库连接
func (s *Stores) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// New 根据配置创建存储，memory 驱动不连接数据库
func New(cfg config.DatabaseConfig) (*Stores, error) {
	if cfg.Driver == config.DriverMemory {
		mem := NewMemoryStore()
		return &Stores{Users: mem, Practices: mem.Practices(), Driver: cfg.Driver}, nil
	}

	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return &Stores{
		Users:     NewUserStore(db),
		Practices: NewPracticeStore(db),
		Driver:    cfg.Driver,
		db:        db,
	}, nil
}

// Open 打开数据库连接
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrUnknownDriver, cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}
	return db, nil
}

// Migrate 自动建表
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Practice{}); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	return nil
}
