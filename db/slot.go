package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"beatflow/storage"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SlotEntry 槽位表的一行
type SlotEntry struct {
	Key       string `gorm:"primaryKey;size:191"`
	Value     string `gorm:"type:mediumtext"`
	UpdatedAt time.Time
}

func (SlotEntry) TableName() string {
	return "storefront_slots"
}

// GormSlot stores slots as rows of storefront_slots.
type GormSlot struct {
	db *gorm.DB
}

// NewGormSlot 创建槽位；gdb 为 nil 时使用全局 GormDB
func NewGormSlot(gdb *gorm.DB) *GormSlot {
	if gdb == nil {
		gdb = GormDB
	}
	return &GormSlot{db: gdb}
}

func (s *GormSlot) Get(ctx context.Context, key string) (string, bool, error) {
	if s.db == nil {
		return "", false, storage.ErrSlotUnavailable
	}

	var entry SlotEntry
	err := s.db.WithContext(ctx).Where("`key` = ?", key).Take(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get slot %s: %w", key, err)
	}
	return entry.Value, true, nil
}

func (s *GormSlot) Set(ctx context.Context, key, value string) error {
	if s.db == nil {
		return storage.ErrSlotUnavailable
	}

	entry := SlotEntry{Key: key, Value: value, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to set slot %s: %w", key, err)
	}
	return nil
}

func (s *GormSlot) Delete(ctx context.Context, key string) error {
	if s.db == nil {
		return storage.ErrSlotUnavailable
	}

	if err := s.db.WithContext(ctx).Where("`key` = ?", key).Delete(&SlotEntry{}).Error; err != nil {
		return fmt.Errorf("failed to delete slot %s: %w", key, err)
	}
	return nil
}
