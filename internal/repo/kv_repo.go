// This file provides repository functions for the key-value table that backs
// preferences, the usage counter and the daily quiz status.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/bibleai/internal/domain"
)

// GetKV returns the value stored under key. ok is false when no row exists.
func GetKV(ctx context.Context, db *gorm.DB, key string) (value string, ok bool, err error) {
	var e domain.KVEntry
	err = db.WithContext(ctx).Where("key = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return e.Value, true, nil
}

// PutKV inserts or replaces the value under key.
func PutKV(ctx context.Context, db *gorm.DB, key, value string) error {
	e := domain.KVEntry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
}

// DeleteKV removes key. Deleting a missing key is not an error.
func DeleteKV(ctx context.Context, db *gorm.DB, key string) error {
	return db.WithContext(ctx).Where("key = ?", key).Delete(&domain.KVEntry{}).Error
}
