package repository

import (
	"context"

	"nuvyx/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LibraryRepository 曲库数据访问接口
type LibraryRepository interface {
	List(ctx context.Context, userID string) ([]*model.LibraryEntry, error)
	// Add is idempotent: adding a song already in the library succeeds.
	Add(ctx context.Context, userID, songID string) error
	Remove(ctx context.Context, userID, songID string) error
}

type gormLibraryRepository struct {
	db *gorm.DB
}

func NewGormLibraryRepository(db *gorm.DB) LibraryRepository {
	return &gormLibraryRepository{db: db}
}

func (r *gormLibraryRepository) List(ctx context.Context, userID string) ([]*model.LibraryEntry, error) {
	var entries []*model.LibraryEntry
	err := r.db.WithContext(ctx).
		Preload("Song").
		Where("user_id = ?", userID).
		Order("added_at DESC").
		Find(&entries).Error
	return entries, err
}

func (r *gormLibraryRepository) Add(ctx context.Context, userID, songID string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.LibraryEntry{UserID: userID, SongID: songID}).Error
}

func (r *gormLibraryRepository) Remove(ctx context.Context, userID, songID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND song_id = ?", userID, songID).
		Delete(&model.LibraryEntry{}).Error
}
