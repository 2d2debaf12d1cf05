package repository

import (
	"context"

	"nuvyx/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository 喜欢数据访问接口
type LikeRepository interface {
	IsLiked(ctx context.Context, userID, songID string) (bool, error)
	List(ctx context.Context, userID string) ([]*model.LikedSong, error)
	Like(ctx context.Context, userID, songID string) error
	Unlike(ctx context.Context, userID, songID string) error
}

type gormLikeRepository struct {
	db *gorm.DB
}

func NewGormLikeRepository(db *gorm.DB) LikeRepository {
	return &gormLikeRepository{db: db}
}

func (r *gormLikeRepository) IsLiked(ctx context.Context, userID, songID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.LikedSong{}).
		Where("user_id = ? AND song_id = ?", userID, songID).
		Count(&count).Error
	return count > 0, err
}

func (r *gormLikeRepository) List(ctx context.Context, userID string) ([]*model.LikedSong, error) {
	var likes []*model.LikedSong
	err := r.db.WithContext(ctx).
		Preload("Song").
		Where("user_id = ?", userID).
		Order("liked_at DESC").
		Find(&likes).Error
	return likes, err
}

func (r *gormLikeRepository) Like(ctx context.Context, userID, songID string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.LikedSong{UserID: userID, SongID: songID}).Error
}

func (r *gormLikeRepository) Unlike(ctx context.Context, userID, songID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND song_id = ?", userID, songID).
		Delete(&model.LikedSong{}).Error
}
