package repository

import (
	"context"
	"errors"
	"strings"

	"nuvyx/model"

	"gorm.io/gorm"
)

// SongRepository 歌曲数据访问接口
type SongRepository interface {
	GetByID(ctx context.Context, id string) (*model.Song, error)
	// Search matches query against title and artist case-insensitively. Empty query and mood
	// match everything. limit <= 0 means no limit.
	Search(ctx context.Context, query, mood string, limit int) ([]*model.Song, error)
	Create(ctx context.Context, song *model.Song) error
	// Update applies the non-empty fields of patch and returns the stored song.
	Update(ctx context.Context, id string, patch SongPatch) (*model.Song, error)
	// Delete removes the song together with the library, like and interaction rows that
	// reference it.
	Delete(ctx context.Context, id string) error
	// ReferencesObject reports whether any song is stored under key.
	ReferencesObject(ctx context.Context, key string) (bool, error)
}

// SongPatch 歌曲编辑字段，空值表示不修改
type SongPatch struct {
	Title    string
	Artist   string
	MoodType string
	Duration string
	Tags     []string
}

func (p SongPatch) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if p.Title != "" {
		cols["title"] = p.Title
	}
	if p.Artist != "" {
		cols["artist"] = p.Artist
	}
	if p.MoodType != "" {
		cols["mood_type"] = p.MoodType
	}
	if p.Duration != "" {
		cols["duration"] = p.Duration
	}
	if p.Tags != nil {
		cols["tags"] = model.StringList(p.Tags)
	}
	return cols
}

type gormSongRepository struct {
	db *gorm.DB
}

// NewGormSongRepository 创建 GORM 歌曲仓库
func NewGormSongRepository(db *gorm.DB) SongRepository {
	return &gormSongRepository{db: db}
}

func (r *gormSongRepository) GetByID(ctx context.Context, id string) (*model.Song, error) {
	var song model.Song
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&song).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &song, nil
}

func (r *gormSongRepository) Search(ctx context.Context, query, mood string, limit int) ([]*model.Song, error) {
	tx := r.db.WithContext(ctx).Model(&model.Song{})
	if q := strings.TrimSpace(query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		tx = tx.Where("LOWER(title) LIKE ? OR LOWER(artist) LIKE ?", like, like)
	}
	if mood != "" {
		tx = tx.Where("mood_type = ?", mood)
	}
	if limit > 0 {
		tx = tx.Limit(limit)
	}

	var songs []*model.Song
	if err := tx.Order("created_at DESC").Find(&songs).Error; err != nil {
		return nil, err
	}
	return songs, nil
}

func (r *gormSongRepository) Create(ctx context.Context, song *model.Song) error {
	return r.db.WithContext(ctx).Create(song).Error
}

func (r *gormSongRepository) Update(ctx context.Context, id string, patch SongPatch) (*model.Song, error) {
	if cols := patch.columns(); len(cols) > 0 {
		res := r.db.WithContext(ctx).Model(&model.Song{}).Where("id = ?", id).Updates(cols)
		if res.Error != nil {
			return nil, res.Error
		}
	}
	return r.GetByID(ctx, id)
}

func (r *gormSongRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, dep := range []interface{}{&model.LibraryEntry{}, &model.LikedSong{}, &model.Stream{}, &model.Download{}} {
			if err := tx.Where("song_id = ?", id).Delete(dep).Error; err != nil {
				return err
			}
		}
		res := tx.Where("id = ?", id).Delete(&model.Song{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *gormSongRepository) ReferencesObject(ctx context.Context, key string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Song{}).Where("r2_object_key = ?", key).Count(&n).Error
	return n > 0, err
}
