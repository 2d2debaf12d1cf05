package repository

import (
	"context"
	"fmt"
	"time"
)

const (
	// TrendingWindow and TrendingLimit bound the stream-count ranking.
	TrendingWindow = 7 * 24 * time.Hour
	TrendingLimit  = 20
	// TopMintsWindow and TopMintsLimit bound the download-count ranking.
	TopMintsWindow = 24 * time.Hour
	TopMintsLimit  = 7
)

// RankedSong 排行榜条目，Total 为窗口内的播放或下载次数
type RankedSong struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	R2ObjectKey string `json:"r2ObjectKey"`
	MoodType    string `json:"moodType"`
	Total       int64  `json:"count" gorm:"column:total"`
}

func (r *gormInteractionRepository) TopStreamed(ctx context.Context, since time.Time, limit int) ([]RankedSong, error) {
	return r.rank(ctx, "streams", "streamed_at", since, limit)
}

func (r *gormInteractionRepository) TopDownloaded(ctx context.Context, since time.Time, limit int) ([]RankedSong, error) {
	return r.rank(ctx, "downloads", "downloaded_at", since, limit)
}

// rank counts rows of table per song since the given time. Songs without rows are left out.
func (r *gormInteractionRepository) rank(ctx context.Context, table, timeCol string, since time.Time, limit int) ([]RankedSong, error) {
	var out []RankedSong
	err := r.db.WithContext(ctx).Table("songs AS s").
		Select("s.id, s.title, s.artist, s.r2_object_key, s.mood_type, COUNT(e.id) AS total").
		Joins(fmt.Sprintf("JOIN %s e ON e.song_id = s.id", table)).
		Where(fmt.Sprintf("e.%s >= ?", timeCol), since).
		Group("s.id, s.title, s.artist, s.r2_object_key, s.mood_type").
		Order("total DESC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
