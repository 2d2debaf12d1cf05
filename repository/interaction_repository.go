package repository

import (
	"context"
	"time"

	"nuvyx/model"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HistoryLimit is how many distinct songs History returns.
const HistoryLimit = 50

// HistoryEntry is one distinct song from a user's listening history.
type HistoryEntry struct {
	SongID     string      `json:"songId"`
	StreamedAt time.Time   `json:"streamedAt"`
	Song       *model.Song `json:"song,omitempty"`
}

// InteractionRepository 播放/下载记录数据访问接口
type InteractionRepository interface {
	// RecordStream stores a stream. An empty userID records an anonymous stream.
	RecordStream(ctx context.Context, userID, songID string) error
	// RecordDownload stores at most one download per user and song.
	RecordDownload(ctx context.Context, userID, songID string) error
	// History returns the user's most recently streamed distinct songs, newest first.
	History(ctx context.Context, userID string, limit int) ([]HistoryEntry, error)
	// TopStreamed ranks songs by streams since the given time, most streamed first.
	TopStreamed(ctx context.Context, since time.Time, limit int) ([]RankedSong, error)
	// TopDownloaded ranks songs by downloads since the given time.
	TopDownloaded(ctx context.Context, since time.Time, limit int) ([]RankedSong, error)
}

type historyRow struct {
	SongID     string
	StreamedAt time.Time
}

type gormInteractionRepository struct {
	db *gorm.DB
}

func NewGormInteractionRepository(db *gorm.DB) InteractionRepository {
	return &gormInteractionRepository{db: db}
}

func (r *gormInteractionRepository) RecordStream(ctx context.Context, userID, songID string) error {
	stream := &model.Stream{SongID: songID}
	if userID != "" {
		stream.UserID = &userID
	}
	return r.db.WithContext(ctx).Create(stream).Error
}

func (r *gormInteractionRepository) RecordDownload(ctx context.Context, userID, songID string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.Download{UserID: userID, SongID: songID}).Error
}

func (r *gormInteractionRepository) History(ctx context.Context, userID string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}

	var rows []historyRow
	err := r.db.WithContext(ctx).Model(&model.Stream{}).
		Select("song_id, MAX(streamed_at) AS streamed_at").
		Where("user_id = ?", userID).
		Group("song_id").
		Order("streamed_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var songs []*model.Song
	ids := lo.Map(rows, func(row historyRow, _ int) string { return row.SongID })
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&songs).Error; err != nil {
		return nil, err
	}
	byID := lo.KeyBy(songs, func(s *model.Song) string { return s.ID })

	entries := make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, HistoryEntry{
			SongID:     row.SongID,
			StreamedAt: row.StreamedAt,
			Song:       byID[row.SongID],
		})
	}
	return entries, nil
}
