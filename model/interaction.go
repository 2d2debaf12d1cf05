package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Stream 播放记录，匿名播放时 UserID 为空
type Stream struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	UserID     *string   `json:"userId" gorm:"size:36;index"`
	SongID     string    `json:"songId" gorm:"size:36;not null;index"`
	StreamedAt time.Time `json:"streamedAt" gorm:"autoCreateTime;index"`
	Song       *Song     `json:"song,omitempty" gorm:"foreignKey:SongID"`
}

// TableName 指定表名
func (Stream) TableName() string {
	return "streams"
}

func (s *Stream) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Download 下载记录，每个用户每首歌只记一次
type Download struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	UserID       string    `json:"userId" gorm:"size:36;not null;uniqueIndex:idx_download_user_song"`
	SongID       string    `json:"songId" gorm:"size:36;not null;uniqueIndex:idx_download_user_song"`
	DownloadedAt time.Time `json:"downloadedAt" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (Download) TableName() string {
	return "downloads"
}

func (d *Download) BeforeCreate(*gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// AllModels 需要自动迁移的模型
func AllModels() []interface{} {
	return []interface{}{&User{}, &Song{}, &LibraryEntry{}, &LikedSong{}, &Stream{}, &Download{}}
}
