package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LibraryEntry 用户收藏到曲库的歌曲
type LibraryEntry struct {
	ID      string    `json:"id" gorm:"primaryKey;size:36"`
	UserID  string    `json:"userId" gorm:"size:36;not null;uniqueIndex:idx_library_user_song"`
	SongID  string    `json:"songId" gorm:"size:36;not null;uniqueIndex:idx_library_user_song"`
	AddedAt time.Time `json:"addedAt" gorm:"autoCreateTime;index"`
	Song    *Song     `json:"song,omitempty" gorm:"foreignKey:SongID"`
}

// TableName 指定表名
func (LibraryEntry) TableName() string {
	return "library"
}

func (e *LibraryEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

// LikedSong 用户喜欢的歌曲
type LikedSong struct {
	ID      string    `json:"id" gorm:"primaryKey;size:36"`
	UserID  string    `json:"userId" gorm:"size:36;not null;uniqueIndex:idx_like_user_song"`
	SongID  string    `json:"songId" gorm:"size:36;not null;uniqueIndex:idx_like_user_song"`
	LikedAt time.Time `json:"likedAt" gorm:"autoCreateTime;index"`
	Song    *Song     `json:"song,omitempty" gorm:"foreignKey:SongID"`
}

// TableName 指定表名
func (LikedSong) TableName() string {
	return "liked_songs"
}

func (l *LikedSong) BeforeCreate(*gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
