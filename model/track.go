package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StringList 自定义类型用于 GORM JSON 字段的自动扫描
type StringList []string

// Scan 实现 sql.Scanner 接口
func (s *StringList) Scan(value interface{}) error {
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*s = nil
		return nil
	}
	if len(bytes) == 0 || string(bytes) == "null" {
		*s = nil
		return nil
	}
	return json.Unmarshal(bytes, s)
}

// Value 实现 driver.Valuer 接口
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	return string(b), err
}

// Song is a catalog entry. R2ObjectKey is the storage key the player resolves to a URL.
type Song struct {
	ID          string     `json:"id" gorm:"primaryKey;size:36"`
	Title       string     `json:"title" gorm:"size:255;not null;index"`
	Artist      string     `json:"artist" gorm:"size:255;default:'nuvyx';index"`
	MoodType    string     `json:"moodType" gorm:"size:50;index"`
	R2ObjectKey string     `json:"r2ObjectKey" gorm:"size:512;not null"`
	CoverURL    string     `json:"coverUrl,omitempty" gorm:"size:512"`
	Duration    string     `json:"duration" gorm:"size:16;default:'0:00'"`
	Tags        StringList `json:"tags" gorm:"type:json"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TableName 指定表名
func (Song) TableName() string {
	return "songs"
}

// BeforeCreate 生成 UUID 主键
func (s *Song) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
