package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a listener identified by wallet address.
type User struct {
	ID            string    `json:"id" gorm:"primaryKey;size:36"`
	WalletAddress string    `json:"walletAddress" gorm:"size:42;uniqueIndex;not null"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// BeforeCreate 生成 UUID 主键
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
