package repository

import (
	"context"
	"errors"

	"nuvyx/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByWallet(ctx context.Context, walletAddress string) (*model.User, error)
	// UpsertWallet returns the user owning walletAddress, creating it on first login.
	UpsertWallet(ctx context.Context, walletAddress string) (*model.User, error)
}

type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new gorm backed UserRepository.
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

func (r *gormUserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *gormUserRepository) GetByWallet(ctx context.Context, walletAddress string) (*model.User, error) {
	return r.first(ctx, "wallet_address = ?", walletAddress)
}

func (r *gormUserRepository) UpsertWallet(ctx context.Context, walletAddress string) (*model.User, error) {
	user := &model.User{WalletAddress: walletAddress}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(user).Error
	if err != nil {
		return nil, err
	}
	// 已存在时 Create 不会回填，重新查询
	return r.GetByWallet(ctx, walletAddress)
}

func (r *gormUserRepository) first(ctx context.Context, query string, arg interface{}) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
