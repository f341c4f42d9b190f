package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/portfolio_backend/config"
	"bitbucket.org/mmdatafocus/portfolio_backend/utils"
	"gorm.io/gorm"
)

type Business struct {
	ID        string    `gorm:"primary_key;size:64" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Active    bool      `gorm:"default:true" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type User struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index;not null" json:"business_id"`
	Username   string    `gorm:"uniqueIndex;size:128;not null" json:"username"`
	Password   string    `gorm:"size:255" json:"-"`
	Role       string    `gorm:"size:20" json:"role"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

const UserRoleAdmin = "admin"

func GetBusinessById(ctx context.Context, businessId string) (*Business, error) {
	if businessId == "" {
		return nil, errors.New("business id is required")
	}

	var business Business
	exists, err := config.GetRedisObject("Business:"+businessId, &business)
	if err != nil {
		return nil, err
	}
	if exists {
		return &business, nil
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Where("id = ?", businessId).Take(&business).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	_ = config.SetRedisObject("Business:"+businessId, &business, utils.GetCacheLifespan())
	return &business, nil
}

// ActiveBusinessIds lists tenants eligible for scheduled syncs.
// Scheduler runs are not scoped to a request, so tenant scoping is skipped explicitly.
func ActiveBusinessIds(ctx context.Context) ([]string, error) {
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	var ids []string
	err := config.GetDB().WithContext(ctx).
		Model(&Business{}).
		Where("active = ?", true).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func GetUserById(ctx context.Context, userId int) (*User, error) {
	db := config.GetDB()
	if db == nil {
		return nil, errors.New("db is nil")
	}

	var user User
	if err := db.WithContext(ctx).
		Where("id = ?", userId).
		Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return nil, err
	}
	if exists {
		return &user, nil
	}

	db := config.GetDB()
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := db.WithContext(ctx).
		Model(&User{}).
		Where("username = ?", username).
		Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	_ = config.SetRedisObject("User:"+username, &user, utils.GetCacheLifespan())
	return &user, nil
}
