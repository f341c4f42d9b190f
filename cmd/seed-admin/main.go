// seed-admin creates or updates the bootstrap business and admin user so a
// fresh deployment can log in.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/portfolio_backend/config"
	"bitbucket.org/mmdatafocus/portfolio_backend/models"
	"bitbucket.org/mmdatafocus/portfolio_backend/utils"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	businessId := strings.TrimSpace(os.Getenv("SEED_BUSINESS_ID"))
	if businessId == "" {
		businessId = "default"
	}
	businessName := strings.TrimSpace(os.Getenv("SEED_BUSINESS_NAME"))
	if businessName == "" {
		businessName = "Default Business"
	}
	username := strings.TrimSpace(os.Getenv("SEED_ADMIN_USERNAME"))
	if username == "" {
		username = "portfolioAdmin"
	}
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		fmt.Fprintln(os.Stderr, "SEED_ADMIN_PASSWORD is required")
		os.Exit(2)
	}

	ctx = utils.SetBusinessIdInContext(ctx, businessId)
	ctx = utils.SetIsAdminInContext(ctx, true)
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	var biz models.Business
	err := db.WithContext(ctx).Where("id = ?", businessId).Take(&biz).Error
	if err == gorm.ErrRecordNotFound {
		biz = models.Business{ID: businessId, Name: businessName, Active: true}
		if err := db.WithContext(ctx).Create(&biz).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create business: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("created business %s\n", businessId)
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "failed to lookup business: %v\n", err)
		os.Exit(1)
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	var existing models.User
	err = db.WithContext(ctx).Where("username = ?", username).Take(&existing).Error
	if err == gorm.ErrRecordNotFound {
		u := models.User{
			BusinessId: businessId,
			Username:   username,
			Password:   string(hashed),
			Role:       models.UserRoleAdmin,
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("created admin user %s\n", username)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
		os.Exit(1)
	}

	updates := map[string]interface{}{
		"password": string(hashed),
		"role":     models.UserRoleAdmin,
	}
	if err := db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update user: %v\n", err)
		os.Exit(1)
	}
	_ = config.RemoveRedisKey("User:" + username)
	fmt.Printf("updated admin user %s\n", username)
}
