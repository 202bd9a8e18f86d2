package services

import (
	"fmt"
	"testing"

	"hunter-ledger-system/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Hunter{},
		&models.Award{},
		&models.HunterBadge{},
		&models.LeaderboardSnapshot{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func floatPtr(v float64) *float64 { return &v }
