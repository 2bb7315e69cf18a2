package testutil

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"peiplan_backend/internal/model"
)

// SetupTestDB opens an in-memory SQLite database with all models migrated.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect test database: %v", err)
	}

	err = db.AutoMigrate(
		&model.User{},
		&model.Profile{},
		&model.School{},
		&model.Classroom{},
		&model.ClassroomAssignment{},
		&model.Student{},
		&model.MedicalCondition{},
		&model.Note{},
		&model.WeeklyPlan{},
		&model.PEI{},
		&model.AIRequest{},
		&model.Subscription{},
		&model.SubscriptionLimit{},
		&model.SubscriptionFeature{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}
