package database

import (
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BlakeDanielson/cyrustrack/internal/locations"
	"github.com/BlakeDanielson/cyrustrack/internal/sessions"
)

func TestApplyMigrationsRecountsLocationUsage(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&sessions.Session{}, &locations.Location{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	locationID := "loc-1"
	location := locations.Location{
		LocationID: locationID,
		Name:       "Dolores Park",
		UsageCount: 9,
	}
	if err := database.Create(&location).Error; err != nil {
		testContext.Fatalf("failed to insert location: %v", err)
	}

	for _, sessionID := range []string{"sess-1", "sess-2", "sess-3"} {
		record := sessions.Session{
			SessionID:      sessionID,
			Date:           "2026-08-01",
			Time:           "21:00",
			LocationText:   "Dolores Park",
			LocationID:     &locationID,
			VesselCategory: "Glass",
			Vessel:         "Pipe",
			StrainName:     "Gelato",
			QuantityAmount: 2,
			QuantityUnit:   "bowl size",
			QuantityType:   "size_category",
		}
		if err := database.Create(&record).Error; err != nil {
			testContext.Fatalf("failed to insert session: %v", err)
		}
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var stored locations.Location
	if err := database.Where("location_id = ?", locationID).Take(&stored).Error; err != nil {
		testContext.Fatalf("failed to reload location: %v", err)
	}
	if stored.UsageCount != 3 {
		testContext.Fatalf("expected usage count recomputed to 3, got %d", stored.UsageCount)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationRecountLocationUsage).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

func TestApplyMigrationsRunsOnce(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "idempotent.db")

	database, err := OpenSQLite(databasePath, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("expected reapplied migrations to be skipped: %v", err)
	}

	var count int64
	if err := database.Model(&migrationRecord{}).Count(&count).Error; err != nil {
		testContext.Fatalf("failed to count migration records: %v", err)
	}
	if count != 1 {
		testContext.Fatalf("expected a single migration record, got %d", count)
	}
}
