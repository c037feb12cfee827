package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationRecountLocationUsage = "2026-08-20_recount_location_usage"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationRecountLocationUsage, apply: recountLocationUsage},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// recountLocationUsage recomputes usage_count from the session rows that
// actually reference each location. Counts drift when sessions are deleted,
// since deletes do not decrement the counter.
func recountLocationUsage(db *gorm.DB) error {
	return db.Exec(`
		UPDATE locations SET usage_count = (
			SELECT COUNT(*) FROM consumption_sessions
			WHERE consumption_sessions.location_id = locations.location_id
		)
		WHERE EXISTS (
			SELECT 1 FROM consumption_sessions
			WHERE consumption_sessions.location_id = locations.location_id
		)`).Error
}
