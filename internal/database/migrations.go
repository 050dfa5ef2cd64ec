package database

import (
	"errors"
	"time"

	"github.com/MarcoPoloResearchLab/docrev/internal/docs"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillSuggestionDescriptions = "2026-10-01_backfill_suggestion_descriptions"
	migrationBackfillVersionAuthors         = "2026-10-02_backfill_version_authors"
)

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

var migrations = []migrationDefinition{
	{name: migrationBackfillSuggestionDescriptions, apply: backfillSuggestionDescriptions},
	{name: migrationBackfillVersionAuthors, apply: backfillVersionAuthors},
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillSuggestionDescriptions replaces NULL descriptions left by rows
// written before the column carried a default.
func backfillSuggestionDescriptions(db *gorm.DB) error {
	return db.Model(&docs.Suggestion{}).
		Where("description IS NULL").
		Update("description", "").Error
}

// backfillVersionAuthors attributes unauthored versions to the document owner.
func backfillVersionAuthors(db *gorm.DB) error {
	return db.Exec(
		"UPDATE versions SET author_id = (SELECT owner_id FROM documents WHERE documents.id = versions.document_id) WHERE author_id = ''",
	).Error
}
