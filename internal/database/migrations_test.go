package database

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/docrev/internal/docs"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const legacySuggestionsTable = `CREATE TABLE change_suggestions (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT,
	content TEXT NOT NULL,
	author_id TEXT NOT NULL,
	base_version_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME NOT NULL
)`

func TestApplyMigrationsBackfillsLegacyRows(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&docs.Document{}, &docs.Version{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}
	if err := database.Exec(legacySuggestionsTable).Error; err != nil {
		testContext.Fatalf("failed to create legacy table: %v", err)
	}

	if err := database.Exec(
		"INSERT INTO documents (id, owner_id, title, created_at, updated_at) VALUES ('doc-1', 'owner-1', 'Doc', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)",
	).Error; err != nil {
		testContext.Fatalf("failed to insert document: %v", err)
	}
	if err := database.Exec(
		"INSERT INTO versions (id, document_id, number, content, created_at) VALUES ('ver-1', 'doc-1', 1, 'A', CURRENT_TIMESTAMP)",
	).Error; err != nil {
		testContext.Fatalf("failed to insert version: %v", err)
	}
	if err := database.Exec(
		"INSERT INTO change_suggestions (id, document_id, title, content, author_id, base_version_id, created_at) VALUES ('sug-1', 'doc-1', 'Fix', 'B', 'user-2', 'ver-1', CURRENT_TIMESTAMP)",
	).Error; err != nil {
		testContext.Fatalf("failed to insert suggestion: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var nullDescriptions int64
	if err := database.Table("change_suggestions").Where("description IS NULL").Count(&nullDescriptions).Error; err != nil {
		testContext.Fatalf("failed to count descriptions: %v", err)
	}
	if nullDescriptions != 0 {
		testContext.Fatalf("expected descriptions to be backfilled, %d still NULL", nullDescriptions)
	}

	var version docs.Version
	if err := database.Where("id = ?", "ver-1").Take(&version).Error; err != nil {
		testContext.Fatalf("failed to reload version: %v", err)
	}
	if version.AuthorID != "owner-1" {
		testContext.Fatalf("expected version author to default to owner, got %q", version.AuthorID)
	}

	var recorded int64
	if err := database.Model(&migrationRecord{}).Count(&recorded).Error; err != nil {
		testContext.Fatalf("failed to count migration records: %v", err)
	}
	if recorded != int64(len(migrations)) {
		testContext.Fatalf("expected %d migration records, got %d", len(migrations), recorded)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("second run should be a no-op: %v", err)
	}
}

func TestOpenSQLiteCreatesSchema(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "docrev.db")

	database, err := Open(Config{Driver: DriverSQLite, DSN: databasePath}, zap.NewNop())
	if err != nil {
		testContext.Fatalf("open failed: %v", err)
	}
	for _, table := range []string{"documents", "versions", "change_suggestions", "user_identities", "db_migrations"} {
		if !database.Migrator().HasTable(table) {
			testContext.Fatalf("expected table %s to exist", table)
		}
	}

	var foreignKeys int
	if err := database.Raw("PRAGMA foreign_keys").Scan(&foreignKeys).Error; err != nil {
		testContext.Fatalf("failed to read pragma: %v", err)
	}
	if foreignKeys != 1 {
		testContext.Fatalf("expected foreign keys to be enabled")
	}
}

func TestOpenClosesPoolWhenMigrationFails(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "conflict.db")
	connection, err := sql.Open(sqlite.DriverName, databasePath)
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	defer connection.Close()
	// A view occupying the documents name makes CREATE TABLE fail.
	if _, err := connection.Exec("CREATE VIEW documents AS SELECT 1 AS id"); err != nil {
		testContext.Fatalf("failed to create view: %v", err)
	}

	if _, err := openDialector(sqlite.Dialector{Conn: connection}, DriverSQLite, zap.NewNop()); err == nil {
		testContext.Fatalf("expected migration failure")
	}
	pingErr := connection.Ping()
	if pingErr == nil || !strings.Contains(pingErr.Error(), "database is closed") {
		testContext.Fatalf("expected pool to be closed, ping returned %v", pingErr)
	}
}

func TestOpenRejectsUnknownDriver(testContext *testing.T) {
	_, err := Open(Config{Driver: "oracle", DSN: "whatever"}, nil)
	if err == nil {
		testContext.Fatalf("expected unsupported driver error")
	}
}

func TestSQLiteDSNAddsPragmasOnce(testContext *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{input: "docrev.db", expected: "docrev.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		{input: "file:docrev.db?mode=rwc", expected: "file:docrev.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		{input: "docrev.db?_pragma=foreign_keys(0)", expected: "docrev.db?_pragma=foreign_keys(0)&_pragma=busy_timeout(5000)"},
	}
	for _, testCase := range testCases {
		if actual := sqliteDSN(testCase.input); actual != testCase.expected {
			testContext.Fatalf("sqliteDSN(%q) = %q, want %q", testCase.input, actual, testCase.expected)
		}
	}
}
