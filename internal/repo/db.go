// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and schema migrations.
package repo

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-chat-realtime/internal/domain"
)

// sqlitePragmas are applied to every pooled connection through the DSN, so
// foreign keys and the busy timeout hold regardless of which connection a
// query lands on.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// DSN builds a glebarez/sqlite data source name for path with the standard
// pragmas. Writers take the database lock when the transaction begins.
func DSN(path string) string {
	var b strings.Builder
	if !strings.HasPrefix(path, "file:") {
		b.WriteString("file:")
	}
	b.WriteString(path)
	if strings.Contains(path, "?") {
		b.WriteString("&")
	} else {
		b.WriteString("?")
	}
	for _, p := range sqlitePragmas {
		b.WriteString("_pragma=")
		b.WriteString(p)
		b.WriteString("&")
	}
	b.WriteString("_txlock=immediate")
	return b.String()
}

// OpenSQLite opens (or creates) a SQLite database, applies PRAGMAs and
// installs the OpenTelemetry GORM plugin.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(DSN(path)), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// activeSupportRoomIndex guarantees at most one active support room per
// (customer, service request). SQLite treats NULLs as distinct, hence IFNULL.
const activeSupportRoomIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_active_support_room
ON chat_rooms(customer_id, IFNULL(service_request_id, 0))
WHERE room_type = 'support' AND status = 'active'`

// AutoMigrate creates or updates the users, chat_rooms and chat_messages
// tables plus the indexes GORM tags cannot express.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Room{},
		&domain.Message{},
	); err != nil {
		return err
	}
	return db.Exec(activeSupportRoomIndex).Error
}
