package db

import (
	"fmt"
	"strings"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/suPer8Hu/genie-chat/internal/chat"
	"github.com/suPer8Hu/genie-chat/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqlitePrefix = "sqlite:"

// Open picks a dialector from the DSN: "sqlite:<path>" uses the pure-Go
// SQLite driver, anything else is treated as a MySQL DSN.
func Open(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, sqlitePrefix) {
		dialector = gormsqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix))
	} else {
		dialector = mysql.Open(dsn)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return gdb, nil
}

// Migrate creates or updates every table the server and worker touch.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&models.User{}, &chat.Thread{}, &chat.Message{}, &chat.Job{})
}

// Connect opens and migrates, exiting the process on failure.
func Connect(dsn string, log *zap.Logger) *gorm.DB {
	gdb, err := Open(dsn)
	if err != nil {
		log.Fatal("db connect failed", zap.Error(err))
	}
	if err := Migrate(gdb); err != nil {
		log.Fatal("db migrate failed", zap.Error(err))
	}
	return gdb
}
