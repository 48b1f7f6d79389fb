package db

import (
	"gallery/config"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var Instance *gorm.DB

// IsSQLite reports which engine Init picked. SQLite allows a single writer,
// so the store serializes writes when this is set.
var IsSQLite bool

func Init() {
	gormConfig := &gorm.Config{
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
	var err error
	if config.MYSQL_DSN != "" {
		Instance, err = gorm.Open(mysql.Open(config.MYSQL_DSN), gormConfig)
	} else {
		Instance, err = gorm.Open(sqlite.Open(config.SQLITE_FILE), gormConfig)
		IsSQLite = true
	}
	if err != nil || Instance == nil {
		panic(err)
	}
}

// InitTest opens an in-memory SQLite instance. Used by package tests only.
func InitTest() {
	var err error
	Instance, err = gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}
	IsSQLite = true
}
