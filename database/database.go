package database

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Every transaction takes the write lock at BEGIN (_txlock=immediate), so a
// read-validate-write sequence inside one transaction cannot interleave with
// another writer.
const dsnOptions = "_foreign_keys=1&_busy_timeout=5000&_txlock=immediate"

func Open(path string) (db *sql.DB, err error) {
	db, err = sql.Open("sqlite3", dsn(path))
	if err != nil {
		return
	}

	// db tuning options
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	err = migrateDB(db)
	if err != nil {
		db.Close()
		return
	}

	return
}

func dsn(path string) string {
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + dsnOptions
}
