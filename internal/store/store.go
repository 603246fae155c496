package store

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	_ "github.com/glebarez/go-sqlite" // Pure Go SQLite driver
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gmsas95/pillpal/internal/config"
)

// Store provides unified access to SQLite and BadgerDB
type Store struct {
	db     *gorm.DB
	badger *badger.DB
	blobs  BlobStore
	driver string
}

// New opens the databases named by cfg.Storage. SQLite is always opened for
// the notification log; Badger only when it backs the blobs.
func New(cfg *config.Config) (*Store, error) {
	sqlitePath := cfg.Storage.SQLitePath
	if sqlitePath == "" {
		sqlitePath = filepath.Join(cfg.Storage.DataDir, "pillpal.db")
	}

	sqliteDB, err := sql.Open("sqlite", sqlitePath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	sqliteDB.SetMaxOpenConns(4)
	sqliteDB.SetMaxIdleConns(2)
	sqliteDB.SetConnMaxLifetime(time.Hour)

	var bdb *badger.DB
	if cfg.Storage.Driver == "badger" {
		badgerPath := cfg.Storage.BadgerPath
		if badgerPath == "" {
			badgerPath = filepath.Join(cfg.Storage.DataDir, "badger")
		}

		badgerOpts := badger.DefaultOptions(badgerPath).
			WithLogger(nil).
			WithNumVersionsToKeep(1).
			WithCompactL0OnClose(true).
			WithValueLogFileSize(16 << 20).
			WithMemTableSize(16 << 20)

		bdb, err = badger.Open(badgerOpts)
		if err != nil {
			sqliteDB.Close()
			return nil, fmt.Errorf("failed to open badger: %w", err)
		}
	}

	return open(sqliteDB, bdb, cfg.Storage.Driver)
}

// NewInMemory opens throwaway in-memory databases for the given driver.
func NewInMemory(driver string) (*Store, error) {
	sqliteDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// Every connection to :memory: is a separate database.
	sqliteDB.SetMaxOpenConns(1)

	var bdb *badger.DB
	if driver == "badger" {
		bdb, err = badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
		if err != nil {
			sqliteDB.Close()
			return nil, fmt.Errorf("failed to open badger: %w", err)
		}
	}

	return open(sqliteDB, bdb, driver)
}

func open(sqliteDB *sql.DB, bdb *badger.DB, driver string) (*Store, error) {
	db, err := gorm.Open(sqlite.Dialector{Conn: sqliteDB}, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		closeAll(sqliteDB, bdb)
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if err := db.AutoMigrate(&Blob{}, &Notification{}); err != nil {
		closeAll(sqliteDB, bdb)
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	s := &Store{db: db, badger: bdb, driver: driver}
	switch driver {
	case "badger":
		s.blobs = &badgerBlobs{db: bdb}
	case "sqlite":
		s.blobs = &sqliteBlobs{db: db}
	case "memory", "":
		s.blobs = NewMemoryBlobs()
	default:
		closeAll(sqliteDB, bdb)
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}

	return s, nil
}

func closeAll(sqliteDB *sql.DB, bdb *badger.DB) {
	sqliteDB.Close()
	if bdb != nil {
		bdb.Close()
	}
}

// Close closes all database connections
func (s *Store) Close() error {
	var firstErr error
	if s.badger != nil {
		if err := s.badger.Close(); err != nil {
			firstErr = fmt.Errorf("failed to close badger: %w", err)
		}
	}
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close sqlite: %w", err)
		}
	}
	return firstErr
}

// DB returns the GORM database instance
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Blobs returns the blob backend selected by the storage driver
func (s *Store) Blobs() BlobStore {
	return s.blobs
}

// Driver returns the configured storage driver name
func (s *Store) Driver() string {
	return s.driver
}
