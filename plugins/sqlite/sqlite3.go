// Package sqliteplugin mirrors every rendered device table into an SQLite
// database. The database is a presentation target only: it is emptied at
// startup and never read back into the daemon.
package sqliteplugin

import (
	"errors"
	"fmt"
	"time"

	"github.com/cdwhistler/netscan/device"
	"github.com/cdwhistler/netscan/logger"
	"github.com/cdwhistler/netscan/plugins"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	logDb "gorm.io/gorm/logger"
)

var log = logger.GetLogger("plugins/sqlite")

const renderAttempts = 3

// Plugin wraps plugin registration information
var Plugin = plugins.Plugin{
	Name:  "sqlite",
	Setup: setupSqlite,
}

func init() {
	if err := plugins.RegisterPlugin(&Plugin); err != nil {
		log.Fatalf("%v", err)
	}
}

// Device is one row of the devices table.
type Device struct {
	ID           uint   `gorm:"primaryKey"`
	IP           string `gorm:"unique;not null"`
	HardwareAddr string `gorm:"not null"`
	Host         string
	LastSeen     time.Time
}

type Sqlite3Service struct {
	db *gorm.DB
}

func setupSqlite(_ plugins.Controller, args ...string) (plugins.Sink, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("invalid number of arguments, want: 1 (database file), got: %d", len(args))
	}
	if args[0] == "" {
		return nil, errors.New("database file cannot be empty")
	}
	db, err := gorm.Open(sqlite.Open(args[0]), &gorm.Config{
		Logger: logDb.Default.LogMode(logDb.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", args[0], err)
	}
	s, err := NewSqlite3Service(db)
	if err != nil {
		return nil, err
	}
	log.Printf("Writing device table to database %s", args[0])
	return s, nil
}

// NewSqlite3Service migrates the schema and drops rows left by a previous run.
func NewSqlite3Service(db *gorm.DB) (*Sqlite3Service, error) {
	if err := db.AutoMigrate(&Device{}); err != nil {
		return nil, fmt.Errorf("migrate devices table: %w", err)
	}
	s := &Sqlite3Service{db: db}
	if err := s.db.Transaction(deleteAll); err != nil {
		return nil, fmt.Errorf("could not delete old entries on startup: %w", err)
	}
	return s, nil
}

func deleteAll(tx *gorm.DB) error {
	return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Device{}).Error
}

// Render rewrites the devices table in one transaction.
func (service *Sqlite3Service) Render(devices []device.Device) error {
	rows := make([]Device, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, Device{
			IP:           d.IP.String(),
			HardwareAddr: d.MAC.String(),
			Host:         d.Name,
			LastSeen:     d.LastSeen,
		})
	}
	function := func(tx *gorm.DB) error {
		if err := deleteAll(tx); err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	}

	var err error
	for i := 0; i < renderAttempts; i++ {
		if err = service.db.Transaction(function); err == nil {
			return nil
		}
		log.Debugf("Render attempt %d failed: %v", i+1, err)
	}
	return fmt.Errorf("write %d devices: %w", len(rows), err)
}

func (service *Sqlite3Service) Close() error {
	sqlDB, err := service.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
