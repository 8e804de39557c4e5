// Package database opens the SQL and Redis connections used by the
// migration tooling.
package database

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Driver names accepted by Connect.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Connect opens a GORM session for the configured driver.
func Connect(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case DriverPostgres:
		return ConnectPostgres(dsn)
	case DriverSQLite:
		return ConnectSQLite(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// open applies the session defaults shared by every driver. GORM's own query
// log stays silent: reconciliation lookups miss routinely, and real failures
// surface through the engine's structured logs instead.
func open(dialector gorm.Dialector) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
}
