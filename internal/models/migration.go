package models

import "time"

// MigrationRecord marks one applied migration in the tracking table. The
// runner inserts a record after a successful apply and deletes it after a
// successful revert; a migration with no record is considered pending.
type MigrationRecord struct {
	Version   string    `gorm:"column:version;size:255;primaryKey" json:"version"`
	Name      string    `gorm:"column:name;size:255;not null" json:"name"`
	Timestamp time.Time `gorm:"column:timestamp;not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
}

// TableName keeps the platform's table naming.
func (MigrationRecord) TableName() string {
	return TableMigrations
}
