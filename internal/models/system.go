package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Collection describes one content collection registered with the platform.
// Deleting a collection cascades into the tables that reference it.
type Collection struct {
	// Key is the collection's name and primary key; the column keeps the
	// platform's naming.
	Key          string         `gorm:"column:collection;size:64;primaryKey" json:"collection"`
	Icon         *string        `gorm:"column:icon;size:64" json:"icon"`
	Note         *string        `gorm:"column:note;type:text" json:"note"`
	Hidden       bool           `gorm:"column:hidden;not null;default:false" json:"hidden"`
	Singleton    bool           `gorm:"column:singleton;not null;default:false" json:"singleton"`
	Translations datatypes.JSON `gorm:"column:translations" json:"translations"`
}

// TableName keeps the platform's table naming.
func (Collection) TableName() string {
	return TableCollections
}

// User is the minimal slice of the platform's user directory that the
// maintenance tooling needs for attribution and delete rules.
type User struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	FirstName *string   `gorm:"column:first_name;size:50" json:"first_name"`
	LastName  *string   `gorm:"column:last_name;size:50" json:"last_name"`
	Email     *string   `gorm:"column:email;size:128;uniqueIndex" json:"email"`
	Status    string    `gorm:"column:status;size:16;not null;default:active" json:"status"`
}

// TableName keeps the platform's table naming.
func (User) TableName() string {
	return TableUsers
}
