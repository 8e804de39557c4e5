package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment is a first-class comment on a content item. Rows are created by
// the legacy-comment migration (and by the application afterwards) and
// removed when the migration is reverted or the parent collection is
// deleted.
//
// Item deliberately has no referential integrity: item keys are heterogeneous
// across collections. UserUpdated carries no delete rule so that
// directus_users does not gain a second cascade path into this table.
type Comment struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Collection  string     `gorm:"column:collection;size:64;not null" json:"collection"`
	Item        string     `gorm:"column:item;size:255;not null" json:"item"`
	Comment     string     `gorm:"column:comment;type:text;not null" json:"comment"`
	DateCreated *time.Time `gorm:"column:date_created;default:CURRENT_TIMESTAMP" json:"date_created"`
	DateUpdated *time.Time `gorm:"column:date_updated;default:CURRENT_TIMESTAMP" json:"date_updated"`
	UserCreated *uuid.UUID `gorm:"column:user_created;type:uuid" json:"user_created"`
	UserUpdated *uuid.UUID `gorm:"column:user_updated;type:uuid" json:"user_updated"`

	CollectionRef *Collection `gorm:"foreignKey:Collection;references:Key;constraint:OnDelete:CASCADE" json:"-"`
	Creator       *User       `gorm:"foreignKey:UserCreated;references:ID;constraint:OnDelete:SET NULL" json:"-"`
	Editor        *User       `gorm:"foreignKey:UserUpdated;references:ID" json:"-"`
}

// TableName keeps the platform's table naming.
func (Comment) TableName() string {
	return TableComments
}
