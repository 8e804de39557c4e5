package models

import (
	"time"

	"github.com/google/uuid"
)

// Activity actions recorded by the platform. Comment entries carry the
// comment text inline until the dedicated comments table takes over.
const (
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionComment = "comment"
	ActionLogin   = "login"
	ActionRun     = "run"
)

// Activity is one entry of the platform's append-only activity log.
// Collection and Item point at the acted-upon resource; Item is free text
// because item keys are heterogeneous across collections, so no foreign key
// is enforced on it.
type Activity struct {
	ID         uint       `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Action     string     `gorm:"column:action;size:45;not null" json:"action"`
	User       *uuid.UUID `gorm:"column:user;type:uuid" json:"user"`
	Timestamp  time.Time  `gorm:"column:timestamp;not null;default:CURRENT_TIMESTAMP" json:"timestamp"`
	IP         *string    `gorm:"column:ip;size:50" json:"ip"`
	UserAgent  *string    `gorm:"column:user_agent;size:255" json:"user_agent"`
	Collection string     `gorm:"column:collection;size:64;not null" json:"collection"`
	Item       string     `gorm:"column:item;size:255;not null" json:"item"`
	Comment    *string    `gorm:"column:comment;type:text" json:"comment"`
	Origin     *string    `gorm:"column:origin;size:255" json:"origin"`
}

// TableName keeps the platform's table naming.
func (Activity) TableName() string {
	return TableActivity
}
