package models

import "time"

// CanvasToken stores a user's Canvas API credential, one row per account
type CanvasToken struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string    `gorm:"size:30;not null;uniqueIndex" json:"-"`
	Token     string    `gorm:"type:text;not null" json:"-"`
	CreatedAt time.Time `gorm:"not null" json:"-"`
	UpdatedAt time.Time `gorm:"not null" json:"-"`
}

// TableName specifies the table name for the CanvasToken model
func (CanvasToken) TableName() string {
	return "canvas_token"
}
