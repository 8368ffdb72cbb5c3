package models

import "time"

// ReviewSession persists a draft document being edited by the user before it is created.
type ReviewSession struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	OwnerId   string    `gorm:"size:64;not null;index" json:"owner_id"`
	Intent    string    `gorm:"size:40;not null" json:"intent"`
	Draft     []byte    `gorm:"type:blob" json:"draft"`
	Version   int       `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
