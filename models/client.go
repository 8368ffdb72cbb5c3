package models

import (
	"time"

	"github.com/mmdatafocus/voicebill_backend/matching"
)

type Client struct {
	ID        int       `gorm:"primary_key" json:"id"`
	OwnerId   string    `gorm:"size:64;not null;index" json:"owner_id"`
	Name      string    `gorm:"size:100;not null;index" json:"name"`
	Email     string    `gorm:"size:100;default:null" json:"email"`
	Phone     string    `gorm:"size:20;default:null" json:"phone"`
	Address   string    `gorm:"size:255;default:null" json:"address"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ClientContact carries the optional contact fields of a contact-info update;
// nil means "leave unchanged".
type ClientContact struct {
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

func (c ClientContact) IsEmpty() bool {
	return c.Email == nil && c.Phone == nil && c.Address == nil
}

// ClientDirectory converts stored clients into the matcher's directory form.
func ClientDirectory(clients []*Client) []matching.DirectoryEntry {
	directory := make([]matching.DirectoryEntry, 0, len(clients))
	for _, c := range clients {
		if c == nil {
			continue
		}
		directory = append(directory, matching.DirectoryEntry{ID: c.ID, Name: c.Name})
	}
	return directory
}
