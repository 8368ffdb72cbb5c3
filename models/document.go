package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Document struct {
	ID               int                `gorm:"primary_key" json:"id"`
	OwnerId          string             `gorm:"size:64;not null;index;index:uniq_document_number,unique,priority:1" json:"owner_id"`
	DocumentType     DocumentType       `gorm:"type:enum('invoice','estimate','contract');not null;index:uniq_document_number,unique,priority:2" json:"document_type"`
	Number           string             `gorm:"size:50;not null;index:uniq_document_number,unique,priority:3" json:"number"`
	ClientId         int                `gorm:"index;not null" json:"client_id"`
	Client           *Client            `gorm:"foreignKey:ClientId" json:"client,omitempty"`
	Items            []LineItem         `gorm:"foreignKey:DocumentId" json:"items"`
	Subtotal         decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	TaxRate          decimal.Decimal    `gorm:"type:decimal(7,4);default:0" json:"tax_rate"`
	TaxAmount        decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	Total            decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"total"`
	Status           DocumentStatus     `gorm:"type:enum('draft','sent','accepted','paid','void');not null;default:'draft'" json:"status"`
	Notes            string             `gorm:"type:text;default:null" json:"notes"`
	Origin           TransformOperation `gorm:"size:20;default:null" json:"origin,omitempty"`
	SourceDocumentId *int               `gorm:"index;default:null" json:"source_document_id,omitempty"`
	TransformJobId   *int               `gorm:"index;default:null" json:"transform_job_id,omitempty"`
	CreatedAt        time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type LineItem struct {
	ID              int             `gorm:"primary_key" json:"id"`
	DocumentId      int             `gorm:"index;not null" json:"document_id"`
	ItemKey         string          `gorm:"size:36;not null" json:"item_key"`
	Position        int             `gorm:"not null;default:0" json:"position"`
	Description     string          `gorm:"size:255;not null" json:"description"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);default:1" json:"quantity"`
	Unit            string          `gorm:"size:30;default:null" json:"unit"`
	Rate            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"rate"`
	Total           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total"`
	Material        string          `gorm:"size:100;default:null" json:"material,omitempty"`
	Measurement     string          `gorm:"size:100;default:null" json:"measurement,omitempty"`
	IsTotalOverride bool            `gorm:"not null;default:false" json:"is_total_override"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (d Document) ClientName() string {
	if d.Client == nil {
		return ""
	}
	return d.Client.Name
}

// CopyLineItems returns detached copies of items ready to be inserted under a new document.
// Ids and timestamps are reset; positions follow the slice order.
func CopyLineItems(items []LineItem) []LineItem {
	copied := make([]LineItem, 0, len(items))
	for i, item := range items {
		item.ID = 0
		item.DocumentId = 0
		item.CreatedAt = time.Time{}
		item.UpdatedAt = time.Time{}
		item.Position = i
		if item.ItemKey == "" {
			item.ItemKey = uuid.NewString()
		}
		copied = append(copied, item)
	}
	return copied
}

// SumLineItems adds up item totals.
func SumLineItems(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Total)
	}
	return sum
}
