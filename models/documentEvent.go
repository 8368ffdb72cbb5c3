package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mmdatafocus/voicebill_backend/config"
	"github.com/mmdatafocus/voicebill_backend/utils"
	"gorm.io/gorm"
)

// DocumentEvent is the outbox row written in the same transaction as a derived document.
// The outbox dispatcher publishes it after commit.
type DocumentEvent struct {
	ID             int               `gorm:"primary_key;index:idx_document_event_dispatch,priority:3" json:"id"`
	OwnerId        string            `gorm:"size:64;not null;index" json:"owner_id"`
	EventType      DocumentEventType `gorm:"size:40;not null" json:"event_type"`
	DocumentId     int               `gorm:"index;not null" json:"document_id"`
	DocumentType   DocumentType      `gorm:"size:20;not null" json:"document_type"`
	DocumentNumber string            `gorm:"size:50" json:"document_number"`
	TransformJobId int               `gorm:"index" json:"transform_job_id"`
	Payload        []byte            `gorm:"type:blob" json:"payload"`
	// publish happens after commit via dispatcher
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_document_event_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_document_event_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// RecordDocumentEvent writes the outbox row inside the caller's transaction; it does not publish.
func RecordDocumentEvent(ctx context.Context, tx *gorm.DB, doc *Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	event := DocumentEvent{
		OwnerId:        doc.OwnerId,
		EventType:      DocumentEventTypeFor(doc.Origin),
		DocumentId:     doc.ID,
		DocumentType:   doc.DocumentType,
		DocumentNumber: doc.Number,
		Payload:        payload,
		PublishStatus:  OutboxPublishStatusPending,
		CorrelationId:  utils.CorrelationIdFromContextOrNew(ctx),
	}
	if doc.TransformJobId != nil {
		event.TransformJobId = *doc.TransformJobId
	}
	return tx.Create(&event).Error
}

func (e DocumentEvent) ToMessage() config.DocumentEventMessage {
	return config.DocumentEventMessage{
		ID:             e.ID,
		OwnerId:        e.OwnerId,
		EventType:      string(e.EventType),
		DocumentId:     e.DocumentId,
		DocumentType:   string(e.DocumentType),
		DocumentNumber: e.DocumentNumber,
		TransformJobId: e.TransformJobId,
		Payload:        e.Payload,
		CorrelationId:  e.CorrelationId,
		OccurredAt:     e.CreatedAt,
	}
}
