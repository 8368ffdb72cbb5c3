package models

// Publish statuses for DocumentEvent.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

type DocumentEventType string

const (
	DocumentEventConverted DocumentEventType = "document.converted"
	DocumentEventCloned    DocumentEventType = "document.cloned"
	DocumentEventMerged    DocumentEventType = "document.merged"
	DocumentEventCreated   DocumentEventType = "document.created"
)

func DocumentEventTypeFor(origin TransformOperation) DocumentEventType {
	switch origin {
	case TransformOperationConvert:
		return DocumentEventConverted
	case TransformOperationClone:
		return DocumentEventCloned
	case TransformOperationMerge:
		return DocumentEventMerged
	}
	return DocumentEventCreated
}
