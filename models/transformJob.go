package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransformJob records one convert, clone or merge. The source snapshot fields are written
// once at creation; afterwards only status, generated document, completion time and
// error message change.
type TransformJob struct {
	ID                   int                `gorm:"primary_key" json:"id"`
	OwnerId              string             `gorm:"size:64;not null;index" json:"owner_id"`
	Operation            TransformOperation `gorm:"type:enum('convert','clone','merge');not null" json:"operation"`
	SourceDocumentId     int                `gorm:"index;not null" json:"source_document_id"`
	SourceDocumentType   DocumentType       `gorm:"size:20;not null" json:"source_document_type"`
	SourceDocumentNumber string             `gorm:"size:50" json:"source_document_number"`
	SourceTotal          decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"source_total"`
	SourceClientId       int                `gorm:"not null" json:"source_client_id"`
	SourceClientName     string             `gorm:"size:100" json:"source_client_name"`
	TargetType           DocumentType       `gorm:"size:20;not null" json:"target_type"`
	Config               TransformJobConfig `gorm:"serializer:json;type:json" json:"config"`
	Status               TransformJobStatus `gorm:"type:enum('pending','processing','completed','cancelled','failed');not null;default:'pending';index" json:"status"`
	GeneratedDocumentId  *int               `gorm:"default:null" json:"generated_document_id,omitempty"`
	ErrorMessage         string             `gorm:"type:text;default:null" json:"error_message,omitempty"`
	CreatedAt            time.Time          `gorm:"autoCreateTime" json:"created_at"`
	CompletedAt          *time.Time         `json:"completed_at,omitempty"`
	UpdatedAt            time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type TransformJobConfig struct {
	SourceDocumentIds []int              `json:"source_document_ids,omitempty"`
	Modifications     *ItemModifications `json:"modifications,omitempty"`
	Split             *SplitConfig       `json:"split,omitempty"`
	Schedule          *ScheduleConfig    `json:"schedule,omitempty"`
	Notes             string             `json:"notes,omitempty"`
}

// SplitConfig is recorded with the job; no component acts on it yet.
type SplitConfig struct {
	Parts       int       `json:"parts" mapstructure:"parts"`
	Percentages []float64 `json:"percentages,omitempty" mapstructure:"percentages"`
}

// ScheduleConfig is recorded with the job; no component acts on it yet.
type ScheduleConfig struct {
	StartDate    string `json:"start_date,omitempty" mapstructure:"start_date"`
	IntervalDays int    `json:"interval_days,omitempty" mapstructure:"interval_days"`
	Occurrences  int    `json:"occurrences,omitempty" mapstructure:"occurrences"`
}

// TransformJobUpdate holds the mutable part of a job.
type TransformJobUpdate struct {
	Status              TransformJobStatus
	GeneratedDocumentId *int
	CompletedAt         *time.Time
	ErrorMessage        string
}

var transformJobTransitions = map[TransformJobStatus][]TransformJobStatus{
	TransformJobStatusPending:    {TransformJobStatusProcessing, TransformJobStatusCancelled},
	TransformJobStatusProcessing: {TransformJobStatusCompleted, TransformJobStatusCancelled, TransformJobStatusFailed},
}

// CanTransition reports whether a job may move from one status to another.
// Terminal statuses never move.
func CanTransition(from, to TransformJobStatus) bool {
	for _, next := range transformJobTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Apply moves the in-memory job forward, mirroring what the store persists.
func (j *TransformJob) Apply(update TransformJobUpdate) bool {
	if !CanTransition(j.Status, update.Status) {
		return false
	}
	j.Status = update.Status
	if update.GeneratedDocumentId != nil {
		j.GeneratedDocumentId = update.GeneratedDocumentId
	}
	if update.CompletedAt != nil {
		j.CompletedAt = update.CompletedAt
	}
	if update.ErrorMessage != "" {
		j.ErrorMessage = update.ErrorMessage
	}
	return true
}
