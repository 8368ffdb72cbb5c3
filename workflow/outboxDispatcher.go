package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/voicebill_backend/config"
	"github.com/mmdatafocus/voicebill_backend/models"
	"github.com/mmdatafocus/voicebill_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PublishFunc publishes one document event and returns the broker message id.
type PublishFunc func(ctx context.Context, msg config.DocumentEventMessage) (string, error)

// OutboxDispatcher publishes DocumentEvent rows written alongside derived documents.
type OutboxDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	Publish      PublishFunc
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		DB:             db,
		Logger:         logger,
		Publish:        config.PublishDocumentEvent,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     10 * time.Minute,
	}
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, err := d.DispatchOnce(ctx); err != nil {
			config.LogError(d.Logger, "OutboxDispatcher", "Run", "DispatchOnce", d.DispatcherID, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// DispatchOnce claims one batch and publishes it. It returns how many rows were published.
// Rows of every owner are dispatched, so tenant scoping is bypassed.
func (d *OutboxDispatcher) DispatchOnce(ctx context.Context) (int, error) {
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)
	if d.DB == nil {
		return 0, nil
	}

	var claimed []models.DocumentEvent
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// ready PENDING/FAILED rows, plus PROCESSING rows whose dispatcher died mid-batch
		q := tx.
			Where(`
				(
					publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					publish_status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []string{models.OutboxPublishStatusPending, models.OutboxPublishStatusFailed}, now, models.OutboxPublishStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		for i := range claimed {
			if d.MaxAttempts > 0 && claimed[i].PublishAttempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].PublishStatus = models.OutboxPublishStatusDead
				if err := tx.Model(&models.DocumentEvent{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"publish_status":     models.OutboxPublishStatusDead,
					"last_publish_error": &msg,
					"next_attempt_at":    nil,
					"locked_at":          nil,
					"locked_by":          nil,
				}).Error; err != nil {
					return err
				}
				continue
			}

			claimed[i].PublishStatus = models.OutboxPublishStatusProcessing
			claimed[i].PublishAttempts++
			if err := tx.Model(&models.DocumentEvent{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusProcessing,
				"locked_at":          &now,
				"locked_by":          &d.DispatcherID,
				"publish_attempts":   gorm.Expr("publish_attempts + 1"),
				"last_publish_error": nil,
				"next_attempt_at":    nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	published := 0
	for _, event := range claimed {
		if event.PublishStatus == models.OutboxPublishStatusDead {
			continue
		}
		msgID, pubErr := d.Publish(ctx, event.ToMessage())
		if pubErr != nil {
			d.markPublishFailed(ctx, event, pubErr)
			continue
		}
		d.markPublishSent(ctx, event.ID, msgID)
		published++
	}
	return published, nil
}

func (d *OutboxDispatcher) markPublishSent(ctx context.Context, eventID int, messageID string) {
	now := time.Now().UTC()
	if err := d.DB.WithContext(ctx).Model(&models.DocumentEvent{}).
		Where("id = ?", eventID).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusSent,
			"published_at":       &now,
			"pub_sub_message_id": &messageID,
			"locked_at":          nil,
			"locked_by":          nil,
			"next_attempt_at":    nil,
		}).Error; err != nil {
		config.LogError(d.Logger, "OutboxDispatcher", "markPublishSent", "Updates", eventID, err)
	}
}

func (d *OutboxDispatcher) markPublishFailed(ctx context.Context, event models.DocumentEvent, pubErr error) {
	msg := pubErr.Error()
	fields := logrus.Fields{
		"field":       "OutboxDispatcher",
		"owner_id":    event.OwnerId,
		"event_id":    event.ID,
		"document_id": event.DocumentId,
		"attempt":     event.PublishAttempts,
	}

	// terminal after MaxAttempts
	if d.MaxAttempts > 0 && event.PublishAttempts >= d.MaxAttempts {
		if err := d.DB.WithContext(ctx).Model(&models.DocumentEvent{}).
			Where("id = ?", event.ID).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusDead,
				"last_publish_error": &msg,
				"next_attempt_at":    nil,
				"locked_at":          nil,
				"locked_by":          nil,
			}).Error; err != nil {
			config.LogError(d.Logger, "OutboxDispatcher", "markPublishFailed", "Updates", event.ID, err)
		}
		d.Logger.WithFields(fields).Error("document event moved to DEAD after max attempts: " + msg)
		return
	}

	next := time.Now().UTC().Add(d.retryBackoff(event.PublishAttempts))
	if err := d.DB.WithContext(ctx).Model(&models.DocumentEvent{}).
		Where("id = ?", event.ID).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusFailed,
			"last_publish_error": &msg,
			"next_attempt_at":    &next,
			"locked_at":          nil,
			"locked_by":          nil,
		}).Error; err != nil {
		config.LogError(d.Logger, "OutboxDispatcher", "markPublishFailed", "Updates", event.ID, err)
	}
	fields["next_attempt_at"] = next.Format(time.RFC3339Nano)
	d.Logger.WithFields(fields).Error("document event publish failed: " + msg)
}

// retryBackoff doubles InitialBackoff per attempt after the first, capped at MaxBackoff.
func (d *OutboxDispatcher) retryBackoff(attempt int) time.Duration {
	backoff := d.InitialBackoff
	ceiling := d.MaxBackoff
	if ceiling <= 0 {
		ceiling = 10 * time.Minute
	}
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= ceiling {
			return ceiling
		}
	}
	return min(backoff, ceiling)
}
