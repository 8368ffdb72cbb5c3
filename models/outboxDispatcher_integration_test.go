package models_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/mmdatafocus/voicebill_backend/config"
	"github.com/mmdatafocus/voicebill_backend/models"
	"github.com/mmdatafocus/voicebill_backend/utils"
	"github.com/mmdatafocus/voicebill_backend/workflow"
	"github.com/sirupsen/logrus"
)

func createInvoice(t *testing.T, ctx context.Context, store *models.GormStore, clientId int, number string) *models.Document {
	t.Helper()
	doc := &models.Document{OwnerId: "owner-it", DocumentType: models.DocumentTypeInvoice, Number: number, ClientId: clientId, Status: models.DocumentStatusDraft}
	if err := store.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("CreateDocument %s: %v", number, err)
	}
	return doc
}

func loadEvent(t *testing.T, ctx context.Context, documentId int) models.DocumentEvent {
	t.Helper()
	var event models.DocumentEvent
	if err := config.GetDB().WithContext(ctx).Where("owner_id = ? AND document_id = ?", "owner-it", documentId).First(&event).Error; err != nil {
		t.Fatalf("load event for document %d: %v", documentId, err)
	}
	return event
}

func TestOutboxDispatcher_PublishLifecycle(t *testing.T) {
	ctx, store := setupStore(t)

	client := &models.Client{OwnerId: "owner-it", Name: "John Smith"}
	if err := store.CreateClient(ctx, client); err != nil {
		t.Fatalf("CreateClient: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	dispatcher := workflow.NewOutboxDispatcher(config.GetDB(), logger)
	dispatcher.MaxAttempts = 2
	dispatcher.InitialBackoff = time.Hour

	published := 0
	dispatcher.Publish = func(ctx context.Context, msg config.DocumentEventMessage) (string, error) {
		published++
		return "msg-1", nil
	}

	sent := createInvoice(t, ctx, store, client.ID, "INV-2026-0001")
	n, err := dispatcher.DispatchOnce(context.Background())
	if err != nil || n != 1 || published != 1 {
		t.Fatalf("DispatchOnce: n=%d published=%d err=%v", n, published, err)
	}
	event := loadEvent(t, ctx, sent.ID)
	if event.PublishStatus != models.OutboxPublishStatusSent || event.PubSubMessageId == nil || *event.PubSubMessageId != "msg-1" || event.PublishedAt == nil {
		t.Fatalf("expected SENT with message id, got %+v", event)
	}

	dispatcher.Publish = func(ctx context.Context, msg config.DocumentEventMessage) (string, error) {
		return "", errors.New("broker unavailable")
	}
	failing := createInvoice(t, ctx, store, client.ID, "INV-2026-0002")
	before := time.Now().UTC()
	if n, err := dispatcher.DispatchOnce(context.Background()); err != nil || n != 0 {
		t.Fatalf("DispatchOnce: n=%d err=%v", n, err)
	}
	event = loadEvent(t, ctx, failing.ID)
	if event.PublishStatus != models.OutboxPublishStatusFailed || event.PublishAttempts != 1 {
		t.Fatalf("expected FAILED after first attempt, got %+v", event)
	}
	if event.NextAttemptAt == nil || !event.NextAttemptAt.After(before.Add(30*time.Minute)) {
		t.Fatalf("expected next_attempt_at about an hour out, got %v", event.NextAttemptAt)
	}
	if event.LastPublishError == nil || *event.LastPublishError != "broker unavailable" {
		t.Fatalf("expected last publish error, got %v", event.LastPublishError)
	}

	// not yet due
	if _, err := dispatcher.DispatchOnce(context.Background()); err != nil {
		t.Fatalf("DispatchOnce: %v", err)
	}
	if again := loadEvent(t, ctx, failing.ID); again.PublishAttempts != 1 {
		t.Fatalf("event retried before next_attempt_at: %+v", again)
	}

	past := time.Now().UTC().Add(-time.Minute)
	if err := config.GetDB().WithContext(ctx).Model(&models.DocumentEvent{}).
		Where("id = ?", event.ID).Update("next_attempt_at", &past).Error; err != nil {
		t.Fatalf("rewind next_attempt_at: %v", err)
	}
	if _, err := dispatcher.DispatchOnce(context.Background()); err != nil {
		t.Fatalf("DispatchOnce: %v", err)
	}
	event = loadEvent(t, ctx, failing.ID)
	if event.PublishStatus != models.OutboxPublishStatusDead || event.PublishAttempts != 2 || event.NextAttemptAt != nil {
		t.Fatalf("expected DEAD after max attempts, got %+v", event)
	}

	if event := loadEvent(t, ctx, sent.ID); event.PublishStatus != models.OutboxPublishStatusSent {
		t.Fatalf("sent event was touched again: %+v", event)
	}
}

func TestTenantGuard_ScopesUnfilteredQueries(t *testing.T) {
	ctx, store := setupStore(t)

	if err := store.CreateClient(ctx, &models.Client{OwnerId: "owner-it", Name: "John Smith"}); err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	other := utils.SetOwnerIdInContext(context.Background(), "owner-other")
	for _, name := range []string{"Jane Doe", "Acme Corp"} {
		if err := store.CreateClient(other, &models.Client{OwnerId: "owner-other", Name: name}); err != nil {
			t.Fatalf("CreateClient: %v", err)
		}
	}

	var scoped int64
	if err := config.GetDB().WithContext(ctx).Model(&models.Client{}).Count(&scoped).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if scoped != 1 {
		t.Fatalf("expected query without owner filter to see 1 client, got %d", scoped)
	}

	var all int64
	if err := config.GetDB().WithContext(utils.SetSkipTenantScopeInContext(ctx, true)).Model(&models.Client{}).Count(&all).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if all != 3 {
		t.Fatalf("expected bypassed query to see 3 clients, got %d", all)
	}
}
