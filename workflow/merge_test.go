package workflow

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/mmdatafocus/voicebill_backend/models"
	"github.com/mmdatafocus/voicebill_backend/utils"
	"github.com/shopspring/decimal"
)

func seedMergeSources(store *memStore) (*models.Document, *models.Document) {
	_, invoice := seedInvoice(store)
	acme := store.addClient("Acme Corp")
	other := store.addDocument(acme, models.DocumentTypeInvoice, "INV-2026-0002", item("Sealant", 2, 25))
	return invoice, other
}

func TestMerge_UnresolvedSlotNeedsSelection(t *testing.T) {
	store := newMemStore()
	invoice, _ := seedMergeSources(store)

	res, err := newTestOrchestrator(store).Merge(ownerCtx(), MergeRequest{Sources: []MergeSource{
		{Query: DocumentQuery{ClientName: "John Smith"}},
		{Query: DocumentQuery{ClientName: "Xavier"}},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success || res.Kind != OutcomeNeedsSelection {
		t.Fatalf("expected needs selection, got %+v", res.TransformResult)
	}
	if len(res.Slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(res.Slots))
	}
	first, second := res.Slots[0], res.Slots[1]
	if first.State != MergeSlotResolved || first.Preview == nil || first.Preview.ID != invoice.ID {
		t.Fatalf("first slot should preview the invoice, got %+v", first)
	}
	if second.State != MergeSlotManualSelection || second.Index != 1 || second.ClientName != "Xavier" {
		t.Fatalf("second slot should need manual selection, got %+v", second)
	}
	if store.jobCount() != 0 || store.createDocCalls != 0 {
		t.Fatalf("nothing may be written while slots are pending")
	}
}

func TestMerge_CommitsWhenAllSlotsResolve(t *testing.T) {
	store := newMemStore()
	invoice, other := seedMergeSources(store)

	res, err := newTestOrchestrator(store).Merge(ownerCtx(), MergeRequest{Sources: []MergeSource{
		{Query: DocumentQuery{ClientName: "John Smith"}},
		{Query: DocumentQuery{ClientName: "Acme"}},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res.TransformResult)
	}

	doc := res.Document
	if doc.DocumentType != models.DocumentTypeInvoice || doc.Number != "INV-2026-0003" {
		t.Fatalf("unexpected merged document %s %s", doc.DocumentType, doc.Number)
	}
	if doc.ClientId != invoice.ClientId || doc.Origin != models.TransformOperationMerge {
		t.Fatalf("merged document should belong to the first source's client")
	}
	var descriptions []string
	for _, it := range doc.Items {
		descriptions = append(descriptions, it.Description)
	}
	if want := []string{"Tile installation", "Delivery fee", "Sealant"}; !slices.Equal(descriptions, want) {
		t.Fatalf("expected items %v, got %v", want, descriptions)
	}
	if !doc.Total.Equal(decimal.NewFromInt(1150)) {
		t.Fatalf("expected total 1150, got %s", doc.Total)
	}

	job := store.storedJob(res.Job.ID)
	if job.Operation != models.TransformOperationMerge || job.Status != models.TransformJobStatusCompleted {
		t.Fatalf("unexpected job %+v", job)
	}
	if !slices.Equal(job.Config.SourceDocumentIds, []int{invoice.ID, other.ID}) {
		t.Fatalf("unexpected source ids %v", job.Config.SourceDocumentIds)
	}
}

func TestMerge_SelectedDocumentResolvesSlot(t *testing.T) {
	store := newMemStore()
	_, other := seedMergeSources(store)

	res, _ := newTestOrchestrator(store).Merge(ownerCtx(), MergeRequest{
		TargetType: models.DocumentTypeEstimate,
		Sources: []MergeSource{
			{Query: DocumentQuery{ClientName: "John Smith"}},
			{Query: DocumentQuery{ClientName: "Xavier"}, SelectedDocumentId: other.ID},
		},
	})
	if !res.Success || res.Document.DocumentType != models.DocumentTypeEstimate {
		t.Fatalf("expected merged estimate, got %+v", res.TransformResult)
	}
	if res.Document.Number != "EST-2026-0001" {
		t.Fatalf("unexpected number %s", res.Document.Number)
	}
}

func TestMerge_RejectsInvalidRequests(t *testing.T) {
	store := newMemStore()
	invoice, _ := seedMergeSources(store)
	o := newTestOrchestrator(store)

	tests := []struct {
		name string
		req  MergeRequest
		kind OutcomeKind
	}{
		{
			name: "single source",
			req:  MergeRequest{Sources: []MergeSource{{Query: DocumentQuery{ClientName: "John Smith"}}}},
			kind: OutcomeInvalidRequest,
		},
		{
			name: "same document twice",
			req: MergeRequest{Sources: []MergeSource{
				{Query: DocumentQuery{ClientName: "John Smith"}},
				{SelectedDocumentId: invoice.ID},
			}},
			kind: OutcomeInvalidRequest,
		},
		{
			name: "unknown target type",
			req: MergeRequest{TargetType: "receipt", Sources: []MergeSource{
				{Query: DocumentQuery{ClientName: "John Smith"}},
				{Query: DocumentQuery{ClientName: "Acme"}},
			}},
			kind: OutcomeInvalidConversion,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := o.Merge(ownerCtx(), tt.req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Success || res.Kind != tt.kind {
				t.Fatalf("expected %s, got %+v", tt.kind, res.TransformResult)
			}
		})
	}
	if store.jobCount() != 0 {
		t.Fatalf("rejected merges must not create jobs")
	}
}

func TestMerge_RequiresOwner(t *testing.T) {
	store := newMemStore()
	seedMergeSources(store)

	_, err := newTestOrchestrator(store).Merge(context.Background(), MergeRequest{Sources: []MergeSource{
		{Query: DocumentQuery{ClientName: "John Smith"}},
		{Query: DocumentQuery{ClientName: "Acme"}},
	}})
	if !errors.Is(err, utils.ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}
