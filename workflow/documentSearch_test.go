package workflow

import (
	"context"
	"testing"

	"github.com/mmdatafocus/voicebill_backend/models"
)

func newTestSearch(store *memStore) *DocumentSearch {
	s := NewDocumentSearch(store, store)
	s.Logger = quietLogger()
	return s
}

func TestSearch_ContainmentHitPicksMostRecent(t *testing.T) {
	store := newMemStore()
	john := store.addClient("John Smith")
	store.addDocument(john, models.DocumentTypeInvoice, "INV-2026-0001", item("Tile", 1, 100))
	latest := store.addDocument(john, models.DocumentTypeInvoice, "INV-2026-0002", item("Grout", 1, 50))

	for _, selector := range []models.DocumentSelector{"last", "latest", "recent"} {
		res, err := newTestSearch(store).Search(context.Background(), testOwner, DocumentQuery{ClientName: "smith", Selector: selector})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		resolved, ok := res.(models.Resolved[ClientDocuments])
		if !ok {
			t.Fatalf("%s: expected Resolved, got %T", selector, res)
		}
		if len(resolved.Value.Documents) != 1 || resolved.Value.Documents[0].ID != latest.ID {
			t.Fatalf("%s: expected only the latest document, got %+v", selector, resolved.Value.Documents)
		}
	}

	res, _ := newTestSearch(store).Search(context.Background(), testOwner, DocumentQuery{ClientName: "smith"})
	if resolved := res.(models.Resolved[ClientDocuments]); len(resolved.Value.Documents) != 2 {
		t.Fatalf("without a selector both documents should come back, got %d", len(resolved.Value.Documents))
	}
}

func TestSearch_TypeFilter(t *testing.T) {
	store := newMemStore()
	john := store.addClient("John Smith")
	store.addDocument(john, models.DocumentTypeInvoice, "INV-2026-0001", item("Tile", 1, 100))
	estimate := store.addDocument(john, models.DocumentTypeEstimate, "EST-2026-0001", item("Tile", 1, 90))
	store.addDocument(john, models.DocumentTypeInvoice, "INV-2026-0002", item("Tile", 1, 80))

	docType := models.DocumentTypeEstimate
	res, err := newTestSearch(store).Search(context.Background(), testOwner, DocumentQuery{ClientName: "John Smith", DocumentType: &docType, Selector: "last"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resolved, ok := res.(models.Resolved[ClientDocuments])
	if !ok || resolved.Value.Documents[0].ID != estimate.ID {
		t.Fatalf("expected the estimate, got %#v", res)
	}
}

func TestSearch_SeveralContainmentHitsAreAmbiguous(t *testing.T) {
	store := newMemStore()
	store.addClient("John Smith")
	store.addClient("Jane Smith")

	res, err := newTestSearch(store).Search(context.Background(), testOwner, DocumentQuery{ClientName: "Smith"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ambiguous, ok := res.(models.Ambiguous[ClientDocuments])
	if !ok {
		t.Fatalf("expected Ambiguous, got %T", res)
	}
	if len(ambiguous.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %+v", ambiguous.Candidates)
	}
}

func TestSearch_ExactNameWinsAmongHits(t *testing.T) {
	store := newMemStore()
	smith := store.addClient("Smith")
	store.addClient("Smithson Roofing")
	store.addDocument(smith, models.DocumentTypeInvoice, "INV-2026-0001", item("Tile", 1, 100))

	res, err := newTestSearch(store).Search(context.Background(), testOwner, DocumentQuery{ClientName: "smith"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resolved, ok := res.(models.Resolved[ClientDocuments])
	if !ok || resolved.Value.Client.ID != smith.ID {
		t.Fatalf("expected Smith to resolve, got %#v", res)
	}
}

func TestSearch_ClientWithoutDocuments(t *testing.T) {
	store := newMemStore()
	john := store.addClient("John Smith")

	res, err := newTestSearch(store).Search(context.Background(), testOwner, DocumentQuery{ClientName: "John Smith"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	unresolved, ok := res.(models.Unresolved[ClientDocuments])
	if !ok {
		t.Fatalf("expected Unresolved, got %T", res)
	}
	if unresolved.Client == nil || unresolved.Client.ID != john.ID {
		t.Fatalf("expected the found client to be reported, got %+v", unresolved.Client)
	}
}

func TestSearch_FuzzyFallbackTakesOnlyExactSuggestion(t *testing.T) {
	store := newMemStore()
	john := store.addClient("John Smith")
	store.addClient("Zebra Inc")
	doc := store.addDocument(john, models.DocumentTypeInvoice, "INV-2026-0001", item("Tile", 1, 100))

	res, err := newTestSearch(store).Search(context.Background(), testOwner, DocumentQuery{ClientName: "Jon Smith", Selector: "last"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resolved, ok := res.(models.Resolved[ClientDocuments])
	if !ok {
		t.Fatalf("expected Resolved via fuzzy fallback, got %#v", res)
	}
	if resolved.Value.Client.ID != john.ID || resolved.Value.Documents[0].ID != doc.ID {
		t.Fatalf("unexpected resolution %+v", resolved.Value)
	}
}

func TestSearch_WeakSingleSuggestionIsNotPicked(t *testing.T) {
	store := newMemStore()
	kos := store.addClient("Kos")
	store.addDocument(kos, models.DocumentTypeInvoice, "INV-2026-0001", item("Tile", 1, 100))

	res, err := newTestSearch(store).Search(context.Background(), testOwner, DocumentQuery{ClientName: "Cost", Selector: "last"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	unresolved, ok := res.(models.Unresolved[ClientDocuments])
	if !ok {
		t.Fatalf("expected Unresolved with a suggestion, got %#v", res)
	}
	if unresolved.Client != nil || len(unresolved.Suggestions) != 1 || unresolved.Suggestions[0].ClientId != kos.ID {
		t.Fatalf("expected Kos offered as a suggestion only, got %+v", unresolved)
	}
}

func TestSearch_NamedClientWithoutDocumentsIsNotSwapped(t *testing.T) {
	store := newMemStore()
	smith := store.addClient("Smith")
	smithers := store.addClient("Smithers")
	store.addDocument(smithers, models.DocumentTypeInvoice, "INV-2026-0001", item("Tile", 1, 100))

	res, err := newTestSearch(store).Search(context.Background(), testOwner, DocumentQuery{ClientName: "Smith", Selector: "last"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	unresolved, ok := res.(models.Unresolved[ClientDocuments])
	if !ok {
		t.Fatalf("expected Unresolved for the named client, got %#v", res)
	}
	if unresolved.Client == nil || unresolved.Client.ID != smith.ID {
		t.Fatalf("expected Smith to be reported, got %+v", unresolved.Client)
	}
	if len(unresolved.Suggestions) != 1 || unresolved.Suggestions[0].ClientId != smithers.ID {
		t.Fatalf("expected Smithers as the only alternative, got %+v", unresolved.Suggestions)
	}
}

func TestSearch_NothingSimilar(t *testing.T) {
	store := newMemStore()
	store.addClient("John Smith")

	res, err := newTestSearch(store).Search(context.Background(), testOwner, DocumentQuery{ClientName: "Xavier"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	unresolved, ok := res.(models.Unresolved[ClientDocuments])
	if !ok {
		t.Fatalf("expected Unresolved, got %T", res)
	}
	if unresolved.Client != nil || len(unresolved.Suggestions) != 0 {
		t.Fatalf("expected no client and no suggestions, got %+v", unresolved)
	}
}

func TestSearch_StaysWithinOwner(t *testing.T) {
	store := newMemStore()
	other := store.addClient("John Smith")
	other.OwnerId = "owner-2"

	res, err := newTestSearch(store).Search(context.Background(), testOwner, DocumentQuery{ClientName: "John Smith"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if unresolved, ok := res.(models.Unresolved[ClientDocuments]); !ok || unresolved.Client != nil || len(unresolved.Suggestions) != 0 {
		t.Fatalf("another owner's client leaked into the result: %#v", res)
	}
}
