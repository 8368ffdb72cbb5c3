package models

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakeNumberSource struct {
	numbers []string
	err     error

	gotPrefix string
	gotLimit  int
}

func (f *fakeNumberSource) RecentDocumentNumbers(_ context.Context, _ string, _ DocumentType, prefix string, limit int) ([]string, error) {
	f.gotPrefix = prefix
	f.gotLimit = limit
	return f.numbers, f.err
}

func TestNextSequence(t *testing.T) {
	tests := []struct {
		name    string
		numbers []string
		want    int
	}{
		{"empty", nil, 1},
		{"max plus one", []string{"INV-2026-0007", "INV-2026-0012", "INV-2026-0003"}, 13},
		{"skips junk", []string{"junk", "INV-2025-0099", "INV-2026-12a", "INV-2026-0004"}, 5},
		{"beyond padding", []string{"INV-2026-9999"}, 10000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextSequence("INV-2026-", tt.numbers); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestDocumentNumberAllocator_Generate(t *testing.T) {
	source := &fakeNumberSource{numbers: []string{"EST-2026-0003"}}
	allocator := NewDocumentNumberAllocator(source)

	got, err := allocator.Generate(context.Background(), "owner-1", DocumentTypeEstimate, 2026)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "EST-2026-0004" {
		t.Fatalf("expected EST-2026-0004, got %s", got)
	}
	if source.gotPrefix != "EST-2026-" || source.gotLimit != 10 {
		t.Fatalf("unexpected lookup %q limit %d", source.gotPrefix, source.gotLimit)
	}
}

func TestDocumentNumberAllocator_NextUsesClockYear(t *testing.T) {
	allocator := &DocumentNumberAllocator{
		Source: &fakeNumberSource{},
		Now:    func() time.Time { return time.Date(2027, 1, 2, 0, 0, 0, 0, time.UTC) },
	}
	got, err := allocator.Next(context.Background(), "owner-1", DocumentTypeContract)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "CTR-2027-0001" {
		t.Fatalf("expected CTR-2027-0001, got %s", got)
	}
}

func TestDocumentNumberAllocator_NeverReusesInspectedNumbers(t *testing.T) {
	for n := 0; n < 10; n++ {
		numbers := make([]string, 0, 10)
		for i := 0; i < 10; i++ {
			numbers = append(numbers, FormatDocumentNumber("INV-2026-", (i*7+n*3)%23+1))
		}
		got, err := NewDocumentNumberAllocator(&fakeNumberSource{numbers: numbers}).
			Generate(context.Background(), "owner-1", DocumentTypeInvoice, 2026)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, existing := range numbers {
			if existing == got {
				t.Fatalf("allocated %s which is already in %v", got, numbers)
			}
		}
	}
}

func TestDocumentNumberAllocator_Errors(t *testing.T) {
	if _, err := NewDocumentNumberAllocator(&fakeNumberSource{}).
		Generate(context.Background(), "owner-1", DocumentType("receipt"), 2026); err == nil {
		t.Fatalf("expected error for unknown type")
	}

	boom := errors.New("boom")
	_, err := NewDocumentNumberAllocator(&fakeNumberSource{err: boom}).
		Generate(context.Background(), "owner-1", DocumentTypeInvoice, 2026)
	if !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}
}

func ExampleFormatDocumentNumber() {
	fmt.Println(FormatDocumentNumber("INV-2026-", 7))
	// Output: INV-2026-0007
}
