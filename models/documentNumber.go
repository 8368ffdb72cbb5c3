package models

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// recentNumberWindow is how many of the latest numbers are inspected for the running sequence.
const recentNumberWindow = 10

var documentNumberPrefixes = map[DocumentType]string{
	DocumentTypeInvoice:  "INV",
	DocumentTypeEstimate: "EST",
	DocumentTypeContract: "CTR",
}

func DocumentNumberPrefix(docType DocumentType) (string, error) {
	prefix, ok := documentNumberPrefixes[docType]
	if !ok {
		return "", fmt.Errorf("no number prefix for document type %q", docType)
	}
	return prefix, nil
}

// DocumentNumberAllocator produces {PREFIX}-{YEAR}-{SEQ} numbers, sequence zero-padded to 4 digits.
// It does not reserve the number; the unique index on documents catches concurrent allocations.
type DocumentNumberAllocator struct {
	Source DocumentNumberSource
	Now    func() time.Time
}

func NewDocumentNumberAllocator(source DocumentNumberSource) *DocumentNumberAllocator {
	return &DocumentNumberAllocator{Source: source, Now: time.Now}
}

// Next allocates a number for the current year.
func (a *DocumentNumberAllocator) Next(ctx context.Context, ownerId string, docType DocumentType) (string, error) {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	return a.Generate(ctx, ownerId, docType, now().Year())
}

func (a *DocumentNumberAllocator) Generate(ctx context.Context, ownerId string, docType DocumentType, year int) (string, error) {
	prefix, err := DocumentNumberPrefix(docType)
	if err != nil {
		return "", err
	}
	yearPrefix := fmt.Sprintf("%s-%d-", prefix, year)

	numbers, err := a.Source.RecentDocumentNumbers(ctx, ownerId, docType, yearPrefix, recentNumberWindow)
	if err != nil {
		return "", err
	}
	return FormatDocumentNumber(yearPrefix, NextSequence(yearPrefix, numbers)), nil
}

// NextSequence returns one more than the highest trailing sequence among numbers carrying yearPrefix.
// Numbers that do not parse are skipped.
func NextSequence(yearPrefix string, numbers []string) int {
	pattern := regexp.MustCompile("^" + regexp.QuoteMeta(yearPrefix) + `(\d+)$`)
	highest := 0
	for _, number := range numbers {
		m := pattern.FindStringSubmatch(number)
		if m == nil {
			continue
		}
		seq, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		highest = max(highest, seq)
	}
	return highest + 1
}

func FormatDocumentNumber(yearPrefix string, seq int) string {
	return fmt.Sprintf("%s%04d", yearPrefix, seq)
}
