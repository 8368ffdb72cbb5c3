package models

import (
	"fmt"
	"strings"
)

type DocumentType string

const (
	DocumentTypeInvoice  DocumentType = "invoice"
	DocumentTypeEstimate DocumentType = "estimate"
	DocumentTypeContract DocumentType = "contract"
)

func (t DocumentType) IsValid() bool {
	switch t {
	case DocumentTypeInvoice, DocumentTypeEstimate, DocumentTypeContract:
		return true
	}
	return false
}

// ParseDocumentType accepts the spoken forms the extraction layer emits ("Invoices", " quote ").
func ParseDocumentType(raw string) (DocumentType, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "invoice", "invoices", "bill":
		return DocumentTypeInvoice, nil
	case "estimate", "estimates", "quote", "quotes", "quotation":
		return DocumentTypeEstimate, nil
	case "contract", "contracts", "agreement":
		return DocumentTypeContract, nil
	}
	return "", fmt.Errorf("invalid document type %q", raw)
}

type DocumentStatus string

const (
	DocumentStatusDraft    DocumentStatus = "draft"
	DocumentStatusSent     DocumentStatus = "sent"
	DocumentStatusAccepted DocumentStatus = "accepted"
	DocumentStatusPaid     DocumentStatus = "paid"
	DocumentStatusVoid     DocumentStatus = "void"
)

type TransformJobStatus string

const (
	TransformJobStatusPending    TransformJobStatus = "pending"
	TransformJobStatusProcessing TransformJobStatus = "processing"
	TransformJobStatusCompleted  TransformJobStatus = "completed"
	TransformJobStatusCancelled  TransformJobStatus = "cancelled"
	TransformJobStatusFailed     TransformJobStatus = "failed"
)

func (s TransformJobStatus) IsTerminal() bool {
	switch s {
	case TransformJobStatusCompleted, TransformJobStatusCancelled, TransformJobStatusFailed:
		return true
	}
	return false
}

type TransformOperation string

const (
	TransformOperationConvert TransformOperation = "convert"
	TransformOperationClone   TransformOperation = "clone"
	TransformOperationMerge   TransformOperation = "merge"
)

// DocumentSelector picks among a client's documents. Last, Latest and Recent are synonyms:
// all mean "most recent by creation time".
type DocumentSelector string

const (
	DocumentSelectorNone   DocumentSelector = ""
	DocumentSelectorLast   DocumentSelector = "last"
	DocumentSelectorLatest DocumentSelector = "latest"
	DocumentSelectorRecent DocumentSelector = "recent"
)

// PicksMostRecent reports whether the selector narrows the result to one document.
func (s DocumentSelector) PicksMostRecent() bool {
	switch DocumentSelector(strings.ToLower(strings.TrimSpace(string(s)))) {
	case DocumentSelectorLast, DocumentSelectorLatest, DocumentSelectorRecent:
		return true
	}
	return false
}
