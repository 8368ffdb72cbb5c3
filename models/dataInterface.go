package models

import (
	"context"
	"errors"
)

var ErrDuplicateDocumentNumber = errors.New("document number already exists")

type ClientAccessor interface {
	ListClients(ctx context.Context, ownerId string) ([]*Client, error)
	// FindClientsByName returns clients whose name contains name, case-insensitively, oldest first.
	FindClientsByName(ctx context.Context, ownerId string, name string) ([]*Client, error)
	GetClient(ctx context.Context, ownerId string, id int) (*Client, error)
	CreateClient(ctx context.Context, client *Client) error
	UpdateClientContact(ctx context.Context, ownerId string, id int, contact ClientContact) (*Client, error)
}

type DocumentAccessor interface {
	// GetDocument loads the document with its items and client.
	GetDocument(ctx context.Context, ownerId string, id int) (*Document, error)
	// ListClientDocuments returns documents newest first; docType nil means any type, limit <= 0 means all.
	ListClientDocuments(ctx context.Context, ownerId string, clientId int, docType *DocumentType, limit int) ([]*Document, error)
	DocumentNumberSource
	// CreateDocument inserts the document, its items and its outbox event atomically.
	// A taken number yields ErrDuplicateDocumentNumber.
	CreateDocument(ctx context.Context, doc *Document) error
}

type DocumentNumberSource interface {
	// RecentDocumentNumbers returns numbers starting with prefix, newest first.
	RecentDocumentNumbers(ctx context.Context, ownerId string, docType DocumentType, prefix string, limit int) ([]string, error)
}

type TransformJobAccessor interface {
	CreateTransformJob(ctx context.Context, job *TransformJob) error
	GetTransformJob(ctx context.Context, ownerId string, id int) (*TransformJob, error)
	// AdvanceTransformJob applies update only if the job is still in status from.
	AdvanceTransformJob(ctx context.Context, ownerId string, id int, from TransformJobStatus, update TransformJobUpdate) error
}

type ReviewSessionAccessor interface {
	CreateReviewSession(ctx context.Context, session *ReviewSession) error
	GetReviewSession(ctx context.Context, ownerId string, id string) (*ReviewSession, error)
	SaveReviewSessionDraft(ctx context.Context, ownerId string, id string, draft []byte, version int) error
	DeleteReviewSession(ctx context.Context, ownerId string, id string) error
}

type Store interface {
	ClientAccessor
	DocumentAccessor
	TransformJobAccessor
	ReviewSessionAccessor
}
