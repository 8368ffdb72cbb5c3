package workflow

import (
	"github.com/mmdatafocus/voicebill_backend/matching"
	"github.com/mmdatafocus/voicebill_backend/models"
)

// OutcomeKind classifies a workflow result. Only a missing owner is reported as an error;
// every other outcome is a result the caller can render.
type OutcomeKind string

const (
	OutcomeSuccess            OutcomeKind = "success"
	OutcomeNotFound           OutcomeKind = "not_found"
	OutcomeAmbiguousMatch     OutcomeKind = "ambiguous_match"
	OutcomeNeedsSelection     OutcomeKind = "needs_selection"
	OutcomeNeedsConfirmation  OutcomeKind = "needs_confirmation"
	OutcomeInvalidConversion  OutcomeKind = "invalid_conversion"
	OutcomeInvalidRequest     OutcomeKind = "invalid_request"
	OutcomePersistenceFailure OutcomeKind = "persistence_failure"
	OutcomeUnsupported        OutcomeKind = "unsupported"
)

const (
	msgPersistenceFailure = "Something went wrong while saving. Please try again."
	msgClientNotFound     = "I couldn't find that client."
	msgNoDocuments        = "I found the client but no matching documents."
	msgAmbiguousClient    = "Several clients match that name. Which one did you mean?"
	msgAmbiguousDocument  = "That client has several matching documents. Which one did you mean?"
)

// TransformResult is the outcome of a convert or clone.
type TransformResult struct {
	Success  bool                 `json:"success"`
	Kind     OutcomeKind          `json:"kind"`
	Message  string               `json:"message,omitempty"`
	Job      *models.TransformJob `json:"job,omitempty"`
	Document *models.Document     `json:"document,omitempty"`
	// Client is set when a client resolved but the request could not go further.
	Client      *models.Client       `json:"client,omitempty"`
	Suggestions matching.Suggestions `json:"suggestions,omitempty"`
	// Candidates are the documents to choose from when the client has several.
	Candidates []*models.Document `json:"candidates,omitempty"`
}

func succeeded(job *models.TransformJob, doc *models.Document) TransformResult {
	return TransformResult{Success: true, Kind: OutcomeSuccess, Job: job, Document: doc}
}

func failed(kind OutcomeKind, message string) TransformResult {
	return TransformResult{Kind: kind, Message: message}
}
