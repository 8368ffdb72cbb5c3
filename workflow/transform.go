package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/voicebill_backend/config"
	"github.com/mmdatafocus/voicebill_backend/matching"
	"github.com/mmdatafocus/voicebill_backend/models"
	"github.com/mmdatafocus/voicebill_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("voicebill-workflow")

// Orchestrator derives documents from existing ones as tracked transform jobs.
type Orchestrator struct {
	Store   models.Store
	Search  *DocumentSearch
	Numbers *models.DocumentNumberAllocator
	Matcher matching.ClientMatcher
	Logger  *logrus.Logger
	Now     func() time.Time

	NumberRetries    int
	MergeConcurrency int
	PhoneRegion      string
}

func NewOrchestrator(store models.Store) *Orchestrator {
	search := NewDocumentSearch(store, store)
	return &Orchestrator{
		Store:            store,
		Search:           search,
		Numbers:          models.NewDocumentNumberAllocator(store),
		Matcher:          search.Matcher,
		Logger:           config.GetLogger(),
		Now:              time.Now,
		NumberRetries:    config.DocumentNumberRetries(),
		MergeConcurrency: config.MergeSearchConcurrency(),
		PhoneRegion:      config.DefaultPhoneRegion(),
	}
}

// SourceRef points at a source document either by id or by a spoken client reference.
type SourceRef struct {
	DocumentId int
	Query      DocumentQuery
}

type ConvertRequest struct {
	Source        SourceRef
	TargetType    models.DocumentType
	Modifications *models.ItemModifications
	Split         *models.SplitConfig
	Schedule      *models.ScheduleConfig
	Notes         string
}

type CloneRequest struct {
	Source        SourceRef
	Modifications *models.ItemModifications
	Notes         string
}

// Convert derives a document of another type from the source, e.g. invoice to estimate.
func (o *Orchestrator) Convert(ctx context.Context, req ConvertRequest) (TransformResult, error) {
	ownerId, err := utils.RequireOwnerId(ctx)
	if err != nil {
		return TransformResult{}, err
	}
	ctx, span := tracer.Start(ctx, "transform.convert")
	defer span.End()
	span.SetAttributes(attribute.String("target_type", string(req.TargetType)))

	if !req.TargetType.IsValid() {
		return failed(OutcomeInvalidConversion, fmt.Sprintf("I can't convert to %q.", req.TargetType)), nil
	}

	source, unresolved := o.resolveSource(ctx, ownerId, req.Source)
	if unresolved != nil {
		return *unresolved, nil
	}
	if source.DocumentType == req.TargetType {
		return TransformResult{
			Kind:     OutcomeInvalidConversion,
			Message:  fmt.Sprintf("%s %s: %s", source.DocumentType, source.Number, utils.ErrInvalidConversion.Error()),
			Document: source,
		}, nil
	}

	job := o.newJob(ownerId, models.TransformOperationConvert, source, req.TargetType, models.TransformJobConfig{
		Modifications: req.Modifications,
		Split:         req.Split,
		Schedule:      req.Schedule,
		Notes:         req.Notes,
	})
	if err := o.Store.CreateTransformJob(ctx, job); err != nil {
		config.LogError(o.Logger, "Orchestrator", "Convert", "CreateTransformJob", source.ID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "create job")
		return failed(OutcomePersistenceFailure, msgPersistenceFailure), nil
	}
	span.SetAttributes(attribute.Int("transform_job_id", job.ID))

	doc := o.derive(ownerId, models.TransformOperationConvert, job, req.TargetType, source.ClientId, source.Items, req.Modifications, req.Notes)
	doc.SourceDocumentId = &source.ID
	return o.persist(ctx, ownerId, job, doc), nil
}

// Clone copies the source into a new draft of the same type. No job is tracked for a clone.
func (o *Orchestrator) Clone(ctx context.Context, req CloneRequest) (TransformResult, error) {
	ownerId, err := utils.RequireOwnerId(ctx)
	if err != nil {
		return TransformResult{}, err
	}
	ctx, span := tracer.Start(ctx, "transform.clone")
	defer span.End()

	source, unresolved := o.resolveSource(ctx, ownerId, req.Source)
	if unresolved != nil {
		return *unresolved, nil
	}

	doc := o.derive(ownerId, models.TransformOperationClone, nil, source.DocumentType, source.ClientId, source.Items, req.Modifications, req.Notes)
	doc.SourceDocumentId = &source.ID
	if err := o.createDocument(ctx, ownerId, doc); err != nil {
		config.LogError(o.Logger, "Orchestrator", "Clone", "createDocument", source.ID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "create document")
		return failed(OutcomePersistenceFailure, msgPersistenceFailure), nil
	}
	doc.Client = source.Client
	return succeeded(nil, doc), nil
}

// resolveSource returns the owner's source document, or the result to hand back when it cannot
// be pinned down to exactly one document.
func (o *Orchestrator) resolveSource(ctx context.Context, ownerId string, ref SourceRef) (*models.Document, *TransformResult) {
	if ref.DocumentId > 0 {
		doc, err := o.Store.GetDocument(ctx, ownerId, ref.DocumentId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				r := failed(OutcomeNotFound, "I couldn't find that document.")
				return nil, &r
			}
			config.LogError(o.Logger, "Orchestrator", "resolveSource", "GetDocument", ref.DocumentId, err)
			r := failed(OutcomePersistenceFailure, msgPersistenceFailure)
			return nil, &r
		}
		return doc, nil
	}

	resolution, err := o.Search.Search(ctx, ownerId, ref.Query)
	if err != nil {
		config.LogError(o.Logger, "Orchestrator", "resolveSource", "Search", ref.Query, err)
		r := failed(OutcomePersistenceFailure, msgPersistenceFailure)
		return nil, &r
	}
	switch res := resolution.(type) {
	case models.Resolved[ClientDocuments]:
		if len(res.Value.Documents) == 1 {
			doc := res.Value.Documents[0]
			if doc.Client == nil {
				doc.Client = res.Value.Client
			}
			return doc, nil
		}
		r := TransformResult{
			Kind:       OutcomeAmbiguousMatch,
			Message:    msgAmbiguousDocument,
			Client:     res.Value.Client,
			Candidates: res.Value.Documents,
		}
		return nil, &r
	case models.Ambiguous[ClientDocuments]:
		r := TransformResult{Kind: OutcomeAmbiguousMatch, Message: msgAmbiguousClient, Suggestions: res.Candidates}
		return nil, &r
	case models.Unresolved[ClientDocuments]:
		r := TransformResult{Kind: OutcomeNotFound, Message: msgClientNotFound, Client: res.Client, Suggestions: res.Suggestions}
		if res.Client != nil {
			r.Message = msgNoDocuments
		}
		return nil, &r
	}
	r := failed(OutcomeNotFound, msgClientNotFound)
	return nil, &r
}

func (o *Orchestrator) newJob(ownerId string, op models.TransformOperation, source *models.Document, target models.DocumentType, cfg models.TransformJobConfig) *models.TransformJob {
	return &models.TransformJob{
		OwnerId:              ownerId,
		Operation:            op,
		SourceDocumentId:     source.ID,
		SourceDocumentType:   source.DocumentType,
		SourceDocumentNumber: source.Number,
		SourceTotal:          source.Total,
		SourceClientId:       source.ClientId,
		SourceClientName:     source.ClientName(),
		TargetType:           target,
		Config:               cfg,
		Status:               models.TransformJobStatusProcessing,
	}
}

// derive builds the unsaved draft: copied items with any modifications applied, tax zeroed.
func (o *Orchestrator) derive(ownerId string, op models.TransformOperation, job *models.TransformJob, docType models.DocumentType, clientId int, items []models.LineItem, mods *models.ItemModifications, notes string) *models.Document {
	var reconciled models.ReconciledItems
	if mods != nil {
		reconciled = models.ApplyItemModifications(items, *mods)
	} else {
		copied := models.CopyLineItems(items)
		subtotal := models.SumLineItems(copied)
		reconciled = models.ReconciledItems{Items: copied, Subtotal: subtotal, Total: subtotal}
	}
	doc := &models.Document{
		OwnerId:      ownerId,
		DocumentType: docType,
		ClientId:     clientId,
		Items:        reconciled.Items,
		Subtotal:     reconciled.Subtotal,
		TaxRate:      decimal.Zero,
		TaxAmount:    decimal.Zero,
		Total:        reconciled.Total,
		Status:       models.DocumentStatusDraft,
		Notes:        notes,
		Origin:       op,
	}
	if job != nil {
		doc.TransformJobId = &job.ID
	}
	return doc
}

// persist writes the derived document and settles the job: cancelled when no document was
// written, failed when the document exists but the job could not be completed.
func (o *Orchestrator) persist(ctx context.Context, ownerId string, job *models.TransformJob, doc *models.Document) TransformResult {
	if err := o.createDocument(ctx, ownerId, doc); err != nil {
		config.LogError(o.Logger, "Orchestrator", "persist", "createDocument", job.ID, err)
		o.settle(ctx, job, models.TransformJobUpdate{Status: models.TransformJobStatusCancelled, ErrorMessage: err.Error()})
		return TransformResult{Kind: OutcomePersistenceFailure, Message: msgPersistenceFailure, Job: job}
	}

	completedAt := o.now()
	complete := models.TransformJobUpdate{
		Status:              models.TransformJobStatusCompleted,
		GeneratedDocumentId: &doc.ID,
		CompletedAt:         &completedAt,
	}
	if err := o.Store.AdvanceTransformJob(ctx, ownerId, job.ID, models.TransformJobStatusProcessing, complete); err != nil {
		config.LogError(o.Logger, "Orchestrator", "persist", "AdvanceTransformJob", job.ID, err)
		o.settle(ctx, job, models.TransformJobUpdate{
			Status:              models.TransformJobStatusFailed,
			GeneratedDocumentId: &doc.ID,
			ErrorMessage:        err.Error(),
		})
		return TransformResult{Kind: OutcomePersistenceFailure, Message: msgPersistenceFailure, Job: job, Document: doc}
	}
	job.Apply(complete)

	o.Logger.WithFields(logrus.Fields{
		"field":            "Orchestrator",
		"owner_id":         ownerId,
		"transform_job_id": job.ID,
		"operation":        job.Operation,
		"document_id":      doc.ID,
		"document_number":  doc.Number,
	}).Info("transform job completed")
	return succeeded(job, doc)
}

// settle moves a processing job to a terminal status, best effort.
func (o *Orchestrator) settle(ctx context.Context, job *models.TransformJob, update models.TransformJobUpdate) {
	if update.Status.IsTerminal() && update.CompletedAt == nil {
		at := o.now()
		update.CompletedAt = &at
	}
	if err := o.Store.AdvanceTransformJob(ctx, job.OwnerId, job.ID, models.TransformJobStatusProcessing, update); err != nil {
		config.LogError(o.Logger, "Orchestrator", "settle", string(update.Status), job.ID, err)
		return
	}
	job.Apply(update)
}

// createDocument allocates a number and inserts, allocating again when the number was taken meanwhile.
func (o *Orchestrator) createDocument(ctx context.Context, ownerId string, doc *models.Document) error {
	retries := max(o.NumberRetries, 1)
	var err error
	for attempt := 1; attempt <= retries; attempt++ {
		var number string
		number, err = o.Numbers.Next(ctx, ownerId, doc.DocumentType)
		if err != nil {
			return fmt.Errorf("allocate document number: %w", err)
		}
		doc.Number = number
		doc.ID = 0
		err = o.Store.CreateDocument(ctx, doc)
		if err == nil {
			return nil
		}
		if !errors.Is(err, models.ErrDuplicateDocumentNumber) {
			return err
		}
		o.Logger.WithFields(logrus.Fields{
			"field":    "Orchestrator",
			"owner_id": ownerId,
			"number":   number,
			"attempt":  attempt,
		}).Warn("document number taken, allocating again")
	}
	return err
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}
