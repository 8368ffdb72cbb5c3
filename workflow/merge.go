package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmdatafocus/voicebill_backend/config"
	"github.com/mmdatafocus/voicebill_backend/matching"
	"github.com/mmdatafocus/voicebill_backend/models"
	"github.com/mmdatafocus/voicebill_backend/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

type MergeSlotState string

const (
	MergeSlotResolved        MergeSlotState = "resolved"
	MergeSlotManualSelection MergeSlotState = "manual_selection"
)

// MergeSource names one document to merge. SelectedDocumentId skips the search; callers set it
// after the user picked a document for a slot left in manual selection.
type MergeSource struct {
	Query              DocumentQuery
	SelectedDocumentId int
}

type MergeRequest struct {
	Sources []MergeSource
	// TargetType defaults to the type of the first source.
	TargetType    models.DocumentType
	Modifications *models.ItemModifications
	Notes         string
}

type MergeSlot struct {
	Index      int            `json:"index"`
	ClientName string         `json:"client_name"`
	State      MergeSlotState `json:"state"`
	Message    string         `json:"message,omitempty"`
	// Preview is the resolved source document.
	Preview     *models.Document     `json:"preview,omitempty"`
	Client      *models.Client       `json:"client,omitempty"`
	Suggestions matching.Suggestions `json:"suggestions,omitempty"`
	Candidates  []*models.Document   `json:"candidates,omitempty"`
}

type MergeResult struct {
	TransformResult
	Slots []MergeSlot `json:"slots"`
}

// Merge resolves every source concurrently. If all slots resolve, the sources are merged into
// one draft; otherwise the slots are returned so the unresolved ones can be picked by hand.
func (o *Orchestrator) Merge(ctx context.Context, req MergeRequest) (MergeResult, error) {
	ownerId, err := utils.RequireOwnerId(ctx)
	if err != nil {
		return MergeResult{}, err
	}
	ctx, span := tracer.Start(ctx, "transform.merge")
	defer span.End()
	span.SetAttributes(attribute.Int("sources", len(req.Sources)))

	if len(req.Sources) < 2 {
		return MergeResult{TransformResult: failed(OutcomeInvalidRequest, "Tell me at least two documents to merge.")}, nil
	}
	if req.TargetType != "" && !req.TargetType.IsValid() {
		return MergeResult{TransformResult: failed(OutcomeInvalidConversion, fmt.Sprintf("I can't merge into %q.", req.TargetType))}, nil
	}

	slots, err := o.searchSlots(ctx, ownerId, req.Sources)
	if err != nil {
		config.LogError(o.Logger, "Orchestrator", "Merge", "searchSlots", len(req.Sources), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "search")
		return MergeResult{TransformResult: failed(OutcomePersistenceFailure, msgPersistenceFailure)}, nil
	}

	pending := 0
	seen := map[int]int{}
	for i, slot := range slots {
		if slot.State != MergeSlotResolved {
			pending++
			continue
		}
		if prev, dup := seen[slot.Preview.ID]; dup {
			return MergeResult{
				TransformResult: failed(OutcomeInvalidRequest, fmt.Sprintf("Sources %d and %d are the same document.", prev+1, i+1)),
				Slots:           slots,
			}, nil
		}
		seen[slot.Preview.ID] = i
	}
	if pending > 0 {
		return MergeResult{
			TransformResult: TransformResult{
				Kind:    OutcomeNeedsSelection,
				Message: fmt.Sprintf("%d of %d documents need your selection before merging.", pending, len(slots)),
			},
			Slots: slots,
		}, nil
	}

	return o.commitMerge(ctx, ownerId, req, slots), nil
}

func (o *Orchestrator) searchSlots(ctx context.Context, ownerId string, sources []MergeSource) ([]MergeSlot, error) {
	ctx, span := tracer.Start(ctx, "transform.merge.search")
	defer span.End()

	slots := make([]MergeSlot, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(o.MergeConcurrency, 1))
	for i, source := range sources {
		g.Go(func() error {
			slot, err := o.resolveSlot(gctx, ownerId, source)
			if err != nil {
				return fmt.Errorf("source %d: %w", i+1, err)
			}
			slot.Index = i
			slots[i] = slot
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return slots, nil
}

// resolveSlot returns an error only on storage failure; anything unresolved becomes manual selection.
func (o *Orchestrator) resolveSlot(ctx context.Context, ownerId string, source MergeSource) (MergeSlot, error) {
	slot := MergeSlot{ClientName: source.Query.ClientName, State: MergeSlotManualSelection}

	if source.SelectedDocumentId > 0 {
		doc, err := o.Store.GetDocument(ctx, ownerId, source.SelectedDocumentId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				slot.Message = "I couldn't find that document."
				return slot, nil
			}
			return slot, err
		}
		slot.State = MergeSlotResolved
		slot.Preview = doc
		slot.Client = doc.Client
		return slot, nil
	}

	resolution, err := o.Search.Search(ctx, ownerId, source.Query)
	if err != nil {
		return slot, err
	}
	switch res := resolution.(type) {
	case models.Resolved[ClientDocuments]:
		slot.Client = res.Value.Client
		if len(res.Value.Documents) == 1 {
			slot.State = MergeSlotResolved
			slot.Preview = res.Value.Documents[0]
			if slot.Preview.Client == nil {
				slot.Preview.Client = res.Value.Client
			}
			return slot, nil
		}
		slot.Message = msgAmbiguousDocument
		slot.Candidates = res.Value.Documents
	case models.Ambiguous[ClientDocuments]:
		slot.Message = msgAmbiguousClient
		slot.Suggestions = res.Candidates
	case models.Unresolved[ClientDocuments]:
		slot.Client = res.Client
		slot.Suggestions = res.Suggestions
		slot.Message = msgClientNotFound
		if res.Client != nil {
			slot.Message = msgNoDocuments
		}
	}
	return slot, nil
}

func (o *Orchestrator) commitMerge(ctx context.Context, ownerId string, req MergeRequest, slots []MergeSlot) MergeResult {
	first := slots[0].Preview
	target := req.TargetType
	if target == "" {
		target = first.DocumentType
	}

	var items []models.LineItem
	sourceIds := make([]int, 0, len(slots))
	for _, slot := range slots {
		items = append(items, slot.Preview.Items...)
		sourceIds = append(sourceIds, slot.Preview.ID)
	}

	job := o.newJob(ownerId, models.TransformOperationMerge, first, target, models.TransformJobConfig{
		SourceDocumentIds: sourceIds,
		Modifications:     req.Modifications,
		Notes:             req.Notes,
	})
	if err := o.Store.CreateTransformJob(ctx, job); err != nil {
		config.LogError(o.Logger, "Orchestrator", "commitMerge", "CreateTransformJob", sourceIds, err)
		return MergeResult{TransformResult: failed(OutcomePersistenceFailure, msgPersistenceFailure), Slots: slots}
	}

	doc := o.derive(ownerId, models.TransformOperationMerge, job, target, first.ClientId, items, req.Modifications, req.Notes)
	doc.SourceDocumentId = &first.ID
	return MergeResult{TransformResult: o.persist(ctx, ownerId, job, doc), Slots: slots}
}
