package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/mmdatafocus/voicebill_backend/config"
	"github.com/mmdatafocus/voicebill_backend/models"
	"github.com/mmdatafocus/voicebill_backend/utils"
)

var ErrUnknownIntent = errors.New("unknown intent")

type IntentTag string

const (
	IntentDocumentAction    IntentTag = "document_action"
	IntentInformationQuery  IntentTag = "information_query"
	IntentDocumentClone     IntentTag = "document_clone"
	IntentDocumentMerge     IntentTag = "document_merge"
	IntentDocumentSend      IntentTag = "document_send"
	IntentDocumentTransform IntentTag = "document_transform"
)

// Intent is one of the *Intent payload types below.
type Intent interface {
	Tag() IntentTag
}

// DocumentTarget is how the extraction layer refers to an existing document.
type DocumentTarget struct {
	ClientName   string `mapstructure:"client_name" validate:"required_without=DocumentId"`
	DocumentId   int    `mapstructure:"document_id"`
	DocumentType string `mapstructure:"document_type"`
	Selector     string `mapstructure:"selector"`
}

type DocumentActionIntent struct {
	ClientName   string               `mapstructure:"client_name" validate:"required"`
	Email        string               `mapstructure:"email"`
	Phone        string               `mapstructure:"phone"`
	Address      string               `mapstructure:"address"`
	DocumentType string               `mapstructure:"document_type"`
	Items        []models.NewLineItem `mapstructure:"items"`
}

type InformationQueryIntent struct {
	ClientName   string `mapstructure:"client_name" validate:"required"`
	DocumentType string `mapstructure:"document_type"`
	Selector     string `mapstructure:"selector"`
}

type DocumentCloneIntent struct {
	DocumentTarget `mapstructure:",squash"`
	Modifications  *models.ItemModifications `mapstructure:"modifications"`
	Notes          string                    `mapstructure:"notes"`
}

type DocumentMergeIntent struct {
	Sources       []DocumentTarget          `mapstructure:"sources" validate:"min=2,dive"`
	TargetType    string                    `mapstructure:"target_type"`
	Modifications *models.ItemModifications `mapstructure:"modifications"`
	Notes         string                    `mapstructure:"notes"`
}

type DocumentSendIntent struct {
	DocumentTarget `mapstructure:",squash"`
	Channel        string `mapstructure:"channel"`
	Recipient      string `mapstructure:"recipient"`
}

type DocumentTransformIntent struct {
	DocumentTarget `mapstructure:",squash"`
	TargetType     string                    `mapstructure:"target_type" validate:"required"`
	Modifications  *models.ItemModifications `mapstructure:"modifications"`
	Split          *models.SplitConfig       `mapstructure:"split"`
	Schedule       *models.ScheduleConfig    `mapstructure:"schedule"`
	Notes          string                    `mapstructure:"notes"`
}

func (DocumentActionIntent) Tag() IntentTag    { return IntentDocumentAction }
func (InformationQueryIntent) Tag() IntentTag  { return IntentInformationQuery }
func (DocumentCloneIntent) Tag() IntentTag     { return IntentDocumentClone }
func (DocumentMergeIntent) Tag() IntentTag     { return IntentDocumentMerge }
func (DocumentSendIntent) Tag() IntentTag      { return IntentDocumentSend }
func (DocumentTransformIntent) Tag() IntentTag { return IntentDocumentTransform }

// ParseIntent decodes the extraction layer's loosely typed payload into the variant for tag.
// Numbers arriving as strings and strings arriving as numbers are both accepted.
func ParseIntent(tag string, payload map[string]any) (Intent, error) {
	switch IntentTag(strings.TrimSpace(tag)) {
	case IntentDocumentAction:
		return decodeIntent[DocumentActionIntent](payload)
	case IntentInformationQuery:
		return decodeIntent[InformationQueryIntent](payload)
	case IntentDocumentClone:
		return decodeIntent[DocumentCloneIntent](payload)
	case IntentDocumentMerge:
		return decodeIntent[DocumentMergeIntent](payload)
	case IntentDocumentSend:
		return decodeIntent[DocumentSendIntent](payload)
	case IntentDocumentTransform:
		return decodeIntent[DocumentTransformIntent](payload)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownIntent, tag)
}

func decodeIntent[T Intent](payload map[string]any) (Intent, error) {
	var intent T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &intent,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", intent.Tag(), err)
	}
	if err := utils.ValidateStruct(intent); err != nil {
		return nil, fmt.Errorf("%s: %w", intent.Tag(), err)
	}
	return intent, nil
}

// Response is what a request handler renders for any intent.
type Response struct {
	Tag       IntentTag        `json:"tag"`
	Success   bool             `json:"success"`
	Kind      OutcomeKind      `json:"kind"`
	Message   string           `json:"message,omitempty"`
	Transform *TransformResult `json:"transform,omitempty"`
	Merge     *MergeResult     `json:"merge,omitempty"`
	Client    *ClientResult    `json:"client,omitempty"`
	// Search is set for information queries.
	Search models.Resolution[ClientDocuments] `json:"-"`
}

type Engine struct {
	Orchestrator *Orchestrator
}

func NewEngine(store models.Store) *Engine {
	return &Engine{Orchestrator: NewOrchestrator(store)}
}

// Handle dispatches a parsed intent. The error is non-nil only when no owner is authenticated
// or the intent type is not one of the known variants.
func (e *Engine) Handle(ctx context.Context, intent Intent) (Response, error) {
	if _, err := utils.RequireOwnerId(ctx); err != nil {
		return Response{}, err
	}
	ctx = utils.SetCorrelationIdInContext(ctx, utils.CorrelationIdFromContextOrNew(ctx))
	o := e.Orchestrator

	switch in := intent.(type) {
	case DocumentTransformIntent:
		target, err := models.ParseDocumentType(in.TargetType)
		if err != nil {
			return invalid(in.Tag(), OutcomeInvalidConversion, "I can't convert to "+in.TargetType+"."), nil
		}
		ref, resp := sourceRef(in.Tag(), in.DocumentTarget)
		if resp != nil {
			return *resp, nil
		}
		result, err := o.Convert(ctx, ConvertRequest{
			Source:        ref,
			TargetType:    target,
			Modifications: in.Modifications,
			Split:         in.Split,
			Schedule:      in.Schedule,
			Notes:         in.Notes,
		})
		if err != nil {
			return Response{}, err
		}
		return transformResponse(in.Tag(), result), nil

	case DocumentCloneIntent:
		ref, resp := sourceRef(in.Tag(), in.DocumentTarget)
		if resp != nil {
			return *resp, nil
		}
		result, err := o.Clone(ctx, CloneRequest{Source: ref, Modifications: in.Modifications, Notes: in.Notes})
		if err != nil {
			return Response{}, err
		}
		return transformResponse(in.Tag(), result), nil

	case DocumentMergeIntent:
		req := MergeRequest{Modifications: in.Modifications, Notes: in.Notes}
		if strings.TrimSpace(in.TargetType) != "" {
			target, err := models.ParseDocumentType(in.TargetType)
			if err != nil {
				return invalid(in.Tag(), OutcomeInvalidConversion, "I can't merge into "+in.TargetType+"."), nil
			}
			req.TargetType = target
		}
		for _, source := range in.Sources {
			ref, resp := sourceRef(in.Tag(), source)
			if resp != nil {
				return *resp, nil
			}
			req.Sources = append(req.Sources, MergeSource{Query: ref.Query, SelectedDocumentId: ref.DocumentId})
		}
		result, err := o.Merge(ctx, req)
		if err != nil {
			return Response{}, err
		}
		return Response{Tag: in.Tag(), Success: result.Success, Kind: result.Kind, Message: result.Message, Merge: &result}, nil

	case InformationQueryIntent:
		ref, resp := sourceRef(in.Tag(), DocumentTarget{ClientName: in.ClientName, DocumentType: in.DocumentType, Selector: in.Selector})
		if resp != nil {
			return *resp, nil
		}
		ownerId, _ := utils.RequireOwnerId(ctx)
		resolution, err := o.Search.Search(ctx, ownerId, ref.Query)
		if err != nil {
			config.LogError(o.Logger, "Engine", "Handle", string(in.Tag()), in.ClientName, err)
			return invalid(in.Tag(), OutcomePersistenceFailure, msgPersistenceFailure), nil
		}
		return searchResponse(in.Tag(), resolution), nil

	case DocumentActionIntent:
		result, err := o.ResolveOrCreateClient(ctx, in.ClientName, ContactInfo{Email: in.Email, Phone: in.Phone, Address: in.Address})
		if err != nil {
			return Response{}, err
		}
		return Response{Tag: in.Tag(), Success: result.Success, Kind: result.Kind, Message: result.Message, Client: &result}, nil

	case DocumentSendIntent:
		return invalid(in.Tag(), OutcomeUnsupported, "Sending documents isn't available here."), nil
	}
	return Response{}, fmt.Errorf("%w: %T", ErrUnknownIntent, intent)
}

func invalid(tag IntentTag, kind OutcomeKind, message string) Response {
	return Response{Tag: tag, Kind: kind, Message: message}
}

func sourceRef(tag IntentTag, target DocumentTarget) (SourceRef, *Response) {
	ref := SourceRef{
		DocumentId: target.DocumentId,
		Query: DocumentQuery{
			ClientName: target.ClientName,
			Selector:   models.DocumentSelector(strings.ToLower(strings.TrimSpace(target.Selector))),
		},
	}
	if strings.TrimSpace(target.DocumentType) != "" {
		docType, err := models.ParseDocumentType(target.DocumentType)
		if err != nil {
			resp := invalid(tag, OutcomeInvalidRequest, "I don't know the document type "+target.DocumentType+".")
			return ref, &resp
		}
		ref.Query.DocumentType = &docType
	}
	return ref, nil
}

func transformResponse(tag IntentTag, result TransformResult) Response {
	return Response{Tag: tag, Success: result.Success, Kind: result.Kind, Message: result.Message, Transform: &result}
}

func searchResponse(tag IntentTag, resolution models.Resolution[ClientDocuments]) Response {
	resp := Response{Tag: tag, Search: resolution}
	switch res := resolution.(type) {
	case models.Resolved[ClientDocuments]:
		resp.Success = true
		resp.Kind = OutcomeSuccess
	case models.Ambiguous[ClientDocuments]:
		resp.Kind = OutcomeAmbiguousMatch
		resp.Message = msgAmbiguousClient
	case models.Unresolved[ClientDocuments]:
		resp.Kind = OutcomeNotFound
		resp.Message = msgClientNotFound
		if res.Client != nil {
			resp.Message = msgNoDocuments
		}
	}
	return resp
}
