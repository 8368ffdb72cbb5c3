package workflow

import (
	"context"
	"strings"

	"github.com/mmdatafocus/voicebill_backend/config"
	"github.com/mmdatafocus/voicebill_backend/matching"
	"github.com/mmdatafocus/voicebill_backend/models"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type DocumentQuery struct {
	ClientName   string
	DocumentType *models.DocumentType
	Selector     models.DocumentSelector
}

// ClientDocuments is a resolved client with its matching documents, newest first.
type ClientDocuments struct {
	Client    *models.Client
	Documents []*models.Document
}

type DocumentSearch struct {
	Clients   models.ClientAccessor
	Documents models.DocumentAccessor
	Matcher   matching.ClientMatcher
	Logger    *logrus.Logger
}

func NewDocumentSearch(clients models.ClientAccessor, documents models.DocumentAccessor) *DocumentSearch {
	return &DocumentSearch{
		Clients:   clients,
		Documents: documents,
		Matcher: matching.ClientMatcher{
			MinSimilarity: config.ClientMinSimilarity(),
			Limit:         config.ClientSuggestionLimit(),
		},
		Logger: config.GetLogger(),
	}
}

// Search resolves a spoken client name to that client's documents. When the direct lookup
// finds nothing usable it falls back to ranked suggestions over the whole directory.
// The error is non-nil only for storage failures.
func (s *DocumentSearch) Search(ctx context.Context, ownerId string, q DocumentQuery) (models.Resolution[ClientDocuments], error) {
	ctx, span := tracer.Start(ctx, "transform.search")
	defer span.End()
	span.SetAttributes(attribute.String("client_name", q.ClientName))

	name := strings.TrimSpace(q.ClientName)
	if name == "" {
		return models.Unresolved[ClientDocuments]{}, nil
	}

	hits, err := s.Clients.FindClientsByName(ctx, ownerId, name)
	if err != nil {
		return nil, err
	}

	var client *models.Client
	switch {
	case len(hits) == 1:
		client = hits[0]
	case len(hits) > 1:
		client = exactNameMatch(hits, name)
		if client == nil {
			return models.Ambiguous[ClientDocuments]{
				Candidates: s.rank(name, hits, 0),
			}, nil
		}
	}

	if client != nil {
		docs, err := s.clientDocuments(ctx, ownerId, client.ID, q)
		if err != nil {
			return nil, err
		}
		if len(docs) > 0 {
			return models.Resolved[ClientDocuments]{Value: ClientDocuments{Client: client, Documents: docs}}, nil
		}
	}

	return s.fallback(ctx, ownerId, name, client, q)
}

// fallback ranks the owner's whole directory. checked is the client already found without
// documents; it is reported back with the suggestions rather than swapped for another client.
// Without a checked client, a single suggestion is only taken when it is an exact match.
func (s *DocumentSearch) fallback(ctx context.Context, ownerId string, name string, checked *models.Client, q DocumentQuery) (models.Resolution[ClientDocuments], error) {
	directory, err := s.Clients.ListClients(ctx, ownerId)
	if err != nil {
		return nil, err
	}
	exclude := 0
	if checked != nil {
		exclude = checked.ID
	}
	suggestions := s.rank(name, directory, exclude)

	s.Logger.WithFields(logrus.Fields{
		"field":       "DocumentSearch",
		"owner_id":    ownerId,
		"client_name": name,
		"suggestions": len(suggestions),
	}).Debug("falling back to fuzzy client suggestions")

	if checked != nil || len(suggestions) == 0 {
		return models.Unresolved[ClientDocuments]{Client: checked, Suggestions: suggestions}, nil
	}
	if len(suggestions) > 1 {
		return models.Ambiguous[ClientDocuments]{Candidates: suggestions}, nil
	}

	best, exact := suggestions.ExactMatch()
	if !exact {
		return models.Unresolved[ClientDocuments]{Suggestions: suggestions}, nil
	}
	var picked *models.Client
	for _, c := range directory {
		if c.ID == best.ClientId {
			picked = c
			break
		}
	}
	if picked == nil {
		return models.Unresolved[ClientDocuments]{Suggestions: suggestions}, nil
	}
	docs, err := s.clientDocuments(ctx, ownerId, picked.ID, q)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return models.Unresolved[ClientDocuments]{Client: picked, Suggestions: suggestions}, nil
	}
	return models.Resolved[ClientDocuments]{Value: ClientDocuments{Client: picked, Documents: docs}}, nil
}

func (s *DocumentSearch) clientDocuments(ctx context.Context, ownerId string, clientId int, q DocumentQuery) ([]*models.Document, error) {
	limit := 0
	if q.Selector.PicksMostRecent() {
		limit = 1
	}
	return s.Documents.ListClientDocuments(ctx, ownerId, clientId, q.DocumentType, limit)
}

func (s *DocumentSearch) rank(name string, clients []*models.Client, exclude int) matching.Suggestions {
	directory := models.ClientDirectory(clients)
	if exclude != 0 {
		kept := directory[:0]
		for _, entry := range directory {
			if entry.ID != exclude {
				kept = append(kept, entry)
			}
		}
		directory = kept
	}
	return s.Matcher.FindSimilarClients(name, directory)
}

func exactNameMatch(clients []*models.Client, name string) *models.Client {
	for _, c := range clients {
		if strings.EqualFold(strings.TrimSpace(c.Name), name) {
			return c
		}
	}
	return nil
}
