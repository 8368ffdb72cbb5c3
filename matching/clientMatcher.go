package matching

import "sort"

const (
	DefaultMinSimilarity   = 0.3
	DefaultSuggestionLimit = 5

	// ExactMatchSimilarity is the score at which a suggestion is treated as the same client.
	ExactMatchSimilarity = 0.9
	// LookupMinSimilarity is the lowest score LookupClient will return a candidate for.
	LookupMinSimilarity = 0.5
	// ConfidentSimilarity is the score from which a lookup needs no human confirmation.
	ConfidentSimilarity = 0.8
)

// DirectoryEntry is one row of an owner's client directory.
type DirectoryEntry struct {
	ID   int
	Name string
}

type ClientSuggestion struct {
	ClientId   int     `json:"client_id"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

// Suggestions are ranked best first.
type Suggestions []ClientSuggestion

// ExactMatch returns the first suggestion scoring at least ExactMatchSimilarity.
func (s Suggestions) ExactMatch() (ClientSuggestion, bool) {
	for _, suggestion := range s {
		if suggestion.Similarity >= ExactMatchSimilarity {
			return suggestion, true
		}
	}
	return ClientSuggestion{}, false
}

// ClientLookup is the outcome of resolving one spoken name to a single client.
type ClientLookup struct {
	Candidate         ClientSuggestion
	Found             bool
	NeedsConfirmation bool
}

// ClientMatcher ranks a client directory against a query name. The zero value is not
// useful; use NewClientMatcher.
type ClientMatcher struct {
	MinSimilarity float64
	Limit         int
}

func NewClientMatcher() ClientMatcher {
	return ClientMatcher{
		MinSimilarity: DefaultMinSimilarity,
		Limit:         DefaultSuggestionLimit,
	}
}

// FindSimilarClients scores every entry, keeps those at or above MinSimilarity and returns
// at most Limit of them, best first. Ties keep directory order.
func (m ClientMatcher) FindSimilarClients(query string, directory []DirectoryEntry) Suggestions {
	limit := m.Limit
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}

	scored := make(Suggestions, 0, len(directory))
	for _, entry := range directory {
		score := Similarity(query, entry.Name)
		if score < m.MinSimilarity {
			continue
		}
		scored = append(scored, ClientSuggestion{
			ClientId:   entry.ID,
			Name:       entry.Name,
			Similarity: score,
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// LookupClient returns the single best candidate when it scores at least
// LookupMinSimilarity; candidates below ConfidentSimilarity need confirmation.
func (m ClientMatcher) LookupClient(query string, directory []DirectoryEntry) ClientLookup {
	var (
		best  ClientSuggestion
		found bool
	)
	for _, entry := range directory {
		score := Similarity(query, entry.Name)
		if !found || score > best.Similarity {
			best = ClientSuggestion{ClientId: entry.ID, Name: entry.Name, Similarity: score}
			found = true
		}
	}
	if !found || best.Similarity < LookupMinSimilarity {
		return ClientLookup{}
	}
	return ClientLookup{
		Candidate:         best,
		Found:             true,
		NeedsConfirmation: best.Similarity < ConfidentSimilarity,
	}
}
