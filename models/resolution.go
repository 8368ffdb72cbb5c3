package models

import "github.com/mmdatafocus/voicebill_backend/matching"

// Resolution is the outcome of a fuzzy lookup: exactly one of Resolved, Ambiguous or Unresolved.
type Resolution[T any] interface {
	resolution(T)
}

type Resolved[T any] struct {
	Value T
}

// Ambiguous lists equally plausible candidates the user has to choose from.
type Ambiguous[T any] struct {
	Candidates matching.Suggestions
}

// Unresolved means nothing usable was found. Client is set when a client matched but had
// nothing to offer, e.g. no documents of the requested type.
type Unresolved[T any] struct {
	Client      *Client
	Suggestions matching.Suggestions
}

func (Resolved[T]) resolution(T)   {}
func (Ambiguous[T]) resolution(T)  {}
func (Unresolved[T]) resolution(T) {}
