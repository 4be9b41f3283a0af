// Package store resolves free-text store names against a directory snapshot.
package store

import (
	"context"
	"strings"
)

// Entry is one store in the directory.
type Entry struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// MatchTier says how an input matched a display name.
type MatchTier string

const (
	TierExact      MatchTier = "exact"
	TierPrefix     MatchTier = "prefix"
	TierUnresolved MatchTier = "unresolved"
)

// Directory lists the stores known to the marketplace.
type Directory interface {
	ListStores(ctx context.Context) ([]Entry, error)
}

// Resolver matches store names against an immutable snapshot. Within a tier
// the first entry in snapshot order wins.
type Resolver struct {
	entries []Entry
	folded  []string
}

// NewResolver snapshots entries in the given order.
func NewResolver(entries []Entry) *Resolver {
	r := &Resolver{
		entries: append([]Entry(nil), entries...),
		folded:  make([]string, len(entries)),
	}
	for i, e := range r.entries {
		r.folded[i] = fold(e.DisplayName)
	}
	return r
}

// Len returns the number of entries in the snapshot.
func (r *Resolver) Len() int { return len(r.entries) }

// Entries returns a copy of the snapshot.
func (r *Resolver) Entries() []Entry { return append([]Entry(nil), r.entries...) }

// Resolve tries an exact case-insensitive match, then a prefix match. The
// prefix tier compares characters, not words, so "Main St" matches
// "Main Street Store". Empty input never resolves.
func (r *Resolver) Resolve(input string) (Entry, MatchTier) {
	q := fold(input)
	if q == "" {
		return Entry{}, TierUnresolved
	}
	for i, name := range r.folded {
		if name == q {
			return r.entries[i], TierExact
		}
	}
	for i, name := range r.folded {
		if strings.HasPrefix(name, q) {
			return r.entries[i], TierPrefix
		}
	}
	return Entry{}, TierUnresolved
}

// ResolveID returns the store id for input. ok is false when unresolved.
func (r *Resolver) ResolveID(input string) (id string, ok bool) {
	e, tier := r.Resolve(input)
	if tier == TierUnresolved {
		return "", false
	}
	return e.ID, true
}

// Search returns exact matches followed by prefix matches, each in snapshot
// order, capped at limit when limit > 0.
func (r *Resolver) Search(input string, limit int) []Entry {
	q := fold(input)
	if q == "" {
		return []Entry{}
	}

	matches := make([]Entry, 0)
	for i, name := range r.folded {
		if name == q {
			matches = append(matches, r.entries[i])
		}
	}
	for i, name := range r.folded {
		if name != q && strings.HasPrefix(name, q) {
			matches = append(matches, r.entries[i])
		}
	}
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func fold(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
