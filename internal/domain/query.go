package domain

import (
	"fmt"
	"strings"
)

const (
	DefaultPerPage = 25
	MaxPerPage     = 100
)

// CharacterQuery is a normalized character search across sources.
type CharacterQuery struct {
	Category string // series/category filter, free text
	Gender   Gender // empty means no filter
	Page     int
	PerPage  int
}

// Normalize fills defaults and canonicalizes the category filter so that
// equivalent queries share one cache key.
func (q CharacterQuery) Normalize() CharacterQuery {
	q.Category = strings.ToLower(strings.TrimSpace(q.Category))
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PerPage <= 0 {
		q.PerPage = DefaultPerPage
	}
	return q
}

// Validate rejects malformed queries before any fetch happens.
func (q CharacterQuery) Validate() error {
	if q.Page < 0 {
		return &ValidationError{Field: "page", Reason: "must be >= 1"}
	}
	if q.PerPage < 0 || q.PerPage > MaxPerPage {
		return &ValidationError{Field: "per_page", Reason: fmt.Sprintf("must be between 1 and %d", MaxPerPage)}
	}
	switch q.Gender {
	case "", GenderMale, GenderFemale, GenderNonBinary, GenderUnknown:
	default:
		return &ValidationError{Field: "gender", Reason: "unknown gender value"}
	}
	return nil
}

// Key is the cache key for the normalized query.
func (q CharacterQuery) Key() string {
	n := q.Normalize()
	return fmt.Sprintf("chars|%s|%s|%d|%d", n.Category, n.Gender, n.Page, n.PerPage)
}
