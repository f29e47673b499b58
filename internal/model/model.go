// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// NewEntryID is the sentinel id of an entry that has not been persisted yet.
const NewEntryID int64 = 0

// Tokens collects an issued access token.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// User represents an account stored on the server.
type User struct {
	ID             uuid.UUID // PK
	Email          string    // unique
	HashedPassword string    // encoded Argon2id hash, salt included
	CreatedAt      time.Time
}

// Entry is one diary record owned by a user.
type Entry struct {
	ID           int64
	UserID       uuid.UUID
	Title        string
	Content      string // rich-text markup
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ImportSource *string    // provenance of bulk-imported legacy entries
	ImportDate   *time.Time // when the legacy entry was imported
}

// IsNew reports whether id is the "not yet persisted" sentinel.
func IsNew(id int64) bool { return id == NewEntryID }

// SaveRequest is a create-or-update intent coming from an editor.
type SaveRequest struct {
	ID      int64 // NewEntryID for creation
	Title   string
	Content string
}

// SaveResult is the outcome of a successful save.
type SaveResult struct {
	Entry   Entry
	Created bool
	// Invalidate lists the views that must be refreshed after the mutation.
	Invalidate []string
}

// ImportedEntry is a legacy entry supplied to a bulk import.
type ImportedEntry struct {
	Title     string
	Content   string
	CreatedAt time.Time
}

// Filter narrows an archive listing. Zero values mean "no bound".
type Filter struct {
	Query        string    // case-insensitive title substring
	CreatedFrom  time.Time // inclusive lower bound
	CreatedUntil time.Time // inclusive upper bound, already widened past the last day
}

// IsEmpty reports whether the filter has no predicate at all.
func (f Filter) IsEmpty() bool {
	return f.Query == "" && f.CreatedFrom.IsZero() && f.CreatedUntil.IsZero()
}

// ArchiveQuery is a filter plus a 1-based page number.
type ArchiveQuery struct {
	Filter Filter
	Page   int
}

// Page is one bounded slice of the archive plus pagination totals.
type Page struct {
	Items      []Entry
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// HasPrev reports whether a previous page exists.
func (p Page) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a next page exists.
func (p Page) HasNext() bool { return p.Page < p.TotalPages }
