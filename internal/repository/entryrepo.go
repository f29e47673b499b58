package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/reflekt/internal/model"
)

// EntryRepository provides user-scoped access to diary entries.
type EntryRepository interface {
	// Create inserts a new entry and returns the stored row.
	Create(ctx context.Context, userID uuid.UUID, title, content string, now time.Time) (*model.Entry, error)

	// Update overwrites title/content of an existing entry in a single statement.
	Update(ctx context.Context, userID uuid.UUID, id int64, title, content string, now time.Time) (*model.Entry, error)

	// Delete removes an entry. There is no soft delete.
	Delete(ctx context.Context, userID uuid.UUID, id int64) error

	// GetByID returns a single entry by id.
	GetByID(ctx context.Context, userID uuid.UUID, id int64) (*model.Entry, error)

	// GetForDay returns the most recently created entry within [start, end].
	GetForDay(ctx context.Context, userID uuid.UUID, start, end time.Time) (*model.Entry, error)

	// List returns a filtered page ordered by creation time, newest first.
	List(ctx context.Context, userID uuid.UUID, f model.Filter, limit, offset int) ([]model.Entry, error)

	// Count returns the number of entries matching the filter.
	Count(ctx context.Context, userID uuid.UUID, f model.Filter) (int, error)

	// Recent returns the newest entries, used for the sidebar.
	Recent(ctx context.Context, userID uuid.UUID, limit int) ([]model.Entry, error)

	// Import inserts legacy entries atomically and returns how many were stored.
	Import(ctx context.Context, userID uuid.UUID, source string, entries []model.ImportedEntry, at time.Time) (int, error)
}
