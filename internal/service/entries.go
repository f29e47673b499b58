package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/reflekt/internal/errs"
	"github.com/and161185/reflekt/internal/journal"
	"github.com/and161185/reflekt/internal/model"
	"github.com/and161185/reflekt/internal/repository"
)

// EntryService defines operations over a user's diary entries.
type EntryService interface {
	// Save creates the entry when req.ID is the "new" sentinel, otherwise updates it in place.
	Save(ctx context.Context, userID uuid.UUID, req model.SaveRequest) (model.SaveResult, error)
	// Delete removes an entry and returns the views to invalidate.
	Delete(ctx context.Context, userID uuid.UUID, id int64) ([]string, error)
	// Get returns a single entry by id.
	Get(ctx context.Context, userID uuid.UUID, id int64) (*model.Entry, error)
	// Today returns the user's entry for the calendar day of now, or ErrNotFound.
	Today(ctx context.Context, userID uuid.UUID, now time.Time) (*model.Entry, error)
	// Recent returns the newest entries for the sidebar.
	Recent(ctx context.Context, userID uuid.UUID) ([]model.Entry, error)
	// Import stores legacy entries tagged with their source.
	Import(ctx context.Context, userID uuid.UUID, source string, entries []model.ImportedEntry) (int, error)
}

// EntryServiceImpl implements EntryService over an EntryRepository.
type EntryServiceImpl struct {
	repo         repository.EntryRepository
	sidebarLimit int
	maxImport    int
	now          func() time.Time
}

const maxSourceLen = 50

// NewEntryService constructs EntryService with sidebar and import limits.
func NewEntryService(repo repository.EntryRepository, sidebarLimit, maxImport int) *EntryServiceImpl {
	if sidebarLimit <= 0 {
		sidebarLimit = 50
	}
	if maxImport <= 0 {
		maxImport = 1000
	}
	return &EntryServiceImpl{repo: repo, sidebarLimit: sidebarLimit, maxImport: maxImport, now: time.Now}
}

// Save validates the request and creates or updates the entry.
// A blank title is stored as "Untitled" on creation only.
func (s *EntryServiceImpl) Save(ctx context.Context, userID uuid.UUID, req model.SaveRequest) (model.SaveResult, error) {
	if journal.IsBlank(req.Title, req.Content) {
		return model.SaveResult{}, errs.ErrEmptyEntry
	}
	if userID == uuid.Nil {
		return model.SaveResult{}, errs.ErrUnauthorized
	}
	if req.ID < 0 {
		return model.SaveResult{}, errors.New("validation: negative id")
	}

	now := s.now()
	if model.IsNew(req.ID) {
		e, err := s.repo.Create(ctx, userID, journal.TitleOrDefault(req.Title), req.Content, now)
		if err != nil {
			return model.SaveResult{}, err
		}
		return model.SaveResult{Entry: *e, Created: true, Invalidate: journal.InvalidatedViews(e.ID, false)}, nil
	}

	e, err := s.repo.Update(ctx, userID, req.ID, req.Title, req.Content, now)
	if err != nil {
		return model.SaveResult{}, err
	}
	return model.SaveResult{Entry: *e, Invalidate: journal.InvalidatedViews(e.ID, true)}, nil
}

// Delete removes an entry owned by userID.
func (s *EntryServiceImpl) Delete(ctx context.Context, userID uuid.UUID, id int64) ([]string, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrUnauthorized
	}
	if id <= 0 {
		return nil, errors.New("validation: bad id")
	}
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return nil, err
	}
	return journal.InvalidatedViews(id, true), nil
}

// Get fetches a single entry by id.
func (s *EntryServiceImpl) Get(ctx context.Context, userID uuid.UUID, id int64) (*model.Entry, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrUnauthorized
	}
	if id <= 0 {
		return nil, errs.ErrNotFound
	}
	return s.repo.GetByID(ctx, userID, id)
}

// Today looks up the entry created on now's calendar day (in now's location).
// Several entries on one day resolve to the most recently created.
func (s *EntryServiceImpl) Today(ctx context.Context, userID uuid.UUID, now time.Time) (*model.Entry, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrUnauthorized
	}
	if now.IsZero() {
		now = s.now()
	}
	return s.repo.GetForDay(ctx, userID, journal.StartOfDay(now), journal.EndOfDay(now))
}

// Recent returns up to sidebarLimit newest entries.
func (s *EntryServiceImpl) Recent(ctx context.Context, userID uuid.UUID) ([]model.Entry, error) {
	if userID == uuid.Nil {
		return nil, errs.ErrUnauthorized
	}
	return s.repo.Recent(ctx, userID, s.sidebarLimit)
}

// Import validates and stores a batch of legacy entries.
// Validation rules:
// - source is non-blank and at most 50 characters
// - batch size <= maxImport
// - each entry is non-blank and has a creation time
func (s *EntryServiceImpl) Import(ctx context.Context, userID uuid.UUID, source string, entries []model.ImportedEntry) (int, error) {
	if userID == uuid.Nil {
		return 0, errs.ErrUnauthorized
	}
	source = strings.TrimSpace(source)
	if source == "" || len(source) > maxSourceLen {
		return 0, errors.New("validation: bad import source")
	}
	if len(entries) == 0 {
		return 0, nil
	}
	if len(entries) > s.maxImport {
		return 0, fmt.Errorf("validation: batch too large (%d > %d)", len(entries), s.maxImport)
	}
	batch := make([]model.ImportedEntry, len(entries))
	for i, e := range entries {
		if journal.IsBlank(e.Title, e.Content) {
			return 0, fmt.Errorf("validation: entry[%d]: %w", i, errs.ErrEmptyEntry)
		}
		if e.CreatedAt.IsZero() {
			return 0, fmt.Errorf("validation: entry[%d] missing created_at", i)
		}
		e.Title = journal.TitleOrDefault(e.Title)
		batch[i] = e
	}
	return s.repo.Import(ctx, userID, source, batch, s.now())
}
