package service

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/reflekt/internal/errs"
	"github.com/and161185/reflekt/internal/journal"
	"github.com/and161185/reflekt/internal/model"
	"github.com/and161185/reflekt/internal/repository"
)

// ArchiveService serves paginated, filtered archive listings.
type ArchiveService interface {
	// List returns one page of entries plus totals for pagination.
	List(ctx context.Context, userID uuid.UUID, q model.ArchiveQuery) (model.Page, error)
}

// ArchiveServiceImpl implements ArchiveService over an EntryRepository.
type ArchiveServiceImpl struct {
	repo     repository.EntryRepository
	pageSize int
}

// NewArchiveService constructs ArchiveService; pageSize defaults to 20.
func NewArchiveService(repo repository.EntryRepository, pageSize int) *ArchiveServiceImpl {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &ArchiveServiceImpl{repo: repo, pageSize: pageSize}
}

// List runs the page slice and the total count under the same predicate.
// Pages past the end are not rejected; they simply come back empty.
func (s *ArchiveServiceImpl) List(ctx context.Context, userID uuid.UUID, q model.ArchiveQuery) (model.Page, error) {
	if userID == uuid.Nil {
		return model.Page{}, errs.ErrUnauthorized
	}
	page := journal.NormalizePage(q.Page)

	var (
		items []model.Entry
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = s.repo.List(gctx, userID, q.Filter, s.pageSize, journal.Offset(page, s.pageSize))
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.repo.Count(gctx, userID, q.Filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Page{}, err
	}

	return model.Page{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   s.pageSize,
		TotalPages: journal.TotalPages(total, s.pageSize),
	}, nil
}
