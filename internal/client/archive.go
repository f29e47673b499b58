package client

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/and161185/reflekt/internal/model"
)

// Lister fetches archive pages.
type Lister interface {
	List(ctx context.Context, p ListParams) (model.Page, error)
}

// Browser holds the archive view state: filters, current page and the last
// page received. Responses to superseded requests are dropped.
type Browser struct {
	lister Lister
	seq    atomic.Uint64

	mu     sync.Mutex
	params ListParams
	page   model.Page
	err    error
}

// NewBrowser starts on page 1 with no filters.
func NewBrowser(l Lister) *Browser {
	return &Browser{lister: l, params: ListParams{Page: 1}}
}

// Params returns the current filter and page.
func (b *Browser) Params() ListParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.params
}

// Page returns the last applied result and its error.
func (b *Browser) Page() (model.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.page, b.err
}

// Search sets the title query and returns to page 1.
func (b *Browser) Search(ctx context.Context, q string) (model.Page, error) {
	return b.update(ctx, func(p *ListParams) { p.Query, p.Page = q, 1 })
}

// SetDates sets the date range and returns to page 1.
func (b *Browser) SetDates(ctx context.Context, from, to string) (model.Page, error) {
	return b.update(ctx, func(p *ListParams) { p.From, p.To, p.Page = from, to, 1 })
}

// Clear drops all filters and returns to page 1.
func (b *Browser) Clear(ctx context.Context) (model.Page, error) {
	return b.update(ctx, func(p *ListParams) { *p = ListParams{Page: 1} })
}

// Next moves forward one page unless already on the last one.
func (b *Browser) Next(ctx context.Context) (model.Page, error) {
	b.mu.Lock()
	if !b.page.HasNext() {
		p, err := b.page, b.err
		b.mu.Unlock()
		return p, err
	}
	b.mu.Unlock()
	return b.update(ctx, func(p *ListParams) { p.Page++ })
}

// Prev moves back one page unless already on the first one.
func (b *Browser) Prev(ctx context.Context) (model.Page, error) {
	b.mu.Lock()
	if b.params.Page <= 1 {
		p, err := b.page, b.err
		b.mu.Unlock()
		return p, err
	}
	b.mu.Unlock()
	return b.update(ctx, func(p *ListParams) { p.Page-- })
}

// Refresh reloads the current page.
func (b *Browser) Refresh(ctx context.Context) (model.Page, error) {
	return b.update(ctx, func(*ListParams) {})
}

func (b *Browser) update(ctx context.Context, mutate func(*ListParams)) (model.Page, error) {
	b.mu.Lock()
	mutate(&b.params)
	params := b.params
	// sequence order must match the order params were written
	n := b.seq.Add(1)
	b.mu.Unlock()

	page, err := b.lister.List(ctx, params)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.seq.Load() != n {
		// a newer request owns the view
		return b.page, b.err
	}
	b.page, b.err = page, err
	return page, err
}
