package client

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/and161185/reflekt/internal/model"
)

type fakeLister struct {
	mu    sync.Mutex
	calls []ListParams
	total int
	// gate, when set for a query, blocks that call until closed
	gate map[string]chan struct{}
}

func (f *fakeLister) List(_ context.Context, p ListParams) (model.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, p)
	g := f.gate[p.Query]
	f.mu.Unlock()
	if g != nil {
		<-g
	}
	pages := (f.total + 19) / 20
	return model.Page{Items: []model.Entry{{Title: p.Query}}, Total: f.total, Page: p.Page, PageSize: 20, TotalPages: pages}, nil
}

func TestBrowser_FilterChangesResetPage(t *testing.T) {
	l := &fakeLister{total: 45}
	b := NewBrowser(l)
	ctx := context.Background()

	p, err := b.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Page)

	p, _ = b.Next(ctx)
	assert.Equal(t, 2, p.Page)

	p, _ = b.Search(ctx, "trip")
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, "trip", b.Params().Query)

	_, _ = b.Next(ctx)
	p, _ = b.SetDates(ctx, "2024-01-01", "2024-01-10")
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, ListParams{Query: "trip", From: "2024-01-01", To: "2024-01-10", Page: 1}, b.Params())

	_, _ = b.Clear(ctx)
	assert.Equal(t, ListParams{Page: 1}, b.Params())
}

func TestBrowser_NextPrevBounded(t *testing.T) {
	l := &fakeLister{total: 45}
	b := NewBrowser(l)
	ctx := context.Background()

	_, _ = b.Refresh(ctx)
	p, _ := b.Prev(ctx)
	assert.Equal(t, 1, p.Page)

	_, _ = b.Next(ctx)
	p, _ = b.Next(ctx)
	assert.Equal(t, 3, p.Page)
	n := len(l.calls)
	p, _ = b.Next(ctx)
	assert.Equal(t, 3, p.Page, "no page past the last")
	assert.Len(t, l.calls, n, "no request issued at the boundary")

	p, _ = b.Prev(ctx)
	assert.Equal(t, 2, p.Page)
}

func TestBrowser_LastRequestWins(t *testing.T) {
	gate := make(chan struct{})
	l := &fakeLister{total: 5, gate: map[string]chan struct{}{"slow": gate}}
	b := NewBrowser(l)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = b.Search(ctx, "slow")
	}()

	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return len(l.calls) == 1
	}, testTimeout, testTick)

	p, err := b.Search(ctx, "fast")
	require.NoError(t, err)
	assert.Equal(t, "fast", p.Items[0].Title)

	close(gate)
	<-done

	cur, _ := b.Page()
	assert.Equal(t, "fast", cur.Items[0].Title, "stale response must not overwrite the view")
}

func TestBrowser_ConcurrentSearchesAgreeWithParams(t *testing.T) {
	l := &fakeLister{total: 5}
	b := NewBrowser(l)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = b.Search(ctx, fmt.Sprintf("q%d", i))
		}()
	}
	wg.Wait()

	cur, err := b.Page()
	require.NoError(t, err)
	require.Len(t, cur.Items, 1)
	assert.Equal(t, b.Params().Query, cur.Items[0].Title, "shown page must belong to the current filter")
}
