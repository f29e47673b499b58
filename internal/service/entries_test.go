package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/and161185/reflekt/internal/errs"
	"github.com/and161185/reflekt/internal/model"
	"github.com/and161185/reflekt/internal/repository"
)

type fakeEntryRepo struct {
	mu sync.Mutex

	createIn  model.SaveRequest
	createOut *model.Entry
	createErr error
	creates   int

	updateIn  model.SaveRequest
	updateOut *model.Entry
	updateErr error
	updates   int

	delInID int64
	delErr  error

	getInID int64
	getOut  *model.Entry
	getErr  error

	dayStart, dayEnd time.Time
	dayOut           *model.Entry
	dayErr           error

	listFilter        model.Filter
	listLimit, listOf int
	listOut           []model.Entry
	listErr           error

	countOut int
	countErr error

	recentLimit int
	recentOut   []model.Entry

	importSource string
	importIn     []model.ImportedEntry
	importErr    error
}

var _ repository.EntryRepository = (*fakeEntryRepo)(nil)

func (f *fakeEntryRepo) Create(_ context.Context, userID uuid.UUID, title, content string, now time.Time) (*model.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.createIn = model.SaveRequest{Title: title, Content: content}
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createOut != nil {
		return f.createOut, nil
	}
	return &model.Entry{ID: 1, UserID: userID, Title: title, Content: content, CreatedAt: now, UpdatedAt: now}, nil
}
func (f *fakeEntryRepo) Update(_ context.Context, userID uuid.UUID, id int64, title, content string, now time.Time) (*model.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	f.updateIn = model.SaveRequest{ID: id, Title: title, Content: content}
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	if f.updateOut != nil {
		return f.updateOut, nil
	}
	return &model.Entry{ID: id, UserID: userID, Title: title, Content: content, UpdatedAt: now}, nil
}
func (f *fakeEntryRepo) Delete(_ context.Context, _ uuid.UUID, id int64) error {
	f.delInID = id
	return f.delErr
}
func (f *fakeEntryRepo) GetByID(_ context.Context, _ uuid.UUID, id int64) (*model.Entry, error) {
	f.getInID = id
	return f.getOut, f.getErr
}
func (f *fakeEntryRepo) GetForDay(_ context.Context, _ uuid.UUID, start, end time.Time) (*model.Entry, error) {
	f.dayStart, f.dayEnd = start, end
	return f.dayOut, f.dayErr
}
func (f *fakeEntryRepo) List(_ context.Context, _ uuid.UUID, fl model.Filter, limit, offset int) ([]model.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listFilter, f.listLimit, f.listOf = fl, limit, offset
	return f.listOut, f.listErr
}
func (f *fakeEntryRepo) Count(context.Context, uuid.UUID, model.Filter) (int, error) {
	return f.countOut, f.countErr
}
func (f *fakeEntryRepo) Recent(_ context.Context, _ uuid.UUID, limit int) ([]model.Entry, error) {
	f.recentLimit = limit
	return f.recentOut, nil
}
func (f *fakeEntryRepo) Import(_ context.Context, _ uuid.UUID, source string, entries []model.ImportedEntry, _ time.Time) (int, error) {
	f.importSource, f.importIn = source, append([]model.ImportedEntry(nil), entries...)
	if f.importErr != nil {
		return 0, f.importErr
	}
	return len(entries), nil
}

func TestNewEntryService_Defaults(t *testing.T) {
	s := NewEntryService(&fakeEntryRepo{}, 0, 0)
	assert.Equal(t, 50, s.sidebarLimit)
	assert.Equal(t, 1000, s.maxImport)
}

func TestEntryService_Save_Create(t *testing.T) {
	t.Parallel()
	repo := &fakeEntryRepo{createOut: &model.Entry{ID: 42, Title: "Untitled", Content: "<p>hello</p>"}}
	s := NewEntryService(repo, 0, 0)
	user := uuid.Must(uuid.NewV4())

	res, err := s.Save(context.Background(), user, model.SaveRequest{ID: model.NewEntryID, Title: "  ", Content: "<p>hello</p>"})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, int64(42), res.Entry.ID)
	assert.Equal(t, "Untitled", repo.createIn.Title)
	assert.Equal(t, []string{"/", "/entries"}, res.Invalidate)
	assert.Zero(t, repo.updates)
}

func TestEntryService_Save_Update(t *testing.T) {
	t.Parallel()
	repo := &fakeEntryRepo{}
	s := NewEntryService(repo, 0, 0)
	user := uuid.Must(uuid.NewV4())

	res, err := s.Save(context.Background(), user, model.SaveRequest{ID: 7, Title: "", Content: "<p>x</p>"})
	require.NoError(t, err)
	assert.False(t, res.Created)
	// an update keeps a blank title as sent
	assert.Equal(t, "", repo.updateIn.Title)
	assert.Equal(t, []string{"/", "/entries", "/entry/7"}, res.Invalidate)
	assert.Zero(t, repo.creates)

	repo.updateErr = errs.ErrNotFound
	_, err = s.Save(context.Background(), user, model.SaveRequest{ID: 8, Content: "x"})
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestEntryService_Save_Validation(t *testing.T) {
	t.Parallel()
	repo := &fakeEntryRepo{}
	s := NewEntryService(repo, 0, 0)
	user := uuid.Must(uuid.NewV4())
	ctx := context.Background()

	_, err := s.Save(ctx, user, model.SaveRequest{Title: " ", Content: "<p> </p><br>"})
	assert.ErrorIs(t, err, errs.ErrEmptyEntry)

	_, err = s.Save(ctx, uuid.Nil, model.SaveRequest{Content: "text"})
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = s.Save(ctx, user, model.SaveRequest{ID: -3, Content: "text"})
	assert.Error(t, err)

	assert.Zero(t, repo.creates+repo.updates, "no persistence on rejected saves")

	repo.createErr = errors.New("db down")
	_, err = s.Save(ctx, user, model.SaveRequest{Content: "text"})
	assert.EqualError(t, err, "db down")
}

func TestEntryService_DeleteGet(t *testing.T) {
	t.Parallel()
	repo := &fakeEntryRepo{getOut: &model.Entry{ID: 5}}
	s := NewEntryService(repo, 0, 0)
	user := uuid.Must(uuid.NewV4())
	ctx := context.Background()

	views, err := s.Delete(ctx, user, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), repo.delInID)
	assert.Contains(t, views, "/entry/5")

	repo.delErr = errs.ErrNotFound
	_, err = s.Delete(ctx, user, 6)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = s.Delete(ctx, user, 0)
	assert.Error(t, err)

	e, err := s.Get(ctx, user, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), e.ID)

	_, err = s.Get(ctx, user, 0)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = s.Get(ctx, uuid.Nil, 5)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestEntryService_Today_DayWindow(t *testing.T) {
	t.Parallel()
	repo := &fakeEntryRepo{dayErr: errs.ErrNotFound}
	s := NewEntryService(repo, 0, 0)
	user := uuid.Must(uuid.NewV4())

	loc := time.FixedZone("UTC+3", 3*3600)
	now := time.Date(2024, 3, 10, 0, 30, 0, 0, loc)
	_, err := s.Today(context.Background(), user, now)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, loc), repo.dayStart)
	assert.Equal(t, time.Date(2024, 3, 10, 23, 59, 59, 999999999, loc), repo.dayEnd)

	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	repo.dayOut, repo.dayErr = &model.Entry{ID: 3}, nil
	e, err := s.Today(context.Background(), user, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), e.ID)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), repo.dayStart)
}

func TestEntryService_Recent(t *testing.T) {
	t.Parallel()
	repo := &fakeEntryRepo{recentOut: []model.Entry{{ID: 2}, {ID: 1}}}
	s := NewEntryService(repo, 10, 0)

	out, err := s.Recent(context.Background(), uuid.Must(uuid.NewV4()))
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 10, repo.recentLimit)
}

func TestEntryService_Import(t *testing.T) {
	t.Parallel()
	repo := &fakeEntryRepo{}
	s := NewEntryService(repo, 0, 2)
	user := uuid.Must(uuid.NewV4())
	ctx := context.Background()
	at := time.Date(2020, 1, 1, 9, 0, 0, 0, time.UTC)

	n, err := s.Import(ctx, user, "dayone", nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.Import(ctx, user, " ", []model.ImportedEntry{{Content: "x", CreatedAt: at}})
	assert.Error(t, err)

	_, err = s.Import(ctx, user, "dayone", make([]model.ImportedEntry, 3))
	assert.ErrorContains(t, err, "batch too large")

	_, err = s.Import(ctx, user, "dayone", []model.ImportedEntry{{Content: "x", CreatedAt: at}, {Content: " "}})
	assert.ErrorIs(t, err, errs.ErrEmptyEntry)

	_, err = s.Import(ctx, user, "dayone", []model.ImportedEntry{{Content: "x"}})
	assert.ErrorContains(t, err, "missing created_at")

	n, err = s.Import(ctx, user, " dayone ", []model.ImportedEntry{{Content: "x", CreatedAt: at}, {Title: "T", CreatedAt: at}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "dayone", repo.importSource)
	assert.Equal(t, "Untitled", repo.importIn[0].Title)
	assert.Equal(t, "T", repo.importIn[1].Title)
}

func TestArchiveService_List(t *testing.T) {
	t.Parallel()
	repo := &fakeEntryRepo{listOut: []model.Entry{{ID: 9}}, countOut: 41}
	s := NewArchiveService(repo, 0)
	user := uuid.Must(uuid.NewV4())
	f := model.Filter{Query: "trip"}

	p, err := s.List(context.Background(), user, model.ArchiveQuery{Filter: f, Page: 3})
	require.NoError(t, err)
	assert.Equal(t, model.Page{Items: []model.Entry{{ID: 9}}, Total: 41, Page: 3, PageSize: 20, TotalPages: 3}, p)
	assert.Equal(t, 20, repo.listLimit)
	assert.Equal(t, 40, repo.listOf)
	assert.Equal(t, f, repo.listFilter)
	assert.True(t, p.HasPrev())
	assert.False(t, p.HasNext())

	p, err = s.List(context.Background(), user, model.ArchiveQuery{Page: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 0, repo.listOf)
}

func TestArchiveService_List_Errors(t *testing.T) {
	t.Parallel()
	repo := &fakeEntryRepo{countErr: errors.New("count failed")}
	s := NewArchiveService(repo, 5)

	_, err := s.List(context.Background(), uuid.Must(uuid.NewV4()), model.ArchiveQuery{Page: 1})
	assert.EqualError(t, err, "count failed")

	_, err = s.List(context.Background(), uuid.Nil, model.ArchiveQuery{})
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}
