// Package autosave keeps an open entry persisted while it is being edited.
// Edits are debounced; at most one save is in flight at any time, and a
// freshly created entry's id is adopted before the next save is sent.
package autosave

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/reflekt/internal/journal"
	"github.com/and161185/reflekt/internal/model"
)

// DefaultDelay is the quiet period after the last edit before a save.
const DefaultDelay = time.Second

// Status is the persistence state shown to the writer.
type Status int

const (
	Saved Status = iota
	Unsaved
	Saving
)

func (s Status) String() string {
	switch s {
	case Saved:
		return "saved"
	case Unsaved:
		return "unsaved"
	case Saving:
		return "saving"
	default:
		return "unknown"
	}
}

// Saver persists a create-or-update intent.
type Saver interface {
	Save(ctx context.Context, req model.SaveRequest) (model.SaveResult, error)
}

// Options tune a Controller. Zero values select defaults.
type Options struct {
	Delay  time.Duration
	Clock  Clock
	Logger *zap.Logger

	// OnCreated receives the id and location of a newly created entry.
	OnCreated func(id int64, location string)
	// OnStatus observes every status transition.
	OnStatus func(Status)
}

// Controller tracks one open entry.
type Controller struct {
	saver Saver
	clock Clock
	delay time.Duration
	log   *zap.Logger
	base  context.Context

	onCreated func(int64, string)
	onStatus  func(Status)

	mu       sync.Mutex
	id       int64
	title    string
	content  string
	hydrated bool
	status   Status
	timer    Timer
	timerGen uint64
	inFlight bool
	pending  bool
	done     chan struct{}
	rev      uint64
	savedRev uint64
	closed   bool
}

// New opens entry e for editing; e.ID == model.NewEntryID starts a new entry.
// Timer-driven saves run under ctx.
func New(ctx context.Context, saver Saver, e model.Entry, opts Options) *Controller {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Controller{
		saver:     saver,
		clock:     opts.Clock,
		delay:     opts.Delay,
		log:       opts.Logger,
		base:      ctx,
		onCreated: opts.OnCreated,
		onStatus:  opts.OnStatus,
		id:        e.ID,
		title:     e.Title,
		content:   e.Content,
		status:    Saved,
	}
}

// Status returns the current persistence state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// ID returns the entry id, model.NewEntryID until the first save succeeds.
func (c *Controller) ID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Snapshot returns the current title and content.
func (c *Controller) Snapshot() (title, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.title, c.content
}

// Change records an edit from the editor. The first change that merely
// repeats the loaded document is treated as the editor echoing it back.
func (c *Controller) Change(title, content string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if !c.hydrated {
		c.hydrated = true
		if title == c.title && content == c.content {
			c.mu.Unlock()
			return
		}
	}
	st := c.editLocked(title, content)
	c.mu.Unlock()
	c.notify(st)
}

// QuickAdd appends text as a new paragraph. Blank text is ignored.
func (c *Controller) QuickAdd(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.hydrated = true
	st := c.editLocked(c.title, journal.AppendParagraph(c.content, text))
	c.mu.Unlock()
	c.notify(st)
}

func (c *Controller) editLocked(title, content string) Status {
	c.title, c.content = title, content
	c.rev++
	c.stopTimerLocked()
	c.timerGen++
	gen := c.timerGen
	c.timer = c.clock.AfterFunc(c.delay, func() { c.fire(gen) })
	if c.inFlight {
		return Saving
	}
	c.status = Unsaved
	return c.status
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.timerGen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	if c.inFlight {
		c.pending = true
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	_ = c.saveLoop(c.base)
}

// Flush cancels the debounce and saves now if there are unsaved edits.
// It waits for a save already in flight.
func (c *Controller) Flush(ctx context.Context) error {
	for {
		c.mu.Lock()
		c.stopTimerLocked()
		c.timerGen++
		if c.inFlight {
			c.pending = c.pending || c.rev != c.savedRev
			done := c.done
			c.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		dirty := c.rev != c.savedRev
		c.mu.Unlock()
		if !dirty {
			return nil
		}
		return c.saveLoop(ctx)
	}
}

// Close stops the debounce timer; pending edits are not saved.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopTimerLocked()
}

// saveLoop sends saves until no deferred save remains and returns the last error.
func (c *Controller) saveLoop(ctx context.Context) error {
	var lastErr error
	for {
		c.mu.Lock()
		dirty := c.rev != c.savedRev
		if c.inFlight {
			c.pending = c.pending || dirty
			c.mu.Unlock()
			return lastErr
		}
		if !dirty {
			c.mu.Unlock()
			return lastErr
		}
		c.inFlight = true
		c.pending = false
		c.done = make(chan struct{})
		c.status = Saving
		req := model.SaveRequest{ID: c.id, Title: c.title, Content: c.content}
		rev := c.rev
		c.mu.Unlock()
		c.notify(Saving)

		res, err := c.saver.Save(ctx, req)

		c.mu.Lock()
		var created bool
		if err != nil {
			c.status = Unsaved
		} else {
			if model.IsNew(c.id) && res.Entry.ID != model.NewEntryID {
				c.id = res.Entry.ID
				created = true
			}
			c.savedRev = rev
			if c.rev == c.savedRev {
				c.status = Saved
			} else {
				c.status = Unsaved
			}
		}
		st, id := c.status, c.id
		again := c.pending && !c.closed
		c.pending = false
		c.inFlight = false
		close(c.done)
		c.mu.Unlock()

		lastErr = err
		if err != nil {
			c.log.Warn("autosave failed", zap.Int64("entry_id", req.ID), zap.Error(err))
		}
		if created && c.onCreated != nil {
			c.onCreated(id, journal.EntryPath(id))
		}
		c.notify(st)
		if !again {
			return lastErr
		}
	}
}

func (c *Controller) notify(s Status) {
	if c.onStatus != nil {
		c.onStatus(s)
	}
}
