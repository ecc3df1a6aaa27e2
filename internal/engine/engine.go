// Package engine wires the document, tag cache, annotator, rescan coordinator and
// hover machine into one process-wide context with explicit start and teardown.
package engine

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/net/html"

	"github.com/jonathan/addrlens/internal/dom"
	"github.com/jonathan/addrlens/internal/eventloop"
	"github.com/jonathan/addrlens/internal/hover"
	"github.com/jonathan/addrlens/internal/logger"
	"github.com/jonathan/addrlens/internal/mutation"
	"github.com/jonathan/addrlens/internal/tags"
	"github.com/jonathan/addrlens/internal/types"
)

var (
	// ErrNotStarted is returned by operations that need a started engine.
	ErrNotStarted = errors.New("engine not started")
	// ErrStopped is returned by Start once the engine has been stopped. Build a new
	// engine instead.
	ErrStopped = errors.New("engine stopped")
)

// Options configures an Engine.
type Options struct {
	Mutation mutation.Options
	Hover    hover.Options
	// Renderer draws hover panels. Defaults to a dom.PanelRenderer on the document.
	Renderer hover.Renderer
	// OnAnnotate is called for every inserted address element.
	OnAnnotate func(dom.Annotation)
	Logger     *logger.Logger
}

// Stats is a point-in-time summary of engine activity.
type Stats struct {
	KnownTags int            `json:"known_tags"`
	Visited   int            `json:"visited"`
	Mutation  mutation.Stats `json:"mutation"`
	Hover     string         `json:"hover"`
}

// Engine is the single owner of the tag cache and panel session for one document.
//
// Start, Reload and Stop may be called from any goroutine. Every other method
// touches the document and must run on the scheduler's loop, for example from a
// function passed to Mutate.
type Engine struct {
	doc       *dom.Document
	store     tags.Store
	sched     eventloop.Scheduler
	cache     *tags.Cache
	annotator *dom.Annotator
	coord     *mutation.Coordinator
	hover     *hover.Machine
	log       *logger.Logger

	mu        sync.Mutex
	started   bool
	stopped   bool
	cancel    context.CancelFunc
	unobserve func()
}

// New builds an engine for doc. Nothing runs until Start.
func New(doc *dom.Document, store tags.Store, sched eventloop.Scheduler, opts Options) *Engine {
	log := logger.OrNop(opts.Logger)
	cache := tags.NewCache()

	annotator := dom.NewAnnotator(cache, log)
	annotator.OnAnnotate = opts.OnAnnotate

	renderer := opts.Renderer
	if renderer == nil {
		renderer = dom.NewPanelRenderer(doc)
	}

	e := &Engine{
		doc:       doc,
		store:     store,
		sched:     sched,
		cache:     cache,
		annotator: annotator,
		log:       log,
	}
	e.coord = mutation.New(sched,
		func() { e.annotator.Scan(e.doc) },
		func() { e.annotator.Invalidate(e.doc) },
		opts.Mutation, log)
	e.hover = hover.NewMachine(sched, renderer, cache, store, opts.Hover, log)
	return e
}

// Start loads the tag cache, schedules the first full scan and subscribes to
// document insertions and store changes. A store failure is logged and the engine
// runs with an empty cache; the returned error is only for callers that care.
// An engine cannot be restarted after Stop.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return ErrStopped
	}
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.mu.Unlock()

	loadErr := e.load(ctx)
	if loadErr != nil {
		e.log.Warn().Err(loadErr).Msg("tag store unavailable, starting with empty cache")
	}

	e.sched.Post(func() {
		e.unobserve = e.doc.Observe(func(inserted []*html.Node) {
			e.coord.Observe(len(inserted))
		})
		e.coord.ScanNow()
	})

	if n, ok := e.store.(tags.Notifier); ok {
		changes, err := n.Changes(ctx)
		if err != nil {
			e.log.Warn().Err(err).Msg("tag change notifications unavailable")
		} else {
			go e.watch(ctx, changes)
		}
	}
	return loadErr
}

// Reload fetches every resolved tag and, on success, replaces the cache, closes any
// open panel and re-annotates the document. On failure the previous cache stays.
func (e *Engine) Reload(ctx context.Context) error {
	resolved, err := e.store.AllResolved(ctx)
	if err != nil {
		err = &tags.StoreError{Op: "load resolved tags", Cause: err}
		e.log.Warn().Err(err).Int("cached", e.cache.Len()).Msg("keeping previous tag cache")
		return err
	}
	e.sched.Post(func() {
		e.cache.Replace(resolved)
		e.hover.Close()
		e.coord.TagsChanged()
		e.log.Info().Int("tags", len(resolved)).Msg("tag cache reloaded")
	})
	return nil
}

// Stop cancels subscriptions and schedules teardown of timers and the panel.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	e.stopped = true
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.sched.Post(func() {
		if e.unobserve != nil {
			e.unobserve()
			e.unobserve = nil
		}
		e.coord.Stop()
		e.hover.Stop()
	})
}

// Mutate runs fn on the loop. Host-page insertions made through the document
// inside fn schedule a debounced rescan.
func (e *Engine) Mutate(fn func(doc *dom.Document)) {
	e.sched.Post(func() { fn(e.doc) })
}

// Document returns the live document. Loop only.
func (e *Engine) Document() *dom.Document { return e.doc }

// Cache returns the tag cache.
func (e *Engine) Cache() *tags.Cache { return e.cache }

// Hover returns the panel state machine. Loop only.
func (e *Engine) Hover() *hover.Machine { return e.hover }

// ScanNow annotates new content immediately. Loop only.
func (e *Engine) ScanNow() { e.coord.ScanNow() }

// NewAddressElement builds an interactive address element for adapters that render
// their own markup. The element carries the current tag, if any.
func (e *Engine) NewAddressElement(addr types.Address, display string) *html.Node {
	var tag *types.ResolvedTag
	if t, ok := e.cache.Lookup(addr); ok {
		tag = &t
	}
	return dom.NewAddressElement(addr, display, tag)
}

// PointerEnter reports the pointer entering n with the given bounding box. Address
// elements start the show delay; the panel and bridge keep a visible panel open.
func (e *Engine) PointerEnter(n *html.Node, rect hover.Rect) {
	if addr, ok := dom.AddressOf(n); ok {
		e.hover.Hover(addr, rect)
		return
	}
	if dom.InPanel(n) {
		e.hover.EnterPanel()
	}
}

// PointerLeave reports the pointer leaving an address element, panel or bridge.
func (e *Engine) PointerLeave(n *html.Node) {
	if dom.IsInjectedUI(n) {
		e.hover.Leave()
	}
}

// SetViewport reports the visible area used to place hover panels. Loop only.
func (e *Engine) SetViewport(width, height float64) {
	e.hover.SetViewport(hover.Size{Width: width, Height: height})
}

// Click reports a document click on n.
func (e *Engine) Click(n *html.Node) {
	e.hover.Click(dom.InPanel(n))
}

// Stats summarizes the engine. Loop only.
func (e *Engine) Stats() Stats {
	return Stats{
		KnownTags: e.cache.Len(),
		Visited:   e.annotator.Visited(),
		Mutation:  e.coord.Stats(),
		Hover:     e.hover.State().String(),
	}
}

// Snapshot renders the document on the loop and waits for the result.
func (e *Engine) Snapshot(ctx context.Context) (string, error) {
	e.mu.Lock()
	started := e.cancel != nil
	e.mu.Unlock()
	if !started {
		return "", ErrNotStarted
	}

	type result struct {
		html string
		err  error
	}
	out := make(chan result, 1)
	e.sched.Post(func() {
		s, err := e.doc.HTML()
		out <- result{s, err}
	})
	select {
	case r := <-out:
		return r.html, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (e *Engine) load(ctx context.Context) error {
	resolved, err := e.store.AllResolved(ctx)
	if err != nil {
		return &tags.StoreError{Op: "load resolved tags", Cause: err}
	}
	e.cache.Replace(resolved)
	e.log.Debug().Int("tags", len(resolved)).Msg("tag cache loaded")
	return nil
}

func (e *Engine) watch(ctx context.Context, changes <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			// errors are logged by Reload and the old cache stays in place
			_ = e.Reload(ctx)
		}
	}
}
