// Package hover implements the hover panel state machine. All methods must be
// called from the event loop that owns the scheduler.
package hover

import (
	"context"
	"time"

	"github.com/jonathan/addrlens/internal/eventloop"
	"github.com/jonathan/addrlens/internal/logger"
	"github.com/jonathan/addrlens/internal/types"
)

// State is the panel lifecycle state.
type State int

// Panel states.
const (
	Idle State = iota
	PendingShow
	Visible
	PendingHide
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PendingShow:
		return "pending_show"
	case Visible:
		return "visible"
	case PendingHide:
		return "pending_hide"
	default:
		return "unknown"
	}
}

// Default timings.
const (
	DefaultShowDelay     = 300 * time.Millisecond
	DefaultHideDelay     = 500 * time.Millisecond
	DefaultRecordTimeout = 5 * time.Second
)

// DefaultPanelSize is used when no panel size is configured.
var DefaultPanelSize = Size{Width: 320, Height: 180}

// Handle identifies a rendered panel and bridge pair.
type Handle string

// PanelView is everything a renderer needs to draw a panel.
type PanelView struct {
	Address   types.Address
	Tag       *types.ResolvedTag
	Records   []types.TagRecord
	Placement Placement
}

// Renderer draws and removes panels.
type Renderer interface {
	Render(view PanelView) (Handle, error)
	Update(h Handle, view PanelView)
	Destroy(h Handle)
}

// TagLookup resolves the headline tag for the panel title.
type TagLookup interface {
	Lookup(addr types.Address) (types.ResolvedTag, bool)
}

// RecordSource loads the full record list for the detail section.
type RecordSource interface {
	Records(ctx context.Context, addr types.Address) ([]types.TagRecord, error)
}

// Options tunes the machine.
type Options struct {
	ShowDelay     time.Duration
	HideDelay     time.Duration
	RecordTimeout time.Duration
	PanelSize     Size
	Viewport      Size
}

func (o Options) withDefaults() Options {
	if o.ShowDelay <= 0 {
		o.ShowDelay = DefaultShowDelay
	}
	if o.HideDelay <= 0 {
		o.HideDelay = DefaultHideDelay
	}
	if o.RecordTimeout <= 0 {
		o.RecordTimeout = DefaultRecordTimeout
	}
	if o.PanelSize == (Size{}) {
		o.PanelSize = DefaultPanelSize
	}
	return o
}

// Session is the single process-wide panel session.
// Pending is set only between a hover and the panel being rendered.
type Session struct {
	Address types.Address
	Pending types.Address

	anchor    Rect
	showTimer eventloop.Timer
	hideTimer eventloop.Timer
	handle    Handle
	view      PanelView
	gen       uint64
}

// Machine owns the session and moves it between states on named events.
type Machine struct {
	sched    eventloop.Scheduler
	renderer Renderer
	tags     TagLookup
	records  RecordSource
	opts     Options
	log      *logger.Logger

	state   State
	session Session

	ctx    context.Context
	cancel context.CancelFunc
}

// NewMachine creates an idle machine. records may be nil.
func NewMachine(sched eventloop.Scheduler, renderer Renderer, tags TagLookup, records RecordSource, opts Options, log *logger.Logger) *Machine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Machine{
		sched:    sched,
		renderer: renderer,
		tags:     tags,
		records:  records,
		opts:     opts.withDefaults(),
		log:      logger.OrNop(log),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Session returns the visible and pending addresses.
func (m *Machine) Session() (shown, pending types.Address) {
	return m.session.Address, m.session.Pending
}

// SetViewport updates the viewport used for placement.
func (m *Machine) SetViewport(v Size) { m.opts.Viewport = v }

// Hover reports the pointer entering the trigger element of addr.
func (m *Machine) Hover(addr types.Address, anchor Rect) {
	if m.session.handle != "" && addr == m.session.Address {
		m.stopShow()
		m.session.Pending = ""
		m.stopHide()
		m.session.anchor = anchor
		m.state = Visible
		return
	}
	if m.state == PendingShow && addr == m.session.Pending {
		m.session.anchor = anchor
		return
	}

	m.stopShow()
	m.session.Pending = addr
	m.session.anchor = anchor
	m.session.showTimer = m.sched.AfterFunc(m.opts.ShowDelay, func() { m.showFired(addr) })
	m.state = PendingShow
}

// Leave reports the pointer leaving a trigger, the panel or the bridge.
func (m *Machine) Leave() {
	switch m.state {
	case PendingShow:
		m.stopShow()
		m.session.Pending = ""
		if m.session.handle != "" {
			m.startHide()
			m.state = PendingHide
			return
		}
		m.state = Idle
	case Visible:
		m.startHide()
		m.state = PendingHide
	}
}

// EnterPanel reports the pointer entering the panel or its bridge.
func (m *Machine) EnterPanel() {
	if m.session.handle == "" {
		return
	}
	m.stopShow()
	m.session.Pending = ""
	m.stopHide()
	m.state = Visible
}

// Click reports a document click. Clicks inside the panel or bridge are ignored;
// any other click closes the panel immediately.
func (m *Machine) Click(inside bool) {
	if inside {
		return
	}
	m.Close()
}

// Close cancels all timers and removes the panel.
func (m *Machine) Close() {
	m.stopShow()
	m.stopHide()
	m.destroy()
	m.session = Session{gen: m.session.gen + 1}
	m.state = Idle
}

// Stop closes the session and cancels outstanding record loads.
func (m *Machine) Stop() {
	m.Close()
	m.cancel()
}

func (m *Machine) showFired(addr types.Address) {
	if m.state != PendingShow || m.session.Pending != addr {
		m.log.Debug().Str("address", addr.String()).Msg("dropping stale show timer")
		return
	}
	m.session.showTimer = nil
	m.stopHide()
	m.destroy()

	view := PanelView{
		Address:   addr,
		Placement: Place(m.session.anchor, m.opts.PanelSize, m.opts.Viewport),
	}
	if tag, ok := m.tags.Lookup(addr); ok {
		view.Tag = &tag
	}

	h, err := m.renderer.Render(view)
	if err != nil {
		m.log.Warn().Err(err).Str("address", addr.String()).Msg("failed to render panel")
		m.session.Pending = ""
		m.session.Address = ""
		m.state = Idle
		return
	}

	m.session.gen++
	m.session.handle = h
	m.session.view = view
	m.session.Address = addr
	m.session.Pending = ""
	m.state = Visible
	m.loadRecords(m.session.gen, addr)
}

func (m *Machine) loadRecords(gen uint64, addr types.Address) {
	if m.records == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(m.ctx, m.opts.RecordTimeout)
		defer cancel()
		records, err := m.records.Records(ctx, addr)
		m.sched.Post(func() {
			if m.session.gen != gen || m.session.handle == "" {
				return
			}
			if err != nil {
				m.log.Warn().Err(err).Str("address", addr.String()).Msg("failed to load tag records")
				return
			}
			m.session.view.Records = records
			m.renderer.Update(m.session.handle, m.session.view)
		})
	}()
}

func (m *Machine) startHide() {
	m.stopHide()
	gen := m.session.gen
	m.session.hideTimer = m.sched.AfterFunc(m.opts.HideDelay, func() { m.hideFired(gen) })
}

func (m *Machine) hideFired(gen uint64) {
	if m.session.gen != gen {
		return
	}
	m.session.hideTimer = nil
	m.destroy()
	m.session.Address = ""
	m.session.gen++
	if m.state == PendingHide {
		m.state = Idle
	}
}

func (m *Machine) stopShow() {
	if m.session.showTimer != nil {
		m.session.showTimer.Stop()
		m.session.showTimer = nil
	}
}

func (m *Machine) stopHide() {
	if m.session.hideTimer != nil {
		m.session.hideTimer.Stop()
		m.session.hideTimer = nil
	}
}

func (m *Machine) destroy() {
	if m.session.handle != "" {
		m.renderer.Destroy(m.session.handle)
		m.session.handle = ""
		m.session.view = PanelView{}
	}
}
