// This file is part of xwmux.
// Please see the LICENSE file for copyright information.

// Package reactor is the single-threaded event loop merging X server
// events and client-supplied control messages into state transitions on
// the Pane–Window Mapping. It owns the pending-window queue that matches
// newly mapped GUI clients to newly created multiplexer panes, and runs
// the prefix-key override protocol.
//
// Reactor depends only on the Display and Tmux interfaces below, not on
// any concrete X connection, so its event-handling logic (including the
// S1-S6 scenarios from spec.md §8) is exercised directly against fakes —
// the same testability trade xwmux/internal/mapping already makes.
// Translating real xgb/xproto events into these calls is the job of
// cmd/xwmux's run loop.
package reactor

import (
	"log"

	"xwmux/internal/layout"
	"xwmux/internal/mapping"
	"xwmux/internal/protocol"
)

// Display is the subset of the Display Facade the reactor drives directly,
// beyond what mapping.Display already covers.
type Display interface {
	mapping.Display

	Resolution() layout.Resolution
	SetResolution(layout.Resolution)
	SetTermResolution(layout.Resolution)
	SetBarPosition(layout.BarPosition)
	AddBar(layout.Rect) layout.Rect
	RectTermToScreen(layout.Rect) layout.Rect

	OpenTerm()
	CloseTerm()
	SetTerm(mapping.XWindow)
	ClearTerm()
	LowerWindow(mapping.XWindow)

	IsRootTerm(w mapping.XWindow) bool
	Attributes(w mapping.XWindow) (overrideRedirect, unmapped bool, err error)
	SelectPropertyChanges(w mapping.XWindow)
	WindowName(w mapping.XWindow) (string, error)

	SetPrefix(keycode, modifiers int32)
	UngrabKeyboard()
	KillClient(w mapping.XWindow)
	SendKeyEvent(keycode int32, state uint16, w mapping.XWindow)
	Sync()
}

// Tmux is the subset of tmux CLI operations the reactor drives directly,
// beyond what mapping.Tmux already covers.
type Tmux interface {
	mapping.Tmux

	SplitWindow() error
	NamePane(pane int32, name string) error
	DisplayMessage(msg string) error
	SendPrefix() error
	CancelPrefix() error
}

// Reactor holds the run-loop state described in spec.md §3: the
// pending-window queue, the ignore-focus suppression flag, and the stop
// sentinel, plus the Mapping, Display, and Tmux collaborators it drives.
type Reactor struct {
	mapping *mapping.Mapping
	display Display
	tmux    Tmux
	logger  *log.Logger

	windowQueue    []mapping.XWindow
	pendingWindows map[mapping.XWindow]bool
	ignoreFocus    bool
	stop           bool

	havePrefix      bool
	prefixKeycode   int32
	prefixModifiers int32
}

// New returns a Reactor with an empty Mapping.
func New(d Display, t Tmux, logger *log.Logger) *Reactor {
	return &Reactor{
		mapping:        mapping.New(),
		display:        d,
		tmux:           t,
		logger:         logger,
		pendingWindows: make(map[mapping.XWindow]bool),
	}
}

// Mapping exposes the underlying Mapping for inspection in tests.
func (r *Reactor) Mapping() *mapping.Mapping { return r.mapping }

// Stopped reports whether an EXIT message has been processed; the run
// loop should exit after the current event once this is true.
func (r *Reactor) Stopped() bool { return r.stop }

// PendingWindowCount reports the size of the pending-window queue, used by
// tests exercising the pairing race documented in spec.md §9.
func (r *Reactor) PendingWindowCount() int { return len(r.windowQueue) }

func (r *Reactor) logf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (r *Reactor) removeFromQueue(w mapping.XWindow) {
	for i, q := range r.windowQueue {
		if q == w {
			r.windowQueue = append(r.windowQueue[:i], r.windowQueue[i+1:]...)
			return
		}
	}
}

// Shutdown runs the EXIT cleanup: kill every remaining managed pane via
// the multiplexer. Closing the display itself is the caller's job, since
// the reactor never owned the connection.
func (r *Reactor) Shutdown() {
	for _, w := range r.mapping.AllWindows() {
		r.mapping.Remove(r.tmux, w)
	}
}

// HandleConfigureNotifyRoot updates the stored screen resolution and
// closes the root terminal so it relaunches at the new resolution.
func (r *Reactor) HandleConfigureNotifyRoot(res layout.Resolution) {
	r.display.SetResolution(res)
	r.display.CloseTerm()
}

// HandleMapRequest implements spec.md §4.4's MapRequest branches.
func (r *Reactor) HandleMapRequest(w mapping.XWindow) {
	overrideRedirect, iconic, err := r.display.Attributes(w)
	if err != nil {
		r.logf("xwmux: query attributes for window %d: %v", w, err)
		return
	}
	if overrideRedirect {
		return
	}

	if r.display.IsRootTerm(w) {
		r.display.ResizeWindow(w, r.display.FullscreenTermRect())
		r.display.LowerWindow(w)
		r.display.MapWindow(w)
		r.display.SetTerm(w)
		r.display.SetInputFocus(w)
		return
	}

	if r.pendingWindows[w] || iconic {
		return
	}

	r.windowQueue = append(r.windowQueue, w)
	r.pendingWindows[w] = true
	if err := r.tmux.SplitWindow(); err != nil {
		r.logf("xwmux: split-window failed: %v", err)
	}
	r.display.SelectPropertyChanges(w)
}

// HandleUnmapNotify implements spec.md §4.4's UnmapNotify branch.
func (r *Reactor) HandleUnmapNotify(w mapping.XWindow) {
	if r.mapping.HasWindow(w) {
		if r.mapping.NotifyUnmapped(w) {
			return
		}
		r.mapping.Remove(r.tmux, w)
		r.display.FocusTerm()
		return
	}
	delete(r.pendingWindows, w)
	r.removeFromQueue(w)
}

// HandleDestroyNotify implements spec.md §4.4's DestroyNotify branch.
func (r *Reactor) HandleDestroyNotify(w mapping.XWindow) {
	if term, ok := r.display.TermWindow(); ok && term == w {
		r.display.ClearTerm()
		r.display.OpenTerm()
		r.display.FocusTerm()
		return
	}
	if !r.mapping.HasWindow(w) {
		delete(r.pendingWindows, w)
		r.removeFromQueue(w)
		return
	}
	r.mapping.Remove(r.tmux, w)
	r.display.FocusTerm()
}

// HandlePropertyNotify implements spec.md §4.4's PropertyNotify branch.
// The caller is responsible for filtering events down to the WM_NAME atom
// before calling this.
func (r *Reactor) HandlePropertyNotify(w mapping.XWindow) {
	if !r.mapping.HasWindow(w) {
		return
	}
	name, err := r.display.WindowName(w)
	if err != nil {
		r.logf("xwmux: read window name for %d: %v", w, err)
		return
	}
	key, ok := r.mapping.Find(w)
	if !ok {
		return
	}
	if err := r.tmux.NamePane(key.Pane, name); err != nil {
		r.logf("xwmux: name pane %%%d: %v", key.Pane, err)
	}
}

// HandleKeyPress implements spec.md §4.4's prefix KeyPress branch,
// dispatching into the override protocol (§4.6) when (keycode, state)
// matches the configured prefix.
func (r *Reactor) HandleKeyPress(keycode int32, state uint16) {
	if !r.havePrefix || keycode != r.prefixKeycode || int32(state) != r.prefixModifiers {
		return
	}
	r.handlePrefixPress(state)
}

// handlePrefixPress implements the two branches of spec.md §4.6.
func (r *Reactor) handlePrefixPress(state uint16) {
	if !r.mapping.Overridden() {
		if !r.mapping.IsActiveFilled() {
			// No GUI window focused: the prefix is ungrabbed in that state
			// per §4.3's focus logic, so this shouldn't even fire, but stay
			// a no-op defensively.
			return
		}
		r.display.UngrabKeyboard()
		r.ignoreFocus = true
		r.display.FocusTerm()
		r.ignoreFocus = false
		r.display.Sync()
		if err := r.tmux.SendPrefix(); err != nil {
			r.logf("xwmux: send prefix to multiplexer: %v", err)
		}
		r.mapping.Override()
		return
	}

	r.display.UngrabKeyboard()
	if err := r.tmux.CancelPrefix(); err != nil {
		r.logf("xwmux: cancel multiplexer prefix state: %v", err)
	}
	r.mapping.ReleaseOverride(r.display)
	if w, ok := r.mapping.CurrentWindow(); ok {
		r.display.SendKeyEvent(r.prefixKeycode, state, w)
	}
}

// HandleControlMessage dispatches a decoded control message per spec.md
// §4.5.
func (r *Reactor) HandleControlMessage(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.ResolutionMsg:
		r.display.SetTermResolution(layout.Resolution{W: int(m.Cols), H: int(m.Rows)})
		r.display.SetResolution(layout.Resolution{W: int(m.PxW), H: int(m.PxH)})
		bar := layout.BarBottom
		if m.Bar == protocol.BarTop {
			bar = layout.BarTop
		}
		r.display.SetBarPosition(bar)

	case protocol.PrefixMsg:
		r.havePrefix = true
		r.prefixKeycode = m.Keycode
		r.prefixModifiers = m.Modifiers
		r.display.SetPrefix(m.Keycode, m.Modifiers)

	case protocol.ExitMsg:
		r.stop = true

	case protocol.KillPaneMsg:
		if w, ok := r.mapping.CurrentWindow(); ok {
			r.display.KillClient(w)
		}

	case protocol.KillOrphansMsg:
		for _, w := range r.mapping.FindOrphans(r.tmux) {
			r.display.KillClient(w)
			r.mapping.Remove(r.tmux, w)
		}

	case protocol.TmuxPositionMsg:
		r.handleTmuxPosition(m)
	}
}

// handleTmuxPosition implements spec.md §4.5's TMUX_POSITION ordering:
// move_pane, then pending pairing + set_active, then geometry.
func (r *Reactor) handleTmuxPosition(m protocol.TmuxPositionMsg) {
	key := m.Key

	r.mapping.MovePane(key)

	if m.Focused && !r.ignoreFocus {
		if len(r.windowQueue) > 0 && !r.mapping.IsFilled(key) && m.Dead {
			w := r.windowQueue[0]
			r.windowQueue = r.windowQueue[1:]

			if !r.pendingWindows[w] || r.mapping.HasWindow(w) {
				if err := r.tmux.KillPane(key.Pane); err != nil {
					r.logf("xwmux: kill-pane %%%d: %v", key.Pane, err)
				}
			} else {
				delete(r.pendingWindows, w)
				r.mapping.Add(r.display, w, key)
				if name, err := r.display.WindowName(w); err == nil {
					if err := r.tmux.NamePane(key.Pane, name); err != nil {
						r.logf("xwmux: name pane %%%d: %v", key.Pane, err)
					}
				}
			}
		}
		r.mapping.SetActive(r.display, key, m.Zoomed, false)
	}

	rect := layout.Rect{
		Start: layout.Point{X: int(m.Start.X), Y: int(m.Start.Y)},
		End:   layout.Point{X: int(m.End.X), Y: int(m.End.Y)},
	}
	rect = r.display.AddBar(rect)
	screenRect := r.display.RectTermToScreen(rect)
	if w, ok := r.mapping.WindowFor(key); ok {
		r.display.ResizeWindow(w, screenRect)
	}
}
