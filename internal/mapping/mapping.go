// This file is part of xwmux.
// Please see the LICENSE file for copyright information.

// Package mapping implements the two-level state machine binding
// multiplexer locations (window-id, pane-id) to managed X windows:
// workspace activation (hide/show), focus routing, zoom, and pane
// migration between multiplexer windows.
package mapping

import (
	"xwmux/internal/layout"
	"xwmux/internal/protocol"
)

// XWindow is a managed GUI window handle. The mapping package treats it as
// an opaque numeric identifier so it can be unit tested without a real X
// connection; xdisplay.Window is convertible to and from it.
type XWindow uint32

// Key names a pane uniquely across the session: a multiplexer-window-id
// and a pane-id. Re-exported from protocol since wire messages and
// mapping operations share the same identifier space.
type Key = protocol.PaneKey

// NoKey is the sentinel meaning "no active pane".
var NoKey = protocol.NoPaneKey

// Display is the subset of the Display Facade the mapping needs: resizing,
// mapping/unmapping, and focus/grab routing. Kept as an interface (rather
// than a concrete xdisplay.Display) so mapping's invariants can be
// exercised without a real X server.
type Display interface {
	ResizeWindow(w XWindow, rect layout.Rect)
	MapWindow(w XWindow)
	UnmapWindow(w XWindow)
	SetInputFocus(w XWindow)
	FocusTerm()
	GrabPrefix()
	UngrabPrefix()
	TermWindow() (XWindow, bool)
	RootWindow() XWindow
	FullscreenTermRect() layout.Rect
}

// Tmux is the subset of tmux CLI operations the mapping needs to keep the
// multiplexer's own pane table in sync with removals and orphan sweeps.
type Tmux interface {
	KillPane(pane int32) error
	HasPane(pane int32) bool
}

// WindowPane is one mapping entry: the GUI window backing a pane, whether
// the WM currently has it unmapped, and how many WM-initiated unmaps are
// still outstanding.
type WindowPane struct {
	Window        XWindow
	Hidden        bool
	PendingUnmaps int
}

// Workspace is the set of panes comprising one multiplexer window.
type Workspace map[int32]*WindowPane

func (ws Workspace) show(d Display) {
	for _, wp := range ws {
		showPane(d, wp)
	}
}

func (ws Workspace) showZoomed(d Display, zoomed int32) {
	for pane, wp := range ws {
		if pane == zoomed {
			showPane(d, wp)
		} else {
			hidePane(d, wp)
		}
	}
}

func (ws Workspace) hide(d Display) {
	for _, wp := range ws {
		hidePane(d, wp)
	}
}

func showPane(d Display, wp *WindowPane) {
	if !wp.Hidden {
		return
	}
	d.MapWindow(wp.Window)
	wp.Hidden = false
}

func hidePane(d Display, wp *WindowPane) {
	if wp.Hidden {
		return
	}
	d.UnmapWindow(wp.Window)
	wp.Hidden = true
	wp.PendingUnmaps++
}

// Mapping is the top-level pane/window binding: workspaces plus the
// reverse indices that let the reactor go from an X window or a pane-id
// back to the other.
type Mapping struct {
	workspaces   map[int32]Workspace
	paneToWindow map[int32]int32 // pane-id -> multiplexer-window-id
	windowToPane map[XWindow]int32

	active   Key
	override bool
}

// New returns an empty Mapping with no active pane.
func New() *Mapping {
	return &Mapping{
		workspaces:   make(map[int32]Workspace),
		paneToWindow: make(map[int32]int32),
		windowToPane: make(map[XWindow]int32),
		active:       NoKey,
	}
}

// Active returns the currently-focused pane key.
func (m *Mapping) Active() Key { return m.active }

// Overridden reports whether the prefix currently targets the
// multiplexer because of an override (spec.md §4.6).
func (m *Mapping) Overridden() bool { return m.override }

// IsFilled reports whether key names a pane with a bound GUI window.
func (m *Mapping) IsFilled(key Key) bool {
	ws, ok := m.workspaces[key.Window]
	if !ok {
		return false
	}
	_, ok = ws[key.Pane]
	return ok
}

// IsActiveFilled reports whether the currently active pane has a bound GUI
// window.
func (m *Mapping) IsActiveFilled() bool { return m.IsFilled(m.active) }

// HasWindow reports whether window is currently bound to a pane.
func (m *Mapping) HasWindow(w XWindow) bool {
	_, ok := m.windowToPane[w]
	return ok
}

// AllWindows returns every managed X window currently bound to a pane, in
// no particular order. Used by the EXIT cleanup path, which must kill
// every remaining managed pane before the process exits.
func (m *Mapping) AllWindows() []XWindow {
	windows := make([]XWindow, 0, len(m.windowToPane))
	for w := range m.windowToPane {
		windows = append(windows, w)
	}
	return windows
}

// Find returns the pane key a window is bound to.
func (m *Mapping) Find(w XWindow) (Key, bool) {
	pane, ok := m.windowToPane[w]
	if !ok {
		return Key{}, false
	}
	tmWindow, ok := m.paneToWindow[pane]
	if !ok {
		return Key{}, false
	}
	return Key{Window: tmWindow, Pane: pane}, true
}

// CurrentWindow returns the X window bound to the active pane, if any.
func (m *Mapping) CurrentWindow() (XWindow, bool) {
	return m.WindowFor(m.active)
}

// WindowFor returns the X window bound to key, if any.
func (m *Mapping) WindowFor(key Key) (XWindow, bool) {
	ws, ok := m.workspaces[key.Window]
	if !ok {
		return 0, false
	}
	wp, ok := ws[key.Pane]
	if !ok {
		return 0, false
	}
	return wp.Window, true
}

// Add registers window as the GUI backing of key: resizes the window to
// the fullscreen-term rect and updates both reverse indices.
func (m *Mapping) Add(d Display, window XWindow, key Key) {
	ws, ok := m.workspaces[key.Window]
	if !ok {
		ws = make(Workspace)
		m.workspaces[key.Window] = ws
	}
	// The window's MapRequest was intercepted, so it is still unmapped: it
	// starts hidden and the next show of its workspace maps it.
	ws[key.Pane] = &WindowPane{Window: window, Hidden: true}
	m.paneToWindow[key.Pane] = key.Window
	m.windowToPane[window] = key.Pane

	d.ResizeWindow(window, d.FullscreenTermRect())
}

// Remove drops window's mapping entry, pruning an emptied workspace and
// asking the multiplexer to kill the corresponding pane. It is a no-op if
// window is unknown. It never unmaps or destroys the X window itself.
func (m *Mapping) Remove(tmux Tmux, window XWindow) {
	pane, ok := m.windowToPane[window]
	if !ok {
		return
	}
	tmWindow, ok := m.paneToWindow[pane]
	if !ok {
		delete(m.windowToPane, window)
		return
	}

	delete(m.workspaces[tmWindow], pane)
	if len(m.workspaces[tmWindow]) == 0 {
		delete(m.workspaces, tmWindow)
	}
	delete(m.paneToWindow, pane)
	delete(m.windowToPane, window)

	if err := tmux.KillPane(pane); err != nil {
		_ = err // fire-and-forget, per spec.md §5
	}
}

// MovePane migrates the pane named by key.Pane into workspace key.Window
// if it currently lives in a different workspace. Migration preserves
// Hidden and PendingUnmaps. It is a no-op if the pane doesn't exist, or
// already lives in the target workspace.
func (m *Mapping) MovePane(key Key) {
	oldWindow, ok := m.paneToWindow[key.Pane]
	if !ok || oldWindow == key.Window {
		return
	}
	ws, ok := m.workspaces[oldWindow]
	if !ok {
		return
	}
	wp, ok := ws[key.Pane]
	if !ok {
		return
	}

	delete(ws, key.Pane)
	if len(ws) == 0 {
		delete(m.workspaces, oldWindow)
	}

	newWs, ok := m.workspaces[key.Window]
	if !ok {
		newWs = make(Workspace)
		m.workspaces[key.Window] = newWs
	}
	newWs[key.Pane] = wp
	m.paneToWindow[key.Pane] = key.Window
}

// SetActive implements spec.md §4.3's three-step activation: hide the
// previous workspace and show the new one (honoring zoom), focus the
// backing window (or the root terminal, or the root window), grab/ungrab
// the prefix accordingly, and clear override.
//
// redundantRefocus forces the focus step to run even when key == Active();
// it is used on override release to recover from a stolen focus.
func (m *Mapping) SetActive(d Display, key Key, zoomed bool, redundantRefocus bool) {
	m.activateWorkspace(d, key, zoomed)

	if m.active == key && !redundantRefocus {
		return
	}
	m.focus(d, key)
	m.active.Pane = key.Pane
	m.override = false
}

// activateWorkspace hides the previously-active workspace if the pane
// switch crosses workspaces, then (unconditionally) shows the target
// workspace, honoring zoom. It always advances the active workspace id,
// mirroring the original's activate_window, which runs on every call
// regardless of whether the switch is a no-op — only the focus/override
// step below is gated.
func (m *Mapping) activateWorkspace(d Display, key Key, zoomed bool) {
	if key.Window != m.active.Window {
		if prevWs, ok := m.workspaces[m.active.Window]; ok {
			prevWs.hide(d)
		}
	}

	ws, ok := m.workspaces[key.Window]
	if !ok {
		ws = make(Workspace)
		m.workspaces[key.Window] = ws
	}
	if zoomed {
		ws.showZoomed(d, key.Pane)
	} else {
		ws.show(d)
	}
	m.active.Window = key.Window
}

func (m *Mapping) focus(d Display, key Key) {
	if ws, ok := m.workspaces[key.Window]; ok {
		if wp, ok := ws[key.Pane]; ok {
			d.GrabPrefix()
			d.SetInputFocus(wp.Window)
			return
		}
	}
	d.UngrabPrefix()
	if term, ok := d.TermWindow(); ok {
		d.SetInputFocus(term)
		return
	}
	d.SetInputFocus(d.RootWindow())
}

// Override sets the override flag (the multiplexer is now the input
// target because the prefix key was pressed while a GUI pane had focus).
func (m *Mapping) Override() { m.override = true }

// ReleaseOverride clears the override flag and re-focuses the active pane,
// recovering from any focus the multiplexer's prefix handling stole.
func (m *Mapping) ReleaseOverride(d Display) {
	m.focus(d, m.active)
	m.override = false
}

// FindOrphans returns every managed X window whose pane-id no longer
// exists in the multiplexer, per an external has-pane probe.
func (m *Mapping) FindOrphans(tmux Tmux) []XWindow {
	var orphans []XWindow
	for w, pane := range m.windowToPane {
		if !tmux.HasPane(pane) {
			orphans = append(orphans, w)
		}
	}
	return orphans
}

// NotifyUnmapped decrements window's pending-unmap counter if positive and
// reports whether it was (i.e. the unmap was WM-initiated and should not
// trigger removal). If window is not a pending-unmap target the return is
// false and the caller should treat the UnmapNotify as client-initiated.
func (m *Mapping) NotifyUnmapped(window XWindow) bool {
	pane, ok := m.windowToPane[window]
	if !ok {
		return false
	}
	tmWindow, ok := m.paneToWindow[pane]
	if !ok {
		return false
	}
	wp, ok := m.workspaces[tmWindow][pane]
	if !ok {
		return false
	}
	if wp.PendingUnmaps > 0 {
		wp.PendingUnmaps--
		return true
	}
	return false
}
