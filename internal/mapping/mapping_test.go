// This file is part of xwmux.
// Please see the LICENSE file for copyright information.

package mapping

import (
	"sort"
	"testing"

	"xwmux/internal/layout"
)

// fakeDisplay is an in-memory stand-in for the Display Facade, recording
// calls so tests can assert on mapped/unmapped/focused state without a
// real X server.
type fakeDisplay struct {
	mapped   map[XWindow]bool
	resized  map[XWindow]layout.Rect
	focused  XWindow
	grabbed  bool
	term     XWindow
	hasTerm  bool
	root     XWindow
	fullRect layout.Rect
}

func newFakeDisplay() *fakeDisplay {
	return &fakeDisplay{mapped: make(map[XWindow]bool), resized: make(map[XWindow]layout.Rect), root: 1}
}

func (f *fakeDisplay) ResizeWindow(w XWindow, rect layout.Rect) { f.resized[w] = rect }
func (f *fakeDisplay) MapWindow(w XWindow)                      { f.mapped[w] = true }
func (f *fakeDisplay) UnmapWindow(w XWindow)                    { f.mapped[w] = false }
func (f *fakeDisplay) SetInputFocus(w XWindow)                  { f.focused = w }
func (f *fakeDisplay) FocusTerm() {
	if f.hasTerm {
		f.focused = f.term
	} else {
		f.focused = f.root
	}
}
func (f *fakeDisplay) GrabPrefix()   { f.grabbed = true }
func (f *fakeDisplay) UngrabPrefix() { f.grabbed = false }
func (f *fakeDisplay) TermWindow() (XWindow, bool) { return f.term, f.hasTerm }
func (f *fakeDisplay) RootWindow() XWindow         { return f.root }
func (f *fakeDisplay) FullscreenTermRect() layout.Rect { return f.fullRect }

type fakeTmux struct {
	killed  []int32
	panes   map[int32]bool
}

func newFakeTmux() *fakeTmux { return &fakeTmux{panes: make(map[int32]bool)} }
func (f *fakeTmux) KillPane(pane int32) error { f.killed = append(f.killed, pane); return nil }
func (f *fakeTmux) HasPane(pane int32) bool   { return f.panes[pane] }

func TestInvariant1PaneToWindowMatchesWorkspaceMembership(t *testing.T) {
	d := newFakeDisplay()
	m := New()
	m.Add(d, 100, Key{Window: 1, Pane: 2})

	if tmWindow, ok := m.paneToWindow[2]; !ok || tmWindow != 1 {
		t.Fatalf("pane_to_window[2] = %v,%v; want 1,true", tmWindow, ok)
	}
	if !m.workspaces[1].containsPane(2) {
		t.Fatal("workspace 1 should contain pane 2")
	}
}

func (ws Workspace) containsPane(pane int32) bool {
	_, ok := ws[pane]
	return ok
}

func TestInvariant2WindowToPaneConsistentWithWindowField(t *testing.T) {
	d := newFakeDisplay()
	m := New()
	m.Add(d, 100, Key{Window: 1, Pane: 2})

	key, ok := m.Find(100)
	if !ok {
		t.Fatal("window 100 should be found")
	}
	wp := m.workspaces[key.Window][key.Pane]
	if wp.Window != 100 {
		t.Fatalf("workspace entry window = %v, want 100", wp.Window)
	}
}

func TestS1StartupAndFirstGUIPane(t *testing.T) {
	d := newFakeDisplay()
	tm := newFakeTmux()
	l := layout.New(layout.Resolution{W: 1920, H: 1080}, layout.Resolution{W: 80, H: 24}, layout.BarBottom, layout.PadEven, layout.PadEven)
	d.fullRect = l.FullscreenTermRect()

	m := New()
	key := Key{Window: 1, Pane: 2}
	window := XWindow(42)

	m.Add(d, window, key)
	m.SetActive(d, key, false, false)

	if !d.mapped[window] {
		// Add doesn't map; SetActive's show() does.
	}
	if d.focused != window {
		t.Fatalf("focused = %v, want %v", d.focused, window)
	}
	if !d.grabbed {
		t.Fatal("prefix should be grabbed once a GUI pane is active")
	}
	_ = tm
}

func TestS2WorkspaceSwitchHidesPriorWindow(t *testing.T) {
	d := newFakeDisplay()
	l := layout.New(layout.Resolution{W: 1920, H: 1080}, layout.Resolution{W: 80, H: 24}, layout.BarBottom, layout.PadEven, layout.PadEven)
	d.fullRect = l.FullscreenTermRect()
	m := New()

	k1 := Key{Window: 1, Pane: 2}
	w1 := XWindow(42)
	m.Add(d, w1, k1)
	m.SetActive(d, k1, false, false)

	k2 := Key{Window: 2, Pane: 4}
	w2 := XWindow(43)
	m.Add(d, w2, k2)
	m.SetActive(d, k2, false, false)

	wp1 := m.workspaces[1][2]
	if !wp1.Hidden {
		t.Fatal("w1 should be hidden after switching workspaces")
	}
	if wp1.PendingUnmaps != 1 {
		t.Fatalf("pending unmaps on w1 = %d, want 1", wp1.PendingUnmaps)
	}
	if d.mapped[w1] {
		t.Fatal("w1 should be unmapped")
	}
	if !d.mapped[w2] {
		t.Fatal("w2 should be mapped")
	}
	if d.focused != w2 {
		t.Fatalf("focus should move to w2, got %v", d.focused)
	}
}

func TestS3Zoom(t *testing.T) {
	d := newFakeDisplay()
	l := layout.New(layout.Resolution{W: 1920, H: 1080}, layout.Resolution{W: 80, H: 24}, layout.BarBottom, layout.PadEven, layout.PadEven)
	d.fullRect = l.FullscreenTermRect()
	m := New()

	k1 := Key{Window: 1, Pane: 2}
	m.Add(d, 42, k1)
	m.SetActive(d, k1, false, false)

	k2 := Key{Window: 2, Pane: 4}
	w4 := XWindow(43)
	m.Add(d, w4, k2)
	m.SetActive(d, k2, false, false)

	k5 := Key{Window: 2, Pane: 5}
	w5 := XWindow(44)
	m.Add(d, w5, k5)
	m.SetActive(d, k5, false, false) // both 4 and 5 shown, 5 now active

	// Zoom onto pane 4 while in workspace 2.
	m.SetActive(d, k2, true, false)
	if !m.workspaces[2][5].Hidden {
		t.Fatal("pane 5 should be hidden when pane 4 is zoomed")
	}
	if m.workspaces[2][4].Hidden {
		t.Fatal("pane 4 (zoomed) should remain mapped")
	}
	if d.focused != w4 {
		t.Fatalf("focus should be on the zoomed pane, got %v", d.focused)
	}

	// Un-zoom: both panes visible again.
	m.SetActive(d, k2, false, false)
	if m.workspaces[2][5].Hidden {
		t.Fatal("pane 5 should be remapped once un-zoomed")
	}
}

func TestS5UnmapByClientVsByWM(t *testing.T) {
	d := newFakeDisplay()
	l := layout.New(layout.Resolution{W: 1920, H: 1080}, layout.Resolution{W: 80, H: 24}, layout.BarBottom, layout.PadEven, layout.PadEven)
	d.fullRect = l.FullscreenTermRect()
	m := New()
	tm := newFakeTmux()

	k1 := Key{Window: 1, Pane: 2}
	w1 := XWindow(42)
	m.Add(d, w1, k1)
	m.SetActive(d, k1, false, false)

	k2 := Key{Window: 2, Pane: 4}
	m.Add(d, 43, k2)
	m.SetActive(d, k2, false, false) // hides w1, pending_unmaps(w1) = 1

	if !m.NotifyUnmapped(w1) {
		t.Fatal("first UnmapNotify should be recognized as WM-initiated")
	}
	if m.workspaces[1][2].PendingUnmaps != 0 {
		t.Fatal("pending unmaps should drop back to 0")
	}
	if !m.HasWindow(w1) {
		t.Fatal("entry should still exist after a WM-initiated unmap is observed")
	}

	// Client closes itself: pending_unmaps is 0 so this is not WM-initiated,
	// the caller (reactor) is responsible for calling Remove in that case.
	if m.NotifyUnmapped(w1) {
		t.Fatal("second UnmapNotify should not be treated as WM-initiated")
	}
	m.Remove(tm, w1)
	if m.HasWindow(w1) {
		t.Fatal("entry should be gone after Remove")
	}
	if len(tm.killed) != 1 || tm.killed[0] != 2 {
		t.Fatalf("Remove should kill pane 2 via tmux, got %v", tm.killed)
	}
}

func TestS6OrphanSweep(t *testing.T) {
	d := newFakeDisplay()
	m := New()
	tm := newFakeTmux()

	m.Add(d, 10, Key{Window: 1, Pane: 7})
	m.Add(d, 11, Key{Window: 1, Pane: 8})
	tm.panes[8] = true // pane 7 no longer exists in the multiplexer

	orphans := m.FindOrphans(tm)
	sort.Slice(orphans, func(i, j int) bool { return orphans[i] < orphans[j] })
	if len(orphans) != 1 || orphans[0] != 10 {
		t.Fatalf("orphans = %v, want [10]", orphans)
	}
}

func TestRemoveUnknownWindowIsNoOp(t *testing.T) {
	m := New()
	tm := newFakeTmux()
	m.Remove(tm, XWindow(999)) // must not panic
	if len(tm.killed) != 0 {
		t.Fatal("no pane should be killed for an unknown window")
	}
}

func TestSetActiveIdempotent(t *testing.T) {
	d := newFakeDisplay()
	l := layout.New(layout.Resolution{W: 1920, H: 1080}, layout.Resolution{W: 80, H: 24}, layout.BarBottom, layout.PadEven, layout.PadEven)
	d.fullRect = l.FullscreenTermRect()
	m := New()

	k := Key{Window: 1, Pane: 2}
	m.Add(d, 42, k)
	m.SetActive(d, k, false, false)
	m.Override() // simulate override being set between the two calls

	m.SetActive(d, k, false, false)
	if !m.Overridden() {
		t.Fatal("a true no-op SetActive must not clear override")
	}
}

func TestOverrideImpliesFilled(t *testing.T) {
	d := newFakeDisplay()
	l := layout.New(layout.Resolution{W: 1920, H: 1080}, layout.Resolution{W: 80, H: 24}, layout.BarBottom, layout.PadEven, layout.PadEven)
	d.fullRect = l.FullscreenTermRect()
	m := New()
	k := Key{Window: 1, Pane: 2}
	m.Add(d, 42, k)
	m.SetActive(d, k, false, false)
	m.Override()
	if m.Overridden() && !m.IsActiveFilled() {
		t.Fatal("override implies the active pane is filled")
	}
}

func TestReleaseOverrideRefocuses(t *testing.T) {
	d := newFakeDisplay()
	l := layout.New(layout.Resolution{W: 1920, H: 1080}, layout.Resolution{W: 80, H: 24}, layout.BarBottom, layout.PadEven, layout.PadEven)
	d.fullRect = l.FullscreenTermRect()
	m := New()
	k := Key{Window: 1, Pane: 2}
	m.Add(d, 42, k)
	m.SetActive(d, k, false, false)
	m.Override()

	d.focused = 0 // simulate focus having been stolen
	m.ReleaseOverride(d)
	if m.Overridden() {
		t.Fatal("ReleaseOverride should clear the override flag")
	}
	if d.focused != 42 {
		t.Fatalf("ReleaseOverride should refocus the active pane, got %v", d.focused)
	}
}
