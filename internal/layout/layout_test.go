// This file is part of xwmux.
// Please see the LICENSE file for copyright information.

package layout

import "testing"

func TestTermToScreenEdgesPinned(t *testing.T) {
	l := New(Resolution{W: 1920, H: 1080}, Resolution{W: 80, H: 24}, BarBottom, PadEven, PadEven)

	got := l.TermToScreen(Point{X: 0, Y: 0})
	if got != (Point{0, 0}) {
		t.Fatalf("origin should pin to 0,0, got %+v", got)
	}

	got = l.TermToScreen(Point{X: 80, Y: 24})
	if got != (Point{1920, 1080}) {
		t.Fatalf("outer edge should pin to screen resolution, got %+v", got)
	}

	got = l.TermToScreen(Point{X: 200, Y: 200})
	if got != (Point{1920, 1080}) {
		t.Fatalf("beyond-edge coordinate should clamp to screen resolution, got %+v", got)
	}
}

func TestS1FullRectMapsToWholeScreen(t *testing.T) {
	l := New(Resolution{W: 1920, H: 1080}, Resolution{W: 80, H: 24}, BarBottom, PadEven, PadEven)
	r := l.RectTermToScreen(Rect{Start: Point{0, 0}, End: Point{80, 23}})
	want := Rect{Start: Point{0, 0}, End: Point{1920, 1080}}
	if r != want {
		t.Fatalf("S1 scenario rect mismatch: got %+v want %+v", r, want)
	}
}

func TestTermToScreenRoundTripAtInnerPoints(t *testing.T) {
	l := New(Resolution{W: 1920, H: 1080}, Resolution{W: 80, H: 24}, BarBottom, PadEven, PadEven)
	for _, p := range []Point{{1, 1}, {40, 12}, {79, 23}} {
		screen := l.TermToScreen(p)
		// Inverse: screen coordinate should fall back within the same cell.
		backX := (screen.X - l.initPadX) / l.cell.X
		backY := (screen.Y - l.initPadY) / l.cell.Y
		if backX != p.X || backY != p.Y {
			t.Fatalf("round trip failed for %+v: got cell (%d,%d) via screen %+v", p, backX, backY, screen)
		}
	}
}

func TestAddBarShiftsRowAxisOnTop(t *testing.T) {
	l := New(Resolution{W: 1920, H: 1080}, Resolution{W: 80, H: 24}, BarTop, PadEven, PadEven)
	r := Rect{Start: Point{0, 0}, End: Point{80, 23}}
	shifted := l.AddBar(r)
	want := Rect{Start: Point{0, 1}, End: Point{80, 24}}
	if shifted != want {
		t.Fatalf("AddBar(top) = %+v, want %+v", shifted, want)
	}
}

func TestAddBarIdentityOnBottom(t *testing.T) {
	l := New(Resolution{W: 1920, H: 1080}, Resolution{W: 80, H: 24}, BarBottom, PadEven, PadEven)
	r := Rect{Start: Point{0, 0}, End: Point{80, 23}}
	if got := l.AddBar(r); got != r {
		t.Fatalf("AddBar(bottom) should be identity, got %+v", got)
	}
}

func TestFullscreenTermRectBottomBarReservesLastRow(t *testing.T) {
	l := New(Resolution{W: 1920, H: 1080}, Resolution{W: 80, H: 24}, BarBottom, PadEven, PadEven)
	r := l.FullscreenTermRect()
	if r.End.Y >= 1080 && l.term.H*l.cell.Y == 1080 {
		t.Fatalf("fullscreen rect should stop short of the bar row: %+v", r)
	}
}

func TestPaddingDistributions(t *testing.T) {
	// 1921 px over 80 cells: cell=24, remainder=1.
	l := New(Resolution{W: 1921, H: 1080}, Resolution{W: 80, H: 24}, BarBottom, PadStart, PadEnd)
	if l.initPadX != 1 {
		t.Fatalf("PadStart should put all slack at the start, got initPadX=%d", l.initPadX)
	}
}
