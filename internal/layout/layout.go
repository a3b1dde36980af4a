// This file is part of xwmux.
// Please see the LICENSE file for copyright information.

// Package layout converts character-cell pane rectangles reported by the
// multiplexer into screen-pixel rectangles, accounting for status-bar
// position and padding distribution.
package layout

// BarPosition is where the multiplexer draws its status line.
type BarPosition bool

const (
	BarBottom BarPosition = false
	BarTop    BarPosition = true
)

// Padding controls how leftover pixels (screen mod terminal) are
// distributed along one axis.
type Padding uint8

const (
	PadStart Padding = iota
	PadEven
	PadEnd
)

// Resolution is a width/height pair, in pixels for the screen and in
// character cells for the multiplexer grid. Both fields must be >= 1.
type Resolution struct {
	W, H int
}

// Point is a coordinate, either in character cells or in pixels depending
// on context.
type Point struct {
	X, Y int
}

// Rect is a half-open-free rectangle: Start <= End componentwise.
type Rect struct {
	Start, End Point
}

// Layout holds the screen/terminal resolutions and padding configuration
// needed to translate character-cell coordinates to pixel coordinates.
type Layout struct {
	screen Resolution
	term   Resolution
	bar    BarPosition
	padX   Padding
	padY   Padding

	cell     Point // integer pixels per character cell, per axis
	initPadX int
	initPadY int
}

// New builds a Layout from a screen resolution, terminal resolution, bar
// position and per-axis padding distribution.
func New(screen, term Resolution, bar BarPosition, padX, padY Padding) *Layout {
	l := &Layout{term: term, bar: bar, padX: padX, padY: padY}
	l.SetScreenResolution(screen)
	return l
}

// SetScreenResolution updates the screen resolution and recomputes the
// derived per-axis cell size and padding.
func (l *Layout) SetScreenResolution(screen Resolution) {
	l.screen = screen
	l.recompute()
}

// SetTermResolution updates the terminal character-grid resolution and
// recomputes the derived per-axis cell size and padding.
func (l *Layout) SetTermResolution(term Resolution) {
	l.term = term
	l.recompute()
}

// SetBarPosition updates where the status bar sits.
func (l *Layout) SetBarPosition(bar BarPosition) {
	l.bar = bar
}

func (l *Layout) recompute() {
	l.cell = Point{
		X: divFloor(l.screen.W, l.term.W),
		Y: divFloor(l.screen.H, l.term.H),
	}
	padTotalX := l.screen.W % l.term.W
	padTotalY := l.screen.H % l.term.H
	l.initPadX = initPad(padTotalX, l.padX)
	l.initPadY = initPad(padTotalY, l.padY)
}

func divFloor(a, b int) int {
	if b == 0 {
		return 0
	}
	return a / b
}

func initPad(total int, p Padding) int {
	switch p {
	case PadStart:
		return total
	case PadEven:
		return total / 2
	case PadEnd:
		return 0
	default:
		return 0
	}
}

// TermToScreen maps a single character-cell coordinate to a pixel
// coordinate, pinning the outer edges to eliminate cumulative rounding
// error across tiled panes.
func (l *Layout) TermToScreen(p Point) Point {
	return Point{
		X: axisToScreen(p.X, l.screen.W, l.term.W, l.cell.X, l.initPadX),
		Y: axisToScreen(p.Y, l.screen.H, l.term.H, l.cell.Y, l.initPadY),
	}
}

func axisToScreen(v, screenRes, termRes, cell, initPad int) int {
	switch {
	case v == 0:
		return 0
	case v >= termRes:
		return screenRes
	default:
		return initPad + v*cell
	}
}

// RectTermToScreen applies TermToScreen componentwise to a Rect.
func (l *Layout) RectTermToScreen(r Rect) Rect {
	return Rect{Start: l.TermToScreen(r.Start), End: l.TermToScreen(r.End)}
}

// AddBar shifts a character-cell Rect to account for a status bar drawn on
// the TOP, along the axis perpendicular to the bar (the row axis); a
// bottom bar requires no shift since it sits past the last row already.
//
// One source revision of the original project shifted the X field for a
// top bar; that reads as a transcription slip, since a horizontal status
// bar consumes a row, not a column. This shifts Y, per spec.md's REDESIGN
// FLAGS note to confirm the along-the-bar axis empirically and implement
// the corrected behavior.
func (l *Layout) AddBar(r Rect) Rect {
	if l.bar == BarTop {
		r.Start.Y++
		r.End.Y++
	}
	return r
}

// FullscreenTermRect returns the rect covering the entire usable terminal
// grid area, minus the one row/column reserved for the status bar on
// whichever side it sits. Newly bound GUI windows are pre-sized to this
// rect so the first real geometry update produces no flicker.
func (l *Layout) FullscreenTermRect() Rect {
	var start, end Point
	switch l.bar {
	case BarBottom:
		start = Point{X: 0, Y: 0}
		end = Point{X: l.term.W, Y: l.term.H - 1}
	case BarTop:
		start = Point{X: 0, Y: 1}
		end = Point{X: l.term.W, Y: l.term.H}
	}
	return l.RectTermToScreen(Rect{Start: start, End: end})
}
