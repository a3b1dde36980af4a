// This file is part of xwmux.
// Please see the LICENSE file for copyright information.

// Package protocol encodes and decodes the fixed-slot client-message wire
// format used by the control client to push events into the reactor.
//
// The dynamic "Command" class hierarchy of the original C++ source is
// re-architected here as a tagged variant (a Message interface implemented
// by one struct per message kind) rather than a dispatch table, per
// spec.md's DESIGN NOTES.
package protocol

import "fmt"

// Atom names carried by the client-message event. _XW_RESOUTION keeps the
// original project's misspelling for wire compatibility with existing
// multiplexer hook scripts that may already reference it.
const (
	AtomResolution   = "_XW_RESOUTION"
	AtomPrefix       = "_XW_PREFIX"
	AtomExit         = "_XW_EXIT"
	AtomTmuxPosition = "_XW_TMUX_POSITION"
	AtomKillPane     = "_XW_KILL_PANE"
	AtomKillOrphans  = "_XW_KILL_ORPHANS"
)

// MessageAtoms lists every wire atom name, so the Display Facade can intern
// all of them once at startup instead of hardcoding the set a second time.
var MessageAtoms = []string{
	AtomResolution, AtomPrefix, AtomExit, AtomTmuxPosition, AtomKillPane, AtomKillOrphans,
}

// Bar mirrors layout.BarPosition without importing it, keeping the wire
// format free of any dependency on the layout package's internal types.
type Bar int32

const (
	BarBottom Bar = 0
	BarTop    Bar = 1
)

// Point is a 2-D coordinate as carried on the wire (character cells for
// RESOLUTION/TMUX_POSITION rects).
type Point struct {
	X, Y int32
}

// PaneKey names a pane uniquely within a session: a multiplexer-window-id
// and a pane-id, both signed 32-bit identifiers from the multiplexer's own
// numbering.
type PaneKey struct {
	Window int32
	Pane   int32
}

// Filled reports whether the key names a real pane, as opposed to the
// sentinel (-1,-1) meaning "no active pane".
func (k PaneKey) Filled() bool { return k.Window >= 0 && k.Pane >= 0 }

// NoPaneKey is the sentinel for "no active pane".
var NoPaneKey = PaneKey{Window: -1, Pane: -1}

// Message is implemented by each of the six message kinds.
type Message interface {
	atom() string
}

type ResolutionMsg struct {
	Cols, Rows int32
	PxW, PxH   int32
	Bar        Bar
}

func (ResolutionMsg) atom() string { return AtomResolution }

type PrefixMsg struct {
	Keycode   int32
	Modifiers int32
}

func (PrefixMsg) atom() string { return AtomPrefix }

type ExitMsg struct{}

func (ExitMsg) atom() string { return AtomExit }

type KillPaneMsg struct {
	Pane int32
}

func (KillPaneMsg) atom() string { return AtomKillPane }

type KillOrphansMsg struct{}

func (KillOrphansMsg) atom() string { return AtomKillOrphans }

type TmuxPositionMsg struct {
	Key     PaneKey
	Start   Point
	End     Point
	Focused bool
	Zoomed  bool
	Dead    bool
}

func (TmuxPositionMsg) atom() string { return AtomTmuxPosition }

// Slots is the 5-slot, format-32 payload of a client-message event.
type Slots [5]int32

// pack folds a 2-D point into one 32-bit slot: the low half is X, the high
// half is Y. Both ends of the wire must agree on a packing; this is the
// one xwmux uses throughout.
func pack(p Point) int32 {
	return int32(uint32(uint16(p.X)) | uint32(uint16(p.Y))<<16)
}

func unpack(v int32) Point {
	u := uint32(v)
	return Point{
		X: int32(int16(uint16(u))),
		Y: int32(int16(uint16(u >> 16))),
	}
}

const (
	bitFocused = 1 << 0
	bitZoomed  = 1 << 1
	bitDead    = 1 << 2
)

// Encode converts a Message into the atom name and slot payload that
// should be carried by the client-message event.
func Encode(m Message) (string, Slots) {
	var s Slots
	switch v := m.(type) {
	case ResolutionMsg:
		s[0] = pack(Point{X: v.PxW, Y: v.PxH})
		s[1] = pack(Point{X: v.Cols, Y: v.Rows})
		s[4] = int32(v.Bar)
	case PrefixMsg:
		s[0] = v.Keycode
		s[1] = v.Modifiers
	case ExitMsg:
	case KillPaneMsg:
		s[3] = v.Pane
	case KillOrphansMsg:
	case TmuxPositionMsg:
		s[0] = pack(v.Start)
		s[1] = pack(v.End)
		s[2] = v.Key.Window
		s[3] = v.Key.Pane
		var bits int32
		if v.Focused {
			bits |= bitFocused
		}
		if v.Zoomed {
			bits |= bitZoomed
		}
		if v.Dead {
			bits |= bitDead
		}
		s[4] = bits
	}
	return m.atom(), s
}

// Decode reconstructs a Message from an atom name and slot payload. An
// unrecognized atom name is reported as an error so the reactor can
// silently drop it, per spec.md's malformed-message handling.
func Decode(atom string, s Slots) (Message, error) {
	switch atom {
	case AtomResolution:
		px := unpack(s[0])
		cells := unpack(s[1])
		return ResolutionMsg{Cols: cells.X, Rows: cells.Y, PxW: px.X, PxH: px.Y, Bar: Bar(s[4])}, nil
	case AtomPrefix:
		return PrefixMsg{Keycode: s[0], Modifiers: s[1]}, nil
	case AtomExit:
		return ExitMsg{}, nil
	case AtomKillPane:
		return KillPaneMsg{Pane: s[3]}, nil
	case AtomKillOrphans:
		return KillOrphansMsg{}, nil
	case AtomTmuxPosition:
		bits := s[4]
		return TmuxPositionMsg{
			Key:     PaneKey{Window: s[2], Pane: s[3]},
			Start:   unpack(s[0]),
			End:     unpack(s[1]),
			Focused: bits&bitFocused != 0,
			Zoomed:  bits&bitZoomed != 0,
			Dead:    bits&bitDead != 0,
		}, nil
	default:
		return nil, fmt.Errorf("protocol: unknown message atom %q", atom)
	}
}
