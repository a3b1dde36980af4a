// This file is part of xwmux.
// Please see the LICENSE file for copyright information.

// Package keysym resolves the multiplexer's key syntax ("C-a", "M-S-F1", a
// bare character, or a named key) into an X keysym and modifier mask.
//
// Xlib's XStringToKeysym/XKeysymToKeycode have no equivalent in pure-Go
// xgb, so the table below reproduces the subset of X11 keysym values
// (public protocol constants from keysymdef.h, not Xlib internals) that
// original_source/src/xwmux/tmux_keys.h's tmux_key_maps names explicitly.
// Keycode resolution against a live connection's keyboard mapping happens
// in the xdisplay package, which owns the connection.
package keysym

import "strings"

// Keysym is an X11 keysym value.
type Keysym uint32

// NoSymbol is the null keysym: mouse event names resolve to this, mirroring
// the original table's 0-valued entries, and are never forwarded.
const NoSymbol Keysym = 0

// Modifiers is a bitmask of the modifier keys a ModifiedKey may combine.
type Modifiers uint32

const (
	ModShift Modifiers = 1 << iota
	ModControl
	ModAlt
	ModSuper
)

// Named keysym values, from the X11 keysymdef.h numbering.
const (
	XKEscape    Keysym = 0xff1b
	XKReturn    Keysym = 0xff0d
	XKTab       Keysym = 0xff09
	XKBackSpace Keysym = 0xff08
	XKSpace     Keysym = 0x0020
	XKDelete    Keysym = 0xffff
	XKHome      Keysym = 0xff50
	XKEnd       Keysym = 0xff57
	XKPageUp    Keysym = 0xff55
	XKPageDown  Keysym = 0xff56
	XKInsert    Keysym = 0xff63
	XKUp        Keysym = 0xff52
	XKDown      Keysym = 0xff54
	XKLeft      Keysym = 0xff51
	XKRight     Keysym = 0xff53

	XKKPDivide   Keysym = 0xffaf
	XKKPMultiply Keysym = 0xffaa
	XKKPSubtract Keysym = 0xffad
	XKKPAdd      Keysym = 0xffab
	XKKPEnter    Keysym = 0xff8d
	XKKPDecimal  Keysym = 0xffae
	XKKP0        Keysym = 0xffb0
	XKKP1        Keysym = 0xffb1
	XKKP2        Keysym = 0xffb2
	XKKP3        Keysym = 0xffb3
	XKKP4        Keysym = 0xffb4
	XKKP5        Keysym = 0xffb5
	XKKP6        Keysym = 0xffb6
	XKKP7        Keysym = 0xffb7
	XKKP8        Keysym = 0xffb8
	XKKP9        Keysym = 0xffb9

	XKF1  Keysym = 0xffbe
	XKF2  Keysym = 0xffbf
	XKF3  Keysym = 0xffc0
	XKF4  Keysym = 0xffc1
	XKF5  Keysym = 0xffc2
	XKF6  Keysym = 0xffc3
	XKF7  Keysym = 0xffc4
	XKF8  Keysym = 0xffc5
	XKF9  Keysym = 0xffc6
	XKF10 Keysym = 0xffc7
	XKF11 Keysym = 0xffc8
	XKF12 Keysym = 0xffc9
)

// namedKeys mirrors tmux_key_maps: tmux's own names for keys with no
// single-character representation, plus the mouse event names (which
// carry no X keysym and are never forwarded).
var namedKeys = map[string]Keysym{
	"F1": XKF1, "F2": XKF2, "F3": XKF3, "F4": XKF4,
	"F5": XKF5, "F6": XKF6, "F7": XKF7, "F8": XKF8,
	"F9": XKF9, "F10": XKF10, "F11": XKF11, "F12": XKF12,

	"IC":      XKInsert,
	"DC":      XKDelete,
	"Home":    XKHome,
	"End":     XKEnd,
	"NPage":   XKPageDown,
	"PageDown": XKPageDown,
	"PgDn":    XKPageDown,
	"PPage":   XKPageUp,
	"PageUp":  XKPageUp,
	"PgUp":    XKPageUp,
	"Tab":     XKTab,
	"BTab":    NoSymbol,
	"Space":   XKSpace,
	"BSpace":  XKBackSpace,
	"Enter":   XKReturn,
	"Escape":  XKEscape,

	"Up":    XKUp,
	"Down":  XKDown,
	"Left":  XKLeft,
	"Right": XKRight,

	"KP/": XKKPDivide, "KP*": XKKPMultiply, "KP-": XKKPSubtract,
	"KP7": XKKP7, "KP8": XKKP8, "KP9": XKKP9, "KP+": XKKPAdd,
	"KP4": XKKP4, "KP5": XKKP5, "KP6": XKKP6,
	"KP1": XKKP1, "KP2": XKKP2, "KP3": XKKP3,
	"KPEnter": XKKPEnter, "KP0": XKKP0, "KP.": XKKPDecimal,
}

func init() {
	for _, name := range []string{
		"MouseDown1Pane", "MouseDown1Status", "MouseDown1Border",
		"MouseDown2Pane", "MouseDown2Status", "MouseDown2Border",
		"MouseDown3Pane", "MouseDown3Status", "MouseDown3Border",
		"MouseUp1Pane", "MouseUp1Status", "MouseUp1Border",
		"MouseUp2Pane", "MouseUp2Status", "MouseUp2Border",
		"MouseUp3Pane", "MouseUp3Status", "MouseUp3Border",
		"MouseDrag1Pane", "MouseDrag1Status", "MouseDrag1Border",
		"MouseDrag2Pane", "MouseDrag2Status", "MouseDrag2Border",
		"MouseDrag3Pane", "MouseDrag3Status", "MouseDrag3Border",
		"MouseDragEnd1Pane", "MouseDragEnd1Status", "MouseDragEnd1Border",
		"MouseDragEnd2Pane", "MouseDragEnd2Status", "MouseDragEnd2Border",
		"MouseDragEnd3Pane", "MouseDragEnd3Status", "MouseDragEnd3Border",
		"WheelUpPane", "WheelUpStatus", "WheelUpBorder",
		"WheelDownPane", "WheelDownStatus", "WheelDownBorder",
	} {
		namedKeys[name] = NoSymbol
	}
}

// toKeysym resolves a key name (with modifier prefixes already stripped)
// to a keysym. A single printable ASCII character resolves directly,
// since X11 assigns Latin-1 keysyms the same numeric value as their
// character code — the pure-Go equivalent of XStringToKeysym for the
// common case.
func toKeysym(name string) (Keysym, bool) {
	if sym, ok := namedKeys[name]; ok {
		return sym, sym != NoSymbol
	}
	if len(name) == 1 {
		return Keysym(name[0]), true
	}
	return NoSymbol, false
}

// Parse splits a tmux-style key spec ("C-a", "M-S-F1", "Enter", "x") into
// its modifier mask and keysym. ok is false when the spec names a mouse
// event (which carries no X keysym and must never be forwarded) or an
// unrecognized multi-character name.
func Parse(spec string) (mods Modifiers, sym Keysym, ok bool) {
	rest := spec
	for len(rest) > 1 && rest[1] == '-' {
		switch rest[0] {
		case 'M', 'm':
			mods |= ModAlt
		case 'S', 's':
			mods |= ModShift
		case 'C', 'c':
			mods |= ModControl
		default:
			sym, ok = toKeysym(rest)
			return mods, sym, ok
		}
		rest = rest[2:]
	}
	sym, ok = toKeysym(rest)
	return mods, sym, ok
}

// String renders spec-syntax back from a modifier mask and keysym name,
// used only for diagnostics (e.g. logging an unparsed key).
func String(mods Modifiers, name string) string {
	var b strings.Builder
	if mods&ModControl != 0 {
		b.WriteString("C-")
	}
	if mods&ModAlt != 0 {
		b.WriteString("M-")
	}
	if mods&ModShift != 0 {
		b.WriteString("S-")
	}
	b.WriteString(name)
	return b.String()
}
