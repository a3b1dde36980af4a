// This file is part of xwmux.
// Please see the LICENSE file for copyright information.

// Package xdisplay is the thin Display Facade over the X server: screen
// resolution, window attributes, key grab/ungrab, focus, map/unmap, and
// client-message send. It is implemented directly atop
// github.com/BurntSushi/xgb and its xproto subpackage (pure Go, no cgo),
// the same low-level library the pack's funkycode-marwind tiling window
// manager uses. ICCCM property reads (WM_CLASS, WM_NAME) go through
// github.com/BurntSushi/xgbutil/icccm, the same helper the teacher's own
// fixWindowClass uses for this exact concern, wrapping the xgb connection
// xdisplay already owns rather than opening a second one.
package xdisplay

import (
	"fmt"
	"log"
	"os/exec"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/icccm"

	"xwmux/internal/keysym"
	"xwmux/internal/layout"
	"xwmux/internal/mapping"
	"xwmux/internal/protocol"
)

// Window is a managed GUI window handle.
type Window = mapping.XWindow

// ModifiedKey is a physical key plus a modifier mask, in the windowing
// system's own numbering.
type ModifiedKey struct {
	Keycode   xproto.Keycode
	Modifiers uint16
}

// ErrAlreadyRunning is returned by New when another window manager already
// holds the substructure-redirect selection on the root window.
var ErrAlreadyRunning = fmt.Errorf("xdisplay: another window manager is already running")

// ErrNotInitialized is logged by GrabPrefix/UngrabPrefix, which then do
// nothing, when no prefix key has been configured yet.
var ErrNotInitialized = fmt.Errorf("xdisplay: no prefix key configured")

type atoms struct {
	wmProtocols    xproto.Atom
	wmDeleteWindow xproto.Atom

	messageNames map[xproto.Atom]string
}

// Display is the concrete Display Facade: it owns the X connection and all
// windowing-system state (XState in spec.md §3).
type Display struct {
	Conn   *xgb.Conn
	Root   xproto.Window
	screen *xproto.ScreenInfo
	atoms  atoms
	xu     *xgbutil.XUtil

	rootTermClass string
	rootTermCmd   string

	layout *layout.Layout
	term   *xproto.Window

	prefix  *ModifiedKey
	grabbed bool

	Logger *log.Logger

	keyFirst xproto.Keycode
	keyToSym map[xproto.Keycode][]xproto.Keysym
	symToKey map[xproto.Keysym]xproto.Keycode
}

// New opens the display connection, becomes the window manager (fails
// with ErrAlreadyRunning if another WM holds substructure-redirect), and
// builds the initial Layout from the screen's current resolution.
func New(rootTermCmd, rootTermClass string, term layout.Resolution, bar layout.BarPosition, padX, padY layout.Padding) (*Display, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("xdisplay: open display: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	d := &Display{
		Conn:          conn,
		Root:          screen.Root,
		screen:        screen,
		rootTermCmd:   rootTermCmd,
		rootTermClass: rootTermClass,
		keyFirst:      xproto.Keycode(setup.MinKeycode),
	}

	screenRes := layout.Resolution{W: int(screen.WidthInPixels), H: int(screen.HeightInPixels)}
	d.layout = layout.New(screenRes, term, bar, padX, padY)

	xu, err := xgbutil.NewConnXgb(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("xdisplay: wrap connection for icccm property access: %w", err)
	}
	d.xu = xu

	if err := d.becomeWM(); err != nil {
		conn.Close()
		return nil, err
	}

	if err := d.internAtoms(); err != nil {
		conn.Close()
		return nil, err
	}

	if err := d.loadKeyboardMapping(); err != nil {
		conn.Close()
		return nil, err
	}

	return d, nil
}

func (d *Display) logf(format string, args ...interface{}) {
	if d.Logger != nil {
		d.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// becomeWM selects SubstructureRedirect on the root window. X reports a
// synchronous BadAccess error from this checked request when another
// client already holds the selection — there is no separate
// startup-vs-runtime error-handler split to maintain, since xgb's checked
// requests already deliver a per-call error instead of an async callback.
func (d *Display) becomeWM() error {
	mask := []uint32{
		uint32(xproto.EventMaskStructureNotify |
			xproto.EventMaskSubstructureRedirect |
			xproto.EventMaskSubstructureNotify),
	}
	err := xproto.ChangeWindowAttributesChecked(d.Conn, d.Root, xproto.CwEventMask, mask).Check()
	if err != nil {
		if _, ok := err.(xproto.AccessError); ok {
			return ErrAlreadyRunning
		}
		return err
	}
	return nil
}

func (d *Display) internAtoms() error {
	get := func(name string) (xproto.Atom, error) {
		reply, err := xproto.InternAtom(d.Conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			return 0, err
		}
		return reply.Atom, nil
	}
	var err error
	if d.atoms.wmProtocols, err = get("WM_PROTOCOLS"); err != nil {
		return err
	}
	if d.atoms.wmDeleteWindow, err = get("WM_DELETE_WINDOW"); err != nil {
		return err
	}

	d.atoms.messageNames = make(map[xproto.Atom]string, len(protocol.MessageAtoms))
	for _, name := range protocol.MessageAtoms {
		atom, err := get(name)
		if err != nil {
			return err
		}
		d.atoms.messageNames[atom] = name
	}
	return nil
}

// MessageAtomName translates an X atom back into the wire message-kind name
// protocol.Decode expects, reporting false for any atom that isn't one of
// xwmux's own control-message atoms.
func (d *Display) MessageAtomName(a xproto.Atom) (string, bool) {
	name, ok := d.atoms.messageNames[a]
	return name, ok
}

func (d *Display) loadKeyboardMapping() error {
	setup := xproto.Setup(d.Conn)
	count := int(setup.MaxKeycode-setup.MinKeycode) + 1
	reply, err := xproto.GetKeyboardMapping(d.Conn, xproto.Keycode(setup.MinKeycode), byte(count)).Reply()
	if err != nil {
		return err
	}
	perKeycode := int(reply.KeysymsPerKeycode)
	d.keyToSym = make(map[xproto.Keycode][]xproto.Keysym, count)
	d.symToKey = make(map[xproto.Keysym]xproto.Keycode, count)
	for i := 0; i < count; i++ {
		code := xproto.Keycode(setup.MinKeycode) + xproto.Keycode(i)
		syms := reply.Keysyms[i*perKeycode : (i+1)*perKeycode]
		d.keyToSym[code] = syms
		for _, s := range syms {
			if s == 0 {
				continue
			}
			if _, exists := d.symToKey[s]; !exists {
				d.symToKey[s] = code
			}
		}
	}
	return nil
}

// ReloadKeyboardMapping re-reads the keycode<->keysym table; call this on
// MappingNotify, since a pure-Go client owns its own cache (Xlib's
// implicit cache, which the original source relied on, has no equivalent
// here).
func (d *Display) ReloadKeyboardMapping() error { return d.loadKeyboardMapping() }

// Keycode resolves a keysym to a keycode using the cached keyboard
// mapping, reporting false if the symbol isn't bound to any key.
func (d *Display) Keycode(sym keysym.Keysym) (xproto.Keycode, bool) {
	code, ok := d.symToKey[xproto.Keysym(sym)]
	return code, ok
}

// ModMask converts xwmux's own Modifiers bitmask into the X protocol's
// modifier-mask encoding.
func ModMask(m keysym.Modifiers) uint16 {
	var mask uint16
	if m&keysym.ModShift != 0 {
		mask |= xproto.ModMaskShift
	}
	if m&keysym.ModControl != 0 {
		mask |= xproto.ModMaskControl
	}
	if m&keysym.ModAlt != 0 {
		mask |= xproto.ModMask1
	}
	if m&keysym.ModSuper != 0 {
		mask |= xproto.ModMask4
	}
	return mask
}

// Sync forces outstanding requests to the server by performing a
// round-trip request and discarding the reply.
func (d *Display) Sync() {
	xproto.GetInputFocus(d.Conn).Reply() //nolint:errcheck
}

// Resolution returns the current screen resolution in pixels.
func (d *Display) Resolution() layout.Resolution {
	return layout.Resolution{W: int(d.screen.WidthInPixels), H: int(d.screen.HeightInPixels)}
}

// SetResolution updates the stored screen resolution and, if a root
// terminal exists, resizes it to the new full screen.
func (d *Display) SetResolution(r layout.Resolution) {
	d.screen.WidthInPixels = uint16(r.W)
	d.screen.HeightInPixels = uint16(r.H)
	d.layout.SetScreenResolution(r)
	if d.term != nil {
		d.ResizeWindow(Window(*d.term), layout.Rect{Start: layout.Point{0, 0}, End: layout.Point{r.W, r.H}})
	}
}

// SetTermResolution updates the multiplexer's character-grid size.
func (d *Display) SetTermResolution(r layout.Resolution) { d.layout.SetTermResolution(r) }

// SetBarPosition updates where the status bar sits.
func (d *Display) SetBarPosition(b layout.BarPosition) { d.layout.SetBarPosition(b) }

// AddBar and FullscreenTermRect forward to the Layout.
func (d *Display) AddBar(r layout.Rect) layout.Rect      { return d.layout.AddBar(r) }
func (d *Display) FullscreenTermRect() layout.Rect        { return d.layout.FullscreenTermRect() }
func (d *Display) TermToScreen(p layout.Point) layout.Point { return d.layout.TermToScreen(p) }
func (d *Display) RectTermToScreen(r layout.Rect) layout.Rect {
	return d.layout.RectTermToScreen(r)
}

// ResizeWindow moves and resizes window to rect, in screen pixels.
func (d *Display) ResizeWindow(w Window, rect layout.Rect) {
	width := rect.End.X - rect.Start.X
	height := rect.End.Y - rect.Start.Y
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	mask := uint16(xproto.ConfigWindowX | xproto.ConfigWindowY | xproto.ConfigWindowWidth | xproto.ConfigWindowHeight)
	values := []uint32{uint32(rect.Start.X), uint32(rect.Start.Y), uint32(width), uint32(height)}
	if err := xproto.ConfigureWindowChecked(d.Conn, xproto.Window(w), mask, values).Check(); err != nil {
		d.logf("xwmux: resize window %d failed: %v", w, err)
	}
}

// MapWindow and UnmapWindow map/unmap a window, logging (never
// propagating) a transient X error.
func (d *Display) MapWindow(w Window) {
	if err := xproto.MapWindowChecked(d.Conn, xproto.Window(w)).Check(); err != nil {
		d.logf("xwmux: map window %d failed: %v", w, err)
	}
}

func (d *Display) UnmapWindow(w Window) {
	if err := xproto.UnmapWindowChecked(d.Conn, xproto.Window(w)).Check(); err != nil {
		d.logf("xwmux: unmap window %d failed: %v", w, err)
	}
}

// LowerWindow stacks window below its siblings; used when mapping the
// root terminal so it never occludes a GUI pane about to be placed above
// it.
func (d *Display) LowerWindow(w Window) {
	mask := uint16(xproto.ConfigWindowStackMode)
	values := []uint32{uint32(xproto.StackModeBelow)}
	xproto.ConfigureWindowChecked(d.Conn, xproto.Window(w), mask, values).Check() //nolint:errcheck
}

// SetInputFocus directs keyboard focus to window.
func (d *Display) SetInputFocus(w Window) {
	err := xproto.SetInputFocusChecked(d.Conn, xproto.InputFocusPointerRoot, xproto.Window(w), xproto.TimeCurrentTime).Check()
	if err != nil {
		d.logf("xwmux: set input focus to %d failed: %v", w, err)
	}
}

// FocusTerm focuses the root terminal if one exists, else the root window.
func (d *Display) FocusTerm() {
	if d.term != nil {
		d.SetInputFocus(Window(*d.term))
		return
	}
	d.SetInputFocus(Window(d.Root))
}

// TermWindow returns the current root-terminal window, if any.
func (d *Display) TermWindow() (Window, bool) {
	if d.term == nil {
		return 0, false
	}
	return Window(*d.term), true
}

// RootWindow returns the root window handle.
func (d *Display) RootWindow() Window { return Window(d.Root) }

// SetTerm records window as the current root terminal.
func (d *Display) SetTerm(w Window) {
	x := xproto.Window(w)
	d.term = &x
}

// ClearTerm forgets the current root terminal (it was destroyed).
func (d *Display) ClearTerm() { d.term = nil }

// OpenTerm launches the configured root-terminal command asynchronously.
// Failure is logged, never propagated — spawning the root terminal is an
// external collaborator per spec.md §1's scope.
func (d *Display) OpenTerm() {
	cmd := exec.Command("sh", "-c", d.rootTermCmd)
	if err := cmd.Start(); err != nil {
		d.logf("xwmux: failed to launch root terminal: %v", err)
	}
}

// CloseTerm kills the current root terminal, if any. It only issues the
// kill; d.term is cleared later, when the real DestroyNotify for that
// window arrives (ClearTerm) or a new terminal is assigned (SetTerm) —
// matching the original's close_term(), which never touches m_xstate.term
// itself.
func (d *Display) CloseTerm() {
	if d.term == nil {
		return
	}
	xproto.KillClientChecked(d.Conn, uint32(*d.term)).Check() //nolint:errcheck
}

// IsRootTerm reports whether w's WM_CLASS matches the configured
// root-terminal class, read via icccm.WmClassGet the way the teacher's own
// fixWindowClass reads WM_CLASS.
func (d *Display) IsRootTerm(w Window) bool {
	class, err := icccm.WmClassGet(d.xu, xproto.Window(w))
	return err == nil && class.Class == d.rootTermClass
}

// WindowName reads WM_NAME via icccm.WmNameGet.
func (d *Display) WindowName(w Window) (string, error) {
	return icccm.WmNameGet(d.xu, xproto.Window(w))
}

// Attributes reports a window's override-redirect flag and whether it is
// currently unmapped (the spec's "iconic" check reads X window
// attributes, not the separate ICCCM WM_STATE property).
func (d *Display) Attributes(w Window) (overrideRedirect, unmapped bool, err error) {
	reply, err := xproto.GetWindowAttributes(d.Conn, xproto.Window(w)).Reply()
	if err != nil {
		return false, false, err
	}
	return reply.OverrideRedirect, reply.MapState == xproto.MapStateUnmapped, nil
}

// QueryChildren lists the root window's current children.
func (d *Display) QueryChildren() ([]Window, error) {
	reply, err := xproto.QueryTree(d.Conn, d.Root).Reply()
	if err != nil {
		return nil, err
	}
	out := make([]Window, len(reply.Children))
	for i, c := range reply.Children {
		out[i] = Window(c)
	}
	return out, nil
}

// SelectPropertyChanges subscribes to PropertyNotify on window, used to
// track title changes on a newly-bound GUI window.
func (d *Display) SelectPropertyChanges(w Window) {
	mask := []uint32{uint32(xproto.EventMaskPropertyChange)}
	xproto.ChangeWindowAttributesChecked(d.Conn, xproto.Window(w), xproto.CwEventMask, mask).Check() //nolint:errcheck
}

// SetPrefix updates the prefix key from the wire-format PREFIX message
// (a raw keycode and modifier mask, already resolved by the control
// client), re-grabbing it on the root window if it was already grabbed.
// One source revision of the original project grabbed (modifiers,
// modifiers) here instead of (new_keycode, modifiers); this grabs the
// correct pair, per spec.md §4.3.
func (d *Display) SetPrefix(keycode, modifiers int32) {
	key := ModifiedKey{Keycode: xproto.Keycode(keycode), Modifiers: uint16(modifiers)}
	wasGrabbed := d.grabbed
	if d.prefix != nil && d.grabbed {
		d.ungrabKey(*d.prefix)
		d.grabbed = false
	}
	d.prefix = &key
	if wasGrabbed {
		d.grabKey(key)
		d.grabbed = true
	}
}

// Prefix returns the currently configured prefix key, if any.
func (d *Display) Prefix() (ModifiedKey, bool) {
	if d.prefix == nil {
		return ModifiedKey{}, false
	}
	return *d.prefix, true
}

func (d *Display) grabKey(key ModifiedKey) {
	err := xproto.GrabKeyChecked(d.Conn, false, d.Root, key.Modifiers, key.Keycode,
		xproto.GrabModeAsync, xproto.GrabModeAsync).Check()
	if err != nil {
		d.logf("xwmux: grab prefix key failed: %v", err)
	}
}

func (d *Display) ungrabKey(key ModifiedKey) {
	xproto.UngrabKeyChecked(d.Conn, key.Keycode, d.Root, key.Modifiers).Check() //nolint:errcheck
}

// GrabPrefix grabs the prefix key on the root window so the multiplexer
// can intercept it even while a GUI pane holds focus. Idempotent: a
// second call while already grabbed issues no further grab request.
func (d *Display) GrabPrefix() {
	if d.prefix == nil {
		d.logf("xwmux: %v", ErrNotInitialized)
		return
	}
	if d.grabbed {
		return
	}
	d.grabKey(*d.prefix)
	d.grabbed = true
}

// UngrabPrefix releases the prefix key grab so the focused pane receives
// it directly. Idempotent.
func (d *Display) UngrabPrefix() {
	if d.prefix == nil {
		d.logf("xwmux: %v", ErrNotInitialized)
		return
	}
	if !d.grabbed {
		return
	}
	d.ungrabKey(*d.prefix)
	d.grabbed = false
}

// Grabbed reports whether the prefix is currently grabbed on the root
// window.
func (d *Display) Grabbed() bool { return d.grabbed }

// UngrabKeyboard releases the synchronous keyboard grab the prefix
// KeyPress event created, used at the start of the prefix-override
// protocol (spec.md §4.6).
func (d *Display) UngrabKeyboard() {
	xproto.UngrabKeyboardChecked(d.Conn, xproto.TimeCurrentTime).Check() //nolint:errcheck
}

// KillClient sends WM_DELETE_WINDOW, the protocol's polite-close message.
func (d *Display) KillClient(w Window) {
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: xproto.Window(w),
		Type:   d.atoms.wmProtocols,
		Data:   xproto.ClientMessageDataUnionData32New([]uint32{uint32(d.atoms.wmDeleteWindow), uint32(xproto.TimeCurrentTime), 0, 0, 0}),
	}
	err := xproto.SendEventChecked(d.Conn, false, xproto.Window(w), xproto.EventMaskNoEvent, string(ev.Bytes())).Check()
	if err != nil {
		d.logf("xwmux: kill client %d failed: %v", w, err)
	}
}

// SendKeyEvent forwards a synthetic KeyPress for (keycode, state) to
// window, used by the prefix-override protocol to hand the prefix
// keystroke to whichever window should actually see it once override is
// released.
func (d *Display) SendKeyEvent(keycode int32, state uint16, w Window) {
	ev := xproto.KeyPressEvent{
		Detail: xproto.Keycode(keycode),
		Time:   xproto.TimeCurrentTime,
		Root:   d.Root,
		Event:  xproto.Window(w),
		Child:  0,
		State:  state,
		SameScreen: true,
	}
	err := xproto.SendEventChecked(d.Conn, false, xproto.Window(w), xproto.EventMaskNoEvent, string(ev.Bytes())).Check()
	if err != nil {
		d.logf("xwmux: forward key event to %d failed: %v", w, err)
	}
}

// Close closes the display connection.
func (d *Display) Close() { d.Conn.Close() }
