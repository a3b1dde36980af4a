// This file is part of xwmux.
// Please see the LICENSE file for copyright information.

package xdisplay

import (
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"xwmux/internal/keysym"
	"xwmux/internal/protocol"
)

// Client is the control client's connection: just enough to intern one
// message atom, send one client message to the root window, and resolve a
// key spec to a keycode. Unlike Display, it never selects
// SubstructureRedirect — doing so would either fail against the running
// window manager or, worse, race to become one.
type Client struct {
	conn *xgb.Conn
	root xproto.Window
}

// Dial opens a display connection for the control client.
func Dial() (*Client, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("xdisplay: open display: %w", err)
	}
	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)
	return &Client{conn: conn, root: screen.Root}, nil
}

// Close closes the connection.
func (c *Client) Close() { c.conn.Close() }

// Send encodes msg and delivers it as a client message to the root window
// with the substructure-redirect event mask, per spec.md §4.7.
func (c *Client) Send(msg protocol.Message) error {
	name, slots := protocol.Encode(msg)
	reply, err := xproto.InternAtom(c.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return fmt.Errorf("xdisplay: intern atom %q: %w", name, err)
	}

	var data32 [5]uint32
	for i, s := range slots {
		data32[i] = uint32(s)
	}
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: c.root,
		Type:   reply.Atom,
		Data:   xproto.ClientMessageDataUnionData32New(data32[:]),
	}
	mask := uint32(xproto.EventMaskSubstructureRedirect)
	err = xproto.SendEventChecked(c.conn, false, c.root, mask, string(ev.Bytes())).Check()
	if err != nil {
		return fmt.Errorf("xdisplay: send %s: %w", name, err)
	}
	return nil
}

// Keycode resolves sym to a keycode using a one-shot read of the server's
// current keyboard mapping. The control client is short-lived, so unlike
// Display it does not keep a cache around.
func (c *Client) Keycode(sym keysym.Keysym) (xproto.Keycode, bool, error) {
	setup := xproto.Setup(c.conn)
	count := int(setup.MaxKeycode-setup.MinKeycode) + 1
	reply, err := xproto.GetKeyboardMapping(c.conn, xproto.Keycode(setup.MinKeycode), byte(count)).Reply()
	if err != nil {
		return 0, false, err
	}
	perKeycode := int(reply.KeysymsPerKeycode)
	for i := 0; i < count; i++ {
		syms := reply.Keysyms[i*perKeycode : (i+1)*perKeycode]
		for _, s := range syms {
			if s == xproto.Keysym(sym) {
				return xproto.Keycode(setup.MinKeycode) + xproto.Keycode(i), true, nil
			}
		}
	}
	return 0, false, nil
}
