// This file is part of xwmux.
// Please see the LICENSE file for copyright information.

package main

import (
	"flag"
	"io"
	"log"
	"os"

	"github.com/BurntSushi/xgb/xproto"

	"xwmux/internal/config"
	"xwmux/internal/keysym"
	"xwmux/internal/layout"
	"xwmux/internal/mapping"
	"xwmux/internal/protocol"
	"xwmux/internal/reactor"
	"xwmux/internal/tmux"
	"xwmux/internal/xdisplay"
)

func main() {
	verbose := flag.Bool("v", false, "verbose output (print logs to stderr)")
	flag.Parse()

	if *verbose {
		log.SetOutput(os.Stderr)
	} else {
		log.SetOutput(io.Discard)
	}

	if err := config.InitializeIfNot(); err != nil {
		log.Fatalf("xwmux: initialize config: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("xwmux: load config: %v", err)
	}

	bar := layout.BarBottom
	if cfg.DefaultBar == "top" {
		bar = layout.BarTop
	}
	padX := parsePadding(cfg.PaddingX)
	padY := parsePadding(cfg.PaddingY)

	// The terminal character-grid size is not known until the multiplexer's
	// first RESOLUTION message; 80x24 is only a placeholder to avoid a
	// division by zero before that arrives.
	display, err := xdisplay.New(cfg.RootTermCommand, cfg.RootTermClass, layout.Resolution{W: 80, H: 24}, bar, padX, padY)
	if err != nil {
		log.Fatalf("xwmux: %v", err)
	}
	defer display.Close()

	tmuxClient := &tmux.Client{}
	r := reactor.New(display, tmuxClient, log.Default())

	if mods, sym, ok := keysym.Parse(cfg.DefaultPrefix); ok {
		if code, ok := display.Keycode(sym); ok {
			r.HandleControlMessage(protocol.PrefixMsg{
				Keycode:   int32(code),
				Modifiers: int32(xdisplay.ModMask(mods)),
			})
		} else {
			log.Printf("xwmux: configured prefix %q has no keycode on this keyboard mapping", cfg.DefaultPrefix)
		}
	} else {
		log.Printf("xwmux: configured prefix %q did not parse", cfg.DefaultPrefix)
	}

	display.OpenTerm()

	run(display, tmuxClient, r)
}

func parsePadding(s string) layout.Padding {
	switch s {
	case "start":
		return layout.PadStart
	case "end":
		return layout.PadEnd
	default:
		return layout.PadEven
	}
}

// run is the single-threaded event loop of spec.md §5: block for the next
// X event, translate it into a reactor call, repeat until EXIT.
func run(d *xdisplay.Display, t *tmux.Client, r *reactor.Reactor) {
	for {
		ev, xerr := d.Conn.WaitForEvent()
		if xerr != nil {
			log.Printf("xwmux: X error: %v", xerr)
			if err := t.DisplayMessage(xerr.Error()); err != nil {
				log.Printf("xwmux: forward X error to multiplexer: %v", err)
			}
			continue
		}
		if ev == nil {
			// The connection closed.
			return
		}

		switch e := ev.(type) {
		case xproto.ConfigureNotifyEvent:
			if e.Window == d.Root {
				r.HandleConfigureNotifyRoot(layout.Resolution{W: int(e.Width), H: int(e.Height)})
			}
		case xproto.MapRequestEvent:
			r.HandleMapRequest(mapping.XWindow(e.Window))
		case xproto.UnmapNotifyEvent:
			r.HandleUnmapNotify(mapping.XWindow(e.Window))
		case xproto.DestroyNotifyEvent:
			r.HandleDestroyNotify(mapping.XWindow(e.Window))
		case xproto.PropertyNotifyEvent:
			if e.Atom == xproto.AtomWmName {
				r.HandlePropertyNotify(mapping.XWindow(e.Window))
			}
		case xproto.KeyPressEvent:
			r.HandleKeyPress(int32(e.Detail), e.State)
		case xproto.MappingNotifyEvent:
			if err := d.ReloadKeyboardMapping(); err != nil {
				log.Printf("xwmux: reload keyboard mapping: %v", err)
			}
		case xproto.ClientMessageEvent:
			handleClientMessage(d, r, e)
		}

		d.Sync()

		if r.Stopped() {
			r.Shutdown()
			return
		}
	}
}

func handleClientMessage(d *xdisplay.Display, r *reactor.Reactor, e xproto.ClientMessageEvent) {
	name, ok := d.MessageAtomName(e.Type)
	if !ok {
		return
	}
	var slots protocol.Slots
	data32 := e.Data.Data32
	for i := range slots {
		slots[i] = int32(data32[i])
	}
	msg, err := protocol.Decode(name, slots)
	if err != nil {
		return
	}
	r.HandleControlMessage(msg)
}
