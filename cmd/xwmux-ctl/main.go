// This file is part of xwmux.
// Please see the LICENSE file for copyright information.

package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"xwmux/internal/keysym"
	"xwmux/internal/protocol"
	"xwmux/internal/xdisplay"
)

const usage = `usage:
  xwmux-ctl init <rows> <cols> <px_w> <px_h> <top|bottom>
  xwmux-ctl prefix <key>
  xwmux-ctl exit
  xwmux-ctl kill-pane (%<id>|focused)
  xwmux-ctl tmux-position <focused> <zoomed> $<session> @<window> %<pane> <left> <top> <width> <height> [<dead>]
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 1
	}

	msg, err := parse(args[0], args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "xwmux-ctl: %v\n", err)
		return 1
	}

	client, err := xdisplay.Dial()
	if err != nil {
		fmt.Fprintf(os.Stderr, "xwmux-ctl: %v\n", err)
		return 1
	}
	defer client.Close()

	if err := client.Send(msg); err != nil {
		fmt.Fprintf(os.Stderr, "xwmux-ctl: %v\n", err)
		return 1
	}
	return 0
}

func parse(cmd string, args []string) (protocol.Message, error) {
	switch cmd {
	case "init":
		return parseInit(args)
	case "prefix":
		return parsePrefix(args)
	case "exit":
		return protocol.ExitMsg{}, nil
	case "kill-pane":
		return parseKillPane(args)
	case "tmux-position":
		return parseTmuxPosition(args)
	default:
		return nil, fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func parseInit(args []string) (protocol.Message, error) {
	if len(args) != 5 {
		return nil, fmt.Errorf("init wants <rows> <cols> <px_w> <px_h> <bar>")
	}
	rows, err1 := strconv.Atoi(args[0])
	cols, err2 := strconv.Atoi(args[1])
	pxW, err3 := strconv.Atoi(args[2])
	pxH, err4 := strconv.Atoi(args[3])
	if err := firstErr(err1, err2, err3, err4); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	var bar protocol.Bar
	switch args[4] {
	case "top":
		bar = protocol.BarTop
	case "bottom":
		bar = protocol.BarBottom
	default:
		return nil, fmt.Errorf("init: bar must be \"top\" or \"bottom\", got %q", args[4])
	}
	return protocol.ResolutionMsg{
		Cols: int32(cols), Rows: int32(rows),
		PxW: int32(pxW), PxH: int32(pxH),
		Bar: bar,
	}, nil
}

// parsePrefix resolves the multiplexer's key syntax (§4.7) to a keycode by
// dialing the display briefly (a second dial happens for the actual send;
// short-lived control-client connections are cheap and this keeps the
// resolution logic colocated with the rest of the parsing).
func parsePrefix(args []string) (protocol.Message, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("prefix wants <key>")
	}
	mods, sym, ok := keysym.Parse(args[0])
	if !ok {
		return nil, fmt.Errorf("prefix: %q does not resolve to a forwardable key", args[0])
	}

	client, err := xdisplay.Dial()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	code, ok, err := client.Keycode(sym)
	if err != nil {
		return nil, fmt.Errorf("prefix: resolve keycode: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("prefix: %q has no keycode on this keyboard mapping", args[0])
	}

	return protocol.PrefixMsg{
		Keycode:   int32(code),
		Modifiers: int32(xdisplay.ModMask(mods)),
	}, nil
}

func parseKillPane(args []string) (protocol.Message, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("kill-pane wants %%<id>|focused")
	}
	if args[0] == "focused" {
		return protocol.KillPaneMsg{Pane: -1}, nil
	}
	pane, err := strconv.Atoi(strings.TrimPrefix(args[0], "%"))
	if err != nil {
		return nil, fmt.Errorf("kill-pane: %w", err)
	}
	return protocol.KillPaneMsg{Pane: int32(pane)}, nil
}

// parseTmuxPosition parses spec.md §4.7's tmux-position argument list. The
// trailing <dead> flag is not itself part of the §4.7 table — the original
// hook script infers it externally, typically from tmux's own
// #{pane_dead} format variable — but the reactor's pending-pairing step
// (§4.5) needs it, so it is accepted as an optional trailing argument and
// defaults to false when the caller omits it.
func parseTmuxPosition(args []string) (protocol.Message, error) {
	if len(args) != 9 && len(args) != 10 {
		return nil, fmt.Errorf("tmux-position wants <focused> <zoomed> $<session> @<window> %%<pane> <left> <top> <width> <height> [<dead>]")
	}

	focused, err1 := strconv.Atoi(args[0])
	zoomed, err2 := strconv.Atoi(args[1])
	window, err3 := strconv.Atoi(strings.TrimPrefix(args[3], "@"))
	pane, err4 := strconv.Atoi(strings.TrimPrefix(args[4], "%"))
	left, err5 := strconv.Atoi(args[5])
	top, err6 := strconv.Atoi(args[6])
	width, err7 := strconv.Atoi(args[7])
	height, err8 := strconv.Atoi(args[8])
	if err := firstErr(err1, err2, err3, err4, err5, err6, err7, err8); err != nil {
		return nil, fmt.Errorf("tmux-position: %w", err)
	}

	dead := 0
	if len(args) == 10 {
		var err9 error
		dead, err9 = strconv.Atoi(args[9])
		if err9 != nil {
			return nil, fmt.Errorf("tmux-position: %w", err9)
		}
	}

	return protocol.TmuxPositionMsg{
		Key:     protocol.PaneKey{Window: int32(window), Pane: int32(pane)},
		Start:   protocol.Point{X: int32(left), Y: int32(top)},
		End:     protocol.Point{X: int32(left + width), Y: int32(top + height)},
		Focused: focused != 0,
		Zoomed:  zoomed != 0,
		Dead:    dead != 0,
	}, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
