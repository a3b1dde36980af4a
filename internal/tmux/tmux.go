// This file is part of xwmux.
// Please see the LICENSE file for copyright information.

// Package tmux wraps the external tmux CLI invocations the reactor and
// mapping depend on. Every operation is fire-and-forget except HasPane,
// whose exit status feeds find_orphans — grounded in
// original_source/src/xwmux/tmux.cpp, which shells out to tmux the same
// way and logs (never propagates) a failure.
package tmux

import (
	"fmt"
	"log"
	"os/exec"
)

// Client invokes tmux as an external process. The zero value is usable.
type Client struct {
	// Logger receives a line for every failed invocation. Defaults to the
	// standard logger if nil.
	Logger *log.Logger
}

func (c *Client) logf(format string, args ...interface{}) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (c *Client) run(args ...string) error {
	cmd := exec.Command("tmux", args...)
	if err := cmd.Run(); err != nil {
		c.logf("tmux %v failed: %v", args, err)
		return err
	}
	return nil
}

// SplitWindow asks the multiplexer to split the current window, creating a
// new, empty pane that a subsequent TMUX_POSITION message can pair with a
// map-requested GUI window.
func (c *Client) SplitWindow() error {
	return c.run("split-window", "")
}

// KillPane tells the multiplexer to destroy the pane with the given id.
func (c *Client) KillPane(pane int32) error {
	return c.run("kill-pane", "-t", paneTarget(pane))
}

// SelectPane focuses the given pane inside the multiplexer.
func (c *Client) SelectPane(pane int32) error {
	return c.run("select-pane", "-t", paneTarget(pane))
}

// NamePane sets the pane's displayed title to name, used to mirror a GUI
// window's title into the multiplexer's pane border.
func (c *Client) NamePane(pane int32, name string) error {
	return c.run("select-pane", "-t", paneTarget(pane), "-T", name)
}

// DisplayMessage shows msg on the multiplexer's status line; used to
// forward runtime X errors per spec.md §7.
func (c *Client) DisplayMessage(msg string) error {
	return c.run("display-message", msg)
}

// SendPrefix injects the multiplexer's own configured prefix key via a
// shell invocation, working around terminal-emulator races around raw X
// key injection (spec.md §4.6).
func (c *Client) SendPrefix() error {
	out, err := exec.Command("tmux", "show-option", "-gv", "prefix").Output()
	if err != nil {
		c.logf("tmux show-option prefix failed: %v", err)
		return err
	}
	prefix := trimNewline(out)
	return c.run("send-keys", "-K", prefix)
}

// CancelPrefix takes the multiplexer back out of its own prefix table,
// used when an override is released mid-prefix.
func (c *Client) CancelPrefix() error {
	return c.run("send-keys", "-X", "cancel")
}

// HasPane reports whether the multiplexer still knows about pane. Unlike
// every other operation here, the exit status is consumed by the caller
// (Mapping.FindOrphans).
func (c *Client) HasPane(pane int32) bool {
	return exec.Command("tmux", "has", "-t", paneTarget(pane)).Run() == nil
}

func paneTarget(pane int32) string {
	return fmt.Sprintf("%%%d", pane)
}

func trimNewline(b []byte) string {
	n := len(b)
	for n > 0 && (b[n-1] == '\n' || b[n-1] == '\r') {
		n--
	}
	return string(b[:n])
}
