// Package action defines the interactions the benchmark can issue against a
// subject application and the automation backends that carry them out.
package action

import (
	"context"
	"fmt"
	"sort"
)

// Name identifies a single interaction.
type Name string

const (
	OpenURLs         Name = "open_urls"
	FocusUnit        Name = "focus_unit"
	CloseAll         Name = "close_all"
	ScrollDown       Name = "scroll_down"
	ScrollUp         Name = "scroll_up"
	PageDown         Name = "page_down"
	PageUp           Name = "page_up"
	Find             Name = "find"
	TypeText         Name = "type_text"
	Confirm          Name = "confirm"
	Dismiss          Name = "dismiss"
	NextLink         Name = "next_link"
	Reload           Name = "reload"
	ZoomIn           Name = "zoom_in"
	ZoomOut          Name = "zoom_out"
	NavigateBack     Name = "navigate_back"
	NavigateForward  Name = "navigate_forward"
	PlayPause        Name = "play_pause"
	ToggleFullscreen Name = "toggle_fullscreen"
)

var known = map[Name]bool{
	OpenURLs: true, FocusUnit: true, CloseAll: true,
	ScrollDown: true, ScrollUp: true, PageDown: true, PageUp: true,
	Find: true, TypeText: true, Confirm: true, Dismiss: true, NextLink: true,
	Reload: true, ZoomIn: true, ZoomOut: true,
	NavigateBack: true, NavigateForward: true,
	PlayPause: true, ToggleFullscreen: true,
}

// ParseName validates an action name read from configuration.
func ParseName(s string) (Name, error) {
	n := Name(s)
	if !known[n] {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return n, nil
}

// Names lists every known action, sorted.
func Names() []Name {
	out := make([]Name, 0, len(known))
	for n := range known {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Request is one interaction. Unit is 1-based and zero when the action does
// not address a unit.
type Request struct {
	Name Name
	Unit int
	Text string
	URLs []string
}

func (r Request) String() string {
	if r.Unit > 0 {
		return fmt.Sprintf("%s(unit=%d)", r.Name, r.Unit)
	}
	return string(r.Name)
}

// Capability performs interactions against a single subject. Implementations
// are bound to their subject at construction. Callers do not retry.
type Capability interface {
	Perform(ctx context.Context, req Request) error
}

// Closer is implemented by capabilities that hold resources beyond a single
// Perform call.
type Closer interface {
	Close() error
}

// Close releases c if it holds resources.
func Close(c Capability) error {
	if closer, ok := c.(Closer); ok {
		return closer.Close()
	}
	return nil
}
