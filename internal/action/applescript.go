package action

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"power-bench/internal/config"
)

// ScriptRunner executes one AppleScript program.
type ScriptRunner func(ctx context.Context, script string) error

// keystroke maps an action to a System Events key code and optional modifier.
type keystroke struct {
	code    int
	command bool
}

var keystrokes = map[Name]keystroke{
	PageDown:         {code: 125, command: true},
	PageUp:           {code: 126, command: true},
	ScrollDown:       {code: 125},
	ScrollUp:         {code: 126},
	Find:             {code: 3, command: true},
	Confirm:          {code: 36},
	Dismiss:          {code: 53},
	NextLink:         {code: 48},
	Reload:           {code: 15, command: true},
	ZoomIn:           {code: 24, command: true},
	ZoomOut:          {code: 27, command: true},
	NavigateBack:     {code: 123, command: true},
	NavigateForward:  {code: 124, command: true},
	PlayPause:        {code: 49},
	ToggleFullscreen: {code: 3},
}

// AppleScriptCapability drives a macOS application through osascript.
type AppleScriptCapability struct {
	application string
	process     string
	flavor      string
	run         ScriptRunner
}

func NewAppleScriptCapability(subject config.SubjectConfig) *AppleScriptCapability {
	return &AppleScriptCapability{
		application: subject.Application,
		process:     subject.Process,
		flavor:      subject.Flavor,
		run:         runOSAScript,
	}
}

func (c *AppleScriptCapability) Perform(ctx context.Context, req Request) error {
	script, err := c.Script(req)
	if err != nil {
		return err
	}
	if err := c.run(ctx, script); err != nil {
		return fmt.Errorf("%s on %s: %w", req, c.application, err)
	}
	return nil
}

// Script renders the AppleScript program for req.
func (c *AppleScriptCapability) Script(req Request) (string, error) {
	app := quote(c.application)

	switch req.Name {
	case OpenURLs:
		if len(req.URLs) == 0 {
			return "", fmt.Errorf("%s: no URLs given", req.Name)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "tell application %s to activate\n", app)
		for _, url := range req.URLs {
			fmt.Fprintf(&b, "tell application %s to open location %s\n", app, quote(url))
		}
		return b.String(), nil

	case FocusUnit:
		if req.Unit < 1 {
			return "", fmt.Errorf("%s: unit must be at least 1, got %d", req.Name, req.Unit)
		}
		selectTab := fmt.Sprintf("set active tab index of window 1 to %d", req.Unit)
		if c.flavor == config.FlavorSafari {
			selectTab = fmt.Sprintf("set current tab of window 1 to tab %d of window 1", req.Unit)
		}
		return fmt.Sprintf("tell application %s\n\tactivate\n\t%s\nend tell\n", app, selectTab), nil

	case CloseAll:
		return fmt.Sprintf("tell application %s\n\trepeat with w in windows\n\t\tclose w\n\tend repeat\nend tell\n", app), nil

	case TypeText:
		return c.systemEvents("keystroke " + quote(req.Text)), nil
	}

	key, ok := keystrokes[req.Name]
	if !ok {
		return "", fmt.Errorf("action %q is not supported by applescript", req.Name)
	}
	command := fmt.Sprintf("key code %d", key.code)
	if key.command {
		command += " using {command down}"
	}
	return c.systemEvents(command), nil
}

func (c *AppleScriptCapability) systemEvents(command string) string {
	return fmt.Sprintf("tell application \"System Events\"\n\ttell process %s\n\t\t%s\n\tend tell\nend tell\n", quote(c.process), command)
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

func runOSAScript(ctx context.Context, script string) error {
	out, err := exec.CommandContext(ctx, "osascript", "-e", script).CombinedOutput()
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("osascript: %w: %s", err, msg)
		}
		return fmt.Errorf("osascript: %w", err)
	}
	return nil
}
