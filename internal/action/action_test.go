package action

import (
	"context"
	"errors"
	"testing"

	"power-bench/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAppleScript(flavor string, run ScriptRunner) *AppleScriptCapability {
	c := NewAppleScriptCapability(config.SubjectConfig{
		Name:        "Brave",
		Application: "Brave Browser",
		Process:     "Brave Browser",
		Flavor:      flavor,
	})
	c.run = run
	return c
}

func TestAppleScriptFocusDependsOnFlavor(t *testing.T) {
	safari := newTestAppleScript(config.FlavorSafari, nil)
	script, err := safari.Script(Request{Name: FocusUnit, Unit: 3})
	require.NoError(t, err)
	assert.Contains(t, script, "set current tab of window 1 to tab 3 of window 1")

	chromium := newTestAppleScript(config.FlavorChromium, nil)
	script, err = chromium.Script(Request{Name: FocusUnit, Unit: 3})
	require.NoError(t, err)
	assert.Contains(t, script, "set active tab index of window 1 to 3")
	assert.Contains(t, script, `tell application "Brave Browser"`)

	_, err = chromium.Script(Request{Name: FocusUnit})
	require.Error(t, err)
}

func TestAppleScriptKeystrokes(t *testing.T) {
	c := newTestAppleScript(config.FlavorChromium, nil)

	script, err := c.Script(Request{Name: PageDown})
	require.NoError(t, err)
	assert.Contains(t, script, `tell process "Brave Browser"`)
	assert.Contains(t, script, "key code 125 using {command down}")

	script, err = c.Script(Request{Name: ScrollUp})
	require.NoError(t, err)
	assert.Contains(t, script, "key code 126\n")

	script, err = c.Script(Request{Name: TypeText, Text: `say "hi"`})
	require.NoError(t, err)
	assert.Contains(t, script, `keystroke "say \"hi\""`)
}

func TestAppleScriptOpenURLs(t *testing.T) {
	c := newTestAppleScript(config.FlavorChromium, nil)

	script, err := c.Script(Request{Name: OpenURLs, URLs: []string{"https://a.example", "https://b.example"}})
	require.NoError(t, err)
	assert.Contains(t, script, `tell application "Brave Browser" to activate`)
	assert.Contains(t, script, `open location "https://a.example"`)
	assert.Contains(t, script, `open location "https://b.example"`)

	_, err = c.Script(Request{Name: OpenURLs})
	require.Error(t, err)
}

func TestAppleScriptPerformWrapsRunnerError(t *testing.T) {
	var got string
	boom := errors.New("not authorised")
	c := newTestAppleScript(config.FlavorChromium, func(ctx context.Context, script string) error {
		got = script
		return boom
	})

	err := c.Perform(context.Background(), Request{Name: Reload})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, got, "key code 15 using {command down}")
}

func TestEveryActionHasAnAppleScript(t *testing.T) {
	c := newTestAppleScript(config.FlavorSafari, nil)
	for _, name := range Names() {
		req := Request{Name: name, Unit: 1, URLs: []string{"https://example.com"}, Text: "x"}
		_, err := c.Script(req)
		assert.NoError(t, err, "action %s", name)
	}
}

func TestParseName(t *testing.T) {
	n, err := ParseName("zoom_in")
	require.NoError(t, err)
	assert.Equal(t, ZoomIn, n)

	_, err = ParseName("teleport")
	require.Error(t, err)
}

func TestChromeCapabilityRejectsUnitsBeforeOpen(t *testing.T) {
	c := NewChromeCapability(config.SubjectConfig{Name: "Chromium", Headless: true})
	defer c.Close()

	err := c.Perform(context.Background(), Request{Name: FocusUnit, Unit: 1})
	require.Error(t, err)

	err = c.Perform(context.Background(), Request{Name: PageDown})
	require.Error(t, err)

	require.NoError(t, c.Perform(context.Background(), Request{Name: CloseAll}))
}
