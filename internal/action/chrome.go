package action

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"power-bench/internal/config"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

const chromeActionTimeout = 30 * time.Second

type chromeTab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// ChromeCapability drives a Chromium-family browser over the DevTools
// protocol. Each unit is one browser target.
type ChromeCapability struct {
	name string

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	started       bool
	tabs          []chromeTab
	active        int
	pendingFind   bool
}

// NewChromeCapability prepares the browser connection. Nothing is launched
// until the first action that needs a tab.
func NewChromeCapability(subject config.SubjectConfig) *ChromeCapability {
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if subject.DebugURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), subject.DebugURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", subject.Headless))
		if subject.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(subject.ExecPath))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	return &ChromeCapability{
		name:          subject.Name,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}
}

func (c *ChromeCapability) Perform(ctx context.Context, req Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	switch req.Name {
	case OpenURLs:
		return c.openURLs(ctx, req.URLs)
	case CloseAll:
		c.closeTabs()
		return nil
	case FocusUnit:
		if req.Unit < 1 || req.Unit > len(c.tabs) {
			return fmt.Errorf("%s: unit %d out of range [1, %d]", req.Name, req.Unit, len(c.tabs))
		}
		c.active = req.Unit - 1
		return c.run(ctx, c.tabs[c.active], page.BringToFront())
	case Find:
		// No find bar over CDP; the search runs when the text arrives.
		c.pendingFind = true
		return nil
	}

	if len(c.tabs) == 0 {
		return fmt.Errorf("%s: no open units on %s", req.Name, c.name)
	}
	tab := c.tabs[c.active]

	var ok bool
	switch req.Name {
	case ScrollDown:
		return c.run(ctx, tab, chromedp.Evaluate(`window.scrollBy(0, 120); true`, &ok))
	case ScrollUp:
		return c.run(ctx, tab, chromedp.Evaluate(`window.scrollBy(0, -120); true`, &ok))
	case PageDown:
		return c.run(ctx, tab, chromedp.Evaluate(`window.scrollBy(0, window.innerHeight); true`, &ok))
	case PageUp:
		return c.run(ctx, tab, chromedp.Evaluate(`window.scrollBy(0, -window.innerHeight); true`, &ok))
	case TypeText:
		if !c.pendingFind {
			return c.run(ctx, tab, chromedp.KeyEvent(req.Text))
		}
		c.pendingFind = false
		var found bool
		return c.run(ctx, tab, chromedp.Evaluate(`window.find(`+strconv.Quote(req.Text)+`)`, &found))
	case Confirm:
		return c.run(ctx, tab, chromedp.KeyEvent(kb.Enter))
	case Dismiss:
		c.pendingFind = false
		return c.run(ctx, tab, chromedp.KeyEvent(kb.Escape))
	case NextLink:
		return c.run(ctx, tab, chromedp.KeyEvent(kb.Tab))
	case Reload:
		return c.run(ctx, tab, chromedp.Reload())
	case ZoomIn:
		return c.run(ctx, tab, chromedp.Evaluate(zoomScript(0.1), &ok))
	case ZoomOut:
		return c.run(ctx, tab, chromedp.Evaluate(zoomScript(-0.1), &ok))
	case NavigateBack:
		return c.run(ctx, tab, chromedp.NavigateBack())
	case NavigateForward:
		return c.run(ctx, tab, chromedp.NavigateForward())
	case PlayPause:
		return c.run(ctx, tab, chromedp.Evaluate(`(function(){var v=document.querySelector('video');if(!v){return false}if(v.paused){v.play()}else{v.pause()}return true})()`, &ok))
	case ToggleFullscreen:
		return c.run(ctx, tab, chromedp.KeyEvent("f"))
	}
	return fmt.Errorf("action %q is not supported by chromedp", req.Name)
}

func zoomScript(delta float64) string {
	return fmt.Sprintf(`(function(){var z=parseFloat(document.body.style.zoom||'1');document.body.style.zoom=String(z+(%g));return true})()`, delta)
}

func (c *ChromeCapability) openURLs(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return fmt.Errorf("%s: no URLs given", OpenURLs)
	}
	if !c.started {
		// The first Run on the browser context launches or attaches to the browser.
		if err := chromedp.Run(c.browserCtx); err != nil {
			return fmt.Errorf("start browser for %s: %w", c.name, err)
		}
		c.started = true
	}
	for _, url := range urls {
		tabCtx, cancel := chromedp.NewContext(c.browserCtx)
		if err := chromedp.Run(tabCtx); err != nil {
			cancel()
			return fmt.Errorf("open tab on %s: %w", c.name, err)
		}
		tab := chromeTab{ctx: tabCtx, cancel: cancel}
		c.tabs = append(c.tabs, tab)
		if err := c.run(ctx, tab, chromedp.Navigate(url)); err != nil {
			return fmt.Errorf("navigate to %s: %w", url, err)
		}
	}
	return nil
}

// run executes actions on tab, bounded by both ctx and the per-action timeout.
func (c *ChromeCapability) run(ctx context.Context, tab chromeTab, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(tab.ctx, chromeActionTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (c *ChromeCapability) closeTabs() {
	for _, tab := range c.tabs {
		tab.cancel()
	}
	c.tabs = nil
	c.active = 0
	c.pendingFind = false
}

func (c *ChromeCapability) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeTabs()
	c.browserCancel()
	c.allocCancel()
	return nil
}
