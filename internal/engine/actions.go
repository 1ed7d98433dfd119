package engine

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"moxxy-bridge/internal/browser"
	"moxxy-bridge/internal/snapshot"
)

// actionSpec is one row of the static action table: minimum argument count,
// the message reported when arguments are missing, and the handler.
type actionSpec struct {
	minArgs  int
	arityMsg string
	run      func(e *Engine, ctx context.Context, args []string) (string, error)
}

// actionOrder fixes the listing order in validation errors and the MCP tool
// registry.
var actionOrder = []string{
	"navigate", "snapshot", "click", "type", "screenshot",
	"scroll", "evaluate", "back", "forward", "tabs", "close", "wait",
}

var actionTable = map[string]actionSpec{
	"navigate":   {1, "navigate requires a URL", (*Engine).actionNavigate},
	"snapshot":   {0, "", (*Engine).actionSnapshot},
	"click":      {1, "click requires a ref number", (*Engine).actionClick},
	"type":       {2, "type requires ref and text", (*Engine).actionType},
	"screenshot": {0, "", (*Engine).actionScreenshot},
	"scroll":     {0, "", (*Engine).actionScroll},
	"evaluate":   {1, "evaluate requires JavaScript code", (*Engine).actionEvaluate},
	"back":       {0, "", (*Engine).actionBack},
	"forward":    {0, "", (*Engine).actionForward},
	"tabs":       {0, "", (*Engine).actionTabs},
	"close":      {0, "", (*Engine).actionClose},
	"wait":       {0, "", (*Engine).actionWait},
}

// Actions lists the supported action names in stable order.
func Actions() []string {
	out := make([]string, len(actionOrder))
	copy(out, actionOrder)
	return out
}

// Validate checks the action name against the registered table and the
// argument arity, without dispatching anything.
func Validate(action string, args []string) error {
	spec, ok := actionTable[action]
	if !ok {
		return validationErrf("Unknown action: %s. Available: %s", action, strings.Join(actionOrder, ", "))
	}
	if len(args) < spec.minArgs {
		return validationErrf("%s", spec.arityMsg)
	}
	return nil
}

func (e *Engine) actionNavigate(ctx context.Context, args []string) (string, error) {
	url := args[0]
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	page, err := e.session.CurrentPage(ctx)
	if err != nil {
		return "", actionFailure("Browser startup failed", err)
	}
	if err := page.Navigate(url, e.timeouts.Navigate); err != nil {
		return "", actionFailure("Navigation failed", err)
	}
	// Give JS a moment to render before snapshotting.
	e.sleep(ctx, e.timeouts.NavigateSettle)
	return e.takeSnapshot(page), nil
}

func (e *Engine) actionSnapshot(ctx context.Context, _ []string) (string, error) {
	page, err := e.session.CurrentPage(ctx)
	if err != nil {
		return "", actionFailure("Browser startup failed", err)
	}
	return e.takeSnapshot(page), nil
}

func (e *Engine) actionClick(ctx context.Context, args []string) (string, error) {
	ref, err := strconv.Atoi(args[0])
	if err != nil {
		return "", validationErrf("Invalid ref: %s", args[0])
	}

	page, err := e.session.CurrentPage(ctx)
	if err != nil {
		return "", actionFailure("Browser startup failed", err)
	}
	el, err := e.resolveRef(page, ref)
	if err != nil {
		return "", err
	}
	if err := el.Click(e.timeouts.Click); err != nil {
		return "", actionFailure("Click failed", err)
	}
	e.sleep(ctx, e.timeouts.ClickSettle)
	return fmt.Sprintf("Clicked [%d].\n\n%s", ref, e.takeSnapshot(page)), nil
}

func (e *Engine) actionType(ctx context.Context, args []string) (string, error) {
	ref, err := strconv.Atoi(args[0])
	if err != nil {
		return "", validationErrf("Invalid ref: %s", args[0])
	}
	text := args[1]

	page, err := e.session.CurrentPage(ctx)
	if err != nil {
		return "", actionFailure("Browser startup failed", err)
	}
	el, err := e.resolveRef(page, ref)
	if err != nil {
		return "", err
	}

	if err := el.Fill(text, e.timeouts.Fill); err == nil {
		return fmt.Sprintf("Typed %q into [%d].", text, ref), nil
	}

	// Direct fill can fail on custom widgets: focus the element with a
	// click, then feed the text keystroke by keystroke.
	if err := el.Click(e.timeouts.FallbackClick); err != nil {
		return "", actionFailure("Type failed", err)
	}
	if err := page.TypeText(text); err != nil {
		return "", actionFailure("Type failed", err)
	}
	return fmt.Sprintf("Typed %q into [%d] (via keyboard).", text, ref), nil
}

func (e *Engine) actionScreenshot(ctx context.Context, _ []string) (string, error) {
	page, err := e.session.CurrentPage(ctx)
	if err != nil {
		return "", actionFailure("Browser startup failed", err)
	}
	data, err := page.Screenshot()
	if err != nil {
		return "", actionFailure("Screenshot failed", err)
	}

	f, err := os.CreateTemp(e.screenshotDir, "moxxy_screenshot_*.png")
	if err != nil {
		return "", actionFailure("Screenshot failed", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", actionFailure("Screenshot failed", err)
	}
	if err := f.Close(); err != nil {
		return "", actionFailure("Screenshot failed", err)
	}
	return "Screenshot saved to: " + f.Name(), nil
}

var scrollScripts = map[string]string{
	"down":   "window.scrollBy(0, window.innerHeight)",
	"up":     "window.scrollBy(0, -window.innerHeight)",
	"top":    "window.scrollTo(0, 0)",
	"bottom": "window.scrollTo(0, document.body.scrollHeight)",
}

func (e *Engine) actionScroll(ctx context.Context, args []string) (string, error) {
	direction := "down"
	if len(args) > 0 {
		direction = args[0]
	}

	page, err := e.session.CurrentPage(ctx)
	if err != nil {
		return "", actionFailure("Browser startup failed", err)
	}

	if js, ok := scrollScripts[direction]; ok {
		if _, err := page.Eval(js); err != nil {
			return "", actionFailure("Scroll failed", err)
		}
	} else {
		// An integer direction is a ref: bring that element into view.
		ref, convErr := strconv.Atoi(direction)
		if convErr != nil {
			return "", validationErrf("Unknown scroll direction: %s", direction)
		}
		el, err := e.resolveRef(page, ref)
		if err != nil {
			return "", err
		}
		if err := el.ScrollIntoView(e.timeouts.Scroll); err != nil {
			return "", actionFailure("Scroll failed", err)
		}
	}

	e.sleep(ctx, e.timeouts.ScrollSettle)
	return fmt.Sprintf("Scrolled %s.\n\n%s", direction, e.takeSnapshot(page)), nil
}

func (e *Engine) actionEvaluate(ctx context.Context, args []string) (string, error) {
	page, err := e.session.CurrentPage(ctx)
	if err != nil {
		return "", actionFailure("Browser startup failed", err)
	}
	result, err := page.Eval(args[0])
	if err != nil {
		return "", actionFailure("JS evaluation failed", err)
	}
	return result, nil
}

func (e *Engine) actionBack(ctx context.Context, _ []string) (string, error) {
	page, err := e.session.CurrentPage(ctx)
	if err != nil {
		return "", actionFailure("Browser startup failed", err)
	}
	if err := page.Back(e.timeouts.History); err != nil {
		return "", actionFailure("Back navigation failed", err)
	}
	e.sleep(ctx, e.timeouts.HistorySettle)
	return "Navigated back.\n\n" + e.takeSnapshot(page), nil
}

func (e *Engine) actionForward(ctx context.Context, _ []string) (string, error) {
	page, err := e.session.CurrentPage(ctx)
	if err != nil {
		return "", actionFailure("Browser startup failed", err)
	}
	if err := page.Forward(e.timeouts.History); err != nil {
		return "", actionFailure("Forward navigation failed", err)
	}
	e.sleep(ctx, e.timeouts.HistorySettle)
	return "Navigated forward.\n\n" + e.takeSnapshot(page), nil
}

func (e *Engine) actionTabs(_ context.Context, _ []string) (string, error) {
	tabs := e.session.Tabs()
	lines := make([]string, 0, len(tabs))
	for i, tab := range tabs {
		marker := ""
		if tab.Current {
			marker = " *"
		}
		title, err := tab.Page.Title()
		url := tab.Page.URL()
		if err != nil {
			// The underlying target can vanish out from under us.
			title = "(closed)"
			url = ""
		}
		lines = append(lines, fmt.Sprintf("  [%d] %s -- %s%s", i, title, url, marker))
	}
	return "Open tabs:\n" + strings.Join(lines, "\n"), nil
}

func (e *Engine) actionClose(_ context.Context, _ []string) (string, error) {
	closed, next := e.session.CloseCurrent()
	if !closed {
		return "No tab to close.", nil
	}
	if next != nil {
		return "Tab closed. Switched to another tab.\n\n" + e.takeSnapshot(next), nil
	}
	return "Tab closed. No tabs remaining.", nil
}

func (e *Engine) actionWait(ctx context.Context, args []string) (string, error) {
	d := e.timeouts.WaitDefault
	if len(args) > 0 {
		// An unparsable argument keeps the default rather than failing.
		if ms, err := strconv.Atoi(args[0]); err == nil {
			d = time.Duration(ms) * time.Millisecond
		}
	}
	if d > e.timeouts.WaitCap {
		d = e.timeouts.WaitCap
	}

	if _, err := e.session.CurrentPage(ctx); err != nil {
		return "", actionFailure("Browser startup failed", err)
	}
	e.sleep(ctx, d)
	return fmt.Sprintf("Waited %dms.", d.Milliseconds()), nil
}

// takeSnapshot rebuilds the reference table from the page's accessibility
// tree and renders the numbered text block. The old table is voided up
// front, so references never outlive the snapshot that issued them, even
// when the rebuild fails.
func (e *Engine) takeSnapshot(page browser.Page) string {
	e.session.SetRefs(nil)

	tree, err := page.AXTree()
	if err != nil {
		return fmt.Sprintf("Error taking snapshot: %v", err)
	}
	if tree == nil {
		return snapshot.EmptyTreeMessage
	}

	text, refs := snapshot.Build(tree)
	e.session.SetRefs(refs)

	title, err := page.Title()
	if err != nil {
		return fmt.Sprintf("Error taking snapshot: %v", err)
	}
	header := snapshot.Header(title, page.URL())
	if text == "" {
		return header + snapshot.NoContentMessage
	}
	return header + text
}
