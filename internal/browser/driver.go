// Package browser owns the automation-driver capability and the session
// state tracked on top of it: the browser handle, the tab set, the current
// tab, the reference table, and the idle-activity timestamp.
package browser

import (
	"context"
	"time"

	"moxxy-bridge/internal/snapshot"
)

// Driver is the capability the bridge needs from a browser engine. The
// engine consumes it as an opaque dependency; the only production
// implementation wraps Rod, and tests substitute fakes.
type Driver interface {
	// Start launches or connects to the browser. Calling Start on a
	// healthy driver is a no-op.
	Start(ctx context.Context) error
	// NewPage opens a fresh isolated browsing context carrying the
	// bridge's identifying user agent, with one blank page in it.
	NewPage(ctx context.Context) (Page, error)
	// Close tears the browser down. Best-effort and idempotent.
	Close() error
}

// Page is one live browsing tab.
type Page interface {
	Navigate(url string, timeout time.Duration) error
	Back(timeout time.Duration) error
	Forward(timeout time.Duration) error

	// Title and URL describe the current document. Title may fail when
	// the underlying target has gone away.
	Title() (string, error)
	URL() string

	// AXTree reads the full accessibility tree rooted at the document.
	// A nil root with a nil error means the page exposes no tree.
	AXTree() (*snapshot.Node, error)

	// ElementsByRole returns live elements matching role and accessible
	// name, in document order. Non-exact matching is case-insensitive
	// substring matching on the name.
	ElementsByRole(role, name string, exact bool) ([]Element, error)

	// Eval runs script in page context and returns the serialized result.
	Eval(js string) (string, error)

	// TypeText simulates keystroke-by-keystroke input into the focused
	// element.
	TypeText(text string) error

	// Screenshot captures the current viewport as PNG bytes.
	Screenshot() ([]byte, error)

	Close() error
}

// Element is a short-lived handle to one resolved page element. Handles are
// re-queried at use time and never retained across actions, since the DOM
// may mutate between snapshot and use.
type Element interface {
	Click(timeout time.Duration) error
	Fill(text string, timeout time.Duration) error
	ScrollIntoView(timeout time.Duration) error
}
