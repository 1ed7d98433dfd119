package engine

import (
	"fmt"

	"moxxy-bridge/internal/browser"
)

// resolveRef maps a reference number back to a live element. The stored
// descriptor is re-queried against the page at use time, never cached as a
// handle, since the DOM may have mutated since the snapshot.
//
// Ambiguity ladder: partial role+name match first; on multiple hits retry
// with exact-name matching; if that does not narrow to one, fall back to the
// first match in document order. The fallback is best-effort targeting, not
// guaranteed-unique.
func (e *Engine) resolveRef(page browser.Page, ref int) (browser.Element, error) {
	desc, ok := e.session.ResolveRef(ref)
	if !ok {
		return nil, staleRefErrf("Ref [%d] not found. Take a new snapshot first.", ref)
	}

	els, err := page.ElementsByRole(desc.Role, desc.Name, false)
	if err != nil {
		return nil, &ActionError{
			Kind:    KindDriver,
			Message: fmt.Sprintf("Error finding element [%d]: %v", ref, err),
		}
	}

	switch len(els) {
	case 0:
		return nil, notFoundErrf("Element [%d] (%s %q) no longer found on page.", ref, desc.Role, desc.Name)
	case 1:
		return els[0], nil
	}

	exact, err := page.ElementsByRole(desc.Role, desc.Name, true)
	if err == nil && len(exact) == 1 {
		return exact[0], nil
	}
	return els[0], nil
}
