package browser

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"moxxy-bridge/internal/snapshot"
)

// Tab is lightweight metadata for one tracked browsing context.
type Tab struct {
	ID      string
	Page    Page
	Current bool
}

// Session is the single process-wide automation state: browser handle, tab
// set, current-tab pointer, reference table, and last-activity timestamp.
// Except for the activity timestamp, a Session must only be touched from the
// action engine goroutine; that single-writer discipline is what keeps the
// tab map and reference table safe without locks.
type Session struct {
	driver  Driver
	tabs    map[string]Page
	order   []string // tab insertion order, for deterministic switch-on-close
	current string
	refs    snapshot.Table

	// lastActivity is the one field written on the engine goroutine and
	// read by the watchdog, hence atomic. Unix nanoseconds.
	lastActivity atomic.Int64
}

func NewSession(driver Driver) *Session {
	s := &Session{
		driver: driver,
		tabs:   make(map[string]Page),
		refs:   make(snapshot.Table),
	}
	s.Touch(time.Now())
	return s
}

// Touch records an action attempt. Called on every action, success or not.
func (s *Session) Touch(now time.Time) {
	s.lastActivity.Store(now.UnixNano())
}

// LastActivity returns the time of the most recent action attempt.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// CurrentPage returns the page of the current tab, lazily starting the
// browser and opening a tab when none exists yet.
func (s *Session) CurrentPage(ctx context.Context) (Page, error) {
	if err := s.driver.Start(ctx); err != nil {
		return nil, err
	}

	if s.current == "" || s.tabs[s.current] == nil {
		if _, err := s.OpenTab(ctx); err != nil {
			return nil, err
		}
	}
	return s.tabs[s.current], nil
}

// OpenTab creates a fresh tab and makes it current. Tab identifiers are
// unique for the lifetime of the process.
func (s *Session) OpenTab(ctx context.Context) (Page, error) {
	page, err := s.driver.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	s.tabs[id] = page
	s.order = append(s.order, id)
	s.current = id
	return page, nil
}

// HasCurrentTab reports whether a current tab is set.
func (s *Session) HasCurrentTab() bool {
	return s.current != "" && s.tabs[s.current] != nil
}

// Tabs lists all tracked tabs in insertion order.
func (s *Session) Tabs() []Tab {
	out := make([]Tab, 0, len(s.order))
	for _, id := range s.order {
		page, ok := s.tabs[id]
		if !ok {
			continue
		}
		out = append(out, Tab{ID: id, Page: page, Current: id == s.current})
	}
	return out
}

// CloseCurrent closes the current tab and switches to the most recently
// inserted remaining tab. next is nil when no tabs remain. closed is false
// when there was no current tab to begin with.
func (s *Session) CloseCurrent() (closed bool, next Page) {
	if !s.HasCurrentTab() {
		return false, nil
	}

	page := s.tabs[s.current]
	delete(s.tabs, s.current)
	for i, id := range s.order {
		if id == s.current {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	_ = page.Close()

	if len(s.order) > 0 {
		s.current = s.order[len(s.order)-1]
		return true, s.tabs[s.current]
	}
	s.current = ""
	return true, nil
}

// SetRefs replaces the reference table wholesale. Old references become
// stale; they are never merged into the new table.
func (s *Session) SetRefs(t snapshot.Table) {
	if t == nil {
		t = make(snapshot.Table)
	}
	s.refs = t
}

// ResolveRef looks a reference number up in the current table.
func (s *Session) ResolveRef(ref int) (snapshot.Descriptor, bool) {
	return s.refs.Resolve(ref)
}

// Cleanup closes every tab and the browser. Best-effort: close failures are
// swallowed and the handles cleared regardless, so a second call is a no-op.
func (s *Session) Cleanup() {
	for id, page := range s.tabs {
		_ = page.Close()
		delete(s.tabs, id)
	}
	s.order = nil
	s.current = ""
	s.refs = make(snapshot.Table)
	_ = s.driver.Close()
}
