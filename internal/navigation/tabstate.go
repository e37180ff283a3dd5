// File: internal/navigation/tabstate.go
package navigation

import "sync"

// tabState is the coordinator's per-tab tracking record.
type tabState struct {
	// dedupKey is the last normalized URL processed for the tab.
	dedupKey string
	// seq increments on every accepted navigation; lookups completing under an
	// older value are stale.
	seq uint64
	// domain is the host the currently registered tools were fetched for.
	domain string
}

// TabStates is the keyed per-tab state store. A record is created on the
// tab's first navigation event and destroyed when the tab closes.
type TabStates struct {
	mu   sync.Mutex
	tabs map[string]*tabState
}

func NewTabStates() *TabStates {
	return &TabStates{tabs: make(map[string]*tabState)}
}

// Begin records a navigation for a tab. A full-page navigation first resets
// the dedup key and registered-domain tracking, guaranteeing a lookup even
// when the URL repeats. Returns the assigned sequence number and whether the
// caller should proceed; proceed is false when the key matches the last
// processed URL.
func (t *TabStates) Begin(tabID, key string, fullPage bool) (seq uint64, proceed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.tabs[tabID]
	if !ok {
		st = &tabState{}
		t.tabs[tabID] = st
	}
	if fullPage {
		st.dedupKey = ""
		st.domain = ""
	}
	if key == st.dedupKey {
		return 0, false
	}
	st.dedupKey = key
	st.seq++
	return st.seq, true
}

// Resolve decides whether a completed lookup may be applied. Stale sequence
// numbers (a newer navigation superseded the call, or the tab closed) are
// discarded. An empty result for the domain already registered is suppressed
// so same-domain transitions without a path-specific config keep their tools.
// When Resolve returns true the registered domain has been updated to domain.
func (t *TabStates) Resolve(tabID string, seq uint64, domain string, haveConfigs bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.tabs[tabID]
	if !ok || st.seq != seq {
		return false
	}
	if !haveConfigs && st.domain == domain {
		return false
	}
	st.domain = domain
	return true
}

// Remove drops all tracking for a closed tab.
func (t *TabStates) Remove(tabID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tabs, tabID)
}
