// File: internal/navigation/coordinator_test.go
package navigation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/Joakim-Sael/webmcp-bridge/api/schemas"
	"github.com/Joakim-Sael/webmcp-bridge/internal/lookup"
)

// fakeClient serves canned configs per domain and can hold calls open to
// simulate slow lookups.
type fakeClient struct {
	mu       sync.Mutex
	byDomain map[string][]schemas.ToolConfig
	err      error
	calls    []string
	// gate, when non-nil, blocks the next call until released.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeClient) Lookup(_ context.Context, domain, path string, _ lookup.Options) ([]schemas.ToolConfig, error) {
	f.mu.Lock()
	f.calls = append(f.calls, domain+path)
	gate := f.gate
	entered := f.entered
	f.gate = nil
	f.entered = nil
	f.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if gate != nil {
		<-gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.byDomain[domain], nil
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeRegistrar records Apply and Drop calls.
type fakeRegistrar struct {
	mu      sync.Mutex
	applies []appliedSet
	drops   []string
}

type appliedSet struct {
	tabID   string
	configs []schemas.ToolConfig
}

func (f *fakeRegistrar) Apply(_ context.Context, tabID string, configs []schemas.ToolConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applies = append(f.applies, appliedSet{tabID: tabID, configs: configs})
	return nil
}

func (f *fakeRegistrar) Drop(_ context.Context, tabID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drops = append(f.drops, tabID)
	return nil
}

func (f *fakeRegistrar) lastApplied(t *testing.T) appliedSet {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.applies)
	return f.applies[len(f.applies)-1]
}

func (f *fakeRegistrar) applyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applies)
}

// fakeSessions is an in-memory SessionWriter.
type fakeSessions struct {
	mu      sync.Mutex
	entries map[string]schemas.TabSession
	deletes []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{entries: make(map[string]schemas.TabSession)}
}

func (f *fakeSessions) PutTabSession(tabID string, entry schemas.TabSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[tabID] = entry
	return nil
}

func (f *fakeSessions) DeleteTabSession(tabID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, tabID)
	f.deletes = append(f.deletes, tabID)
}

func (f *fakeSessions) get(tabID string) (schemas.TabSession, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[tabID]
	return e, ok
}

func configsFor(domain string, names ...string) []schemas.ToolConfig {
	tools := make([]schemas.ToolDescriptor, 0, len(names))
	for _, n := range names {
		tools = append(tools, schemas.ToolDescriptor{
			Name:      n,
			Execution: &schemas.ExecutionDescriptor{Steps: []schemas.ActionStep{{Action: schemas.StepExtract, Selector: "#x"}}},
		})
	}
	return []schemas.ToolConfig{{ID: domain + "-cfg", Domain: domain, Tools: tools}}
}

func newTestCoordinator(client *fakeClient) (*Coordinator, *fakeRegistrar, *fakeSessions) {
	reg := &fakeRegistrar{}
	sessions := newFakeSessions()
	c := NewCoordinator(context.Background(), client, sessions, reg, zap.NewNop())
	return c, reg, sessions
}

func TestRepeatedInPageNavigationTriggersZeroLookups(t *testing.T) {
	client := &fakeClient{byDomain: map[string][]schemas.ToolConfig{
		"example.com": configsFor("example.com", "search"),
	}}
	c, _, _ := newTestCoordinator(client)

	c.OnNavigated("tab1", "https://www.example.com/items", false)
	require.Equal(t, 1, client.callCount())

	c.OnNavigated("tab1", "https://example.com/items?page=2", true)
	c.OnNavigated("tab1", "https://example.com/items#anchor", true)
	assert.Equal(t, 1, client.callCount(), "identical normalized URL must not re-trigger lookup")
}

func TestFullNavigationResetsDedup(t *testing.T) {
	client := &fakeClient{byDomain: map[string][]schemas.ToolConfig{}}
	c, _, _ := newTestCoordinator(client)

	c.OnNavigated("tab1", "https://example.com/items", false)
	c.OnNavigated("tab1", "https://example.com/items", false)
	assert.Equal(t, 2, client.callCount(), "a full reload must always look up again")
}

func TestStaleLookupResultIsDiscarded(t *testing.T) {
	client := &fakeClient{
		byDomain: map[string][]schemas.ToolConfig{
			"slow.example":  configsFor("slow.example", "old_tool"),
			"fresh.example": configsFor("fresh.example", "new_tool"),
		},
		gate:    make(chan struct{}),
		entered: make(chan struct{}),
	}
	c, reg, sessions := newTestCoordinator(client)

	// Lookup nils out the gate/entered fields once consumed, so keep handles.
	gate, entered := client.gate, client.entered
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.OnNavigated("tab1", "https://slow.example/a", false)
	}()
	<-entered

	// A newer navigation lands while the first lookup is still in flight.
	c.OnNavigated("tab1", "https://fresh.example/b", false)
	entry, ok := sessions.get("tab1")
	require.True(t, ok)
	require.Equal(t, "fresh.example", entry.Domain)

	// Release the stale lookup; its result must change nothing.
	close(gate)
	<-done

	entry, _ = sessions.get("tab1")
	assert.Equal(t, "fresh.example", entry.Domain)
	assert.Equal(t, 1, reg.applyCount())
	assert.Equal(t, "new_tool", reg.lastApplied(t).configs[0].Tools[0].Name)
}

func TestZeroConfigSameDomainPreservesTools(t *testing.T) {
	client := &fakeClient{byDomain: map[string][]schemas.ToolConfig{
		"example.com": configsFor("example.com", "search"),
	}}
	c, reg, sessions := newTestCoordinator(client)

	c.OnNavigated("tab1", "https://example.com/", false)
	require.Equal(t, 1, reg.applyCount())
	before, _ := sessions.get("tab1")

	// Same domain, different path, no path-specific config this time.
	client.mu.Lock()
	client.byDomain["example.com"] = nil
	client.mu.Unlock()
	c.OnNavigated("tab1", "https://example.com/transient", true)

	assert.Equal(t, 1, reg.applyCount(), "zero configs on an unchanged domain must not clear tools")
	after, _ := sessions.get("tab1")
	assert.Equal(t, before.Timestamp, after.Timestamp, "session entry must remain untouched")
}

func TestZeroConfigDomainChangeClearsTools(t *testing.T) {
	client := &fakeClient{byDomain: map[string][]schemas.ToolConfig{
		"example.com": configsFor("example.com", "search"),
	}}
	c, reg, sessions := newTestCoordinator(client)

	c.OnNavigated("tab1", "https://example.com/", false)
	c.OnNavigated("tab1", "https://other.test/", false)

	require.Equal(t, 2, reg.applyCount())
	last := reg.lastApplied(t)
	assert.Empty(t, last.configs, "domain change with zero configs must send an empty set")
	entry, ok := sessions.get("tab1")
	require.True(t, ok)
	assert.Equal(t, "other.test", entry.Domain)
}

func TestLookupErrorLeavesStateUntouched(t *testing.T) {
	client := &fakeClient{byDomain: map[string][]schemas.ToolConfig{
		"example.com": configsFor("example.com", "search"),
	}}
	c, reg, sessions := newTestCoordinator(client)

	c.OnNavigated("tab1", "https://example.com/", false)
	require.Equal(t, 1, reg.applyCount())

	client.mu.Lock()
	client.err = errors.New("hub unreachable")
	client.mu.Unlock()
	c.OnNavigated("tab1", "https://example.com/next", true)

	assert.Equal(t, 1, reg.applyCount())
	entry, ok := sessions.get("tab1")
	require.True(t, ok)
	assert.Equal(t, "example.com", entry.Domain)
}

func TestMalformedURLIsIsolated(t *testing.T) {
	client := &fakeClient{}
	c, _, _ := newTestCoordinator(client)

	c.OnNavigated("tab1", "chrome://settings", false)
	c.OnNavigated("tab1", "about:blank", false)
	c.OnNavigated("tab1", "::not a url::", false)

	assert.Zero(t, client.callCount())
}

func TestTabCloseClearsEverything(t *testing.T) {
	client := &fakeClient{byDomain: map[string][]schemas.ToolConfig{
		"example.com": configsFor("example.com", "search"),
	}}
	c, reg, sessions := newTestCoordinator(client)

	c.OnNavigated("tab1", "https://example.com/", false)
	c.OnTabClosed("tab1")

	_, ok := sessions.get("tab1")
	assert.False(t, ok)
	assert.Equal(t, []string{"tab1"}, reg.drops)

	// A reopened tab with the same id starts from scratch.
	c.OnNavigated("tab1", "https://example.com/", true)
	assert.Equal(t, 2, client.callCount())
}

func TestTabsAreIsolated(t *testing.T) {
	client := &fakeClient{byDomain: map[string][]schemas.ToolConfig{
		"a.test": configsFor("a.test", "one"),
		"b.test": configsFor("b.test", "two"),
	}}
	c, reg, sessions := newTestCoordinator(client)

	c.OnNavigated("tab1", "https://a.test/", false)
	c.OnNavigated("tab2", "https://b.test/", false)

	require.Equal(t, 2, reg.applyCount())
	e1, _ := sessions.get("tab1")
	e2, _ := sessions.get("tab2")
	assert.Equal(t, "a.test", e1.Domain)
	assert.Equal(t, "b.test", e2.Domain)
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantDomain string
		wantPath   string
		wantErr    bool
	}{
		{"strips www", "https://www.example.com/a", "example.com", "/a", false},
		{"drops default https port", "https://example.com:443/a", "example.com", "/a", false},
		{"drops default http port", "http://example.com:80/", "example.com", "/", false},
		{"keeps non-default port", "https://example.com:8443/a", "example.com:8443", "/a", false},
		{"drops query and fragment", "https://example.com/a?q=1#frag", "example.com", "/a", false},
		{"empty path becomes slash", "https://example.com", "example.com", "/", false},
		{"lowercases host", "https://EXAMPLE.com/A", "example.com", "/A", false},
		{"rejects chrome scheme", "chrome://settings", "", "", true},
		{"rejects hostless", "https:///nope", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			domain, path, err := normalizeURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDomain, domain)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestConcurrentNavigationAcrossTabs(t *testing.T) {
	defer goleak.VerifyNone(t)

	client := &fakeClient{byDomain: map[string][]schemas.ToolConfig{
		"a.test": configsFor("a.test", "one"),
		"b.test": configsFor("b.test", "two"),
		"c.test": configsFor("c.test", "three"),
	}}
	c, _, sessions := newTestCoordinator(client)

	var wg sync.WaitGroup
	for _, tab := range []string{"tab-a", "tab-b", "tab-c"} {
		for _, domain := range []string{"a.test", "b.test", "c.test"} {
			wg.Add(1)
			go func(tab, domain string) {
				defer wg.Done()
				c.OnNavigated(tab, "https://"+domain+"/", false)
			}(tab, domain)
		}
	}
	wg.Wait()

	// Every tab settled on whichever navigation won its sequence race, and each
	// session entry is internally consistent.
	for _, tab := range []string{"tab-a", "tab-b", "tab-c"} {
		entry, ok := sessions.get(tab)
		require.True(t, ok, "tab %s should have a session entry", tab)
		assert.Contains(t, []string{"a.test", "b.test", "c.test"}, entry.Domain)
		require.Len(t, entry.Configs, 1)
		assert.Equal(t, entry.Domain, entry.Configs[0].Domain)
	}
}

func TestStaleLookupNeverWritesSession(t *testing.T) {
	// Sanity check on timing independence: the stale write is rejected by the
	// sequence fence even when it finishes well after the fresh one.
	client := &fakeClient{
		byDomain: map[string][]schemas.ToolConfig{"slow.example": configsFor("slow.example", "old")},
		gate:     make(chan struct{}),
		entered:  make(chan struct{}),
	}
	c, _, sessions := newTestCoordinator(client)

	// Lookup nils out the gate/entered fields once consumed, so keep handles.
	gate, entered := client.gate, client.entered
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.OnNavigated("tab1", "https://slow.example/", false)
	}()
	<-entered
	c.OnNavigated("tab1", "https://fresh.example/", false)

	time.Sleep(10 * time.Millisecond)
	close(gate)
	<-done

	entry, ok := sessions.get("tab1")
	require.True(t, ok)
	assert.NotEqual(t, "slow.example", entry.Domain)
}
