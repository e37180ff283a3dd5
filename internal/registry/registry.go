// File: internal/registry/registry.go
package registry

import (
	"context"
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/Joakim-Sael/webmcp-bridge/api/schemas"
	"github.com/Joakim-Sael/webmcp-bridge/internal/engine"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Executor runs one tool against a live page and always returns a textual
// outcome.
type Executor interface {
	Execute(ctx context.Context, d engine.PageDriver, tool *schemas.ToolDescriptor, params map[string]any) string
}

// TabHost hands the registrar what it needs from the browser side: a driver
// for the tab a tool was registered for, and the tool names the page itself
// declares.
type TabHost interface {
	Driver(tabID string) (engine.PageDriver, bool)
	DeclaredToolNames(ctx context.Context, tabID string) ([]string, error)
}

// Registrar projects resolved config lists onto an MCP server's tool surface.
// It is the only writer of that surface. Tool names are global on the server
// while registrations are per tab, and two tabs on the same site carry the
// same names, so each name is refcounted across its holding tabs: the server
// entry appears when the first tab claims the name and disappears only when
// the last holder releases it.
type Registrar struct {
	server   *mcp.Server
	host     TabHost
	executor Executor
	logger   *zap.Logger

	// atomicReplace selects replace-everything delivery; otherwise stale names
	// are removed before the new set is added.
	atomicReplace bool

	mu         sync.Mutex
	registered map[string]map[string]struct{}
	// holders maps a tool name to every tab that currently lists it, with the
	// descriptor that tab registered. owner is the tab whose handler is live
	// on the server for the name.
	holders map[string]map[string]schemas.ToolDescriptor
	owner   map[string]string
}

func NewRegistrar(server *mcp.Server, host TabHost, executor Executor, atomicReplace bool, logger *zap.Logger) *Registrar {
	return &Registrar{
		server:        server,
		host:          host,
		executor:      executor,
		logger:        logger.Named("registry"),
		atomicReplace: atomicReplace,
		registered:    make(map[string]map[string]struct{}),
		holders:       make(map[string]map[string]schemas.ToolDescriptor),
		owner:         make(map[string]string),
	}
}

// Apply replaces the tab's registered tool set with the executable tools in
// configs. Applying an identical list twice is a no-op at the server level,
// and a name another tab already serves is shared rather than re-added.
func (r *Registrar) Apply(ctx context.Context, tabID string, configs []schemas.ToolConfig) error {
	pageNative, err := r.pageDeclared(ctx, tabID)
	if err != nil {
		// A page that cannot be asked yet declares nothing.
		r.logger.Debug("Page-declared tool query failed.",
			zap.String("tab_id", tabID),
			zap.Error(err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]struct{})
	var tools []schemas.ToolDescriptor
	for _, cfg := range configs {
		for _, tool := range cfg.Tools {
			if !tool.Executable() {
				continue
			}
			if _, dup := next[tool.Name]; dup {
				continue
			}
			if _, native := pageNative[tool.Name]; native {
				r.logger.Info("Skipping tool shadowed by a page-declared tool.",
					zap.String("tab_id", tabID),
					zap.String("tool", tool.Name))
				continue
			}
			next[tool.Name] = struct{}{}
			tools = append(tools, tool)
		}
	}

	prev := r.registered[tabID]

	if r.atomicReplace {
		// Replace in one pass under the lock: claim the full new set, then
		// release everything that fell out of it.
		for _, tool := range tools {
			r.claim(tabID, tool)
		}
		r.releaseStale(tabID, prev, next)
	} else {
		r.releaseStale(tabID, prev, next)
		for _, tool := range tools {
			r.claim(tabID, tool)
		}
	}

	if len(next) == 0 {
		delete(r.registered, tabID)
	} else {
		r.registered[tabID] = next
	}
	r.logger.Debug("Tool set applied.",
		zap.String("tab_id", tabID),
		zap.Int("tools", len(next)))
	return nil
}

// Drop releases every tool registered for a closed tab. Names other tabs
// still hold stay live on the server.
func (r *Registrar) Drop(_ context.Context, tabID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.registered[tabID]
	if len(prev) == 0 {
		delete(r.registered, tabID)
		return nil
	}
	r.releaseStale(tabID, prev, nil)
	delete(r.registered, tabID)
	r.logger.Debug("Tab tools dropped.",
		zap.String("tab_id", tabID),
		zap.Int("tools", len(prev)))
	return nil
}

// RegisteredNames snapshots the names currently registered for a tab.
func (r *Registrar) RegisteredNames(tabID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.registered[tabID]))
	for name := range r.registered[tabID] {
		names = append(names, name)
	}
	return names
}

// claim records tabID as a holder of the tool's name. The server handler is
// installed when the tab is the first holder or already owns the name; a tab
// joining a name another tab serves keeps the existing registration instead
// of clobbering it. Callers hold the lock.
func (r *Registrar) claim(tabID string, tool schemas.ToolDescriptor) {
	name := tool.Name
	h := r.holders[name]
	if h == nil {
		h = make(map[string]schemas.ToolDescriptor)
		r.holders[name] = h
	}
	_, had := h[tabID]
	h[tabID] = tool

	owner, live := r.owner[name]
	if !live || owner == tabID {
		r.server.AddTool(r.mcpTool(tool), r.handler(tabID, tool))
		r.owner[name] = tabID
		return
	}
	if !had {
		r.logger.Info("Tool name already registered by another tab; sharing its registration.",
			zap.String("tab_id", tabID),
			zap.String("tool", name),
			zap.String("serving_tab", owner))
	}
}

// releaseStale releases every name in prev absent from next and unregisters
// the ones whose last holder just left. Callers hold the lock.
func (r *Registrar) releaseStale(tabID string, prev, next map[string]struct{}) {
	var remove []string
	for name := range prev {
		if _, keep := next[name]; keep {
			continue
		}
		if r.release(tabID, name) {
			remove = append(remove, name)
		}
	}
	if len(remove) > 0 {
		r.server.RemoveTools(remove...)
	}
}

// release drops tabID from a name's holder set and reports whether the name
// should leave the server. When the departing tab owned the live handler and
// other holders remain, the registration is handed to one of them so the name
// keeps working. Callers hold the lock.
func (r *Registrar) release(tabID, name string) (unregister bool) {
	h := r.holders[name]
	delete(h, tabID)
	if len(h) == 0 {
		delete(r.holders, name)
		delete(r.owner, name)
		return true
	}
	if r.owner[name] == tabID {
		for survivor, tool := range h {
			r.server.AddTool(r.mcpTool(tool), r.handler(survivor, tool))
			r.owner[name] = survivor
			r.logger.Debug("Tool registration handed to surviving tab.",
				zap.String("tool", name),
				zap.String("tab_id", survivor))
			break
		}
	}
	return false
}

// pageDeclared collects the page-native tool name set for a tab.
func (r *Registrar) pageDeclared(ctx context.Context, tabID string) (map[string]struct{}, error) {
	names, err := r.host.DeclaredToolNames(ctx, tabID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set, nil
}

// mcpTool shapes a config tool descriptor into the SDK's tool form.
func (r *Registrar) mcpTool(tool schemas.ToolDescriptor) *mcp.Tool {
	out := &mcp.Tool{
		Name:        tool.Name,
		Description: tool.Description,
		InputSchema: inputSchema(tool),
	}
	if ann := tool.Annotations; ann != nil {
		out.Annotations = &mcp.ToolAnnotations{
			Title:           ann.Title,
			ReadOnlyHint:    ann.ReadOnlyHint,
			DestructiveHint: boolPtr(ann.DestructiveHint),
			IdempotentHint:  ann.IdempotentHint,
		}
	}
	return out
}

// inputSchema returns the tool's declared schema, or a permissive object
// schema when the config omitted one.
func inputSchema(tool schemas.ToolDescriptor) map[string]any {
	if len(tool.InputSchema) > 0 {
		return tool.InputSchema
	}
	return map[string]any{"type": "object"}
}

func boolPtr(b bool) *bool {
	return &b
}

// handler binds a tool descriptor to the engine against the tab the tool was
// registered for. Every outcome, including a vanished tab, is a well-formed
// textual result.
func (r *Registrar) handler(tabID string, tool schemas.ToolDescriptor) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var params map[string]any
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
				return textResult(fmt.Sprintf("Tool %q failed: malformed arguments: %v", tool.Name, err)), nil
			}
		}

		driver, ok := r.host.Driver(tabID)
		if !ok {
			return textResult(fmt.Sprintf("Tool %q failed: its tab is gone.", tool.Name)), nil
		}

		if req.Session != nil {
			ctx = withSession(ctx, req.Session)
		}
		return textResult(r.executor.Execute(ctx, driver, &tool, params)), nil
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
