// File: internal/registry/gate.go
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

type sessionKey struct{}

// withSession stashes the calling MCP session so the confirmation gate can
// reach back to the client that invoked the tool.
func withSession(ctx context.Context, ss *mcp.ServerSession) context.Context {
	return context.WithValue(ctx, sessionKey{}, ss)
}

func sessionFrom(ctx context.Context) *mcp.ServerSession {
	ss, _ := ctx.Value(sessionKey{}).(*mcp.ServerSession)
	return ss
}

// ElicitGate asks the invoking client for approval through MCP elicitation.
// Without a session, or when the client declines to answer, the gate refuses:
// destructive tools never run unattended.
type ElicitGate struct {
	logger *zap.Logger
}

func NewElicitGate(logger *zap.Logger) *ElicitGate {
	return &ElicitGate{logger: logger.Named("confirmation")}
}

func (g *ElicitGate) Confirm(ctx context.Context, toolName, message string) (bool, error) {
	ss := sessionFrom(ctx)
	if ss == nil {
		g.logger.Warn("No session to confirm destructive tool with.",
			zap.String("tool", toolName))
		return false, errors.New("no interactive session available")
	}

	res, err := ss.Elicit(ctx, &mcp.ElicitParams{
		Message: fmt.Sprintf("Tool %q is marked destructive. %s", toolName, message),
	})
	if err != nil {
		return false, fmt.Errorf("elicitation failed: %w", err)
	}
	approved := res.Action == "accept"
	g.logger.Info("Destructive tool confirmation answered.",
		zap.String("tool", toolName),
		zap.Bool("approved", approved))
	return approved, nil
}
