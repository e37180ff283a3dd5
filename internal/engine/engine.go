// File: internal/engine/engine.go
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Joakim-Sael/webmcp-bridge/api/schemas"
	"github.com/Joakim-Sael/webmcp-bridge/internal/config"
)

// Engine executes tool descriptors against a live page. Every invocation is
// wrapped in a failure boundary: the caller always receives a textual result,
// never a propagated fault.
type Engine struct {
	cfg    config.EngineConfig
	gate   ConfirmationGate
	logger *zap.Logger
}

// New creates an execution engine. gate may be nil; destructive tools are then
// refused outright.
func New(cfg config.EngineConfig, gate ConfirmationGate, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		gate:   gate,
		logger: logger.Named("engine"),
	}
}

// Execute runs one tool invocation and returns the user-visible result text.
func (e *Engine) Execute(ctx context.Context, d PageDriver, tool *schemas.ToolDescriptor, params map[string]any) (result string) {
	invocationID := uuid.New().String()
	log := e.logger.With(
		zap.String("tool", tool.Name),
		zap.String("invocation_id", invocationID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Tool execution panicked.", zap.Any("panic", r))
			result = fmt.Sprintf("Tool %q failed: internal error", tool.Name)
		}
	}()

	if tool.Execution == nil {
		return fmt.Sprintf("Tool %q has no execution body.", tool.Name)
	}

	if isDestructive(tool) {
		approved, err := e.confirm(ctx, tool)
		if err != nil {
			log.Warn("Confirmation gate failed.", zap.Error(err))
			return fmt.Sprintf("Tool %q cancelled: confirmation unavailable.", tool.Name)
		}
		if !approved {
			log.Info("Destructive tool declined by user.")
			return fmt.Sprintf("Tool %q cancelled by user.", tool.Name)
		}
	}

	start := time.Now()
	text, err := e.execute(ctx, d, tool.Execution, params)
	if err != nil {
		log.Warn("Tool execution failed.", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return fmt.Sprintf("Tool %q failed: %v", tool.Name, err)
	}
	log.Debug("Tool execution finished.", zap.Duration("elapsed", time.Since(start)))
	return text
}

func (e *Engine) execute(ctx context.Context, d PageDriver, desc *schemas.ExecutionDescriptor, params map[string]any) (string, error) {
	if desc.MultiStep() {
		last, err := e.runSteps(ctx, d, desc.Steps, params)
		if err != nil {
			return "", err
		}
		if last.null || last.value == "" {
			return "Tool executed successfully.", nil
		}
		return last.value, nil
	}
	return e.runSimple(ctx, d, desc, params)
}

func (e *Engine) confirm(ctx context.Context, tool *schemas.ToolDescriptor) (bool, error) {
	if e.gate == nil {
		return false, nil
	}
	message := fmt.Sprintf("Tool %q is marked destructive. Run it?", tool.Name)
	return e.gate.Confirm(ctx, tool.Name, message)
}

func isDestructive(tool *schemas.ToolDescriptor) bool {
	return tool.Annotations != nil && tool.Annotations.DestructiveHint
}

func durationMs(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
