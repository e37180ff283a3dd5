// File: internal/engine/steps.go
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Joakim-Sael/webmcp-bridge/api/schemas"
)

// stepResult carries the outcome of one step. Null results do not contribute to
// the tool's overall result.
type stepResult struct {
	value string
	null  bool
}

func nullResult() stepResult         { return stepResult{null: true} }
func textResult(v string) stepResult { return stepResult{value: v} }
func errorResult(format string, args ...any) stepResult {
	return stepResult{value: fmt.Sprintf(format, args...)}
}

// runSteps executes an ordered action program sequentially and returns the last
// non-null step result. Per-step failures become textual results; only driver
// faults the interpreter cannot phrase as a step outcome escape as errors.
func (e *Engine) runSteps(ctx context.Context, d PageDriver, steps []schemas.ActionStep, params map[string]any) (stepResult, error) {
	last := nullResult()
	for i := range steps {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		res, err := e.runStep(ctx, d, &steps[i], params)
		if err != nil {
			return last, err
		}
		if !res.null {
			last = res
		}
	}
	return last, nil
}

// runStep dispatches a single step by action kind. Selector and value templates
// are interpolated before the step touches the page.
func (e *Engine) runStep(ctx context.Context, d PageDriver, step *schemas.ActionStep, params map[string]any) (stepResult, error) {
	selector := Interpolate(step.Selector, params)
	log := e.logger.With(zap.String("action", string(step.Action)), zap.String("selector", selector))

	switch step.Action {
	case schemas.StepNavigate:
		target := Interpolate(step.Value, params)
		if err := d.Navigate(ctx, target); err != nil {
			return errorResult("Error: navigation to %q failed: %v", target, err), nil
		}
		// Navigation tears down the execution context; nothing to await.
		return nullResult(), nil

	case schemas.StepClick:
		if err := d.Click(ctx, selector, e.clickReadyTimeout(step)); err != nil {
			log.Debug("Click step failed.", zap.Error(err))
			return errorResult("Error: could not click %q: %v", selector, err), nil
		}
		return nullResult(), nil

	case schemas.StepFill, schemas.StepSelect:
		value := Interpolate(step.Value, params)
		if err := d.Fill(ctx, selector, value); err != nil {
			log.Debug("Fill step failed.", zap.Error(err))
			return errorResult("Error: could not fill %q: %v", selector, err), nil
		}
		return nullResult(), nil

	case schemas.StepWait:
		timeout := e.stepTimeout(step)
		satisfied, err := d.WaitFor(ctx, selector, ParseWaitState(step.State), timeout)
		if err != nil {
			return nullResult(), err
		}
		if !satisfied {
			// Soft timeout: a slow page must not abort the whole tool.
			log.Debug("Wait step timed out.", zap.Duration("timeout", timeout))
		}
		return nullResult(), nil

	case schemas.StepExtract:
		spec := extractSpecFor(step, selector)
		spec.Selector = Interpolate(spec.Selector, params)
		value, err := d.Extract(ctx, spec)
		if err != nil {
			return errorResult("Error: could not extract from %q: %v", spec.Selector, err), nil
		}
		return textResult(value), nil

	case schemas.StepScroll:
		if err := d.Scroll(ctx, selector); err != nil {
			return errorResult("Error: could not scroll to %q: %v", selector, err), nil
		}
		return nullResult(), nil

	case schemas.StepCondition:
		matched, err := d.CheckState(ctx, selector, ParseWaitState(step.State))
		if err != nil {
			return nullResult(), err
		}
		branch := step.Then
		if !matched {
			branch = step.Else
		}
		if len(branch) == 0 {
			return nullResult(), nil
		}
		return e.runSteps(ctx, d, branch, params)

	case schemas.StepEvaluate:
		script := Interpolate(step.Value, params)
		if err := d.Evaluate(ctx, script); err != nil {
			// Inline evaluation errors are logged and swallowed, never fatal.
			log.Warn("Evaluate step failed.", zap.Error(err))
		}
		return nullResult(), nil

	default:
		// Validate() keeps this unreachable for remote configs; a new step kind
		// added without interpreter support must fail loudly, not no-op.
		return nullResult(), fmt.Errorf("unsupported step action %q", step.Action)
	}
}

// extractSpecFor normalizes an extract step into a full ExtractSpec. The step's
// Value doubles as the extraction mode ("text", "html", "attribute", "list",
// "table"); an explicit Extract block overrides it.
func extractSpecFor(step *schemas.ActionStep, selector string) schemas.ExtractSpec {
	if step.Extract != nil {
		spec := *step.Extract
		if spec.Selector == "" {
			spec.Selector = selector
		}
		if spec.Mode == "" {
			spec.Mode = schemas.ExtractText
		}
		return spec
	}
	mode := schemas.ExtractMode(step.Value)
	if mode == "" {
		mode = schemas.ExtractText
	}
	return schemas.ExtractSpec{Selector: selector, Mode: mode}
}

func (e *Engine) stepTimeout(step *schemas.ActionStep) time.Duration {
	if step.TimeoutMs > 0 {
		return time.Duration(step.TimeoutMs) * time.Millisecond
	}
	return e.cfg.DefaultWaitTimeout
}

func (e *Engine) clickReadyTimeout(step *schemas.ActionStep) time.Duration {
	if step.TimeoutMs > 0 {
		return time.Duration(step.TimeoutMs) * time.Millisecond
	}
	return e.cfg.ClickReadyTimeout
}
