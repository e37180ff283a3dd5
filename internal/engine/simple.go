// File: internal/engine/simple.go
package engine

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Joakim-Sael/webmcp-bridge/api/schemas"
)

// runSimple performs the fill-and-submit execution mode: write every field present
// in the parameter map, then submit or extract a result. Fill errors accumulate as
// warnings and never block subsequent fields.
func (e *Engine) runSimple(ctx context.Context, d PageDriver, desc *schemas.ExecutionDescriptor, params map[string]any) (string, error) {
	var warnings []string
	lastFilled := ""

	for i := range desc.Fields {
		field := &desc.Fields[i]
		value, ok := fieldValue(field, params)
		if !ok {
			// Missing optional parameter: skip the field entirely. A missing
			// required one is still skipped but the caller gets told.
			if field.Required {
				warnings = append(warnings, fmt.Sprintf("field %q: required parameter missing", field.Name))
			}
			continue
		}
		if err := e.fillField(ctx, d, field, value); err != nil {
			warnings = append(warnings, fmt.Sprintf("field %q: %v", field.Name, err))
			continue
		}
		if field.Selector != "" {
			lastFilled = field.Selector
		}
	}

	if desc.Submit != nil {
		if err := e.submit(ctx, d, desc.Submit, lastFilled); err != nil {
			warnings = append(warnings, fmt.Sprintf("submit: %v", err))
		}
		// Submission may navigate; return without waiting for whatever it triggers.
		return withWarnings("Form submitted.", warnings), nil
	}

	if desc.Result != nil {
		value, err := e.extractResult(ctx, d, desc.Result)
		if err != nil {
			return withWarnings(fmt.Sprintf("Error: %v", err), warnings), nil
		}
		return withWarnings(value, warnings), nil
	}

	// No submit and no result selector: give the page a moment to settle.
	if err := d.Sleep(ctx, e.cfg.ResultSettleDelay); err != nil {
		return "", err
	}
	return withWarnings("Fields filled.", warnings), nil
}

// fieldValue resolves the value for a field from the parameter map or its default.
func fieldValue(field *schemas.ToolField, params map[string]any) (string, bool) {
	if raw, ok := params[field.Name]; ok && raw != nil {
		return stringify(raw), true
	}
	if field.DefaultValue != "" {
		return field.DefaultValue, true
	}
	return "", false
}

// fillField applies one field write, dispatching radio fields on the Go side
// because each radio option is a distinct physical input with its own selector.
func (e *Engine) fillField(ctx context.Context, d PageDriver, field *schemas.ToolField, value string) error {
	switch field.Kind {
	case schemas.FieldCheckbox:
		return d.SetChecked(ctx, field.Selector, truthy(value))

	case schemas.FieldRadio:
		if len(field.Options) == 0 {
			return d.SetChecked(ctx, field.Selector, true)
		}
		for _, opt := range field.Options {
			if opt.Value == value {
				sel := opt.Selector
				if sel == "" {
					sel = field.Selector
				}
				return d.SetChecked(ctx, sel, true)
			}
		}
		return fmt.Errorf("no radio option matches value %q", value)

	default:
		// Select, text, textarea, number, date and hidden all resolve through the
		// field writer's element-kind dispatch.
		return d.Fill(ctx, field.Selector, value)
	}
}

// submit applies the configured submit strategy.
func (e *Engine) submit(ctx context.Context, d PageDriver, spec *schemas.SubmitSpec, lastFilled string) error {
	switch spec.Strategy {
	case schemas.SubmitClick:
		return d.SubmitClick(ctx, spec.Selector, lastFilled)
	case schemas.SubmitEnter, "":
		target := lastFilled
		if target == "" {
			target = spec.Selector
		}
		if target == "" {
			return fmt.Errorf("no field to dispatch Enter on")
		}
		return d.SubmitEnter(ctx, target)
	default:
		return fmt.Errorf("unknown submit strategy %q", spec.Strategy)
	}
}

// extractResult waits for the result selector and reads it. A required result
// turns wait expiry into an error; otherwise expiry degrades to a best-effort read.
func (e *Engine) extractResult(ctx context.Context, d PageDriver, spec *schemas.ExtractSpec) (string, error) {
	timeout := e.cfg.DefaultWaitTimeout
	if spec.TimeoutMs > 0 {
		timeout = durationMs(spec.TimeoutMs)
	}

	satisfied, err := d.WaitFor(ctx, spec.Selector, WaitVisible, timeout)
	if err != nil {
		return "", err
	}
	if !satisfied {
		if spec.Required {
			return "", fmt.Errorf("result %q did not appear within %s", spec.Selector, timeout)
		}
		e.logger.Debug("Result selector never appeared; extracting anyway.",
			zap.String("selector", spec.Selector))
	}
	return d.Extract(ctx, *spec)
}

func withWarnings(message string, warnings []string) string {
	if len(warnings) == 0 {
		return message
	}
	return message + " Warnings: " + strings.Join(warnings, "; ")
}

// truthy coerces a parameter value for checkbox fields.
func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "false", "0", "no", "off":
		return false
	default:
		return true
	}
}
