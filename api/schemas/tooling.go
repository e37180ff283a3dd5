// File: api/schemas/tooling.go
package schemas

import (
	"fmt"
	"time"
)

// ToolConfig is a remote-authored record binding a domain/URL pattern to a set of tools.
// Configs are immutable once fetched; a newer lookup replaces them wholesale, never merges.
type ToolConfig struct {
	ID         string           `json:"id"`
	Domain     string           `json:"domain"`
	URLPattern string           `json:"urlPattern"`
	Title      string           `json:"title,omitempty"`
	Tools      []ToolDescriptor `json:"tools"`
	Version    int              `json:"version,omitempty"`
	CreatedAt  time.Time        `json:"createdAt,omitempty"`
	UpdatedAt  time.Time        `json:"updatedAt,omitempty"`
}

// ToolDescriptor describes one named capability. A descriptor without an Execution
// body is inert: it is informational only and never registered for execution.
type ToolDescriptor struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	InputSchema map[string]any       `json:"inputSchema,omitempty"`
	Annotations *ToolAnnotations     `json:"annotations,omitempty"`
	Execution   *ExecutionDescriptor `json:"execution,omitempty"`
}

// Executable reports whether the tool carries an execution body.
func (t *ToolDescriptor) Executable() bool {
	return t.Execution != nil
}

// ToolAnnotations carries host-facing hints about a tool's behavior.
type ToolAnnotations struct {
	Title           string `json:"title,omitempty"`
	ReadOnlyHint    bool   `json:"readOnlyHint,omitempty"`
	DestructiveHint bool   `json:"destructiveHint,omitempty"`
	IdempotentHint  bool   `json:"idempotentHint,omitempty"`
}

// ExecutionDescriptor specifies how a tool is performed: either a simple
// fill-and-submit form interaction (Fields/Submit) or an ordered multi-step
// action program (Steps). The two modes are a variant choice, not combined.
type ExecutionDescriptor struct {
	Fields []ToolField  `json:"fields,omitempty"`
	Submit *SubmitSpec  `json:"submit,omitempty"`
	Steps  []ActionStep `json:"steps,omitempty"`
	Result *ExtractSpec `json:"result,omitempty"`
}

// MultiStep reports whether the descriptor is the multi-step variant.
func (e *ExecutionDescriptor) MultiStep() bool {
	return len(e.Steps) > 0
}

// FieldKind discriminates ToolField variants.
type FieldKind string

const (
	FieldText     FieldKind = "text"
	FieldNumber   FieldKind = "number"
	FieldTextarea FieldKind = "textarea"
	FieldSelect   FieldKind = "select"
	FieldCheckbox FieldKind = "checkbox"
	FieldRadio    FieldKind = "radio"
	FieldDate     FieldKind = "date"
	FieldHidden   FieldKind = "hidden"
)

// KnownFieldKinds lists every field kind the engine dispatches on.
var KnownFieldKinds = []FieldKind{
	FieldText, FieldNumber, FieldTextarea, FieldSelect,
	FieldCheckbox, FieldRadio, FieldDate, FieldHidden,
}

// ToolField maps one tool parameter onto a form control.
type ToolField struct {
	Kind         FieldKind `json:"kind"`
	Name         string    `json:"name"`
	Selector     string    `json:"selector"`
	Required     bool      `json:"required,omitempty"`
	DefaultValue string    `json:"defaultValue,omitempty"`
	// Options is populated for select and radio fields. Radio options carry their
	// own selectors because each option is a distinct physical input element.
	Options []FieldOption `json:"options,omitempty"`
}

// FieldOption is one choice of a select or radio field.
type FieldOption struct {
	Value    string `json:"value"`
	Label    string `json:"label,omitempty"`
	Selector string `json:"selector,omitempty"`
}

// Validate rejects descriptors the engine could not dispatch.
func (f *ToolField) Validate() error {
	switch f.Kind {
	case FieldText, FieldNumber, FieldTextarea, FieldSelect,
		FieldCheckbox, FieldRadio, FieldDate, FieldHidden:
	default:
		return fmt.Errorf("unknown field kind %q for field %q", f.Kind, f.Name)
	}
	if f.Name == "" {
		return fmt.Errorf("field with selector %q has no parameter name", f.Selector)
	}
	if f.Selector == "" && f.Kind != FieldRadio {
		return fmt.Errorf("field %q has no selector", f.Name)
	}
	return nil
}

// StepAction discriminates ActionStep variants.
type StepAction string

const (
	StepNavigate  StepAction = "navigate"
	StepClick     StepAction = "click"
	StepFill      StepAction = "fill"
	StepSelect    StepAction = "select"
	StepWait      StepAction = "wait"
	StepExtract   StepAction = "extract"
	StepScroll    StepAction = "scroll"
	StepCondition StepAction = "condition"
	StepEvaluate  StepAction = "evaluate"
)

// KnownStepActions lists every action the interpreter dispatches on. Tests walk
// this slice to keep the interpreter switch exhaustive.
var KnownStepActions = []StepAction{
	StepNavigate, StepClick, StepFill, StepSelect, StepWait,
	StepExtract, StepScroll, StepCondition, StepEvaluate,
}

// ActionStep is one unit of a multi-step action program. Condition steps nest
// two sub-programs (Then/Else); this is the only recursive structure.
type ActionStep struct {
	Action   StepAction `json:"action"`
	Selector string     `json:"selector,omitempty"`
	// Value is a template for navigate URLs, fill/select values and evaluate bodies.
	Value string `json:"value,omitempty"`
	// State is the awaited selector state for wait/condition: visible, exists, hidden.
	State     string       `json:"state,omitempty"`
	TimeoutMs int          `json:"timeoutMs,omitempty"`
	Extract   *ExtractSpec `json:"extract,omitempty"`
	Then      []ActionStep `json:"then,omitempty"`
	Else      []ActionStep `json:"else,omitempty"`
}

// Validate rejects unknown actions, recursing into condition branches.
func (s *ActionStep) Validate() error {
	switch s.Action {
	case StepNavigate, StepClick, StepFill, StepSelect, StepWait,
		StepExtract, StepScroll, StepCondition, StepEvaluate:
	default:
		return fmt.Errorf("unknown step action %q", s.Action)
	}
	for i := range s.Then {
		if err := s.Then[i].Validate(); err != nil {
			return err
		}
	}
	for i := range s.Else {
		if err := s.Else[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ExtractMode selects what the result extractor reads from a resolved element.
type ExtractMode string

const (
	ExtractText      ExtractMode = "text"
	ExtractHTML      ExtractMode = "html"
	ExtractAttribute ExtractMode = "attribute"
	ExtractList      ExtractMode = "list"
	ExtractTable     ExtractMode = "table"
)

// ExtractSpec configures result extraction for a step or a simple execution.
type ExtractSpec struct {
	Selector  string      `json:"selector"`
	Mode      ExtractMode `json:"mode,omitempty"`
	Attribute string      `json:"attribute,omitempty"`
	// Required turns the pre-extraction wait into a hard wait: expiry is an error
	// instead of a swallowed timeout.
	Required  bool `json:"required,omitempty"`
	TimeoutMs int  `json:"timeoutMs,omitempty"`
}

// SubmitStrategy selects how a simple execution is submitted.
type SubmitStrategy string

const (
	SubmitEnter SubmitStrategy = "enter"
	SubmitClick SubmitStrategy = "click"
)

// SubmitSpec configures the submit phase of a simple execution.
type SubmitSpec struct {
	Strategy SubmitStrategy `json:"strategy"`
	// Selector targets the submit control for the click strategy. When empty the
	// engine falls back to a [type=submit] descendant of the form, then the form itself.
	Selector string `json:"selector,omitempty"`
}

// TabSession is the per-tab registration snapshot persisted to session storage.
// It lives until the tab closes or a fresh full navigation supersedes it.
type TabSession struct {
	Configs   []ToolConfig `json:"configs"`
	Domain    string       `json:"domain"`
	Timestamp time.Time    `json:"timestamp"`
}
