// Package flow defines the block-graph data model for zero-code tests:
// element references, semantic conditions, the block vocabulary, and the
// flow graph with its validation gates.
//
// The model enforces the zero-code contract at the type level: elements
// are referenced by semantic role and accessible name only. There is no
// selector field anywhere in the package, and none will be accepted.
package flow

import "strings"

// IntentType distinguishes how an element reference should be resolved.
type IntentType string

const (
	// IntentSemantic resolves by role + accessible name scoring.
	IntentSemantic IntentType = "semantic"
	// IntentStructural resolves semantically void elements (icon buttons)
	// by structural signals under a controlled system-role vocabulary.
	IntentStructural IntentType = "structural"
)

// Confidence declares how trustworthy a reference's name is, which
// drives the retry schedule during resolution.
type Confidence string

const (
	// ConfidenceHigh marks names captured from native accessibility data.
	ConfidenceHigh Confidence = "high"
	// ConfidenceLow marks names the author typed in by hand.
	ConfidenceLow Confidence = "low"
	// ConfidenceDeclared marks structural intents, which carry no name at all.
	ConfidenceDeclared Confidence = "declared"
)

// StructuralIntents is the controlled vocabulary of system roles allowed
// for structural references. Anything outside this list is rejected at
// validation time.
var StructuralIntents = []string{
	"cart", "basket", "checkout",
	"menu", "navigation", "hamburger",
	"search", "search_trigger",
	"profile", "user_menu", "account",
	"close", "dismiss", "cancel",
	"confirm", "proceed", "submit",
	"more", "overflow", "options",
}

// IsStructuralIntent reports whether role is in the controlled vocabulary.
func IsStructuralIntent(role string) bool {
	for _, s := range StructuralIntents {
		if s == role {
			return true
		}
	}
	return false
}

// ElementRef is a semantic reference to a UI element.
//
// Required: Role and Name (for semantic intents) or SystemRole (for
// structural intents). Selectors are forbidden by construction.
type ElementRef struct {
	ID         string            `json:"id,omitempty"`
	Role       string            `json:"role"`
	Name       string            `json:"name"`
	NameSource string            `json:"name_source,omitempty"`
	Confidence Confidence        `json:"confidence,omitempty"`
	Context    map[string]string `json:"context,omitempty"`

	IntentType           IntentType `json:"intent_type,omitempty"`
	SystemRole           string     `json:"system_role,omitempty"`
	VerificationRequired bool       `json:"verification_required,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// EffectiveConfidence returns the declared confidence, defaulting to
// high for semantic refs and declared for structural ones.
func (e *ElementRef) EffectiveConfidence() Confidence {
	if e.Confidence != "" {
		return e.Confidence
	}
	if e.IsStructural() {
		return ConfidenceDeclared
	}
	return ConfidenceHigh
}

// IsStructural reports whether the reference targets a semantically
// void element via a system role.
func (e *ElementRef) IsStructural() bool {
	return e.IntentType == IntentStructural
}

// Region returns the semantic region constraint, if any.
func (e *ElementRef) Region() string {
	if e.Context == nil {
		return ""
	}
	return e.Context["region"]
}

// Display returns a human-readable label for logs and failures.
func (e *ElementRef) Display() string {
	if e == nil {
		return "(no element)"
	}
	if e.IsStructural() {
		return e.SystemRole
	}
	if e.Name != "" {
		return e.Name
	}
	return e.Role
}

// FileSource identifies where an uploaded test file lives.
type FileSource string

const (
	FileSourceLocal FileSource = "local"
	FileSourceCloud FileSource = "cloud"
)

// FileRef references a test file by identity. Raw paths are not part of
// the model; the session maps IDs to real files at execution time.
type FileRef struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	MimeType string     `json:"mime_type,omitempty"`
	Source   FileSource `json:"source,omitempty"`
}

// SavedValueRef names a value captured earlier in the run.
type SavedValueRef struct {
	Key   string `json:"key"`
	Label string `json:"label,omitempty"`
}

// SaveAs configures where an extracted value is stored.
type SaveAs struct {
	Key   string `json:"key"`
	Label string `json:"label,omitempty"`
}

// MatchMode selects how text comparisons are performed.
type MatchMode string

const (
	MatchEquals   MatchMode = "equals"
	MatchContains MatchMode = "contains"
)

// TextMatch pairs a match mode with an expected value.
type TextMatch struct {
	Mode  MatchMode `json:"mode"`
	Value string    `json:"value"`
}

// Matches applies the match mode to actual.
func (m TextMatch) Matches(actual string) bool {
	switch m.Mode {
	case MatchContains:
		return strings.Contains(actual, m.Value)
	default:
		return actual == m.Value
	}
}

// ConditionKind enumerates the semantic condition vocabulary. There is
// no boolean expression language: one kind, one set of parameters.
type ConditionKind string

const (
	CondElementVisible    ConditionKind = "element_visible"
	CondElementNotVisible ConditionKind = "element_not_visible"
	CondPageTitleEquals   ConditionKind = "page_title_equals"
	CondURLContains       ConditionKind = "url_contains"
	CondSavedValueExists  ConditionKind = "saved_value_exists"
	CondSavedValueEquals  ConditionKind = "saved_value_equals"
	CondTextMatch         ConditionKind = "text_match"
)

// Condition is a single semantic predicate for control-flow blocks.
type Condition struct {
	Kind ConditionKind `json:"kind"`

	Element          *ElementRef    `json:"element,omitempty"`
	ExpectedTitle    string         `json:"expected_title,omitempty"`
	ExpectedFragment string         `json:"expected_fragment,omitempty"`
	ValueRef         *SavedValueRef `json:"value_ref,omitempty"`
	ExpectedText     string         `json:"expected_text,omitempty"`
	MatchMode        MatchMode      `json:"match_mode,omitempty"`
	Value            string         `json:"value,omitempty"`
}

// NeedsElement reports whether the condition kind requires an element
// reference to be evaluable.
func (c *Condition) NeedsElement() bool {
	switch c.Kind {
	case CondElementVisible, CondElementNotVisible, CondTextMatch:
		return true
	}
	return false
}

// Validate reports the fields the condition kind requires but does not
// carry. Every field Describe or the evaluator dereferences for the
// kind must be present, so a condition that validates cleanly is safe
// to evaluate.
func (c *Condition) Validate() []string {
	var missing []string
	if c.NeedsElement() && c.Element == nil {
		missing = append(missing, "Requires an element for '"+string(c.Kind)+"'")
	}
	switch c.Kind {
	case CondPageTitleEquals:
		if c.ExpectedTitle == "" {
			missing = append(missing, "Requires an expected title for 'page_title_equals'")
		}
	case CondURLContains:
		if c.ExpectedFragment == "" {
			missing = append(missing, "Requires an expected fragment for 'url_contains'")
		}
	case CondSavedValueExists, CondSavedValueEquals:
		if c.ValueRef == nil || c.ValueRef.Key == "" {
			missing = append(missing, "Requires a value reference for '"+string(c.Kind)+"'")
		}
	case CondTextMatch:
		if c.MatchMode == "" {
			missing = append(missing, "Requires a match mode for 'text_match'")
		}
		if c.Value == "" {
			missing = append(missing, "Requires a comparison value for 'text_match'")
		}
	}
	return missing
}

// Describe renders the condition for failure messages and logs.
func (c *Condition) Describe() string {
	switch c.Kind {
	case CondElementVisible, CondElementNotVisible:
		return string(c.Kind) + ": " + c.Element.Display()
	case CondPageTitleEquals:
		return "page title equals '" + c.ExpectedTitle + "'"
	case CondURLContains:
		return "url contains '" + c.ExpectedFragment + "'"
	case CondSavedValueExists:
		return "saved value '" + c.ValueRef.Key + "' exists"
	case CondSavedValueEquals:
		return "saved value '" + c.ValueRef.Key + "' equals '" + c.ExpectedText + "'"
	case CondTextMatch:
		return "text of " + c.Element.Display() + " " + string(c.MatchMode) + " '" + c.Value + "'"
	}
	return string(c.Kind)
}
