// Package failure defines the canonical failure model for the engine.
// Every execution failure is classified on two axes: who owns it (the
// flow author, the application under test, the resolution engine, or
// the platform itself) and how certain the diagnosis is. Failures are
// plain values returned through error, never panics, so the
// owner/determinism contract is visible at every call site.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Owner identifies who is responsible for a failure.
type Owner string

const (
	// OwnerUser means the flow/test logic is at fault.
	OwnerUser Owner = "USER"
	// OwnerApp means the page under test is at fault.
	OwnerApp Owner = "APP"
	// OwnerEngine means the resolution/automation layer could not achieve certainty.
	OwnerEngine Owner = "ENGINE"
	// OwnerSystem means an internal fault in the engine itself.
	OwnerSystem Owner = "SYSTEM"
)

// Determinism rates how sure the engine is about the diagnosis.
type Determinism string

const (
	DeterminismCertain   Determinism = "CERTAIN"
	DeterminismHeuristic Determinism = "HEURISTIC"
	DeterminismUnknown   Determinism = "UNKNOWN"
)

// Category is a stable machine-readable label for a failure kind.
type Category string

const (
	CategoryVariableMissing      Category = "variable_missing"
	CategoryInvalidFlowState     Category = "invalid_flow_state"
	CategoryVerificationMismatch Category = "verification_mismatch"
	CategoryCapabilityMismatch   Category = "capability_mismatch"
	CategoryElementNotFound      Category = "element_not_found"
	CategoryElementHidden        Category = "element_hidden"
	CategoryInteractionBlocked   Category = "interaction_blocked"
	CategoryResolutionAmbiguity  Category = "resolution_ambiguity"
	CategoryLowConfidence        Category = "low_confidence"
	CategoryProtocolTimeout      Category = "protocol_timeout"
	CategoryLoopLimit            Category = "loop_limit"
	CategoryInternalCrash        Category = "internal_crash"
	CategoryDriverCrash          Category = "driver_crash"
)

// Failure is the canonical structured failure. Every component in the
// engine reports problems as a *Failure; the interpreter converts any
// other error shape into one before it reaches the report.
type Failure struct {
	Category    Category
	Intent      string
	Reason      string
	Guidance    string
	Summary     string
	Evidence    map[string]any
	Owner       Owner
	Determinism Determinism
	Underlying  error
}

// New creates a Failure with the given classification. Summary defaults
// to a generic action-failed line when left empty.
func New(category Category, owner Owner, determinism Determinism, intent, reason, guidance string) *Failure {
	return &Failure{
		Category:    category,
		Intent:      intent,
		Reason:      reason,
		Guidance:    guidance,
		Summary:     "Action Failed: " + reason,
		Owner:       owner,
		Determinism: determinism,
		Evidence:    make(map[string]any),
	}
}

// WithSummary overrides the short tier-1 summary.
func (f *Failure) WithSummary(summary string) *Failure {
	f.Summary = summary
	return f
}

// WithEvidence attaches a structured evidence entry.
func (f *Failure) WithEvidence(key string, value any) *Failure {
	if f.Evidence == nil {
		f.Evidence = make(map[string]any)
	}
	f.Evidence[key] = value
	return f
}

// WithUnderlying records the lower-level error that caused the failure.
func (f *Failure) WithUnderlying(err error) *Failure {
	f.Underlying = err
	return f
}

// Error implements the error interface.
func (f *Failure) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s/%s] %s", f.Owner, f.Determinism, f.Reason)
	if f.Intent != "" {
		fmt.Fprintf(&sb, " (intent: %s)", f.Intent)
	}
	if f.Underlying != nil {
		fmt.Fprintf(&sb, ": %v", f.Underlying)
	}
	return sb.String()
}

// Unwrap returns the underlying error for errors.Is/As.
func (f *Failure) Unwrap() error {
	return f.Underlying
}

// From converts any error to a canonical Failure. Errors that already
// carry a Failure anywhere in their chain pass through unchanged;
// everything else becomes an internal-crash with a generic,
// non-leaking message.
func From(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return InternalCrash(err, "engine")
}

// Is reports whether err carries a Failure with the given category.
func Is(err error, category Category) bool {
	var f *Failure
	if !errors.As(err, &f) {
		return false
	}
	return f.Category == category
}

// ---------------------------------------------------------------------
// Owner: USER — the flow/test logic is at fault.
// ---------------------------------------------------------------------

// VariableMissing reports a {{placeholder}} referencing an undefined key.
func VariableMissing(key string, available []string) *Failure {
	preview := available
	suffix := ""
	if len(preview) > 5 {
		preview = preview[:5]
		suffix = "..."
	}
	return New(CategoryVariableMissing, OwnerUser, DeterminismCertain,
		"Resolving variable",
		fmt.Sprintf("The variable '{{%s}}' is not defined in the current context.", key),
		fmt.Sprintf("Check your spelling or previous steps. Available variables: %s%s", strings.Join(preview, ", "), suffix),
	).WithSummary(fmt.Sprintf("Variable '%s' missing", key)).
		WithEvidence("missing_key", key).
		WithEvidence("available_keys", available)
}

// InvalidFlowState reports a corrupted or incomplete flow structure.
func InvalidFlowState(details string) *Failure {
	return New(CategoryInvalidFlowState, OwnerUser, DeterminismCertain,
		"Validating flow structure",
		"Flow state is invalid: "+details,
		"The flow configuration appears corrupted. Re-save or recreate the block.",
	).WithSummary("Invalid Flow State")
}

// VerificationMismatch reports a user-defined assertion that did not hold.
func VerificationMismatch(intent, expected, actual string) *Failure {
	return New(CategoryVerificationMismatch, OwnerUser, DeterminismCertain,
		intent,
		fmt.Sprintf("The value '%s' did not match the expected '%s'.", actual, expected),
		"Review the screenshot to see the actual state of the page at the time of verification.",
	).WithSummary("Verification failed").
		WithEvidence("expected", expected).
		WithEvidence("actual", actual)
}

// CapabilityMismatch reports an action the target element cannot perform,
// e.g. entering text into a button. The target exists; the request is
// invalid for it.
func CapabilityMismatch(name, intent, required string, observed map[string]bool) *Failure {
	var supported []string
	for cap, ok := range observed {
		if ok {
			supported = append(supported, cap)
		}
	}
	return New(CategoryCapabilityMismatch, OwnerUser, DeterminismCertain,
		"Attempting to "+intent,
		fmt.Sprintf("The element '%s' does not support this action. It is missing the '%s' capability.", name, required),
		fmt.Sprintf("Ensure you are targeting the correct element type. '%s' supports: %s.", name, strings.Join(supported, ", ")),
	).WithSummary(fmt.Sprintf("Checking capabilities for '%s'", name)).
		WithEvidence("required_capability", required).
		WithEvidence("observed_capabilities", observed).
		WithEvidence("element_name", name)
}

// LoopLimit reports a repeat_until loop that exhausted its iteration
// ceiling without ever satisfying its condition.
func LoopLimit(condition string, iterations int) *Failure {
	return New(CategoryLoopLimit, OwnerUser, DeterminismCertain,
		"Repeating blocks until condition is met",
		fmt.Sprintf("Condition was never satisfied after %d attempts: %s", iterations, condition),
		"If the loop runs out of iterations, check whether the condition can ever be met.",
	).WithSummary("Loop safety limit reached").
		WithEvidence("max_iterations", iterations).
		WithEvidence("condition", condition)
}

// ---------------------------------------------------------------------
// Owner: APP — the page under test is at fault.
// ---------------------------------------------------------------------

// ElementNotFound reports that no element matched the reference after
// all retries.
func ElementNotFound(name string, attempts int, guidance string) *Failure {
	if guidance == "" {
		guidance = "Check if you are on the correct page, or if the element is inside a deeper iframe."
	}
	return New(CategoryElementNotFound, OwnerApp, DeterminismCertain,
		fmt.Sprintf("Locating '%s'", name),
		fmt.Sprintf("No element matching '%s' was found on the current page.", name),
		guidance,
	).WithSummary(fmt.Sprintf("Element '%s' not found", name)).
		WithEvidence("attempts", attempts)
}

// ElementHidden reports an element present in the DOM but not visible.
func ElementHidden(name string) *Failure {
	return New(CategoryElementHidden, OwnerApp, DeterminismCertain,
		"Attempting to interact with element",
		fmt.Sprintf("The element '%s' exists but is currently hidden or invisible.", name),
		"The element might be inside a closed dropdown or menu. Ensure it is visible before interacting.",
	).WithSummary(fmt.Sprintf("Element '%s' is hidden", name))
}

// InteractionBlocked reports an action intercepted by another element.
func InteractionBlocked(name string, obscuring map[string]any) *Failure {
	blocker := ""
	if tag, ok := obscuring["tag"].(string); ok && tag != "" {
		blocker = fmt.Sprintf(" The click was intercepted by <%s>.", tag)
	}
	return New(CategoryInteractionBlocked, OwnerApp, DeterminismCertain,
		"Attempting to interact",
		fmt.Sprintf("Interaction with '%s' was blocked.%s", name, blocker),
		"Check if a modal or popup is covering the element, or if the element is disabled.",
	).WithSummary(fmt.Sprintf("Interaction blocked on '%s'", name)).
		WithEvidence("obscuring_element", obscuring)
}

// ---------------------------------------------------------------------
// Owner: ENGINE — the resolution layer could not achieve certainty.
// ---------------------------------------------------------------------

// ResolutionAmbiguity reports multiple equally plausible matches where a
// unique one is required.
func ResolutionAmbiguity(name string, count int, region string) *Failure {
	location := "on the page"
	if region != "" {
		location = fmt.Sprintf("in the '%s' region", region)
	}
	return New(CategoryResolutionAmbiguity, OwnerEngine, DeterminismHeuristic,
		"Attempting to resolve unique element",
		fmt.Sprintf("Found %d elements matching '%s' %s. A unique match is required to be certain.", count, name, location),
		"Add a unique aria-label to the target element, or valid semantic attributes to distinguish it.",
	).WithSummary(fmt.Sprintf("Ambiguous match for '%s'", name)).
		WithEvidence("match_count", count).
		WithEvidence("region", region)
}

// LowConfidence reports a structural resolution whose best candidate
// scored below the fixed confidence floor.
func LowConfidence(systemRole string, score, floor int) *Failure {
	return New(CategoryLowConfidence, OwnerEngine, DeterminismHeuristic,
		fmt.Sprintf("Resolving structural intent '%s'", systemRole),
		fmt.Sprintf("Low confidence match for '%s' (score: %d/%d).", systemRole, score, floor),
		"The element may be ambiguous or the icon pattern may not match expectations. Adding an aria-label will eliminate the need for structural resolution.",
	).WithSummary(fmt.Sprintf("Low confidence for '%s'", systemRole)).
		WithEvidence("score", score).
		WithEvidence("threshold", floor)
}

// ProtocolTimeout reports a browser driver that stopped responding.
func ProtocolTimeout(operation string, seconds float64) *Failure {
	return New(CategoryProtocolTimeout, OwnerEngine, DeterminismCertain,
		"Communicating with browser",
		fmt.Sprintf("The browser driver did not respond to '%s' within %.1fs.", operation, seconds),
		"This might be a browser freeze or a network issue. Try reducing the load or restarting the test.",
	).WithSummary("Browser Protocol Timeout").
		WithEvidence("operation", operation)
}

// ---------------------------------------------------------------------
// Owner: SYSTEM — an internal fault.
// ---------------------------------------------------------------------

// InternalCrash wraps an unexpected error caught at the top level. The
// reason is generic and never leaks internals to the report.
func InternalCrash(err error, component string) *Failure {
	return New(CategoryInternalCrash, OwnerSystem, DeterminismCertain,
		"Executing internal logic",
		"An internal error interrupted the run. This is an engine bug, not a test failure.",
		"Please report this to the development team.",
	).WithSummary("Internal System Crash").
		WithEvidence("component", component).
		WithUnderlying(err)
}

// DriverCrash reports a browser driver process that died.
func DriverCrash(msg string) *Failure {
	return New(CategoryDriverCrash, OwnerSystem, DeterminismCertain,
		"Managing browser session",
		"Browser Driver Crash: "+msg,
		"The browser closed unexpectedly. Check for memory issues or driver incompatibility.",
	).WithSummary("Browser Driver Crash")
}
