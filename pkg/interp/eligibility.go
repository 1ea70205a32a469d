package interp

import "github.com/odvcencio/weblens/pkg/flow"

// saveTextEligible reports whether an element reference carries enough
// stable semantic identity for save_text to re-identify it later (for
// example after a refresh). An element qualifies with any one of: a
// real semantic role, an accessible name from a stable source, a
// manual declaration of at least medium confidence, or a named region
// anchor.
func saveTextEligible(ref *flow.ElementRef) (bool, string) {
	if ref.Role != "" && ref.Role != "generic" && ref.Role != "presentation" && ref.Role != "none" {
		return true, ""
	}

	switch ref.NameSource {
	case "aria-label", "label", "title", "placeholder":
		return true, ""
	}

	switch ref.EffectiveConfidence() {
	case flow.ConfidenceHigh:
		return true, ""
	}

	if ref.Region() != "" {
		return true, ""
	}

	return false, "This element's content changes and cannot be reliably re-identified. Saving its text would be unstable."
}

const saveTextGuidance = "If you're testing that content changes after refresh, use 'Verify Page Content' or 'Save Page Content' instead."
