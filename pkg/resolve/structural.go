package resolve

import (
	"strings"

	"github.com/odvcencio/weblens/pkg/browser"
	"github.com/odvcencio/weblens/pkg/failure"
	"github.com/odvcencio/weblens/pkg/flow"
)

// iconPatterns maps each structural system role to the keywords that
// typically appear in the markup, class list, or attributes of its
// icon-only element.
var iconPatterns = map[string][]string{
	"cart":       {"cart", "shopping", "basket", "bag"},
	"basket":     {"cart", "shopping", "basket", "bag"},
	"checkout":   {"cart", "checkout", "basket", "bag"},
	"menu":       {"menu", "hamburger", "bars", "nav"},
	"navigation": {"menu", "hamburger", "bars", "nav"},
	"hamburger":  {"menu", "hamburger", "bars", "nav"},
	"search":     {"search", "magnify", "find", "glass"},
	"profile":    {"user", "account", "person", "profile", "avatar"},
	"account":    {"user", "account", "person", "profile"},
	"user_menu":  {"user", "account", "person", "profile", "avatar"},
	"close":      {"close", "x", "times", "dismiss", "cancel"},
	"dismiss":    {"close", "x", "times", "dismiss"},
	"cancel":     {"close", "cancel", "dismiss"},
	"confirm":    {"confirm", "check", "ok", "accept"},
	"proceed":    {"proceed", "continue", "next", "forward"},
	"submit":     {"submit", "send", "confirm"},
	"more":       {"more", "ellipsis", "dots", "options", "overflow"},
	"overflow":   {"more", "ellipsis", "dots", "options", "overflow"},
	"options":    {"more", "ellipsis", "dots", "options", "gear", "settings"},
}

// topRightRoles cluster in the top-right corner of typical layouts.
var topRightRoles = map[string]bool{
	"cart": true, "basket": true, "profile": true, "account": true,
}

// topLeftRoles cluster in the top-left corner.
var topLeftRoles = map[string]bool{
	"menu": true, "navigation": true, "hamburger": true,
}

// hrefAffinity maps system roles to URL fragments their links point at.
var hrefAffinity = map[string][]string{
	"cart":    {"cart", "checkout"},
	"profile": {"profile", "account"},
	"search":  {"search", "find"},
}

// resolveStructural scores semantically void elements with multiple
// weak signals. Each signal alone would guess; together, above a fixed
// confidence floor, they identify icon-only controls without a name.
func (r *Resolver) resolveStructural(snap *browser.Snapshot, ref *flow.ElementRef) (*Result, error) {
	systemRole := ref.SystemRole
	patterns := iconPatterns[systemRole]
	region := ref.Region()

	type scored struct {
		cand  *browser.Candidate
		score int
	}
	var candidates []scored

	for i := range snap.Candidates {
		cand := &snap.Candidates[i]
		if !cand.Visible {
			continue
		}
		// Only interactive elements qualify.
		role := strings.ToLower(cand.Role)
		if role != "button" && role != "link" {
			continue
		}
		if region != "" && cand.Region != "" && cand.Region != region {
			continue
		}

		score := 0

		// Signal 1: icon keywords in markup, class list, attributes.
		markup := strings.ToLower(cand.Markup)
		class := strings.ToLower(cand.Class)
		attrs := flattenAttrs(cand.Attrs)
		for _, p := range patterns {
			if strings.Contains(markup, p) {
				score += r.structural.MarkupWeight
			}
			if strings.Contains(class, p) {
				score += r.structural.ClassWeight
			}
			if strings.Contains(attrs, p) {
				score += r.structural.AttrWeight
			}
		}

		// Signal 2: position clustering.
		vw := snap.Viewport.Width
		topRight := cand.Bounds.Right() > vw*7/10 && cand.Bounds.Y < 100
		topLeft := cand.Bounds.X < vw*3/10 && cand.Bounds.Y < 100
		if topRightRoles[systemRole] && topRight {
			score += r.structural.PositionWeight
		}
		if topLeftRoles[systemRole] && topLeft {
			score += r.structural.PositionWeight
		}

		// Signal 3: navigation affinity.
		href := strings.ToLower(cand.Href)
		for _, fragment := range hrefAffinity[systemRole] {
			if href != "" && strings.Contains(href, fragment) {
				score += r.structural.HrefWeight
				break
			}
		}

		// Signal 4: hints in nearby text.
		nearby := strings.ToLower(cand.NearbyText)
		for _, p := range patterns {
			if strings.Contains(nearby, p) {
				score += r.structural.NearbyTextWeight
			}
		}

		if score > 0 {
			candidates = append(candidates, scored{cand, score})
		}
	}

	if len(candidates) == 0 {
		where := "page"
		if region != "" {
			where = "'" + region + "' region"
		}
		return nil, failure.ElementNotFound(systemRole, 1,
			"The element may not exist or may not be visible. Structural resolution only considers interactive elements.").
			WithSummary("No candidates for '" + systemRole + "'").
			WithEvidence("searched", where)
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.score > best.score {
			best = c
		}
	}

	// Structural matches are heuristic: below the floor we refuse to
	// guess rather than click the wrong thing.
	if best.score < r.structural.ConfidenceFloor {
		return nil, failure.LowConfidence(systemRole, best.score, r.structural.ConfidenceFloor)
	}

	return &Result{
		Candidate:  best.cand,
		RawScore:   best.score,
		Confidence: normalize(best.score, r.cfg.NormalizeDivisor),
		Strategy:   "structural",
	}, nil
}

func flattenAttrs(attrs map[string]string) string {
	if len(attrs) == 0 {
		return ""
	}
	var sb strings.Builder
	for k, v := range attrs {
		sb.WriteString(strings.ToLower(k))
		sb.WriteByte('=')
		sb.WriteString(strings.ToLower(v))
		sb.WriteByte(' ')
	}
	return sb.String()
}
