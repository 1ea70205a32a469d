// Package resolve turns semantic element references into concrete
// candidates. Resolution is purely semantic: candidates are scored on
// role, accessible name, and declared attributes, never located by CSS
// or XPath. If a reference cannot be matched semantically the test
// fails; there is no selector fallback.
//
// Three strategies cover the reference space:
//   - multi-attribute weighted scoring for native semantic refs
//   - region-scoped unique match for user-declared refs
//   - multi-signal structural scoring for semantically void elements
package resolve

import (
	"math"
	"strings"

	"github.com/odvcencio/weblens/pkg/browser"
	"github.com/odvcencio/weblens/pkg/config"
	"github.com/odvcencio/weblens/pkg/failure"
	"github.com/odvcencio/weblens/pkg/flow"
)

// Result is a successful resolution.
type Result struct {
	Candidate *browser.Candidate
	// RawScore is the weighted attribute score before normalization.
	RawScore int
	// Confidence is RawScore normalized to 0..1, capped at 1.
	Confidence float64
	// Attempts is filled in by the retrier.
	Attempts int
	// Strategy names how the candidate was found, for the report.
	Strategy string
}

// Anchor is a proximity hint: a stable neighbor of the target element.
type Anchor struct {
	Role string
	Name string
}

// Resolver scores snapshot candidates against element references.
type Resolver struct {
	cfg        config.ResolverConfig
	structural config.StructuralConfig
}

// New creates a Resolver with the given scoring weights.
func New(cfg config.ResolverConfig, structural config.StructuralConfig) *Resolver {
	return &Resolver{cfg: cfg, structural: structural}
}

// Resolve finds the best candidate for ref in the snapshot. The
// strategy is chosen from the reference itself: structural intents use
// structural scoring, user-declared refs with a region use the strict
// region-scoped path, everything else uses weighted attribute scoring.
func (r *Resolver) Resolve(snap *browser.Snapshot, ref *flow.ElementRef) (*Result, error) {
	if ref.IsStructural() {
		return r.resolveStructural(snap, ref)
	}
	if ref.NameSource == "user_declared" && ref.Region() != "" {
		return r.resolveInRegion(snap, ref)
	}
	return r.resolveSemantic(snap, ref)
}

// resolveSemantic implements multi-attribute weighted scoring. Every
// visible candidate is scored independently; only candidates above the
// threshold compete, and proximity anchors break near-ties.
func (r *Resolver) resolveSemantic(snap *browser.Snapshot, ref *flow.ElementRef) (*Result, error) {
	targetName := strings.ToLower(strings.TrimSpace(ref.Name))
	targetRole := strings.ToLower(ref.Role)

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
		score := r.scoreCandidate(cand, ref, targetName, targetRole)
		if score > r.cfg.Threshold {
			candidates = append(candidates, scored{cand, score})
		}
	}

	// Proximity bonus: anchors reward candidates near a stable
	// neighbor, or structurally grouped with it.
	anchors := anchorsFrom(ref)
	if len(anchors) > 0 && len(candidates) > 0 {
		anchorCands := findAnchors(snap, anchors)
		for i := range candidates {
			for _, anch := range anchorCands {
				if distance(candidates[i].cand.Bounds, anch.Bounds) < float64(r.cfg.ProximityRadiusPx) {
					candidates[i].score += r.cfg.ProximityNearBonus
				}
				if contains(anch.Bounds, candidates[i].cand.Bounds) {
					candidates[i].score += r.cfg.ProximityContainBonus
				}
			}
		}
	}

	if len(candidates) == 0 {
		return nil, failure.ElementNotFound(ref.Display(), 1,
			"The page may have changed or the element is not visible. Check if you are on the correct page.")
	}

	// Highest score wins; ties keep snapshot (document) order.
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.score > best.score {
			best = c
		}
	}

	return &Result{
		Candidate:  best.cand,
		RawScore:   best.score,
		Confidence: normalize(best.score, r.cfg.NormalizeDivisor),
		Strategy:   "semantic",
	}, nil
}

func (r *Resolver) scoreCandidate(cand *browser.Candidate, ref *flow.ElementRef, targetName, targetRole string) int {
	score := 0
	meta := func(key string) string {
		if ref.Metadata == nil {
			return ""
		}
		s, _ := ref.Metadata[key].(string)
		return s
	}

	// Test IDs are the strongest signal when present.
	if testID := meta("testId"); testID != "" && cand.TestID == testID {
		score += r.cfg.TestIDWeight
	}

	candName := strings.ToLower(strings.TrimSpace(cand.Name))
	if targetName != "" && candName != "" {
		switch {
		case candName == targetName:
			score += r.cfg.NameExactWeight
		case strings.Contains(candName, targetName) || strings.Contains(targetName, candName):
			score += r.cfg.NameSubstringWeight
		default:
			if overlap := wordOverlap(targetName, candName); overlap > 0 {
				score += overlap * r.cfg.WordOverlapWeight
			}
		}
	}

	if aria := meta("ariaLabel"); aria != "" && cand.AriaLabel == aria {
		score += r.cfg.AriaLabelWeight
	}
	if targetRole != "" && targetRole != "any" && strings.ToLower(cand.Role) == targetRole {
		score += r.cfg.RoleWeight
	}
	if ph := meta("placeholder"); ph != "" && cand.Placeholder == ph {
		score += r.cfg.PlaceholderWeight
	}
	if title := meta("title"); title != "" && cand.Title == title {
		score += r.cfg.TitleWeight
	}
	if tag := meta("tagName"); tag != "" && strings.ToLower(cand.Tag) == tag {
		score += r.cfg.TagWeight
	}
	return score
}

// resolveInRegion is the strict path for user-declared references: the
// declared role must match exactly one visible candidate inside the
// named region. Zero or multiple matches both fail, because a guess
// about a hand-declared element is worse than no answer.
func (r *Resolver) resolveInRegion(snap *browser.Snapshot, ref *flow.ElementRef) (*Result, error) {
	region := ref.Region()
	targetRole := strings.ToLower(ref.Role)

	scope := make([]*browser.Candidate, 0, len(snap.Candidates))
	regionFound := false
	for i := range snap.Candidates {
		if snap.Candidates[i].Region == region {
			regionFound = true
			break
		}
	}
	for i := range snap.Candidates {
		cand := &snap.Candidates[i]
		// Unknown regions fall back to the whole page.
		if regionFound && cand.Region != region {
			continue
		}
		scope = append(scope, cand)
	}

	var matches []*browser.Candidate
	for _, cand := range scope {
		if !cand.Visible {
			continue
		}
		if targetRole != "" && strings.ToLower(cand.Role) == targetRole {
			matches = append(matches, cand)
		}
	}

	switch len(matches) {
	case 0:
		f := failure.ElementNotFound(ref.Role, 1,
			"This element was manually declared. Adding an aria-label to the application will improve stability.")
		return nil, f.WithEvidence("region", region)
	case 1:
		return &Result{
			Candidate:  matches[0],
			RawScore:   r.cfg.NormalizeDivisor,
			Confidence: 1.0,
			Strategy:   "region",
		}, nil
	default:
		return nil, failure.ResolutionAmbiguity(ref.Role, len(matches), region)
	}
}

func anchorsFrom(ref *flow.ElementRef) []Anchor {
	if ref.Metadata == nil {
		return nil
	}
	raw, ok := ref.Metadata["anchors"].([]any)
	if !ok {
		return nil
	}
	var anchors []Anchor
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		name, _ := m["name"].(string)
		if role != "" || name != "" {
			anchors = append(anchors, Anchor{Role: role, Name: name})
		}
	}
	return anchors
}

func findAnchors(snap *browser.Snapshot, anchors []Anchor) []*browser.Candidate {
	var found []*browser.Candidate
	for _, anch := range anchors {
		wantName := strings.ToLower(strings.TrimSpace(anch.Name))
		for i := range snap.Candidates {
			cand := &snap.Candidates[i]
			if strings.ToLower(cand.Role) != strings.ToLower(anch.Role) {
				continue
			}
			if strings.ToLower(strings.TrimSpace(cand.Name)) == wantName {
				found = append(found, cand)
			}
		}
	}
	return found
}

func distance(a, b browser.Rect) float64 {
	ax, ay := a.Center()
	bx, by := b.Center()
	return math.Hypot(float64(ax-bx), float64(ay-by))
}

// contains approximates structural grouping: the anchor's box encloses
// the candidate's center.
func contains(outer, inner browser.Rect) bool {
	cx, cy := inner.Center()
	return cx >= outer.X && cx <= outer.Right() &&
		cy >= outer.Y && cy <= outer.Y+outer.Height
}

func wordOverlap(a, b string) int {
	aWords := significantWords(a)
	bWords := significantWords(b)
	count := 0
	for w := range aWords {
		if bWords[w] {
			count++
		}
	}
	return count
}

// significantWords drops short words so "to", "of", "ok" never create
// phantom overlap.
func significantWords(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		if len(w) > 2 {
			out[w] = true
		}
	}
	return out
}

func normalize(raw, divisor int) float64 {
	if raw <= 0 {
		return 0
	}
	return math.Min(1.0, float64(raw)/float64(divisor))
}
