package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/weblens/pkg/browser"
	"github.com/odvcencio/weblens/pkg/config"
	"github.com/odvcencio/weblens/pkg/failure"
	"github.com/odvcencio/weblens/pkg/flow"
)

func newResolver() *Resolver {
	cfg := config.DefaultConfig()
	return New(cfg.Resolver, cfg.Structural)
}

func snap(cands ...browser.Candidate) *browser.Snapshot {
	return &browser.Snapshot{
		URL:        "https://shop.test/",
		Title:      "Shop",
		Viewport:   browser.Viewport{Width: 1280, Height: 800},
		Candidates: cands,
	}
}

func button(handle, name string) browser.Candidate {
	return browser.Candidate{
		Handle: handle, Role: "button", Name: name, Tag: "button",
		Visible: true, Enabled: true,
	}
}

func TestExactNameOutranksSubstring(t *testing.T) {
	r := newResolver()
	s := snap(
		button("h1", "Add to Cart and Save"),
		button("h2", "Add to Cart"),
	)
	res, err := r.Resolve(s, &flow.ElementRef{Role: "button", Name: "Add to Cart"})
	require.NoError(t, err)
	assert.Equal(t, "h2", res.Candidate.Handle)
	// Exact name (12) + role (5).
	assert.Equal(t, 17, res.RawScore)
	assert.InDelta(t, 0.85, res.Confidence, 0.001)
}

func TestScoreBelowThresholdIsNotFound(t *testing.T) {
	r := newResolver()
	// Only the role matches: score 5 does not exceed the threshold.
	s := snap(button("h1", "Subscribe"))
	_, err := r.Resolve(s, &flow.ElementRef{Role: "button", Name: "Checkout"})
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.CategoryElementNotFound))
}

func TestTestIDDominatesNameMismatch(t *testing.T) {
	r := newResolver()
	withID := button("h1", "Buy now")
	withID.TestID = "checkout-btn"
	s := snap(button("h2", "Checkout soon maybe"), withID)

	res, err := r.Resolve(s, &flow.ElementRef{
		Role: "button", Name: "Checkout",
		Metadata: map[string]any{"testId": "checkout-btn"},
	})
	require.NoError(t, err)
	assert.Equal(t, "h1", res.Candidate.Handle)
}

func TestWordOverlapScoring(t *testing.T) {
	r := newResolver()
	s := snap(button("h1", "Complete your order today"))
	res, err := r.Resolve(s, &flow.ElementRef{Role: "button", Name: "Submit order today"})
	require.NoError(t, err)
	// Two overlapping words > 2 chars ("order", "today") at 4 each,
	// plus role 5.
	assert.Equal(t, 13, res.RawScore)
}

func TestShortWordsDoNotOverlap(t *testing.T) {
	assert.Equal(t, 0, wordOverlap("go to it", "on to it"))
	assert.Equal(t, 1, wordOverlap("save my order", "cancel an order"))
}

func TestInvisibleCandidatesIgnored(t *testing.T) {
	r := newResolver()
	hidden := button("h1", "Checkout")
	hidden.Visible = false
	s := snap(hidden)
	_, err := r.Resolve(s, &flow.ElementRef{Role: "button", Name: "Checkout"})
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.CategoryElementNotFound))
}

func TestProximityAnchorBreaksTie(t *testing.T) {
	r := newResolver()
	far := button("far", "Edit")
	far.Bounds = browser.Rect{X: 1000, Y: 700, Width: 40, Height: 20}
	near := button("near", "Edit")
	near.Bounds = browser.Rect{X: 110, Y: 100, Width: 40, Height: 20}
	anchor := browser.Candidate{
		Handle: "anch", Role: "heading", Name: "Shipping Address", Tag: "h2",
		Bounds: browser.Rect{X: 100, Y: 60, Width: 200, Height: 30}, Visible: true,
	}
	s := snap(far, near, anchor)

	res, err := r.Resolve(s, &flow.ElementRef{
		Role: "button", Name: "Edit",
		Metadata: map[string]any{"anchors": []any{
			map[string]any{"role": "heading", "name": "Shipping Address"},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "near", res.Candidate.Handle)
	assert.Greater(t, res.RawScore, 17)
}

func TestRegionScopedUniqueMatch(t *testing.T) {
	r := newResolver()
	inHeader := button("h1", "")
	inHeader.Region = "header"
	inMain := button("h2", "")
	inMain.Region = "main"
	s := snap(inHeader, inMain)

	ref := &flow.ElementRef{
		Role: "button", Name: "toggle", NameSource: "user_declared",
		Context: map[string]string{"region": "header"},
	}
	res, err := r.Resolve(s, ref)
	require.NoError(t, err)
	assert.Equal(t, "h1", res.Candidate.Handle)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, "region", res.Strategy)
}

func TestRegionScopedAmbiguity(t *testing.T) {
	r := newResolver()
	b1 := button("h1", "")
	b1.Region = "header"
	b2 := button("h2", "")
	b2.Region = "header"
	s := snap(b1, b2)

	ref := &flow.ElementRef{
		Role: "button", Name: "toggle", NameSource: "user_declared",
		Context: map[string]string{"region": "header"},
	}
	_, err := r.Resolve(s, ref)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.CategoryResolutionAmbiguity))

	f := failure.From(err)
	assert.Equal(t, failure.OwnerEngine, f.Owner)
	assert.Equal(t, failure.DeterminismHeuristic, f.Determinism)
	assert.Equal(t, 2, f.Evidence["match_count"])
}

func TestRegionScopedNoMatch(t *testing.T) {
	r := newResolver()
	b := button("h1", "")
	b.Region = "footer"
	s := snap(b)

	ref := &flow.ElementRef{
		Role: "checkbox", Name: "toggle", NameSource: "user_declared",
		Context: map[string]string{"region": "footer"},
	}
	_, err := r.Resolve(s, ref)
	require.Error(t, err)
	assert.True(t, failure.Is(err, failure.CategoryElementNotFound))
	assert.Contains(t, failure.From(err).Guidance, "manually declared")
}

func TestUnknownRegionFallsBackToWholePage(t *testing.T) {
	r := newResolver()
	b := button("h1", "")
	b.Region = "main"
	s := snap(b)

	ref := &flow.ElementRef{
		Role: "button", Name: "toggle", NameSource: "user_declared",
		Context: map[string]string{"region": "sidebar"},
	}
	res, err := r.Resolve(s, ref)
	require.NoError(t, err)
	assert.Equal(t, "h1", res.Candidate.Handle)
}
