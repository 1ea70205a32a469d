package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVariableMissingClassification(t *testing.T) {
	f := VariableMissing("username", []string{"password", "base_url"})

	assert.Equal(t, OwnerUser, f.Owner)
	assert.Equal(t, DeterminismCertain, f.Determinism)
	assert.Equal(t, CategoryVariableMissing, f.Category)
	assert.Contains(t, f.Reason, "{{username}}")
	assert.Contains(t, f.Guidance, "password")
	assert.Equal(t, "username", f.Evidence["missing_key"])
}

func TestVariableMissingTruncatesAvailableKeys(t *testing.T) {
	keys := []string{"a", "b", "c", "d", "e", "f", "g"}
	f := VariableMissing("x", keys)
	assert.Contains(t, f.Guidance, "...")
	assert.NotContains(t, f.Guidance, "f, g")
}

func TestFromPassesThroughFailures(t *testing.T) {
	orig := ElementNotFound("Submit", 3, "")
	wrapped := fmt.Errorf("block abc: %w", orig)

	got := From(wrapped)
	require.Same(t, orig, got)
}

func TestFromWrapsForeignErrors(t *testing.T) {
	f := From(errors.New("nil pointer dereference"))

	assert.Equal(t, OwnerSystem, f.Owner)
	assert.Equal(t, CategoryInternalCrash, f.Category)
	// Internals must not leak into the user-facing reason.
	assert.NotContains(t, f.Reason, "nil pointer")
	assert.Contains(t, f.Error(), "nil pointer")
}

func TestFromNil(t *testing.T) {
	if From(nil) != nil {
		t.Fatal("From(nil) should be nil")
	}
}

func TestIsMatchesCategoryThroughChain(t *testing.T) {
	err := fmt.Errorf("outer: %w", LowConfidence("cart", 18, 25))
	assert.True(t, Is(err, CategoryLowConfidence))
	assert.False(t, Is(err, CategoryElementNotFound))
}

func TestOwnershipSplitAcrossCategories(t *testing.T) {
	cases := []struct {
		f     *Failure
		owner Owner
		det   Determinism
	}{
		{CapabilityMismatch("Login", "enter text", "editable", map[string]bool{"clickable": true}), OwnerUser, DeterminismCertain},
		{ElementNotFound("Cart", 5, ""), OwnerApp, DeterminismCertain},
		{ElementHidden("Menu"), OwnerApp, DeterminismCertain},
		{InteractionBlocked("Buy", map[string]any{"tag": "div"}), OwnerApp, DeterminismCertain},
		{ResolutionAmbiguity("Edit", 3, "header"), OwnerEngine, DeterminismHeuristic},
		{LowConfidence("menu", 10, 25), OwnerEngine, DeterminismHeuristic},
		{ProtocolTimeout("click", 30), OwnerEngine, DeterminismCertain},
		{LoopLimit("element_visible: Done", 50), OwnerUser, DeterminismCertain},
		{DriverCrash("session deleted"), OwnerSystem, DeterminismCertain},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.owner, tc.f.Owner, "category %s", tc.f.Category)
		assert.Equal(t, tc.det, tc.f.Determinism, "category %s", tc.f.Category)
	}
}

func TestCapabilityMismatchEvidence(t *testing.T) {
	f := CapabilityMismatch("Search", "enter text", "editable", map[string]bool{
		"clickable": true, "editable": false,
	})
	assert.Equal(t, "editable", f.Evidence["required_capability"])
	assert.Contains(t, f.Guidance, "clickable")
	assert.NotContains(t, f.Guidance, "editable,")
}

func TestErrorStringIncludesAxes(t *testing.T) {
	f := ElementNotFound("Checkout", 2, "")
	assert.Contains(t, f.Error(), "[APP/CERTAIN]")
}
