package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func elem(role, name string) *ElementRef {
	return &ElementRef{Role: role, Name: name}
}

func TestDecodeAppliesDefaults(t *testing.T) {
	data := []byte(`{
		"name": "Login",
		"entry_block": "b1",
		"blocks": [
			{"id": "b1", "type": "open_page", "url": "example.com", "next_block": "b2"},
			{"id": "b2", "type": "wait_until_visible", "element": {"role": "button", "name": "Login"}},
			{"id": "b3", "type": "repeat_until", "condition": {"kind": "url_contains", "expected_fragment": "/done"}, "max_iterations": 99}
		]
	}`)
	g, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com", g.Block("b1").URL)
	assert.Equal(t, DefaultWaitTimeoutSeconds, g.Block("b2").TimeoutSeconds)
	assert.Equal(t, MaxIterationsCeiling, g.Block("b3").MaxIterations)
}

func TestDecodeRelativeURLKeptForBaseJoin(t *testing.T) {
	g, err := Decode([]byte(`{"name":"n","entry_block":"b1","blocks":[{"id":"b1","type":"open_page","url":"/checkout"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "/checkout", g.Block("b1").URL)
}

func TestDecodeRejectsDuplicateIDs(t *testing.T) {
	_, err := Decode([]byte(`{"name":"n","entry_block":"a","blocks":[{"id":"a","type":"delay"},{"id":"a","type":"delay"}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate block id")
}

func TestValidateReferences(t *testing.T) {
	g := &Graph{
		Name:       "n",
		EntryBlock: "missing",
		Blocks: []Block{
			{ID: "b1", Type: TypeDelay, NextBlock: "ghost"},
			{ID: "b2", Type: TypeIfCondition,
				Condition:  &Condition{Kind: CondURLContains, ExpectedFragment: "x"},
				ThenBlocks: []string{"b1", "nope"},
				ElseBlocks: []string{"gone"}},
			{ID: "b3", Type: TypeRepeatUntil,
				Condition:  &Condition{Kind: CondURLContains, ExpectedFragment: "x"},
				BodyBlocks: []string{"b1", "absent"}},
		},
	}
	errs := g.ValidateReferences()
	require.Len(t, errs, 5)
	assert.Contains(t, errs[0], "Entry block 'missing'")
	assert.Contains(t, errs[1], "next_block 'ghost'")
	assert.Contains(t, errs[2], "then_blocks")
	assert.Contains(t, errs[3], "else_blocks")
	assert.Contains(t, errs[4], "body_blocks")
}

func TestEntryBlockMustBeTrueRoot(t *testing.T) {
	g := &Graph{
		Name:       "n",
		EntryBlock: "start",
		Blocks: []Block{
			{ID: "start", Type: TypeDelay, Seconds: 1},
			{ID: "loop", Type: TypeRepeatUntil,
				Condition:  &Condition{Kind: CondURLContains, ExpectedFragment: "x"},
				BodyBlocks: []string{"start"}},
		},
	}
	errs := g.ValidateReferences()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Entry block 'start' cannot appear in body_blocks")
}

func TestCompletenessRequiredFields(t *testing.T) {
	g := &Graph{
		Name:       "n",
		EntryBlock: "b1",
		Blocks: []Block{
			{ID: "b1", Type: TypeOpenPage},
			{ID: "b2", Type: TypeClickElement},
			{ID: "b3", Type: TypeSelectOption, Element: elem("combobox", "Country")},
			{ID: "b4", Type: TypeSaveText, Element: elem("heading", "Total")},
			{ID: "b5", Type: TypeIfCondition, Condition: &Condition{Kind: CondElementVisible}},
		},
	}
	errs := g.ValidateCompleteness()
	assert.Contains(t, errs, "Open Page Block: Requires a URL")
	assert.Contains(t, errs, "Click Element Block: Requires a target element")
	assert.Contains(t, errs, "Select Option Block: Requires option text")
	assert.Contains(t, errs, "Save Text Block: Requires a variable name")
	assert.Contains(t, errs, "If Condition Block: Requires an element for 'element_visible'")
	assert.Equal(t, StateDraft, g.State())
}

func TestCompletenessConditionFields(t *testing.T) {
	cases := []struct {
		name string
		cond *Condition
		want string
	}{
		{"title without expected value",
			&Condition{Kind: CondPageTitleEquals},
			"Requires an expected title for 'page_title_equals'"},
		{"url without fragment",
			&Condition{Kind: CondURLContains},
			"Requires an expected fragment for 'url_contains'"},
		{"exists without value ref",
			&Condition{Kind: CondSavedValueExists},
			"Requires a value reference for 'saved_value_exists'"},
		{"equals with empty key",
			&Condition{Kind: CondSavedValueEquals, ValueRef: &SavedValueRef{}},
			"Requires a value reference for 'saved_value_equals'"},
		{"text match without mode",
			&Condition{Kind: CondTextMatch, Element: elem("heading", "Total"), Value: "42"},
			"Requires a match mode for 'text_match'"},
		{"text match without value",
			&Condition{Kind: CondTextMatch, Element: elem("heading", "Total"), MatchMode: MatchEquals},
			"Requires a comparison value for 'text_match'"},
		{"text match without element",
			&Condition{Kind: CondTextMatch, MatchMode: MatchContains, Value: "42"},
			"Requires an element for 'text_match'"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := &Graph{
				Name:       "n",
				EntryBlock: "b1",
				Blocks:     []Block{{ID: "b1", Type: TypeIfCondition, Condition: tc.cond}},
			}
			assert.Contains(t, g.ValidateCompleteness(), "If Condition Block: "+tc.want)
		})
	}

	// A fully specified condition of each shape passes the gate.
	complete := &Graph{
		Name:       "n",
		EntryBlock: "b1",
		Blocks: []Block{
			{ID: "b1", Type: TypeIfCondition, Condition: &Condition{
				Kind: CondSavedValueExists, ValueRef: &SavedValueRef{Key: "order_id"},
			}, NextBlock: "b2"},
			{ID: "b2", Type: TypeRepeatUntil, Condition: &Condition{
				Kind: CondTextMatch, Element: elem("status", "Order status"),
				MatchMode: MatchContains, Value: "Shipped",
			}, BodyBlocks: []string{"b3"}, MaxIterations: 3},
			{ID: "b3", Type: TypeRefreshPage},
		},
	}
	assert.Empty(t, complete.ValidateCompleteness())
}

func TestCompletenessEvidenceRule(t *testing.T) {
	g := &Graph{
		Name:       "n",
		EntryBlock: "b1",
		Blocks: []Block{
			// Placeholders in URLs are allowed for environment bases.
			{ID: "b1", Type: TypeOpenPage, URL: "{{BASE_URL}}/login"},
			// Forbidden in element names.
			{ID: "b2", Type: TypeClickElement, Element: elem("button", "{{button_name}}")},
			// Forbidden in condition values.
			{ID: "b3", Type: TypeRepeatUntil, Condition: &Condition{
				Kind: CondURLContains, ExpectedFragment: "{{target}}",
			}},
		},
	}
	errs := g.ValidateCompleteness()
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "control flow conditions")
	assert.Contains(t, errs[1], "element selection")

	// The repeat_until error names b3, the element error names b2.
	assert.Contains(t, errs[0], "'b3'")
	assert.Contains(t, errs[1], "'b2'")
}

func TestCompletenessStructuralVocabulary(t *testing.T) {
	g := &Graph{
		Name:       "n",
		EntryBlock: "b1",
		Blocks: []Block{
			{ID: "b1", Type: TypeClickElement, Element: &ElementRef{
				Role: "button", Name: "", IntentType: IntentStructural, SystemRole: "teleport",
			}},
			{ID: "b2", Type: TypeClickElement, Element: &ElementRef{
				Role: "button", IntentType: IntentStructural, SystemRole: "cart",
			}},
		},
	}
	errs := g.ValidateCompleteness()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "Unknown structural intent 'teleport'")
}

func TestRunnableFlow(t *testing.T) {
	g := &Graph{
		Name:       "smoke",
		EntryBlock: "b1",
		Blocks: []Block{
			{ID: "b1", Type: TypeOpenPage, URL: "https://shop.test", NextBlock: "b2"},
			{ID: "b2", Type: TypeClickElement, Element: elem("button", "Add to Cart")},
		},
	}
	assert.Empty(t, g.ValidateReferences())
	assert.Empty(t, g.ValidateCompleteness())
	assert.Equal(t, StateRunnable, g.State())
}

func TestTextMatchModes(t *testing.T) {
	assert.True(t, TextMatch{Mode: MatchEquals, Value: "Done"}.Matches("Done"))
	assert.False(t, TextMatch{Mode: MatchEquals, Value: "Done"}.Matches("Done!"))
	assert.True(t, TextMatch{Mode: MatchContains, Value: "one"}.Matches("Done"))
}

func TestElementRefConfidenceDefaults(t *testing.T) {
	assert.Equal(t, ConfidenceHigh, elem("button", "Save").EffectiveConfidence())
	structural := &ElementRef{IntentType: IntentStructural, SystemRole: "menu"}
	assert.Equal(t, ConfidenceDeclared, structural.EffectiveConfidence())
	declaredLow := &ElementRef{Role: "button", Name: "Save", Confidence: ConfidenceLow}
	assert.Equal(t, ConfidenceLow, declaredLow.EffectiveConfidence())
}

func TestConditionDescribe(t *testing.T) {
	c := &Condition{Kind: CondSavedValueEquals, ValueRef: &SavedValueRef{Key: "order_id"}, ExpectedText: "42"}
	assert.Equal(t, "saved value 'order_id' equals '42'", c.Describe())
}
