package flow

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Scenario is one set of variable values for a single run of a flow.
type Scenario struct {
	ScenarioID   string            `json:"scenario_id,omitempty"`
	ScenarioName string            `json:"scenario_name"`
	Values       map[string]string `json:"values"`
}

// ScenarioSet is a named collection of scenarios stored with a flow.
type ScenarioSet struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Scenarios []Scenario `json:"scenarios"`
	CreatedAt float64    `json:"created_at"`
}

// State gates execution: only runnable flows may execute.
type State string

const (
	StateDraft    State = "draft"
	StateRunnable State = "runnable"
)

// Graph is a complete flow: an entry block plus a set of blocks linked
// by IDs. Order within Blocks carries no meaning; traversal follows
// NextBlock and branch lists only.
type Graph struct {
	ID            string            `json:"id,omitempty"`
	Name          string            `json:"name"`
	SchemaVersion int               `json:"schema_version,omitempty"`
	Description   string            `json:"description,omitempty"`
	EntryBlock    string            `json:"entry_block"`
	Blocks        []Block           `json:"blocks"`
	Variables     map[string]string `json:"variables,omitempty"`
	ScenarioSets  []ScenarioSet     `json:"scenario_sets,omitempty"`

	index map[string]*Block
}

// Decode parses a flow graph from JSON, applies block defaults, and
// rejects duplicate block IDs.
func Decode(data []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode flow: %w", err)
	}
	if g.SchemaVersion == 0 {
		g.SchemaVersion = 1
	}
	seen := make(map[string]bool, len(g.Blocks))
	for i := range g.Blocks {
		b := &g.Blocks[i]
		if seen[b.ID] {
			return nil, fmt.Errorf("decode flow: duplicate block id %q", b.ID)
		}
		seen[b.ID] = true
		b.ApplyDefaults()
	}
	return &g, nil
}

// Block returns the block with the given ID, or nil.
func (g *Graph) Block(id string) *Block {
	if g.index == nil {
		g.index = make(map[string]*Block, len(g.Blocks))
		for i := range g.Blocks {
			g.index[g.Blocks[i].ID] = &g.Blocks[i]
		}
	}
	return g.index[id]
}

// ValidateReferences checks that the entry block and every next/branch
// reference points at an existing block, and that the entry block is a
// true root (never a branch child). Returns all problems found.
func (g *Graph) ValidateReferences() []string {
	var errs []string
	ids := make(map[string]bool, len(g.Blocks))
	for i := range g.Blocks {
		ids[g.Blocks[i].ID] = true
	}

	if !ids[g.EntryBlock] {
		errs = append(errs, fmt.Sprintf("Entry block '%s' does not exist", g.EntryBlock))
	}
	for i := range g.Blocks {
		b := &g.Blocks[i]
		if b.NextBlock != "" && !ids[b.NextBlock] {
			errs = append(errs, fmt.Sprintf("Block '%s' references non-existent next_block '%s'", b.ID, b.NextBlock))
		}
		check := func(list []string, field string) {
			for _, id := range list {
				if id == g.EntryBlock {
					errs = append(errs, fmt.Sprintf("Entry block '%s' cannot appear in %s of block '%s'", g.EntryBlock, field, b.ID))
				}
				if !ids[id] {
					errs = append(errs, fmt.Sprintf("Block '%s' references non-existent block '%s' in %s", b.ID, id, field))
				}
			}
		}
		if b.Type == TypeIfCondition {
			check(b.ThenBlocks, "then_blocks")
			check(b.ElseBlocks, "else_blocks")
		}
		if b.Type == TypeRepeatUntil {
			check(b.BodyBlocks, "body_blocks")
		}
	}
	return errs
}

var variablePattern = regexp.MustCompile(`\{\{[^}]+\}\}`)

func containsVariable(s string) bool {
	return variablePattern.MatchString(s)
}

// elementBlocks lists block types whose element name participates in
// resolution and therefore must stay evidence-compatible (no
// placeholders: the report has to show the literal target).
var elementBlocks = map[BlockType]bool{
	TypeClickElement: true, TypeEnterText: true, TypeWaitUntilVisible: true,
	TypeAssertVisible: true, TypeSelectOption: true, TypeUploadFile: true,
	TypeVerifyText: true, TypeScrollToElement: true, TypeSaveText: true,
	TypeVerifyElementEnabled: true, TypeSubmitForm: true, TypeSubmitCurrentInput: true,
}

// ValidateCompleteness is the execution gate: it checks every block is
// fully configured and enforces the evidence-compatibility rule for
// saved values. A flow with any errors is a draft and cannot run.
func (g *Graph) ValidateCompleteness() []string {
	var errs []string

	for i := range g.Blocks {
		b := &g.Blocks[i]
		label := b.Label()

		switch b.Type {
		case TypeOpenPage:
			if b.URL == "" {
				errs = append(errs, label+": Requires a URL")
			}
		case TypeClickElement, TypeWaitUntilVisible, TypeAssertVisible,
			TypeScrollToElement, TypeVerifyElementEnabled, TypeSubmitForm:
			if b.Element == nil {
				errs = append(errs, label+": Requires a target element")
			}
		case TypeEnterText:
			if b.Element == nil {
				errs = append(errs, label+": Requires a target element")
			}
		case TypeSelectOption:
			if b.Element == nil {
				errs = append(errs, label+": Requires a dropdown element")
			}
			if b.OptionText == "" {
				errs = append(errs, label+": Requires option text")
			}
		case TypeUploadFile:
			if b.Element == nil {
				errs = append(errs, label+": Requires a file input element")
			}
			if b.File == nil {
				errs = append(errs, label+": Requires a file selection")
			}
		case TypeVerifyText:
			if b.Element == nil {
				errs = append(errs, label+": Requires a target element")
			}
			if b.Match == nil || b.Match.Value == "" {
				errs = append(errs, label+": Requires expected text value")
			}
		case TypeSaveText:
			if b.Element == nil {
				errs = append(errs, label+": Requires a target element")
			}
			if b.SaveAs == nil || b.SaveAs.Key == "" {
				errs = append(errs, label+": Requires a variable name")
			}
		case TypeSavePageContent:
			if b.SaveAs == nil || b.SaveAs.Key == "" {
				errs = append(errs, label+": Requires a variable name")
			}
		case TypeVerifyPageTitle:
			if b.Title == "" {
				errs = append(errs, label+": Requires expected title")
			}
		case TypeVerifyURL:
			if b.URLPart == "" {
				errs = append(errs, label+": Requires expected URL fragment")
			}
		case TypeUseSavedValue:
			if b.ValueRef == nil || b.ValueRef.Key == "" {
				errs = append(errs, label+": Requires a source value")
			}
			if b.Element == nil {
				errs = append(errs, label+": Requires a target element")
			}
		case TypeVerifyPageContent:
			if b.Match == nil || b.Match.Value == "" {
				errs = append(errs, label+": Requires text to search for")
			}
		case TypeVerifyNetworkRequest:
			if b.URLPattern == "" {
				errs = append(errs, label+": Requires a URL pattern")
			}
		case TypeIfCondition, TypeRepeatUntil:
			if b.Condition == nil {
				errs = append(errs, label+": Requires a condition")
			} else {
				for _, m := range b.Condition.Validate() {
					errs = append(errs, label+": "+m)
				}
			}
		}

		// Structural refs must use the controlled vocabulary.
		if b.Element != nil && b.Element.IsStructural() && !IsStructuralIntent(b.Element.SystemRole) {
			errs = append(errs, fmt.Sprintf("%s: Unknown structural intent '%s'", label, b.Element.SystemRole))
		}
	}

	// Evidence-compatibility: placeholders are forbidden wherever the
	// report must show the literal value used. URLs are exempt so that
	// environment bases like {{BASE_URL}} keep working.
	for i := range g.Blocks {
		b := &g.Blocks[i]
		label := fmt.Sprintf("Block '%s'", b.ID)

		if b.IsControlFlow() && b.Condition != nil {
			c := b.Condition
			for _, v := range []string{c.Value, c.ExpectedTitle, c.ExpectedFragment, c.ExpectedText} {
				if containsVariable(v) {
					errs = append(errs, label+": Saved values cannot be used in control flow conditions")
					break
				}
			}
		}
		if elementBlocks[b.Type] && b.Element != nil && containsVariable(b.Element.Name) {
			errs = append(errs, label+": Saved values cannot be used for element selection")
		}
	}

	return errs
}

// State reports whether the flow is runnable.
func (g *Graph) State() State {
	if len(g.ValidateCompleteness()) == 0 {
		return StateRunnable
	}
	return StateDraft
}
