package interp

import (
	"regexp"
	"strings"
	"time"

	"github.com/odvcencio/weblens/pkg/failure"
	"github.com/odvcencio/weblens/pkg/report"
)

var placeholderPattern = regexp.MustCompile(`\{\{([^}]*)\}\}`)

// Context carries the mutable state of one run: saved values, the
// narration buffers for the block in flight, and the report being
// assembled. A Context belongs to exactly one run and is never shared.
type Context struct {
	RunID       string
	SavedValues map[string]string

	executedBlocks []string
	logs           []string

	// Per-block buffers, flushed into the BlockExecution record when
	// the block completes.
	taf      report.TAF
	evidence map[string]any

	Report *report.ExecutionReport
}

// NewContext seeds a run context. initial holds scenario variables and
// environment values like BASE_URL; the map is copied so scenarios stay
// isolated.
func NewContext(runID string, initial map[string]string, flowName, scenarioName string, now time.Time) *Context {
	saved := make(map[string]string, len(initial))
	for k, v := range initial {
		saved[k] = v
	}
	return &Context{
		RunID:       runID,
		SavedValues: saved,
		taf:         newTAF(),
		Report: &report.ExecutionReport{
			RunID:          runID,
			FlowName:       flowName,
			ScenarioName:   scenarioName,
			StartedAt:      now,
			ScenarioValues: initial,
		},
	}
}

func newTAF() report.TAF {
	return report.TAF{
		report.ChannelTrace:    {},
		report.ChannelAnalysis: {},
		report.ChannelFeedback: {},
	}
}

// Log records a trace line. The flat log doubles as the legacy logs
// list on the report.
func (c *Context) Log(msg string) {
	c.logs = append(c.logs, msg)
	c.Emit(report.ChannelTrace, msg)
}

// Emit appends narration to the current block's buffer.
func (c *Context) Emit(ch report.Channel, msgs ...string) {
	c.taf.Append(ch, msgs...)
}

// EmitAll folds a whole template bundle into the buffer.
func (c *Context) EmitAll(t report.TAF) {
	c.taf.Merge(t)
}

// FlushTAF returns the buffered narration and resets the buffer for the
// next block.
func (c *Context) FlushTAF() report.TAF {
	out := c.taf
	c.taf = newTAF()
	return out
}

// SetEvidence attaches structured evidence to the block in flight.
func (c *Context) SetEvidence(ev map[string]any) {
	c.evidence = ev
}

// FlushEvidence returns and clears the block's evidence.
func (c *Context) FlushEvidence() map[string]any {
	ev := c.evidence
	c.evidence = nil
	return ev
}

// MarkExecuted appends the block to the execution trail.
func (c *Context) MarkExecuted(blockID string) {
	c.executedBlocks = append(c.executedBlocks, blockID)
}

// LastExecuted returns the most recently entered block ID.
func (c *Context) LastExecuted() string {
	if len(c.executedBlocks) == 0 {
		return ""
	}
	return c.executedBlocks[len(c.executedBlocks)-1]
}

// ExecutedBlocks returns the execution trail in order.
func (c *Context) ExecutedBlocks() []string {
	return c.executedBlocks
}

// Logs returns the flat trace log.
func (c *Context) Logs() []string {
	return c.logs
}

// Interpolate replaces {{name}} placeholders with saved values. Strict:
// a placeholder with no saved value fails the run rather than typing
// the literal braces into the page.
func (c *Context) Interpolate(text string) (string, error) {
	matches := placeholderPattern.FindAllStringSubmatch(text, -1)
	result := text
	for _, m := range matches {
		key := strings.TrimSpace(m[1])
		val, ok := c.SavedValues[key]
		if !ok {
			return "", failure.VariableMissing(key, c.savedKeys())
		}
		result = strings.ReplaceAll(result, m[0], val)
	}
	return result, nil
}

func (c *Context) savedKeys() []string {
	keys := make([]string, 0, len(c.SavedValues))
	for k := range c.SavedValues {
		keys = append(keys, k)
	}
	return keys
}
