// Package report defines the execution artifacts a run produces: the
// per-block records with their TAF narration, the run-level report,
// and the event envelopes streamed while a run is in flight.
package report

import (
	"time"

	"github.com/odvcencio/weblens/pkg/failure"
	"github.com/odvcencio/weblens/pkg/flow"
)

// Channel names one of the three narration streams recorded per block.
type Channel string

const (
	// ChannelTrace is the factual what-happened stream.
	ChannelTrace Channel = "trace"
	// ChannelAnalysis explains why the engine did what it did.
	ChannelAnalysis Channel = "analysis"
	// ChannelFeedback carries actionable advice for the flow author.
	ChannelFeedback Channel = "feedback"
)

// TAF holds the trace/analysis/feedback narration for one block.
type TAF map[Channel][]string

// Append merges msgs into the channel.
func (t TAF) Append(ch Channel, msgs ...string) {
	t[ch] = append(t[ch], msgs...)
}

// Merge folds another TAF bundle into this one, channel by channel.
func (t TAF) Merge(other TAF) {
	for ch, msgs := range other {
		t[ch] = append(t[ch], msgs...)
	}
}

// BlockStatus is the outcome of one block.
type BlockStatus string

const (
	StatusSuccess BlockStatus = "success"
	StatusFailed  BlockStatus = "failed"
)

// BlockExecution is the record of a single block's execution.
type BlockExecution struct {
	RunID      string         `json:"run_id"`
	BlockID    string         `json:"block_id"`
	BlockType  flow.BlockType `json:"block_type"`
	Status     BlockStatus    `json:"status"`
	DurationMS float64        `json:"duration_ms"`

	TAF        TAF    `json:"taf"`
	Screenshot []byte `json:"screenshot,omitempty"`
	Message    string `json:"message,omitempty"`

	// Resolution evidence.
	ConfidenceScore  float64        `json:"confidence_score,omitempty"`
	ActualAttributes map[string]any `json:"actual_attributes,omitempty"`
	Evidence         map[string]any `json:"evidence,omitempty"`
}

// UserFacingError is the two-tier failure projection shipped to users:
// a short summary up front, structured evidence behind it.
type UserFacingError struct {
	Title       string         `json:"title"`
	Intent      string         `json:"intent"`
	Reason      string         `json:"reason"`
	Suggestion  string         `json:"suggestion"`
	Evidence    map[string]any `json:"evidence,omitempty"`
	Owner       string         `json:"owner,omitempty"`
	Determinism string         `json:"determinism,omitempty"`
	BlockID     string         `json:"related_block_id,omitempty"`
}

// UserFacing projects a canonical failure for a report.
func UserFacing(f *failure.Failure, blockID string) *UserFacingError {
	if f == nil {
		return nil
	}
	return &UserFacingError{
		Title:       f.Summary,
		Intent:      f.Intent,
		Reason:      f.Reason,
		Suggestion:  f.Guidance,
		Evidence:    f.Evidence,
		Owner:       string(f.Owner),
		Determinism: string(f.Determinism),
		BlockID:     blockID,
	}
}

// ExecutionReport is the full artifact of one run.
type ExecutionReport struct {
	RunID        string `json:"run_id"`
	FlowID       string `json:"flow_id,omitempty"`
	FlowName     string `json:"flow_name,omitempty"`
	ScenarioName string `json:"scenario_name,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	DurationMS float64   `json:"duration_ms"`
	Success    bool      `json:"success"`

	Blocks         []BlockExecution  `json:"blocks"`
	ExecutedBlocks []string          `json:"executed_blocks,omitempty"`
	Error          *UserFacingError  `json:"error,omitempty"`
	ErrorBlockID   string            `json:"error_block_id,omitempty"`
	ScenarioValues map[string]string `json:"scenario_values,omitempty"`
	FinalVariables map[string]string `json:"final_variables,omitempty"`
}

// EventType labels one streamed run event.
type EventType string

const (
	EventExecutionStart    EventType = "execution_start"
	EventBlockExecution    EventType = "block_execution"
	EventExecutionComplete EventType = "execution_complete"
	EventError             EventType = "error"
)

// Event is the envelope streamed to run observers.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	RunID     string          `json:"run_id"`
	Data      map[string]any  `json:"data,omitempty"`
	Block     *BlockExecution `json:"block,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// SuiteResult is one scenario's outcome inside a suite run.
type SuiteResult struct {
	ScenarioName string           `json:"scenario_name"`
	RunID        string           `json:"run_id"`
	Success      bool             `json:"success"`
	Report       *ExecutionReport `json:"report"`
}

// SuiteReport groups the results of a multi-scenario execution.
type SuiteReport struct {
	SuiteID    string        `json:"suite_id"`
	FlowName   string        `json:"flow_name"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
	Results    []SuiteResult `json:"results"`
}

// Passed reports whether every scenario in the suite succeeded.
func (s *SuiteReport) Passed() bool {
	for _, r := range s.Results {
		if !r.Success {
			return false
		}
	}
	return len(s.Results) > 0
}
