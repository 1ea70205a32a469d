// Package interp executes flow graphs against a browser session. The
// interpreter walks the graph with an explicit work list (no recursion,
// so loop depth never threatens the stack), dispatches each block to
// its handler, and assembles the execution report with per-block
// narration, evidence, and screenshots as it goes.
package interp

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odvcencio/weblens/pkg/browser"
	"github.com/odvcencio/weblens/pkg/config"
	"github.com/odvcencio/weblens/pkg/failure"
	"github.com/odvcencio/weblens/pkg/flow"
	"github.com/odvcencio/weblens/pkg/logging"
	"github.com/odvcencio/weblens/pkg/report"
	"github.com/odvcencio/weblens/pkg/resolve"
)

// Interpreter drives one browser session through flow graphs. It is
// not safe for concurrent use; the runner creates one per run.
type Interpreter struct {
	sess     browser.Session
	cfg      *config.Config
	resolver *resolve.Resolver
	retrier  *resolve.Retrier

	log     *logging.Logger
	onEvent func(report.Event)

	// sleep and now are replaceable in tests.
	sleep func(context.Context, time.Duration) error
	now   func() time.Time
}

// Options configures a single execution.
type Options struct {
	RunID            string
	InitialVariables map[string]string
	ScenarioName     string
}

// New builds an interpreter over a live session.
func New(sess browser.Session, cfg *config.Config) *Interpreter {
	resolver := resolve.New(cfg.Resolver, cfg.Structural)
	return &Interpreter{
		sess:     sess,
		cfg:      cfg,
		resolver: resolver,
		retrier:  resolve.NewRetrier(cfg.Retry, resolver),
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

// SetLogger attaches a structured logger for block-level events.
func (in *Interpreter) SetLogger(l *logging.Logger) {
	in.log = l
}

// OnEvent registers the progress event sink. Events are emitted
// synchronously from the executing goroutine in block order.
func (in *Interpreter) OnEvent(fn func(report.Event)) {
	in.onEvent = fn
}

// Execute runs the flow to completion and returns the report. Failures
// never surface as returned errors; they are converted to the canonical
// form and recorded on the report, so callers get a full artifact
// either way.
func (in *Interpreter) Execute(ctx context.Context, g *flow.Graph, opts Options) *report.ExecutionReport {
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	rc := NewContext(runID, opts.InitialVariables, g.Name, opts.ScenarioName, in.now())
	rc.Report.FlowID = g.ID

	if errs := g.ValidateReferences(); len(errs) > 0 {
		return in.finish(rc, failure.InvalidFlowState("flow validation failed: "+strings.Join(errs, "; ")))
	}
	if errs := g.ValidateCompleteness(); len(errs) > 0 {
		return in.finish(rc, failure.InvalidFlowState("flow is not runnable: "+strings.Join(errs, "; ")))
	}

	in.emitEvent(rc, report.Event{
		Type: report.EventExecutionStart,
		Data: map[string]any{"flow_name": g.Name, "scenario_name": opts.ScenarioName},
	})
	rc.Log("Starting flow: " + g.Name)
	if in.log != nil {
		_ = in.log.Info(logging.CategoryInterpreter, "flow_start", g.Name, map[string]any{"run_id": runID})
	}

	err := in.runGuarded(ctx, rc, g)
	if err != nil {
		return in.finish(rc, failure.From(err))
	}
	return in.finish(rc, nil)
}

// runGuarded converts a panic escaping the work loop or a driver call
// into an internal-crash failure. The runner executes flows on worker
// goroutines, so an escaping panic would take down the whole process;
// catching it here means the report is still finalized and returned.
func (in *Interpreter) runGuarded(ctx context.Context, rc *Context, g *flow.Graph) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = failure.InternalCrash(fmt.Errorf("panic: %v", r), "interpreter").
				WithEvidence("stack", string(debug.Stack()))
		}
	}()
	return in.run(ctx, rc, g)
}

// workItem is one entry on the execution work list: either a block to
// run, or a pending loop-condition check.
type workItem struct {
	blockID string
	loop    *loopState
}

// loopState tracks a repeat_until in flight. iteration counts how many
// times the body has run when the check is popped.
type loopState struct {
	block     *flow.Block
	iteration int
}

func (in *Interpreter) run(ctx context.Context, rc *Context, g *flow.Graph) error {
	stack := []workItem{{blockID: g.EntryBlock}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return failure.From(err)
		}

		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if item.loop != nil {
			next, err := in.checkLoop(ctx, rc, item.loop)
			if err != nil {
				return err
			}
			stack = append(stack, next...)
			continue
		}

		block := g.Block(item.blockID)
		if block == nil {
			return failure.InvalidFlowState(fmt.Sprintf("block '%s' not found in flow", item.blockID))
		}

		pushes, err := in.runBlock(ctx, rc, block)
		if err != nil {
			return err
		}
		// pushes is in execution order; the stack pops LIFO.
		for i := len(pushes) - 1; i >= 0; i-- {
			stack = append(stack, pushes[i])
		}
	}

	rc.Log("Reached end of flow")
	return nil
}

// checkLoop evaluates a repeat_until condition after a body pass. The
// body runs before the first check, so iteration N means the body has
// executed N times. The check runs as a re-entry of the repeat block
// itself: its narration and any loop-limit failure land on the repeat
// block's record, not on the last body block's.
func (in *Interpreter) checkLoop(ctx context.Context, rc *Context, ls *loopState) ([]workItem, error) {
	block := ls.block
	rc.MarkExecuted(block.ID)
	start := in.now()

	met := in.evaluateCondition(ctx, rc, block.Condition)
	rc.EmitAll(tafRepeatLoop(string(block.Condition.Kind), met, ls.iteration))

	var err error
	var next []workItem
	switch {
	case met:
		if block.NextBlock != "" {
			next = []workItem{{blockID: block.NextBlock}}
		}
	case ls.iteration >= block.MaxIterations:
		err = failure.LoopLimit(block.Condition.Describe(), block.MaxIterations)
	default:
		ls.iteration++
		if len(block.BodyBlocks) > 0 {
			next = append(next, workItem{blockID: block.BodyBlocks[0]})
		}
		// The check pops after the body chain drains.
		next = append([]workItem{{loop: ls}}, next...)
	}

	in.completeBlock(ctx, rc, block, start, err)
	return next, err
}

// runBlock executes one block with its full lifecycle: running event,
// dispatch, then the completion record with duration, narration,
// evidence, and screenshot regardless of outcome.
func (in *Interpreter) runBlock(ctx context.Context, rc *Context, block *flow.Block) ([]workItem, error) {
	rc.MarkExecuted(block.ID)
	start := in.now()

	in.emitEvent(rc, report.Event{
		Type: report.EventBlockExecution,
		Data: map[string]any{"status": "running", "block_id": block.ID, "message": in.blockMessage(rc, block)},
	})

	pushes, err := in.dispatch(ctx, rc, block)
	in.completeBlock(ctx, rc, block, start, err)
	return pushes, err
}

// completeBlock flushes the buffered narration and evidence into a
// finished record for the block, captures the screenshot, and emits the
// completion event. runBlock and the repeat_until condition check share
// this lifecycle so loop narration stays on the repeat block.
func (in *Interpreter) completeBlock(ctx context.Context, rc *Context, block *flow.Block, start time.Time, err error) {
	status := report.StatusSuccess
	if err != nil {
		status = report.StatusFailed
	}
	duration := in.now().Sub(start)
	taf := rc.FlushTAF()
	evidence := rc.FlushEvidence()

	var shot []byte
	if s, serr := in.sess.Screenshot(ctx); serr == nil {
		shot = s
	} else {
		taf.Append(report.ChannelFeedback, "Step visual capture unavailable")
	}

	msg := "Completed " + string(block.Type)
	if traces := taf[report.ChannelTrace]; len(traces) > 0 {
		msg = traces[0]
	}

	exec := report.BlockExecution{
		RunID:      rc.RunID,
		BlockID:    block.ID,
		BlockType:  block.Type,
		Status:     status,
		DurationMS: float64(duration) / float64(time.Millisecond),
		TAF:        taf,
		Screenshot: shot,
		Message:    msg,
		Evidence:   evidence,
	}
	rc.Report.Blocks = append(rc.Report.Blocks, exec)
	recordBlock(block.Type, status)

	in.emitEvent(rc, report.Event{
		Type:  report.EventBlockExecution,
		Block: &exec,
		Data:  map[string]any{"status": string(status), "block_id": block.ID, "duration_ms": exec.DurationMS},
	})

	if in.log != nil {
		level := logging.LevelInfo
		if status == report.StatusFailed {
			level = logging.LevelError
		}
		_ = in.log.BlockEvent(level, logging.CategoryInterpreter, "block_"+string(status), block.ID, msg, map[string]any{
			"block_type":  string(block.Type),
			"duration_ms": exec.DurationMS,
		})
	}
}

func (in *Interpreter) dispatch(ctx context.Context, rc *Context, block *flow.Block) ([]workItem, error) {
	switch block.Type {
	case flow.TypeIfCondition:
		return in.execIfCondition(ctx, rc, block)
	case flow.TypeRepeatUntil:
		return in.execRepeatUntil(rc, block)
	}

	var err error
	switch block.Type {
	case flow.TypeOpenPage:
		err = in.execOpenPage(ctx, rc, block)
	case flow.TypeClickElement:
		err = in.execClickElement(ctx, rc, block)
	case flow.TypeEnterText:
		err = in.execEnterText(ctx, rc, block)
	case flow.TypeWaitUntilVisible:
		err = in.execWaitUntilVisible(ctx, rc, block)
	case flow.TypeAssertVisible:
		err = in.execAssertVisible(ctx, rc, block)
	case flow.TypeDelay:
		err = in.execDelay(ctx, rc, block)
	case flow.TypeRefreshPage:
		err = in.execRefreshPage(ctx, rc)
	case flow.TypeWaitForPageLoad:
		err = in.execWaitForPageLoad(ctx, rc, block)
	case flow.TypeSelectOption:
		err = in.execSelectOption(ctx, rc, block)
	case flow.TypeUploadFile:
		err = in.execUploadFile(ctx, rc, block)
	case flow.TypeVerifyText:
		err = in.execVerifyText(ctx, rc, block)
	case flow.TypeScrollToElement:
		err = in.execScrollToElement(ctx, rc, block)
	case flow.TypeSaveText:
		err = in.execSaveText(ctx, rc, block)
	case flow.TypeSavePageContent:
		err = in.execSavePageContent(ctx, rc, block)
	case flow.TypeVerifyPageTitle:
		err = in.execVerifyPageTitle(ctx, rc, block)
	case flow.TypeVerifyURL:
		err = in.execVerifyURL(ctx, rc, block)
	case flow.TypeVerifyElementEnabled:
		err = in.execVerifyElementEnabled(ctx, rc, block)
	case flow.TypeUseSavedValue:
		err = in.execUseSavedValue(ctx, rc, block)
	case flow.TypeVerifyNetworkRequest:
		err = in.execVerifyNetworkRequest(ctx, rc, block)
	case flow.TypeVerifyPerformance:
		err = in.execVerifyPerformance(ctx, rc, block)
	case flow.TypeSubmitForm:
		err = in.execSubmitForm(ctx, rc, block)
	case flow.TypeConfirmDialog:
		err = in.execConfirmDialog(ctx, rc)
	case flow.TypeDismissDialog:
		err = in.execDismissDialog(ctx, rc)
	case flow.TypeActivatePrimaryAction:
		err = in.execActivatePrimaryAction(ctx, rc)
	case flow.TypeSubmitCurrentInput:
		err = in.execSubmitCurrentInput(ctx, rc, block)
	case flow.TypeVerifyPageContent:
		err = in.execVerifyPageContent(ctx, rc, block)
	case flow.TypeGetCookies:
		err = in.execGetCookies(ctx, rc)
	case flow.TypeGetLocalStorage:
		err = in.execGetLocalStorage(ctx, rc)
	case flow.TypeGetSessionStorage:
		err = in.execGetSessionStorage(ctx, rc)
	case flow.TypeObserveNetwork:
		err = in.execObserveNetwork(ctx, rc)
	case flow.TypeSwitchTab:
		err = in.execSwitchTab(ctx, rc, block)
	default:
		err = failure.InvalidFlowState(fmt.Sprintf("unknown block type '%s'", block.Type))
	}
	if err != nil {
		return nil, err
	}
	if block.NextBlock != "" {
		return []workItem{{blockID: block.NextBlock}}, nil
	}
	return nil, nil
}

func (in *Interpreter) execIfCondition(ctx context.Context, rc *Context, block *flow.Block) ([]workItem, error) {
	met := in.evaluateCondition(ctx, rc, block.Condition)
	rc.EmitAll(tafIfCondition(string(block.Condition.Kind), met))

	var pushes []workItem
	if met && len(block.ThenBlocks) > 0 {
		pushes = append(pushes, workItem{blockID: block.ThenBlocks[0]})
	}
	if !met && len(block.ElseBlocks) > 0 {
		pushes = append(pushes, workItem{blockID: block.ElseBlocks[0]})
	}
	if block.NextBlock != "" {
		pushes = append(pushes, workItem{blockID: block.NextBlock})
	}
	return pushes, nil
}

func (in *Interpreter) execRepeatUntil(rc *Context, block *flow.Block) ([]workItem, error) {
	rc.Log("Repeating until: " + block.Condition.Describe())

	pushes := []workItem{}
	if len(block.BodyBlocks) > 0 {
		pushes = append(pushes, workItem{blockID: block.BodyBlocks[0]})
	}
	return append(pushes, workItem{loop: &loopState{block: block, iteration: 1}}), nil
}

// resolveElement resolves a reference with retry, narrating strategy
// choice and outcome into the block's TAF channels.
func (in *Interpreter) resolveElement(ctx context.Context, rc *Context, ref *flow.ElementRef, explicitTimeout time.Duration) (*resolve.Result, error) {
	conf := ref.EffectiveConfidence()
	sched := in.retrier.ScheduleFor(conf, explicitTimeout)
	rc.EmitAll(tafElementResolution(ref.Display(), string(conf), sched.Strategy, ref.NameSource, ref.Region(), ref.IsStructural()))

	res, err := in.retrier.Resolve(ctx, in.sess, ref, explicitTimeout)
	if err != nil {
		rc.EmitAll(tafElementNotFound(ref.Display(), sched.Attempts, sched.Strategy))
		recordResolution(string(conf), false)
		return nil, err
	}

	if sched.Strategy != "balanced" {
		rc.Emit(report.ChannelAnalysis, fmt.Sprintf("Element found using %s resolution strategy.", sched.Strategy))
	}
	rc.EmitAll(tafElementFound(ref.Display(), res.Attempts))
	recordResolution(string(conf), true)
	return res, nil
}

// checkCapability gates an action on the driver-observed capabilities.
// A driver that reports no capabilities at all does not block.
func checkCapability(cand *browser.Candidate, name, intent string, required browser.Capability) error {
	if len(cand.Capabilities) == 0 {
		return nil
	}
	if !cand.Has(required) {
		return failure.CapabilityMismatch(name, intent, string(required), cand.CapabilityNames())
	}
	return nil
}

// blockMessage renders a friendly one-line intent for the running
// event. Interpolation is best-effort here; failures fall back to the
// raw text since the handler will report them properly.
func (in *Interpreter) blockMessage(rc *Context, block *flow.Block) string {
	interp := func(s string) string {
		if out, err := rc.Interpolate(s); err == nil {
			return out
		}
		return s
	}
	name := "element"
	if block.Element != nil {
		name = block.Element.Display()
	}
	switch block.Type {
	case flow.TypeOpenPage:
		return "Opening page: " + block.URL
	case flow.TypeClickElement:
		return "Clicking on " + name
	case flow.TypeEnterText:
		return "Entering text into " + name
	case flow.TypeWaitUntilVisible:
		return "Waiting for " + name + " to appear"
	case flow.TypeAssertVisible:
		return "Verifying " + name + " is visible"
	case flow.TypeDelay:
		return fmt.Sprintf("Waiting for %g seconds...", block.Seconds)
	case flow.TypeRefreshPage:
		return "Refreshing page"
	case flow.TypeWaitForPageLoad:
		return "Waiting for page to finish loading"
	case flow.TypeIfCondition:
		return "Checking condition: " + block.Condition.Describe()
	case flow.TypeRepeatUntil:
		return "Repeating until: " + block.Condition.Describe()
	case flow.TypeSelectOption:
		return "Selecting option in " + name
	case flow.TypeVerifyText:
		return "Verifying text in " + name
	case flow.TypeScrollToElement:
		return "Scrolling to " + name
	case flow.TypeSaveText:
		return "Extracting text from " + name
	case flow.TypeVerifyPageContent:
		return "Verifying page contains: " + interp(block.Match.Value)
	case flow.TypeActivatePrimaryAction:
		return "Activating primary action (Search/Submit/Login)"
	}
	return "Executing " + string(block.Type) + "..."
}

func (in *Interpreter) emitEvent(rc *Context, ev report.Event) {
	if in.onEvent == nil {
		return
	}
	ev.RunID = rc.RunID
	ev.Timestamp = in.now()
	in.onEvent(ev)
}

func (in *Interpreter) finish(rc *Context, f *failure.Failure) *report.ExecutionReport {
	r := rc.Report
	r.FinishedAt = in.now()
	r.DurationMS = float64(r.FinishedAt.Sub(r.StartedAt)) / float64(time.Millisecond)
	r.ExecutedBlocks = rc.ExecutedBlocks()
	r.FinalVariables = rc.SavedValues

	if f == nil {
		r.Success = true
		recordRun("success")
		in.emitEvent(rc, report.Event{
			Type: report.EventExecutionComplete,
			Data: map[string]any{"success": true, "duration_ms": r.DurationMS},
		})
		if in.log != nil {
			_ = in.log.Info(logging.CategoryInterpreter, "flow_complete", r.FlowName, map[string]any{"duration_ms": r.DurationMS})
		}
		return r
	}

	blockID := rc.LastExecuted()
	r.Success = false
	r.Error = report.UserFacing(f, blockID)
	r.ErrorBlockID = blockID
	rc.Log("Action Failed: " + f.Reason)
	recordRun("failed")
	in.emitEvent(rc, report.Event{
		Type: report.EventError,
		Data: map[string]any{"error": r.Error, "block_id": blockID},
	})
	if in.log != nil {
		_ = in.log.Error(logging.CategoryInterpreter, "flow_failed", f.Reason, map[string]any{
			"category": string(f.Category),
			"owner":    string(f.Owner),
			"block_id": blockID,
		})
	}
	return r
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
