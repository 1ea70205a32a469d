package interp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/odvcencio/weblens/pkg/browser"
	"github.com/odvcencio/weblens/pkg/config"
	"github.com/odvcencio/weblens/pkg/failure"
	"github.com/odvcencio/weblens/pkg/flow"
)

func (in *Interpreter) execOpenPage(ctx context.Context, rc *Context, block *flow.Block) error {
	url := block.URL
	// Navigation targets never interpolate saved values; the one
	// sanctioned join is BASE_URL for environment-relative paths.
	if strings.HasPrefix(url, "/") {
		if base, ok := rc.SavedValues["BASE_URL"]; ok {
			url = strings.TrimRight(base, "/") + url
		}
	}
	rc.EmitAll(tafOpenPage(url))
	if err := in.sess.Navigate(ctx, url); err != nil {
		return failure.From(err)
	}
	return nil
}

func (in *Interpreter) execClickElement(ctx context.Context, rc *Context, block *flow.Block) error {
	preURL, _ := in.sess.CurrentURL(ctx)

	res, err := in.resolveElement(ctx, rc, block.Element, 0)
	if err != nil {
		return err
	}
	name := block.Element.Display()
	if err := checkCapability(res.Candidate, name, "click", browser.CapClickable); err != nil {
		return err
	}
	rc.EmitAll(tafClickElement(name))

	if err := in.sess.Click(ctx, res.Candidate.Handle); err != nil {
		if ie, ok := browser.AsIntercepted(err); ok {
			return failure.InteractionBlocked(name, ie.Obscuring)
		}
		return failure.From(err)
	}

	if block.Element.IsStructural() {
		return in.verifyStructuralOutcome(ctx, rc, block.Element, preURL)
	}
	return nil
}

func (in *Interpreter) execEnterText(ctx context.Context, rc *Context, block *flow.Block) error {
	val, err := rc.Interpolate(block.Text)
	if err != nil {
		return err
	}
	res, err := in.resolveElement(ctx, rc, block.Element, 0)
	if err != nil {
		return err
	}
	name := block.Element.Display()
	if err := checkCapability(res.Candidate, name, "enter text", browser.CapEditable); err != nil {
		return err
	}
	rc.EmitAll(tafEnterText(name, val))

	clear := block.ClearFirst == nil || *block.ClearFirst
	if err := in.sess.EnterText(ctx, res.Candidate.Handle, val, clear); err != nil {
		return failure.From(err)
	}
	return nil
}

func (in *Interpreter) execWaitUntilVisible(ctx context.Context, rc *Context, block *flow.Block) error {
	rc.EmitAll(tafWaitUntilVisible(block.Element.Display()))

	start := in.now()
	timeout := time.Duration(block.TimeoutSeconds) * time.Second
	if _, err := in.resolveElement(ctx, rc, block.Element, timeout); err != nil {
		return err
	}
	rc.Log(fmt.Sprintf("Element found in %.1fs", in.now().Sub(start).Seconds()))
	return nil
}

// execAssertVisible checks visibility right now: one snapshot, no
// retries. Waiting is wait_until_visible's job.
func (in *Interpreter) execAssertVisible(ctx context.Context, rc *Context, block *flow.Block) error {
	name := block.Element.Display()
	visible := false
	if snap, err := in.sess.Snapshot(ctx); err == nil {
		if res, rerr := in.resolver.Resolve(snap, block.Element); rerr == nil {
			visible = res.Candidate.Visible
		}
	}
	rc.EmitAll(tafAssertVisible(name, visible))

	if !visible {
		return failure.VerificationMismatch(
			fmt.Sprintf("Verifying visibility of '%s'", name),
			"Element is visible",
			"Element is hidden or not found",
		)
	}
	rc.Log("Element is visible")
	return nil
}

func (in *Interpreter) execDelay(ctx context.Context, rc *Context, block *flow.Block) error {
	rc.Log(fmt.Sprintf("Waiting for %g seconds...", block.Seconds))
	if err := in.sleep(ctx, time.Duration(block.Seconds*float64(time.Second))); err != nil {
		return failure.From(err)
	}
	rc.Log("Wait complete")
	return nil
}

func (in *Interpreter) execRefreshPage(ctx context.Context, rc *Context) error {
	rc.Log("Refreshing page...")
	if err := in.sess.Refresh(ctx); err != nil {
		return failure.From(err)
	}
	rc.Log("Page refreshed")
	return nil
}

func (in *Interpreter) execWaitForPageLoad(ctx context.Context, rc *Context, block *flow.Block) error {
	wctx, cancel := context.WithTimeout(ctx, time.Duration(block.TimeoutSeconds)*time.Second)
	defer cancel()
	if err := in.sess.WaitForLoad(wctx); err != nil {
		if browser.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
			return failure.ProtocolTimeout("page load", float64(block.TimeoutSeconds))
		}
		return failure.From(err)
	}
	rc.Log("Page loaded")
	return nil
}

func (in *Interpreter) execSelectOption(ctx context.Context, rc *Context, block *flow.Block) error {
	opt, err := rc.Interpolate(block.OptionText)
	if err != nil {
		return err
	}
	name := block.Element.Display()
	rc.Log(fmt.Sprintf("Selecting option '%s' in '%s'...", opt, name))

	res, err := in.resolveElement(ctx, rc, block.Element, 0)
	if err != nil {
		return err
	}
	if err := checkCapability(res.Candidate, name, "select option", browser.CapSelectLike); err != nil {
		return err
	}
	if err := in.sess.SelectOption(ctx, res.Candidate.Handle, opt); err != nil {
		return failure.New(failure.CategoryInteractionBlocked, failure.OwnerUser, failure.DeterminismHeuristic,
			fmt.Sprintf("Selecting option in '%s'", name),
			fmt.Sprintf("Could not select option '%s'.", opt),
			"Check if the option text is exactly correct and available in the dropdown.",
		).WithUnderlying(err)
	}
	rc.Log(fmt.Sprintf("Selected '%s'", opt))
	return nil
}

func (in *Interpreter) execUploadFile(ctx context.Context, rc *Context, block *flow.Block) error {
	rc.Log(fmt.Sprintf("Preparing upload: '%s'...", block.File.Name))

	res, err := in.resolveElement(ctx, rc, block.Element, 0)
	if err != nil {
		return err
	}
	name := block.Element.Display()
	if err := checkCapability(res.Candidate, name, "upload file", browser.CapFileInput); err != nil {
		return err
	}
	if err := in.sess.UploadFile(ctx, res.Candidate.Handle, block.File.ID); err != nil {
		return failure.New(failure.CategoryInteractionBlocked, failure.OwnerUser, failure.DeterminismHeuristic,
			"Uploading file",
			fmt.Sprintf("Upload of '%s' failed.", block.File.Name),
			"Ensure the target element is a valid file input and the file exists in the asset store.",
		).WithUnderlying(err)
	}
	rc.Log(fmt.Sprintf("Uploaded '%s'", block.File.Name))
	return nil
}

func (in *Interpreter) execVerifyText(ctx context.Context, rc *Context, block *flow.Block) error {
	res, err := in.resolveElement(ctx, rc, block.Element, 0)
	if err != nil {
		return err
	}
	actual, err := in.sess.ReadText(ctx, res.Candidate.Handle)
	if err != nil {
		return failure.From(err)
	}
	expected, err := rc.Interpolate(block.Match.Value)
	if err != nil {
		return err
	}
	name := block.Element.Display()
	rc.Log(fmt.Sprintf("Verifying text: expected '%s', found '%s'", expected, actual))

	match := flow.TextMatch{Mode: block.Match.Mode, Value: expected}
	if !match.Matches(actual) {
		f := failure.VerificationMismatch(
			fmt.Sprintf("Verifying text content of '%s'", name),
			fmt.Sprintf("Text %s '%s'", matchModeLabel(match.Mode), expected),
			actual,
		)
		f.Guidance = "The text found on the page did not match your expectation. Check if the content is dynamic."
		return f
	}
	rc.Log("Text verification passed")
	return nil
}

func matchModeLabel(m flow.MatchMode) string {
	if m == flow.MatchContains {
		return "contains"
	}
	return "equals"
}

func (in *Interpreter) execScrollToElement(ctx context.Context, rc *Context, block *flow.Block) error {
	name := block.Element.Display()
	rc.Log(fmt.Sprintf("Scrolling to '%s' (%s)...", name, block.Alignment))

	res, err := in.resolveElement(ctx, rc, block.Element, 0)
	if err != nil {
		return err
	}
	if err := in.sess.ScrollTo(ctx, res.Candidate.Handle, string(block.Alignment)); err != nil {
		return failure.New(failure.CategoryInteractionBlocked, failure.OwnerApp, failure.DeterminismHeuristic,
			fmt.Sprintf("Scrolling to '%s'", name),
			"Could not scroll element into view.",
			"The element might be inside a strictly overflow:hidden container.",
		).WithUnderlying(err)
	}
	rc.Log("Scrolled to element")
	return nil
}

func (in *Interpreter) execSaveText(ctx context.Context, rc *Context, block *flow.Block) error {
	name := block.Element.Display()
	rc.Log(fmt.Sprintf("Saving text from '%s' as '%s'...", name, block.SaveAs.Label))

	if ok, reason := saveTextEligible(block.Element); !ok {
		return failure.New(failure.CategoryInvalidFlowState, failure.OwnerUser, failure.DeterminismCertain,
			fmt.Sprintf("Saving text from '%s'", name), reason, saveTextGuidance)
	}

	res, err := in.resolveElement(ctx, rc, block.Element, 0)
	if err != nil {
		return err
	}
	if err := checkCapability(res.Candidate, name, "save text", browser.CapReadable); err != nil {
		return err
	}
	text, err := in.sess.ReadText(ctx, res.Candidate.Handle)
	if err != nil {
		return failure.From(err)
	}

	rc.SavedValues[block.SaveAs.Key] = text
	rc.SetEvidence(map[string]any{"text": text, "label": block.SaveAs.Label, "key": block.SaveAs.Key})

	preview := text
	if len(preview) > 50 {
		preview = clip(preview, 50) + "..."
	}
	rc.Log(fmt.Sprintf("Saved: '%s' (%s)", preview, block.SaveAs.Label))
	return nil
}

func (in *Interpreter) execSavePageContent(ctx context.Context, rc *Context, block *flow.Block) error {
	rc.Log(fmt.Sprintf("Saving page content as '%s'...", block.SaveAs.Label))

	text, err := in.sess.PageText(ctx)
	if err != nil {
		return failure.From(err)
	}
	rc.SavedValues[block.SaveAs.Key] = text

	snippet := text
	if len(snippet) > 500 {
		snippet = clip(snippet, 500) + "..."
	}
	rc.SetEvidence(map[string]any{
		"text_snippet":    snippet,
		"character_count": len(text),
		"key":             block.SaveAs.Key,
	})
	rc.Log(fmt.Sprintf("Saved page content (%d characters) as '%s'", len(text), block.SaveAs.Label))
	return nil
}

func (in *Interpreter) execVerifyPageTitle(ctx context.Context, rc *Context, block *flow.Block) error {
	actual, err := in.sess.PageTitle(ctx)
	if err != nil {
		return failure.From(err)
	}
	expected, err := rc.Interpolate(block.Title)
	if err != nil {
		return err
	}
	rc.Log(fmt.Sprintf("Verifying title: expected '%s', found '%s'", expected, actual))
	if actual != expected {
		return failure.VerificationMismatch("Verifying page title", expected, actual)
	}
	rc.Log(fmt.Sprintf("Page title verified: '%s'", actual))
	return nil
}

func (in *Interpreter) execVerifyURL(ctx context.Context, rc *Context, block *flow.Block) error {
	actual, err := in.sess.CurrentURL(ctx)
	if err != nil {
		return failure.From(err)
	}
	expected, err := rc.Interpolate(block.URLPart)
	if err != nil {
		return err
	}
	rc.Log(fmt.Sprintf("Verifying URL contains: '%s' (actual: '%s')", expected, actual))
	if !strings.Contains(actual, expected) {
		return failure.VerificationMismatch("Verifying URL", fmt.Sprintf("URL containing '%s'", expected), actual)
	}
	rc.Log("URL verified")
	return nil
}

func (in *Interpreter) execVerifyElementEnabled(ctx context.Context, rc *Context, block *flow.Block) error {
	want := block.ShouldBeEnabled == nil || *block.ShouldBeEnabled
	wantLabel := stateLabel(want)
	name := block.Element.Display()
	rc.Log(fmt.Sprintf("Verifying element '%s' is %s...", name, wantLabel))

	res, err := in.resolveElement(ctx, rc, block.Element, 0)
	if err != nil {
		return err
	}
	if res.Candidate.Enabled != want {
		return failure.VerificationMismatch(
			fmt.Sprintf("Verifying state of '%s'", name),
			wantLabel,
			stateLabel(res.Candidate.Enabled),
		)
	}
	rc.Log("Element is " + wantLabel)
	return nil
}

func stateLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func (in *Interpreter) execUseSavedValue(ctx context.Context, rc *Context, block *flow.Block) error {
	key := block.ValueRef.Key
	label := block.ValueRef.Label
	if label == "" {
		label = key
	}

	value, ok := rc.SavedValues[key]
	if !ok {
		f := failure.VariableMissing(key, rc.savedKeys())
		f.Guidance = "Ensure the 'Save Text' block executed successfully before this block."
		return f
	}
	rc.Log(fmt.Sprintf("Using saved value '%s': '%s'", label, value))

	res, err := in.resolveElement(ctx, rc, block.Element, 0)
	if err != nil {
		return err
	}
	name := block.Element.Display()

	switch block.Target.Action {
	case flow.ActionEnterText:
		if err := checkCapability(res.Candidate, name, "enter text", browser.CapEditable); err != nil {
			return err
		}
		rc.Log(fmt.Sprintf("Typing saved value into '%s'...", name))
		if err := in.sess.EnterText(ctx, res.Candidate.Handle, value, true); err != nil {
			return failure.From(err)
		}
		rc.Log("Text entered")
		return nil

	case flow.ActionVerifyEquals:
		actual, err := in.sess.ReadText(ctx, res.Candidate.Handle)
		if err != nil {
			return failure.From(err)
		}
		if actual != value {
			f := failure.VerificationMismatch(
				fmt.Sprintf("Verifying '%s' matches saved value '%s'", name, label),
				value, actual)
			f.Guidance = "The element text did not match the saved value."
			return f
		}
		rc.Log("Verification passed")
		return nil

	case flow.ActionVerifyContains:
		actual, err := in.sess.ReadText(ctx, res.Candidate.Handle)
		if err != nil {
			return failure.From(err)
		}
		if !strings.Contains(actual, value) {
			f := failure.VerificationMismatch(
				fmt.Sprintf("Verifying '%s' contains saved value '%s'", name, label),
				fmt.Sprintf("Contains '%s'", value), actual)
			f.Guidance = "The element text did not contain the saved value."
			return f
		}
		rc.Log("Verification passed")
		return nil
	}

	return failure.InvalidFlowState(fmt.Sprintf("unknown saved-value action '%s'", block.Target.Action))
}

func (in *Interpreter) execVerifyNetworkRequest(ctx context.Context, rc *Context, block *flow.Block) error {
	pattern, err := rc.Interpolate(block.URLPattern)
	if err != nil {
		return err
	}
	rc.Log(fmt.Sprintf("Verifying network request matching: %s (%s)", pattern, block.Method))

	// /.../ patterns are regular expressions; anything else is a
	// literal substring match.
	var re *regexp.Regexp
	if len(pattern) > 2 && strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/") {
		compiled, cerr := regexp.Compile(pattern[1 : len(pattern)-1])
		if cerr != nil {
			rc.Log(fmt.Sprintf("Invalid regex pattern: %s. Falling back to literal search.", pattern))
		} else {
			re = compiled
		}
	}

	matchURL := func(url string) bool {
		if re != nil {
			return re.MatchString(url)
		}
		return strings.Contains(url, pattern)
	}

	// Requests from async handlers or new tabs can land late, so logs
	// accumulate across a fixed window before the verdict.
	deadline := in.now().Add(config.DefaultNetworkVerifyWindow)
	var all []browser.NetworkRequest
	var matches []browser.NetworkRequest

	for {
		if reqs, rerr := in.sess.NetworkRequests(ctx); rerr == nil {
			all = append(all, reqs...)
		}

		matches = matches[:0]
		for _, req := range all {
			if !matchURL(req.URL) {
				continue
			}
			if block.Method != flow.MethodAny && req.Method != string(block.Method) {
				continue
			}
			matches = append(matches, req)
		}

		if len(matches) > 0 {
			if block.StatusCode == 0 || anyStatus(matches, block.StatusCode) {
				break
			}
		}
		if in.now().After(deadline) {
			break
		}
		if err := in.sleep(ctx, 500*time.Millisecond); err != nil {
			return failure.From(err)
		}
	}

	found := len(matches) > 0
	statusOK := !found || block.StatusCode == 0 || anyStatus(matches, block.StatusCode)
	rc.EmitAll(tafNetworkVerification(pattern, found, statusOK))

	if !found {
		lastURLs := make([]string, 0, 5)
		for i := max(0, len(all)-5); i < len(all); i++ {
			lastURLs = append(lastURLs, all[i].URL)
		}
		return failure.VerificationMismatch(
			"Verifying network request",
			fmt.Sprintf("URL='%s', Status=%d", pattern, block.StatusCode),
			"Request not found in logs",
		).WithEvidence("captured_requests", len(all)).WithEvidence("last_urls", lastURLs)
	}
	if !statusOK {
		last := matches[len(matches)-1]
		return failure.VerificationMismatch(
			"Verifying network request status",
			fmt.Sprintf("Status %d", block.StatusCode),
			fmt.Sprintf("Status %d for '%s'", last.StatusCode, last.URL),
		)
	}
	return nil
}

func anyStatus(reqs []browser.NetworkRequest, code int) bool {
	for _, r := range reqs {
		if r.StatusCode == code {
			return true
		}
	}
	return false
}

func (in *Interpreter) execVerifyPerformance(ctx context.Context, rc *Context, block *flow.Block) error {
	rc.Log(fmt.Sprintf("Verifying %s < %d", block.Metric, block.ThresholdMS))

	perf, err := in.sess.Performance(ctx)
	if err != nil {
		return failure.From(err)
	}

	var value float64
	unit := "ms"
	switch block.Metric {
	case flow.MetricPageLoadTime:
		value = perf.PageLoadTime
	case flow.MetricDOMInteractive:
		value = perf.DOMInteractive
	case flow.MetricFirstByte:
		value = perf.FirstByte
	case flow.MetricTTFB:
		value = perf.TTFB
	case flow.MetricLCP:
		value = perf.LCP
	case flow.MetricCLS:
		value, unit = perf.CLS, ""
	case flow.MetricNetworkRequests:
		value, unit = float64(perf.RequestCount), " requests"
	default:
		return failure.InvalidFlowState(fmt.Sprintf("unknown performance metric '%s'", block.Metric))
	}

	if value > float64(block.ThresholdMS) {
		f := failure.VerificationMismatch(
			fmt.Sprintf("Verifying %s (Performance)", block.Metric),
			fmt.Sprintf("Under %d%s", block.ThresholdMS, unit),
			fmt.Sprintf("%g%s", value, unit),
		)
		f.Guidance = "Performance threshold exceeded. This might be a transient network issue."
		return f
	}
	rc.Log(fmt.Sprintf("Performance passed: %g%s", value, unit))
	return nil
}

func (in *Interpreter) execSubmitForm(ctx context.Context, rc *Context, block *flow.Block) error {
	rc.Log("Submitting form...")
	res, err := in.resolveElement(ctx, rc, block.Element, 0)
	if err != nil {
		return err
	}
	name := block.Element.Display()
	if err := checkCapability(res.Candidate, name, "submit", browser.CapSubmittable); err != nil {
		return err
	}
	if err := in.sess.SubmitForm(ctx, res.Candidate.Handle); err != nil {
		return failure.From(err)
	}
	rc.Log("Form submitted")
	return nil
}

func (in *Interpreter) execConfirmDialog(ctx context.Context, rc *Context) error {
	rc.Log("Confirming dialog...")
	if err := in.sess.AcceptDialog(ctx); err != nil {
		if errors.Is(err, browser.ErrNoDialog) {
			return failure.InvalidFlowState("no dialog was open to confirm")
		}
		return failure.From(err)
	}
	rc.Log("Dialog confirmed")
	return nil
}

func (in *Interpreter) execDismissDialog(ctx context.Context, rc *Context) error {
	rc.Log("Dismissing dialog...")
	if err := in.sess.DismissDialog(ctx); err != nil {
		if errors.Is(err, browser.ErrNoDialog) {
			return failure.InvalidFlowState("no dialog was open to dismiss")
		}
		return failure.From(err)
	}
	rc.Log("Dialog dismissed")
	return nil
}

// primaryActionNames are the accessible names that mark a page's main
// call to action.
var primaryActionNames = []string{"submit", "search", "login", "log in", "sign in", "go", "continue", "apply"}

func (in *Interpreter) execActivatePrimaryAction(ctx context.Context, rc *Context) error {
	rc.Log("Activating primary action...")

	snap, err := in.sess.Snapshot(ctx)
	if err != nil {
		return failure.From(err)
	}
	cand := findPrimaryAction(snap)
	if cand == nil {
		rc.EmitAll(tafPrimaryAction(""))
		return failure.ElementNotFound("primary action", 1,
			"Use a regular 'Click' block for the specific button.")
	}
	rc.EmitAll(tafPrimaryAction(fmt.Sprintf("%s '%s'", cand.Role, cand.Name)))

	if err := in.sess.Click(ctx, cand.Handle); err != nil {
		if ie, ok := browser.AsIntercepted(err); ok {
			return failure.InteractionBlocked("primary action", ie.Obscuring)
		}
		return failure.From(err)
	}
	rc.Log("Primary action activated")
	return nil
}

// findPrimaryAction picks the page's main call to action: a visible
// button named like a submit control, falling back to any submittable
// button.
func findPrimaryAction(snap *browser.Snapshot) *browser.Candidate {
	var fallback *browser.Candidate
	for i := range snap.Candidates {
		c := &snap.Candidates[i]
		if !c.Visible || c.Role != "button" {
			continue
		}
		name := strings.ToLower(c.Name + " " + c.AriaLabel)
		for _, p := range primaryActionNames {
			if strings.Contains(name, p) {
				return c
			}
		}
		if fallback == nil && c.Has(browser.CapSubmittable) {
			fallback = c
		}
	}
	return fallback
}

func (in *Interpreter) execSubmitCurrentInput(ctx context.Context, rc *Context, block *flow.Block) error {
	rc.Log("Submitting current input...")
	handle := ""
	if block.Element != nil {
		res, err := in.resolveElement(ctx, rc, block.Element, 0)
		if err != nil {
			return err
		}
		handle = res.Candidate.Handle
	}
	if err := in.sess.PressEnter(ctx, handle); err != nil {
		return failure.From(err)
	}
	rc.Log("Input submitted")
	return nil
}

func (in *Interpreter) execVerifyPageContent(ctx context.Context, rc *Context, block *flow.Block) error {
	expected, err := rc.Interpolate(block.Match.Value)
	if err != nil {
		return err
	}
	rc.Log(fmt.Sprintf("Verifying page content contains: '%s'", expected))

	text, err := in.sess.PageText(ctx)
	if err != nil {
		return failure.From(err)
	}
	mode := block.Match.Mode
	if mode == "" {
		mode = flow.MatchContains
	}
	found := (flow.TextMatch{Mode: mode, Value: expected}).Matches(text)
	rc.EmitAll(tafPageContentCheck(expected, found))

	if !found {
		return failure.VerificationMismatch(
			"Verifying page content",
			fmt.Sprintf("Page %s '%s'", matchModeLabel(mode), expected),
			"Text not found on page",
		)
	}
	return nil
}

func (in *Interpreter) execGetCookies(ctx context.Context, rc *Context) error {
	rc.Log("Capturing browser cookies...")
	cookies, err := in.sess.Cookies(ctx)
	if err != nil {
		return failure.From(err)
	}
	data, _ := json.Marshal(cookies)
	rc.SavedValues["$last_cookies"] = string(data)
	rc.SetEvidence(map[string]any{"cookies": cookies})
	rc.EmitAll(tafCaptureStorage("Cookies", len(cookies)))
	return nil
}

func (in *Interpreter) execGetLocalStorage(ctx context.Context, rc *Context) error {
	rc.Log("Capturing local storage...")
	storage, err := in.sess.LocalStorage(ctx)
	if err != nil {
		return failure.From(err)
	}
	data, _ := json.Marshal(storage)
	rc.SavedValues["$last_local_storage"] = string(data)
	rc.SetEvidence(map[string]any{"entries": storage})
	rc.EmitAll(tafCaptureStorage("Local Storage", len(storage)))
	return nil
}

func (in *Interpreter) execGetSessionStorage(ctx context.Context, rc *Context) error {
	rc.Log("Capturing session storage...")
	storage, err := in.sess.SessionStorage(ctx)
	if err != nil {
		return failure.From(err)
	}
	data, _ := json.Marshal(storage)
	rc.SavedValues["$last_session_storage"] = string(data)
	rc.SetEvidence(map[string]any{"entries": storage})
	rc.EmitAll(tafCaptureStorage("Session Storage", len(storage)))
	return nil
}

func (in *Interpreter) execObserveNetwork(ctx context.Context, rc *Context) error {
	rc.Log("Enabling network observation...")
	if err := in.sess.StartNetworkCapture(ctx); err != nil {
		return failure.From(err)
	}

	// Flush what the session already saw so the evidence shows the
	// starting state.
	if reqs, err := in.sess.NetworkRequests(ctx); err == nil && len(reqs) > 0 {
		summary := make([]map[string]any, 0, len(reqs))
		for _, req := range reqs {
			summary = append(summary, map[string]any{
				"method": req.Method,
				"url":    req.URL,
				"status": req.StatusCode,
			})
		}
		rc.SetEvidence(map[string]any{"observed_requests": summary})
		rc.Log(fmt.Sprintf("Captured %d background requests", len(summary)))
	}

	rc.EmitAll(tafObserveNetwork())
	return nil
}

func (in *Interpreter) execSwitchTab(ctx context.Context, rc *Context, block *flow.Block) error {
	toNewest := block.ToNewest == nil || *block.ToNewest
	rc.Log(fmt.Sprintf("Switching tab (to newest: %t, index: %d)...", toNewest, block.TabIndex))

	if err := in.sess.SwitchTab(ctx, toNewest, block.TabIndex); err != nil {
		if errors.Is(err, browser.ErrNoSuchTab) {
			return failure.InvalidFlowState("the requested tab does not exist")
		}
		return failure.From(err)
	}
	// Give the tab a beat to take focus.
	if err := in.sleep(ctx, time.Second); err != nil {
		return failure.From(err)
	}
	return nil
}

// clip truncates s to at most n bytes without splitting a multi-byte
// rune; the cut backs up to the nearest rune boundary.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
