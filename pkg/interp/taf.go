package interp

import (
	"fmt"
	"strings"

	"github.com/odvcencio/weblens/pkg/report"
)

// The taf* functions are the narration templates. Every block handler
// speaks through these so the trace/analysis/feedback channels read the
// same way across runs.

func tafElementResolution(name, confidence, strategy, nameSource, region string, structural bool) report.TAF {
	analysis := []string{fmt.Sprintf("Using a %s strategy because this element has %s confidence.", strategy, confidence)}
	feedback := []string{fmt.Sprintf("If '%s' cannot be found, re-pick the element or verify it is not hidden behind a menu.", name)}

	if structural {
		analysis = append(analysis,
			fmt.Sprintf("Using structural intent resolution for '%s' (semantic void)", name),
			"This element has no semantic identity - resolution uses multiple weak signals")
		feedback = append(feedback,
			"Structural intent requires post-action verification",
			"Adding aria-label will eliminate the need for structural resolution")
	} else if nameSource == "user_declared" {
		if region != "" {
			analysis = append(analysis, fmt.Sprintf("Searching for '%s' in the %s region.", name, region))
		}
		analysis = append(analysis, "This interaction relies on a manually declared semantic label.")
		feedback = append(feedback, "Adding an accessible label (aria-label) in your application will improve test stability.")
	}

	return report.TAF{
		report.ChannelTrace:    {fmt.Sprintf("Looking for '%s'", name)},
		report.ChannelAnalysis: analysis,
		report.ChannelFeedback: feedback,
	}
}

func tafElementFound(name string, attempts int) report.TAF {
	analysis := "The element was immediately available."
	if attempts > 1 {
		analysis = fmt.Sprintf("The element was found after %d attempts. This indicates delayed rendering.", attempts)
	}
	return report.TAF{
		report.ChannelTrace:    {fmt.Sprintf("Found '%s'", name)},
		report.ChannelAnalysis: {analysis},
	}
}

func tafElementNotFound(name string, attempts int, strategy string) report.TAF {
	return report.TAF{
		report.ChannelTrace:    {fmt.Sprintf("Failed to find '%s'", name)},
		report.ChannelAnalysis: {fmt.Sprintf("Stopped after %d attempts using the %s strategy.", attempts, strategy)},
		report.ChannelFeedback: {fmt.Sprintf("Ensure '%s' is visible on the page. If it's a pop-up, make sure the previous step triggered it.", name)},
	}
}

func tafOpenPage(url string) report.TAF {
	return report.TAF{
		report.ChannelTrace:    {fmt.Sprintf("Opening %s", url)},
		report.ChannelAnalysis: {"Navigating to the starting point of your test."},
		report.ChannelFeedback: {"If the page doesn't load, verify that the URL is correct and public."},
	}
}

func tafClickElement(name string) report.TAF {
	return report.TAF{
		report.ChannelTrace:    {fmt.Sprintf("Clicking on '%s'", name)},
		report.ChannelAnalysis: {"Executing a standard mouse click on the identified element."},
	}
}

func tafEnterText(name, text string) report.TAF {
	return report.TAF{
		report.ChannelTrace:    {fmt.Sprintf("Typing text into '%s'", name)},
		report.ChannelAnalysis: {fmt.Sprintf("Typing '%s' into the identified input field.", text)},
	}
}

func tafIfCondition(kind string, result bool) report.TAF {
	outcome := "proceeding to 'else' branch (or skipping)"
	verdict := "not met"
	if result {
		outcome = "proceeding to 'then' branch"
		verdict = "met"
	}
	return report.TAF{
		report.ChannelTrace:    {fmt.Sprintf("Checked condition: %s", strings.ReplaceAll(kind, "_", " "))},
		report.ChannelAnalysis: {fmt.Sprintf("The condition was %s, so the run is %s.", verdict, outcome)},
		report.ChannelFeedback: {"Verify your condition logic if the run is taking the wrong branch."},
	}
}

func tafRepeatLoop(kind string, result bool, iteration int) report.TAF {
	status := "Requirement not met, repeating"
	if result {
		status = "Loop finished"
	}
	return report.TAF{
		report.ChannelTrace:    {fmt.Sprintf("Loop iteration %d: %s", iteration, strings.ReplaceAll(kind, "_", " "))},
		report.ChannelAnalysis: {fmt.Sprintf("%s. Condition evaluates to %t.", status, result)},
		report.ChannelFeedback: {"If the loop runs too many times, check if the condition can ever be met."},
	}
}

func tafPrimaryAction(found string) report.TAF {
	if found != "" {
		return report.TAF{
			report.ChannelTrace:    {"Identifying the primary action"},
			report.ChannelAnalysis: {fmt.Sprintf("Found the main action: %s", found)},
		}
	}
	return report.TAF{
		report.ChannelTrace:    {"Identifying the primary action"},
		report.ChannelAnalysis: {"Searched for common primary buttons but couldn't find an obvious one."},
		report.ChannelFeedback: {"If the primary action is missed, use a regular 'Click' block for that specific button."},
	}
}

func tafPageContentCheck(expected string, found bool) report.TAF {
	verdict, negation := "Success", ""
	if !found {
		verdict, negation = "Failure", "not "
	}
	return report.TAF{
		report.ChannelTrace:    {fmt.Sprintf("Search page for: '%s'", expected)},
		report.ChannelAnalysis: {fmt.Sprintf("%s: The text was %sfound on the current page.", verdict, negation)},
		report.ChannelFeedback: {"If this fails, check for typos or if the text is inside an iframe the driver can't see."},
	}
}

func tafWaitUntilVisible(name string) report.TAF {
	return report.TAF{
		report.ChannelTrace:    {fmt.Sprintf("Waiting for '%s' to appear", name)},
		report.ChannelAnalysis: {"Pausing until the element is both present and visible on the page."},
		report.ChannelFeedback: {"If this times out, verify the element is not obscured by another layer and has loaded."},
	}
}

func tafAssertVisible(name string, found bool) report.TAF {
	t := report.TAF{
		report.ChannelTrace: {fmt.Sprintf("Checking visibility of '%s'", name)},
	}
	if found {
		t.Append(report.ChannelAnalysis, "Success: The element is now visible.")
	} else {
		t.Append(report.ChannelAnalysis, "Failure: The element is not visible.")
		t.Append(report.ChannelFeedback, fmt.Sprintf("If '%s' should be here, check if it's currently hidden behind a menu or modal.", name))
	}
	return t
}

func tafCaptureStorage(storageType string, count int) report.TAF {
	return report.TAF{
		report.ChannelTrace:    {fmt.Sprintf("Capturing %s", storageType)},
		report.ChannelAnalysis: {fmt.Sprintf("Successfully retrieved %d entries from %s.", count, storageType)},
		report.ChannelFeedback: {"Large storage payloads are stored in the execution context but may be truncated in basic views."},
	}
}

func tafObserveNetwork() report.TAF {
	return report.TAF{
		report.ChannelTrace:    {"Enabling network observation"},
		report.ChannelAnalysis: {"Now passively recording all network requests and responses."},
		report.ChannelFeedback: {"Ensure this block is placed BEFORE the actions you want to observe."},
	}
}

func tafNetworkVerification(pattern string, found, statusMatch bool) report.TAF {
	verdict, negation, statusMsg := "Success", "", ""
	if !found {
		verdict, negation = "Failure", "not "
	}
	if !statusMatch {
		statusMsg = " (but status code mismatched)"
	}
	t := report.TAF{
		report.ChannelTrace:    {fmt.Sprintf("Searching network logs for: '%s'", pattern)},
		report.ChannelAnalysis: {fmt.Sprintf("%s: A matching request was %sfound%s.", verdict, negation, statusMsg)},
	}
	if !found {
		t.Append(report.ChannelFeedback, fmt.Sprintf("Verify that the URL pattern '%s' is correct and that the request was triggered by previous steps.", pattern))
	}
	return t
}
