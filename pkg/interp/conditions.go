package interp

import (
	"context"
	"strings"

	"github.com/odvcencio/weblens/pkg/flow"
)

// evaluateCondition resolves a semantic predicate against the live
// session. Evaluation failures are answers, not errors: a condition
// that cannot be checked is false, and element_not_visible treats a
// failed resolution as proof of absence. Saved values never feed
// condition expectations; the expected side is always literal.
func (in *Interpreter) evaluateCondition(ctx context.Context, rc *Context, cond *flow.Condition) bool {
	switch cond.Kind {
	case flow.CondElementVisible:
		res, err := in.retrier.Resolve(ctx, in.sess, cond.Element, 0)
		if err != nil {
			rc.Log("Condition evaluation failed: " + err.Error())
			return false
		}
		return res.Candidate.Visible

	case flow.CondElementNotVisible:
		res, err := in.retrier.Resolve(ctx, in.sess, cond.Element, 0)
		if err != nil {
			// Not found means not visible.
			return true
		}
		return !res.Candidate.Visible

	case flow.CondTextMatch:
		res, err := in.retrier.Resolve(ctx, in.sess, cond.Element, 0)
		if err != nil {
			rc.Log("Condition evaluation failed: " + err.Error())
			return false
		}
		actual, err := in.sess.ReadText(ctx, res.Candidate.Handle)
		if err != nil {
			rc.Log("Condition evaluation failed: " + err.Error())
			return false
		}
		match := flow.TextMatch{Mode: cond.MatchMode, Value: cond.Value}
		if match.Mode == "" {
			match.Mode = flow.MatchEquals
		}
		return match.Matches(actual)

	case flow.CondPageTitleEquals:
		title, err := in.sess.PageTitle(ctx)
		if err != nil {
			rc.Log("Condition evaluation failed: " + err.Error())
			return false
		}
		return title == cond.ExpectedTitle

	case flow.CondURLContains:
		url, err := in.sess.CurrentURL(ctx)
		if err != nil {
			rc.Log("Condition evaluation failed: " + err.Error())
			return false
		}
		return strings.Contains(url, cond.ExpectedFragment)

	case flow.CondSavedValueExists:
		_, ok := rc.SavedValues[cond.ValueRef.Key]
		return ok

	case flow.CondSavedValueEquals:
		return rc.SavedValues[cond.ValueRef.Key] == cond.ExpectedText
	}

	rc.Log("Unknown condition kind: " + string(cond.Kind))
	return false
}
