package static

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/odvcencio/weblens/pkg/browser"
)

// Tags that never produce candidates.
var skippedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"option": true, "br": true, "hr": true, "meta": true, "link": true,
}

var landmarkRegions = map[string]string{
	"header": "header",
	"nav":    "navigation",
	"main":   "main",
	"footer": "footer",
	"aside":  "aside",
	"form":   "form",
}

// deriveCandidates builds the engine-side element view from the parsed
// document. Handles are the element's index in the full element list,
// so skipped elements do not shift them.
func deriveCandidates(doc *goquery.Document, elements []*goquery.Selection, viewport browser.Viewport) []browser.Candidate {
	labels := labelIndex(doc)

	var out []browser.Candidate
	for i, sel := range elements {
		tag := goquery.NodeName(sel)
		if skippedTags[tag] {
			continue
		}
		if t, _ := sel.Attr("type"); tag == "input" && t == "hidden" {
			continue
		}

		role := roleOf(sel, tag)
		name, ariaLabel, placeholder, title := accessibleName(sel, tag, labels)
		testID := testIDOf(sel)

		// Anonymous containers carry no signal worth scoring.
		if role == "generic" && name == "" && testID == "" && ariaLabel == "" {
			continue
		}

		cand := browser.Candidate{
			Handle:      fmt.Sprintf("e%d", i),
			Role:        role,
			Name:        name,
			AriaLabel:   ariaLabel,
			Placeholder: placeholder,
			Title:       title,
			TestID:      testID,
			Tag:         tag,
			Class:       attrOr(sel, "class", ""),
			Href:        attrOr(sel, "href", ""),
			Markup:      outerMarkup(sel),
			Attrs:       attrMap(sel),
			NearbyText:  nearbyText(sel),
			Bounds:      boundsOf(sel, len(out), viewport),
			Region:      regionOf(sel),
			Visible:     isVisible(sel),
			Enabled:     !hasAttr(sel, "disabled"),
		}
		cand.Capabilities = capabilitiesOf(sel, tag, role, cand.Visible)
		out = append(out, cand)
	}
	return out
}

func roleOf(sel *goquery.Selection, tag string) string {
	if r, ok := sel.Attr("role"); ok && r != "" {
		return r
	}
	switch tag {
	case "a":
		if attrOr(sel, "href", "") != "" {
			return "link"
		}
		return "generic"
	case "button":
		return "button"
	case "input":
		switch attrOr(sel, "type", "text") {
		case "submit", "button", "reset", "file":
			return "button"
		case "checkbox":
			return "checkbox"
		case "radio":
			return "radio"
		case "search":
			return "searchbox"
		default:
			return "textbox"
		}
	case "select":
		return "combobox"
	case "textarea":
		return "textbox"
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return "heading"
	case "img":
		return "image"
	case "nav":
		return "navigation"
	case "header":
		return "banner"
	case "footer":
		return "contentinfo"
	case "main":
		return "main"
	case "form":
		return "form"
	case "table":
		return "table"
	case "ul", "ol":
		return "list"
	case "li":
		return "listitem"
	default:
		return "generic"
	}
}

// labelIndex maps input ids to their <label for=...> text.
func labelIndex(doc *goquery.Document) map[string]string {
	labels := make(map[string]string)
	doc.Find("label[for]").Each(func(_ int, l *goquery.Selection) {
		if forID, ok := l.Attr("for"); ok {
			labels[forID] = collapseSpace(l.Text())
		}
	})
	return labels
}

// accessibleName resolves the name the way a live accessibility tree
// would: aria-label first, then an associated label, then content,
// then the weaker attribute fallbacks.
func accessibleName(sel *goquery.Selection, tag string, labels map[string]string) (name, ariaLabel, placeholder, title string) {
	ariaLabel = attrOr(sel, "aria-label", "")
	placeholder = attrOr(sel, "placeholder", "")
	title = attrOr(sel, "title", "")

	if ariaLabel != "" {
		return ariaLabel, ariaLabel, placeholder, title
	}
	if id, ok := sel.Attr("id"); ok {
		if lbl, found := labels[id]; found && lbl != "" {
			return lbl, ariaLabel, placeholder, title
		}
	}

	switch tag {
	case "input":
		if v := attrOr(sel, "value", ""); v != "" {
			t := attrOr(sel, "type", "text")
			if t == "submit" || t == "button" {
				return v, ariaLabel, placeholder, title
			}
		}
	case "img":
		if alt := attrOr(sel, "alt", ""); alt != "" {
			return alt, ariaLabel, placeholder, title
		}
	default:
		if text := collapseSpace(sel.Text()); text != "" && len(text) <= 120 {
			return text, ariaLabel, placeholder, title
		}
	}

	if placeholder != "" {
		return placeholder, ariaLabel, placeholder, title
	}
	return title, ariaLabel, placeholder, title
}

func testIDOf(sel *goquery.Selection) string {
	for _, attr := range []string{"data-testid", "data-test-id", "data-cy", "data-qa"} {
		if v := attrOr(sel, attr, ""); v != "" {
			return v
		}
	}
	return ""
}

func regionOf(sel *goquery.Selection) string {
	region := ""
	sel.Parents().Each(func(_ int, p *goquery.Selection) {
		if region != "" {
			return
		}
		if r, ok := p.Attr("role"); ok && r != "" {
			region = r
			return
		}
		if r, ok := landmarkRegions[goquery.NodeName(p)]; ok {
			region = r
		}
	})
	return region
}

func isVisible(sel *goquery.Selection) bool {
	if hiddenBy(sel) {
		return false
	}
	hidden := false
	sel.Parents().Each(func(_ int, p *goquery.Selection) {
		if hiddenBy(p) {
			hidden = true
		}
	})
	return !hidden
}

func hiddenBy(sel *goquery.Selection) bool {
	if hasAttr(sel, "hidden") {
		return true
	}
	if attrOr(sel, "aria-hidden", "") == "true" {
		return true
	}
	style := strings.ReplaceAll(attrOr(sel, "style", ""), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

// boundsOf synthesizes geometry. Static documents have no layout, so
// fixtures may pin positions with data-x/data-y/data-width/data-height;
// everything else flows top to bottom in document order.
func boundsOf(sel *goquery.Selection, ordinal int, viewport browser.Viewport) browser.Rect {
	rect := browser.Rect{X: 40, Y: 40 + ordinal*32, Width: 200, Height: 24}
	if v, err := strconv.Atoi(attrOr(sel, "data-x", "")); err == nil {
		rect.X = v
	}
	if v, err := strconv.Atoi(attrOr(sel, "data-y", "")); err == nil {
		rect.Y = v
	}
	if v, err := strconv.Atoi(attrOr(sel, "data-width", "")); err == nil {
		rect.Width = v
	}
	if v, err := strconv.Atoi(attrOr(sel, "data-height", "")); err == nil {
		rect.Height = v
	}
	if rect.Right() > viewport.Width && viewport.Width > 0 && rect.X == 40 {
		rect.Width = viewport.Width - rect.X
	}
	return rect
}

func capabilitiesOf(sel *goquery.Selection, tag, role string, visible bool) map[browser.Capability]bool {
	caps := make(map[browser.Capability]bool)

	switch role {
	case "button", "link", "checkbox", "radio":
		caps[browser.CapClickable] = true
	}
	if hasAttr(sel, "onclick") {
		caps[browser.CapClickable] = true
	}

	switch tag {
	case "input":
		switch attrOr(sel, "type", "text") {
		case "submit":
			caps[browser.CapSubmittable] = true
		case "file":
			caps[browser.CapFileInput] = true
		case "button", "checkbox", "radio", "reset":
		default:
			caps[browser.CapEditable] = true
			caps[browser.CapReadable] = true
		}
	case "textarea":
		caps[browser.CapEditable] = true
		caps[browser.CapReadable] = true
	case "select":
		caps[browser.CapSelectLike] = true
		caps[browser.CapReadable] = true
	case "button":
		if attrOr(sel, "type", "submit") == "submit" && sel.Closest("form").Length() > 0 {
			caps[browser.CapSubmittable] = true
		}
	}

	if text := collapseSpace(sel.Text()); text != "" && visible {
		caps[browser.CapReadable] = true
	}
	return caps
}

func outerMarkup(sel *goquery.Selection) string {
	html, err := goquery.OuterHtml(sel)
	if err != nil {
		return ""
	}
	html = collapseSpace(html)
	return clip(html, 200)
}

func attrMap(sel *goquery.Selection) map[string]string {
	if len(sel.Nodes) == 0 || len(sel.Nodes[0].Attr) == 0 {
		return nil
	}
	out := make(map[string]string, len(sel.Nodes[0].Attr))
	for _, a := range sel.Nodes[0].Attr {
		out[a.Key] = a.Val
	}
	return out
}

func nearbyText(sel *goquery.Selection) string {
	parent := sel.Parent()
	if parent.Length() == 0 {
		return ""
	}
	text := collapseSpace(parent.Text())
	return clip(text, 120)
}

func attrOr(sel *goquery.Selection, name, fallback string) string {
	if v, ok := sel.Attr(name); ok {
		return v
	}
	return fallback
}

func hasAttr(sel *goquery.Selection, name string) bool {
	_, ok := sel.Attr(name)
	return ok
}

// clip truncates s to at most n bytes, backing up to a rune boundary
// so a multi-byte character is never split.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
