package static

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/odvcencio/weblens/pkg/browser"
)

var sessionCounter atomic.Uint64

type session struct {
	id  string
	rt  *Runtime
	cfg browser.SessionConfig
	now func() time.Time

	mu       sync.Mutex
	url      string
	current  Document
	doc      *goquery.Document
	elements []*goquery.Selection
	loadedAt time.Time
	revealed bool
	pending  []browser.NetworkRequest
	localKV  map[string]string
	sessKV   map[string]string
	closed   bool
}

func newSession(rt *Runtime, cfg browser.SessionConfig) *session {
	return &session{
		id:      fmt.Sprintf("static-%d", sessionCounter.Add(1)),
		rt:      rt,
		cfg:     cfg,
		now:     rt.clock(),
		localKV: make(map[string]string),
		sessKV:  make(map[string]string),
	}
}

func (s *session) ID() string { return s.id }

func (s *session) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return browser.ErrSessionClosed
	}
	doc, ok := s.rt.lookup(url)
	if !ok {
		return fmt.Errorf("no document registered for %s", url)
	}
	return s.load(url, doc)
}

// load swaps in a document. Handles from prior snapshots become stale.
func (s *session) load(url string, doc Document) error {
	parsed, err := parseHTML(doc.HTML)
	if err != nil {
		return err
	}
	s.url = url
	s.current = doc
	s.doc = parsed
	s.elements = indexElements(parsed)
	s.loadedAt = s.now()
	s.revealed = false
	s.pending = append(s.pending, doc.Requests...)
	return nil
}

// maybeReveal applies the timed document swap once its delay elapsed.
func (s *session) maybeReveal() {
	if s.revealed || s.current.RevealHTML == "" {
		return
	}
	if s.now().Sub(s.loadedAt) < s.current.RevealAfter {
		return
	}
	if parsed, err := parseHTML(s.current.RevealHTML); err == nil {
		s.doc = parsed
		s.elements = indexElements(parsed)
		s.revealed = true
	}
}

func (s *session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return browser.ErrSessionClosed
	}
	if s.url == "" {
		return nil
	}
	doc, ok := s.rt.lookup(s.url)
	if !ok {
		doc = s.current
	}
	return s.load(s.url, doc)
}

func (s *session) WaitForLoad(context.Context) error { return nil }

// Static documents have no script engine.
func (s *session) ExecuteScript(context.Context, string, ...any) (any, error) {
	return nil, browser.ErrUnavailable
}

func (s *session) CurrentURL(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url, nil
}

func (s *session) PageTitle(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current.Title != "" {
		return s.current.Title, nil
	}
	if s.doc == nil {
		return "", nil
	}
	return strings.TrimSpace(s.doc.Find("title").First().Text()), nil
}

func (s *session) PageText(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeReveal()
	if s.doc == nil {
		return "", nil
	}
	return collapseSpace(s.doc.Find("body").Text()), nil
}

func (s *session) Snapshot(context.Context) (*browser.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, browser.ErrSessionClosed
	}
	s.maybeReveal()
	snap := &browser.Snapshot{
		URL:       s.url,
		Viewport:  s.cfg.Viewport,
		Timestamp: s.now(),
	}
	if s.doc != nil {
		snap.Candidates = deriveCandidates(s.doc, s.elements, s.cfg.Viewport)
	}
	return snap, nil
}

func (s *session) lookup(handle string) (*goquery.Selection, error) {
	var idx int
	if _, err := fmt.Sscanf(handle, "e%d", &idx); err != nil {
		return nil, browser.ErrStaleHandle
	}
	if idx < 0 || idx >= len(s.elements) {
		return nil, browser.ErrStaleHandle
	}
	return s.elements[idx], nil
}

func (s *session) Click(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return browser.ErrSessionClosed
	}
	sel, err := s.lookup(handle)
	if err != nil {
		return err
	}
	// Anchors navigate like a real browser.
	if goquery.NodeName(sel) == "a" {
		if href, ok := sel.Attr("href"); ok && href != "" {
			if doc, found := s.rt.lookup(href); found {
				return s.load(href, doc)
			}
		}
	}
	return nil
}

func (s *session) EnterText(_ context.Context, handle, text string, clearFirst bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel, err := s.lookup(handle)
	if err != nil {
		return err
	}
	value := text
	if !clearFirst {
		prev, _ := sel.Attr("value")
		value = prev + text
	}
	sel.SetAttr("value", value)
	return nil
}

func (s *session) SelectOption(_ context.Context, handle, optionText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel, err := s.lookup(handle)
	if err != nil {
		return err
	}
	found := false
	sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
		if strings.TrimSpace(opt.Text()) == optionText {
			opt.SetAttr("selected", "selected")
			sel.SetAttr("value", optionText)
			found = true
		} else {
			opt.RemoveAttr("selected")
		}
	})
	if !found {
		return fmt.Errorf("option %q not present", optionText)
	}
	return nil
}

func (s *session) UploadFile(_ context.Context, handle, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel, err := s.lookup(handle)
	if err != nil {
		return err
	}
	sel.SetAttr("value", fileID)
	return nil
}

func (s *session) ScrollTo(_ context.Context, handle, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.lookup(handle)
	return err
}

func (s *session) SubmitForm(_ context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.lookup(handle)
	return err
}

func (s *session) PressEnter(_ context.Context, handle string) error {
	if handle == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.lookup(handle)
	return err
}

func (s *session) ReadText(_ context.Context, handle string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sel, err := s.lookup(handle)
	if err != nil {
		return "", err
	}
	switch goquery.NodeName(sel) {
	case "input", "textarea", "select":
		v, _ := sel.Attr("value")
		return v, nil
	}
	return collapseSpace(sel.Text()), nil
}

// Static pages have no dialogs.
func (s *session) AcceptDialog(context.Context) error  { return browser.ErrNoDialog }
func (s *session) DismissDialog(context.Context) error { return browser.ErrNoDialog }

func (s *session) SwitchTab(_ context.Context, toNewest bool, index int) error {
	if toNewest || index == 0 {
		return nil
	}
	return browser.ErrNoSuchTab
}

func (s *session) Screenshot(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []byte("static:" + s.url), nil
}

func (s *session) Cookies(context.Context) ([]browser.Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]browser.Cookie(nil), s.current.Cookies...), nil
}

func (s *session) LocalStorage(context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.localKV))
	for k, v := range s.localKV {
		out[k] = v
	}
	return out, nil
}

func (s *session) SessionStorage(context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.sessKV))
	for k, v := range s.sessKV {
		out[k] = v
	}
	return out, nil
}

// SetLocalStorage seeds local storage for tests and demos.
func (s *session) SetLocalStorage(kv map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range kv {
		s.localKV[k] = v
	}
}

func (s *session) StartNetworkCapture(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append([]browser.NetworkRequest(nil), s.current.Requests...)
	return nil
}

// NetworkRequests drains the scripted request log.
func (s *session) NetworkRequests(context.Context) ([]browser.NetworkRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out, nil
}

func (s *session) Performance(context.Context) (*browser.PerformanceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	perf := s.current.Performance
	return &perf, nil
}

func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func parseHTML(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// indexElements walks the document in order and assigns stable handles.
func indexElements(doc *goquery.Document) []*goquery.Selection {
	var out []*goquery.Selection
	doc.Find("body *").Each(func(_ int, sel *goquery.Selection) {
		out = append(out, sel)
	})
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
