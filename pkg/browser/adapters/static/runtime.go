// Package static is a goquery-backed Session adapter over static HTML
// documents. It derives roles, accessible names, test ids, and regions
// from markup the same way a live driver would, so the resolution and
// interpretation layers can run without a browser. Documents can swap
// after a delay to model late-rendering pages.
package static

import (
	"context"
	"sync"
	"time"

	"github.com/odvcencio/weblens/pkg/browser"
)

// Document is one servable page.
type Document struct {
	Title string
	HTML  string

	// RevealHTML, when set, replaces HTML once RevealAfter has elapsed
	// since navigation. Models content that renders late.
	RevealHTML  string
	RevealAfter time.Duration

	// Scripted observations surfaced through the session.
	Requests    []browser.NetworkRequest
	Performance browser.PerformanceSnapshot
	Cookies     []browser.Cookie
}

// Runtime serves registered documents to its sessions.
type Runtime struct {
	mu     sync.RWMutex
	pages  map[string]Document
	closed bool

	// now is the session clock, injectable for tests.
	now func() time.Time
}

// NewRuntime creates an empty static runtime.
func NewRuntime() *Runtime {
	return &Runtime{
		pages: make(map[string]Document),
		now:   time.Now,
	}
}

// AddPage registers a document under its URL.
func (r *Runtime) AddPage(url string, doc Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages[url] = doc
}

// SetClock replaces the time source for all future sessions.
func (r *Runtime) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// NewSession opens a session over the registered documents.
func (r *Runtime) NewSession(_ context.Context, cfg browser.SessionConfig) (browser.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, browser.ErrUnavailable
	}
	return newSession(r, cfg), nil
}

// Close marks the runtime unavailable. Existing sessions keep working
// against already-loaded documents.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *Runtime) lookup(url string) (Document, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.pages[url]
	return doc, ok
}

func (r *Runtime) clock() func() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.now
}
