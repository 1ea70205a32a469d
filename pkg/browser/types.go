package browser

import "time"

// Viewport defines the browser viewport size.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect describes a rectangle in viewport coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() int { return r.X + r.Width }

// Center returns the midpoint of the rectangle.
func (r Rect) Center() (int, int) { return r.X + r.Width/2, r.Y + r.Height/2 }

// Capability names the actions an element supports. Capabilities gate
// block execution: asking a button to accept text is a user error, not
// a resolution failure.
type Capability string

const (
	CapClickable   Capability = "clickable"
	CapEditable    Capability = "editable"
	CapSelectLike  Capability = "select_like"
	CapFileInput   Capability = "file_input"
	CapReadable    Capability = "readable"
	CapSubmittable Capability = "submittable"
)

// Candidate is the engine-side view of one interactable element. The
// session builds candidates from the live page; the resolver scores
// them without ever touching the page itself.
type Candidate struct {
	// Handle identifies the element for later actions. Handles are
	// valid until the next navigation or refresh.
	Handle string `json:"handle"`

	// Semantic identity.
	Role        string `json:"role"`
	Name        string `json:"name"`
	AriaLabel   string `json:"aria_label,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Title       string `json:"title,omitempty"`
	TestID      string `json:"test_id,omitempty"`

	// Structural signals for semantically void elements.
	Tag        string            `json:"tag"`
	Href       string            `json:"href,omitempty"`
	Markup     string            `json:"markup,omitempty"`
	Class      string            `json:"class,omitempty"`
	Attrs      map[string]string `json:"attrs,omitempty"`
	NearbyText string            `json:"nearby_text,omitempty"`

	// Geometry and state.
	Bounds  Rect   `json:"bounds"`
	Region  string `json:"region,omitempty"`
	Visible bool   `json:"visible"`
	Enabled bool   `json:"enabled"`

	Capabilities map[Capability]bool `json:"capabilities,omitempty"`
}

// Has reports whether the candidate supports the capability.
func (c *Candidate) Has(cap Capability) bool {
	return c.Capabilities[cap]
}

// CapabilityNames returns the observed capability map with string keys,
// the shape failure evidence expects.
func (c *Candidate) CapabilityNames() map[string]bool {
	out := make(map[string]bool, len(c.Capabilities))
	for k, v := range c.Capabilities {
		out[string(k)] = v
	}
	return out
}

// Actuals returns the observed semantic attributes of the candidate,
// recorded in the report so a reader can compare expectation against
// what the page really exposed.
func (c *Candidate) Actuals() map[string]any {
	return map[string]any{
		"role":       c.Role,
		"name":       c.Name,
		"aria_label": c.AriaLabel,
		"tag":        c.Tag,
		"test_id":    c.TestID,
		"visible":    c.Visible,
		"enabled":    c.Enabled,
	}
}

// Snapshot is a point-in-time view of the page: its identity plus every
// interactable candidate. Resolution operates on snapshots only.
type Snapshot struct {
	URL        string      `json:"url"`
	Title      string      `json:"title"`
	Viewport   Viewport    `json:"viewport"`
	Candidates []Candidate `json:"candidates"`
	Timestamp  time.Time   `json:"timestamp"`
}

// NetworkRequest records one observed request during network capture.
type NetworkRequest struct {
	URL        string    `json:"url"`
	Method     string    `json:"method"`
	StatusCode int       `json:"status_code"`
	Timestamp  time.Time `json:"timestamp"`
}

// PerformanceSnapshot carries the page timing metrics a verify block
// can assert against. Values are milliseconds except CLS (unitless)
// and RequestCount.
type PerformanceSnapshot struct {
	PageLoadTime   float64 `json:"page_load_time"`
	DOMInteractive float64 `json:"dom_interactive"`
	FirstByte      float64 `json:"first_byte"`
	TTFB           float64 `json:"ttfb"`
	LCP            float64 `json:"lcp"`
	CLS            float64 `json:"cls"`
	RequestCount   int     `json:"request_count"`
}

// Cookie is a single browser cookie captured as evidence.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain,omitempty"`
	Path     string `json:"path,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HTTPOnly bool   `json:"http_only,omitempty"`
}

// SessionConfig tunes a new browser session.
type SessionConfig struct {
	Viewport        Viewport      `json:"viewport"`
	NavigateTimeout time.Duration `json:"navigate_timeout"`
	Headless        bool          `json:"headless"`
}

// DefaultSessionConfig returns the standard session settings.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Viewport:        Viewport{Width: 1280, Height: 800},
		NavigateTimeout: 30 * time.Second,
		Headless:        true,
	}
}
