package flow

import "strings"

// BlockType discriminates the block union.
type BlockType string

const (
	TypeOpenPage              BlockType = "open_page"
	TypeClickElement          BlockType = "click_element"
	TypeEnterText             BlockType = "enter_text"
	TypeWaitUntilVisible      BlockType = "wait_until_visible"
	TypeAssertVisible         BlockType = "assert_visible"
	TypeIfCondition           BlockType = "if_condition"
	TypeRepeatUntil           BlockType = "repeat_until"
	TypeDelay                 BlockType = "delay"
	TypeRefreshPage           BlockType = "refresh_page"
	TypeWaitForPageLoad       BlockType = "wait_for_page_load"
	TypeSelectOption          BlockType = "select_option"
	TypeUploadFile            BlockType = "upload_file"
	TypeVerifyText            BlockType = "verify_text"
	TypeScrollToElement       BlockType = "scroll_to_element"
	TypeSaveText              BlockType = "save_text"
	TypeSavePageContent       BlockType = "save_page_content"
	TypeVerifyPageTitle       BlockType = "verify_page_title"
	TypeVerifyURL             BlockType = "verify_url"
	TypeVerifyElementEnabled  BlockType = "verify_element_enabled"
	TypeUseSavedValue         BlockType = "use_saved_value"
	TypeVerifyNetworkRequest  BlockType = "verify_network_request"
	TypeVerifyPerformance     BlockType = "verify_performance"
	TypeSubmitForm            BlockType = "submit_form"
	TypeConfirmDialog         BlockType = "confirm_dialog"
	TypeDismissDialog         BlockType = "dismiss_dialog"
	TypeActivatePrimaryAction BlockType = "activate_primary_action"
	TypeSubmitCurrentInput    BlockType = "submit_current_input"
	TypeVerifyPageContent     BlockType = "verify_page_content"
	TypeGetCookies            BlockType = "get_cookies"
	TypeGetLocalStorage       BlockType = "get_local_storage"
	TypeGetSessionStorage     BlockType = "get_session_storage"
	TypeObserveNetwork        BlockType = "observe_network"
	TypeSwitchTab             BlockType = "switch_tab"
)

// ScrollAlignment positions the element after a scroll.
type ScrollAlignment string

const (
	ScrollTop    ScrollAlignment = "top"
	ScrollCenter ScrollAlignment = "center"
	ScrollBottom ScrollAlignment = "bottom"
)

// HTTPMethod constrains network verification to known verbs. MethodAny
// matches every verb.
type HTTPMethod string

const (
	MethodGet    HTTPMethod = "GET"
	MethodPost   HTTPMethod = "POST"
	MethodPut    HTTPMethod = "PUT"
	MethodDelete HTTPMethod = "DELETE"
	MethodPatch  HTTPMethod = "PATCH"
	MethodAny    HTTPMethod = "ANY"
)

// PerformanceMetric names a measurable page timing.
type PerformanceMetric string

const (
	MetricLCP             PerformanceMetric = "LCP"
	MetricCLS             PerformanceMetric = "CLS"
	MetricTTFB            PerformanceMetric = "TTFB"
	MetricPageLoadTime    PerformanceMetric = "page_load_time"
	MetricDOMInteractive  PerformanceMetric = "dom_interactive"
	MetricFirstByte       PerformanceMetric = "first_byte"
	MetricNetworkRequests PerformanceMetric = "network_requests"
)

// SavedValueAction selects what use_saved_value does with the value.
type SavedValueAction string

const (
	ActionEnterText      SavedValueAction = "enter_text"
	ActionVerifyContains SavedValueAction = "verify_contains"
	ActionVerifyEquals   SavedValueAction = "verify_equals"
)

// SavedValueTarget configures the use_saved_value action.
type SavedValueTarget struct {
	Action SavedValueAction `json:"action"`
}

// Block is one node of the flow graph. The Type field discriminates
// which of the optional fields apply; unused fields stay at their zero
// value and are omitted from JSON. Defaults for absent numeric fields
// are applied by ApplyDefaults after decoding, so a zero Timeout on a
// wait block means "not set", never "wait zero seconds".
type Block struct {
	ID        string    `json:"id"`
	Type      BlockType `json:"type"`
	NextBlock string    `json:"next_block,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`

	// Element-targeting actions.
	Element     *ElementRef `json:"element,omitempty"`
	Description string      `json:"description,omitempty"`

	// open_page
	URL string `json:"url,omitempty"`

	// enter_text
	Text       string `json:"text,omitempty"`
	ClearFirst *bool  `json:"clear_first,omitempty"`

	// wait_until_visible / wait_for_page_load
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`

	// if_condition / repeat_until
	Condition     *Condition `json:"condition,omitempty"`
	ThenBlocks    []string   `json:"then_blocks,omitempty"`
	ElseBlocks    []string   `json:"else_blocks,omitempty"`
	BodyBlocks    []string   `json:"body_blocks,omitempty"`
	MaxIterations int        `json:"max_iterations,omitempty"`

	// delay
	Seconds float64 `json:"seconds,omitempty"`

	// select_option
	OptionText string `json:"option_text,omitempty"`

	// upload_file
	File *FileRef `json:"file,omitempty"`

	// verify_text / verify_page_content
	Match *TextMatch `json:"match,omitempty"`

	// scroll_to_element
	Alignment ScrollAlignment `json:"alignment,omitempty"`

	// save_text / save_page_content
	SaveAs *SaveAs `json:"save_as,omitempty"`

	// verify_page_title / verify_url
	Title   string `json:"title,omitempty"`
	URLPart string `json:"url_part,omitempty"`

	// verify_element_enabled
	ShouldBeEnabled *bool `json:"should_be_enabled,omitempty"`

	// use_saved_value
	Target   *SavedValueTarget `json:"target,omitempty"`
	ValueRef *SavedValueRef    `json:"value_ref,omitempty"`

	// verify_network_request
	URLPattern string     `json:"url_pattern,omitempty"`
	Method     HTTPMethod `json:"method,omitempty"`
	StatusCode int        `json:"status_code,omitempty"`

	// verify_performance
	Metric      PerformanceMetric `json:"metric,omitempty"`
	ThresholdMS int               `json:"threshold_ms,omitempty"`

	// switch_tab
	ToNewest *bool `json:"to_newest,omitempty"`
	TabIndex int   `json:"tab_index,omitempty"`
}

// Default limits and timeouts for absent optional fields.
const (
	DefaultWaitTimeoutSeconds     = 10
	DefaultPageLoadTimeoutSeconds = 15
	DefaultMaxIterations          = 10
	MaxIterationsCeiling          = 50
	MaxWaitTimeoutSeconds         = 60
)

// ApplyDefaults fills absent optional fields with their documented
// defaults and clamps safety limits. Called once when a graph is
// decoded so every later consumer sees fully populated blocks.
func (b *Block) ApplyDefaults() {
	switch b.Type {
	case TypeWaitUntilVisible:
		if b.TimeoutSeconds <= 0 {
			b.TimeoutSeconds = DefaultWaitTimeoutSeconds
		}
		if b.TimeoutSeconds > MaxWaitTimeoutSeconds {
			b.TimeoutSeconds = MaxWaitTimeoutSeconds
		}
	case TypeWaitForPageLoad:
		if b.TimeoutSeconds <= 0 {
			b.TimeoutSeconds = DefaultPageLoadTimeoutSeconds
		}
	case TypeRepeatUntil:
		if b.MaxIterations <= 0 {
			b.MaxIterations = DefaultMaxIterations
		}
		if b.MaxIterations > MaxIterationsCeiling {
			b.MaxIterations = MaxIterationsCeiling
		}
	case TypeEnterText:
		if b.ClearFirst == nil {
			t := true
			b.ClearFirst = &t
		}
	case TypeDelay:
		if b.Seconds <= 0 {
			b.Seconds = 1.0
		}
	case TypeVerifyElementEnabled:
		if b.ShouldBeEnabled == nil {
			t := true
			b.ShouldBeEnabled = &t
		}
	case TypeVerifyNetworkRequest:
		if b.Method == "" {
			b.Method = MethodAny
		}
	case TypeVerifyPerformance:
		if b.Metric == "" {
			b.Metric = MetricPageLoadTime
		}
		if b.ThresholdMS <= 0 {
			b.ThresholdMS = 2000
		}
	case TypeScrollToElement:
		if b.Alignment == "" {
			b.Alignment = ScrollCenter
		}
	case TypeSwitchTab:
		if b.ToNewest == nil {
			t := true
			b.ToNewest = &t
		}
	case TypeUseSavedValue:
		if b.Target == nil {
			b.Target = &SavedValueTarget{Action: ActionEnterText}
		}
	case TypeOpenPage:
		// Bare hosts default to https. Relative paths are joined with
		// BASE_URL at execution time and pass through untouched.
		if b.URL != "" && !strings.HasPrefix(b.URL, "http://") &&
			!strings.HasPrefix(b.URL, "https://") && !strings.HasPrefix(b.URL, "/") {
			b.URL = "https://" + b.URL
		}
	}
}

// Label returns a friendly name like "Open Page Block" for validation
// messages.
func (b *Block) Label() string {
	words := strings.Split(string(b.Type), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ") + " Block"
}

// IsControlFlow reports whether the block branches or loops.
func (b *Block) IsControlFlow() bool {
	return b.Type == TypeIfCondition || b.Type == TypeRepeatUntil
}
