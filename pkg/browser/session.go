// Package browser defines the driver port the execution engine talks
// to. The engine never sees CSS or XPath: a Session exposes semantic
// candidate snapshots and acts on opaque handles, so any driver (CDP,
// WebDriver, a static DOM for tests) can plug in behind the same
// interface.
package browser

import "context"

// Runtime manages browser sessions.
type Runtime interface {
	NewSession(ctx context.Context, cfg SessionConfig) (Session, error)
	Close() error
}

// Session is the port implemented by browser driver adapters. All
// blocking operations take a context; drivers must honor cancellation.
//
// Handles returned inside Snapshot candidates are only valid until the
// next Navigate or Refresh.
type Session interface {
	ID() string

	// Navigation and page identity.
	Navigate(ctx context.Context, url string) error
	Refresh(ctx context.Context) error
	WaitForLoad(ctx context.Context) error
	// ExecuteScript runs a script in page context. Drivers without a
	// script engine return ErrUnavailable.
	ExecuteScript(ctx context.Context, script string, args ...any) (any, error)
	CurrentURL(ctx context.Context) (string, error)
	PageTitle(ctx context.Context) (string, error)
	PageText(ctx context.Context) (string, error)

	// Snapshot returns the current candidate view of the page.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// Element actions, addressed by candidate handle.
	Click(ctx context.Context, handle string) error
	EnterText(ctx context.Context, handle, text string, clearFirst bool) error
	SelectOption(ctx context.Context, handle, optionText string) error
	UploadFile(ctx context.Context, handle, fileID string) error
	ScrollTo(ctx context.Context, handle string, alignment string) error
	SubmitForm(ctx context.Context, handle string) error
	PressEnter(ctx context.Context, handle string) error
	ReadText(ctx context.Context, handle string) (string, error)

	// Dialogs and tabs.
	AcceptDialog(ctx context.Context) error
	DismissDialog(ctx context.Context) error
	SwitchTab(ctx context.Context, toNewest bool, index int) error

	// Evidence capture.
	Screenshot(ctx context.Context) ([]byte, error)
	Cookies(ctx context.Context) ([]Cookie, error)
	LocalStorage(ctx context.Context) (map[string]string, error)
	SessionStorage(ctx context.Context) (map[string]string, error)

	// Network and performance observation.
	StartNetworkCapture(ctx context.Context) error
	NetworkRequests(ctx context.Context) ([]NetworkRequest, error)
	Performance(ctx context.Context) (*PerformanceSnapshot, error)

	Close() error
}
