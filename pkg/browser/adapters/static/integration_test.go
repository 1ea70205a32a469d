package static

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/weblens/pkg/browser"
	"github.com/odvcencio/weblens/pkg/config"
	"github.com/odvcencio/weblens/pkg/flow"
	"github.com/odvcencio/weblens/pkg/interp"
)

const checkoutFlow = `{
  "name": "login-then-help",
  "entry_block": "open",
  "blocks": [
    {"id": "open", "type": "open_page", "url": "/login", "next_block": "type"},
    {"id": "type", "type": "enter_text", "text": "{{email}}", "next_block": "go-help",
     "element": {"role": "textbox", "name": "Email address"}},
    {"id": "go-help", "type": "click_element",
     "element": {"role": "link", "name": "Need help?"}, "next_block": "check"},
    {"id": "check", "type": "verify_page_title", "title": "Help Center"}
  ]
}`

func fastConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Retry.High = config.RetryTier{Attempts: 2, Interval: time.Millisecond}
	cfg.Retry.Medium = config.RetryTier{Attempts: 3, Interval: time.Millisecond}
	cfg.Retry.Low = config.RetryTier{Attempts: 5, Interval: 2 * time.Millisecond}
	cfg.Retry.StabilityWait = 10 * time.Millisecond
	return cfg
}

func TestFlowExecutesAgainstStaticPages(t *testing.T) {
	rt := NewRuntime()
	rt.AddPage("https://shop.example/login", Document{HTML: loginHTML})
	rt.AddPage("https://shop.example/help", Document{
		Title: "Help Center",
		HTML:  `<html><body><h1>Help Center</h1></body></html>`,
	})

	sess, err := rt.NewSession(context.Background(), browser.DefaultSessionConfig())
	require.NoError(t, err)
	defer sess.Close()

	g, err := flow.Decode([]byte(checkoutFlow))
	require.NoError(t, err)

	in := interp.New(sess, fastConfig())
	r := in.Execute(context.Background(), g, interp.Options{
		RunID: "it-1",
		InitialVariables: map[string]string{
			"BASE_URL": "https://shop.example",
			"email":    "a@example.com",
		},
	})

	require.True(t, r.Success, "report error: %+v", r.Error)
	assert.Equal(t, []string{"open", "type", "go-help", "check"}, r.ExecutedBlocks)

	got, err := sess.CurrentURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example/help", got)
}

func TestFlowFailureIsDiagnosedAgainstStaticPages(t *testing.T) {
	rt := NewRuntime()
	rt.AddPage("https://shop.example/login", Document{HTML: loginHTML})

	sess, err := rt.NewSession(context.Background(), browser.DefaultSessionConfig())
	require.NoError(t, err)
	defer sess.Close()

	g, err := flow.Decode([]byte(`{
	  "name": "missing-element",
	  "entry_block": "open",
	  "blocks": [
	    {"id": "open", "type": "open_page", "url": "https://shop.example/login", "next_block": "click"},
	    {"id": "click", "type": "click_element",
	     "element": {"role": "button", "name": "Checkout now"}}
	  ]
	}`))
	require.NoError(t, err)

	in := interp.New(sess, fastConfig())
	r := in.Execute(context.Background(), g, interp.Options{RunID: "it-2"})

	require.False(t, r.Success)
	require.NotNil(t, r.Error)
	assert.Equal(t, "click", r.Error.BlockID)
	assert.Contains(t, r.Error.Evidence, "strategy")
}
