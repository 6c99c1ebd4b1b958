// Package browser drives a headless Chrome through the handful of
// interactions the portal crawlers need.
package browser

import (
	"context"
	"net/http"
	"time"
)

// Session is one browser tab. Every method is bounded by the session's
// action timeout and returns early when ctx is cancelled.
//
// note: fault injection point
type Session interface {
	// Navigate loads url and waits for a body element. A navigation that only
	// changes the fragment of the current url is performed in-page.
	Navigate(ctx context.Context, url string) error
	// Location is the url of the current page.
	Location(ctx context.Context) (string, error)
	// Text is the rendered innerText of the page body.
	Text(ctx context.Context) (string, error)
	// HTML is the serialized DOM of the page as currently rendered.
	HTML(ctx context.Context) (string, error)
	// ScrollToBottom scrolls the page and its scrollable containers down
	// cycles times, pausing after each cycle for lazy content to load.
	ScrollToBottom(ctx context.Context, cycles int) error
	// Exists reports whether an element matches a css selector.
	Exists(ctx context.Context, selector string) (bool, error)
	// Click clicks the first element matching selector, it reports false when
	// nothing matched.
	Click(ctx context.Context, selector string) (bool, error)
	// ClickText clicks the first element matching selector whose text
	// contains text (case insensitive).
	ClickText(ctx context.Context, selector, text string) (bool, error)
	// Fill types value into the first input matching selector.
	Fill(ctx context.Context, selector, value string) error
	// Evaluate runs a script and decodes its result into out, out may be nil.
	Evaluate(ctx context.Context, script string, out any) error
	// Cookies returns the cookies of the current page, in a form usable by a
	// plain http client.
	Cookies(ctx context.Context) ([]*http.Cookie, error)
	// Pause waits for d or until ctx is done.
	Pause(ctx context.Context, d time.Duration) error
	Close() error
}

// Launcher starts browser sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

type Options struct {
	Headless  bool
	ExecPath  string
	UserAgent string
	// ActionTimeout bounds every individual action, including page loads.
	ActionTimeout time.Duration
	// ScrollPause is how long to wait after each scroll cycle.
	ScrollPause time.Duration
}

const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0 Safari/537.36"

func DefaultOptions() Options {
	return Options{
		Headless:      true,
		UserAgent:     DefaultUserAgent,
		ActionTimeout: 90 * time.Second,
		ScrollPause:   400 * time.Millisecond,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FillFirst fills the first of selectors that matches an element, it reports
// false when none did.
func FillFirst(ctx context.Context, session Session, selectors []string, value string) (bool, error) {
	for _, selector := range selectors {
		exists, err := session.Exists(ctx, selector)
		if err != nil {
			return false, err
		}
		if !exists {
			continue
		}
		return true, session.Fill(ctx, selector, value)
	}
	return false, nil
}

// ClickFirst clicks the first of selectors that matches an element.
func ClickFirst(ctx context.Context, session Session, selectors []string) (bool, error) {
	for _, selector := range selectors {
		clicked, err := session.Click(ctx, selector)
		if err != nil || clicked {
			return clicked, err
		}
	}
	return false, nil
}
