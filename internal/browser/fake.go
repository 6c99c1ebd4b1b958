package browser

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"campussync/internal/model"
)

// FakePage is one page state of a Fake browser.
type FakePage struct {
	Text string
	HTML string
	// Selectors lists the css selectors that match something on the page.
	Selectors []string
	// Clicks maps a selector (or "selector|text" for ClickText) to the key
	// of the page that clicking it leads to. An empty key stays on the page.
	Clicks map[string]string
	// Eval maps a script to the key of the page it leads to and the boolean
	// result it returns.
	Eval map[string]FakeEval
	// NavigateErr is returned when the page is navigated to.
	NavigateErr error
}

type FakeEval struct {
	Next   string
	Result bool
}

// Fake is a scripted Launcher and Session for tests. Pages are keyed by the
// url they are navigated to or by the key a click leads to.
type Fake struct {
	mutex sync.Mutex

	Pages      map[string]*FakePage
	CookieList []*http.Cookie
	// LaunchErr is returned by Launch.
	LaunchErr error
	// FillHook is called on every Fill, it may switch pages by returning a
	// non-empty key.
	FillHook func(selector, value string) string

	current     string
	Launches    int
	Navigations []string
	Clicked     []string
	Filled      map[string]string
	Scrolls     int
	Closed      int
}

func NewFake(pages map[string]*FakePage) *Fake {
	return &Fake{
		Pages:  pages,
		Filled: map[string]string{},
	}
}

func (f *Fake) Launch(ctx context.Context) (Session, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.Launches++
	if f.LaunchErr != nil {
		return nil, f.LaunchErr
	}
	return f, nil
}

func (f *Fake) page() *FakePage {
	if p, ok := f.Pages[f.current]; ok {
		return p
	}
	return &FakePage{}
}

func (f *Fake) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", model.ErrCancelled, err)
	}
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.Navigations = append(f.Navigations, url)
	if p, ok := f.Pages[url]; ok && p.NavigateErr != nil {
		return p.NavigateErr
	}
	f.current = url
	return nil
}

func (f *Fake) Location(ctx context.Context) (string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.current, nil
}

func (f *Fake) Text(ctx context.Context) (string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.page().Text, nil
}

func (f *Fake) HTML(ctx context.Context) (string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.page().HTML, nil
}

func (f *Fake) ScrollToBottom(ctx context.Context, cycles int) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.Scrolls += cycles
	return nil
}

func (f *Fake) Exists(ctx context.Context, selector string) (bool, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	for _, s := range f.page().Selectors {
		if s == selector {
			return true, nil
		}
	}
	return false, nil
}

func (f *Fake) click(key string) bool {
	next, ok := f.page().Clicks[key]
	if !ok {
		return false
	}
	f.Clicked = append(f.Clicked, key)
	if next != "" {
		f.current = next
	}
	return true
}

func (f *Fake) Click(ctx context.Context, selector string) (bool, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.click(selector), nil
}

func (f *Fake) ClickText(ctx context.Context, selector, text string) (bool, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.click(selector + "|" + text), nil
}

func (f *Fake) Fill(ctx context.Context, selector, value string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.Filled[selector] = value
	if f.FillHook != nil {
		if next := f.FillHook(selector, value); next != "" {
			f.current = next
		}
	}
	return nil
}

func (f *Fake) Evaluate(ctx context.Context, script string, out any) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	ev, ok := f.page().Eval[script]
	if ok && ev.Next != "" {
		f.current = ev.Next
	}
	if b, isBool := out.(*bool); isBool {
		*b = ok && ev.Result
	}
	return nil
}

func (f *Fake) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.CookieList, nil
}

func (f *Fake) Pause(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

func (f *Fake) Close() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.Closed++
	return nil
}

// Current is the key of the page the fake is showing.
func (f *Fake) Current() string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.current
}
