package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"campussync/internal/assert"
	"campussync/internal/model"
	"campussync/internal/telemetry"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const (
	report_browser_launch = "browser.launch"
	report_browser_action = "browser.action"
)

// Chrome launches local Chrome processes through chromedp.
type Chrome struct {
	opts Options
	tel  telemetry.API
}

func NewChrome(opts Options, tel telemetry.API) Chrome {
	assert.NotNil(tel)
	assert.Positive("action timeout", int64(opts.ActionTimeout))

	return Chrome{
		opts: opts,
		tel:  telemetry.NewScopedAPI("browser", tel),
	}
}

func (c Chrome) Launch(ctx context.Context) (Session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("lang", "pt-BR"),
		chromedp.UserAgent(c.opts.UserAgent),
	)
	if c.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(c.opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	bctx, bcancel := chromedp.NewContext(allocCtx)

	// the first Run allocates the browser with the context it is given, the
	// process lives as long as that context so it must not carry a timeout
	err := chromedp.Run(bctx)
	if err == nil {
		startCtx, cancel := context.WithTimeout(bctx, c.opts.ActionTimeout)
		err = chromedp.Run(startCtx, chromedp.Navigate("about:blank"))
		cancel()
	}
	if err != nil {
		bcancel()
		allocCancel()
		err = fmt.Errorf("%w: start chrome: %w", model.ErrDriverFatal, err)
		c.tel.ReportBroken(report_browser_launch, err)
		return nil, err
	}

	return &chromeSession{
		ctx:  bctx,
		opts: c.opts,
		tel:  c.tel,
		close: func() {
			bcancel()
			allocCancel()
		},
	}, nil
}

type chromeSession struct {
	ctx       context.Context
	opts      Options
	tel       telemetry.API
	close     func()
	closeOnce sync.Once
}

// run executes actions in the tab, bounded by the action timeout and by the
// caller's ctx.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, s.opts.ActionTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", model.ErrCancelled, ctx.Err())
	case s.ctx.Err() != nil:
		return fmt.Errorf("%w: %w", model.ErrDriverFatal, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", model.ErrNavigationTimeout, err)
	}
	return err
}

func jsString(s string) string {
	out, _ := json.Marshal(s)
	return string(out)
}

func sameDocument(current, target string) bool {
	a, err := url.Parse(current)
	if err != nil {
		return false
	}
	b, err := url.Parse(target)
	if err != nil {
		return false
	}
	a.Fragment, b.Fragment = "", ""
	a.RawFragment, b.RawFragment = "", ""
	return a.String() == b.String()
}

func (s *chromeSession) Navigate(ctx context.Context, target string) error {
	current, err := s.Location(ctx)
	if err != nil {
		return err
	}

	if current != target && sameDocument(current, target) {
		err = s.run(ctx,
			chromedp.Evaluate(fmt.Sprintf("window.location.href = %s", jsString(target)), nil),
			chromedp.Sleep(s.opts.ScrollPause),
			chromedp.WaitReady("body", chromedp.ByQuery),
		)
	} else {
		err = s.run(ctx,
			chromedp.Navigate(target),
			chromedp.WaitReady("body", chromedp.ByQuery),
		)
	}
	if err != nil {
		s.tel.ReportWarning(report_browser_action, fmt.Errorf("navigate: %w", err), target)
		return err
	}
	return nil
}

func (s *chromeSession) Location(ctx context.Context) (string, error) {
	var location string
	err := s.run(ctx, chromedp.Location(&location))
	return location, err
}

func (s *chromeSession) Text(ctx context.Context) (string, error) {
	var text string
	err := s.run(ctx, chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text))
	return text, err
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, chromedp.Evaluate(`document.documentElement.outerHTML`, &html))
	return html, err
}

const scrollScript = `(() => {
	window.scrollTo(0, document.body.scrollHeight);
	document.querySelectorAll("mat-sidenav-content, .mat-drawer-content, main, [class*='scroll']").forEach((el) => {
		el.scrollTop = el.scrollHeight;
	});
	return true;
})()`

func (s *chromeSession) ScrollToBottom(ctx context.Context, cycles int) error {
	for i := 0; i < cycles; i++ {
		err := s.run(ctx,
			chromedp.Evaluate(scrollScript, nil),
			chromedp.Sleep(s.opts.ScrollPause),
		)
		if err != nil {
			return fmt.Errorf("scroll cycle %d: %w", i, err)
		}
	}
	return nil
}

func (s *chromeSession) Exists(ctx context.Context, selector string) (bool, error) {
	var exists bool
	err := s.run(ctx, chromedp.Evaluate(
		fmt.Sprintf("document.querySelector(%s) !== null", jsString(selector)),
		&exists,
	))
	return exists, err
}

func (s *chromeSession) Click(ctx context.Context, selector string) (bool, error) {
	var clicked bool
	err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	el.click();
	return true;
})()`, jsString(selector)), &clicked))
	return clicked, err
}

func (s *chromeSession) ClickText(ctx context.Context, selector, text string) (bool, error) {
	var clicked bool
	err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(`(() => {
	const want = %s.toLowerCase();
	for (const el of document.querySelectorAll(%s)) {
		if ((el.innerText || "").trim().toLowerCase().includes(want)) {
			el.click();
			return true;
		}
	}
	return false;
})()`, jsString(text), jsString(selector)), &clicked))
	return clicked, err
}

func (s *chromeSession) Fill(ctx context.Context, selector, value string) error {
	exists, err := s.Exists(ctx, selector)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("no element matches '%s'", selector)
	}
	return s.run(ctx,
		chromedp.Focus(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (s *chromeSession) Evaluate(ctx context.Context, script string, out any) error {
	return s.run(ctx, chromedp.Evaluate(script, out))
}

func (s *chromeSession) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	var cookies []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return toHTTPCookies(cookies), nil
}

func toHTTPCookies(cookies []*network.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		cookie := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		// session cookies carry an expiry of -1
		if c.Expires > 0 {
			sec, frac := math.Modf(c.Expires)
			cookie.Expires = time.Unix(int64(sec), int64(frac*1e9))
		}
		out = append(out, cookie)
	}
	return out
}

func (s *chromeSession) Pause(ctx context.Context, d time.Duration) error {
	return sleep(ctx, d)
}

func (s *chromeSession) Close() error {
	s.closeOnce.Do(s.close)
	return nil
}
