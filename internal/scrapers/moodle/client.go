// client.go contains the http side of the crawler, it is seeded with the
// cookies of a browser login and never talks to the browser itself.

package moodle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"campussync/internal/assert"
	"campussync/internal/model"
	"campussync/internal/telemetry"
	"campussync/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_client_fetch    = "client.fetch"
	report_client_cookies  = "client.cookies"
	report_client_resolve  = "client.resolve-workaround-link"
	report_client_download = "client.download"
	report_client_dump     = "client.dump"
)

type client struct {
	BaseUrl *url.URL
	Http    *resty.Client
	// UserID is the user whose session cookies the client carries.
	UserID string

	tel telemetry.API
}

func newClient(session model.AuthenticatedSession, opts Options, tel telemetry.API) (*client, error) {
	assert.NotNil(tel)

	parsedBaseUrl, err := url.Parse(session.BaseURL)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(strings.TrimSuffix(session.BaseURL, "/"))
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	// the browser reports cookie domains in its own format, they are all
	// re-scoped to the portal host
	cookies := make([]*http.Cookie, 0, len(session.Cookies))
	for _, c := range session.Cookies {
		copied := *c
		copied.Domain = ""
		cookies = append(cookies, &copied)
	}
	jar.SetCookies(parsedBaseUrl, cookies)
	if len(cookies) == 0 {
		tel.ReportWarning(report_client_cookies, fmt.Errorf("crawling without session cookies"), session.BaseURL)
	}
	httpClient.SetCookieJar(jar)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)

	httpClient.SetHeader("user-agent", opts.UserAgent)
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(parsedBaseUrl.Hostname()))
	httpClient.SetTimeout(opts.RequestTimeout)

	// max burst >= 2 just means that no requests will be dropped
	rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 2)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel)

	if opts.DumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(opts.DumpDir)
		if err != nil {
			tel.ReportWarning(report_client_dump, err, opts.DumpDir)
		} else {
			restyutil.DumpResponses(httpClient, output)
		}
	}

	return &client{
		BaseUrl: parsedBaseUrl,
		Http:    httpClient,
		tel:     tel,
	}, nil
}

func (c *client) resolve(ref string) *url.URL {
	parsed, err := url.Parse(ref)
	if err != nil {
		return c.BaseUrl
	}
	return c.BaseUrl.ResolveReference(parsed)
}

func (c *client) checkResponse(ctx context.Context, endpoint string, res *resty.Response, err error) error {
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return fmt.Errorf("%w: %w", model.ErrCancelled, ctx.Err())
		}
		c.tel.ReportWarning(report_client_fetch, fmt.Errorf("fetch: %w", err), endpoint)
		return fmt.Errorf("%w: %s: %w", model.ErrNavigationTimeout, endpoint, err)
	}
	if res.IsError() {
		err = fmt.Errorf("fetch: status %d", res.StatusCode())
		c.tel.ReportWarning(report_client_fetch, err, endpoint)
		return err
	}
	return nil
}

func (c *client) get(ctx context.Context, endpoint string) (*resty.Response, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(endpoint)
	err = c.checkResponse(ctx, endpoint, res, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Document fetches and parses a page, it also returns the final url of the
// page after redirects so relative links resolve correctly.
func (c *client) Document(ctx context.Context, endpoint string) (*goquery.Document, *url.URL, error) {
	res, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		c.tel.ReportBroken(report_client_fetch, fmt.Errorf("parse: %w", err), endpoint)
		return nil, nil, err
	}
	return doc, finalUrl(res, c.resolve(endpoint)), nil
}

func finalUrl(res *resty.Response, fallback *url.URL) *url.URL {
	if res.RawResponse != nil && res.RawResponse.Request != nil && res.RawResponse.Request.URL != nil {
		return res.RawResponse.Request.URL
	}
	return fallback
}

// Download fetches the raw bytes of a file, refusing files larger than
// maxBytes. The body is streamed so an oversized file is never held in memory.
func (c *client) Download(ctx context.Context, endpoint string, maxBytes int) ([]byte, string, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(endpoint)
	if res != nil && res.RawBody() != nil {
		defer res.RawBody().Close()
	}
	err = c.checkResponse(ctx, endpoint, res, err)
	if err != nil {
		return nil, "", err
	}

	tooLarge := func(size int64) error {
		err := fmt.Errorf("file is %d bytes, over the limit of %d", size, maxBytes)
		c.tel.ReportWarning(report_client_download, err, endpoint)
		return err
	}
	if maxBytes > 0 && res.RawResponse.ContentLength > int64(maxBytes) {
		return nil, "", tooLarge(res.RawResponse.ContentLength)
	}

	var reader io.Reader = res.RawBody()
	if maxBytes > 0 {
		reader = io.LimitReader(reader, int64(maxBytes)+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", c.checkResponse(ctx, endpoint, res, err)
	}
	if maxBytes > 0 && len(body) > maxBytes {
		return nil, "", tooLarge(int64(len(body)))
	}
	return body, res.Header().Get("content-type"), nil
}

// ResolveWorkaroundLink finds the real target of a url or resource activity,
// which moodle sometimes hides behind an intermediate page.
func (c *client) ResolveWorkaroundLink(ctx context.Context, link *url.URL) (*url.URL, error) {
	doc, base, err := c.Document(ctx, link.String())
	if err != nil {
		return nil, err
	}

	for _, selector := range []string{
		"div.resourceworkaround a",
		"div.urlworkaround a",
		"object[data]",
		"iframe#resourceobject",
	} {
		node := doc.Find(selector).First()
		target := node.AttrOr("href", node.AttrOr("data", node.AttrOr("src", "")))
		if target == "" {
			continue
		}
		parsed, err := url.Parse(target)
		if err != nil {
			continue
		}
		c.tel.ReportDebug("resolved workaround link", target)
		return base.ResolveReference(parsed), nil
	}

	err = fmt.Errorf("resolve workaround link: could not find target anchor for '%s'", link)
	c.tel.ReportWarning(report_client_resolve, err, link.String())
	return nil, err
}
