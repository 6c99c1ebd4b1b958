package moodle

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"campussync/lib/textutil"

	"github.com/ledongthuc/pdf"
)

func pdfText(data []byte, maxPages int) (text string, err error) {
	// the reader panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	pages := r.NumPage()
	if maxPages > 0 && pages > maxPages {
		pages = maxPages
	}
	var b strings.Builder
	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pageText, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		b.WriteString(pageText)
		b.WriteByte('\n')
	}
	return textutil.CollapseBlankLines(b.String()), nil
}

func looksLikePDF(contentType string, data []byte) bool {
	return strings.Contains(strings.ToLower(contentType), "application/pdf") ||
		bytes.HasPrefix(data, []byte("%PDF-"))
}

func looksLikeHTML(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/html")
}

// fileText downloads a linked file and returns its text if it is a pdf.
// Results are cached across jobs of the same user by canonical url, a file
// fetched with one user's session is never served to another.
func (s Scraper) fileText(ctx context.Context, c *client, link *url.URL) (string, bool) {
	key := c.UserID + " " + canonicalUrl(link)
	if text, ok := s.pdfCache.Get(key); ok {
		return text, text != ""
	}

	data, contentType, err := c.Download(ctx, link.String(), s.opts.MaxPDFBytes)
	if err != nil {
		return "", false
	}

	// resource activities answer with an intermediate page when the file is
	// not served inline
	if looksLikeHTML(contentType) && strings.Contains(link.Path, "/mod/resource/") {
		target, err := c.ResolveWorkaroundLink(ctx, link)
		if err != nil {
			return "", false
		}
		data, contentType, err = c.Download(ctx, target.String(), s.opts.MaxPDFBytes)
		if err != nil {
			return "", false
		}
	}

	if !looksLikePDF(contentType, data) {
		return "", false
	}
	text, err := pdfText(data, s.opts.MaxPDFPages)
	if err != nil {
		s.tel.ReportWarning(report_crawl_file, fmt.Errorf("extract pdf text: %w", err), link.String())
		return "", false
	}
	s.pdfCache.Add(key, text)
	return text, text != ""
}
