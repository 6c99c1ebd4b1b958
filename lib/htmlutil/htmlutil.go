package htmlutil

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("campussync.lib.htmlutil")

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	if node.Type == html.ElementNode {
		switch node.Data {
		case "script", "style", "noscript":
			return
		}
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "table": true, "section": true, "article": true, "header": true,
	"footer": true, "pre": true, "blockquote": true,
}

// GetBlockText is like GetText but starts a new line at block elements, so
// the output resembles what a browser would render as innerText.
func GetBlockText(node *html.Node) string {
	var buffer bytes.Buffer
	getBlockTextRecursive(node, &buffer)
	return buffer.String()
}

func getBlockTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		buffer.WriteString(node.Data)
		return
	case html.ElementNode:
		switch node.Data {
		case "script", "style", "noscript":
			return
		}
	}
	block := node.Type == html.ElementNode && blockElements[node.Data]
	if block {
		buffer.WriteByte('\n')
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		getBlockTextRecursive(child, buffer)
	}
	if block {
		buffer.WriteByte('\n')
	}
}

type Anchor struct {
	Name string
	Url  *url.URL
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

func CleanAnchorText(name string) string {
	name = removeNonPrintable(name)
	name = strings.Trim(name, " \t\n")
	return innerWhitespace.ReplaceAllString(name, " ")
}

// GetAnchors returns every node in sel with an href attribute, resolved
// against base. Anchors with unparsable or empty hrefs are skipped.
func GetAnchors(ctx context.Context, base *url.URL, sel *goquery.Selection) []Anchor {
	_, span := tracer.Start(ctx, "GetAnchors")
	defer span.End()

	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" || (n.Data == "iframe" && a.Key == "src") {
				href = strings.TrimSpace(a.Val)
				break
			}
		}
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			continue
		}

		link, err := url.Parse(href)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "got error while parsing url")
			continue
		}
		if base != nil {
			link = base.ResolveReference(link)
		}

		name := CleanAnchorText(GetText(n))
		anchors = append(anchors, Anchor{
			Name: name,
			Url:  link,
		})
		span.AddEvent("anchor", trace.WithAttributes(
			attribute.String("name", name),
			attribute.String("url", link.String()),
		))
	}

	return anchors
}

// NearestLabel walks up from sel through its ancestors and returns the
// heading line of the first ancestor whose heading matches pattern. It
// returns "" when no ancestor matches.
func NearestLabel(sel *goquery.Selection, pattern *regexp.Regexp) string {
	for cur := sel.First().Parent(); cur.Length() > 0; cur = cur.Parent() {
		switch goquery.NodeName(cur) {
		case "body", "html", "#document":
			return ""
		}
		label := headingText(cur)
		if label != "" && pattern.MatchString(label) {
			return label
		}
	}
	return ""
}

// headingText prefers the explicit heading of a container and falls back to
// the container's own text nodes, ignoring text from its descendants.
func headingText(sel *goquery.Selection) string {
	heading := sel.ChildrenFiltered("h1, h2, h3, h4, .sectionname, .section-title, [data-for=section_title]").First()
	if heading.Length() > 0 {
		return CleanAnchorText(heading.Text())
	}
	var own strings.Builder
	for child := sel.Nodes[0].FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			own.WriteString(child.Data)
		}
	}
	return CleanAnchorText(own.String())
}
