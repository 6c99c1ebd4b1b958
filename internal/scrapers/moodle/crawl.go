package moodle

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"campussync/internal/model"
	"campussync/lib/htmlutil"
	"campussync/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("campussync.internal.scrapers.moodle")

var weekLabelRegex = regexp.MustCompile(`(?i)\b(semana|fase|week)\s*\d+`)

const (
	sectionSelector  = "li.section, [data-for=section]"
	activitySelector = "li.activity, .activity, [data-for=cmitem]"
	mainSelector     = "div[role=main], #region-main"
)

// Scrape runs a whole LMS job for one user: the browser login followed by
// the http crawl of every course.
func (s Scraper) Scrape(ctx context.Context, userID, loginID, secret string) ([]model.ExtractedDocumentText, error) {
	session, courses, err := s.Login(ctx, loginID, secret)
	if err != nil {
		return nil, err
	}
	return s.Crawl(ctx, userID, session, courses)
}

// Crawl fetches every course over http using the cookies of session and
// returns one document per course that could be crawled.
func (s Scraper) Crawl(
	ctx context.Context,
	userID string,
	session model.AuthenticatedSession,
	courses []Course,
) ([]model.ExtractedDocumentText, error) {
	ctx, span := tracer.Start(ctx, "Crawl")
	defer span.End()
	span.SetAttributes(attribute.Int("courses", len(courses)))

	c, err := newClient(session, s.opts, s.tel)
	if err != nil {
		s.tel.ReportBroken(report_crawl_course, fmt.Errorf("create client: %w", err))
		return nil, err
	}
	c.UserID = userID

	visited := newVisitedSet()
	contents := make([]*CourseContent, len(courses))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.opts.CourseConcurrency)
	for i, course := range courses {
		group.Go(func() error {
			content, err := s.crawlCourse(groupCtx, c, visited, course)
			if errors.Is(err, model.ErrCancelled) {
				return err
			}
			if err != nil {
				s.tel.ReportWarning(report_crawl_course, fmt.Errorf("skip course: %w", err), course.Name)
				return nil
			}
			contents[i] = &content
			return nil
		})
	}
	err = group.Wait()
	if err == nil && ctx.Err() != nil {
		err = fmt.Errorf("%w: %w", model.ErrCancelled, ctx.Err())
	}
	if err != nil {
		return nil, err
	}

	s.tel.ReportCount(report_visited, int64(visited.Len()))

	now := s.time.Now()
	docs := []model.ExtractedDocumentText{}
	for _, content := range contents {
		if content == nil {
			continue
		}
		docs = append(docs, model.ExtractedDocumentText{
			UserID:        userID,
			CourseName:    content.Title,
			FormattedText: FormatCourse(*content),
			CapturedAt:    now,
		})
	}
	if len(docs) == 0 && len(courses) > 0 {
		return nil, fmt.Errorf("none of the %d courses could be crawled", len(courses))
	}
	return docs, nil
}

func mainRegion(doc *goquery.Selection) *goquery.Selection {
	main := doc.Find(mainSelector).First()
	if main.Length() == 0 {
		return doc.Find("body").First()
	}
	return main
}

func blockText(sel *goquery.Selection, max int) string {
	if sel.Length() == 0 {
		return ""
	}
	return textutil.Truncate(textutil.CollapseBlankLines(htmlutil.GetBlockText(sel.Nodes[0])), max)
}

func sectionNumber(sel *goquery.Selection, index int) int {
	for _, attr := range []string{"data-number", "data-sectionnum"} {
		if n, err := strconv.Atoi(sel.AttrOr(attr, "")); err == nil {
			return n
		}
	}
	if id := sel.AttrOr("id", ""); strings.HasPrefix(id, "section-") {
		if n, err := strconv.Atoi(strings.TrimPrefix(id, "section-")); err == nil {
			return n
		}
	}
	return index
}

func sectionName(sel *goquery.Selection) string {
	heading := sel.Find(".sectionname, [data-for=section_title], h3, h2").First()
	return htmlutil.CleanAnchorText(heading.Text())
}

// collapsed reports whether a section only shows a summary and has to be
// fetched on its own page to list its activities.
func collapsed(sel *goquery.Selection) bool {
	if sel.HasClass("section-summary") || sel.HasClass("summary") {
		return true
	}
	return sel.Find(activitySelector).Length() == 0 &&
		sel.Find("a[href*='section=']").Length() > 0
}

func (s Scraper) crawlCourse(ctx context.Context, c *client, visited *visitedSet, course Course) (CourseContent, error) {
	ctx, span := tracer.Start(ctx, "crawlCourse")
	defer span.End()
	span.SetAttributes(attribute.String("course", course.Url.String()))

	visited.Visit(course.Url)
	doc, base, err := c.Document(ctx, course.Url.String())
	if err != nil {
		return CourseContent{}, err
	}

	content := CourseContent{
		Course: course,
		Title:  course.Name,
	}
	if title := htmlutil.CleanAnchorText(doc.Find(".page-header-headings h1, h1").First().Text()); title != "" {
		content.Title = title
	}
	content.Overview = blockText(doc.Find(".course-summary, [data-for=sectioninfo], .summarytext").First(), s.opts.MaxBodyRunes)

	courseId, err := course.Id()
	if err != nil {
		s.tel.ReportWarning(report_crawl_course, fmt.Errorf("parse course id: %w", err), course.Url.String())
	}

	sections := doc.Find(sectionSelector)
	if sections.Length() == 0 {
		// single page formats have no section markup at all
		sections = mainRegion(doc.Selection)
	}

	for i := range sections.Nodes {
		if ctx.Err() != nil {
			return CourseContent{}, fmt.Errorf("%w: %w", model.ErrCancelled, ctx.Err())
		}

		sel := sections.Eq(i)
		section := Section{
			Name:      sectionName(sel),
			Collapsed: collapsed(sel),
		}
		container := sel
		sectionBase := base
		if section.Collapsed && courseId >= 0 {
			sectionUrl := c.resolve(fmt.Sprintf(
				"/course/view.php?id=%d&section=%d",
				courseId, sectionNumber(sel, i),
			))
			if visited.Visit(sectionUrl) {
				sectionDoc, sectionDocBase, err := c.Document(ctx, sectionUrl.String())
				if errors.Is(err, model.ErrCancelled) {
					return CourseContent{}, err
				}
				if err != nil {
					s.tel.ReportWarning(report_crawl_section, err, sectionUrl.String())
				} else {
					container = mainRegion(sectionDoc.Selection)
					sectionBase = sectionDocBase
				}
			}
		}

		activities := s.sectionActivities(ctx, sectionBase, container, section.Name)
		for _, activity := range activities {
			if !visited.Visit(activity.Url) {
				continue
			}
			result, err := s.crawlActivity(ctx, c, visited, activity)
			if errors.Is(err, model.ErrCancelled) {
				return CourseContent{}, err
			}
			if err != nil {
				s.tel.ReportWarning(report_crawl_activity, err, activity.Url.String())
				continue
			}
			result.Section = section.Name
			section.Activities = append(section.Activities, result)
		}

		if len(section.Activities) > 0 {
			content.Sections = append(content.Sections, section)
		}
	}

	return content, nil
}

func weekLabel(anchor *goquery.Selection, sectionName string, maxRunes int) string {
	label := htmlutil.NearestLabel(anchor, weekLabelRegex)
	if label == "" && weekLabelRegex.MatchString(sectionName) {
		label = sectionName
	}
	if label == "" {
		return GeneralTopic
	}
	return textutil.Truncate(label, maxRunes)
}

func (s Scraper) sectionActivities(ctx context.Context, base *url.URL, container *goquery.Selection, sectionName string) []Activity {
	var activities []Activity
	container.Find("a[href*='/mod/']").Each(func(_ int, a *goquery.Selection) {
		for _, anchor := range htmlutil.GetAnchors(ctx, base, a) {
			activity, ok := activityFromAnchor(anchor)
			if !ok || s.excluded(activity) {
				continue
			}
			activity.Week = weekLabel(a, sectionName, s.opts.MaxLabelRunes)
			activities = append(activities, activity)
		}
	})
	return activities
}

func (s Scraper) crawlActivity(ctx context.Context, c *client, visited *visitedSet, activity Activity) (ActivityContent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ItemTimeout)
	defer cancel()

	result := ActivityContent{Activity: activity}

	switch activity.Type {
	case ACTIVITY_FOLDER:
		return result, nil
	case ACTIVITY_FILE:
		result.Files = []string{activity.Url.String()}
		s.collectFileTexts(ctx, c, visited, &result, []*url.URL{activity.Url})
		return result, nil
	case ACTIVITY_LINK:
		target, err := c.ResolveWorkaroundLink(ctx, activity.Url)
		if err != nil {
			return result, err
		}
		s.classifyLinks(c.BaseUrl, []*url.URL{target}, &result)
		return result, nil
	}

	doc, base, err := c.Document(ctx, activity.Url.String())
	if err != nil {
		return result, err
	}
	main := mainRegion(doc.Selection)
	result.Body = blockText(main, s.opts.MaxBodyRunes)

	var links []*url.URL
	for _, a := range htmlutil.GetAnchors(ctx, base, main.Find("a[href], iframe[src]")) {
		links = append(links, a.Url)
	}
	files := s.classifyLinks(c.BaseUrl, links, &result)
	s.collectFileTexts(ctx, c, visited, &result, files)

	return result, nil
}

var videoHosts = []string{"youtube.com", "youtu.be", "vimeo.com"}

func isVideoLink(link *url.URL) bool {
	host := strings.ToLower(link.Hostname())
	for _, h := range videoHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func isFileLink(link *url.URL) bool {
	path := strings.ToLower(link.Path)
	for _, ext := range []string{".pdf", ".pptx", ".docx"} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return strings.Contains(path, "pluginfile.php") ||
		strings.Contains(strings.ToLower(link.RawQuery), "forcedownload")
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}

// classifyLinks sorts links into videos, files and outbound links and
// returns the file links.
func (s Scraper) classifyLinks(portal *url.URL, links []*url.URL, result *ActivityContent) []*url.URL {
	var files []*url.URL
	for _, link := range links {
		str := link.String()
		switch {
		case isVideoLink(link):
			result.Videos = appendUnique(result.Videos, str)
		case isFileLink(link):
			before := len(result.Files)
			result.Files = appendUnique(result.Files, str)
			if len(result.Files) > before {
				files = append(files, link)
			}
		case link.Hostname() != portal.Hostname() && (link.Scheme == "http" || link.Scheme == "https"):
			result.Links = appendUnique(result.Links, str)
		}
	}
	return files
}

func (s Scraper) collectFileTexts(ctx context.Context, c *client, visited *visitedSet, result *ActivityContent, files []*url.URL) {
	for _, file := range files {
		if file.Hostname() != c.BaseUrl.Hostname() {
			continue
		}
		// the activity url of a resource was already marked when it was
		// discovered
		if file != result.Activity.Url && !visited.Visit(file) {
			continue
		}
		text, ok := s.fileText(ctx, c, file)
		if !ok {
			continue
		}
		if result.FileTexts == nil {
			result.FileTexts = map[string]string{}
		}
		result.FileTexts[file.String()] = text
	}
}
