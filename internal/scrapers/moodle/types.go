package moodle

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"campussync/internal/assert"
	"campussync/internal/browser"
	"campussync/internal/chrono"
	"campussync/internal/telemetry"
	"campussync/lib/htmlutil"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	report_login          = "login"
	report_crawl_course   = "crawl.course"
	report_crawl_section  = "crawl.section"
	report_crawl_activity = "crawl.activity"
	report_crawl_file     = "crawl.file"
	report_visited        = "crawl.visited"
)

// GeneralTopic is the week label of activities outside any week or phase.
const GeneralTopic = "General Topic"

type Options struct {
	// CourseDenyList are course names (matched loosely) that are not crawled.
	CourseDenyList []string
	// ExcludedKinds are activity kinds (the <kind> in /mod/<kind>/view.php)
	// that are not visited.
	ExcludedKinds []string
	// MaxBodyRunes caps the text kept from an activity page.
	MaxBodyRunes int
	// MaxPDFPages and MaxPDFBytes bound text extraction from linked PDFs.
	MaxPDFPages int
	MaxPDFBytes int
	// MaxLabelRunes caps week labels.
	MaxLabelRunes int
	// CourseConcurrency is how many courses are crawled at once.
	CourseConcurrency int
	// RequestsPerSecond limits the http crawler.
	RequestsPerSecond float64
	RequestTimeout    time.Duration
	// ItemTimeout bounds the work spent on one activity, including its files.
	ItemTimeout   time.Duration
	LoginAttempts int
	LoginBackoff  time.Duration
	UserAgent     string
	// DumpDir receives every http response of the last crawl when set.
	DumpDir string
}

func DefaultOptions() Options {
	return Options{
		CourseDenyList:    []string{"Biblioteca"},
		ExcludedKinds:     []string{"forum", "chat", "grade", "grading", "quiz"},
		MaxBodyRunes:      20000,
		MaxPDFPages:       30,
		MaxPDFBytes:       20 << 20,
		MaxLabelRunes:     30,
		CourseConcurrency: 2,
		RequestsPerSecond: 2,
		RequestTimeout:    30 * time.Second,
		ItemTimeout:       45 * time.Second,
		LoginAttempts:     3,
		LoginBackoff:      2 * time.Second,
		UserAgent:         browser.DefaultUserAgent,
	}
}

// Scraper crawls the LMS. A browser is only used to log in, course content
// is fetched over plain http with the browser's cookies.
type Scraper struct {
	baseUrl  *url.URL
	launcher browser.Launcher
	opts     Options
	time     chrono.TimeAPI
	tel      telemetry.API
	pdfCache *expirable.LRU[string, string]
}

func NewScraper(
	baseUrl *url.URL,
	launcher browser.Launcher,
	opts Options,
	time chrono.TimeAPI,
	tel telemetry.API,
) Scraper {
	assert.NotNil(baseUrl)
	assert.NotNil(launcher)
	assert.NotNil(time)
	assert.NotNil(tel)
	assert.Positive("login attempts", opts.LoginAttempts)
	assert.Positive("course concurrency", opts.CourseConcurrency)
	assert.Positive("requests per second", opts.RequestsPerSecond)

	tel = telemetry.NewScopedAPI("moodle_scraper", tel)

	return Scraper{
		baseUrl:  baseUrl,
		launcher: launcher,
		opts:     opts,
		time:     time,
		tel:      tel,
		pdfCache: expirable.NewLRU[string, string](256, nil, pdfCacheTTL),
	}
}

const pdfCacheTTL = 12 * time.Hour

func parseIdFromUrl(link *url.URL, key string) (int64, error) {
	str := link.Query().Get(key)
	id, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return -1, err
	}
	return id, nil
}

type Course htmlutil.Anchor

func (c Course) Id() (int64, error) {
	return parseIdFromUrl(c.Url, "id")
}

type ActivityType int

const (
	ACTIVITY_UNKNOWN ActivityType = iota
	ACTIVITY_PAGE
	ACTIVITY_LINK
	ACTIVITY_FILE
	ACTIVITY_FOLDER
	ACTIVITY_ASSIGNMENT
)

func (t ActivityType) String() string {
	switch t {
	case ACTIVITY_PAGE:
		return "Page"
	case ACTIVITY_LINK:
		return "ExternalLink"
	case ACTIVITY_FILE:
		return "File"
	case ACTIVITY_FOLDER:
		return "Folder"
	case ACTIVITY_ASSIGNMENT:
		return "Assignment"
	}
	return "Unknown"
}

func activityTypeOf(kind string) ActivityType {
	switch kind {
	case "page", "book", "label", "lesson", "wiki", "glossary":
		return ACTIVITY_PAGE
	case "url":
		return ACTIVITY_LINK
	case "resource":
		return ACTIVITY_FILE
	case "folder":
		return ACTIVITY_FOLDER
	case "assign":
		return ACTIVITY_ASSIGNMENT
	}
	return ACTIVITY_UNKNOWN
}

var activityPathRegex = regexp.MustCompile(`/mod/([a-z]+)/view\.php$`)

// Activity is a link to a course module found inside a section.
type Activity struct {
	Type ActivityType
	Kind string
	Name string
	Url  *url.URL
	Week string
}

// activityFromAnchor returns false for anchors that are not activities.
func activityFromAnchor(a htmlutil.Anchor) (Activity, bool) {
	m := activityPathRegex.FindStringSubmatch(a.Url.Path)
	if m == nil {
		return Activity{}, false
	}
	return Activity{
		Type: activityTypeOf(m[1]),
		Kind: m[1],
		Name: a.Name,
		Url:  a.Url,
	}, true
}

func (s Scraper) excluded(activity Activity) bool {
	if strings.Contains(strings.ToLower(activity.Url.String()), "delete") {
		return true
	}
	for _, kind := range s.opts.ExcludedKinds {
		if activity.Kind == kind {
			return true
		}
	}
	return false
}

// ActivityContent is what was extracted from one activity.
type ActivityContent struct {
	Activity Activity
	Section  string
	Body     string
	Videos   []string
	Files    []string
	Links    []string
	// FileTexts maps a file url to the text extracted from it.
	FileTexts map[string]string
}

type Section struct {
	Name string
	// Collapsed sections only showed a summary on the course page.
	Collapsed  bool
	Activities []ActivityContent
}

type CourseContent struct {
	Course   Course
	Title    string
	Overview string
	Sections []Section
}
