package moodle

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"campussync/internal/browser"
	"campussync/internal/chrono"
	"campussync/internal/model"
	"campussync/internal/telemetry"

	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, time.September, 10, 12, 0, 0, 0, chrono.Campus())

func testOptions() Options {
	opts := DefaultOptions()
	opts.CourseConcurrency = 1
	opts.RequestsPerSecond = 1000
	opts.RequestTimeout = 5 * time.Second
	opts.ItemTimeout = 5 * time.Second
	opts.LoginBackoff = 0
	return opts
}

func newTestScraper(t testing.TB, base string, launcher browser.Launcher) (Scraper, *telemetry.Recorder) {
	t.Helper()
	baseUrl, err := url.Parse(base)
	require.NoError(t, err)
	tel := telemetry.NewRecorder()
	return NewScraper(baseUrl, launcher, testOptions(), chrono.FixedTime{T: testNow}, tel), tel
}

// minimalPDF builds a one page pdf showing text.
func minimalPDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return b.Bytes()
}

func TestPDFText(t *testing.T) {
	text, err := pdfText(minimalPDF("Hello PDF"), 30)
	require.NoError(t, err)
	require.Contains(t, text, "Hello PDF")

	_, err = pdfText([]byte("definitely not a pdf"), 30)
	require.Error(t, err)
}

const course1Html = `<html><body>
<h1>Algoritmos</h1>
<div role="main">
<div class="course-summary">Bem-vindos ao curso de algoritmos.</div>
<ul class="topics">
	<li id="section-0" class="section">
		<ul class="section">
			<li class="activity"><a href="/mod/page/view.php?id=10">Boas-vindas</a></li>
		</ul>
	</li>
	<li id="section-1" class="section" data-number="1">
		<h3 class="sectionname">Semana 1</h3>
		<ul class="section">
			<li class="activity"><a href="/mod/page/view.php?id=11">Aula 1</a></li>
			<li class="activity"><a href="/mod/forum/view.php?id=12">Fórum</a></li>
			<li class="activity"><a href="/mod/resource/view.php?id=13">Slides</a></li>
			<li class="activity"><a href="/mod/page/view.php?id=11#top">Aula 1 de novo</a></li>
			<li class="activity"><a href="/mod/folder/view.php?id=15">Material</a></li>
		</ul>
	</li>
	<li id="section-2" class="section section-summary" data-number="2">
		<h3 class="sectionname">Semana 2</h3>
		<a href="/course/view.php?id=1&amp;section=2">Abrir</a>
	</li>
</ul>
</div>
</body></html>`

const course1Section2Html = `<html><body>
<div role="main">
<ul>
	<li id="section-2" class="section">
		<h3 class="sectionname">Semana 2</h3>
		<ul class="section">
			<li class="activity"><a href="/mod/page/view.php?id=14">Aula 2</a></li>
			<li class="activity"><a href="/mod/page/view.php?id=11">Aula 1</a></li>
		</ul>
	</li>
</ul>
</div>
</body></html>`

const course2Html = `<html><body>
<h1>Cidadania</h1>
<div role="main">
<ul>
	<li id="section-1" class="section">
		<h3 class="sectionname">Fase 1</h3>
		<ul class="section">
			<li class="activity"><a href="/mod/page/view.php?id=11">Aula compartilhada</a></li>
			<li class="activity"><a href="/mod/page/view.php?id=20">Direitos</a></li>
		</ul>
	</li>
</ul>
</div>
</body></html>`

func page(body string) string {
	return fmt.Sprintf(`<html><body><nav>menu</nav><div role="main">%s</div></body></html>`, body)
}

type lmsServer struct {
	*httptest.Server

	mutex sync.Mutex
	hits  map[string]int
}

func newLMSServer(t testing.TB) *lmsServer {
	t.Helper()
	pdfBytes := minimalPDF("Hello PDF")

	s := &lmsServer{hits: map[string]int{}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mutex.Lock()
		s.hits[r.URL.RequestURI()]++
		s.mutex.Unlock()

		cookie, err := r.Cookie("MoodleSession")
		if err != nil || cookie.Value != "session-1" {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		id := r.URL.Query().Get("id")
		html := ""
		switch r.URL.Path {
		case "/course/view.php":
			switch {
			case id == "1" && r.URL.Query().Get("section") == "2":
				html = course1Section2Html
			case id == "1":
				html = course1Html
			case id == "2":
				html = course2Html
			}
		case "/mod/page/view.php":
			switch id {
			case "10":
				html = page(`<p>Leia o plano de ensino.</p>
<iframe src="https://www.youtube.com/embed/abc"></iframe>
<a href="https://example.org/ref">Referência</a>`)
			case "11":
				html = page(`<p>Conteúdo da aula 1</p><a href="/pluginfile.php/1/notes.pdf">Notas</a>`)
			case "14":
				html = page(`<p>Conteúdo da aula 2</p>`)
			case "20":
				html = page(`<p>Direitos e deveres</p>`)
			}
		case "/mod/resource/view.php", "/pluginfile.php/1/notes.pdf":
			w.Header().Set("content-type", "application/pdf")
			w.Write(pdfBytes)
			return
		}
		if html == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("content-type", "text/html; charset=utf-8")
		w.Write([]byte(html))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *lmsServer) Hits() map[string]int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := map[string]int{}
	for k, v := range s.hits {
		out[k] = v
	}
	return out
}

func testCourses(t testing.TB, base string) []Course {
	t.Helper()
	var courses []Course
	for i, name := range []string{"Algoritmos", "Cidadania"} {
		u, err := url.Parse(fmt.Sprintf("%s/course/view.php?id=%d", base, i+1))
		require.NoError(t, err)
		courses = append(courses, Course{Name: name, Url: u})
	}
	return courses
}

func TestCrawl(t *testing.T) {
	srv := newLMSServer(t)
	scraper, tel := newTestScraper(t, srv.URL, browser.NewFake(nil))

	session := model.AuthenticatedSession{
		BaseURL: srv.URL,
		Cookies: []*http.Cookie{{Name: "MoodleSession", Value: "session-1", Domain: ".example.edu"}},
	}
	docs, err := scraper.Crawl(context.Background(), "u1", session, testCourses(t, srv.URL))
	require.NoError(t, err)
	require.Len(t, docs, 2)

	algoritmos := docs[0]
	require.Equal(t, "u1", algoritmos.UserID)
	require.Equal(t, "Algoritmos", algoritmos.CourseName)
	require.True(t, algoritmos.CapturedAt.Equal(testNow))

	text := algoritmos.FormattedText
	require.Contains(t, text, "--- COURSE: Algoritmos ---")
	require.Contains(t, text, "Bem-vindos ao curso de algoritmos.")
	require.Contains(t, text, "WEEK: General Topic\nTITLE: Boas-vindas (Page)")
	require.Contains(t, text, "[VIDEO]: https://www.youtube.com/embed/abc")
	require.Contains(t, text, "[LINK]: https://example.org/ref")
	require.Contains(t, text, "WEEK: Semana 1\nTITLE: Aula 1 (Page)")
	require.Contains(t, text, "Conteúdo da aula 1")
	require.Contains(t, text, "[FILE]: "+srv.URL+"/pluginfile.php/1/notes.pdf")
	require.Contains(t, text, "Semana 1 | FILE: Slides -> "+srv.URL+"/mod/resource/view.php?id=13")
	require.Contains(t, text, "Semana 1 | FOLDER: Material")
	require.Contains(t, text, "WEEK: Semana 2\nTITLE: Aula 2 (Page)")
	require.NotContains(t, text, "Fórum")
	require.NotContains(t, text, "menu")

	cidadania := docs[1].FormattedText
	require.Contains(t, cidadania, "WEEK: Fase 1\nTITLE: Direitos (Page)")
	// the shared page was already processed by the first course
	require.NotContains(t, cidadania, "Aula compartilhada")

	hits := srv.Hits()
	for uri, count := range hits {
		require.Equal(t, 1, count, uri)
	}
	require.NotContains(t, hits, "/mod/forum/view.php?id=12")
	require.NotContains(t, hits, "/mod/folder/view.php?id=15")
	require.Contains(t, hits, "/course/view.php?id=1&section=2")

	visited := tel.Find("count", report_visited)
	require.Len(t, visited, 1)
	// 2 courses, 1 collapsed section, 4 pages, the folder, the resource and the pdf
	require.Equal(t, int64(10), visited[0].Params[0])
	require.Empty(t, tel.Find("warning", report_crawl_course))
}

func TestCrawlWithoutCookies(t *testing.T) {
	srv := newLMSServer(t)
	scraper, tel := newTestScraper(t, srv.URL, browser.NewFake(nil))

	_, err := scraper.Crawl(
		context.Background(),
		"u1",
		model.AuthenticatedSession{BaseURL: srv.URL},
		testCourses(t, srv.URL),
	)
	require.Error(t, err)
	require.NotEmpty(t, tel.Find("warning", report_client_cookies))
	require.Len(t, tel.Find("warning", report_crawl_course), 2)
}

func TestCrawlCancelled(t *testing.T) {
	srv := newLMSServer(t)
	scraper, _ := newTestScraper(t, srv.URL, browser.NewFake(nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := scraper.Crawl(ctx, "u1", model.AuthenticatedSession{
		BaseURL: srv.URL,
		Cookies: []*http.Cookie{{Name: "MoodleSession", Value: "session-1"}},
	}, testCourses(t, srv.URL))
	require.ErrorIs(t, err, model.ErrCancelled)
}

const base = "https://ava.example.edu"

const coursesHtml = `<html><body>
<div class="card">
	<a href="https://ava.example.edu/course/view.php?id=1"><img src="x.png"></a>
	<a href="https://ava.example.edu/course/view.php?id=1">Algoritmos e Programação</a>
</div>
<div class="card">
	<a href="/course/view.php?id=2">Ética e Cidadania</a>
</div>
<div class="card">
	<a href="/course/view.php?id=3">BIBLIOTECA VIRTUAL</a>
</div>
</body></html>`

func loginPages(courses string) map[string]*browser.FakePage {
	return map[string]*browser.FakePage{
		base + loginPath: {
			Selectors: []string{"#username", "#password", "#loginbtn"},
			Clicks:    map[string]string{"#loginbtn": ""},
		},
		base + coursesPath: {
			HTML: courses,
		},
	}
}

func TestLogin(t *testing.T) {
	fake := browser.NewFake(loginPages(coursesHtml))
	fake.CookieList = []*http.Cookie{{Name: "MoodleSession", Value: "session-1"}}
	scraper, _ := newTestScraper(t, base, fake)

	session, courses, err := scraper.Login(context.Background(), "2025001", "123456789")
	require.NoError(t, err)

	require.Equal(t, base, session.BaseURL)
	require.Equal(t, fake.CookieList, session.Cookies)

	require.Len(t, courses, 2)
	require.Equal(t, "Algoritmos e Programação", courses[0].Name)
	require.Equal(t, base+"/course/view.php?id=1", courses[0].Url.String())
	require.Equal(t, "Ética e Cidadania", courses[1].Name)
	id, err := courses[1].Id()
	require.NoError(t, err)
	require.Equal(t, int64(2), id)

	require.Equal(t, "2025001", fake.Filled["#username"])
	require.Equal(t, "123456789", fake.Filled["#password"])
	require.Equal(t, 1, fake.Closed)
}

func TestLoginRetriesThenFails(t *testing.T) {
	fake := browser.NewFake(loginPages(`<html><body><p>Sua sessão expirou</p></body></html>`))
	scraper, tel := newTestScraper(t, base, fake)

	_, _, err := scraper.Login(context.Background(), "2025001", "wrong")
	require.ErrorIs(t, err, model.ErrAuthFailure)
	require.Len(t, fake.Navigations, 6)
	require.Equal(t, 1, fake.Launches)
	require.Equal(t, 1, fake.Closed)
	require.Len(t, tel.Find("warning", report_login), 4)
}

func TestLoginDriverFatal(t *testing.T) {
	fake := browser.NewFake(nil)
	fake.LaunchErr = fmt.Errorf("%w: chrome not found", model.ErrDriverFatal)
	scraper, _ := newTestScraper(t, base, fake)

	_, _, err := scraper.Login(context.Background(), "2025001", "123456789")
	require.ErrorIs(t, err, model.ErrDriverFatal)
	require.NotErrorIs(t, err, model.ErrAuthFailure)
	require.Empty(t, fake.Navigations)
}

func TestFormatCourse(t *testing.T) {
	link, _ := url.Parse(base + "/mod/page/view.php?id=1")
	file, _ := url.Parse(base + "/mod/resource/view.php?id=2")
	text := FormatCourse(CourseContent{
		Title:    "Algoritmos",
		Overview: "Plano de ensino",
		Sections: []Section{{
			Name: "Semana 1",
			Activities: []ActivityContent{
				{
					Activity: Activity{Type: ACTIVITY_PAGE, Name: "Aula 1", Url: link, Week: "Semana 1"},
					Section:  "Semana 1",
					Body:     "Vetores e matrizes",
					Videos:   []string{"https://youtu.be/abc"},
				},
				{
					Activity:  Activity{Type: ACTIVITY_FILE, Name: "Slides", Url: file, Week: "Semana 1"},
					FileTexts: map[string]string{file.String(): "Slide 1"},
				},
			},
		}},
	})

	require.True(t, strings.HasPrefix(text, "--- COURSE: Algoritmos ---\n"))
	require.Contains(t, text, "[OVERVIEW]\nPlano de ensino\n")
	require.Contains(t, text, "WEEK: Semana 1\nTITLE: Aula 1 (Page)\nLINK: "+link.String())
	require.NotContains(t, text, "SECTION:")
	require.Contains(t, text, "Vetores e matrizes\n[VIDEO]: https://youtu.be/abc\n")
	require.Contains(t, text, "Semana 1 | FILE: Slides -> "+file.String()+"\n[FILE TEXT]: "+file.String()+"\nSlide 1\n")
}

func TestWeekLabelAndLinks(t *testing.T) {
	require.True(t, weekLabelRegex.MatchString("SEMANA 12 - Revisão"))
	require.True(t, weekLabelRegex.MatchString("Fase 3"))
	require.False(t, weekLabelRegex.MatchString("Semanal"))

	for link, expect := range map[string][2]bool{
		"https://www.youtube.com/watch?v=1":                   {true, false},
		"https://youtu.be/1":                                  {true, false},
		"https://player.vimeo.com/video/1":                    {true, false},
		base + "/pluginfile.php/4/mod_resource/content/a.txt": {false, true},
		base + "/files/aula.PDF":                              {false, true},
		base + "/draftfile.php?forcedownload=1":               {false, true},
		"https://notyoutube.com/watch":                        {false, false},
	} {
		u, err := url.Parse(link)
		require.NoError(t, err)
		require.Equal(t, expect[0], isVideoLink(u), link)
		require.Equal(t, expect[1], isFileLink(u), link)
	}
}

func TestCanonicalUrl(t *testing.T) {
	a, _ := url.Parse("HTTPS://ava.example.edu/mod/page/view.php?b=2&a=1#frag")
	b, _ := url.Parse("https://ava.example.edu/mod/page/view.php?a=1&b=2")
	require.Equal(t, canonicalUrl(a), canonicalUrl(b))
	require.Equal(t, "frag", a.Fragment)

	v := newVisitedSet()
	require.True(t, v.Visit(a))
	require.False(t, v.Visit(b))
	require.Equal(t, 1, v.Len())
}

func TestCrawlSkipsSlowActivity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		html := ""
		switch r.URL.Path {
		case "/course/view.php":
			html = page(`<ul><li id="section-1" class="section">
	<h3 class="sectionname">Semana 1</h3>
	<ul class="section">
		<li class="activity"><a href="/mod/page/view.php?id=31">Aula lenta</a></li>
		<li class="activity"><a href="/mod/page/view.php?id=32">Aula rápida</a></li>
	</ul>
</li></ul>`)
		case "/mod/page/view.php":
			if r.URL.Query().Get("id") == "31" {
				select {
				case <-time.After(5 * time.Second):
				case <-r.Context().Done():
					return
				}
			}
			html = page(`<p>Conteúdo ` + r.URL.Query().Get("id") + `</p>`)
		}
		w.Header().Set("content-type", "text/html; charset=utf-8")
		w.Write([]byte(html))
	}))
	defer srv.Close()

	baseUrl, err := url.Parse(srv.URL)
	require.NoError(t, err)
	opts := testOptions()
	opts.ItemTimeout = 200 * time.Millisecond
	tel := telemetry.NewRecorder()
	scraper := NewScraper(baseUrl, browser.NewFake(nil), opts, chrono.FixedTime{T: testNow}, tel)

	courseUrl, err := url.Parse(srv.URL + "/course/view.php?id=3")
	require.NoError(t, err)
	session := model.AuthenticatedSession{
		BaseURL: srv.URL,
		Cookies: []*http.Cookie{{Name: "MoodleSession", Value: "session-1"}},
	}
	docs, err := scraper.Crawl(context.Background(), "u1", session, []Course{{Name: "Redes", Url: courseUrl}})
	require.NoError(t, err)
	require.Len(t, docs, 1)

	text := docs[0].FormattedText
	require.Contains(t, text, "TITLE: Aula rápida (Page)")
	require.Contains(t, text, "Conteúdo 32")
	require.NotContains(t, text, "Aula lenta")

	warnings := tel.Find("warning", report_crawl_activity)
	require.Len(t, warnings, 1)
	require.ErrorIs(t, warnings[0].Params[0].(error), model.ErrNavigationTimeout)
	require.Empty(t, tel.Find("warning", report_crawl_course))
}

func TestFileTextCachedPerUser(t *testing.T) {
	var mutex sync.Mutex
	pdfHits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("MoodleSession")
		if err != nil {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/course/view.php":
			w.Header().Set("content-type", "text/html; charset=utf-8")
			w.Write([]byte(page(`<ul><li id="section-1" class="section">
	<h3 class="sectionname">Semana 1</h3>
	<ul class="section">
		<li class="activity"><a href="/mod/resource/view.php?id=41">Boletim</a></li>
	</ul>
</li></ul>`)))
		case "/mod/resource/view.php":
			mutex.Lock()
			pdfHits++
			mutex.Unlock()
			w.Header().Set("content-type", "application/pdf")
			w.Write(minimalPDF("Notas de " + cookie.Value))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	scraper, _ := newTestScraper(t, srv.URL, browser.NewFake(nil))
	crawl := func(userID, sessionID string) string {
		courseUrl, err := url.Parse(srv.URL + "/course/view.php?id=4")
		require.NoError(t, err)
		docs, err := scraper.Crawl(context.Background(), userID, model.AuthenticatedSession{
			BaseURL: srv.URL,
			Cookies: []*http.Cookie{{Name: "MoodleSession", Value: sessionID}},
		}, []Course{{Name: "Boletins", Url: courseUrl}})
		require.NoError(t, err)
		require.Len(t, docs, 1)
		return docs[0].FormattedText
	}

	require.Contains(t, crawl("u1", "ana"), "Notas de ana")
	require.Contains(t, crawl("u2", "bruno"), "Notas de bruno")
	require.Contains(t, crawl("u1", "ana"), "Notas de ana")

	mutex.Lock()
	defer mutex.Unlock()
	require.Equal(t, 2, pdfHits)
}

func TestDownloadLimit(t *testing.T) {
	chunk := bytes.Repeat([]byte("x"), 512)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/small.pdf":
			w.Write(chunk)
		case "/sized.pdf":
			w.Header().Set("content-length", "4096")
			w.Write(bytes.Repeat(chunk, 8))
		case "/endless.pdf":
			flusher := w.(http.Flusher)
			for r.Context().Err() == nil {
				if _, err := w.Write(chunk); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}))
	defer srv.Close()

	tel := telemetry.NewRecorder()
	c, err := newClient(model.AuthenticatedSession{
		BaseURL: srv.URL,
		Cookies: []*http.Cookie{{Name: "MoodleSession", Value: "session-1"}},
	}, testOptions(), tel)
	require.NoError(t, err)

	ctx := context.Background()
	data, _, err := c.Download(ctx, srv.URL+"/small.pdf", 1024)
	require.NoError(t, err)
	require.Equal(t, chunk, data)

	_, _, err = c.Download(ctx, srv.URL+"/sized.pdf", 1024)
	require.ErrorContains(t, err, "4096 bytes")

	// a body without a length is cut off at the limit instead of read whole
	_, _, err = c.Download(ctx, srv.URL+"/endless.pdf", 1024)
	require.ErrorContains(t, err, "over the limit of 1024")

	require.Len(t, tel.Find("warning", report_client_download), 2)
}
