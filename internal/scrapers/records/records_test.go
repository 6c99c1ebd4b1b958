package records

import (
	"context"
	"fmt"
	"testing"
	"time"

	"campussync/internal/browser"
	"campussync/internal/chrono"
	"campussync/internal/extract"
	"campussync/internal/model"
	"campussync/internal/telemetry"
	"campussync/internal/validate"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	_ "embed"
)

//go:embed testdata/grades.txt
var gradesPage string

//go:embed testdata/attendance.txt
var attendancePage string

//go:embed testdata/schedule.txt
var schedulePage string

//go:embed testdata/calendar.txt
var calendarPage string

//go:embed testdata/subjects.txt
var subjectsPage string

const base = "https://portal.example.edu/aluno/"

const octoberPage = "outubro de 2025\n11\n12\nFeriado - Nossa Senhora Aparecida\n13"

func newTestScraper(t testing.TB, fake *browser.Fake) (Scraper, extract.Extractor, *telemetry.Recorder) {
	t.Helper()
	tel := telemetry.NewRecorder()
	now := time.Date(2025, time.September, 10, 12, 0, 0, 0, chrono.Campus())
	extractor := extract.NewExtractor(extract.DefaultHeuristics(), chrono.FixedTime{T: now}, tel)
	validator := validate.NewValidator(validate.DefaultOptions(), tel)

	opts := DefaultOptions()
	opts.LoginBackoff = 0
	opts.PageSettle = 0

	return NewScraper(base, fake, extractor, validator, opts, tel), extractor, tel
}

func portalPages() map[string]*browser.FakePage {
	scheduleClicks := map[string]string{
		"mat-select":                "",
		optionSelector + "|Todos":   "schedule-all",
		optionSelector + "|Segunda": "schedule-monday",
		optionSelector + "|Sexta":   "schedule-friday",
	}

	return map[string]*browser.FakePage{
		base + routeLogin: {
			Selectors: []string{usernameSelector, passwordSelector},
			Clicks:    map[string]string{submitSelector: ""},
		},
		base + routeGrades:     {Text: gradesPage},
		base + routeAttendance: {Text: attendancePage},
		base + routeSubjects:   {Text: subjectsPage},

		base + routeSchedule: {Text: "Horário de aulas", Clicks: scheduleClicks},
		"schedule-all":       {Text: schedulePage, Clicks: scheduleClicks},
		"schedule-monday":    {Text: "Segunda-feira\nALGORITMOS E PROGRAMAÇÃO\n19:00 - 20:40", Clicks: scheduleClicks},
		"schedule-friday":    {Text: "ALGORITMOS E PROGRAMAÇÃO\n19:00 - 20:40", Clicks: scheduleClicks},

		base + routeCalendar: {
			Text:   calendarPage,
			Clicks: map[string]string{".mat-calendar-next-button": "agenda-2"},
		},
		"agenda-2": {
			Text: octoberPage,
			Eval: map[string]browser.FakeEval{
				nextMonthScanScript: {Next: "agenda-3", Result: true},
			},
		},
		// the portal sometimes fails to move and shows the same month again
		"agenda-3": {Text: octoberPage},
	}
}

func TestScrape(t *testing.T) {
	fake := browser.NewFake(portalPages())
	scraper, extractor, tel := newTestScraper(t, fake)

	result, err := scraper.Scrape(context.Background(), "2025001", "123456789")
	require.NoError(t, err)

	require.Equal(t, "2025001", fake.Filled[usernameSelector])
	require.Equal(t, "123456789", fake.Filled[passwordSelector])
	require.Equal(t, 1, fake.Launches)
	require.Equal(t, 1, fake.Closed)

	if diff := cmp.Diff(extractor.Grades(gradesPage), result.Grades); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff(extractor.Attendance(attendancePage), result.Attendance); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff(extractor.Subjects(subjectsPage), result.Subjects); diff != "" {
		t.Fatal(diff)
	}
	require.NotEmpty(t, result.Grades)
	require.NotEmpty(t, result.Attendance)

	// the weekly view only has 3 entries so every day is read on its own,
	// monday adds nothing new
	require.Len(t, result.Schedule, 4)
	require.Equal(t, 5, result.Schedule[3].Weekday)
	require.Equal(t, "ALGORITMOS E PROGRAMAÇÃO", result.Schedule[3].SubjectName)
	require.Len(t, tel.Find("warning", report_schedule), 1)

	var holidays []string
	exams := 0
	for _, ev := range result.Calendar {
		switch ev.Category {
		case model.EventHoliday:
			holidays = append(holidays, ev.Date)
		case model.EventExam:
			exams++
		}
		require.NotEmpty(t, ev.Color)
	}
	require.Equal(t, []string{"2025-09-07", "2025-10-12"}, holidays)
	require.Equal(t, 1, exams)
	// agenda-3 has no month controls
	require.Len(t, tel.Find("warning", report_calendar), 1)
	require.Empty(t, tel.Find("warning", report_page))
}

func TestScrapeSkipsTimedOutPage(t *testing.T) {
	pages := portalPages()
	pages[base+routeAttendance].NavigateErr = fmt.Errorf("%w: attendance", model.ErrNavigationTimeout)
	fake := browser.NewFake(pages)
	scraper, _, tel := newTestScraper(t, fake)

	result, err := scraper.Scrape(context.Background(), "2025001", "123456789")
	require.NoError(t, err)
	require.Empty(t, result.Attendance)
	require.NotEmpty(t, result.Grades)
	require.NotEmpty(t, result.Subjects)
	require.NotEmpty(t, result.Calendar)
	require.Len(t, tel.Find("warning", report_page), 1)
}

func TestScrapeDriverFatal(t *testing.T) {
	pages := portalPages()
	pages[base+routeSubjects].NavigateErr = fmt.Errorf("%w: chrome crashed", model.ErrDriverFatal)
	fake := browser.NewFake(pages)
	scraper, _, _ := newTestScraper(t, fake)

	_, err := scraper.Scrape(context.Background(), "2025001", "123456789")
	require.ErrorIs(t, err, model.ErrDriverFatal)
	require.Equal(t, 1, fake.Closed)
	require.NotContains(t, fake.Navigations, base+routeCalendar)
}

func TestLoginFailure(t *testing.T) {
	pages := portalPages()
	// the application keeps rendering the login form
	pages[base+routeGrades].Selectors = []string{passwordSelector}
	fake := browser.NewFake(pages)
	scraper, _, tel := newTestScraper(t, fake)

	_, err := scraper.Scrape(context.Background(), "2025001", "wrong")
	require.ErrorIs(t, err, model.ErrAuthFailure)
	require.Equal(t, []string{
		base + routeLogin, base + routeGrades,
		base + routeLogin, base + routeGrades,
		base + routeLogin, base + routeGrades,
	}, fake.Navigations)
	require.Len(t, tel.Find("warning", report_login), 4)
	require.Equal(t, 1, fake.Closed)
}

func TestLoginByButtonText(t *testing.T) {
	pages := portalPages()
	pages[base+routeLogin].Clicks = map[string]string{"button|Entrar": ""}
	fake := browser.NewFake(pages)
	scraper, _, _ := newTestScraper(t, fake)

	session, err := fake.Launch(context.Background())
	require.NoError(t, err)
	err = scraper.Login(context.Background(), session, "2025001", "123456789")
	require.NoError(t, err)
	require.Equal(t, []string{"button|Entrar"}, fake.Clicked)
}

func TestScrapeCancelled(t *testing.T) {
	fake := browser.NewFake(portalPages())
	scraper, _, _ := newTestScraper(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := scraper.Scrape(ctx, "2025001", "123456789")
	require.ErrorIs(t, err, model.ErrCancelled)
	require.NotErrorIs(t, err, model.ErrAuthFailure)
	require.Equal(t, 1, fake.Closed)
}

func TestCalendarRewind(t *testing.T) {
	fake := browser.NewFake(map[string]*browser.FakePage{
		base + routeCalendar: {
			Text:   octoberPage,
			Clicks: map[string]string{".mat-calendar-previous-button": "september"},
		},
		"september": {
			Text:   calendarPage,
			Clicks: map[string]string{".mat-calendar-next-button": "october"},
		},
		"october": {Text: octoberPage},
	})
	scraper, _, tel := newTestScraper(t, fake)
	scraper.opts.CalendarRewind = 1
	scraper.opts.CalendarMonths = 2

	events, err := scraper.calendar(context.Background(), fake, nil)
	require.NoError(t, err)

	var holidays []string
	for _, ev := range events {
		if ev.Category == model.EventHoliday {
			holidays = append(holidays, ev.Date)
		}
	}
	require.Equal(t, []string{"2025-09-07", "2025-10-12"}, holidays)
	require.Empty(t, tel.Find("warning", report_calendar))
	require.Equal(t, "october", fake.Current())
}
