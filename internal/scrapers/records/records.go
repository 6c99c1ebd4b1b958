// Package records crawls the student-records portal. The portal is a single
// page application, so every page is rendered in the browser and read back as
// its visible text, which is then handed to the heuristic extractor.
package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campussync/internal/assert"
	"campussync/internal/browser"
	"campussync/internal/extract"
	"campussync/internal/model"
	"campussync/internal/telemetry"
	"campussync/internal/validate"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("campussync.internal.scrapers.records")

const (
	report_login    = "login"
	report_page     = "page"
	report_schedule = "page.schedule"
	report_calendar = "page.calendar"
)

const (
	routeLogin      = "#/login"
	routeGrades     = "#/home/boletim/notas"
	routeAttendance = "#/home/frequencia"
	routeSchedule   = "#/home/aulas"
	routeSubjects   = "#/home/disciplinas"
	routeCalendar   = "#/home/agenda"
)

// ScrollCycles is how many scroll-to-bottom cycles each page gets before its
// text is read, lazily rendered lists need more.
type ScrollCycles struct {
	Grades     int `json:"grades"`
	Attendance int `json:"attendance"`
	Schedule   int `json:"schedule"`
	Subjects   int `json:"subjects"`
	Calendar   int `json:"calendar"`
}

type Options struct {
	ScrollCycles ScrollCycles
	// CalendarMonths is how many months are read starting from the first one.
	CalendarMonths int
	// CalendarRewind is how many months to go back before reading the first
	// month, 0 starts at the month the portal shows.
	CalendarRewind int
	// MinScheduleEntries is the number of entries below which the weekly
	// timetable is considered incomplete and read one day at a time.
	MinScheduleEntries int
	LoginAttempts      int
	LoginBackoff       time.Duration
	// PageSettle is how long to wait after a navigation or click for the
	// application to render.
	PageSettle time.Duration
}

func DefaultOptions() Options {
	return Options{
		ScrollCycles: ScrollCycles{
			Grades:     25,
			Attendance: 15,
			Schedule:   2,
			Subjects:   15,
			Calendar:   3,
		},
		CalendarMonths:     12,
		CalendarRewind:     0,
		MinScheduleEntries: 5,
		LoginAttempts:      3,
		LoginBackoff:       5 * time.Second,
		PageSettle:         3 * time.Second,
	}
}

type Scraper struct {
	baseUrl   string
	launcher  browser.Launcher
	extractor extract.Extractor
	validator validate.Validator
	opts      Options
	tel       telemetry.API
}

func NewScraper(
	baseUrl string,
	launcher browser.Launcher,
	extractor extract.Extractor,
	validator validate.Validator,
	opts Options,
	tel telemetry.API,
) Scraper {
	assert.NotEmptyStr(baseUrl)
	assert.NotNil(launcher)
	assert.NotNil(tel)
	assert.Positive("login attempts", opts.LoginAttempts)
	assert.Positive("calendar months", opts.CalendarMonths)

	if !strings.HasSuffix(baseUrl, "/") {
		baseUrl += "/"
	}

	return Scraper{
		baseUrl:   baseUrl,
		launcher:  launcher,
		extractor: extractor,
		validator: validator,
		opts:      opts,
		tel:       telemetry.NewScopedAPI("records_scraper", tel),
	}
}

func (s Scraper) routeUrl(route string) string {
	return s.baseUrl + route
}

// terminal errors end the job, any other error only skips the page it
// happened on.
func terminal(err error) bool {
	return errors.Is(err, model.ErrDriverFatal) || errors.Is(err, model.ErrCancelled)
}

func cancelled(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", model.ErrCancelled, ctx.Err())
	}
	return nil
}

// Scrape logs in and reads every page of the portal in one browser session.
// The result has not been validated yet, except for the calendar months
// which are merged.
func (s Scraper) Scrape(ctx context.Context, loginID, secret string) (model.RecordsResult, error) {
	ctx, span := tracer.Start(ctx, "Scrape")
	defer span.End()

	session, err := s.launcher.Launch(ctx)
	if err != nil {
		return model.RecordsResult{}, err
	}
	defer session.Close()

	err = s.Login(ctx, session, loginID, secret)
	if err != nil {
		return model.RecordsResult{}, err
	}

	var result model.RecordsResult
	pages := []struct {
		name string
		run  func() error
	}{
		{"grades", func() error {
			text, err := s.readPage(ctx, session, routeGrades, s.opts.ScrollCycles.Grades)
			if err == nil {
				result.Grades = s.extractor.Grades(text)
			}
			return err
		}},
		{"attendance", func() error {
			text, err := s.readPage(ctx, session, routeAttendance, s.opts.ScrollCycles.Attendance)
			if err == nil {
				result.Attendance = s.extractor.Attendance(text)
			}
			return err
		}},
		{"schedule", func() error {
			schedule, err := s.schedule(ctx, session)
			if err == nil {
				result.Schedule = schedule
			}
			return err
		}},
		{"subjects", func() error {
			text, err := s.readPage(ctx, session, routeSubjects, s.opts.ScrollCycles.Subjects)
			if err == nil {
				result.Subjects = s.extractor.Subjects(text)
			}
			return err
		}},
		{"calendar", func() error {
			events, err := s.calendar(ctx, session, result.Schedule)
			result.Calendar = events
			return err
		}},
	}

	for _, page := range pages {
		err = cancelled(ctx)
		if err != nil {
			return model.RecordsResult{}, err
		}
		err = page.run()
		if terminal(err) {
			return model.RecordsResult{}, err
		}
		if err != nil {
			s.tel.ReportWarning(report_page, fmt.Errorf("skip %s: %w", page.name, err))
		}
	}

	span.SetAttributes(
		attribute.Int("grades", len(result.Grades)),
		attribute.Int("attendance", len(result.Attendance)),
		attribute.Int("schedule", len(result.Schedule)),
		attribute.Int("calendar", len(result.Calendar)),
		attribute.Int("subjects", len(result.Subjects)),
	)
	if result.Empty() {
		return model.RecordsResult{}, fmt.Errorf("%w: nothing could be read from any page", model.ErrExtractionMismatch)
	}
	return result, nil
}

// readPage navigates to a route, scrolls it and returns its visible text.
func (s Scraper) readPage(ctx context.Context, session browser.Session, route string, cycles int) (string, error) {
	err := session.Navigate(ctx, s.routeUrl(route))
	if err != nil {
		return "", err
	}
	err = s.settle(ctx, session)
	if err != nil {
		return "", err
	}
	err = session.ScrollToBottom(ctx, cycles)
	if err != nil {
		return "", err
	}
	return session.Text(ctx)
}

func (s Scraper) settle(ctx context.Context, session browser.Session) error {
	err := session.Pause(ctx, s.opts.PageSettle)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrCancelled, err)
	}
	return nil
}
