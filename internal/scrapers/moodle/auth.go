package moodle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campussync/internal/browser"
	"campussync/internal/model"
	"campussync/lib/htmlutil"
	"campussync/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
)

const (
	loginPath   = "/login/index.php"
	coursesPath = "/my/courses.php"

	loginSettle = 2 * time.Second
)

var (
	usernameSelectors = []string{"#username", "input[name='username']"}
	passwordSelectors = []string{"#password", "input[name='password']"}
	submitSelectors   = []string{"#loginbtn", "button[type='submit']"}
)

func (s Scraper) pageUrl(path string) string {
	return strings.TrimSuffix(s.baseUrl.String(), "/") + path
}

// Login runs the browser phase of a job: it logs in, lists the courses on the
// dashboard and exports the session cookies. The browser is closed before
// Login returns.
func (s Scraper) Login(ctx context.Context, loginID, secret string) (model.AuthenticatedSession, []Course, error) {
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	session, err := s.launcher.Launch(ctx)
	if err != nil {
		return model.AuthenticatedSession{}, nil, err
	}
	defer session.Close()

	var courses []Course
	attempt := 0
	err = backoff.Retry(
		func() error {
			attempt++
			listed, err := s.login(ctx, session, loginID, secret)
			if errors.Is(err, model.ErrDriverFatal) || errors.Is(err, model.ErrCancelled) {
				return backoff.Permanent(err)
			}
			if err != nil {
				s.tel.ReportWarning(report_login, fmt.Errorf("attempt %d: %w", attempt, err))
				return err
			}
			courses = listed
			return nil
		},
		backoff.WithContext(
			backoff.WithMaxRetries(
				backoff.NewConstantBackOff(s.opts.LoginBackoff),
				uint64(s.opts.LoginAttempts-1),
			),
			ctx,
		),
	)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrDriverFatal), errors.Is(err, model.ErrCancelled):
		return model.AuthenticatedSession{}, nil, err
	case ctx.Err() != nil:
		return model.AuthenticatedSession{}, nil, fmt.Errorf("%w: %w", model.ErrCancelled, ctx.Err())
	default:
		err = fmt.Errorf("%w: lms: %w", model.ErrAuthFailure, err)
		s.tel.ReportWarning(report_login, err)
		return model.AuthenticatedSession{}, nil, err
	}

	cookies, err := session.Cookies(ctx)
	if err != nil {
		s.tel.ReportBroken(report_login, fmt.Errorf("export cookies: %w", err))
		return model.AuthenticatedSession{}, nil, err
	}

	return model.AuthenticatedSession{
		BaseURL: s.baseUrl.String(),
		Cookies: cookies,
	}, courses, nil
}

// login is one attempt, it starts from a fresh load of the login page.
func (s Scraper) login(ctx context.Context, session browser.Session, loginID, secret string) ([]Course, error) {
	err := session.Navigate(ctx, s.pageUrl(loginPath))
	if err != nil {
		return nil, err
	}

	found, err := browser.FillFirst(ctx, session, usernameSelectors, loginID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("could not find the username field")
	}
	found, err = browser.FillFirst(ctx, session, passwordSelectors, secret)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("could not find the password field")
	}
	clicked, err := browser.ClickFirst(ctx, session, submitSelectors)
	if err != nil {
		return nil, err
	}
	if !clicked {
		return nil, fmt.Errorf("could not find the login button")
	}
	err = session.Pause(ctx, loginSettle)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrCancelled, err)
	}

	courses, err := s.listCourses(ctx, session)
	if err != nil {
		return nil, err
	}
	if len(courses) == 0 {
		return nil, fmt.Errorf("no courses listed after login")
	}
	return courses, nil
}

func (s Scraper) listCourses(ctx context.Context, session browser.Session) ([]Course, error) {
	err := session.Navigate(ctx, s.pageUrl(coursesPath))
	if err != nil {
		return nil, err
	}
	html, err := session.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		s.tel.ReportBroken(report_login, fmt.Errorf("parse course list: %w", err))
		return nil, err
	}

	anchors := htmlutil.GetAnchors(ctx, s.baseUrl, doc.Find("a[href*='course/view.php?id=']"))
	return s.coursesFromAnchors(anchors), nil
}

// coursesFromAnchors merges anchors pointing at the same course (cards
// usually link a course from both its image and its title) and drops courses
// on the deny list.
func (s Scraper) coursesFromAnchors(anchors []htmlutil.Anchor) []Course {
	var courses []Course
	index := map[string]int{}
	for _, a := range anchors {
		key := canonicalUrl(a.Url)
		if i, ok := index[key]; ok {
			if courses[i].Name == "" {
				courses[i].Name = a.Name
			}
			continue
		}
		index[key] = len(courses)
		courses = append(courses, Course(a))
	}

	out := make([]Course, 0, len(courses))
	for _, c := range courses {
		if textutil.MatchName(c.Name, s.opts.CourseDenyList) {
			s.tel.ReportDebug("skipped denied course", c.Name)
			continue
		}
		if c.Name == "" {
			id, _ := c.Id()
			c.Name = fmt.Sprintf("Course %d", id)
		}
		out = append(out, c)
	}
	return out
}
