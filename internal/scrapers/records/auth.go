package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"campussync/internal/browser"
	"campussync/internal/model"

	"github.com/cenkalti/backoff/v4"
)

const (
	usernameSelector = "input[type='text'], input[formcontrolname='usuario'], input[placeholder*='Aluno']"
	passwordSelector = "input[type='password']"
	submitSelector   = "button[type='submit'], button.btn-login, button[color='primary']"
)

// Login logs session into the portal, retrying with a fresh load of the login
// page. Running out of attempts is an ErrAuthFailure.
func (s Scraper) Login(ctx context.Context, session browser.Session, loginID, secret string) error {
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	attempt := 0
	err := backoff.Retry(
		func() error {
			attempt++
			err := s.login(ctx, session, loginID, secret)
			if terminal(err) {
				return backoff.Permanent(err)
			}
			if err != nil {
				s.tel.ReportWarning(report_login, fmt.Errorf("attempt %d: %w", attempt, err))
			}
			return err
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
		return nil
	case terminal(err):
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", model.ErrCancelled, ctx.Err())
	}
	err = fmt.Errorf("%w: records: %w", model.ErrAuthFailure, err)
	s.tel.ReportWarning(report_login, err)
	return err
}

func (s Scraper) login(ctx context.Context, session browser.Session, loginID, secret string) error {
	err := session.Navigate(ctx, s.routeUrl(routeLogin))
	if err != nil {
		return err
	}
	err = s.settle(ctx, session)
	if err != nil {
		return err
	}

	found, err := browser.FillFirst(ctx, session, []string{usernameSelector}, loginID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("could not find the username field")
	}
	found, err = browser.FillFirst(ctx, session, []string{passwordSelector}, secret)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("could not find the password field")
	}

	clicked, err := session.Click(ctx, submitSelector)
	if err != nil {
		return err
	}
	if !clicked {
		clicked, err = session.ClickText(ctx, "button", "Entrar")
		if err != nil {
			return err
		}
	}
	if !clicked {
		return fmt.Errorf("could not find the login button")
	}
	err = s.settle(ctx, session)
	if err != nil {
		return err
	}

	return s.verifyLogin(ctx, session)
}

// verifyLogin checks that a protected page renders content instead of the
// login form, the url alone is not trusted because the application can
// render the form under any route.
func (s Scraper) verifyLogin(ctx context.Context, session browser.Session) error {
	err := session.Navigate(ctx, s.routeUrl(routeGrades))
	if err != nil {
		return err
	}
	err = s.settle(ctx, session)
	if err != nil {
		return err
	}

	formShown, err := session.Exists(ctx, passwordSelector)
	if err != nil {
		return err
	}
	if formShown {
		return errors.New("login form is still shown")
	}
	text, err := session.Text(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("protected page rendered nothing")
	}
	return nil
}
