package records

import (
	"context"
	"fmt"

	"campussync/internal/browser"
	"campussync/internal/extract"
	"campussync/internal/model"
)

var dropdownSelectors = []string{
	"mat-select",
	"[role='listbox']",
	"select",
	"div[class*='dropdown']",
	"button[class*='dropdown']",
}

const optionSelector = "mat-option, option, [role='option']"

// selectOption opens the first dropdown on the page and picks the option
// containing label.
func (s Scraper) selectOption(ctx context.Context, session browser.Session, label string) (bool, error) {
	opened, err := browser.ClickFirst(ctx, session, dropdownSelectors)
	if err != nil || !opened {
		return false, err
	}
	picked, err := session.ClickText(ctx, optionSelector, label)
	if err != nil || !picked {
		return false, err
	}
	return true, s.settle(ctx, session)
}

func (s Scraper) schedule(ctx context.Context, session browser.Session) ([]model.ScheduleEntry, error) {
	err := session.Navigate(ctx, s.routeUrl(routeSchedule))
	if err != nil {
		return nil, err
	}
	err = s.settle(ctx, session)
	if err != nil {
		return nil, err
	}

	picked, err := s.selectOption(ctx, session, "Todos")
	if terminal(err) {
		return nil, err
	}
	if err != nil || !picked {
		s.tel.ReportDebug("could not select every weekday on the schedule page", err)
	}

	err = session.ScrollToBottom(ctx, s.opts.ScrollCycles.Schedule)
	if err != nil {
		return nil, err
	}
	text, err := session.Text(ctx)
	if err != nil {
		return nil, err
	}
	entries := s.extractor.Schedule(text)
	if len(entries) >= s.opts.MinScheduleEntries {
		return entries, nil
	}

	s.tel.ReportWarning(
		report_schedule,
		fmt.Errorf("weekly view only had %d entries, reading one day at a time", len(entries)),
	)
	seen := map[string]bool{}
	for _, e := range entries {
		seen[extract.ScheduleKey(e)] = true
	}
	for weekday := 1; weekday <= 6; weekday++ {
		err = cancelled(ctx)
		if err != nil {
			return nil, err
		}

		label := extract.WeekdayLabel(weekday)
		picked, err := s.selectOption(ctx, session, label)
		if terminal(err) {
			return nil, err
		}
		if err != nil || !picked {
			s.tel.ReportDebug("could not select weekday", label, err)
			continue
		}
		text, err := session.Text(ctx)
		if terminal(err) {
			return nil, err
		}
		if err != nil {
			s.tel.ReportWarning(report_schedule, fmt.Errorf("read %s: %w", label, err))
			continue
		}
		for _, e := range s.extractor.ScheduleForDay(text, weekday) {
			key := extract.ScheduleKey(e)
			if seen[key] {
				continue
			}
			seen[key] = true
			entries = append(entries, e)
		}
	}
	extract.SortSchedule(entries)
	return entries, nil
}

var (
	nextMonthSelectors = []string{
		"button[aria-label*='next']",
		"button[aria-label*='Next']",
		"button[aria-label*='próximo']",
		"button[aria-label*='Próximo']",
		".mat-calendar-next-button",
		"button[class*='next']",
		"button[class*='forward']",
		"[class*='calendar-next']",
	}
	prevMonthSelectors = []string{
		"button[aria-label*='prev']",
		"button[aria-label*='Previous']",
		"button[aria-label*='anterior']",
		".mat-calendar-previous-button",
		"button[class*='prev']",
		"[class*='calendar-prev']",
	}
)

const nextMonthScanScript = `(() => {
	const forward = /next|pr[oó]ximo|forward|avan[cç]ar/i;
	for (const btn of document.querySelectorAll("button")) {
		const text = (btn.textContent || "").trim();
		const aria = btn.getAttribute("aria-label") || "";
		const cls = typeof btn.className === "string" ? btn.className : "";
		if ((text === ">" || text === "›" || forward.test(text) || forward.test(aria) || forward.test(cls)) && btn.offsetParent !== null) {
			btn.click();
			return true;
		}
	}
	return false;
})()`

const nextMonthPositionScript = `(() => {
	const right = Array.from(document.querySelectorAll("button")).filter((btn) => {
		const rect = btn.getBoundingClientRect();
		return rect.x > window.innerWidth / 2 && btn.offsetParent !== null;
	});
	if (right.length === 0) return false;
	right[0].click();
	return true;
})()`

const prevMonthScanScript = `(() => {
	const backward = /prev|anterior|back|voltar/i;
	for (const btn of document.querySelectorAll("button")) {
		const text = (btn.textContent || "").trim();
		const aria = btn.getAttribute("aria-label") || "";
		const cls = typeof btn.className === "string" ? btn.className : "";
		if ((text === "<" || text === "‹" || backward.test(aria) || backward.test(cls)) && btn.offsetParent !== null) {
			btn.click();
			return true;
		}
	}
	return false;
})()`

// turnMonth clicks the first month control found, trying css selectors
// before the scripted fallbacks.
func (s Scraper) turnMonth(ctx context.Context, session browser.Session, selectors, scripts []string) (bool, error) {
	clicked, err := browser.ClickFirst(ctx, session, selectors)
	if err != nil || clicked {
		return clicked, err
	}
	for _, script := range scripts {
		var ok bool
		err = session.Evaluate(ctx, script, &ok)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// calendar reads up to CalendarMonths months of the agenda, starting
// CalendarRewind months before the month the portal opens on.
func (s Scraper) calendar(ctx context.Context, session browser.Session, schedule []model.ScheduleEntry) ([]model.CalendarEvent, error) {
	err := session.Navigate(ctx, s.routeUrl(routeCalendar))
	if err != nil {
		return nil, err
	}
	err = s.settle(ctx, session)
	if err != nil {
		return nil, err
	}

	rewound := 0
	for rewound < s.opts.CalendarRewind {
		ok, err := s.turnMonth(ctx, session, prevMonthSelectors, []string{prevMonthScanScript})
		if terminal(err) {
			return nil, err
		}
		if err != nil || !ok {
			s.tel.ReportWarning(report_calendar, fmt.Errorf("rewound only %d months: %v", rewound, err))
			break
		}
		rewound++
		err = s.settle(ctx, session)
		if err != nil {
			return nil, err
		}
	}

	var months [][]model.CalendarEvent
	for i := 0; i < s.opts.CalendarMonths; i++ {
		err = cancelled(ctx)
		if err != nil {
			return nil, err
		}

		err = session.ScrollToBottom(ctx, s.opts.ScrollCycles.Calendar)
		if terminal(err) {
			return nil, err
		}
		text, err := session.Text(ctx)
		if terminal(err) {
			return nil, err
		}
		if err != nil {
			s.tel.ReportWarning(report_calendar, fmt.Errorf("read month %d: %w", i, err))
		} else {
			months = append(months, s.extractor.Calendar(text, i-rewound, schedule))
		}

		if i == s.opts.CalendarMonths-1 {
			break
		}
		ok, err := s.turnMonth(ctx, session, nextMonthSelectors, []string{nextMonthScanScript, nextMonthPositionScript})
		if terminal(err) {
			return nil, err
		}
		if err != nil || !ok {
			s.tel.ReportWarning(report_calendar, fmt.Errorf("could not advance past month %d: %v", i, err))
			break
		}
		err = s.settle(ctx, session)
		if err != nil {
			return nil, err
		}
	}

	return s.validator.MergeCalendar(months...), nil
}
