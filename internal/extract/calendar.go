package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"campussync/internal/chrono"
	"campussync/internal/model"
	"campussync/lib/textutil"
)

var monthNames = map[string]time.Month{
	"janeiro":   time.January,
	"fevereiro": time.February,
	"março":     time.March,
	"abril":     time.April,
	"maio":      time.May,
	"junho":     time.June,
	"julho":     time.July,
	"agosto":    time.August,
	"setembro":  time.September,
	"outubro":   time.October,
	"novembro":  time.November,
	"dezembro":  time.December,
}

var (
	monthHeaderRegex = regexp.MustCompile(`(janeiro|fevereiro|março|abril|maio|junho|julho|agosto|setembro|outubro|novembro|dezembro)\s+(?:de\s*)?(\d{4})`)
	dayMonthRegex    = regexp.MustCompile(`(\d{1,2})/(\d{1,2})`)
	examRegex        = regexp.MustCompile(`(?i)\bprovas?\b|verificação de aprendizagem`)
	deadlineRegex    = regexp.MustCompile(`(?i)\bprazo\b|\bentrega\b`)
	institutionRegex = regexp.MustCompile(`(?i)\brecesso\b|\bcolação\b|início das aulas|término das aulas|semana acadêmica`)
)

// Month is the month a calendar page is showing.
type Month struct {
	Year  int
	Month time.Month
	// Estimated is set when the page had no "<mês> de <ano>" header and the
	// month was derived from the clock and the page index.
	Estimated bool
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// MonthOf finds the month a calendar page is showing. monthIndex is the
// number of "next month" steps taken since the crawl started.
func (e Extractor) MonthOf(text string, monthIndex int) Month {
	if m := monthHeaderRegex.FindStringSubmatch(strings.ToLower(text)); m != nil {
		year, err := strconv.Atoi(m[2])
		if err == nil {
			return Month{Year: year, Month: monthNames[m[1]]}
		}
	}
	now := e.time.Now()
	first := time.Date(now.Year(), now.Month()+time.Month(monthIndex), 1, 0, 0, 0, 0, chrono.Campus())
	return Month{Year: first.Year(), Month: first.Month(), Estimated: true}
}

func dateOf(year int, month time.Month, day int) (time.Time, bool) {
	t := time.Date(year, month, day, 0, 0, 0, 0, chrono.Campus())
	return t, t.Month() == month && t.Day() == day
}

func isoDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func dayNumber(line string) (int, bool) {
	if len(line) > 2 || !standaloneIntRegex.MatchString(line) {
		return 0, false
	}
	day, _ := strconv.Atoi(line)
	return day, day >= 1 && day <= 31
}

type monthPage struct {
	month Month
	lines []string
	days  map[int]time.Time
}

// nearest visits line indexes in order of distance from i, up to window.
func (p monthPage) nearest(i, window int, visit func(k int) bool) {
	for d := 0; d <= window; d++ {
		for _, k := range []int{i - d, i + d} {
			if k < 0 || k >= len(p.lines) || (d == 0 && k != i) {
				continue
			}
			if visit(k) {
				return
			}
			if d == 0 {
				break
			}
		}
	}
}

func (p monthPage) fullDateAt(k int) (time.Time, bool) {
	m := fullDateRegex.FindStringSubmatch(p.lines[k])
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	return dateOf(year, time.Month(month), day)
}

func (p monthPage) dayMonthAt(k int) (time.Time, bool) {
	m := dayMonthRegex.FindStringSubmatch(p.lines[k])
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	return dateOf(p.month.Year, time.Month(month), day)
}

func (p monthPage) dayNumberNear(i, window int) (time.Time, bool) {
	var out time.Time
	found := false
	p.nearest(i, window, func(k int) bool {
		day, ok := dayNumber(p.lines[k])
		if !ok {
			return false
		}
		out, found = p.days[day]
		return found
	})
	return out, found
}

// resolveDate binds an event line to a date: the nearest grid day number,
// else a full date nearby, else a day/month nearby, else the last date
// written out anywhere above it.
func (e Extractor) resolveDate(p monthPage, i int, lastTextual *time.Time) (time.Time, bool) {
	if t, ok := p.dayNumberNear(i, e.h.HolidayDayWindow); ok {
		return t, true
	}

	var out time.Time
	found := false
	p.nearest(i, e.h.HolidayDateWindow, func(k int) bool {
		out, found = p.fullDateAt(k)
		return found
	})
	if found {
		return out, true
	}
	p.nearest(i, e.h.HolidayDateWindow, func(k int) bool {
		out, found = p.dayMonthAt(k)
		return found
	})
	if found {
		return out, true
	}
	if lastTextual != nil {
		return *lastTextual, true
	}
	return time.Time{}, false
}

func (p monthPage) contains(t time.Time) bool {
	return t.Year() == p.month.Year && t.Month() == p.month.Month
}

func classTitle(start, end string) string {
	return fmt.Sprintf("Aula %s-%s", start, end)
}

// Calendar parses one month of the calendar page. Holidays, classes and
// dated academic events are bound to dates inside the displayed month only.
// When a weekly schedule is given, classes are also generated for every
// non-holiday day of the month it covers.
func (e Extractor) Calendar(text string, monthIndex int, schedule []model.ScheduleEntry) []model.CalendarEvent {
	page := monthPage{
		month: e.MonthOf(text, monthIndex),
		lines: textutil.Lines(text),
		days:  map[int]time.Time{},
	}
	if page.month.Estimated {
		e.tel.ReportWarning(report_extract_calendar, "month header not found, estimating", page.month.String())
	}

	for _, line := range page.lines {
		day, ok := dayNumber(line)
		if !ok {
			continue
		}
		if t, ok := dateOf(page.month.Year, page.month.Month, day); ok {
			page.days[day] = t
		}
	}

	var events []model.CalendarEvent
	seen := map[string]bool{}
	holidays := map[string]bool{}
	add := func(key string, ev model.CalendarEvent) {
		if seen[key] {
			return
		}
		seen[key] = true
		ev.Color = ev.Category.Color()
		events = append(events, ev)
	}

	var lastTextual *time.Time
	for i, line := range page.lines {
		if t, ok := page.fullDateAt(i); ok {
			lastTextual = &t
		} else if t, ok := page.dayMonthAt(i); ok {
			lastTextual = &t
		}

		lower := strings.ToLower(line)

		if strings.Contains(lower, "feriado") {
			date, ok := e.resolveDate(page, i, lastTextual)
			if !ok || !page.contains(date) {
				continue
			}
			iso := isoDate(date)
			holidays[iso] = true
			add("holiday|"+iso, model.CalendarEvent{
				Title:       "Feriado",
				Date:        iso,
				Category:    model.EventHoliday,
				Description: textutil.CleanText(line),
			})
			continue
		}

		if m := timeRangeInlineRegex.FindStringSubmatch(line); m != nil {
			isClass := strings.Contains(lower, "aula")
			if !isClass && i+1 < len(page.lines) {
				isClass = strings.Contains(strings.ToLower(page.lines[i+1]), "aula")
			}
			if !isClass {
				continue
			}

			var date time.Time
			ok := false
			if lastTextual != nil {
				date, ok = *lastTextual, true
			} else {
				date, ok = page.dayNumberNear(i, e.h.ClassDayWindow)
			}
			if !ok || !page.contains(date) {
				continue
			}
			start, end := normalizeClock(m[1]), normalizeClock(m[2])
			iso := isoDate(date)
			add("class|"+iso+"|"+start, model.CalendarEvent{
				Title:       classTitle(start, end),
				Date:        iso,
				Category:    model.EventClass,
				Description: fmt.Sprintf("%s - %s", start, end),
			})
			continue
		}

		var category model.EventCategory
		switch {
		case examRegex.MatchString(line):
			category = model.EventExam
		case deadlineRegex.MatchString(line):
			category = model.EventDeadline
		case institutionRegex.MatchString(line):
			category = model.EventInstitutional
		default:
			continue
		}
		date, ok := e.resolveDate(page, i, lastTextual)
		if !ok || !page.contains(date) {
			continue
		}
		title := textutil.Truncate(textutil.CleanText(line), e.h.EventTitleLen)
		iso := isoDate(date)
		add(string(category)+"|"+iso+"|"+title, model.CalendarEvent{
			Title:       title,
			Date:        iso,
			Category:    category,
			Description: textutil.CleanText(line),
		})
	}

	byWeekday := map[int][]model.ScheduleEntry{}
	for _, s := range schedule {
		if s.StartTime == "" || s.EndTime == "" {
			continue
		}
		byWeekday[s.Weekday] = append(byWeekday[s.Weekday], s)
	}
	if len(byWeekday) > 0 {
		for day := 1; day <= 31; day++ {
			date, ok := dateOf(page.month.Year, page.month.Month, day)
			if !ok {
				break
			}
			iso := isoDate(date)
			if holidays[iso] {
				continue
			}
			for _, s := range byWeekday[int(date.Weekday())] {
				add("class|"+iso+"|"+s.StartTime, model.CalendarEvent{
					Title:       classTitle(s.StartTime, s.EndTime),
					Date:        iso,
					Category:    model.EventClass,
					Description: fmt.Sprintf("%s - %s %s", s.StartTime, s.EndTime, s.SubjectName),
				})
			}
		}
	}

	e.tel.ReportCount(report_extract_calendar, int64(len(events)))
	return events
}
