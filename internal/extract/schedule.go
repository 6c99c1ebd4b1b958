package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"campussync/internal/model"
	"campussync/lib/textutil"
)

type weekdayName struct {
	key string
	num int
}

var weekdayNames = []weekdayName{
	{"segunda", 1},
	{"terça", 2},
	{"terca", 2},
	{"quarta", 3},
	{"quinta", 4},
	{"sexta", 5},
	{"sábado", 6},
	{"sabado", 6},
}

var (
	timeRangeRegex       = regexp.MustCompile(`^(\d{1,2}:\d{2})\s*[-–]\s*(\d{1,2}:\d{2})$`)
	timeRangeInlineRegex = regexp.MustCompile(`(\d{1,2}:\d{2})\s*[-–]\s*(\d{1,2}:\d{2})`)
	instructorRegex      = regexp.MustCompile(`(?i)^(?:prof(?:essora|essor)?\.?|docente)(?:\s*:\s*|\s+)(.+)$`)
)

// WeekdayOf returns the weekday number (1..6) a day label refers to, or 0.
// A label must either contain "feira" or end with the day name.
func WeekdayOf(line string) int {
	lower := strings.ToLower(line)
	for _, d := range weekdayNames {
		if !strings.Contains(lower, d.key) {
			continue
		}
		if strings.Contains(lower, "feira") || strings.HasSuffix(lower, d.key) {
			return d.num
		}
	}
	return 0
}

// WeekdayLabel is the Portuguese label of a weekday number, used when
// selecting a day in the portal's dropdown.
func WeekdayLabel(weekday int) string {
	switch weekday {
	case 1:
		return "Segunda"
	case 2:
		return "Terça"
	case 3:
		return "Quarta"
	case 4:
		return "Quinta"
	case 5:
		return "Sexta"
	case 6:
		return "Sábado"
	}
	return ""
}

func isLocation(upper string) bool {
	return strings.Contains(upper, "BLOCO") ||
		(strings.Contains(upper, "PISO") && strings.Contains(upper, "SALA"))
}

// Schedule parses the weekly timetable page where every day's classes are
// listed under a day label.
func (e Extractor) Schedule(text string) []model.ScheduleEntry {
	return e.ScheduleForDay(text, 0)
}

// ScheduleForDay parses a timetable page filtered to a single day, classes
// found before any day label are attributed to weekday. A weekday of 0 means
// classes before the first day label are dropped.
func (e Extractor) ScheduleForDay(text string, weekday int) []model.ScheduleEntry {
	lines := textutil.Lines(text)

	var out []model.ScheduleEntry
	seen := map[string]bool{}

	day := weekday
	for i, line := range lines {
		if d := WeekdayOf(line); d != 0 && !e.IsSubjectHeader(line) {
			day = d
			continue
		}
		if day == 0 || !e.IsSubjectHeader(line) {
			continue
		}

		entry := model.ScheduleEntry{
			Weekday:     day,
			SubjectName: textutil.CleanText(line),
		}
		for j := 1; j <= e.h.ScheduleLookahead && i+j < len(lines); j++ {
			next := lines[i+j]
			upper := strings.ToUpper(next)
			if isLocation(upper) {
				entry.Location = textutil.CleanText(next)
			}
			if m := instructorRegex.FindStringSubmatch(next); m != nil && entry.Instructor == "" {
				entry.Instructor = textutil.CleanText(m[1])
			}
			if m := timeRangeRegex.FindStringSubmatch(next); m != nil {
				entry.StartTime = normalizeClock(m[1])
				entry.EndTime = normalizeClock(m[2])
				break
			}
		}
		if entry.StartTime == "" {
			e.tel.ReportDebug("schedule subject without time range", entry.SubjectName)
			continue
		}

		key := ScheduleKey(entry)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, entry)
	}

	SortSchedule(out)
	e.tel.ReportCount(report_extract_schedule, int64(len(out)))
	return out
}

// ScheduleKey is the identity of a timetable entry.
func ScheduleKey(s model.ScheduleEntry) string {
	return fmt.Sprintf("%d|%s|%s", s.Weekday, s.StartTime, textutil.SubjectKey(s.SubjectName))
}

func SortSchedule(entries []model.ScheduleEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Weekday != entries[j].Weekday {
			return entries[i].Weekday < entries[j].Weekday
		}
		return entries[i].StartTime < entries[j].StartTime
	})
}

// normalizeClock pads "7:30" to "07:30" so times sort lexically.
func normalizeClock(clock string) string {
	if len(clock) == 4 {
		return "0" + clock
	}
	return clock
}
