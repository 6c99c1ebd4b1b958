package extract

import (
	"regexp"
	"strconv"
	"strings"

	"campussync/internal/model"
	"campussync/lib/textutil"
)

// TotalRow is the subject name the attendance page uses for its summary row.
const TotalRow = "TOTAL"

var (
	fallbackAbsencesRegex = regexp.MustCompile(`(?i)Faltas\s*\n?\s*(\d+)`)
	fallbackPctRegex      = regexp.MustCompile(`(?i)Frequ[êe]ncia[^\d\n]*\n?\s*(\d+(?:[.,]\d+)?)`)
	pctValueRegex         = regexp.MustCompile(`^(\d{1,3}(?:[.,]\d+)?)\s*%?$`)
)

func isPctLabel(line string) bool {
	return strings.Contains(strings.ToUpper(line), "FREQUÊNCIA")
}

// pctFrom reads a percentage from a "Frequência" label line, or from the
// line right after it.
func pctFrom(lines []string, at int) (float64, bool) {
	if m := anyNumberRegex.FindStringSubmatch(lines[at]); m != nil {
		return parseDecimal(m[1])
	}
	if at+1 < len(lines) {
		if m := pctValueRegex.FindStringSubmatch(lines[at+1]); m != nil {
			return parseDecimal(m[1])
		}
	}
	return 0, false
}

// Attendance parses the attendance page. The summary row is returned under
// the TotalRow name so it can be cross-checked, TotalClasses is left unset.
func (e Extractor) Attendance(text string) []model.AttendanceRecord {
	lines := textutil.Lines(text)

	var order []string
	records := map[string]model.AttendanceRecord{}
	put := func(rec model.AttendanceRecord, keepFewer bool) {
		key := textutil.SubjectKey(rec.SubjectName)
		prev, exists := records[key]
		if !exists {
			order = append(order, key)
			records[key] = rec
			return
		}
		if keepFewer && rec.Absences <= prev.Absences {
			records[key] = rec
		}
	}

	current := ""
	for i, line := range lines {
		upper := strings.ToUpper(line)
		if e.isAttendanceSubject(line) || upper == TotalRow {
			current = textutil.CleanText(line)
			continue
		}
		if upper != "FALTAS" || current == "" {
			continue
		}

		absences := 0
		pct := 100.0
		for j := 1; j <= e.h.AbsenceLookahead && i+j < len(lines); j++ {
			next := lines[i+j]
			if standaloneIntRegex.MatchString(next) {
				absences, _ = strconv.Atoi(next)
				break
			}
			if strings.HasPrefix(strings.ToUpper(next), "FREQUÊNCIA") {
				if v, ok := pctFrom(lines, i+j); ok {
					pct = v
				}
				break
			}
		}
		for j := 1; j <= e.h.PctLookahead && i+j < len(lines); j++ {
			if !isPctLabel(lines[i+j]) {
				continue
			}
			if v, ok := pctFrom(lines, i+j); ok {
				pct = v
			}
			break
		}

		put(model.AttendanceRecord{
			SubjectName:   current,
			Absences:      absences,
			AttendancePct: pct,
		}, true)
	}

	if len(records) == 0 {
		e.tel.ReportWarning(report_extract_attendance, "primary parse found nothing, using block fallback")
		for i, line := range lines {
			if !e.isAttendanceSubject(line) {
				continue
			}
			end := i + e.h.AttendanceBlockLines
			if end > len(lines) {
				end = len(lines)
			}
			block := strings.Join(lines[i:end], "\n")

			rec := model.AttendanceRecord{
				SubjectName:   textutil.CleanText(line),
				AttendancePct: 100,
			}
			if m := fallbackAbsencesRegex.FindStringSubmatch(block); m != nil {
				v, _ := strconv.Atoi(m[1])
				if v <= e.h.FallbackMaxAbsences {
					rec.Absences = v
				}
			}
			if m := fallbackPctRegex.FindStringSubmatch(block); m != nil {
				if v, ok := parseDecimal(m[1]); ok {
					rec.AttendancePct = v
				}
			}
			put(rec, false)
		}
	}

	out := make([]model.AttendanceRecord, 0, len(order))
	for _, key := range order {
		out = append(out, records[key])
	}
	e.tel.ReportCount(report_extract_attendance, int64(len(out)))
	return out
}
