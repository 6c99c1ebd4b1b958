// Package extract reconstructs structured academic records from the rendered
// text of the student-records portal.
//
// Every page is read as one block of text, split into trimmed non-empty lines
// and scanned top to bottom. Structure is recovered from position alone: a
// subject header line opens a context, marker lines ("Faltas",
// "1ª Verificação", "Segunda-feira", ...) trigger bounded look-ahead and
// look-back windows for the value that belongs to them.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"campussync/internal/assert"
	"campussync/internal/chrono"
	"campussync/internal/telemetry"
)

const (
	report_extract_grades     = "extract.grades"
	report_extract_attendance = "extract.attendance"
	report_extract_schedule   = "extract.schedule"
	report_extract_calendar   = "extract.calendar"
	report_extract_subjects   = "extract.subjects"
)

type Extractor struct {
	h    Heuristics
	time chrono.TimeAPI
	tel  telemetry.API
}

func NewExtractor(h Heuristics, time chrono.TimeAPI, tel telemetry.API) Extractor {
	assert.NotNil(time)
	assert.NotNil(tel)
	assert.Positive("min subject length", h.MinSubjectLen)

	return Extractor{
		h:    h,
		time: time,
		tel:  telemetry.NewScopedAPI("extract", tel),
	}
}

func (e Extractor) Heuristics() Heuristics {
	return e.h
}

var codeLineRegex = regexp.MustCompile(`^\d{4}\s*-`)

// containsTerm reports whether term appears in upper delimited by non-letters
// on both sides, so that "TODOS" does not match "MÉTODOS".
func containsTerm(upper, term string) bool {
	offset := 0
	for {
		idx := strings.Index(upper[offset:], term)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(term)

		before, _ := utf8.DecodeLastRuneInString(upper[:start])
		after, _ := utf8.DecodeRuneInString(upper[end:])
		leftOk := start == 0 || !unicode.IsLetter(before)
		rightOk := end == len(upper) || !unicode.IsLetter(after)
		if leftOk && rightOk {
			return true
		}
		offset = start + 1
	}
}

func containsAny(upper string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(upper, f) {
			return true
		}
	}
	return false
}

func (e Extractor) hasKeyword(upper string) bool {
	return containsAny(upper, e.h.SubjectKeywords)
}

func (e Extractor) denied(upper string) bool {
	for _, term := range e.h.DenyTerms {
		if containsTerm(upper, term) {
			return true
		}
	}
	return false
}

func (e Extractor) headerShape(line string) bool {
	if utf8.RuneCountInString(line) <= e.h.MinSubjectLen {
		return false
	}
	first, _ := utf8.DecodeRuneInString(line)
	if !unicode.IsUpper(first) {
		return false
	}
	return !codeLineRegex.MatchString(line)
}

// IsSubjectHeader reports whether a line names a subject.
func (e Extractor) IsSubjectHeader(line string) bool {
	if !e.headerShape(line) {
		return false
	}
	upper := strings.ToUpper(line)
	return e.hasKeyword(upper) && !e.denied(upper)
}

func (e Extractor) isAttendanceSubject(line string) bool {
	if !e.headerShape(line) {
		return false
	}
	upper := strings.ToUpper(line)
	if e.denied(upper) {
		return false
	}
	return e.hasKeyword(upper) || containsAny(upper, e.h.AttendanceKeywords)
}

var (
	standaloneNumberRegex = regexp.MustCompile(`^(\d{1,3}(?:[.,]\d+)?)$`)
	standaloneIntRegex    = regexp.MustCompile(`^\d+$`)
	anyNumberRegex        = regexp.MustCompile(`(\d+(?:[.,]\d+)?)`)
)

func parseDecimal(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
