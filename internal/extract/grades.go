package extract

import (
	"regexp"
	"strconv"
	"strings"

	"campussync/internal/model"
	"campussync/lib/textutil"
)

var (
	// DD/MM/YYYY - Nª Verificação de Aprendizagem
	assessmentRegex = regexp.MustCompile(`(?i)(\d{1,2}/\d{1,2}/\d{4})\s*-\s*(\d)\s*[ªºa°]\s*Verifica[çc][ãa]o`)
	// "VA 2" without a date, seen on older renders of the page
	assessmentFallbackRegex = regexp.MustCompile(`(?i)\bVA\s*([123])\b`)
	fullDateRegex           = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
)

type gradeTable struct {
	order   []string
	records map[string]*model.GradeRecord
}

func (t *gradeTable) get(subject string) *model.GradeRecord {
	key := textutil.SubjectKey(subject)
	rec, ok := t.records[key]
	if !ok {
		rec = &model.GradeRecord{SubjectName: textutil.CleanText(subject)}
		t.records[key] = rec
		t.order = append(t.order, key)
	}
	return rec
}

// set keeps the larger value when a slot is reported more than once.
func (t *gradeTable) set(subject string, slot int, value float64) {
	target := t.get(subject).Slot(slot)
	if target == nil {
		return
	}
	if *target == 0 || value > *target {
		*target = value
	}
}

// Grades parses the grades page. Averages and statuses are computed from the
// three slots, values are not clamped here.
func (e Extractor) Grades(text string) []model.GradeRecord {
	lines := textutil.Lines(text)
	table := &gradeTable{records: map[string]*model.GradeRecord{}}

	skip := map[string]bool{}
	for _, label := range e.h.GradeSkipLabels {
		skip[label] = true
	}

	current := ""
	for i, line := range lines {
		if skip[line] {
			continue
		}

		if e.IsSubjectHeader(line) {
			current = textutil.CleanText(line)
			table.get(current)
		}

		m := assessmentRegex.FindStringSubmatch(line)
		if m != nil {
			slot, _ := strconv.Atoi(m[2])
			if found := e.gradeSubjectBefore(lines, i); found != "" {
				current = found
			}
			if current == "" {
				e.tel.ReportWarning(report_extract_grades, "assessment without subject", line)
				continue
			}
			value, ok := e.gradeAfter(lines, i, false)
			if ok {
				table.set(current, slot, value)
			}
			continue
		}

		if current == "" {
			continue
		}
		fm := assessmentFallbackRegex.FindStringSubmatch(line)
		if fm == nil {
			continue
		}
		slot, _ := strconv.Atoi(fm[1])
		value, ok := e.gradeAfter(lines, i, true)
		if ok {
			table.set(current, slot, value)
		}
	}

	out := make([]model.GradeRecord, 0, len(table.order))
	for _, key := range table.order {
		rec := *table.records[key]
		rec.Recompute()
		out = append(out, rec)
	}
	e.tel.ReportCount(report_extract_grades, int64(len(out)))
	return out
}

// gradeSubjectBefore looks back from an assessment marker for the subject it
// belongs to, the portal renders the subject right above each entry.
func (e Extractor) gradeSubjectBefore(lines []string, i int) string {
	for k := i - 1; k >= 0 && k >= i-e.h.GradeLookback; k-- {
		prev := lines[k]
		upper := strings.ToUpper(prev)
		if !e.hasKeyword(upper) {
			continue
		}
		if fullDateRegex.MatchString(prev) || strings.Contains(strings.ToLower(prev), "verificação") {
			continue
		}
		return textutil.CleanText(prev)
	}
	return ""
}

var gradeLabelFragments = []string{"verificação", "gráfico", "aprendizagem"}

// gradeAfter scans forward from a marker for a standalone number. Values on
// a 0..100 scale are rescaled to 0..10.
//
// Dated markers stop at the next line carrying a "/" (the next entry's date),
// fallback markers skip such lines instead.
func (e Extractor) gradeAfter(lines []string, i int, fallback bool) (float64, bool) {
	for j := 1; j <= e.h.GradeLookahead && i+j < len(lines); j++ {
		next := lines[i+j]
		lower := strings.ToLower(next)

		if containsAny(lower, gradeLabelFragments) {
			continue
		}
		if fallback {
			if strings.Contains(lower, "nota") || strings.Contains(next, "/") {
				continue
			}
		} else {
			if lower == "nota" {
				continue
			}
			if strings.Contains(next, "/") {
				break
			}
		}
		if e.hasKeyword(strings.ToUpper(next)) {
			break
		}

		m := standaloneNumberRegex.FindStringSubmatch(next)
		if m == nil {
			continue
		}
		value, ok := parseDecimal(m[1])
		if !ok || value < 0 || value > e.h.MaxRawGrade {
			continue
		}
		if value > 10 {
			// assumes the portal never renders a 0..10 grade above 10
			e.tel.ReportDebug("rescaled grade from a 0..100 scale", next)
			value = model.Round1(value / 10)
		}
		return value, true
	}
	return 0, false
}
