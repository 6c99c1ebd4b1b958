package extract

import (
	"regexp"
	"strings"

	"campussync/internal/model"
	"campussync/lib/textutil"
)

var (
	subjectStatusRegex     = regexp.MustCompile(`(?i)Situa[çc][ãa]o\s*:?\s*([^\n]+)`)
	subjectPeriodRegex     = regexp.MustCompile(`(?i)Per[íi]odo\s*:?\s*([^\n]+)`)
	subjectInstructorRegex = regexp.MustCompile(`(?i)Docente\s*:?\s*([^\n]+)`)
	subjectStartRegex      = regexp.MustCompile(`(?i)Data\s*Inicial\s*:?\s*\n?\s*(\d{2}/\d{2}/\d{4})`)
)

func blockField(re *regexp.Regexp, block string) string {
	m := re.FindStringSubmatch(block)
	if m == nil {
		return ""
	}
	return textutil.CleanText(m[1])
}

// Subjects parses the enrolled-subjects page. Each subject header opens a
// block that runs until the next header, labelled fields are read from it.
func (e Extractor) Subjects(text string) []model.EnrolledSubject {
	lines := textutil.Lines(text)

	var headers []int
	for i, line := range lines {
		if e.IsSubjectHeader(line) {
			headers = append(headers, i)
		}
	}

	var out []model.EnrolledSubject
	seen := map[string]bool{}
	for n, start := range headers {
		end := len(lines)
		if n+1 < len(headers) {
			end = headers[n+1]
		}
		name := textutil.CleanText(lines[start])
		key := textutil.SubjectKey(name)
		if seen[key] {
			continue
		}
		seen[key] = true

		block := strings.Join(lines[start+1:end], "\n")
		subject := model.EnrolledSubject{
			SubjectName: name,
			Status:      blockField(subjectStatusRegex, block),
			Period:      blockField(subjectPeriodRegex, block),
			Instructor:  blockField(subjectInstructorRegex, block),
			StartDate:   blockField(subjectStartRegex, block),
		}
		if subject.Status == "" {
			subject.Status = model.DefaultEnrollmentStatus
		}
		out = append(out, subject)
	}

	e.tel.ReportCount(report_extract_subjects, int64(len(out)))
	return out
}
