// Package validate normalizes extracted records before they are persisted.
// Every function is idempotent: validating validated records changes nothing.
package validate

import (
	"fmt"
	"time"

	"campussync/internal/assert"
	"campussync/internal/extract"
	"campussync/internal/model"
	"campussync/internal/telemetry"
	"campussync/lib/textutil"
)

const (
	report_validate_grades     = "validate.grades"
	report_validate_attendance = "validate.attendance"
	report_validate_schedule   = "validate.schedule"
	report_validate_calendar   = "validate.calendar"
	report_validate_fill       = "validate.fill-attendance"
)

type Options struct {
	// StrictTotals turns a mismatch between the attendance summary row and the
	// sum of per-subject absences into an error.
	StrictTotals bool `json:"strict_totals"`
	// SubjectSimilarity is the Jaro-Winkler score above which two subject names
	// are considered the same subject.
	SubjectSimilarity float64 `json:"subject_similarity"`
	// Absence counts above this limit paired with a high attendance percentage
	// are treated as mis-parsed.
	AbsenceSanityLimit int `json:"absence_sanity_limit"`
}

func DefaultOptions() Options {
	return Options{
		SubjectSimilarity:  0.93,
		AbsenceSanityLimit: 60,
	}
}

type Validator struct {
	opts Options
	tel  telemetry.API
}

func NewValidator(opts Options, tel telemetry.API) Validator {
	assert.NotNil(tel)
	assert.Positive("subject similarity", opts.SubjectSimilarity)
	assert.Positive("absence sanity limit", opts.AbsenceSanityLimit)

	return Validator{
		opts: opts,
		tel:  telemetry.NewScopedAPI("validate", tel),
	}
}

func clamp(v, min, max float64) (float64, bool) {
	if v < min {
		return min, true
	}
	if v > max {
		return max, true
	}
	return v, false
}

// Grades clamps every assessment grade into [0, 10] and recomputes the
// average and status.
func (v Validator) Grades(grades []model.GradeRecord) []model.GradeRecord {
	out := make([]model.GradeRecord, 0, len(grades))
	for _, g := range grades {
		for slot := 1; slot <= 3; slot++ {
			target := g.Slot(slot)
			value, clamped := clamp(*target, 0, 10)
			if clamped {
				v.tel.ReportWarning(
					report_validate_grades,
					fmt.Errorf("%w: VA%d of '%s' was %v", model.ErrExtractionMismatch, slot, g.SubjectName, *target),
				)
			}
			*target = value
		}
		g.Recompute()
		out = append(out, g)
	}
	return out
}

// Attendance clamps absences and percentages, fills in the default class
// count and removes the summary row after checking it against the rows it
// summarizes.
func (v Validator) Attendance(attendance []model.AttendanceRecord) ([]model.AttendanceRecord, error) {
	var total *model.AttendanceRecord
	out := make([]model.AttendanceRecord, 0, len(attendance))
	for _, a := range attendance {
		if textutil.SubjectKey(a.SubjectName) == extract.TotalRow {
			a := a
			total = &a
			continue
		}

		if a.Absences < 0 {
			a.Absences = 0
		}
		a.AttendancePct, _ = clamp(a.AttendancePct, 0, 100)
		if a.TotalClasses <= 0 {
			a.TotalClasses = model.DefaultTotalClasses
		}
		if a.Absences > v.opts.AbsenceSanityLimit && a.AttendancePct >= 90 {
			v.tel.ReportWarning(
				report_validate_attendance,
				"absences inconsistent with percentage, resetting",
				a.SubjectName, a.Absences, a.AttendancePct,
			)
			a.Absences = 0
		}
		out = append(out, a)
	}

	if total == nil {
		return out, nil
	}
	sum := 0
	for _, a := range out {
		sum += a.Absences
	}
	if sum == total.Absences {
		return out, nil
	}
	err := fmt.Errorf(
		"%w: summary row has %d absences, subjects add up to %d",
		model.ErrExtractionMismatch, total.Absences, sum,
	)
	v.tel.ReportWarning(report_validate_attendance, err)
	if v.opts.StrictTotals {
		return nil, err
	}
	return out, nil
}

// Schedule drops entries outside monday..saturday, removes duplicates and
// sorts by weekday and start time.
func (v Validator) Schedule(schedule []model.ScheduleEntry) []model.ScheduleEntry {
	seen := map[string]bool{}
	out := make([]model.ScheduleEntry, 0, len(schedule))
	for _, s := range schedule {
		if s.Weekday < 1 || s.Weekday > 6 {
			v.tel.ReportWarning(report_validate_schedule, "weekday out of range", s.Weekday, s.SubjectName)
			continue
		}
		key := extract.ScheduleKey(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	extract.SortSchedule(out)
	return out
}

// MergeCalendar joins the events of every calendar month, keeping the first
// event for each (title, date) pair. Events with malformed dates are dropped
// and colors are filled in from the category.
func (v Validator) MergeCalendar(months ...[]model.CalendarEvent) []model.CalendarEvent {
	seen := map[string]bool{}
	var out []model.CalendarEvent
	for _, events := range months {
		for _, ev := range events {
			if _, err := time.Parse(time.DateOnly, ev.Date); err != nil {
				v.tel.ReportWarning(report_validate_calendar, "invalid date", ev.Title, ev.Date)
				continue
			}
			key := ev.Title + "|" + ev.Date
			if seen[key] {
				continue
			}
			seen[key] = true
			if ev.Color == "" {
				ev.Color = ev.Category.Color()
			}
			out = append(out, ev)
		}
	}
	return out
}

// FillMissingAttendance adds a perfect-attendance record for every enrolled
// subject the attendance page did not list.
func (v Validator) FillMissingAttendance(subjects []model.EnrolledSubject, attendance []model.AttendanceRecord) []model.AttendanceRecord {
	out := append([]model.AttendanceRecord(nil), attendance...)
	for _, s := range subjects {
		found := false
		for _, a := range out {
			if textutil.SameSubject(s.SubjectName, a.SubjectName, v.opts.SubjectSimilarity) {
				found = true
				break
			}
		}
		if found {
			continue
		}
		v.tel.ReportDebug("enrolled subject missing from attendance", s.SubjectName)
		out = append(out, model.AttendanceRecord{
			SubjectName:   s.SubjectName,
			Absences:      0,
			TotalClasses:  model.DefaultTotalClasses,
			AttendancePct: 100,
		})
	}
	v.tel.ReportCount(report_validate_fill, int64(len(out)-len(attendance)))
	return out
}

// Records validates a full records result, calendar events are assumed to
// have been merged already.
func (v Validator) Records(result model.RecordsResult) (model.RecordsResult, error) {
	attendance, err := v.Attendance(result.Attendance)
	if err != nil {
		return model.RecordsResult{}, err
	}
	return model.RecordsResult{
		Grades:     v.Grades(result.Grades),
		Attendance: v.FillMissingAttendance(result.Subjects, attendance),
		Schedule:   v.Schedule(result.Schedule),
		Calendar:   v.MergeCalendar(result.Calendar),
		Subjects:   result.Subjects,
	}, nil
}
