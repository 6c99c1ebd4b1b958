// Package model contains the academic records produced by a sync job.
package model

import (
	"fmt"
	"math"
	"net/http"
	"time"
)

type Portal string

const (
	PortalLMS     Portal = "lms"
	PortalRecords Portal = "records"
)

func ParsePortal(s string) (Portal, error) {
	switch Portal(s) {
	case PortalLMS, PortalRecords:
		return Portal(s), nil
	}
	return "", fmt.Errorf("unknown portal '%s'", s)
}

type JobState string

const (
	JobIdle      JobState = "idle"
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// SyncJob is one extraction run for a (user, portal) pair.
type SyncJob struct {
	ID     string
	UserID string
	Portal Portal
	Forced bool
	State  JobState
}

type GradeStatus string

const (
	GradeInProgress GradeStatus = "in_progress"
	GradePassed     GradeStatus = "passed"
	GradeFailed     GradeStatus = "failed"
)

const PassingAverage = 6.0

type GradeRecord struct {
	SubjectName string
	VA1         float64
	VA2         float64
	VA3         float64
	Average     float64
	Status      GradeStatus
}

// Slot returns a pointer to the grade of the given assessment window (1..3).
func (g *GradeRecord) Slot(n int) *float64 {
	switch n {
	case 1:
		return &g.VA1
	case 2:
		return &g.VA2
	case 3:
		return &g.VA3
	}
	return nil
}

// Round1 rounds half away from zero to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Recompute derives Average and Status from the three assessment grades.
func (g *GradeRecord) Recompute() {
	g.Average = Round1((g.VA1 + g.VA2 + g.VA3) / 3)
	switch {
	case g.VA1 <= 0 || g.VA2 <= 0 || g.VA3 <= 0:
		g.Status = GradeInProgress
	case g.Average >= PassingAverage:
		g.Status = GradePassed
	default:
		g.Status = GradeFailed
	}
}

const DefaultTotalClasses = 60

type AttendanceRecord struct {
	SubjectName   string
	Absences      int
	TotalClasses  int
	AttendancePct float64
}

type ScheduleEntry struct {
	// Weekday is 1 (monday) through 6 (saturday).
	Weekday     int
	SubjectName string
	StartTime   string
	EndTime     string
	Location    string
	Instructor  string
}

type EventCategory string

const (
	EventHoliday       EventCategory = "holiday"
	EventClass         EventCategory = "class"
	EventInstitutional EventCategory = "institutional"
	EventExam          EventCategory = "exam"
	EventDeadline      EventCategory = "deadline"
)

// Color is the display color of events of a category.
func (c EventCategory) Color() string {
	switch c {
	case EventHoliday:
		return "#e74c3c"
	case EventClass:
		return "#4a90e2"
	case EventExam:
		return "#dc3545"
	case EventDeadline:
		return "#f39c12"
	}
	return "#6c757d"
}

type CalendarEvent struct {
	Title string
	// Date is an ISO date (YYYY-MM-DD).
	Date        string
	Category    EventCategory
	Color       string
	Description string
}

const DefaultEnrollmentStatus = "Matriculado"

type EnrolledSubject struct {
	SubjectName string
	Status      string
	Period      string
	Instructor  string
	StartDate   string
}

// RecordsResult is everything extracted from the student-records portal in
// one job.
type RecordsResult struct {
	Grades     []GradeRecord
	Attendance []AttendanceRecord
	Schedule   []ScheduleEntry
	Calendar   []CalendarEvent
	Subjects   []EnrolledSubject
}

// Empty reports whether nothing was extracted at all.
func (r RecordsResult) Empty() bool {
	return len(r.Grades) == 0 &&
		len(r.Attendance) == 0 &&
		len(r.Schedule) == 0 &&
		len(r.Calendar) == 0 &&
		len(r.Subjects) == 0
}

// ExtractedDocumentText is the flattened text of one LMS course.
type ExtractedDocumentText struct {
	UserID        string
	CourseName    string
	FormattedText string
	CapturedAt    time.Time
}

// AuthenticatedSession is what a successful login hands to a crawler, the
// cookies are valid for BaseURL.
type AuthenticatedSession struct {
	BaseURL string
	Cookies []*http.Cookie
}
