package commands

import (
	"fmt"
	"os"
	"time"

	"campussync/internal/model"
	"campussync/internal/syncjob"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func formatGrade(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

func printGrades(grades []model.GradeRecord) {
	t := newTable()
	t.AppendHeader(table.Row{"Subject", "VA1", "VA2", "VA3", "Average", "Status"})
	for _, g := range grades {
		t.AppendRow(table.Row{
			g.SubjectName,
			formatGrade(g.VA1),
			formatGrade(g.VA2),
			formatGrade(g.VA3),
			formatGrade(g.Average),
			g.Status,
		})
	}
	t.Render()
}

func printAttendance(attendance []model.AttendanceRecord) {
	t := newTable()
	t.AppendHeader(table.Row{"Subject", "Absences", "Classes", "Attendance %"})
	for _, a := range attendance {
		t.AppendRow(table.Row{a.SubjectName, a.Absences, a.TotalClasses, fmt.Sprintf("%.1f", a.AttendancePct)})
	}
	t.Render()
}

func printSchedule(schedule []model.ScheduleEntry) {
	t := newTable()
	t.AppendHeader(table.Row{"Weekday", "Start", "End", "Subject", "Location", "Instructor"})
	for _, s := range schedule {
		t.AppendRow(table.Row{s.Weekday, s.StartTime, s.EndTime, s.SubjectName, s.Location, s.Instructor})
	}
	t.Render()
}

func printCalendar(events []model.CalendarEvent) {
	t := newTable()
	t.AppendHeader(table.Row{"Date", "Category", "Title", "Description"})
	for _, e := range events {
		t.AppendRow(table.Row{e.Date, e.Category, e.Title, e.Description})
	}
	t.Render()
}

func printSubjects(subjects []model.EnrolledSubject) {
	t := newTable()
	t.AppendHeader(table.Row{"Subject", "Status", "Period", "Instructor", "Start"})
	for _, s := range subjects {
		t.AppendRow(table.Row{s.SubjectName, s.Status, s.Period, s.Instructor, s.StartDate})
	}
	t.Render()
}

func printDocuments(docs []model.ExtractedDocumentText) {
	t := newTable()
	t.AppendHeader(table.Row{"Course", "Characters", "Captured at"})
	for _, d := range docs {
		t.AppendRow(table.Row{d.CourseName, len(d.FormattedText), d.CapturedAt.Format(time.DateTime)})
	}
	t.Render()
}

func printStatus(portal model.Portal, status syncjob.Status) {
	lastSync := "never"
	if status.LastSyncAt != nil {
		lastSync = status.LastSyncAt.Format(time.DateTime)
	}

	t := newTable()
	t.AppendHeader(table.Row{"Portal", "State", "Has data", "Last sync", "Error"})
	t.AppendRow(table.Row{portal, status.State, status.HasData, lastSync, status.Error})
	t.Render()
}
