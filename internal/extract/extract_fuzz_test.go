package extract

import (
	"testing"
	"time"
)

// Portal text is scraped from whatever the page renders, the parsers must
// never panic on it and grades must stay on the 0..10 scale.
func FuzzExtract(f *testing.F) {
	for _, seed := range []string{gradesPage, attendancePage, schedulePage, calendarPage, subjectsPage} {
		f.Add(seed)
	}
	f.Add("ALGORITMOS E PROGRAMAÇÃO\nVA1\n101\nFaltas\n-3")
	f.Add("")

	e, _ := newTestExtractor(f)
	f.Fuzz(func(t *testing.T, text string) {
		for _, g := range e.Grades(text) {
			for _, v := range []float64{g.VA1, g.VA2, g.VA3} {
				if v < 0 || v > 10 {
					t.Fatalf("grade out of range for %q: %v", g.SubjectName, v)
				}
			}
		}
		e.Attendance(text)
		e.Subjects(text)

		schedule := e.Schedule(text)
		for _, s := range schedule {
			if s.Weekday < 0 || s.Weekday > 6 {
				t.Fatalf("weekday out of range: %d", s.Weekday)
			}
		}
		for _, ev := range e.Calendar(text, 0, schedule) {
			if _, err := time.Parse(time.DateOnly, ev.Date); err != nil {
				t.Fatalf("bad event date %q: %v", ev.Date, err)
			}
		}
	})
}
