package extract

import (
	"testing"
	"time"

	"campussync/internal/chrono"
	"campussync/internal/model"
	"campussync/internal/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	_ "embed"
)

//go:embed testdata/grades.txt
var gradesPage string

//go:embed testdata/attendance.txt
var attendancePage string

//go:embed testdata/schedule.txt
var schedulePage string

//go:embed testdata/calendar.txt
var calendarPage string

//go:embed testdata/subjects.txt
var subjectsPage string

func newTestExtractor(t testing.TB) (Extractor, *telemetry.Recorder) {
	t.Helper()
	tel := telemetry.NewRecorder()
	now := time.Date(2025, time.September, 10, 12, 0, 0, 0, chrono.Campus())
	return NewExtractor(DefaultHeuristics(), chrono.FixedTime{T: now}, tel), tel
}

func TestSubjectHeader(t *testing.T) {
	e, _ := newTestExtractor(t)

	testCases := []struct {
		line   string
		expect bool
	}{
		{line: "ALGORITMOS E PROGRAMAÇÃO", expect: true},
		{line: "Ética e Cidadania", expect: true},
		{line: "MÉTODOS E ALGORITMOS", expect: true},
		{line: "Todos os dados", expect: false},
		{line: "Avaliação Institucional", expect: false},
		{line: "DADOS", expect: false},
		{line: "2025 - ALGORITMOS AVANÇADOS", expect: false},
		{line: "algoritmos e programação", expect: false},
	}
	for _, test := range testCases {
		require.Equal(t, test.expect, e.IsSubjectHeader(test.line), test.line)
	}
}

func TestGrades(t *testing.T) {
	e, tel := newTestExtractor(t)

	grades := e.Grades(gradesPage)
	expected := []model.GradeRecord{
		{
			SubjectName: "FUNDAMENTOS DE COMPUTAÇÃO",
			VA1:         8.5,
			VA2:         7.5,
			Average:     5.3,
			Status:      model.GradeInProgress,
		},
		{
			SubjectName: "ALGORITMOS E PROGRAMAÇÃO",
			VA1:         9,
			VA2:         8,
			VA3:         7,
			Average:     8,
			Status:      model.GradePassed,
		},
	}
	if diff := cmp.Diff(expected, grades); diff != "" {
		t.Fatal(diff)
	}
	require.Len(t, tel.Find("count", report_extract_grades), 1)
}

func TestGradeRescaledFromHundred(t *testing.T) {
	e, _ := newTestExtractor(t)

	grades := e.Grades("FUNDAMENTOS DE COMPUTAÇÃO\n15/09/2025 - 1ª Verificação de Aprendizagem\n85")
	require.Len(t, grades, 1)
	require.Equal(t, 8.5, grades[0].VA1)
	require.Equal(t, 0.0, grades[0].VA2)
	require.Equal(t, 0.0, grades[0].VA3)
	require.Equal(t, 2.8, grades[0].Average)
	require.Equal(t, model.GradeInProgress, grades[0].Status)
}

func TestGradeSlotKeepsLargest(t *testing.T) {
	e, _ := newTestExtractor(t)

	for _, text := range []string{
		"FUNDAMENTOS DE COMPUTAÇÃO\n15/09/2025 - 1ª Verificação de Aprendizagem\n6\n15/09/2025 - 1ª Verificação de Aprendizagem\n8",
		"FUNDAMENTOS DE COMPUTAÇÃO\n15/09/2025 - 1ª Verificação de Aprendizagem\n8\n15/09/2025 - 1ª Verificação de Aprendizagem\n6",
	} {
		grades := e.Grades(text)
		require.Len(t, grades, 1)
		require.Equal(t, 8.0, grades[0].VA1)
	}
}

func TestGradeUndatedMarker(t *testing.T) {
	e, _ := newTestExtractor(t)

	grades := e.Grades("ALGORITMOS E PROGRAMAÇÃO\nVA 2\nNota\n7")
	require.Len(t, grades, 1)
	require.Equal(t, 7.0, grades[0].VA2)
	require.Equal(t, 0.0, grades[0].VA1)
}

func TestGradeOutOfRangeIgnored(t *testing.T) {
	e, _ := newTestExtractor(t)

	grades := e.Grades("ALGORITMOS E PROGRAMAÇÃO\n15/09/2025 - 1ª Verificação de Aprendizagem\n150\n9")
	require.Len(t, grades, 1)
	require.Equal(t, 9.0, grades[0].VA1)
}

func TestAttendance(t *testing.T) {
	e, _ := newTestExtractor(t)

	attendance := e.Attendance(attendancePage)
	expected := []model.AttendanceRecord{
		{SubjectName: "FUNDAMENTOS DE COMPUTAÇÃO", Absences: 4, AttendancePct: 93.3},
		{SubjectName: "ALGORITMOS E PROGRAMAÇÃO", Absences: 0, AttendancePct: 100},
		{SubjectName: TotalRow, Absences: 4, AttendancePct: 96.7},
	}
	if diff := cmp.Diff(expected, attendance); diff != "" {
		t.Fatal(diff)
	}
}

func TestAttendanceKeepsFewerAbsences(t *testing.T) {
	e, _ := newTestExtractor(t)

	attendance := e.Attendance("ALGORITMOS E PROGRAMAÇÃO\nFaltas\n6\nALGORITMOS E PROGRAMAÇÃO\nFaltas\n2")
	require.Len(t, attendance, 1)
	require.Equal(t, 2, attendance[0].Absences)
}

func TestAttendanceBlockFallback(t *testing.T) {
	e, tel := newTestExtractor(t)

	attendance := e.Attendance("LEITURA E INTERPRETAÇÃO DE TEXTO\nFaltas 2\nFrequência 95%")
	require.Equal(t, []model.AttendanceRecord{
		{SubjectName: "LEITURA E INTERPRETAÇÃO DE TEXTO", Absences: 2, AttendancePct: 95},
	}, attendance)
	require.Len(t, tel.Find("warning", report_extract_attendance), 1)
}

func TestSchedule(t *testing.T) {
	e, _ := newTestExtractor(t)

	schedule := e.Schedule(schedulePage)
	expected := []model.ScheduleEntry{
		{
			Weekday:     1,
			SubjectName: "ALGORITMOS E PROGRAMAÇÃO",
			StartTime:   "19:00",
			EndTime:     "20:40",
			Location:    "BLOCO B - SALA 204",
			Instructor:  "Maria Souza",
		},
		{
			Weekday:     1,
			SubjectName: "FUNDAMENTOS DE COMPUTAÇÃO",
			StartTime:   "20:50",
			EndTime:     "22:30",
			Location:    "PISO 2 SALA 12",
		},
		{
			Weekday:     3,
			SubjectName: "ÉTICA E CIDADANIA",
			StartTime:   "07:30",
			EndTime:     "09:10",
		},
	}
	if diff := cmp.Diff(expected, schedule); diff != "" {
		t.Fatal(diff)
	}
}

func TestScheduleForDay(t *testing.T) {
	e, _ := newTestExtractor(t)

	schedule := e.ScheduleForDay("ALGORITMOS E PROGRAMAÇÃO\n19:00 - 20:40", 2)
	require.Len(t, schedule, 1)
	require.Equal(t, 2, schedule[0].Weekday)

	require.Empty(t, e.Schedule("ALGORITMOS E PROGRAMAÇÃO\n19:00 - 20:40"))
}

func TestWeekdayOf(t *testing.T) {
	require.Equal(t, 1, WeekdayOf("Segunda-feira"))
	require.Equal(t, 2, WeekdayOf("terça-feira"))
	require.Equal(t, 6, WeekdayOf("Sábado"))
	require.Equal(t, 0, WeekdayOf("Segundas intenções"))
	require.Equal(t, "Quinta", WeekdayLabel(4))
}

func TestCalendar(t *testing.T) {
	e, _ := newTestExtractor(t)

	events := e.Calendar(calendarPage, 0, nil)
	expected := []model.CalendarEvent{
		{
			Title:       "Feriado",
			Date:        "2025-09-07",
			Category:    model.EventHoliday,
			Color:       "#e74c3c",
			Description: "Feriado - Independência do Brasil",
		},
		{
			Title:       "Aula 19:00-20:40",
			Date:        "2025-09-16",
			Category:    model.EventClass,
			Color:       "#4a90e2",
			Description: "19:00 - 20:40",
		},
		{
			Title:       "Prova de Algoritmos",
			Date:        "2025-09-22",
			Category:    model.EventExam,
			Color:       "#dc3545",
			Description: "Prova de Algoritmos",
		},
		{
			Title:       "Prazo de entrega do trabalho 30/09/2025",
			Date:        "2025-09-30",
			Category:    model.EventDeadline,
			Color:       "#f39c12",
			Description: "Prazo de entrega do trabalho 30/09/2025",
		},
	}
	if diff := cmp.Diff(expected, events); diff != "" {
		t.Fatal(diff)
	}
}

func TestCalendarClassesFromSchedule(t *testing.T) {
	e, _ := newTestExtractor(t)

	schedule := []model.ScheduleEntry{
		{Weekday: 1, SubjectName: "ALGORITMOS E PROGRAMAÇÃO", StartTime: "19:00", EndTime: "20:40"},
	}
	events := e.Calendar(calendarPage, 0, schedule)

	var classDates []string
	for _, ev := range events {
		if ev.Category == model.EventClass {
			classDates = append(classDates, ev.Date)
		}
	}
	require.Equal(t, []string{
		"2025-09-16",
		"2025-09-01",
		"2025-09-08",
		"2025-09-15",
		"2025-09-22",
		"2025-09-29",
	}, classDates)
}

func TestCalendarSkipsHolidays(t *testing.T) {
	e, _ := newTestExtractor(t)

	schedule := []model.ScheduleEntry{
		{Weekday: 4, SubjectName: "ÉTICA E CIDADANIA", StartTime: "07:30", EndTime: "09:10"},
	}
	events := e.Calendar("novembro de 2025\n19\n20\nFeriado - Consciência Negra\n21", 2, schedule)

	var holidays, classes []string
	for _, ev := range events {
		switch ev.Category {
		case model.EventHoliday:
			holidays = append(holidays, ev.Date)
		case model.EventClass:
			classes = append(classes, ev.Date)
		}
	}
	require.Equal(t, []string{"2025-11-20"}, holidays)
	require.Equal(t, []string{"2025-11-06", "2025-11-13", "2025-11-27"}, classes)
}

func TestMonthOf(t *testing.T) {
	e, tel := newTestExtractor(t)

	require.Equal(t, Month{Year: 2026, Month: time.February}, e.MonthOf("Fevereiro de 2026", 0))

	month := e.MonthOf("nothing here", 4)
	require.Equal(t, Month{Year: 2026, Month: time.January, Estimated: true}, month)
	require.Equal(t, "2026-01", month.String())

	e.Calendar("nothing here", 4, nil)
	require.Len(t, tel.Find("warning", report_extract_calendar), 1)
}

func TestSubjects(t *testing.T) {
	e, _ := newTestExtractor(t)

	subjects := e.Subjects(subjectsPage)
	expected := []model.EnrolledSubject{
		{
			SubjectName: "ALGORITMOS E PROGRAMAÇÃO",
			Status:      "Cursando",
			Period:      "2025/2",
			Instructor:  "Maria Souza",
			StartDate:   "04/08/2025",
		},
		{
			SubjectName: "ÉTICA E CIDADANIA",
			Status:      model.DefaultEnrollmentStatus,
			Period:      "2025/2",
		},
	}
	if diff := cmp.Diff(expected, subjects); diff != "" {
		t.Fatal(diff)
	}
}
