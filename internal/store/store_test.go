package store

import (
	"context"
	"testing"
	"time"

	"campussync/internal/chrono"
	"campussync/internal/credentials"
	"campussync/internal/model"
	"campussync/internal/telemetry"
	"campussync/lib/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, time.September, 10, 12, 0, 0, 0, chrono.Campus())

func newTestStore(t testing.TB) Store {
	t.Helper()
	database := testutil.OpenDB(t, testutil.DBParams{})
	return NewStore(database, chrono.FixedTime{T: testNow}, telemetry.NewRecorder())
}

func sampleRecords() model.RecordsResult {
	return model.RecordsResult{
		Grades: []model.GradeRecord{
			{SubjectName: "ALGORITMOS E PROGRAMAÇÃO", VA1: 9, VA2: 8, VA3: 7, Average: 8, Status: model.GradePassed},
		},
		Attendance: []model.AttendanceRecord{
			{SubjectName: "ALGORITMOS E PROGRAMAÇÃO", Absences: 2, TotalClasses: 60, AttendancePct: 96.7},
		},
		Schedule: []model.ScheduleEntry{
			{Weekday: 1, SubjectName: "ALGORITMOS E PROGRAMAÇÃO", StartTime: "19:00", EndTime: "20:40", Location: "BLOCO B"},
		},
		Calendar: []model.CalendarEvent{
			{Title: "Feriado", Date: "2025-09-07", Category: model.EventHoliday, Color: "#e74c3c"},
		},
		Subjects: []model.EnrolledSubject{
			{SubjectName: "ALGORITMOS E PROGRAMAÇÃO", Status: model.DefaultEnrollmentStatus, Period: "2025/2"},
		},
	}
}

func TestReplaceRecords(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	hasData, err := s.HasData(ctx, "u1", model.PortalRecords)
	require.NoError(t, err)
	require.False(t, hasData)

	last, err := s.LastSync(ctx, "u1", model.PortalRecords)
	require.NoError(t, err)
	require.Nil(t, last)

	err = s.ReplaceRecords(ctx, "u1", sampleRecords())
	require.NoError(t, err)

	stored, err := s.Records(ctx, "u1")
	require.NoError(t, err)
	if diff := cmp.Diff(sampleRecords(), stored); diff != "" {
		t.Fatal(diff)
	}

	hasData, err = s.HasData(ctx, "u1", model.PortalRecords)
	require.NoError(t, err)
	require.True(t, hasData)

	hasData, err = s.HasData(ctx, "u1", model.PortalLMS)
	require.NoError(t, err)
	require.False(t, hasData)

	last, err = s.LastSync(ctx, "u1", model.PortalRecords)
	require.NoError(t, err)
	require.NotNil(t, last)
	require.True(t, last.Equal(testNow))

	// a second generation replaces the first one entirely
	next := model.RecordsResult{
		Grades: []model.GradeRecord{
			{SubjectName: "ÉTICA E CIDADANIA", VA1: 5, Average: 1.7, Status: model.GradeInProgress},
		},
	}
	err = s.ReplaceRecords(ctx, "u1", next)
	require.NoError(t, err)

	stored, err = s.Records(ctx, "u1")
	require.NoError(t, err)
	if diff := cmp.Diff(next, stored); diff != "" {
		t.Fatal(diff)
	}

	other, err := s.Records(ctx, "u2")
	require.NoError(t, err)
	require.True(t, other.Empty())
}

func TestReplaceRecordsRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	err := s.ReplaceRecords(ctx, "u1", sampleRecords())
	require.NoError(t, err)

	broken := sampleRecords()
	broken.Schedule[0].Weekday = 9
	err = s.ReplaceRecords(ctx, "u1", broken)
	require.Error(t, err)

	stored, err := s.Records(ctx, "u1")
	require.NoError(t, err)
	if diff := cmp.Diff(sampleRecords(), stored); diff != "" {
		t.Fatal(diff)
	}
}

func TestReplaceLMS(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	docs := []model.ExtractedDocumentText{
		{UserID: "u1", CourseName: "Algoritmos", FormattedText: "# Algoritmos", CapturedAt: testNow},
		{UserID: "u1", CourseName: "Cidadania", FormattedText: "# Cidadania", CapturedAt: testNow},
	}
	err := s.ReplaceLMS(ctx, "u1", docs)
	require.NoError(t, err)

	stored, err := s.LMSDocuments(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.Equal(t, "Algoritmos", stored[0].CourseName)
	require.True(t, stored[0].CapturedAt.Equal(testNow))

	err = s.ReplaceLMS(ctx, "u1", docs[1:])
	require.NoError(t, err)
	stored, err = s.LMSDocuments(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, stored, 1)

	hasData, err := s.HasData(ctx, "u1", model.PortalLMS)
	require.NoError(t, err)
	require.True(t, hasData)
}

func TestCredentials(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Credentials(ctx, "u1")
	require.ErrorIs(t, err, ErrNoCredentials)

	creds := credentials.Credentials{LoginID: "2025001", NationalID: "123.456.789-09"}
	require.NoError(t, s.SetCredentials(ctx, "u1", creds))

	stored, err := s.Credentials(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, creds, stored)

	creds.SecretOverride = "override"
	require.NoError(t, s.SetCredentials(ctx, "u1", creds))
	stored, err = s.Credentials(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "override", stored.SecretOverride)
}
