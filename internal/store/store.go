// Package store persists the results of sync jobs. Every replace operation
// deletes and re-inserts a user's rows inside a single transaction, readers
// see either the previous generation or the new one.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campussync/internal/assert"
	"campussync/internal/chrono"
	"campussync/internal/credentials"
	"campussync/internal/db"
	"campussync/internal/model"
	"campussync/internal/telemetry"
)

const (
	report_db_query       = "db.query"
	report_replace_lms    = "store.replace-lms"
	report_replace_record = "store.replace-records"
)

var ErrNoCredentials = errors.New("no credentials stored for user")

type Store struct {
	db     *db.Queries
	makeTx db.MakeTx
	time   chrono.TimeAPI
	tel    telemetry.API
}

func NewStore(database *sql.DB, time chrono.TimeAPI, tel telemetry.API) Store {
	assert.NotNil(database)
	assert.NotNil(time)
	assert.NotNil(tel)

	return Store{
		db:     db.New(database),
		makeTx: db.NewMakeTx(database),
		time:   time,
		tel:    telemetry.NewScopedAPI("store", tel),
	}
}

func (s Store) markSynced(ctx context.Context, tx *db.Queries, userID string, portal model.Portal) error {
	err := tx.SetSyncState(ctx, db.SetSyncStateParams{
		UserID:     userID,
		Portal:     string(portal),
		LastSyncAt: s.time.Now().Unix(),
	})
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "SetSyncState", userID, portal)
	}
	return err
}

// ReplaceLMS replaces every stored course document of the user.
func (s Store) ReplaceLMS(ctx context.Context, userID string, docs []model.ExtractedDocumentText) error {
	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, fmt.Errorf("make tx: %w", err))
		return err
	}
	defer discard()

	err = tx.DeleteLmsDocuments(ctx, userID)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "DeleteLmsDocuments", userID)
		return err
	}
	for _, doc := range docs {
		err = tx.AddLmsDocument(ctx, db.LmsDocument{
			UserID:        userID,
			CourseName:    doc.CourseName,
			FormattedText: doc.FormattedText,
			CapturedAt:    doc.CapturedAt.Unix(),
		})
		if err != nil {
			s.tel.ReportBroken(report_db_query, err, "AddLmsDocument", userID, doc.CourseName)
			return err
		}
	}

	err = s.markSynced(ctx, tx, userID, model.PortalLMS)
	if err != nil {
		return err
	}
	err = commit()
	if err != nil {
		s.tel.ReportBroken(report_replace_lms, fmt.Errorf("commit: %w", err), userID)
		return err
	}
	s.tel.ReportCount(report_replace_lms, int64(len(docs)))
	return nil
}

// ReplaceRecords replaces every stored record category of the user.
func (s Store) ReplaceRecords(ctx context.Context, userID string, result model.RecordsResult) error {
	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		s.tel.ReportBroken(report_db_query, fmt.Errorf("make tx: %w", err))
		return err
	}
	defer discard()

	deletes := []struct {
		name string
		fn   func(context.Context, string) error
	}{
		{"DeleteGrades", tx.DeleteGrades},
		{"DeleteAttendance", tx.DeleteAttendance},
		{"DeleteScheduleEntries", tx.DeleteScheduleEntries},
		{"DeleteCalendarEvents", tx.DeleteCalendarEvents},
		{"DeleteEnrolledSubjects", tx.DeleteEnrolledSubjects},
	}
	for _, d := range deletes {
		err = d.fn(ctx, userID)
		if err != nil {
			s.tel.ReportBroken(report_db_query, err, d.name, userID)
			return err
		}
	}

	for _, g := range result.Grades {
		err = tx.AddGrade(ctx, db.Grade{
			UserID:      userID,
			SubjectName: g.SubjectName,
			Va1:         g.VA1,
			Va2:         g.VA2,
			Va3:         g.VA3,
			Average:     g.Average,
			Status:      string(g.Status),
		})
		if err != nil {
			s.tel.ReportBroken(report_db_query, err, "AddGrade", userID, g.SubjectName)
			return err
		}
	}
	for _, a := range result.Attendance {
		err = tx.AddAttendance(ctx, db.Attendance{
			UserID:        userID,
			SubjectName:   a.SubjectName,
			Absences:      int64(a.Absences),
			TotalClasses:  int64(a.TotalClasses),
			AttendancePct: a.AttendancePct,
		})
		if err != nil {
			s.tel.ReportBroken(report_db_query, err, "AddAttendance", userID, a.SubjectName)
			return err
		}
	}
	for _, e := range result.Schedule {
		err = tx.AddScheduleEntry(ctx, db.ScheduleEntry{
			UserID:      userID,
			Weekday:     int64(e.Weekday),
			SubjectName: e.SubjectName,
			StartTime:   e.StartTime,
			EndTime:     e.EndTime,
			Location:    e.Location,
			Instructor:  e.Instructor,
		})
		if err != nil {
			s.tel.ReportBroken(report_db_query, err, "AddScheduleEntry", userID, e.SubjectName)
			return err
		}
	}
	for _, ev := range result.Calendar {
		err = tx.AddCalendarEvent(ctx, db.CalendarEvent{
			UserID:      userID,
			Title:       ev.Title,
			Date:        ev.Date,
			Category:    string(ev.Category),
			Color:       ev.Color,
			Description: ev.Description,
		})
		if err != nil {
			s.tel.ReportBroken(report_db_query, err, "AddCalendarEvent", userID, ev.Title, ev.Date)
			return err
		}
	}
	for _, subj := range result.Subjects {
		err = tx.AddEnrolledSubject(ctx, db.EnrolledSubject{
			UserID:      userID,
			SubjectName: subj.SubjectName,
			Status:      subj.Status,
			Period:      subj.Period,
			Instructor:  subj.Instructor,
			StartDate:   subj.StartDate,
		})
		if err != nil {
			s.tel.ReportBroken(report_db_query, err, "AddEnrolledSubject", userID, subj.SubjectName)
			return err
		}
	}

	err = s.markSynced(ctx, tx, userID, model.PortalRecords)
	if err != nil {
		return err
	}
	err = commit()
	if err != nil {
		s.tel.ReportBroken(report_replace_record, fmt.Errorf("commit: %w", err), userID)
		return err
	}
	return nil
}

// HasData reports whether anything has been stored for the user from the
// given portal.
func (s Store) HasData(ctx context.Context, userID string, portal model.Portal) (bool, error) {
	var count int64
	var err error
	switch portal {
	case model.PortalLMS:
		count, err = s.db.CountLmsDocuments(ctx, userID)
	case model.PortalRecords:
		count, err = s.db.CountRecords(ctx, userID)
	default:
		return false, fmt.Errorf("unknown portal '%s'", portal)
	}
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "HasData", userID, portal)
		return false, err
	}
	return count > 0, nil
}

// LastSync returns when the last successful job for the user and portal
// committed, or nil if there has never been one.
func (s Store) LastSync(ctx context.Context, userID string, portal model.Portal) (*time.Time, error) {
	unix, err := s.db.GetSyncState(ctx, db.GetSyncStateParams{
		UserID: userID,
		Portal: string(portal),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetSyncState", userID, portal)
		return nil, err
	}
	last := time.Unix(unix, 0).In(chrono.Campus())
	return &last, nil
}

func (s Store) Credentials(ctx context.Context, userID string) (credentials.Credentials, error) {
	row, err := s.db.GetCredential(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return credentials.Credentials{}, fmt.Errorf("%w: %s", ErrNoCredentials, userID)
	}
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetCredential", userID)
		return credentials.Credentials{}, err
	}
	return credentials.Credentials{
		LoginID:        row.LoginID,
		NationalID:     row.NationalID,
		SecretOverride: row.SecretOverride,
	}, nil
}

func (s Store) SetCredentials(ctx context.Context, userID string, c credentials.Credentials) error {
	err := s.db.SetCredential(ctx, db.Credential{
		UserID:         userID,
		LoginID:        c.LoginID,
		NationalID:     c.NationalID,
		SecretOverride: c.SecretOverride,
	})
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "SetCredential", userID)
	}
	return err
}

func (s Store) LMSDocuments(ctx context.Context, userID string) ([]model.ExtractedDocumentText, error) {
	rows, err := s.db.GetLmsDocuments(ctx, userID)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetLmsDocuments", userID)
		return nil, err
	}
	docs := make([]model.ExtractedDocumentText, len(rows))
	for i, r := range rows {
		docs[i] = model.ExtractedDocumentText{
			UserID:        r.UserID,
			CourseName:    r.CourseName,
			FormattedText: r.FormattedText,
			CapturedAt:    time.Unix(r.CapturedAt, 0).In(chrono.Campus()),
		}
	}
	return docs, nil
}

// Records reads back everything stored from the records portal.
func (s Store) Records(ctx context.Context, userID string) (model.RecordsResult, error) {
	var result model.RecordsResult

	grades, err := s.db.GetGrades(ctx, userID)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetGrades", userID)
		return result, err
	}
	for _, g := range grades {
		result.Grades = append(result.Grades, model.GradeRecord{
			SubjectName: g.SubjectName,
			VA1:         g.Va1,
			VA2:         g.Va2,
			VA3:         g.Va3,
			Average:     g.Average,
			Status:      model.GradeStatus(g.Status),
		})
	}

	attendance, err := s.db.GetAttendance(ctx, userID)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetAttendance", userID)
		return result, err
	}
	for _, a := range attendance {
		result.Attendance = append(result.Attendance, model.AttendanceRecord{
			SubjectName:   a.SubjectName,
			Absences:      int(a.Absences),
			TotalClasses:  int(a.TotalClasses),
			AttendancePct: a.AttendancePct,
		})
	}

	schedule, err := s.db.GetScheduleEntries(ctx, userID)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetScheduleEntries", userID)
		return result, err
	}
	for _, e := range schedule {
		result.Schedule = append(result.Schedule, model.ScheduleEntry{
			Weekday:     int(e.Weekday),
			SubjectName: e.SubjectName,
			StartTime:   e.StartTime,
			EndTime:     e.EndTime,
			Location:    e.Location,
			Instructor:  e.Instructor,
		})
	}

	events, err := s.db.GetCalendarEvents(ctx, userID)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetCalendarEvents", userID)
		return result, err
	}
	for _, ev := range events {
		result.Calendar = append(result.Calendar, model.CalendarEvent{
			Title:       ev.Title,
			Date:        ev.Date,
			Category:    model.EventCategory(ev.Category),
			Color:       ev.Color,
			Description: ev.Description,
		})
	}

	subjects, err := s.db.GetEnrolledSubjects(ctx, userID)
	if err != nil {
		s.tel.ReportBroken(report_db_query, err, "GetEnrolledSubjects", userID)
		return result, err
	}
	for _, subj := range subjects {
		result.Subjects = append(result.Subjects, model.EnrolledSubject{
			SubjectName: subj.SubjectName,
			Status:      subj.Status,
			Period:      subj.Period,
			Instructor:  subj.Instructor,
			StartDate:   subj.StartDate,
		})
	}

	return result, nil
}
