package db

import (
	"context"
)

const deleteLmsDocuments = `-- name: DeleteLmsDocuments :exec
delete from lms_document where user_id = ?;
`

func (q *Queries) DeleteLmsDocuments(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx, deleteLmsDocuments, userID)
	return err
}

const addLmsDocument = `-- name: AddLmsDocument :exec
insert into lms_document(user_id, course_name, formatted_text, captured_at)
values (?, ?, ?, ?);
`

func (q *Queries) AddLmsDocument(ctx context.Context, arg LmsDocument) error {
	_, err := q.db.ExecContext(ctx, addLmsDocument,
		arg.UserID,
		arg.CourseName,
		arg.FormattedText,
		arg.CapturedAt,
	)
	return err
}

const getLmsDocuments = `-- name: GetLmsDocuments :many
select * from lms_document where user_id = ? order by course_name;
`

func (q *Queries) GetLmsDocuments(ctx context.Context, userID string) ([]LmsDocument, error) {
	rows, err := q.db.QueryContext(ctx, getLmsDocuments, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LmsDocument
	for rows.Next() {
		var i LmsDocument
		if err := rows.Scan(
			&i.UserID,
			&i.CourseName,
			&i.FormattedText,
			&i.CapturedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countLmsDocuments = `-- name: CountLmsDocuments :one
select count(*) from lms_document where user_id = ?;
`

func (q *Queries) CountLmsDocuments(ctx context.Context, userID string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countLmsDocuments, userID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const deleteGrades = `-- name: DeleteGrades :exec
delete from grade where user_id = ?;
`

func (q *Queries) DeleteGrades(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx, deleteGrades, userID)
	return err
}

const addGrade = `-- name: AddGrade :exec
insert into grade(user_id, subject_name, va1, va2, va3, average, status)
values (?, ?, ?, ?, ?, ?, ?);
`

func (q *Queries) AddGrade(ctx context.Context, arg Grade) error {
	_, err := q.db.ExecContext(ctx, addGrade,
		arg.UserID,
		arg.SubjectName,
		arg.Va1,
		arg.Va2,
		arg.Va3,
		arg.Average,
		arg.Status,
	)
	return err
}

const getGrades = `-- name: GetGrades :many
select * from grade where user_id = ? order by rowid;
`

func (q *Queries) GetGrades(ctx context.Context, userID string) ([]Grade, error) {
	rows, err := q.db.QueryContext(ctx, getGrades, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Grade
	for rows.Next() {
		var i Grade
		if err := rows.Scan(
			&i.UserID,
			&i.SubjectName,
			&i.Va1,
			&i.Va2,
			&i.Va3,
			&i.Average,
			&i.Status,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteAttendance = `-- name: DeleteAttendance :exec
delete from attendance where user_id = ?;
`

func (q *Queries) DeleteAttendance(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx, deleteAttendance, userID)
	return err
}

const addAttendance = `-- name: AddAttendance :exec
insert into attendance(user_id, subject_name, absences, total_classes, attendance_pct)
values (?, ?, ?, ?, ?);
`

func (q *Queries) AddAttendance(ctx context.Context, arg Attendance) error {
	_, err := q.db.ExecContext(ctx, addAttendance,
		arg.UserID,
		arg.SubjectName,
		arg.Absences,
		arg.TotalClasses,
		arg.AttendancePct,
	)
	return err
}

const getAttendance = `-- name: GetAttendance :many
select * from attendance where user_id = ? order by rowid;
`

func (q *Queries) GetAttendance(ctx context.Context, userID string) ([]Attendance, error) {
	rows, err := q.db.QueryContext(ctx, getAttendance, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Attendance
	for rows.Next() {
		var i Attendance
		if err := rows.Scan(
			&i.UserID,
			&i.SubjectName,
			&i.Absences,
			&i.TotalClasses,
			&i.AttendancePct,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteScheduleEntries = `-- name: DeleteScheduleEntries :exec
delete from schedule_entry where user_id = ?;
`

func (q *Queries) DeleteScheduleEntries(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx, deleteScheduleEntries, userID)
	return err
}

const addScheduleEntry = `-- name: AddScheduleEntry :exec
insert into schedule_entry(user_id, weekday, subject_name, start_time, end_time, location, instructor)
values (?, ?, ?, ?, ?, ?, ?);
`

func (q *Queries) AddScheduleEntry(ctx context.Context, arg ScheduleEntry) error {
	_, err := q.db.ExecContext(ctx, addScheduleEntry,
		arg.UserID,
		arg.Weekday,
		arg.SubjectName,
		arg.StartTime,
		arg.EndTime,
		arg.Location,
		arg.Instructor,
	)
	return err
}

const getScheduleEntries = `-- name: GetScheduleEntries :many
select * from schedule_entry where user_id = ? order by weekday, start_time;
`

func (q *Queries) GetScheduleEntries(ctx context.Context, userID string) ([]ScheduleEntry, error) {
	rows, err := q.db.QueryContext(ctx, getScheduleEntries, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ScheduleEntry
	for rows.Next() {
		var i ScheduleEntry
		if err := rows.Scan(
			&i.UserID,
			&i.Weekday,
			&i.SubjectName,
			&i.StartTime,
			&i.EndTime,
			&i.Location,
			&i.Instructor,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteCalendarEvents = `-- name: DeleteCalendarEvents :exec
delete from calendar_event where user_id = ?;
`

func (q *Queries) DeleteCalendarEvents(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx, deleteCalendarEvents, userID)
	return err
}

const addCalendarEvent = `-- name: AddCalendarEvent :exec
insert into calendar_event(user_id, title, date, category, color, description)
values (?, ?, ?, ?, ?, ?);
`

func (q *Queries) AddCalendarEvent(ctx context.Context, arg CalendarEvent) error {
	_, err := q.db.ExecContext(ctx, addCalendarEvent,
		arg.UserID,
		arg.Title,
		arg.Date,
		arg.Category,
		arg.Color,
		arg.Description,
	)
	return err
}

const getCalendarEvents = `-- name: GetCalendarEvents :many
select * from calendar_event where user_id = ? order by date, rowid;
`

func (q *Queries) GetCalendarEvents(ctx context.Context, userID string) ([]CalendarEvent, error) {
	rows, err := q.db.QueryContext(ctx, getCalendarEvents, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CalendarEvent
	for rows.Next() {
		var i CalendarEvent
		if err := rows.Scan(
			&i.UserID,
			&i.Title,
			&i.Date,
			&i.Category,
			&i.Color,
			&i.Description,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteEnrolledSubjects = `-- name: DeleteEnrolledSubjects :exec
delete from enrolled_subject where user_id = ?;
`

func (q *Queries) DeleteEnrolledSubjects(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx, deleteEnrolledSubjects, userID)
	return err
}

const addEnrolledSubject = `-- name: AddEnrolledSubject :exec
insert into enrolled_subject(user_id, subject_name, status, period, instructor, start_date)
values (?, ?, ?, ?, ?, ?);
`

func (q *Queries) AddEnrolledSubject(ctx context.Context, arg EnrolledSubject) error {
	_, err := q.db.ExecContext(ctx, addEnrolledSubject,
		arg.UserID,
		arg.SubjectName,
		arg.Status,
		arg.Period,
		arg.Instructor,
		arg.StartDate,
	)
	return err
}

const getEnrolledSubjects = `-- name: GetEnrolledSubjects :many
select * from enrolled_subject where user_id = ? order by rowid;
`

func (q *Queries) GetEnrolledSubjects(ctx context.Context, userID string) ([]EnrolledSubject, error) {
	rows, err := q.db.QueryContext(ctx, getEnrolledSubjects, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []EnrolledSubject
	for rows.Next() {
		var i EnrolledSubject
		if err := rows.Scan(
			&i.UserID,
			&i.SubjectName,
			&i.Status,
			&i.Period,
			&i.Instructor,
			&i.StartDate,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countRecords = `-- name: CountRecords :one
select
    (select count(*) from grade where grade.user_id = ?1) +
    (select count(*) from attendance where attendance.user_id = ?1) +
    (select count(*) from schedule_entry where schedule_entry.user_id = ?1) +
    (select count(*) from calendar_event where calendar_event.user_id = ?1) +
    (select count(*) from enrolled_subject where enrolled_subject.user_id = ?1);
`

func (q *Queries) CountRecords(ctx context.Context, userID string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countRecords, userID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const setSyncState = `-- name: SetSyncState :exec
insert into sync_state(user_id, portal, last_sync_at)
values (?, ?, ?)
on conflict (user_id, portal) do update set last_sync_at = excluded.last_sync_at;
`

type SetSyncStateParams struct {
	UserID     string
	Portal     string
	LastSyncAt int64
}

func (q *Queries) SetSyncState(ctx context.Context, arg SetSyncStateParams) error {
	_, err := q.db.ExecContext(ctx, setSyncState, arg.UserID, arg.Portal, arg.LastSyncAt)
	return err
}

const getSyncState = `-- name: GetSyncState :one
select last_sync_at from sync_state where user_id = ? and portal = ?;
`

type GetSyncStateParams struct {
	UserID string
	Portal string
}

func (q *Queries) GetSyncState(ctx context.Context, arg GetSyncStateParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, getSyncState, arg.UserID, arg.Portal)
	var last_sync_at int64
	err := row.Scan(&last_sync_at)
	return last_sync_at, err
}

const getCredential = `-- name: GetCredential :one
select * from credential where user_id = ?;
`

func (q *Queries) GetCredential(ctx context.Context, userID string) (Credential, error) {
	row := q.db.QueryRowContext(ctx, getCredential, userID)
	var i Credential
	err := row.Scan(
		&i.UserID,
		&i.LoginID,
		&i.NationalID,
		&i.SecretOverride,
	)
	return i, err
}

const setCredential = `-- name: SetCredential :exec
insert into credential(user_id, login_id, national_id, secret_override)
values (?, ?, ?, ?)
on conflict (user_id) do update set
    login_id = excluded.login_id,
    national_id = excluded.national_id,
    secret_override = excluded.secret_override;
`

func (q *Queries) SetCredential(ctx context.Context, arg Credential) error {
	_, err := q.db.ExecContext(ctx, setCredential,
		arg.UserID,
		arg.LoginID,
		arg.NationalID,
		arg.SecretOverride,
	)
	return err
}
