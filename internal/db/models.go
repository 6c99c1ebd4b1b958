package db

type LmsDocument struct {
	UserID        string
	CourseName    string
	FormattedText string
	CapturedAt    int64
}

type Grade struct {
	UserID      string
	SubjectName string
	Va1         float64
	Va2         float64
	Va3         float64
	Average     float64
	Status      string
}

type Attendance struct {
	UserID        string
	SubjectName   string
	Absences      int64
	TotalClasses  int64
	AttendancePct float64
}

type ScheduleEntry struct {
	UserID      string
	Weekday     int64
	SubjectName string
	StartTime   string
	EndTime     string
	Location    string
	Instructor  string
}

type CalendarEvent struct {
	UserID      string
	Title       string
	Date        string
	Category    string
	Color       string
	Description string
}

type EnrolledSubject struct {
	UserID      string
	SubjectName string
	Status      string
	Period      string
	Instructor  string
	StartDate   string
}

type SyncState struct {
	UserID     string
	Portal     string
	LastSyncAt int64
}

type Credential struct {
	UserID         string
	LoginID        string
	NationalID     string
	SecretOverride string
}
