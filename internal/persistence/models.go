package persistence

import "time"

// DateLayout is the storage format of course dates.
const DateLayout = "2006-01-02"

// Course represents a training program row. Dates are civil dates in DateLayout
// so that the stored value never depends on the server time zone.
type Course struct {
	ID           string
	Name         string
	CourseNumber string
	StartDate    string
	EndDate      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session represents a recorded class meeting row with its attendees.
type Session struct {
	ID          string
	CourseID    string
	TeacherID   string
	Start       time.Time
	End         time.Time
	Type        string
	Content     string
	AttendeeIDs []string
	CreatorID   *string
	CreatedBy   *string
	VehicleID   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Student represents an enrolled student row.
type Student struct {
	ID        string
	CourseID  string
	Name      string
	CreatedAt time.Time
}
