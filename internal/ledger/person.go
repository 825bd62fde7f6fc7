package ledger

import (
	"math"
	"slices"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// Person is one row of the attendance ledger. Name is the unique key.
type Person struct {
	Name        string   `json:"name"`
	RollNo      string   `json:"roll_no"`
	Branch      string   `json:"branch"`
	MobileNo    string   `json:"mobile_no"`
	Date        string   `json:"date"` // last day credited as present, YYYY-MM-DD
	DaysPresent int      `json:"days_present"`
	DaysAbsent  int      `json:"days_absent"`
	AbsentDates []string `json:"absent_dates"`
}

// AttendancePercentage returns present / (present + absent) * 100 rounded to
// two decimals, or 0 when no day has been recorded yet.
func (p Person) AttendancePercentage() float64 {
	total := p.DaysPresent + p.DaysAbsent
	if total <= 0 {
		return 0
	}
	pct := float64(p.DaysPresent) / float64(total) * 100
	return math.Round(pct*100) / 100
}

// PresentOn reports whether the person was last credited on day.
func (p Person) PresentOn(day string) bool {
	return p.Date != "" && p.Date == day
}

// AbsentOn reports whether day is recorded as an absence.
func (p Person) AbsentOn(day string) bool {
	_, found := slices.BinarySearch(p.AbsentDates, day)
	return found
}

// Details are the administrator-provided fields of a person.
type Details struct {
	RollNo   string `json:"roll_no" validate:"required,max=64"`
	Branch   string `json:"branch" validate:"required,max=128"`
	MobileNo string `json:"mobile_no" validate:"required,max=32"`
}

// Enrollment is the input of Ledger.Enroll.
type Enrollment struct {
	Name string `json:"name" validate:"required,max=128"`
	Details
}

// Record is a Person together with the derived percentage, used for output.
type Record struct {
	Person
	Percentage float64 `json:"attendance_percentage"`
}

// NewRecord wraps a person with its computed attendance percentage.
func NewRecord(p Person) Record {
	return Record{Person: p, Percentage: p.AttendancePercentage()}
}

// FormatDay renders t as a ledger date in t's location.
func FormatDay(t time.Time) string {
	return t.Format(constants.DateLayout)
}

// ParseDay parses a ledger date.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(constants.DateLayout, s)
}

// normalizeDates sorts and deduplicates dates, dropping empty entries.
func normalizeDates(dates []string) []string {
	out := slices.DeleteFunc(slices.Clone(dates), func(d string) bool { return d == "" })
	slices.Sort(out)
	return slices.Compact(out)
}
