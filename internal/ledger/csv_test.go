package ledger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCSVStore_MissingFileIsEmpty(t *testing.T) {
	store := NewCSVStore(filepath.Join(t.TempDir(), "attendance_logs", "attendance.csv"))

	people, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(people) != 0 {
		t.Errorf("expected empty ledger, got %d rows", len(people))
	}
}

func TestCSVStore_SaveCreatesFileAndDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attendance_logs", "attendance.csv")
	store := NewCSVStore(path)
	ctx := context.Background()

	in := []Person{
		{Name: "Anita", RollNo: "42", Branch: "CSE", MobileNo: "9000000000", Date: "2026-03-02", DaysPresent: 2, DaysAbsent: 1, AbsentDates: []string{"2026-02-27"}},
		{Name: "Rahul"},
	}
	if err := store.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading ledger: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if lines[0] != "Name,Roll No,Branch,Mobile No,Date,Days Present,Days Absent,Absent Dates,Attendance Percentage" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if lines[1] != "Anita,42,CSE,9000000000,2026-03-02,2,1,2026-02-27,66.67" {
		t.Errorf("unexpected row %q", lines[1])
	}
	if lines[2] != "Rahul,,,,,0,0,,0.00" {
		t.Errorf("unexpected row %q", lines[2])
	}

	out, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 2 || out[0].Name != "Anita" || out[0].DaysPresent != 2 || out[0].AbsentDates[0] != "2026-02-27" {
		t.Errorf("unexpected rows after reload: %+v", out)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the ledger file, found %d entries", len(entries))
	}
}

func TestReadCSV_LegacyLayouts(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Person
	}{
		{
			name: "written by the capture screen (no percentage column)",
			input: "Name,Roll No,Branch,Mobile No,Date,Days Present,Days Absent,Absent Dates\n" +
				"Anita,,,,2026-03-02,3,0,\n",
			expected: Person{Name: "Anita", Date: "2026-03-02", DaysPresent: 3},
		},
		{
			name: "written by the admin panel (no date column, float counts)",
			input: "Name,Roll No,Branch,Mobile No,Days Present,Days Absent,Absent Dates,Attendance Percentage\n" +
				"Rahul,7,ECE,9111111111,4.0,1.0,,80.0\n",
			expected: Person{Name: "Rahul", RollNo: "7", Branch: "ECE", MobileNo: "9111111111", DaysPresent: 4, DaysAbsent: 1},
		},
		{
			name: "spaced header",
			input: "Name, Roll No, Branch, Mobile No, Date, Days Present, Days Absent, Absent Dates\n" +
				"Meera, 3, IT, 9222222222, 2026-03-01, 1, 2, 2026-02-20;2026-02-19\n",
			expected: Person{Name: "Meera", RollNo: "3", Branch: "IT", MobileNo: "9222222222", Date: "2026-03-01", DaysPresent: 1, DaysAbsent: 2, AbsentDates: []string{"2026-02-19", "2026-02-20"}},
		},
		{
			name: "pandas nan markers in computed columns",
			input: "Name,Roll No,Branch,Mobile No,Date,Days Present,Days Absent,Absent Dates\n" +
				"Meera,3,IT,9222222222,nan,1.0,NaN,nan\n",
			expected: Person{Name: "Meera", RollNo: "3", Branch: "IT", MobileNo: "9222222222", DaysPresent: 1},
		},
		{
			name: "marker words are kept in name and detail columns",
			input: "Name,Roll No,Branch,Mobile No,Days Present\n" +
				"Nan,None,null,NA,2\n",
			expected: Person{Name: "Nan", RollNo: "None", Branch: "null", MobileNo: "NA", DaysPresent: 2},
		},
		{
			name:     "stale stored percentage is ignored",
			input:    "Name,Days Present,Days Absent,Attendance Percentage\nZoe,1,1,99.0\n",
			expected: Person{Name: "Zoe", DaysPresent: 1, DaysAbsent: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			people, err := ReadCSV(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ReadCSV: %v", err)
			}
			if len(people) != 1 {
				t.Fatalf("expected 1 row, got %d", len(people))
			}
			got := people[0]
			if got.Name != tt.expected.Name || got.RollNo != tt.expected.RollNo || got.Branch != tt.expected.Branch ||
				got.MobileNo != tt.expected.MobileNo || got.Date != tt.expected.Date ||
				got.DaysPresent != tt.expected.DaysPresent || got.DaysAbsent != tt.expected.DaysAbsent {
				t.Errorf("got %+v, want %+v", got, tt.expected)
			}
			if strings.Join(got.AbsentDates, ";") != strings.Join(tt.expected.AbsentDates, ";") {
				t.Errorf("absent dates = %v, want %v", got.AbsentDates, tt.expected.AbsentDates)
			}
		})
	}
}

func TestReadCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no name column", "Roll No,Branch\n1,CSE\n"},
		{"bad count", "Name,Days Present\nAnita,many\n"},
		{"negative count", "Name,Days Absent\nAnita,-1\n"},
		{"fractional count", "Name,Days Present\nAnita,1.5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadCSV(strings.NewReader(tt.input)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestReadCSV_EmptyInputAndBlankNames(t *testing.T) {
	people, err := ReadCSV(strings.NewReader(""))
	if err != nil || len(people) != 0 {
		t.Errorf("empty input: got %v, %v", people, err)
	}

	people, err = ReadCSV(strings.NewReader("Name,Days Present\n,3\nAnita,1\n"))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(people) != 1 || people[0].Name != "Anita" {
		t.Errorf("rows without a name must be skipped, got %+v", people)
	}
}

func TestWriteCSV_QuotesAndSortsDates(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []Person{{Name: "Sharma, Anita", DaysAbsent: 2, AbsentDates: []string{"2026-02-20", "2026-02-19", "2026-02-20"}}})
	if err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if !strings.Contains(buf.String(), `"Sharma, Anita",,,,,0,2,2026-02-19;2026-02-20,0.00`) {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestCSVStore_NamesThatLookLikeMissingValues(t *testing.T) {
	store := NewCSVStore(filepath.Join(t.TempDir(), "attendance.csv"))
	clock := &fakeClock{now: time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)}
	l := New(store, clock.Now)
	ctx := context.Background()

	for _, name := range []string{"Nan", "None"} {
		e := Enrollment{Name: name, Details: Details{RollNo: "11", Branch: "CSE", MobileNo: "9333333333"}}
		if _, err := l.Enroll(ctx, e); err != nil {
			t.Fatalf("Enroll(%q): %v", name, err)
		}
	}

	people, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(people) != 2 || people[0].Name != "Nan" || people[1].Name != "None" {
		t.Fatalf("expected both people after reload, got %+v", people)
	}

	for day := 0; day < 3; day++ {
		p, outcome, err := l.MarkPresent(ctx, "Nan")
		if err != nil {
			t.Fatalf("MarkPresent: %v", err)
		}
		if outcome != OutcomeMarked {
			t.Errorf("day %d: expected marked, got %s", day, outcome)
		}
		if p.DaysPresent != day+1 || p.RollNo != "11" {
			t.Errorf("day %d: unexpected row %+v", day, p)
		}
		clock.advance(1)
	}
}
