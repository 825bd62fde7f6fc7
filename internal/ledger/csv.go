package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// CSV column names, in the order they are written.
const (
	ColName        = "Name"
	ColRollNo      = "Roll No"
	ColBranch      = "Branch"
	ColMobileNo    = "Mobile No"
	ColDate        = "Date"
	ColDaysPresent = "Days Present"
	ColDaysAbsent  = "Days Absent"
	ColAbsentDates = "Absent Dates"
	ColPercentage  = "Attendance Percentage"
)

// Header is the header row written by CSVStore.
var Header = []string{
	ColName, ColRollNo, ColBranch, ColMobileNo, ColDate,
	ColDaysPresent, ColDaysAbsent, ColAbsentDates, ColPercentage,
}

// CSVStore keeps the ledger in a single CSV file that is rewritten in full on
// every Save. Columns are matched by header name so files lacking the Date or
// Attendance Percentage column still load. The stored percentage is ignored.
type CSVStore struct {
	path string
}

// NewCSVStore creates a store backed by the file at path.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the ledger file location.
func (s *CSVStore) Path() string {
	return s.path
}

// Load reads every row. A missing file is an empty ledger.
func (s *CSVStore) Load(_ context.Context) ([]Person, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []Person{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	return ReadCSV(f)
}

// Save rewrites the whole file, creating parent directories as needed. The
// new content is written to a temporary file and renamed into place.
func (s *CSVStore) Save(_ context.Context, people []Person) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := WriteCSV(tmp, people); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

// ReadCSV parses ledger rows from r. The first record must be the header.
func ReadCSV(r io.Reader) ([]Person, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []Person{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	if _, ok := cols[ColName]; !ok {
		return nil, fmt.Errorf("ledger header has no %q column", ColName)
	}

	people := []Person{}
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read ledger line %d: %w", line, err)
		}

		cell := func(col string) string {
			i, ok := cols[col]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		// Missing-value markers only mean "empty" in the computed columns;
		// "Nan" is a valid name.
		value := func(col string) string {
			return cleanCell(cell(col))
		}

		name := cell(ColName)
		if name == "" {
			continue
		}
		present, err := parseCount(value(ColDaysPresent))
		if err != nil {
			return nil, fmt.Errorf("ledger line %d: %s: %w", line, ColDaysPresent, err)
		}
		absent, err := parseCount(value(ColDaysAbsent))
		if err != nil {
			return nil, fmt.Errorf("ledger line %d: %s: %w", line, ColDaysAbsent, err)
		}

		people = append(people, Person{
			Name:        name,
			RollNo:      cell(ColRollNo),
			Branch:      cell(ColBranch),
			MobileNo:    cell(ColMobileNo),
			Date:        value(ColDate),
			DaysPresent: present,
			DaysAbsent:  absent,
			AbsentDates: parseDates(value(ColAbsentDates)),
		})
	}
	return people, nil
}

// WriteCSV writes the header and one row per person to w.
func WriteCSV(w io.Writer, people []Person) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return fmt.Errorf("write ledger header: %w", err)
	}
	for _, p := range people {
		row := []string{
			p.Name,
			p.RollNo,
			p.Branch,
			p.MobileNo,
			p.Date,
			strconv.Itoa(p.DaysPresent),
			strconv.Itoa(p.DaysAbsent),
			strings.Join(normalizeDates(p.AbsentDates), constants.AbsentDatesSeparator),
			strconv.FormatFloat(p.AttendancePercentage(), 'f', 2, 64),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write ledger row %q: %w", p.Name, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}
	return nil
}

// cleanCell maps the pandas missing-value markers to "".
func cleanCell(s string) string {
	switch strings.ToLower(s) {
	case "nan", "none", "null":
		return ""
	}
	return s
}

// parseCount accepts "3" as well as the "3.0" pandas writes for float columns.
func parseCount(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative count %d", n)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	return int(f), nil
}

func parseDates(s string) []string {
	if s == "" {
		return nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == ',' || r == '|'
	})
	dates := make([]string, 0, len(fields))
	for _, f := range fields {
		dates = append(dates, strings.TrimSpace(f))
	}
	return normalizeDates(dates)
}
