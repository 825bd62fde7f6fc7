package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kozaktomas/face-attendance/internal/ledger"
)

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// printPeople prints the ledger as a table.
func printPeople(people []ledger.Person) {
	if len(people) == 0 {
		fmt.Println("No people enrolled")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tROLL NO\tBRANCH\tMOBILE NO\tLAST SEEN\tPRESENT\tABSENT\tATTENDANCE")
	fmt.Fprintln(w, "----\t-------\t------\t---------\t---------\t-------\t------\t----------")
	total := 0
	for _, p := range people {
		seen := p.Date
		if seen == "" {
			seen = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%.2f%%\n",
			p.Name, p.RollNo, p.Branch, p.MobileNo, seen, p.DaysPresent, p.DaysAbsent, p.AttendancePercentage())
		total += p.DaysPresent
	}
	w.Flush()
	fmt.Printf("\n%d people, total attendance %d\n", len(people), total)
}

// printPerson prints the details of one person.
func printPerson(p ledger.Person) {
	fmt.Printf("Name:         %s\n", p.Name)
	fmt.Printf("Roll No:      %s\n", p.RollNo)
	fmt.Printf("Branch:       %s\n", p.Branch)
	fmt.Printf("Mobile No:    %s\n", p.MobileNo)
	if p.Date != "" {
		fmt.Printf("Last seen:    %s\n", p.Date)
	}
	fmt.Printf("Days present: %d\n", p.DaysPresent)
	fmt.Printf("Days absent:  %d\n", p.DaysAbsent)
	if len(p.AbsentDates) > 0 {
		fmt.Printf("Absent on:    %s\n", strings.Join(p.AbsentDates, ", "))
	}
	fmt.Printf("Attendance:   %.2f%%\n", p.AttendancePercentage())
}
