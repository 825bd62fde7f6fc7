package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Register a new person with a reference image",
	Long: `Register a new person in the attendance ledger and store their reference
image in the dataset directory. The image is taken from --image or, with
--camera, captured from CAMERA_URL.

Examples:
  attendance enroll --name "Anita Rao" --roll-no 42 --branch CSE --mobile-no 9000000000 --image anita.jpg
  attendance enroll --name "Ravi" --roll-no 7 --branch ECE --mobile-no 9000000001 --camera`,
	Args: cobra.NoArgs,
	RunE: runEnroll,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a person and their reference image",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the attendance ledger",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one person",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var updateCmd = &cobra.Command{
	Use:   "update <name>",
	Short: "Edit the roll number, branch or mobile number of a person",
	Long: `Edit the administrator-provided details of a person. Fields left out keep
their current value.

Example:
  attendance update "Anita Rao" --branch IT`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

var absentCmd = &cobra.Command{
	Use:   "absent <name>",
	Short: "Record an absence",
	Long: `Record an absence for a person, today unless --date is given. Recording
the same day twice counts once; a day the person was seen cannot be marked
absent.`,
	Args: cobra.ExactArgs(1),
	RunE: runAbsent,
}

func init() {
	rootCmd.AddCommand(enrollCmd, deleteCmd, listCmd, showCmd, updateCmd, absentCmd)

	enrollCmd.Flags().String("name", "", "Full name, also the image file name")
	enrollCmd.Flags().String("roll-no", "", "Roll number")
	enrollCmd.Flags().String("branch", "", "Branch")
	enrollCmd.Flags().String("mobile-no", "", "Mobile number")
	enrollCmd.Flags().String("image", "", "Reference image file")
	enrollCmd.Flags().Bool("camera", false, "Capture the reference image from CAMERA_URL")
	enrollCmd.Flags().Bool("no-face-check", false, "Store the image without checking it contains a face")
	enrollCmd.Flags().Bool("json", false, "Output as JSON")

	listCmd.Flags().Bool("json", false, "Output as JSON")
	showCmd.Flags().Bool("json", false, "Output as JSON")

	updateCmd.Flags().String("roll-no", "", "New roll number")
	updateCmd.Flags().String("branch", "", "New branch")
	updateCmd.Flags().String("mobile-no", "", "New mobile number")

	absentCmd.Flags().String("date", "", "Day of the absence (YYYY-MM-DD), defaults to today")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	imagePath := mustGetString(cmd, "image")
	useCamera := mustGetBool(cmd, "camera")
	if (imagePath == "") == !useCamera {
		return errors.New("exactly one of --image or --camera is required")
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var data []byte
	if useCamera {
		data, err = captureFrame(ctx, a.cfg.Camera.URL)
	} else {
		data, err = os.ReadFile(imagePath)
	}
	if err != nil {
		return err
	}

	e := ledger.Enrollment{
		Name: mustGetString(cmd, "name"),
		Details: ledger.Details{
			RollNo:   mustGetString(cmd, "roll-no"),
			Branch:   mustGetString(cmd, "branch"),
			MobileNo: mustGetString(cmd, "mobile-no"),
		},
	}
	p, err := a.enrollment(mustGetBool(cmd, "no-face-check")).Enroll(ctx, e, data)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		return outputJSON(ledger.NewRecord(p))
	}
	fmt.Printf("%s has been registered.\n", p.Name)
	fmt.Printf("Reference image: %s\n", a.images.Path(p.Name))
	return nil
}

// captureFrame grabs one frame from the configured camera.
func captureFrame(ctx context.Context, target string) ([]byte, error) {
	src, err := camera.Open(ctx, target, constants.CameraTimeout)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return src.Frame(ctx)
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.enrollment(true).Delete(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("%s has been deleted.\n", args[0])
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	people, err := a.ledger.List(ctx)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		records := make([]ledger.Record, 0, len(people))
		for _, p := range people {
			records = append(records, ledger.NewRecord(p))
		}
		return outputJSON(records)
	}
	printPeople(people)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.ledger.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if mustGetBool(cmd, "json") {
		return outputJSON(ledger.NewRecord(p))
	}
	printPerson(p)

	if a.events != nil {
		events, err := a.events.Events(ctx, p.Name)
		if err != nil {
			return err
		}
		if len(events) > 0 {
			fmt.Println("\nEvents:")
			for _, e := range events {
				fmt.Printf("  %s  %-7s  recorded %s\n", e.Day, e.Kind, e.RecordedAt.Local().Format(time.DateTime))
			}
		}
	}
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	current, err := a.ledger.Get(ctx, args[0])
	if err != nil {
		return err
	}
	d := ledger.Details{RollNo: current.RollNo, Branch: current.Branch, MobileNo: current.MobileNo}
	if cmd.Flags().Changed("roll-no") {
		d.RollNo = mustGetString(cmd, "roll-no")
	}
	if cmd.Flags().Changed("branch") {
		d.Branch = mustGetString(cmd, "branch")
	}
	if cmd.Flags().Changed("mobile-no") {
		d.MobileNo = mustGetString(cmd, "mobile-no")
	}

	p, err := a.ledger.Update(ctx, args[0], d)
	if err != nil {
		return err
	}
	fmt.Printf("Successfully updated %s.\n", p.Name)
	return nil
}

func runAbsent(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	date := mustGetString(cmd, "date")
	if date == "" {
		date = a.ledger.Today()
	}
	day, err := ledger.ParseDay(date)
	if err != nil {
		return fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", date)
	}

	p, changed, err := a.ledger.MarkAbsent(ctx, args[0], day)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Printf("%s is already marked absent on %s.\n", p.Name, date)
		return nil
	}
	fmt.Printf("%s marked absent on %s (%d days absent, attendance %.2f%%).\n",
		p.Name, date, p.DaysAbsent, p.AttendancePercentage())
	return nil
}
