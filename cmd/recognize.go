package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/station"
	"github.com/spf13/cobra"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image>",
	Short: "Recognize the face in an image and mark attendance",
	Long: `Build the gallery from the dataset directory, match the first face found
in the image and credit the recognized person with presence for today.

Examples:
  attendance recognize frame.jpg
  attendance recognize frame.jpg --json`,
	Args: cobra.ExactArgs(1),
	RunE: runRecognize,
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture a frame from the camera and mark attendance",
	Long: `Capture a frame from the camera (CAMERA_URL or --camera), recognize the
face in it and mark attendance. With --watch the camera is polled every
--interval (default CAPTURE_INTERVAL, 2s) until interrupted.

Examples:
  attendance capture
  attendance capture --watch
  attendance capture --watch --interval 500ms
  attendance capture --camera http://192.168.1.20/snapshot.jpg`,
	Args: cobra.NoArgs,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(recognizeCmd, captureCmd)

	recognizeCmd.Flags().Bool("json", false, "Output as JSON")

	captureCmd.Flags().String("camera", "", "Snapshot URL or frame file (overrides CAMERA_URL)")
	captureCmd.Flags().Bool("watch", false, "Keep capturing until interrupted")
	captureCmd.Flags().Duration("interval", 0, "Capture period with --watch (overrides CAPTURE_INTERVAL)")
	captureCmd.Flags().Bool("json", false, "Output as JSON")
}

func runRecognize(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jsonOutput := mustGetBool(cmd, "json")

	frame, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}

	st, a, err := newStation(ctx, jsonOutput)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := st.Recognize(ctx, frame)
	if err != nil {
		return err
	}
	return printResult(res, jsonOutput)
}

func runCapture(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	watch := mustGetBool(cmd, "watch")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, a, err := newStation(ctx, jsonOutput)
	if err != nil {
		return err
	}
	defer a.Close()

	target := mustGetString(cmd, "camera")
	if target == "" {
		target = a.cfg.Camera.URL
	}
	src, err := camera.Open(ctx, target, constants.CameraTimeout)
	if err != nil {
		return err
	}
	defer src.Close()
	st.WithCamera(src)

	if !watch {
		res, err := st.Capture(ctx)
		if err != nil {
			return err
		}
		return printResult(res, jsonOutput)
	}

	interval := watchInterval(mustGetDuration(cmd, "interval"), a.cfg.Camera.Interval)
	if !jsonOutput {
		fmt.Printf("Capturing every %s, press Ctrl+C to stop\n", interval)
	}
	return st.Watch(ctx, interval, func(res station.Result, err error) {
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Fprintf(os.Stderr, "Capture failed: %v\n", err)
			return
		}
		// Idle frames are only interesting in JSON mode.
		if res.Status == station.StatusNoFace && !jsonOutput {
			return
		}
		if err := printResult(res, jsonOutput); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		}
	})
}

// newStation builds the gallery and returns a station over it.
func newStation(ctx context.Context, quiet bool) (*station.Station, *app, error) {
	a, err := newApp(ctx)
	if err != nil {
		return nil, nil, err
	}
	g, report, err := a.buildGallery(ctx, quiet)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	if !quiet {
		fmt.Printf("Gallery: %d of %d images loaded\n", report.Loaded, report.Images)
	}
	st := station.New(g, a.encoder, a.ledger).WithArchive(a.cfg.Storage.CapturedDir)
	return st, a, nil
}

// watchInterval picks the --interval flag when given, CAPTURE_INTERVAL otherwise.
func watchInterval(flag, configured time.Duration) time.Duration {
	if flag > 0 {
		return flag
	}
	if configured > 0 {
		return configured
	}
	return 2 * time.Second
}

func printResult(res station.Result, jsonOutput bool) error {
	if jsonOutput {
		return outputJSON(res)
	}
	fmt.Print(formatResult(res))
	return nil
}

// formatResult renders a recognition result for the terminal.
func formatResult(res station.Result) string {
	var b strings.Builder
	b.WriteString(res.Message + "\n")
	if res.Distance != nil {
		fmt.Fprintf(&b, "Distance: %.4f\n", *res.Distance)
	}
	if res.Status == station.StatusMarked || res.Status == station.StatusAlreadyMarked {
		fmt.Fprintf(&b, "Total attendance: %d\n", res.TotalAttendance)
	}
	if res.FramePath != "" {
		fmt.Fprintf(&b, "Frame saved to %s\n", res.FramePath)
	}
	return b.String()
}
