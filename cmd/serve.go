package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/credentials"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/enrollment"
	"github.com/kozaktomas/face-attendance/internal/station"
	"github.com/kozaktomas/face-attendance/internal/web"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the attendance HTTP API.
The capture station endpoints (/api/v1/attendance/...) are open to the kiosk;
the people and gallery endpoints require an administrator session.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("session-secret", "", "Secret for signing session cookies (overrides WEB_SESSION_SECRET)")
	serveCmd.Flags().Bool("no-face-check", false, "Accept enrollment images without checking they contain a face")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		if p, err := strconv.Atoi(envPort); err == nil && p > 0 {
			port = p
		}
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if secret := mustGetString(cmd, "session-secret"); secret != "" {
		a.cfg.Admin.SessionSecret = secret
	}

	creds, err := credentials.Load(a.cfg.Admin.CredentialsFile)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	if len(creds.Users()) == 0 {
		fmt.Printf("Warning: no administrators in %s, run 'attendance admin set-password <username>'\n", creds.Path())
	}

	g, report, err := a.buildGallery(ctx, false)
	if err != nil {
		return err
	}
	fmt.Printf("Gallery: %d of %d images loaded\n", report.Loaded, report.Images)

	st := station.New(g, a.encoder, a.ledger).WithArchive(a.cfg.Storage.CapturedDir)
	if a.cfg.Camera.URL != "" {
		src, err := camera.Open(ctx, a.cfg.Camera.URL, constants.CameraTimeout)
		if err != nil {
			return err
		}
		defer src.Close()
		st.WithCamera(src)
		fmt.Printf("Camera: %s\n", a.cfg.Camera.URL)
	}

	svc := a.enrollment(mustGetBool(cmd, "no-face-check")).
		WithGallery(func() enrollment.Gallery { return st.Gallery() })

	deps := web.Deps{
		Ledger:      a.ledger,
		Station:     st,
		Enrollment:  svc,
		Loader:      a.loader(),
		Credentials: creds,
	}
	var sessionRepo middleware.SessionRepository
	if a.pool != nil {
		deps.Events = a.events
		sessionRepo = postgres.NewSessionRepository(a.pool)
		fmt.Println("Ledger and sessions stored in PostgreSQL")
	} else {
		fmt.Printf("Ledger: %s\n", a.cfg.Storage.LedgerPath)
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(a.cfg, deps, port, host, sessionRepo)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting attendance API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
