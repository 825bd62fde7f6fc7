package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Build the face gallery and report what was loaded",
	Long: `Encode every reference image in the dataset directory and report which
people are matchable, which images contain no face and which could not be
processed. With DATABASE_URL set, embeddings are cached in PostgreSQL.`,
	Args: cobra.NoArgs,
	RunE: runGallery,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.Flags().Bool("json", false, "Output as JSON")
}

func runGallery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jsonOutput := mustGetBool(cmd, "json")

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	g, report, err := a.buildGallery(ctx, jsonOutput)
	if err != nil {
		return err
	}
	if jsonOutput {
		return outputJSON(report)
	}

	fmt.Printf("Loaded %d of %d images in %s (%d from cache), tolerance %.2f\n",
		report.Loaded, report.Images, formatDuration(time.Since(start)), report.Cached, g.Tolerance())

	if len(report.Gallery) > 0 {
		fmt.Println("\nMatchable:")
		for _, name := range report.Gallery {
			fmt.Printf("  %s\n", name)
		}
	}
	if len(report.NoFace) > 0 {
		fmt.Println("\nNo face found:")
		for _, name := range report.NoFace {
			fmt.Printf("  %s\n", name)
		}
	}
	if len(report.Failed) > 0 {
		fmt.Println("\nFailed:")
		names := make([]string, 0, len(report.Failed))
		for name := range report.Failed {
			names = append(names, name)
		}
		slices.Sort(names)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, name := range names {
			fmt.Fprintf(w, "  %s\t%s\n", name, report.Failed[name])
		}
		w.Flush()
	}
	return nil
}
