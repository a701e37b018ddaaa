package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/codenamed22/DupliGone/internal/config"
	"github.com/codenamed22/DupliGone/internal/constants"
	"github.com/codenamed22/DupliGone/internal/pipeline"
	"github.com/codenamed22/DupliGone/internal/source"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <folder>",
	Short: "Find near-duplicate photos in a folder",
	Long: `Analyze every photo in a folder as one batch: group near-duplicates,
pick the best photo of every group and list the rest as deletion candidates.
Nothing is deleted; the command only reports.

Examples:
  # Analyze a folder
  dupligone analyze ~/Pictures/holiday

  # Include subfolders and write the full report as JSON
  dupligone analyze -r ~/Pictures --json --output report.json

  # Group more aggressively
  dupligone analyze --strictness 1.0 ~/Pictures/holiday`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().BoolP("recursive", "r", false, "Include photos in subfolders")
	analyzeCmd.Flags().Bool("json", false, "Output the full report as JSON")
	analyzeCmd.Flags().StringP("output", "o", "", "Write JSON output to file instead of stdout")
	analyzeCmd.Flags().Bool("abort-on-unreadable", false, "Fail the batch when a photo cannot be read")
	analyzeCmd.Flags().Int("max-batch-size", 0, "Maximum number of photos in one run (0 = config default)")
	analyzeCmd.Flags().Int("concurrency", 0, "Number of parallel workers (0 = config default)")
	analyzeCmd.Flags().Int("min-neighbors", 0, "Minimum group density, the photo itself included (0 = config default)")
	analyzeCmd.Flags().Float64("strictness", 0, "Fraction of the detected knee used as threshold (0 = config default)")
}

// applyAnalyzeFlags overrides configuration values with explicitly set flags.
func applyAnalyzeFlags(cmd *cobra.Command, cfg *config.Config) error {
	if mustGetBool(cmd, "abort-on-unreadable") {
		cfg.Analysis.AbortOnUnreadable = true
	}
	if v := mustGetInt(cmd, "max-batch-size"); v > 0 {
		cfg.Analysis.MaxBatchSize = v
	}
	if v := mustGetInt(cmd, "concurrency"); v > 0 {
		cfg.Analysis.Concurrency = v
	}
	if v := mustGetInt(cmd, "min-neighbors"); v > 0 {
		cfg.Analysis.MinNeighbors = v
	}
	if v := mustGetFloat64(cmd, "strictness"); v > 0 {
		cfg.Tuner.Strictness = v
	}
	return cfg.Validate()
}

// newExtractProgressBar creates a progress bar for feature extraction, or nil if JSON output.
func newExtractProgressBar(count int, jsonOutput bool) *progressbar.ProgressBar {
	if jsonOutput {
		return nil
	}
	return progressbar.NewOptions(count,
		progressbar.OptionSetDescription("Analyzing photos"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	outputPath := mustGetString(cmd, "output")
	recursive := mustGetBool(cmd, "recursive")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := applyAnalyzeFlags(cmd, cfg); err != nil {
		return err
	}

	images, err := source.Dir(args[0], recursive)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return fmt.Errorf("no photos found in %s", args[0])
	}
	if len(images) > cfg.Analysis.MaxBatchSize {
		return fmt.Errorf("found %d photos in %s, more than the limit of %d (raise it with --max-batch-size)",
			len(images), args[0], cfg.Analysis.MaxBatchSize)
	}

	detector, err := cfg.FaceDetector()
	if err != nil {
		return fmt.Errorf("loading face detector: %w", err)
	}
	if c, ok := detector.(io.Closer); ok {
		defer c.Close()
	}

	if !jsonOutput {
		fmt.Printf("Found %d photos in %s\n", len(images), args[0])
	}

	bar := newExtractProgressBar(len(images), jsonOutput)
	analyzer := pipeline.New(cfg.Pipeline(),
		pipeline.WithLogger(newLogger()),
		pipeline.WithFaceDetector(detector),
		pipeline.WithProgress(func(p pipeline.Progress) {
			if bar != nil && p.Phase == pipeline.PhaseExtracting {
				_ = bar.Set(p.Current)
			}
		}),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := analyzer.AnalyzeBatch(ctx, images)
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return analyzeError(err)
	}

	if jsonOutput {
		return writeJSON(report, outputPath)
	}
	printReport(report)
	return nil
}

// analyzeError turns pipeline errors into messages for the terminal.
func analyzeError(err error) error {
	var unreadable *pipeline.UnreadableImageError
	switch {
	case errors.As(err, &unreadable):
		return fmt.Errorf("cannot read %s: %w (rerun without --abort-on-unreadable to skip it)", unreadable.ID, unreadable.Err)
	case errors.Is(err, pipeline.ErrBatchTooLarge):
		return fmt.Errorf("%w (raise the limit with --max-batch-size)", err)
	case errors.Is(err, pipeline.ErrNoUsableImages):
		return errors.New("none of the photos could be read")
	default:
		return fmt.Errorf("analysis failed: %w", err)
	}
}

// writeJSON writes data as indented JSON to path, or to stdout when path is empty.
func writeJSON(data any, path string) error {
	out := io.Writer(os.Stdout)
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	if path != "" {
		fmt.Fprintf(os.Stderr, "Report written to %s\n", path)
	}
	return nil
}

func printReport(report *pipeline.BatchReport) {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	scores := make(map[string]float64, len(report.Images))
	for _, img := range report.Images {
		scores[img.ID] = img.Quality.Overall
	}

	groups := report.DuplicateGroups()
	if len(groups) == 0 {
		fmt.Println("\nNo duplicates found")
	}

	for _, c := range groups {
		fmt.Printf("\nGroup %d (%d photos):\n", c.ID+1, len(c.Members))
		green.Printf("  keep    %s", c.Best)
		fmt.Printf("  (score %.*f)\n", constants.ScoreDecimals, scores[c.Best])
		for _, id := range c.Duplicates() {
			red.Printf("  delete  %s", id)
			fmt.Printf("  (score %.*f)\n", constants.ScoreDecimals, scores[id])
		}
	}

	if n := len(report.Skipped); n > 0 {
		yellow.Printf("\nSkipped %d unreadable photos:\n", n)
		for i, s := range report.Skipped {
			if i == constants.MaxSkippedListed {
				fmt.Printf("  ... and %d more\n", n-i)
				break
			}
			fmt.Printf("  - %s: %s\n", s.ID, s.Reason)
		}
	}

	fmt.Println()
	cyan.Printf("Threshold %.4f (%s)\n", report.Eps, report.EpsMethod)
	fmt.Printf("%d photos, %d groups of duplicates, %d unique\n",
		report.Stats.TotalImages, report.Stats.DuplicateGroups, report.Stats.UniqueImages)
	fmt.Printf("%d photos recommended for deletion, %s reclaimable\n",
		report.Recommendations.Count, humanize.Bytes(uint64(report.Recommendations.EstimatedBytesReclaimed)))
}
