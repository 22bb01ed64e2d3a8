package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/harvest"
	"github.com/use-agent/harvest/models"
	"github.com/use-agent/harvest/sink"
)

var runFlags struct {
	url      string
	csvPath  string
	jsonPath string
	limit    int
}

func init() {
	runCmd.Flags().StringVar(&runFlags.url, "url", "", "Search results page to harvest (default $HARVEST_SEARCH_URL).")
	runCmd.Flags().StringVar(&runFlags.csvPath, "csv", "", "CSV output path; empty string disables CSV (default <output dir>/<csv file>).")
	runCmd.Flags().StringVar(&runFlags.jsonPath, "json", "", "JSON output path; empty string disables JSON (default <output dir>/<json file>).")
	runCmd.Flags().IntVar(&runFlags.limit, "limit", 0, "Process at most this many entries (0 = all).")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--url <search url>] [--csv <path>] [--json <path>] [--limit <n>]",
	Short: "Harvests one search listing in the foreground and writes CSV and JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		searchURL := runFlags.url
		if searchURL == "" {
			searchURL = cfg.Harvest.SearchURL
		}
		if searchURL == "" {
			return errors.New("no search url: pass --url or set HARVEST_SEARCH_URL")
		}
		if err := config.ValidateSearchURL(searchURL); err != nil {
			return err
		}

		csvPath := outputPath(cmd, "csv", runFlags.csvPath, cfg.Output.CSVFile)
		jsonPath := outputPath(cmd, "json", runFlags.jsonPath, cfg.Output.JSONFile)

		b, err := browser.Launch(cfg.Browser)
		if err != nil {
			return err
		}
		defer func() {
			if err := b.Close(); err != nil {
				slog.Warn("failed to close browser", "error", err)
			}
		}()

		ctx := cmd.Context()
		session, err := browser.NewRodSession(ctx, b, rodOptions(cfg))
		if err != nil {
			return err
		}
		defer session.Close()

		res, runErr := newOrchestrator(cfg.Harvest, nil).Run(ctx, session, searchURL,
			harvest.WithLimit(runFlags.limit),
		)

		var herr *models.HarvestError
		if runErr != nil && errors.As(runErr, &herr) && herr.Code == models.ErrCodeCanceled {
			slog.Warn("interrupted, saving what was collected", "records", len(res.Records))
		}

		report := sink.New(csvPath, jsonPath, nil).Save(res.Records)
		printSummary(os.Stdout, res, report)

		if runErr != nil {
			return runErr
		}
		if err := report.Err(); err != nil {
			return fmt.Errorf("saving results: %w", err)
		}
		return nil
	},
}

// outputPath returns the flag value when the flag was given, otherwise the
// configured file inside the output directory.
func outputPath(cmd *cobra.Command, flag, value, file string) string {
	if cmd.Flags().Changed(flag) {
		return value
	}
	return filepath.Join(cfg.Output.Dir, file)
}
