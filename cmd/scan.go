package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/AnyUserName/mediadup/internal/media"
	"github.com/AnyUserName/mediadup/internal/scan"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	scanType       string
	scanClearCache bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Fingerprint the media files below a directory",
	Long: `Walks the directory recursively and fingerprints every image and video
of the selected type. Files whose modification time matches the cached
record are not decoded again, unless the cache is cleared first (the
default, which also drops records of other directories and types).`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&scanType, "type", "t", string(media.ScopeBoth), "file type: image, video or both")
	scanCmd.Flags().BoolVar(&scanClearCache, "clear-cache", true, "empty the whole cache before scanning")
	scanCmd.Flags().IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "files fingerprinted in parallel")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	scope, err := media.ParseScope(scanType)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	fs := afero.NewOsFs()
	orch := scan.New(fs, st, newExtractor(fs), cfg)

	ctx := cmd.Context()
	task, err := orch.Start(ctx, scan.Request{Path: args[0], Scope: scope, KeepCache: !scanClearCache})
	if err != nil {
		return err
	}

	if term.IsTerminal(int(os.Stderr.Fd())) {
		showProgress(orch, task)
	}
	state, err := task.Wait(ctx)
	printScanReport(state)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	return nil
}

// showProgress redraws a one-line progress indicator on stderr until the
// scan ends.
func showProgress(orch *scan.Orchestrator, task *scan.Task) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	width := 80
	if w, _, err := term.GetSize(int(os.Stderr.Fd())); err == nil && w > 20 {
		width = w
	}
	for {
		select {
		case <-task.Done():
			fmt.Fprintf(os.Stderr, "\r%*s\r", width-1, "")
			return
		case <-ticker.C:
			s := orch.Status()
			line := fmt.Sprintf("  [%d/%d] %s", s.ProcessedFiles, s.TotalFiles, s.CurrentFile)
			fmt.Fprintf(os.Stderr, "\r%-*s", width-1, truncKey(line, width-1))
		}
	}
}

func printScanReport(s scan.State) {
	fmt.Println()
	fmt.Printf("  Scanned:     %s (%s)\n", s.Path, s.Scope)
	fmt.Printf("  Files:       %d / %d\n", s.ProcessedFiles, s.TotalFiles)
	fmt.Printf("  Cached:      %d unchanged\n", s.CacheHits)
	fmt.Printf("  Time:        %s\n", s.Duration().Round(time.Millisecond))
	if len(s.Errors) > 0 {
		fmt.Println()
		fmt.Printf("  Errors (%d):\n", len(s.Errors))
		for _, e := range s.Errors {
			fmt.Printf("    ✗ %s\n", e)
		}
	}
	fmt.Println()
}
