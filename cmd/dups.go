package cmd

import (
	"fmt"
	"os"

	"github.com/AnyUserName/mediadup/internal/dupes"
	"github.com/AnyUserName/mediadup/internal/media"
	"github.com/AnyUserName/mediadup/internal/report"
	"github.com/disiqueira/gotree/v3"
	"github.com/spf13/cobra"
)

var (
	dupsThreshold int
	dupsType      string
	dupsJSON      bool
	dupsOut       string
)

var dupsCmd = &cobra.Command{
	Use:   "dups",
	Short: "List pairs of similar files from the cache",
	Long: `Compares every cached fingerprint with every other one and lists the
pairs whose Hamming distance is at most --threshold, most similar first.

  0   identical fingerprints only
  5   very similar (default)
  10  somewhat similar
  15  loosely similar`,
	Args: cobra.NoArgs,
	RunE: runDups,
}

func init() {
	dupsCmd.Flags().IntVarP(&dupsThreshold, "threshold", "t", cfg.DefaultThreshold, "maximum bit distance (0-15)")
	dupsCmd.Flags().StringVar(&dupsType, "type", string(media.ScopeBoth), "file type: image, video or both")
	dupsCmd.Flags().BoolVar(&dupsJSON, "json", false, "print the report as JSON")
	dupsCmd.Flags().StringVarP(&dupsOut, "out", "o", "", "write the JSON report to a file")
	rootCmd.AddCommand(dupsCmd)
}

func runDups(cmd *cobra.Command, _ []string) error {
	scope, err := media.ParseScope(dupsType)
	if err != nil {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	res, err := dupes.New(st, cfg).Find(cmd.Context(), dupsThreshold, scope)
	if err != nil {
		return err
	}
	rep := report.New(res, dupsThreshold, scope)

	if dupsOut != "" {
		if err := report.WriteJSON(rep, dupsOut); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		log.Noticef("report written to %s", dupsOut)
	}
	if dupsJSON {
		return report.Encode(os.Stdout, rep)
	}

	fmt.Println()
	fmt.Print(renderPairs(rep))
	fmt.Println()
	return nil
}

// renderPairs draws one branch per pair with both files below it.
func renderPairs(r *report.Report) string {
	root := gotree.New(fmt.Sprintf("%d similar pairs (threshold %d, %s), up to %s reclaimable",
		r.TotalPairs, r.Threshold, r.Scope, formatMB(r.TotalPotentialSavingsMB)))
	for i, p := range r.Pairs {
		pair := root.Add(fmt.Sprintf("#%d  distance %d, %.2f%% similar", i+1, p.SimilarityScore, p.SimilarityPercentage))
		pair.Add(fileLabel(p.File1))
		pair.Add(fileLabel(p.File2))
	}
	return root.Print()
}

func fileLabel(f report.FileInfo) string {
	label := fmt.Sprintf("%s  %s", truncKey(f.Path, 70), formatMB(f.SizeMB))
	if f.Width != nil && f.Height != nil {
		label += fmt.Sprintf("  %dx%d", *f.Width, *f.Height)
	}
	if f.TakenAt != nil {
		label += "  taken " + f.TakenAt.Format("2006-01-02 15:04")
	}
	return label
}
