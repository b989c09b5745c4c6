package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display statistics about the fingerprint cache",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	s, err := st.Stats(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("  Cache:        %s\n", st.Path())
	fmt.Printf("  Files:        %d\n", s.TotalFiles)
	fmt.Printf("    images:     %d\n", s.TotalImages)
	fmt.Printf("    videos:     %d\n", s.TotalVideos)
	fmt.Printf("  Total size:   %s\n", formatMB(s.TotalSizeMB))
	if s.CreatedAt != nil {
		fmt.Printf("  First scan:   %s\n", s.CreatedAt.Local().Format(time.DateTime))
	}
	fmt.Println()
	return nil
}
