package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached fingerprint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("  ✓ Cache cleared")
		return nil
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget <path>...",
	Short: "Drop the cached records of files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		for _, arg := range args {
			path, err := canonicalPath(arg)
			if err != nil {
				return err
			}
			ok, err := st.Delete(cmd.Context(), path)
			if err != nil {
				return err
			}
			if ok {
				fmt.Printf("  ✓ %s\n", path)
			} else {
				fmt.Printf("  - %s (not cached)\n", path)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCmd, forgetCmd)
}

// canonicalPath resolves arg the way a scan records paths: absolute and
// with symlinks evaluated. Files that no longer exist keep their absolute
// form so their stale records can still be dropped.
func canonicalPath(arg string) (string, error) {
	abs, err := filepath.Abs(arg)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", arg, err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}
