package cmd

import (
	"fmt"
	"runtime"

	"github.com/AnyUserName/mediadup/internal/config"
	"github.com/AnyUserName/mediadup/internal/fingerprint"
	"github.com/AnyUserName/mediadup/internal/store"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

var (
	version   = "0.1.0"
	verbosity int
	logFile   string
	cfg       = config.Default()
)

var log = commonlog.GetLogger("mediadup")

var rootCmd = &cobra.Command{
	Use:   "mediadup",
	Short: "Find near-duplicate images and videos",
	Long: `mediadup fingerprints the images and videos below a directory with a
perceptual hash, caches the fingerprints in SQLite, and reports pairs of
files that look alike even after resizing, recompression or small edits.

Videos are fingerprinted from a single representative frame extracted
with ffmpeg.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.CountVarP(&verbosity, "verbose", "v", "log verbosity (-v info, -vv debug)")
	pf.StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")
	pf.StringVar(&cfg.DBPath, "db", cfg.DBPath, "fingerprint cache database")
	pf.IntVar(&cfg.HashSize, "hash-size", cfg.HashSize, "perceptual hash grid dimension")
	pf.Int64Var(&cfg.MaxFileSizeMB, "max-size-mb", cfg.MaxFileSizeMB, "skip files larger than this")
	pf.Float64Var(&cfg.FramePosition, "frame-position", cfg.FramePosition, "relative position of the representative video frame")
	pf.StringVar(&cfg.FFmpegPath, "ffmpeg", cfg.FFmpegPath, "ffmpeg executable")
	pf.StringVar(&cfg.FFprobePath, "ffprobe", cfg.FFprobePath, "ffprobe executable")

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"mediadup %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}

// setup configures logging and validates the shared configuration before
// any subcommand runs.
func setup(_ *cobra.Command, _ []string) error {
	var path *string
	if logFile != "" {
		path = &logFile
	}
	commonlog.Configure(verbosity, path)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func openStore() (*store.Store, error) {
	s, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", cfg.DBPath, err)
	}
	return s, nil
}

func newExtractor(fs afero.Fs) *fingerprint.Extractor {
	return fingerprint.NewExtractor(fs, fingerprint.Options{
		HashSize:      cfg.HashSize,
		FramePosition: cfg.FramePosition,
		FFprobePath:   cfg.FFprobePath,
		FFmpegPath:    cfg.FFmpegPath,
	})
}
