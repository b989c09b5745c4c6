package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/AnyUserName/mediadup/internal/api"
	"github.com/AnyUserName/mediadup/internal/dupes"
	"github.com/AnyUserName/mediadup/internal/scan"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scan and duplicate review API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "listen address")
	serveCmd.Flags().IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "files fingerprinted in parallel")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	fs := afero.NewOsFs()
	ex := newExtractor(fs)
	srv := api.NewServer(api.Deps{
		Fs:      fs,
		Cache:   st,
		Scanner: scan.New(fs, st, ex, cfg),
		Finder:  dupes.New(st, cfg),
		Framer:  ex,
		Config:  cfg,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx, cfg.ListenAddr)
}
