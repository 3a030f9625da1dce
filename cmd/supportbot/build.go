package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	supporterr "supportbot/pkg/errors"
)

func newBuildCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Index the policy corpus and persist the index artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.Log.Level)
			r, err := newRetriever(cfg, logger)
			if err != nil {
				return err
			}
			start := time.Now()
			if force {
				err = r.Build(cmd.Context(), true)
			} else {
				// Rebuilds once if the existing pair is corrupt.
				err = r.EnsureReady(cmd.Context())
			}
			if err != nil {
				return err
			}
			snap := r.Current()
			if snap == nil {
				return supporterr.New(supporterr.CodeInternalFailure, "index not installed after build")
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d paragraphs indexed with %s (dimension %d, built %s) in %s\n",
				snap.Len(), snap.Embedder(), snap.Dimension(),
				snap.BuiltAt().Format(time.RFC3339), time.Since(start).Round(time.Millisecond))
			return err
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "rebuild even if the artifacts exist")
	return cmd
}
