package main

import (
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"supportbot/internal/tui"
	supporterr "supportbot/pkg/errors"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive support console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			// The terminal belongs to the console, so logs go to a file.
			logPath := cfg.Data.Path(cfg.Log.File)
			if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
				return supporterr.Wrap(err, supporterr.CodeCLISetupFailure, "creating log directory", supporterr.FieldPath(logPath))
			}
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return supporterr.Wrap(err, supporterr.CodeCLISetupFailure, "opening log file", supporterr.FieldPath(logPath))
			}
			defer logFile.Close()
			logger := newLogger(logFile, cfg.Log.Level)

			svc, closeFn, err := newService(cmd, cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			m := tui.New(cmd.Context(), svc)
			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			if _, err := p.Run(); err != nil {
				return supporterr.Wrap(err, supporterr.CodeInternalFailure, "running console")
			}
			return nil
		},
	}
}
