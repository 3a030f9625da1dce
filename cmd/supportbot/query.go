package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"supportbot/internal/prompt"
	supporterr "supportbot/pkg/errors"
)

func newQueryCmd() *cobra.Command {
	var (
		topK       int
		orderID    string
		showPrompt bool
	)
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Retrieve the policy excerpts closest to a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("top-k") {
				if topK < 1 {
					return supporterr.New(supporterr.CodeCLIInputInvalid, "--top-k must be at least 1",
						supporterr.Field("top_k", topK))
				}
				cfg.Retrieval.TopK = topK
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.Log.Level)
			svc, closeFn, err := newService(cmd, cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			reply, err := svc.Ask(cmd.Context(), strings.Join(args, " "), orderID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, m := range reply.Excerpts {
				fmt.Fprintf(out, "[%d] distance=%.4f\n%s\n\n", i+1, m.Distance, m.Text)
			}
			if orderID != "" {
				fmt.Fprintf(out, "Order info:\n%s\n", prompt.OrderText(prompt.Input{Order: reply.Order, OrderID: reply.OrderID}))
			}
			if showPrompt {
				fmt.Fprintf(out, "\n%s", reply.Prompt)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of excerpts to retrieve (default from config)")
	cmd.Flags().StringVarP(&orderID, "order", "o", "", "order id to look up")
	cmd.Flags().BoolVar(&showPrompt, "prompt", false, "print the assembled prompt")
	return cmd
}
