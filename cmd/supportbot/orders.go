package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	supporterr "supportbot/pkg/errors"
)

func newOrdersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Manage the order store",
	}
	cmd.AddCommand(newOrdersImportCmd(), newOrdersShowCmd())
	return cmd
}

func newOrdersImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [orders.csv]",
		Short: "Replace the stored orders with the rows of a CSV file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.Log.Level)

			path := cfg.Data.Path(cfg.Data.OrdersCSV)
			if len(args) == 1 {
				path = args[0]
			}
			f, err := os.Open(path)
			if err != nil {
				return supporterr.Wrap(err, supporterr.CodeCLIInputInvalid, "opening orders csv", supporterr.FieldPath(path))
			}
			defer f.Close()

			store, err := openOrders(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Import(cmd.Context(), f)
			if err != nil {
				return err
			}
			logger.Info("orders imported", "source", path, "count", n)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d orders imported into %s\n", n, cfg.Data.Path(cfg.Data.OrdersDB))
			return err
		},
	}
}

func newOrdersShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <order_id>",
		Short: "Print one stored order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openExistingOrders(cfg)
			if err != nil {
				return err
			}
			if store == nil {
				return supporterr.New(supporterr.CodeCLIInputInvalid, "no orders imported yet; run `supportbot orders import`")
			}
			defer store.Close()

			o, ok, err := store.Lookup(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return supporterr.New(supporterr.CodeCLIInputInvalid, "order not found", supporterr.Field("order_id", args[0]))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), o.Text())
			return err
		},
	}
}
