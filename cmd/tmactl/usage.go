package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/akiwumi/typemyaudio/internal/dataset"
)

func newUsageCmd(open func() (*app, error)) *cobra.Command {
	var accountID, xlsxPath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show an account's quota standing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			sum, err := a.ledger.Usage(cmd.Context(), accountID)
			if err != nil {
				return err
			}

			if xlsxPath != "" {
				rep, err := dataset.BuildReport(cmd.Context(), a.store, a.ledger, accountID, time.Now())
				if err != nil {
					return err
				}
				f, err := os.Create(xlsxPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", xlsxPath, err)
				}
				if err := dataset.WriteWorkbook(f, rep); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(sum)
			}
			tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
			fmt.Fprintf(tw, "account:\t%s\n", accountID)
			fmt.Fprintf(tw, "tier:\t%s\n", sum.Tier)
			fmt.Fprintf(tw, "used:\t%d\n", sum.Used)
			fmt.Fprintf(tw, "limit:\t%s\n", bound(sum.Limit))
			fmt.Fprintf(tw, "purchased tokens:\t%d\n", sum.PurchasedTokens)
			fmt.Fprintf(tw, "remaining:\t%s\n", bound(sum.Remaining))
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account ID")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Also write the usage workbook to this path")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func bound(n int) string {
	if n < 0 {
		return "unlimited"
	}
	return fmt.Sprint(n)
}
