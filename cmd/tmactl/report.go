package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/akiwumi/typemyaudio/internal/dataset"
)

// newReportCmd reads back a usage workbook written by `usage --xlsx` or the API.
func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <workbook.xlsx>",
		Short: "Print the summary of a usage workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			wb, err := dataset.ReadWorkbook(f)
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(wb.Fields))
			for k := range wb.Fields {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			for _, k := range keys {
				fmt.Fprintf(tw, "%s:\t%s\n", k, wb.Fields[k])
			}
			fmt.Fprintf(tw, "usage records:\t%d\n", len(wb.Usage))
			fmt.Fprintf(tw, "jobs:\t%d\n", wb.Jobs)
			return tw.Flush()
		},
	}
}
