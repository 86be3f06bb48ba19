package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newExportCmd(open func() (*app, error)) *cobra.Command {
	var accountID, jobID, format, outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render a transcript in the account's allowed formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := open()
			if err != nil {
				return err
			}
			out, err := a.exports.Export(cmd.Context(), accountID, jobID, format)
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = out.Filename
			}
			if err := os.WriteFile(outPath, out.Body, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes, %s)\n", outPath, len(out.Body), out.ContentType)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Owning account ID")
	cmd.Flags().StringVar(&jobID, "job", "", "Job ID")
	cmd.Flags().StringVar(&format, "format", "txt", "txt, docx, pdf or srt")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Output file (default: <title>.<format>)")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}
