package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Authenticate every stored blob against the content key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd, func(be *backend) error {
				report, err := be.files.VerifyAll(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				for _, f := range report.Failures {
					fmt.Fprintf(out, "%s %s: %v\n", color.RedString("FAIL"), f.FileID, f.Err)
				}

				summary := fmt.Sprintf("Checked %d files, %d failed", report.Checked, len(report.Failures))
				if len(report.Failures) == 0 {
					fmt.Fprintln(out, color.GreenString(summary))
					return nil
				}
				fmt.Fprintln(out, color.RedString(summary))
				return fmt.Errorf("%d files failed verification", len(report.Failures))
			})
		},
	}
}
