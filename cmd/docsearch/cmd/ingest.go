package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Ingest a directory and report what was indexed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			dir := a.cfg.Server.UploadDir
			if len(args) == 1 {
				dir = args[0]
			}

			p := a.newProcessor()
			counts, err := p.IngestDirectory(ctx, dir)
			if err != nil {
				return fmt.Errorf("ingest %s: %w", dir, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Documents: %s\n", formatCounts(counts))
			fmt.Fprintf(out, "Units:     %s\n", formatCounts(p.UnitCounts()))
			return nil
		},
	}
}
