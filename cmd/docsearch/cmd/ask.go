package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var (
		dir         string
		showSources bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question from the documents in a directory",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = a.cfg.Server.UploadDir
			}

			p := a.newProcessor()
			if _, err := p.IngestDirectory(ctx, dir); err != nil {
				return fmt.Errorf("ingest %s: %w", dir, err)
			}

			question := strings.Join(args, " ")
			res := p.Query(ctx, question)
			if !res.Success {
				return errors.New(res.Error)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "[%s] %s\n", res.Kind, res.Answer)
			if showSources {
				sources, err := p.Retrieve(res.Kind, question)
				if err != nil {
					return err
				}
				for _, s := range sources {
					fmt.Fprintf(out, "  %.3f  %s\n", s.Score, s.Unit.Metadata.SourceName)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory of documents (default: server.upload_dir)")
	cmd.Flags().BoolVar(&showSources, "sources", false, "List the retrieved passages")
	return cmd
}
