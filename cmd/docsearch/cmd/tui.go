package cmd

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"docsearch/internal/domain"
	"docsearch/internal/service"
	"docsearch/internal/tui"
)

func newTUICmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "tui [files...]",
		Short: "Interactive question answering in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}

			p := a.newProcessor()
			if len(args) == 0 {
				if dir == "" {
					dir = a.cfg.Server.UploadDir
				}
				if _, err := p.IngestDirectory(ctx, dir); err != nil {
					return fmt.Errorf("ingest %s: %w", dir, err)
				}
			}
			for _, path := range args {
				if _, err := p.IngestFile(ctx, path); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipping %s: %v\n", path, err)
				}
			}
			if !p.HasDocuments() {
				return errors.New(domain.NotInitializedMessage)
			}

			m := tui.New(p, a.analyzer, digest(p))
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			return err
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory of documents when no files are given")
	return cmd
}

// digest joins the per-kind summaries into one header line.
func digest(p *service.Processor) string {
	var parts []string
	for _, k := range domain.Kinds {
		s, err := p.Digest(k)
		if err != nil || s == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(strings.Fields(s), " ")))
	}
	return strings.Join(parts, " | ")
}
