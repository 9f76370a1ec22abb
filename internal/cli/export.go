package cli

import (
	"fmt"
	"os"
	"strings"

	"inkwell/internal/domain/models/chapter"
	"inkwell/internal/service/markup"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newExportCmd(app *App) *cobra.Command {
	var (
		format string
		title  string
		author string
		output string
	)

	exporter := markup.NewExporter()
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the project's chapters as one manuscript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			projectID, err := app.project()
			if err != nil {
				return writeErr(cmd, err)
			}
			list, err := app.svc.chapters.ListByProject(ctx, projectID)
			if err != nil {
				return writeErr(cmd, err)
			}

			// Listings may omit content; fetch each chapter in full
			full := make([]*chapter.Chapter, len(list))
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(4)
			for i, ch := range list {
				g.Go(func() error {
					got, err := app.svc.chapters.Get(gctx, ch.ID)
					if err != nil {
						return err
					}
					full[i] = got
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return writeErr(cmd, err)
			}

			m := markup.Manuscript{Title: title, Author: author}
			for _, ch := range full {
				m.Chapters = append(m.Chapters, markup.ManuscriptChapter{Title: ch.Title, Content: ch.Content})
			}

			if output == "" || output == "-" {
				if err := exporter.Export(cmd.OutOrStdout(), m, format); err != nil {
					return writeErr(cmd, err)
				}
				return nil
			}
			if err := exportFile(exporter, output, m, format); err != nil {
				return writeErr(cmd, err)
			}
			app.svc.logger.Info("manuscript exported", "path", output, "chapters", len(m.Chapters), "format", format)
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d chapter(s) to %s\n", len(m.Chapters), output)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "as", markup.FormatMarkdown, "Manuscript format ("+strings.Join(exporter.Formats(), "|")+")")
	cmd.Flags().StringVar(&title, "title", "", "Manuscript title")
	cmd.Flags().StringVar(&author, "author", "", "Author shown on the title page")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

// exportFile writes the manuscript to path; a failed close fails the export
func exportFile(exporter *markup.Exporter, path string, m markup.Manuscript, format string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := exporter.Export(f, m, format); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
