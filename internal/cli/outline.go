package cli

import (
	"fmt"
	"io"
	"strings"

	"inkwell/internal/domain"
	"inkwell/internal/domain/models/outline"
	outlineboard "inkwell/internal/service/outline"

	"github.com/spf13/cobra"
)

func newOutlineCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outline",
		Short: "Outline tree commands",
	}
	cmd.AddCommand(newOutlineShowCmd(app))
	cmd.AddCommand(newOutlineMoveCmd(app))
	cmd.AddCommand(newOutlineAddCmd(app))
	cmd.AddCommand(newOutlineRmCmd(app))
	cmd.AddCommand(newOutlineEditCmd(app))
	return cmd
}

// outlineBoard loads the outline of the selected project
func (app *App) outlineBoard(cmd *cobra.Command) (*outlineboard.Board, error) {
	projectID, err := app.project()
	if err != nil {
		return nil, err
	}
	board := outlineboard.NewBoard(outlineboard.Config{
		Outline:   app.svc.outline,
		ProjectID: projectID,
		Role:      app.svc.role,
		Metrics:   app.svc.metrics,
		Logger:    app.svc.logger,
	})
	if _, err := board.Tree(cmd.Context()); err != nil {
		return nil, err
	}
	return board, nil
}

func writeTree(cmd *cobra.Command, app *App, board *outlineboard.Board) error {
	forest, err := board.Tree(cmd.Context())
	if err != nil {
		return err
	}
	return writeOut(cmd, app, forest, func(w io.Writer) {
		if len(forest) == 0 {
			fmt.Fprintln(w, muted("Outline is empty."))
			return
		}
		printNodes(w, forest, 0)
	})
}

func printNodes(w io.Writer, nodes []*outline.Node, depth int) {
	for _, n := range nodes {
		line := strings.Repeat("  ", depth) + "- " + n.Title
		fmt.Fprintf(w, "%-48s %s\n", line, idStyle.Render(n.ID))
		if n.Summary != "" {
			fmt.Fprintln(w, indent(muted(n.Summary), strings.Repeat("  ", depth+2)))
		}
		printNodes(w, n.Children, depth+1)
	}
}

func newOutlineShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the outline tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			board, err := app.outlineBoard(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := writeTree(cmd, app, board); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
}

func newOutlineMoveCmd(app *App) *cobra.Command {
	var into, before string

	cmd := &cobra.Command{
		Use:   "move <node-id>",
		Short: "Move a node into a container or before a sibling",
		Example: strings.TrimSpace(`
  inkwell outline move <node-id> --into <parent-id>
  inkwell outline move <node-id> --into root
  inkwell outline move <node-id> --before <node-id>
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (into == "") == (before == "") {
				return writeErr(cmd, &domain.ValidationError{Message: "pass exactly one of --into or --before"})
			}
			target := outlineboard.OnNode(before)
			if into != "" {
				target = outlineboard.Into(into)
			}

			board, err := app.outlineBoard(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := board.DragStart(args[0]); err != nil {
				return writeErr(cmd, err)
			}
			board.DragOver(target)
			if err := board.DragEnd(cmd.Context(), target); err != nil {
				return writeErr(cmd, err)
			}
			if err := writeTree(cmd, app, board); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&into, "into", "", "Container node id (root for top level); appends")
	cmd.Flags().StringVar(&before, "before", "", "Sibling the node is placed before")
	return cmd
}

func newOutlineAddCmd(app *App) *cobra.Command {
	var parent string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a node at the end of a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			board, err := app.outlineBoard(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			node, err := board.Create(cmd.Context(), parent, args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, node, func(w io.Writer) {
				fmt.Fprintf(w, "Added %s  %s\n", idStyle.Render(node.ID), node.Title)
			})
		},
	}

	cmd.Flags().StringVar(&parent, "parent", outlineboard.RootContainerID, "Parent node id")
	return cmd
}

func newOutlineRmCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <node-id>",
		Short: "Delete a node and everything nested under it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			board, err := app.outlineBoard(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			removed, err := board.Delete(cmd.Context(), args[0], app.confirm(cmd))
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"removed": removed}, func(w io.Writer) {
				fmt.Fprintf(w, "Removed %d node(s).\n", removed)
			})
		},
	}
}

func newOutlineEditCmd(app *App) *cobra.Command {
	var title, summary string

	cmd := &cobra.Command{
		Use:   "edit <node-id>",
		Short: "Change the title or summary of a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			titleSet, summarySet := cmd.Flags().Changed("title"), cmd.Flags().Changed("summary")
			if !titleSet && !summarySet {
				return writeErr(cmd, &domain.ValidationError{Message: "pass --title or --summary"})
			}
			board, err := app.outlineBoard(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			changed := false
			if titleSet {
				ok, err := board.CommitField(cmd.Context(), args[0], outlineboard.FieldTitle, title)
				if err != nil {
					return writeErr(cmd, err)
				}
				changed = changed || ok
			}
			if summarySet {
				ok, err := board.CommitField(cmd.Context(), args[0], outlineboard.FieldSummary, summary)
				if err != nil {
					return writeErr(cmd, err)
				}
				changed = changed || ok
			}
			node, _ := board.Node(args[0])
			return writeOut(cmd, app, map[string]any{"changed": changed, "node": node}, func(w io.Writer) {
				if !changed {
					fmt.Fprintln(w, "Nothing changed.")
					return
				}
				fmt.Fprintf(w, "Updated %s  %s\n", idStyle.Render(node.ID), node.Title)
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&summary, "summary", "", "New summary")
	return cmd
}
