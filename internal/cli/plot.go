package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"inkwell/internal/domain"
	"inkwell/internal/domain/models/plot"
	"inkwell/internal/service/plotboard"

	"github.com/spf13/cobra"
)

func newPlotCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Plot board commands",
	}
	cmd.AddCommand(newPlotShowCmd(app))
	cmd.AddCommand(newPlotMoveCmd(app))
	cmd.AddCommand(newPlotMoveArcCmd(app))
	cmd.AddCommand(newPlotTensionCmd(app))
	cmd.AddCommand(newPlotLinkCmd(app))
	cmd.AddCommand(newPlotSuggestCmd(app))
	cmd.AddCommand(newPlotRenumberCmd(app))
	return cmd
}

// plotSession is a loaded board plus the failures of its background updates
type plotSession struct {
	board *plotboard.Board

	mu     sync.Mutex
	failed []error
}

// wait blocks for background updates and returns their failures
func (p *plotSession) wait() error {
	p.board.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.failed...)
}

func (app *App) plotSession(cmd *cobra.Command) (*plotSession, error) {
	projectID, err := app.project()
	if err != nil {
		return nil, err
	}
	ps := &plotSession{}
	ps.board = plotboard.NewBoard(plotboard.Config{
		Plot:      app.svc.plot,
		ProjectID: projectID,
		Role:      app.svc.role,
		OnError: func(err error) {
			ps.mu.Lock()
			ps.failed = append(ps.failed, err)
			ps.mu.Unlock()
		},
		Metrics: app.svc.metrics,
		Logger:  app.svc.logger,
	})
	if _, err := ps.board.Columns(cmd.Context()); err != nil {
		return nil, err
	}
	return ps, nil
}

func writeColumns(cmd *cobra.Command, app *App, board *plotboard.Board) error {
	cols, err := board.Columns(cmd.Context())
	if err != nil {
		return err
	}
	return writeOut(cmd, app, cols, func(w io.Writer) {
		if len(cols) == 0 {
			fmt.Fprintln(w, muted("No arcs."))
			return
		}
		for i, col := range cols {
			if i > 0 {
				fmt.Fprintln(w)
			}
			header(w, "%s", col.Arc.Title)
			fmt.Fprintln(w, idStyle.Render(col.Arc.ID))
			for _, p := range col.Points {
				marker := " "
				if p.AISuggested {
					marker = "~"
				}
				fmt.Fprintf(w, "  %s%7s  %s  %-36s %s\n", marker, formatOrder(p.Order), tensionBar(p.Tension), p.Title, idStyle.Render(p.ID))
			}
		}
	})
}

func formatOrder(order float64) string {
	return strconv.FormatFloat(order, 'g', 6, 64)
}

func newPlotShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print arcs and their points",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := app.plotSession(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := writeColumns(cmd, app, ps.board); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
}

func newPlotMoveCmd(app *App) *cobra.Command {
	var arcID, onto string

	cmd := &cobra.Command{
		Use:   "move <point-id>",
		Short: "Drop a point onto another point or at the end of an arc",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (arcID == "") == (onto == "") {
				return writeErr(cmd, &domain.ValidationError{Message: "pass exactly one of --arc or --onto"})
			}
			drop := plotboard.OnPoint(onto)
			if arcID != "" {
				drop = plotboard.OnArc(arcID)
			}

			ps, err := app.plotSession(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			moved, err := ps.board.Move(cmd.Context(), args[0], drop)
			if err != nil {
				return writeErr(cmd, err)
			}
			if !moved && app.Format == "text" {
				fmt.Fprintln(cmd.OutOrStdout(), muted("Point is already there."))
			}
			if err := writeColumns(cmd, app, ps.board); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&arcID, "arc", "", "Append to the end of this arc")
	cmd.Flags().StringVar(&onto, "onto", "", "Place before this point")
	return cmd
}

func newPlotMoveArcCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "move-arc <arc-id> <index>",
		Short: "Reorder an arc column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[1])
			if err != nil || idx < 0 {
				return writeErr(cmd, &domain.ValidationError{Message: "index must be a non-negative number"})
			}
			ps, err := app.plotSession(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := ps.board.MoveArc(cmd.Context(), args[0], idx); err != nil {
				return writeErr(cmd, err)
			}
			if err := writeColumns(cmd, app, ps.board); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
}

func newPlotTensionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tension <point-id> <0-10>",
		Short: "Set the tension of a point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tension, err := strconv.Atoi(args[1])
			if err != nil {
				return writeErr(cmd, &domain.ValidationError{Message: "tension must be a number"})
			}
			ps, err := app.plotSession(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := ps.board.SetTension(args[0], tension); err != nil {
				return writeErr(cmd, err)
			}
			if err := ps.wait(); err != nil {
				return writeErr(cmd, err)
			}
			return writePoint(cmd, app, ps.board, args[0])
		},
	}
}

func newPlotLinkCmd(app *App) *cobra.Command {
	var detach bool

	cmd := &cobra.Command{
		Use:   "link <point-id> [chapter-id]",
		Short: "Attach a point to a chapter, or detach it with --clear",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var chapterID *string
			switch {
			case detach && len(args) == 1:
			case !detach && len(args) == 2:
				chapterID = &args[1]
			default:
				return writeErr(cmd, &domain.ValidationError{Message: "pass a chapter id or --clear"})
			}
			ps, err := app.plotSession(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := ps.board.LinkChapter(args[0], chapterID); err != nil {
				return writeErr(cmd, err)
			}
			if err := ps.wait(); err != nil {
				return writeErr(cmd, err)
			}
			return writePoint(cmd, app, ps.board, args[0])
		},
	}

	cmd.Flags().BoolVar(&detach, "clear", false, "Detach the point from its chapter")
	return cmd
}

func writePoint(cmd *cobra.Command, app *App, board *plotboard.Board, id string) error {
	p, _ := board.Point(id)
	return writeOut(cmd, app, p, func(w io.Writer) {
		chapter := "-"
		if p.ChapterID != nil {
			chapter = *p.ChapterID
		}
		fmt.Fprintf(w, "%s  %s\n", idStyle.Render(p.ID), p.Title)
		fmt.Fprintf(w, "  tension %2d  %s\n", p.Tension, tensionBar(p.Tension))
		fmt.Fprintf(w, "  chapter %s\n", chapter)
	})
}

func newPlotSuggestCmd(app *App) *cobra.Command {
	var (
		arcID  string
		count  int
		tone   string
		theme  string
		accept bool
	)

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Ask for AI plot point suggestions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := app.plotSession(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			filter := plot.SuggestionFilter{Count: count, Tone: tone, Theme: theme}
			if arcID != "" {
				filter.ArcID = &arcID
			}
			drafts, err := ps.board.Suggest(cmd.Context(), filter)
			if err != nil {
				return writeErr(cmd, err)
			}

			var accepted []*plot.Point
			if accept {
				target := arcID
				if target == "" {
					if cols := ps.board.Snapshot(); len(cols) > 0 {
						target = cols[0].Arc.ID
					}
				}
				for _, d := range drafts {
					p, err := ps.board.AcceptSuggestion(cmd.Context(), d, target)
					if err != nil {
						return writeErr(cmd, err)
					}
					accepted = append(accepted, p)
				}
			}

			payload := map[string]any{"suggestions": drafts}
			if accept {
				payload["accepted"] = accepted
			}
			return writeOut(cmd, app, payload, func(w io.Writer) {
				for i, d := range drafts {
					fmt.Fprintf(w, "%d. %s  %s\n", i+1, d.Title, tensionBar(d.Tension))
					if d.Description != "" {
						fmt.Fprintln(w, indent(muted(d.Description), "   "))
					}
				}
				if accept {
					fmt.Fprintf(w, "Accepted %d point(s).\n", len(accepted))
				}
			})
		},
	}

	cmd.Flags().StringVar(&arcID, "arc", "", "Arc to suggest for and accept into")
	cmd.Flags().IntVar(&count, "count", 0, "Number of suggestions (default 3)")
	cmd.Flags().StringVar(&tone, "tone", "", "Tone hint")
	cmd.Flags().StringVar(&theme, "theme", "", "Theme hint")
	cmd.Flags().BoolVar(&accept, "accept", false, "Save every suggestion as a point")
	return cmd
}

func newPlotRenumberCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "renumber <arc-id>",
		Short: "Rewrite the order keys of an arc to 0..n-1",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := app.plotSession(cmd)
			if err != nil {
				return writeErr(cmd, err)
			}
			updated, err := ps.board.Renumber(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"updated": updated}, func(w io.Writer) {
				fmt.Fprintf(w, "Renumbered %d point(s) in %s.\n", updated, strings.TrimSpace(args[0]))
			})
		},
	}
}
