package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"inkwell/internal/domain"
	"inkwell/internal/domain/models/chapter"
	"inkwell/internal/domain/models/stream"
	"inkwell/internal/service/editor"
	"inkwell/internal/service/markup"

	"github.com/spf13/cobra"
)

func newChapterCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chapter",
		Short: "Chapter commands",
	}
	cmd.AddCommand(newChapterListCmd(app))
	cmd.AddCommand(newChapterShowCmd(app))
	cmd.AddCommand(newChapterHistoryCmd(app))
	cmd.AddCommand(newChapterDiffCmd(app))
	cmd.AddCommand(newChapterRevertCmd(app))
	cmd.AddCommand(newChapterSaveCmd(app))
	cmd.AddCommand(newChapterRenameCmd(app))
	cmd.AddCommand(newChapterContinueCmd(app))
	return cmd
}

func (app *App) editor() *editor.Editor {
	return editor.New(editor.Config{
		Chapters:     app.svc.chapters,
		Jobs:         app.svc.jobs,
		Streams:      app.svc.streams,
		Modes:        app.svc.modes,
		Invalidator:  app.svc.chapters,
		Debounce:     app.cfg.AutosaveDebounce,
		SavedDisplay: app.cfg.SavedDisplay,
		Metrics:      app.svc.metrics,
		Logger:       app.svc.logger,
	})
}

// withSession opens chapterID, runs fn and closes the session
func (app *App) withSession(ctx context.Context, chapterID string, fn func(ed *editor.Editor, s *editor.Session) error) error {
	ed := app.editor()
	s, err := ed.Open(ctx, chapterID, app.svc.role)
	if err != nil {
		return err
	}
	defer func() {
		ed.Close(s)
		ed.WaitSession(s)
	}()
	return fn(ed, s)
}

func newChapterListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the chapters of the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := app.project()
			if err != nil {
				return writeErr(cmd, err)
			}
			chapters, err := app.svc.chapters.ListByProject(cmd.Context(), projectID)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, chapters, func(w io.Writer) {
				if len(chapters) == 0 {
					fmt.Fprintln(w, muted("No chapters."))
					return
				}
				for _, ch := range chapters {
					fmt.Fprintf(w, "%s  %-32s  v%-3d %6d words  %s\n",
						idStyle.Render(ch.ID), ch.Title, ch.Version, ch.WordCount, muted(stamp(ch.UpdatedAt)))
				}
			})
		},
	}
}

func newChapterShowCmd(app *App) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "show <chapter-id>",
		Short: "Print a chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := app.svc.chapters.Get(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, ch, func(w io.Writer) {
				words, chars := markup.TextStats(ch.Content)
				header(w, "%s", ch.Title)
				fmt.Fprintln(w, muted(fmt.Sprintf("version %d, %d words, %d characters, updated %s", ch.Version, words, chars, stamp(ch.UpdatedAt))))
				fmt.Fprintln(w)
				if raw {
					fmt.Fprintln(w, ch.Content)
					return
				}
				fmt.Fprintln(w, markup.PlainText(ch.Content))
			})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print the stored markup instead of plain text")
	return cmd
}

func newChapterHistoryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "history <chapter-id>",
		Short: "List saved versions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := app.withSession(cmd.Context(), args[0], func(ed *editor.Editor, s *editor.Session) error {
				list, err := ed.History(cmd.Context(), s)
				if err != nil {
					return err
				}
				return writeOut(cmd, app, list, func(w io.Writer) {
					header(w, "%s", s.State().Title)
					for _, v := range list.Versions {
						marker := " "
						if v.Version == list.CurrentVersion {
							marker = "*"
						}
						fmt.Fprintf(w, "%s v%-3d %-9s %s  %s\n", marker, v.Version, snapshotReason(v), muted(stamp(v.CreatedAt)), v.Preview)
					}
				})
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
}

func newChapterDiffCmd(app *App) *cobra.Command {
	var asHTML bool

	cmd := &cobra.Command{
		Use:   "diff <chapter-id> <version>",
		Short: "Compare a saved version with the current chapter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseVersion(args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			err = app.withSession(cmd.Context(), args[0], func(ed *editor.Editor, s *editor.Session) error {
				view, err := ed.SelectVersion(cmd.Context(), s, version)
				if err != nil {
					return err
				}
				payload := map[string]any{
					"version":   view.Version.Version,
					"identical": view.Identical(),
					"inserted":  view.Inserted,
					"deleted":   view.Deleted,
					"html":      view.HTML(),
				}
				return writeOut(cmd, app, payload, func(w io.Writer) {
					if view.Identical() {
						fmt.Fprintf(w, "Version %d matches the current chapter.\n", version)
						return
					}
					header(w, "v%d -> v%d  +%d -%d words", version, s.State().Version, view.Inserted, view.Deleted)
					if asHTML {
						fmt.Fprintln(w, view.HTML())
						return
					}
					fmt.Fprintln(w, view.ANSI())
				})
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asHTML, "html", false, "Render the diff with <ins> and <del> tags")
	return cmd
}

func newChapterRevertCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "revert <chapter-id> <version>",
		Short: "Restore a saved version as a new version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseVersion(args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			err = app.withSession(cmd.Context(), args[0], func(ed *editor.Editor, s *editor.Session) error {
				if err := ed.Revert(cmd.Context(), s, version, app.confirm(cmd)); err != nil {
					return err
				}
				return writeState(cmd, app, s.State())
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
}

func newChapterSaveCmd(app *App) *cobra.Command {
	var (
		file      string
		plain     bool
		title     string
		overwrite bool
	)

	cmd := &cobra.Command{
		Use:   "save <chapter-id>",
		Short: "Replace chapter content from a file or stdin",
		Example: strings.TrimSpace(`
  inkwell chapter save <chapter-id> --file draft.html
  cat notes.txt | inkwell chapter save <chapter-id> --file - --plain
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" && title == "" {
				return writeErr(cmd, &domain.ValidationError{Message: "nothing to save; pass --file or --title"})
			}
			var content string
			if file != "" {
				text, err := readInput(cmd, file)
				if err != nil {
					return writeErr(cmd, err)
				}
				if plain {
					content = markup.TextToHTML(text)
				} else {
					content = markup.NewSanitizer().Sanitize(text)
				}
			}

			err := app.withSession(cmd.Context(), args[0], func(ed *editor.Editor, s *editor.Session) error {
				if title != "" {
					if err := ed.Rename(cmd.Context(), s, title); err != nil {
						return err
					}
				}
				if file != "" {
					if err := ed.Edit(s, content); err != nil {
						return err
					}
					err := ed.Save(cmd.Context(), s)
					var conflict *domain.ConflictError
					if errors.As(err, &conflict) && overwrite {
						err = ed.Overwrite(cmd.Context(), s)
					}
					if err != nil {
						return err
					}
				}
				return writeState(cmd, app, s.State())
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Content file (- reads stdin)")
	cmd.Flags().BoolVar(&plain, "plain", false, "Treat the input as plain text paragraphs")
	cmd.Flags().StringVar(&title, "title", "", "Rename the chapter")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace a version saved elsewhere instead of failing")
	return cmd
}

func newChapterRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <chapter-id> <title>",
		Short: "Rename a chapter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := app.withSession(cmd.Context(), args[0], func(ed *editor.Editor, s *editor.Session) error {
				if err := ed.Rename(cmd.Context(), s, args[1]); err != nil {
					return err
				}
				return writeState(cmd, app, s.State())
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
}

func newChapterContinueCmd(app *App) *cobra.Command {
	var (
		instruction string
		words       int
		insert      bool
	)

	cmd := &cobra.Command{
		Use:   "continue <chapter-id>",
		Short: "Stream an AI continuation of a chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			err := app.withSession(ctx, args[0], func(ed *editor.Editor, s *editor.Session) error {
				opts := stream.StartOptions{Instruction: instruction, TargetWords: words}
				if err := ed.Continue(ctx, s, opts); err != nil {
					return err
				}
				awaitJob(ctx, func() { ed.WaitSession(s) }, func() { ed.DiscardContinuation(s) })

				job := ed.ContinuationJob(s)
				if err := jobFailure(job); err != nil {
					return err
				}
				continuation := ed.Continuation(s)
				if insert {
					if err := ed.InsertContinuation(s, -1); err != nil {
						return err
					}
					if err := ed.Save(ctx, s); err != nil {
						return err
					}
				}

				st := s.State()
				payload := map[string]any{"job": jobView(job), "text": continuation}
				if insert {
					payload["chapter"] = stateView(st)
				}
				return writeOut(cmd, app, payload, func(w io.Writer) {
					fmt.Fprintln(w, job.Buffer)
					fmt.Fprintln(w, muted(fmt.Sprintf("%d tokens in %s", job.Tokens, job.Duration)))
					if insert {
						fmt.Fprintf(w, "Inserted and saved as version %d.\n", st.Version)
					}
				})
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&instruction, "instruction", "", "Guidance for the continuation")
	cmd.Flags().IntVar(&words, "words", 0, "Target length in words")
	cmd.Flags().BoolVar(&insert, "insert", false, "Append the finished continuation and save")
	return cmd
}

func writeState(cmd *cobra.Command, app *App, st editor.State) error {
	return writeOut(cmd, app, stateView(st), func(w io.Writer) {
		fmt.Fprintf(w, "%s  %s  v%d  %s\n", idStyle.Render(st.ChapterID), st.Title, st.Version, st.Status)
		if st.LastSnapshot != nil {
			fmt.Fprintln(w, muted(fmt.Sprintf("snapshot v%d (%s)", st.LastSnapshot.Version, snapshotReason(*st.LastSnapshot))))
		}
	})
}

func stateView(st editor.State) map[string]any {
	v := map[string]any{
		"chapter_id": st.ChapterID,
		"title":      st.Title,
		"version":    st.Version,
		"status":     st.Status,
		"word_count": st.WordCount,
	}
	if st.LastSnapshot != nil {
		v["snapshot"] = st.LastSnapshot
	}
	return v
}

func parseVersion(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimPrefix(s, "v"))
	if err != nil || v < 1 {
		return 0, &domain.ValidationError{Message: "version must be a positive number, got " + strconv.Quote(s)}
	}
	return v, nil
}

// readInput reads a file, or stdin for "-"
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}

func snapshotReason(v chapter.VersionSummary) string {
	if r := v.Reason(); r != "" {
		return r
	}
	return "-"
}
