package cli

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"inkwell/internal/domain/models/chapter"
	"inkwell/internal/domain/models/stream"
	"inkwell/internal/service/streaming"

	"github.com/spf13/cobra"
)

func newGenerateCmd(app *App) *cobra.Command {
	var (
		outlineID   string
		instruction string
		words       int
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Stream a new chapter draft from the outline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			projectID, err := app.project()
			if err != nil {
				return writeErr(cmd, err)
			}

			live := app.Format == "text"
			printer := &deltaPrinter{w: cmd.OutOrStdout()}
			controller := streaming.NewController(streaming.Config{
				Jobs:        app.svc.jobs,
				Streams:     app.svc.streams,
				Modes:       app.svc.modes,
				Invalidator: app.svc.chapters,
				OnSelectNewest: func() {
					app.svc.chapters.InvalidateProject(projectID)
				},
				OnChange: func(job stream.Job) {
					if live {
						printer.update(job)
					}
				},
				Metrics: app.svc.metrics,
				Logger:  app.svc.logger,
			})

			opts := stream.StartOptions{
				ProjectID:   projectID,
				OutlineID:   outlineID,
				Instruction: instruction,
				TargetWords: words,
			}
			if err := controller.Start(ctx, stream.ModeGenerate, opts, ""); err != nil {
				return writeErr(cmd, err)
			}
			awaitJob(ctx, controller.Wait, controller.Cancel)

			job := controller.Job()
			if err := jobFailure(job); err != nil {
				return writeErr(cmd, err)
			}

			var newest *chapter.Chapter
			if controller.TakeSelectNewest() {
				chapters, err := app.svc.chapters.ListByProject(ctx, projectID)
				if err != nil {
					return writeErr(cmd, err)
				}
				newest = newestChapter(chapters)
			}

			payload := map[string]any{"job": jobView(job), "text": controller.Rendered()}
			if newest != nil {
				payload["newest_chapter"] = newest
			}
			return writeOut(cmd, app, payload, func(w io.Writer) {
				printer.finish()
				fmt.Fprintln(w, muted(fmt.Sprintf("%d tokens in %s", job.Tokens, job.Duration)))
				if newest != nil {
					fmt.Fprintf(w, "Newest chapter: %s  %s\n", idStyle.Render(newest.ID), newest.Title)
				}
			})
		},
	}

	cmd.Flags().StringVar(&outlineID, "outline", "", "Outline node the chapter should cover")
	cmd.Flags().StringVar(&instruction, "instruction", "", "Guidance for the draft")
	cmd.Flags().IntVar(&words, "words", 0, "Target length in words")
	return cmd
}

func newModesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List generation modes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			modes := app.svc.modes.List()
			return writeOut(cmd, app, modes, func(w io.Writer) {
				for _, m := range modes {
					fmt.Fprintf(w, "%-10s %-18s %s\n", m.ID, m.DisplayName, muted(m.Description))
				}
			})
		},
	}
}

// deltaPrinter writes the part of the buffer not yet printed
type deltaPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	printed int
}

func (p *deltaPrinter) update(job stream.Job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(job.Buffer) < p.printed {
		// buffer was reset by a cancel or restart
		p.printed = 0
		return
	}
	fmt.Fprint(p.w, job.Buffer[p.printed:])
	p.printed = len(job.Buffer)
}

func (p *deltaPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed > 0 {
		fmt.Fprintln(p.w)
	}
}

// awaitJob blocks until wait returns, calling cancel if ctx ends first
func awaitJob(ctx context.Context, wait func(), cancel func()) {
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		cancel()
		<-done
	}
}

// jobFailure turns a job that did not finish into an error
func jobFailure(job stream.Job) error {
	switch job.Status {
	case stream.StatusReady:
		return nil
	case stream.StatusError:
		return &streaming.JobError{JobID: job.ID, Message: job.Err}
	default:
		return fmt.Errorf("generation stopped before it finished: %w", context.Canceled)
	}
}

func jobView(job stream.Job) map[string]any {
	return map[string]any{
		"id":          job.ID,
		"mode":        job.Mode,
		"status":      job.Status,
		"tokens":      job.Tokens,
		"duration_ms": job.Duration.Milliseconds(),
	}
}

func newestChapter(chapters []chapter.Chapter) *chapter.Chapter {
	if len(chapters) == 0 {
		return nil
	}
	newest := slices.MaxFunc(chapters, func(a, b chapter.Chapter) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return &newest
}
