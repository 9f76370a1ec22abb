package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"inkwell/internal/auth"
	"inkwell/internal/capabilities"
	"inkwell/internal/config"
	"inkwell/internal/domain"
	"inkwell/internal/domain/models"
	"inkwell/internal/domain/repositories"
	"inkwell/internal/metrics"
	"inkwell/internal/repository/cache"
	"inkwell/internal/repository/httpapi"
	"inkwell/internal/repository/httpapi/sse"
	"inkwell/internal/seed"

	"github.com/spf13/cobra"
)

type App struct {
	APIURL    string
	Token     string
	ProjectID string
	Role      string
	Format    string
	Demo      bool
	Yes       bool
	Verbose   bool

	cfg *config.Config
	svc *services
}

// services holds the collaborators built once per invocation
type services struct {
	logger   *slog.Logger
	closeLog func() error
	metrics  *metrics.Metrics
	role     models.Role
	modes    *capabilities.Registry

	chapters *cache.ChapterRepository
	outline  repositories.OutlineRepository
	plot     repositories.PlotRepository
	jobs     repositories.GenerationRepository
	streams  repositories.StreamOpener
}

func NewRootCmd() *cobra.Command {
	app := &App{cfg: config.Load()}

	cmd := &cobra.Command{
		Use:          "inkwell",
		Short:        "Inkwell manuscript workspace CLI",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Browse the bundled sample novel without a server
  inkwell --demo chapter list

  # Edit against a running API
  inkwell --api http://localhost:8080 --project <id> outline show

  # Stream a continuation and append it to the chapter
  inkwell chapter continue <chapter-id> --insert
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.setup(cmd)
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return app.teardown()
	}

	cmd.PersistentFlags().StringVar(&app.APIURL, "api", app.cfg.APIURL, "API base URL (INKWELL_API_URL)")
	cmd.PersistentFlags().StringVar(&app.Token, "token", app.cfg.Token, "Bearer token (INKWELL_TOKEN)")
	cmd.PersistentFlags().StringVar(&app.ProjectID, "project", app.cfg.ProjectID, "Project id (INKWELL_PROJECT)")
	cmd.PersistentFlags().StringVar(&app.Role, "role", envOr("INKWELL_ROLE", string(models.RoleOwner)), "Project role used for permission checks")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("INKWELL_FORMAT", "text"), "Output format (text|json)")
	cmd.PersistentFlags().BoolVar(&app.Demo, "demo", false, "Use an in-memory sample project instead of the API")
	cmd.PersistentFlags().BoolVarP(&app.Yes, "yes", "y", false, "Approve destructive actions without prompting")
	cmd.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", false, "Log to stderr")

	cmd.AddCommand(newChapterCmd(app))
	cmd.AddCommand(newGenerateCmd(app))
	cmd.AddCommand(newOutlineCmd(app))
	cmd.AddCommand(newPlotCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newModesCmd(app))

	return cmd
}

func (app *App) setup(cmd *cobra.Command) error {
	if app.Format != "text" && app.Format != "json" {
		return writeErr(cmd, &domain.ValidationError{Message: "unsupported --format " + app.Format})
	}
	role, err := models.ParseRole(app.Role)
	if err != nil {
		return writeErr(cmd, &domain.ValidationError{Message: err.Error()})
	}

	var logOut io.Writer = io.Discard
	if app.Verbose {
		logOut = cmd.ErrOrStderr()
	}
	logger, closeLog, err := config.NewLogger(app.cfg, logOut)
	if err != nil {
		return writeErr(cmd, err)
	}

	modes, err := capabilities.NewRegistry()
	if err != nil {
		closeLog()
		return writeErr(cmd, fmt.Errorf("load generation modes: %w", err))
	}

	svc := &services{
		logger:   logger,
		closeLog: closeLog,
		metrics:  metrics.New(),
		role:     role,
		modes:    modes,
	}

	var chapters repositories.ChapterRepository
	if app.Demo {
		stores, err := seed.NewDemoSeeder(logger).Seed(cmd.Context())
		if err != nil {
			closeLog()
			return writeErr(cmd, err)
		}
		if app.ProjectID == "" {
			app.ProjectID = seed.DemoProjectID
		}
		chapters = stores.Chapters
		svc.outline = stores.Outline
		svc.plot = stores.Plot
		svc.jobs = stores.Jobs
		svc.streams = stores.Jobs
	} else {
		idle := app.cfg.SSEIdleTimeout
		client := httpapi.NewClient(httpapi.Config{
			BaseURL:    app.APIURL,
			Tokens:     auth.NewStaticTokenSource(app.Token, logger),
			MaxRetries: app.cfg.HTTPMaxRetries,
			SSE:        &sse.Config{IdleTimeout: idle, BufferSize: sse.DefaultConfig().BufferSize},
			Metrics:    svc.metrics,
			Logger:     logger,
		})
		generation := httpapi.NewGenerationRepository(client, modes)
		chapters = httpapi.NewChapterRepository(client)
		svc.outline = httpapi.NewOutlineRepository(client)
		svc.plot = httpapi.NewPlotRepository(client)
		svc.jobs = generation
		svc.streams = generation
	}
	svc.chapters = cache.NewChapterRepository(chapters, logger)

	app.svc = svc
	logger.Debug("cli ready", "command", cmd.CommandPath(), "demo", app.Demo, "project_id", app.ProjectID)
	return nil
}

func (app *App) teardown() error {
	if app.svc == nil || app.svc.closeLog == nil {
		return nil
	}
	return app.svc.closeLog()
}

// project returns the selected project or a validation error
func (app *App) project() (string, error) {
	if strings.TrimSpace(app.ProjectID) == "" {
		return "", &domain.ValidationError{Message: "no project selected; pass --project or set INKWELL_PROJECT"}
	}
	return app.ProjectID, nil
}

// confirm approves destructive actions via --yes or an interactive y/N prompt
func (app *App) confirm(cmd *cobra.Command) domain.ConfirmFunc {
	return func(prompt string) bool {
		if app.Yes {
			return true
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N] ", prompt)
		var answer string
		if _, err := fmt.Fscanln(cmd.InOrStdin(), &answer); err != nil {
			return false
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	}
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// writeOut prints v as a {"data": v} envelope in json mode, or calls text
func writeOut(cmd *cobra.Command, app *App, v any, text func(w io.Writer)) error {
	if app.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]any{"data": v})
	}
	text(cmd.OutOrStdout())
	return nil
}

func writeErr(cmd *cobra.Command, err error) error {
	msg := err.Error()
	var conflict *domain.ConflictError
	if errors.As(err, &conflict) || errors.Is(err, domain.ErrNotConfirmed) || errors.Is(err, domain.ErrUnauthorized) {
		msg = domain.UserMessage(err)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), msg)
	return err
}
