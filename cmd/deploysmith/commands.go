package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/artpar/deploysmith/internal/core/domain"
	"github.com/artpar/deploysmith/internal/shell/console"
	"github.com/artpar/deploysmith/internal/shell/docker"
	"github.com/artpar/deploysmith/internal/shell/pipeline"
	"github.com/artpar/deploysmith/internal/shell/repository"
	"github.com/artpar/deploysmith/internal/shell/store"
	"github.com/artpar/deploysmith/internal/shell/workers"
)

// cli holds state shared by every command.
type cli struct {
	configPath string
	logLevel   string
	out        io.Writer
	errOut     io.Writer

	cfg     *Config
	logger  *slog.Logger
	printer *console.Printer
}

// newRootCommand builds the command tree writing to out and errOut.
func newRootCommand(out, errOut io.Writer) *cobra.Command {
	c := &cli{out: out, errOut: errOut}

	cmd := &cobra.Command{
		Use:           "deploysmith",
		Short:         "Generate Dockerfiles and Kubernetes manifests for a repository",
		Long:          "deploysmith inspects a repository, infers its stack and asks a local Ollama model to write a Dockerfile and a Kubernetes manifest bundle for it.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return c.setup()
		},
	}

	cmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	cmd.AddCommand(
		c.newAnalyzeCommand(),
		c.newGenerateCommand(),
		c.newServeCommand(),
		c.newHistoryCommand(),
		c.newDoctorCommand(),
		newVersionCommand(out),
	)

	return cmd
}

func (c *cli) setup() error {
	cfg, err := LoadConfig(c.configPath)
	if err != nil {
		return &CommandError{Op: "LoadConfig", Err: err, ExitCode: ExitConfigError}
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	c.cfg = cfg
	c.logger = SetupLogger(cfg, c.errOut)
	c.printer = console.New(c.out, isTerminal(c.out))
	return nil
}

// =============================================================================
// analyze
// =============================================================================

func (c *cli) newAnalyzeCommand() *cobra.Command {
	var branch string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze [path-or-url]",
		Short: "Detect the technology stack of a repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := sourceArg(args)
			p := pipeline.New(pipeline.Config{}, pipeline.Deps{
				Provider: repository.NewProvider(repository.Config{}, c.logger),
			}, c.logger)

			profile, err := p.Analyze(cmd.Context(), source, branch)
			if err != nil {
				return &CommandError{Op: "analyze", Err: err, ExitCode: ExitRepositoryError}
			}

			if asJSON {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(profile)
			}
			c.printer.Profile(source, profile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&branch, "branch", "b", "", "Branch to clone for remote repositories")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the profile as JSON")
	return cmd
}

// =============================================================================
// generate
// =============================================================================

func (c *cli) newGenerateCommand() *cobra.Command {
	var (
		branch    string
		kinds     []string
		outputDir string
		verify    bool
		noPreview bool
		skipCheck bool
	)

	cmd := &cobra.Command{
		Use:   "generate [path-or-url]",
		Short: "Generate deployment artifacts for a repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputDir != "" {
				c.cfg.Output.Dir = outputDir
			}
			if cmd.Flags().Changed("verify") {
				c.cfg.Docker.VerifyBuild = verify
			}
			requested, err := parseKinds(kinds)
			if err != nil {
				return &CommandError{Op: "generate", Err: err, ExitCode: ExitConfigError}
			}

			app, err := NewApp(c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer app.Close()

			if !skipCheck {
				if err := app.inference.CheckModel(cmd.Context()); err != nil {
					fmt.Fprintln(c.errOut, "Please start Ollama and ensure the model is downloaded.")
					fmt.Fprintln(c.errOut, "Run: ollama serve")
					fmt.Fprintf(c.errOut, "Run: ollama pull %s\n", app.inference.Model())
					return &CommandError{Op: "CheckModel", Err: err, ExitCode: ExitInferenceError}
				}
			}

			source := sourceArg(args)
			result, err := app.pipeline.Run(cmd.Context(), pipeline.Request{Source: source, Branch: branch, Kinds: requested})
			if err != nil {
				return &CommandError{Op: "generate", Err: err, ExitCode: exitCodeFor(err)}
			}

			c.printer.Profile(source, result.Profile)
			if !noPreview {
				for _, a := range result.Artifacts {
					if !a.Failed() {
						c.printer.Preview(a.Kind.FileName(), a.Kind, a.Artifact.Content)
					}
				}
			}
			c.printer.Result(result)

			if result.Run.Status == domain.RunFailed {
				return &CommandError{Op: "generate", Err: errors.New(result.Run.Error), ExitCode: ExitGenerateError}
			}
			fmt.Fprintf(c.out, "Generation complete. Check the '%s' directory for all generated files.\n", c.cfg.Output.Dir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&branch, "branch", "b", "", "Branch to clone for remote repositories")
	cmd.Flags().StringSliceVarP(&kinds, "kind", "k", nil, "Artifact kinds to generate (container-file, orchestration-bundle)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for generated files")
	cmd.Flags().BoolVar(&verify, "verify", false, "Build the generated Dockerfile with Docker")
	cmd.Flags().BoolVar(&noPreview, "no-preview", false, "Do not print artifact previews")
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Skip the Ollama model check")
	return cmd
}

// =============================================================================
// serve
// =============================================================================

func (c *cli) newServeCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if port != 0 {
				c.cfg.Server.Port = port
			}
			app, err := NewApp(c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer app.Close()

			if c.cfg.Server.Unprotected() {
				c.logger.Warn("API is reachable from other hosts without a token; set server.token or bind server.host to 127.0.0.1",
					"address", c.cfg.Server.Address())
			}

			if app.store != nil {
				pruner := workers.NewHistoryPruner(app.store, workers.HistoryPrunerConfig{
					Retention: c.cfg.Database.Retention,
					Interval:  c.cfg.Database.PruneInterval,
				}, c.logger)
				pruner.Start()
				defer pruner.Stop()
			}

			return NewServer(c.cfg, app, c.logger).Start(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port override")
	return cmd
}

// =============================================================================
// history
// =============================================================================

func (c *cli) newHistoryCommand() *cobra.Command {
	var (
		limit  int
		source string
		remove bool
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs or show one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !c.cfg.Database.Enabled {
				return &CommandError{Op: "history", Err: errors.New("run history is disabled (database.enabled=false)"), ExitCode: ExitConfigError}
			}
			s, err := store.NewSQLiteStore(c.cfg.Database.DSN)
			if err != nil {
				return &CommandError{Op: "history", Err: err, ExitCode: ExitDatabaseError}
			}
			defer s.Close()

			ctx := cmd.Context()
			if len(args) == 0 {
				runs, err := s.ListRuns(ctx, store.ListOptions{Limit: limit, Source: source}.Normalize())
				if err != nil {
					return &CommandError{Op: "history", Err: err, ExitCode: ExitDatabaseError}
				}
				c.printer.Runs(runs)
				return nil
			}

			id := args[0]
			if remove {
				if err := s.DeleteRun(ctx, id); err != nil {
					return &CommandError{Op: "history", Err: err, ExitCode: ExitDatabaseError}
				}
				fmt.Fprintf(c.out, "deleted %s\n", id)
				return nil
			}

			run, err := s.GetRun(ctx, id)
			if err != nil {
				return &CommandError{Op: "history", Err: err, ExitCode: ExitDatabaseError}
			}
			artifacts, err := s.ListArtifacts(ctx, id)
			if err != nil {
				return &CommandError{Op: "history", Err: err, ExitCode: ExitDatabaseError}
			}
			c.printer.RunDetail(run, artifacts)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list")
	cmd.Flags().StringVar(&source, "source", "", "Only list runs for this source")
	cmd.Flags().BoolVar(&remove, "delete", false, "Delete the given run and its artifacts")
	return cmd
}

// =============================================================================
// doctor
// =============================================================================

func (c *cli) newDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check Ollama, git, the database and Docker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := *c.cfg
			cfg.Docker.VerifyBuild = false
			app, err := NewApp(&cfg, c.logger)
			if err != nil {
				return err
			}
			defer app.Close()

			inferenceErr := app.inference.CheckModel(ctx)
			c.printer.Check(fmt.Sprintf("ollama %s (%s)", app.inference.Host(), app.inference.Model()), inferenceErr)

			_, gitErr := exec.LookPath("git")
			c.printer.Check("git", gitErr)

			if app.store != nil {
				_, dbErr := app.store.ListRuns(ctx, store.ListOptions{Limit: 1})
				c.printer.Check("database "+c.cfg.Database.DSN, dbErr)
			}

			v, dockerErr := docker.NewVerifier(c.cfg.Docker.Host, c.logger)
			if dockerErr == nil {
				dockerErr = v.Ping(ctx)
				v.Close()
			}
			label := "docker (optional)"
			if c.cfg.Docker.VerifyBuild {
				label = "docker"
			}
			c.printer.Check(label, dockerErr)

			switch {
			case inferenceErr != nil:
				return &CommandError{Op: "doctor", Err: inferenceErr, ExitCode: ExitInferenceError}
			case c.cfg.Docker.VerifyBuild && dockerErr != nil:
				return &CommandError{Op: "doctor", Err: dockerErr, ExitCode: ExitDockerError}
			}
			return nil
		},
	}
}

// =============================================================================
// version
// =============================================================================

func newVersionCommand(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(out, "deploysmith %s (built %s)\n", Version, BuildTime)
		},
	}
}

// =============================================================================
// Helpers
// =============================================================================

func sourceArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}

func parseKinds(values []string) ([]domain.ArtifactKind, error) {
	kinds := make([]domain.ArtifactKind, 0, len(values))
	for _, v := range values {
		kind, err := domain.ParseArtifactKind(v)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// exitCodeFor maps fatal run errors to exit codes.
func exitCodeFor(err error) int {
	var cloneErr *repository.CloneError
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.As(err, &cloneErr):
		return ExitRepositoryError
	case errors.Is(err, pipeline.ErrNoKinds):
		return ExitConfigError
	}
	return ExitGenerateError
}

// exitCode returns the exit code carried by err.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	return ExitConfigError
}
