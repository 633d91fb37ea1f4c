package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codemanual/internal/config"
	"codemanual/internal/logging"
	"codemanual/internal/manual"
	"codemanual/internal/progress"
)

type rootFlags struct {
	cache       string
	template    string
	output      string
	model       string
	excludeExts []string
	excludeDirs []string
	matchStem   bool
	offline     bool
	fakeLLM     bool
	check       bool
	verbose     bool
	quiet       bool
}

func newRootCommand() *cobra.Command {
	var f rootFlags
	cmd := &cobra.Command{
		Use:   "manual <project-root>",
		Short: "Generate a browsable HTML manual describing every file of a project",
		Long: `Generate a browsable HTML manual describing every file of a project.

Each file gets a short description from a language model. Descriptions are
cached by file name, so later runs only pay for files not seen before.
Every file also lists the other files that mention it.`,
		Example: `  # Document the current directory
  manual .

  # Rebuild from the cache only
  manual --offline ./service

  # Verify the API key works
  manual --check .`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one project root, got %d arguments", len(args))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cfg.ProjectRoot = args[0]
			f.apply(cmd, cfg)

			level := logging.Level(cfg.Verbose, cfg.Quiet)
			if f.check {
				logger := logging.New(level, cmd.ErrOrStderr())
				defer func() { _ = logger.Sync() }()
				return runCheck(cmd, cfg, logger)
			}

			// Logs and the progress bar share stderr; the bar's log writer keeps
			// log lines from splitting the bar.
			var sink progress.Sink = progress.Nop{}
			logOut := cmd.ErrOrStderr()
			if !cfg.Quiet {
				bar := progress.NewBar(cmd.ErrOrStderr(), "Describing files")
				sink = bar
				logOut = bar.LogWriter(logOut)
			}
			logger := logging.New(level, logOut)
			defer func() { _ = logger.Sync() }()
			return runManual(cmd, cfg, sink, logger)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.cache, "cache", "", "description cache file (default descriptions.json)")
	fl.StringVar(&f.template, "template", "", "HTML template containing the {{CONTENT}} placeholder (default template.html)")
	fl.StringVar(&f.output, "output", "", "output document path (default output/manual.html)")
	fl.StringVar(&f.model, "model", "", "model id used for descriptions")
	fl.StringSliceVar(&f.excludeExts, "exclude-ext", nil, "file extensions to skip (replaces the default image list)")
	fl.StringSliceVar(&f.excludeDirs, "exclude-dir", nil, "directory names to skip (replaces the default .git)")
	fl.BoolVar(&f.matchStem, "match-stem", false, "also count mentions of a file name without its extension as references")
	fl.BoolVar(&f.offline, "offline", false, "use cached descriptions only, never call the model")
	fl.BoolVar(&f.fakeLLM, "fake-llm", false, "use a deterministic local stand-in for the model")
	fl.BoolVar(&f.check, "check", false, "send a test prompt to the model and exit")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "log debug output")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "log warnings and errors only, hide the progress bar")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
	cmd.MarkFlagsMutuallyExclusive("offline", "check")
	return cmd
}

// apply overrides environment configuration with explicitly set flags.
func (f *rootFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fl := cmd.Flags()
	if fl.Changed("cache") {
		cfg.CachePath = f.cache
	}
	if fl.Changed("template") {
		cfg.TemplatePath = f.template
	}
	if fl.Changed("output") {
		cfg.OutputPath = f.output
	}
	if fl.Changed("model") {
		cfg.LLM.Model = f.model
	}
	if fl.Changed("exclude-ext") {
		cfg.ExcludeExts = f.excludeExts
	}
	if fl.Changed("exclude-dir") {
		cfg.ExcludeDirs = f.excludeDirs
	}
	if f.matchStem {
		cfg.MatchStem = true
	}
	if f.offline {
		cfg.Offline = true
	}
	if f.fakeLLM {
		cfg.LLM.Fake = true
	}
	cfg.Verbose = f.verbose
	cfg.Quiet = f.quiet
}

func runManual(cmd *cobra.Command, cfg *config.Config, sink progress.Sink, logger *zap.Logger) error {
	res, err := manual.Run(cmd.Context(), cfg, manual.Deps{Sink: sink, Logger: logger})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Manual written to %s (%d files)\n", res.OutputPath, res.Files)
	if res.Published != "" {
		fmt.Fprintf(out, "Published to %s\n", res.Published)
	}
	return nil
}

func runCheck(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger) error {
	reply, err := manual.Check(cmd.Context(), cfg, manual.Deps{Logger: logger})
	if err != nil {
		return fmt.Errorf("model check failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Model %s replied: %s\n", cfg.LLM.Model, reply)
	return nil
}
