package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harrisonrobin/dailyplan/pkg/calendar"
	"github.com/harrisonrobin/dailyplan/pkg/config"
	"github.com/harrisonrobin/dailyplan/pkg/dida"
	"github.com/harrisonrobin/dailyplan/pkg/llm"
	"github.com/harrisonrobin/dailyplan/pkg/pipeline"
)

type globalFlags struct {
	envFile    string
	configFile string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "dailyplan",
		Short: "Plan today from your Dida365 tasks and calendar, and save it as a note",
		Long: `dailyplan fetches open tasks from Dida365 and, when enabled, events from a
CalDAV calendar, asks a chat completion service for a plan for the day and
stores the plan as a note in the configured Dida365 project.

Environment:
` + config.Usage(),
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, flags, false)
		},
	}

	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().StringVar(&flags.configFile, "config", "", "optional config file (yaml, json, toml or edn)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(runCmd(flags))
	root.AddCommand(weeklyCmd(flags))
	root.AddCommand(tasksCmd(flags))
	root.AddCommand(calendarsCmd(flags))
	return root
}

func runCmd(flags *globalFlags) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate today's plan and write it back as a note",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, flags, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan instead of writing the note")
	return cmd
}

func weeklyCmd(flags *globalFlags) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "weekly",
		Short: "Write a report on the past seven days into the weekly project",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(flags)
			if err != nil {
				return err
			}
			if err := cfg.RequireWeekly(); err != nil {
				return err
			}
			return execute(cmd, cfg, log, dryRun, (*pipeline.Pipeline).RunWeekly)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the report instead of writing the note")
	return cmd
}

func tasksCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "Print the task report that would be sent for planning",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(flags)
			if err != nil {
				return err
			}
			if err := cfg.RequireTasks(); err != nil {
				return err
			}

			p := pipeline.New(cfg, dida.NewClient(cfg, log), nil, nil, log)
			res, err := p.FetchTasks(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Report)
			return nil
		},
	}
}

func calendarsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "calendars",
		Short: "List the calendars found on the CalDAV server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(flags)
			if err != nil {
				return err
			}

			names, err := calendar.NewSource(cfg, log).ListCalendars(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(out, "no calendars found")
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}
}

func runPlan(cmd *cobra.Command, flags *globalFlags, dryRun bool) error {
	cfg, log, err := setup(flags)
	if err != nil {
		return err
	}
	if err := cfg.RequirePlan(); err != nil {
		return err
	}

	return execute(cmd, cfg, log, dryRun, (*pipeline.Pipeline).Run)
}

// execute wires the production clients, performs one run and reports it.
func execute(cmd *cobra.Command, cfg *config.Config, log zerolog.Logger, dryRun bool,
	run func(*pipeline.Pipeline, context.Context) (*pipeline.Result, error),
) error {
	p := pipeline.New(cfg,
		dida.NewClient(cfg, log),
		calendar.NewSource(cfg, log),
		llm.NewClient(cfg, log),
		log,
	)
	p.DryRun = dryRun

	res, err := run(p, cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if dryRun {
		fmt.Fprintf(out, "# %s\n\n%s\n", res.Title, strings.TrimRight(res.Plan, "\n"))
		return nil
	}
	log.Info().
		Str("title", res.Title).
		Int("warnings", len(res.Warnings)).
		Msg("note created")
	return nil
}

// setup loads the configuration and builds the run's logger.
func setup(flags *globalFlags) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(config.Options{EnvFile: flags.envFile, File: flags.configFile})
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, newLogger(cfg.Log, flags.verbose, os.Stderr), nil
}

func newLogger(cfg config.LogConfig, verbose bool, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}

	w := out
	if cfg.Format == config.LogFormatConsole {
		consoleWriter := zerolog.NewConsoleWriter()
		consoleWriter.TimeFormat = time.DateTime
		consoleWriter.Out = out
		w = consoleWriter
	}

	log := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("run_id", uuid.NewString()).
		Logger()
	if err != nil {
		log.Warn().Str("level", cfg.Level).Msg("unknown log level, using info")
	}
	return log
}
