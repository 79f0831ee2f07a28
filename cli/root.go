package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"yttitle"
	"yttitle/config"
	"yttitle/internal/logger"
	"yttitle/metrics"
	"yttitle/reconcile"
)

// deps are the process-level collaborators; tests replace them.
type deps struct {
	newHost func(cfg *config.Config, opts yttitle.HostOptions) reconcile.VideoHost
	opener  yttitle.Opener
	now     func() time.Time
	envFile string
	workDir string
}

func defaultDeps() deps {
	return deps{
		newHost: func(cfg *config.Config, opts yttitle.HostOptions) reconcile.VideoHost {
			return yttitle.NewYouTubeHost(cfg, opts)
		},
		now: time.Now,
	}
}

// app holds what every subcommand resolves from the persistent flags.
type app struct {
	deps      deps
	configDir string
	logLevel  string
}

func newRootCmd(d deps) *cobra.Command {
	a := &app{deps: d}

	rootCmd := &cobra.Command{
		Use:   "yttitle",
		Short: "Rotate the title of a YouTube live broadcast",
		Long: "yttitle keeps a queue of titles and pushes the next one to the channel's live broadcast,\n" +
			"archiving every applied title. An empty queue falls back to a generated date-based title.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "Directory holding titles, history and credentials")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug|info|warn|error)")

	rootCmd.AddCommand(
		newStatusCmd(a),
		newUpdateCmd(a),
		newAddCmd(a),
		newTitlesCmd(a),
		newHistoryCmd(a),
		newNextCmd(a),
		newOpenCmd(a),
		newAuthCmd(a),
		newWatchCmd(a),
		newTUICmd(a),
		newConfigCmd(a),
	)
	return rootCmd
}

func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{
		ConfigDir: a.configDir,
		EnvFile:   a.deps.envFile,
		WorkDir:   a.deps.workDir,
	})
	if err != nil {
		return nil, err
	}
	if a.logLevel != "" {
		if _, err := logger.ParseLevel(a.logLevel); err != nil {
			return nil, err
		}
		cfg.LogLevel = a.logLevel
	}
	return cfg, nil
}

func (a *app) logger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return logger.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
}

type updaterOptions struct {
	interactive bool
	metrics     *metrics.Metrics
}

// updater builds the facade for one command invocation.
func (a *app) updater(cmd *cobra.Command, cfg *config.Config, o updaterOptions) (*yttitle.Updater, error) {
	log := a.logger(cmd, cfg)
	host := a.deps.newHost(cfg, yttitle.HostOptions{
		Interactive: o.interactive,
		Prompt:      cmd.ErrOrStderr(),
		Logger:      log,
	})

	opts := []yttitle.Option{yttitle.WithLogger(log)}
	if a.deps.opener != nil {
		opts = append(opts, yttitle.WithOpener(a.deps.opener))
	}
	if a.deps.now != nil {
		opts = append(opts, yttitle.WithClock(a.deps.now))
	}
	if o.metrics != nil {
		opts = append(opts, yttitle.WithMetrics(o.metrics))
	}
	return yttitle.New(commandContext(cmd), cfg, host, opts...)
}

func (a *app) load(cmd *cobra.Command, o updaterOptions) (*yttitle.Updater, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	return a.updater(cmd, cfg, o)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
