package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"yttitle"
	"yttitle/metrics"
	"yttitle/rotation"
	"yttitle/server"
	"yttitle/status"
	"yttitle/storage"
	"yttitle/tui"
)

// lockTimeout bounds how long watch waits for another watcher to let go of
// the config directory.
const lockTimeout = 2 * time.Second

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check whether the channel is live and show the current and next titles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := a.load(cmd, updaterOptions{interactive: true})
			if err != nil {
				return err
			}
			// A failed check is reported in the status line.
			b, _ := u.TriggerCheck(cmd.Context())

			out := cmd.OutOrStdout()
			live := "no"
			if b.IsLive {
				live = "yes"
			}
			printField(out, "Live", live)
			printField(out, "Current title", u.CurrentTitle())
			printField(out, "Next title", u.NextTitle())
			printField(out, "Queued", fmt.Sprint(len(u.Titles())))
			printStatus(out, u.Status())
			return nil
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Push the next title to the live broadcast",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := a.load(cmd, updaterOptions{interactive: true})
			if err != nil {
				return err
			}
			_, err = u.TriggerUpdate(cmd.Context())
			printStatus(cmd.OutOrStdout(), u.Status())
			return err
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <title>",
		Short: "Append a title to the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.load(cmd, updaterOptions{})
			if err != nil {
				return err
			}
			err = u.AddTitle(cmd.Context(), strings.Join(args, " "))
			printStatus(cmd.OutOrStdout(), u.Status())
			return err
		},
	}
}

func newTitlesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "titles",
		Short: "List the queued titles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := a.load(cmd, updaterOptions{})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			titles := u.Titles()
			if len(titles) == 0 {
				fmt.Fprintf(out, "Queue is empty; next update uses: %s\n", u.NextTitle())
				return nil
			}
			for i, title := range titles {
				fmt.Fprintf(out, "%3d. %s\n", i+1, title)
			}
			return nil
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var applied bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the history log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := a.load(cmd, updaterOptions{})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if applied {
				records, err := u.AppliedTitles(cmd.Context())
				if err != nil {
					return err
				}
				for _, r := range records {
					fmt.Fprintf(out, "%s - %s\n", r.Timestamp.Format(storage.TimestampLayout), r.Title)
				}
				return nil
			}

			entries, err := u.History(cmd.Context())
			if err != nil {
				return err
			}
			for _, e := range entries {
				line := fmt.Sprintf("%s - %s", e.Timestamp.Format(storage.TimestampLayout), e.Message)
				if e.Kind == storage.HistoryError {
					line = errorStyle.Render(line)
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&applied, "applied", false, "Show the applied-titles archive instead")
	return cmd
}

func newNextCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Print the title the next update would push",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := a.load(cmd, updaterOptions{})
			if err != nil {
				return err
			}
			title := u.NextTitle()
			if u.NextSource() == rotation.SourceFallback {
				fmt.Fprintln(cmd.ErrOrStderr(), "queue is empty, using generated title")
			}
			fmt.Fprintln(cmd.OutOrStdout(), title)
			return nil
		},
	}
}

func newOpenCmd(a *app) *cobra.Command {
	var titles bool

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open the configuration directory in the file manager",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := a.load(cmd, updaterOptions{})
			if err != nil {
				return err
			}
			if titles {
				err = u.OpenTitlesFile(cmd.Context())
			} else {
				err = u.OpenConfigLocation(cmd.Context())
			}
			printStatus(cmd.OutOrStdout(), u.Status())
			return err
		},
	}
	cmd.Flags().BoolVar(&titles, "titles", false, "Open the titles file instead")
	return cmd
}

func newAuthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to the YouTube account and cache the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			p := yttitle.NewAuthProvider(cfg, yttitle.HostOptions{
				Interactive: true,
				Prompt:      cmd.ErrOrStderr(),
				Logger:      a.logger(cmd, cfg),
			})
			if err := p.Authorize(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Authorized. Token saved to %s\n", p.TokenPath())
			return nil
		},
	}
}

func newWatchCmd(a *app) *cobra.Command {
	var noServer bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run reconciliation cycles every check interval",
		Long: "watch runs a cycle immediately and then every check_interval until interrupted.\n" +
			"It never opens a browser; run `yttitle auth` first. A control API with\n" +
			"Prometheus metrics listens on listen_addr unless --no-server is given.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			log := a.logger(cmd, cfg)
			m := metrics.New()
			u, err := a.updater(cmd, cfg, updaterOptions{metrics: m})
			if err != nil {
				return err
			}

			lock, err := u.Store().Lock(lockTimeout)
			if err != nil {
				if errors.Is(err, storage.ErrLockTimeout) {
					return fmt.Errorf("another watcher owns %s", cfg.ConfigDir)
				}
				return err
			}
			defer lock.Unlock()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srvErr := make(chan error, 1)
			if !noServer {
				go func() {
					err := server.ListenAndServe(ctx, cfg.ListenAddr, server.New(u, log, m), log)
					if err != nil {
						// Without its control API the watcher stops too.
						stop()
					}
					srvErr <- err
				}()
			} else {
				close(srvErr)
			}

			cancelStatus := u.Reporter().Subscribe(func(st status.Status) {
				log.Info("status", "severity", string(st.Severity), "message", st.Message)
			})
			defer cancelStatus()

			log.Info("watching", "config_dir", cfg.ConfigDir, "interval", cfg.CheckInterval.String())
			watchErr := u.Watch(ctx)
			stop()
			if err := <-srvErr; err != nil {
				log.Error("control API failed", "error", err)
				if watchErr == nil {
					watchErr = fmt.Errorf("control API: %w", err)
				}
			}
			return watchErr
		},
	}
	cmd.Flags().BoolVar(&noServer, "no-server", false, "Do not start the control API")
	return cmd
}

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			// The dashboard owns the terminal, so consent cannot be prompted here.
			u, err := a.updater(cmd, cfg, updaterOptions{})
			if err != nil {
				return err
			}
			return tui.Run(cmd.Context(), u, cfg.CheckInterval)
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			data, err := cfg.TOML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return cmd
}
