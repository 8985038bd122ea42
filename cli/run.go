package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bassamadnan/mailpilot/agent"
	"github.com/bassamadnan/mailpilot/config"
	"github.com/bassamadnan/mailpilot/logging"
	"github.com/bassamadnan/mailpilot/tui"
)

const eventBuffer = 256

// A message produces at most fetched, a verdict, a draft and a send event; a cycle adds
// started, finished and loop_stopped around them.
const (
	eventsPerMessage = 4
	eventsPerCycle   = 3
)

// cycleEventBuffer holds every event a single cycle over batchSize threads can publish,
// so a summary counted from it is never short.
func cycleEventBuffer(batchSize int64) int {
	if batchSize < 1 {
		batchSize = 1
	}
	return int(batchSize)*eventsPerMessage + eventsPerCycle
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// watchFilters reloads the filter file on change until ctx is done.
func watchFilters(ctx context.Context, filters *config.Manager, logger zerolog.Logger) {
	go func() {
		if err := filters.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn().Err(err).Str("path", filters.Path()).Msg("filter hot reload disabled")
		}
	}()
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll the inbox and answer mail until interrupted, logging to the console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, true)
			if err != nil {
				return err
			}
			logger, closer, err := logging.New(logging.FromConfig(cfg.Log, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer closer.Close()

			deps, err := buildAgent(cfg, logger, nil)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			watchFilters(ctx, deps.filters, logger)

			logger.Info().
				Dur("interval", cfg.Poll.Interval).
				Str("query", cfg.Poll.Query).
				Str("model", deps.llm.Model()).
				Msg("agent starting")
			err = deps.loop.Run(ctx)
			logUsage(logger, deps.llm)
			return err
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the agent behind a live dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, true)
			if err != nil {
				return err
			}
			// The dashboard owns the terminal; logs go to the file only.
			logger, closer, err := logging.New(logging.FromConfig(cfg.Log, nil))
			if err != nil {
				return err
			}
			defer closer.Close()

			events := make(chan agent.Event, eventBuffer)
			deps, err := buildAgent(cfg, logger, events)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			watchFilters(ctx, deps.filters, logger)

			loopErr := make(chan error, 1)
			go func() {
				defer close(events)
				loopErr <- deps.loop.Run(ctx)
			}()

			uiErr := tui.Run(tui.Options{
				Events:   events,
				Ignorer:  deps.filters,
				Interval: cfg.Poll.Interval,
			})
			cancel()
			err = <-loopErr
			logUsage(logger, deps.llm)
			if uiErr != nil {
				return fmt.Errorf("dashboard: %w", uiErr)
			}
			return err
		},
	}
}

func newOnceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single poll cycle and print what happened",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, true)
			if err != nil {
				return err
			}
			logger, closer, err := logging.New(logging.FromConfig(cfg.Log, cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer closer.Close()

			events := make(chan agent.Event, cycleEventBuffer(cfg.Poll.BatchSize))
			deps, err := buildAgent(cfg, logger, events)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			st, err := deps.loop.RunOnce(ctx)
			close(events)
			logUsage(logger, deps.llm)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), summarize(events), st)
			return nil
		},
	}
}

type cycleSummary struct {
	Fetched, Screened, Skipped, Drafted, Sent, Failed int
}

func summarize(events <-chan agent.Event) cycleSummary {
	var s cycleSummary
	for ev := range events {
		switch ev.Kind {
		case agent.EventFetched:
			s.Fetched++
		case agent.EventScreened:
			s.Screened++
		case agent.EventSkipped:
			s.Skipped++
		case agent.EventDrafted:
			s.Drafted++
		case agent.EventSent:
			s.Sent++
		case agent.EventDraftFailed, agent.EventSendFailed:
			s.Failed++
		}
	}
	return s
}

func printSummary(w io.Writer, s cycleSummary, st agent.State) {
	fmt.Fprintf(w, "fetched   %d\n", s.Fetched)
	fmt.Fprintf(w, "screened  %d\n", s.Screened)
	fmt.Fprintf(w, "skipped   %d\n", s.Skipped)
	fmt.Fprintf(w, "drafted   %d\n", s.Drafted)
	fmt.Fprintf(w, "sent      %d\n", s.Sent)
	fmt.Fprintf(w, "failed    %d\n", s.Failed)
	fmt.Fprintf(w, "watermark %s\n", st.Watermark.Format("2006-01-02 15:04:05 MST"))
}
