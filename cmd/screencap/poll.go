package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/capture/internal/engine"
	"github.com/breeze-rmm/capture/pkg/capture"
	"github.com/breeze-rmm/capture/pkg/frame"
)

var pollViaSession bool

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Capture frames in pull mode and save them as images",
	Long: `poll acquires frames on demand. Each acquire waits up to poll_timeout_ms for
a changed frame. With --session the same loop runs through a push-mode
session via the polling adapter.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPoll()
	},
}

func init() {
	addCaptureFlags(pollCmd, true)
	pollCmd.Flags().BoolVar(&pollViaSession, "session", false, "drive the pull engine through a push-mode session")
	rootCmd.AddCommand(pollCmd)
}

func runPoll() error {
	if pollViaSession {
		return runPollSession()
	}

	settings, err := sessionSettings()
	if err != nil {
		return err
	}
	writer, err := newWriter()
	if err != nil {
		return err
	}

	dup, err := capture.NewDuplicationSession(engine.New(), settings)
	if err != nil {
		return err
	}
	defer dup.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("poll started", "session", dup.ID(), "target", dup.Target().String(), "timeout", cfg.PollTimeout().String())

	var loopErr error
	saved := 0
	for ctx.Err() == nil && (cfg.MaxFrames == 0 || saved < cfg.MaxFrames) {
		f, err := dup.AcquireFrame(cfg.PollTimeout())
		if errors.Is(err, capture.ErrAccessLost) {
			log.Info("duplication access lost, recreating")
			if err := dup.Recreate(); err != nil {
				loopErr = err
				break
			}
			continue
		}
		if err != nil {
			loopErr = err
			break
		}
		if f == nil {
			continue
		}
		if _, err := writer.SubmitWait(ctx, f); err != nil {
			if ctx.Err() == nil {
				loopErr = err
			}
			break
		}
		saved++
	}

	writeErr := closeWriter(writer)
	printSummary(os.Stdout, summaryFor(dup.Metrics().Snapshot(), writer.Stats()))
	if err := errors.Join(loopErr, writeErr); err != nil {
		return fmt.Errorf("poll: %w", err)
	}
	return nil
}

// runPollSession runs the pull engine through capture.PollingEngine so the
// session state machine, handlers and stop handle apply to poll mode.
func runPollSession() error {
	settings, err := sessionSettings()
	if err != nil {
		return err
	}
	writer, err := newWriter()
	if err != nil {
		return err
	}

	session, err := capture.NewSession(capture.NewPollingEngine(engine.New(), cfg.PollTimeout()), settings)
	if err != nil {
		return err
	}
	saved := 0
	session.OnFrameArrived(func(f *frame.Frame, ctl capture.FrameControl) error {
		if _, err := writer.SubmitWait(context.Background(), f); err != nil {
			return err
		}
		saved++
		if cfg.MaxFrames > 0 && saved >= cfg.MaxFrames {
			ctl.RequestStop()
		}
		return nil
	})
	session.OnClosed(func() error { return nil })

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := session.StartDetached()
	if err != nil {
		return err
	}
	select {
	case <-handle.Done():
	case <-ctx.Done():
	}
	runErr := handle.Stop()
	writeErr := closeWriter(writer)

	printSummary(os.Stdout, summaryFor(session.Metrics().Snapshot(), writer.Stats()))
	if err := errors.Join(runErr, writeErr); err != nil {
		return fmt.Errorf("poll: %w", err)
	}
	return nil
}
