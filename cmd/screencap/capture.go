package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/capture/internal/engine"
	"github.com/breeze-rmm/capture/internal/framewriter"
	"github.com/breeze-rmm/capture/pkg/capture"
	"github.com/breeze-rmm/capture/pkg/frame"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture frames in push mode and save them as images",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCapture()
	},
}

func init() {
	addCaptureFlags(captureCmd, true)
	rootCmd.AddCommand(captureCmd)
}

func newWriter() (*framewriter.Writer, error) {
	format, err := cfg.Format()
	if err != nil {
		return nil, err
	}
	return framewriter.New(cfg.OutputDir, format, cfg.SaveWorkers, cfg.SaveQueueSize)
}

func closeWriter(w *framewriter.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return w.Close(ctx)
}

func runCapture() error {
	settings, err := sessionSettings()
	if err != nil {
		return err
	}
	writer, err := newWriter()
	if err != nil {
		return err
	}

	session, err := capture.NewSession(engine.New(), settings)
	if err != nil {
		return err
	}

	var frames atomic.Int64
	limit := int64(cfg.MaxFrames)
	session.OnFrameArrived(func(f *frame.Frame, ctl capture.FrameControl) error {
		if _, err := writer.SubmitWait(context.Background(), f); err != nil {
			return err
		}
		if n := frames.Add(1); limit > 0 && n >= limit {
			ctl.RequestStop()
		}
		return nil
	})
	session.OnClosed(func() error {
		log.Debug("capture closed", "frames", frames.Load())
		return nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := session.StartDetached()
	if err != nil {
		return err
	}
	log.Info("capture started", "session", session.ID(), "target", session.Config().Target.String(), "out", cfg.OutputDir)

	select {
	case <-handle.Done():
	case <-ctx.Done():
		log.Info("interrupted, stopping capture")
	}
	runErr := handle.Stop()
	writeErr := closeWriter(writer)

	printSummary(os.Stdout, summaryFor(session.Metrics().Snapshot(), writer.Stats()))
	if err := errors.Join(runErr, writeErr); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	return nil
}
