package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/capture/internal/engine"
	"github.com/breeze-rmm/capture/internal/stream"
	"github.com/breeze-rmm/capture/pkg/capture"
	"github.com/breeze-rmm/capture/pkg/frame"
)

var (
	streamAddr    string
	streamQuality int
)

var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Serve captured frames to browsers over WebSocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.StreamAddr = streamAddr
		}
		if cmd.Flags().Changed("quality") {
			cfg.StreamQuality = streamQuality
		}
		return runStream()
	},
}

func init() {
	addCaptureFlags(streamCmd, false)
	streamCmd.Flags().StringVar(&streamAddr, "addr", "", "listen address (host:port)")
	streamCmd.Flags().IntVar(&streamQuality, "quality", 0, "JPEG quality 1-100")
	rootCmd.AddCommand(streamCmd)
}

func runStream() error {
	settings, err := sessionSettings()
	if err != nil {
		return err
	}
	hub := stream.NewHub(cfg.StreamQuality)

	session, err := capture.NewSession(engine.New(), settings)
	if err != nil {
		return err
	}
	var sent int
	session.OnFrameArrived(func(f *frame.Frame, ctl capture.FrameControl) error {
		if err := hub.Broadcast(f); err != nil {
			return err
		}
		sent++
		if cfg.MaxFrames > 0 && sent >= cfg.MaxFrames {
			ctl.RequestStop()
		}
		return nil
	})
	session.OnClosed(func() error {
		hub.Close()
		return nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handle, err := session.StartDetached()
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- stream.Serve(ctx, cfg.StreamAddr, hub, func(a net.Addr) {
			log.Info("streaming", "url", "http://"+a.String()+"/", "target", session.Config().Target.String())
		})
	}()

	var srvErr error
	served := false
	select {
	case <-handle.Done():
	case <-ctx.Done():
	case srvErr = <-serveErr:
		served = true
	}
	runErr := handle.Stop()
	cancel()
	if !served {
		srvErr = <-serveErr
	}

	st := hub.Stats()
	log.Info("stream finished", "broadcast", st.Broadcast, "sent", st.Sent, "dropped", st.Dropped)
	printSummary(os.Stdout, newSummary(session.Metrics().Snapshot()))
	if err := errors.Join(runErr, srvErr); err != nil {
		return fmt.Errorf("stream: %w", err)
	}
	return nil
}
