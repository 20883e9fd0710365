package config

import (
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/breeze-rmm/capture/pkg/frame"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

var validToggles = map[string]bool{
	"":         true,
	"default":  true,
	"on":       true,
	"off":      true,
	"true":     true,
	"false":    true,
	"enabled":  true,
	"disabled": true,
}

// clampInt pulls *v into [lo, hi], recording a warning when it moves.
func clampInt(errs *[]error, key string, v *int, lo, hi int) {
	switch {
	case *v < lo:
		*errs = append(*errs, fmt.Errorf("%s %d is below minimum %d, clamping", key, *v, lo))
		*v = lo
	case *v > hi:
		*errs = append(*errs, fmt.Errorf("%s %d exceeds maximum %d, clamping", key, *v, hi))
		*v = hi
	}
}

// Validate checks the config and returns all problems found. Out-of-range
// numbers are clamped in place; the remaining errors are fatal for commands
// that use the affected keys. Every problem is also logged as a warning.
func (c *Config) Validate() []error {
	var errs []error

	targets := 0
	if c.MonitorIndex >= 0 {
		targets++
	}
	if c.WindowName != "" {
		targets++
	}
	if c.WindowHandle != 0 {
		targets++
	}
	if targets > 1 {
		errs = append(errs, fmt.Errorf("set only one of monitor_index, window_name, window_handle"))
	}
	if c.MonitorIndex < -1 {
		errs = append(errs, fmt.Errorf("monitor_index %d is below -1, clamping", c.MonitorIndex))
		c.MonitorIndex = -1
	}

	for key, val := range map[string]string{
		"cursor_capture":   c.CursorCapture,
		"draw_border":      c.DrawBorder,
		"secondary_window": c.SecondaryWindow,
		"dirty_region":     c.DirtyRegion,
	} {
		if !validToggles[strings.ToLower(strings.TrimSpace(val))] {
			errs = append(errs, fmt.Errorf("%s %q is not valid (use default, on or off)", key, val))
		}
	}

	clampInt(&errs, "minimum_update_interval_ms", &c.MinimumUpdateIntervalMs, 0, 10000)

	if _, err := frame.ParseLayout(c.ColorFormat); err != nil {
		errs = append(errs, fmt.Errorf("color_format: %w", err))
	}
	if _, err := frame.ParseFormat(c.ImageFormat); err != nil {
		errs = append(errs, fmt.Errorf("image_format: %w", err))
	}

	clampInt(&errs, "max_frames", &c.MaxFrames, 0, 1_000_000)
	clampInt(&errs, "save_workers", &c.SaveWorkers, 1, 32)
	clampInt(&errs, "save_queue_size", &c.SaveQueueSize, 1, 1024)
	clampInt(&errs, "poll_timeout_ms", &c.PollTimeoutMs, 1, 5000)
	clampInt(&errs, "stream_quality", &c.StreamQuality, 1, 100)

	if c.StreamAddr != "" {
		if _, _, err := net.SplitHostPort(c.StreamAddr); err != nil {
			errs = append(errs, fmt.Errorf("stream_addr %q is not host:port: %w", c.StreamAddr, err))
		}
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	for _, err := range errs {
		slog.Warn("config validation", "error", err)
	}
	return errs
}
