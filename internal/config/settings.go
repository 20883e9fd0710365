package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/breeze-rmm/capture/pkg/capture"
	"github.com/breeze-rmm/capture/pkg/frame"
)

// ParseToggle maps default/on/off (and true/false, enabled/disabled) to a
// capture.Toggle. Empty means default.
func ParseToggle(s string) (capture.Toggle, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return capture.Default, nil
	case "on", "true", "enabled":
		return capture.Enabled, nil
	case "off", "false", "disabled":
		return capture.Disabled, nil
	default:
		return capture.Default, fmt.Errorf("invalid toggle %q (use default, on or off)", s)
	}
}

// Settings converts the file/env config into capture settings. Conflicting
// target selectors pass through untouched so capture.NewSession reports
// capture.ErrConfig.
func (c *Config) Settings() (capture.Settings, error) {
	s := capture.DefaultSettings()

	if c.MonitorIndex >= 0 {
		s.MonitorIndex = capture.Index(c.MonitorIndex)
	}
	s.WindowName = c.WindowName
	s.WindowHandle = uintptr(c.WindowHandle)

	toggles := []struct {
		key string
		val string
		dst *capture.Toggle
	}{
		{"cursor_capture", c.CursorCapture, &s.CursorCapture},
		{"draw_border", c.DrawBorder, &s.DrawBorder},
		{"secondary_window", c.SecondaryWindow, &s.SecondaryWindow},
		{"dirty_region", c.DirtyRegion, &s.DirtyRegion},
	}
	for _, tg := range toggles {
		t, err := ParseToggle(tg.val)
		if err != nil {
			return capture.Settings{}, fmt.Errorf("%s: %w", tg.key, err)
		}
		*tg.dst = t
	}

	layout, err := frame.ParseLayout(c.ColorFormat)
	if err != nil {
		return capture.Settings{}, fmt.Errorf("color_format: %w", err)
	}
	s.ColorFormat = layout
	s.MinimumUpdateInterval = time.Duration(c.MinimumUpdateIntervalMs) * time.Millisecond
	return s, nil
}

// PollTimeout returns poll_timeout_ms as a duration.
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutMs) * time.Millisecond
}

// Format returns the parsed image_format.
func (c *Config) Format() (frame.Format, error) {
	return frame.ParseFormat(c.ImageFormat)
}
