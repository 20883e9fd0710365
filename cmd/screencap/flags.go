package main

import (
	"github.com/spf13/cobra"

	"github.com/breeze-rmm/capture/internal/config"
)

type captureFlags struct {
	monitor     int
	window      string
	handle      uint64
	intervalMs  int
	colorFormat string
	cursor      string
	border      string
	dirty       string
	outputDir   string
	imageFormat string
	maxFrames   int
}

var cf captureFlags

// addCaptureFlags registers the capture target and output flags on cmd.
func addCaptureFlags(cmd *cobra.Command, output bool) {
	f := cmd.Flags()
	f.IntVarP(&cf.monitor, "monitor", "m", -1, "monitor index to capture (0 = primary)")
	f.StringVarP(&cf.window, "window", "w", "", "capture the first window whose title contains this text")
	f.Uint64Var(&cf.handle, "handle", 0, "capture the window with this native handle")
	f.IntVar(&cf.intervalMs, "interval", 0, "minimum milliseconds between frames")
	f.StringVar(&cf.colorFormat, "color-format", "", "pixel format requested from the engine: bgra8, rgba8, rgba16f")
	f.StringVar(&cf.cursor, "cursor", "", "cursor capture: default, on, off")
	f.StringVar(&cf.border, "border", "", "capture border: default, on, off")
	f.StringVar(&cf.dirty, "dirty", "", "dirty region mode: default, on (report and render), off (report only)")
	f.IntVarP(&cf.maxFrames, "frames", "n", 0, "stop after this many frames (0 = until interrupted)")
	if output {
		f.StringVarP(&cf.outputDir, "out", "o", "", "directory for saved frames")
		f.StringVar(&cf.imageFormat, "format", "", "image format: png, jpeg, bmp, tiff")
	}
}

// applyCaptureFlags copies explicitly set flags over the loaded config.
func applyCaptureFlags(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	changed := func(name string) bool {
		fl := f.Lookup(name)
		return fl != nil && fl.Changed
	}
	if changed("monitor") {
		c.MonitorIndex = cf.monitor
	}
	if changed("window") {
		c.WindowName = cf.window
	}
	if changed("handle") {
		c.WindowHandle = cf.handle
	}
	if changed("interval") {
		c.MinimumUpdateIntervalMs = cf.intervalMs
	}
	if changed("color-format") {
		c.ColorFormat = cf.colorFormat
	}
	if changed("cursor") {
		c.CursorCapture = cf.cursor
	}
	if changed("border") {
		c.DrawBorder = cf.border
	}
	if changed("dirty") {
		c.DirtyRegion = cf.dirty
	}
	if changed("frames") {
		c.MaxFrames = cf.maxFrames
	}
	if changed("out") {
		c.OutputDir = cf.outputDir
	}
	if changed("format") {
		c.ImageFormat = cf.imageFormat
	}
}
