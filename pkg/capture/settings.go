package capture

import (
	"fmt"
	"time"

	"github.com/breeze-rmm/capture/pkg/frame"
)

// Toggle is a tri-state option: leave the engine default, force on, or force off.
type Toggle int

const (
	Default Toggle = iota
	Enabled
	Disabled
)

// ToggleOf converts an explicit boolean into Enabled or Disabled.
func ToggleOf(on bool) Toggle {
	if on {
		return Enabled
	}
	return Disabled
}

// Resolve returns the effective value given the engine default.
func (t Toggle) Resolve(def bool) bool {
	switch t {
	case Enabled:
		return true
	case Disabled:
		return false
	default:
		return def
	}
}

func (t Toggle) String() string {
	switch t {
	case Enabled:
		return "enabled"
	case Disabled:
		return "disabled"
	default:
		return "default"
	}
}

// TargetKind selects what a session captures.
type TargetKind int

const (
	TargetMonitor TargetKind = iota
	TargetWindowName
	TargetWindowHandle
)

func (k TargetKind) String() string {
	switch k {
	case TargetWindowName:
		return "window-name"
	case TargetWindowHandle:
		return "window-handle"
	default:
		return "monitor"
	}
}

// Target is a resolved capture target. Exactly one of the fields applies,
// chosen by Kind.
type Target struct {
	Kind         TargetKind
	MonitorIndex int
	WindowName   string
	WindowHandle uintptr
}

// Monitor targets the monitor at index (0 = primary).
func Monitor(index int) Target { return Target{Kind: TargetMonitor, MonitorIndex: index} }

// WindowName targets the first top-level window whose title contains name.
func WindowName(name string) Target { return Target{Kind: TargetWindowName, WindowName: name} }

// WindowHandle targets a window by native handle (HWND on Windows).
func WindowHandle(h uintptr) Target { return Target{Kind: TargetWindowHandle, WindowHandle: h} }

func (t Target) String() string {
	switch t.Kind {
	case TargetWindowName:
		return fmt.Sprintf("window %q", t.WindowName)
	case TargetWindowHandle:
		return fmt.Sprintf("window 0x%x", t.WindowHandle)
	default:
		return fmt.Sprintf("monitor %d", t.MonitorIndex)
	}
}

// Settings configures a capture session. At most one of MonitorIndex,
// WindowName and WindowHandle may be set; with none set the primary
// monitor is captured.
type Settings struct {
	// MonitorIndex selects a monitor; nil leaves it unset.
	MonitorIndex *int
	// WindowName selects a window by title substring; "" leaves it unset.
	WindowName string
	// WindowHandle selects a window by handle; 0 leaves it unset.
	WindowHandle uintptr

	CursorCapture   Toggle
	DrawBorder      Toggle
	SecondaryWindow Toggle
	// DirtyRegion Enabled reports and renders dirty regions, Disabled only
	// reports them, Default leaves reporting to the engine.
	DirtyRegion Toggle

	// MinimumUpdateInterval throttles frame delivery; 0 uses the engine default.
	MinimumUpdateInterval time.Duration

	// ColorFormat is the pixel layout requested from the engine.
	ColorFormat frame.Layout
}

// DefaultSettings captures the primary monitor in BGRA8 with the cursor.
func DefaultSettings() Settings {
	return Settings{
		CursorCapture: Enabled,
		ColorFormat:   frame.LayoutBGRA8,
	}
}

// Index returns a pointer for Settings.MonitorIndex.
func Index(i int) *int { return &i }

// Target resolves the target selector. It returns ErrConfig when more than
// one selector is set.
func (s Settings) Target() (Target, error) {
	set := 0
	if s.MonitorIndex != nil {
		set++
	}
	if s.WindowName != "" {
		set++
	}
	if s.WindowHandle != 0 {
		set++
	}
	if set > 1 {
		return Target{}, fmt.Errorf("%w: set only one of monitor index, window name, window handle", ErrConfig)
	}
	switch {
	case s.WindowName != "":
		return WindowName(s.WindowName), nil
	case s.WindowHandle != 0:
		return WindowHandle(s.WindowHandle), nil
	case s.MonitorIndex != nil:
		if *s.MonitorIndex < 0 {
			return Target{}, fmt.Errorf("%w: monitor index %d is negative", ErrConfig, *s.MonitorIndex)
		}
		return Monitor(*s.MonitorIndex), nil
	default:
		return Monitor(0), nil
	}
}

// Config is what an engine receives when opening a capture.
type Config struct {
	Target                Target
	CursorCapture         Toggle
	DrawBorder            Toggle
	SecondaryWindow       Toggle
	DirtyRegion           Toggle
	MinimumUpdateInterval time.Duration
	ColorFormat           frame.Layout
}

func (s Settings) config() (Config, error) {
	target, err := s.Target()
	if err != nil {
		return Config{}, err
	}
	if !s.ColorFormat.Valid() {
		return Config{}, fmt.Errorf("%w: color format %s", ErrConfig, s.ColorFormat)
	}
	if s.MinimumUpdateInterval < 0 {
		return Config{}, fmt.Errorf("%w: negative minimum update interval", ErrConfig)
	}
	return Config{
		Target:                target,
		CursorCapture:         s.CursorCapture,
		DrawBorder:            s.DrawBorder,
		SecondaryWindow:       s.SecondaryWindow,
		DirtyRegion:           s.DirtyRegion,
		MinimumUpdateInterval: s.MinimumUpdateInterval,
		ColorFormat:           s.ColorFormat,
	}, nil
}
