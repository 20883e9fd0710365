//go:build windows

package engine

import (
	"fmt"
	"image"
	"strings"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                   = windows.NewLazySystemDLL("user32.dll")
	procEnumWindows          = user32.NewProc("EnumWindows")
	procGetWindowTextW       = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW = user32.NewProc("GetWindowTextLengthW")
	procIsWindowVisible      = user32.NewProc("IsWindowVisible")
	procIsWindow             = user32.NewProc("IsWindow")
	procGetWindowRect        = user32.NewProc("GetWindowRect")
)

type rect struct {
	Left, Top, Right, Bottom int32
}

// Window is a top-level window that can be captured.
type Window struct {
	Handle uintptr `json:"handle" yaml:"handle"`
	Title  string  `json:"title" yaml:"title"`
}

type platformWindows struct{}

// ByName returns the bounds of the first visible top-level window whose
// title contains name.
func (platformWindows) ByName(name string) (image.Rectangle, error) {
	wins, err := ListWindows()
	if err != nil {
		return image.Rectangle{}, err
	}
	for _, w := range wins {
		if strings.Contains(w.Title, name) {
			return windowRect(w.Handle)
		}
	}
	return image.Rectangle{}, fmt.Errorf("%w: no window title contains %q", ErrWindowNotFound, name)
}

func (platformWindows) ByHandle(h uintptr) (image.Rectangle, error) {
	if ok, _, _ := procIsWindow.Call(h); ok == 0 {
		return image.Rectangle{}, fmt.Errorf("%w: handle 0x%x", ErrWindowNotFound, h)
	}
	return windowRect(h)
}

// The runtime never frees callbacks, so one is created for the process and
// EnumWindows calls are serialized around it.
var (
	enumMu       sync.Mutex
	enumFound    []Window
	enumCallback = windows.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
		if visible, _, _ := procIsWindowVisible.Call(hwnd); visible == 0 {
			return 1
		}
		if title := windowTitle(hwnd); title != "" {
			enumFound = append(enumFound, Window{Handle: hwnd, Title: title})
		}
		return 1
	})
)

// ListWindows enumerates visible titled top-level windows.
func ListWindows() ([]Window, error) {
	enumMu.Lock()
	defer enumMu.Unlock()

	enumFound = nil
	if ret, _, err := procEnumWindows.Call(enumCallback, 0); ret == 0 {
		return nil, fmt.Errorf("EnumWindows: %w", err)
	}
	wins := enumFound
	enumFound = nil
	return wins, nil
}

func windowTitle(hwnd uintptr) string {
	n, _, _ := procGetWindowTextLengthW.Call(hwnd)
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf)
}

func windowRect(hwnd uintptr) (image.Rectangle, error) {
	var r rect
	ret, _, err := procGetWindowRect.Call(hwnd, uintptr(unsafe.Pointer(&r)))
	if ret == 0 {
		if errno, ok := err.(syscall.Errno); ok && errno == windows.ERROR_INVALID_WINDOW_HANDLE {
			return image.Rectangle{}, fmt.Errorf("%w: handle 0x%x", ErrWindowNotFound, hwnd)
		}
		return image.Rectangle{}, fmt.Errorf("GetWindowRect: %w", err)
	}
	return image.Rect(int(r.Left), int(r.Top), int(r.Right), int(r.Bottom)), nil
}
