//go:build !windows

package engine

import (
	"fmt"
	"image"
)

// platformWindows reports window capture as unsupported outside Windows.
type platformWindows struct{}

func (platformWindows) ByName(name string) (image.Rectangle, error) {
	return image.Rectangle{}, fmt.Errorf("%w: window capture by name %q", ErrNotSupported, name)
}

func (platformWindows) ByHandle(h uintptr) (image.Rectangle, error) {
	return image.Rectangle{}, fmt.Errorf("%w: window capture by handle 0x%x", ErrNotSupported, h)
}

// Window is a top-level window that can be captured.
type Window struct {
	Handle uintptr `json:"handle" yaml:"handle"`
	Title  string  `json:"title" yaml:"title"`
}

// ListWindows enumerates visible titled top-level windows.
func ListWindows() ([]Window, error) {
	return nil, ErrNotSupported
}
