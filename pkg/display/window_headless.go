//go:build headless

package display

import (
	"context"
)

// Window is unavailable in headless builds.
type Window struct{}

// NewWindow returns a window whose Run always fails.
func NewWindow(path string, scene *Scene, opts Options) *Window {
	return &Window{}
}

// Run returns ErrUnsupported.
func (w *Window) Run(ctx context.Context) error {
	return ErrUnsupported
}
