// Package epd drives the Waveshare 4.2" tri-color (B) e-paper panel over
// SPI/GPIO via periph.io. Hosts without the panel get a file-dump panel so
// the rest of the pipeline stays exercisable.
package epd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"epdday/internal/convert"
	appLog "epdday/internal/log"
)

// Panel is the display surface the renderer draws to.
type Panel interface {
	// Draw pushes packed black/red planes (convert.EPDPlaneSize bytes each)
	// and triggers a full refresh.
	Draw(ctx context.Context, black, red []byte) error
	// Sleep puts the panel into deep sleep. Required before device
	// power-down; a floating panel ghosts.
	Sleep(ctx context.Context) error
	// Close releases bus and pin handles.
	Close() error
}

// DumpPanel writes the planes to files instead of hardware. Used with
// -render-only and on development hosts.
type DumpPanel struct {
	// Dir is where black.bin / red.bin are written.
	Dir string
}

func (d DumpPanel) Draw(_ context.Context, black, red []byte) error {
	if len(black) != convert.EPDPlaneSize || len(red) != convert.EPDPlaneSize {
		return fmt.Errorf("epd: plane size %d/%d, want %d", len(black), len(red), convert.EPDPlaneSize)
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(d.Dir, "black.bin"), black, 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(d.Dir, "red.bin"), red, 0o644); err != nil {
		return err
	}
	appLog.Info("epd: planes dumped", "dir", d.Dir)
	return nil
}

func (DumpPanel) Sleep(context.Context) error { return nil }
func (DumpPanel) Close() error                { return nil }
