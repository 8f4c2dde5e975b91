// Package display implements the renderer that turns a display selection
// into panel refreshes, via the capture → pack → draw pipeline.
package display

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"net/url"
	"path/filepath"

	"epdday/internal/capture"
	"epdday/internal/convert"
	"epdday/internal/epd"
	appLog "epdday/internal/log"
	"epdday/internal/model"
)

// Renderer is the sink for ranking output and status screens.
type Renderer interface {
	Render(ctx context.Context, sel model.DisplaySelection) error
	RenderMessage(ctx context.Context, title, detail string) error
	RenderSetupScreen(ctx context.Context, mode, info string) error
}

// PanelRenderer screenshots the local /display page and pushes the packed
// planes to a panel. With an epd.DumpPanel it doubles as the render-only
// pipeline.
type PanelRenderer struct {
	// BaseURL is the local web server, e.g. "http://127.0.0.1:8080".
	BaseURL string
	// StateDir receives preview.png alongside the panel refresh.
	StateDir string
	Panel    epd.Panel
}

func (r *PanelRenderer) Render(ctx context.Context, sel model.DisplaySelection) error {
	appLog.Info("rendering selection", "slots", len(sel))
	return r.renderPath(ctx, "/display")
}

func (r *PanelRenderer) RenderMessage(ctx context.Context, title, detail string) error {
	q := url.Values{"mode": {"message"}, "title": {title}, "detail": {detail}}
	return r.renderPath(ctx, "/display?"+q.Encode())
}

func (r *PanelRenderer) RenderSetupScreen(ctx context.Context, mode, info string) error {
	q := url.Values{"mode": {"setup"}, "info": {fmt.Sprintf("%s: %s", mode, info)}}
	return r.renderPath(ctx, "/display?"+q.Encode())
}

func (r *PanelRenderer) renderPath(ctx context.Context, path string) error {
	pngBytes, err := capture.DisplayPNG(ctx, capture.Options{
		URL:        r.BaseURL + path,
		OutputPath: filepath.Join(r.StateDir, "preview.png"),
	})
	if err != nil {
		return err
	}

	img, err := decodeNRGBA(pngBytes)
	if err != nil {
		return fmt.Errorf("display: decode capture: %w", err)
	}

	black, red, err := convert.PackNRGBA(img)
	if err != nil {
		return err
	}

	if err := r.Panel.Draw(ctx, black, red); err != nil {
		return err
	}
	// The panel must be asleep before the device powers down.
	return r.Panel.Sleep(ctx)
}

func decodeNRGBA(data []byte) (*image.NRGBA, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba, nil
	}
	out := image.NewNRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out, nil
}
