//go:build !(linux && arm)

package epd

import (
	"context"
	"errors"
)

// SPIPanel is unavailable off the device; callers fall back to DumpPanel.
type SPIPanel struct{}

func Open(context.Context) (*SPIPanel, error) {
	return nil, errors.New("epd: SPI panel requires linux/arm")
}

func (*SPIPanel) Draw(context.Context, []byte, []byte) error { return errNoPanel }
func (*SPIPanel) Sleep(context.Context) error                { return errNoPanel }
func (*SPIPanel) Close() error                               { return nil }

var errNoPanel = errors.New("epd: no panel on this platform")
