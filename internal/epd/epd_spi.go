//go:build linux && arm

package epd

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"epdday/internal/convert"
)

// BCM pin assignments for the standard Waveshare e-Paper HAT.
const (
	bcmRST  = 17
	bcmDC   = 25
	bcmBUSY = 24
)

// UC8176 command set (the subset this driver needs).
const (
	cmdPowerSetting     = 0x01
	cmdPowerOff         = 0x02
	cmdPowerOn          = 0x04
	cmdBoosterSoftStart = 0x06
	cmdDeepSleep        = 0x07
	cmdDataBlack        = 0x10
	cmdDisplayRefresh   = 0x12
	cmdDataRed          = 0x13
	cmdVcomDataInterval = 0x50
	cmdResolution       = 0x61
)

const busyTimeout = 30 * time.Second

// SPIPanel is the real 4.2" B panel behind /dev/spidev0.0.
type SPIPanel struct {
	port spi.PortCloser
	conn spi.Conn

	rst  gpio.PinOut
	dc   gpio.PinOut
	busy gpio.PinIn

	powered bool
}

// Open initializes periph.io, claims the SPI bus and GPIO pins, and runs
// the panel's power-on init sequence.
func Open(ctx context.Context) (*SPIPanel, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("epd: periph host init: %w", err)
	}

	port, err := spireg.Open("")
	if err != nil {
		return nil, fmt.Errorf("epd: open SPI port: %w", err)
	}

	conn, err := port.Connect(4*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("epd: connect SPI: %w", err)
	}

	pin := func(n int) gpio.PinIO {
		return gpioreg.ByName(fmt.Sprintf("GPIO%d", n))
	}

	p := &SPIPanel{
		port: port,
		conn: conn,
		rst:  pin(bcmRST),
		dc:   pin(bcmDC),
		busy: pin(bcmBUSY),
	}
	if p.rst == nil || p.dc == nil || p.busy == nil {
		_ = port.Close()
		return nil, fmt.Errorf("epd: GPIO pins unavailable")
	}
	if err := p.busy.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("epd: busy pin: %w", err)
	}

	if err := p.init(ctx); err != nil {
		_ = port.Close()
		return nil, err
	}
	return p, nil
}

func (p *SPIPanel) init(ctx context.Context) error {
	if err := p.reset(); err != nil {
		return err
	}

	steps := []struct {
		cmd  byte
		data []byte
	}{
		{cmdBoosterSoftStart, []byte{0x17, 0x17, 0x17}},
		{cmdPowerSetting, []byte{0x03, 0x00, 0x2B, 0x2B}},
		{cmdPowerOn, nil},
	}
	for _, s := range steps {
		if err := p.command(s.cmd, s.data...); err != nil {
			return err
		}
	}
	if err := p.waitIdle(ctx); err != nil {
		return err
	}

	if err := p.command(cmdResolution,
		byte(convert.EPDWidth>>8), byte(convert.EPDWidth&0xFF),
		byte(convert.EPDHeight>>8), byte(convert.EPDHeight&0xFF),
	); err != nil {
		return err
	}
	if err := p.command(cmdVcomDataInterval, 0x87); err != nil {
		return err
	}

	p.powered = true
	return nil
}

// Draw transmits both planes and runs a full refresh. The refresh takes
// around 15 seconds on this panel; waitIdle bounds it.
func (p *SPIPanel) Draw(ctx context.Context, black, red []byte) error {
	if len(black) != convert.EPDPlaneSize || len(red) != convert.EPDPlaneSize {
		return fmt.Errorf("epd: plane size %d/%d, want %d", len(black), len(red), convert.EPDPlaneSize)
	}

	if err := p.command(cmdDataBlack); err != nil {
		return err
	}
	if err := p.data(black); err != nil {
		return err
	}
	if err := p.command(cmdDataRed); err != nil {
		return err
	}
	if err := p.data(red); err != nil {
		return err
	}

	if err := p.command(cmdDisplayRefresh); err != nil {
		return err
	}
	// The controller needs a beat before BUSY asserts.
	time.Sleep(100 * time.Millisecond)
	return p.waitIdle(ctx)
}

// Sleep powers the panel down into deep sleep. Draw requires a full reopen
// afterwards, which matches the one-draw-per-wake cycle.
func (p *SPIPanel) Sleep(ctx context.Context) error {
	if !p.powered {
		return nil
	}
	if err := p.command(cmdPowerOff); err != nil {
		return err
	}
	if err := p.waitIdle(ctx); err != nil {
		return err
	}
	// 0xA5 is the mandated deep sleep check code.
	if err := p.command(cmdDeepSleep, 0xA5); err != nil {
		return err
	}
	p.powered = false
	return nil
}

func (p *SPIPanel) Close() error {
	return p.port.Close()
}

func (p *SPIPanel) reset() error {
	for _, lv := range []gpio.Level{gpio.High, gpio.Low, gpio.High} {
		if err := p.rst.Out(lv); err != nil {
			return fmt.Errorf("epd: reset pin: %w", err)
		}
		time.Sleep(200 * time.Millisecond)
	}
	return nil
}

func (p *SPIPanel) command(cmd byte, data ...byte) error {
	if err := p.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := p.conn.Tx([]byte{cmd}, nil); err != nil {
		return fmt.Errorf("epd: command %#02x: %w", cmd, err)
	}
	if len(data) > 0 {
		return p.data(data)
	}
	return nil
}

func (p *SPIPanel) data(data []byte) error {
	if err := p.dc.Out(gpio.High); err != nil {
		return err
	}
	// SPI transfers are chunked to stay under the spidev buffer limit.
	const chunk = 4096
	for off := 0; off < len(data); off += chunk {
		end := off + chunk
		if end > len(data) {
			end = len(data)
		}
		if err := p.conn.Tx(data[off:end], nil); err != nil {
			return fmt.Errorf("epd: data tx: %w", err)
		}
	}
	return nil
}

// waitIdle polls the BUSY pin (low = busy on this controller) until release
// or timeout.
func (p *SPIPanel) waitIdle(ctx context.Context) error {
	deadline := time.Now().Add(busyTimeout)
	for p.busy.Read() == gpio.Low {
		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("epd: busy timeout after %s", busyTimeout)
		}
		time.Sleep(20 * time.Millisecond)
	}
	return nil
}
