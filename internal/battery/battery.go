// Package battery reads the PiSugar pack that powers the display between
// wakes. Voltage sampling itself is hardware-owned; this package only
// surfaces the controller's registers for the status line and the API.
package battery

import (
	"context"
	"errors"
	"math/rand"
	"runtime"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// PiSugar3 register map.
const (
	regVoltageHigh = 0x22 // battery voltage high byte (mV)
	regVoltageLow  = 0x23 // battery voltage low byte (mV)
	regPercent     = 0x2A // battery percentage 0–100

	// DefaultAddr is the PiSugar3 7-bit I2C address.
	DefaultAddr = 0x57
)

// Status is the current battery state for the display and the web API.
type Status struct {
	// Percent is the battery level in 0–100%.
	Percent int `json:"percent"`
	// VoltageMv is the battery voltage in millivolts, if known.
	VoltageMv int `json:"voltage_mv"`
}

// Reader abstracts how battery information is obtained, so development
// hosts without the I2C controller still get a working status line.
type Reader interface {
	Read(ctx context.Context) (Status, error)
}

// mockReader returns pseudo-random percentages for development and demos.
type mockReader struct {
	rnd *rand.Rand
}

// NewMockReader constructs a Reader that generates random percentages.
func NewMockReader() Reader {
	return &mockReader{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *mockReader) Read(_ context.Context) (Status, error) {
	// 20..100 inclusive; voltage left unknown.
	return Status{Percent: 20 + m.rnd.Intn(81)}, nil
}

// i2cReader talks to the PiSugar3 controller over I2C. Bus setup happens
// lazily at Read time so construction never touches hardware.
type i2cReader struct {
	busName string
	addr    uint16
}

// NewI2CReader constructs an I2C-backed Reader. busName "" selects the
// default bus (typically /dev/i2c-1 on a Raspberry Pi).
func NewI2CReader(busName string, addr uint16) Reader {
	return &i2cReader{busName: busName, addr: addr}
}

func (r *i2cReader) Read(_ context.Context) (Status, error) {
	if runtime.GOOS != "linux" {
		return Status{}, errors.New("battery: i2c reader unavailable on this platform")
	}
	if _, err := host.Init(); err != nil {
		return Status{}, err
	}

	bus, err := i2creg.Open(r.busName)
	if err != nil {
		return Status{}, err
	}
	defer bus.Close()

	dev := &i2c.Dev{Bus: bus, Addr: r.addr}

	readReg := func(reg byte) (byte, error) {
		buf := []byte{0}
		if err := dev.Tx([]byte{reg}, buf); err != nil {
			return 0, err
		}
		return buf[0], nil
	}

	high, err := readReg(regVoltageHigh)
	if err != nil {
		return Status{}, err
	}
	low, err := readReg(regVoltageLow)
	if err != nil {
		return Status{}, err
	}

	pct, err := readReg(regPercent)
	if err != nil {
		return Status{}, err
	}
	if pct > 100 {
		pct = 100
	}

	return Status{
		Percent:   int(pct),
		VoltageMv: int(uint16(high)<<8 | uint16(low)),
	}, nil
}

// DefaultReader probes the PiSugar over I2C and falls back to the mock when
// the controller is absent, so callers only ever see the Reader interface.
func DefaultReader() Reader {
	if runtime.GOOS != "linux" {
		return NewMockReader()
	}

	r := NewI2CReader("", DefaultAddr)
	if _, err := r.Read(context.Background()); err != nil {
		return NewMockReader()
	}
	return r
}
