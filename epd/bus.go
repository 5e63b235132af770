package epd

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
)

// ErrBusyTimeout is returned when DisplayConfig.BusyTimeout is set and the
// controller stays busy for longer than that.
var ErrBusyTimeout = errors.New("timeout waiting for display to be ready")

// Clock is the delay primitive the driver blocks on. clockwork.Clock
// satisfies it.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

const (
	// busyIdleLevel is the BUSY line level reported by an idle controller.
	busyIdleLevel = gpio.High
	// statusIdle is the bit of the GetStatus reply that is set when idle.
	statusIdle byte = 0x01
	// repeatChunk bounds the scratch buffer used by sendRepeated.
	repeatChunk = 256
)

// bus frames commands and data on the SPI connection and synchronizes with
// the controller's BUSY signal.
type bus struct {
	conn  conn.Conn
	dc    gpio.PinOut
	cs    gpio.PinOut
	rst   gpio.PinOut
	busy  gpio.PinIn
	clock Clock
	maxTx int

	pollTime time.Duration
	timeout  time.Duration
	onBusy   func(busy bool)
}

func newBus(c conn.Conn, dc, cs, rst gpio.PinOut, busy gpio.PinIn, config DisplayConfig) *bus {
	b := &bus{
		conn:     c,
		dc:       dc,
		cs:       cs,
		rst:      rst,
		busy:     busy,
		clock:    config.Clock,
		pollTime: config.BusyPollTime,
		timeout:  config.BusyTimeout,
		onBusy:   config.OnBusyStateChange,
	}
	if l, ok := c.(conn.Limits); ok {
		b.maxTx = l.MaxTxSize()
	}
	return b
}

func (b *bus) setPin(pin gpio.PinOut, level gpio.Level, name string) error {
	if err := pin.Out(level); err != nil {
		return fmt.Errorf("%s pin set failed: %w", name, err)
	}
	return nil
}

// release deasserts CS after a failed transfer. The transfer error is the
// one worth reporting, so a failure here is dropped.
func (b *bus) release() {
	_ = b.cs.Out(gpio.High)
}

// write sends p in as many transactions as the connection's size limit
// requires. CS and DC must already be set.
func (b *bus) write(p []byte) error {
	for len(p) > 0 {
		n := len(p)
		if b.maxTx > 0 && n > b.maxTx {
			n = b.maxTx
		}
		if err := b.conn.Tx(p[:n], nil); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// begin selects the controller with DC set for a command byte.
func (b *bus) begin() error {
	if err := b.setPin(b.dc, gpio.Low, "DC"); err != nil {
		return err
	}
	return b.setPin(b.cs, gpio.Low, "CS")
}

func (b *bus) sendCommand(cmd Command) error {
	if err := b.begin(); err != nil {
		return err
	}
	if err := b.conn.Tx([]byte{byte(cmd)}, nil); err != nil {
		b.release()
		return err
	}
	return b.setPin(b.cs, gpio.High, "CS")
}

// sendCommandWithData sends cmd followed by its payload inside one CS window.
func (b *bus) sendCommandWithData(cmd Command, data []byte) error {
	if len(data) == 0 {
		return b.sendCommand(cmd)
	}
	if err := b.begin(); err != nil {
		return err
	}
	if err := b.conn.Tx([]byte{byte(cmd)}, nil); err != nil {
		b.release()
		return err
	}
	if err := b.setPin(b.dc, gpio.High, "DC"); err != nil {
		b.release()
		return err
	}
	if err := b.write(data); err != nil {
		b.release()
		return err
	}
	return b.setPin(b.cs, gpio.High, "CS")
}

// sendRepeated writes count copies of v as data without building a buffer
// of that size.
func (b *bus) sendRepeated(v byte, count int) error {
	if count <= 0 {
		return nil
	}
	size := repeatChunk
	if count < size {
		size = count
	}
	if b.maxTx > 0 && b.maxTx < size {
		size = b.maxTx
	}
	chunk := bytes.Repeat([]byte{v}, size)

	if err := b.setPin(b.dc, gpio.High, "DC"); err != nil {
		return err
	}
	if err := b.setPin(b.cs, gpio.Low, "CS"); err != nil {
		return err
	}
	for count > 0 {
		n := size
		if count < n {
			n = count
		}
		if err := b.conn.Tx(chunk[:n], nil); err != nil {
			b.release()
			return err
		}
		count -= n
	}
	return b.setPin(b.cs, gpio.High, "CS")
}

// readStatus issues GetStatus and clocks one reply byte back in.
func (b *bus) readStatus() (byte, error) {
	if err := b.begin(); err != nil {
		return 0, err
	}
	if err := b.conn.Tx([]byte{byte(GetStatus)}, nil); err != nil {
		b.release()
		return 0, err
	}
	if err := b.setPin(b.dc, gpio.High, "DC"); err != nil {
		b.release()
		return 0, err
	}
	r := make([]byte, 1)
	if err := b.conn.Tx([]byte{0x00}, r); err != nil {
		b.release()
		return 0, err
	}
	return r[0], b.setPin(b.cs, gpio.High, "CS")
}

func (b *bus) idle() (bool, error) {
	if b.busy != nil {
		return b.busy.Read() == busyIdleLevel, nil
	}
	status, err := b.readStatus()
	if err != nil {
		return false, err
	}
	return status&statusIdle != 0, nil
}

// waitUntilIdle blocks until the controller reports idle. Without a timeout
// configured it never gives up.
func (b *bus) waitUntilIdle() error {
	if b.onBusy != nil {
		b.onBusy(true)
		defer b.onBusy(false)
	}

	var deadline time.Time
	if b.timeout > 0 {
		deadline = b.clock.Now().Add(b.timeout)
	}
	for {
		idle, err := b.idle()
		if err != nil {
			return err
		}
		if idle {
			return nil
		}
		if b.timeout > 0 && !b.clock.Now().Before(deadline) {
			return ErrBusyTimeout
		}
		b.clock.Sleep(b.pollTime)
	}
}

// reset pulses RST low for low, then holds it high for high.
func (b *bus) reset(low, high time.Duration) error {
	if err := b.setPin(b.rst, gpio.Low, "RST"); err != nil {
		return err
	}
	b.clock.Sleep(low)
	if err := b.setPin(b.rst, gpio.High, "RST"); err != nil {
		return err
	}
	b.clock.Sleep(high)
	return nil
}
