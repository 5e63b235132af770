// Package epd drives the Waveshare 2.13" (D) flexible e-paper panel, a
// 104x212 black and white display with a UC8151 class controller, over SPI
// using periph.io.
//
// A frame is shown in two steps: UpdateFrame (or UpdatePartialFrame) loads
// pixel data into the controller, DisplayFrame loads the waveform tables for
// the current refresh mode and triggers the physical refresh. Every call
// blocks until the controller is done. A Display must not be used from more
// than one goroutine at a time.
package epd

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Fixed register payloads of the power-on sequence.
var (
	powerSettingData     = []byte{0x03, 0x00, 0x2b, 0x2b, 0x03}
	boosterSoftStartData = []byte{0x17, 0x17, 0x17}
	panelSettingData     = []byte{0xbf, 0x0e}
	pllControlData       = []byte{0x3a}
	vcmDcData            = []byte{0x28}
	vcmDcQuickData       = []byte{0x00}
)

// partialWindowTrailer ends every PartialWindow payload.
const partialWindowTrailer byte = 0x28

type Display struct {
	port spi.PortCloser // nil when the connection was supplied by the caller
	bus  *bus

	config     DisplayConfig
	background Color
	refresh    RefreshMode
	partial    bool // PartialIn sent and not yet undone by PartialOut

	// base mirrors the frame the controller holds as its reference image.
	base       []byte
	baseLoaded bool
}

func New() (*Display, error) {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig initializes the host, opens the SPI port and GPIO pins named
// in config and brings the panel up.
func NewWithConfig(config DisplayConfig) (*Display, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init failed: %w", err)
	}

	port, err := spireg.Open(config.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("SPI open failed: %w", err)
	}

	c, err := port.Connect(config.SPIFrequency, config.SPIMode, 8)
	if err != nil {
		if closeErr := port.Close(); closeErr != nil {
			return nil, fmt.Errorf("SPI connect failed and port close failed: %w", closeErr)
		}
		return nil, fmt.Errorf("SPI connect failed: %w", err)
	}

	dc := gpioreg.ByName(config.DCPin)
	cs := gpioreg.ByName(config.CSPin)
	rst := gpioreg.ByName(config.RSTPin)
	var busy gpio.PinIn
	busyMissing := false
	if config.BUSYPin != "" {
		if p := gpioreg.ByName(config.BUSYPin); p != nil {
			busy = p
		} else {
			busyMissing = true
		}
	}

	if dc == nil || cs == nil || rst == nil || busyMissing {
		if closeErr := port.Close(); closeErr != nil {
			return nil, fmt.Errorf("GPIO init failed and port close failed: %w", closeErr)
		}
		return nil, errors.New("failed to initialize GPIO pins")
	}

	d, err := newDisplay(c, dc, cs, rst, busy, config)
	if err == nil {
		err = d.init()
	}
	if err != nil {
		if closeErr := port.Close(); closeErr != nil {
			return nil, fmt.Errorf("display init failed and port close failed: %w", closeErr)
		}
		return nil, fmt.Errorf("display init failed: %w", err)
	}
	d.port = port
	return d, nil
}

// NewFromConn brings the panel up on an already connected bus. busy may be
// nil, in which case the controller's status register is polled instead.
func NewFromConn(c conn.Conn, dc, cs, rst gpio.PinOut, busy gpio.PinIn, config DisplayConfig) (*Display, error) {
	d, err := newDisplay(c, dc, cs, rst, busy, config)
	if err != nil {
		return nil, err
	}
	if err := d.init(); err != nil {
		return nil, fmt.Errorf("display init failed: %w", err)
	}
	return d, nil
}

func newDisplay(c conn.Conn, dc, cs, rst gpio.PinOut, busy gpio.PinIn, config DisplayConfig) (*Display, error) {
	if config.Clock == nil {
		config.Clock = DefaultConfig().Clock
	}
	if busy != nil {
		if err := busy.In(gpio.Float, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("BUSY pin setup failed: %w", err)
		}
	}
	if err := cs.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("CS pin set failed: %w", err)
	}
	d := &Display{
		bus:        newBus(c, dc, cs, rst, busy, config),
		config:     config,
		background: config.Background,
		base:       make([]byte, FrameLen),
	}
	return d, nil
}

// init runs the power-on sequence. Until it succeeds the controller state is
// unknown, so the driver state is reset before the first byte goes out.
func (d *Display) init() error {
	d.refresh = Full
	d.partial = false
	d.baseLoaded = false
	fill(d.base, d.background.Byte())

	if err := d.bus.reset(d.config.ResetDelayTime, d.config.ResetHoldTime); err != nil {
		return err
	}
	if err := d.bus.sendCommandWithData(PowerSetting, powerSettingData); err != nil {
		return err
	}
	if err := d.bus.sendCommandWithData(BoosterSoftStart, boosterSoftStartData); err != nil {
		return err
	}
	if err := d.bus.sendCommand(PowerOn); err != nil {
		return err
	}
	if err := d.bus.waitUntilIdle(); err != nil {
		return err
	}
	if err := d.bus.sendCommandWithData(PanelSetting, panelSettingData); err != nil {
		return err
	}
	if err := d.bus.sendCommandWithData(PllControl, pllControlData); err != nil {
		return err
	}
	if err := d.bus.sendCommandWithData(ResolutionSetting, []byte{
		byte(Width),
		byte((Height >> 8) & 0xff),
		byte(Height & 0xff),
	}); err != nil {
		return err
	}
	if err := d.bus.sendCommandWithData(VcmDcSetting, vcmDcData); err != nil {
		return err
	}
	return d.bus.waitUntilIdle()
}

// WakeUp runs the full power-on sequence again. It is also the way back to a
// known state after any call returned an error.
func (d *Display) WakeUp() error {
	return d.init()
}

// Sleep is inert: the deep sleep command is not issued and the panel stays
// powered. Callers must not rely on it to power anything down.
func (d *Display) Sleep() error {
	return nil
}

// UpdateFrame loads a full frame. The old image plane is filled with the
// background color and buffer becomes the new image. It panics if buffer is
// not FrameLen bytes long.
func (d *Display) UpdateFrame(buffer []byte) error {
	if len(buffer) != FrameLen {
		panic(fmt.Sprintf("epd: frame buffer is %d bytes, want %d", len(buffer), FrameLen))
	}

	if err := d.leavePartial(); err != nil {
		return err
	}
	d.refresh = Full

	if err := d.bus.sendCommand(DisplayStartTransmission1); err != nil {
		return err
	}
	if err := d.bus.sendRepeated(d.background.Byte(), FrameLen); err != nil {
		return err
	}
	if err := d.bus.sendCommandWithData(DisplayStartTransmission2, buffer); err != nil {
		return err
	}
	copy(d.base, buffer)
	d.baseLoaded = true
	return nil
}

// UpdatePartialFrame loads buffer into the width x height window at (x, y)
// for a quick refresh.
//
// x and width must be multiples of 8, the window must lie inside the panel,
// len(buffer) must equal width*height/8, and the previous update must have
// been a full one (UpdateFrame or ClearFrame, or none since init): the
// controller diffs against the last full frame, so chaining partial updates
// corrupts the picture. Violations panic before anything is sent.
func (d *Display) UpdatePartialFrame(buffer []byte, x, y, width, height int) error {
	checkWindow(len(buffer), x, y, width, height)
	if d.refresh == Quick {
		panic("epd: partial update requires a full update first")
	}

	d.refresh = Quick

	if err := d.bus.sendCommand(PartialIn); err != nil {
		return err
	}
	d.partial = true
	if err := d.bus.sendCommandWithData(PartialWindow, partialWindow(x, y, width, height)); err != nil {
		return err
	}

	inverted := make([]byte, len(buffer))
	for i, b := range buffer {
		inverted[i] = ^b
	}
	if err := d.bus.sendCommandWithData(DisplayStartTransmission1, inverted); err != nil {
		return err
	}
	if err := d.bus.sendCommandWithData(DisplayStartTransmission2, buffer); err != nil {
		return err
	}
	blit(d.base, buffer, x, y, width, height)
	return nil
}

func checkWindow(n, x, y, width, height int) {
	switch {
	case width*height/8 != n:
		panic(fmt.Sprintf("epd: partial buffer is %d bytes, want %d for %dx%d", n, width*height/8, width, height))
	case x%8 != 0:
		panic(fmt.Sprintf("epd: partial x %d is not a multiple of 8", x))
	case width%8 != 0:
		panic(fmt.Sprintf("epd: partial width %d is not a multiple of 8", width))
	case width <= 0 || height <= 0:
		panic(fmt.Sprintf("epd: empty partial window %dx%d", width, height))
	case x < 0 || y < 0 || x+width > Width || y+height > Height:
		panic(fmt.Sprintf("epd: partial window %dx%d at (%d,%d) is outside the panel", width, height, x, y))
	}
}

// partialWindow encodes the PartialWindow payload. The end row low byte is
// (y+height)%256-1 and wraps to 0xff when y+height is a multiple of 256.
func partialWindow(x, y, width, height int) []byte {
	return []byte{
		byte(x),
		byte(x + width - 1),
		byte(y / 256),
		byte(y % 256),
		byte((y + height) / 256),
		byte((y+height)%256 - 1),
		partialWindowTrailer,
	}
}

// DisplayFrame loads the waveform tables for the current refresh mode and
// refreshes the panel.
func (d *Display) DisplayFrame() error {
	if err := d.SetLUT(d.refresh); err != nil {
		return err
	}
	return d.turnOnDisplay()
}

// UpdateAndDisplayFrame shows buffer with a full refresh.
func (d *Display) UpdateAndDisplayFrame(buffer []byte) error {
	if err := d.UpdateFrame(buffer); err != nil {
		return err
	}
	return d.DisplayFrame()
}

// UpdateAndDisplayPartialFrame shows buffer in a window with a quick refresh.
func (d *Display) UpdateAndDisplayPartialFrame(buffer []byte, x, y, width, height int) error {
	if err := d.UpdatePartialFrame(buffer, x, y, width, height); err != nil {
		return err
	}
	return d.DisplayFrame()
}

// ClearFrame fills the panel with the background color using a full
// refresh, whatever mode the previous update used.
func (d *Display) ClearFrame() error {
	if err := d.leavePartial(); err != nil {
		return err
	}
	d.refresh = Full

	color := d.background.Byte()
	if err := d.bus.sendCommand(DisplayStartTransmission1); err != nil {
		return err
	}
	if err := d.bus.sendRepeated(color, FrameLen); err != nil {
		return err
	}
	if err := d.bus.sendCommand(DisplayStartTransmission2); err != nil {
		return err
	}
	if err := d.bus.sendRepeated(^color, FrameLen); err != nil {
		return err
	}
	fill(d.base, color)
	d.baseLoaded = true

	if err := d.SetLUT(Full); err != nil {
		return err
	}
	return d.turnOnDisplay()
}

// SetLUT loads the waveform family for mode. Quick also zeroes the VCOM DC
// level, which stays that way until the next init.
func (d *Display) SetLUT(mode RefreshMode) error {
	luts := lutsFor(mode)
	if mode == Quick {
		if err := d.bus.sendCommandWithData(VcmDcSetting, vcmDcQuickData); err != nil {
			return err
		}
	}

	// The controller advances its LUT register pointer on each write, so the
	// order is fixed.
	if err := d.bus.sendCommandWithData(VcomAndDataIntervalSetting, []byte{vcomAndDataInterval}); err != nil {
		return err
	}
	if err := d.bus.sendCommandWithData(VcomLut, luts.vcom); err != nil {
		return err
	}
	if err := d.bus.sendCommandWithData(WhiteToWhiteLut, luts.ww); err != nil {
		return err
	}
	if err := d.bus.sendCommandWithData(BlackToWhiteLut, luts.bw); err != nil {
		return err
	}
	if err := d.bus.sendCommandWithData(WhiteToBlackLut, luts.wb); err != nil {
		return err
	}
	return d.bus.sendCommandWithData(BlackToBlackLut, luts.bb)
}

// WaitUntilIdle blocks until the controller is idle.
func (d *Display) WaitUntilIdle() error {
	return d.bus.waitUntilIdle()
}

func (d *Display) turnOnDisplay() error {
	if err := d.bus.sendCommand(DisplayRefresh); err != nil {
		return err
	}
	// The datasheet allows as little as 200µs; marginal panels show
	// artifacts below ~100ms.
	d.config.Clock.Sleep(d.config.RefreshSettleTime)
	return d.bus.waitUntilIdle()
}

// leavePartial takes the controller out of partial window mode so the next
// load covers the whole panel.
func (d *Display) leavePartial() error {
	if !d.partial {
		return nil
	}
	if err := d.bus.sendCommand(PartialOut); err != nil {
		return err
	}
	d.partial = false
	return nil
}

func (d *Display) SetBackgroundColor(c Color) {
	d.background = c
}

func (d *Display) BackgroundColor() Color {
	return d.background
}

// RefreshMode reports the mode the next DisplayFrame will use.
func (d *Display) RefreshMode() RefreshMode {
	return d.refresh
}

func (d *Display) Width() int {
	return Width
}

func (d *Display) Height() int {
	return Height
}

func (d *Display) Size() (int, int) {
	return Width, Height
}

// Close releases the SPI port if NewWithConfig opened it. The panel is left
// as it is.
func (d *Display) Close() error {
	if d.port == nil {
		return nil
	}
	return d.port.Close()
}

func fill(buf []byte, v byte) {
	for i := range buf {
		buf[i] = v
	}
}

// blit copies a packed width x height window into a full frame at (x, y).
func blit(frame, window []byte, x, y, width, height int) {
	const stride = (Width + 7) / 8
	rowBytes := width / 8
	for row := 0; row < height; row++ {
		dst := (y+row)*stride + x/8
		copy(frame[dst:dst+rowBytes], window[row*rowBytes:(row+1)*rowBytes])
	}
}
