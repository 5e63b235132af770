package epd

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

var errBus = errors.New("bus fault")

// event is one observable action on the bus: a pin change or an SPI write.
type event struct {
	kind  string // "DC", "CS", "RST" or "tx"
	level gpio.Level
	data  []byte
}

// frame is a command byte and all data written after it.
type frame struct {
	cmd  Command
	data []byte
}

// harness fakes the panel wiring and records everything the driver does.
type harness struct {
	spi    conntest.Record
	events []event

	dc, cs, rst *tracedPin
	busy        *busyPin
	clock       *stepClock

	maxTx   int
	status  []byte // GetStatus replies; idle once exhausted
	failAt  int    // 1-based Tx call that fails, 0 never
	txCount int
}

func newHarness() *harness {
	h := &harness{clock: &stepClock{now: time.Unix(0, 0)}}
	h.dc = &tracedPin{Pin: gpiotest.Pin{N: "DC", Num: 25}, h: h}
	h.cs = &tracedPin{Pin: gpiotest.Pin{N: "CS", Num: 8}, h: h}
	h.rst = &tracedPin{Pin: gpiotest.Pin{N: "RST", Num: 17}, h: h}
	h.busy = &busyPin{Pin: gpiotest.Pin{N: "BUSY", Num: 24, L: gpio.High}}
	return h
}

func (h *harness) config() DisplayConfig {
	config := DefaultConfig()
	config.Clock = h.clock
	return config
}

// open brings up a Display on the harness and forgets the init traffic.
func (h *harness) open(t *testing.T) *Display {
	t.Helper()
	d, err := NewFromConn(h, h.dc, h.cs, h.rst, h.busy, h.config())
	if err != nil {
		t.Fatalf("NewFromConn() = %v", err)
	}
	h.clear()
	return d
}

func (h *harness) clear() {
	h.events = nil
	h.spi.Ops = nil
	h.clock.sleeps = nil
}

func (h *harness) String() string {
	return "harness"
}

func (h *harness) Duplex() conn.Duplex {
	return conn.Full
}

func (h *harness) MaxTxSize() int {
	return h.maxTx
}

func (h *harness) Tx(w, r []byte) error {
	h.txCount++
	if h.failAt != 0 && h.txCount == h.failAt {
		return errBus
	}
	if len(r) > 0 {
		reply := statusIdle
		if len(h.status) > 0 {
			reply, h.status = h.status[0], h.status[1:]
		}
		r[0] = reply
	}
	if err := h.spi.Tx(w, nil); err != nil {
		return err
	}
	h.events = append(h.events, event{kind: "tx", data: append([]byte(nil), w...)})
	return nil
}

// written returns every byte sent over SPI, in order.
func (h *harness) written() []byte {
	var all []byte
	for _, op := range h.spi.Ops {
		all = append(all, op.W...)
	}
	return all
}

// frames decodes the event log into commands and their data, failing the
// test when a byte is written while CS is deasserted.
func (h *harness) frames(t *testing.T) []frame {
	t.Helper()
	var out []frame
	dc, cs := gpio.Low, gpio.High
	for i, e := range h.events {
		switch e.kind {
		case "DC":
			dc = e.level
		case "CS":
			cs = e.level
		case "tx":
			if cs != gpio.Low {
				t.Fatalf("event %d: write %#v with CS high", i, e.data)
			}
			if dc == gpio.Low {
				for _, b := range e.data {
					out = append(out, frame{cmd: Command(b)})
				}
				continue
			}
			if len(out) == 0 {
				t.Fatalf("event %d: data %#v before any command", i, e.data)
			}
			out[len(out)-1].data = append(out[len(out)-1].data, e.data...)
		}
	}
	return out
}

func (h *harness) commands(t *testing.T) []Command {
	t.Helper()
	var cmds []Command
	for _, f := range h.frames(t) {
		cmds = append(cmds, f.cmd)
	}
	return cmds
}

// tracedPin is a gpiotest.Pin that logs every level change.
type tracedPin struct {
	gpiotest.Pin
	h *harness
}

func (p *tracedPin) Out(l gpio.Level) error {
	p.h.events = append(p.h.events, event{kind: p.N, level: l})
	return p.Pin.Out(l)
}

// busyPin reads Low for the next lows samples, then its stored level.
type busyPin struct {
	gpiotest.Pin
	lows  int
	reads int
}

func (p *busyPin) Read() gpio.Level {
	p.reads++
	if p.lows > 0 {
		p.lows--
		return gpio.Low
	}
	return p.Pin.Read()
}

// stepClock advances only when slept on.
type stepClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *stepClock) Now() time.Time {
	return c.now
}

func (c *stepClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func repeated(b byte, n int) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func mustPanic(t *testing.T, name string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", name)
		}
	}()
	f()
}

func equalCommands(a, b []Command) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
