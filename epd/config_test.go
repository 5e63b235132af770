package epd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	if c.BusyTimeout != 0 {
		t.Errorf("BusyTimeout = %v, want unbounded", c.BusyTimeout)
	}
	if c.ResetHoldTime != c.ResetDelayTime || c.ResetHoldTime <= 0 {
		t.Errorf("reset times = %v / %v", c.ResetDelayTime, c.ResetHoldTime)
	}
	if c.RefreshSettleTime != 100*time.Millisecond {
		t.Errorf("RefreshSettleTime = %v", c.RefreshSettleTime)
	}
	if c.Clock == nil {
		t.Errorf("no clock")
	}
}

func TestParseConfig(t *testing.T) {
	c, err := ParseConfig([]byte(`
spi_port: /dev/spidev0.1
spi_frequency: 2MHz
spi_mode: 3
busy_pin: ""
rst_pin: GPIO5
busy_poll: 5ms
busy_timeout: 30s
background: black
`))
	if err != nil {
		t.Fatal(err)
	}
	if c.SPIPort != "/dev/spidev0.1" {
		t.Errorf("SPIPort = %q", c.SPIPort)
	}
	if c.SPIFrequency != 2*physic.MegaHertz {
		t.Errorf("SPIFrequency = %v", c.SPIFrequency)
	}
	if c.SPIMode != spi.Mode3 {
		t.Errorf("SPIMode = %v", c.SPIMode)
	}
	if c.BUSYPin != "" || c.RSTPin != "GPIO5" || c.DCPin != "GPIO25" {
		t.Errorf("pins = %q %q %q", c.BUSYPin, c.RSTPin, c.DCPin)
	}
	if c.BusyPollTime != 5*time.Millisecond || c.BusyTimeout != 30*time.Second {
		t.Errorf("busy = %v / %v", c.BusyPollTime, c.BusyTimeout)
	}
	if c.ResetHoldTime != 10*time.Millisecond {
		t.Errorf("ResetHoldTime = %v, want default", c.ResetHoldTime)
	}
	if c.Background != Black {
		t.Errorf("Background = %v", c.Background)
	}
}

func TestParseConfigErrors(t *testing.T) {
	data := []string{
		"spi_frequency: fast",
		"spi_mode: 7",
		"busy_poll: soon",
		"reset_hold: -1ms",
		"background: red",
		"dc_pin: [1, 2]",
	}
	for _, line := range data {
		if _, err := ParseConfig([]byte(line)); err == nil {
			t.Errorf("ParseConfig(%q) succeeded", line)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "epd.yaml")
	if err := os.WriteFile(path, []byte("cs_pin: GPIO7\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.CSPin != "GPIO7" {
		t.Errorf("CSPin = %q", c.CSPin)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("LoadConfig(missing) succeeded")
	}
	if _, err := LoadConfig(""); err == nil {
		t.Errorf("LoadConfig(\"\") succeeded")
	}
}
