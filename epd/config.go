package epd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

type DisplayConfig struct {
	// SPIPort is passed to spireg.Open; empty selects the first port.
	SPIPort string

	DCPin   string
	CSPin   string
	RSTPin  string
	BUSYPin string // empty polls the controller with GetStatus instead

	SPIFrequency physic.Frequency
	SPIMode      spi.Mode

	// ResetDelayTime is how long RST is held low, ResetHoldTime how long the
	// controller is left alone after RST goes back high.
	ResetHoldTime  time.Duration
	ResetDelayTime time.Duration
	BusyPollTime   time.Duration
	// BusyTimeout bounds every wait for the controller. Zero waits forever.
	BusyTimeout time.Duration
	// RefreshSettleTime is slept between DisplayRefresh and polling BUSY.
	RefreshSettleTime time.Duration

	Background Color

	Clock             Clock
	OnBusyStateChange func(busy bool)
}

func DefaultConfig() DisplayConfig {
	return DisplayConfig{
		DCPin:   "GPIO25",
		CSPin:   "GPIO8",
		RSTPin:  "GPIO17",
		BUSYPin: "GPIO24",

		SPIFrequency: 4 * physic.MegaHertz,
		SPIMode:      spi.Mode0,

		ResetHoldTime:     10 * time.Millisecond,
		ResetDelayTime:    10 * time.Millisecond,
		BusyPollTime:      10 * time.Millisecond,
		BusyTimeout:       0,
		RefreshSettleTime: 100 * time.Millisecond,

		Background: White,

		Clock:             clockwork.NewRealClock(),
		OnBusyStateChange: nil,
	}
}

// fileConfig is the on-disk YAML shape. Unset keys keep their defaults.
type fileConfig struct {
	SPIPort      *string `yaml:"spi_port"`
	SPIFrequency *string `yaml:"spi_frequency"`
	SPIMode      *int    `yaml:"spi_mode"`

	DCPin   *string `yaml:"dc_pin"`
	CSPin   *string `yaml:"cs_pin"`
	RSTPin  *string `yaml:"rst_pin"`
	BUSYPin *string `yaml:"busy_pin"`

	ResetHold     *string `yaml:"reset_hold"`
	ResetDelay    *string `yaml:"reset_delay"`
	BusyPoll      *string `yaml:"busy_poll"`
	BusyTimeout   *string `yaml:"busy_timeout"`
	RefreshSettle *string `yaml:"refresh_settle"`

	Background *string `yaml:"background"`
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig.
func LoadConfig(path string) (DisplayConfig, error) {
	if path == "" {
		return DisplayConfig{}, errors.New("config path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DisplayConfig{}, err
	}
	config, err := ParseConfig(data)
	if err != nil {
		return DisplayConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// ParseConfig decodes YAML configuration on top of DefaultConfig.
func ParseConfig(data []byte) (DisplayConfig, error) {
	config := DefaultConfig()

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return DisplayConfig{}, err
	}

	setString(&config.SPIPort, fc.SPIPort)
	setString(&config.DCPin, fc.DCPin)
	setString(&config.CSPin, fc.CSPin)
	setString(&config.RSTPin, fc.RSTPin)
	setString(&config.BUSYPin, fc.BUSYPin)

	if fc.SPIFrequency != nil {
		if err := config.SPIFrequency.Set(*fc.SPIFrequency); err != nil {
			return DisplayConfig{}, fmt.Errorf("spi_frequency: %w", err)
		}
	}
	if fc.SPIMode != nil {
		if *fc.SPIMode < 0 || *fc.SPIMode > 3 {
			return DisplayConfig{}, fmt.Errorf("spi_mode: %d is not in 0..3", *fc.SPIMode)
		}
		config.SPIMode = spi.Mode(*fc.SPIMode)
	}

	durations := []struct {
		key string
		src *string
		dst *time.Duration
	}{
		{"reset_hold", fc.ResetHold, &config.ResetHoldTime},
		{"reset_delay", fc.ResetDelay, &config.ResetDelayTime},
		{"busy_poll", fc.BusyPoll, &config.BusyPollTime},
		{"busy_timeout", fc.BusyTimeout, &config.BusyTimeout},
		{"refresh_settle", fc.RefreshSettle, &config.RefreshSettleTime},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return DisplayConfig{}, fmt.Errorf("%s: %w", d.key, err)
		}
		if v < 0 {
			return DisplayConfig{}, fmt.Errorf("%s: negative duration %s", d.key, v)
		}
		*d.dst = v
	}

	if fc.Background != nil {
		c, err := ParseColor(*fc.Background)
		if err != nil {
			return DisplayConfig{}, fmt.Errorf("background: %w", err)
		}
		config.Background = c
	}
	return config, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
