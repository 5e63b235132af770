package epd_test

import (
	"fmt"
	"log"
	"time"

	"github.com/timschmolka/go-epaper/epd"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func ExampleNewFromConn() {
	// Stand-ins for a real SPI connection and GPIO pins.
	c := &conntest.Discard{}
	dc := &gpiotest.Pin{N: "DC"}
	cs := &gpiotest.Pin{N: "CS"}
	rst := &gpiotest.Pin{N: "RST"}
	busy := &gpiotest.Pin{N: "BUSY", L: gpio.High}

	config := epd.DefaultConfig()
	config.ResetHoldTime = time.Millisecond
	config.ResetDelayTime = time.Millisecond
	config.RefreshSettleTime = time.Millisecond

	d, err := epd.NewFromConn(c, dc, cs, rst, busy, config)
	if err != nil {
		log.Fatal(err)
	}
	defer d.Close()

	frame := make([]byte, epd.FrameLen)
	if err := d.UpdateAndDisplayFrame(frame); err != nil {
		log.Fatal(err)
	}
	fmt.Println(d.RefreshMode())

	window := make([]byte, 16*16/8)
	if err := d.UpdateAndDisplayPartialFrame(window, 8, 8, 16, 16); err != nil {
		log.Fatal(err)
	}
	fmt.Println(d.RefreshMode())
	// Output:
	// full
	// quick
}
