package epd

import (
	"fmt"
	"image"
	"image/color"

	"periph.io/x/conn/v3/display"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// ColorModel returns a 1 bit color model. image1bit.On is white.
func (d *Display) ColorModel() color.Model {
	return image1bit.BitModel
}

// Bounds returns the panel size.
func (d *Display) Bounds() image.Rectangle {
	return image.Rect(0, 0, Width, Height)
}

// Draw renders src into dstRect on top of the last frame sent to the panel.
//
// A byte aligned window smaller than the panel is shown with a quick partial
// refresh when the previous update was a full one; everything else gets a
// full refresh.
func (d *Display) Draw(dstRect image.Rectangle, src image.Image, srcPts image.Point) error {
	r := dstRect.Intersect(d.Bounds())
	if r.Empty() {
		return nil
	}

	frame := make([]byte, FrameLen)
	copy(frame, d.base)
	const stride = (Width + 7) / 8
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			sx := srcPts.X + x - dstRect.Min.X
			sy := srcPts.Y + y - dstRect.Min.Y
			bit := image1bit.BitModel.Convert(src.At(sx, sy)).(image1bit.Bit)
			mask := byte(0x80) >> uint(x%8)
			if bit == image1bit.On {
				frame[y*stride+x/8] |= mask
			} else {
				frame[y*stride+x/8] &^= mask
			}
		}
	}

	if d.canDrawPartial(r) {
		window := make([]byte, r.Dx()*r.Dy()/8)
		for row := 0; row < r.Dy(); row++ {
			start := (r.Min.Y+row)*stride + r.Min.X/8
			copy(window[row*r.Dx()/8:], frame[start:start+r.Dx()/8])
		}
		return d.UpdateAndDisplayPartialFrame(window, r.Min.X, r.Min.Y, r.Dx(), r.Dy())
	}
	return d.UpdateAndDisplayFrame(frame)
}

func (d *Display) canDrawPartial(r image.Rectangle) bool {
	return d.baseLoaded &&
		d.refresh == Full &&
		r != d.Bounds() &&
		r.Min.X%8 == 0 &&
		r.Dx()%8 == 0
}

// Halt clears the panel to the background color.
func (d *Display) Halt() error {
	return d.ClearFrame()
}

func (d *Display) String() string {
	return fmt.Sprintf("epd.Display{%s, %s, Width: %d, Height: %d}", d.bus.conn, d.bus.dc, Width, Height)
}

var _ display.Drawer = &Display{}
