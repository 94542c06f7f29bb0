package led

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
)

// DefaultNRZFreq is the SPI clock for a WS281x bench strip.
const DefaultNRZFreq = 2500 * physic.KiloHertz

// Drawer mirrors the brightness page onto any periph display, one grey pixel
// per channel. Other pages are accepted and ignored.
type Drawer struct {
	d       display.Drawer
	closer  io.Closer
	img     *image.NRGBA
	enabled bool
}

func NewDrawer(d display.Drawer) *Drawer {
	return &Drawer{
		d:       d,
		img:     image.NewNRGBA(image.Rect(0, 0, ChannelCount, 1)),
		enabled: true,
	}
}

// NewConsole renders pages as ANSI colour blocks on the terminal.
func NewConsole() *Drawer {
	return NewDrawer(screen.New(ChannelCount))
}

// NewNRZ opens an SPI port and drives a WS281x strip of ChannelCount pixels.
func NewNRZ(port string, freq physic.Frequency) (*Drawer, error) {
	p, err := spireg.Open(port)
	if err != nil {
		return nil, fmt.Errorf("open spi %q: %w", port, err)
	}
	if freq == 0 {
		freq = DefaultNRZFreq
	}
	dev, err := nrzled.NewSPI(p, &nrzled.Opts{
		NumPixels: ChannelCount,
		Channels:  3,
		Freq:      freq,
	})
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	d := NewDrawer(dev)
	d.closer = p
	return d, nil
}

func (d *Drawer) Setup() error {
	d.enabled = true
	return d.d.Halt()
}

func (d *Drawer) SendPage(buf []byte, page uint8) error {
	if page != BrightnessPage {
		return nil
	}
	p, err := ParsePage(buf, page)
	if err != nil {
		return err
	}
	for i, v := range p.Channels {
		if !d.enabled {
			v = 0
		}
		d.img.SetNRGBA(i, 0, color.NRGBA{R: v, G: v, B: v, A: 255})
	}
	return d.d.Draw(d.d.Bounds(), d.img, image.Point{})
}

func (d *Drawer) SetEnabled(on bool) error {
	d.enabled = on
	if !on {
		return d.d.Halt()
	}
	return nil
}

func (d *Drawer) Close() error {
	err := d.d.Halt()
	if d.closer != nil {
		if cerr := d.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (d *Drawer) String() string { return d.d.String() }
