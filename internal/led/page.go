package led

import (
	"errors"
	"fmt"
)

const (
	// DefaultChipAddr is the 8-bit (write) bus address of the first driver chip.
	DefaultChipAddr uint8 = 0xE8
	// DefaultRegister is the start of the PWM (brightness) section of a frame page.
	DefaultRegister uint8 = 0x24
	// BrightnessPage is the frame page the capabilities draw into.
	BrightnessPage uint8 = 0

	headerLen = 2
	// PageLen is the length of a serialised page: address, register, channels.
	PageLen = headerLen + ChannelCount
)

var ErrShortPage = errors.New("led: page shorter than header")

// Page is one addressed transaction for the driver chip.
type Page struct {
	ChipAddr uint8
	Register uint8
	Page     uint8
	Channels Buffer
}

// Bytes serialises the page as the driver layer expects it: chip address,
// register address, then channel data.
func (p *Page) Bytes() []byte {
	out := make([]byte, 0, PageLen)
	out = append(out, p.ChipAddr, p.Register)
	return append(out, p.Channels[:]...)
}

// ParsePage is the inverse of Page.Bytes. Missing channel bytes read as 0.
func ParsePage(buf []byte, page uint8) (Page, error) {
	if len(buf) < headerLen {
		return Page{}, fmt.Errorf("%w: %d bytes", ErrShortPage, len(buf))
	}
	p := Page{ChipAddr: buf[0], Register: buf[1], Page: page}
	copy(p.Channels[:], buf[headerLen:])
	return p, nil
}
