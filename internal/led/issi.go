package led

import (
	"fmt"

	"tinygo.org/x/drivers"
)

// IS31FL3731-style charlieplex driver registers.
const (
	issiCommandReg   = 0xFD
	issiFunctionPage = 0x0B
	issiConfigReg    = 0x00 // function page: display mode
	issiPictureReg   = 0x01 // function page: displayed frame
	issiShutdownReg  = 0x0A // function page: 0 = shutdown, 1 = normal
	issiControlReg   = 0x00 // frame page: LED on/off bits
	issiControlLen   = 0x12
)

// ISSI drives one chip over an I2C bus. Any bus with the TinyGo Tx shape
// works, periph's i2c.Bus included.
type ISSI struct {
	bus drivers.I2C
	// Address is the 7-bit bus address used for setup and shutdown control.
	Address uint16
	// PWMRegister is the first PWM register of a frame page, zeroed on Setup.
	PWMRegister uint8
}

// NewISSI binds a chip given its 8-bit (write) address, as carried in the
// page header.
func NewISSI(bus drivers.I2C, chipAddr uint8) *ISSI {
	return &ISSI{bus: bus, Address: uint16(chipAddr >> 1), PWMRegister: DefaultRegister}
}

func (d *ISSI) selectPage(addr uint16, page uint8) error {
	return d.bus.Tx(addr, []byte{issiCommandReg, page}, nil)
}

func (d *ISSI) writeReg(reg, v uint8) error {
	return d.bus.Tx(d.Address, []byte{reg, v}, nil)
}

// Setup puts the chip in picture mode on frame 0, enables every LED of that
// frame with zero PWM and leaves shutdown.
func (d *ISSI) Setup() error {
	if err := d.selectPage(d.Address, issiFunctionPage); err != nil {
		return fmt.Errorf("issi setup: %w", err)
	}
	for _, rv := range [][2]uint8{
		{issiShutdownReg, 0x00},
		{issiConfigReg, 0x00},
		{issiPictureReg, BrightnessPage},
	} {
		if err := d.writeReg(rv[0], rv[1]); err != nil {
			return fmt.Errorf("issi setup: %w", err)
		}
	}

	if err := d.selectPage(d.Address, BrightnessPage); err != nil {
		return fmt.Errorf("issi setup: %w", err)
	}
	ctrl := make([]byte, 1+issiControlLen)
	ctrl[0] = issiControlReg
	for i := 1; i < len(ctrl); i++ {
		ctrl[i] = 0xFF
	}
	if err := d.bus.Tx(d.Address, ctrl, nil); err != nil {
		return fmt.Errorf("issi setup: %w", err)
	}
	pwm := make([]byte, 1+ChannelCount)
	pwm[0] = d.PWMRegister
	if err := d.bus.Tx(d.Address, pwm, nil); err != nil {
		return fmt.Errorf("issi setup: %w", err)
	}
	return d.SetEnabled(true)
}

// SendPage selects the target page and writes register + channel data in a
// single transaction to the chip named in the header.
func (d *ISSI) SendPage(buf []byte, page uint8) error {
	if len(buf) < headerLen {
		return fmt.Errorf("%w: %d bytes", ErrShortPage, len(buf))
	}
	addr := uint16(buf[0] >> 1)
	if err := d.selectPage(addr, page); err != nil {
		return fmt.Errorf("issi page %d: %w", page, err)
	}
	if err := d.bus.Tx(addr, buf[1:], nil); err != nil {
		return fmt.Errorf("issi page %d: %w", page, err)
	}
	return nil
}

func (d *ISSI) SetEnabled(on bool) error {
	if err := d.selectPage(d.Address, issiFunctionPage); err != nil {
		return err
	}
	var v uint8
	if on {
		v = 0x01
	}
	return d.writeReg(issiShutdownReg, v)
}

func (d *ISSI) Close() error { return d.SetEnabled(false) }
