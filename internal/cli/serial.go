package cli

import (
	"fmt"

	"go.bug.st/serial"
)

var defaultMode = serial.Mode{
	BaudRate: 115200,
	DataBits: 8,
	Parity:   serial.NoParity,
	StopBits: serial.OneStopBit,
}

// OpenSerial opens the debug console port at 8N1.
func OpenSerial(path string, baud int) (serial.Port, error) {
	mode := defaultMode
	if baud > 0 {
		mode.BaudRate = baud
	}
	p, err := serial.Open(path, &mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", path, err)
	}
	return p, nil
}
