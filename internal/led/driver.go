package led

// Driver abstracts the physical LED driver layer. SendPage is the only call
// that moves channel data; buf carries the two addressing bytes followed by
// the channel values.
type Driver interface {
	Setup() error
	SendPage(buf []byte, page uint8) error
	// SetEnabled leaves (true) or enters (false) hardware shutdown.
	SetEnabled(on bool) error
	Close() error
}
