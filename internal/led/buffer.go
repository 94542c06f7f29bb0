package led

import (
	"errors"
	"fmt"
)

// ChannelCount is the number of addressable channels behind one driver chip.
const ChannelCount = 144

// Channel indexes a single LED channel in a Buffer.
type Channel uint8

var ErrChannelRange = errors.New("led: channel out of range")

// Valid reports whether c addresses a channel of the buffer.
func (c Channel) Valid() bool { return int(c) < ChannelCount }

// Buffer holds one intensity (0..255) per channel.
type Buffer [ChannelCount]uint8

// Clear sets every channel to 0.
func (b *Buffer) Clear() {
	*b = Buffer{}
}

// Fill sets every channel to v.
func (b *Buffer) Fill(v uint8) {
	for i := range b {
		b[i] = v
	}
}

// Set writes one channel. Indices past ChannelCount are rejected instead of
// touching memory outside the buffer.
func (b *Buffer) Set(c Channel, v uint8) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %d", ErrChannelRange, c)
	}
	b[c] = v
	return nil
}

// Get reads one channel.
func (b *Buffer) Get(c Channel) (uint8, error) {
	if !c.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrChannelRange, c)
	}
	return b[c], nil
}

// Lit returns the indices of all non-zero channels.
func (b *Buffer) Lit() []Channel {
	var out []Channel
	for i, v := range b {
		if v != 0 {
			out = append(out, Channel(i))
		}
	}
	return out
}
