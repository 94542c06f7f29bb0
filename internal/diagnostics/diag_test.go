package diagnostics

import (
	"fmt"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterSplitsLines(t *testing.T) {
	h := NewHub()
	c, cancel := h.Subscribe(8)
	defer cancel()

	w := h.Writer("CONSOLE")
	fmt.Fprint(w, "blockKey(us")
	fmt.Fprint(w, "bCode)\nupdateLeds()\n")

	require.Len(t, c, 2)
	d := <-c
	assert.Equal(t, "blockKey(usbCode)", d.Summary)
	assert.Equal(t, Info, d.Severity)
	assert.Equal(t, "CONSOLE", d.Code)
	assert.False(t, d.Time.IsZero())
	assert.Equal(t, "updateLeds()", (<-c).Summary)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()
	c, cancel := h.Subscribe(1)
	for i := 0; i < 5; i++ {
		h.Publish(Diagnostic{Code: "X"})
	}
	assert.Len(t, c, 1)
	cancel()
	cancel()
	_, ok := <-c
	assert.True(t, ok, "buffered record survives cancel")
	_, ok = <-c
	assert.False(t, ok)
}

func TestHookPublishesWarnings(t *testing.T) {
	h := NewHub()
	c, cancel := h.Subscribe(4)
	defer cancel()

	log := zerolog.New(io.Discard).Hook(h.Hook())
	log.Info().Msg("ignored")
	log.Warn().Msg("send page failed")
	log.Error().Msg("boom")

	require.Len(t, c, 2)
	d := <-c
	assert.Equal(t, Warn, d.Severity)
	assert.Equal(t, "LOG.warn", d.Code)
	assert.Equal(t, "send page failed", d.Summary)
	assert.Equal(t, Err, (<-c).Severity)
}
