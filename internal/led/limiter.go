package led

import "github.com/coreman2200/keyglow/internal/mathx"

// Limit throttles output against the available current budget reported by
// the host.
//
//   - MinCurrentMA: below this budget the driver is put into shutdown.
//   - ChanMicroAmps: draw of one channel at full scale, used to estimate the
//     frame's total draw.
//
// A budget of 0 means no budget has been reported yet and nothing is limited.
type Limit struct {
	MinCurrentMA  uint
	ChanMicroAmps uint32
}

// DefaultLimit matches a USB-powered board: 150 mA floor, ~2 mA per channel.
var DefaultLimit = Limit{MinCurrentMA: 150, ChanMicroAmps: 2000}

// Enabled reports whether the driver may run at the given budget.
func (l Limit) Enabled(budgetMA uint) bool {
	return budgetMA == 0 || budgetMA >= l.MinCurrentMA
}

// EstimateMicroAmps returns the estimated draw of a frame.
func (l Limit) EstimateMicroAmps(b *Buffer) uint64 {
	var sum uint64
	for _, v := range b {
		sum += uint64(v)
	}
	return sum * uint64(l.ChanMicroAmps) / 255
}

// Apply scales b in place so the estimated draw fits the budget.
func (l Limit) Apply(b *Buffer, budgetMA uint) {
	if budgetMA == 0 || l.ChanMicroAmps == 0 {
		return
	}
	draw := l.EstimateMicroAmps(b)
	budget := uint64(budgetMA) * 1000
	if draw <= budget {
		return
	}
	for i := range b {
		b[i] = mathx.Scale(b[i], budget, draw)
	}
}
