package entropy

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultCutoff is the repetition count cutoff for an assumed min-entropy
// of one bit per byte at a false positive rate of 2^-20.
const DefaultCutoff = 21

var ErrHealthTest = errors.New("entropy: repetition count test failed")

// HealthChecked runs the SP 800-90B repetition count test over the bytes
// of the wrapped source. The run length carries across reads; once the
// test fails every later read fails too.
type HealthChecked struct {
	src    Source
	cutoff int

	mu     sync.Mutex
	last   byte
	run    int
	failed bool
}

func NewHealthChecked(src Source, cutoff int) *HealthChecked {
	if cutoff < 2 {
		cutoff = DefaultCutoff
	}
	return &HealthChecked{src: src, cutoff: cutoff}
}

func (h *HealthChecked) Tag() string { return h.src.Tag() }

func (h *HealthChecked) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.failed {
		return 0, ErrHealthTest
	}
	n, err := h.src.Read(p)
	for _, b := range p[:n] {
		if h.run > 0 && b == h.last {
			h.run++
		} else {
			h.last, h.run = b, 1
		}
		if h.run >= h.cutoff {
			h.failed = true
			clear(p)
			return 0, fmt.Errorf("%w: %d repeats of 0x%02x from %s", ErrHealthTest, h.run, b, h.src.Tag())
		}
	}
	return n, err
}
