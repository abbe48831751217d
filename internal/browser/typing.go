package browser

import (
	"math/rand/v2"
	"time"
)

// Typist produces per-key delays that look like a person typing.
type Typist struct {
	Min time.Duration
	Max time.Duration
}

// NewTypist returns a Typist drawing delays from [lo, hi].
func NewTypist(lo, hi time.Duration) *Typist {
	if hi < lo {
		lo, hi = hi, lo
	}
	return &Typist{Min: lo, Max: hi}
}

// Delay returns the pause after typing r. Word breaks get a longer pause.
func (t *Typist) Delay(r rune) time.Duration {
	d := t.Min
	if span := t.Max - t.Min; span > 0 {
		d += rand.N(span + 1)
	}
	if r == ' ' || r == '@' || r == '.' {
		d += d / 2
	}
	return d
}
