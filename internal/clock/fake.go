package clock

import "sync/atomic"

// Fake is a manually-advanced clock.Source for deterministic tests of the
// scheduler's window/period arithmetic.
type Fake struct {
	now atomic.Int64
}

// NewFake returns a Fake clock starting at the given microsecond value.
func NewFake(start Micros) *Fake {
	f := &Fake{}
	f.now.Store(int64(start))
	return f
}

func (f *Fake) Now() Micros {
	return Micros(f.now.Load())
}

// Advance moves the fake clock forward by the given number of milliseconds.
func (f *Fake) Advance(ms int) {
	f.now.Add(int64(ms) * 1000)
}

// Set pins the fake clock to an absolute microsecond value.
func (f *Fake) Set(now Micros) {
	f.now.Store(int64(now))
}
