package throttle

import "time"

// Timer is the minimal interface the scheduler needs from a deadline timer:
// arm a single-shot callback, or cancel it. Abstracting this out (rather
// than calling time.AfterFunc directly) lets tests drive period expiry
// deterministically against a fake clock instead of racing real wall time.
type Timer interface {
	Start(d time.Duration, fire func())
	Stop() bool
}

// realTimer adapts time.AfterFunc to the Timer interface.
type realTimer struct {
	t *time.Timer
}

// NewRealTimer returns a Timer backed by the runtime's timer wheel.
func NewRealTimer() Timer { return &realTimer{} }

func (r *realTimer) Start(d time.Duration, fire func()) {
	if r.t != nil {
		r.t.Stop()
	}
	r.t = time.AfterFunc(d, fire)
}

func (r *realTimer) Stop() bool {
	if r.t == nil {
		return false
	}
	return r.t.Stop()
}
