package sensor

// Throttle gates sensor emission to every Nth session tick. The device
// may sample faster than the session wants to relay; non-emitting ticks
// drop the frame on the floor, latest-value-wins.
type Throttle struct {
	everyN uint
	tick   uint
}

// NewThrottle emits on every nth tick. n < 1 is treated as 1.
func NewThrottle(n uint) *Throttle {
	if n < 1 {
		n = 1
	}
	return &Throttle{everyN: n}
}

// ShouldEmit advances the tick counter and reports whether this tick
// emits. The first tick always emits.
func (t *Throttle) ShouldEmit() bool {
	emit := t.tick%t.everyN == 0
	t.tick++
	return emit
}
