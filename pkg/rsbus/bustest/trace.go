// Package bustest scripts deterministic pulse traces against a Bus.
package bustest

import (
	"sync"

	"github.com/robotalks/rsbus/pkg/rsbus"
)

// CycleGapTicks is the number of silent ticks Cycle appends to a polling
// cycle, enough to reach the cycle end decision.
const CycleGapTicks = 3

// DefaultPulsesPerTick is the number of edges between two classifier ticks
// while the master is polling.
const DefaultPulsesPerTick = 10

// Sent is a frame handed to the Recorder.
type Sent struct {
	Frame rsbus.Frame
	// Cycle is the index of the polling cycle, starting from 0.
	Cycle int
	// Slot is the number of pulses of the cycle before the edge which
	// transmitted the frame.
	Slot uint16
}

// Recorder is a ByteSink remembering everything sent.
type Recorder struct {
	lock sync.Mutex
	at   Sent
	sent []Sent
}

// SendByte implements rsbus.ByteSink.
func (r *Recorder) SendByte(b byte) {
	r.lock.Lock()
	s := r.at
	s.Frame = rsbus.Frame(b)
	r.sent = append(r.sent, s)
	r.lock.Unlock()
}

// Sent returns a copy of the recorded frames with their position.
func (r *Recorder) Sent() []Sent {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Frames returns the recorded frames.
func (r *Recorder) Frames() (frames []rsbus.Frame) {
	for _, s := range r.Sent() {
		frames = append(frames, s.Frame)
	}
	return
}

// Reset drops the recorded frames.
func (r *Recorder) Reset() {
	r.lock.Lock()
	r.sent = nil
	r.lock.Unlock()
}

func (r *Recorder) position(cycle int, slot uint16) {
	r.lock.Lock()
	r.at = Sent{Cycle: cycle, Slot: slot}
	r.lock.Unlock()
}

// Trace plays the role of the master: it emits edges into a PulseSource and
// ticks the Bus in between, so tests run without real time.
type Trace struct {
	Bus           *rsbus.Bus
	Source        rsbus.PulseSource
	PulsesPerTick int

	rec    *Recorder
	every  []func()
	cycle  int
	pulses uint16
}

// NewTrace creates a Trace.
func NewTrace(bus *rsbus.Bus, src rsbus.PulseSource) *Trace {
	return &Trace{Bus: bus, Source: src, PulsesPerTick: DefaultPulsesPerTick}
}

// Record tells r the position of every edge.
func (t *Trace) Record(r *Recorder) *Trace {
	t.rec = r
	return t
}

// Every registers funcs called after each tick, like connection polls in
// a main loop.
func (t *Trace) Every(fns ...func()) *Trace {
	t.every = append(t.every, fns...)
	return t
}

// CycleIndex returns the index of the cycle the next pulse belongs to.
func (t *Trace) CycleIndex() int {
	return t.cycle
}

// Pulses emits n edges, ticking after every PulsesPerTick edges.
func (t *Trace) Pulses(n int) *Trace {
	for i := 0; i < n; i++ {
		if t.rec != nil {
			t.rec.position(t.cycle, t.pulses)
		}
		t.pulses++
		t.Source.Edge()
		if t.PulsesPerTick > 0 && (i+1)%t.PulsesPerTick == 0 {
			t.Tick()
		}
	}
	return t
}

// Silence ticks without any edge. Pulses after a silence belong to the
// next cycle.
func (t *Trace) Silence(ticks int) *Trace {
	if t.pulses > 0 {
		t.cycle++
		t.pulses = 0
	}
	for i := 0; i < ticks; i++ {
		t.Tick()
	}
	return t
}

// Cycle emits a complete polling cycle followed by the cycle end gap.
func (t *Trace) Cycle() *Trace {
	return t.Pulses(rsbus.CyclePulses).Silence(CycleGapTicks)
}

// Cycles emits n complete polling cycles.
func (t *Trace) Cycles(n int) *Trace {
	for i := 0; i < n; i++ {
		t.Cycle()
	}
	return t
}

// Tick ticks the Bus once and runs the registered funcs.
func (t *Trace) Tick() *Trace {
	t.Bus.Tick()
	for _, fn := range t.every {
		fn()
	}
	return t
}
