package rsbus

import (
	"context"
	"sync/atomic"
	"time"

	fx "github.com/robotalks/rsbus/pkg/framework"
)

// Bus is the device side of an RS-bus: it classifies the silences between
// polling cycles, owns the mailbox shared with the pulse handler and drives
// the connections of all configured addresses.
type Bus struct {
	src  PulseSource
	sink ByteSink

	parityPolicy     RetransmitPolicy
	pulseCountPolicy RetransmitPolicy
	tickPeriod       time.Duration

	// shared with the pulse context
	mailbox  Mailbox
	signalOK atomic.Bool
	sent     atomic.Bool

	cycles           atomic.Uint32
	parityErrors     atomic.Uint32
	pulseCountErrors atomic.Uint32
	transmitted      atomic.Uint32

	mon   monitor
	conns []*Connection
}

// Option configures a Bus.
type Option func(*Bus)

// WithParityPolicy sets the policy applied on parity errors.
func WithParityPolicy(p RetransmitPolicy) Option {
	return func(b *Bus) { b.parityPolicy = p }
}

// WithPulseCountPolicy sets the policy applied on pulse count errors.
func WithPulseCountPolicy(p RetransmitPolicy) Option {
	return func(b *Bus) { b.pulseCountPolicy = p }
}

// WithTimerTick makes the Bus tick from its own timer instead of the main
// loop. A period of 0 selects TickPeriod.
func WithTimerTick(period time.Duration) Option {
	return func(b *Bus) {
		if period <= 0 {
			period = TickPeriod
		}
		b.tickPeriod = period
	}
}

// New creates a Bus and attaches it as the handler of src.
// A nil sink discards all frames.
func New(src PulseSource, sink ByteSink, opts ...Option) (*Bus, error) {
	if src == nil {
		return nil, ErrNoSource
	}
	if sink == nil {
		sink = Discard
	}
	b := &Bus{
		src:              src,
		sink:             sink,
		parityPolicy:     DefaultParityPolicy,
		pulseCountPolicy: DefaultPulseCountPolicy,
		mon:              newMonitor(),
	}
	for _, opt := range opts {
		opt(b)
	}
	src.Attach(b)
	return b, nil
}

// Connect creates the connection for an address.
// fec is the number of extra copies sent of every frame.
func (b *Bus) Connect(address int, typ DeviceType, fec int) (*Connection, error) {
	if !validAddress(address) {
		return nil, &AddressError{Address: address}
	}
	for _, c := range b.conns {
		if int(c.address) == address {
			return nil, ErrAddressInUse
		}
	}
	if fec < 0 {
		fec = 0
	}
	c := &Connection{bus: b, address: uint8(address), typ: typ, fec: fec}
	b.conns = append(b.conns, c)
	return c, nil
}

// Connections returns all connections in the order they were created.
func (b *Bus) Connections() []*Connection {
	return b.conns
}

// Connection finds the connection of an address.
func (b *Bus) Connection(address int) *Connection {
	for _, c := range b.conns {
		if int(c.address) == address {
			return c
		}
	}
	return nil
}

// HandlePulse implements PulseHandler. It runs in the pulse context.
func (b *Bus) HandlePulse(polled uint16) {
	f, ok := b.mailbox.Take(polled)
	if !ok {
		return
	}
	b.sink.SendByte(byte(f))
	b.sent.Store(true)
	b.transmitted.Add(1)
}

// SignalOK reports whether the device is synchronized with the master.
func (b *Bus) SignalOK() bool {
	return b.signalOK.Load()
}

// ParityErrors returns the number of parity errors signalled by the master.
func (b *Bus) ParityErrors() uint32 {
	return b.parityErrors.Load()
}

// PulseCountErrors returns the number of cycles with a wrong pulse count.
func (b *Bus) PulseCountErrors() uint32 {
	return b.pulseCountErrors.Load()
}

// ParityPolicy returns the policy applied on parity errors.
func (b *Bus) ParityPolicy() RetransmitPolicy {
	return b.parityPolicy
}

// PulseCountPolicy returns the policy applied on pulse count errors.
func (b *Bus) PulseCountPolicy() RetransmitPolicy {
	return b.pulseCountPolicy
}

// Stats is a snapshot of the bus diagnostics.
type Stats struct {
	SignalOK         bool
	Cycles           uint32
	ParityErrors     uint32
	PulseCountErrors uint32
	Transmitted      uint32
	// Pending is set when a frame waits in the mailbox for PendingAddress.
	Pending        bool
	PendingAddress uint8
	Armed          bool
	Connections    []ConnectionStats
}

// ConnectionStats is the diagnostics of a single connection.
type ConnectionStats struct {
	Address           uint8
	Type              DeviceType
	State             ConnState
	Queued            int
	FeedbackRequested bool
}

// Stats collects the diagnostics. It must be called from the main context.
func (b *Bus) Stats() Stats {
	s := Stats{
		SignalOK:         b.SignalOK(),
		Cycles:           b.cycles.Load(),
		ParityErrors:     b.ParityErrors(),
		PulseCountErrors: b.PulseCountErrors(),
		Transmitted:      b.transmitted.Load(),
		Armed:            b.mailbox.Armed(),
	}
	s.PendingAddress, _, s.Pending = b.mailbox.Pending()
	for _, c := range b.conns {
		s.Connections = append(s.Connections, ConnectionStats{
			Address:           c.address,
			Type:              c.typ,
			State:             c.state,
			Queued:            c.queue.Len(),
			FeedbackRequested: c.feedbackRequested,
		})
	}
	return s
}

// AddToLoop implements framework.LoopAdder. The classifier runs at sense
// level (or from its own timer), connections at control level.
// All connections must be created before.
func (b *Bus) AddToLoop(l *fx.Loop) {
	if b.tickPeriod > 0 {
		l.AddRunnable(b.Ticker())
	} else {
		l.AddController(fx.PrLvSense, fx.ControlFunc(func(cc fx.ControlContext) error {
			b.CheckPolling(cc.Time())
			return nil
		}))
	}
	for _, c := range b.conns {
		l.AddController(fx.PrLvControl, c)
	}
}

// Ticker drives Bus.Tick from a dedicated timer.
type Ticker struct {
	Bus    *Bus
	Period time.Duration
}

// Ticker creates a Ticker with the configured period.
func (b *Bus) Ticker() *Ticker {
	period := b.tickPeriod
	if period <= 0 {
		period = TickPeriod
	}
	return &Ticker{Bus: b, Period: period}
}

// Name implements framework.Named.
func (t *Ticker) Name() string {
	return "rsbus-ticker"
}

// Run implements framework.Runnable.
func (t *Ticker) Run(ctx context.Context) error {
	tk := time.NewTicker(t.Period)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tk.C:
			t.Bus.Tick()
		}
	}
}
