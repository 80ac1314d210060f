package rsbus

// ByteSink transmits a single frame to the master.
// SendByte is called from the pulse context, it must not block past the
// current slot and gets no acknowledgement.
type ByteSink interface {
	SendByte(byte)
}

// SinkFunc is the func form of ByteSink.
type SinkFunc func(byte)

// SendByte implements ByteSink.
func (f SinkFunc) SendByte(b byte) {
	f(b)
}

// Discard drops every frame. It's used when no transmitter is configured.
var Discard ByteSink = SinkFunc(func(byte) {})
