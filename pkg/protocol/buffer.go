package protocol

// Buffer accumulates bytes read from a connection and hands out complete
// frames. Consumed bytes are dropped lazily: the read offset only moves
// forward, and the underlying slice is compacted once the offset passes
// half the buffered data. Not safe for concurrent use; each connection
// owns exactly one Buffer on its reader goroutine.
type Buffer struct {
	data []byte
	off  int
}

// Write appends incoming bytes to the buffer.
func (b *Buffer) Write(p []byte) {
	b.data = append(b.data, p...)
}

// Len returns the number of unconsumed bytes.
func (b *Buffer) Len() int {
	return len(b.data) - b.off
}

// Next attempts to decode one frame from the buffered bytes.
// Returns (nil, nil) when more bytes are needed. A non-nil error means
// the stream is corrupt and the connection must be closed.
func (b *Buffer) Next() (*Packet, error) {
	p, consumed, err := Decode(b.data[b.off:])
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	b.off += consumed
	b.compact()
	return p, nil
}

// compact reclaims consumed space once the offset crosses half the
// buffered data, bounding memory at roughly twice the largest frame.
func (b *Buffer) compact() {
	if b.off == 0 {
		return
	}
	if b.off == len(b.data) {
		b.data = b.data[:0]
		b.off = 0
		return
	}
	if b.off > len(b.data)/2 {
		n := copy(b.data, b.data[b.off:])
		b.data = b.data[:n]
		b.off = 0
	}
}
