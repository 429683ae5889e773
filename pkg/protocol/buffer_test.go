package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEncode(t *testing.T, p *Packet) []byte {
	t.Helper()
	frame, err := Encode(p)
	require.NoError(t, err)
	return frame
}

func TestBufferReassemblesSplitFrames(t *testing.T) {
	frame := mustEncode(t, &Packet{
		Type:      TypeMessageSend,
		RequestID: 5,
		Meta:      []byte(`{"content":"hello"}`),
	})

	var buf Buffer

	// Feed one byte at a time; a packet must pop out exactly once,
	// on the final byte.
	for i, c := range frame {
		buf.Write([]byte{c})
		p, err := buf.Next()
		require.NoError(t, err)
		if i < len(frame)-1 {
			assert.Nil(t, p, "byte %d", i)
		} else {
			require.NotNil(t, p)
			assert.Equal(t, TypeMessageSend, p.Type)
			assert.Equal(t, uint64(5), p.RequestID)
		}
	}
	assert.Zero(t, buf.Len())
}

func TestBufferHandlesCoalescedFrames(t *testing.T) {
	first := mustEncode(t, &Packet{Type: TypeGroupJoin, RequestID: 1, Meta: []byte(`{"group_id":"g1"}`)})
	second := mustEncode(t, &Packet{Type: TypeGroupLeave, RequestID: 2, Meta: []byte(`{"group_id":"g1"}`)})

	var buf Buffer
	buf.Write(append(append([]byte{}, first...), second...))

	p1, err := buf.Next()
	require.NoError(t, err)
	require.NotNil(t, p1)
	assert.Equal(t, TypeGroupJoin, p1.Type)

	p2, err := buf.Next()
	require.NoError(t, err)
	require.NotNil(t, p2)
	assert.Equal(t, TypeGroupLeave, p2.Type)

	p3, err := buf.Next()
	require.NoError(t, err)
	assert.Nil(t, p3)
	assert.Zero(t, buf.Len())
}

func TestBufferPartialTrailingFrame(t *testing.T) {
	whole := mustEncode(t, &Packet{Type: TypeAuthLogin, RequestID: 1, Meta: []byte(`{"user_id":"a"}`)})
	partial := mustEncode(t, &Packet{Type: TypeMessageSend, RequestID: 2, Meta: []byte(`{"content":"x"}`)})

	var buf Buffer
	buf.Write(whole)
	buf.Write(partial[:10])

	p, err := buf.Next()
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, TypeAuthLogin, p.Type)

	p, err = buf.Next()
	require.NoError(t, err)
	assert.Nil(t, p)

	buf.Write(partial[10:])
	p, err = buf.Next()
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, TypeMessageSend, p.Type)
}

func TestBufferSurfacesProtocolErrors(t *testing.T) {
	var buf Buffer
	buf.Write([]byte("XXXXXXXXXXXXXXXXXXXXXXXXXXXXXXXX"))

	_, err := buf.Next()
	assert.ErrorContains(t, err, "bad magic")
}

func TestBufferCompaction(t *testing.T) {
	frame := mustEncode(t, &Packet{Type: TypePresenceUpdate, RequestID: 1, Meta: []byte(`{}`)})

	var buf Buffer
	// Run enough frames through that the buffer must compact to stay
	// bounded; correctness is that every frame still decodes in order.
	for i := 0; i < 1000; i++ {
		buf.Write(frame)
		p, err := buf.Next()
		require.NoError(t, err)
		require.NotNil(t, p, "frame %d", i)
	}
	assert.Zero(t, buf.Len())
	assert.LessOrEqual(t, cap(buf.data), 4*len(frame))
}
