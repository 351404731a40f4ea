package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoderStringPadding(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		argSize int
	}{
		{name: "needs padding", value: "wl_shm", argSize: 4 + 8},
		{name: "exact fit", value: "abc", argSize: 4 + 4},
		{name: "empty string", value: "", argSize: 4 + 4},
		{name: "long name", value: "zwp_linux_dmabuf_v1", argSize: 4 + 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := NewEncoder(3, EvRegistryGlobal).String(tt.value).Bytes()
			assert.Len(t, msg, HeaderSize+tt.argSize)
			assert.Zero(t, len(msg)%4)

			parsed, n, err := Parse(msg)
			require.NoError(t, err)
			assert.Equal(t, len(msg), n)

			d := NewDecoder(parsed.Args)
			assert.Equal(t, tt.value, d.String())
			assert.NoError(t, d.Err())
		})
	}
}

func TestGlobalEventLayout(t *testing.T) {
	msg := NewEncoder(2, EvRegistryGlobal).Uint(7).String("wl_seat").Uint(9).Bytes()

	parsed, n, err := Parse(msg)
	require.NoError(t, err)
	require.Equal(t, len(msg), n)
	assert.Equal(t, uint32(2), parsed.Sender)
	assert.Equal(t, uint16(EvRegistryGlobal), parsed.Opcode)

	d := NewDecoder(parsed.Args)
	assert.Equal(t, uint32(7), d.Uint())
	assert.Equal(t, "wl_seat", d.String())
	assert.Equal(t, uint32(9), d.Uint())
	assert.NoError(t, d.Err())
}

func TestParse(t *testing.T) {
	full := NewEncoder(DisplayID, EvDisplayDeleteID).Uint(5).Bytes()

	t.Run("short header", func(t *testing.T) {
		_, n, err := Parse(full[:4])
		assert.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("partial body", func(t *testing.T) {
		_, n, err := Parse(full[:len(full)-1])
		assert.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("two messages", func(t *testing.T) {
		second := NewEncoder(4, EvCallbackDone).Uint(1).Bytes()
		buf := append(append([]byte(nil), full...), second...)

		msg, n, err := Parse(buf)
		require.NoError(t, err)
		assert.Equal(t, uint32(DisplayID), msg.Sender)

		msg, m, err := Parse(buf[n:])
		require.NoError(t, err)
		assert.Equal(t, len(second), m)
		assert.Equal(t, uint32(4), msg.Sender)
	})

	t.Run("size below header", func(t *testing.T) {
		bad := append([]byte(nil), full...)
		byteOrder.PutUint32(bad[4:8], uint32(4)<<16)
		_, _, err := Parse(bad)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("unaligned size", func(t *testing.T) {
		bad := append([]byte(nil), full...)
		byteOrder.PutUint32(bad[4:8], uint32(10)<<16)
		_, _, err := Parse(bad)
		assert.ErrorIs(t, err, ErrMalformed)
	})
}

func TestDecoderErrors(t *testing.T) {
	t.Run("truncated uint", func(t *testing.T) {
		d := NewDecoder([]byte{1, 2})
		assert.Zero(t, d.Uint())
		assert.ErrorIs(t, d.Err(), ErrMalformed)
	})

	t.Run("string overruns message", func(t *testing.T) {
		args := byteOrder.AppendUint32(nil, 64)
		d := NewDecoder(args)
		assert.Empty(t, d.String())
		assert.ErrorIs(t, d.Err(), ErrMalformed)
	})

	t.Run("string without terminator", func(t *testing.T) {
		args := byteOrder.AppendUint32(nil, 4)
		args = append(args, 'a', 'b', 'c', 'd')
		d := NewDecoder(args)
		assert.Empty(t, d.String())
		assert.ErrorIs(t, d.Err(), ErrMalformed)
	})

	t.Run("error is sticky", func(t *testing.T) {
		d := NewDecoder(nil)
		d.Uint()
		args := NewEncoder(1, 0).Uint(3).Bytes()
		d.data = args
		assert.Zero(t, d.Uint())
		assert.Error(t, d.Err())
	})

	t.Run("null string", func(t *testing.T) {
		d := NewDecoder(byteOrder.AppendUint32(nil, 0))
		assert.Empty(t, d.String())
		assert.NoError(t, d.Err())
	})
}
