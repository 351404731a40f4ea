// Package wire implements the client side of the Wayland wire protocol for
// the core interfaces only: wl_display, wl_registry and wl_callback.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the size of a message header: sender id, then size and opcode.
const HeaderSize = 8

// MaxMessageSize matches the limit libwayland enforces on both sides.
const MaxMessageSize = 4096

// ErrMalformed is returned for messages that violate the wire format.
var ErrMalformed = errors.New("wire: malformed message")

// The protocol uses the host byte order.
var byteOrder = binary.NativeEndian

// Message is one decoded message: a request when written by a client, an
// event when written by a server.
type Message struct {
	Sender uint32
	Opcode uint16
	Args   []byte
}

// Parse extracts the first complete message from buf. It returns the number
// of bytes consumed, which is zero when buf only holds part of a message.
func Parse(buf []byte) (Message, int, error) {
	if len(buf) < HeaderSize {
		return Message{}, 0, nil
	}

	sender := byteOrder.Uint32(buf[0:4])
	word := byteOrder.Uint32(buf[4:8])
	size := int(word >> 16)
	if size < HeaderSize || size%4 != 0 || size > MaxMessageSize {
		return Message{}, 0, fmt.Errorf("%w: bad size %d for object %d", ErrMalformed, size, sender)
	}
	if len(buf) < size {
		return Message{}, 0, nil
	}

	args := make([]byte, size-HeaderSize)
	copy(args, buf[HeaderSize:size])
	return Message{Sender: sender, Opcode: uint16(word & 0xffff), Args: args}, size, nil
}

// Encoder builds a single message.
type Encoder struct {
	buf []byte
}

// NewEncoder starts a message from sender with the given opcode.
func NewEncoder(sender uint32, opcode uint16) *Encoder {
	e := &Encoder{buf: make([]byte, HeaderSize, 32)}
	byteOrder.PutUint32(e.buf[0:4], sender)
	byteOrder.PutUint32(e.buf[4:8], uint32(opcode))
	return e
}

// Uint appends a uint, object or new_id argument.
func (e *Encoder) Uint(v uint32) *Encoder {
	e.buf = byteOrder.AppendUint32(e.buf, v)
	return e
}

// Int appends an int argument.
func (e *Encoder) Int(v int32) *Encoder {
	return e.Uint(uint32(v))
}

// String appends a string argument: length including the terminating NUL,
// the bytes, the NUL, then padding to a 32-bit boundary.
func (e *Encoder) String(s string) *Encoder {
	n := len(s) + 1
	e.buf = byteOrder.AppendUint32(e.buf, uint32(n))
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
	for pad := padding(n); pad > 0; pad-- {
		e.buf = append(e.buf, 0)
	}
	return e
}

// Bytes finalizes the header size field and returns the encoded message.
func (e *Encoder) Bytes() []byte {
	word := byteOrder.Uint32(e.buf[4:8]) & 0xffff
	byteOrder.PutUint32(e.buf[4:8], uint32(len(e.buf))<<16|word)
	return e.buf
}

// Decoder reads arguments out of a message body. The first failure is
// sticky and reported by Err.
type Decoder struct {
	data []byte
	off  int
	err  error
}

func NewDecoder(args []byte) *Decoder {
	return &Decoder{data: args}
}

func (d *Decoder) Uint() uint32 {
	if d.err != nil {
		return 0
	}
	if len(d.data)-d.off < 4 {
		d.err = fmt.Errorf("%w: truncated argument at offset %d", ErrMalformed, d.off)
		return 0
	}
	v := byteOrder.Uint32(d.data[d.off:])
	d.off += 4
	return v
}

func (d *Decoder) Int() int32 {
	return int32(d.Uint())
}

// String reads a string argument. A zero length (null string) decodes as "".
func (d *Decoder) String() string {
	n := int(d.Uint())
	if d.err != nil || n == 0 {
		return ""
	}
	padded := n + padding(n)
	if len(d.data)-d.off < padded {
		d.err = fmt.Errorf("%w: string of %d bytes overruns message", ErrMalformed, n)
		return ""
	}
	raw := d.data[d.off : d.off+n]
	if raw[n-1] != 0 {
		d.err = fmt.Errorf("%w: string is not NUL terminated", ErrMalformed)
		return ""
	}
	d.off += padded
	return string(raw[:n-1])
}

func (d *Decoder) Err() error {
	return d.err
}

func padding(n int) int {
	return (4 - n%4) % 4
}
