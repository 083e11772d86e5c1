// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package packet

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ManuGH/lobbyd/internal/lobby/model"
)

var (
	ErrShortBuffer   = errors.New("packet: short buffer")
	ErrTrailingBytes = errors.New("packet: trailing bytes")
	ErrBadMagic      = errors.New("packet: bad magic")
	ErrBadVersion    = errors.New("packet: unsupported version")
	ErrUnknownType   = errors.New("packet: unknown type")
	ErrTooLong       = errors.New("packet: field too long")
	ErrBadValue      = errors.New("packet: field out of range")
)

// writer appends little-endian fields. The first error sticks.
type writer struct {
	buf []byte
	err error
}

func (w *writer) u8(v uint8) { w.buf = append(w.buf, v) }

func (w *writer) boolean(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

func (w *writer) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }

func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

func (w *writer) conn(c model.ConnectionID) { w.u32(uint32(c)) }

func (w *writer) str(s string) {
	if len(s) > MaxStringLen {
		w.fail(fmt.Errorf("%w: string of %d bytes", ErrTooLong, len(s)))
		return
	}
	w.u8(uint8(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// reader consumes little-endian fields. Reads past the end record
// ErrShortBuffer and return zero values.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf)-r.off < n {
		r.err = ErrShortBuffer
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) boolean() bool {
	v := r.u8()
	if v > 1 && r.err == nil {
		r.err = fmt.Errorf("%w: bool %d", ErrBadValue, v)
	}
	return v == 1
}

func (r *reader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) conn() model.ConnectionID { return model.ConnectionID(r.u32()) }

func (r *reader) str() string {
	n := int(r.u8())
	b := r.take(n)
	if b == nil {
		return ""
	}
	return string(b)
}

func (r *reader) remaining() int { return len(r.buf) - r.off }
