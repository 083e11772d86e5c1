// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package packet implements the binary host/member wire messages.
//
// Every packet is a five byte header, [magic][version][type][length u16 LE],
// followed by exactly length payload bytes.
package packet

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ManuGH/lobbyd/internal/lobby/model"
)

const (
	Magic      = 0xC7
	Version    = 1
	HeaderSize = 5

	MaxStringLen          = math.MaxUint8
	MaxReservationMembers = math.MaxUint8
)

// Encode serialises m with its header.
func Encode(m Message) ([]byte, error) {
	w := &writer{buf: make([]byte, HeaderSize, HeaderSize+32)}
	m.encode(w)
	if w.err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Type(), w.err)
	}
	payload := len(w.buf) - HeaderSize
	if payload > math.MaxUint16 {
		return nil, fmt.Errorf("encode %s: %w: payload %d", m.Type(), ErrTooLong, payload)
	}
	w.buf[0] = Magic
	w.buf[1] = Version
	w.buf[2] = uint8(m.Type())
	binary.LittleEndian.PutUint16(w.buf[3:5], uint16(payload))
	return w.buf, nil
}

// PeekType validates the header and returns the message type without
// decoding the payload.
func PeekType(b []byte) (Type, error) {
	if len(b) < HeaderSize {
		return 0, ErrShortBuffer
	}
	if b[0] != Magic {
		return 0, ErrBadMagic
	}
	if b[1] != Version {
		return 0, fmt.Errorf("%w: %d", ErrBadVersion, b[1])
	}
	return Type(b[2]), nil
}

// Decode parses one packet. The buffer must hold exactly one packet and the
// payload must be consumed completely.
func Decode(b []byte) (Message, error) {
	t, err := PeekType(b)
	if err != nil {
		return nil, err
	}
	m, err := newMessage(t)
	if err != nil {
		return nil, err
	}
	n := int(binary.LittleEndian.Uint16(b[3:5]))
	switch {
	case len(b)-HeaderSize < n:
		return nil, fmt.Errorf("decode %s: %w", t, ErrShortBuffer)
	case len(b)-HeaderSize > n:
		return nil, fmt.Errorf("decode %s: %w", t, ErrTrailingBytes)
	}
	r := &reader{buf: b[HeaderSize:]}
	m.decode(r)
	if r.err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, r.err)
	}
	if r.remaining() != 0 {
		return nil, fmt.Errorf("decode %s: %w: %d unread", t, ErrTrailingBytes, r.remaining())
	}
	return m, nil
}

const memberDataSize = 7

// EncodeMemberData packs the per-member profile replicated through the
// matchmaking user-data channel.
func EncodeMemberData(d model.MemberData) []byte {
	w := &writer{buf: make([]byte, 0, memberDataSize)}
	w.u8(d.Team)
	w.u8(d.Rank)
	w.u16(d.Skill)
	w.u8(uint8(d.Vote))
	w.u8(d.Mute)
	w.u8(d.Flags)
	return w.buf
}

// DecodeMemberData is the inverse of EncodeMemberData.
func DecodeMemberData(b []byte) (model.MemberData, error) {
	var d model.MemberData
	if len(b) < memberDataSize {
		return d, ErrShortBuffer
	}
	if len(b) > memberDataSize {
		return d, ErrTrailingBytes
	}
	r := &reader{buf: b}
	d.Team = r.u8()
	d.Rank = r.u8()
	d.Skill = r.u16()
	vote := r.u8()
	if vote > uint8(model.VoteRight) {
		return model.MemberData{}, fmt.Errorf("%w: vote %d", ErrBadValue, vote)
	}
	d.Vote = model.VoteChoice(vote)
	d.Mute = r.u8()
	d.Flags = r.u8()
	return d, r.err
}
